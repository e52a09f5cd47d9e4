package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orgchat-backend/internal/database"
	"orgchat-backend/internal/domain"
)

func newTestCallStateRepo(t *testing.T) (*CallStateRepository, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	client := database.NewRedisClient(s.Addr())
	return NewCallStateRepository(client, 60*time.Second, 60*time.Second), s
}

// TestCallStateRoundTrip tests storing and reading a call state record
func TestCallStateRoundTrip(t *testing.T) {
	repo, _ := newTestCallStateRepo(t)
	ctx := context.Background()

	userID := uuid.New()
	state := &domain.CallState{
		ConversationID: uuid.New(),
		PeerID:         uuid.New(),
	}

	require.NoError(t, repo.SetCallState(ctx, userID, state))

	got, err := repo.GetCallState(ctx, userID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, state.ConversationID, got.ConversationID)
	assert.Equal(t, state.PeerID, got.PeerID)
}

// TestCallStateMissing tests that an absent record reads as nil, not error
func TestCallStateMissing(t *testing.T) {
	repo, _ := newTestCallStateRepo(t)

	got, err := repo.GetCallState(context.Background(), uuid.New())

	assert.NoError(t, err)
	assert.Nil(t, got)
}

// TestCallStateOverwrite tests last-write-wins semantics
func TestCallStateOverwrite(t *testing.T) {
	repo, _ := newTestCallStateRepo(t)
	ctx := context.Background()

	userID := uuid.New()
	first := &domain.CallState{ConversationID: uuid.New(), PeerID: uuid.New()}
	second := &domain.CallState{ConversationID: uuid.New(), PeerID: uuid.New()}

	require.NoError(t, repo.SetCallState(ctx, userID, first))
	require.NoError(t, repo.SetCallState(ctx, userID, second))

	got, err := repo.GetCallState(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, second.PeerID, got.PeerID)
	assert.Equal(t, second.ConversationID, got.ConversationID)
}

// TestCallStateExpiry tests that a call state record decays after its TTL
func TestCallStateExpiry(t *testing.T) {
	repo, s := newTestCallStateRepo(t)
	ctx := context.Background()

	userID := uuid.New()
	require.NoError(t, repo.SetCallState(ctx, userID, &domain.CallState{
		ConversationID: uuid.New(),
		PeerID:         uuid.New(),
	}))

	s.FastForward(61 * time.Second)

	got, err := repo.GetCallState(ctx, userID)
	assert.NoError(t, err)
	assert.Nil(t, got)
}

// TestPendingCallOverwrite tests that a second invite replaces the first
func TestPendingCallOverwrite(t *testing.T) {
	repo, _ := newTestCallStateRepo(t)
	ctx := context.Background()

	recipientID := uuid.New()
	firstCaller := uuid.New()
	secondCaller := uuid.New()

	require.NoError(t, repo.SetPendingCall(ctx, recipientID, &domain.PendingCall{
		CallerID:       firstCaller,
		CallerName:     "Alice",
		Offer:          json.RawMessage(`{"sdp":"a"}`),
		ConversationID: uuid.New(),
		CallType:       domain.CallTypeAudio,
	}))
	require.NoError(t, repo.SetPendingCall(ctx, recipientID, &domain.PendingCall{
		CallerID:       secondCaller,
		CallerName:     "Bob",
		Offer:          json.RawMessage(`{"sdp":"b"}`),
		ConversationID: uuid.New(),
		CallType:       domain.CallTypeVideo,
	}))

	got, err := repo.GetPendingCall(ctx, recipientID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, secondCaller, got.CallerID)
	assert.Equal(t, "Bob", got.CallerName)
	assert.Equal(t, domain.CallTypeVideo, got.CallType)
}

// TestConsumePendingCall tests that consuming removes the record
func TestConsumePendingCall(t *testing.T) {
	repo, _ := newTestCallStateRepo(t)
	ctx := context.Background()

	recipientID := uuid.New()
	require.NoError(t, repo.SetPendingCall(ctx, recipientID, &domain.PendingCall{
		CallerID:       uuid.New(),
		CallerName:     "Alice",
		ConversationID: uuid.New(),
		CallType:       domain.CallTypeAudio,
	}))

	got, err := repo.ConsumePendingCall(ctx, recipientID)
	require.NoError(t, err)
	require.NotNil(t, got)

	again, err := repo.ConsumePendingCall(ctx, recipientID)
	assert.NoError(t, err)
	assert.Nil(t, again)
}

// TestPendingCallExpiry tests that an unanswered invite decays after its TTL
func TestPendingCallExpiry(t *testing.T) {
	repo, s := newTestCallStateRepo(t)
	ctx := context.Background()

	recipientID := uuid.New()
	require.NoError(t, repo.SetPendingCall(ctx, recipientID, &domain.PendingCall{
		CallerID:       uuid.New(),
		ConversationID: uuid.New(),
		CallType:       domain.CallTypeAudio,
	}))

	s.FastForward(61 * time.Second)

	got, err := repo.GetPendingCall(ctx, recipientID)
	assert.NoError(t, err)
	assert.Nil(t, got)
}

// TestDeleteCallState tests explicit cleanup on hangup
func TestDeleteCallState(t *testing.T) {
	repo, _ := newTestCallStateRepo(t)
	ctx := context.Background()

	userID := uuid.New()
	require.NoError(t, repo.SetCallState(ctx, userID, &domain.CallState{
		ConversationID: uuid.New(),
		PeerID:         uuid.New(),
	}))
	require.NoError(t, repo.DeleteCallState(ctx, userID))

	got, err := repo.GetCallState(ctx, userID)
	assert.NoError(t, err)
	assert.Nil(t, got)

	// Deleting an absent record is not an error
	assert.NoError(t, repo.DeleteCallState(ctx, userID))
}
