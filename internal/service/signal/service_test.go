package signal

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"orgchat-backend/internal/domain"
	"orgchat-backend/pkg/push"
)

// MockCallStore is a mock implementation of CallStore
type MockCallStore struct {
	mock.Mock
}

func (m *MockCallStore) SetCallState(ctx context.Context, userID uuid.UUID, state *domain.CallState) error {
	args := m.Called(ctx, userID, state)
	return args.Error(0)
}

func (m *MockCallStore) GetCallState(ctx context.Context, userID uuid.UUID) (*domain.CallState, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CallState), args.Error(1)
}

func (m *MockCallStore) DeleteCallState(ctx context.Context, userID uuid.UUID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *MockCallStore) SetPendingCall(ctx context.Context, recipientID uuid.UUID, call *domain.PendingCall) error {
	args := m.Called(ctx, recipientID, call)
	return args.Error(0)
}

func (m *MockCallStore) GetPendingCall(ctx context.Context, recipientID uuid.UUID) (*domain.PendingCall, error) {
	args := m.Called(ctx, recipientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PendingCall), args.Error(1)
}

func (m *MockCallStore) DeletePendingCall(ctx context.Context, recipientID uuid.UUID) error {
	args := m.Called(ctx, recipientID)
	return args.Error(0)
}

// MockDirectory is a mock implementation of Directory
type MockDirectory struct {
	mock.Mock
}

func (m *MockDirectory) GetDisplayName(ctx context.Context, userID uuid.UUID) (string, error) {
	args := m.Called(ctx, userID)
	return args.String(0), args.Error(1)
}

// MockPublisher is a mock implementation of Publisher
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishToUser(ctx context.Context, userID uuid.UUID, event string, payload interface{}) error {
	args := m.Called(ctx, userID, event, payload)
	return args.Error(0)
}

// MockPushSender is a mock implementation of PushSender
type MockPushSender struct {
	mock.Mock
}

func (m *MockPushSender) SendIncomingCall(ctx context.Context, data *push.IncomingCallData, recipientID uuid.UUID) error {
	args := m.Called(ctx, data, recipientID)
	return args.Error(0)
}

func newTestService() (*Service, *MockCallStore, *MockDirectory, *MockPublisher, *MockPushSender) {
	store := new(MockCallStore)
	directory := new(MockDirectory)
	publisher := new(MockPublisher)
	pushSvc := new(MockPushSender)
	return NewService(store, directory, publisher, pushSvc), store, directory, publisher, pushSvc
}

// TestInvite tests the full invite flow: pending call stored, caller state
// stored, channel publish, and push dispatch
func TestInvite(t *testing.T) {
	service, store, directory, publisher, pushSvc := newTestService()

	callerID := uuid.New()
	recipientID := uuid.New()
	conversationID := uuid.New()
	offer := json.RawMessage(`{"type":"offer","sdp":"v=0"}`)

	directory.On("GetDisplayName", mock.Anything, callerID).Return("Alice", nil)
	store.On("SetPendingCall", mock.Anything, recipientID, mock.AnythingOfType("*domain.PendingCall")).Return(nil)
	store.On("SetCallState", mock.Anything, callerID, mock.AnythingOfType("*domain.CallState")).Return(nil)
	publisher.On("PublishToUser", mock.Anything, recipientID, "call:invite", mock.Anything).Return(nil)
	pushSvc.On("SendIncomingCall", mock.Anything, mock.AnythingOfType("*push.IncomingCallData"), recipientID).Return(nil)

	err := service.Invite(context.Background(), callerID, &domain.InviteEvent{
		RecipientID:    recipientID,
		Offer:          offer,
		ConversationID: conversationID,
		CallType:       domain.CallTypeVideo,
	})

	assert.NoError(t, err)

	pending := store.Calls[0].Arguments.Get(2).(*domain.PendingCall)
	assert.Equal(t, callerID, pending.CallerID)
	assert.Equal(t, "Alice", pending.CallerName)
	assert.Equal(t, conversationID, pending.ConversationID)
	assert.Equal(t, domain.CallTypeVideo, pending.CallType)

	state := store.Calls[1].Arguments.Get(2).(*domain.CallState)
	assert.Equal(t, conversationID, state.ConversationID)
	assert.Equal(t, recipientID, state.PeerID)

	store.AssertExpectations(t)
	publisher.AssertExpectations(t)
	pushSvc.AssertExpectations(t)
}

// TestInvite_NameLookupFails tests that the call still rings when the
// directory is unavailable, with the caller id as the display name
func TestInvite_NameLookupFails(t *testing.T) {
	service, store, directory, publisher, pushSvc := newTestService()

	callerID := uuid.New()
	recipientID := uuid.New()

	directory.On("GetDisplayName", mock.Anything, callerID).Return("", errors.New("connection refused"))
	store.On("SetPendingCall", mock.Anything, recipientID, mock.AnythingOfType("*domain.PendingCall")).Return(nil)
	store.On("SetCallState", mock.Anything, callerID, mock.AnythingOfType("*domain.CallState")).Return(nil)
	publisher.On("PublishToUser", mock.Anything, recipientID, "call:invite", mock.Anything).Return(nil)
	pushSvc.On("SendIncomingCall", mock.Anything, mock.Anything, recipientID).Return(nil)

	err := service.Invite(context.Background(), callerID, &domain.InviteEvent{
		RecipientID:    recipientID,
		ConversationID: uuid.New(),
		CallType:       domain.CallTypeAudio,
	})

	assert.NoError(t, err)

	pending := store.Calls[0].Arguments.Get(2).(*domain.PendingCall)
	assert.Equal(t, callerID.String(), pending.CallerName)
	store.AssertExpectations(t)
}

// TestInvite_PushFails tests that a push provider failure does not fail the
// invite
func TestInvite_PushFails(t *testing.T) {
	service, store, directory, publisher, pushSvc := newTestService()

	callerID := uuid.New()
	recipientID := uuid.New()

	directory.On("GetDisplayName", mock.Anything, callerID).Return("Alice", nil)
	store.On("SetPendingCall", mock.Anything, recipientID, mock.Anything).Return(nil)
	store.On("SetCallState", mock.Anything, callerID, mock.Anything).Return(nil)
	publisher.On("PublishToUser", mock.Anything, recipientID, "call:invite", mock.Anything).Return(nil)
	pushSvc.On("SendIncomingCall", mock.Anything, mock.Anything, recipientID).Return(errors.New("fcm unavailable"))

	err := service.Invite(context.Background(), callerID, &domain.InviteEvent{
		RecipientID:    recipientID,
		ConversationID: uuid.New(),
		CallType:       domain.CallTypeAudio,
	})

	assert.NoError(t, err)
	store.AssertExpectations(t)
}

// TestInvite_StoreFails tests that a store failure fails the request before
// any notification goes out
func TestInvite_StoreFails(t *testing.T) {
	service, store, directory, publisher, pushSvc := newTestService()

	callerID := uuid.New()
	recipientID := uuid.New()

	directory.On("GetDisplayName", mock.Anything, callerID).Return("Alice", nil)
	store.On("SetPendingCall", mock.Anything, recipientID, mock.Anything).Return(errors.New("redis degraded"))

	err := service.Invite(context.Background(), callerID, &domain.InviteEvent{
		RecipientID:    recipientID,
		ConversationID: uuid.New(),
		CallType:       domain.CallTypeAudio,
	})

	assert.Error(t, err)
	publisher.AssertNotCalled(t, "PublishToUser")
	pushSvc.AssertNotCalled(t, "SendIncomingCall")
}

// TestAnswer tests that answering records a symmetric call state for both
// parties, clears the pending invite, and relays the answer to the caller
func TestAnswer(t *testing.T) {
	service, store, _, publisher, _ := newTestService()

	callerID := uuid.New()
	responderID := uuid.New()
	conversationID := uuid.New()
	answer := json.RawMessage(`{"type":"answer","sdp":"v=0"}`)

	store.On("SetCallState", mock.Anything, responderID, mock.AnythingOfType("*domain.CallState")).Return(nil)
	store.On("SetCallState", mock.Anything, callerID, mock.AnythingOfType("*domain.CallState")).Return(nil)
	store.On("DeletePendingCall", mock.Anything, responderID).Return(nil)
	publisher.On("PublishToUser", mock.Anything, callerID, "call:answered", mock.Anything).Return(nil)

	err := service.Answer(context.Background(), responderID, &domain.AnswerEvent{
		CallerID:       callerID,
		Answer:         answer,
		ConversationID: conversationID,
	})

	assert.NoError(t, err)

	// Each party's state names the other as peer in the same conversation
	responderState := store.Calls[0].Arguments.Get(2).(*domain.CallState)
	callerState := store.Calls[1].Arguments.Get(2).(*domain.CallState)
	assert.Equal(t, callerID, responderState.PeerID)
	assert.Equal(t, responderID, callerState.PeerID)
	assert.Equal(t, conversationID, responderState.ConversationID)
	assert.Equal(t, conversationID, callerState.ConversationID)

	store.AssertExpectations(t)
	publisher.AssertExpectations(t)
}

// TestAnswer_ConversationFromPending tests that a missing conversation id is
// filled from the responder's pending invite
func TestAnswer_ConversationFromPending(t *testing.T) {
	service, store, _, publisher, _ := newTestService()

	callerID := uuid.New()
	responderID := uuid.New()
	conversationID := uuid.New()

	store.On("GetPendingCall", mock.Anything, responderID).Return(&domain.PendingCall{
		CallerID:       callerID,
		ConversationID: conversationID,
		CallType:       domain.CallTypeAudio,
	}, nil)
	store.On("SetCallState", mock.Anything, mock.AnythingOfType("uuid.UUID"), mock.AnythingOfType("*domain.CallState")).Return(nil)
	store.On("DeletePendingCall", mock.Anything, responderID).Return(nil)
	publisher.On("PublishToUser", mock.Anything, callerID, "call:answered", mock.Anything).Return(nil)

	err := service.Answer(context.Background(), responderID, &domain.AnswerEvent{
		CallerID: callerID,
	})

	assert.NoError(t, err)

	responderState := store.Calls[1].Arguments.Get(2).(*domain.CallState)
	assert.Equal(t, conversationID, responderState.ConversationID)
	store.AssertExpectations(t)
}

// TestReject tests that rejecting clears the pending invite and both call
// states and notifies the caller
func TestReject(t *testing.T) {
	service, store, _, publisher, _ := newTestService()

	callerID := uuid.New()
	responderID := uuid.New()

	store.On("DeletePendingCall", mock.Anything, responderID).Return(nil)
	store.On("DeleteCallState", mock.Anything, responderID).Return(nil)
	store.On("DeleteCallState", mock.Anything, callerID).Return(nil)
	publisher.On("PublishToUser", mock.Anything, callerID, "call:rejected", mock.Anything).Return(nil)

	err := service.Reject(context.Background(), responderID, &domain.RejectEvent{
		CallerID: callerID,
	})

	assert.NoError(t, err)
	store.AssertExpectations(t)
	publisher.AssertExpectations(t)
}

// TestEnd tests that hanging up clears both call states and notifies the peer
func TestEnd(t *testing.T) {
	service, store, _, publisher, _ := newTestService()

	enderID := uuid.New()
	targetID := uuid.New()

	store.On("DeleteCallState", mock.Anything, enderID).Return(nil)
	store.On("DeleteCallState", mock.Anything, targetID).Return(nil)
	publisher.On("PublishToUser", mock.Anything, targetID, "call:ended", mock.Anything).Return(nil)

	err := service.End(context.Background(), enderID, &domain.EndEvent{
		TargetUserID: targetID,
	})

	assert.NoError(t, err)
	store.AssertExpectations(t)
	store.AssertNotCalled(t, "DeletePendingCall")
	publisher.AssertExpectations(t)
}

// TestICECandidate tests that candidates are relayed without touching the
// store
func TestICECandidate(t *testing.T) {
	service, store, _, publisher, _ := newTestService()

	senderID := uuid.New()
	targetID := uuid.New()
	candidate := json.RawMessage(`{"candidate":"candidate:1 1 UDP 2122252543 192.0.2.1 54400 typ host"}`)

	publisher.On("PublishToUser", mock.Anything, targetID, "call:ice-candidate", mock.Anything).Return(nil)

	err := service.ICECandidate(context.Background(), senderID, &domain.ICECandidateEvent{
		TargetUserID: targetID,
		Candidate:    candidate,
	})

	assert.NoError(t, err)
	store.AssertNotCalled(t, "SetCallState")
	store.AssertNotCalled(t, "DeleteCallState")
	publisher.AssertExpectations(t)
}

// TestICECandidate_PublishFails tests that a broker failure still yields
// success; delivery is best effort
func TestICECandidate_PublishFails(t *testing.T) {
	service, _, _, publisher, _ := newTestService()

	senderID := uuid.New()
	targetID := uuid.New()

	publisher.On("PublishToUser", mock.Anything, targetID, "call:ice-candidate", mock.Anything).Return(errors.New("broker down"))

	err := service.ICECandidate(context.Background(), senderID, &domain.ICECandidateEvent{
		TargetUserID: targetID,
	})

	assert.NoError(t, err)
}

// TestDispatch tests routing from the typed event union to the handlers
func TestDispatch(t *testing.T) {
	service, store, _, publisher, _ := newTestService()

	senderID := uuid.New()
	targetID := uuid.New()

	store.On("DeleteCallState", mock.Anything, senderID).Return(nil)
	store.On("DeleteCallState", mock.Anything, targetID).Return(nil)
	publisher.On("PublishToUser", mock.Anything, targetID, "call:ended", mock.Anything).Return(nil)

	err := service.Dispatch(context.Background(), senderID, &domain.EndEvent{TargetUserID: targetID})

	assert.NoError(t, err)
	store.AssertExpectations(t)
}
