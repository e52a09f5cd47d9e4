package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"orgchat-backend/internal/database"
	"orgchat-backend/internal/domain"
)

// CallStateRepository stores ephemeral call-signaling state in Redis.
// Two record families, both TTL-bounded and last-write-wins:
//   - call:state:<userID>   -> active-call record for that user
//   - call:pending:<userID> -> unanswered invite waiting for that recipient
//
// Writes are plain overwrites; concurrent invites racing on the same
// recipient resolve by last write. TTL expiry is the only garbage collector.
type CallStateRepository struct {
	client     *database.RedisClient
	stateTTL   time.Duration
	pendingTTL time.Duration
}

// NewCallStateRepository creates a new CallStateRepository
func NewCallStateRepository(client *database.RedisClient, stateTTL, pendingTTL time.Duration) *CallStateRepository {
	return &CallStateRepository{
		client:     client,
		stateTTL:   stateTTL,
		pendingTTL: pendingTTL,
	}
}

func callStateKey(userID uuid.UUID) string {
	return fmt.Sprintf("call:state:%s", userID)
}

func pendingCallKey(userID uuid.UUID) string {
	return fmt.Sprintf("call:pending:%s", userID)
}

// SetCallState records that userID is in an active call, overwriting any
// previous record and resetting the TTL
func (r *CallStateRepository) SetCallState(ctx context.Context, userID uuid.UUID, state *domain.CallState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal call state: %w", err)
	}

	if err := r.client.SafeSet(ctx, callStateKey(userID), data, r.stateTTL).Err(); err != nil {
		return fmt.Errorf("failed to set call state: %w", err)
	}

	return nil
}

// GetCallState returns the active-call record for userID, or nil if none exists
func (r *CallStateRepository) GetCallState(ctx context.Context, userID uuid.UUID) (*domain.CallState, error) {
	data, err := r.client.SafeGet(ctx, callStateKey(userID)).Bytes()
	if err == goredis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get call state: %w", err)
	}

	var state domain.CallState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal call state: %w", err)
	}

	return &state, nil
}

// DeleteCallState removes the active-call record for userID; deleting a
// missing record is not an error
func (r *CallStateRepository) DeleteCallState(ctx context.Context, userID uuid.UUID) error {
	if err := r.client.SafeDel(ctx, callStateKey(userID)).Err(); err != nil {
		return fmt.Errorf("failed to delete call state: %w", err)
	}
	return nil
}

// SetPendingCall records an unanswered invite for recipientID. Repeated
// invites overwrite: last invite wins, there is no call-waiting queue.
func (r *CallStateRepository) SetPendingCall(ctx context.Context, recipientID uuid.UUID, call *domain.PendingCall) error {
	data, err := json.Marshal(call)
	if err != nil {
		return fmt.Errorf("failed to marshal pending call: %w", err)
	}

	if err := r.client.SafeSet(ctx, pendingCallKey(recipientID), data, r.pendingTTL).Err(); err != nil {
		return fmt.Errorf("failed to set pending call: %w", err)
	}

	return nil
}

// GetPendingCall returns the pending invite for recipientID, or nil if none exists
func (r *CallStateRepository) GetPendingCall(ctx context.Context, recipientID uuid.UUID) (*domain.PendingCall, error) {
	data, err := r.client.SafeGet(ctx, pendingCallKey(recipientID)).Bytes()
	if err == goredis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pending call: %w", err)
	}

	var call domain.PendingCall
	if err := json.Unmarshal(data, &call); err != nil {
		return nil, fmt.Errorf("failed to unmarshal pending call: %w", err)
	}

	return &call, nil
}

// DeletePendingCall removes the pending invite for recipientID
func (r *CallStateRepository) DeletePendingCall(ctx context.Context, recipientID uuid.UUID) error {
	if err := r.client.SafeDel(ctx, pendingCallKey(recipientID)).Err(); err != nil {
		return fmt.Errorf("failed to delete pending call: %w", err)
	}
	return nil
}

// ConsumePendingCall returns and deletes the pending invite for recipientID
// in one step, used when the recipient reconnects
func (r *CallStateRepository) ConsumePendingCall(ctx context.Context, recipientID uuid.UUID) (*domain.PendingCall, error) {
	call, err := r.GetPendingCall(ctx, recipientID)
	if err != nil || call == nil {
		return call, err
	}
	if err := r.DeletePendingCall(ctx, recipientID); err != nil {
		return nil, err
	}
	return call, nil
}

// IsDegraded returns true if Redis is in degraded mode
func (r *CallStateRepository) IsDegraded() bool {
	return r.client.IsDegraded()
}
