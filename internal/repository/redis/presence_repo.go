package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"orgchat-backend/internal/database"
)

// PresenceRepository handles user online/offline status in Redis.
// The TTL-bounded key presence:<userID> is the authoritative liveness signal;
// a user whose client stops heartbeating goes offline within one TTL window
// without any explicit offline call. The presence:online set is a best-effort
// index for listing and is always filtered against the live keys.
type PresenceRepository struct {
	client *database.RedisClient
	ttl    time.Duration
}

// NewPresenceRepository creates a new PresenceRepository
func NewPresenceRepository(client *database.RedisClient, ttl time.Duration) *PresenceRepository {
	return &PresenceRepository{client: client, ttl: ttl}
}

func presenceKey(userID uuid.UUID) string {
	return fmt.Sprintf("presence:%s", userID)
}

// SetOnline marks the user online and resets the TTL. Called on every
// heartbeat so a visible->hidden->visible transition flips status
// immediately rather than waiting for the next interval.
func (r *PresenceRepository) SetOnline(ctx context.Context, userID uuid.UUID) error {
	if err := r.client.SafeSet(ctx, presenceKey(userID), "online", r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set user online: %w", err)
	}

	if err := r.client.SafeSAdd(ctx, "presence:online", userID.String()).Err(); err != nil {
		return fmt.Errorf("failed to add to online set: %w", err)
	}

	return nil
}

// SetOffline marks the user offline immediately (page-hide/unload path);
// TTL expiry covers clients that vanish without saying goodbye
func (r *PresenceRepository) SetOffline(ctx context.Context, userID uuid.UUID) error {
	if err := r.client.SafeDel(ctx, presenceKey(userID)).Err(); err != nil {
		return fmt.Errorf("failed to delete presence: %w", err)
	}

	if err := r.client.SafeSRem(ctx, "presence:online", userID.String()).Err(); err != nil {
		return fmt.Errorf("failed to remove from online set: %w", err)
	}

	return nil
}

// IsOnline checks if the user has a live presence flag
func (r *PresenceRepository) IsOnline(ctx context.Context, userID uuid.UUID) (bool, error) {
	exists, err := r.client.SafeExists(ctx, presenceKey(userID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check presence: %w", err)
	}

	return exists > 0, nil
}

// GetOnlineUsers retrieves the list of online user IDs. Set members whose
// presence key already expired are dropped from the result and reaped from
// the set.
func (r *PresenceRepository) GetOnlineUsers(ctx context.Context) ([]uuid.UUID, error) {
	memberStrs, err := r.client.SafeSMembers(ctx, "presence:online").Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get online users: %w", err)
	}

	userIDs := make([]uuid.UUID, 0, len(memberStrs))
	for _, idStr := range memberStrs {
		userID, err := uuid.Parse(idStr)
		if err != nil {
			continue // Skip invalid entries
		}

		online, err := r.IsOnline(ctx, userID)
		if err != nil {
			return nil, err
		}
		if !online {
			// Expired flag, reap the stale index entry
			r.client.SafeSRem(ctx, "presence:online", idStr)
			continue
		}

		userIDs = append(userIDs, userID)
	}

	return userIDs, nil
}

// IsDegraded returns true if Redis is in degraded mode
func (r *PresenceRepository) IsDegraded() bool {
	return r.client.IsDegraded()
}
