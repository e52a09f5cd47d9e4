package presence

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"orgchat-backend/internal/domain"
	"orgchat-backend/pkg/metrics"
)

// PresenceStore tracks who is online through TTL-keyed heartbeat records
type PresenceStore interface {
	SetOnline(ctx context.Context, userID uuid.UUID) error
	SetOffline(ctx context.Context, userID uuid.UUID) error
	IsOnline(ctx context.Context, userID uuid.UUID) (bool, error)
	GetOnlineUsers(ctx context.Context) ([]uuid.UUID, error)
}

// Service manages user presence. A heartbeat refreshes the user's TTL record;
// a user who stops heartbeating decays to offline when the record expires, so
// a client crash never leaves a user stuck online.
type Service struct {
	store   PresenceStore
	metrics *metrics.Metrics
}

// NewService creates a new presence service
func NewService(store PresenceStore, m *metrics.Metrics) *Service {
	return &Service{
		store:   store,
		metrics: m,
	}
}

// Heartbeat marks the user online and resets their expiry window
func (s *Service) Heartbeat(ctx context.Context, userID uuid.UUID) error {
	if err := s.store.SetOnline(ctx, userID); err != nil {
		return fmt.Errorf("failed to record heartbeat: %w", err)
	}
	if s.metrics != nil {
		s.metrics.RecordHeartbeat()
	}
	return nil
}

// SetOffline marks the user offline immediately, ahead of TTL decay
func (s *Service) SetOffline(ctx context.Context, userID uuid.UUID) error {
	if err := s.store.SetOffline(ctx, userID); err != nil {
		return fmt.Errorf("failed to set offline: %w", err)
	}
	if s.metrics != nil {
		s.metrics.RecordOffline()
	}
	return nil
}

// GetStatus reports whether a single user is currently online
func (s *Service) GetStatus(ctx context.Context, userID uuid.UUID) (*domain.PresenceStatus, error) {
	online, err := s.store.IsOnline(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to check presence: %w", err)
	}
	return &domain.PresenceStatus{
		UserID: userID,
		Online: online,
	}, nil
}

// GetOnlineUsers lists the ids of all currently online users
func (s *Service) GetOnlineUsers(ctx context.Context) ([]uuid.UUID, error) {
	users, err := s.store.GetOnlineUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list online users: %w", err)
	}
	return users, nil
}
