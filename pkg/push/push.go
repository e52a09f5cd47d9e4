package push

import (
	"context"
	"fmt"

	"orgchat-backend/pkg/logger"
	"orgchat-backend/pkg/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Provider defines interface for sending push notifications
type Provider interface {
	Send(ctx context.Context, notification *Notification, tokens []string) (*SendResult, error)
	Name() string
}

// SendResult contains the result of a push notification send operation
type SendResult struct {
	SuccessCount  int
	FailureCount  int
	InvalidTokens []string
	Errors        []error
}

// Notification represents a push notification
type Notification struct {
	Title    string            `json:"title"`
	Body     string            `json:"body"`
	Data     map[string]string `json:"data,omitempty"`
	Priority string            `json:"priority,omitempty"` // high, normal, low
	Sound    string            `json:"sound,omitempty"`
	Category string            `json:"category,omitempty"`
}

// IncomingCallData contains data for an incoming-call push
type IncomingCallData struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	CallerID       uuid.UUID `json:"caller_id"`
	CallerName     string    `json:"caller_name"`
	CallType       string    `json:"call_type"`
}

// TokenType represents the type of push notification token
type TokenType string

const (
	TokenTypeFCM  TokenType = "fcm"  // Firebase Cloud Messaging
	TokenTypeAPNs TokenType = "apns" // Apple Push Notification Service
	TokenTypeWeb  TokenType = "web"  // Web Push
)

// Token represents a push notification token for a user
type Token struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Token     string    `json:"token"`
	Type      TokenType `json:"type"`
	DeviceID  string    `json:"device_id,omitempty"`
	Platform  string    `json:"platform,omitempty"` // ios, android, web
	Active    bool      `json:"active"`
	CreatedAt int64     `json:"created_at"`
	UpdatedAt int64     `json:"updated_at"`
}

// TokenRepository defines interface for storing and retrieving push tokens
type TokenRepository interface {
	Store(ctx context.Context, token *Token) error
	GetByUserID(ctx context.Context, userID uuid.UUID) ([]*Token, error)
	GetByToken(ctx context.Context, token string) (*Token, error)
	Update(ctx context.Context, token *Token) error
	Delete(ctx context.Context, userID uuid.UUID, token string) error
	DeleteByUserID(ctx context.Context, userID uuid.UUID) error
}

// Service handles push notification operations
type Service struct {
	provider Provider
	repo     TokenRepository
	metrics  *metrics.Metrics
}

// NewService creates a new push notification service. Metrics may be nil.
func NewService(provider Provider, repo TokenRepository, m *metrics.Metrics) *Service {
	return &Service{
		provider: provider,
		repo:     repo,
		metrics:  m,
	}
}

// RegisterToken registers a new push notification token for a user
func (s *Service) RegisterToken(ctx context.Context, token *Token) error {
	existing, err := s.repo.GetByToken(ctx, token.Token)
	if err == nil && existing != nil {
		existing.Active = true
		existing.UpdatedAt = token.UpdatedAt
		existing.DeviceID = token.DeviceID
		existing.Platform = token.Platform
		return s.repo.Update(ctx, existing)
	}

	return s.repo.Store(ctx, token)
}

// UnregisterToken removes a push notification token
func (s *Service) UnregisterToken(ctx context.Context, userID uuid.UUID, token string) error {
	return s.repo.Delete(ctx, userID, token)
}

// UnregisterAllTokens removes all tokens for a user
func (s *Service) UnregisterAllTokens(ctx context.Context, userID uuid.UUID) error {
	return s.repo.DeleteByUserID(ctx, userID)
}

// SendToUser sends a notification to all active devices of one user.
// Missing tokens are not an error: the user simply has no registered device.
func (s *Service) SendToUser(ctx context.Context, notification *Notification, userID uuid.UUID) (*SendResult, error) {
	tokens, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get push tokens: %w", err)
	}

	var active []string
	for _, token := range tokens {
		if token.Active {
			active = append(active, token.Token)
		}
	}

	if len(active) == 0 {
		logger.Debug("No active push tokens for user",
			zap.String("user_id", userID.String()))
		return &SendResult{}, nil
	}

	result, err := s.provider.Send(ctx, notification, active)
	if s.metrics != nil {
		s.metrics.RecordPushNotification(s.provider.Name(), err != nil)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to send push notification: %w", err)
	}

	if len(result.InvalidTokens) > 0 {
		s.handleInvalidTokens(ctx, userID, result.InvalidTokens)
	}

	return result, nil
}

// SendIncomingCall sends the incoming-call invite push to the recipient.
// Fire and forget from the relay's point of view: the caller logs failures
// and never fails the signaling request over them.
func (s *Service) SendIncomingCall(ctx context.Context, data *IncomingCallData, recipientID uuid.UUID) error {
	notification := &Notification{
		Title:    "Incoming Call",
		Body:     fmt.Sprintf("%s is calling you", data.CallerName),
		Priority: "high",
		Sound:    "default",
		Category: "INCOMING_CALL",
		Data: map[string]string{
			"type":            "call",
			"conversation_id": data.ConversationID.String(),
			"caller_id":       data.CallerID.String(),
			"caller_name":     data.CallerName,
			"call_type":       data.CallType,
		},
	}

	result, err := s.SendToUser(ctx, notification, recipientID)
	if err != nil {
		return fmt.Errorf("failed to send incoming call notification: %w", err)
	}

	logger.Info("Incoming call notification sent",
		zap.String("recipient_id", recipientID.String()),
		zap.String("caller_id", data.CallerID.String()),
		zap.Int("success_count", result.SuccessCount),
		zap.Int("failure_count", result.FailureCount))

	return nil
}

// ProviderName reports the configured provider, used for metrics labels
func (s *Service) ProviderName() string {
	return s.provider.Name()
}

// handleInvalidTokens marks rejected tokens inactive so they are not retried
func (s *Service) handleInvalidTokens(ctx context.Context, userID uuid.UUID, invalidTokens []string) {
	for _, tokenStr := range invalidTokens {
		if err := s.repo.Delete(ctx, userID, tokenStr); err != nil {
			logger.Warn("Failed to drop invalid push token",
				zap.String("token_prefix", maskPushToken(tokenStr)),
				zap.Error(err))
		}
	}
}

// maskPushToken returns a loggable prefix of a push token
func maskPushToken(token string) string {
	if len(token) <= 8 {
		return "********"
	}
	return token[:8] + "..."
}
