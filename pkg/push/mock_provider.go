package push

import (
	"context"

	"orgchat-backend/pkg/logger"

	"go.uber.org/zap"
)

// MockProvider is a mock implementation for development/testing
type MockProvider struct{}

// Name implements Provider interface
func (m *MockProvider) Name() string {
	return "mock"
}

// Send implements Provider interface by logging the notification
func (m *MockProvider) Send(ctx context.Context, notification *Notification, tokens []string) (*SendResult, error) {
	logger.Debug("MockProvider: sending notification",
		zap.String("title", notification.Title),
		zap.String("body", notification.Body),
		zap.Int("token_count", len(tokens)))

	return &SendResult{
		SuccessCount: len(tokens),
	}, nil
}
