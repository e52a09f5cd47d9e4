package push

import (
	"context"
	"fmt"

	"github.com/sideshow/apns2"
	"github.com/sideshow/apns2/payload"
	"github.com/sideshow/apns2/token"

	"orgchat-backend/pkg/logger"

	"go.uber.org/zap"
)

// APNsProvider implements Provider interface for Apple Push Notification Service
type APNsProvider struct {
	client     *apns2.Client
	production bool
	bundleID   string
}

// APNsConfig contains configuration for APNs provider (token-based auth)
type APNsConfig struct {
	KeyPath    string // Path to .p8 private key file
	KeyID      string // 10-character Key ID from Apple Developer Portal
	TeamID     string // 10-character Team ID from Apple Developer Portal
	BundleID   string // Bundle ID of the app (e.g., com.example.app)
	Production bool   // Use production APNs endpoint (true) or sandbox (false)
}

// NewAPNsProvider creates a new APNs provider
func NewAPNsProvider(config *APNsConfig) (*APNsProvider, error) {
	if config == nil {
		return nil, fmt.Errorf("APNs config is required")
	}

	if config.BundleID == "" {
		return nil, fmt.Errorf("BundleID is required")
	}

	if config.KeyPath == "" || config.KeyID == "" || config.TeamID == "" {
		return nil, fmt.Errorf("token-based authentication requires KeyPath, KeyID and TeamID")
	}

	authKey, err := token.AuthKeyFromFile(config.KeyPath)
	if err != nil {
		logger.Error("Failed to load APNs key file",
			zap.Error(err),
			zap.String("key_path", config.KeyPath),
			zap.String("key_id", config.KeyID))
		return nil, fmt.Errorf("failed to load APNs key: %w", err)
	}

	client := apns2.NewTokenClient(&token.Token{
		AuthKey: authKey,
		KeyID:   config.KeyID,
		TeamID:  config.TeamID,
	})
	if config.Production {
		client = client.Production()
	} else {
		client = client.Development()
	}

	logger.Info("APNs provider initialized",
		zap.String("bundle_id", config.BundleID),
		zap.Bool("production", config.Production))

	return &APNsProvider{
		client:     client,
		production: config.Production,
		bundleID:   config.BundleID,
	}, nil
}

// Name implements Provider interface
func (a *APNsProvider) Name() string {
	return "apns"
}

// Send implements Provider interface for APNs
func (a *APNsProvider) Send(ctx context.Context, notification *Notification, tokens []string) (*SendResult, error) {
	if a.client == nil {
		return nil, fmt.Errorf("APNs client is not initialized")
	}

	if len(tokens) == 0 {
		return &SendResult{}, nil
	}

	result := &SendResult{
		InvalidTokens: []string{},
		Errors:        []error{},
	}

	for _, deviceToken := range tokens {
		p := payload.NewPayload().
			AlertTitle(notification.Title).
			AlertBody(notification.Body)

		if notification.Sound != "" {
			p.Sound(notification.Sound)
		}

		if notification.Category != "" {
			p.Category(notification.Category)
		}

		for key, value := range notification.Data {
			p.Custom(key, value)
		}

		notificationMsg := &apns2.Notification{
			DeviceToken: deviceToken,
			Topic:       a.bundleID,
			Payload:     p,
		}

		// 10 = high, 5 = normal
		if notification.Priority == "high" {
			notificationMsg.Priority = apns2.PriorityHigh
		} else {
			notificationMsg.Priority = apns2.PriorityLow
		}

		resp, err := a.client.PushWithContext(ctx, notificationMsg)
		if err != nil {
			result.FailureCount++
			result.Errors = append(result.Errors, err)
			logger.Warn("Failed to send APNs notification",
				zap.Error(err),
				zap.String("token_prefix", maskPushToken(deviceToken)))
			continue
		}

		if resp.StatusCode == 200 {
			result.SuccessCount++
			logger.Debug("APNs notification sent",
				zap.String("token_prefix", maskPushToken(deviceToken)),
				zap.String("apns_id", resp.ApnsID))
			continue
		}

		result.FailureCount++
		result.Errors = append(result.Errors, fmt.Errorf("APNs error: %s", resp.Reason))

		switch resp.Reason {
		case apns2.ReasonBadDeviceToken, apns2.ReasonUnregistered, apns2.ReasonDeviceTokenNotForTopic:
			result.InvalidTokens = append(result.InvalidTokens, deviceToken)
		}
	}

	logger.Info("APNs batch sent",
		zap.Int("success_count", result.SuccessCount),
		zap.Int("failure_count", result.FailureCount),
		zap.Int("invalid_tokens", len(result.InvalidTokens)))

	return result, nil
}
