package push

import (
	"fmt"

	"orgchat-backend/pkg/env"
	"orgchat-backend/pkg/logger"

	"go.uber.org/zap"
)

// ProviderType represents the type of push notification provider
type ProviderType string

const (
	ProviderTypeMock ProviderType = "mock"
	ProviderTypeFCM  ProviderType = "fcm"
	ProviderTypeAPNs ProviderType = "apns"
)

// NewProvider creates a push notification provider based on environment
// configuration (PUSH_PROVIDER)
func NewProvider() (Provider, error) {
	providerType := ProviderType(env.GetString("PUSH_PROVIDER", "mock"))

	logger.Info("Initializing push notification provider",
		zap.String("provider_type", string(providerType)))

	switch providerType {
	case ProviderTypeFCM:
		return newFCMProvider()
	case ProviderTypeAPNs:
		return newAPNsProvider()
	case ProviderTypeMock:
		return &MockProvider{}, nil
	default:
		logger.Warn("Unknown push provider type, falling back to mock",
			zap.String("provider_type", string(providerType)))
		return &MockProvider{}, nil
	}
}

func newFCMProvider() (Provider, error) {
	projectID := env.GetStringFromFile("FCM_PROJECT_ID", "")
	credentialsPath := env.GetString("FCM_CREDENTIALS_PATH", "")

	if projectID == "" {
		return nil, fmt.Errorf("FCM_PROJECT_ID environment variable is required for FCM provider")
	}

	return NewFCMProvider(&FCMConfig{
		ProjectID:       projectID,
		CredentialsPath: credentialsPath,
	})
}

func newAPNsProvider() (Provider, error) {
	config := &APNsConfig{
		BundleID:   env.GetString("APNS_BUNDLE_ID", ""),
		KeyPath:    env.GetString("APNS_KEY_PATH", ""),
		KeyID:      env.GetString("APNS_KEY_ID", ""),
		TeamID:     env.GetString("APNS_TEAM_ID", ""),
		Production: env.GetBool("APNS_PRODUCTION", false),
	}

	if config.BundleID == "" {
		return nil, fmt.Errorf("APNS_BUNDLE_ID environment variable is required for APNs provider")
	}

	return NewAPNsProvider(config)
}
