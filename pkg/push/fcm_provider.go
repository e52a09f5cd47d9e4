package push

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"

	"orgchat-backend/pkg/logger"

	"go.uber.org/zap"
)

// FCMProvider implements Provider interface for Firebase Cloud Messaging
type FCMProvider struct {
	app *firebase.App
}

// FCMConfig contains configuration for FCM provider
type FCMConfig struct {
	CredentialsPath string // Path to service account JSON file
	CredentialsJSON []byte // Service account JSON content (alternative to file path)
	ProjectID       string // Firebase Project ID
}

// NewFCMProvider creates a new FCM provider
func NewFCMProvider(config *FCMConfig) (*FCMProvider, error) {
	if config == nil {
		return nil, fmt.Errorf("FCM config is required")
	}

	var opts []option.ClientOption

	if len(config.CredentialsJSON) > 0 {
		opts = append(opts, option.WithCredentialsJSON(config.CredentialsJSON))
	} else if config.CredentialsPath != "" {
		opts = append(opts, option.WithCredentialsFile(config.CredentialsPath))
	} else {
		return nil, fmt.Errorf("either CredentialsPath or CredentialsJSON must be provided")
	}

	ctx := context.Background()

	app, err := firebase.NewApp(ctx, &firebase.Config{
		ProjectID: config.ProjectID,
	}, opts...)
	if err != nil {
		logger.Error("Failed to initialize Firebase app",
			zap.Error(err),
			zap.String("project_id", config.ProjectID))
		return nil, fmt.Errorf("failed to initialize Firebase app: %w", err)
	}

	logger.Info("FCM provider initialized",
		zap.String("project_id", config.ProjectID))

	return &FCMProvider{
		app: app,
	}, nil
}

// Name implements Provider interface
func (f *FCMProvider) Name() string {
	return "fcm"
}

// Send implements Provider interface for FCM
func (f *FCMProvider) Send(ctx context.Context, notification *Notification, tokens []string) (*SendResult, error) {
	if f.app == nil {
		return nil, fmt.Errorf("FCM app is not initialized")
	}

	if len(tokens) == 0 {
		return &SendResult{}, nil
	}

	client, err := f.app.Messaging(ctx)
	if err != nil {
		logger.Error("Failed to get messaging client",
			zap.Error(err))
		return nil, fmt.Errorf("failed to get messaging client: %w", err)
	}

	fcmMessage := &messaging.MulticastMessage{
		Notification: &messaging.Notification{
			Title: notification.Title,
			Body:  notification.Body,
		},
		Tokens: tokens,
		Data:   notification.Data,
	}

	if notification.Sound != "" {
		fcmMessage.Android = &messaging.AndroidConfig{
			Notification: &messaging.AndroidNotification{
				Sound: notification.Sound,
			},
		}
	}

	if notification.Priority == "high" {
		if fcmMessage.Android == nil {
			fcmMessage.Android = &messaging.AndroidConfig{}
		}
		fcmMessage.Android.Priority = "high"
	}

	if notification.Category != "" {
		if fcmMessage.Android == nil {
			fcmMessage.Android = &messaging.AndroidConfig{}
		}
		if fcmMessage.Android.Notification == nil {
			fcmMessage.Android.Notification = &messaging.AndroidNotification{}
		}
		fcmMessage.Android.Notification.ChannelID = notification.Category
	}

	response, err := client.SendEachForMulticast(ctx, fcmMessage)
	if err != nil {
		logger.Error("Failed to send FCM multicast message",
			zap.Error(err),
			zap.Int("token_count", len(tokens)))
		return nil, fmt.Errorf("failed to send FCM message: %w", err)
	}

	result := &SendResult{
		SuccessCount:  response.SuccessCount,
		FailureCount:  response.FailureCount,
		InvalidTokens: []string{},
		Errors:        []error{},
	}

	for i, resp := range response.Responses {
		if !resp.Success && resp.Error != nil {
			result.Errors = append(result.Errors, resp.Error)
			logger.Warn("FCM send failed for token",
				zap.String("token_prefix", maskPushToken(tokens[i])),
				zap.Error(resp.Error))

			if messaging.IsUnregistered(resp.Error) ||
				messaging.IsInvalidArgument(resp.Error) {
				result.InvalidTokens = append(result.InvalidTokens, tokens[i])
			}
		}
	}

	logger.Info("FCM message sent",
		zap.Int("success_count", result.SuccessCount),
		zap.Int("failure_count", result.FailureCount),
		zap.Int("invalid_tokens", len(result.InvalidTokens)),
		zap.String("title", notification.Title))

	return result, nil
}
