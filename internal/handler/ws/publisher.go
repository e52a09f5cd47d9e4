package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"orgchat-backend/internal/database"
	"orgchat-backend/pkg/constants"
)

// RedisPublisher pushes envelopes onto the broker side of the hub bridge.
// Every hub instance subscribed to the channel, on this process or another,
// relays the envelope to its WebSocket clients.
type RedisPublisher struct {
	client *database.RedisClient
}

// NewRedisPublisher creates a new Redis-backed channel publisher
func NewRedisPublisher(client *database.RedisClient) *RedisPublisher {
	return &RedisPublisher{client: client}
}

// Publish sends one event envelope to a named channel
func (p *RedisPublisher) Publish(ctx context.Context, channel, event string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	frame, err := json.Marshal(&Envelope{
		Event:     event,
		Data:      data,
		Timestamp: time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}

	if err := p.client.SafePublish(ctx, brokerTopic(channel), frame).Err(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", channel, err)
	}
	return nil
}

// PublishToUser sends one event envelope to a user's private channel
func (p *RedisPublisher) PublishToUser(ctx context.Context, userID uuid.UUID, event string, payload interface{}) error {
	return p.Publish(ctx, constants.UserChannelPrefix+userID.String(), event, payload)
}
