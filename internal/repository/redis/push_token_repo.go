package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"orgchat-backend/internal/database"
	"orgchat-backend/pkg/push"
)

// PushTokenRepository stores push notification tokens in Redis.
// Layout:
//   - push:tokens:<userID>  hash of token -> JSON record
//   - push:token:<token>    reverse lookup to the owning record
type PushTokenRepository struct {
	client *database.RedisClient
}

// NewPushTokenRepository creates a new PushTokenRepository
func NewPushTokenRepository(client *database.RedisClient) *PushTokenRepository {
	return &PushTokenRepository{client: client}
}

func userTokensKey(userID uuid.UUID) string {
	return fmt.Sprintf("push:tokens:%s", userID)
}

func tokenLookupKey(token string) string {
	return fmt.Sprintf("push:token:%s", token)
}

// Store saves a push token record
func (r *PushTokenRepository) Store(ctx context.Context, token *push.Token) error {
	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to marshal push token: %w", err)
	}

	if err := r.client.SafeHSet(ctx, userTokensKey(token.UserID), token.Token, data).Err(); err != nil {
		return fmt.Errorf("failed to store push token: %w", err)
	}

	if err := r.client.SafeSet(ctx, tokenLookupKey(token.Token), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to store token lookup: %w", err)
	}

	return nil
}

// GetByUserID retrieves all token records for a user
func (r *PushTokenRepository) GetByUserID(ctx context.Context, userID uuid.UUID) ([]*push.Token, error) {
	entries, err := r.client.SafeHGetAll(ctx, userTokensKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get push tokens: %w", err)
	}

	tokens := make([]*push.Token, 0, len(entries))
	for _, raw := range entries {
		var token push.Token
		if err := json.Unmarshal([]byte(raw), &token); err != nil {
			continue // Skip corrupt entries
		}
		tokens = append(tokens, &token)
	}

	return tokens, nil
}

// GetByToken retrieves a token record by its token string
func (r *PushTokenRepository) GetByToken(ctx context.Context, tokenStr string) (*push.Token, error) {
	data, err := r.client.SafeGet(ctx, tokenLookupKey(tokenStr)).Bytes()
	if err == goredis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lookup push token: %w", err)
	}

	var token push.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("failed to unmarshal push token: %w", err)
	}

	return &token, nil
}

// Update overwrites an existing token record
func (r *PushTokenRepository) Update(ctx context.Context, token *push.Token) error {
	return r.Store(ctx, token)
}

// Delete removes one token for a user
func (r *PushTokenRepository) Delete(ctx context.Context, userID uuid.UUID, tokenStr string) error {
	if err := r.client.SafeHDel(ctx, userTokensKey(userID), tokenStr).Err(); err != nil {
		return fmt.Errorf("failed to delete push token: %w", err)
	}
	if err := r.client.SafeDel(ctx, tokenLookupKey(tokenStr)).Err(); err != nil {
		return fmt.Errorf("failed to delete token lookup: %w", err)
	}
	return nil
}

// DeleteByUserID removes all tokens for a user
func (r *PushTokenRepository) DeleteByUserID(ctx context.Context, userID uuid.UUID) error {
	tokens, err := r.GetByUserID(ctx, userID)
	if err != nil {
		return err
	}

	for _, token := range tokens {
		if err := r.client.SafeDel(ctx, tokenLookupKey(token.Token)).Err(); err != nil {
			return fmt.Errorf("failed to delete token lookup: %w", err)
		}
	}

	if err := r.client.SafeDel(ctx, userTokensKey(userID)).Err(); err != nil {
		return fmt.Errorf("failed to delete push tokens: %w", err)
	}

	return nil
}
