package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DirectoryRepository provides read-only lookups against the org chat
// relational store: display names for call notifications and conversation
// membership for realtime channel authorization. This service never writes
// to these tables.
type DirectoryRepository struct {
	pool *pgxpool.Pool
}

// NewDirectoryRepository creates a new DirectoryRepository
func NewDirectoryRepository(pool *pgxpool.Pool) *DirectoryRepository {
	return &DirectoryRepository{pool: pool}
}

// GetDisplayName returns the user's display name, falling back to email when
// no name is set
func (r *DirectoryRepository) GetDisplayName(ctx context.Context, userID uuid.UUID) (string, error) {
	query := `
		SELECT COALESCE(NULLIF(display_name, ''), email)
		FROM users
		WHERE user_id = $1
	`

	if r.pool == nil {
		return "", fmt.Errorf("directory unavailable")
	}

	var name string
	err := r.pool.QueryRow(ctx, query, userID).Scan(&name)
	if err == pgx.ErrNoRows {
		return "", fmt.Errorf("user %s not found", userID)
	}
	if err != nil {
		return "", fmt.Errorf("failed to get display name: %w", err)
	}

	return name, nil
}

// IsConversationMember reports whether userID participates in conversationID
func (r *DirectoryRepository) IsConversationMember(ctx context.Context, conversationID, userID uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM conversation_participants
			WHERE conversation_id = $1 AND user_id = $2 AND left_at IS NULL
		)
	`

	if r.pool == nil {
		return false, fmt.Errorf("directory unavailable")
	}

	var member bool
	if err := r.pool.QueryRow(ctx, query, conversationID, userID).Scan(&member); err != nil {
		return false, fmt.Errorf("failed to check conversation membership: %w", err)
	}

	return member, nil
}
