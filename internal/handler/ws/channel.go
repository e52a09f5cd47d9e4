package ws

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"orgchat-backend/pkg/constants"
	"orgchat-backend/pkg/errors"
)

// MembershipChecker answers whether a user belongs to a conversation
type MembershipChecker interface {
	IsConversationMember(ctx context.Context, conversationID, userID uuid.UUID) (bool, error)
}

// ChannelAuthorizer gates channel subscriptions. Two channel families exist:
// private-user-<id>, readable only by that user, and
// presence-conversation-<id>, readable by current conversation members.
// Anything else is denied.
type ChannelAuthorizer struct {
	members MembershipChecker
}

// NewChannelAuthorizer creates a new channel authorizer
func NewChannelAuthorizer(members MembershipChecker) *ChannelAuthorizer {
	return &ChannelAuthorizer{members: members}
}

// Authorize returns nil when userID may subscribe to channel
func (a *ChannelAuthorizer) Authorize(ctx context.Context, channel string, userID uuid.UUID) error {
	switch {
	case strings.HasPrefix(channel, constants.UserChannelPrefix):
		ownerID, err := uuid.Parse(strings.TrimPrefix(channel, constants.UserChannelPrefix))
		if err != nil || ownerID != userID {
			return errors.ChannelDeniedError(channel)
		}
		return nil

	case strings.HasPrefix(channel, constants.ConversationChannelPrefix):
		conversationID, err := uuid.Parse(strings.TrimPrefix(channel, constants.ConversationChannelPrefix))
		if err != nil {
			return errors.ChannelDeniedError(channel)
		}
		member, err := a.members.IsConversationMember(ctx, conversationID, userID)
		if err != nil {
			// Membership unknown means no access
			return errors.ChannelDeniedError(channel)
		}
		if !member {
			return errors.ChannelDeniedError(channel)
		}
		return nil

	default:
		return errors.ChannelDeniedError(channel)
	}
}

// ChannelKind classifies a channel name for metrics labels
func ChannelKind(channel string) string {
	switch {
	case strings.HasPrefix(channel, constants.UserChannelPrefix):
		return "private-user"
	case strings.HasPrefix(channel, constants.ConversationChannelPrefix):
		return "presence-conversation"
	default:
		return "unknown"
	}
}
