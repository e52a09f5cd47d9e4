package signal

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"orgchat-backend/internal/domain"
	"orgchat-backend/pkg/constants"
	"orgchat-backend/pkg/logger"
	"orgchat-backend/pkg/push"
)

// CallStore is the TTL-bounded key-value state behind the relay. All writes
// are last-write-wins overwrites of small records; expiry reclaims whatever a
// crashed or abandoned negotiation leaves behind.
type CallStore interface {
	SetCallState(ctx context.Context, userID uuid.UUID, state *domain.CallState) error
	GetCallState(ctx context.Context, userID uuid.UUID) (*domain.CallState, error)
	DeleteCallState(ctx context.Context, userID uuid.UUID) error
	SetPendingCall(ctx context.Context, recipientID uuid.UUID, call *domain.PendingCall) error
	GetPendingCall(ctx context.Context, recipientID uuid.UUID) (*domain.PendingCall, error)
	DeletePendingCall(ctx context.Context, recipientID uuid.UUID) error
}

// Directory resolves user display names for call notifications
type Directory interface {
	GetDisplayName(ctx context.Context, userID uuid.UUID) (string, error)
}

// Publisher delivers a signal envelope to a user's private realtime channel
type Publisher interface {
	PublishToUser(ctx context.Context, userID uuid.UUID, event string, payload interface{}) error
}

// PushSender dispatches the incoming-call push for invites
type PushSender interface {
	SendIncomingCall(ctx context.Context, data *push.IncomingCallData, recipientID uuid.UUID) error
}

// Service relays call signaling between two peers. Each operation mutates the
// call store and forwards one envelope to the target's channel. Mutations are
// sequential with no rollback on partial failure: the TTL on every record is
// the recovery mechanism, and the humans redial. Notification failures (name
// lookup, push, publish) never fail the request.
type Service struct {
	store     CallStore
	directory Directory
	publisher Publisher
	pushSvc   PushSender
}

// NewService creates a new signal relay service
func NewService(store CallStore, directory Directory, publisher Publisher, pushSvc PushSender) *Service {
	return &Service{
		store:     store,
		directory: directory,
		publisher: publisher,
		pushSvc:   pushSvc,
	}
}

// Dispatch routes a typed signal event from senderID to its handler. The
// type switch is exhaustive over the closed event union.
func (s *Service) Dispatch(ctx context.Context, senderID uuid.UUID, event domain.SignalEvent) error {
	switch e := event.(type) {
	case *domain.InviteEvent:
		return s.Invite(ctx, senderID, e)
	case *domain.AnswerEvent:
		return s.Answer(ctx, senderID, e)
	case *domain.RejectEvent:
		return s.Reject(ctx, senderID, e)
	case *domain.EndEvent:
		return s.End(ctx, senderID, e)
	case *domain.ICECandidateEvent:
		return s.ICECandidate(ctx, senderID, e)
	default:
		return fmt.Errorf("unhandled signal event type %T", event)
	}
}

// Invite stores a pending call for the recipient, records the caller's active
// call, and rings the recipient over the broker and push. A previous pending
// call or call state for either party is silently overwritten: last invite
// wins, there is no call-waiting.
func (s *Service) Invite(ctx context.Context, callerID uuid.UUID, e *domain.InviteEvent) error {
	callerName := s.lookupCallerName(ctx, callerID)

	pending := &domain.PendingCall{
		CallerID:       callerID,
		CallerName:     callerName,
		Offer:          e.Offer,
		ConversationID: e.ConversationID,
		CallType:       e.CallType,
	}
	if err := s.store.SetPendingCall(ctx, e.RecipientID, pending); err != nil {
		return fmt.Errorf("failed to store pending call: %w", err)
	}

	state := &domain.CallState{
		ConversationID: e.ConversationID,
		PeerID:         e.RecipientID,
	}
	if err := s.store.SetCallState(ctx, callerID, state); err != nil {
		return fmt.Errorf("failed to store call state: %w", err)
	}

	s.publish(ctx, e.RecipientID, constants.EventCallInvite, map[string]interface{}{
		"caller_id":       callerID,
		"caller_name":     callerName,
		"offer":           e.Offer,
		"conversation_id": e.ConversationID,
		"call_type":       e.CallType,
	})

	// Push fallback rings devices that are not subscribed to the channel
	if err := s.pushSvc.SendIncomingCall(ctx, &push.IncomingCallData{
		ConversationID: e.ConversationID,
		CallerID:       callerID,
		CallerName:     callerName,
		CallType:       e.CallType,
	}, e.RecipientID); err != nil {
		logger.Warn("Incoming call push failed",
			zap.String("recipient_id", e.RecipientID.String()),
			zap.Error(err))
	}

	return nil
}

// Answer establishes the symmetric call state for both parties and relays the
// SDP answer back to the caller. The conversation id comes from the request
// when present, otherwise from the responder's pending invite.
func (s *Service) Answer(ctx context.Context, responderID uuid.UUID, e *domain.AnswerEvent) error {
	conversationID := e.ConversationID
	if conversationID == uuid.Nil {
		pending, err := s.store.GetPendingCall(ctx, responderID)
		if err != nil {
			return fmt.Errorf("failed to read pending call: %w", err)
		}
		if pending != nil {
			conversationID = pending.ConversationID
		}
	}

	if err := s.store.SetCallState(ctx, responderID, &domain.CallState{
		ConversationID: conversationID,
		PeerID:         e.CallerID,
	}); err != nil {
		return fmt.Errorf("failed to store responder call state: %w", err)
	}

	if err := s.store.SetCallState(ctx, e.CallerID, &domain.CallState{
		ConversationID: conversationID,
		PeerID:         responderID,
	}); err != nil {
		return fmt.Errorf("failed to store caller call state: %w", err)
	}

	// The invite is answered, nothing pending remains
	if err := s.store.DeletePendingCall(ctx, responderID); err != nil {
		logger.Warn("Failed to clear pending call after answer",
			zap.String("responder_id", responderID.String()),
			zap.Error(err))
	}

	s.publish(ctx, e.CallerID, constants.EventCallAnswered, map[string]interface{}{
		"answer":       e.Answer,
		"responder_id": responderID,
	})

	return nil
}

// Reject declines a pending invite and clears state for both parties
func (s *Service) Reject(ctx context.Context, responderID uuid.UUID, e *domain.RejectEvent) error {
	if err := s.store.DeletePendingCall(ctx, responderID); err != nil {
		return fmt.Errorf("failed to delete pending call: %w", err)
	}
	if err := s.store.DeleteCallState(ctx, responderID); err != nil {
		return fmt.Errorf("failed to delete responder call state: %w", err)
	}
	if err := s.store.DeleteCallState(ctx, e.CallerID); err != nil {
		return fmt.Errorf("failed to delete caller call state: %w", err)
	}

	s.publish(ctx, e.CallerID, constants.EventCallRejected, map[string]interface{}{
		"responder_id": responderID,
	})

	return nil
}

// End hangs up an active call and clears state for both parties
func (s *Service) End(ctx context.Context, enderID uuid.UUID, e *domain.EndEvent) error {
	if err := s.store.DeleteCallState(ctx, enderID); err != nil {
		return fmt.Errorf("failed to delete ender call state: %w", err)
	}
	if err := s.store.DeleteCallState(ctx, e.TargetUserID); err != nil {
		return fmt.Errorf("failed to delete target call state: %w", err)
	}

	s.publish(ctx, e.TargetUserID, constants.EventCallEnded, map[string]interface{}{
		"ender_id": enderID,
	})

	return nil
}

// ICECandidate relays one candidate to the peer; the store is not touched
func (s *Service) ICECandidate(ctx context.Context, senderID uuid.UUID, e *domain.ICECandidateEvent) error {
	s.publish(ctx, e.TargetUserID, constants.EventCallICECandidate, map[string]interface{}{
		"candidate": e.Candidate,
		"sender_id": senderID,
	})

	return nil
}

// lookupCallerName resolves the caller's display name, falling back to the
// raw id when the directory is unavailable; the call must ring either way
func (s *Service) lookupCallerName(ctx context.Context, callerID uuid.UUID) string {
	name, err := s.directory.GetDisplayName(ctx, callerID)
	if err != nil {
		logger.Warn("Caller name lookup failed",
			zap.String("caller_id", callerID.String()),
			zap.Error(err))
		return callerID.String()
	}
	return name
}

// publish forwards an envelope best-effort; delivery failures are logged and
// swallowed because the 200 only promises the publish was attempted
func (s *Service) publish(ctx context.Context, userID uuid.UUID, event string, payload interface{}) {
	if err := s.publisher.PublishToUser(ctx, userID, event, payload); err != nil {
		logger.Warn("Failed to publish signal envelope",
			zap.String("target_user_id", userID.String()),
			zap.String("event", event),
			zap.Error(err))
	}
}
