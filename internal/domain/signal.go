package domain

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrMissingFields is returned when a signal request lacks a required field.
// The text is part of the HTTP contract and surfaced verbatim to clients.
var ErrMissingFields = errors.New("Missing fields")

// UnknownEventError is returned for an event discriminator outside the closed
// set of signal kinds. The text is part of the HTTP contract.
type UnknownEventError struct {
	Event string
}

func (e *UnknownEventError) Error() string {
	return fmt.Sprintf("Unknown event: %s", e.Event)
}

// SignalEvent is the closed union of call signaling events. Exactly five
// kinds exist; dispatch is an exhaustive type switch over the concrete types,
// so an unhandled kind is a compile-time gap rather than a runtime branch.
type SignalEvent interface {
	// Kind returns the wire name of the event (e.g. "call:invite")
	Kind() string
}

// InviteEvent starts a call: writes PendingCall(recipient) and
// CallState(caller), then rings the recipient over the broker and push.
type InviteEvent struct {
	RecipientID    uuid.UUID
	Offer          json.RawMessage
	ConversationID uuid.UUID
	CallType       string
}

func (*InviteEvent) Kind() string { return "call:invite" }

// AnswerEvent accepts a pending call: writes symmetric CallState records for
// both parties and relays the SDP answer back to the caller.
type AnswerEvent struct {
	CallerID       uuid.UUID
	Answer         json.RawMessage
	ConversationID uuid.UUID // optional; falls back to the pending invite's
}

func (*AnswerEvent) Kind() string { return "call:answer" }

// RejectEvent declines a pending call and clears both parties' state.
type RejectEvent struct {
	CallerID uuid.UUID
}

func (*RejectEvent) Kind() string { return "call:reject" }

// EndEvent hangs up an active call and clears both parties' state.
type EndEvent struct {
	TargetUserID uuid.UUID
}

func (*EndEvent) Kind() string { return "call:end" }

// ICECandidateEvent relays one ICE candidate to the peer; no state mutation.
type ICECandidateEvent struct {
	TargetUserID uuid.UUID
	Candidate    json.RawMessage
}

func (*ICECandidateEvent) Kind() string { return "call:ice-candidate" }

// SignalRequest is the raw wire shape of POST /v1/calls/signal. Only the
// fields relevant to the declared event are consulted; ParseSignal narrows it
// into the closed union.
type SignalRequest struct {
	Event          string          `json:"event"`
	RecipientID    string          `json:"recipient_id"`
	CallerID       string          `json:"caller_id"`
	TargetUserID   string          `json:"target_user_id"`
	ConversationID string          `json:"conversation_id"`
	CallType       string          `json:"call_type"`
	Offer          json.RawMessage `json:"offer"`
	Answer         json.RawMessage `json:"answer"`
	Candidate      json.RawMessage `json:"candidate"`
}

// ParseSignal validates a raw signal request and narrows it into a typed
// event. Unknown event names yield UnknownEventError; absent or unparsable
// required fields yield ErrMissingFields.
func ParseSignal(req *SignalRequest) (SignalEvent, error) {
	switch req.Event {
	case "call:invite":
		recipientID, err := parseID(req.RecipientID)
		if err != nil {
			return nil, err
		}
		conversationID, err := parseID(req.ConversationID)
		if err != nil {
			return nil, err
		}
		if len(req.Offer) == 0 {
			return nil, ErrMissingFields
		}
		callType := req.CallType
		if callType == "" {
			callType = CallTypeAudio
		}
		return &InviteEvent{
			RecipientID:    recipientID,
			Offer:          req.Offer,
			ConversationID: conversationID,
			CallType:       callType,
		}, nil

	case "call:answer":
		callerID, err := parseID(req.CallerID)
		if err != nil {
			return nil, err
		}
		if len(req.Answer) == 0 {
			return nil, ErrMissingFields
		}
		ev := &AnswerEvent{CallerID: callerID, Answer: req.Answer}
		if req.ConversationID != "" {
			conversationID, err := parseID(req.ConversationID)
			if err != nil {
				return nil, err
			}
			ev.ConversationID = conversationID
		}
		return ev, nil

	case "call:reject":
		callerID, err := parseID(req.CallerID)
		if err != nil {
			return nil, err
		}
		return &RejectEvent{CallerID: callerID}, nil

	case "call:end":
		targetID, err := parseID(req.TargetUserID)
		if err != nil {
			return nil, err
		}
		return &EndEvent{TargetUserID: targetID}, nil

	case "call:ice-candidate":
		targetID, err := parseID(req.TargetUserID)
		if err != nil {
			return nil, err
		}
		if len(req.Candidate) == 0 {
			return nil, ErrMissingFields
		}
		return &ICECandidateEvent{TargetUserID: targetID, Candidate: req.Candidate}, nil

	default:
		return nil, &UnknownEventError{Event: req.Event}
	}
}

// parseID folds absent and malformed ids into ErrMissingFields: either way
// the request did not carry a usable required field.
func parseID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, ErrMissingFields
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, ErrMissingFields
	}
	return id, nil
}
