package domain

import (
	"encoding/json"

	"github.com/google/uuid"
)

// CallState records that a user is currently in an active call with a peer.
// Keyed by user id in the state store, TTL-bounded, never persisted to the
// relational database. A record for user A referencing peer B does not imply
// a symmetric record for B: right after an invite only the caller has one.
type CallState struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	PeerID         uuid.UUID `json:"peer_id"`
}

// PendingCall is an unanswered invite waiting for a recipient who may be
// offline or not subscribed to the realtime channel. Keyed by recipient id,
// TTL-bounded; expiry is treated as a missed call.
type PendingCall struct {
	CallerID       uuid.UUID       `json:"caller_id"`
	CallerName     string          `json:"caller_name"`
	Offer          json.RawMessage `json:"offer"`
	ConversationID uuid.UUID       `json:"conversation_id"`
	CallType       string          `json:"call_type"` // audio, video
}

// CallType values
const (
	CallTypeAudio = "audio"
	CallTypeVideo = "video"
)
