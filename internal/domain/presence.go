package domain

import "github.com/google/uuid"

// PresenceStatus reports whether a user is currently considered online.
// Liveness is a soft signal: the flag decays within one TTL window after the
// last heartbeat, so "online" can lag reality by up to that window.
type PresenceStatus struct {
	UserID uuid.UUID `json:"user_id"`
	Online bool      `json:"online"`
}
