// Package constants defines application-wide constants for timeouts, limits, and durations.
package constants

import "time"

// Time-related constants
const (
	// DefaultTimeout is the default timeout for most operations
	DefaultTimeout = 30 * time.Second

	// WebSocketPingInterval is the interval for WebSocket ping/pong
	WebSocketPingInterval = 60 * time.Second

	// GracefulShutdownTimeout is the timeout for graceful server shutdown
	GracefulShutdownTimeout = 30 * time.Second
)

// Presence constants
const (
	// PresenceTTL is how long a presence flag survives without a heartbeat.
	// Must stay meaningfully longer than the client heartbeat interval so at
	// least one heartbeat lands before expiry under normal conditions.
	PresenceTTL = 60 * time.Second

	// PresenceHeartbeatInterval is the expected client heartbeat period
	// (PresenceTTL is about 2.4x this value)
	PresenceHeartbeatInterval = 25 * time.Second
)

// Call signaling constants
const (
	// CallStateTTL bounds how long an active-call record survives without
	// being rewritten; stale records are reclaimed by expiry
	CallStateTTL = 60 * time.Second

	// PendingCallTTL bounds how long an unanswered invite waits for its
	// recipient; expiry is treated as a missed call
	PendingCallTTL = 60 * time.Second
)

// Realtime channel naming
const (
	// UserChannelPrefix prefixes per-user private channels: private-user-<userID>
	UserChannelPrefix = "private-user-"

	// ConversationChannelPrefix prefixes per-conversation presence channels:
	// presence-conversation-<conversationID>
	ConversationChannelPrefix = "presence-conversation-"
)

// Signal event names delivered over realtime channels.
// Downstream clients match these strings exactly.
const (
	EventCallInvite       = "call:invite"
	EventCallAnswered     = "call:answered"
	EventCallRejected     = "call:rejected"
	EventCallEnded        = "call:ended"
	EventCallICECandidate = "call:ice-candidate"
)

// Rate limiting constants
const (
	// SignalRateLimit is the max signal requests per user per window
	SignalRateLimit = 120

	// SignalRateWindow is the signal rate limit window
	SignalRateWindow = time.Minute
)
