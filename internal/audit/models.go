package audit

import "time"

// Event is an immutable, append-only record of a call lifecycle transition.
//
// Invariants:
// - Events are never updated or deleted.
// - Recording is best-effort; call flows must never block on audit failures.
//
// Storage recommendation (Postgres):
// - Table call_events with an INSERT-only policy.
// - Optional: partition by time for retention.

type Event struct {
	ID   string    `json:"id" db:"id"`
	Type EventType `json:"type" db:"type"`

	// AgentID is the agent driving the transition, when one is known; the
	// answer webhook carries only a call id.
	AgentID string `json:"agent_id,omitempty" db:"agent_id"`

	CallID        string `json:"call_id,omitempty" db:"call_id"`
	SessionID     string `json:"session_id,omitempty" db:"session_id"`
	ParticipantID string `json:"participant_id,omitempty" db:"participant_id"`

	// Message is a short human-readable description for internal ops.
	Message string `json:"message,omitempty" db:"message"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventTypeBrowserJoined   EventType = "browser_joined"
	EventTypeCallStarted     EventType = "call_started"
	EventTypeCallAnswered    EventType = "call_answered"
	EventTypeCallTransferred EventType = "call_transferred"
	EventTypeCallEnded       EventType = "call_ended"
)
