package calls

import (
	"context"
	"time"

	"callbridge/internal/platform"
)

// Binding associates a live PSTN call id with the participant and session
// currently representing that call inside the RTC platform.
//
// Invariants:
// - Exactly one binding per live call id.
// - At most one binding per session id at any time; the orchestrator refuses
//   to route a second call into an occupied session, which keeps the reverse
//   lookup unambiguous.
// - SessionID always equals the referenced participant's current session;
//   Lifecycle moves and the orchestrator keep them in step.
// - AgentID is the agent whose session the call occupies; transfers reassign
//   it together with SessionID under both agents' locks.
type Binding struct {
	CallID      string               `json:"call_id"`
	AgentID     string               `json:"agent_id"`
	Participant platform.Participant `json:"participant"`

	// Token is the participant's join token, replayed to the answer webhook
	// as the bridge instruction.
	Token string `json:"token"`

	SessionID string    `json:"session_id"`
	State     CallState `json:"state"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CallState tracks where a PSTN call is in its lifecycle. A binding exists
// from the moment the call is placed; it becomes actionable once the answer
// webhook fires.
type CallState string

const (
	CallStateRinging  CallState = "ringing"
	CallStateAnswered CallState = "answered"
)

// BindingStore is the persistence contract for call bindings.
//
// Implementations must be safe for concurrent use. Delete is a no-op when the
// call id is absent: end-call must stay callable even when local state is
// stale, since the voice platform is the source of truth for call liveness.
type BindingStore interface {
	Put(ctx context.Context, b Binding) error
	Get(ctx context.Context, callID string) (Binding, bool, error)
	Delete(ctx context.Context, callID string) error

	// FindBySession returns the binding whose current session is sessionID.
	// Call volume is one call per agent, so implementations may scan.
	FindBySession(ctx context.Context, sessionID string) (Binding, bool, error)
}
