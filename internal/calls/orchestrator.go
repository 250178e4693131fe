package calls

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"callbridge/internal/audit"
	"callbridge/internal/platform"
	"callbridge/internal/session"
	"callbridge/pkg/logger"
)

var (
	ErrInvalidArgument = errors.New("calls: invalid argument")

	// ErrNoActiveCall: the agent's session has no bound call (stale console,
	// or the call already ended).
	ErrNoActiveCall = errors.New("calls: no active call for agent")

	// ErrCallInProgress: the agent's session already has a bound call.
	// Routing a second PSTN call into an occupied session would make the
	// session -> call reverse lookup ambiguous.
	ErrCallInProgress = errors.New("calls: agent already has an active call")
)

// DialPlan is the fixed outbound dialing configuration.
type DialPlan struct {
	FromNumber    string
	ToNumber      string
	ApplicationID string

	// AnswerURL is the public callback the voice platform posts to when the
	// outbound call is answered.
	AnswerURL string

	// CallTimeoutSeconds bounds ringing before the platform gives up.
	CallTimeoutSeconds int
}

// Orchestrator composes the session registry, participant lifecycle and
// binding store into the agent-facing call operations.
//
// Shared state (sessions, bindings) lives in the injected stores, which are
// concurrency-safe on their own. On top of that each agent id has its own
// mutex serializing that agent's check-then-act sequences; no lock is ever
// held across another agent's work, and store locks are never held across
// platform I/O.
type Orchestrator struct {
	sessions *session.Registry
	life     *Lifecycle
	bindings BindingStore
	voice    platform.VoiceProvider
	plan     DialPlan

	// auditor is best-effort; a nil auditor disables event recording.
	auditor *audit.Service

	agentMu sync.Map // agent id -> *sync.Mutex
	clock   func() time.Time
}

func NewOrchestrator(
	sessions *session.Registry,
	life *Lifecycle,
	bindings BindingStore,
	voice platform.VoiceProvider,
	plan DialPlan,
	auditor *audit.Service,
) *Orchestrator {
	return &Orchestrator{
		sessions: sessions,
		life:     life,
		bindings: bindings,
		voice:    voice,
		plan:     plan,
		auditor:  auditor,
		clock:    time.Now,
	}
}

// SessionTag builds the per-agent session tag. One tag, one session.
func SessionTag(agentID string) string { return "session#" + agentID }

// StartBrowserCall places the agent's browser into their session and returns
// the join token. Pure WebRTC join, no PSTN leg and no call binding.
//
// On failure no partial state is exposed; an already-created session or
// participant is reusable, not rolled back.
func (o *Orchestrator) StartBrowserCall(ctx context.Context, agentID string) (string, error) {
	if agentID == "" {
		return "", ErrInvalidArgument
	}
	unlock := o.lockAgents(agentID)
	defer unlock()

	sessionID, err := o.sessions.Resolve(ctx, SessionTag(agentID))
	if err != nil {
		return "", err
	}
	logger.From(ctx).Info("placing agent into session", "agent_id", agentID, "session_id", sessionID)

	p, token, err := o.life.Create(ctx)
	if err != nil {
		return "", err
	}
	if err := o.life.Join(ctx, p.ID, sessionID); err != nil {
		return "", err
	}

	o.record(ctx, audit.EventTypeBrowserJoined, agentID, "", sessionID, p.ID, "agent browser joined session")
	return token, nil
}

// StartPSTNCall dials the configured user number and pre-binds the resulting
// call id to a fresh participant in the agent's session. The binding becomes
// actionable when the answer webhook fires.
//
// The busy check runs before dialing: refusing a second call for an occupied
// session up front avoids ringing a phone we could never bridge.
func (o *Orchestrator) StartPSTNCall(ctx context.Context, agentID string) error {
	if agentID == "" {
		return ErrInvalidArgument
	}
	unlock := o.lockAgents(agentID)
	defer unlock()

	sessionID, err := o.sessions.Resolve(ctx, SessionTag(agentID))
	if err != nil {
		return err
	}
	if _, ok, err := o.bindings.FindBySession(ctx, sessionID); err != nil {
		return fmt.Errorf("calls: binding lookup: %w", err)
	} else if ok {
		return ErrCallInProgress
	}

	log := logger.From(ctx)
	log.Info("starting PSTN call", "agent_id", agentID, "to", o.plan.ToNumber)

	// Dial first; call setup and ringing give us lead time to prepare the
	// participant before the answer webhook arrives.
	callID, err := o.voice.CreateCall(ctx, platform.CreateCallRequest{
		From:          o.plan.FromNumber,
		To:            o.plan.ToNumber,
		ApplicationID: o.plan.ApplicationID,
		AnswerURL:     o.plan.AnswerURL,
		AnswerMethod:  "POST",
		CallTimeout:   o.plan.CallTimeoutSeconds,
	})
	if err != nil {
		return err
	}

	p, token, err := o.life.Create(ctx)
	if err != nil {
		o.abortCall(ctx, callID)
		return err
	}
	if err := o.life.Join(ctx, p.ID, sessionID); err != nil {
		o.abortCall(ctx, callID)
		return err
	}

	now := o.clock().UTC()
	b := Binding{
		CallID:      callID,
		AgentID:     agentID,
		Participant: p,
		Token:       token,
		SessionID:   sessionID,
		State:       CallStateRinging,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := o.bindings.Put(ctx, b); err != nil {
		return fmt.Errorf("calls: bind %s: %w", callID, err)
	}

	log.Info("call created", "call_id", callID, "from", o.plan.FromNumber, "to", o.plan.ToNumber)
	o.record(ctx, audit.EventTypeCallStarted, agentID, callID, sessionID, p.ID, "outbound PSTN call placed")
	return nil
}

// OnCallAnswered handles the voice platform's answer webhook. For a known
// call it returns the XML bridge instruction that moves the PSTN leg into
// the bound participant's session. An unknown call id is a benign race (for
// example a webhook arriving after restart): ok is false and no bridging
// happens, but the caller must still answer 200 to the platform.
//
// The owning agent is only known from the binding itself, so the lock order
// is lookup, lock, re-read. When a transfer reassigns the call between the
// lookup and the lock, the loop retries against the new owner; the state
// transition always writes the binding read under the owner's lock, never
// the earlier snapshot.
func (o *Orchestrator) OnCallAnswered(ctx context.Context, callID string) (string, bool, error) {
	log := logger.From(ctx)

	for {
		b, ok, err := o.bindings.Get(ctx, callID)
		if err != nil {
			return "", false, fmt.Errorf("calls: binding lookup %s: %w", callID, err)
		}
		if !ok {
			log.Warn("answer webhook for unknown call", "call_id", callID)
			return "", false, nil
		}

		unlock := o.lockAgents(b.AgentID)

		cur, ok, err := o.bindings.Get(ctx, callID)
		if err != nil {
			unlock()
			return "", false, fmt.Errorf("calls: binding lookup %s: %w", callID, err)
		}
		if !ok {
			unlock()
			log.Warn("call unbound before answer webhook", "call_id", callID)
			return "", false, nil
		}
		if cur.AgentID != b.AgentID {
			unlock()
			continue
		}

		doc, err := platform.TransferResponse(cur.Token)
		if err != nil {
			unlock()
			return "", true, err
		}

		cur.State = CallStateAnswered
		cur.UpdatedAt = o.clock().UTC()
		if err := o.bindings.Put(ctx, cur); err != nil {
			unlock()
			return "", true, fmt.Errorf("calls: update binding %s: %w", callID, err)
		}
		unlock()

		log.Info("bridging answered call into session", "call_id", callID, "session_id", cur.SessionID)
		o.record(ctx, audit.EventTypeCallAnswered, cur.AgentID, callID, cur.SessionID, cur.Participant.ID, "PSTN leg bridged")
		return doc, true, nil
	}
}

// TransferPSTNCall hands the call bound to fromAgentID over to toAgentID:
// the participant moves sessions and the binding follows it.
func (o *Orchestrator) TransferPSTNCall(ctx context.Context, fromAgentID, toAgentID string) error {
	if fromAgentID == "" || toAgentID == "" || fromAgentID == toAgentID {
		return ErrInvalidArgument
	}
	unlock := o.lockAgents(fromAgentID, toAgentID)
	defer unlock()

	fromSessionID, err := o.sessions.Resolve(ctx, SessionTag(fromAgentID))
	if err != nil {
		return err
	}
	b, ok, err := o.bindings.FindBySession(ctx, fromSessionID)
	if err != nil {
		return fmt.Errorf("calls: binding lookup: %w", err)
	}
	if !ok {
		return ErrNoActiveCall
	}

	toSessionID, err := o.sessions.Resolve(ctx, SessionTag(toAgentID))
	if err != nil {
		return err
	}
	if _, ok, err := o.bindings.FindBySession(ctx, toSessionID); err != nil {
		return fmt.Errorf("calls: binding lookup: %w", err)
	} else if ok {
		return ErrCallInProgress
	}

	logger.From(ctx).Info("transferring call",
		"call_id", b.CallID, "from_agent_id", fromAgentID, "to_agent_id", toAgentID, "to_session_id", toSessionID)

	if err := o.life.Move(ctx, b.Participant.ID, fromSessionID, toSessionID); err != nil {
		return err
	}

	b.AgentID = toAgentID
	b.SessionID = toSessionID
	b.UpdatedAt = o.clock().UTC()
	if err := o.bindings.Put(ctx, b); err != nil {
		return fmt.Errorf("calls: rebind %s: %w", b.CallID, err)
	}

	o.record(ctx, audit.EventTypeCallTransferred, toAgentID, b.CallID, toSessionID, b.Participant.ID,
		"call transferred from agent "+fromAgentID)
	return nil
}

// EndPSTNCall hangs up the call bound to the agent's session and removes the
// binding. Unbinding is tolerant of stale state; the voice platform decides
// whether the call was actually still alive.
func (o *Orchestrator) EndPSTNCall(ctx context.Context, agentID string) error {
	if agentID == "" {
		return ErrInvalidArgument
	}
	unlock := o.lockAgents(agentID)
	defer unlock()

	sessionID, err := o.sessions.Resolve(ctx, SessionTag(agentID))
	if err != nil {
		return err
	}
	b, ok, err := o.bindings.FindBySession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("calls: binding lookup: %w", err)
	}
	if !ok {
		return ErrNoActiveCall
	}

	logger.From(ctx).Info("hanging up PSTN call", "call_id", b.CallID, "agent_id", agentID)
	if err := o.voice.HangupCall(ctx, b.CallID); err != nil {
		return err
	}
	if err := o.bindings.Delete(ctx, b.CallID); err != nil {
		return fmt.Errorf("calls: unbind %s: %w", b.CallID, err)
	}

	o.record(ctx, audit.EventTypeCallEnded, agentID, b.CallID, sessionID, b.Participant.ID, "PSTN call hung up")
	return nil
}

// lockAgents locks the given agents' mutexes in sorted order so transfer
// cannot deadlock against a concurrent transfer in the opposite direction.
func (o *Orchestrator) lockAgents(agentIDs ...string) func() {
	ids := append([]string(nil), agentIDs...)
	if len(ids) == 2 && ids[1] < ids[0] {
		ids[0], ids[1] = ids[1], ids[0]
	}

	locked := make([]*sync.Mutex, 0, len(ids))
	for _, id := range ids {
		v, _ := o.agentMu.LoadOrStore(id, &sync.Mutex{})
		mu := v.(*sync.Mutex)
		mu.Lock()
		locked = append(locked, mu)
	}
	return func() {
		for i := len(locked) - 1; i >= 0; i-- {
			locked[i].Unlock()
		}
	}
}

// abortCall hangs up a call that was dialed but never bound, so it does not
// keep ringing with nothing to bridge it to. Best effort: on failure the call
// id stays unknown to the answer webhook, which treats it as benign.
func (o *Orchestrator) abortCall(ctx context.Context, callID string) {
	if err := o.voice.HangupCall(ctx, callID); err != nil {
		logger.From(ctx).Warn("failed to hang up unbound call", "call_id", callID, "err", err)
	}
}

// record appends an audit event without ever failing the call flow.
func (o *Orchestrator) record(ctx context.Context, typ audit.EventType, agentID, callID, sessionID, participantID, msg string) {
	if o.auditor == nil {
		return
	}
	err := o.auditor.Append(ctx, audit.Event{
		Type:          typ,
		AgentID:       agentID,
		CallID:        callID,
		SessionID:     sessionID,
		ParticipantID: participantID,
		Message:       msg,
	})
	if err != nil {
		logger.From(ctx).Warn("audit append failed", "type", string(typ), "err", err)
	}
}
