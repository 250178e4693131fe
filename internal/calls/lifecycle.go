package calls

import (
	"context"
	"fmt"

	"callbridge/internal/platform"

	"github.com/google/uuid"
)

// Lifecycle creates platform participants and manages their session
// subscription. A participant is subscribed to at most one session at a time.
type Lifecycle struct {
	rtc platform.RTCProvider
}

func NewLifecycle(rtc platform.RTCProvider) *Lifecycle {
	return &Lifecycle{rtc: rtc}
}

// Create requests a new audio-publishing participant. The tag is a random
// uuid so no personal data leaks into vendor billing records.
func (l *Lifecycle) Create(ctx context.Context) (platform.Participant, string, error) {
	return l.rtc.CreateParticipant(ctx, uuid.NewString())
}

// Join subscribes the participant to the session. The platform does not
// guarantee idempotency; treat this as at-most-once per logical call.
func (l *Lifecycle) Join(ctx context.Context, participantID, sessionID string) error {
	return l.rtc.AddParticipantToSession(ctx, sessionID, participantID)
}

// Leave unsubscribes the participant. The platform rejects leaving a session
// the participant is not in; callers may tolerate that, but the error is
// always surfaced, never swallowed here.
func (l *Lifecycle) Leave(ctx context.Context, participantID, sessionID string) error {
	return l.rtc.RemoveParticipantFromSession(ctx, sessionID, participantID)
}

// Move resubscribes the participant from one session to another. The two
// steps are not atomic: when the join fails after the leave succeeded, the
// participant is in neither session, so Move compensates by rejoining the
// source session. If the compensation also fails the participant is orphaned
// and the returned error says so.
func (l *Lifecycle) Move(ctx context.Context, participantID, fromSessionID, toSessionID string) error {
	if err := l.Leave(ctx, participantID, fromSessionID); err != nil {
		return fmt.Errorf("leave session %s: %w", fromSessionID, err)
	}

	if err := l.Join(ctx, participantID, toSessionID); err != nil {
		if rerr := l.Join(ctx, participantID, fromSessionID); rerr != nil {
			return fmt.Errorf("join session %s failed (%w) and rejoining %s failed (%v): participant %s is orphaned",
				toSessionID, err, fromSessionID, rerr, participantID)
		}
		return fmt.Errorf("join session %s (participant restored to %s): %w", toSessionID, fromSessionID, err)
	}
	return nil
}
