package platform

import (
	"context"
	"errors"
	"fmt"
)

// RTCProvider defines the provider-agnostic surface of the RTC platform
// (sessions, participants, subscriptions) used by business logic.
//
// Rules:
// - No vendor REST calls outside this package.
// - Keep request/response types provider-agnostic; the wire shapes live in
//   the REST client only.
type RTCProvider interface {
	// CreateSession creates a session labeled with tag. Tags are useful to
	// audit or manage billing records; they must not contain PII.
	CreateSession(ctx context.Context, tag string) (Session, error)

	// CreateParticipant creates an audio-publishing participant and returns
	// it together with its single-use join token.
	CreateParticipant(ctx context.Context, tag string) (Participant, string, error)

	AddParticipantToSession(ctx context.Context, sessionID, participantID string) error
	RemoveParticipantFromSession(ctx context.Context, sessionID, participantID string) error
}

// VoiceProvider defines the PSTN call-control surface.
type VoiceProvider interface {
	// CreateCall places an outbound call and returns the provider call id.
	// The call is not answered yet; the provider posts to AnswerURL when it is.
	CreateCall(ctx context.Context, req CreateCallRequest) (string, error)

	// HangupCall transitions the call to the completed state.
	HangupCall(ctx context.Context, callID string) error
}

// Session is a platform-hosted room participants join to exchange media.
type Session struct {
	ID  string `json:"id"`
	Tag string `json:"tag"`
}

// Participant is a platform-tracked media endpoint. The join token is
// returned separately and is never stored on this struct by the client.
type Participant struct {
	ID  string `json:"id"`
	Tag string `json:"tag"`
}

type CreateCallRequest struct {
	From          string `json:"from"`
	To            string `json:"to"`
	ApplicationID string `json:"applicationId"`
	AnswerURL     string `json:"answerUrl"`
	AnswerMethod  string `json:"answerMethod"`

	// CallTimeout is in seconds; the provider gives up ringing after it.
	CallTimeout int `json:"callTimeout"`
}

// Error is any failure reported by (or while reaching) the RTC or voice
// platform. Message may contain vendor internals; log it, never return it to
// HTTP clients.
type Error struct {
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("platform: %s failed: status %d: %s", e.Op, e.StatusCode, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("platform: %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("platform: %s failed: %s", e.Op, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// IsPlatformError reports whether err originated at the provider boundary.
func IsPlatformError(err error) bool {
	var pe *Error
	return errors.As(err, &pe)
}
