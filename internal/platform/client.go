package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client is the REST implementation of RTCProvider and VoiceProvider.
// Both APIs authenticate with the same account-scoped basic credentials.
type Client struct {
	rtcBaseURL   string
	voiceBaseURL string
	accountID    string
	username     string
	password     string

	httpClient *http.Client
}

type ClientConfig struct {
	RTCBaseURL   string
	VoiceBaseURL string
	AccountID    string
	Username     string
	Password     string

	// HTTPClient is optional; a client with a conservative timeout is used
	// when nil.
	HTTPClient *http.Client
}

func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.AccountID == "" || cfg.Username == "" || cfg.Password == "" {
		return nil, fmt.Errorf("platform: account id and credentials are required")
	}
	if cfg.RTCBaseURL == "" || cfg.VoiceBaseURL == "" {
		return nil, fmt.Errorf("platform: rtc and voice base URLs are required")
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		rtcBaseURL:   strings.TrimRight(cfg.RTCBaseURL, "/"),
		voiceBaseURL: strings.TrimRight(cfg.VoiceBaseURL, "/"),
		accountID:    cfg.AccountID,
		username:     cfg.Username,
		password:     cfg.Password,
		httpClient:   hc,
	}, nil
}

var _ RTCProvider = (*Client)(nil)
var _ VoiceProvider = (*Client)(nil)

func (c *Client) CreateSession(ctx context.Context, tag string) (Session, error) {
	var out Session
	in := struct {
		Tag string `json:"tag"`
	}{Tag: tag}

	url := fmt.Sprintf("%s/accounts/%s/sessions", c.rtcBaseURL, c.accountID)
	if err := c.do(ctx, "createSession", http.MethodPost, url, in, &out); err != nil {
		return Session{}, err
	}
	if out.ID == "" {
		return Session{}, &Error{Op: "createSession", Message: "response missing session id"}
	}
	return out, nil
}

func (c *Client) CreateParticipant(ctx context.Context, tag string) (Participant, string, error) {
	in := struct {
		Tag                string   `json:"tag"`
		PublishPermissions []string `json:"publishPermissions"`
		DeviceAPIVersion   string   `json:"deviceApiVersion"`
	}{
		Tag:                tag,
		PublishPermissions: []string{"AUDIO"},
		DeviceAPIVersion:   "V3",
	}
	var out struct {
		Participant Participant `json:"participant"`
		Token       string      `json:"token"`
	}

	url := fmt.Sprintf("%s/accounts/%s/participants", c.rtcBaseURL, c.accountID)
	if err := c.do(ctx, "createParticipant", http.MethodPost, url, in, &out); err != nil {
		return Participant{}, "", err
	}
	if out.Participant.ID == "" || out.Token == "" {
		return Participant{}, "", &Error{Op: "createParticipant", Message: "response missing participant id or token"}
	}
	return out.Participant, out.Token, nil
}

func (c *Client) AddParticipantToSession(ctx context.Context, sessionID, participantID string) error {
	in := struct {
		SessionID string `json:"sessionId"`
	}{SessionID: sessionID}

	url := fmt.Sprintf("%s/accounts/%s/sessions/%s/participants/%s",
		c.rtcBaseURL, c.accountID, sessionID, participantID)
	return c.do(ctx, "addParticipantToSession", http.MethodPut, url, in, nil)
}

func (c *Client) RemoveParticipantFromSession(ctx context.Context, sessionID, participantID string) error {
	url := fmt.Sprintf("%s/accounts/%s/sessions/%s/participants/%s",
		c.rtcBaseURL, c.accountID, sessionID, participantID)
	return c.do(ctx, "removeParticipantFromSession", http.MethodDelete, url, nil, nil)
}

func (c *Client) CreateCall(ctx context.Context, req CreateCallRequest) (string, error) {
	var out struct {
		CallID string `json:"callId"`
	}

	url := fmt.Sprintf("%s/accounts/%s/calls", c.voiceBaseURL, c.accountID)
	if err := c.do(ctx, "createCall", http.MethodPost, url, req, &out); err != nil {
		return "", err
	}
	if out.CallID == "" {
		return "", &Error{Op: "createCall", Message: "response missing call id"}
	}
	return out.CallID, nil
}

func (c *Client) HangupCall(ctx context.Context, callID string) error {
	in := struct {
		State string `json:"state"`
	}{State: "completed"}

	url := fmt.Sprintf("%s/accounts/%s/calls/%s", c.voiceBaseURL, c.accountID, callID)
	return c.do(ctx, "hangupCall", http.MethodPost, url, in, nil)
}

func (c *Client) do(ctx context.Context, op, method, url string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return &Error{Op: op, Err: err}
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return &Error{Op: op, Err: err}
	}
	req.SetBasicAuth(c.username, c.password)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &Error{Op: op, Err: err}
	}
	defer resp.Body.Close()

	// Cap error bodies; vendor error payloads are small.
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &Error{Op: op, StatusCode: resp.StatusCode, Message: vendorMessage(raw)}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &Error{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func vendorMessage(raw []byte) string {
	var e struct {
		Message      string `json:"message"`
		ErrorMessage string `json:"errorMessage"`
		Description  string `json:"description"`
	}
	if err := json.Unmarshal(raw, &e); err == nil {
		switch {
		case e.ErrorMessage != "":
			return e.ErrorMessage
		case e.Message != "":
			return e.Message
		case e.Description != "":
			return e.Description
		}
	}
	return strings.TrimSpace(string(raw))
}
