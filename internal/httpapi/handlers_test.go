package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"callbridge/internal/audit"
	"callbridge/internal/auth"
	"callbridge/internal/calls"
	"callbridge/internal/config"
	"callbridge/internal/platform"
	"callbridge/internal/session"

	"github.com/gin-gonic/gin"
)

func init() { gin.SetMode(gin.TestMode) }

type fakeRTC struct {
	mu           sync.Mutex
	participants int
	failCreate   bool
}

func (f *fakeRTC) CreateSession(_ context.Context, tag string) (platform.Session, error) {
	return platform.Session{ID: "sess-" + strings.TrimPrefix(tag, "session#"), Tag: tag}, nil
}

func (f *fakeRTC) CreateParticipant(_ context.Context, tag string) (platform.Participant, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreate {
		return platform.Participant{}, "", &platform.Error{Op: "createParticipant", StatusCode: 500, Message: "vendor secret detail"}
	}
	f.participants++
	id := fmt.Sprintf("p-%d", f.participants)
	return platform.Participant{ID: id, Tag: tag}, "tok-" + id, nil
}

func (f *fakeRTC) AddParticipantToSession(context.Context, string, string) error      { return nil }
func (f *fakeRTC) RemoveParticipantFromSession(context.Context, string, string) error { return nil }

type fakeVoice struct {
	mu     sync.Mutex
	nextID string
	dials  int
}

func (f *fakeVoice) CreateCall(context.Context, platform.CreateCallRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dials++
	if f.nextID == "" {
		return fmt.Sprintf("call-%d", f.dials), nil
	}
	return f.nextID, nil
}

func (f *fakeVoice) HangupCall(context.Context, string) error { return nil }

func newTestRouter(rtc *fakeRTC, voice *fakeVoice, authManager *auth.Manager) *gin.Engine {
	orch := calls.NewOrchestrator(
		session.NewRegistry(session.NewMemoryStore(), rtc),
		calls.NewLifecycle(rtc),
		calls.NewMemoryBindingStore(),
		voice,
		calls.DialPlan{
			FromNumber:         "+15551230001",
			ToNumber:           "+15551230002",
			ApplicationID:      "app-1",
			AnswerURL:          "https://demo.example.com/callAnswered",
			CallTimeoutSeconds: 30,
		},
		audit.NewService(audit.NewMemoryRepo()),
	)
	h := Handlers{Orch: orch}

	r := gin.New()
	r.POST("/callAnswered", h.CallAnswered)
	agent := r.Group("/")
	if authManager != nil {
		agent.Use(auth.RequireAgentToken(authManager))
	}
	agent.GET("/startBrowserCall", h.StartBrowserCall)
	agent.GET("/startPSTNCall", h.StartPSTNCall)
	agent.GET("/transferPSTNCall", h.TransferPSTNCall)
	agent.GET("/endPSTNCall", h.EndPSTNCall)
	return r
}

func doGet(r *gin.Engine, path string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestStartBrowserCall_ReturnsToken(t *testing.T) {
	r := newTestRouter(&fakeRTC{}, &fakeVoice{}, nil)

	w := doGet(r, "/startBrowserCall?agent_id=42", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"token":"tok-`) {
		t.Fatalf("expected token in body: %s", w.Body.String())
	}
}

func TestStartBrowserCall_RequiresAgentID(t *testing.T) {
	r := newTestRouter(&fakeRTC{}, &fakeVoice{}, nil)

	if w := doGet(r, "/startBrowserCall", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestStartBrowserCall_HidesPlatformDetails(t *testing.T) {
	r := newTestRouter(&fakeRTC{failCreate: true}, &fakeVoice{}, nil)

	w := doGet(r, "/startBrowserCall?agent_id=42", nil)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "vendor secret detail") {
		t.Fatalf("platform internals leaked to client: %s", w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "failed to set up participant") {
		t.Fatalf("expected generic message, got %s", w.Body.String())
	}
}

func TestStartPSTNCall_RingingThenConflict(t *testing.T) {
	r := newTestRouter(&fakeRTC{}, &fakeVoice{}, nil)

	w := doGet(r, "/startPSTNCall?agent_id=42", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"status":"ringing"`) {
		t.Fatalf("expected ringing, got %d: %s", w.Code, w.Body.String())
	}

	if w := doGet(r, "/startPSTNCall?agent_id=42", nil); w.Code != http.StatusConflict {
		t.Fatalf("expected 409 for busy agent, got %d", w.Code)
	}
}

func TestCallAnswered_KnownCallReturnsXML(t *testing.T) {
	voice := &fakeVoice{nextID: "call-abc"}
	r := newTestRouter(&fakeRTC{}, voice, nil)

	if w := doGet(r, "/startPSTNCall?agent_id=42", nil); w.Code != http.StatusOK {
		t.Fatalf("start failed: %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/callAnswered",
		strings.NewReader(`{"callId":"call-abc","to":"+15551230002"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("webhook must get 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/xml") {
		t.Fatalf("expected xml content type, got %q", ct)
	}
	if !strings.Contains(w.Body.String(), "<Transfer>") {
		t.Fatalf("expected bridge document, got %s", w.Body.String())
	}
}

func TestCallAnswered_UnknownCallStillOK(t *testing.T) {
	r := newTestRouter(&fakeRTC{}, &fakeVoice{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/callAnswered",
		strings.NewReader(`{"callId":"unknown-id"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("webhook must get 200 even for unknown calls, got %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "<Transfer>") {
		t.Fatalf("unknown call must not be bridged")
	}
}

func TestCallAnswered_MalformedBodyStillOK(t *testing.T) {
	r := newTestRouter(&fakeRTC{}, &fakeVoice{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/callAnswered", strings.NewReader("not-json"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("webhook must get 200, got %d", w.Code)
	}
}

func TestTransferAndEnd_FullFlowOverHTTP(t *testing.T) {
	voice := &fakeVoice{nextID: "call-abc"}
	r := newTestRouter(&fakeRTC{}, voice, nil)

	if w := doGet(r, "/startPSTNCall?agent_id=42", nil); w.Code != http.StatusOK {
		t.Fatalf("start failed: %d", w.Code)
	}
	w := doGet(r, "/transferPSTNCall?from_agent_id=42&to_agent_id=43", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"status":"transferred"`) {
		t.Fatalf("expected transferred, got %d: %s", w.Code, w.Body.String())
	}

	// The call now lives with agent 43; 42 has nothing to end.
	if w := doGet(r, "/endPSTNCall?agent_id=42", nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for agent without call, got %d", w.Code)
	}
	w = doGet(r, "/endPSTNCall?agent_id=43", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"status":"hungup"`) {
		t.Fatalf("expected hungup, got %d: %s", w.Code, w.Body.String())
	}
}

func TestTransfer_NoActiveCallIs404(t *testing.T) {
	r := newTestRouter(&fakeRTC{}, &fakeVoice{}, nil)

	if w := doGet(r, "/transferPSTNCall?from_agent_id=42&to_agent_id=43", nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestAgentRoutes_EnforceTokenWhenConfigured(t *testing.T) {
	m, err := auth.NewManager(config.AuthConfig{JWTSecret: "test-secret", TokenTTL: time.Hour})
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	r := newTestRouter(&fakeRTC{}, &fakeVoice{}, m)

	if w := doGet(r, "/startBrowserCall?agent_id=42", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}

	tok, err := m.Issue(time.Now(), "42")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	hdr := http.Header{"Authorization": []string{"Bearer " + tok}}

	if w := doGet(r, "/startBrowserCall?agent_id=42", hdr); w.Code != http.StatusOK {
		t.Fatalf("expected 200 with matching token, got %d: %s", w.Code, w.Body.String())
	}
	if w := doGet(r, "/startBrowserCall?agent_id=43", hdr); w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for foreign agent id, got %d", w.Code)
	}
}
