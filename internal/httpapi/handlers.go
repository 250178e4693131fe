package httpapi

import (
	"errors"
	"net/http"

	"callbridge/internal/auth"
	"callbridge/internal/calls"
	"callbridge/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Handlers converts HTTP requests to orchestrator calls and maps error kinds
// to statuses. No business logic here.
//
// Status mapping:
// - ErrNoActiveCall        -> 404 (stale or already-ended call)
// - ErrCallInProgress      -> 409 (agent session already occupied)
// - ErrInvalidArgument     -> 400
// - anything else          -> 500 with a generic message; details are logged,
//   never returned, to avoid leaking platform internals.
//
// The answer webhook is the one exception: the voice platform treats non-200
// as a delivery failure and retries, so it always gets 200.
type Handlers struct {
	Orch *calls.Orchestrator
}

func (h Handlers) StartBrowserCall(c *gin.Context) {
	log := logger.FromGin(c)

	agentID, ok := h.agentParam(c, "agent_id")
	if !ok {
		return
	}

	token, err := h.Orch.StartBrowserCall(c.Request.Context(), agentID)
	if err != nil {
		log.Error("failed to start the browser call", "agent_id", agentID, "err", err)
		h.writeError(c, err, gin.H{"message": "failed to set up participant"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "created participant and setup session",
		"token":   token,
	})
}

func (h Handlers) StartPSTNCall(c *gin.Context) {
	log := logger.FromGin(c)

	agentID, ok := h.agentParam(c, "agent_id")
	if !ok {
		return
	}

	if err := h.Orch.StartPSTNCall(c.Request.Context(), agentID); err != nil {
		log.Error("failed to start PSTN call", "agent_id", agentID, "err", err)
		h.writeError(c, err, gin.H{"message": "failed to set up PSTN call"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ringing"})
}

type answerWebhook struct {
	CallID string `json:"callId"`
	To     string `json:"to"`
}

// CallAnswered handles the voice platform's answer webhook. It always
// responds 200: a known call gets the XML bridge instruction as the body, an
// unknown one an empty acknowledgment.
func (h Handlers) CallAnswered(c *gin.Context) {
	log := logger.FromGin(c)

	var hook answerWebhook
	if err := c.ShouldBindJSON(&hook); err != nil || hook.CallID == "" {
		log.Warn("malformed answer webhook", "err", err)
		c.Status(http.StatusOK)
		return
	}

	doc, found, err := h.Orch.OnCallAnswered(c.Request.Context(), hook.CallID)
	if err != nil {
		log.Error("answer webhook handling failed", "call_id", hook.CallID, "err", err)
		c.Status(http.StatusOK)
		return
	}
	if !found {
		c.Status(http.StatusOK)
		return
	}

	c.Header("Content-Type", "application/xml")
	c.String(http.StatusOK, doc)
}

func (h Handlers) TransferPSTNCall(c *gin.Context) {
	log := logger.FromGin(c)

	fromAgentID, ok := h.agentParam(c, "from_agent_id")
	if !ok {
		return
	}
	toAgentID := c.Query("to_agent_id")

	log.Info("transferring call between agents", "from_agent_id", fromAgentID, "to_agent_id", toAgentID)

	if err := h.Orch.TransferPSTNCall(c.Request.Context(), fromAgentID, toAgentID); err != nil {
		log.Error("call transfer failed", "from_agent_id", fromAgentID, "to_agent_id", toAgentID, "err", err)
		h.writeError(c, err, gin.H{"status": "call transfer failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "transferred"})
}

func (h Handlers) EndPSTNCall(c *gin.Context) {
	log := logger.FromGin(c)

	agentID, ok := h.agentParam(c, "agent_id")
	if !ok {
		return
	}

	if err := h.Orch.EndPSTNCall(c.Request.Context(), agentID); err != nil {
		log.Error("call hangup failed", "agent_id", agentID, "err", err)
		h.writeError(c, err, gin.H{"status": "call hangup failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "hungup"})
}

func (h Handlers) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// agentParam reads the agent id query parameter and, when the request is
// authenticated, refuses ids other than the token's own.
func (h Handlers) agentParam(c *gin.Context, name string) (string, bool) {
	agentID := c.Query(name)
	if agentID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": name + " is required"})
		return "", false
	}
	if tokenAgent, err := auth.AgentID(c.Request.Context()); err == nil && tokenAgent != agentID {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "token does not match " + name})
		return "", false
	}
	return agentID, true
}

func (h Handlers) writeError(c *gin.Context, err error, generic gin.H) {
	switch {
	case errors.Is(err, calls.ErrNoActiveCall):
		c.JSON(http.StatusNotFound, gin.H{"status": "no active call for agent"})
	case errors.Is(err, calls.ErrCallInProgress):
		c.JSON(http.StatusConflict, gin.H{"status": "agent already has an active call"})
	case errors.Is(err, calls.ErrInvalidArgument):
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid request"})
	default:
		c.JSON(http.StatusInternalServerError, generic)
	}
}
