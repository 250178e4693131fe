package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const authorizationHeader = "Authorization"
const bearerPrefix = "Bearer "
const consoleKeyHeader = "X-Console-Key"

// RequireAgentToken verifies the bearer token and injects the agent identity
// into the request context. The answer webhook must never sit behind this
// middleware; the voice platform does not hold agent tokens.
func RequireAgentToken(m *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(authorizationHeader))
		if raw == "" || !strings.HasPrefix(raw, bearerPrefix) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		tok := strings.TrimPrefix(raw, bearerPrefix)

		claims, err := m.Verify(tok, time.Now())
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Request = c.Request.WithContext(WithAgent(c.Request.Context(), claims.AgentID))
		c.Set("agent_id", claims.AgentID)

		c.Next()
	}
}

// TokenHandler issues agent tokens to callers holding the console key.
type TokenHandler struct {
	Manager    *Manager
	ConsoleKey string
}

type tokenRequest struct {
	AgentID string `json:"agent_id" binding:"required"`
}

func (h TokenHandler) Issue(c *gin.Context) {
	key := c.GetHeader(consoleKeyHeader)
	if subtle.ConstantTimeCompare([]byte(key), []byte(h.ConsoleKey)) != 1 {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid console key"})
		return
	}

	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "agent_id is required"})
		return
	}

	tok, err := h.Manager.Issue(time.Now(), req.AgentID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": tok})
}
