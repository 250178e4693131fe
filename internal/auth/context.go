package auth

import (
	"context"
	"errors"
)

type ctxKey int

const ctxAgentID ctxKey = iota

func WithAgent(ctx context.Context, agentID string) context.Context {
	return context.WithValue(ctx, ctxAgentID, agentID)
}

// AgentID returns the authenticated agent from context.
func AgentID(ctx context.Context) (string, error) {
	if s, ok := ctx.Value(ctxAgentID).(string); ok && s != "" {
		return s, nil
	}
	return "", errors.New("agent_id not in context")
}
