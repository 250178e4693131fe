package auth

import "github.com/golang-jwt/jwt/v5"

// Claims are the only supported JWT claims shape for this service.
// AgentID must be present; there is no tenancy or role model here. The
// console is single-tenant and every caller is an agent.
type Claims struct {
	jwt.RegisteredClaims

	AgentID string `json:"agent_id"`
}
