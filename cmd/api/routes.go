package main

import (
	"callbridge/internal/auth"
	"callbridge/internal/httpapi"

	"github.com/gin-gonic/gin"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers delegate to internal modules.
func registerRoutes(r *gin.Engine, h httpapi.Handlers, authManager *auth.Manager, consoleKey string) {
	// public
	r.GET("/healthz", h.Healthz)

	// Voice platform answer webhook (public). The platform requires a 200
	// regardless of business outcome, so this route never sits behind auth.
	// NOTE: protect with provider signature validation in production.
	r.POST("/callAnswered", h.CallAnswered)

	// Browser console assets.
	r.Static("/public", "./public")
	r.StaticFile("/", "./public/index.html")

	// Agent console routes. Token-guarded only when auth is configured.
	agent := r.Group("/")
	if authManager != nil {
		r.POST("/auth/token", auth.TokenHandler{Manager: authManager, ConsoleKey: consoleKey}.Issue)
		agent.Use(auth.RequireAgentToken(authManager))
	}
	{
		agent.GET("/startBrowserCall", h.StartBrowserCall)
		agent.GET("/startPSTNCall", h.StartPSTNCall)
		agent.GET("/transferPSTNCall", h.TransferPSTNCall)
		agent.GET("/endPSTNCall", h.EndPSTNCall)
	}
}
