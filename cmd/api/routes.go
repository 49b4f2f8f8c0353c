package main

import (
	"context"
	"net/http"

	"callcenter-analytics/internal/auth"
	"callcenter-analytics/internal/httpapi"
	"callcenter-analytics/internal/ingest"
	"callcenter-analytics/internal/rbac"

	"github.com/gin-gonic/gin"
)

type appDeps struct {
	handlers httpapi.Handlers
	webhook  *ingest.Handler
	ready    func(ctx context.Context) error
}

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, authManager *auth.Manager, deps appDeps) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/readyz", func(c *gin.Context) {
		if err := deps.ready(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Provider webhooks (public; authenticated by HMAC signature).
	deps.webhook.Register(r)

	h := deps.handlers

	v1 := r.Group("/v1")
	{
		// Read surface used by the dashboard.
		v1.GET("/calls", h.ListCalls)
		v1.GET("/calls/:call_id", h.GetCall)
		v1.GET("/kpis", h.GetKPIs)

		v1.POST("/calls/:call_id/feedback", h.CreateFeedback)
		v1.DELETE("/feedback/:feedback_id", h.DeleteFeedback)

		v1.POST("/knowledge/search", h.SearchKnowledge)

		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/login", h.Login)
		}

		// ADMIN routes
		admin := v1.Group("/admin")
		admin.Use(auth.RequireAccessToken(authManager))
		admin.Use(rbac.RequireAnyRole(rbac.RoleAdmin))
		{
			admin.DELETE("/calls/:call_id", h.DeleteCall)
		}
	}
}
