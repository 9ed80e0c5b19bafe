package main

import (
	"database/sql"

	"callsurvey/internal/auth"
	"callsurvey/internal/conversation"
	"callsurvey/internal/httpapi"
	"callsurvey/internal/rbac"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, db *sql.DB, authManager *auth.Manager, h httpapi.Handlers, conv *conversation.Handler) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		if err := pingDB(c, db); err != nil {
			c.JSON(503, gin.H{"status": "degraded", "error": err.Error()})
			return
		}
		c.JSON(200, gin.H{"status": "ok"})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Provider webhooks (public).
	// NOTE: These should be protected by Twilio signature validation in production.
	r.POST(voiceWebhookPath, conv.HandleVoice)
	r.POST(gatherWebhookPath, conv.HandleGather)

	// AUTH routes (token issuance).
	// NOTE: Placeholder login route; real credential validation is not implemented.
	r.POST("/v1/auth/login", h.Login)

	// protected API group
	v1 := r.Group("/v1")
	v1.Use(auth.RequireAccessToken(authManager))
	{
		// Identity echo for debugging token wiring.
		v1.GET("/me", func(c *gin.Context) {
			uid, _ := auth.UserID(c.Request.Context())
			role, _ := auth.Role(c.Request.Context())
			c.JSON(200, gin.H{"user_id": uid, "role": role})
		})

		// CALLS routes
		calls := v1.Group("/calls")
		{
			calls.POST("", rbac.RequireAnyRole(rbac.RoleAdmin, rbac.RoleOperator), h.CreateScheduledCall)
			calls.GET("", rbac.RequireAnyRole(rbac.RoleAdmin, rbac.RoleOperator, rbac.RoleViewer), h.ListCalls)
			calls.GET("/:id", rbac.RequireAnyRole(rbac.RoleAdmin, rbac.RoleOperator, rbac.RoleViewer), h.GetCall)
		}

		// REPORTING routes
		reports := v1.Group("/reports")
		reports.Use(rbac.RequireAnyRole(rbac.RoleAdmin, rbac.RoleOperator, rbac.RoleViewer))
		{
			reports.GET("/summary", h.SurveySummary)
		}
	}
}

func pingDB(c *gin.Context, db *sql.DB) error {
	if db == nil {
		return nil
	}
	return db.PingContext(c.Request.Context())
}
