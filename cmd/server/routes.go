package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"obit-optout.backend/internal/interfaces/http/handlers"
)

type routeDeps struct {
	optOutHandler *handlers.OptOutHandler
	adminHandler  *handlers.AdminHandler
	ingestHandler *handlers.IngestHandler
	operatorAuth  gin.HandlerFunc
}

func registerAPIV1Routes(r *gin.Engine, d routeDeps) {
	v1 := r.Group("/api/v1")
	{
		// Public opt-out intake
		optout := v1.Group("/optout")
		{
			optout.POST("/requests", d.optOutHandler.SubmitRequest)
			optout.GET("/verify", d.optOutHandler.Verify)
		}

		// Ingestion pipeline gate (internal, unauthenticated)
		ingest := v1.Group("/ingest")
		{
			ingest.GET("/blocklist/:fingerprint", d.ingestHandler.CheckBlocklist)
		}

		// Operator routes (protected)
		admin := v1.Group("/admin")
		admin.Use(d.operatorAuth)
		{
			admin.POST("/suppressions", d.adminHandler.Suppress)
			admin.DELETE("/suppressions/subject/:subjectId", d.adminHandler.Unsuppress)
			admin.GET("/suppressions/review-queue", d.adminHandler.ReviewQueue)
			admin.POST("/suppressions/:id/review", d.adminHandler.MarkReviewed)
			admin.GET("/blocklist/:fingerprint", d.adminHandler.IsBlocked)
			admin.GET("/rate-limit/:origin", d.adminHandler.RateLimitStatus)
		}
	}
}

func applyCORSMiddleware(r *gin.Engine) {
	r.Use(func(c *gin.Context) {
		if origin := c.GetHeader("Origin"); origin != "" {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-ID")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})
}

func registerHealthRoute(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": "obit-optout-backend",
			"version": "0.1.0",
		})
	})
}

func registerMetricsRoute(r *gin.Engine) {
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
