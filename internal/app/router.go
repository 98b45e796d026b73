package app

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/rs/zerolog"

	"crm/internal/handler"
	"crm/internal/middleware"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	SessionHandler   *handler.SessionHandler
	CallLogHandler   *handler.CallLogHandler
	DashboardHandler *handler.DashboardHandler
	Idempotency      middleware.IdempotencyStore // optional
	CORSOrigins      []string
	NewRelicApp      *newrelic.Application
	Log              zerolog.Logger
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	// Global middleware.
	router.Use(gin.Recovery())
	router.Use(gin.Logger())
	router.Use(middleware.CORS(deps.CORSOrigins))

	// Add New Relic middleware if enabled.
	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
	}
	router.Use(middleware.ErrorReporter(deps.Log))

	submit := []gin.HandlerFunc{deps.SessionHandler.Submit}
	if deps.Idempotency != nil {
		submit = append([]gin.HandlerFunc{middleware.Idempotency(deps.Idempotency, deps.Log)}, submit...)
	}

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// API v1 routes.
	v1 := router.Group("/v1")
	{
		// Operator call session routes.
		session := v1.Group("/operators/:operator/session")
		{
			session.POST("", deps.SessionHandler.Open)
			session.GET("", deps.SessionHandler.Get)
			session.DELETE("", deps.SessionHandler.Close)
			session.POST("/next", deps.SessionHandler.Next)
			session.POST("/previous", deps.SessionHandler.Previous)
			session.POST("/call/start", deps.SessionHandler.StartCall)
			session.POST("/call/end", deps.SessionHandler.EndCall)
			session.PUT("/form", deps.SessionHandler.UpdateForm)
			session.POST("/submit", submit...)
		}

		// Workspace routes.
		workspaces := v1.Group("/workspaces/:workspace")
		{
			workspaces.GET("/drivers", deps.DashboardHandler.Roster)
			workspaces.GET("/drivers/:driver/calls", deps.CallLogHandler.ListByDriver)

			workspaces.GET("/stats/daily", deps.DashboardHandler.DailyStats)
			workspaces.GET("/stats/daily/export", deps.DashboardHandler.ExportDailyStats)
			workspaces.GET("/stats/summary", deps.DashboardHandler.Summary)
			workspaces.GET("/stats/status-distribution", deps.DashboardHandler.StatusDistribution)

			workspaces.GET("/revenue/:kind", deps.DashboardHandler.Revenue)
		}
	}

	return router
}
