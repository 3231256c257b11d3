package api

import (
	"github.com/gin-gonic/gin"
	"github.com/timmy/docloader/internal/api/handler"
	"github.com/timmy/docloader/internal/api/middleware"
	"github.com/timmy/docloader/internal/logger"
)

// SetupRouter configures the Gin router with all routes
func SetupRouter(
	runner handler.PipelineRunner,
	runs handler.RunStore,
	log *logger.Logger,
	mode string,
) *gin.Engine {
	switch mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.LoggerMiddleware(log))

	healthHandler := handler.NewHealthHandler()
	pipelineHandler := handler.NewPipelineHandler(runner, runs)

	r.GET("/health", healthHandler.Health)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/status", pipelineHandler.Status)

		// Run ledger
		v1.GET("/runs", pipelineHandler.ListRuns)
		v1.GET("/runs/:id/batches", pipelineHandler.ListBatches)

		// Triggers
		v1.POST("/fetch", pipelineHandler.TriggerFetch)
		v1.POST("/load", pipelineHandler.TriggerLoad)
	}

	return r
}
