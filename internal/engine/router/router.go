// Package router provides knowledge engine routing.
package router

import (
	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/knowledge-engine/internal/engine/handler"
	"github.com/kart-io/knowledge-engine/internal/pkg/middleware"
)

// Register registers the knowledge engine routes on the gin engine.
func Register(r *gin.Engine, h *handler.KnowledgeHandler) {
	r.Use(
		middleware.Recovery(),
		middleware.RequestID(),
		middleware.Logger("/healthz", "/metrics"),
		middleware.CORS(middleware.DefaultCORSConfig()),
	)

	r.GET("/healthz", h.Healthz)
	r.GET("/metrics", h.Metrics)

	v1 := r.Group("/v1")
	{
		knowledge := v1.Group("/knowledge")
		{
			knowledge.POST("/query", h.Query)
			knowledge.POST("/ingest", h.Ingest)
			knowledge.GET("/ingest/status", h.IngestStatus)
			knowledge.GET("/stats", h.Stats)
		}
	}

	logger.Info("HTTP routes registered")
}
