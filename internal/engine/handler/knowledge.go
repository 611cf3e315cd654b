// Package handler provides HTTP handlers for the knowledge engine.
package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/knowledge-engine/internal/engine/biz"
	"github.com/kart-io/knowledge-engine/internal/engine/metrics"
	"github.com/kart-io/knowledge-engine/internal/model"
	"github.com/kart-io/knowledge-engine/internal/pkg/httputils"
)

// queryTimeout 单次查询的超时上限。
const queryTimeout = 60 * time.Second

// KnowledgeHandler handles knowledge engine HTTP requests.
type KnowledgeHandler struct {
	service biz.Service
}

// NewKnowledgeHandler creates a new KnowledgeHandler.
func NewKnowledgeHandler(service biz.Service) *KnowledgeHandler {
	return &KnowledgeHandler{service: service}
}

// QueryRequest represents a query request.
type QueryRequest struct {
	Question   string         `json:"question" binding:"required"`
	Role       string         `json:"role"`
	MaxResults int            `json:"max_results" binding:"omitempty,min=0"`
	Filters    map[string]any `json:"filters"`
}

// Query performs a role-aware knowledge query.
func (h *KnowledgeHandler) Query(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputils.WriteError(c, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), queryTimeout)
	defer cancel()

	result, err := h.service.Query(ctx, req.Question, req.Role, &biz.QueryOptions{
		MaxResults: req.MaxResults,
		Filters:    req.Filters,
	})
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			httputils.WriteError(c, http.StatusRequestTimeout,
				"query timeout: the request took too long to process")
			return
		}
		httputils.WriteError(c, http.StatusInternalServerError, err.Error())
		return
	}

	httputils.WriteSuccess(c, result)
}

// IngestRequest represents an ingest request.
type IngestRequest struct {
	Documents []*model.Document `json:"documents" binding:"required"`
}

// Ingest starts a background ingest job for the given documents.
// A second request while a job is running is rejected with 409.
func (h *KnowledgeHandler) Ingest(c *gin.Context) {
	var req IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputils.WriteError(c, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Documents) == 0 {
		httputils.WriteError(c, http.StatusBadRequest, "documents must not be empty")
		return
	}

	job, err := h.service.Ingest(c.Request.Context(), req.Documents)
	if err != nil {
		if errors.Is(err, biz.ErrIngestRunning) {
			httputils.WriteError(c, http.StatusConflict, err.Error())
			return
		}
		httputils.WriteError(c, http.StatusInternalServerError, err.Error())
		return
	}

	c.JSON(http.StatusAccepted, httputils.Response{
		Code:    0,
		Message: "ingest job started",
		Data:    job,
	})
}

// IngestStatus returns the state of the current or last ingest job.
func (h *KnowledgeHandler) IngestStatus(c *gin.Context) {
	httputils.WriteSuccess(c, h.service.IngestStatus())
}

// Stats returns knowledge base statistics.
func (h *KnowledgeHandler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context())
	if err != nil {
		httputils.WriteError(c, http.StatusInternalServerError, err.Error())
		return
	}
	httputils.WriteSuccess(c, stats)
}

// Healthz reports service liveness.
func (h *KnowledgeHandler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Metrics exposes engine metrics in Prometheus text format.
func (h *KnowledgeHandler) Metrics(c *gin.Context) {
	c.Data(http.StatusOK, "text/plain; version=0.0.4; charset=utf-8",
		[]byte(metrics.GetEngineMetrics().Export("knowledge", "engine")))
}
