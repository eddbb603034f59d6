// Package api exposes the intelligence service over HTTP
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/estatehub/intelligence/internal/agent"
	"github.com/estatehub/intelligence/internal/embedding"
	"github.com/estatehub/intelligence/internal/indexer"
	"github.com/estatehub/intelligence/internal/middleware"
	"github.com/estatehub/intelligence/internal/models"
	"github.com/estatehub/intelligence/internal/observability"
	"github.com/estatehub/intelligence/internal/orchestrator"
	"github.com/estatehub/intelligence/internal/repository"
	"github.com/estatehub/intelligence/internal/service"
)

// IntelligenceService is what the handlers need from the service layer
type IntelligenceService interface {
	Search(ctx context.Context, tenantID, query string, limit int) (*service.SearchResult, error)
	Status(ctx context.Context, tenantID string) (*service.IndexStatus, error)
	Reindex(ctx context.Context, tenantID string) (*indexer.ReindexResult, error)
	IndexProperty(ctx context.Context, tenantID, propertyID string) error
	Command(ctx context.Context, tenantID, command string, mode models.CommandMode) (*models.CommandResult, error)
	Relax(ctx context.Context, tenantID, command string) (*orchestrator.Answer, error)
}

// Handler serves the intelligence API
type Handler struct {
	service IntelligenceService
	logger  observability.Logger
}

// NewHandler creates an API handler
func NewHandler(svc IntelligenceService, logger observability.Logger) *Handler {
	return &Handler{
		service: svc,
		logger:  logger.WithPrefix("api"),
	}
}

// RegisterRoutes registers all intelligence endpoints on the router group
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	searchGroup := router.Group("/search")
	{
		searchGroup.GET("/intelligent", h.intelligentSearch)
		searchGroup.GET("/status", h.searchStatus)
		searchGroup.POST("/reindex", h.reindex)
		searchGroup.POST("/index/:id", h.indexProperty)
	}

	agentGroup := router.Group("/agent")
	{
		agentGroup.POST("/command", h.agentCommand)
	}

	relaxGroup := router.Group("/relax")
	{
		relaxGroup.POST("/execute", h.relaxExecute)
	}

	router.GET("/health", h.health)
}

type commandRequest struct {
	Command string `json:"command" binding:"required"`
	Mode    string `json:"mode"`
}

type relaxRequest struct {
	Command string `json:"command" binding:"required"`
}

// intelligentSearch handles GET /api/search/intelligent?q=...&limit=...
func (h *Handler) intelligentSearch(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		respondError(c, http.StatusBadRequest, "query parameter q is required")
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			respondError(c, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	tenantID := middleware.TenantID(c)

	result, err := h.service.Search(c.Request.Context(), tenantID, query, limit)
	if err != nil {
		h.respondServiceError(c, tenantID, err)
		return
	}

	response := gin.H{
		"success": true,
		"results": result.Results,
	}
	if result.CandidateCount == 0 {
		response["message"] = "No properties indexed yet. Trigger a reindex to enable semantic search."
	}

	c.JSON(http.StatusOK, response)
}

// searchStatus handles GET /api/search/status, reporting how many properties
// are indexed for the tenant
func (h *Handler) searchStatus(c *gin.Context) {
	tenantID := middleware.TenantID(c)

	status, err := h.service.Status(c.Request.Context(), tenantID)
	if err != nil {
		h.respondServiceError(c, tenantID, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    status,
	})
}

// reindex handles POST /api/search/reindex
func (h *Handler) reindex(c *gin.Context) {
	tenantID := middleware.TenantID(c)

	result, err := h.service.Reindex(c.Request.Context(), tenantID)
	if err != nil {
		h.respondServiceError(c, tenantID, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    result,
	})
}

// indexProperty handles POST /api/search/index/:id for single-property
// indexing after a CRUD-layer change
func (h *Handler) indexProperty(c *gin.Context) {
	tenantID := middleware.TenantID(c)
	propertyID := c.Param("id")

	if err := h.service.IndexProperty(c.Request.Context(), tenantID, propertyID); err != nil {
		h.respondServiceError(c, tenantID, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"property_id": propertyID,
			"indexed":     true,
		},
	})
}

// agentCommand handles POST /api/agent/command
func (h *Handler) agentCommand(c *gin.Context) {
	var req commandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "command is required")
		return
	}

	mode := models.CommandMode(req.Mode)
	if mode != models.CommandModeWrite {
		mode = models.CommandModeRead
	}

	tenantID := middleware.TenantID(c)

	result, err := h.service.Command(c.Request.Context(), tenantID, req.Command, mode)
	if err != nil {
		h.respondServiceError(c, tenantID, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    result,
	})
}

// relaxExecute handles POST /api/relax/execute
func (h *Handler) relaxExecute(c *gin.Context) {
	var req relaxRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "command is required")
		return
	}

	tenantID := middleware.TenantID(c)

	answer, err := h.service.Relax(c.Request.Context(), tenantID, req.Command)
	if err != nil {
		h.respondServiceError(c, tenantID, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    answer,
	})
}

// health handles GET /api/health
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "intelligence",
	})
}

// respondServiceError maps service-layer errors onto HTTP statuses. Sentinel
// checks run before generic fallbacks so degraded providers surface as 503
// rather than 500.
func (h *Handler) respondServiceError(c *gin.Context, tenantID string, err error) {
	h.logger.Error("Request failed", map[string]interface{}{
		"tenant_id": tenantID,
		"path":      c.FullPath(),
		"error":     err.Error(),
	})

	switch {
	case errors.Is(err, embedding.ErrProviderUnavailable), errors.Is(err, agent.ErrProviderUnavailable):
		respondError(c, http.StatusServiceUnavailable, "upstream provider unavailable")
	case errors.Is(err, embedding.ErrProvider):
		respondError(c, http.StatusServiceUnavailable, "embedding provider error")
	case errors.Is(err, agent.ErrUnsafeStatement):
		respondError(c, http.StatusBadRequest, "command rejected: generated statement failed validation")
	case errors.Is(err, agent.ErrExecution):
		respondError(c, http.StatusUnprocessableEntity, "statement execution failed")
	case errors.Is(err, repository.ErrNotFound):
		respondError(c, http.StatusNotFound, "not found")
	default:
		respondError(c, http.StatusInternalServerError, "internal error")
	}
}

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{
		"success": false,
		"error":   message,
	})
}
