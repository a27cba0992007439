package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/ytfetch-go/internal/app"
	"github.com/yourusername/ytfetch-go/internal/domain"
)

// serviceVersion is reported by the health endpoints.
const serviceVersion = "0.1.0"

// HealthHandler reports liveness and readiness of serve mode: the queue
// processor and the history store behind it.
type HealthHandler struct {
	queueMgr *app.QueueManager
	repo     domain.DownloadRepository
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(queueMgr *app.QueueManager, repo domain.DownloadRepository) *HealthHandler {
	return &HealthHandler{
		queueMgr: queueMgr,
		repo:     repo,
	}
}

// HealthResponse represents a health check response
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version"`
	Queue   struct {
		Running bool `json:"running"`
	} `json:"queue"`
	History struct {
		Reachable bool  `json:"reachable"`
		Downloads int64 `json:"downloads"`
	} `json:"history"`
}

// Health handles GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	response := HealthResponse{
		Status:  "ok",
		Service: "ytfetch",
		Version: serviceVersion,
	}
	response.Queue.Running = h.queueMgr.IsRunning()
	if count, err := h.repo.Count(); err == nil {
		response.History.Reachable = true
		response.History.Downloads = count
	}

	c.JSON(http.StatusOK, response)
}

// Ready handles GET /ready
func (h *HealthHandler) Ready(c *gin.Context) {
	if !h.queueMgr.IsRunning() {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"reason": "queue processor not running",
		})
		return
	}
	if _, err := h.repo.Count(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"reason": "history store unreachable",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
