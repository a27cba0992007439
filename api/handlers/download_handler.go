package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/ytfetch-go/internal/app"
	"github.com/yourusername/ytfetch-go/internal/domain"
)

// DownloadHandler handles download-related HTTP requests
type DownloadHandler struct {
	queueMgr *app.QueueManager
	config   *domain.DownloadConfig
	logger   *zap.Logger
}

// NewDownloadHandler creates a new download handler
func NewDownloadHandler(queueMgr *app.QueueManager, config *domain.DownloadConfig, logger *zap.Logger) *DownloadHandler {
	return &DownloadHandler{
		queueMgr: queueMgr,
		config:   config,
		logger:   logger,
	}
}

// AddDownloadRequest represents a request to queue a download
type AddDownloadRequest struct {
	URL        string `json:"url" binding:"required"`
	QualityCap int    `json:"quality_cap,omitempty"`
}

// AddDownload handles POST /api/v1/downloads
func (h *DownloadHandler) AddDownload(c *gin.Context) {
	var req AddDownloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cfg := *h.config
	if req.QualityCap > 0 {
		cfg.MaxHeight = req.QualityCap
	}

	download, err := h.queueMgr.Enqueue(req.URL, &cfg)
	if err != nil {
		h.logger.Error("Failed to queue download", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, download)
}

// downloadDetail augments a persisted download with its live transfer
// snapshot while it is processing.
type downloadDetail struct {
	*domain.Download
	Progress *domain.ProgressSample `json:"progress,omitempty"`
}

// GetDownload handles GET /api/v1/downloads/:id
func (h *DownloadHandler) GetDownload(c *gin.Context) {
	id := c.Param("id")

	download, err := h.queueMgr.GetDownload(id)
	if err != nil || download == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "download not found"})
		return
	}

	detail := downloadDetail{Download: download}
	if sample, ok := h.queueMgr.Progress(id); ok {
		detail.Progress = &sample
	}

	c.JSON(http.StatusOK, detail)
}

// ListDownloads handles GET /api/v1/downloads
func (h *DownloadHandler) ListDownloads(c *gin.Context) {
	filters := make(map[string]interface{})

	if status := c.Query("status"); status != "" {
		filters["status"] = status
	}

	downloads, err := h.queueMgr.ListDownloads(filters)
	if err != nil {
		h.logger.Error("Failed to list downloads", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, downloads)
}

// GetStats handles GET /api/v1/downloads/stats
func (h *DownloadHandler) GetStats(c *gin.Context) {
	stats, err := h.queueMgr.GetStats()
	if err != nil {
		h.logger.Error("Failed to get stats", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, stats)
}
