package domain

import (
	"time"

	"github.com/google/uuid"
)

// DownloadStatus represents the current status of a download
type DownloadStatus string

const (
	StatusQueued     DownloadStatus = "queued"
	StatusProcessing DownloadStatus = "processing"
	StatusCompleted  DownloadStatus = "completed"
	StatusFailed     DownloadStatus = "failed"
)

// Download represents one requested video. The request fields (URL,
// OutputDir, QualityCap, ChunkSize, Concurrency, MaxRetries) are fixed at
// creation; only the lifecycle fields change afterwards.
type Download struct {
	ID           string         `json:"id" gorm:"primaryKey"`
	URL          string         `json:"url" gorm:"not null"`
	Status       DownloadStatus `json:"status" gorm:"not null;index"`
	OutputDir    string         `json:"output_dir"`
	QualityCap   int            `json:"quality_cap"`
	ChunkSize    int64          `json:"chunk_size"`
	Concurrency  int            `json:"concurrency"`
	MaxRetries   int            `json:"max_retries"`
	RetryCount   int            `json:"retry_count" gorm:"default:0"`
	ErrorMessage string         `json:"error_message,omitempty"`
	FilePath     string         `json:"file_path,omitempty"`
	Title        string         `json:"title,omitempty"`
	BytesTotal   int64          `json:"bytes_total,omitempty"`
	CreatedAt    time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt    time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	StartedAt    *time.Time     `json:"started_at,omitempty"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
}

// NewDownload creates a new download for a URL with the shared batch options.
func NewDownload(url string, cfg *DownloadConfig) *Download {
	return &Download{
		ID:          uuid.New().String(),
		URL:         url,
		Status:      StatusQueued,
		OutputDir:   cfg.OutputDir,
		QualityCap:  cfg.MaxHeight,
		ChunkSize:   cfg.ChunkSize,
		Concurrency: cfg.Concurrency,
		MaxRetries:  cfg.MaxRetries,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
}

// MarkProcessing marks the download as processing
func (d *Download) MarkProcessing() {
	d.Status = StatusProcessing
	now := time.Now()
	d.StartedAt = &now
	d.UpdatedAt = now
}

// MarkCompleted marks the download as completed
func (d *Download) MarkCompleted(filePath string) {
	d.Status = StatusCompleted
	d.FilePath = filePath
	now := time.Now()
	d.CompletedAt = &now
	d.UpdatedAt = now
}

// MarkFailed marks the download as failed
func (d *Download) MarkFailed(err error) {
	d.Status = StatusFailed
	d.ErrorMessage = err.Error()
	now := time.Now()
	d.CompletedAt = &now
	d.UpdatedAt = now
}

// IncrementRetry increments the retry count
func (d *Download) IncrementRetry() {
	d.RetryCount++
	d.UpdatedAt = time.Now()
}

// IsTerminal checks if the download reached a final state
func (d *Download) IsTerminal() bool {
	return d.Status == StatusCompleted || d.Status == StatusFailed
}

// IsPending checks if the download is waiting to be processed
func (d *Download) IsPending() bool {
	return d.Status == StatusQueued
}

// Elapsed returns the wall time between start and completion. Zero until
// the download reaches a terminal state.
func (d *Download) Elapsed() time.Duration {
	if d.StartedAt == nil || d.CompletedAt == nil {
		return 0
	}
	return d.CompletedAt.Sub(*d.StartedAt)
}

// DownloadResult is the per-request outcome handed back to the caller.
// Exactly one result is produced per download, success or not.
type DownloadResult struct {
	Download *Download
	Err      error
	Elapsed  time.Duration
}

// Succeeded reports whether the request completed with a file on disk.
func (r DownloadResult) Succeeded() bool {
	return r.Err == nil && r.Download != nil && r.Download.Status == StatusCompleted
}

// ProgressSample is an ephemeral snapshot of one download's transfer state.
// It is owned by the progress display and never persisted.
type ProgressSample struct {
	DownloadID string  `json:"download_id"`
	BytesDone  int64   `json:"bytes_done"`
	BytesTotal int64   `json:"bytes_total"`
	Rate       float64 `json:"rate"` // bytes per second
}

// Percent returns completion in [0,100], or 0 when the total is unknown.
func (s ProgressSample) Percent() float64 {
	if s.BytesTotal <= 0 {
		return 0
	}
	return float64(s.BytesDone) / float64(s.BytesTotal) * 100
}
