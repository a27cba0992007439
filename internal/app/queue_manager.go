package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/ytfetch-go/internal/domain"
)

// QueueManager polls the history store for queued downloads and feeds them
// to the orchestrator. Used by serve mode, where requests arrive over the
// API instead of the command line.
type QueueManager struct {
	repo         domain.DownloadRepository
	orchestrator *Orchestrator
	config       *domain.QueueConfig
	logger       *zap.Logger

	mu       sync.RWMutex
	running  bool
	stopChan chan struct{}
	workerWg sync.WaitGroup
}

// NewQueueManager creates a new queue manager
func NewQueueManager(
	repo domain.DownloadRepository,
	orchestrator *Orchestrator,
	config *domain.QueueConfig,
	logger *zap.Logger,
) *QueueManager {
	return &QueueManager{
		repo:         repo,
		orchestrator: orchestrator,
		config:       config,
		logger:       logger,
		stopChan:     make(chan struct{}),
	}
}

// Start starts the queue processor
func (qm *QueueManager) Start(ctx context.Context) error {
	qm.mu.Lock()
	if qm.running {
		qm.mu.Unlock()
		return fmt.Errorf("queue manager already running")
	}
	qm.running = true
	qm.mu.Unlock()

	qm.logger.Info("queue processor started",
		zap.Duration("check_interval", qm.config.CheckInterval))

	qm.workerWg.Add(1)
	go qm.processQueue(ctx)

	return nil
}

// Stop stops the queue processor and waits for in-flight downloads.
func (qm *QueueManager) Stop() error {
	qm.mu.Lock()
	if !qm.running {
		qm.mu.Unlock()
		return fmt.Errorf("queue manager not running")
	}
	qm.running = false
	qm.mu.Unlock()

	close(qm.stopChan)
	qm.workerWg.Wait()
	qm.logger.Info("queue processor stopped")

	return nil
}

// IsRunning returns whether the queue manager is running
func (qm *QueueManager) IsRunning() bool {
	qm.mu.RLock()
	defer qm.mu.RUnlock()
	return qm.running
}

// Enqueue queues a URL for download and persists it.
func (qm *QueueManager) Enqueue(url string, cfg *domain.DownloadConfig) (*domain.Download, error) {
	download := domain.NewDownload(url, cfg)

	if err := qm.repo.Create(download); err != nil {
		return nil, fmt.Errorf("failed to create download: %w", err)
	}

	qm.logger.Info("download queued",
		zap.String("id", download.ID),
		zap.String("url", url))

	return download, nil
}

// GetDownload retrieves a download by ID
func (qm *QueueManager) GetDownload(id string) (*domain.Download, error) {
	return qm.repo.FindByID(id)
}

// ListDownloads lists all downloads with optional filters
func (qm *QueueManager) ListDownloads(filters map[string]interface{}) ([]*domain.Download, error) {
	return qm.repo.FindAll(filters)
}

// GetStats returns queue statistics
func (qm *QueueManager) GetStats() (*domain.DownloadStats, error) {
	return qm.repo.GetStats()
}

// Progress returns the live transfer snapshot of an in-flight download.
func (qm *QueueManager) Progress(id string) (domain.ProgressSample, bool) {
	return qm.orchestrator.Progress(id)
}

// processQueue polls for queued downloads until stopped. Each download is
// claimed (marked processing) before its goroutine is spawned, so the next
// tick never picks the same row twice.
func (qm *QueueManager) processQueue(ctx context.Context) {
	defer qm.workerWg.Done()

	ticker := time.NewTicker(qm.config.CheckInterval)
	defer ticker.Stop()

	emptyStartTime := time.Time{}

	for {
		select {
		case <-ctx.Done():
			qm.logger.Info("queue processor exiting", zap.String("reason", "context cancelled"))
			return
		case <-qm.stopChan:
			return
		case <-ticker.C:
			pending, err := qm.repo.FindPending()
			if err != nil {
				qm.logger.Error("failed to fetch pending downloads", zap.Error(err))
				continue
			}

			if len(pending) == 0 {
				if emptyStartTime.IsZero() {
					emptyStartTime = time.Now()
				} else if qm.config.AutoExitOnEmpty && time.Since(emptyStartTime) > qm.config.EmptyWaitTime {
					qm.logger.Info("queue processor exiting", zap.String("reason", "queue empty"))
					return
				}
				continue
			}

			emptyStartTime = time.Time{}

			for _, download := range pending {
				dl := download

				// Claim synchronously; chunk slots inside the
				// orchestrator bound the actual transfer concurrency.
				dl.MarkProcessing()
				if err := qm.repo.Update(dl); err != nil {
					qm.logger.Error("failed to claim download",
						zap.String("id", dl.ID), zap.Error(err))
					continue
				}

				qm.workerWg.Add(1)
				go func(download *domain.Download) {
					defer qm.workerWg.Done()

					if err := qm.orchestrator.Process(ctx, download); err != nil {
						qm.logger.Warn("queued download failed",
							zap.String("id", download.ID),
							zap.Error(err))
					}
				}(dl)
			}
		}
	}
}
