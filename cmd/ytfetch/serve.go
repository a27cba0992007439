package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yourusername/ytfetch-go/api"
	"github.com/yourusername/ytfetch-go/internal/app"
	"github.com/yourusername/ytfetch-go/internal/infrastructure"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the download queue with an HTTP API",
	Long: `Starts a long-running process that accepts download requests over
HTTP and works through them in the background. Progress bars are
disabled; state is observable through the API and the history store.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	repo, err := infrastructure.NewSQLiteDownloadRepository(cfg.Download.HistoryPath)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	defer repo.Close()

	orch := buildOrchestrator(cfg, log, repo, app.NewNopReporter())
	queueMgr := app.NewQueueManager(repo, orch, &cfg.Queue, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := queueMgr.Start(ctx); err != nil {
		return err
	}

	router := api.SetupRouter(queueMgr, repo, &cfg.Download, log)
	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		queueMgr.Stop()
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP shutdown failed", zap.Error(err))
	}

	return queueMgr.Stop()
}
