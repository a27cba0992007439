package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yourusername/ytfetch-go/internal/app"
	"github.com/yourusername/ytfetch-go/internal/domain"
	"github.com/yourusername/ytfetch-go/internal/infrastructure"
	"github.com/yourusername/ytfetch-go/pkg/logger"
)

var (
	flagInfo        bool
	flagConfig      string
	flagOutput      string
	flagQuality     int
	flagConcurrency int
	flagChunkSize   string
	flagRetries     int

	rootCmd = &cobra.Command{
		Use:   "ytfetch [flags] URL [URL...]",
		Short: "Concurrent YouTube downloader",
		Long: `ytfetch downloads YouTube videos with chunked, concurrent transfers.
Streams are resolved with yt-dlp, fetched in parallel ranges and muxed
with ffmpeg. Quality is capped at 1080p by default.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runDownload,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file path")
	rootCmd.Flags().BoolVar(&flagInfo, "info", false, "Show video metadata without downloading")
	rootCmd.Flags().StringVarP(&flagOutput, "output", "o", "", "Output directory (default ./downloads)")
	rootCmd.Flags().IntVarP(&flagQuality, "quality", "q", 0, "Maximum video height in pixels (default 1080)")
	rootCmd.Flags().IntVarP(&flagConcurrency, "concurrency", "c", 0, "Concurrent chunk transfers (default 4)")
	rootCmd.Flags().StringVar(&flagChunkSize, "chunk-size", "", "Chunk size, e.g. 10MB")
	rootCmd.Flags().IntVar(&flagRetries, "retries", 0, "Retries per failed request (default 10)")

	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig merges the config file with command-line overrides.
func loadConfig(cmd *cobra.Command) (*domain.Config, error) {
	cfg, err := app.LoadConfig(flagConfig)
	if err != nil {
		return nil, err
	}

	if cmd.Flags().Changed("output") {
		cfg.Download.OutputDir = flagOutput
	}
	if cmd.Flags().Changed("quality") {
		cfg.Download.MaxHeight = flagQuality
	}
	if cmd.Flags().Changed("concurrency") {
		cfg.Download.Concurrency = flagConcurrency
	}
	if cmd.Flags().Changed("retries") {
		cfg.Download.MaxRetries = flagRetries
	}
	if cmd.Flags().Changed("chunk-size") {
		size, err := humanize.ParseBytes(flagChunkSize)
		if err != nil {
			return nil, fmt.Errorf("invalid chunk size %q: %w", flagChunkSize, err)
		}
		cfg.Download.ChunkSize = int64(size)
	}
	return cfg, nil
}

func newLogger(cfg *domain.Config) (*zap.Logger, error) {
	return logger.New(logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		OutputPath: cfg.Logging.OutputPath,
	})
}

// buildResolvers returns the resolver chain: yt-dlp first, native library
// as fallback when enabled.
func buildResolvers(cfg *domain.Config, log *zap.Logger) []domain.Resolver {
	resolvers := []domain.Resolver{
		infrastructure.NewYTDLPResolver(&cfg.Resolver, log),
	}
	if cfg.Resolver.NativeFallback {
		resolvers = append(resolvers, infrastructure.NewNativeResolver(log))
	}
	return resolvers
}

func buildOrchestrator(cfg *domain.Config, log *zap.Logger, repo domain.DownloadRepository, reporter app.ProgressReporter) *app.Orchestrator {
	orch := app.NewOrchestrator(
		buildResolvers(cfg, log),
		infrastructure.NewHTTPChunkFetcher(&cfg.Download),
		infrastructure.NewFFmpegMuxer(&cfg.Mux, log),
		repo,
		reporter,
		&cfg.Download,
		log,
	)
	if cfg.Notification.Enabled {
		orch = orch.WithNotifier(infrastructure.NewNotificationService(&cfg.Notification, log))
	}
	return orch
}

func runDownload(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if flagInfo {
		orch := buildOrchestrator(cfg, log, nil, app.NewNopReporter())
		return runInfo(ctx, orch, args)
	}

	repo, err := infrastructure.NewSQLiteDownloadRepository(cfg.Download.HistoryPath)
	if err != nil {
		// History is best effort; a broken database must not block downloads.
		log.Warn("history database unavailable", zap.Error(err))
		repo = nil
	} else {
		defer repo.Close()
	}

	var repoIface domain.DownloadRepository
	if repo != nil {
		repoIface = repo
	}

	orch := buildOrchestrator(cfg, log, repoIface, app.NewBarReporter())
	start := time.Now()
	results := orch.Run(ctx, args)

	return printSummary(results, time.Since(start))
}

func runInfo(ctx context.Context, orch *app.Orchestrator, urls []string) error {
	results := orch.Info(ctx, urls)

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "%s: %v\n", r.URL, r.Err)
			continue
		}
		printInfo(r.Info)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d lookups failed", failed, len(results))
	}
	return nil
}

func printInfo(info *domain.MediaInfo) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Title:\t%s\n", info.Title)
	fmt.Fprintf(w, "Uploader:\t%s\n", info.Uploader)
	fmt.Fprintf(w, "Duration:\t%s\n", formatDuration(info.Duration))
	fmt.Fprintf(w, "Views:\t%s\n", humanize.Comma(info.ViewCount))
	fmt.Fprintf(w, "Upload date:\t%s\n", info.UploadDate)
	fmt.Fprintf(w, "Formats:\t%d\n", len(info.Formats))
	w.Flush()
	fmt.Println()
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	s := (d % time.Minute) / time.Second
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// printSummary reports the per-video outcomes and returns an error when
// any download failed, which maps to a non-zero exit code.
func printSummary(results []domain.DownloadResult, elapsed time.Duration) error {
	succeeded, failed := 0, 0
	var totalBytes int64
	for _, r := range results {
		if r.Succeeded() {
			succeeded++
			totalBytes += r.Download.BytesTotal
			fmt.Printf("done  %s (%s in %s)\n",
				r.Download.Title,
				humanize.Bytes(uint64(r.Download.BytesTotal)),
				r.Elapsed.Round(time.Second))
		} else {
			failed++
			fmt.Printf("fail  %s: %v\n", r.Download.URL, r.Err)
		}
	}

	rate := float64(totalBytes)
	if secs := elapsed.Seconds(); secs > 0 {
		rate = float64(totalBytes) / secs
	}
	fmt.Printf("\n%d succeeded, %d failed, %s in %s (%s/s)\n",
		succeeded, failed,
		humanize.Bytes(uint64(totalBytes)),
		elapsed.Round(time.Second),
		humanize.Bytes(uint64(rate)))

	if failed > 0 {
		return fmt.Errorf("%d of %d downloads failed", failed, len(results))
	}
	return nil
}
