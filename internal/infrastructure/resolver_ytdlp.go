package infrastructure

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/yourusername/ytfetch-go/internal/domain"
	"go.uber.org/zap"
)

// YTDLPResolver resolves video metadata and stream URLs by shelling out to
// the yt-dlp binary with a JSON dump. Extraction itself stays opaque.
type YTDLPResolver struct {
	config *domain.ResolverConfig
	logger *zap.Logger
}

// NewYTDLPResolver creates a new yt-dlp backed resolver
func NewYTDLPResolver(config *domain.ResolverConfig, logger *zap.Logger) *YTDLPResolver {
	return &YTDLPResolver{
		config: config,
		logger: logger,
	}
}

// Name identifies the resolver in logs and failure summaries
func (r *YTDLPResolver) Name() string {
	return "yt-dlp"
}

// Resolve runs `yt-dlp -J <url>` and maps the dump to MediaInfo.
func (r *YTDLPResolver) Resolve(ctx context.Context, url string) (*domain.MediaInfo, error) {
	if r.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.Timeout)
		defer cancel()
	}

	args := []string{"-J", "--no-warnings", "--no-playlist", url}

	cmd := exec.CommandContext(ctx, r.config.YTDLPBinary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	r.logger.Debug("Resolving via yt-dlp",
		zap.String("url", url),
		zap.String("cmd", ShellEscapeCommand(r.config.YTDLPBinary, args...)))

	if err := cmd.Run(); err != nil {
		return nil, classifyResolveError(err, stderr.String())
	}

	info, err := parseInfoJSON(stdout.Bytes())
	if err != nil {
		return nil, fmt.Errorf("parse yt-dlp output: %w", err)
	}
	return info, nil
}

// classifyResolveError decides whether a yt-dlp failure is worth retrying.
// Network-looking failures are transient; extractor refusals (geo blocks,
// removed videos, unsupported URLs) are permanent.
func classifyResolveError(err error, stderr string) error {
	if errors.Is(err, exec.ErrNotFound) {
		return fmt.Errorf("yt-dlp binary not found: %w", err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.Transient(fmt.Errorf("yt-dlp timed out: %w", err))
	}

	msg := firstErrorLine(stderr)
	wrapped := fmt.Errorf("yt-dlp: %s: %w", msg, err)

	lower := strings.ToLower(stderr)
	for _, marker := range []string{
		"timed out",
		"timeout",
		"connection reset",
		"connection refused",
		"temporary failure",
		"unable to download webpage",
		"http error 5",
		"http error 429",
	} {
		if strings.Contains(lower, marker) {
			return domain.Transient(wrapped)
		}
	}
	return wrapped
}

// firstErrorLine pulls the first ERROR: line out of yt-dlp's stderr, or the
// first non-empty line when there is none.
func firstErrorLine(stderr string) string {
	var fallback string
	for _, line := range strings.Split(stderr, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "ERROR:") {
			return strings.TrimSpace(strings.TrimPrefix(line, "ERROR:"))
		}
		if fallback == "" {
			fallback = line
		}
	}
	if fallback == "" {
		return "unknown error"
	}
	return fallback
}

// ytdlpInfo mirrors the subset of yt-dlp's -J dump this tool reads.
type ytdlpInfo struct {
	ID         string        `json:"id"`
	Title      string        `json:"title"`
	Uploader   string        `json:"uploader"`
	WebpageURL string        `json:"webpage_url"`
	UploadDate string        `json:"upload_date"`
	Duration   float64       `json:"duration"`
	ViewCount  int64         `json:"view_count"`
	Formats    []ytdlpFormat `json:"formats"`
}

type ytdlpFormat struct {
	FormatID       string  `json:"format_id"`
	Ext            string  `json:"ext"`
	Width          int     `json:"width"`
	Height         int     `json:"height"`
	VCodec         string  `json:"vcodec"`
	ACodec         string  `json:"acodec"`
	TBR            float64 `json:"tbr"`
	Filesize       int64   `json:"filesize"`
	FilesizeApprox int64   `json:"filesize_approx"`
	Protocol       string  `json:"protocol"`
	URL            string  `json:"url"`
}

// parseInfoJSON maps a -J dump to MediaInfo. Formats that cannot be
// fetched with plain ranged HTTP (HLS/DASH manifests, storyboards) are
// dropped here so stream selection only sees candidates it can use.
func parseInfoJSON(data []byte) (*domain.MediaInfo, error) {
	var raw ytdlpInfo
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	if raw.ID == "" {
		return nil, fmt.Errorf("dump has no video id")
	}

	info := &domain.MediaInfo{
		ID:         raw.ID,
		Title:      raw.Title,
		Uploader:   raw.Uploader,
		WebpageURL: raw.WebpageURL,
		UploadDate: raw.UploadDate,
		Duration:   time.Duration(raw.Duration * float64(time.Second)),
		ViewCount:  raw.ViewCount,
	}

	for _, f := range raw.Formats {
		if f.Protocol != "" && f.Protocol != "https" && f.Protocol != "http" {
			continue
		}
		size := f.Filesize
		if size == 0 {
			size = f.FilesizeApprox
		}
		info.Formats = append(info.Formats, domain.StreamFormat{
			ID:       f.FormatID,
			Ext:      f.Ext,
			Width:    f.Width,
			Height:   f.Height,
			VCodec:   f.VCodec,
			ACodec:   f.ACodec,
			Bitrate:  f.TBR,
			Filesize: size,
			URL:      f.URL,
		})
	}

	return info, nil
}
