package infrastructure

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"github.com/yourusername/ytfetch-go/internal/domain"
	"go.uber.org/zap"
)

// FFmpegMuxer combines video and audio elementary streams into one
// container by shelling out to ffmpeg with stream copy.
type FFmpegMuxer struct {
	config *domain.MuxConfig
	logger *zap.Logger
}

// NewFFmpegMuxer creates a new ffmpeg-backed muxer
func NewFFmpegMuxer(config *domain.MuxConfig, logger *zap.Logger) *FFmpegMuxer {
	return &FFmpegMuxer{
		config: config,
		logger: logger,
	}
}

// Mux writes outPath from the two stream files. No re-encoding.
func (m *FFmpegMuxer) Mux(ctx context.Context, videoPath, audioPath, outPath string) error {
	args := muxArgs(videoPath, audioPath, outPath)

	m.logger.Debug("Muxing streams",
		zap.String("out", outPath),
		zap.String("cmd", ShellEscapeCommand(m.config.FFmpegBinary, args...)))

	cmd := exec.CommandContext(ctx, m.config.FFmpegBinary, args...)
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	if err := cmd.Run(); err != nil {
		return &domain.MuxError{Output: tailLines(output.String(), 5), Err: err}
	}
	return nil
}

// muxArgs builds the ffmpeg invocation for a stream-copy mux.
func muxArgs(videoPath, audioPath, outPath string) []string {
	return []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", videoPath,
		"-i", audioPath,
		"-c", "copy",
		"-movflags", "+faststart",
		outPath,
	}
}

// tailLines keeps the last n non-empty lines of tool output for error
// reporting.
func tailLines(s string, n int) string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, strings.TrimSpace(line))
		}
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "; ")
}
