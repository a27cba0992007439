package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 1080, cfg.Download.MaxHeight)
	assert.Equal(t, 4, cfg.Download.Concurrency)
	assert.Equal(t, int64(10*1024*1024), cfg.Download.ChunkSize)
	assert.Equal(t, 10, cfg.Download.MaxRetries)
	assert.Equal(t, "./downloads", cfg.Download.OutputDir)
	assert.Equal(t, "yt-dlp", cfg.Resolver.YTDLPBinary)
	assert.Equal(t, "ffmpeg", cfg.Mux.FFmpegBinary)
	assert.False(t, cfg.Notification.Enabled)
}
