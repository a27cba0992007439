package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, 1080, cfg.Download.MaxHeight)
	assert.Equal(t, int64(10*1024*1024), cfg.Download.ChunkSize)
	assert.Equal(t, 4, cfg.Download.Concurrency)
	assert.Equal(t, 10, cfg.Download.MaxRetries)
	assert.Equal(t, "yt-dlp", cfg.Resolver.YTDLPBinary)
	assert.Equal(t, "ffmpeg", cfg.Mux.FFmpegBinary)
	assert.False(t, cfg.Notification.Enabled)
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
download:
  output_dir: /tmp/videos
  max_height: 720
  concurrency: 8
resolver:
  ytdlp_binary: /opt/bin/yt-dlp
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/videos", cfg.Download.OutputDir)
	assert.Equal(t, 720, cfg.Download.MaxHeight)
	assert.Equal(t, 8, cfg.Download.Concurrency)
	assert.Equal(t, "/opt/bin/yt-dlp", cfg.Resolver.YTDLPBinary)
	assert.Equal(t, "debug", cfg.Logging.Level)

	// Untouched keys keep their defaults.
	assert.Equal(t, 10, cfg.Download.MaxRetries)
	assert.Equal(t, "ffmpeg", cfg.Mux.FFmpegBinary)
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
	}{
		{"bad port", "server:\n  port: 0\n"},
		{"negative retries", "download:\n  max_retries: -1\n"},
		{"zero concurrency", "download:\n  concurrency: 0\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))
			_, err := LoadConfig(path)
			assert.Error(t, err)
		})
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "videos"), expandPath("~/videos"))

	t.Setenv("YTFETCH_TEST_DIR", "/data")
	assert.Equal(t, "/data/out", expandPath("$YTFETCH_TEST_DIR/out"))
}

func TestSaveConfigRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.yaml")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	cfg.Download.MaxHeight = 480
	cfg.Queue.CheckInterval = 2 * time.Second

	require.NoError(t, SaveConfig(cfg, path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 480, loaded.Download.MaxHeight)
	assert.Equal(t, 2*time.Second, loaded.Queue.CheckInterval)
}
