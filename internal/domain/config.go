package domain

import "time"

// Config represents the application configuration
type Config struct {
	Download     DownloadConfig     `mapstructure:"download"`
	Resolver     ResolverConfig     `mapstructure:"resolver"`
	Mux          MuxConfig          `mapstructure:"mux"`
	Queue        QueueConfig        `mapstructure:"queue"`
	Server       ServerConfig       `mapstructure:"server"`
	Notification NotificationConfig `mapstructure:"notification"`
	Logging      LoggingConfig      `mapstructure:"logging"`
}

// DownloadConfig contains the per-batch transfer settings
type DownloadConfig struct {
	OutputDir          string        `mapstructure:"output_dir"`
	HistoryPath        string        `mapstructure:"history_path"`
	MaxHeight          int           `mapstructure:"max_height"`
	ChunkSize          int64         `mapstructure:"chunk_size"`
	Concurrency        int           `mapstructure:"concurrency"`
	MaxRetries         int           `mapstructure:"max_retries"`
	SmallFileThreshold int64         `mapstructure:"small_file_threshold"`
	RequestTimeout     time.Duration `mapstructure:"request_timeout"`
	UserAgent          string        `mapstructure:"user_agent"`
}

// ResolverConfig contains stream-extraction settings
type ResolverConfig struct {
	YTDLPBinary    string        `mapstructure:"ytdlp_binary"`
	Timeout        time.Duration `mapstructure:"timeout"`
	NativeFallback bool          `mapstructure:"native_fallback"`
}

// MuxConfig contains muxing settings
type MuxConfig struct {
	FFmpegBinary string `mapstructure:"ffmpeg_binary"`
}

// QueueConfig contains serve-mode queue settings
type QueueConfig struct {
	CheckInterval   time.Duration `mapstructure:"check_interval"`
	AutoExitOnEmpty bool          `mapstructure:"auto_exit_on_empty"`
	EmptyWaitTime   time.Duration `mapstructure:"empty_wait_time"`
}

// ServerConfig contains serve-mode HTTP settings
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// NotificationConfig contains desktop notification settings
type NotificationConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Method  string `mapstructure:"method"` // osascript, notify-send
}

// LoggingConfig contains logging-related configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, console
	OutputPath string `mapstructure:"output_path"` // stdout, stderr, or file path
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Download: DownloadConfig{
			OutputDir:          "./downloads",
			HistoryPath:        "./downloads/.ytfetch/history.db",
			MaxHeight:          1080,
			ChunkSize:          10 * 1024 * 1024,
			Concurrency:        4,
			MaxRetries:         10,
			SmallFileThreshold: 10 * 1024 * 1024,
			RequestTimeout:     30 * time.Second,
			UserAgent:          "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36",
		},
		Resolver: ResolverConfig{
			YTDLPBinary:    "yt-dlp",
			Timeout:        60 * time.Second,
			NativeFallback: true,
		},
		Mux: MuxConfig{
			FFmpegBinary: "ffmpeg",
		},
		Queue: QueueConfig{
			CheckInterval:   5 * time.Second,
			AutoExitOnEmpty: false,
			EmptyWaitTime:   5 * time.Minute,
		},
		Server: ServerConfig{
			Host: "localhost",
			Port: 8080,
		},
		Notification: NotificationConfig{
			Enabled: false,
			Method:  "notify-send",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			OutputPath: "stderr",
		},
	}
}
