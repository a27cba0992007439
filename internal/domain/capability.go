package domain

import "context"

// Resolver turns a video page URL into media metadata and stream formats.
// Implementations wrap the yt-dlp binary or a native extraction library;
// the orchestrator never looks behind this interface.
type Resolver interface {
	Resolve(ctx context.Context, url string) (*MediaInfo, error)

	// Name identifies the implementation in logs and failure summaries.
	Name() string
}

// ProgressFunc receives the number of bytes transferred since the last
// call. Implementations must be safe for concurrent use.
type ProgressFunc func(n int64)

// ChunkFetcher transfers stream bytes over HTTP.
type ChunkFetcher interface {
	// Probe returns the stream size in bytes and whether the server
	// honors Range requests.
	Probe(ctx context.Context, url string) (size int64, ranged bool, err error)

	// FetchChunk downloads the inclusive byte range [start,end] to dest.
	FetchChunk(ctx context.Context, url string, start, end int64, dest string, progress ProgressFunc) error

	// FetchAll downloads the whole stream to dest in a single request,
	// used when ranges are unsupported or the file is small. Returns the
	// number of bytes written.
	FetchAll(ctx context.Context, url, dest string, progress ProgressFunc) (int64, error)
}

// Muxer combines separate video and audio elementary streams into one
// container file.
type Muxer interface {
	Mux(ctx context.Context, videoPath, audioPath, outPath string) error
}

// Notifier reports batch completion to the user outside the terminal.
type Notifier interface {
	NotifyBatchFinished(succeeded, failed int)
}
