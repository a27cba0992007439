package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yourusername/ytfetch-go/internal/domain"
)

// mockRepo implements domain.DownloadRepository for testing
type mockRepo struct {
	mu        sync.Mutex
	downloads map[string]*domain.Download
}

func newMockRepo() *mockRepo {
	return &mockRepo{downloads: make(map[string]*domain.Download)}
}

func (m *mockRepo) Create(d *domain.Download) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.downloads[d.ID] = d
	return nil
}

func (m *mockRepo) Update(d *domain.Download) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.downloads[d.ID] = d
	return nil
}

func (m *mockRepo) FindByID(id string) (*domain.Download, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.downloads[id], nil
}

func (m *mockRepo) FindByStatus(status domain.DownloadStatus) ([]*domain.Download, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Download
	for _, d := range m.downloads {
		if d.Status == status {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *mockRepo) FindPending() ([]*domain.Download, error) {
	return m.FindByStatus(domain.StatusQueued)
}

func (m *mockRepo) FindAll(filters map[string]interface{}) ([]*domain.Download, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Download
	for _, d := range m.downloads {
		out = append(out, d)
	}
	return out, nil
}

func (m *mockRepo) Count() (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.downloads)), nil
}

func (m *mockRepo) GetStats() (*domain.DownloadStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := &domain.DownloadStats{Total: int64(len(m.downloads))}
	for _, d := range m.downloads {
		switch d.Status {
		case domain.StatusQueued:
			stats.Queued++
		case domain.StatusProcessing:
			stats.Processing++
		case domain.StatusCompleted:
			stats.Completed++
		case domain.StatusFailed:
			stats.Failed++
		}
	}
	return stats, nil
}

// mockResolver returns canned metadata, optionally failing per URL.
type mockResolver struct {
	name string
	info *domain.MediaInfo
	errs map[string]error

	mu    sync.Mutex
	calls int
}

func (r *mockResolver) Resolve(ctx context.Context, url string) (*domain.MediaInfo, error) {
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()
	if err, ok := r.errs[url]; ok {
		return nil, err
	}
	info := *r.info
	return &info, nil
}

func (r *mockResolver) Name() string { return r.name }

// mockFetcher serves a fixed payload from memory. failures maps a range
// start offset to the number of transient failures to inject before
// succeeding.
type mockFetcher struct {
	payload []byte
	ranged  bool

	mu         sync.Mutex
	failures   map[int64]int
	chunkCalls int
}

func (f *mockFetcher) Probe(ctx context.Context, url string) (int64, bool, error) {
	return int64(len(f.payload)), f.ranged, nil
}

func (f *mockFetcher) FetchChunk(ctx context.Context, url string, start, end int64, dest string, progress domain.ProgressFunc) error {
	f.mu.Lock()
	f.chunkCalls++
	if n, ok := f.failures[start]; ok && n > 0 {
		f.failures[start] = n - 1
		f.mu.Unlock()
		return domain.Transient(fmt.Errorf("injected failure at %d", start))
	}
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if progress != nil {
		progress(end - start + 1)
	}
	return os.WriteFile(dest, f.payload[start:end+1], 0o644)
}

func (f *mockFetcher) FetchAll(ctx context.Context, url, dest string, progress domain.ProgressFunc) (int64, error) {
	if progress != nil {
		progress(int64(len(f.payload)))
	}
	return int64(len(f.payload)), os.WriteFile(dest, f.payload, 0o644)
}

// mockMuxer concatenates the two inputs into outPath.
type mockMuxer struct {
	mu    sync.Mutex
	calls int
}

func (m *mockMuxer) Mux(ctx context.Context, videoPath, audioPath, outPath string) error {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	video, err := os.ReadFile(videoPath)
	if err != nil {
		return err
	}
	audio, err := os.ReadFile(audioPath)
	if err != nil {
		return err
	}
	return os.WriteFile(outPath, append(video, audio...), 0o644)
}

func progressiveInfo(title string) *domain.MediaInfo {
	return &domain.MediaInfo{
		ID:    "vid1",
		Title: title,
		Formats: []domain.StreamFormat{
			{ID: "22", Ext: "mp4", Height: 720, VCodec: "avc1", ACodec: "mp4a", URL: "https://cdn/22"},
		},
	}
}

func splitInfo(title string) *domain.MediaInfo {
	return &domain.MediaInfo{
		ID:    "vid2",
		Title: title,
		Formats: []domain.StreamFormat{
			{ID: "137", Ext: "mp4", Height: 1080, VCodec: "avc1", ACodec: "none", URL: "https://cdn/137"},
			{ID: "140", Ext: "m4a", VCodec: "none", ACodec: "mp4a", URL: "https://cdn/140"},
		},
	}
}

func testConfig(t *testing.T) *domain.DownloadConfig {
	return &domain.DownloadConfig{
		OutputDir:          t.TempDir(),
		MaxHeight:          1080,
		ChunkSize:          8,
		Concurrency:        4,
		MaxRetries:         3,
		SmallFileThreshold: 4,
	}
}

func newTestOrchestrator(cfg *domain.DownloadConfig, resolver domain.Resolver, fetcher domain.ChunkFetcher, muxer domain.Muxer, repo domain.DownloadRepository) *Orchestrator {
	o := NewOrchestrator([]domain.Resolver{resolver}, fetcher, muxer, repo, NewNopReporter(), cfg, zap.NewNop())
	o.backoff = func(int) time.Duration { return 0 }
	return o
}

func TestRunOneResultPerURL(t *testing.T) {
	cfg := testConfig(t)
	resolver := &mockResolver{
		name: "mock",
		info: progressiveInfo("First Video"),
		errs: map[string]error{"https://youtu.be/bad": errors.New("video unavailable")},
	}
	fetcher := &mockFetcher{payload: []byte("0123456789abcdef0123"), ranged: true}
	repo := newMockRepo()

	o := newTestOrchestrator(cfg, resolver, fetcher, &mockMuxer{}, repo)
	urls := []string{"https://youtu.be/ok1", "https://youtu.be/bad", "https://youtu.be/ok2"}
	results := o.Run(context.Background(), urls)

	require.Len(t, results, len(urls))
	for i, r := range results {
		assert.Equal(t, urls[i], r.Download.URL, "results keep input order")
		require.NotNil(t, r.Download)
		assert.True(t, r.Download.IsTerminal())
	}
	assert.True(t, results[0].Succeeded())
	assert.False(t, results[1].Succeeded())
	assert.True(t, results[2].Succeeded(), "one bad URL must not sink the batch")

	count, _ := repo.Count()
	assert.Equal(t, int64(3), count)
}

func TestProcessChunkedDownload(t *testing.T) {
	cfg := testConfig(t)
	payload := []byte("the quick brown fox jumps over the lazy dog")
	fetcher := &mockFetcher{payload: payload, ranged: true}

	o := newTestOrchestrator(cfg, &mockResolver{name: "mock", info: progressiveInfo("Fox Clip")}, fetcher, &mockMuxer{}, nil)
	dl := domain.NewDownload("https://youtu.be/fox", cfg)
	require.NoError(t, o.Process(context.Background(), dl))

	assert.Equal(t, domain.StatusCompleted, dl.Status)
	assert.Equal(t, int64(len(payload)), dl.BytesTotal)

	got, err := os.ReadFile(filepath.Join(cfg.OutputDir, "Fox Clip", "Fox Clip.mp4"))
	require.NoError(t, err)
	assert.Equal(t, payload, got, "merged chunks must reassemble the stream byte for byte")

	// No leftover part files or temp dirs.
	entries, err := os.ReadDir(filepath.Join(cfg.OutputDir, "Fox Clip"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestProcessMuxesSplitStreams(t *testing.T) {
	cfg := testConfig(t)
	fetcher := &mockFetcher{payload: []byte("streambytes!"), ranged: true}
	muxer := &mockMuxer{}

	o := newTestOrchestrator(cfg, &mockResolver{name: "mock", info: splitInfo("Split Video")}, fetcher, muxer, nil)
	dl := domain.NewDownload("https://youtu.be/split", cfg)
	require.NoError(t, o.Process(context.Background(), dl))

	assert.Equal(t, 1, muxer.calls)
	assert.Equal(t, filepath.Join(cfg.OutputDir, "Split Video", "Split Video.mp4"), dl.FilePath)
	_, err := os.Stat(dl.FilePath)
	assert.NoError(t, err)
}

func TestProcessRetriesTransientChunk(t *testing.T) {
	cfg := testConfig(t)
	payload := []byte("0123456789abcdef0123456789abcdef")
	fetcher := &mockFetcher{
		payload:  payload,
		ranged:   true,
		failures: map[int64]int{8: 2},
	}

	o := newTestOrchestrator(cfg, &mockResolver{name: "mock", info: progressiveInfo("Retry Clip")}, fetcher, &mockMuxer{}, nil)
	dl := domain.NewDownload("https://youtu.be/retry", cfg)
	require.NoError(t, o.Process(context.Background(), dl))

	assert.Equal(t, domain.StatusCompleted, dl.Status)
	assert.Equal(t, 2, dl.RetryCount)

	got, err := os.ReadFile(dl.FilePath)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestProcessExhaustsRetries(t *testing.T) {
	cfg := testConfig(t)
	cfg.MaxRetries = 2
	fetcher := &mockFetcher{
		payload:  []byte("0123456789abcdef"),
		ranged:   true,
		failures: map[int64]int{0: 100},
	}

	o := newTestOrchestrator(cfg, &mockResolver{name: "mock", info: progressiveInfo("Doomed")}, fetcher, &mockMuxer{}, nil)
	dl := domain.NewDownload("https://youtu.be/doomed", cfg)
	err := o.Process(context.Background(), dl)

	require.Error(t, err)
	var exhausted *domain.RetriesExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 3, exhausted.Attempts, "MaxRetries retries on top of the first attempt")
	assert.False(t, domain.IsTransient(err))
	assert.Equal(t, domain.StatusFailed, dl.Status)
}

func TestProcessPermanentErrorNotRetried(t *testing.T) {
	cfg := testConfig(t)
	resolver := &mockResolver{
		name: "mock",
		info: progressiveInfo("x"),
		errs: map[string]error{"https://youtu.be/gone": errors.New("video unavailable")},
	}

	o := newTestOrchestrator(cfg, resolver, &mockFetcher{}, &mockMuxer{}, nil)
	dl := domain.NewDownload("https://youtu.be/gone", cfg)
	err := o.Process(context.Background(), dl)

	require.Error(t, err)
	assert.Equal(t, 1, resolver.calls, "permanent errors must not be retried")
	assert.Equal(t, 0, dl.RetryCount)
}

func TestProcessNoFormatUnderCap(t *testing.T) {
	cfg := testConfig(t)
	info := &domain.MediaInfo{
		Title: "4K Only",
		Formats: []domain.StreamFormat{
			{ID: "313", Ext: "webm", Height: 2160, VCodec: "vp9", ACodec: "none", URL: "https://cdn/313"},
		},
	}

	o := newTestOrchestrator(cfg, &mockResolver{name: "mock", info: info}, &mockFetcher{}, &mockMuxer{}, nil)
	dl := domain.NewDownload("https://youtu.be/4k", cfg)
	err := o.Process(context.Background(), dl)

	require.ErrorIs(t, err, domain.ErrNoUsableFormat)
	assert.Equal(t, domain.StatusFailed, dl.Status)
}

func TestResolverFallback(t *testing.T) {
	cfg := testConfig(t)
	primary := &mockResolver{
		name: "primary",
		errs: map[string]error{"https://youtu.be/v": errors.New("extractor broken")},
	}
	fallback := &mockResolver{name: "fallback", info: progressiveInfo("Rescued")}
	fetcher := &mockFetcher{payload: []byte("rescued bytes"), ranged: true}

	o := NewOrchestrator([]domain.Resolver{primary, fallback}, fetcher, &mockMuxer{}, nil, NewNopReporter(), cfg, zap.NewNop())
	o.backoff = func(int) time.Duration { return 0 }

	dl := domain.NewDownload("https://youtu.be/v", cfg)
	require.NoError(t, o.Process(context.Background(), dl))
	assert.Equal(t, "Rescued", dl.Title)
	assert.Equal(t, 1, fallback.calls)
}

func TestInfoWritesNoFiles(t *testing.T) {
	cfg := testConfig(t)
	o := newTestOrchestrator(cfg, &mockResolver{name: "mock", info: progressiveInfo("Peek")}, &mockFetcher{}, &mockMuxer{}, nil)

	results := o.Info(context.Background(), []string{"https://youtu.be/a", "https://youtu.be/b"})
	require.Len(t, results, 2)
	for _, r := range results {
		require.NoError(t, r.Err)
		assert.Equal(t, "Peek", r.Info.Title)
	}

	entries, err := os.ReadDir(cfg.OutputDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "info mode must not touch the filesystem")
}

// splitCauseFetcher fails one stream permanently and parks the other
// until it is cancelled.
type splitCauseFetcher struct {
	failURL string
	failErr error
	size    int64
}

func (f *splitCauseFetcher) Probe(ctx context.Context, url string) (int64, bool, error) {
	return f.size, true, nil
}

func (f *splitCauseFetcher) FetchChunk(ctx context.Context, url string, start, end int64, dest string, progress domain.ProgressFunc) error {
	if url == f.failURL {
		return f.failErr
	}
	<-ctx.Done()
	return ctx.Err()
}

func (f *splitCauseFetcher) FetchAll(ctx context.Context, url, dest string, progress domain.ProgressFunc) (int64, error) {
	return 0, fmt.Errorf("unexpected single-stream fetch of %s", url)
}

func TestFailureCauseNotMaskedByCancellation(t *testing.T) {
	cfg := testConfig(t)
	fetcher := &splitCauseFetcher{
		failURL: "https://cdn/140",
		failErr: errors.New("geo blocked: HTTP 403"),
		size:    8,
	}

	o := newTestOrchestrator(cfg, &mockResolver{name: "mock", info: splitInfo("Blocked Video")}, fetcher, &mockMuxer{}, nil)
	dl := domain.NewDownload("https://youtu.be/blocked", cfg)
	err := o.Process(context.Background(), dl)

	require.Error(t, err)
	assert.ErrorContains(t, err, "geo blocked",
		"the audio stream's failure is the reportable cause")
	assert.NotContains(t, err.Error(), "context canceled",
		"tearing down the sibling stream must not hide the cause")
	assert.Contains(t, dl.ErrorMessage, "geo blocked")
}

func TestFirstCause(t *testing.T) {
	cause := errors.New("boom")

	assert.NoError(t, firstCause(nil))
	assert.NoError(t, firstCause([]error{nil, nil}))
	assert.Equal(t, cause, firstCause([]error{context.Canceled, cause}))
	assert.Equal(t, context.Canceled, firstCause([]error{nil, context.Canceled}))
}

// gatedFetcher holds chunk completion until released.
type gatedFetcher struct {
	mockFetcher
	release chan struct{}
}

func (f *gatedFetcher) FetchChunk(ctx context.Context, url string, start, end int64, dest string, progress domain.ProgressFunc) error {
	select {
	case <-f.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	return f.mockFetcher.FetchChunk(ctx, url, start, end, dest, progress)
}

func TestProgressObservableWhileTransferring(t *testing.T) {
	cfg := testConfig(t)
	payload := []byte("0123456789abcdef")
	fetcher := &gatedFetcher{
		mockFetcher: mockFetcher{payload: payload, ranged: true},
		release:     make(chan struct{}),
	}

	o := newTestOrchestrator(cfg, &mockResolver{name: "mock", info: progressiveInfo("Live Clip")}, fetcher, &mockMuxer{}, nil)
	dl := domain.NewDownload("https://youtu.be/live", cfg)

	done := make(chan error, 1)
	go func() { done <- o.Process(context.Background(), dl) }()

	require.Eventually(t, func() bool {
		sample, ok := o.Progress(dl.ID)
		return ok && sample.DownloadID == dl.ID && sample.BytesTotal == int64(len(payload))
	}, 2*time.Second, 5*time.Millisecond, "snapshot should be observable mid transfer")

	close(fetcher.release)
	require.NoError(t, <-done)

	_, ok := o.Progress(dl.ID)
	assert.False(t, ok, "terminal downloads expose no live snapshot")
}

func TestBackoffDelay(t *testing.T) {
	assert.Equal(t, time.Second, BackoffDelay(0))
	assert.Equal(t, 2*time.Second, BackoffDelay(1))
	assert.Equal(t, 16*time.Second, BackoffDelay(4))
	assert.Equal(t, 30*time.Second, BackoffDelay(5))
	assert.Equal(t, 30*time.Second, BackoffDelay(100))
}
