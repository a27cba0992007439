package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/ytfetch-go/internal/domain"
)

// Orchestrator drives the download pipeline: resolve, select streams,
// fetch chunks through the shared slot pool, merge and mux. One instance
// serves a whole batch; per-video state lives on the Download.
type Orchestrator struct {
	resolvers []domain.Resolver
	fetcher   domain.ChunkFetcher
	muxer     domain.Muxer
	repo      domain.DownloadRepository
	reporter  ProgressReporter
	notifier  domain.Notifier
	config    *domain.DownloadConfig
	logger    *zap.Logger

	slots   *slotPool
	backoff func(attempt int) time.Duration

	taskMu sync.Mutex
	tasks  map[string]ProgressTask
}

// NewOrchestrator wires the pipeline. repo and notifier may be nil; the
// resolvers are tried in order until one succeeds.
func NewOrchestrator(
	resolvers []domain.Resolver,
	fetcher domain.ChunkFetcher,
	muxer domain.Muxer,
	repo domain.DownloadRepository,
	reporter ProgressReporter,
	config *domain.DownloadConfig,
	logger *zap.Logger,
) *Orchestrator {
	if reporter == nil {
		reporter = NewNopReporter()
	}
	return &Orchestrator{
		resolvers: resolvers,
		fetcher:   fetcher,
		muxer:     muxer,
		repo:      repo,
		reporter:  reporter,
		config:    config,
		logger:    logger,
		slots:     newSlotPool(config.Concurrency),
		backoff:   BackoffDelay,
		tasks:     make(map[string]ProgressTask),
	}
}

// WithNotifier sets the batch-completion notifier.
func (o *Orchestrator) WithNotifier(n domain.Notifier) *Orchestrator {
	o.notifier = n
	return o
}

// BackoffDelay returns the wait before retry number attempt: exponential
// in seconds, capped at 30s.
func BackoffDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt >= 5 {
		return 30 * time.Second
	}
	return time.Duration(int64(1)<<uint(attempt)) * time.Second
}

// Run downloads all urls and returns exactly one result per url, in input
// order. A failure of one video never aborts the others.
func (o *Orchestrator) Run(ctx context.Context, urls []string) []domain.DownloadResult {
	results := make([]domain.DownloadResult, len(urls))

	var wg sync.WaitGroup
	for i, url := range urls {
		dl := domain.NewDownload(url, o.config)
		o.create(dl)

		wg.Add(1)
		go func(i int, dl *domain.Download) {
			defer wg.Done()
			start := time.Now()
			err := o.Process(ctx, dl)
			results[i] = domain.DownloadResult{
				Download: dl,
				Err:      err,
				Elapsed:  time.Since(start),
			}
		}(i, dl)
	}
	wg.Wait()
	o.reporter.Wait()

	if o.notifier != nil {
		succeeded, failed := 0, 0
		for _, r := range results {
			if r.Succeeded() {
				succeeded++
			} else {
				failed++
			}
		}
		o.notifier.NotifyBatchFinished(succeeded, failed)
	}
	return results
}

// Process runs the pipeline for a single download and records the outcome
// on it. Safe to call on a download already marked processing, which is
// how serve mode claims work before handing it off.
func (o *Orchestrator) Process(ctx context.Context, dl *domain.Download) error {
	if dl.Status != domain.StatusProcessing {
		dl.MarkProcessing()
		o.persist(dl)
	}

	filePath, err := o.process(ctx, dl)
	if err != nil {
		o.logger.Warn("download failed",
			zap.String("id", dl.ID),
			zap.String("url", dl.URL),
			zap.Error(err))
		dl.MarkFailed(err)
		o.persist(dl)
		return err
	}

	dl.MarkCompleted(filePath)
	o.persist(dl)
	o.logger.Info("download completed",
		zap.String("id", dl.ID),
		zap.String("file", filePath),
		zap.Int64("bytes", dl.BytesTotal),
		zap.Int("retries", dl.RetryCount))
	return nil
}

func (o *Orchestrator) process(ctx context.Context, dl *domain.Download) (string, error) {
	// Retries across resolve and all chunk attempts of this video share
	// one counter; workers touch it concurrently.
	var retries int64
	defer func() { dl.RetryCount = int(atomic.LoadInt64(&retries)) }()

	info, err := o.resolve(ctx, dl.URL, dl.MaxRetries, &retries)
	if err != nil {
		return "", err
	}
	dl.Title = info.Title

	sel, err := info.SelectStreams(dl.QualityCap)
	if err != nil {
		return "", err
	}

	name := domain.SafeFileName(info.Title)
	videoDir := filepath.Join(dl.OutputDir, name)
	if err := os.MkdirAll(videoDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	tempDir := filepath.Join(videoDir, ".tmp-"+shortID(dl.ID))
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tempDir)

	task := o.reporter.Task(name, sel.TotalSize())
	o.trackTask(dl.ID, task)
	defer o.untrackTask(dl.ID)

	// First chunk failure cancels the video's remaining transfers without
	// touching the rest of the batch.
	vctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type streamOut struct {
		n   int64
		err error
	}
	totalKnown := sel.TotalSize()

	videoPath := filepath.Join(tempDir, "video."+sel.Video.Ext)
	outs := make([]streamOut, 2)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		n, err := o.fetchStream(vctx, cancel, sel.Video, videoPath, dl, task, &retries, &totalKnown)
		outs[0] = streamOut{n: n, err: err}
	}()

	var audioPath string
	if sel.Audio != nil {
		audioPath = filepath.Join(tempDir, "audio."+sel.Audio.Ext)
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := o.fetchStream(vctx, cancel, *sel.Audio, audioPath, dl, task, &retries, &totalKnown)
			outs[1] = streamOut{n: n, err: err}
		}()
	}
	wg.Wait()

	var transferred int64
	streamErrs := make([]error, 0, len(outs))
	for _, out := range outs {
		transferred += out.n
		streamErrs = append(streamErrs, out.err)
	}
	if err := firstCause(streamErrs); err != nil {
		task.Finish(false)
		return "", err
	}
	dl.BytesTotal = transferred

	finalPath := filepath.Join(videoDir, name+"."+sel.Video.Ext)
	if sel.Audio != nil {
		finalPath = filepath.Join(videoDir, name+".mp4")
		if err := o.muxer.Mux(ctx, videoPath, audioPath, finalPath); err != nil {
			task.Finish(false)
			return "", err
		}
	} else {
		if err := os.Rename(videoPath, finalPath); err != nil {
			task.Finish(false)
			return "", fmt.Errorf("move output: %w", err)
		}
	}

	task.Finish(true)
	return finalPath, nil
}

// resolve tries each resolver in order, retrying transient failures with
// backoff before moving on. Returns the last error when all fail.
func (o *Orchestrator) resolve(ctx context.Context, url string, maxRetries int, retries *int64) (*domain.MediaInfo, error) {
	var last error
	for _, r := range o.resolvers {
		var info *domain.MediaInfo
		err := o.retryTransient(ctx, maxRetries, retries, func() error {
			var rerr error
			info, rerr = r.Resolve(ctx, url)
			return rerr
		})
		if err == nil {
			return info, nil
		}
		o.logger.Warn("resolver failed",
			zap.String("resolver", r.Name()),
			zap.String("url", url),
			zap.Error(err))
		last = err
	}
	if last == nil {
		last = fmt.Errorf("no resolver configured")
	}
	return nil, last
}

// fetchStream downloads one stream to dest. Small files and servers that
// ignore Range go through a single request; everything else is split into
// chunks gated by the shared slot pool.
func (o *Orchestrator) fetchStream(
	ctx context.Context,
	cancel context.CancelFunc,
	f domain.StreamFormat,
	dest string,
	dl *domain.Download,
	task ProgressTask,
	retries *int64,
	totalKnown *int64,
) (int64, error) {
	var size int64
	var ranged bool
	err := o.retryTransient(ctx, dl.MaxRetries, retries, func() error {
		var perr error
		size, ranged, perr = o.fetcher.Probe(ctx, f.URL)
		return perr
	})
	if err != nil {
		cancel()
		return 0, err
	}

	// Formats often report no size up front; correct the bar once the
	// server told us.
	if size > 0 && f.Filesize == 0 {
		task.SetTotal(atomic.AddInt64(totalKnown, size))
	}

	if !ranged || size <= 0 || size <= o.config.SmallFileThreshold {
		n, err := o.fetchWhole(ctx, f.URL, dest, dl.MaxRetries, task, retries)
		if err != nil {
			cancel()
			return 0, err
		}
		return n, nil
	}

	if err := o.fetchChunked(ctx, cancel, f.URL, dest, size, dl, task, retries); err != nil {
		return 0, err
	}
	return size, nil
}

// fetchWhole streams the file in one request. A failed attempt rolls its
// partial progress back off the bar before the retry starts over.
func (o *Orchestrator) fetchWhole(ctx context.Context, url, dest string, maxRetries int, task ProgressTask, retries *int64) (int64, error) {
	var written, attempt int64
	err := o.retryTransient(ctx, maxRetries, retries, func() error {
		if attempt > 0 {
			task.Add(-attempt)
		}
		attempt = 0
		n, ferr := o.fetcher.FetchAll(ctx, url, dest, func(n int64) {
			attempt += n
			task.Add(n)
		})
		written = n
		return ferr
	})
	if err != nil {
		return 0, err
	}
	return written, nil
}

// fetchChunked downloads the stream as fixed-size ranges, each retried
// independently. Progress counts a chunk only once it is fully on disk,
// so a retried chunk never inflates the bar.
func (o *Orchestrator) fetchChunked(
	ctx context.Context,
	cancel context.CancelFunc,
	url, dest string,
	size int64,
	dl *domain.Download,
	task ProgressTask,
	retries *int64,
) error {
	chunks := planChunks(size, dl.ChunkSize)
	errs := make([]error, len(chunks))

	var wg sync.WaitGroup
	for _, c := range chunks {
		wg.Add(1)
		go func(c chunkRange) {
			defer wg.Done()
			if err := o.slots.Acquire(ctx); err != nil {
				errs[c.index] = err
				return
			}
			defer o.slots.Release()

			part := chunkPath(dest, c.index)
			err := o.retryTransient(ctx, dl.MaxRetries, retries, func() error {
				return o.fetcher.FetchChunk(ctx, url, c.start, c.end, part, nil)
			})
			if err != nil {
				errs[c.index] = err
				cancel()
				return
			}
			task.Add(c.size())
		}(c)
	}
	wg.Wait()

	if err := firstCause(errs); err != nil {
		return err
	}
	return mergeChunks(dest, len(chunks))
}

// retryTransient runs op up to maxRetries+1 times, sleeping the backoff
// schedule between attempts. Permanent errors and context cancellation
// return immediately; exhausting the ceiling converts the last transient
// error into a RetriesExhaustedError.
func (o *Orchestrator) retryTransient(ctx context.Context, maxRetries int, retries *int64, op func() error) error {
	attempts := maxRetries + 1
	if attempts < 1 {
		attempts = 1
	}

	var last error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if retries != nil {
				atomic.AddInt64(retries, 1)
			}
			select {
			case <-time.After(o.backoff(attempt)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		last = op()
		if last == nil {
			return nil
		}
		if ctx.Err() != nil || !domain.IsTransient(last) {
			return last
		}
	}
	return &domain.RetriesExhaustedError{Attempts: attempts, Last: last}
}

// InfoResult is the per-URL outcome of info-only mode.
type InfoResult struct {
	URL  string
	Info *domain.MediaInfo
	Err  error
}

// Info resolves metadata for each url without writing anything to disk.
func (o *Orchestrator) Info(ctx context.Context, urls []string) []InfoResult {
	results := make([]InfoResult, len(urls))
	for i, url := range urls {
		var retries int64
		info, err := o.resolve(ctx, url, o.config.MaxRetries, &retries)
		results[i] = InfoResult{URL: url, Info: info, Err: err}
	}
	return results
}

// Progress returns a live transfer snapshot for a download that is
// currently moving bytes. ok is false once the download reached a
// terminal state or never started transferring.
func (o *Orchestrator) Progress(id string) (domain.ProgressSample, bool) {
	o.taskMu.Lock()
	task, ok := o.tasks[id]
	o.taskMu.Unlock()
	if !ok {
		return domain.ProgressSample{}, false
	}

	sample := task.Sample()
	sample.DownloadID = id
	return sample, true
}

func (o *Orchestrator) trackTask(id string, task ProgressTask) {
	o.taskMu.Lock()
	o.tasks[id] = task
	o.taskMu.Unlock()
}

func (o *Orchestrator) untrackTask(id string) {
	o.taskMu.Lock()
	delete(o.tasks, id)
	o.taskMu.Unlock()
}

func (o *Orchestrator) create(dl *domain.Download) {
	if o.repo == nil {
		return
	}
	if err := o.repo.Create(dl); err != nil {
		o.logger.Warn("history write failed", zap.String("id", dl.ID), zap.Error(err))
	}
}

func (o *Orchestrator) persist(dl *domain.Download) {
	if o.repo == nil {
		return
	}
	if err := o.repo.Update(dl); err != nil {
		o.logger.Warn("history update failed", zap.String("id", dl.ID), zap.Error(err))
	}
}

// firstCause picks the error to report from a set of parallel transfers:
// the first one that is not a cancellation, falling back to the first
// non-nil error. Cancellations are how sibling transfers are torn down
// after a real failure and would otherwise mask it.
func firstCause(errs []error) error {
	var fallback error
	for _, err := range errs {
		if err == nil {
			continue
		}
		if !errors.Is(err, context.Canceled) {
			return err
		}
		if fallback == nil {
			fallback = err
		}
	}
	return fallback
}

func chunkPath(dest string, index int) string {
	return fmt.Sprintf("%s.part%03d", dest, index)
}

// mergeChunks concatenates the part files into dest and removes them.
func mergeChunks(dest string, count int) error {
	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create merged file: %w", err)
	}
	defer out.Close()

	for i := 0; i < count; i++ {
		part := chunkPath(dest, i)
		in, err := os.Open(part)
		if err != nil {
			return fmt.Errorf("open chunk %d: %w", i, err)
		}
		_, err = io.Copy(out, in)
		in.Close()
		if err != nil {
			return fmt.Errorf("merge chunk %d: %w", i, err)
		}
		os.Remove(part)
	}
	return out.Close()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
