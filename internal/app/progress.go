package app

import (
	"os"
	"sync"
	"time"

	"github.com/vbauerster/mpb/v6"
	"github.com/vbauerster/mpb/v6/decor"
	"github.com/yourusername/ytfetch-go/internal/domain"
)

// ProgressReporter receives transfer progress for display. The display is
// the only mutable state shared across download goroutines; implementations
// serialize rendering so concurrent updates never garble the terminal.
type ProgressReporter interface {
	// Task registers one download. total may be 0 when unknown; it can be
	// corrected later via SetTotal.
	Task(name string, total int64) ProgressTask

	// Wait blocks until all bars rendered their final state.
	Wait()
}

// ProgressTask is the per-download handle workers report through.
type ProgressTask interface {
	// Add records n transferred bytes. Negative values roll back the
	// contribution of a failed attempt before it is retried.
	Add(n int64)

	// SetTotal corrects the expected byte count once probing is done.
	SetTotal(total int64)

	// Finish renders the final state: full bar on success, aborted on
	// failure.
	Finish(success bool)

	// Sample returns the current transfer snapshot.
	Sample() domain.ProgressSample
}

const maxBarTitle = 28

// BarReporter renders one mpb bar per download with percentage, counters,
// rate and ETA.
type BarReporter struct {
	progress *mpb.Progress
}

// NewBarReporter creates a reporter writing to stdout.
func NewBarReporter() *BarReporter {
	return &BarReporter{
		progress: mpb.New(
			mpb.WithWidth(42),
			mpb.WithOutput(os.Stdout),
		),
	}
}

// Task adds a bar for one download.
func (r *BarReporter) Task(name string, total int64) ProgressTask {
	if runes := []rune(name); len(runes) > maxBarTitle {
		name = string(runes[:maxBarTitle-1]) + "…"
	}
	bar := r.progress.AddBar(total,
		mpb.PrependDecorators(
			decor.Name(name, decor.WC{W: maxBarTitle + 1, C: decor.DidentRight}),
			decor.CountersKibiByte("% .1f / % .1f", decor.WCSyncWidth),
		),
		mpb.AppendDecorators(
			decor.Percentage(decor.WC{W: 5}),
			decor.AverageSpeed(decor.UnitKiB, " % .1f", decor.WCSyncSpace),
			decor.OnComplete(decor.AverageETA(decor.ET_STYLE_GO, decor.WCSyncSpace), " done"),
		),
	)
	return &barTask{bar: bar, started: time.Now(), total: total}
}

// Wait flushes the final render of all bars.
func (r *BarReporter) Wait() {
	r.progress.Wait()
}

type barTask struct {
	bar     *mpb.Bar
	started time.Time

	mu      sync.Mutex
	current int64
	total   int64
}

func (t *barTask) Add(n int64) {
	t.mu.Lock()
	t.current += n
	current := t.current
	t.mu.Unlock()
	t.bar.SetCurrent(current)
}

func (t *barTask) SetTotal(total int64) {
	t.mu.Lock()
	t.total = total
	t.mu.Unlock()
	t.bar.SetTotal(total, false)
}

func (t *barTask) Finish(success bool) {
	if success {
		// Complete at whatever was transferred; totals from probing can
		// be off by a few bytes from the muxed result.
		t.bar.SetTotal(-1, true)
		return
	}
	t.bar.Abort(false)
}

func (t *barTask) Sample() domain.ProgressSample {
	t.mu.Lock()
	defer t.mu.Unlock()

	sample := domain.ProgressSample{
		BytesDone:  t.current,
		BytesTotal: t.total,
	}
	if elapsed := time.Since(t.started).Seconds(); elapsed > 0 {
		sample.Rate = float64(t.current) / elapsed
	}
	return sample
}

// NopReporter discards progress. Used by serve mode and tests, where no
// terminal owns stdout.
type NopReporter struct{}

func NewNopReporter() *NopReporter { return &NopReporter{} }

func (*NopReporter) Task(_ string, total int64) ProgressTask {
	return &nopTask{started: time.Now(), total: total}
}

func (*NopReporter) Wait() {}

type nopTask struct {
	started time.Time

	mu      sync.Mutex
	current int64
	total   int64
}

func (t *nopTask) Add(n int64) {
	t.mu.Lock()
	t.current += n
	t.mu.Unlock()
}

func (t *nopTask) SetTotal(total int64) {
	t.mu.Lock()
	t.total = total
	t.mu.Unlock()
}

func (t *nopTask) Finish(bool) {}

func (t *nopTask) Sample() domain.ProgressSample {
	t.mu.Lock()
	defer t.mu.Unlock()

	sample := domain.ProgressSample{
		BytesDone:  t.current,
		BytesTotal: t.total,
	}
	if elapsed := time.Since(t.started).Seconds(); elapsed > 0 {
		sample.Rate = float64(t.current) / elapsed
	}
	return sample
}
