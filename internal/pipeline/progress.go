package pipeline

import (
	"log/slog"
	"sync"
	"time"
)

// ProgressReporter receives sampled run progress. Calls are made from the
// aggregation goroutine, one at a time, and implementations must return
// quickly; a reporter that blocks stalls result collection. Wrap slow
// sinks in ThrottledProgress.
type ProgressReporter interface {
	// OnStart is called once before the first page is admitted.
	OnStart(total int)
	// OnProgress is called after each page reaches a terminal state.
	OnProgress(completed, total int)
	// OnComplete is called once when the run finishes normally.
	OnComplete()
	// OnError is called instead of OnComplete when the run is cancelled.
	OnError(err error)
}

// NoOpProgress discards all progress events.
type NoOpProgress struct{}

func (NoOpProgress) OnStart(int)         {}
func (NoOpProgress) OnProgress(int, int) {}
func (NoOpProgress) OnComplete()         {}
func (NoOpProgress) OnError(error)       {}

// LogProgress writes progress events to a structured logger.
type LogProgress struct {
	Logger *slog.Logger
}

// NewLogProgress returns a reporter logging to logger, or the default
// logger when nil.
func NewLogProgress(logger *slog.Logger) *LogProgress {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogProgress{Logger: logger}
}

func (p *LogProgress) OnStart(total int) {
	p.Logger.Info("recognition started", "total", total)
}

func (p *LogProgress) OnProgress(completed, total int) {
	p.Logger.Info("recognition progress", "completed", completed, "total", total)
}

func (p *LogProgress) OnComplete() {
	p.Logger.Info("recognition complete")
}

func (p *LogProgress) OnError(err error) {
	p.Logger.Warn("recognition aborted", "error", err)
}

// MultiProgress fans events out to several reporters in order.
type MultiProgress []ProgressReporter

func (m MultiProgress) OnStart(total int) {
	for _, r := range m {
		r.OnStart(total)
	}
}

func (m MultiProgress) OnProgress(completed, total int) {
	for _, r := range m {
		r.OnProgress(completed, total)
	}
}

func (m MultiProgress) OnComplete() {
	for _, r := range m {
		r.OnComplete()
	}
}

func (m MultiProgress) OnError(err error) {
	for _, r := range m {
		r.OnError(err)
	}
}

// ThrottledProgress drops OnProgress events arriving within Interval of
// the previous one. The final event (completed == total) always passes
// so sinks can settle at 100%.
type ThrottledProgress struct {
	Next     ProgressReporter
	Interval time.Duration

	mu   sync.Mutex
	last time.Time
}

// NewThrottledProgress wraps next with a minimum interval between
// progress events.
func NewThrottledProgress(next ProgressReporter, interval time.Duration) *ThrottledProgress {
	return &ThrottledProgress{Next: next, Interval: interval}
}

func (t *ThrottledProgress) OnStart(total int) {
	t.mu.Lock()
	t.last = time.Time{}
	t.mu.Unlock()
	t.Next.OnStart(total)
}

func (t *ThrottledProgress) OnProgress(completed, total int) {
	t.mu.Lock()
	now := time.Now()
	if completed < total && !t.last.IsZero() && now.Sub(t.last) < t.Interval {
		t.mu.Unlock()
		return
	}
	t.last = now
	t.mu.Unlock()
	t.Next.OnProgress(completed, total)
}

func (t *ThrottledProgress) OnComplete() {
	t.Next.OnComplete()
}

func (t *ThrottledProgress) OnError(err error) {
	t.Next.OnError(err)
}
