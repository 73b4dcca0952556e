// Package pipeline schedules page recognition over a multi-page document:
// bounded concurrency through admission tokens, per-page retries with
// exponential backoff, and order-preserving aggregation of outcomes with
// partial-failure tolerance.
package pipeline

import (
	"image"
	"time"

	"github.com/lindenau-systems/folio/internal/recognize"
)

// Document is the slice of a document source the pipeline needs: a page
// count and lazy per-page rasterization. RenderPage must be safe to call
// concurrently for different pages of the same handle.
type Document interface {
	PageCount() int
	Label() string
	RenderPage(pageIndex, dpi int) (image.Image, error)
}

// CancelMode selects what happens to in-flight work when the run's context
// is cancelled.
type CancelMode int

const (
	// CancelGraceful stops admitting new pages and drains in-flight tasks
	// to their natural terminal state.
	CancelGraceful CancelMode = iota

	// CancelHard additionally aborts in-flight remote calls; affected pages
	// are recorded with the cancelled error kind.
	CancelHard
)

// Status is the overall result of a finished batch run.
type Status string

const (
	StatusAllSucceeded   Status = "all_succeeded"
	StatusPartialFailure Status = "partial_failure"
	StatusAllFailed      Status = "all_failed"
	StatusCancelled      Status = "cancelled"
)

// PageOutcome is the immutable terminal result of one page task. Exactly
// one outcome exists per requested page in a finished run.
type PageOutcome struct {
	// PageIndex is the zero-based page this outcome belongs to.
	PageIndex int

	// Success reports whether recognition produced a payload.
	Success bool

	// Text is the recognized payload; empty when Success is false.
	Text string

	// ErrorKind classifies the failure; empty when Success is true.
	ErrorKind recognize.ErrorKind

	// Err is the last error observed; nil when Success is true.
	Err error

	// Attempts counts remote calls made for this page. Zero when the page
	// never reached the recognition client (render failure, cancellation
	// before dispatch).
	Attempts int

	// Latency is the task's total wall time, including retries and backoff.
	Latency time.Duration

	// Usage is the token accounting of the successful call, when the
	// service reports it.
	Usage recognize.Usage
}

// BatchRun is the aggregate result of one pipeline invocation. It is
// written by a single goroutine and finalized exactly once; after Run
// returns it is immutable.
type BatchRun struct {
	// ID correlates log lines and progress events of one run.
	ID string

	// Document is the label of the processed source.
	Document string

	// Pages lists the zero-based page indices in request order. Outcomes
	// is parallel to it: Outcomes[i] belongs to Pages[i].
	Pages []int

	// Outcomes has exactly one entry per requested page, in request order.
	Outcomes []PageOutcome

	// Total is len(Pages).
	Total int

	// Dispatched counts pages admitted past a token before the run ended.
	Dispatched int

	// Completed counts tasks that reached a terminal state on their own
	// (cancellation back-fill does not count).
	Completed int

	// Failed counts completed tasks whose outcome is not a success.
	Failed int

	// Status is the finalized overall result.
	Status Status

	// Started and Elapsed time the whole run.
	Started time.Time
	Elapsed time.Duration
}

// Succeeded counts successful outcomes.
func (r *BatchRun) Succeeded() int {
	n := 0
	for i := range r.Outcomes {
		if r.Outcomes[i].Success {
			n++
		}
	}
	return n
}

// FailedPages returns the one-based page numbers of unsuccessful outcomes,
// in page order.
func (r *BatchRun) FailedPages() []int {
	var pages []int
	for i := range r.Outcomes {
		if !r.Outcomes[i].Success {
			pages = append(pages, r.Outcomes[i].PageIndex+1)
		}
	}
	return pages
}

// Options configures a batch run. The zero value is completed by
// DefaultOptions values during validation.
type Options struct {
	// Concurrency bounds simultaneously in-flight page tasks. Default 10.
	Concurrency int

	// MaxAttempts bounds remote calls per page for transient failures.
	// Default 3.
	MaxAttempts int

	// BaseDelay and MaxDelay shape the retry backoff. Defaults 1s and 30s.
	BaseDelay time.Duration
	MaxDelay  time.Duration

	// DPI is the rasterization resolution handed to the document. Zero
	// lets the renderer pick its default.
	DPI int

	// Request carries the prompt, model and per-call timeout forwarded
	// opaquely to the recognition client.
	Request recognize.Request

	// CancelMode selects graceful draining or hard abort on cancellation.
	CancelMode CancelMode

	// DrainGrace bounds how long graceful draining may continue after
	// cancellation before in-flight work is aborted anyway. Default 2m.
	DrainGrace time.Duration
}

// Default option values.
const (
	DefaultConcurrency = 10
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = time.Second
	DefaultMaxDelay    = 30 * time.Second
	DefaultDrainGrace  = 2 * time.Minute
)

// DefaultOptions returns the standard run configuration.
func DefaultOptions() Options {
	return Options{
		Concurrency: DefaultConcurrency,
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
		MaxDelay:    DefaultMaxDelay,
		CancelMode:  CancelGraceful,
		DrainGrace:  DefaultDrainGrace,
	}
}

func (o *Options) applyDefaults() {
	if o.Concurrency <= 0 {
		o.Concurrency = DefaultConcurrency
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = DefaultBaseDelay
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = DefaultMaxDelay
	}
	if o.MaxDelay < o.BaseDelay {
		o.MaxDelay = o.BaseDelay
	}
	if o.DrainGrace <= 0 {
		o.DrainGrace = DefaultDrainGrace
	}
}
