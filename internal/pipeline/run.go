package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/lindenau-systems/folio/internal/recognize"
)

var (
	// ErrNoClient is returned when a runner is built without a client.
	ErrNoClient = errors.New("recognition client is required")

	// ErrNoDocument is returned when Run is called without a document.
	ErrNoDocument = errors.New("document is required")

	// ErrNoPages is returned for empty documents or empty page selections.
	ErrNoPages = errors.New("no pages to process")
)

// Runner executes batch recognition runs. It is stateless between runs and
// safe for concurrent use; per-run state lives in the BatchRun.
type Runner struct {
	client   recognize.Client
	reporter ProgressReporter
	logger   *slog.Logger
	opts     Options
}

// NewRunner builds a Runner around a recognition client. Zero option fields
// are filled with defaults.
func NewRunner(client recognize.Client, opts Options) (*Runner, error) {
	if client == nil {
		return nil, ErrNoClient
	}
	opts.applyDefaults()
	return &Runner{
		client:   client,
		reporter: NoOpProgress{},
		logger:   slog.Default(),
		opts:     opts,
	}, nil
}

// WithProgress sets the progress reporter. Reporters must not block; wrap
// slow sinks in ThrottledProgress.
func (r *Runner) WithProgress(reporter ProgressReporter) *Runner {
	if reporter != nil {
		r.reporter = reporter
	}
	return r
}

// WithLogger sets the logger used for run and task events.
func (r *Runner) WithLogger(logger *slog.Logger) *Runner {
	if logger != nil {
		r.logger = logger
	}
	return r
}

// Options returns the runner's effective configuration.
func (r *Runner) Options() Options { return r.opts }

// Run recognizes the given pages of doc (nil means all pages, in order)
// and returns the finalized run. Page failures are contained in their
// outcomes and never abort siblings; the returned error is reserved for
// invalid invocations. Cancellation of ctx yields a run with
// StatusCancelled, not an error.
func (r *Runner) Run(ctx context.Context, doc Document, pages []int) (*BatchRun, error) {
	pages, err := r.resolvePages(doc, pages)
	if err != nil {
		return nil, err
	}

	total := len(pages)
	run := &BatchRun{
		ID:       uuid.NewString(),
		Document: doc.Label(),
		Pages:    pages,
		Outcomes: make([]PageOutcome, total),
		Total:    total,
		Started:  time.Now(),
	}

	logger := r.logger.With("run_id", run.ID, "document", run.Document)
	logger.Info("starting batch recognition",
		"pages", total, "concurrency", r.opts.Concurrency, "max_attempts", r.opts.MaxAttempts)
	r.reporter.OnStart(total)

	done := make(chan struct{})
	defer close(done)
	taskCtx := r.taskContext(ctx, done)

	policy := RetryPolicy{
		MaxAttempts: r.opts.MaxAttempts,
		BaseDelay:   r.opts.BaseDelay,
		MaxDelay:    r.opts.MaxDelay,
	}

	type positioned struct {
		pos int
		out PageOutcome
	}
	results := make(chan positioned, total)
	sem := semaphore.NewWeighted(int64(r.opts.Concurrency))
	var dispatched atomic.Int64

	// Admission: one token per in-flight task, indices started in request
	// order. Cancellation stops admission immediately; tasks already past
	// their token keep running under taskCtx.
	go func() {
		var wg sync.WaitGroup
		for pos, page := range pages {
			if err := sem.Acquire(ctx, 1); err != nil {
				break
			}
			dispatched.Add(1)
			wg.Add(1)
			go func(pos, page int) {
				defer wg.Done()
				defer sem.Release(1)
				task := &pageTask{
					doc:    doc,
					client: r.client,
					policy: policy,
					req:    r.opts.Request,
					dpi:    r.opts.DPI,
					page:   page,
					logger: logger,
				}
				results <- positioned{pos: pos, out: task.run(taskCtx)}
			}(pos, page)
		}
		wg.Wait()
		close(results)
	}()

	// Aggregation: this goroutine is the only writer of the run. Tasks
	// hand over outcomes through the buffered channel and never touch
	// shared state.
	recorded := make([]bool, total)
	for res := range results {
		if recorded[res.pos] {
			logger.Warn("duplicate outcome ignored", "page", res.out.PageIndex)
			continue
		}
		recorded[res.pos] = true
		run.Outcomes[res.pos] = res.out
		run.Completed++
		if !res.out.Success {
			run.Failed++
			logger.Warn("page failed",
				"page", res.out.PageIndex+1, "kind", string(res.out.ErrorKind),
				"attempts", res.out.Attempts, "error", res.out.Err)
		}
		r.reporter.OnProgress(run.Completed, total)
	}

	r.finalize(ctx, run, recorded)

	if run.Status == StatusCancelled {
		r.reporter.OnError(context.Cause(ctx))
	} else {
		r.reporter.OnComplete()
	}
	run.Dispatched = int(dispatched.Load())
	run.Elapsed = time.Since(run.Started)

	logger.Info("batch recognition finished",
		"status", string(run.Status), "succeeded", run.Succeeded(),
		"failed", run.Failed, "dispatched", run.Dispatched, "elapsed", run.Elapsed)
	return run, nil
}

// resolvePages validates the page selection and defaults it to the whole
// document.
func (r *Runner) resolvePages(doc Document, pages []int) ([]int, error) {
	if doc == nil {
		return nil, ErrNoDocument
	}
	pageCount := doc.PageCount()
	if pageCount <= 0 {
		return nil, fmt.Errorf("%w: document %s is empty", ErrNoPages, doc.Label())
	}

	if pages == nil {
		pages = make([]int, pageCount)
		for i := range pages {
			pages[i] = i
		}
		return pages, nil
	}
	if len(pages) == 0 {
		return nil, ErrNoPages
	}

	seen := make(map[int]struct{}, len(pages))
	for _, p := range pages {
		if p < 0 || p >= pageCount {
			return nil, fmt.Errorf("page index %d out of range [0,%d)", p, pageCount)
		}
		if _, dup := seen[p]; dup {
			return nil, fmt.Errorf("duplicate page index %d", p)
		}
		seen[p] = struct{}{}
	}
	return append([]int(nil), pages...), nil
}

// taskContext derives the context page tasks run under. Hard mode aborts
// them with the caller's cancellation; graceful mode detaches them and
// aborts only once the drain grace after cancellation has expired.
func (r *Runner) taskContext(ctx context.Context, done <-chan struct{}) context.Context {
	if r.opts.CancelMode == CancelHard {
		return ctx
	}

	taskCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	go func() {
		select {
		case <-done:
			cancel()
			return
		case <-ctx.Done():
		}
		timer := time.NewTimer(r.opts.DrainGrace)
		defer timer.Stop()
		select {
		case <-timer.C:
			cancel()
		case <-done:
			cancel()
		}
	}()
	return taskCtx
}

// finalize back-fills outcomes for pages that never reached a terminal
// state and settles the overall status.
func (r *Runner) finalize(ctx context.Context, run *BatchRun, recorded []bool) {
	unfilled := 0
	for pos, ok := range recorded {
		if ok {
			continue
		}
		unfilled++
		run.Outcomes[pos] = PageOutcome{
			PageIndex: run.Pages[pos],
			ErrorKind: recognize.KindCancelled,
			Err:       context.Cause(ctx),
		}
	}

	aborted := unfilled > 0
	for i := range run.Outcomes {
		if run.Outcomes[i].ErrorKind == recognize.KindCancelled {
			aborted = true
			break
		}
	}

	succeeded := run.Succeeded()
	switch {
	case ctx.Err() != nil && aborted:
		run.Status = StatusCancelled
	case succeeded == run.Total:
		run.Status = StatusAllSucceeded
	case succeeded == 0:
		run.Status = StatusAllFailed
	default:
		run.Status = StatusPartialFailure
	}
}
