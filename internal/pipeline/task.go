package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/lindenau-systems/folio/internal/recognize"
)

// taskState tracks a page task through its lifecycle. Terminal states are
// taskSucceeded and taskFailed.
type taskState int

const (
	taskPending taskState = iota
	taskRendering
	taskAwaitingResponse
	taskRetrying
	taskSucceeded
	taskFailed
)

func (s taskState) String() string {
	switch s {
	case taskPending:
		return "pending"
	case taskRendering:
		return "rendering"
	case taskAwaitingResponse:
		return "awaiting_response"
	case taskRetrying:
		return "retrying"
	case taskSucceeded:
		return "succeeded"
	case taskFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// pageTask recognizes a single page: render once, then call the client
// until success, retry exhaustion or a permanent failure. It owns no shared
// state; its only output is the returned outcome.
type pageTask struct {
	doc    Document
	client recognize.Client
	policy RetryPolicy
	req    recognize.Request
	dpi    int
	page   int
	logger *slog.Logger
	state  taskState
}

func (t *pageTask) transition(next taskState) {
	t.logger.Debug("page task state change",
		"page", t.page, "from", t.state.String(), "to", next.String())
	t.state = next
}

// run drives the task to a terminal state and returns its outcome. ctx
// aborts in-flight calls and backoff waits; an abort is recorded as a
// cancelled failure, never dropped.
func (t *pageTask) run(ctx context.Context) PageOutcome {
	start := time.Now()

	if err := ctx.Err(); err != nil {
		t.transition(taskFailed)
		return t.failure(start, 0, recognize.KindCancelled, err)
	}

	t.transition(taskRendering)
	img, err := t.doc.RenderPage(t.page, t.dpi)
	if err != nil {
		t.logger.Warn("page render failed", "page", t.page, "error", err)
		t.transition(taskFailed)
		return t.failure(start, 0, recognize.KindRenderFailed, err)
	}

	attempts := 0
	for {
		t.transition(taskAwaitingResponse)
		attempts++

		res, err := t.client.Recognize(ctx, img, t.req)
		if err == nil {
			t.transition(taskSucceeded)
			return PageOutcome{
				PageIndex: t.page,
				Success:   true,
				Text:      res.Text,
				Attempts:  attempts,
				Latency:   time.Since(start),
				Usage:     res.Usage,
			}
		}

		kind := recognize.KindOf(err)
		decision := t.policy.Decide(kind, attempts)
		if !decision.Retry {
			t.transition(taskFailed)
			return t.failure(start, attempts, kind, err)
		}

		t.transition(taskRetrying)
		t.logger.Debug("retrying page",
			"page", t.page, "attempt", attempts, "kind", string(kind), "backoff", decision.Delay)

		timer := time.NewTimer(decision.Delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			t.transition(taskFailed)
			return t.failure(start, attempts, recognize.KindCancelled, ctx.Err())
		case <-timer.C:
		}
	}
}

func (t *pageTask) failure(start time.Time, attempts int, kind recognize.ErrorKind, err error) PageOutcome {
	return PageOutcome{
		PageIndex: t.page,
		ErrorKind: kind,
		Err:       err,
		Attempts:  attempts,
		Latency:   time.Since(start),
	}
}
