package pipeline

import (
	"context"
	"fmt"
	"image"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lindenau-systems/folio/internal/recognize"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeDocument renders each page as a 1px-high gray image whose width
// encodes the page index, so the client side can tell pages apart.
type fakeDocument struct {
	pages     int
	label     string
	renderErr map[int]error

	mu       sync.Mutex
	rendered []int
}

func (d *fakeDocument) PageCount() int { return d.pages }

func (d *fakeDocument) Label() string {
	if d.label == "" {
		return "fake.pdf"
	}
	return d.label
}

func (d *fakeDocument) RenderPage(pageIndex, _ int) (image.Image, error) {
	d.mu.Lock()
	d.rendered = append(d.rendered, pageIndex)
	d.mu.Unlock()
	if err := d.renderErr[pageIndex]; err != nil {
		return nil, err
	}
	return image.NewGray(image.Rect(0, 0, pageIndex+1, 1)), nil
}

// pageOf recovers the page index a fakeDocument encoded into the image.
func pageOf(img image.Image) int {
	return img.Bounds().Dx() - 1
}

// mockClient scripts per-page, per-attempt recognition results. It tracks
// call counts and the in-flight high-water mark, and can hold calls on a
// gate channel until the test releases them.
type mockClient struct {
	script func(page, attempt int) (*recognize.Result, error)
	delay  time.Duration
	gate   chan struct{}

	mu    sync.Mutex
	calls map[int]int

	inflight    atomic.Int32
	maxInflight atomic.Int32
}

func (c *mockClient) callCount(page int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[page]
}

func (c *mockClient) Recognize(ctx context.Context, img image.Image, _ recognize.Request) (*recognize.Result, error) {
	page := pageOf(img)

	cur := c.inflight.Add(1)
	for {
		peak := c.maxInflight.Load()
		if cur <= peak || c.maxInflight.CompareAndSwap(peak, cur) {
			break
		}
	}
	defer c.inflight.Add(-1)

	c.mu.Lock()
	if c.calls == nil {
		c.calls = make(map[int]int)
	}
	c.calls[page]++
	attempt := c.calls[page]
	c.mu.Unlock()

	if c.gate != nil {
		select {
		case <-c.gate:
		case <-ctx.Done():
			return nil, &recognize.Error{Kind: recognize.KindCancelled, Msg: "call aborted", Err: ctx.Err()}
		}
	}
	if c.delay > 0 {
		select {
		case <-time.After(c.delay):
		case <-ctx.Done():
			return nil, &recognize.Error{Kind: recognize.KindCancelled, Msg: "call aborted", Err: ctx.Err()}
		}
	}

	if c.script != nil {
		return c.script(page, attempt)
	}
	return &recognize.Result{Text: fmt.Sprintf("text of page %d", page)}, nil
}

// mockReporter records every progress event it receives.
type mockReporter struct {
	mu        sync.Mutex
	started   []int
	progress  [][2]int
	completes int
	errs      []error
}

func (r *mockReporter) OnStart(total int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = append(r.started, total)
}

func (r *mockReporter) OnProgress(completed, total int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = append(r.progress, [2]int{completed, total})
}

func (r *mockReporter) OnComplete() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completes++
}

func (r *mockReporter) OnError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func (r *mockReporter) snapshot() ([][2]int, int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	events := make([][2]int, len(r.progress))
	copy(events, r.progress)
	return events, r.completes, len(r.errs)
}

// fastOptions keeps retry backoff near zero so tests finish quickly.
func fastOptions() Options {
	opts := DefaultOptions()
	opts.BaseDelay = time.Millisecond
	opts.MaxDelay = 4 * time.Millisecond
	return opts
}

// transientErr builds a server-side failure that the retry policy treats
// as retryable.
func transientErr(status int) error {
	return &recognize.Error{Kind: recognize.KindTransientServer, Status: status, Msg: "upstream unavailable"}
}
