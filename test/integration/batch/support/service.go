package support

import (
	"context"
	"fmt"
	"image"
	"sync"
	"sync/atomic"

	"github.com/lindenau-systems/folio/internal/recognize"
)

// MemDocument is an in-memory document whose pages rasterize instantly.
// Each page renders as a 1px-high image whose width encodes the page
// index, which lets the service tell pages apart without real content.
type MemDocument struct {
	Pages int
	Name  string
}

func (d *MemDocument) PageCount() int { return d.Pages }

func (d *MemDocument) Label() string { return d.Name }

func (d *MemDocument) RenderPage(pageIndex, _ int) (image.Image, error) {
	return image.NewGray(image.Rect(0, 0, pageIndex+1, 1)), nil
}

func pageOf(img image.Image) int {
	return img.Bounds().Dx() - 1
}

// pageScript describes the scripted behavior of one page: fail the first
// failBefore attempts (or all of them when always is set) with the given
// classified error, then succeed.
type pageScript struct {
	failBefore int
	always     bool
	kind       recognize.ErrorKind
	status     int
	msg        string
}

// FakeService is a scriptable recognition client. It serves successes by
// default; Given steps install per-page failure scripts. Calls can be held
// on a gate so cancellation scenarios control exactly when work finishes.
type FakeService struct {
	mu      sync.Mutex
	scripts map[int]pageScript
	calls   map[int]int

	gate    chan struct{}
	release sync.Once

	inflight    atomic.Int32
	maxInflight atomic.Int32
}

func NewFakeService() *FakeService {
	return &FakeService{
		scripts: make(map[int]pageScript),
		calls:   make(map[int]int),
	}
}

// Hold makes every call block until Release; held calls still honor
// context cancellation.
func (s *FakeService) Hold() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gate == nil {
		s.gate = make(chan struct{})
	}
}

// Release opens the gate. Safe to call repeatedly and without Hold.
func (s *FakeService) Release() {
	s.mu.Lock()
	gate := s.gate
	s.mu.Unlock()
	if gate == nil {
		return
	}
	s.release.Do(func() { close(gate) })
}

// ScriptPage installs a failure script for a zero-based page index.
func (s *FakeService) ScriptPage(page int, script pageScript) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scripts[page] = script
}

// CallCount reports how many calls a zero-based page received.
func (s *FakeService) CallCount(page int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[page]
}

// TotalCalls reports calls across all pages.
func (s *FakeService) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.calls {
		total += n
	}
	return total
}

// Inflight reports the number of calls currently blocked inside the
// service.
func (s *FakeService) Inflight() int {
	return int(s.inflight.Load())
}

// MaxInflight reports the in-flight high-water mark over the whole
// scenario.
func (s *FakeService) MaxInflight() int {
	return int(s.maxInflight.Load())
}

func (s *FakeService) Recognize(ctx context.Context, img image.Image, _ recognize.Request) (*recognize.Result, error) {
	page := pageOf(img)

	cur := s.inflight.Add(1)
	for {
		peak := s.maxInflight.Load()
		if cur <= peak || s.maxInflight.CompareAndSwap(peak, cur) {
			break
		}
	}
	defer s.inflight.Add(-1)

	s.mu.Lock()
	s.calls[page]++
	attempt := s.calls[page]
	script, scripted := s.scripts[page]
	gate := s.gate
	s.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, &recognize.Error{Kind: recognize.KindCancelled, Msg: "call aborted", Err: ctx.Err()}
		}
	}

	if scripted && (script.always || attempt <= script.failBefore) {
		return nil, &recognize.Error{Kind: script.kind, Status: script.status, Msg: script.msg}
	}
	return &recognize.Result{
		Text:  fmt.Sprintf("recognized text of page %d", page+1),
		Model: "qwen3-vl-flash",
		Usage: recognize.Usage{PromptTokens: 40, CompletionTokens: 12, TotalTokens: 52},
	}, nil
}

// EventReporter records progress callbacks so Then steps can assert on
// what a UI would have seen.
type EventReporter struct {
	mu        sync.Mutex
	started   []int
	progress  [][2]int
	completes int
	errs      []error
}

func (r *EventReporter) OnStart(total int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = append(r.started, total)
}

func (r *EventReporter) OnProgress(completed, total int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = append(r.progress, [2]int{completed, total})
}

func (r *EventReporter) OnComplete() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completes++
}

func (r *EventReporter) OnError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

// LastProgress returns the most recent progress event, or false when none
// was reported.
func (r *EventReporter) LastProgress() (completed, total int, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.progress) == 0 {
		return 0, 0, false
	}
	last := r.progress[len(r.progress)-1]
	return last[0], last[1], true
}

// Counts returns how often the terminal callbacks fired.
func (r *EventReporter) Counts() (completes, errors int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.completes, len(r.errs)
}
