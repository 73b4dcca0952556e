package cmd

import (
	"io"

	"github.com/lindenau-systems/folio/internal/pipeline"
	"github.com/schollz/progressbar/v3"
)

var _ pipeline.ProgressReporter = (*barProgress)(nil)

// barProgress renders a terminal progress bar for each document run. A new
// bar starts with every OnStart, so sequential documents each get their own.
type barProgress struct {
	w   io.Writer
	bar *progressbar.ProgressBar
}

func newBarProgress(w io.Writer) *barProgress {
	return &barProgress{w: w}
}

func (p *barProgress) OnStart(total int) {
	p.bar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(p.w),
		progressbar.OptionSetDescription("recognizing"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
}

func (p *barProgress) OnProgress(completed, total int) {
	if p.bar != nil {
		_ = p.bar.Set(completed)
	}
}

func (p *barProgress) OnComplete() {
	if p.bar != nil {
		_ = p.bar.Finish()
		p.bar = nil
	}
}

func (p *barProgress) OnError(err error) {
	if p.bar != nil {
		_ = p.bar.Clear()
		p.bar = nil
	}
}
