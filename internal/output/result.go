// Package output turns finished batch runs into serializable document
// results and renders them as text, markdown, JSON or YAML.
package output

import (
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/lindenau-systems/folio/internal/pipeline"
	"github.com/lindenau-systems/folio/internal/recognize"
)

// PageResult is the per-page slice of a document result. Page numbers are
// one-based for presentation.
type PageResult struct {
	Page       int    `json:"page"                  yaml:"page"`
	Success    bool   `json:"success"               yaml:"success"`
	Text       string `json:"text,omitempty"        yaml:"text,omitempty"`
	Error      string `json:"error,omitempty"       yaml:"error,omitempty"`
	ErrorKind  string `json:"error_kind,omitempty"  yaml:"error_kind,omitempty"`
	Attempts   int    `json:"attempts"              yaml:"attempts"`
	DurationMS int64  `json:"duration_ms"           yaml:"duration_ms"`
}

// DocumentResult is the complete, ordered result of one document run.
type DocumentResult struct {
	Document   string          `json:"document"         yaml:"document"`
	RunID      string          `json:"run_id"           yaml:"run_id"`
	Model      string          `json:"model,omitempty"  yaml:"model,omitempty"`
	Mode       string          `json:"mode,omitempty"   yaml:"mode,omitempty"`
	Status     string          `json:"status"           yaml:"status"`
	TotalPages int             `json:"total_pages"      yaml:"total_pages"`
	Succeeded  int             `json:"succeeded"        yaml:"succeeded"`
	Failed     int             `json:"failed"           yaml:"failed"`
	DurationMS int64           `json:"duration_ms"      yaml:"duration_ms"`
	Usage      recognize.Usage `json:"usage"            yaml:"usage"`
	Pages      []PageResult    `json:"pages"            yaml:"pages"`
}

// FromRun converts a finished run into a document result. Text is
// normalized to NFC; structured modes additionally have wrapping code
// fences stripped.
func FromRun(run *pipeline.BatchRun, mode recognize.Mode, model string) *DocumentResult {
	doc := &DocumentResult{
		Document:   run.Document,
		RunID:      run.ID,
		Model:      model,
		Mode:       string(mode),
		Status:     string(run.Status),
		TotalPages: run.Total,
		Succeeded:  run.Succeeded(),
		DurationMS: run.Elapsed.Milliseconds(),
		Pages:      make([]PageResult, 0, len(run.Outcomes)),
	}

	for i := range run.Outcomes {
		out := &run.Outcomes[i]
		page := PageResult{
			Page:       out.PageIndex + 1,
			Success:    out.Success,
			Attempts:   out.Attempts,
			DurationMS: out.Latency.Milliseconds(),
		}
		if out.Success {
			page.Text = cleanText(out.Text, mode)
			doc.Usage.PromptTokens += out.Usage.PromptTokens
			doc.Usage.CompletionTokens += out.Usage.CompletionTokens
			doc.Usage.TotalTokens += out.Usage.TotalTokens
		} else {
			page.ErrorKind = string(out.ErrorKind)
			if out.Err != nil {
				page.Error = out.Err.Error()
			}
			doc.Failed++
		}
		doc.Pages = append(doc.Pages, page)
	}
	return doc
}

// cleanText normalizes recognized text for presentation.
func cleanText(text string, mode recognize.Mode) string {
	text = norm.NFC.String(text)
	if mode == recognize.ModeJSON || mode == recognize.ModeTable {
		text = recognize.CleanFences(text)
	}
	return text
}

// FailedPageNumbers lists the one-based pages that did not succeed.
func (d *DocumentResult) FailedPageNumbers() []int {
	var pages []int
	for _, p := range d.Pages {
		if !p.Success {
			pages = append(pages, p.Page)
		}
	}
	return pages
}

// Duration returns the run duration as a time.Duration.
func (d *DocumentResult) Duration() time.Duration {
	return time.Duration(d.DurationMS) * time.Millisecond
}
