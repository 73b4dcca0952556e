package output

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lindenau-systems/folio/internal/pipeline"
	"github.com/lindenau-systems/folio/internal/recognize"
)

func sampleRun() *pipeline.BatchRun {
	return &pipeline.BatchRun{
		ID:       "run-123",
		Document: "invoice.pdf",
		Pages:    []int{0, 1, 2},
		Outcomes: []pipeline.PageOutcome{
			{
				PageIndex: 0,
				Success:   true,
				Text:      "Hello",
				Attempts:  1,
				Latency:   120 * time.Millisecond,
				Usage:     recognize.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
			},
			{
				PageIndex: 1,
				Success:   false,
				ErrorKind: recognize.KindTransientServer,
				Err:       errors.New("upstream 503"),
				Attempts:  3,
				Latency:   900 * time.Millisecond,
			},
			{
				PageIndex: 2,
				Success:   true,
				Text:      "World",
				Attempts:  2,
				Latency:   340 * time.Millisecond,
				Usage:     recognize.Usage{PromptTokens: 8, CompletionTokens: 4, TotalTokens: 12},
			},
		},
		Total:     3,
		Completed: 3,
		Failed:    1,
		Status:    pipeline.StatusPartialFailure,
		Elapsed:   2 * time.Second,
	}
}

func TestFromRun(t *testing.T) {
	doc := FromRun(sampleRun(), recognize.ModeText, "qwen3-vl-flash")

	assert.Equal(t, "invoice.pdf", doc.Document)
	assert.Equal(t, "run-123", doc.RunID)
	assert.Equal(t, "qwen3-vl-flash", doc.Model)
	assert.Equal(t, "text", doc.Mode)
	assert.Equal(t, "partial_failure", doc.Status)
	assert.Equal(t, 3, doc.TotalPages)
	assert.Equal(t, 2, doc.Succeeded)
	assert.Equal(t, 1, doc.Failed)
	assert.Equal(t, int64(2000), doc.DurationMS)
	assert.Equal(t, 2*time.Second, doc.Duration())

	require.Len(t, doc.Pages, 3)
	assert.Equal(t, 1, doc.Pages[0].Page, "pages are one-based in results")
	assert.Equal(t, "Hello", doc.Pages[0].Text)
	assert.Equal(t, int64(120), doc.Pages[0].DurationMS)

	failed := doc.Pages[1]
	assert.False(t, failed.Success)
	assert.Equal(t, "transient-server", failed.ErrorKind)
	assert.Equal(t, "upstream 503", failed.Error)
	assert.Equal(t, 3, failed.Attempts)
	assert.Empty(t, failed.Text)

	assert.Equal(t, recognize.Usage{PromptTokens: 18, CompletionTokens: 9, TotalTokens: 27}, doc.Usage)
	assert.Equal(t, []int{2}, doc.FailedPageNumbers())
}

func TestFromRun_NormalizesToNFC(t *testing.T) {
	run := sampleRun()
	run.Outcomes[0].Text = "café" // decomposed accent

	doc := FromRun(run, recognize.ModeText, "")
	assert.Equal(t, "café", doc.Pages[0].Text)
}

func TestFromRun_StructuredModesStripFences(t *testing.T) {
	run := sampleRun()
	run.Outcomes[0].Text = "```json\n{\"total\": 42}\n```"
	run.Outcomes[2].Text = "```html\n<table></table>\n```"

	jsonDoc := FromRun(run, recognize.ModeJSON, "")
	assert.Equal(t, "{\"total\": 42}", jsonDoc.Pages[0].Text)

	tableDoc := FromRun(run, recognize.ModeTable, "")
	assert.Equal(t, "<table></table>", tableDoc.Pages[2].Text)

	// Plain text mode keeps fences untouched.
	textDoc := FromRun(run, recognize.ModeText, "")
	assert.Contains(t, textDoc.Pages[0].Text, "```json")
}
