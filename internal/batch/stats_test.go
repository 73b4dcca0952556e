package batch

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/lindenau-systems/folio/internal/output"
	"github.com/lindenau-systems/folio/internal/recognize"
)

func statsFixture() *Result {
	return &Result{
		Documents: []*output.DocumentResult{
			{
				TotalPages: 4, Succeeded: 3, Failed: 1,
				Usage: recognize.Usage{TotalTokens: 100},
			},
			{
				TotalPages: 2, Succeeded: 2,
				Usage: recognize.Usage{TotalTokens: 40},
			},
		},
		Skipped:  []string{"done.pdf"},
		Errors:   []FileError{{Path: "broken.pdf"}},
		Duration: 2 * time.Second,
	}
}

func TestResultStats(t *testing.T) {
	s := statsFixture().Stats()

	assert.Equal(t, 2, s.Documents)
	assert.Equal(t, 1, s.Skipped)
	assert.Equal(t, 1, s.FileErrors)
	assert.Equal(t, 6, s.Pages)
	assert.Equal(t, 5, s.PagesSucceeded)
	assert.Equal(t, 1, s.PagesFailed)
	assert.Equal(t, 140, s.TotalTokens)
	assert.InDelta(t, 3.0, s.PagesPerSecond, 0.01)
}

func TestPrintStats(t *testing.T) {
	var buf strings.Builder
	statsFixture().PrintStats(&buf)

	out := buf.String()
	assert.Contains(t, out, "Documents: 2")
	assert.Contains(t, out, "Skipped: 1")
	assert.Contains(t, out, "Unreadable: 1")
	assert.Contains(t, out, "Pages: 6 (5 ok, 1 failed)")
	assert.Contains(t, out, "Tokens: 140")
	assert.Contains(t, out, "Throughput: 3.0 pages/sec")
}

func TestResultCancelled(t *testing.T) {
	r := statsFixture()
	assert.False(t, r.Cancelled())

	r.Documents = append(r.Documents, &output.DocumentResult{Status: "cancelled"})
	assert.True(t, r.Cancelled())
}
