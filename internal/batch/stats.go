package batch

import (
	"fmt"
	"io"
	"time"
)

// Stats summarizes a finished batch.
type Stats struct {
	Documents      int
	Skipped        int
	FileErrors     int
	Pages          int
	PagesSucceeded int
	PagesFailed    int
	TotalTokens    int
	Duration       time.Duration
	PagesPerSecond float64
}

// Stats computes the summary numbers for the batch result.
func (r *Result) Stats() Stats {
	s := Stats{
		Documents:  len(r.Documents),
		Skipped:    len(r.Skipped),
		FileErrors: len(r.Errors),
		Duration:   r.Duration,
	}
	for _, doc := range r.Documents {
		s.Pages += doc.TotalPages
		s.PagesSucceeded += doc.Succeeded
		s.PagesFailed += doc.Failed
		s.TotalTokens += doc.Usage.TotalTokens
	}
	if r.Duration > 0 {
		s.PagesPerSecond = float64(s.Pages) / r.Duration.Seconds()
	}
	return s
}

// PrintStats writes the statistics footer to w.
func (r *Result) PrintStats(w io.Writer) {
	s := r.Stats()
	fmt.Fprintf(w, "\nBatch statistics:\n")
	fmt.Fprintf(w, "  Documents: %d\n", s.Documents)
	if s.Skipped > 0 {
		fmt.Fprintf(w, "  Skipped: %d\n", s.Skipped)
	}
	if s.FileErrors > 0 {
		fmt.Fprintf(w, "  Unreadable: %d\n", s.FileErrors)
	}
	fmt.Fprintf(w, "  Pages: %d (%d ok, %d failed)\n", s.Pages, s.PagesSucceeded, s.PagesFailed)
	if s.TotalTokens > 0 {
		fmt.Fprintf(w, "  Tokens: %d\n", s.TotalTokens)
	}
	fmt.Fprintf(w, "  Duration: %v\n", s.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "  Throughput: %.1f pages/sec\n", s.PagesPerSecond)
}
