package batch

import (
	"github.com/lindenau-systems/folio/internal/output"
	"github.com/lindenau-systems/folio/internal/pdf"
	"github.com/lindenau-systems/folio/internal/pipeline"
	"github.com/lindenau-systems/folio/internal/recognize"
)

// Config holds all settings for processing a set of documents.
type Config struct {
	// Pipeline is forwarded to the page pipeline of every document.
	Pipeline pipeline.Options

	// Mode and Model label the results; the effective request itself
	// travels in Pipeline.Request.
	Mode  recognize.Mode
	Model string

	// Pages is a one-based selection like "1-3,7" applied to every
	// document. Empty selects all pages.
	Pages string

	// Format and OutputDir control result persistence. With a directory,
	// each document gets a result file named after it; without one,
	// results render to stdout.
	Format    output.Format
	OutputDir string

	// SkipExisting skips documents whose result file is already present.
	// Lets an interrupted batch be resumed without repeating finished
	// documents.
	SkipExisting bool

	// Credentials unlock encrypted PDFs.
	Credentials pdf.Credentials

	// File discovery settings.
	Recursive       bool
	IncludePatterns []string
	ExcludePatterns []string

	// Quiet suppresses the statistics footer.
	Quiet     bool
	ShowStats bool
}

// DefaultConfig returns a batch configuration with standard pipeline
// options and text output.
func DefaultConfig() Config {
	return Config{
		Pipeline: pipeline.DefaultOptions(),
		Mode:     recognize.ModeText,
		Format:   output.FormatText,
	}
}
