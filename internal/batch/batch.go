// Package batch runs page recognition over many documents: discovery of
// PDF and image files, one pipeline run per document, and persistence of
// the results. Documents are processed sequentially; the concurrency
// budget belongs to the page pipeline inside each run.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/lindenau-systems/folio/internal/output"
	"github.com/lindenau-systems/folio/internal/pdf"
	"github.com/lindenau-systems/folio/internal/pipeline"
	"github.com/lindenau-systems/folio/internal/recognize"
	"github.com/lindenau-systems/folio/internal/render"
)

// ErrNoDocuments is returned when discovery finds nothing to process.
var ErrNoDocuments = errors.New("no documents found")

// FileError records a document that could not be processed at all.
type FileError struct {
	Path string
	Err  error
}

func (e FileError) Error() string { return fmt.Sprintf("%s: %v", e.Path, e.Err) }

// Result aggregates a whole batch invocation.
type Result struct {
	Documents []*output.DocumentResult
	Paths     []string
	Skipped   []string
	Errors    []FileError
	Duration  time.Duration
}

// Cancelled reports whether the batch stopped on a cancellation signal.
func (r *Result) Cancelled() bool {
	for _, doc := range r.Documents {
		if doc.Status == string(pipeline.StatusCancelled) {
			return true
		}
	}
	return false
}

// Processor drives batch runs. Build one per configuration; it is safe to
// reuse across invocations.
type Processor struct {
	runner   *pipeline.Runner
	cfg      Config
	logger   *slog.Logger
	reporter pipeline.ProgressReporter
}

// NewProcessor builds a processor around an existing pipeline runner.
func NewProcessor(runner *pipeline.Runner, cfg Config) (*Processor, error) {
	if runner == nil {
		return nil, errors.New("pipeline runner is required")
	}
	return &Processor{
		runner: runner,
		cfg:    cfg,
		logger: slog.Default(),
	}, nil
}

// WithLogger sets the processor's logger.
func (p *Processor) WithLogger(logger *slog.Logger) *Processor {
	if logger != nil {
		p.logger = logger
	}
	return p
}

// WithProgress installs a per-document progress reporter.
func (p *Processor) WithProgress(reporter pipeline.ProgressReporter) *Processor {
	p.reporter = reporter
	if reporter != nil {
		p.runner.WithProgress(reporter)
	}
	return p
}

// Process discovers documents under args and runs recognition over each.
// A document that cannot be opened is recorded in Result.Errors and does
// not stop its siblings; cancellation stops the batch after the current
// document settles.
func (p *Processor) Process(ctx context.Context, args []string) (*Result, error) {
	files, err := discoverDocuments(args, p.cfg.Recursive, p.cfg.IncludePatterns, p.cfg.ExcludePatterns)
	if err != nil {
		return nil, fmt.Errorf("discover documents: %w", err)
	}
	if len(files) == 0 {
		return nil, ErrNoDocuments
	}

	result := &Result{Paths: files}
	started := time.Now()

	for _, path := range files {
		if ctx.Err() != nil {
			break
		}

		if p.cfg.SkipExisting && p.cfg.OutputDir != "" {
			target := output.DerivedPath(path, p.cfg.Format, p.cfg.OutputDir)
			if _, err := os.Stat(target); err == nil {
				p.logger.Info("skipping document, result exists", "document", path, "result", target)
				result.Skipped = append(result.Skipped, path)
				continue
			}
		}

		doc, err := p.processDocument(ctx, path)
		if err != nil {
			p.logger.Warn("document failed", "document", path, "error", err)
			result.Errors = append(result.Errors, FileError{Path: path, Err: err})
			continue
		}
		result.Documents = append(result.Documents, doc)

		if doc.Status == string(pipeline.StatusCancelled) {
			break
		}
	}

	result.Duration = time.Since(started)
	return result, nil
}

// processDocument runs the pipeline over one file and persists the result.
func (p *Processor) processDocument(ctx context.Context, path string) (*output.DocumentResult, error) {
	readable, cleanup, err := p.unlock(path)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	doc, err := render.Open(readable)
	if err != nil {
		return nil, err
	}
	defer func() { _ = doc.Close() }()

	pages, err := pdf.ParsePageRange(p.cfg.Pages, doc.PageCount())
	if err != nil {
		return nil, fmt.Errorf("page selection for %s: %w", path, err)
	}

	run, err := p.runner.Run(ctx, doc, pages)
	if err != nil {
		return nil, err
	}

	res := output.FromRun(run, p.cfg.Mode, recognize.ResolveModel(p.cfg.Model))
	res.Document = path

	if p.cfg.OutputDir != "" {
		target := output.DerivedPath(path, p.cfg.Format, p.cfg.OutputDir)
		if err := output.Save(res, p.cfg.Format, target); err != nil {
			return nil, err
		}
		p.logger.Info("result written", "document", path, "result", target)
	}
	return res, nil
}

// unlock resolves password protection for PDFs; other files pass through.
func (p *Processor) unlock(path string) (string, func(), error) {
	if !render.IsPDFPath(path) {
		return path, func() {}, nil
	}
	return pdf.Unlock(path, p.cfg.Credentials)
}
