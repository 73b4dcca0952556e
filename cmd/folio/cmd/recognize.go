package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/lindenau-systems/folio/internal/batch"
	"github.com/lindenau-systems/folio/internal/config"
	"github.com/lindenau-systems/folio/internal/output"
	"github.com/lindenau-systems/folio/internal/pipeline"
	"github.com/lindenau-systems/folio/internal/recognize"
	"github.com/spf13/cobra"
)

// maxFailuresShown bounds the per-document failure report.
const maxFailuresShown = 5

// modePreset pins a recognition mode for the table and layout commands.
// The model applies unless --model is given explicitly.
type modePreset struct {
	mode  recognize.Mode
	model string
}

// recognizeCmd represents the recognize command.
var recognizeCmd = &cobra.Command{
	Use:   "recognize [files...]",
	Short: "Recognize text in PDFs and images",
	Long: `Recognize text in one or more PDF or image files.

Pages are rendered locally and recognized concurrently by the remote vision
model. Directories are scanned for supported documents; failed pages are
retried with backoff and reported at the end.

Supported inputs: PDF, PNG, JPEG, TIFF, BMP, WebP

Examples:
  folio recognize document.pdf
  folio recognize document.pdf --pages 1-5 --format markdown -o result.md
  folio recognize scans/ --recursive --output-dir results/ --skip-existing
  folio recognize photo.jpg --mode json --model plus`,
	Args:         cobra.MinimumNArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRecognize(cmd, args, modePreset{})
	},
}

// runRecognize drives a batch run for the recognize, table and layout
// commands.
func runRecognize(cmd *cobra.Command, args []string, preset modePreset) error {
	cfg := GetConfig()
	applyRecognizeOverrides(cfg, cmd)

	if preset.mode != "" {
		cfg.Recognition.Mode = string(preset.mode)
	}
	if preset.model != "" && !cmd.Flags().Changed("model") {
		cfg.API.Model = preset.model
	}

	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.APIKey() == "" {
		return errors.New("no API key configured (set FOLIO_API_KEY or DASHSCOPE_API_KEY, or use --api-key)")
	}

	batchCfg, err := cfg.ToBatchConfig()
	if err != nil {
		return err
	}

	client, err := recognize.NewHTTPClient(cfg.ToClientConfig())
	if err != nil {
		return fmt.Errorf("failed to create recognition client: %w", err)
	}

	runner, err := pipeline.NewRunner(client, batchCfg.Pipeline)
	if err != nil {
		return fmt.Errorf("failed to build recognition pipeline: %w", err)
	}

	processor, err := batch.NewProcessor(runner, batchCfg)
	if err != nil {
		return err
	}

	stderr := cmd.ErrOrStderr()
	noProgress, _ := cmd.Flags().GetBool("no-progress")
	if !batchCfg.Quiet && !noProgress {
		processor.WithProgress(newBarProgress(stderr))
	}

	if !batchCfg.Quiet {
		color.New(color.FgCyan).Fprintf(stderr, "Using model: %s\n", recognize.ResolveModel(cfg.API.Model))
	}

	// Ctrl-C cancels the context; the pipeline then drains or aborts
	// in-flight pages according to the configured cancel mode.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	result, err := processor.Process(ctx, args)
	if err != nil {
		if errors.Is(err, batch.ErrNoDocuments) {
			return fmt.Errorf("no PDF or image files found in %s", strings.Join(args, ", "))
		}
		return fmt.Errorf("batch processing failed: %w", err)
	}

	if batchCfg.OutputDir == "" {
		if err := writeResults(cmd, result, batchCfg.Format, cfg.Output.File); err != nil {
			return err
		}
	}

	printSummary(stderr, result, batchCfg)

	if len(result.Documents) == 0 && len(result.Errors) > 0 {
		return fmt.Errorf("no document could be processed (%d unreadable)", len(result.Errors))
	}
	return nil
}

// writeResults renders the finished documents to the output file or stdout.
func writeResults(cmd *cobra.Command, result *batch.Result, format output.Format, outputFile string) error {
	var rendered strings.Builder
	for i, doc := range result.Documents {
		s, err := output.Render(doc, format)
		if err != nil {
			return fmt.Errorf("failed to render %s: %w", doc.Document, err)
		}
		if i > 0 {
			rendered.WriteString("\n")
		}
		rendered.WriteString(s)
	}

	if outputFile != "" {
		if err := os.WriteFile(outputFile, []byte(rendered.String()), 0o600); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Results written to %s\n", outputFile)
		return nil
	}

	_, _ = fmt.Fprint(cmd.OutOrStdout(), rendered.String())
	return nil
}

// printSummary reports failures and the batch outcome on stderr.
func printSummary(w io.Writer, result *batch.Result, cfg batch.Config) {
	if cfg.Quiet {
		return
	}

	red := color.New(color.FgRed)
	for _, fe := range result.Errors {
		red.Fprintf(w, "✗ %s: %v\n", fe.Path, fe.Err)
	}
	for _, doc := range result.Documents {
		if doc.Failed == 0 {
			continue
		}
		red.Fprintf(w, "✗ %s: %d of %d page(s) failed\n", doc.Document, doc.Failed, doc.TotalPages)
		shown := 0
		for _, page := range doc.Pages {
			if page.Success {
				continue
			}
			if shown == maxFailuresShown {
				_, _ = fmt.Fprintf(w, "    ... and %d more\n", doc.Failed-shown)
				break
			}
			_, _ = fmt.Fprintf(w, "    page %d: %s\n", page.Page, page.Error)
			shown++
		}
	}

	stats := result.Stats()
	switch {
	case result.Cancelled():
		color.New(color.FgYellow).Fprintf(w, "⚠ Recognition cancelled: %d of %d page(s) finished\n",
			stats.PagesSucceeded, stats.Pages)
	case stats.PagesFailed == 0 && stats.FileErrors == 0:
		color.New(color.FgGreen).Fprintf(w, "✓ Recognition complete: %d page(s) in %d document(s)\n",
			stats.Pages, stats.Documents)
	default:
		red.Fprintf(w, "✗ Recognition finished with failures: %d of %d page(s) ok\n",
			stats.PagesSucceeded, stats.Pages)
	}

	if cfg.ShowStats {
		result.PrintStats(w)
	}
}

// applyRecognizeOverrides maps changed CLI flags onto the configuration.
// Only flags the user actually set override config file and environment
// values.
func applyRecognizeOverrides(cfg *config.Config, cmd *cobra.Command) {
	if cmd.Flags().Changed("format") {
		cfg.Output.Format, _ = cmd.Flags().GetString("format")
	}
	if cmd.Flags().Changed("output") {
		cfg.Output.File, _ = cmd.Flags().GetString("output")
	}
	if cmd.Flags().Changed("output-dir") {
		cfg.Output.Dir, _ = cmd.Flags().GetString("output-dir")
	}
	if cmd.Flags().Changed("pages") {
		cfg.PDF.Pages, _ = cmd.Flags().GetString("pages")
	}
	if cmd.Flags().Changed("model") {
		cfg.API.Model, _ = cmd.Flags().GetString("model")
	}
	if cmd.Flags().Changed("mode") {
		cfg.Recognition.Mode, _ = cmd.Flags().GetString("mode")
	}
	if cmd.Flags().Changed("prompt") {
		cfg.Recognition.Prompt, _ = cmd.Flags().GetString("prompt")
	}
	if cmd.Flags().Changed("dpi") {
		cfg.Pipeline.DPI, _ = cmd.Flags().GetInt("dpi")
	}
	if cmd.Flags().Changed("region") {
		cfg.API.Region, _ = cmd.Flags().GetString("region")
	}
	if cmd.Flags().Changed("api-key") {
		cfg.API.Key, _ = cmd.Flags().GetString("api-key")
	}
	if cmd.Flags().Changed("concurrency") {
		cfg.Pipeline.Concurrency, _ = cmd.Flags().GetInt("concurrency")
	}
	if cmd.Flags().Changed("timeout") {
		cfg.Recognition.TimeoutSec, _ = cmd.Flags().GetInt("timeout")
	}
	if cmd.Flags().Changed("max-attempts") {
		cfg.Recognition.MaxAttempts, _ = cmd.Flags().GetInt("max-attempts")
	}
	if cmd.Flags().Changed("password") {
		cfg.PDF.UserPassword, _ = cmd.Flags().GetString("password")
	}
	if cmd.Flags().Changed("cancel-mode") {
		cfg.Pipeline.CancelMode, _ = cmd.Flags().GetString("cancel-mode")
	}
	if cmd.Flags().Changed("drain-grace") {
		cfg.Pipeline.DrainGraceSec, _ = cmd.Flags().GetInt("drain-grace")
	}
	if cmd.Flags().Changed("recursive") {
		cfg.Batch.Recursive, _ = cmd.Flags().GetBool("recursive")
	}
	if cmd.Flags().Changed("include") {
		cfg.Batch.IncludePatterns, _ = cmd.Flags().GetStringSlice("include")
	}
	if cmd.Flags().Changed("exclude") {
		cfg.Batch.ExcludePatterns, _ = cmd.Flags().GetStringSlice("exclude")
	}
	if cmd.Flags().Changed("skip-existing") {
		cfg.Batch.SkipExisting, _ = cmd.Flags().GetBool("skip-existing")
	}
	if cmd.Flags().Changed("quiet") {
		cfg.Batch.Quiet, _ = cmd.Flags().GetBool("quiet")
	}
	if cmd.Flags().Changed("stats") {
		cfg.Batch.ShowStats, _ = cmd.Flags().GetBool("stats")
	}
}

// addRecognizeFlags registers the shared flag set of the recognize, table
// and layout commands.
func addRecognizeFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("format", "f", "text", "output format (text, markdown, json, yaml)")
	cmd.Flags().StringP("output", "o", "", "output file (default: stdout)")
	cmd.Flags().String("output-dir", "", "directory for per-document result files")
	cmd.Flags().StringP("pages", "p", "", "page range (e.g. 1-5,8,10-15)")
	cmd.Flags().StringP("model", "m", "flash", "model alias or id (flash, plus, ocr)")
	cmd.Flags().String("mode", "text", "recognition mode (text, markdown, json, table, layout)")
	cmd.Flags().String("prompt", "", "custom recognition prompt (overrides the mode template)")
	cmd.Flags().Int("dpi", 300, "render resolution for PDF pages")
	cmd.Flags().String("region", "beijing", "API region (beijing, singapore)")
	cmd.Flags().String("api-key", "", "API key (overrides FOLIO_API_KEY / DASHSCOPE_API_KEY)")
	cmd.Flags().Int("concurrency", 10, "maximum pages recognized in parallel")
	cmd.Flags().Int("timeout", 60, "per-page request timeout in seconds")
	cmd.Flags().Int("max-attempts", 3, "attempts per page before giving up")
	cmd.Flags().String("password", "", "password for encrypted PDFs")
	cmd.Flags().String("cancel-mode", "graceful", "cancellation behavior (graceful, hard)")
	cmd.Flags().Int("drain-grace", 120, "seconds to wait for in-flight pages on graceful cancel")
	cmd.Flags().BoolP("recursive", "r", false, "recursively scan directories")
	cmd.Flags().StringSlice("include", nil, "file patterns to include (e.g. *.pdf)")
	cmd.Flags().StringSlice("exclude", nil, "file patterns to exclude")
	cmd.Flags().Bool("skip-existing", false, "skip documents whose result file already exists")
	cmd.Flags().Bool("no-progress", false, "disable the progress bar")
	cmd.Flags().BoolP("quiet", "q", false, "suppress progress and summary output")
	cmd.Flags().Bool("stats", true, "print batch statistics")
}

func init() {
	rootCmd.AddCommand(recognizeCmd)
	addRecognizeFlags(recognizeCmd)
}

// GetRecognizeCommand returns the recognize command for testing purposes.
func GetRecognizeCommand() *cobra.Command {
	return recognizeCmd
}
