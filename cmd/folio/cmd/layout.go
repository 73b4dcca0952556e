package cmd

import (
	"github.com/lindenau-systems/folio/internal/recognize"
	"github.com/spf13/cobra"
)

// layoutCmd represents the layout command.
var layoutCmd = &cobra.Command{
	Use:   "layout [files...]",
	Short: "Convert documents to layout-preserving Markdown",
	Long: `Convert PDF or image documents to Markdown that follows the visual
layout of the page: headings, multi-column reading order and tables.

Examples:
  folio layout paper.pdf -o paper.md
  folio layout magazine.pdf --pages 1-3 --model plus`,
	Args:         cobra.MinimumNArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRecognize(cmd, args, modePreset{mode: recognize.ModeLayout})
	},
}

func init() {
	rootCmd.AddCommand(layoutCmd)
	addRecognizeFlags(layoutCmd)
}
