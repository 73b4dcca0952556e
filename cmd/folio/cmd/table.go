package cmd

import (
	"github.com/lindenau-systems/folio/internal/recognize"
	"github.com/spf13/cobra"
)

// tableCmd represents the table command.
var tableCmd = &cobra.Command{
	Use:   "table [files...]",
	Short: "Extract tables from PDFs and images",
	Long: `Extract tables from PDF or image documents as HTML table markup.

Uses the plus model unless --model says otherwise; tables need the stronger
model to keep cell structure intact.

Examples:
  folio table report.pdf
  folio table report.pdf --pages 5-10 -o tables.txt
  folio table invoice.png --format json`,
	Args:         cobra.MinimumNArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRecognize(cmd, args, modePreset{
			mode:  recognize.ModeTable,
			model: recognize.ModelPlus,
		})
	},
}

func init() {
	rootCmd.AddCommand(tableCmd)
	addRecognizeFlags(tableCmd)
}
