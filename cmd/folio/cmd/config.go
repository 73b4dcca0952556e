package cmd

import (
	"fmt"

	"github.com/lindenau-systems/folio/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// configCmd groups configuration management commands.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Inspect and generate folio configuration files.

Examples:
  folio config init
  folio config show
  folio config info`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// configInitCmd writes a config file populated with every default.
var configInitCmd = &cobra.Command{
	Use:   "init [file]",
	Short: "Write a configuration file with all defaults",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		filename := ""
		if len(args) > 0 {
			filename = args[0]
		}
		if err := config.GenerateDefaultConfigFile(filename); err != nil {
			return fmt.Errorf("failed to write config file: %w", err)
		}
		if filename == "" {
			filename = config.ConfigFileName + ".yaml"
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", filename)
		return nil
	},
}

// configShowCmd prints the resolved configuration after merging defaults,
// config file, environment and bound flags.
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the resolved configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		loader := GetConfigLoader()

		if file := loader.GetConfigFileUsed(); file != "" {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "# config file: %s\n", file)
		}

		bts, err := yaml.Marshal(loader.GetResolvedConfig())
		if err != nil {
			return fmt.Errorf("failed to render configuration: %w", err)
		}
		_, _ = fmt.Fprint(cmd.OutOrStdout(), string(bts))
		return nil
	},
}

// configInfoCmd reports where configuration is loaded from.
var configInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show configuration sources and search paths",
	RunE: func(cmd *cobra.Command, args []string) error {
		GetConfigLoader().PrintConfigInfo()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInfoCmd)
}
