package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conneroisu/peek/internal/orchestrator"
)

// generateCmd represents the generate command.
var generateCmd = &cobra.Command{
	Use:     "generate",
	Aliases: []string{"g"},
	Short:   "Regenerate the preview aggregator once",
	Long: `Scan the module and write the preview aggregator into the scaffold
project without building or running anything.

The scaffold must already exist; "peek start" creates it. An unchanged
aggregator is left untouched.

Examples:
  peek generate          # Rewrite the aggregator
  peek g                 # Same, using the alias`,
	RunE: runGenerateCommand,
}

func init() {
	rootCmd.AddCommand(generateCmd)
}

func runGenerateCommand(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadSession()
	if err != nil {
		return err
	}

	o, err := orchestrator.New(cfg, logger)
	if err != nil {
		return err
	}

	if err := o.Generate(cmd.Context()); err != nil {
		return err
	}

	mapping := o.Mapping()
	fmt.Fprintf(cmd.OutOrStdout(), "Generated %d previews from %d files into %s\n",
		mapping.Count(), mapping.Len(), o.ArtifactPath())
	return nil
}
