package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conneroisu/peek/internal/orchestrator"
)

var startCmd = &cobra.Command{
	Use:     "start",
	Aliases: []string{"s"},
	Short:   "Build, run and live-update the previews",
	Long: `Start a preview session for the module in the current directory.

peek creates the scaffold project on first use, scans the module for
preview functions, generates the aggregator and starts the toolkit's run
process. While it runs, every change to a Go file is rescanned and the
application is hot-reloaded. The command exits with the run process's exit
code.

Examples:
  peek start                          # Start with .peek.yml settings
  peek start --platform macos         # Override the target platform
  peek start --clean                  # Recreate the scaffold first
  PEEK_TOOLKIT_BINARY=mytk peek s     # Use a different toolkit binary`,
	RunE: runStart,
}

var (
	startPlatform string
	startClean    bool
)

func init() {
	rootCmd.AddCommand(startCmd)

	startCmd.Flags().StringVar(&startPlatform, "platform", "", "Target platform (defaults to the host)")
	startCmd.Flags().BoolVar(&startClean, "clean", false, "Recreate the scaffold before starting")
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadSession()
	if err != nil {
		return err
	}
	if startPlatform != "" {
		cfg.Toolkit.Platform = startPlatform
	}
	if startClean {
		cfg.Development.CleanScaffold = true
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	o, err := orchestrator.New(cfg, logger)
	if err != nil {
		return err
	}

	code, err := o.Run(ctx)
	if err != nil {
		return err
	}
	if ctx.Err() != nil {
		// Interrupted by the user; the kill is expected.
		return nil
	}
	if code != 0 {
		return &ExitError{Code: code}
	}
	return nil
}

// ExitError carries the run process's non-zero exit code out of the command
// so deferred cleanup runs before the CLI exits with it.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("run process exited with code %d", e.Code)
}

// ExitCode reports the exit code err asks the CLI to exit with, if any.
func ExitCode(err error) (int, bool) {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code, true
	}
	return 0, false
}
