// Package cmd provides the command-line interface for peek.
//
// Configuration System:
//
//	Settings are resolved from several sources with clear precedence:
//	1. Command-line flags (--config, --log-level, --log-format) - highest priority
//	2. PEEK_CONFIG_FILE environment variable - custom config file path
//	3. Individual environment variables (PEEK_TOOLKIT_PLATFORM, etc.)
//	4. Configuration file (.peek.yml) - lowest priority
//
// Environment Variables:
//
//	PEEK_CONFIG_FILE: Path to custom configuration file
//	PEEK_TOOLKIT_BINARY: Toolkit executable
//	PEEK_TOOLKIT_PLATFORM: Target platform
//	PEEK_DEVELOPMENT_CLEAN_SCAFFOLD: Recreate the scaffold on start
//	And the rest following the PEEK_<SECTION>_<OPTION> pattern
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/peek/internal/config"
	"github.com/conneroisu/peek/internal/logging"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "peek",
	Short: "Live previews for annotated Go functions",
	Long: `peek discovers preview functions in a Go module, generates an aggregator
for them inside a companion scaffold project, and keeps the running
application hot-reloaded as the source changes.

Mark a function as a preview with a directive in its doc comment:

  //peek:preview
  func ButtonPreviews() []preview.Preview { ... }

Quick Start:
  peek init                       Write a default .peek.yml
  peek list                       List discovered previews
  peek start                      Build, run and live-update the previews

Command Aliases (for faster typing):
  start (s), list (l), generate (g)`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .peek.yml, can also use PEEK_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "log format (auto, text, json)")
	_ = viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log-format", rootCmd.PersistentFlags().Lookup("log-format"))
}

// initConfig initializes the configuration system.
//
// Configuration Loading Priority (highest to lowest):
//  1. --config flag
//  2. PEEK_CONFIG_FILE environment variable
//  3. .peek.yml in the current directory
//
// Every key can also be set from the environment with the PEEK_ prefix, with
// dots replaced by underscores (toolkit.platform is PEEK_TOOLKIT_PLATFORM).
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("PEEK_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".peek")
	}

	viper.SetEnvPrefix("PEEK")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()
	config.BindEnv(viper.GetViper())

	// A missing file is fine; defaults and the environment still apply.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// loadSession loads the configuration and builds the logger for a command.
func loadSession() (*config.Config, logging.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid log level: %w", err)
	}

	logger := logging.NewLogger(&logging.LoggerConfig{
		Level:  level,
		Format: cfg.Log.Format,
		Output: os.Stderr,
	})
	return cfg, logger, nil
}

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
