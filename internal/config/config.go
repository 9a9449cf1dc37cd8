// Package config provides configuration management for peek using Viper for
// flexible loading from files, environment variables, and command-line flags.
//
// The configuration covers the project being scanned, the companion scaffold
// project and the external toolkit that builds and runs it, the preview
// runtime library the scaffold depends on, file watching, and logging.
// Environment variables use the PEEK_ prefix (PEEK_TOOLKIT_BINARY,
// PEEK_DEVELOPMENT_CLEAN_SCAFFOLD, ...).
package config

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/conneroisu/peek/internal/errors"
	"github.com/conneroisu/peek/internal/validation"
)

// Config is the fully resolved peek configuration.
type Config struct {
	Project     ProjectConfig     `mapstructure:"project" yaml:"project"`
	Scaffold    ScaffoldConfig    `mapstructure:"scaffold" yaml:"scaffold"`
	Toolkit     ToolkitConfig     `mapstructure:"toolkit" yaml:"toolkit"`
	Runtime     RuntimeConfig     `mapstructure:"runtime" yaml:"runtime"`
	Watch       WatchConfig       `mapstructure:"watch" yaml:"watch"`
	Development DevelopmentConfig `mapstructure:"development" yaml:"development"`
	Log         LogConfig         `mapstructure:"log" yaml:"log"`
}

// ProjectConfig describes the source tree scanned for previews.
type ProjectConfig struct {
	Root    string   `mapstructure:"root" yaml:"root"`
	Marker  string   `mapstructure:"marker" yaml:"marker"`
	Exclude []string `mapstructure:"exclude" yaml:"exclude"`
}

// ScaffoldConfig locates the companion project relative to the project root.
type ScaffoldConfig struct {
	Dir         string `mapstructure:"dir" yaml:"dir"`
	ProjectName string `mapstructure:"project_name" yaml:"project_name"`
	Artifact    string `mapstructure:"artifact" yaml:"artifact"`
}

// ToolkitConfig names the external toolkit binary and its target platform.
type ToolkitConfig struct {
	Binary   string `mapstructure:"binary" yaml:"binary"`
	Platform string `mapstructure:"platform" yaml:"platform"`
}

// RuntimeConfig identifies the preview runtime library the scaffold depends on.
type RuntimeConfig struct {
	Module  string `mapstructure:"module" yaml:"module"`
	Version string `mapstructure:"version" yaml:"version"`
	// Replace points the scaffold at a local checkout of the runtime module.
	Replace string `mapstructure:"replace" yaml:"replace,omitempty"`
}

type WatchConfig struct {
	Debounce time.Duration `mapstructure:"debounce" yaml:"debounce"`
}

type DevelopmentConfig struct {
	// CleanScaffold recreates the scaffold on every start.
	CleanScaffold bool `mapstructure:"clean_scaffold" yaml:"clean_scaffold"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Defaults.
const (
	DefaultMarker        = "peek:preview"
	DefaultScaffoldDir   = ".peek/scaffold"
	DefaultProjectName   = "peek_scaffold"
	DefaultArtifact      = "previews.go"
	DefaultToolkit       = "toolkit"
	DefaultRuntimeModule = "github.com/conneroisu/peek"
	DefaultDebounce      = 100 * time.Millisecond
)

// HostPlatform maps the current GOOS onto the toolkit's platform names.
func HostPlatform() string {
	switch runtime.GOOS {
	case "darwin":
		return "macos"
	default:
		return runtime.GOOS
	}
}

// Keys lists every configuration key. Unmarshal only sees environment
// variables for keys viper knows about, so BindEnv registers them all.
var Keys = []string{
	"project.root", "project.marker", "project.exclude",
	"scaffold.dir", "scaffold.project_name", "scaffold.artifact",
	"toolkit.binary", "toolkit.platform",
	"runtime.module", "runtime.version", "runtime.replace",
	"watch.debounce",
	"development.clean_scaffold",
	"log.level", "log.format",
}

// BindEnv makes every key settable through the environment under v's prefix.
func BindEnv(v *viper.Viper) {
	for _, key := range Keys {
		_ = v.BindEnv(key)
	}
}

// Load unmarshals the global viper state into a Config, applies defaults and
// validates the result.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom is Load for an explicit viper instance.
func LoadFrom(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.WrapConfig(err, errors.ErrCodeConfigInvalid, "decoding configuration")
	}

	// Flags bound under their CLI names take precedence over the file.
	if v.IsSet("log-level") {
		cfg.Log.Level = v.GetString("log-level")
	}
	if v.IsSet("log-format") {
		cfg.Log.Format = v.GetString("log-format")
	}

	loadDefaults(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	var cfg Config
	loadDefaults(&cfg)
	return &cfg
}

func loadDefaults(cfg *Config) {
	if cfg.Project.Root == "" {
		cfg.Project.Root = "."
	}
	if cfg.Project.Marker == "" {
		cfg.Project.Marker = DefaultMarker
	}
	if cfg.Scaffold.Dir == "" {
		cfg.Scaffold.Dir = DefaultScaffoldDir
	}
	if cfg.Scaffold.ProjectName == "" {
		cfg.Scaffold.ProjectName = DefaultProjectName
	}
	if cfg.Scaffold.Artifact == "" {
		cfg.Scaffold.Artifact = DefaultArtifact
	}
	if cfg.Toolkit.Binary == "" {
		cfg.Toolkit.Binary = DefaultToolkit
	}
	if cfg.Toolkit.Platform == "" {
		cfg.Toolkit.Platform = HostPlatform()
	}
	if cfg.Runtime.Module == "" {
		cfg.Runtime.Module = DefaultRuntimeModule
	}
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = DefaultDebounce
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "auto"
	}
}

// validateConfig validates configuration values for security and correctness
func validateConfig(cfg *Config) error {
	if err := validation.ValidatePath(cfg.Scaffold.Dir); err != nil {
		return errors.ConfigurationError("scaffold.dir", err.Error(), cfg.Scaffold.Dir)
	}
	if filepath.IsAbs(cfg.Scaffold.Dir) {
		return errors.ConfigurationError("scaffold.dir", "must be relative to the project root", cfg.Scaffold.Dir)
	}
	if strings.ContainsRune(cfg.Scaffold.Artifact, filepath.Separator) || !strings.HasSuffix(cfg.Scaffold.Artifact, ".go") {
		return errors.ConfigurationError("scaffold.artifact", "must be a .go file name", cfg.Scaffold.Artifact)
	}
	if err := validation.ValidateProjectName(cfg.Scaffold.ProjectName); err != nil {
		return errors.ConfigurationError("scaffold.project_name", err.Error(), cfg.Scaffold.ProjectName)
	}
	if strings.ContainsAny(cfg.Project.Marker, " \t\n") {
		return errors.ConfigurationError("project.marker", "must not contain whitespace", cfg.Project.Marker)
	}
	if cfg.Watch.Debounce < 0 {
		return errors.ConfigurationError("watch.debounce", "must not be negative", cfg.Watch.Debounce)
	}
	switch cfg.Log.Format {
	case "auto", "text", "json":
	default:
		return errors.ConfigurationError("log.format", "must be auto, text or json", cfg.Log.Format)
	}
	for _, pattern := range cfg.Project.Exclude {
		if _, err := filepath.Match(pattern, ""); err != nil {
			return errors.ConfigurationError("project.exclude", err.Error(), pattern)
		}
	}
	return nil
}

// ProjectRoot returns the absolute project root.
func (c *Config) ProjectRoot() (string, error) {
	root, err := filepath.Abs(c.Project.Root)
	if err != nil {
		return "", errors.WrapIO(err, errors.ErrCodeInvalidPath, "resolving project root")
	}
	return filepath.Clean(root), nil
}

// ScaffoldPath returns the absolute companion project directory.
func (c *Config) ScaffoldPath() (string, error) {
	root, err := c.ProjectRoot()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, filepath.FromSlash(c.Scaffold.Dir)), nil
}

// ArtifactPath returns the absolute path of the generated aggregator file.
func (c *Config) ArtifactPath() (string, error) {
	dir, err := c.ScaffoldPath()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, c.Scaffold.Artifact), nil
}
