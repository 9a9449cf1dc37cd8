//go:build property
// +build property

package config

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestConfigurationProperties tests configuration defaulting and validation properties
func TestConfigurationProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	// Property: Defaulted configuration is always valid
	properties.Property("default config validity", prop.ForAll(
		func() bool {
			cfg := &Config{}
			loadDefaults(cfg)
			return validateConfig(cfg) == nil
		},
	))

	// Property: Applying defaults twice changes nothing
	properties.Property("defaults are idempotent", prop.ForAll(
		func(marker string, debounceMs int) bool {
			cfg := &Config{
				Project: ProjectConfig{Marker: marker},
				Watch:   WatchConfig{Debounce: time.Duration(debounceMs) * time.Millisecond},
			}
			loadDefaults(cfg)
			first := *cfg
			loadDefaults(cfg)
			return first.Project.Marker == cfg.Project.Marker &&
				first.Watch.Debounce == cfg.Watch.Debounce &&
				first.Toolkit.Platform == cfg.Toolkit.Platform
		},
		gen.AlphaString(),
		gen.IntRange(0, 5000),
	))

	// Property: Scaffold dirs that escape the project root are rejected
	properties.Property("scaffold traversal rejection", prop.ForAll(
		func(segment string) bool {
			cfg := &Config{}
			loadDefaults(cfg)
			cfg.Scaffold.Dir = filepath.Join("..", segment)
			return validateConfig(cfg) != nil
		},
		gen.Identifier(),
	))

	// Property: Artifact names are accepted only as bare .go file names
	properties.Property("artifact name validation", prop.ForAll(
		func(name string, ext string) bool {
			cfg := &Config{}
			loadDefaults(cfg)
			cfg.Scaffold.Artifact = name + ext
			err := validateConfig(cfg)
			if ext == ".go" && !strings.ContainsRune(name, filepath.Separator) {
				return err == nil
			}
			return err != nil
		},
		gen.Identifier(),
		gen.OneConstOf(".go", ".txt", "", ".gox"),
	))

	properties.TestingRun(t)
}
