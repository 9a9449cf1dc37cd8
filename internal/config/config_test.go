package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/peek/internal/errors"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name        string
		setup       func(v *viper.Viper)
		expectError bool
		check       func(t *testing.T, cfg *Config)
	}{
		{
			name:  "defaults",
			setup: func(v *viper.Viper) {},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, ".", cfg.Project.Root)
				assert.Equal(t, DefaultMarker, cfg.Project.Marker)
				assert.Equal(t, DefaultScaffoldDir, cfg.Scaffold.Dir)
				assert.Equal(t, DefaultArtifact, cfg.Scaffold.Artifact)
				assert.Equal(t, DefaultToolkit, cfg.Toolkit.Binary)
				assert.Equal(t, HostPlatform(), cfg.Toolkit.Platform)
				assert.Equal(t, DefaultRuntimeModule, cfg.Runtime.Module)
				assert.Equal(t, DefaultDebounce, cfg.Watch.Debounce)
				assert.False(t, cfg.Development.CleanScaffold)
				assert.Equal(t, "info", cfg.Log.Level)
				assert.Equal(t, "auto", cfg.Log.Format)
			},
		},
		{
			name: "custom values",
			setup: func(v *viper.Viper) {
				v.Set("project.root", "./app")
				v.Set("project.exclude", []string{"gen_*.go"})
				v.Set("toolkit.binary", "mytoolkit")
				v.Set("toolkit.platform", "web")
				v.Set("watch.debounce", "250ms")
				v.Set("development.clean_scaffold", true)
				v.Set("runtime.replace", "../peek")
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "./app", cfg.Project.Root)
				assert.Equal(t, []string{"gen_*.go"}, cfg.Project.Exclude)
				assert.Equal(t, "mytoolkit", cfg.Toolkit.Binary)
				assert.Equal(t, "web", cfg.Toolkit.Platform)
				assert.Equal(t, 250*time.Millisecond, cfg.Watch.Debounce)
				assert.True(t, cfg.Development.CleanScaffold)
				assert.Equal(t, "../peek", cfg.Runtime.Replace)
			},
		},
		{
			name: "log flags override file values",
			setup: func(v *viper.Viper) {
				v.Set("log.level", "warn")
				v.Set("log-level", "debug")
				v.Set("log-format", "json")
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "debug", cfg.Log.Level)
				assert.Equal(t, "json", cfg.Log.Format)
			},
		},
		{
			name:        "scaffold traversal rejected",
			setup:       func(v *viper.Viper) { v.Set("scaffold.dir", "../outside") },
			expectError: true,
		},
		{
			name:        "absolute scaffold rejected",
			setup:       func(v *viper.Viper) { v.Set("scaffold.dir", "/tmp/scaffold") },
			expectError: true,
		},
		{
			name:        "artifact must be a go file",
			setup:       func(v *viper.Viper) { v.Set("scaffold.artifact", "previews.txt") },
			expectError: true,
		},
		{
			name:        "bad log format",
			setup:       func(v *viper.Viper) { v.Set("log.format", "xml") },
			expectError: true,
		},
		{
			name:        "bad exclude pattern",
			setup:       func(v *viper.Viper) { v.Set("project.exclude", []string{"[unterminated"}) },
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			tt.setup(v)

			cfg, err := LoadFrom(v)
			if tt.expectError {
				require.Error(t, err)
				assert.True(t, errors.HasErrorType(err, errors.ErrorTypeConfig))
				assert.Nil(t, cfg)
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestLoadWithEnvironment(t *testing.T) {
	t.Setenv("PEEK_TOOLKIT_BINARY", "envkit")

	v := viper.New()
	v.SetEnvPrefix("PEEK")
	v.AutomaticEnv()
	require.NoError(t, v.BindEnv("toolkit.binary", "PEEK_TOOLKIT_BINARY"))

	cfg, err := LoadFrom(v)
	require.NoError(t, err)
	assert.Equal(t, "envkit", cfg.Toolkit.Binary)
}

func TestBindEnv(t *testing.T) {
	t.Setenv("PEEK_TOOLKIT_PLATFORM", "macos")
	t.Setenv("PEEK_DEVELOPMENT_CLEAN_SCAFFOLD", "true")
	t.Setenv("PEEK_WATCH_DEBOUNCE", "250ms")

	v := viper.New()
	v.SetEnvPrefix("PEEK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	BindEnv(v)

	cfg, err := LoadFrom(v)
	require.NoError(t, err)
	assert.Equal(t, "macos", cfg.Toolkit.Platform)
	assert.True(t, cfg.Development.CleanScaffold)
	assert.Equal(t, 250*time.Millisecond, cfg.Watch.Debounce)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".peek.yml")
	content := `project:
  marker: custom:preview
scaffold:
  dir: build/scaffold
watch:
  debounce: 1s
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := LoadFrom(v)
	require.NoError(t, err)
	assert.Equal(t, "custom:preview", cfg.Project.Marker)
	assert.Equal(t, "build/scaffold", cfg.Scaffold.Dir)
	assert.Equal(t, time.Second, cfg.Watch.Debounce)
}

func TestDerivedPaths(t *testing.T) {
	root := t.TempDir()
	cfg := &Config{Project: ProjectConfig{Root: root}}
	loadDefaults(cfg)

	projectRoot, err := cfg.ProjectRoot()
	require.NoError(t, err)
	assert.Equal(t, filepath.Clean(root), projectRoot)

	scaffold, err := cfg.ScaffoldPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, ".peek", "scaffold"), scaffold)

	artifact, err := cfg.ArtifactPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, ".peek", "scaffold", "previews.go"), artifact)
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, validateConfig(cfg))
	assert.Equal(t, DefaultScaffoldDir, cfg.Scaffold.Dir)
	assert.Equal(t, DefaultDebounce, cfg.Watch.Debounce)
}
