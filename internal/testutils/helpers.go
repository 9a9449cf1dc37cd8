package testutils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/conneroisu/peek/internal/config"
)

// TestModulePath is the module path of projects made by CreateTempProject.
const TestModulePath = "example.com/app"

// CreateTempProject creates a temporary Go module for testing
func CreateTempProject(t *testing.T) string {
	t.Helper()
	tempDir := t.TempDir()

	gomod := fmt.Sprintf("module %s\n\ngo 1.24\n", TestModulePath)
	require.NoError(t, os.WriteFile(filepath.Join(tempDir, "go.mod"), []byte(gomod), 0o644))

	for _, dir := range []string{"widgets", "screens"} {
		require.NoError(t, os.MkdirAll(filepath.Join(tempDir, dir), 0o755))
	}

	return tempDir
}

// WriteSource writes a Go file in package pkg declaring one function per
// name. Names prefixed with "@" carry the preview directive.
func WriteSource(t *testing.T, path, pkg string, funcs ...string) string {
	t.Helper()

	var b strings.Builder
	fmt.Fprintf(&b, "package %s\n", pkg)
	for _, fn := range funcs {
		name, annotated := strings.CutPrefix(fn, "@")
		b.WriteString("\n")
		if annotated {
			b.WriteString("//peek:preview\n")
		}
		fmt.Fprintf(&b, "func %s() {}\n", name)
	}

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}

// CreateTestConfig creates a test configuration rooted at projectDir
func CreateTestConfig(projectDir string) *config.Config {
	return &config.Config{
		Project: config.ProjectConfig{
			Root:   projectDir,
			Marker: config.DefaultMarker,
		},
		Scaffold: config.ScaffoldConfig{
			Dir:         config.DefaultScaffoldDir,
			ProjectName: config.DefaultProjectName,
			Artifact:    config.DefaultArtifact,
		},
		Toolkit: config.ToolkitConfig{
			Binary:   config.DefaultToolkit,
			Platform: "linux",
		},
		Runtime: config.RuntimeConfig{
			Module:  config.DefaultRuntimeModule,
			Version: "v0.0.0",
		},
		Watch: config.WatchConfig{
			Debounce: 10 * time.Millisecond,
		},
		Log: config.LogConfig{
			Level:  "debug",
			Format: "text",
		},
	}
}

// WaitFor polls cond until it returns true or timeout elapses.
func WaitFor(t *testing.T, timeout time.Duration, cond func() bool, msgAndArgs ...interface{}) {
	t.Helper()
	require.Eventually(t, cond, timeout, 5*time.Millisecond, msgAndArgs...)
}
