package gomod

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/mod/modfile"

	"github.com/conneroisu/peek/internal/errors"
)

func TestModulePath(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "go.mod"), []byte("module example.com/app\n\ngo 1.24\n"), 0o644))

	path, err := ModulePath(dir)
	require.NoError(t, err)
	assert.Equal(t, "example.com/app", path)
}

func TestModulePathMissing(t *testing.T) {
	_, err := ModulePath(t.TempDir())
	require.Error(t, err)
	assert.True(t, errors.HasErrorCode(err, errors.ErrCodeModuleNotFound))
}

func TestModulePathMalformed(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "go.mod"), []byte("module\n"), 0o644))

	_, err := ModulePath(dir)
	assert.Error(t, err)
}

func TestRegister(t *testing.T) {
	dir := t.TempDir()
	gomodPath := filepath.Join(dir, "go.mod")
	require.NoError(t, os.WriteFile(gomodPath, []byte(`module peek_scaffold

go 1.24

require example.com/app v0.1.0

replace example.com/app => /old/location
`), 0o644))

	err := Register(gomodPath,
		Dependency{Path: "github.com/conneroisu/peek", Version: "v0.0.0", Replace: "/src/peek"},
		Dependency{Path: "example.com/app", Version: "v0.0.0", Replace: "/work/app"},
	)
	require.NoError(t, err)

	data, err := os.ReadFile(gomodPath)
	require.NoError(t, err)
	f, err := modfile.Parse(gomodPath, data, nil)
	require.NoError(t, err)

	required := map[string]string{}
	for _, r := range f.Require {
		required[r.Mod.Path] = r.Mod.Version
	}
	assert.Equal(t, map[string]string{
		"github.com/conneroisu/peek": "v0.0.0",
		"example.com/app":            "v0.0.0",
	}, required)

	replaced := map[string]string{}
	for _, r := range f.Replace {
		replaced[r.Old.Path] = r.New.Path
	}
	assert.Equal(t, map[string]string{
		"github.com/conneroisu/peek": "/src/peek",
		"example.com/app":            "/work/app",
	}, replaced)
}

func TestRegisterIdempotent(t *testing.T) {
	dir := t.TempDir()
	gomodPath := filepath.Join(dir, "go.mod")
	require.NoError(t, os.WriteFile(gomodPath, []byte("module peek_scaffold\n\ngo 1.24\n"), 0o644))

	dep := Dependency{Path: "example.com/app", Version: "v0.0.0", Replace: "/work/app"}
	require.NoError(t, Register(gomodPath, dep))
	first, err := os.ReadFile(gomodPath)
	require.NoError(t, err)

	require.NoError(t, Register(gomodPath, dep))
	second, err := os.ReadFile(gomodPath)
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second))
}

func TestRegisterInvalidPath(t *testing.T) {
	dir := t.TempDir()
	gomodPath := filepath.Join(dir, "go.mod")
	require.NoError(t, os.WriteFile(gomodPath, []byte("module peek_scaffold\n"), 0o644))

	err := Register(gomodPath, Dependency{Path: "not a path", Version: "v0.0.0"})
	assert.Error(t, err)
}
