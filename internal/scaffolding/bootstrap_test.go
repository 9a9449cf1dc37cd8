package scaffolding_test

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/mod/modfile"

	"github.com/conneroisu/peek/internal/build"
	"github.com/conneroisu/peek/internal/errors"
	"github.com/conneroisu/peek/internal/renderer"
	"github.com/conneroisu/peek/internal/scaffolding"
	"github.com/conneroisu/peek/internal/testutils"
)

const runtimeModule = "github.com/conneroisu/peek"

func newBootstrapper(t *testing.T, root string, exec build.Executor, clean bool) *scaffolding.Bootstrapper {
	t.Helper()

	tk, err := build.NewToolkit("toolkit", "peek_scaffold", build.WithExecutor(exec))
	require.NoError(t, err)

	dir := filepath.Join(root, ".peek", "scaffold")
	r := renderer.New(renderer.Options{
		ProjectRoot:   root,
		ModulePath:    testutils.TestModulePath,
		RuntimeImport: scaffolding.RuntimeImport(runtimeModule),
		ArtifactPath:  filepath.Join(dir, "previews.go"),
	})

	return scaffolding.New(scaffolding.Options{
		ProjectRoot:    root,
		ModulePath:     testutils.TestModulePath,
		Dir:            dir,
		Platform:       "linux",
		RuntimeModule:  runtimeModule,
		RuntimeVersion: "v1.2.3",
		Clean:          clean,
		Toolkit:        tk,
		Renderer:       r,
	})
}

func TestEnsureCreatesScaffold(t *testing.T) {
	root := testutils.CreateTempProject(t)
	exec := testutils.CreatingExecutor()
	b := newBootstrapper(t, root, exec, false)

	created, err := b.Ensure(context.Background())
	require.NoError(t, err)
	assert.True(t, created)

	runs := exec.Runs()
	require.Len(t, runs, 2)
	assert.Equal(t,
		[]string{"create", "--platforms=linux", "--project-name=peek_scaffold", b.Dir()},
		runs[0].Args)
	assert.Equal(t, []string{"build", "linux", "--debug"}, runs[1].Args)

	main, err := os.ReadFile(filepath.Join(b.Dir(), scaffolding.EntryPoint))
	require.NoError(t, err)
	assert.Contains(t, string(main), `preview "github.com/conneroisu/peek/pkg/preview"`)
	assert.Contains(t, string(main), "preview.Serve(Previews())")

	artifact, err := os.ReadFile(filepath.Join(b.Dir(), "previews.go"))
	require.NoError(t, err)
	assert.Contains(t, string(artifact), "previews := []preview.Preview{}")

	data, err := os.ReadFile(filepath.Join(b.Dir(), "go.mod"))
	require.NoError(t, err)
	f, err := modfile.Parse("go.mod", data, nil)
	require.NoError(t, err)

	requires := map[string]string{}
	for _, r := range f.Require {
		requires[r.Mod.Path] = r.Mod.Version
	}
	assert.Equal(t, "v1.2.3", requires[runtimeModule])
	assert.Equal(t, "v0.0.0", requires[testutils.TestModulePath])

	require.Len(t, f.Replace, 1)
	assert.Equal(t, testutils.TestModulePath, f.Replace[0].Old.Path)
	assert.Equal(t, root, f.Replace[0].New.Path)
}

func TestEnsureReusesExistingScaffold(t *testing.T) {
	root := testutils.CreateTempProject(t)
	exec := testutils.CreatingExecutor()
	b := newBootstrapper(t, root, exec, false)

	require.NoError(t, os.MkdirAll(b.Dir(), 0o755))

	created, err := b.Ensure(context.Background())
	require.NoError(t, err)
	assert.False(t, created)
	assert.Empty(t, exec.Runs(), "an existing scaffold is not validated or rebuilt")
}

func TestEnsureCleanRecreates(t *testing.T) {
	root := testutils.CreateTempProject(t)
	exec := testutils.CreatingExecutor()
	b := newBootstrapper(t, root, exec, true)

	stale := filepath.Join(b.Dir(), "stale.txt")
	require.NoError(t, os.MkdirAll(b.Dir(), 0o755))
	require.NoError(t, os.WriteFile(stale, []byte("x"), 0o644))

	created, err := b.Ensure(context.Background())
	require.NoError(t, err)
	assert.True(t, created)
	assert.NoFileExists(t, stale)
	assert.Len(t, exec.Runs(), 2)
}

func TestEnsureCreateFailure(t *testing.T) {
	root := testutils.CreateTempProject(t)
	exec := &testutils.FakeExecutor{OnRun: func(testutils.Call) ([]byte, error) {
		return []byte("toolkit: unknown platform"), stderrors.New("exit status 64")
	}}
	b := newBootstrapper(t, root, exec, false)

	_, err := b.Ensure(context.Background())
	require.Error(t, err)
	assert.True(t, errors.HasErrorCode(err, errors.ErrCodeCreateFailed))
	assert.False(t, errors.IsRecoverable(err))
}

func TestEnsureMissingDirectoryAfterCreate(t *testing.T) {
	root := testutils.CreateTempProject(t)
	// Reports success without creating anything.
	exec := &testutils.FakeExecutor{OnRun: func(testutils.Call) ([]byte, error) {
		return nil, nil
	}}
	b := newBootstrapper(t, root, exec, false)

	_, err := b.Ensure(context.Background())
	require.Error(t, err)
	assert.True(t, errors.HasErrorCode(err, errors.ErrCodeScaffoldMissing))
	assert.Len(t, exec.Runs(), 1, "nothing runs after the missing directory is detected")
}

func TestEnsureBuildFailure(t *testing.T) {
	root := testutils.CreateTempProject(t)
	creating := testutils.CreatingExecutor()
	exec := &testutils.FakeExecutor{OnRun: func(call testutils.Call) ([]byte, error) {
		if call.Args[0] == "build" {
			return []byte("compile error"), stderrors.New("exit status 1")
		}
		return creating.OnRun(call)
	}}
	b := newBootstrapper(t, root, exec, false)

	_, err := b.Ensure(context.Background())
	require.Error(t, err)
	assert.True(t, errors.HasErrorCode(err, errors.ErrCodeBuildFailed))
}

func TestRuntimeReplace(t *testing.T) {
	root := testutils.CreateTempProject(t)
	exec := testutils.CreatingExecutor()
	tk, err := build.NewToolkit("toolkit", "peek_scaffold", build.WithExecutor(exec))
	require.NoError(t, err)

	dir := filepath.Join(root, ".peek", "scaffold")
	checkout := t.TempDir()
	b := scaffolding.New(scaffolding.Options{
		ProjectRoot:    root,
		ModulePath:     testutils.TestModulePath,
		Dir:            dir,
		Platform:       "linux",
		RuntimeModule:  runtimeModule,
		RuntimeVersion: "v0.0.0",
		RuntimeReplace: checkout,
		Toolkit:        tk,
		Renderer: renderer.New(renderer.Options{
			ProjectRoot:   root,
			ModulePath:    testutils.TestModulePath,
			RuntimeImport: scaffolding.RuntimeImport(runtimeModule),
			ArtifactPath:  filepath.Join(dir, "previews.go"),
		}),
	})

	_, err = b.Ensure(context.Background())
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "go.mod"))
	require.NoError(t, err)
	f, err := modfile.Parse("go.mod", data, nil)
	require.NoError(t, err)

	replaced := map[string]string{}
	for _, r := range f.Replace {
		replaced[r.Old.Path] = r.New.Path
	}
	assert.Equal(t, checkout, replaced[runtimeModule])
	assert.Equal(t, root, replaced[testutils.TestModulePath])
}
