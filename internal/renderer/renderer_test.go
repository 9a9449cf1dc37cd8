package renderer

import (
	"context"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/peek/internal/errors"
	"github.com/conneroisu/peek/internal/registry"
)

const runtimeImport = "github.com/conneroisu/peek/pkg/preview"

func newTestRenderer(t *testing.T) (*ArtifactRenderer, string) {
	t.Helper()
	root := t.TempDir()
	scaffold := filepath.Join(root, ".peek", "scaffold")
	require.NoError(t, os.MkdirAll(scaffold, 0o755))

	return New(Options{
		ProjectRoot:   root,
		ModulePath:    "example.com/app",
		RuntimeImport: runtimeImport,
		ArtifactPath:  filepath.Join(scaffold, "previews.go"),
	}), root
}

func TestRenderEmptyMapping(t *testing.T) {
	r, _ := newTestRenderer(t)

	out, err := r.Render(nil)
	require.NoError(t, err)

	expected := `// Code generated by peek. DO NOT EDIT.

package main

import (
	preview "github.com/conneroisu/peek/pkg/preview"
)

// Previews returns every discovered preview.
func Previews() []preview.Preview {
	previews := []preview.Preview{}
	return previews
}
`
	assert.Equal(t, expected, string(out))
}

func TestRenderSinglePreview(t *testing.T) {
	r, root := newTestRenderer(t)

	out, err := r.Render([]registry.Entry{
		{File: filepath.Join(root, "widgets", "card.go"), Symbols: []string{"PreviewA"}},
	})
	require.NoError(t, err)

	src := string(out)
	assert.True(t, strings.HasPrefix(src, Header+"\n"))
	assert.Contains(t, src, `p0 "example.com/app/widgets"`)
	assert.Equal(t, 1, strings.Count(src, "p0.PreviewA()..."), "each symbol is invoked exactly once")

	_, err = parser.ParseFile(token.NewFileSet(), "previews.go", out, 0)
	assert.NoError(t, err)
}

func TestRenderAliasesAndOrder(t *testing.T) {
	r, root := newTestRenderer(t)

	out, err := r.Render([]registry.Entry{
		{File: filepath.Join(root, "a", "one.go"), Symbols: []string{"A1", "A2"}},
		{File: filepath.Join(root, "a", "two.go"), Symbols: []string{"A3"}},
		{File: filepath.Join(root, "b", "b.go"), Symbols: []string{"B1"}},
		{File: filepath.Join(root, "root.go"), Symbols: []string{"Root"}},
	})
	require.NoError(t, err)
	src := string(out)

	assert.Contains(t, src, `p0 "example.com/app/a"`)
	assert.Contains(t, src, `p1 "example.com/app/b"`)
	assert.Contains(t, src, `p2 "example.com/app"`)

	calls := []string{"p0.A1()...", "p0.A2()...", "p0.A3()...", "p1.B1()...", "p2.Root()..."}
	last := -1
	for _, c := range calls {
		idx := strings.Index(src, c)
		require.GreaterOrEqual(t, idx, 0, c)
		assert.Greater(t, idx, last, "calls follow mapping order: %s", c)
		last = idx
	}
}

func TestRenderDeterministic(t *testing.T) {
	r, root := newTestRenderer(t)
	mapping := registry.NewPreviewMapping()
	mapping.Merge([]registry.Entry{
		{File: filepath.Join(root, "z", "z.go"), Symbols: []string{"Z"}},
		{File: filepath.Join(root, "a", "a.go"), Symbols: []string{"A"}},
		{File: filepath.Join(root, "m", "m.go"), Symbols: []string{"M1", "M2"}},
	})

	first, err := r.Render(mapping.Snapshot())
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := r.Render(mapping.Snapshot())
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestRenderRejectsInvalidInput(t *testing.T) {
	r, root := newTestRenderer(t)

	_, err := r.Render([]registry.Entry{{File: filepath.Join(root, "w", "w.go"), Symbols: []string{"Bad Name"}}})
	require.Error(t, err)
	assert.True(t, errors.HasErrorType(err, errors.ErrorTypeGenerate))
	assert.True(t, errors.IsRecoverable(err))

	_, err = r.ImportPath("/elsewhere/w.go")
	require.Error(t, err)
	assert.True(t, errors.HasErrorCode(err, errors.ErrCodeInvalidPath))
}

func TestRenderSkipsUnimportablePackages(t *testing.T) {
	r, root := newTestRenderer(t)

	out, err := r.Render([]registry.Entry{
		{File: filepath.Join(root, "my widgets", "b.go"), Symbols: []string{"Bad"}},
		{File: "/elsewhere/w.go", Symbols: []string{"Outside"}},
		{File: filepath.Join(root, "widgets", "x.go"), Symbols: []string{"Good"}},
	})
	require.NoError(t, err)

	assert.Contains(t, string(out), `p0 "example.com/app/widgets"`)
	assert.Contains(t, string(out), "p0.Good()...")
	assert.NotContains(t, string(out), "Bad")
	assert.NotContains(t, string(out), "Outside")
}

func TestWrite(t *testing.T) {
	r, root := newTestRenderer(t)
	ctx := context.Background()
	entries := []registry.Entry{{File: filepath.Join(root, "w", "w.go"), Symbols: []string{"W"}}}

	require.NoError(t, r.Write(ctx, entries))
	written, err := os.ReadFile(r.ArtifactPath())
	require.NoError(t, err)
	assert.Contains(t, string(written), "p0.W()...")

	leftovers, err := filepath.Glob(filepath.Join(filepath.Dir(r.ArtifactPath()), "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, leftovers, "temporary files are cleaned up")
}

func TestWriteFailureKeepsPreviousArtifact(t *testing.T) {
	r, root := newTestRenderer(t)
	ctx := context.Background()

	good := []registry.Entry{{File: filepath.Join(root, "w", "w.go"), Symbols: []string{"W"}}}
	require.NoError(t, r.Write(ctx, good))
	before, err := os.ReadFile(r.ArtifactPath())
	require.NoError(t, err)

	bad := []registry.Entry{{File: filepath.Join(root, "w", "w.go"), Symbols: []string{"not exported"}}}
	require.Error(t, r.Write(ctx, bad))

	after, err := os.ReadFile(r.ArtifactPath())
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestWriteFileAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.go")

	require.NoError(t, WriteFileAtomic(path, []byte("one"), 0o644))
	require.NoError(t, WriteFileAtomic(path, []byte("two"), 0o644))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "two", string(data))

	assert.Error(t, WriteFileAtomic(filepath.Join(t.TempDir(), "missing", "out.go"), []byte("x"), 0o644))
}
