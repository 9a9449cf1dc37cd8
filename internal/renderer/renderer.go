// Package renderer generates the preview aggregator that the scaffold project
// compiles.
//
// The aggregator is a single Go file in package main exporting Previews,
// which calls every discovered preview function in mapping order and spreads
// its descriptors into one slice. Output is passed through go/format and is
// byte-identical for an unchanged mapping. Writes replace the file atomically
// and are synced before Write returns, so a reload requested afterwards
// always sees the new code.
package renderer

import (
	"bytes"
	"context"
	"fmt"
	"go/format"
	"go/token"
	"os"
	"path"
	"path/filepath"
	"text/template"

	"github.com/conneroisu/peek/internal/errors"
	"github.com/conneroisu/peek/internal/logging"
	"github.com/conneroisu/peek/internal/registry"
	"github.com/conneroisu/peek/internal/validation"
)

// Header marks the artifact as generated.
const Header = "// Code generated by peek. DO NOT EDIT."

var artifactTemplate = template.Must(template.New("artifact").Parse(Header + `

package main

import (
	preview "{{.Runtime}}"
{{- range .Imports}}
	{{.Alias}} "{{.Path}}"
{{- end}}
)

// Previews returns every discovered preview.
func Previews() []preview.Preview {
	previews := []preview.Preview{}
{{- range .Calls}}
	previews = append(previews, {{.Alias}}.{{.Symbol}}()...)
{{- end}}
	return previews
}
`))

type importSpec struct {
	Alias string
	Path  string
}

type call struct {
	Alias  string
	Symbol string
}

// Options configures an ArtifactRenderer.
type Options struct {
	// ProjectRoot is the absolute root of the user's module.
	ProjectRoot string
	// ModulePath is the user's module path from go.mod.
	ModulePath string
	// RuntimeImport is the import path of the preview runtime package.
	RuntimeImport string
	// ArtifactPath is where Write places the aggregator.
	ArtifactPath string
	Logger       logging.Logger
}

// ArtifactRenderer renders preview mappings into the aggregator source.
type ArtifactRenderer struct {
	opts   Options
	logger logging.Logger
}

// New creates an ArtifactRenderer.
func New(opts Options) *ArtifactRenderer {
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	return &ArtifactRenderer{
		opts:   opts,
		logger: opts.Logger.WithComponent("renderer"),
	}
}

// ArtifactPath returns the path Write replaces.
func (r *ArtifactRenderer) ArtifactPath() string {
	return r.opts.ArtifactPath
}

// ImportPath maps a source file to the import path of its package.
func (r *ArtifactRenderer) ImportPath(file string) (string, error) {
	dir := filepath.Dir(file)
	if err := validation.ValidateWithin(r.opts.ProjectRoot, dir); err != nil {
		return "", errors.GenerateError(errors.ErrCodeInvalidPath, "source file outside project root", err).
			WithLocation(file, 0, 0)
	}

	rel, err := filepath.Rel(r.opts.ProjectRoot, dir)
	if err != nil {
		return "", errors.GenerateError(errors.ErrCodeInvalidPath, "resolving package directory", err)
	}

	importPath := r.opts.ModulePath
	if rel != "." {
		importPath = path.Join(importPath, filepath.ToSlash(rel))
	}
	if err := validation.ValidateImportPath(importPath); err != nil {
		return "", errors.GenerateError(errors.ErrCodeInvalidPath, "package directory is not importable", err).
			WithLocation(file, 0, 0)
	}
	return importPath, nil
}

// Render produces the formatted aggregator for entries, which must already
// be in mapping order. Entries whose directory has no valid import path are
// left out with a warning. It performs no I/O.
func (r *ArtifactRenderer) Render(entries []registry.Entry) ([]byte, error) {
	data := struct {
		Runtime string
		Imports []importSpec
		Calls   []call
	}{
		Runtime: r.opts.RuntimeImport,
	}

	aliases := make(map[string]string)
	for _, entry := range entries {
		importPath, err := r.ImportPath(entry.File)
		if err != nil {
			// One unimportable package must not take the others down with it.
			r.logger.Warn(context.Background(), err, "Skipping previews in unimportable package",
				"file", entry.File, "symbols", entry.Symbols)
			continue
		}

		alias, ok := aliases[importPath]
		if !ok {
			alias = fmt.Sprintf("p%d", len(aliases))
			aliases[importPath] = alias
			data.Imports = append(data.Imports, importSpec{Alias: alias, Path: importPath})
		}

		for _, symbol := range entry.Symbols {
			if !token.IsIdentifier(symbol) || !token.IsExported(symbol) {
				return nil, errors.GenerateError(errors.ErrCodeFormatFailed,
					fmt.Sprintf("invalid preview symbol %q", symbol), nil).WithLocation(entry.File, 0, 0)
			}
			data.Calls = append(data.Calls, call{Alias: alias, Symbol: symbol})
		}
	}

	var buf bytes.Buffer
	if err := artifactTemplate.Execute(&buf, data); err != nil {
		return nil, errors.GenerateError(errors.ErrCodeFormatFailed, "executing artifact template", err)
	}

	formatted, err := format.Source(buf.Bytes())
	if err != nil {
		return nil, errors.GenerateError(errors.ErrCodeFormatFailed, "formatting artifact", err)
	}
	return formatted, nil
}

// Write renders entries and atomically replaces the artifact. When rendering
// fails the previous artifact is left untouched.
func (r *ArtifactRenderer) Write(ctx context.Context, entries []registry.Entry) error {
	content, err := r.Render(entries)
	if err != nil {
		return err
	}

	if existing, err := os.ReadFile(r.opts.ArtifactPath); err == nil && bytes.Equal(existing, content) {
		r.logger.Debug(ctx, "Artifact unchanged", "path", r.opts.ArtifactPath)
		return nil
	}

	if err := WriteFileAtomic(r.opts.ArtifactPath, content, 0o644); err != nil {
		return errors.GenerateError(errors.ErrCodeWriteFailed, "writing artifact", err).
			WithLocation(r.opts.ArtifactPath, 0, 0)
	}

	r.logger.Debug(ctx, "Artifact written", "path", r.opts.ArtifactPath, "files", len(entries), "bytes", len(content))
	return nil
}

// WriteFileAtomic writes data to a temporary file beside path, syncs it, and
// renames it over path.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		// No-op once the rename has succeeded.
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}

	// Persist the rename itself; not every platform supports syncing a directory.
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}
	return nil
}
