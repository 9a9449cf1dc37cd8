// Package scaffolding creates and maintains the companion project that hosts
// the generated preview aggregator.
//
// The companion lives under the user's project root (".peek/scaffold" by
// default). It is created once by the external toolkit, given a fixed entry
// point and the dependencies the aggregator imports, and then reused on every
// later start unless a clean scaffold is requested.
package scaffolding

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"text/template"

	"github.com/conneroisu/peek/internal/build"
	"github.com/conneroisu/peek/internal/errors"
	"github.com/conneroisu/peek/internal/gomod"
	"github.com/conneroisu/peek/internal/logging"
	"github.com/conneroisu/peek/internal/renderer"
	"github.com/conneroisu/peek/internal/version"
)

// EntryPoint is the file name of the scaffold's main function.
const EntryPoint = "main.go"

var entryPointTemplate = template.Must(template.New("main").Parse(renderer.Header + `

package main

import preview "{{.Runtime}}"

func main() {
	preview.Serve(Previews())
}
`))

// Options configures a Bootstrapper.
type Options struct {
	// ProjectRoot is the absolute root of the user's module.
	ProjectRoot string
	// ModulePath is the user's module path.
	ModulePath string
	// Dir is the absolute scaffold directory.
	Dir      string
	Platform string

	RuntimeModule string
	// RuntimeVersion defaults to version.RuntimeVersion().
	RuntimeVersion string
	// RuntimeReplace, when set, is a local checkout of the runtime module.
	RuntimeReplace string

	// Clean removes any existing scaffold before creating a new one.
	Clean bool

	Toolkit  *build.Toolkit
	Renderer *renderer.ArtifactRenderer
	Logger   logging.Logger
}

// Bootstrapper ensures the scaffold exists.
type Bootstrapper struct {
	opts   Options
	logger logging.Logger
}

// New creates a Bootstrapper.
func New(opts Options) *Bootstrapper {
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	if opts.RuntimeVersion == "" {
		opts.RuntimeVersion = version.RuntimeVersion()
	}
	return &Bootstrapper{
		opts:   opts,
		logger: opts.Logger.WithComponent("scaffolding"),
	}
}

// Dir returns the scaffold directory.
func (b *Bootstrapper) Dir() string {
	return b.opts.Dir
}

// RuntimeImport returns the import path of the preview runtime package.
func (b *Bootstrapper) RuntimeImport() string {
	return RuntimeImport(b.opts.RuntimeModule)
}

// RuntimeImport returns the preview package path inside runtimeModule.
func RuntimeImport(runtimeModule string) string {
	return runtimeModule + "/pkg/preview"
}

// Ensure makes sure the scaffold exists. It reports whether a new scaffold
// was created. An existing directory is reused as is.
func (b *Bootstrapper) Ensure(ctx context.Context) (bool, error) {
	dir := b.opts.Dir

	if b.opts.Clean {
		b.logger.Info(ctx, "Removing scaffold for clean start", "dir", dir)
		if err := os.RemoveAll(dir); err != nil {
			return false, errors.FileOperationError("REMOVE", dir, "removing scaffold", err)
		}
	}

	info, err := os.Stat(dir)
	switch {
	case err == nil && info.IsDir():
		b.logger.Debug(ctx, "Reusing scaffold", "dir", dir)
		return false, nil
	case err == nil:
		return false, errors.BootstrapError(errors.ErrCodeCreateFailed,
			fmt.Sprintf("%s exists and is not a directory", dir), nil)
	case !os.IsNotExist(err):
		return false, errors.FileOperationError("STAT", dir, "inspecting scaffold", err)
	}

	if err := b.create(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func (b *Bootstrapper) create(ctx context.Context) error {
	dir := b.opts.Dir
	perf := logging.StartOperation(b.logger, "scaffold")
	b.logger.Info(ctx, "Creating scaffold", "dir", dir, "platform", b.opts.Platform)

	if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
		return errors.FileOperationError("MKDIR", filepath.Dir(dir), "creating scaffold parent", err)
	}

	if err := b.opts.Toolkit.Create(ctx, dir, []string{b.opts.Platform}); err != nil {
		return err
	}

	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return errors.BootstrapError(errors.ErrCodeScaffoldMissing,
			fmt.Sprintf("toolkit reported success but %s does not exist", dir), err)
	}

	if err := b.writeEntryPoint(); err != nil {
		return err
	}

	if err := b.registerDependencies(ctx); err != nil {
		return err
	}

	// The entry point references Previews, so the first build needs an
	// aggregator even before anything has been scanned.
	if err := b.opts.Renderer.Write(ctx, nil); err != nil {
		return errors.BootstrapError(errors.ErrCodeCreateFailed, "writing initial artifact", err)
	}

	if err := b.opts.Toolkit.Build(ctx, dir, b.opts.Platform); err != nil {
		return err
	}

	perf.End(ctx, "dir", dir)
	return nil
}

func (b *Bootstrapper) writeEntryPoint() error {
	var buf bytes.Buffer
	data := struct{ Runtime string }{Runtime: b.RuntimeImport()}
	if err := entryPointTemplate.Execute(&buf, data); err != nil {
		return errors.BootstrapError(errors.ErrCodeCreateFailed, "rendering entry point", err)
	}

	path := filepath.Join(b.opts.Dir, EntryPoint)
	if err := renderer.WriteFileAtomic(path, buf.Bytes(), 0o644); err != nil {
		return errors.FileOperationError("WRITE", path, "writing entry point", err)
	}
	return nil
}

func (b *Bootstrapper) registerDependencies(ctx context.Context) error {
	runtimeDep := gomod.Dependency{
		Path:    b.opts.RuntimeModule,
		Version: b.opts.RuntimeVersion,
		Replace: b.opts.RuntimeReplace,
	}
	// The runtime module itself may be the project being previewed.
	if runtimeDep.Path == b.opts.ModulePath && runtimeDep.Replace == "" {
		runtimeDep.Replace = b.opts.ProjectRoot
	}
	if runtimeDep.Version == version.UnreleasedRuntime && runtimeDep.Replace == "" {
		b.logger.Warn(ctx, nil, "Unreleased runtime without a replace directive; the scaffold build may fail to resolve it",
			"module", runtimeDep.Path)
	}

	userDep := gomod.Dependency{
		Path:    b.opts.ModulePath,
		Version: version.UnreleasedRuntime,
		Replace: b.opts.ProjectRoot,
	}

	deps := []gomod.Dependency{runtimeDep}
	if userDep.Path != runtimeDep.Path {
		deps = append(deps, userDep)
	}

	gomodPath := filepath.Join(b.opts.Dir, "go.mod")
	if err := gomod.Register(gomodPath, deps...); err != nil {
		return err
	}
	b.logger.Debug(ctx, "Registered scaffold dependencies", "go_mod", gomodPath, "count", len(deps))
	return nil
}
