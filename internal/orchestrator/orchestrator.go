// Package orchestrator runs a peek session: it bootstraps the scaffold,
// performs the initial scan, starts the run process and keeps everything in
// step with the source tree until the run process exits.
package orchestrator

import (
	"context"
	stderrors "errors"

	"golang.org/x/sync/errgroup"

	"github.com/conneroisu/peek/internal/build"
	"github.com/conneroisu/peek/internal/config"
	"github.com/conneroisu/peek/internal/daemon"
	"github.com/conneroisu/peek/internal/errors"
	"github.com/conneroisu/peek/internal/gomod"
	"github.com/conneroisu/peek/internal/logging"
	"github.com/conneroisu/peek/internal/reconciler"
	"github.com/conneroisu/peek/internal/registry"
	"github.com/conneroisu/peek/internal/renderer"
	"github.com/conneroisu/peek/internal/scaffolding"
	"github.com/conneroisu/peek/internal/scanner"
	"github.com/conneroisu/peek/internal/watcher"
)

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithExecutor replaces the process executor used for the toolkit.
func WithExecutor(exec build.Executor) Option {
	return func(o *Orchestrator) {
		o.executor = exec
	}
}

// WithRecorder observes every request sent to the run process.
func WithRecorder(rec daemon.Recorder) Option {
	return func(o *Orchestrator) {
		o.recorder = rec
	}
}

// Orchestrator wires the session's components from one Config.
type Orchestrator struct {
	cfg      *config.Config
	logger   logging.Logger
	executor build.Executor
	recorder daemon.Recorder

	root       string
	modulePath string
	scaffold   string
	artifact   string

	mapping  *registry.PreviewMapping
	scanner  *scanner.PreviewScanner
	renderer *renderer.ArtifactRenderer
	toolkit  *build.Toolkit
}

// New resolves paths and builds the components that do not start anything.
func New(cfg *config.Config, logger logging.Logger, opts ...Option) (*Orchestrator, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	o := &Orchestrator{
		cfg:      cfg,
		logger:   logger,
		executor: build.NewCommandExecutor(),
		mapping:  registry.NewPreviewMapping(),
	}
	for _, opt := range opts {
		opt(o)
	}

	var err error
	if o.root, err = cfg.ProjectRoot(); err != nil {
		return nil, err
	}
	if o.scaffold, err = cfg.ScaffoldPath(); err != nil {
		return nil, err
	}
	if o.artifact, err = cfg.ArtifactPath(); err != nil {
		return nil, err
	}
	if o.modulePath, err = gomod.ModulePath(o.root); err != nil {
		return nil, err
	}

	o.toolkit, err = build.NewToolkit(cfg.Toolkit.Binary, cfg.Scaffold.ProjectName,
		build.WithExecutor(o.executor), build.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	o.scanner = scanner.New(scanner.Options{
		Marker:  cfg.Project.Marker,
		Exclude: cfg.Project.Exclude,
		Logger:  logger,
	})
	o.renderer = renderer.New(renderer.Options{
		ProjectRoot:   o.root,
		ModulePath:    o.modulePath,
		RuntimeImport: scaffolding.RuntimeImport(cfg.Runtime.Module),
		ArtifactPath:  o.artifact,
		Logger:        logger,
	})
	return o, nil
}

// Root returns the absolute project root.
func (o *Orchestrator) Root() string {
	return o.root
}

// ModulePath returns the user's module path.
func (o *Orchestrator) ModulePath() string {
	return o.modulePath
}

// ArtifactPath returns the aggregator path.
func (o *Orchestrator) ArtifactPath() string {
	return o.artifact
}

// Mapping returns the session's preview mapping.
func (o *Orchestrator) Mapping() *registry.PreviewMapping {
	return o.mapping
}

// Discover runs a full scan and loads the result into the mapping.
func (o *Orchestrator) Discover(ctx context.Context) ([]registry.Entry, error) {
	perf := logging.StartOperation(o.logger, "discover")
	entries, err := o.scanner.ScanDirectory(ctx, o.root)
	if err != nil {
		return nil, err
	}
	o.mapping.Merge(entries)
	perf.End(ctx, "files", o.mapping.Len(), "previews", o.mapping.Count())
	return o.mapping.Snapshot(), nil
}

// Generate scans the tree and writes the aggregator once. The scaffold must
// already exist.
func (o *Orchestrator) Generate(ctx context.Context) error {
	if !dirExists(o.scaffold) {
		return errors.BootstrapError(errors.ErrCodeScaffoldMissing,
			"no scaffold at "+o.scaffold+"; run \"peek start\" to create it", nil)
	}
	if _, err := o.Discover(ctx); err != nil {
		return err
	}
	return o.renderer.Write(ctx, o.mapping.Snapshot())
}

// Bootstrap creates the scaffold if needed.
func (o *Orchestrator) Bootstrap(ctx context.Context) error {
	boot := scaffolding.New(scaffolding.Options{
		ProjectRoot:    o.root,
		ModulePath:     o.modulePath,
		Dir:            o.scaffold,
		Platform:       o.cfg.Toolkit.Platform,
		RuntimeModule:  o.cfg.Runtime.Module,
		RuntimeVersion: o.cfg.Runtime.Version,
		RuntimeReplace: o.cfg.Runtime.Replace,
		Clean:          o.cfg.Development.CleanScaffold,
		Toolkit:        o.toolkit,
		Renderer:       o.renderer,
		Logger:         o.logger,
	})
	_, err := boot.Ensure(ctx)
	return err
}

// Run executes a full session and returns the run process's exit code.
// Bootstrap failures are returned as errors; a generation failure at startup
// is logged and the previous aggregator is used.
func (o *Orchestrator) Run(ctx context.Context) (int, error) {
	lock, err := scaffolding.Acquire(o.root)
	if err != nil {
		return 1, err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			o.logger.Warn(ctx, err, "Releasing project lock")
		}
	}()

	if err := o.Bootstrap(ctx); err != nil {
		return 1, err
	}

	if _, err := o.Discover(ctx); err != nil {
		return 1, err
	}
	if err := o.renderer.Write(ctx, o.mapping.Snapshot()); err != nil {
		o.logger.Error(ctx, err, "Initial generation failed; using existing aggregator")
	}
	o.logger.Info(ctx, "Previews discovered", "files", o.mapping.Len(), "previews", o.mapping.Count())

	w, err := o.newWatcher()
	if err != nil {
		return 1, err
	}
	defer w.Stop()

	client := daemon.New(daemon.Options{
		Dir:      o.scaffold,
		Platform: o.cfg.Toolkit.Platform,
		Launcher: o.toolkit,
		Recorder: o.recorder,
		Logger:   o.logger,
	})
	if err := client.Start(ctx); err != nil {
		return 1, err
	}

	rec := reconciler.New(reconciler.Options{
		Root:      o.root,
		Mapping:   o.mapping,
		Scanner:   o.scanner,
		Generator: o.renderer,
		Reloader:  client,
		Logger:    o.logger,
	})

	watchCtx, cancelWatch := context.WithCancel(ctx)
	defer cancelWatch()

	g, gctx := errgroup.WithContext(watchCtx)
	if err := w.Start(gctx); err != nil {
		_ = client.Stop()
		return 1, err
	}
	g.Go(func() error {
		return rec.Run(gctx, w.Events())
	})

	select {
	case <-client.Done():
	case <-ctx.Done():
		o.logger.Info(ctx, "Shutting down")
	}

	// The watch subscription goes first so no reload races the exit.
	cancelWatch()
	_ = w.Stop()
	if err := g.Wait(); err != nil && !stderrors.Is(err, context.Canceled) {
		o.logger.Error(ctx, err, "Reconciler stopped")
	}

	if ctx.Err() != nil {
		if err := client.Stop(); err != nil {
			o.logger.Warn(ctx, err, "Stopping run process")
		}
	}

	code, err := client.Wait()
	if err != nil {
		return code, errors.DaemonError(errors.ErrCodeProcessExited, "waiting for run process", err)
	}
	return code, nil
}

func (o *Orchestrator) newWatcher() (*watcher.FileWatcher, error) {
	w, err := watcher.NewFileWatcher(watcher.Options{
		Debounce: o.cfg.Watch.Debounce,
		SkipDir:  scanner.SkipDir,
		Logger:   o.logger,
	})
	if err != nil {
		return nil, err
	}
	w.AddFilter(watcher.GoFilter)
	w.AddFilter(watcher.NoTestFilter)
	w.AddFilter(watcher.NoHiddenFilter)
	w.AddFilter(watcher.NoVendorFilter)
	w.AddFilter(watcher.NoGitFilter)
	w.AddFilter(watcher.ExcludePath(o.artifact))

	if err := w.AddRecursive(o.root); err != nil {
		_ = w.Stop()
		return nil, err
	}
	return w, nil
}
