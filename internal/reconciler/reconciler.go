// Package reconciler keeps the preview mapping, the generated aggregator and
// the running application in step with the source tree.
//
// Each filesystem change is handled as one unit: the changed file is
// rescanned on its own, the mapping entry is updated or removed, the
// aggregator is rewritten and synced, and only then is a hot reload
// requested. Changes are processed by a single consumer, so these sequences
// never interleave.
package reconciler

import (
	"context"
	stderrors "errors"
	"io/fs"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/conneroisu/peek/internal/daemon"
	"github.com/conneroisu/peek/internal/errors"
	"github.com/conneroisu/peek/internal/logging"
	"github.com/conneroisu/peek/internal/registry"
	"github.com/conneroisu/peek/internal/scanner"
	"github.com/conneroisu/peek/internal/validation"
	"github.com/conneroisu/peek/internal/watcher"
)

// State is the reconciler's position in a cycle.
type State int32

const (
	StateIdle State = iota
	StateRescanning
	StateRegenerating
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRescanning:
		return "rescanning"
	case StateRegenerating:
		return "regenerating"
	default:
		return "unknown"
	}
}

// Scanner rescans single files. *scanner.PreviewScanner satisfies it.
type Scanner interface {
	Rescan(ctx context.Context, path string) (registry.Entry, bool, error)
	Forget(path string)
	Excluded(rel string) bool
}

// Generator rewrites the aggregator. *renderer.ArtifactRenderer satisfies it.
type Generator interface {
	Write(ctx context.Context, entries []registry.Entry) error
	ArtifactPath() string
}

// Reloader delivers hot reloads. *daemon.Client satisfies it.
type Reloader interface {
	Session() *daemon.Session
	RequestHotReload(ctx context.Context, appID string) error
}

// Options configures a Reconciler.
type Options struct {
	// Root is the absolute project root.
	Root      string
	Mapping   *registry.PreviewMapping
	Scanner   Scanner
	Generator Generator
	// Reloader may be nil, in which case changes only regenerate.
	Reloader Reloader
	Logger   logging.Logger
}

// Result describes what one reconciliation did.
type Result struct {
	// Changed is set when the mapping changed and the aggregator was rewritten.
	Changed bool
	// Reloaded is set when a hot reload was requested.
	Reloaded bool
}

// Reconciler applies filesystem changes.
type Reconciler struct {
	opts     Options
	artifact string
	logger   logging.Logger
	state    atomic.Int32
}

// New creates a Reconciler.
func New(opts Options) *Reconciler {
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	return &Reconciler{
		opts:     opts,
		artifact: filepath.Clean(opts.Generator.ArtifactPath()),
		logger:   opts.Logger.WithComponent("reconciler"),
	}
}

// State returns the current state.
func (r *Reconciler) State() State {
	return State(r.state.Load())
}

func (r *Reconciler) setState(s State) {
	r.state.Store(int32(s))
}

// Relevant reports whether a change to path can affect the mapping.
func (r *Reconciler) Relevant(path string) bool {
	path = filepath.Clean(path)
	if path == r.artifact || !scanner.IsSourceFile(path) {
		return false
	}
	if validation.ValidateWithin(r.opts.Root, path) != nil {
		return false
	}

	rel, err := filepath.Rel(r.opts.Root, path)
	if err != nil {
		return false
	}
	dirs := strings.Split(filepath.ToSlash(filepath.Dir(rel)), "/")
	for _, dir := range dirs {
		if dir != "." && scanner.SkipDir(dir) {
			return false
		}
	}
	return !r.opts.Scanner.Excluded(rel)
}

// Run reconciles events until the channel closes or ctx ends. Failed cycles
// are logged and the loop keeps going.
func (r *Reconciler) Run(ctx context.Context, events <-chan watcher.ChangeEvent) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if _, err := r.Reconcile(ctx, ev); err != nil {
				r.logger.Error(ctx, err, "Reconciliation failed; keeping last good aggregator", "file", ev.Path)
			}
		}
	}
}

// Reconcile applies one change.
func (r *Reconciler) Reconcile(ctx context.Context, ev watcher.ChangeEvent) (Result, error) {
	path := filepath.Clean(ev.Path)
	if ev.Dir || (ev.Type.Removed() && !scanner.IsSourceFile(path)) {
		return r.reconcileDir(ctx, path, ev.Type)
	}
	if !r.Relevant(path) {
		return Result{}, nil
	}

	r.setState(StateRescanning)
	defer r.setState(StateIdle)

	entry, unchanged := r.rescan(ctx, path, ev.Type)
	if unchanged {
		r.logger.Debug(ctx, "Content unchanged", "file", path)
		return Result{}, nil
	}

	if !r.opts.Mapping.Set(entry) {
		r.logger.Debug(ctx, "Previews unchanged", "file", path)
		return Result{}, nil
	}
	r.logger.Info(ctx, "Previews changed", "file", path, "event", ev.Type.String(), "symbols", entry.Symbols)

	r.setState(StateRegenerating)
	if err := r.opts.Generator.Write(ctx, r.opts.Mapping.Snapshot()); err != nil {
		// The mapping keeps the new state so the next good cycle catches up.
		return Result{Changed: true}, err
	}

	return Result{Changed: true, Reloaded: r.reload(ctx)}, nil
}

// reconcileDir drops every file under a directory that was removed or moved
// away, then regenerates once.
func (r *Reconciler) reconcileDir(ctx context.Context, dir string, typ watcher.EventType) (Result, error) {
	if !typ.Removed() || validation.ValidateWithin(r.opts.Root, dir) != nil {
		return Result{}, nil
	}

	r.setState(StateRescanning)
	defer r.setState(StateIdle)

	removed := r.opts.Mapping.RemoveUnder(dir)
	for _, file := range removed {
		r.opts.Scanner.Forget(file)
	}
	if len(removed) == 0 {
		return Result{}, nil
	}
	r.logger.Info(ctx, "Directory removed", "dir", dir, "event", typ.String(), "files", len(removed))

	r.setState(StateRegenerating)
	if err := r.opts.Generator.Write(ctx, r.opts.Mapping.Snapshot()); err != nil {
		return Result{Changed: true}, err
	}
	return Result{Changed: true, Reloaded: r.reload(ctx)}, nil
}

// rescan returns the fresh entry for path. A removed or unreadable file
// yields an entry with no symbols.
func (r *Reconciler) rescan(ctx context.Context, path string, typ watcher.EventType) (registry.Entry, bool) {
	empty := registry.Entry{File: path}
	if typ.Removed() {
		r.opts.Scanner.Forget(path)
		return empty, false
	}

	entry, unchanged, err := r.opts.Scanner.Rescan(ctx, path)
	switch {
	case err == nil:
		return entry, unchanged
	case stderrors.Is(err, fs.ErrNotExist):
		// Removed again before we got to it.
		r.opts.Scanner.Forget(path)
		return empty, false
	case errors.IsRecoverable(err):
		r.logger.Warn(ctx, err, "Treating unparsable file as having no previews", "file", path)
		return empty, false
	default:
		r.logger.Error(ctx, err, "Could not read changed file", "file", path)
		return empty, false
	}
}

func (r *Reconciler) reload(ctx context.Context) bool {
	if r.opts.Reloader == nil {
		return false
	}
	session := r.opts.Reloader.Session()
	appID, ok := session.AppID()
	if !ok {
		r.logger.Debug(ctx, "No application yet; skipping reload")
		return false
	}
	if !session.Attached() {
		r.logger.Debug(ctx, "Application detached; skipping reload", "app_id", appID)
		return false
	}
	if err := r.opts.Reloader.RequestHotReload(ctx, appID); err != nil {
		r.logger.Warn(ctx, err, "Hot reload request failed", "app_id", appID)
		return false
	}
	return true
}
