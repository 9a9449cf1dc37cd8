// Package watcher delivers filesystem changes under the project root as a
// stream of ChangeEvents.
//
// Directories are watched recursively and directories created later are
// added as they appear. Events pass through file filters and an optional
// debouncer, then are delivered one at a time on the Events channel.
// Delivery blocks until the consumer receives or the context ends; events
// are never dropped.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/conneroisu/peek/internal/errors"
	"github.com/conneroisu/peek/internal/logging"
	"github.com/conneroisu/peek/internal/validation"
)

// FileWatcher watches a directory tree for file changes.
type FileWatcher struct {
	watcher   *fsnotify.Watcher
	debouncer *Debouncer
	skipDir   func(name string) bool
	logger    logging.Logger

	mutex   sync.RWMutex
	filters []FileFilter
	root    string
	dirs    map[string]struct{}

	events    chan ChangeEvent
	started   bool
	closeOnce sync.Once
}

// ChangeEvent represents a file change event
type ChangeEvent struct {
	Type    EventType
	Path    string
	ModTime time.Time
	Size    int64
	// Dir is set when a watched directory was removed or moved away. The
	// files it held get no events of their own.
	Dir bool
}

// EventType represents the type of file change
type EventType int

const (
	EventTypeCreated EventType = iota
	EventTypeModified
	EventTypeDeleted
	EventTypeRenamed
)

// String returns the string representation of the EventType
func (e EventType) String() string {
	switch e {
	case EventTypeCreated:
		return "created"
	case EventTypeModified:
		return "modified"
	case EventTypeDeleted:
		return "deleted"
	case EventTypeRenamed:
		return "renamed"
	default:
		return "unknown"
	}
}

// Removed reports whether the path no longer exists under its old name.
func (e EventType) Removed() bool {
	return e == EventTypeDeleted || e == EventTypeRenamed
}

// FileFilter determines if a file should be watched
type FileFilter func(path string) bool

// Options configures a FileWatcher.
type Options struct {
	// Debounce groups rapid changes; zero delivers every event immediately.
	Debounce time.Duration
	// SkipDir reports directory base names that are never watched.
	SkipDir func(name string) bool
	Logger  logging.Logger
}

// NewFileWatcher creates a new file watcher
func NewFileWatcher(opts Options) (*FileWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.FileOperationError("WATCH", "", "creating filesystem watcher", err)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	if opts.SkipDir == nil {
		opts.SkipDir = func(string) bool { return false }
	}

	return &FileWatcher{
		watcher:   w,
		debouncer: NewDebouncer(opts.Debounce),
		skipDir:   opts.SkipDir,
		logger:    opts.Logger.WithComponent("watcher"),
		dirs:      make(map[string]struct{}),
		events:    make(chan ChangeEvent),
	}, nil
}

// AddFilter adds a file filter
func (fw *FileWatcher) AddFilter(filter FileFilter) {
	fw.mutex.Lock()
	defer fw.mutex.Unlock()
	fw.filters = append(fw.filters, filter)
}

// AddPath adds a single directory to watch
func (fw *FileWatcher) AddPath(path string) error {
	cleanPath, err := fw.validatePath(path)
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}
	if err := fw.watcher.Add(cleanPath); err != nil {
		return errors.FileOperationError("WATCH", cleanPath, "watching directory", err)
	}
	fw.mutex.Lock()
	fw.dirs[cleanPath] = struct{}{}
	fw.mutex.Unlock()
	return nil
}

// AddRecursive watches root and every subdirectory not rejected by SkipDir.
// The first call fixes the root that later paths must stay within.
func (fw *FileWatcher) AddRecursive(root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return errors.FileOperationError("WATCH", root, "resolving watch root", err)
	}
	abs = filepath.Clean(abs)

	fw.mutex.Lock()
	if fw.root == "" {
		fw.root = abs
	}
	fw.mutex.Unlock()

	_, err = fw.addTree(abs)
	return err
}

// addTree watches dir recursively and returns the files already inside it.
func (fw *FileWatcher) addTree(dir string) ([]string, error) {
	cleanDir, err := fw.validatePath(dir)
	if err != nil {
		return nil, fmt.Errorf("invalid root path: %w", err)
	}

	var files []string
	err = filepath.WalkDir(cleanDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == cleanDir {
				return err
			}
			// The tree can change while it is walked.
			return nil
		}
		if !d.IsDir() {
			files = append(files, path)
			return nil
		}
		if path != cleanDir && fw.skipDir(d.Name()) {
			return filepath.SkipDir
		}
		if err := fw.watcher.Add(path); err != nil {
			return errors.FileOperationError("WATCH", path, "watching directory", err)
		}
		fw.mutex.Lock()
		fw.dirs[path] = struct{}{}
		fw.mutex.Unlock()
		return nil
	})
	return files, err
}

// forgetTree drops dir and every watched directory below it. It reports
// whether dir itself was being watched.
func (fw *FileWatcher) forgetTree(dir string) bool {
	prefix := dir + string(filepath.Separator)

	fw.mutex.Lock()
	_, watched := fw.dirs[dir]
	var gone []string
	for d := range fw.dirs {
		if d == dir || strings.HasPrefix(d, prefix) {
			delete(fw.dirs, d)
			gone = append(gone, d)
		}
	}
	fw.mutex.Unlock()

	for _, d := range gone {
		// The kernel usually drops these watches first.
		_ = fw.watcher.Remove(d)
	}
	return watched
}

// validatePath cleans path and rejects anything outside the watch root.
func (fw *FileWatcher) validatePath(path string) (string, error) {
	absPath, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("getting absolute path: %w", err)
	}

	fw.mutex.RLock()
	root := fw.root
	fw.mutex.RUnlock()

	if root != "" {
		if err := validation.ValidateWithin(root, absPath); err != nil {
			return "", err
		}
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s is not a directory", path)
	}
	return absPath, nil
}

// Events returns the channel changes are delivered on. It is closed when the
// watcher stops.
func (fw *FileWatcher) Events() <-chan ChangeEvent {
	return fw.events
}

// Start begins delivering events until ctx ends or Stop is called.
func (fw *FileWatcher) Start(ctx context.Context) error {
	fw.mutex.Lock()
	defer fw.mutex.Unlock()
	if fw.started {
		return errors.NewInternalError(errors.ErrCodeInternalError, "watcher already started", nil)
	}
	fw.started = true

	go fw.watchLoop(ctx)
	return nil
}

// Stop stops the file watcher and cleans up resources
func (fw *FileWatcher) Stop() error {
	var err error
	fw.closeOnce.Do(func() {
		err = fw.watcher.Close()
	})
	return err
}

func (fw *FileWatcher) watchLoop(ctx context.Context) {
	defer close(fw.events)
	defer fw.Stop()

	var flush <-chan time.Time
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			for _, change := range fw.handleFsnotifyEvent(ctx, event) {
				if !fw.debouncer.Enabled() {
					if !fw.deliver(ctx, change) {
						return
					}
					continue
				}
				fw.debouncer.Add(change)
				timer.Reset(fw.debouncer.Delay())
				flush = timer.C
			}

		case <-flush:
			flush = nil
			for _, change := range fw.debouncer.Flush() {
				if !fw.deliver(ctx, change) {
					return
				}
			}

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			// fsnotify reports overflow and similar conditions here; keep watching.
			fw.logger.Warn(ctx, err, "File watcher error")
		}
	}
}

// deliver blocks until the consumer takes change or ctx ends.
func (fw *FileWatcher) deliver(ctx context.Context, change ChangeEvent) bool {
	select {
	case fw.events <- change:
		return true
	case <-ctx.Done():
		return false
	}
}

func (fw *FileWatcher) handleFsnotifyEvent(ctx context.Context, event fsnotify.Event) []ChangeEvent {
	// Chmod alone never changes source content.
	if event.Op == fsnotify.Chmod {
		return nil
	}

	path := filepath.Clean(event.Name)
	info, statErr := os.Stat(path)

	if statErr == nil && info.IsDir() {
		if event.Op&fsnotify.Create != 0 {
			return fw.handleNewDirectory(ctx, path)
		}
		return nil
	}

	removed := event.Op&(fsnotify.Remove|fsnotify.Rename) != 0
	if removed && statErr != nil && fw.forgetTree(path) {
		eventType := EventTypeDeleted
		if event.Op&fsnotify.Rename != 0 {
			eventType = EventTypeRenamed
		}
		fw.logger.Debug(ctx, "Watched directory went away", "dir", path, "event", eventType.String())
		return []ChangeEvent{{Type: eventType, Path: path, Dir: true}}
	}

	if !fw.accept(path) {
		return nil
	}

	var eventType EventType
	switch {
	case event.Op&fsnotify.Create == fsnotify.Create:
		eventType = EventTypeCreated
	case event.Op&fsnotify.Write == fsnotify.Write:
		eventType = EventTypeModified
	case event.Op&fsnotify.Remove == fsnotify.Remove:
		eventType = EventTypeDeleted
	case event.Op&fsnotify.Rename == fsnotify.Rename:
		eventType = EventTypeRenamed
	default:
		eventType = EventTypeModified
	}

	change := ChangeEvent{Type: eventType, Path: path}
	if statErr == nil {
		change.ModTime = info.ModTime()
		change.Size = info.Size()
	}
	return []ChangeEvent{change}
}

// handleNewDirectory watches a directory that appeared after startup and
// reports the files that were created in it before the watch was in place.
func (fw *FileWatcher) handleNewDirectory(ctx context.Context, dir string) []ChangeEvent {
	if fw.skipDir(filepath.Base(dir)) {
		return nil
	}

	files, err := fw.addTree(dir)
	if err != nil {
		fw.logger.Warn(ctx, err, "Could not watch new directory", "dir", dir)
		return nil
	}
	fw.logger.Debug(ctx, "Watching new directory", "dir", dir)

	var changes []ChangeEvent
	for _, file := range files {
		if !fw.accept(file) {
			continue
		}
		change := ChangeEvent{Type: EventTypeCreated, Path: file}
		if info, err := os.Stat(file); err == nil {
			change.ModTime = info.ModTime()
			change.Size = info.Size()
		}
		changes = append(changes, change)
	}
	return changes
}

func (fw *FileWatcher) accept(path string) bool {
	fw.mutex.RLock()
	filters := fw.filters
	fw.mutex.RUnlock()

	for _, filter := range filters {
		if !filter(path) {
			return false
		}
	}
	return true
}

// Debouncer groups rapid file changes together. The last change per path
// wins, and a flush returns changes sorted by path.
type Debouncer struct {
	delay   time.Duration
	mutex   sync.Mutex
	pending map[string]ChangeEvent
}

// NewDebouncer creates a Debouncer. A non-positive delay disables it.
func NewDebouncer(delay time.Duration) *Debouncer {
	return &Debouncer{
		delay:   delay,
		pending: make(map[string]ChangeEvent),
	}
}

// Enabled reports whether changes are grouped at all.
func (d *Debouncer) Enabled() bool {
	return d.delay > 0
}

// Delay returns the quiet period before a flush.
func (d *Debouncer) Delay() time.Duration {
	return d.delay
}

// Add records a change, replacing any pending change for the same path.
func (d *Debouncer) Add(event ChangeEvent) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.pending[event.Path] = event
}

// Pending returns the number of paths waiting to be flushed.
func (d *Debouncer) Pending() int {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return len(d.pending)
}

// Flush returns and clears the pending changes.
func (d *Debouncer) Flush() []ChangeEvent {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	events := make([]ChangeEvent, 0, len(d.pending))
	for _, event := range d.pending {
		events = append(events, event)
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Path < events[j].Path })

	d.pending = make(map[string]ChangeEvent)
	return events
}

// Common file filters

func GoFilter(path string) bool {
	return filepath.Ext(path) == ".go"
}

func NoTestFilter(path string) bool {
	return !strings.HasSuffix(filepath.Base(path), "_test.go")
}

func NoVendorFilter(path string) bool {
	path = filepath.ToSlash(path)
	return !strings.HasPrefix(path, "vendor/") && !strings.Contains(path, "/vendor/")
}

func NoGitFilter(path string) bool {
	path = filepath.ToSlash(path)
	return !strings.HasPrefix(path, ".git/") && !strings.Contains(path, "/.git/")
}

// NoHiddenFilter rejects dot files and files starting with an underscore,
// which the go tool ignores.
func NoHiddenFilter(path string) bool {
	base := filepath.Base(path)
	return !strings.HasPrefix(base, ".") && !strings.HasPrefix(base, "_")
}

// ExcludePath rejects one exact path, such as a generated file.
func ExcludePath(excluded string) FileFilter {
	excluded = filepath.Clean(excluded)
	return func(path string) bool {
		return filepath.Clean(path) != excluded
	}
}
