// Package scanner discovers preview functions in Go source trees.
//
// A preview function is a top-level, exported, receiver-less function whose
// doc comment carries the preview directive (by default //peek:preview):
//
//	//peek:preview
//	func CardPreviews() []preview.Preview { ... }
//
// The scanner parses files with go/parser and reports, per file, the
// annotated function names in declaration order. A function carrying the
// directive more than once is reported once. Files that fail to parse are
// reported as recoverable scan errors with no discoveries, and files in
// package main are never reported because the scaffold cannot import them.
// The scanner keeps an xxh3 digest of every file it has read so callers can
// skip re-parsing content that has not changed.
package scanner

import (
	"context"
	stderrors "errors"
	"go/ast"
	"go/parser"
	goscanner "go/scanner"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/sourcegraph/conc/pool"
	"github.com/zeebo/xxh3"

	"github.com/conneroisu/peek/internal/errors"
	"github.com/conneroisu/peek/internal/logging"
	"github.com/conneroisu/peek/internal/registry"
)

// DefaultMarker is the directive name that marks a preview function.
const DefaultMarker = "peek:preview"

// Options configures a PreviewScanner.
type Options struct {
	// Marker is the directive name without the leading "//".
	Marker string
	// Exclude holds filepath.Match patterns tested against both the base
	// name and the slash-separated path relative to the scan root.
	Exclude []string
	// Workers bounds parallel parsing during directory scans.
	Workers int
	Logger  logging.Logger
}

// PreviewScanner finds annotated preview functions.
type PreviewScanner struct {
	marker  string
	exclude []string
	workers int
	logger  logging.Logger

	// digests records the content hash of every file read, keyed by path.
	digests map[string]uint64
	mutex   sync.Mutex
}

// New creates a PreviewScanner.
func New(opts Options) *PreviewScanner {
	if opts.Marker == "" {
		opts.Marker = DefaultMarker
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
		if opts.Workers > 8 {
			opts.Workers = 8 // Cap at 8 workers for diminishing returns
		}
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}

	return &PreviewScanner{
		marker:  strings.TrimPrefix(opts.Marker, "//"),
		exclude: opts.Exclude,
		workers: opts.Workers,
		logger:  opts.Logger.WithComponent("scanner"),
		digests: make(map[string]uint64),
	}
}

// ScanFile reads and scans one file. The returned entry always names the
// cleaned path; on a parse error its symbol list is empty and the error is a
// recoverable scan error.
func (s *PreviewScanner) ScanFile(ctx context.Context, path string) (registry.Entry, error) {
	entry, _, err := s.scan(ctx, path, false)
	return entry, err
}

// Rescan is ScanFile for a file that may not have changed. When the content
// digest matches the last read, unchanged is true and the file is not parsed.
func (s *PreviewScanner) Rescan(ctx context.Context, path string) (entry registry.Entry, unchanged bool, err error) {
	return s.scan(ctx, path, true)
}

// Forget drops the recorded digest for path, e.g. after it was deleted.
func (s *PreviewScanner) Forget(path string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	delete(s.digests, filepath.Clean(path))
}

func (s *PreviewScanner) scan(ctx context.Context, path string, skipUnchanged bool) (registry.Entry, bool, error) {
	cleanPath := filepath.Clean(path)
	entry := registry.Entry{File: cleanPath}

	content, err := os.ReadFile(cleanPath)
	if err != nil {
		return entry, false, errors.FileOperationError("READ", cleanPath, "reading source file", err)
	}

	digest := xxh3.Hash(content)
	s.mutex.Lock()
	previous, seen := s.digests[cleanPath]
	s.digests[cleanPath] = digest
	s.mutex.Unlock()

	if skipUnchanged && seen && previous == digest {
		return entry, true, nil
	}

	entry, err = s.ScanSource(ctx, cleanPath, content)
	return entry, false, err
}

// ScanSource scans already-loaded source. It performs no I/O.
func (s *PreviewScanner) ScanSource(ctx context.Context, path string, src []byte) (registry.Entry, error) {
	entry := registry.Entry{File: path}

	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, src, parser.ParseComments|parser.SkipObjectResolution)
	if err != nil {
		return entry, parseError(path, err)
	}

	entry.Package = file.Name.Name
	if entry.Package == "main" {
		s.logger.Debug(ctx, "Skipping package main", "file", path)
		return entry, nil
	}

	entry.Symbols = s.extractPreviews(file)
	return entry, nil
}

// extractPreviews walks top-level declarations in source order.
func (s *PreviewScanner) extractPreviews(file *ast.File) []string {
	var symbols []string
	for _, decl := range file.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok || fn.Recv != nil || !ast.IsExported(fn.Name.Name) {
			continue
		}
		if s.hasMarker(fn.Doc) {
			symbols = append(symbols, fn.Name.Name)
		}
	}
	return symbols
}

// hasMarker reports whether doc carries the marker directive. The first
// match wins; repeats are not diagnosed.
func (s *PreviewScanner) hasMarker(doc *ast.CommentGroup) bool {
	if doc == nil {
		return false
	}
	for _, c := range doc.List {
		// Directives have no space after the slashes.
		text, ok := strings.CutPrefix(c.Text, "//")
		if !ok {
			continue
		}
		if text == s.marker || strings.HasPrefix(text, s.marker+" ") {
			return true
		}
	}
	return false
}

func parseError(path string, err error) *errors.PeekError {
	pe := errors.ScanError(path, "parsing source file", err)
	var list goscanner.ErrorList
	if stderrors.As(err, &list) && len(list) > 0 {
		pe.WithLocation(path, list[0].Pos.Line, list[0].Pos.Column)
	}
	return pe
}

// ScanDirectory scans every source file under root in parallel and returns
// one entry per file with at least one preview. Parse failures are logged
// and skipped.
func (s *PreviewScanner) ScanDirectory(ctx context.Context, root string) ([]registry.Entry, error) {
	files, err := s.collectFiles(root)
	if err != nil {
		return nil, err
	}

	p := pool.NewWithResults[registry.Entry]().
		WithContext(ctx).
		WithMaxGoroutines(s.workers)

	for _, file := range files {
		p.Go(func(ctx context.Context) (registry.Entry, error) {
			if err := ctx.Err(); err != nil {
				return registry.Entry{}, err
			}
			entry, err := s.ScanFile(ctx, file)
			if err != nil {
				if errors.IsRecoverable(err) {
					s.logger.Warn(ctx, err, "Skipping unparsable file", "file", file)
				} else {
					s.logger.Error(ctx, err, "Skipping unreadable file", "file", file)
				}
				return registry.Entry{File: file}, nil
			}
			return entry, nil
		})
	}

	results, err := p.Wait()
	if err != nil {
		return nil, err
	}

	entries := make([]registry.Entry, 0, len(results))
	for _, entry := range results {
		if len(entry.Symbols) > 0 {
			entries = append(entries, entry)
		}
	}

	s.logger.Debug(ctx, "Scanned directory", "root", root, "files", len(files), "with_previews", len(entries))
	return entries, nil
}

func (s *PreviewScanner) collectFiles(root string) ([]string, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.WrapIO(err, errors.ErrCodeInvalidPath, "resolving scan root")
	}

	var files []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		if d.IsDir() {
			if path != root && (SkipDir(d.Name()) || s.Excluded(rel)) {
				return filepath.SkipDir
			}
			return nil
		}
		if IsSourceFile(path) && !s.Excluded(rel) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, errors.FileOperationError("WALK", root, "walking source tree", err)
	}
	return files, nil
}

// Excluded reports whether rel, a path relative to the scan root, matches an
// exclude pattern.
func (s *PreviewScanner) Excluded(rel string) bool {
	rel = filepath.ToSlash(rel)
	base := filepath.Base(rel)
	for _, pattern := range s.exclude {
		if ok, _ := filepath.Match(pattern, base); ok {
			return true
		}
		if ok, _ := filepath.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

// SkipDir reports whether a directory with this base name is never scanned.
func SkipDir(name string) bool {
	switch name {
	case "vendor", "testdata", "node_modules":
		return true
	}
	return strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_")
}

// IsSourceFile reports whether path names a non-test Go source file.
func IsSourceFile(path string) bool {
	base := filepath.Base(path)
	if !strings.HasSuffix(base, ".go") || strings.HasSuffix(base, "_test.go") {
		return false
	}
	return !strings.HasPrefix(base, ".") && !strings.HasPrefix(base, "_")
}
