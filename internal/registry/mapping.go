// Package registry holds the preview mapping: the in-memory record of which
// annotated preview functions each source file declares.
//
// The mapping is the single source of truth the renderer draws from. It is
// populated by a full scan at startup and then updated one file at a time as
// the watcher reports changes. Files with no discovered previews never have an
// entry, and the symbol order within a file is the declaration order.
package registry

import (
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"
)

// Entry is one file's discovered preview functions.
type Entry struct {
	// File is the cleaned absolute path of the source file.
	File string `json:"file" yaml:"file"`
	// Package is the Go package name declared by File.
	Package string `json:"package" yaml:"package"`
	// Symbols are the preview function names in declaration order.
	Symbols []string `json:"symbols" yaml:"symbols"`
}

// PreviewMapping maps source files to their ordered preview symbols.
// It is safe for concurrent use.
type PreviewMapping struct {
	entries map[string]Entry
	mutex   sync.RWMutex
}

// NewPreviewMapping creates an empty mapping.
func NewPreviewMapping() *PreviewMapping {
	return &PreviewMapping{
		entries: make(map[string]Entry),
	}
}

// Get returns the entry for file.
func (m *PreviewMapping) Get(file string) (Entry, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	entry, ok := m.entries[file]
	if !ok {
		return Entry{}, false
	}
	return entry.clone(), true
}

// Symbols returns the stored symbols for file, nil when it has no entry.
func (m *PreviewMapping) Symbols(file string) []string {
	entry, _ := m.Get(file)
	return entry.Symbols
}

// Set stores entry and reports whether the file's symbol list changed.
// An entry with no symbols removes the file instead.
func (m *PreviewMapping) Set(entry Entry) bool {
	if len(entry.Symbols) == 0 {
		return m.Remove(entry.File)
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	existing, ok := m.entries[entry.File]
	m.entries[entry.File] = entry.clone()

	return !ok || !slices.Equal(existing.Symbols, entry.Symbols)
}

// Remove deletes file and reports whether an entry existed.
func (m *PreviewMapping) Remove(file string) bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if _, ok := m.entries[file]; !ok {
		return false
	}
	delete(m.entries, file)
	return true
}

// RemoveUnder deletes every file inside dir and returns the removed paths in
// sorted order.
func (m *PreviewMapping) RemoveUnder(dir string) []string {
	prefix := strings.TrimSuffix(dir, string(filepath.Separator)) + string(filepath.Separator)

	m.mutex.Lock()
	defer m.mutex.Unlock()

	var removed []string
	for file := range m.entries {
		if strings.HasPrefix(file, prefix) {
			delete(m.entries, file)
			removed = append(removed, file)
		}
	}
	sort.Strings(removed)
	return removed
}

// Merge applies every entry of fragment.
func (m *PreviewMapping) Merge(fragment []Entry) {
	for _, entry := range fragment {
		m.Set(entry)
	}
}

// Snapshot returns a copy of all entries sorted by file path. Rendering always
// iterates a snapshot so output order does not depend on map iteration.
func (m *PreviewMapping) Snapshot() []Entry {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	entries := make([]Entry, 0, len(m.entries))
	for _, entry := range m.entries {
		entries = append(entries, entry.clone())
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].File < entries[j].File
	})
	return entries
}

// Len returns the number of files with previews.
func (m *PreviewMapping) Len() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	return len(m.entries)
}

// Count returns the total number of preview symbols across all files.
func (m *PreviewMapping) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	total := 0
	for _, entry := range m.entries {
		total += len(entry.Symbols)
	}
	return total
}

func (e Entry) clone() Entry {
	e.Symbols = slices.Clone(e.Symbols)
	return e
}
