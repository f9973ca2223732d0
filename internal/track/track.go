// Package track holds the tracked-file table and its durable sidecar persistence.
package track

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// DefaultCapacity is the soft cap on tracked files when none is configured.
const DefaultCapacity = 1000

var (
	// ErrCapacityExceeded means the table is at capacity and admits no new files.
	ErrCapacityExceeded = errors.New("tracked-file capacity exceeded")

	// ErrCorruptState means the state sidecar could not be parsed.
	ErrCorruptState = errors.New("corrupt state file")
)

// File is one entry under tracking. Version starts at 1 for the original and
// increases by exactly one per confirmed content change. Digest, not ModTime,
// is the source of truth for content equality.
type File struct {
	Name    string
	Digest  string
	ModTime time.Time
	Version int

	// Missing records that the live file failed to stat last cycle.
	// It is in-memory only and never persisted.
	Missing bool
}

// Table maps file base names to their tracked state. It is owned by a single
// engine instance; nothing here is safe for concurrent mutation.
type Table struct {
	files    map[string]*File
	capacity int
}

func NewTable(capacity int) *Table {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Table{
		files:    make(map[string]*File),
		capacity: capacity,
	}
}

func (t *Table) Len() int {
	return len(t.files)
}

func (t *Table) Capacity() int {
	return t.capacity
}

// AtCapacity reports whether the table refuses new admissions.
func (t *Table) AtCapacity() bool {
	return len(t.files) >= t.capacity
}

func (t *Table) Get(name string) (*File, bool) {
	f, ok := t.files[name]
	return f, ok
}

// Insert admits a new file. It fails if the name is already tracked or the
// soft capacity cap is reached; in both cases the table is left unchanged.
func (t *Table) Insert(f *File) error {
	if _, ok := t.files[f.Name]; ok {
		return fmt.Errorf("%s is already tracked", f.Name)
	}
	if t.AtCapacity() {
		return ErrCapacityExceeded
	}
	t.files[f.Name] = f
	return nil
}

// Names returns tracked names in sorted order, so cycles visit files
// deterministically.
func (t *Table) Names() []string {
	names := make([]string, 0, len(t.files))
	for name := range t.files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// put inserts without capacity or duplicate checks. Used by Load, which must
// restore whatever was persisted even if the configured cap has since shrunk.
func (t *Table) put(f *File) {
	t.files[f.Name] = f
}
