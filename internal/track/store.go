package track

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"autobackup/internal/fs"
)

// Store persists the table to a line-oriented sidecar file:
//
//	v1
//	<count>
//	<name>|<digest-hex>|<mtime-epoch-seconds>|<version>
//
// The pipe delimiter is safe because it is not a legal filename character on
// the supported filesystems. Files written by older tools omit the version
// header and start directly with the count; Load accepts both layouts.

const (
	formatVersion = "v1"
	fieldSep      = "|"
	fieldCount    = 4
)

type Store struct {
	path string
	fs   fs.FS
}

func NewStore(path string, filesystem fs.FS) *Store {
	if filesystem == nil {
		filesystem = fs.New()
	}
	return &Store{path: path, fs: filesystem}
}

func (s *Store) Path() string {
	return s.path
}

// Save serializes the table and writes it atomically, so a crash mid-save
// leaves the previous sidecar intact rather than a torn file.
func (s *Store) Save(t *Table) error {
	var b strings.Builder
	names := t.Names()

	fmt.Fprintf(&b, "%s\n%d\n", formatVersion, len(names))
	for _, name := range names {
		f, _ := t.Get(name)
		fmt.Fprintf(&b, "%s%s%s%s%d%s%d\n",
			f.Name, fieldSep,
			f.Digest, fieldSep,
			f.ModTime.Unix(), fieldSep,
			f.Version)
	}

	if err := s.fs.WriteFileAtomic(s.path, []byte(b.String())); err != nil {
		return fmt.Errorf("saving state: %w", err)
	}
	return nil
}

// Load restores the table with the given capacity. A missing or empty sidecar
// yields an empty table (first run). A sidecar that cannot be parsed yields
// ErrCorruptState; the caller decides whether to degrade to an empty table.
func (s *Store) Load(capacity int) (*Table, error) {
	t := NewTable(capacity)

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return t, nil
		}
		return nil, fmt.Errorf("reading state: %w", err)
	}

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) == 1 && lines[0] == "" {
		return t, nil
	}

	// A numeric first line is the headerless legacy layout.
	if lines[0] == formatVersion {
		lines = lines[1:]
	} else if _, err := strconv.Atoi(lines[0]); err != nil {
		return nil, fmt.Errorf("%w: unknown format %q", ErrCorruptState, lines[0])
	}

	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: missing entry count", ErrCorruptState)
	}

	count, err := strconv.Atoi(strings.TrimSpace(lines[0]))
	if err != nil || count < 0 {
		return nil, fmt.Errorf("%w: bad entry count %q", ErrCorruptState, lines[0])
	}
	entries := lines[1:]
	if len(entries) != count {
		return nil, fmt.Errorf("%w: expected %d entries, found %d", ErrCorruptState, count, len(entries))
	}

	for i, line := range entries {
		f, err := parseEntry(line)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrCorruptState, i+2, err)
		}
		if _, ok := t.Get(f.Name); ok {
			return nil, fmt.Errorf("%w: duplicate entry %q", ErrCorruptState, f.Name)
		}
		t.put(f)
	}

	return t, nil
}

func parseEntry(line string) (*File, error) {
	fields := strings.Split(line, fieldSep)
	if len(fields) != fieldCount {
		return nil, fmt.Errorf("expected %d fields, found %d", fieldCount, len(fields))
	}

	name := fields[0]
	if name == "" {
		return nil, fmt.Errorf("empty file name")
	}

	mtime, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("bad mtime %q", fields[2])
	}

	version, err := strconv.Atoi(fields[3])
	if err != nil || version < 1 {
		return nil, fmt.Errorf("bad version %q", fields[3])
	}

	return &File{
		Name:    name,
		Digest:  strings.ToLower(fields[1]),
		ModTime: time.Unix(mtime, 0),
		Version: version,
	}, nil
}
