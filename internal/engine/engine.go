// Package engine implements the scan, detect, backup, persist cycle over a
// single watched directory.
package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"autobackup/internal/backup"
	"autobackup/internal/fingerprint"
	"autobackup/internal/fs"
	"autobackup/internal/logging"
	"autobackup/internal/track"
)

const (
	// BackupDirName is the artifact directory created under the watched dir.
	BackupDirName = ".autobackup"

	// StateFileName is the state sidecar kept inside the backup directory.
	StateFileName = ".autobackup_state"
)

// ErrInvalidDirectory means the watch path is missing or not a directory.
// It is fatal at initialization; nothing else recovers from it.
var ErrInvalidDirectory = errors.New("watch path is not a directory")

// RecreatePolicy decides how a tracked file that disappears and later
// reappears resumes versioning.
type RecreatePolicy string

const (
	// RecreateResume keeps the old entry and compares new content against it,
	// continuing the existing version line.
	RecreateResume RecreatePolicy = "resume"

	// RecreateReset re-seeds the entry at version 1 from the new content,
	// producing no backup for the reappearance itself.
	RecreateReset RecreatePolicy = "reset"
)

// Clock abstracts time retrieval so artifact timestamps are deterministic in
// tests.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Config carries the engine's tunables.
type Config struct {
	Dir         string
	MaxTracked  int
	OnRecreate  RecreatePolicy
	HashWorkers int
}

// Engine owns the tracked-file table and runs cycles against one directory.
// Cycles are serialized; the table is only ever mutated by the cycle driver.
type Engine struct {
	mu sync.Mutex

	watchDir    string
	onRecreate  RecreatePolicy
	hashWorkers int

	table   *track.Table
	store   *track.Store
	backups *backup.Manager
	fp      fingerprint.Fingerprinter
	fs      fs.FS
	clock   Clock
	log     logging.Logger
}

// New validates the watched directory, creates the backup subdirectory and
// loads persisted state. A nil filesystem, fingerprinter or clock selects the
// default implementation.
func New(cfg Config, log logging.Logger, filesystem fs.FS, fp fingerprint.Fingerprinter, clock Clock) (*Engine, error) {
	if log == nil {
		log = logging.NewNop()
	}
	if filesystem == nil {
		filesystem = fs.New()
	}
	if fp == nil {
		fp = fingerprint.New()
	}
	if clock == nil {
		clock = realClock{}
	}

	policy := cfg.OnRecreate
	if policy == "" {
		policy = RecreateResume
	}
	if policy != RecreateResume && policy != RecreateReset {
		return nil, fmt.Errorf("unknown recreate policy %q", policy)
	}

	dir := filepath.Clean(cfg.Dir)
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidDirectory, cfg.Dir)
	}

	backupDir := filepath.Join(dir, BackupDirName)
	if err := filesystem.MkdirAll(backupDir); err != nil {
		return nil, fmt.Errorf("creating backup dir: %w", err)
	}

	store := track.NewStore(filepath.Join(backupDir, StateFileName), filesystem)
	table, err := store.Load(cfg.MaxTracked)
	if err != nil {
		if !errors.Is(err, track.ErrCorruptState) {
			return nil, err
		}
		// Degrade rather than crash: live files are re-tracked at version 1
		// and existing artifacts on disk stay untouched.
		log.Error("state sidecar unusable, starting from an empty table: %v", err)
		table = track.NewTable(cfg.MaxTracked)
	} else if table.Len() > 0 {
		log.Info("restored state: tracking %d file(s)", table.Len())
	}

	return &Engine{
		watchDir:    dir,
		onRecreate:  policy,
		hashWorkers: cfg.HashWorkers,
		table:       table,
		store:       store,
		backups:     backup.NewManager(backupDir, filesystem, log),
		fp:          fp,
		fs:          filesystem,
		clock:       clock,
		log:         log,
	}, nil
}

// Dir returns the watched directory.
func (e *Engine) Dir() string {
	return e.watchDir
}

// CycleResult summarizes one cycle for observability.
type CycleResult struct {
	Discovered    int
	Fingerprinted int
	BackedUp      int
	Errors        int
	CapacityHit   bool
}

// RunCycle performs one scan, detect, backup, persist pass. It is idempotent
// for files whose content has not changed since the previous cycle. Per-file
// failures are counted and skipped; only a failed state save fails the cycle.
func (e *Engine) RunCycle(ctx context.Context) (CycleResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var res CycleResult
	e.scan(&res)
	e.detect(ctx, &res)

	if err := e.store.Save(e.table); err != nil {
		return res, err
	}
	return res, nil
}

// FileStatus is one tracked file's observable state.
type FileStatus struct {
	Name    string
	Version int
	Missing bool
}

// Summary is a read-only snapshot of the engine's table.
type Summary struct {
	Dir      string
	Tracked  int
	Capacity int
	Files    []FileStatus
}

// Status returns a snapshot of tracked files, sorted by name.
func (e *Engine) Status() Summary {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := Summary{
		Dir:      e.watchDir,
		Tracked:  e.table.Len(),
		Capacity: e.table.Capacity(),
	}
	for _, name := range e.table.Names() {
		f, _ := e.table.Get(name)
		s.Files = append(s.Files, FileStatus{
			Name:    f.Name,
			Version: f.Version,
			Missing: f.Missing,
		})
	}
	return s
}
