package backup

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"autobackup/internal/fs"
	"autobackup/internal/logging"
)

// BackupError reports a failed artifact creation. The caller must not commit
// the corresponding digest/version update; the change is retried next cycle.
type BackupError struct {
	Name string
	Err  error
}

func (e *BackupError) Error() string {
	return fmt.Sprintf("backup of %s failed: %v", e.Name, e.Err)
}

func (e *BackupError) Unwrap() error {
	return e.Err
}

// Manager writes versioned artifacts into the backup directory.
// Artifacts are write-once; the manager never mutates or deletes one.
type Manager struct {
	dir string
	fs  fs.FS
	log logging.Logger
}

// NewManager creates a manager rooted at dir. A nil filesystem or logger
// selects the defaults.
func NewManager(dir string, filesystem fs.FS, log logging.Logger) *Manager {
	if filesystem == nil {
		filesystem = fs.New()
	}
	if log == nil {
		log = logging.NewNop()
	}
	return &Manager{dir: dir, fs: filesystem, log: log}
}

func (m *Manager) Dir() string {
	return m.dir
}

// Create copies the source file's current content into a new artifact named
// for baseName, version and ts. The copy lands in a temp file first and is
// renamed into place, so a partial copy never occupies the final name.
func (m *Manager) Create(ctx context.Context, sourcePath, baseName string, version int, ts time.Time) (string, error) {
	if err := m.fs.MkdirAll(m.dir); err != nil {
		return "", &BackupError{Name: baseName, Err: fmt.Errorf("creating backup dir: %w", err)}
	}

	name := ArtifactName(baseName, version, ts)
	final := filepath.Join(m.dir, name)

	// Artifacts are immutable; an existing file under the final name is a
	// collision, not something to overwrite.
	if _, err := m.fs.Stat(final); err == nil {
		return "", &BackupError{Name: baseName, Err: fmt.Errorf("artifact %s already exists", name)}
	}

	tmp := filepath.Join(m.dir, ".tmp-"+uuid.NewString())

	if err := m.fs.CopyFile(ctx, sourcePath, tmp); err != nil {
		_ = m.fs.Remove(tmp)
		return "", &BackupError{Name: baseName, Err: err}
	}

	if err := m.fs.Rename(ctx, tmp, final); err != nil {
		_ = m.fs.Remove(tmp)
		return "", &BackupError{Name: baseName, Err: err}
	}

	m.log.Debug("artifact written: %s", final)
	return final, nil
}
