package engine

import (
	"os"
	"path/filepath"
	"strings"

	"autobackup/internal/backup"
	"autobackup/internal/track"
)

// contains the directory scanning logic that admits new files into tracking.
// First-time discovery records version 1 and produces no backup; version 1 is
// the original on disk.

func (e *Engine) scan(res *CycleResult) {
	entries, err := os.ReadDir(e.watchDir)
	if err != nil {
		e.log.Error("scan: reading %s: %v", e.watchDir, err)
		res.Errors++
		return
	}

	capacityWarned := false
	for _, entry := range entries {
		name := entry.Name()

		// Hidden entries, subdirectories and the engine's own artifacts are
		// never tracked.
		if entry.IsDir() || strings.HasPrefix(name, ".") || backup.IsArtifactName(name) {
			continue
		}
		if _, ok := e.table.Get(name); ok {
			continue
		}

		if e.table.AtCapacity() {
			if !capacityWarned {
				e.log.Warn("scan: table at capacity (%d), not admitting new files", e.table.Capacity())
				capacityWarned = true
				res.CapacityHit = true
			}
			continue
		}

		full := filepath.Join(e.watchDir, name)

		info, err := e.fs.Stat(full)
		if err != nil {
			e.log.Warn("scan: stat %s: %v", full, err)
			res.Errors++
			continue
		}

		digest, err := e.fp.Sum(full)
		if err != nil {
			// Unreadable this cycle; left untracked and retried next scan.
			e.log.Warn("scan: fingerprint %s: %v", full, err)
			res.Errors++
			continue
		}

		f := &track.File{
			Name:    name,
			Digest:  digest,
			ModTime: info.MTime,
			Version: 1,
		}
		if err := e.table.Insert(f); err != nil {
			e.log.Warn("scan: admitting %s: %v", name, err)
			res.Errors++
			continue
		}

		res.Discovered++
		e.log.Info("now tracking: %s", name)
	}
}
