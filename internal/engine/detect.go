package engine

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"autobackup/internal/fs"
	"autobackup/internal/track"
)

// implements change confirmation: a cheap mtime pre-filter decides what to
// hash, and only a digest mismatch produces a backup. The pre-filter is an
// optimization, never a correctness check; a touch without a content change
// passes it and is absorbed after hashing.

// candidate is a tracked file whose pre-filter says the content may have
// changed; only a digest comparison can confirm it.
type candidate struct {
	file  *track.File
	path  string
	mtime time.Time
}

func (e *Engine) detect(ctx context.Context, res *CycleResult) {
	candidates := e.collectCandidates()
	if len(candidates) == 0 {
		return
	}

	digests := e.fingerprintAll(ctx, candidates)

	for i, c := range candidates {
		d := digests[i]
		if d.err != nil {
			// No decision possible this cycle; the entry stays as-is.
			e.log.Warn("detect: fingerprint %s: %v", c.path, d.err)
			res.Errors++
			continue
		}
		res.Fingerprinted++

		digest := strings.ToLower(d.digest)
		if digest == strings.ToLower(c.file.Digest) {
			// Metadata-only churn: absorb the new mtime, keep the version.
			c.file.ModTime = c.mtime
			continue
		}

		e.commit(ctx, c, digest, res)
	}
}

func (e *Engine) collectCandidates() []candidate {
	var out []candidate

	for _, name := range e.table.Names() {
		f, _ := e.table.Get(name)
		path := filepath.Join(e.watchDir, name)

		info, err := e.fs.Stat(path)
		if err != nil {
			// Deleted or unreachable: the entry is retained, not dropped.
			if !f.Missing {
				e.log.Warn("detect: %s unreachable, keeping last known version v%d: %v", name, f.Version, err)
				f.Missing = true
			}
			continue
		}

		if f.Missing {
			f.Missing = false
			if e.onRecreate == RecreateReset {
				e.reseed(f, path, info)
				continue
			}
			// Resume: a recreated file may carry an older mtime, so the
			// pre-filter would lie here. Hash unconditionally.
			out = append(out, candidate{file: f, path: path, mtime: info.MTime})
			continue
		}

		if !info.MTime.After(f.ModTime) {
			continue
		}

		out = append(out, candidate{file: f, path: path, mtime: info.MTime})
	}

	return out
}

// reseed restarts a recreated file's version line at 1 under the reset
// policy. The reappearance itself is not backed up, matching first discovery.
func (e *Engine) reseed(f *track.File, path string, info fs.FileInfo) {
	digest, err := e.fp.Sum(path)
	if err != nil {
		e.log.Warn("detect: fingerprint %s: %v", path, err)
		f.Missing = true
		return
	}

	f.Digest = digest
	f.ModTime = info.MTime
	f.Version = 1
	e.log.Info("%s recreated, version reset to 1", f.Name)
}

// commit runs the artifact-then-version half of a confirmed change. The
// version advances only after the copy succeeds, so a failed backup leaves
// the entry exactly as before and the change is retried next cycle.
func (e *Engine) commit(ctx context.Context, c candidate, digest string, res *CycleResult) {
	next := c.file.Version + 1

	path, err := e.backups.Create(ctx, c.path, c.file.Name, next, e.clock.Now())
	if err != nil {
		e.log.Error("detect: %v", err)
		res.Errors++
		return
	}

	c.file.Version = next
	c.file.Digest = digest
	c.file.ModTime = c.mtime

	res.BackedUp++
	e.log.Info("backed up: %s -> v%d (%s)", c.file.Name, next, filepath.Base(path))
}
