package engine_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"autobackup/internal/engine"
	"autobackup/internal/logging"
	"autobackup/internal/testutil"
)

var baseTime = time.Date(2024, 10, 30, 12, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T, cfg engine.Config, clock engine.Clock) *engine.Engine {
	t.Helper()
	if clock == nil {
		clock = testutil.FixedClock()
	}
	eng, err := engine.New(cfg, logging.NewNop(), nil, nil, clock)
	if err != nil {
		t.Fatalf("engine.New() error = %v", err)
	}
	return eng
}

func runCycle(t *testing.T, eng *engine.Engine) engine.CycleResult {
	t.Helper()
	res, err := eng.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle() error = %v", err)
	}
	return res
}

func version(t *testing.T, eng *engine.Engine, name string) int {
	t.Helper()
	for _, f := range eng.Status().Files {
		if f.Name == name {
			return f.Version
		}
	}
	t.Fatalf("%s is not tracked", name)
	return 0
}

func backupDir(dir string) string {
	return filepath.Join(dir, engine.BackupDirName)
}

func TestEngineNew(t *testing.T) {
	t.Run("rejects a missing watch path", func(t *testing.T) {
		_, err := engine.New(engine.Config{Dir: filepath.Join(t.TempDir(), "nope")}, nil, nil, nil, nil)
		if !errors.Is(err, engine.ErrInvalidDirectory) {
			t.Errorf("New() error = %v, want ErrInvalidDirectory", err)
		}
	})

	t.Run("rejects a file as watch path", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "file")
		testutil.WriteFile(t, path, "x", baseTime)

		_, err := engine.New(engine.Config{Dir: path}, nil, nil, nil, nil)
		if !errors.Is(err, engine.ErrInvalidDirectory) {
			t.Errorf("New() error = %v, want ErrInvalidDirectory", err)
		}
	})

	t.Run("creates the backup directory", func(t *testing.T) {
		dir := t.TempDir()
		newTestEngine(t, engine.Config{Dir: dir}, nil)
		if _, err := os.Stat(backupDir(dir)); err != nil {
			t.Errorf("backup dir missing: %v", err)
		}
	})

	t.Run("rejects an unknown recreate policy", func(t *testing.T) {
		_, err := engine.New(engine.Config{Dir: t.TempDir(), OnRecreate: "panic"}, nil, nil, nil, nil)
		if err == nil {
			t.Error("New() accepted an unknown recreate policy")
		}
	})
}

func TestEngineScenario(t *testing.T) {
	// The canonical lifecycle: discover at v1 with no backup, back up the
	// first real change as v2, and do nothing on an idle cycle.
	dir := t.TempDir()
	a := filepath.Join(dir, "a.txt")
	testutil.WriteFile(t, a, "x", baseTime)

	clock := testutil.NewStubClock(time.Date(2024, 10, 30, 14, 30, 22, 0, time.UTC))
	eng := newTestEngine(t, engine.Config{Dir: dir}, clock)

	res := runCycle(t, eng)
	if res.Discovered != 1 || res.BackedUp != 0 {
		t.Fatalf("first cycle = %+v, want 1 discovered, 0 backed up", res)
	}
	if v := version(t, eng, "a.txt"); v != 1 {
		t.Fatalf("version after discovery = %d, want 1", v)
	}
	if got := testutil.ListBackups(t, backupDir(dir)); len(got) != 0 {
		t.Fatalf("artifacts after discovery = %v, want none", got)
	}

	testutil.WriteFile(t, a, "y", baseTime.Add(time.Minute))
	res = runCycle(t, eng)
	if res.BackedUp != 1 {
		t.Fatalf("second cycle = %+v, want 1 backed up", res)
	}
	if v := version(t, eng, "a.txt"); v != 2 {
		t.Fatalf("version after change = %d, want 2", v)
	}

	artifact := filepath.Join(backupDir(dir), "a_v2_backup_20241030_143022.txt")
	if content := testutil.ReadFile(t, artifact); content != "y" {
		t.Fatalf("artifact content = %q, want %q", content, "y")
	}

	res = runCycle(t, eng)
	if res.BackedUp != 0 || res.Fingerprinted != 0 {
		t.Fatalf("idle cycle = %+v, want nothing to do", res)
	}
	if got := testutil.ListBackups(t, backupDir(dir)); len(got) != 1 {
		t.Fatalf("artifacts after idle cycle = %v, want exactly one", got)
	}
}

func TestEngineNoSpuriousBackups(t *testing.T) {
	// Rewriting identical bytes with a newer mtime must never bump the
	// version or produce an artifact.
	dir := t.TempDir()
	a := filepath.Join(dir, "a.txt")
	testutil.WriteFile(t, a, "stable", baseTime)

	eng := newTestEngine(t, engine.Config{Dir: dir}, nil)
	runCycle(t, eng)

	for i := 1; i <= 3; i++ {
		testutil.WriteFile(t, a, "stable", baseTime.Add(time.Duration(i)*time.Minute))
		res := runCycle(t, eng)
		if res.BackedUp != 0 {
			t.Fatalf("touch %d produced a backup: %+v", i, res)
		}
	}

	if v := version(t, eng, "a.txt"); v != 1 {
		t.Errorf("version = %d, want 1", v)
	}
	if got := testutil.ListBackups(t, backupDir(dir)); len(got) != 0 {
		t.Errorf("artifacts = %v, want none", got)
	}

	// The absorbed mtime also silences the pre-filter next cycle.
	res := runCycle(t, eng)
	if res.Fingerprinted != 0 {
		t.Errorf("idle cycle still hashed %d file(s)", res.Fingerprinted)
	}
}

func TestEngineVersionMonotonicity(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "notes.md")
	testutil.WriteFile(t, a, "rev 0", baseTime)

	clock := testutil.FixedClock()
	eng := newTestEngine(t, engine.Config{Dir: dir}, clock)
	runCycle(t, eng)

	contents := []string{"rev 1", "rev 2", "rev 3"}
	for i, c := range contents {
		testutil.WriteFile(t, a, c, baseTime.Add(time.Duration(i+1)*time.Minute))
		clock.Advance(time.Second)
		runCycle(t, eng)

		want := i + 2
		if v := version(t, eng, "notes.md"); v != want {
			t.Fatalf("version after change %d = %d, want %d", i+1, v, want)
		}
	}

	if got := testutil.ListBackups(t, backupDir(dir)); len(got) != len(contents) {
		t.Errorf("artifacts = %v, want %d", got, len(contents))
	}
}

func TestEngineTransactionalBackup(t *testing.T) {
	// When artifact creation fails, the version must not advance, and the
	// same change must be retried on the next cycle.
	dir := t.TempDir()
	a := filepath.Join(dir, "a.txt")
	testutil.WriteFile(t, a, "x", baseTime)

	clock := testutil.NewStubClock(time.Date(2024, 10, 30, 14, 30, 22, 0, time.UTC))
	eng := newTestEngine(t, engine.Config{Dir: dir}, clock)
	runCycle(t, eng)

	// Occupy the exact artifact name the next change would use; the manager
	// refuses to overwrite it, forcing the backup to fail.
	blocker := filepath.Join(backupDir(dir), "a_v2_backup_20241030_143022.txt")
	testutil.WriteFile(t, blocker, "in the way", baseTime)

	testutil.WriteFile(t, a, "y", baseTime.Add(time.Minute))
	res := runCycle(t, eng)
	if res.BackedUp != 0 || res.Errors == 0 {
		t.Fatalf("blocked cycle = %+v, want an error and no backup", res)
	}
	if v := version(t, eng, "a.txt"); v != 1 {
		t.Fatalf("version advanced to %d despite a failed backup", v)
	}

	// Unblock and verify the retry succeeds with the same target version.
	if err := os.Remove(blocker); err != nil {
		t.Fatal(err)
	}
	res = runCycle(t, eng)
	if res.BackedUp != 1 {
		t.Fatalf("retry cycle = %+v, want 1 backed up", res)
	}
	if v := version(t, eng, "a.txt"); v != 2 {
		t.Errorf("version after retry = %d, want 2", v)
	}
}

func TestEngineRestartDurability(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.txt")
	testutil.WriteFile(t, a, "x", baseTime)

	eng := newTestEngine(t, engine.Config{Dir: dir}, nil)
	runCycle(t, eng)
	testutil.WriteFile(t, a, "y", baseTime.Add(time.Minute))
	runCycle(t, eng)

	before := testutil.ListBackups(t, backupDir(dir))

	// A fresh engine over the same directory restores the persisted table.
	restarted := newTestEngine(t, engine.Config{Dir: dir}, nil)
	if v := version(t, restarted, "a.txt"); v != 2 {
		t.Fatalf("restored version = %d, want 2", v)
	}

	res := runCycle(t, restarted)
	if res.BackedUp != 0 || res.Discovered != 0 {
		t.Fatalf("post-restart cycle = %+v, want nothing to do", res)
	}
	after := testutil.ListBackups(t, backupDir(dir))
	if len(after) != len(before) {
		t.Errorf("artifacts changed across restart: %v -> %v", before, after)
	}
}

func TestEngineCorruptStateDegrades(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.txt")
	testutil.WriteFile(t, a, "x", baseTime)

	eng := newTestEngine(t, engine.Config{Dir: dir}, nil)
	runCycle(t, eng)

	statePath := filepath.Join(backupDir(dir), engine.StateFileName)
	if err := os.WriteFile(statePath, []byte("not a state file\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	// The engine starts over with an empty table instead of failing; the
	// live file is re-tracked at version 1 and no backup is triggered.
	recovered := newTestEngine(t, engine.Config{Dir: dir}, nil)
	res := runCycle(t, recovered)
	if res.Discovered != 1 || res.BackedUp != 0 {
		t.Fatalf("recovery cycle = %+v, want re-tracking without backups", res)
	}
	if v := version(t, recovered, "a.txt"); v != 1 {
		t.Errorf("version = %d, want 1", v)
	}
}

func TestEngineScanFiltering(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, filepath.Join(dir, "real.txt"), "x", baseTime)
	testutil.WriteFile(t, filepath.Join(dir, ".hidden"), "x", baseTime)
	testutil.WriteFile(t, filepath.Join(dir, "old_v2_backup_20240101_120000.txt"), "x", baseTime)
	if err := os.Mkdir(filepath.Join(dir, "subdir"), 0o755); err != nil {
		t.Fatal(err)
	}

	eng := newTestEngine(t, engine.Config{Dir: dir}, nil)
	res := runCycle(t, eng)

	if res.Discovered != 1 {
		t.Fatalf("Discovered = %d, want 1", res.Discovered)
	}
	s := eng.Status()
	if s.Tracked != 1 || s.Files[0].Name != "real.txt" {
		t.Errorf("Status() = %+v, want only real.txt", s)
	}
}

func TestEngineCapacity(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, filepath.Join(dir, "a"), "1", baseTime)
	testutil.WriteFile(t, filepath.Join(dir, "b"), "2", baseTime)

	eng := newTestEngine(t, engine.Config{Dir: dir, MaxTracked: 1}, nil)
	res := runCycle(t, eng)

	if res.Discovered != 1 {
		t.Errorf("Discovered = %d, want 1", res.Discovered)
	}
	if !res.CapacityHit {
		t.Error("CapacityHit = false, want true")
	}
	if eng.Status().Tracked != 1 {
		t.Errorf("Tracked = %d, want 1", eng.Status().Tracked)
	}
}

func TestEngineDeletedFiles(t *testing.T) {
	t.Run("entries for deleted files are retained", func(t *testing.T) {
		dir := t.TempDir()
		a := filepath.Join(dir, "a.txt")
		testutil.WriteFile(t, a, "x", baseTime)

		eng := newTestEngine(t, engine.Config{Dir: dir}, nil)
		runCycle(t, eng)

		if err := os.Remove(a); err != nil {
			t.Fatal(err)
		}
		runCycle(t, eng)

		s := eng.Status()
		if s.Tracked != 1 || !s.Files[0].Missing {
			t.Errorf("Status() = %+v, want a retained missing entry", s)
		}
	})

	t.Run("resume policy continues the version line", func(t *testing.T) {
		dir := t.TempDir()
		a := filepath.Join(dir, "a.txt")
		testutil.WriteFile(t, a, "x", baseTime)

		eng := newTestEngine(t, engine.Config{Dir: dir, OnRecreate: engine.RecreateResume}, nil)
		runCycle(t, eng)

		if err := os.Remove(a); err != nil {
			t.Fatal(err)
		}
		runCycle(t, eng)

		// Recreated with different content, and an *older* mtime to prove
		// resume does not rely on the pre-filter.
		testutil.WriteFile(t, a, "reborn", baseTime.Add(-time.Hour))
		res := runCycle(t, eng)
		if res.BackedUp != 1 {
			t.Fatalf("resume cycle = %+v, want 1 backed up", res)
		}
		if v := version(t, eng, "a.txt"); v != 2 {
			t.Errorf("version = %d, want 2", v)
		}
	})

	t.Run("reset policy starts over at version 1", func(t *testing.T) {
		dir := t.TempDir()
		a := filepath.Join(dir, "a.txt")
		testutil.WriteFile(t, a, "x", baseTime)

		eng := newTestEngine(t, engine.Config{Dir: dir, OnRecreate: engine.RecreateReset}, nil)
		runCycle(t, eng)
		testutil.WriteFile(t, a, "y", baseTime.Add(time.Minute))
		runCycle(t, eng)
		if v := version(t, eng, "a.txt"); v != 2 {
			t.Fatalf("setup version = %d, want 2", v)
		}

		if err := os.Remove(a); err != nil {
			t.Fatal(err)
		}
		runCycle(t, eng)

		testutil.WriteFile(t, a, "reborn", baseTime.Add(2*time.Minute))
		res := runCycle(t, eng)
		if res.BackedUp != 0 {
			t.Fatalf("reset cycle = %+v, want no backup", res)
		}
		if v := version(t, eng, "a.txt"); v != 1 {
			t.Errorf("version = %d, want 1", v)
		}
	})
}

func TestEngineParallelFingerprinting(t *testing.T) {
	dir := t.TempDir()
	names := []string{"a.txt", "b.txt", "c.txt", "d.txt", "e.txt"}
	for i, name := range names {
		testutil.WriteFile(t, filepath.Join(dir, name), "original", baseTime.Add(time.Duration(i)*time.Second))
	}

	clock := testutil.FixedClock()
	eng := newTestEngine(t, engine.Config{Dir: dir, HashWorkers: 4}, clock)
	runCycle(t, eng)

	for i, name := range names {
		testutil.WriteFile(t, filepath.Join(dir, name), "changed "+name, baseTime.Add(time.Hour+time.Duration(i)*time.Second))
	}

	res := runCycle(t, eng)
	if res.BackedUp != len(names) {
		t.Fatalf("BackedUp = %d, want %d", res.BackedUp, len(names))
	}
	for _, name := range names {
		if v := version(t, eng, name); v != 2 {
			t.Errorf("version(%s) = %d, want 2", name, v)
		}
	}
}
