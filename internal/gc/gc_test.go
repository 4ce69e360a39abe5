package gc

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"
)

func TestGC_RespectsOwnerAndAge(t *testing.T) {
	tempDir := t.TempDir()
	now := time.Now()

	writeWorkspace(t, tempDir, "rfn-fresh", now.Add(-time.Minute), 0)
	writeWorkspace(t, tempDir, "rfn-running", now.Add(-3*time.Hour), os.Getpid())
	writeWorkspace(t, tempDir, "rfn-crashed", now.Add(-3*time.Hour), 0)
	writeWorkspace(t, tempDir, "unrelated", now.Add(-3*time.Hour), 0)

	res, err := Run(Opts{TempDir: tempDir, Now: now, MaxAge: time.Hour, DryRun: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	deleted := names(res.Deleted)
	want := []string{"rfn-crashed"}
	if runtime.GOOS == "windows" {
		want = []string{"rfn-running", "rfn-crashed"}
	}
	if len(deleted) != len(want) {
		t.Fatalf("unexpected deleted: %v", deleted)
	}
	if _, err := os.Stat(filepath.Join(tempDir, "rfn-crashed")); err != nil {
		t.Fatalf("dry run must not delete: %v", err)
	}

	res, err = Run(Opts{TempDir: tempDir, Now: now, MaxAge: time.Hour})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, err := os.Stat(filepath.Join(tempDir, "rfn-crashed")); !os.IsNotExist(err) {
		t.Fatalf("expected rfn-crashed removed, stat err=%v", err)
	}
	if _, err := os.Stat(filepath.Join(tempDir, "unrelated")); err != nil {
		t.Fatalf("non-workspace directories must be left alone: %v", err)
	}
	if res.TotalAfter > res.TotalBefore {
		t.Fatalf("unexpected totals: %+v", res)
	}
}

func TestGC_MissingTempDir(t *testing.T) {
	res, err := Run(Opts{TempDir: filepath.Join(t.TempDir(), "nope")})
	if err != nil || !res.OK {
		t.Fatalf("missing temp dir should be a no-op: %+v %v", res, err)
	}
}

func names(ws []WorkspaceInfo) []string {
	var out []string
	for _, w := range ws {
		out = append(out, w.Name)
	}
	return out
}

func writeWorkspace(t *testing.T, parent, name string, modTime time.Time, ownerPID int) {
	t.Helper()
	dir := filepath.Join(parent, name)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "input.json"), []byte(`[1]`), 0o600); err != nil {
		t.Fatalf("write input: %v", err)
	}
	if ownerPID > 0 {
		b, _ := json.Marshal(map[string]any{"v": 1, "pid": ownerPID, "startedAt": modTime.UTC().Format(time.RFC3339Nano)})
		if err := os.WriteFile(filepath.Join(dir, "owner.json"), b, 0o600); err != nil {
			t.Fatalf("write owner: %v", err)
		}
	}
	if err := os.Chtimes(dir, modTime, modTime); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
}
