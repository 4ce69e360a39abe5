package store

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"
)

func makeOldDir(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "rfn-x")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	return dir
}

func age(t *testing.T, dir string, d time.Duration) {
	t.Helper()
	old := time.Now().Add(-d)
	if err := os.Chtimes(dir, old, old); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
}

func TestIsAbandoned_WithoutOwnerMetadata(t *testing.T) {
	dir := makeOldDir(t)
	if IsAbandoned(dir, 2*time.Minute, time.Now()) {
		t.Fatalf("fresh directory must not be abandoned")
	}
	age(t, dir, 3*time.Minute)
	if !IsAbandoned(dir, 2*time.Minute, time.Now()) {
		t.Fatalf("expected old directory without owner metadata to be abandoned")
	}
}

func TestIsAbandoned_WithAliveOwner(t *testing.T) {
	dir := makeOldDir(t)
	if err := WriteOwner(dir); err != nil {
		t.Fatalf("WriteOwner: %v", err)
	}
	owner, ok := ReadOwner(dir)
	if !ok || owner.PID != os.Getpid() || owner.V != 1 {
		t.Fatalf("unexpected owner: %+v ok=%v", owner, ok)
	}
	age(t, dir, 3*time.Minute)

	got := IsAbandoned(dir, 2*time.Minute, time.Now())
	if runtime.GOOS == "windows" {
		if !got {
			t.Fatalf("expected windows fallback to keep time-based behavior")
		}
		return
	}
	if got {
		t.Fatalf("expected directory with alive owner to be kept")
	}
}

func TestIsAbandoned_MissingDir(t *testing.T) {
	if IsAbandoned(filepath.Join(t.TempDir(), "nope"), 0, time.Now()) {
		t.Fatalf("missing directory cannot be abandoned")
	}
}

func TestWriteOwner_LeavesOnlyTheStamp(t *testing.T) {
	dir := makeOldDir(t)
	for range 2 {
		if err := WriteOwner(dir); err != nil {
			t.Fatalf("WriteOwner: %v", err)
		}
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != OwnerFile {
		t.Fatalf("expected only %s, got %v", OwnerFile, entries)
	}
	info, err := entries[0].Info()
	if err != nil {
		t.Fatalf("Info: %v", err)
	}
	if runtime.GOOS != "windows" && info.Mode().Perm() != 0o600 {
		t.Fatalf("expected mode 0600, got %v", info.Mode().Perm())
	}
}
