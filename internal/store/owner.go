package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// OwnerFile records which process created a directory so a later sweep can
// tell abandoned directories from ones still in use.
const OwnerFile = "owner.json"

type OwnerV1 struct {
	V         int    `json:"v"`
	PID       int    `json:"pid"`
	StartedAt string `json:"startedAt"`
}

// WriteOwner stamps dir with the current process. The stamp is replaced
// atomically, so a concurrent sweep never reads a partial file.
func WriteOwner(dir string) error {
	owner := OwnerV1{V: 1, PID: os.Getpid(), StartedAt: time.Now().UTC().Format(time.RFC3339Nano)}
	b, err := CanonicalJSON(owner)
	if err != nil {
		return err
	}
	return WriteFileAtomic(filepath.Join(dir, OwnerFile), b, 0o600)
}

func ReadOwner(dir string) (OwnerV1, bool) {
	raw, err := os.ReadFile(filepath.Join(dir, OwnerFile))
	if err != nil {
		return OwnerV1{}, false
	}
	var owner OwnerV1
	if err := json.Unmarshal(raw, &owner); err != nil {
		return OwnerV1{}, false
	}
	if owner.PID <= 0 {
		return OwnerV1{}, false
	}
	return owner, true
}

// IsAbandoned reports whether dir is older than staleAfter and its owner (if
// recorded) is no longer running.
func IsAbandoned(dir string, staleAfter time.Duration, now time.Time) bool {
	info, err := os.Stat(dir)
	if err != nil {
		return false
	}
	if now.Sub(info.ModTime()) <= staleAfter {
		return false
	}
	if owner, ok := ReadOwner(dir); ok {
		if ProcessAlive(owner.PID) {
			return false
		}
	}
	return true
}
