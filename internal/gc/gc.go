package gc

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/marcohefti/rfunctions/internal/store"
	"github.com/marcohefti/rfunctions/internal/workspace"
)

// DefaultMaxAge leaves workspaces alone for an hour; a call that is still
// running keeps its owner process alive and is never swept.
const DefaultMaxAge = time.Hour

type WorkspaceInfo struct {
	Name       string    `json:"name"`
	Path       string    `json:"path"`
	ModifiedAt time.Time `json:"modifiedAt"`
	OwnerPID   int       `json:"ownerPid,omitempty"`
	Bytes      int64     `json:"bytes"`
}

type Result struct {
	OK          bool            `json:"ok"`
	TempDir     string          `json:"tempDir"`
	DryRun      bool            `json:"dryRun"`
	Deleted     []WorkspaceInfo `json:"deleted,omitempty"`
	Kept        []WorkspaceInfo `json:"kept,omitempty"`
	Errors      []string        `json:"errors,omitempty"`
	TotalBefore int64           `json:"totalBeforeBytes"`
	TotalAfter  int64           `json:"totalAfterBytes"`
}

type Opts struct {
	TempDir string
	Now     time.Time
	MaxAge  time.Duration
	DryRun  bool
}

// Run removes call workspaces left behind when the owning process died before
// it could clean up (SIGKILL, power loss). Only rfn-* directories are looked at.
func Run(opts Opts) (Result, error) {
	tempDir := opts.TempDir
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	maxAge := opts.MaxAge
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}

	entries, err := os.ReadDir(tempDir)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{OK: true, TempDir: tempDir, DryRun: opts.DryRun}, nil
		}
		return Result{}, err
	}

	var found []WorkspaceInfo
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), workspace.DirPrefix) {
			continue
		}
		dir := filepath.Join(tempDir, e.Name())
		info, err := e.Info()
		if err != nil {
			continue
		}
		size, _ := dirSize(dir)
		w := WorkspaceInfo{Name: e.Name(), Path: dir, ModifiedAt: info.ModTime().UTC(), Bytes: size}
		if owner, ok := store.ReadOwner(dir); ok {
			w.OwnerPID = owner.PID
		}
		found = append(found, w)
	}
	sort.Slice(found, func(i, j int) bool {
		if found[i].ModifiedAt.Equal(found[j].ModifiedAt) {
			return found[i].Name < found[j].Name
		}
		return found[i].ModifiedAt.Before(found[j].ModifiedAt)
	})

	var total int64
	for _, w := range found {
		total += w.Bytes
	}
	res := Result{OK: true, TempDir: tempDir, DryRun: opts.DryRun, TotalBefore: total, TotalAfter: total}
	for _, w := range found {
		if !store.IsAbandoned(w.Path, maxAge, now) {
			res.Kept = append(res.Kept, w)
			continue
		}
		if !opts.DryRun {
			if err := os.RemoveAll(w.Path); err != nil {
				res.OK = false
				res.Errors = append(res.Errors, err.Error())
				res.Kept = append(res.Kept, w)
				continue
			}
		}
		res.Deleted = append(res.Deleted, w)
		res.TotalAfter -= w.Bytes
	}
	return res, nil
}

func dirSize(root string) (int64, error) {
	var total int64
	err := filepath.WalkDir(root, func(_ string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	return total, err
}
