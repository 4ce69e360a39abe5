package workspace

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/marcohefti/rfunctions/internal/store"
)

const (
	ScriptFile = "bridge.R"
	InputFile  = "input.json"
	OutputFile = "output.json"

	// DirPrefix starts every workspace directory name.
	DirPrefix = "rfn-"
)

// Workspace is the private scratch directory of a single call: the bridge
// script, the argument file, the result file and an owner stamp for
// `rfn gc`.
type Workspace struct {
	Dir string
}

// Create allocates a fresh directory under parent (os.TempDir when empty).
// id names the directory; a random UUID is used when it is empty.
func Create(parent, id string) (*Workspace, error) {
	if parent == "" {
		parent = os.TempDir()
	}
	parent, err := filepath.Abs(parent)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return nil, err
	}
	if id == "" {
		id = uuid.NewString()
	}
	dir := filepath.Join(parent, DirPrefix+id)
	if err := os.Mkdir(dir, 0o700); err != nil {
		return nil, err
	}
	w := &Workspace{Dir: dir}
	if err := store.WriteOwner(dir); err != nil {
		_ = w.Remove()
		return nil, err
	}
	return w, nil
}

func (w *Workspace) ScriptPath() string { return filepath.Join(w.Dir, ScriptFile) }
func (w *Workspace) InputPath() string  { return filepath.Join(w.Dir, InputFile) }
func (w *Workspace) OutputPath() string { return filepath.Join(w.Dir, OutputFile) }

func (w *Workspace) WriteScript(src string) error {
	return os.WriteFile(w.ScriptPath(), []byte(src), 0o600)
}

func (w *Workspace) WriteInput(b []byte) error {
	return os.WriteFile(w.InputPath(), b, 0o600)
}

// ReadOutput returns the result document and whether it exists.
func (w *Workspace) ReadOutput() ([]byte, bool, error) {
	b, err := os.ReadFile(w.OutputPath())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return b, true, nil
}

// Remove deletes the directory and everything in it. Safe to call twice.
func (w *Workspace) Remove() error {
	if w == nil || w.Dir == "" {
		return nil
	}
	return os.RemoveAll(w.Dir)
}
