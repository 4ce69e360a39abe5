package doctor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/marcohefti/rfunctions"
	"github.com/marcohefti/rfunctions/internal/config"
)

type Check struct {
	ID      string `json:"id"`
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}

type Result struct {
	OK      bool     `json:"ok"`
	Rscript []string `json:"rscript"`
	TempDir string   `json:"tempDir"`
	Checks  []Check  `json:"checks"`
}

// ProbeFunction is defined in the throwaway source file the round-trip check
// writes and calls.
const ProbeFunction = "rfn_probe"

const probeSource = `rfn_probe <- function() {
  list(r = R.version.string, jsonlite = as.character(utils::packageVersion("jsonlite")))
}
`

// probeTimeout bounds the round-trip call; a cold Rscript start with
// jsonlite loading takes a few seconds on slow machines.
const probeTimeout = 60 * time.Second

func Run(ctx context.Context, m config.Merged) Result {
	res := Result{OK: true, Rscript: m.Rscript, TempDir: m.TempDir}
	add := func(c Check) {
		if !c.OK {
			res.OK = false
		}
		res.Checks = append(res.Checks, c)
	}

	// Write access: the engine creates one private directory per call here.
	tempOK := false
	if f, err := os.CreateTemp(m.TempDir, ".rfn-doctor-*"); err != nil {
		add(Check{ID: "temp_dir", OK: false, Message: err.Error()})
	} else {
		_ = f.Close()
		_ = os.Remove(f.Name())
		tempOK = true
		add(Check{ID: "temp_dir", OK: true})
	}

	if m.ProjectConfig != "" {
		add(Check{ID: "project_config", OK: true, Message: m.ProjectConfig})
	} else {
		add(Check{ID: "project_config", OK: true, Message: "missing (ok)"})
	}

	if _, err := config.LoadRedaction(m.ProjectConfig); err != nil {
		add(Check{ID: "redaction_config", OK: false, Message: err.Error()})
	} else {
		add(Check{ID: "redaction_config", OK: true})
	}

	if len(m.Rscript) == 0 {
		add(Check{ID: "interpreter", OK: false, Message: "no interpreter configured"})
		return res
	}
	path, err := exec.LookPath(m.Rscript[0])
	if err != nil {
		add(Check{ID: "interpreter", OK: false, Message: fmt.Sprintf("%s not found (set RFN_RSCRIPT or --rscript)", m.Rscript[0])})
		return res
	}
	add(Check{ID: "interpreter", OK: true, Message: path})
	if !tempOK {
		return res
	}

	add(roundTrip(ctx, m))
	return res
}

// roundTrip calls a probe function through the real bridge, which needs a
// working interpreter and jsonlite.
func roundTrip(ctx context.Context, m config.Merged) Check {
	dir, err := os.MkdirTemp(m.TempDir, ".rfn-doctor-src-*")
	if err != nil {
		return Check{ID: "round_trip", OK: false, Message: err.Error()}
	}
	defer func() { _ = os.RemoveAll(dir) }()
	source := filepath.Join(dir, "probe.R")
	if err := os.WriteFile(source, []byte(probeSource), 0o644); err != nil {
		return Check{ID: "round_trip", OK: false, Message: err.Error()}
	}

	e := rfunctions.New(rfunctions.Options{Defaults: rfunctions.ProcessOptions{
		Interpreter: m.Rscript,
		TempDir:     m.TempDir,
		Timeout:     probeTimeout,
	}})
	out, err := e.Run(ctx, rfunctions.Request{SourceFile: source, Function: ProbeFunction})
	if err != nil {
		return Check{ID: "round_trip", OK: false, Message: err.Error()}
	}
	var probe struct {
		R        string `json:"r"`
		Jsonlite string `json:"jsonlite"`
	}
	if err := out.Decode(&probe); err != nil {
		return Check{ID: "round_trip", OK: false, Message: "jsonlite did not write a result: " + err.Error()}
	}
	return Check{ID: "round_trip", OK: true, Message: fmt.Sprintf("%s, jsonlite %s", probe.R, probe.Jsonlite)}
}
