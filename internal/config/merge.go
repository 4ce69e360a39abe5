package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Flags are the CLI values that take precedence over everything else.
type Flags struct {
	Rscript string
	TempDir string
	Timeout string
}

// Merged is the effective configuration. Each *Source names where the value
// came from ("flag", "env:RFN_RSCRIPT", a config path, or "default").
type Merged struct {
	Rscript       []string
	RscriptSource string

	TempDir       string
	TempDirSource string

	Timeout       time.Duration
	TimeoutSource string

	ProjectConfig string
}

func DefaultGlobalConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".rfn", "config.json"), nil
}

type GlobalConfigV1 struct {
	SchemaVersion int                `json:"schemaVersion"`
	Rscript       []string           `json:"rscript,omitempty"`
	TempDir       string             `json:"tempDir,omitempty"`
	Timeout       string             `json:"timeout,omitempty"`
	Redaction     *RedactionConfigV1 `json:"redaction,omitempty"`
}

// LoadMerged resolves the interpreter command, scratch directory and timeout.
// The project config is looked up in the working directory.
func LoadMerged(flags Flags) (Merged, error) {
	// Precedence:
	// 1) CLI flags
	// 2) env vars
	// 3) project config (rfn.config.yaml / rfn.config.json)
	// 4) global config (~/.rfn/config.json)
	// 5) defaults
	var projectCfg ProjectConfigV1
	projectPath, hasProjectCfg := FindProjectConfig(".")
	if hasProjectCfg {
		cfg, err := LoadProject(projectPath)
		if err != nil {
			return Merged{}, err
		}
		projectCfg = cfg
	}
	globalPath, err := DefaultGlobalConfigPath()
	if err != nil {
		return Merged{}, err
	}
	globalCfg, hasGlobalCfg, err := loadGlobal(globalPath)
	if err != nil {
		return Merged{}, err
	}

	res := Merged{
		Rscript:       []string{"Rscript"},
		RscriptSource: "default",
		TempDir:       os.TempDir(),
		TempDirSource: "default",
		TimeoutSource: "default",
	}
	if hasProjectCfg {
		res.ProjectConfig = projectPath
	}

	if v := strings.Fields(flags.Rscript); len(v) > 0 {
		res.Rscript, res.RscriptSource = v, "flag"
	} else if v := strings.Fields(os.Getenv("RFN_RSCRIPT")); len(v) > 0 {
		res.Rscript, res.RscriptSource = v, "env:RFN_RSCRIPT"
	} else if hasProjectCfg && len(projectCfg.Rscript) > 0 {
		res.Rscript, res.RscriptSource = projectCfg.Rscript, projectPath
	} else if hasGlobalCfg && len(globalCfg.Rscript) > 0 {
		res.Rscript, res.RscriptSource = globalCfg.Rscript, globalPath
	}

	if v := strings.TrimSpace(flags.TempDir); v != "" {
		res.TempDir, res.TempDirSource = v, "flag"
	} else if v := strings.TrimSpace(os.Getenv("RFN_TMPDIR")); v != "" {
		res.TempDir, res.TempDirSource = v, "env:RFN_TMPDIR"
	} else if hasProjectCfg && strings.TrimSpace(projectCfg.TempDir) != "" {
		res.TempDir, res.TempDirSource = projectCfg.TempDir, projectPath
	} else if hasGlobalCfg && strings.TrimSpace(globalCfg.TempDir) != "" {
		res.TempDir, res.TempDirSource = globalCfg.TempDir, globalPath
	}

	timeout, source := "", ""
	if v := strings.TrimSpace(flags.Timeout); v != "" {
		timeout, source = v, "flag"
	} else if v := strings.TrimSpace(os.Getenv("RFN_TIMEOUT")); v != "" {
		timeout, source = v, "env:RFN_TIMEOUT"
	} else if hasProjectCfg && strings.TrimSpace(projectCfg.Timeout) != "" {
		timeout, source = projectCfg.Timeout, projectPath
	} else if hasGlobalCfg && strings.TrimSpace(globalCfg.Timeout) != "" {
		timeout, source = globalCfg.Timeout, globalPath
	}
	if timeout != "" {
		d, err := ParseTimeout(timeout)
		if err != nil {
			return Merged{}, fmt.Errorf("timeout from %s: %w", source, err)
		}
		res.Timeout, res.TimeoutSource = d, source
	}
	return res, nil
}

// ParseTimeout accepts a Go duration ("90s", "2m") or a bare number of
// seconds. Zero means no timeout.
func ParseTimeout(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		secs, parseErr := strconv.ParseFloat(raw, 64)
		if parseErr != nil || math.IsNaN(secs) || math.IsInf(secs, 0) {
			return 0, fmt.Errorf("invalid timeout %q", raw)
		}
		d = time.Duration(secs * float64(time.Second))
	}
	if d < 0 {
		return 0, fmt.Errorf("negative timeout %q", raw)
	}
	return d, nil
}

func loadGlobal(path string) (GlobalConfigV1, bool, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return GlobalConfigV1{}, false, nil
		}
		return GlobalConfigV1{}, false, err
	}
	var cfg GlobalConfigV1
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return GlobalConfigV1{}, false, err
	}
	if cfg.SchemaVersion != 1 {
		return GlobalConfigV1{}, false, fmt.Errorf("global config unsupported schemaVersion=%d", cfg.SchemaVersion)
	}
	return cfg, true, nil
}
