package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/marcohefti/rfunctions/internal/store"
)

const (
	ProjectConfigSchemaV1    = 1
	DefaultProjectConfigPath = "rfn.config.yaml"
	ProjectConfigJSONPath    = "rfn.config.json"
)

// ProjectConfigV1 is the per-repo config created by `rfn init`. It may be
// written as YAML or JSON; the field names are the same in both.
type ProjectConfigV1 struct {
	SchemaVersion int                `json:"schemaVersion" yaml:"schemaVersion"`
	Rscript       []string           `json:"rscript,omitempty" yaml:"rscript,omitempty"`
	TempDir       string             `json:"tempDir,omitempty" yaml:"tempDir,omitempty"`
	Timeout       string             `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	Redaction     *RedactionConfigV1 `json:"redaction,omitempty" yaml:"redaction,omitempty"`
}

type InitResult struct {
	OK         bool     `json:"ok"`
	ConfigPath string   `json:"configPath"`
	Rscript    []string `json:"rscript"`
	Created    bool     `json:"created"`
}

// FindProjectConfig returns the project config in dir, preferring YAML.
func FindProjectConfig(dir string) (string, bool) {
	for _, name := range []string{DefaultProjectConfigPath, "rfn.config.yml", ProjectConfigJSONPath} {
		p := filepath.Join(dir, name)
		if st, err := os.Stat(p); err == nil && !st.IsDir() {
			return p, true
		}
	}
	return "", false
}

func LoadProject(path string) (ProjectConfigV1, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return ProjectConfigV1{}, err
	}
	var cfg ProjectConfigV1
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return ProjectConfigV1{}, fmt.Errorf("invalid project config yaml: %w", err)
		}
	default:
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return ProjectConfigV1{}, fmt.Errorf("invalid project config json: %w", err)
		}
	}
	if cfg.SchemaVersion != ProjectConfigSchemaV1 {
		return ProjectConfigV1{}, fmt.Errorf("project config unsupported schemaVersion=%d", cfg.SchemaVersion)
	}
	if cfg.Timeout != "" {
		if _, err := ParseTimeout(cfg.Timeout); err != nil {
			return ProjectConfigV1{}, fmt.Errorf("project config timeout: %w", err)
		}
	}
	return cfg, nil
}

// InitProject writes a project config pinning the interpreter command. An
// existing config is accepted as long as it pins the same command.
func InitProject(configPath string, rscript []string) (*InitResult, error) {
	if strings.TrimSpace(configPath) == "" {
		configPath = DefaultProjectConfigPath
	}
	if len(rscript) == 0 {
		rscript = []string{"Rscript"}
	}

	created := false
	if _, err := os.Stat(configPath); err == nil {
		existing, err := LoadProject(configPath)
		if err != nil {
			return nil, err
		}
		if len(existing.Rscript) > 0 && strings.Join(existing.Rscript, " ") != strings.Join(rscript, " ") {
			return nil, fmt.Errorf("existing config rscript=%q does not match requested rscript=%q", existing.Rscript, rscript)
		}
	} else if os.IsNotExist(err) {
		cfg := ProjectConfigV1{
			SchemaVersion: ProjectConfigSchemaV1,
			Rscript:       rscript,
		}
		if err := writeProject(configPath, cfg); err != nil {
			return nil, err
		}
		created = true
	} else {
		return nil, err
	}

	return &InitResult{
		OK:         true,
		ConfigPath: configPath,
		Rscript:    rscript,
		Created:    created,
	}, nil
}

func writeProject(path string, cfg ProjectConfigV1) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		b, err := yaml.Marshal(cfg)
		if err != nil {
			return err
		}
		return store.WriteFileAtomic(path, b, 0o644)
	default:
		return store.WriteJSONAtomic(path, cfg)
	}
}
