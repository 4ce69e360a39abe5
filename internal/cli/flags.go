package cli

import (
	"flag"
	"fmt"
	"strings"

	"github.com/marcohefti/rfunctions"
	"github.com/marcohefti/rfunctions/internal/config"
	"github.com/marcohefti/rfunctions/internal/redact"
)

// engineFlags are shared by the commands that launch the interpreter.
type engineFlags struct {
	rscript    string
	tempDir    string
	timeout    string
	dir        string
	isolateEnv bool
	envPolicy  bool
	env        envFlag
}

func (f *engineFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.rscript, "rscript", "", "interpreter command (default from config/env, else Rscript)")
	fs.StringVar(&f.tempDir, "tmpdir", "", "parent directory for call workspaces")
	fs.StringVar(&f.timeout, "timeout", "", "call timeout (e.g. 30s; default none)")
	fs.StringVar(&f.dir, "dir", "", "interpreter working directory")
	fs.BoolVar(&f.isolateEnv, "isolate-env", false, "do not inherit the environment")
	fs.BoolVar(&f.envPolicy, "env-policy", false, "filter the environment through the default allowlist")
	fs.Var(&f.env, "env", "KEY=VALUE for the interpreter (repeatable)")
}

// resolve merges the flags with env and config files.
func (f *engineFlags) resolve() (config.Merged, rfunctions.ProcessOptions, *redact.Set, error) {
	m, err := config.LoadMerged(config.Flags{Rscript: f.rscript, TempDir: f.tempDir, Timeout: f.timeout})
	if err != nil {
		return config.Merged{}, rfunctions.ProcessOptions{}, nil, err
	}
	scrub, err := config.LoadRedaction(m.ProjectConfig)
	if err != nil {
		return config.Merged{}, rfunctions.ProcessOptions{}, nil, err
	}
	p := rfunctions.ProcessOptions{
		Interpreter: m.Rscript,
		TempDir:     m.TempDir,
		Timeout:     m.Timeout,
		Dir:         f.dir,
		IsolateEnv:  f.isolateEnv,
		Env:         f.env.values,
	}
	if f.envPolicy {
		policy := rfunctions.DefaultEnvPolicy()
		p.EnvPolicy = &policy
	}
	return m, p, scrub, nil
}

type envFlag struct {
	values map[string]string
}

func (e *envFlag) String() string {
	if e == nil {
		return ""
	}
	parts := make([]string, 0, len(e.values))
	for k := range e.values {
		parts = append(parts, k)
	}
	return strings.Join(parts, ",")
}

func (e *envFlag) Set(s string) error {
	k, v, ok := strings.Cut(s, "=")
	k = strings.TrimSpace(k)
	if !ok || k == "" {
		return fmt.Errorf("expected KEY=VALUE, got %q", s)
	}
	if e.values == nil {
		e.values = map[string]string{}
	}
	e.values[k] = v
	return nil
}
