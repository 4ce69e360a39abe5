package rfunctions

import (
	"io"
	"log/slog"
	"maps"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/marcohefti/rfunctions/internal/envpolicy"
)

const DefaultRscript = "Rscript"

// EnvPolicy filters the environment handed to the interpreter.
type EnvPolicy = envpolicy.Policy

// DefaultEnvPolicy keeps PATH, locale, home/temp and R_* variables and drops
// credentials.
func DefaultEnvPolicy() EnvPolicy { return envpolicy.Default() }

// ProcessOptions tunes how the interpreter is launched. The zero value runs
// Rscript from PATH in the current directory with the parent environment,
// captures both streams and fails on a non-zero exit.
type ProcessOptions struct {
	// Interpreter is the command prefix; the bridge arguments are appended.
	// Empty means DefaultInterpreter().
	Interpreter []string
	Dir         string

	// Env is layered over the inherited environment.
	Env        map[string]string
	IsolateEnv bool
	// EnvPolicy, when set, filters inherited and explicit variables alike;
	// an explicit variable the policy refuses fails the call.
	EnvPolicy *EnvPolicy

	// Stdin defaults to empty input.
	Stdin io.Reader
	// Stdout and Stderr receive a copy of the interpreter's output while it
	// runs. Output is captured regardless.
	Stdout io.Writer
	Stderr io.Writer

	// Timeout kills the interpreter (and its children) once elapsed.
	Timeout time.Duration

	// NoCheck accepts a non-zero exit; the Outcome then carries the exit code
	// and whatever the process left behind.
	NoCheck bool

	// MaxCaptureBytes caps each captured stream; 0 keeps everything.
	MaxCaptureBytes int

	// TempDir is where call workspaces are created; empty means os.TempDir().
	TempDir string
}

// DefaultInterpreter returns RFN_RSCRIPT split on whitespace, or Rscript.
func DefaultInterpreter() []string {
	if fields := strings.Fields(os.Getenv("RFN_RSCRIPT")); len(fields) > 0 {
		return fields
	}
	return []string{DefaultRscript}
}

// Options configure an Engine.
type Options struct {
	// Defaults fill in every zero field of a request's ProcessOptions.
	Defaults ProcessOptions
	// Logger receives one record per call; nil discards.
	Logger *slog.Logger
}

// merge fills zero fields of p from d. Env maps are layered with p winning.
func (p ProcessOptions) merge(d ProcessOptions) ProcessOptions {
	out := p
	if len(out.Interpreter) == 0 {
		out.Interpreter = slices.Clone(d.Interpreter)
	}
	if out.Dir == "" {
		out.Dir = d.Dir
	}
	if len(d.Env) > 0 {
		env := maps.Clone(d.Env)
		maps.Copy(env, p.Env)
		out.Env = env
	}
	out.IsolateEnv = p.IsolateEnv || d.IsolateEnv
	if out.EnvPolicy == nil {
		out.EnvPolicy = d.EnvPolicy
	}
	if out.Stdin == nil {
		out.Stdin = d.Stdin
	}
	if out.Stdout == nil {
		out.Stdout = d.Stdout
	}
	if out.Stderr == nil {
		out.Stderr = d.Stderr
	}
	if out.Timeout <= 0 {
		out.Timeout = d.Timeout
	}
	out.NoCheck = p.NoCheck || d.NoCheck
	if out.MaxCaptureBytes <= 0 {
		out.MaxCaptureBytes = d.MaxCaptureBytes
	}
	if out.TempDir == "" {
		out.TempDir = d.TempDir
	}
	if len(out.Interpreter) == 0 {
		out.Interpreter = DefaultInterpreter()
	}
	return out
}
