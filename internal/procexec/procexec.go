package procexec

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"
)

const defaultWaitDelay = 2 * time.Second

// Spec describes one interpreter launch.
type Spec struct {
	Argv []string
	Dir  string
	// Env is passed through as-is; nil inherits the parent environment.
	Env   []string
	Stdin io.Reader

	// Optional tees; captured bytes are recorded either way.
	Stdout io.Writer
	Stderr io.Writer

	// MaxCaptureBytes caps each captured stream; 0 keeps everything.
	MaxCaptureBytes int
	// WaitDelay bounds how long Wait lingers on pipes held open by
	// grandchildren after the process exits or is killed.
	WaitDelay time.Duration
}

type Result struct {
	ExitCode int
	Duration time.Duration

	Stdout []byte
	Stderr []byte

	StdoutBytes     int64
	StderrBytes     int64
	StdoutTruncated bool
	StderrTruncated bool
}

// StartError means the process never ran, so there is no exit status.
type StartError struct {
	Argv0 string
	Err   error
}

func (e *StartError) Error() string {
	return "start " + e.Argv0 + ": " + e.Err.Error()
}

func (e *StartError) Unwrap() error { return e.Err }

type capture struct {
	max int
	mu  sync.Mutex
	buf bytes.Buffer

	total     int64
	truncated bool
}

func (c *capture) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.total += int64(len(p))
	if c.max <= 0 {
		_, _ = c.buf.Write(p)
		return len(p), nil
	}

	remaining := c.max - c.buf.Len()
	if remaining <= 0 {
		c.truncated = true
		return len(p), nil
	}
	if len(p) > remaining {
		_, _ = c.buf.Write(p[:remaining])
		c.truncated = true
		return len(p), nil
	}
	_, _ = c.buf.Write(p)
	return len(p), nil
}

func (c *capture) snapshot() ([]byte, int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return bytes.Clone(c.buf.Bytes()), c.total, c.truncated
}

// Run starts argv, waits for it to exit and returns its exit status with the
// captured streams. A non-zero exit is not an error here; callers decide. When
// ctx ends first the whole process group is killed and still awaited.
func Run(ctx context.Context, spec Spec) (Result, error) {
	if len(spec.Argv) == 0 || strings.TrimSpace(spec.Argv[0]) == "" {
		return Result{}, &StartError{Argv0: "", Err: errors.New("missing command argv")}
	}

	cmd := exec.CommandContext(ctx, spec.Argv[0], spec.Argv[1:]...)
	cmd.Dir = spec.Dir
	cmd.Env = spec.Env
	if spec.Stdin != nil {
		cmd.Stdin = spec.Stdin
	}
	cmd.WaitDelay = spec.WaitDelay
	if cmd.WaitDelay <= 0 {
		cmd.WaitDelay = defaultWaitDelay
	}
	configureProcessGroup(cmd)

	outCap := &capture{max: spec.MaxCaptureBytes}
	errCap := &capture{max: spec.MaxCaptureBytes}
	cmd.Stdout = tee(spec.Stdout, outCap)
	cmd.Stderr = tee(spec.Stderr, errCap)

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return Result{}, &StartError{Argv0: spec.Argv[0], Err: err}
	}
	waitErr := cmd.Wait()

	res := Result{Duration: time.Since(start)}
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}
	res.Stdout, res.StdoutBytes, res.StdoutTruncated = outCap.snapshot()
	res.Stderr, res.StderrBytes, res.StderrTruncated = errCap.snapshot()

	if waitErr != nil {
		var ee *exec.ExitError
		if errors.As(waitErr, &ee) || errors.Is(waitErr, exec.ErrWaitDelay) || ctx.Err() != nil {
			return res, nil
		}
		return res, waitErr
	}
	return res, nil
}

func tee(w io.Writer, c *capture) io.Writer {
	if w == nil {
		return c
	}
	return io.MultiWriter(w, c)
}
