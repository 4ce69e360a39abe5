package rfunctions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"reflect"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/marcohefti/rfunctions/internal/codec"
	"github.com/marcohefti/rfunctions/internal/envpolicy"
	"github.com/marcohefti/rfunctions/internal/metrics"
	"github.com/marcohefti/rfunctions/internal/procexec"
	"github.com/marcohefti/rfunctions/internal/redact"
	"github.com/marcohefti/rfunctions/internal/workspace"
)

const (
	conventionBlocking   = "blocking"
	conventionSuspending = "suspending"
)

// Request names one function call.
type Request struct {
	SourceFile string
	Function   string
	// Args is nil (no arguments, no argument file), a slice or array
	// (positional) or a string-keyed map or struct (named). A nil slice or
	// map counts as nil; an empty one is still sent.
	Args    any
	Process ProcessOptions
}

// Engine runs calls. It holds no per-call state and is safe for concurrent use.
type Engine struct {
	defaults ProcessOptions
	logger   *slog.Logger
}

func New(opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Engine{defaults: opts.Defaults, logger: logger}
}

// Run calls the function and blocks until the interpreter has exited.
func (e *Engine) Run(ctx context.Context, req Request) (Outcome, error) {
	return e.invoke(ctx, conventionBlocking, req, uuid.NewString())
}

// RunAsync starts the call on its own goroutine and returns immediately.
func (e *Engine) RunAsync(ctx context.Context, req Request) *Call {
	c := newCall(uuid.NewString())
	go func() {
		out, err := e.invoke(ctx, conventionSuspending, req, c.id)
		c.finish(out, err)
	}()
	return c
}

func (e *Engine) invoke(ctx context.Context, convention string, req Request, callID string) (out Outcome, err error) {
	opts := req.Process.merge(e.defaults)
	log := e.logger.With("call_id", callID, "function", req.Function, "convention", convention)
	done := metrics.Track(convention)
	defer func() {
		done(outcomeLabel(out, err))
		if err != nil {
			if ee, ok := AsError(err); ok {
				ee.CallID = callID
				log.Debug("r call failed",
					"code", ee.Code,
					"exit_code", ee.ExitCode,
					"stderr", redact.Bytes([]byte(firstLine(ee.Stderr))),
				)
			}
			return
		}
		log.Debug("r call finished",
			"exit_code", out.ExitCode,
			"has_value", out.HasValue,
			"duration_ms", out.Duration.Milliseconds(),
		)
	}()

	if err := validateRequest(req); err != nil {
		return Outcome{CallID: callID}, err
	}

	var input []byte
	if !isAbsent(req.Args) {
		if input, err = encodeArgs(req.Args); err != nil {
			return Outcome{CallID: callID}, err
		}
	}

	env, err := envpolicy.Build(opts.EnvPolicy, !opts.IsolateEnv, os.Environ(), opts.Env)
	if err != nil {
		return Outcome{CallID: callID}, wrapError(ErrorUsage, "build interpreter environment", err)
	}

	ws, err := workspace.Create(opts.TempDir, callID)
	if err != nil {
		return Outcome{CallID: callID}, wrapError(ErrorWorkspace, "create call workspace", err)
	}
	defer func() {
		if rmErr := ws.Remove(); rmErr != nil {
			log.Warn("remove call workspace", "dir", ws.Dir, "err", rmErr)
		}
	}()
	if err := ws.WriteScript(bridgeScript); err != nil {
		return Outcome{CallID: callID}, wrapError(ErrorWorkspace, "write bridge script", err)
	}
	if input != nil {
		if err := ws.WriteInput(input); err != nil {
			return Outcome{CallID: callID}, wrapError(ErrorWorkspace, "write arguments", err)
		}
	}

	runCtx := ctx
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	argv := append(slices.Clone(opts.Interpreter),
		BridgeArgs(ws.ScriptPath(), req.SourceFile, req.Function, ws.InputPath(), ws.OutputPath())...)
	log.Debug("launching interpreter",
		"argv0", argv[0],
		"dir", opts.Dir,
		"env_overlay", envpolicy.Default().RedactForLog(opts.Env),
		"has_args", input != nil,
	)

	res, runErr := procexec.Run(runCtx, procexec.Spec{
		Argv:            argv,
		Dir:             opts.Dir,
		Env:             env,
		Stdin:           opts.Stdin,
		Stdout:          opts.Stdout,
		Stderr:          opts.Stderr,
		MaxCaptureBytes: opts.MaxCaptureBytes,
	})
	if ctxErr := runCtx.Err(); ctxErr != nil {
		return Outcome{CallID: callID}, interruptedError(ctxErr, res)
	}
	if runErr != nil {
		var se *procexec.StartError
		if errors.As(runErr, &se) {
			return Outcome{CallID: callID}, wrapError(ErrorLaunch, "start interpreter", runErr)
		}
		return Outcome{CallID: callID}, wrapError(ErrorProcess, "wait for interpreter", runErr)
	}

	out = Outcome{
		CallID:          callID,
		Stdout:          res.Stdout,
		Stderr:          res.Stderr,
		StdoutTruncated: res.StdoutTruncated,
		StderrTruncated: res.StderrTruncated,
		ExitCode:        res.ExitCode,
		Duration:        res.Duration,
	}
	if res.ExitCode != 0 && !opts.NoCheck {
		msg := fmt.Sprintf("%s exited with status %d", argv[0], res.ExitCode)
		if line := firstLine(res.Stderr); line != "" {
			msg += ": " + line
		}
		e := newError(ErrorProcess, msg)
		e.ExitCode, e.Stdout, e.Stderr = res.ExitCode, res.Stdout, res.Stderr
		return out, e
	}

	raw, ok, err := ws.ReadOutput()
	if err != nil {
		return out, wrapError(ErrorWorkspace, "read result", err)
	}
	if !ok {
		return out, nil
	}
	v, err := codec.Decode(raw)
	if err != nil {
		e := wrapError(ErrorDecode, "decode result", err)
		e.ExitCode, e.Stdout, e.Stderr = res.ExitCode, res.Stdout, res.Stderr
		return out, e
	}
	out.HasValue = true
	out.Value = v
	out.Raw = json.RawMessage(raw)
	return out, nil
}

func validateRequest(req Request) error {
	if strings.TrimSpace(req.SourceFile) == "" {
		return newError(ErrorUsage, "missing source file")
	}
	if strings.TrimSpace(req.Function) == "" {
		return newError(ErrorUsage, "missing function name")
	}
	return nil
}

func isAbsent(args any) bool {
	if args == nil {
		return true
	}
	rv := reflect.ValueOf(args)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

// encodeArgs checks that args is a sequence or a mapping before encoding;
// bridge.R would otherwise turn a bare scalar into one positional argument.
func encodeArgs(args any) ([]byte, error) {
	if raw, ok := args.(json.RawMessage); ok {
		trimmed := strings.TrimSpace(string(raw))
		if !strings.HasPrefix(trimmed, "[") && !strings.HasPrefix(trimmed, "{") {
			return nil, newError(ErrorUsage, "raw arguments must be a JSON array or object")
		}
	} else {
		rv := reflect.Indirect(reflect.ValueOf(args))
		switch rv.Kind() {
		case reflect.Slice, reflect.Array, reflect.Map, reflect.Struct:
		default:
			return nil, newError(ErrorUsage, fmt.Sprintf("arguments must be a slice (positional) or a string-keyed map (named), got %T", args))
		}
	}
	b, err := codec.Encode(args)
	if err != nil {
		return nil, wrapError(ErrorEncode, "encode arguments", err)
	}
	return b, nil
}

func interruptedError(ctxErr error, res procexec.Result) *Error {
	kind, msg := ErrorCanceled, "call canceled"
	if errors.Is(ctxErr, context.DeadlineExceeded) {
		kind, msg = ErrorTimeout, "call timed out"
	}
	e := newError(kind, msg)
	e.Underlying = ctxErr
	e.ExitCode, e.Stdout, e.Stderr = res.ExitCode, res.Stdout, res.Stderr
	return e
}

func outcomeLabel(out Outcome, err error) string {
	if err != nil {
		if e, ok := AsError(err); ok {
			return string(e.Kind)
		}
		return "error"
	}
	if out.HasValue {
		return "value"
	}
	return "stdout"
}
