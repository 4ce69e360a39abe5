package rfunctions

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/marcohefti/rfunctions/internal/bridgetest"
	"github.com/marcohefti/rfunctions/internal/codes"
)

func requireEmptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries, "call workspaces must be removed")
}

func TestRun_NamedArguments(t *testing.T) {
	source, scratch := setupHelper(t)
	e := newHelperEngine(scratch)

	out, err := e.Run(context.Background(), Request{
		SourceFile: source,
		Function:   "add",
		Args:       map[string]any{"a": 2, "b": 3},
	})
	require.NoError(t, err)
	require.True(t, out.HasValue)
	require.Equal(t, float64(5), out.Value)
	require.Equal(t, 0, out.ExitCode)
	require.NotEmpty(t, out.CallID)
	requireEmptyDir(t, scratch)
}

func TestRun_PositionalSequenceArgument(t *testing.T) {
	source, scratch := setupHelper(t)
	e := newHelperEngine(scratch)

	out, err := e.Run(context.Background(), Request{
		SourceFile: source,
		Function:   "reverse",
		Args:       []any{[]string{"a", "b", "c"}},
	})
	require.NoError(t, err)
	require.Equal(t, []any{"c", "b", "a"}, out.Value)

	var typed []string
	require.NoError(t, out.Decode(&typed))
	require.Equal(t, []string{"c", "b", "a"}, typed)
}

func TestRun_AbsentArgumentsWriteNoArgumentFile(t *testing.T) {
	source, scratch := setupHelper(t)
	e := newHelperEngine(scratch)

	out, err := e.Run(context.Background(), Request{SourceFile: source, Function: "echo_args"})
	require.NoError(t, err)
	require.Equal(t, false, out.Value.(map[string]any)["hasInput"])

	var nilSlice []any
	out, err = e.Run(context.Background(), Request{SourceFile: source, Function: "echo_args", Args: nilSlice})
	require.NoError(t, err)
	require.Equal(t, false, out.Value.(map[string]any)["hasInput"])

	out, err = e.Run(context.Background(), Request{SourceFile: source, Function: "echo_args", Args: []any{}})
	require.NoError(t, err)
	got := out.Value.(map[string]any)
	require.Equal(t, true, got["hasInput"])
	require.Equal(t, []any{}, got["positional"])

	out, err = e.Run(context.Background(), Request{SourceFile: source, Function: "hello"})
	require.NoError(t, err)
	require.Equal(t, "hello", out.Value)
}

func TestRun_NullResultIsAValue(t *testing.T) {
	source, scratch := setupHelper(t)
	out, err := newHelperEngine(scratch).Run(context.Background(), Request{SourceFile: source, Function: "nothing"})
	require.NoError(t, err)
	require.True(t, out.HasValue)
	require.Nil(t, out.Value)
	require.Equal(t, "null", string(out.Raw))
}

func TestRun_FallsBackToStdoutWithoutResultFile(t *testing.T) {
	source, scratch := setupHelper(t)
	out, err := newHelperEngine(scratch).Run(context.Background(), Request{SourceFile: source, Function: "print_only"})
	require.NoError(t, err)
	require.False(t, out.HasValue)
	require.Equal(t, "[1] \"printed\"\n", string(out.Stdout))
	require.Equal(t, "[1] \"printed\"\n", out.Result())

	var dst any
	require.True(t, IsKind(out.Decode(&dst), ErrorDecode))
}

func TestRun_InterpreterFailureIsProcessError(t *testing.T) {
	source, scratch := setupHelper(t)
	_, err := newHelperEngine(scratch).Run(context.Background(), Request{SourceFile: source, Function: "throw_exception"})

	e, ok := AsError(err)
	require.True(t, ok, "expected *Error, got %v", err)
	require.Equal(t, ErrorProcess, e.Kind)
	require.Equal(t, codes.Process, e.Code)
	require.Equal(t, 1, e.ExitCode)
	require.Contains(t, string(e.Stderr), "Error in throw_exception() : boom")
	require.Equal(t, "about to fail\n", string(e.Stdout))
	require.Contains(t, e.Error(), "boom")
	require.NotEmpty(t, e.CallID)
	requireEmptyDir(t, scratch)
}

func TestRun_MissingFunctionAndMissingSourceAreProcessErrors(t *testing.T) {
	source, scratch := setupHelper(t)
	e := newHelperEngine(scratch)

	_, err := e.Run(context.Background(), Request{SourceFile: source, Function: "no_such_function"})
	require.True(t, IsKind(err, ErrorProcess), "got %v", err)

	_, err = e.Run(context.Background(), Request{SourceFile: filepath.Join(t.TempDir(), "missing.R"), Function: "add"})
	require.True(t, IsKind(err, ErrorProcess), "got %v", err)
	requireEmptyDir(t, scratch)
}

func TestRun_NoCheckKeepsNonZeroExit(t *testing.T) {
	source, scratch := setupHelper(t)
	out, err := newHelperEngine(scratch).Run(context.Background(), Request{
		SourceFile: source,
		Function:   "throw_exception",
		Process:    ProcessOptions{NoCheck: true},
	})
	require.NoError(t, err)
	require.Equal(t, 1, out.ExitCode)
	require.False(t, out.HasValue)
	require.Contains(t, string(out.Stderr), "boom")
}

func TestRun_MalformedResultIsDecodeError(t *testing.T) {
	source, scratch := setupHelper(t)
	_, err := newHelperEngine(scratch).Run(context.Background(), Request{SourceFile: source, Function: "bad_json"})
	e, ok := AsError(err)
	require.True(t, ok, "expected *Error, got %v", err)
	require.Equal(t, ErrorDecode, e.Kind)
	require.Equal(t, 0, e.ExitCode)
	requireEmptyDir(t, scratch)
}

func TestRun_MissingInterpreterIsLaunchError(t *testing.T) {
	source, scratch := setupHelper(t)
	e := New(Options{Defaults: ProcessOptions{Interpreter: []string{"rfn-no-such-rscript"}, TempDir: scratch}})

	_, err := e.Run(context.Background(), Request{SourceFile: source, Function: "add", Args: []any{1, 2}})
	require.True(t, IsKind(err, ErrorLaunch), "got %v", err)
	requireEmptyDir(t, scratch)
}

func TestRun_ArgumentsOutsideValueModelFailBeforeLaunch(t *testing.T) {
	source, scratch := setupHelper(t)
	e := newHelperEngine(scratch)

	_, err := e.Run(context.Background(), Request{SourceFile: source, Function: "identity", Args: []any{func() {}}})
	require.True(t, IsKind(err, ErrorEncode), "got %v", err)

	_, err = e.Run(context.Background(), Request{SourceFile: source, Function: "identity", Args: []any{math.NaN()}})
	require.True(t, IsKind(err, ErrorEncode), "got %v", err)

	_, err = e.Run(context.Background(), Request{SourceFile: source, Function: "identity", Args: 5})
	require.True(t, IsKind(err, ErrorUsage), "got %v", err)

	_, err = e.Run(context.Background(), Request{SourceFile: "", Function: "identity"})
	require.True(t, IsKind(err, ErrorUsage), "got %v", err)

	_, err = e.Run(context.Background(), Request{SourceFile: source, Function: " "})
	require.True(t, IsKind(err, ErrorUsage), "got %v", err)

	requireEmptyDir(t, scratch)
}

func TestRun_RawJSONArguments(t *testing.T) {
	source, scratch := setupHelper(t)
	e := newHelperEngine(scratch)

	out, err := e.Run(context.Background(), Request{SourceFile: source, Function: "add", Args: json.RawMessage(`{"a": 1.5, "b": 2}`)})
	require.NoError(t, err)
	require.Equal(t, 3.5, out.Value)

	_, err = e.Run(context.Background(), Request{SourceFile: source, Function: "add", Args: json.RawMessage(`7`)})
	require.True(t, IsKind(err, ErrorUsage), "got %v", err)
}

func TestRun_TimeoutKillsInterpreter(t *testing.T) {
	source, scratch := setupHelper(t)
	start := time.Now()
	_, err := newHelperEngine(scratch).Run(context.Background(), Request{
		SourceFile: source,
		Function:   "sleep",
		Process:    ProcessOptions{Timeout: time.Second},
	})
	e, ok := AsError(err)
	require.True(t, ok, "expected *Error, got %v", err)
	require.Equal(t, ErrorTimeout, e.Kind)
	require.True(t, errors.Is(err, context.DeadlineExceeded))
	require.Equal(t, "sleeping\n", string(e.Stdout))
	require.Less(t, time.Since(start), 15*time.Second)
	requireEmptyDir(t, scratch)
}

func TestRun_CanceledContext(t *testing.T) {
	source, scratch := setupHelper(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newHelperEngine(scratch).Run(ctx, Request{SourceFile: source, Function: "hello"})
	require.True(t, IsKind(err, ErrorCanceled), "got %v", err)
	require.True(t, errors.Is(err, context.Canceled))
	requireEmptyDir(t, scratch)
}

func TestRun_ProcessOptionsDirEnvAndTee(t *testing.T) {
	source, scratch := setupHelper(t)
	e := newHelperEngine(scratch)

	out, err := e.Run(context.Background(), Request{
		SourceFile: source,
		Function:   "getenv",
		Args:       map[string]any{"name": "R_RFN_PROBE"},
		Process:    ProcessOptions{Env: map[string]string{"R_RFN_PROBE": "42"}},
	})
	require.NoError(t, err)
	require.Equal(t, "42", out.Value)

	workDir := t.TempDir()
	var tee strings.Builder
	out, err = e.Run(context.Background(), Request{
		SourceFile: source,
		Function:   "cwd",
		Process:    ProcessOptions{Dir: workDir, Stdout: &tee},
	})
	require.NoError(t, err)
	gotInfo, err := os.Stat(out.Value.(string))
	require.NoError(t, err)
	wantInfo, err := os.Stat(workDir)
	require.NoError(t, err)
	require.True(t, os.SameFile(gotInfo, wantInfo))

	_, err = e.Run(context.Background(), Request{SourceFile: source, Function: "print_only", Process: ProcessOptions{Stdout: &tee}})
	require.NoError(t, err)
	require.Equal(t, "[1] \"printed\"\n", tee.String())
}

func TestRun_EnvPolicyFiltersInheritedEnvironment(t *testing.T) {
	source, scratch := setupHelper(t)
	t.Setenv("OPENAI_API_KEY", "sk-should-not-pass")
	t.Setenv("R_RFN_INHERITED", "kept")

	policy := DefaultEnvPolicy()
	policy.AllowedExact[bridgetest.EnvVar] = true
	e := newHelperEngine(scratch)
	getenv := func(name string, p ProcessOptions) (any, error) {
		out, err := e.Run(context.Background(), Request{
			SourceFile: source,
			Function:   "getenv",
			Args:       map[string]any{"name": name},
			Process:    p,
		})
		return out.Value, err
	}

	v, err := getenv("OPENAI_API_KEY", ProcessOptions{})
	require.NoError(t, err)
	require.Equal(t, "sk-should-not-pass", v, "no policy means the environment is inherited as is")

	v, err = getenv("OPENAI_API_KEY", ProcessOptions{EnvPolicy: &policy})
	require.NoError(t, err)
	require.Equal(t, "", v)

	v, err = getenv("R_RFN_INHERITED", ProcessOptions{EnvPolicy: &policy})
	require.NoError(t, err)
	require.Equal(t, "kept", v)

	_, err = getenv("OPENAI_API_KEY", ProcessOptions{EnvPolicy: &policy, Env: map[string]string{"OPENAI_API_KEY": "x"}})
	require.True(t, IsKind(err, ErrorUsage), "got %v", err)
}

func TestRun_IsolatedEnvironmentKeepsOnlyOverlay(t *testing.T) {
	source, scratch := setupHelper(t)
	t.Setenv("R_RFN_INHERITED", "parent")

	out, err := newHelperEngine(scratch).Run(context.Background(), Request{
		SourceFile: source,
		Function:   "echo_args",
		Process: ProcessOptions{
			IsolateEnv: true,
			Env:        map[string]string{bridgetest.EnvVar: "1"},
		},
	})
	require.NoError(t, err)
	require.Equal(t, false, out.Value.(map[string]any)["hasInput"])

	out, err = newHelperEngine(scratch).Run(context.Background(), Request{
		SourceFile: source,
		Function:   "getenv",
		Args:       map[string]any{"name": "R_RFN_INHERITED"},
		Process: ProcessOptions{
			IsolateEnv: true,
			Env:        map[string]string{bridgetest.EnvVar: "1"},
		},
	})
	require.NoError(t, err)
	require.Equal(t, "", out.Value)
}

func TestRun_WorkspaceIsPrivateAndNamedAfterCall(t *testing.T) {
	source, scratch := setupHelper(t)
	out, err := newHelperEngine(scratch).Run(context.Background(), Request{SourceFile: source, Function: "workspace"})
	require.NoError(t, err)

	dir := out.Value.(string)
	require.Equal(t, "rfn-"+out.CallID, filepath.Base(dir))
	_, statErr := os.Stat(dir)
	require.True(t, os.IsNotExist(statErr), "workspace should be gone after the call")
}

func TestBridgeScript_ProtocolShape(t *testing.T) {
	s := BridgeScript()
	for _, want := range []string{
		"commandArgs(trailingOnly = TRUE)",
		"length(args) != 4",
		"source(source_file)",
		"file.exists(arguments_file)",
		"jsonlite::read_json(arguments_file)",
		"do.call(function_name, function_arguments)",
		"auto_unbox = TRUE",
		`null = "null"`,
		`na = "null"`,
		"conditionMessage(e)",
	} {
		require.Contains(t, s, want)
	}
	require.Equal(t, []string{"s.R", "src.R", "fn", "in.json", "out.json"}, BridgeArgs("s.R", "src.R", "fn", "in.json", "out.json"))
}

func TestRun_LogsOutcomeWithCallID(t *testing.T) {
	source, scratch := setupHelper(t)
	var buf bytes.Buffer
	e := New(Options{
		Defaults: ProcessOptions{
			Interpreter: bridgetest.Interpreter("TestBridgeHelperProcess"),
			TempDir:     scratch,
		},
		Logger: slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})),
	})

	out, err := e.Run(context.Background(), Request{SourceFile: source, Function: "add", Args: []any{1, 2}})
	require.NoError(t, err)

	logs := buf.String()
	require.Contains(t, logs, "r call finished")
	require.Contains(t, logs, "call_id="+out.CallID)
	require.Contains(t, logs, "function=add")
	require.Contains(t, logs, "convention=blocking")
}
