// Package bridgetest lets tests run calls without R: the test binary
// re-executes itself as the interpreter and Main answers in bridge.R's place.
//
// Functions understood by Main: add (a+b, positional or named), reverse,
// identity, hello, rfn_probe, nothing (NULL), echo_args, getenv (named
// "name"), cwd, workspace, print_only (prints, writes no result), bad_json,
// sleep (30s), throw_exception (R-style error, exit 1). Anything else fails the way R's
// do.call does for a missing function.
package bridgetest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// EnvVar gates the helper test so it is a no-op in normal test runs.
const EnvVar = "GO_WANT_BRIDGE_HELPER"

// Interpreter is the argv prefix that re-runs the current test binary as
// the fake interpreter; testName must call MaybeRun.
func Interpreter(testName string) []string {
	return []string{os.Args[0], "-test.run=^" + testName + "$", "--"}
}

// MaybeRun exits the process with Main's status when the helper env var is
// set. Call it first thing in the named helper test.
func MaybeRun() {
	if os.Getenv(EnvVar) != "1" {
		return
	}
	args := os.Args
	idx := len(args)
	for i := range args {
		if args[i] == "--" {
			idx = i + 1
			break
		}
	}
	os.Exit(Main(args[idx:]))
}

// Main plays bridge.R's side of the protocol for the functions listed in
// the package doc. args are the four bridge arguments preceded by the script
// path; the return value is the exit status.
func Main(args []string) int {
	if len(args) != 5 {
		fmt.Fprintln(os.Stderr, "usage: bridge.R <source_file> <function_name> <arguments_file> <output_file>")
		return 2
	}
	script, source, fn, inputPath, outputPath := args[0], args[1], args[2], args[3], args[4]

	if b, err := os.ReadFile(script); err != nil || !bytes.Contains(b, []byte("do.call(function_name, function_arguments)")) {
		fmt.Fprintln(os.Stderr, "bridge script missing or unexpected")
		return 3
	}
	if _, err := os.Stat(source); err != nil {
		fmt.Fprint(os.Stderr, "Error in file(filename, \"r\", encoding = encoding) : cannot open the connection\nExecution halted\n")
		return 1
	}

	var positional []any
	var named map[string]any
	hasInput := false
	if raw, err := os.ReadFile(inputPath); err == nil {
		hasInput = true
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			fmt.Fprintf(os.Stderr, "Error: parse error: %v\nExecution halted\n", err)
			return 1
		}
		switch x := v.(type) {
		case []any:
			positional = x
		case map[string]any:
			named = x
		}
	}

	var result any
	switch fn {
	case "add":
		if named != nil {
			result = named["a"].(float64) + named["b"].(float64)
		} else {
			result = positional[0].(float64) + positional[1].(float64)
		}
	case "reverse":
		in := positional[0].([]any)
		out := make([]any, 0, len(in))
		for i := len(in) - 1; i >= 0; i-- {
			out = append(out, in[i])
		}
		result = out
	case "identity":
		result = positional[0]
	case "hello":
		result = "hello"
	case "rfn_probe":
		result = map[string]any{"r": "R version 4.4.1 (fake)", "jsonlite": "1.8.9"}
	case "nothing":
		result = nil
	case "echo_args":
		result = map[string]any{"hasInput": hasInput, "positional": positional, "named": named}
	case "getenv":
		result = os.Getenv(named["name"].(string))
	case "cwd":
		wd, _ := os.Getwd()
		result = wd
	case "workspace":
		result = filepath.Dir(outputPath)
	case "print_only":
		fmt.Fprint(os.Stdout, "[1] \"printed\"\n")
		return 0
	case "bad_json":
		_ = os.WriteFile(outputPath, []byte("{not json"), 0o600)
		return 0
	case "sleep":
		fmt.Fprintln(os.Stdout, "sleeping")
		time.Sleep(30 * time.Second)
		return 0
	case "throw_exception":
		fmt.Fprint(os.Stdout, "about to fail\n")
		fmt.Fprint(os.Stderr, "Error in throw_exception() : boom\nCalls: do.call -> <Anonymous>\nExecution halted\n")
		return 1
	default:
		fmt.Fprintf(os.Stderr, "Error in get(as.character(FUN), mode = \"function\", envir = envir) : \n  object '%s' of mode 'function' was not found\nCalls: do.call -> get\nExecution halted\n", fn)
		return 1
	}

	b, err := json.Marshal(result)
	if err != nil {
		return 0
	}
	if err := os.WriteFile(outputPath, b, 0o600); err != nil {
		fmt.Fprintf(os.Stderr, "write output: %v\n", err)
		return 1
	}
	return 0
}
