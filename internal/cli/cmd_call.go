package cli

import (
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/marcohefti/rfunctions"
	"github.com/marcohefti/rfunctions/internal/codec"
	"github.com/marcohefti/rfunctions/internal/codes"
	"github.com/marcohefti/rfunctions/internal/redact"
	"github.com/marcohefti/rfunctions/internal/store"
)

type callResult struct {
	OK              bool   `json:"ok"`
	CallID          string `json:"callId"`
	Source          string `json:"source"`
	Function        string `json:"function"`
	HasValue        bool   `json:"hasValue"`
	Value           any    `json:"value,omitempty"`
	Stdout          string `json:"stdout,omitempty"`
	Stderr          string `json:"stderr,omitempty"`
	StdoutTruncated bool   `json:"stdoutTruncated,omitempty"`
	ExitCode        int    `json:"exitCode"`
	DurationMs      int64  `json:"durationMs"`
}

func (r Runner) runCall(args []string) int {
	fs := flag.NewFlagSet("call", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var ef engineFlags
	ef.register(fs)
	source := fs.String("source", "", "R source file (required)")
	function := fs.String("function", "", "function name (required)")
	argsJSON := fs.String("args", "", "arguments as a JSON array (positional) or object (named)")
	argsFile := fs.String("args-file", "", "arguments from a .json or .yaml file")
	noCheck := fs.Bool("no-check", false, "accept a non-zero interpreter exit")
	maxCapture := fs.Int("max-capture-bytes", 0, "cap each captured stream (0 = unbounded)")
	out := fs.String("out", "", "also write the JSON result to this file")
	jsonOut := fs.Bool("json", false, "print JSON output")
	help := fs.Bool("help", false, "show help")

	if err := fs.Parse(args); err != nil {
		return r.failUsage("call: invalid flags: " + err.Error())
	}
	if *help {
		printCallHelp(r.Stdout)
		return 0
	}
	if strings.TrimSpace(*source) == "" || strings.TrimSpace(*function) == "" {
		printCallHelp(r.Stderr)
		return r.failUsage("call: require --source and --function")
	}
	if *argsJSON != "" && *argsFile != "" {
		return r.failUsage("call: --args and --args-file are mutually exclusive")
	}

	var callArgs any
	var err error
	if *argsFile != "" {
		callArgs, err = codec.LoadArgsFile(*argsFile)
	} else {
		callArgs, err = codec.ParseArgs(*argsJSON)
	}
	if err != nil {
		if _, ok := codec.AsError(err); ok {
			return r.failUsage("call: " + err.Error())
		}
		return r.fail(codes.IO, err.Error())
	}

	_, proc, scrub, err := ef.resolve()
	if err != nil {
		return r.fail(codes.Config, err.Error())
	}
	proc.NoCheck = *noCheck
	proc.MaxCaptureBytes = *maxCapture

	ctx, cancel := r.context()
	defer cancel()
	e := rfunctions.New(rfunctions.Options{Logger: r.logger()})
	o, err := e.Run(ctx, rfunctions.Request{
		SourceFile: *source,
		Function:   *function,
		Args:       callArgs,
		Process:    proc,
	})
	if err != nil {
		return r.failCall(err, scrub)
	}

	res := callResult{
		OK:              true,
		CallID:          o.CallID,
		Source:          *source,
		Function:        *function,
		HasValue:        o.HasValue,
		Value:           o.Value,
		Stdout:          string(o.Stdout),
		Stderr:          scrub.Bytes(o.Stderr),
		StdoutTruncated: o.StdoutTruncated,
		ExitCode:        o.ExitCode,
		DurationMs:      o.Duration.Milliseconds(),
	}
	if *out != "" {
		if err := store.WriteJSONAtomic(*out, res); err != nil {
			return r.fail(codes.IO, err.Error())
		}
	}
	if *jsonOut {
		return r.writeJSON(res)
	}
	if !o.HasValue {
		fmt.Fprint(r.Stdout, string(o.Stdout))
		return 0
	}
	b, err := store.IndentedJSON(o.Value)
	if err != nil {
		return r.fail(codes.IO, err.Error())
	}
	_, _ = r.Stdout.Write(b)
	return 0
}

// failCall prints CODE: message and the interpreter's stderr, scrubbed.
func (r Runner) failCall(err error, scrub *redact.Set) int {
	e, ok := rfunctions.AsError(err)
	if !ok {
		return r.fail(codes.Process, err.Error())
	}
	fmt.Fprintf(r.Stderr, "%s: %s\n", e.Code, scrub.Bytes([]byte(e.Message)))
	if len(e.Stderr) > 0 {
		stderr := scrub.Bytes(e.Stderr)
		fmt.Fprint(r.Stderr, stderr)
		if !strings.HasSuffix(stderr, "\n") {
			fmt.Fprintln(r.Stderr)
		}
	}
	if e.Kind == rfunctions.ErrorUsage {
		return 2
	}
	return 1
}

func printCallHelp(w io.Writer) {
	fmt.Fprint(w, `Usage:
  rfn call --source <file.R> --function <name> [--args <json>|--args-file <file>]
           [--rscript <cmd>] [--tmpdir <dir>] [--timeout <d>] [--dir <dir>]
           [--env KEY=VALUE]... [--isolate-env] [--env-policy] [--no-check]
           [--max-capture-bytes N] [--out <file>] [--json]

Arguments are positional for a JSON array and named for a JSON object.
Without --json the result is printed as JSON, or the function's printed
output when it returned nothing jsonlite could encode.
`)
}
