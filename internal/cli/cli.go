package cli

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/marcohefti/rfunctions/internal/codes"
	"github.com/marcohefti/rfunctions/internal/contract"
)

type Runner struct {
	Version string
	Stdout  io.Writer
	Stderr  io.Writer

	// Context, when set, replaces the signal-bound context used for calls.
	Context context.Context
}

func (r Runner) Run(args []string) int {
	if r.Stdout == nil {
		r.Stdout = os.Stdout
	}
	if r.Stderr == nil {
		r.Stderr = os.Stderr
	}

	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		printRootHelp(r.Stdout)
		return 0
	}

	switch args[0] {
	case "call":
		return r.runCall(args[1:])
	case "batch":
		return r.runBatch(args[1:])
	case "doctor":
		return r.runDoctor(args[1:])
	case "contract":
		return r.runContract(args[1:])
	case "init":
		return r.runInit(args[1:])
	case "gc":
		return r.runGC(args[1:])
	case "version":
		fmt.Fprintf(r.Stdout, "%s\n", r.Version)
		return 0
	default:
		fmt.Fprintf(r.Stderr, "%s: unknown command %q\n", codes.Usage, args[0])
		printRootHelp(r.Stderr)
		return 2
	}
}

// context returns the context calls run under; SIGINT and SIGTERM cancel it
// so interpreters are killed instead of orphaned.
func (r Runner) context() (context.Context, context.CancelFunc) {
	if r.Context != nil {
		return context.WithCancel(r.Context)
	}
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func (r Runner) logger() *slog.Logger {
	return newLogger(r.Stderr, os.Getenv(logLevelEnv))
}

func (r Runner) runContract(args []string) int {
	fs := flag.NewFlagSet("contract", flag.ContinueOnError)
	fs.SetOutput(io.Discard) // avoid flag package writing to stderr

	jsonOut := fs.Bool("json", false, "print JSON output")
	help := fs.Bool("help", false, "show help")

	if err := fs.Parse(args); err != nil {
		return r.failUsage("contract: invalid flags")
	}
	if *help {
		printContractHelp(r.Stdout)
		return 0
	}
	if !*jsonOut {
		printContractHelp(r.Stderr)
		return r.failUsage("contract: require --json for stable output")
	}
	return r.writeJSON(contract.Build(r.Version))
}

func (r Runner) writeJSON(v any) int {
	enc := json.NewEncoder(r.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(r.Stderr, "%s: failed to encode json\n", codes.IO)
		return 1
	}
	return 0
}

func (r Runner) failUsage(msg string) int {
	fmt.Fprintf(r.Stderr, "%s: %s\n", codes.Usage, msg)
	return 2
}

func (r Runner) fail(code string, msg string) int {
	fmt.Fprintf(r.Stderr, "%s: %s\n", code, msg)
	if code == codes.Usage {
		return 2
	}
	return 1
}

func printRootHelp(w io.Writer) {
	fmt.Fprint(w, `rfn calls functions defined in R source files.

Usage:
  rfn call --source <file.R> --function <name> [--args <json>] [--json]
  rfn batch --file <calls.yaml> [--concurrency N] [--json]
  rfn doctor [--json]
  rfn contract --json
  rfn init [--rscript <cmd>]
  rfn gc [--dry-run]

Commands:
  call       Call one R function and print its result.
  batch      Run a calls file concurrently; results keep input order.
  doctor     Check the interpreter, jsonlite and the scratch directory.
  contract   Print the rfn surface contract (use --json).
  init       Write a project config (rfn.config.yaml).
  gc         Remove call workspaces left behind by crashed processes.
  version    Print version.

Environment:
  RFN_RSCRIPT, RFN_TMPDIR, RFN_TIMEOUT, RFN_LOG_LEVEL
`)
}

func printContractHelp(w io.Writer) {
	fmt.Fprint(w, `Usage:
  rfn contract --json
`)
}
