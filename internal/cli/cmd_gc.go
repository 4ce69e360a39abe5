package cli

import (
	"flag"
	"fmt"
	"io"

	"github.com/marcohefti/rfunctions/internal/codes"
	"github.com/marcohefti/rfunctions/internal/config"
	"github.com/marcohefti/rfunctions/internal/gc"
)

func (r Runner) runGC(args []string) int {
	fs := flag.NewFlagSet("gc", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	tempDir := fs.String("tmpdir", "", "parent directory of call workspaces (default from config/env)")
	maxAge := fs.Duration("max-age", gc.DefaultMaxAge, "only remove workspaces older than this")
	dryRun := fs.Bool("dry-run", false, "report without deleting")
	jsonOut := fs.Bool("json", false, "print JSON output")
	help := fs.Bool("help", false, "show help")

	if err := fs.Parse(args); err != nil {
		return r.failUsage("gc: invalid flags")
	}
	if *help {
		printGCHelp(r.Stdout)
		return 0
	}
	if *maxAge <= 0 {
		return r.failUsage("gc: --max-age must be positive")
	}

	m, err := config.LoadMerged(config.Flags{TempDir: *tempDir})
	if err != nil {
		return r.fail(codes.Config, err.Error())
	}
	res, err := gc.Run(gc.Opts{TempDir: m.TempDir, MaxAge: *maxAge, DryRun: *dryRun})
	if err != nil {
		return r.fail(codes.IO, err.Error())
	}
	if *jsonOut {
		return r.writeJSON(res)
	}
	fmt.Fprintf(r.Stdout, "gc: OK deleted=%d kept=%d dryRun=%t\n", len(res.Deleted), len(res.Kept), res.DryRun)
	return 0
}

func printGCHelp(w io.Writer) {
	fmt.Fprint(w, `Usage:
  rfn gc [--tmpdir <dir>] [--max-age 1h] [--dry-run] [--json]

Removes rfn-* call workspaces whose owning process is gone.
`)
}
