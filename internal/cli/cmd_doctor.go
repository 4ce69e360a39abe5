package cli

import (
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/marcohefti/rfunctions/internal/codes"
	"github.com/marcohefti/rfunctions/internal/config"
	"github.com/marcohefti/rfunctions/internal/doctor"
)

func (r Runner) runDoctor(args []string) int {
	fs := flag.NewFlagSet("doctor", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	rscript := fs.String("rscript", "", "interpreter command (default from config/env, else Rscript)")
	tempDir := fs.String("tmpdir", "", "parent directory for call workspaces")
	jsonOut := fs.Bool("json", false, "print JSON output")
	help := fs.Bool("help", false, "show help")

	if err := fs.Parse(args); err != nil {
		return r.failUsage("doctor: invalid flags")
	}
	if *help {
		printDoctorHelp(r.Stdout)
		return 0
	}

	m, err := config.LoadMerged(config.Flags{Rscript: *rscript, TempDir: *tempDir})
	if err != nil {
		return r.fail(codes.Config, err.Error())
	}
	ctx, cancel := r.context()
	defer cancel()
	res := doctor.Run(ctx, m)

	exit := 0
	if !res.OK {
		exit = 1
	}
	if *jsonOut {
		if code := r.writeJSON(res); code != 0 {
			return code
		}
		return exit
	}
	fmt.Fprintf(r.Stdout, "rscript: %s (%s)\n", strings.Join(m.Rscript, " "), m.RscriptSource)
	fmt.Fprintf(r.Stdout, "tmpdir: %s (%s)\n", m.TempDir, m.TempDirSource)
	for _, c := range res.Checks {
		status := "OK"
		if !c.OK {
			status = "FAIL"
		}
		if c.Message != "" {
			fmt.Fprintf(r.Stdout, "%s %s: %s\n", status, c.ID, c.Message)
		} else {
			fmt.Fprintf(r.Stdout, "%s %s\n", status, c.ID)
		}
	}
	return exit
}

func printDoctorHelp(w io.Writer) {
	fmt.Fprint(w, `Usage:
  rfn doctor [--rscript <cmd>] [--tmpdir <dir>] [--json]
`)
}
