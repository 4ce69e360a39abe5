package cli

import (
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/marcohefti/rfunctions/internal/codes"
	"github.com/marcohefti/rfunctions/internal/config"
)

func (r Runner) runInit(args []string) int {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	configPath := fs.String("config", config.DefaultProjectConfigPath, "project config path (.yaml or .json)")
	rscript := fs.String("rscript", "Rscript", "interpreter command to pin")
	jsonOut := fs.Bool("json", false, "print JSON output")
	help := fs.Bool("help", false, "show help")

	if err := fs.Parse(args); err != nil {
		return r.failUsage("init: invalid flags")
	}
	if *help {
		printInitHelp(r.Stdout)
		return 0
	}
	fields := strings.Fields(*rscript)
	if len(fields) == 0 {
		return r.failUsage("init: --rscript is empty")
	}

	res, err := config.InitProject(*configPath, fields)
	if err != nil {
		return r.fail(codes.Config, err.Error())
	}
	if *jsonOut {
		return r.writeJSON(res)
	}
	fmt.Fprintf(r.Stdout, "init: OK config=%s created=%t\n", res.ConfigPath, res.Created)
	return 0
}

func printInitHelp(w io.Writer) {
	fmt.Fprint(w, `Usage:
  rfn init [--config rfn.config.yaml] [--rscript Rscript] [--json]
`)
}
