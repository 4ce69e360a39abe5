package cli

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/marcohefti/rfunctions"
	"github.com/marcohefti/rfunctions/internal/batch"
	"github.com/marcohefti/rfunctions/internal/codes"
	"github.com/marcohefti/rfunctions/internal/metrics"
	"github.com/marcohefti/rfunctions/internal/store"
)

type batchReport struct {
	OK      bool           `json:"ok"`
	Total   int            `json:"total"`
	Failed  int            `json:"failed"`
	Results []batch.Result `json:"results"`
}

func (r Runner) runBatch(args []string) int {
	fs := flag.NewFlagSet("batch", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var ef engineFlags
	ef.register(fs)
	file := fs.String("file", "", "calls file (.yaml, .yml or .json; required)")
	concurrency := fs.Int("concurrency", 4, "maximum interpreters running at once")
	out := fs.String("out", "", "also write the JSON report to this file")
	metricsOut := fs.Bool("metrics", false, "print invocation metrics (Prometheus text format) to stderr")
	jsonOut := fs.Bool("json", false, "print JSON output")
	help := fs.Bool("help", false, "show help")

	if err := fs.Parse(args); err != nil {
		return r.failUsage("batch: invalid flags: " + err.Error())
	}
	if *help {
		printBatchHelp(r.Stdout)
		return 0
	}
	if strings.TrimSpace(*file) == "" {
		printBatchHelp(r.Stderr)
		return r.failUsage("batch: require --file")
	}
	if *concurrency < 1 {
		return r.failUsage("batch: --concurrency must be >= 1")
	}

	calls, err := batch.Load(*file)
	if err != nil {
		if os.IsNotExist(err) {
			return r.fail(codes.IO, err.Error())
		}
		return r.failUsage("batch: " + err.Error())
	}
	_, proc, scrub, err := ef.resolve()
	if err != nil {
		return r.fail(codes.Config, err.Error())
	}

	ctx, cancel := r.context()
	defer cancel()
	e := rfunctions.New(rfunctions.Options{Logger: r.logger()})
	results := batch.Run(ctx, e, calls, batch.Options{
		Concurrency: *concurrency,
		Process:     proc,
		Redact:      scrub,
	})

	rep := batchReport{
		Total:   len(results),
		Failed:  batch.Failed(results),
		Results: results,
	}
	rep.OK = rep.Failed == 0

	if *out != "" {
		if err := store.WriteJSONAtomic(*out, rep); err != nil {
			return r.fail(codes.IO, err.Error())
		}
	}
	if *metricsOut {
		if err := metrics.WritePrometheus(r.Stderr); err != nil {
			return r.fail(codes.IO, err.Error())
		}
	}

	exit := 0
	if !rep.OK {
		exit = 1
	}
	if *jsonOut {
		if code := r.writeJSON(rep); code != 0 {
			return code
		}
		return exit
	}
	for _, res := range results {
		if res.OK {
			fmt.Fprintf(r.Stdout, "%s: OK callId=%s exitCode=%d durationMs=%d\n", res.ID, res.CallID, res.ExitCode, res.DurationMs)
			continue
		}
		fmt.Fprintf(r.Stdout, "%s: FAIL %s %s\n", res.ID, res.Error.Code, res.Error.Message)
	}
	fmt.Fprintf(r.Stdout, "batch: total=%d failed=%d\n", rep.Total, rep.Failed)
	return exit
}

func printBatchHelp(w io.Writer) {
	fmt.Fprint(w, `Usage:
  rfn batch --file <calls.yaml|calls.json> [--concurrency 4] [--out <file>] [--metrics]
            [--rscript <cmd>] [--tmpdir <dir>] [--timeout <d>] [--env KEY=VALUE]... [--json]

Calls file:
  schemaVersion: 1
  calls:
    - id: total
      source: stats.R
      function: add
      args: {a: 1, b: 2}
`)
}
