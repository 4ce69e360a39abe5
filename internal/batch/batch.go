package batch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/marcohefti/rfunctions"
	"github.com/marcohefti/rfunctions/internal/codec"
	"github.com/marcohefti/rfunctions/internal/codes"
	"github.com/marcohefti/rfunctions/internal/config"
	"github.com/marcohefti/rfunctions/internal/redact"
)

const SchemaV1 = 1

// FileV1 is a calls file:
//
//	schemaVersion: 1
//	calls:
//	  - id: mean
//	    source: stats.R
//	    function: weighted_mean
//	    args: {x: [1, 2, 3], w: [1, 1, 2]}
type FileV1 struct {
	SchemaVersion int    `json:"schemaVersion" yaml:"schemaVersion"`
	Calls         []Call `json:"calls" yaml:"calls"`
}

type Call struct {
	ID       string `json:"id,omitempty" yaml:"id,omitempty"`
	Source   string `json:"source" yaml:"source"`
	Function string `json:"function" yaml:"function"`
	Args     any    `json:"args,omitempty" yaml:"args,omitempty"`
	Timeout  string `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// Load reads a .yaml/.yml or .json calls file. Relative source paths are
// resolved against the file's directory and missing IDs default to call-N.
func Load(path string) ([]Call, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f FileV1
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(raw, &f); err != nil {
			return nil, fmt.Errorf("invalid calls yaml: %w", err)
		}
	default:
		if err := codec.DecodeInto(raw, &f); err != nil {
			return nil, fmt.Errorf("invalid calls json: %w", err)
		}
	}
	if f.SchemaVersion != SchemaV1 {
		return nil, fmt.Errorf("calls file unsupported schemaVersion=%d", f.SchemaVersion)
	}
	if len(f.Calls) == 0 {
		return nil, fmt.Errorf("calls file has no calls")
	}

	base := filepath.Dir(path)
	seen := map[string]bool{}
	for i := range f.Calls {
		c := &f.Calls[i]
		if strings.TrimSpace(c.ID) == "" {
			c.ID = fmt.Sprintf("call-%d", i+1)
		}
		if seen[c.ID] {
			return nil, fmt.Errorf("duplicate call id %q", c.ID)
		}
		seen[c.ID] = true
		if strings.TrimSpace(c.Source) == "" || strings.TrimSpace(c.Function) == "" {
			return nil, fmt.Errorf("call %q: source and function are required", c.ID)
		}
		if !filepath.IsAbs(c.Source) {
			c.Source = filepath.Join(base, c.Source)
		}
		if c.Args, err = codec.NormalizeYAML(c.Args); err != nil {
			return nil, fmt.Errorf("call %q: %w", c.ID, err)
		}
		if _, err := config.ParseTimeout(c.Timeout); err != nil {
			return nil, fmt.Errorf("call %q: %w", c.ID, err)
		}
	}
	return f.Calls, nil
}

type Options struct {
	// Concurrency caps simultaneous interpreters; <= 0 means 4.
	Concurrency int
	Process     rfunctions.ProcessOptions
	// Redact scrubs captured stderr in error entries; nil means the
	// built-in rules.
	Redact *redact.Set
}

type ErrorInfo struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	ExitCode int    `json:"exitCode,omitempty"`
	Stderr   string `json:"stderr,omitempty"`
}

// Result is one call's entry in the batch report, in input order.
type Result struct {
	ID         string     `json:"id"`
	CallID     string     `json:"callId,omitempty"`
	OK         bool       `json:"ok"`
	HasValue   bool       `json:"hasValue"`
	Value      any        `json:"value,omitempty"`
	Stdout     string     `json:"stdout,omitempty"`
	ExitCode   int        `json:"exitCode"`
	DurationMs int64      `json:"durationMs"`
	Error      *ErrorInfo `json:"error,omitempty"`
}

// Run starts every call through RunAsync, at most opts.Concurrency at a time.
// A failing call does not stop the others; its error is recorded in its Result.
func Run(ctx context.Context, e *rfunctions.Engine, calls []Call, opts Options) []Result {
	limit := opts.Concurrency
	if limit <= 0 {
		limit = 4
	}
	scrub := opts.Redact
	if scrub == nil {
		scrub = redact.Default
	}
	results := make([]Result, len(calls))

	var g errgroup.Group
	g.SetLimit(limit)
	for i, c := range calls {
		g.Go(func() error {
			proc := opts.Process
			if d, _ := config.ParseTimeout(c.Timeout); d > 0 {
				proc.Timeout = d
			}
			start := time.Now()
			out, err := e.RunAsync(ctx, rfunctions.Request{
				SourceFile: c.Source,
				Function:   c.Function,
				Args:       c.Args,
				Process:    proc,
			}).Wait()
			results[i] = toResult(c.ID, out, err, time.Since(start), scrub)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func toResult(id string, out rfunctions.Outcome, err error, elapsed time.Duration, scrub *redact.Set) Result {
	r := Result{
		ID:         id,
		CallID:     out.CallID,
		ExitCode:   out.ExitCode,
		DurationMs: elapsed.Milliseconds(),
	}
	if err != nil {
		info := &ErrorInfo{Code: codes.Process, Message: err.Error()}
		if e, ok := rfunctions.AsError(err); ok {
			info.Code = e.Code
			info.Message = scrub.Bytes([]byte(e.Message))
			info.ExitCode = e.ExitCode
			info.Stderr = scrub.Bytes(e.Stderr)
			r.CallID = e.CallID
			r.ExitCode = e.ExitCode
		}
		r.Error = info
		return r
	}
	r.OK = true
	r.HasValue = out.HasValue
	if out.HasValue {
		r.Value = out.Value
	} else {
		r.Stdout = string(out.Stdout)
	}
	return r
}

// Failed counts results with an error.
func Failed(results []Result) int {
	n := 0
	for _, r := range results {
		if !r.OK {
			n++
		}
	}
	return n
}
