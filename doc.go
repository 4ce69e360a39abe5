// Package rfunctions calls functions defined in R source files from Go.
//
// Every call starts a fresh Rscript process that sources the file, applies
// the function to JSON-encoded arguments and writes the JSON-encoded return
// value back. Nothing survives between calls: each one gets a private scratch
// directory that is removed when the call returns.
//
//	out, err := rfunctions.Run(ctx, "stats.R", "add", map[string]any{"a": 2, "b": 3})
//	// out.Value == float64(5)
//
//	reverse := rfunctions.Create("stats.R", "reverse")
//	out, err = reverse.Call(ctx, []string{"a", "b", "c"})
//	// out.Value == []any{"c", "b", "a"}
//
// Arguments are positional when given as a slice and named when given as a
// string-keyed map (or rfunctions.Named at a bound-function call site). A
// function whose result jsonlite cannot encode yields the captured stdout
// instead, see Outcome.Result.
//
// Run blocks until the interpreter exits. RunAsync returns a *Call right away
// and runs the interpreter on its own goroutine; Call.Wait collects the result.
package rfunctions
