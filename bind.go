package rfunctions

import (
	"context"

	"github.com/google/uuid"
)

// Named marks call-site arguments that are passed to R by name:
//
//	add.Call(ctx, rfunctions.Named{"a": 2, "b": 3})
type Named map[string]any

// Func is a function in an R source file bound for blocking calls. It is an
// immutable value; copies can be shared freely between goroutines.
type Func struct {
	engine     *Engine
	sourceFile string
	function   string
	process    ProcessOptions
}

// AsyncFunc is the RunAsync counterpart of Func.
type AsyncFunc struct {
	fn Func
}

func (e *Engine) Create(sourceFile, function string) Func {
	return Func{engine: e, sourceFile: sourceFile, function: function}
}

func (e *Engine) CreateAsync(sourceFile, function string) AsyncFunc {
	return AsyncFunc{fn: e.Create(sourceFile, function)}
}

// WithProcessOptions returns a copy of f that launches with p.
func (f Func) WithProcessOptions(p ProcessOptions) Func {
	f.process = p
	return f
}

func (f Func) SourceFile() string { return f.sourceFile }
func (f Func) Function() string   { return f.function }

// Call runs the function with positional arguments, or with a single Named
// value for named arguments. Mixing the two is rejected before anything is
// launched.
func (f Func) Call(ctx context.Context, args ...any) (Outcome, error) {
	a, err := callSiteArgs(args)
	if err != nil {
		return Outcome{}, err
	}
	return f.engine.Run(ctx, f.request(a))
}

func (f Func) request(args any) Request {
	return Request{SourceFile: f.sourceFile, Function: f.function, Args: args, Process: f.process}
}

func (a AsyncFunc) WithProcessOptions(p ProcessOptions) AsyncFunc {
	return AsyncFunc{fn: a.fn.WithProcessOptions(p)}
}

func (a AsyncFunc) SourceFile() string { return a.fn.sourceFile }
func (a AsyncFunc) Function() string   { return a.fn.function }

// Call starts the function like Func.Call but returns at once. Argument
// errors are reported through the returned Call.
func (a AsyncFunc) Call(ctx context.Context, args ...any) *Call {
	v, err := callSiteArgs(args)
	if err != nil {
		return failedCall(uuid.NewString(), err)
	}
	return a.fn.engine.RunAsync(ctx, a.fn.request(v))
}

// callSiteArgs turns call-site arguments into Request.Args: nothing means no
// arguments, a lone Named means named arguments, anything else is positional.
func callSiteArgs(args []any) (any, error) {
	if len(args) == 0 {
		return nil, nil
	}
	var named Named
	namedCount := 0
	for _, a := range args {
		if n, ok := a.(Named); ok {
			named = n
			namedCount++
		}
	}
	switch {
	case namedCount == 0:
		return args, nil
	case namedCount == 1 && len(args) == 1:
		if named == nil {
			return map[string]any{}, nil
		}
		return map[string]any(named), nil
	default:
		return nil, newError(ErrorUsage, "bound function called with both positional and named arguments")
	}
}
