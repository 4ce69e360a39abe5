package rfunctions

import (
	"context"
	"sync"
)

var (
	defaultOnce   sync.Once
	defaultEngine *Engine
)

// DefaultEngine backs the package-level functions: Rscript (or RFN_RSCRIPT)
// from PATH, no logging.
func DefaultEngine() *Engine {
	defaultOnce.Do(func() {
		defaultEngine = New(Options{})
	})
	return defaultEngine
}

// Run calls function from sourceFile with args and waits for the result.
func Run(ctx context.Context, sourceFile, function string, args any) (Outcome, error) {
	return DefaultEngine().Run(ctx, Request{SourceFile: sourceFile, Function: function, Args: args})
}

// RunAsync is Run without waiting.
func RunAsync(ctx context.Context, sourceFile, function string, args any) *Call {
	return DefaultEngine().RunAsync(ctx, Request{SourceFile: sourceFile, Function: function, Args: args})
}

func Create(sourceFile, function string) Func {
	return DefaultEngine().Create(sourceFile, function)
}

func CreateAsync(sourceFile, function string) AsyncFunc {
	return DefaultEngine().CreateAsync(sourceFile, function)
}
