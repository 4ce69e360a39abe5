package rfunctions

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestRunAsync_ReturnsBeforeInterpreterFinishes(t *testing.T) {
	source, scratch := setupHelper(t)
	e := newHelperEngine(scratch)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c := e.RunAsync(ctx, Request{SourceFile: source, Function: "sleep"})
	require.NotEmpty(t, c.ID())

	select {
	case <-c.Done():
		t.Fatalf("call finished before it was canceled")
	case <-time.After(50 * time.Millisecond):
	}

	cancel()
	out, err := c.Wait()
	require.True(t, IsKind(err, ErrorCanceled), "got %v", err)
	require.Equal(t, c.ID(), out.CallID)
	e2, _ := AsError(err)
	require.Equal(t, c.ID(), e2.CallID)
	requireEmptyDir(t, scratch)
}

func TestRunAsync_ValueAndFailureMatchBlocking(t *testing.T) {
	source, scratch := setupHelper(t)
	e := newHelperEngine(scratch)

	out, err := e.RunAsync(context.Background(), Request{
		SourceFile: source,
		Function:   "add",
		Args:       []any{1, 2},
	}).Wait()
	require.NoError(t, err)
	require.Equal(t, float64(3), out.Value)

	_, err = e.RunAsync(context.Background(), Request{SourceFile: source, Function: "throw_exception"}).Wait()
	ee, ok := AsError(err)
	require.True(t, ok, "expected *Error, got %v", err)
	require.Equal(t, ErrorProcess, ee.Kind)
	require.Equal(t, 1, ee.ExitCode)
	require.Contains(t, string(ee.Stderr), "boom")

	_, err = e.RunAsync(context.Background(), Request{SourceFile: source, Function: "identity", Args: 1}).Wait()
	require.True(t, IsKind(err, ErrorUsage), "got %v", err)
}

func TestCall_WaitContextStopsWaitingOnly(t *testing.T) {
	source, scratch := setupHelper(t)
	e := newHelperEngine(scratch)

	runCtx, stop := context.WithCancel(context.Background())
	c := e.RunAsync(runCtx, Request{SourceFile: source, Function: "sleep"})

	waitCtx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.WaitContext(waitCtx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	select {
	case <-c.Done():
		t.Fatalf("call should still be running")
	default:
	}

	stop()
	_, err = c.Wait()
	require.True(t, IsKind(err, ErrorCanceled), "got %v", err)
}

func TestRunAsync_ConcurrentCallsDoNotShareWorkspaces(t *testing.T) {
	source, scratch := setupHelper(t)
	e := newHelperEngine(scratch)

	const n = 16
	calls := make([]*Call, n)
	for i := range calls {
		calls[i] = e.RunAsync(context.Background(), Request{
			SourceFile: source,
			Function:   "identity",
			Args:       []any{fmt.Sprintf("payload-%02d", i)},
		})
	}

	seen := map[string]bool{}
	for i, c := range calls {
		out, err := c.Wait()
		require.NoError(t, err)
		require.Equal(t, fmt.Sprintf("payload-%02d", i), out.Value)
		require.False(t, seen[out.CallID], "duplicate call id %s", out.CallID)
		seen[out.CallID] = true
	}
	requireEmptyDir(t, scratch)
}

func TestRun_ConcurrentBlockingCalls(t *testing.T) {
	source, scratch := setupHelper(t)
	e := newHelperEngine(scratch)

	results := make([]any, 12)
	var g errgroup.Group
	for i := range results {
		g.Go(func() error {
			out, err := e.Run(context.Background(), Request{
				SourceFile: source,
				Function:   "add",
				Args:       map[string]any{"a": i, "b": 100},
			})
			if err != nil {
				return err
			}
			results[i] = out.Value
			return nil
		})
	}
	require.NoError(t, g.Wait())
	for i, v := range results {
		require.Equal(t, float64(i+100), v)
	}
	requireEmptyDir(t, scratch)
}
