package rfunctions

import "context"

// Call is a call started by RunAsync. The interpreter always runs to
// completion (or until its context ends) even if nobody waits for it.
type Call struct {
	id   string
	done chan struct{}

	outcome Outcome
	err     error
}

func newCall(id string) *Call {
	return &Call{id: id, done: make(chan struct{})}
}

func failedCall(id string, err error) *Call {
	c := newCall(id)
	c.finish(Outcome{CallID: id}, err)
	return c
}

func (c *Call) finish(out Outcome, err error) {
	if e, ok := AsError(err); ok && e.CallID == "" {
		e.CallID = c.id
	}
	c.outcome, c.err = out, err
	close(c.done)
}

// ID matches Outcome.CallID and the workspace directory name.
func (c *Call) ID() string { return c.id }

// Done is closed once the outcome is available.
func (c *Call) Done() <-chan struct{} { return c.done }

// Wait blocks until the call has finished.
func (c *Call) Wait() (Outcome, error) {
	<-c.done
	return c.outcome, c.err
}

// WaitContext stops waiting when ctx ends. The call itself keeps running; use
// the context given to RunAsync (or ProcessOptions.Timeout) to stop it.
func (c *Call) WaitContext(ctx context.Context) (Outcome, error) {
	select {
	case <-c.done:
		return c.outcome, c.err
	case <-ctx.Done():
		return Outcome{CallID: c.id}, ctx.Err()
	}
}
