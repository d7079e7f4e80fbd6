package writer

import (
	"context"
	"sync"
)

// Completion resolves once when a save ends. Outcome, Rows and Err are
// meaningful after Done is closed.
type Completion struct {
	id      string
	done    chan struct{}
	once    sync.Once
	outcome Outcome
	rows    int
	err     error
}

func newCompletion(id string) *Completion {
	return &Completion{id: id, done: make(chan struct{})}
}

func (c *Completion) resolve(outcome Outcome, rows int, err error) {
	c.once.Do(func() {
		c.outcome = outcome
		c.rows = rows
		c.err = err
		close(c.done)
	})
}

// ID identifies the save in logs and traces.
func (c *Completion) ID() string { return c.id }

// Done is closed when the save ends.
func (c *Completion) Done() <-chan struct{} { return c.done }

// Resolved reports whether the save has ended.
func (c *Completion) Resolved() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the save ends or ctx is done. It returns the save error,
// which is nil for completed and cancelled saves, or the context error.
func (c *Completion) Wait(ctx context.Context) error {
	select {
	case <-c.done:
		return c.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Err returns the save error, or nil while the save is running.
func (c *Completion) Err() error {
	if !c.Resolved() {
		return nil
	}
	return c.err
}

// Outcome returns how the save ended, blocking until it does.
func (c *Completion) Outcome() Outcome {
	<-c.done
	return c.outcome
}

// Rows returns the number of data rows written, blocking until the save ends.
func (c *Completion) Rows() int {
	<-c.done
	return c.rows
}
