package navigation

import (
	"context"
	"sync"
)

// Future is the completion of one command. It completes exactly once,
// with nil, a failure, or ErrCancelled.
type Future struct {
	once sync.Once
	done chan struct{}
	err  error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// completedFuture returns a future that has already completed with err.
func completedFuture(err error) *Future {
	f := newFuture()
	f.complete(err)
	return f
}

// complete reports whether this call was the one that completed f.
func (f *Future) complete(err error) bool {
	completed := false
	f.once.Do(func() {
		f.err = err
		close(f.done)
		completed = true
	})
	return completed
}

// Done is closed when the future completes.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Err returns the outcome, or nil while the future is pending.
func (f *Future) Err() error {
	select {
	case <-f.done:
		return f.err
	default:
		return nil
	}
}

// Wait blocks until the future completes or ctx ends.
func (f *Future) Wait(ctx context.Context) error {
	select {
	case <-f.done:
		return f.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
