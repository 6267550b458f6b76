package upload

import (
	"context"
	"sync"
)

// Future is the eventual result of an upload.
//
// It is settled exactly once, either with a response or with an error.
type Future struct {
	done chan struct{}
	once sync.Once

	resp *Response
	err  error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// settle records the result unless the future is already settled.
//
// Returns whether this call settled the future.
func (f *Future) settle(resp *Response, err error) bool {
	settled := false
	f.once.Do(func() {
		f.resp = resp
		f.err = err
		settled = true
		close(f.done)
	})
	return settled
}

// Done returns a channel that's closed once the future is settled.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Settled reports whether the result is available.
func (f *Future) Settled() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the future is settled and returns its result.
func (f *Future) Wait() (*Response, error) {
	<-f.done
	return f.resp, f.err
}

// Await is like Wait but gives up when the context is done.
//
// Giving up does not cancel the upload.
func (f *Future) Await(ctx context.Context) (*Response, error) {
	select {
	case <-f.done:
		return f.resp, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
