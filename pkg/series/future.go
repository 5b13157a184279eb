package series

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
)

// Future is a value that settles exactly once, either resolved with a result
// or rejected with an error. It is the deferred completion shape handlers may
// return instead of a direct result.
type Future struct {
	mu   sync.Mutex
	done chan struct{}
	val  any
	err  error
	cbs  []func(any, error)
}

// NewFuture returns an unsettled future.
func NewFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// Resolved returns a future already resolved with v.
func Resolved(v any) *Future {
	f := NewFuture()
	f.Resolve(v)
	return f
}

// Rejected returns a future already rejected with err.
func Rejected(err error) *Future {
	f := NewFuture()
	f.Reject(err)
	return f
}

// Go runs fn on a new goroutine and settles the returned future with its
// outcome. A panic inside fn rejects the future with a *PanicError.
func Go(fn func() (any, error)) *Future {
	f := NewFuture()
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				f.Reject(&PanicError{Value: rec, Stack: debug.Stack()})
			}
		}()
		v, err := fn()
		if err != nil {
			f.Reject(err)
			return
		}
		f.Resolve(v)
	}()
	return f
}

// Resolve settles the future with v. It reports false if the future was
// already settled.
func (f *Future) Resolve(v any) bool { return f.settle(v, nil) }

// Reject settles the future with err. A nil err is replaced so a rejected
// future never looks resolved.
func (f *Future) Reject(err error) bool {
	if err == nil {
		err = fmt.Errorf("series: future rejected with nil error")
	}
	return f.settle(nil, err)
}

func (f *Future) settle(v any, err error) bool {
	f.mu.Lock()
	select {
	case <-f.done:
		f.mu.Unlock()
		return false
	default:
	}
	f.val, f.err = v, err
	cbs := f.cbs
	f.cbs = nil
	close(f.done)
	f.mu.Unlock()

	for _, cb := range cbs {
		cb(v, err)
	}
	return true
}

// Then registers fn to run once the future settles. If it already has, fn
// runs immediately on the calling goroutine; otherwise it runs on the
// goroutine that settles the future.
func (f *Future) Then(fn func(result any, err error)) {
	f.mu.Lock()
	select {
	case <-f.done:
		v, err := f.val, f.err
		f.mu.Unlock()
		fn(v, err)
		return
	default:
	}
	f.cbs = append(f.cbs, fn)
	f.mu.Unlock()
}

// Done is closed when the future settles.
func (f *Future) Done() <-chan struct{} { return f.done }

// Await blocks until the future settles or ctx ends.
func (f *Future) Await(ctx context.Context) (any, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Peek returns the outcome without blocking; ok is false while unsettled.
func (f *Future) Peek() (result any, err error, ok bool) {
	select {
	case <-f.done:
		return f.val, f.err, true
	default:
		return nil, nil, false
	}
}
