package series

import (
	"context"
	"runtime/debug"
	"slices"
	"sync"

	"go.uber.org/zap"
)

// Done receives the outcome of a run. On failure result is the last value
// the failing step saw (or reported alongside its error).
type Done func(result any, err error)

type hostKey struct{}

// HostFrom returns the host value the running Runner was built with.
func HostFrom(ctx context.Context) any {
	return ctx.Value(hostKey{})
}

// Runner executes handler lists one step at a time.
type Runner struct {
	host   any
	logger *zap.Logger
	diag   func(error)
}

type Option func(*Runner)

// WithHost sets the shared value every handler of a run can reach via HostFrom.
func WithHost(host any) Option { return func(r *Runner) { r.host = host } }

func WithLogger(l *zap.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithDiagnostics sets the side channel for errors nobody is waiting on,
// such as a second completion of an already finished step.
func WithDiagnostics(fn func(error)) Option { return func(r *Runner) { r.diag = fn } }

func NewRunner(opts ...Option) *Runner {
	r := &Runner{logger: zap.NewNop()}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Run executes list front to back on its own goroutine, threading seed
// through each handler, and calls done exactly once. The first error skips
// every remaining handler. list is copied, so callers may keep mutating it.
func (r *Runner) Run(ctx context.Context, list []*Handler, seed any, done Done) {
	queue := slices.Clone(list)
	if r.host != nil {
		ctx = context.WithValue(ctx, hostKey{}, r.host)
	}
	go r.drive(ctx, queue, seed, done)
}

// RunFuture is Run with the outcome delivered as a future.
func (r *Runner) RunFuture(ctx context.Context, list []*Handler, seed any) *Future {
	f := NewFuture()
	r.Run(ctx, list, seed, func(result any, err error) {
		if err != nil {
			f.Reject(err)
			return
		}
		f.Resolve(result)
	})
	return f
}

// RunSync blocks until the run completes or ctx ends. The run itself is not
// cancelled by ctx.
func (r *Runner) RunSync(ctx context.Context, list []*Handler, seed any) (any, error) {
	return r.RunFuture(ctx, list, seed).Await(ctx)
}

func (r *Runner) drive(ctx context.Context, queue []*Handler, value any, done Done) {
	for i, h := range queue {
		out, err := r.step(ctx, h, value)
		if err != nil {
			r.logger.Debug("run failed",
				zap.Int("step", i),
				zap.String("handler", h.Name()),
				zap.String("source", h.Source()),
				zap.Error(err),
			)
			r.finish(done, out, err)
			return
		}
		value = out
	}
	r.finish(done, value, nil)
}

func (r *Runner) finish(done Done, result any, err error) {
	if done == nil {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			r.report(&PanicError{Value: rec, Stack: debug.Stack()})
		}
	}()
	done(result, err)
}

type outcome struct {
	result any
	err    error
}

// stepState arbitrates the ways one handler can complete. Only the first
// delivered outcome is consumed; everything after it is a protocol error.
type stepState struct {
	mu        sync.Mutex
	deferred  bool
	called    bool
	delivered bool
	closed    bool
	ch        chan outcome
}

func (s *stepState) deliver(o outcome) bool {
	s.mu.Lock()
	if s.delivered || s.closed {
		s.mu.Unlock()
		return false
	}
	s.delivered = true
	s.mu.Unlock()
	s.ch <- o
	return true
}

func (s *stepState) close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

func (r *Runner) step(ctx context.Context, h *Handler, in any) (any, error) {
	st := &stepState{ch: make(chan outcome, 1)}
	next := func(err error, result any) { r.continuation(h, st, in, err, result) }

	ret, err := r.invoke(ctx, h, in, next)
	fut, _ := ret.(*Future)

	st.mu.Lock()
	st.deferred = fut != nil
	called := st.called
	st.mu.Unlock()

	var o outcome
	switch {
	case err != nil:
		if called {
			r.report(stepError(h, ErrDoubleCompletion))
		}
		o = outcome{result: in, err: err}
	case fut != nil && called:
		o = outcome{result: in, err: stepError(h, ErrAmbiguousCompletion)}
	case fut != nil:
		fut.Then(func(v any, e error) {
			if e != nil {
				st.deliver(outcome{result: in, err: e})
				return
			}
			st.deliver(outcome{result: v})
		})
		o = <-st.ch
	case h.Convention() == Synchronous && !called:
		o = outcome{result: ret}
	default:
		o = <-st.ch
	}
	st.close()
	return o.result, o.err
}

func (r *Runner) continuation(h *Handler, st *stepState, in any, err error, result any) {
	st.mu.Lock()
	if st.called || st.closed {
		st.mu.Unlock()
		r.report(stepError(h, ErrDoubleCompletion))
		return
	}
	st.called = true
	deferred := st.deferred
	st.mu.Unlock()

	o := outcome{result: result, err: err}
	if deferred {
		o = outcome{result: in, err: stepError(h, ErrAmbiguousCompletion)}
	}
	if !st.deliver(o) {
		r.report(stepError(h, ErrDoubleCompletion))
	}
}

func (r *Runner) invoke(ctx context.Context, h *Handler, in any, next Next) (ret any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			ret, err = nil, &PanicError{Value: rec, Stack: debug.Stack()}
		}
	}()
	r.logger.Debug("run handler",
		zap.String("handler", h.Name()),
		zap.String("source", h.Source()),
		zap.Stringer("convention", h.Convention()),
	)
	return h.invoke(ctx, in, next)
}

func (r *Runner) report(err error) {
	r.logger.Warn("handler completion error", zap.Error(err))
	if r.diag != nil {
		r.diag(err)
	}
}
