package series

import (
	"context"
	"fmt"
	"runtime"
	"strings"
)

// Next is the continuation handed to continuation-style handlers.
type Next = func(err error, result any)

// Invoke is the normalized body every Handler wraps. Synchronous handlers
// return their result, deferred ones return a *Future, continuation-style
// ones call next and return nothing.
type Invoke func(ctx context.Context, in any, next Next) (any, error)

// BaseArgs is the number of positional arguments a handler receives before
// the trailing continuation: the value threaded through the run.
const BaseArgs = 1

// Convention is how a handler signals completion.
type Convention int

const (
	Synchronous Convention = iota
	Continuation
	Deferred
)

func (c Convention) String() string {
	switch c {
	case Synchronous:
		return "sync"
	case Continuation:
		return "continuation"
	case Deferred:
		return "deferred"
	default:
		return "unknown"
	}
}

// Classify derives a handler's convention from its declared arity: anything
// that does not declare a parameter beyond the base arguments returns its
// result directly.
func Classify(arity int) Convention {
	if arity <= BaseArgs {
		return Synchronous
	}
	return Continuation
}

// Handler is an immutable unit of work. The With* methods return copies.
type Handler struct {
	name   string
	source string
	level  int
	arity  int
	conv   Convention
	invoke Invoke
}

// New wraps fn with the given declared arity.
func New(arity int, fn Invoke) *Handler {
	return &Handler{
		name:   "anonymous",
		source: CallerSource(),
		arity:  arity,
		conv:   Classify(arity),
		invoke: fn,
	}
}

// Func wraps a handler that returns its result directly. A returned *Future
// is still honoured as a deferred completion.
func Func(fn func(ctx context.Context, in any) (any, error)) *Handler {
	h := New(1, func(ctx context.Context, in any, _ Next) (any, error) {
		return fn(ctx, in)
	})
	h.source = CallerSource()
	return h
}

// Callback wraps a continuation-style handler.
func Callback(fn func(ctx context.Context, in any, next Next)) *Handler {
	h := New(2, func(ctx context.Context, in any, next Next) (any, error) {
		fn(ctx, in, next)
		return nil, nil
	})
	h.source = CallerSource()
	return h
}

// Async wraps a handler whose completion is the future it returns.
func Async(fn func(ctx context.Context, in any) *Future) *Handler {
	h := New(1, func(ctx context.Context, in any, _ Next) (any, error) {
		return futureOrNil(fn(ctx, in)), nil
	})
	h.source = CallerSource()
	return h
}

// Hybrid wraps the legacy shape that receives a continuation and may also
// return a future. Using both is a protocol violation the runner rejects.
func Hybrid(fn func(ctx context.Context, in any, next Next) *Future) *Handler {
	h := New(2, func(ctx context.Context, in any, next Next) (any, error) {
		return futureOrNil(fn(ctx, in, next)), nil
	})
	h.source = CallerSource()
	return h
}

// futureOrNil keeps a nil *Future from turning into a non-nil interface.
func futureOrNil(f *Future) any {
	if f == nil {
		return nil
	}
	return f
}

// Wrap accepts any supported handler shape, with or without a leading
// context.Context, or an existing *Handler.
func Wrap(fn any) (*Handler, error) {
	var h *Handler
	switch v := fn.(type) {
	case *Handler:
		if v == nil {
			return nil, ErrNotCallable
		}
		return v, nil
	case func(context.Context, any) (any, error):
		if v != nil {
			h = Func(v)
		}
	case func(any) (any, error):
		if v != nil {
			h = Func(func(_ context.Context, in any) (any, error) { return v(in) })
		}
	case func(context.Context, any, Next):
		if v != nil {
			h = Callback(v)
		}
	case func(any, Next):
		if v != nil {
			h = Callback(func(_ context.Context, in any, next Next) { v(in, next) })
		}
	case func(context.Context, any) *Future:
		if v != nil {
			h = Async(v)
		}
	case func(any) *Future:
		if v != nil {
			h = Async(func(_ context.Context, in any) *Future { return v(in) })
		}
	case func(context.Context, any, Next) *Future:
		if v != nil {
			h = Hybrid(v)
		}
	case func(any, Next) *Future:
		if v != nil {
			h = Hybrid(func(_ context.Context, in any, next Next) *Future { return v(in, next) })
		}
	default:
		return nil, fmt.Errorf("%w, got %T", ErrNotCallable, fn)
	}
	if h == nil {
		return nil, ErrNotCallable
	}
	h.source = CallerSource()
	return h, nil
}

func (h *Handler) Name() string           { return h.name }
func (h *Handler) Source() string         { return h.source }
func (h *Handler) Level() int             { return h.level }
func (h *Handler) Arity() int             { return h.arity }
func (h *Handler) Convention() Convention { return h.conv }

func (h *Handler) WithName(name string) *Handler {
	c := *h
	c.name = name
	return &c
}

func (h *Handler) WithSource(source string) *Handler {
	c := *h
	c.source = source
	return &c
}

func (h *Handler) WithLevel(level int) *Handler {
	c := *h
	c.level = level
	return &c
}

const modulePrefix = "github.com/joeydtaylor/steeze-project/"

// CallerSource returns file:line of the nearest caller outside this module's
// library code, used to tag handlers with where they were registered.
func CallerSource() string {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(2, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	for {
		f, more := frames.Next()
		inLib := strings.HasPrefix(f.Function, modulePrefix+"pkg/") && !strings.HasSuffix(f.File, "_test.go")
		if !inLib && f.File != "" {
			return fmt.Sprintf("%s:%d", f.File, f.Line)
		}
		if !more {
			return ""
		}
	}
}
