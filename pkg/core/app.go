// pkg/core/app.go
package core

import (
	"context"
	"fmt"
	"runtime/debug"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/joeydtaylor/steeze-project/pkg/config"
	"github.com/joeydtaylor/steeze-project/pkg/event"
	"github.com/joeydtaylor/steeze-project/pkg/method"
	"github.com/joeydtaylor/steeze-project/pkg/series"
	"go.uber.org/zap"
)

// Events emitted on App.Events.
const (
	EventReady         = "ready"
	EventError         = event.ErrorEvent
	EventConfigChanged = "config.changed"
)

// State is the init lifecycle: Idle, then Initing, then Inited once every
// hook and task succeeded. A failed init stays Initing.
type State int32

const (
	Idle State = iota
	Initing
	Inited
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Initing:
		return "initing"
	case Inited:
		return "inited"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Extension contributes init hooks. Each field is optional and must be one
// of the hook shapes (see hook.go). All Before hooks of every extension run
// first, then all Init hooks, then all After hooks.
type Extension struct {
	Name   string
	Before any
	Init   any
	After  any
}

// ReadyFunc runs once the App is inited.
type ReadyFunc func(app *App) error

// App is the aggregate independent modules extend: configuration, methods,
// events, and the init sequence that brings them up exactly once.
type App struct {
	Config  *config.Store
	Methods *method.Registry
	Events  *event.Bus

	log   *zap.Logger
	diag  func(error)
	state atomic.Int32

	mu     sync.Mutex
	before []*series.Handler
	init   []*series.Handler
	after  []*series.Handler
	tasks  *TaskQueue
}

type Option func(*appOptions)

type appOptions struct {
	log        *zap.Logger
	configOpts []config.Option
	methodOpts []method.Option
	diag       func(error)
}

func WithLogger(l *zap.Logger) Option {
	return func(o *appOptions) {
		if l != nil {
			o.log = l
		}
	}
}

func WithConfigOptions(opts ...config.Option) Option {
	return func(o *appOptions) { o.configOpts = append(o.configOpts, opts...) }
}

// WithMethodOptions applies opts to every method the App's registry creates.
func WithMethodOptions(opts ...method.Option) Option {
	return func(o *appOptions) { o.methodOpts = append(o.methodOpts, opts...) }
}

// WithDiagnostics receives errors that have no caller: double completions,
// panicking catch observers.
func WithDiagnostics(fn func(error)) Option {
	return func(o *appOptions) { o.diag = fn }
}

func New(opts ...Option) *App {
	o := appOptions{log: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{log: o.log, diag: o.diag}
	a.Events = event.NewBus(o.log.Named("event"))
	a.Config = config.New(append([]config.Option{config.WithLogger(o.log.Named("config"))}, o.configOpts...)...)

	mopts := []method.Option{
		method.WithLogger(o.log.Named("method")),
		method.WithHost(a),
		method.WithDiagnostics(a.report),
	}
	a.Methods = method.NewRegistry(append(mopts, o.methodOpts...)...)
	a.tasks = &TaskQueue{app: a}
	return a
}

func (a *App) Logger() *zap.Logger { return a.log }

func (a *App) State() State { return State(a.state.Load()) }

func (a *App) Inited() bool { return a.State() == Inited }

// Method is a shortcut for a.Methods.Method(name).
func (a *App) Method(name string) method.Builder { return a.Methods.Method(name) }

// mutable reports why the App can no longer be changed, if it can't.
func (a *App) mutable() error {
	switch a.State() {
	case Initing:
		return ErrIniting
	case Inited:
		return ErrInited
	}
	return nil
}

// Extends queues an extension's hooks. Only valid before Init.
func (a *App) Extends(ext Extension) error {
	if err := a.mutable(); err != nil {
		return err
	}
	var before, init, after *series.Handler
	var err error
	if before, err = a.optionalHook(ext, "before", ext.Before); err != nil {
		return err
	}
	if init, err = a.optionalHook(ext, "init", ext.Init); err != nil {
		return err
	}
	if after, err = a.optionalHook(ext, "after", ext.After); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.mutable(); err != nil {
		return err
	}
	if before != nil {
		a.before = append(a.before, before)
	}
	if init != nil {
		a.init = append(a.init, init)
	}
	if after != nil {
		a.after = append(a.after, after)
	}
	a.log.Debug("extends", zap.String("extension", ext.Name))
	return nil
}

func (a *App) optionalHook(ext Extension, kind string, fn any) (*series.Handler, error) {
	if fn == nil {
		return nil, nil
	}
	h, err := asHandler(fn)
	if err != nil {
		return nil, fmt.Errorf("extension %q %s hook: %w", ext.Name, kind, err)
	}
	if ext.Name != "" {
		h = h.WithName(ext.Name + "." + kind)
	}
	return h, nil
}

// Tasks is the queue of init tasks that run after every extension hook.
func (a *App) Tasks() *TaskQueue { return a.tasks }

func (a *App) runner() *series.Runner {
	return series.NewRunner(
		series.WithHost(a),
		series.WithLogger(a.log.Named("series")),
		series.WithDiagnostics(a.report),
	)
}

// Init runs every extension hook and then every queued task, once. Calling it
// again returns ErrIniting or ErrInited without running anything. cb may be
// nil; the returned future settles with the same outcome, resolving to the
// App itself.
func (a *App) Init(ctx context.Context, cb func(error)) (*series.Future, error) {
	if !a.state.CompareAndSwap(int32(Idle), int32(Initing)) {
		if a.State() == Inited {
			return nil, ErrInited
		}
		return nil, ErrIniting
	}

	a.mu.Lock()
	hooks := slices.Concat(a.before, a.init, a.after)
	tasks := a.tasks.snapshot()
	a.mu.Unlock()

	a.log.Info("initing", zap.Int("hooks", len(hooks)), zap.Int("tasks", len(tasks)))

	fut := series.NewFuture()
	fail := func(err error) {
		a.log.Error("init failed", zap.Error(err))
		a.Events.Emit(EventError, err)
		fut.Reject(err)
		a.notify(cb, err)
	}

	r := a.runner()
	r.Run(ctx, hooks, nil, func(_ any, err error) {
		if err != nil {
			fail(err)
			return
		}
		r.Run(ctx, tasks, nil, func(_ any, err error) {
			if err != nil {
				fail(err)
				return
			}
			a.mu.Lock()
			a.state.Store(int32(Inited))
			a.mu.Unlock()

			a.log.Info("inited")
			a.Events.Emit(EventReady, a)
			fut.Resolve(a)
			a.notify(cb, nil)
		})
	})
	return fut, nil
}

// Ready runs fn once the App is inited: on the init goroutine if init is
// still pending, on a fresh goroutine if it already finished. Errors go to
// the error event.
func (a *App) Ready(fn ReadyFunc) {
	if fn == nil {
		return
	}
	run := func() {
		defer func() {
			if rec := recover(); rec != nil {
				a.Events.Emit(EventError, fmt.Errorf("ready callback panicked: %v", rec))
			}
		}()
		if err := fn(a); err != nil {
			a.Events.Emit(EventError, err)
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.State() == Inited {
		go run()
		return
	}
	a.Events.Once(EventReady, func(...any) error {
		run()
		return nil
	})
}

// Run executes ad-hoc tasks against the App: a single task shape, a slice of
// them, or a unit file or directory path. Errors go to cb, or to the error
// event when cb is nil.
func (a *App) Run(ctx context.Context, tasks any, cb func(error)) *series.Future {
	fut := series.NewFuture()
	settle := func(err error) {
		if err != nil {
			fut.Reject(err)
		} else {
			fut.Resolve(a)
		}
		if cb != nil {
			a.notify(cb, err)
			return
		}
		if err != nil {
			a.Events.Emit(EventError, err)
		}
	}

	list, err := a.collect(tasks)
	if err != nil {
		go settle(err)
		return fut
	}
	a.runner().Run(ctx, list, nil, func(_ any, err error) { settle(err) })
	return fut
}

func (a *App) collect(tasks any) ([]*series.Handler, error) {
	switch v := tasks.(type) {
	case string:
		return LoadUnits(v)
	case []any:
		out := make([]*series.Handler, 0, len(v))
		for _, t := range v {
			list, err := a.collect(t)
			if err != nil {
				return nil, err
			}
			out = append(out, list...)
		}
		return out, nil
	case []*series.Handler:
		return slices.Clone(v), nil
	}
	h, err := asHandler(tasks)
	if err != nil {
		return nil, err
	}
	return []*series.Handler{h}, nil
}

// WatchConfig reloads path on change and emits EventConfigChanged (or
// EventError when the reload fails).
func (a *App) WatchConfig(ctx context.Context, path string) error {
	return a.Config.Watch(ctx, path, 0, func(err error) {
		if err != nil {
			a.Events.Emit(EventError, err)
			return
		}
		a.Events.Emit(EventConfigChanged, path)
	})
}

// notify runs a caller callback after the future settled; a panic in it is
// a diagnostic.
func (a *App) notify(cb func(error), err error) {
	if cb == nil {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			a.report(&series.PanicError{Value: rec, Stack: debug.Stack()})
		}
	}()
	cb(err)
}

func (a *App) report(err error) {
	a.log.Warn("diagnostic", zap.Error(err))
	if a.diag != nil {
		a.diag(err)
	}
}
