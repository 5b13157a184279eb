package method

import (
	"context"
	"fmt"
	"runtime/debug"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/joeydtaylor/steeze-project/pkg/series"
	"go.uber.org/zap"
)

// Callback receives the outcome of a Call. It always agrees with the future
// Call returns.
type Callback func(err error, result any)

// CatchFunc observes a failed call. params is the cloned input the call ran
// with and result the last value the pipeline saw before failing.
type CatchFunc func(err error, params, result any)

// Observer is notified once per settled call.
type Observer interface {
	ObserveCall(method string, took time.Duration, err error)
}

type settings struct {
	logger   *zap.Logger
	observer Observer
	diag     func(error)
	host     any
}

type Option func(*settings)

func WithLogger(l *zap.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithObserver(o Observer) Option { return func(s *settings) { s.observer = o } }

// WithDiagnostics receives errors that cannot reach a caller: panicking catch
// observers and handlers that complete twice.
func WithDiagnostics(fn func(error)) Option { return func(s *settings) { s.diag = fn } }

// WithHost sets the value handlers reach through series.HostFrom.
func WithHost(host any) Option { return func(s *settings) { s.host = host } }

func newSettings(opts []Option) settings {
	s := settings{logger: zap.NewNop()}
	for _, o := range opts {
		o(&s)
	}
	return s
}

// Method is one named callable pipeline: before hooks, a main handler and
// after hooks, with optional parameter checks and error observers.
type Method struct {
	name string
	cfg  settings

	mu     sync.RWMutex
	schema Schema
	main   *series.Handler
	before []*series.Handler
	after  []*series.Handler
	catch  []CatchFunc
}

func New(name string, opts ...Option) *Method {
	if name == "" {
		name = "anonymous"
	}
	return &Method{name: name, cfg: newSettings(opts)}
}

func (m *Method) Name() string { return m.name }

// Register sets the main handler, replacing any previous one.
func (m *Method) Register(fn any) error {
	h, err := m.wrap("main", fn)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.main = h
	m.mu.Unlock()
	return nil
}

func (m *Method) Before(fn any) error {
	h, err := m.wrap("before", fn)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.before = append(m.before, h)
	m.mu.Unlock()
	return nil
}

func (m *Method) After(fn any) error {
	h, err := m.wrap("after", fn)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.after = append(m.after, h)
	m.mu.Unlock()
	return nil
}

// Check installs the parameter schema. A nil schema disables checking.
func (m *Method) Check(schema Schema) error {
	m.mu.Lock()
	m.schema = schema
	m.mu.Unlock()
	m.cfg.logger.Debug("method check", zap.String("method", m.name), zap.Int("rules", len(schema)))
	return nil
}

func (m *Method) Catch(fn CatchFunc) error {
	if fn == nil {
		return series.ErrNotCallable
	}
	m.mu.Lock()
	m.catch = append(m.catch, fn)
	m.mu.Unlock()
	return nil
}

// HasHandler reports whether a main handler is registered.
func (m *Method) HasHandler() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.main != nil
}

func (m *Method) wrap(kind string, fn any) (*series.Handler, error) {
	h, err := series.Wrap(fn)
	if err != nil {
		return nil, fmt.Errorf("method %s: %s: %w", m.name, kind, err)
	}
	h = h.WithName(m.name)
	m.cfg.logger.Debug("method "+kind,
		zap.String("method", m.name),
		zap.String("source", h.Source()),
	)
	return h, nil
}

// Call runs the pipeline against a shallow clone of params. The returned
// future and cb (if any) see the same outcome, and neither fires before Call
// returns.
func (m *Method) Call(ctx context.Context, params any, cb Callback) *series.Future {
	fut := series.NewFuture()
	start := time.Now()
	log := m.cfg.logger.With(
		zap.String("method", m.name),
		zap.String("call_id", uuid.NewString()),
	)

	m.mu.RLock()
	schema := m.schema
	main := m.main
	list := make([]*series.Handler, 0, len(m.before)+len(m.after)+1)
	list = append(list, m.before...)
	list = append(list, main)
	list = append(list, m.after...)
	catches := slices.Clone(m.catch)
	m.mu.RUnlock()

	args := clone(params)

	settle := func(result any, err error) {
		if err != nil {
			log.Debug("method call failed", zap.Error(err))
			m.dispatchCatch(log, catches, err, args, result)
		}
		if m.cfg.observer != nil {
			m.cfg.observer.ObserveCall(m.name, time.Since(start), err)
		}
		if err != nil {
			fut.Reject(err)
		} else {
			fut.Resolve(result)
		}
		if cb == nil {
			return
		}
		defer func() {
			if rec := recover(); rec != nil {
				m.report(log, &series.PanicError{Value: rec, Stack: debug.Stack()})
			}
		}()
		if err != nil {
			cb(err, nil)
			return
		}
		cb(nil, result)
	}

	if err := schema.check(m.name, args); err != nil {
		go settle(nil, err)
		return fut
	}
	if main == nil {
		go settle(nil, &MissingHandlerError{Method: m.name})
		return fut
	}

	log.Debug("method call", zap.Int("handlers", len(list)))
	runner := series.NewRunner(
		series.WithHost(m.cfg.host),
		series.WithLogger(log),
		series.WithDiagnostics(m.cfg.diag),
	)
	runner.Run(ctx, list, args, settle)
	return fut
}

func (m *Method) dispatchCatch(log *zap.Logger, catches []CatchFunc, err error, params, result any) {
	for i, fn := range catches {
		func() {
			defer func() {
				if rec := recover(); rec != nil {
					log.Error("call catch function failed", zap.Int("index", i), zap.Any("panic", rec))
					m.report(log, &series.PanicError{Value: rec, Stack: debug.Stack()})
				}
			}()
			fn(err, params, result)
		}()
	}
}

func (m *Method) report(log *zap.Logger, err error) {
	log.Warn("method diagnostic", zap.Error(err))
	if m.cfg.diag != nil {
		m.cfg.diag(err)
	}
}
