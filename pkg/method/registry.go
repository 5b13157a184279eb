package method

import (
	"context"
	"maps"
	"regexp"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/joeydtaylor/steeze-project/pkg/series"
	"github.com/patrickmn/go-cache"
)

// Builder is what Registry.Method hands out: a stored *Method for exact
// names, a *Pattern for names containing '*'.
type Builder interface {
	Name() string
	Register(fn any) error
	Before(fn any) error
	After(fn any) error
	Check(schema Schema) error
	Catch(fn CatchFunc) error
	Call(ctx context.Context, params any, cb Callback) *series.Future
}

var (
	_ Builder = (*Method)(nil)
	_ Builder = (*Pattern)(nil)
)

// Registry owns every method of a process by exact name.
type Registry struct {
	opts []Option

	mu      sync.RWMutex
	methods map[string]*Method

	// compiled wildcard patterns, keyed by the raw pattern
	patterns *cache.Cache
}

// NewRegistry builds an empty registry. opts are applied to every method it
// creates.
func NewRegistry(opts ...Option) *Registry {
	return &Registry{
		opts:     opts,
		methods:  make(map[string]*Method),
		patterns: cache.New(30*time.Minute, time.Hour),
	}
}

// Method returns the method registered under name, creating it on first use.
// A name containing '*' yields a transient Pattern that is never stored.
func (r *Registry) Method(name string) Builder {
	if IsPattern(name) {
		return &Pattern{name: name, reg: r}
	}
	r.mu.RLock()
	m, ok := r.methods[name]
	r.mu.RUnlock()
	if ok {
		return m
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok = r.methods[name]; ok {
		return m
	}
	m = New(name, r.opts...)
	r.methods[name] = m
	return m
}

// Lookup returns the stored method without creating it.
func (r *Registry) Lookup(name string) (*Method, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.methods[name]
	return m, ok
}

// Names returns every stored method name, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.methods))
}

// Resolve returns the stored methods matching pattern right now, in name
// order.
func (r *Registry) Resolve(pattern string) []*Method {
	re := r.compile(pattern)

	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Method
	for _, name := range slices.Sorted(maps.Keys(r.methods)) {
		if re.MatchString(name) {
			out = append(out, r.methods[name])
		}
	}
	return out
}

func (r *Registry) compile(pattern string) *regexp.Regexp {
	if v, ok := r.patterns.Get(pattern); ok {
		return v.(*regexp.Regexp)
	}
	re := CompilePattern(pattern)
	r.patterns.SetDefault(pattern, re)
	return re
}

func IsPattern(name string) bool { return strings.Contains(name, "*") }

// CompilePattern turns a wildcard name into an anchored regexp where each '*'
// matches any substring, non-greedily.
func CompilePattern(pattern string) *regexp.Regexp {
	quoted := strings.ReplaceAll(regexp.QuoteMeta(pattern), `\*`, `(.*?)`)
	return regexp.MustCompile("^" + quoted + "$")
}

// Pattern forwards hook registration to every method matching a wildcard
// name. Matching happens at each call, so methods created later do not
// receive earlier hooks.
type Pattern struct {
	name string
	reg  *Registry
}

func (p *Pattern) Name() string { return p.name }

func (p *Pattern) Register(any) error { return ErrWildcardRegister }

func (p *Pattern) Check(Schema) error { return ErrWildcardRegister }

func (p *Pattern) Before(fn any) error {
	if _, err := series.Wrap(fn); err != nil {
		return err
	}
	for _, m := range p.reg.Resolve(p.name) {
		if err := m.Before(fn); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pattern) After(fn any) error {
	if _, err := series.Wrap(fn); err != nil {
		return err
	}
	for _, m := range p.reg.Resolve(p.name) {
		if err := m.After(fn); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pattern) Catch(fn CatchFunc) error {
	if fn == nil {
		return series.ErrNotCallable
	}
	for _, m := range p.reg.Resolve(p.name) {
		if err := m.Catch(fn); err != nil {
			return err
		}
	}
	return nil
}

// Call always rejects: a wildcard has no single main handler.
func (p *Pattern) Call(_ context.Context, _ any, cb Callback) *series.Future {
	fut := series.NewFuture()
	go func() {
		fut.Reject(ErrWildcardRegister)
		if cb != nil {
			cb(ErrWildcardRegister, nil)
		}
	}()
	return fut
}
