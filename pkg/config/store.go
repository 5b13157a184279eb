// Package config is the App's key/value configuration namespace. Keys are
// dotted paths ("http.addr") and, as with viper, case-insensitive.
package config

import (
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// MissingKeyError is returned by Get for keys that were never set.
type MissingKeyError struct {
	Key string
}

func (e *MissingKeyError) Error() string {
	return fmt.Sprintf("config field %q is undefined", e.Key)
}

type Store struct {
	log *zap.Logger

	mu sync.RWMutex
	v  *viper.Viper
}

type Option func(*Store)

func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// WithEnvPrefix lets PREFIX_HTTP_ADDR override "http.addr".
func WithEnvPrefix(prefix string) Option {
	return func(s *Store) {
		s.v.SetEnvPrefix(prefix)
		s.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		s.v.AutomaticEnv()
	}
}

// WithDefaults seeds values that any later Set, Merge or Load overrides.
func WithDefaults(defaults map[string]any) Option {
	return func(s *Store) {
		for k, v := range defaults {
			s.v.SetDefault(k, v)
		}
	}
}

func New(opts ...Option) *Store {
	s := &Store{log: zap.NewNop(), v: viper.New()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Get returns the value at name or a *MissingKeyError.
func (s *Store) Get(name string) (any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.v.IsSet(name) {
		return nil, &MissingKeyError{Key: name}
	}
	return s.v.Get(name), nil
}

// MustGet is Get for keys the caller cannot run without.
func (s *Store) MustGet(name string) any {
	v, err := s.Get(name)
	if err != nil {
		panic(err)
	}
	return v
}

func (s *Store) Has(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.v.IsSet(name)
}

func (s *Store) Set(name string, value any) {
	s.mu.Lock()
	s.v.Set(name, value)
	s.mu.Unlock()
	s.log.Debug("config set", zap.String("key", name))
}

// Merge deep-merges values into the store; existing keys not present in
// values are kept.
func (s *Store) Merge(values map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.v.MergeConfigMap(values); err != nil {
		return fmt.Errorf("merge config: %w", err)
	}
	return nil
}

// All returns a nested copy of every setting.
func (s *Store) All() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.v.AllSettings()
}

func (s *Store) GetString(name string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.v.GetString(name)
}

func (s *Store) GetInt(name string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.v.GetInt(name)
}

func (s *Store) GetBool(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.v.GetBool(name)
}
