// pkg/core/handlers.go
package core

import (
	"fmt"
	"maps"
	"slices"
	"sync"
)

// The task catalog names init tasks so unit files on disk can reference them.
var (
	catalogMu sync.RWMutex
	catalog   = map[string]any{}
)

// RegisterTask makes fn available under a name referenced by unit files. fn
// must be one of the task shapes Tasks().Add accepts.
func RegisterTask(name string, fn any) error {
	if _, err := asHandler(fn); err != nil {
		return fmt.Errorf("register task %q: %w", name, err)
	}
	catalogMu.Lock()
	catalog[name] = fn
	catalogMu.Unlock()
	return nil
}

// LookupTask retrieves a registered task by name.
func LookupTask(name string) (any, bool) {
	catalogMu.RLock()
	defer catalogMu.RUnlock()
	fn, ok := catalog[name]
	return fn, ok
}

// TaskNames lists the catalog, sorted.
func TaskNames() []string {
	catalogMu.RLock()
	defer catalogMu.RUnlock()
	return slices.Sorted(maps.Keys(catalog))
}
