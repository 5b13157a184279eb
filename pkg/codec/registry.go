package codec

import (
	"strings"
	"sync"
)

var (
	mu     sync.RWMutex
	codecs = map[string]Codec{
		"":     JSONStrict,
		"json": JSONStrict,
		"yaml": YAML,
	}
)

// Register makes c selectable by name from a route's codec field.
func Register(name string, c Codec) {
	mu.Lock()
	codecs[strings.ToLower(name)] = c
	mu.Unlock()
}

// Lookup returns the codec for name; the empty name is JSON.
func Lookup(name string) (Codec, bool) {
	mu.RLock()
	defer mu.RUnlock()
	c, ok := codecs[strings.ToLower(strings.TrimSpace(name))]
	return c, ok
}
