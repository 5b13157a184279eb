package manifest

import (
	"errors"
	"fmt"
	"os"

	toml "github.com/pelletier/go-toml/v2"
)

// Config is the top-level manifest: the routes the gateway mounts.
type Config struct {
	Routes []Route `toml:"route"`
}

// Validate normalizes every route in place and rejects duplicates.
func (c *Config) Validate() error {
	if len(c.Routes) == 0 {
		return errors.New("no routes defined")
	}
	seen := make(map[string]int, len(c.Routes))
	for i := range c.Routes {
		rt := &c.Routes[i]
		if err := rt.normalize(); err != nil {
			return fmt.Errorf("route %d: %w", i, err)
		}
		if err := rt.validate(); err != nil {
			return fmt.Errorf("route %d (%s %s): %w", i, rt.Method, rt.Path, err)
		}
		key := rt.Method + " " + rt.Path
		if j, dup := seen[key]; dup {
			return fmt.Errorf("route %d (%s): duplicates route %d", i, key, j)
		}
		seen[key] = i
	}
	return nil
}

// Load reads and validates a TOML manifest.
func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return Parse(b)
}

func Parse(b []byte) (Config, error) {
	var cfg Config
	if err := toml.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("manifest: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("manifest: %w", err)
	}
	return cfg, nil
}
