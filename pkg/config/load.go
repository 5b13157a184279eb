// pkg/config/load.go
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Decode parses a config document, choosing the format from path's extension.
func Decode(path string, b []byte) (map[string]any, error) {
	out := map[string]any{}
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = toml.Unmarshal(b, &out)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &out)
	case ".json":
		err = json.Unmarshal(b, &out)
	default:
		return nil, fmt.Errorf("unsupported config format %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Load reads path and merges it over the current values.
func (s *Store) Load(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to load config file %q: %w", path, err)
	}
	values, err := Decode(path, b)
	if err != nil {
		return fmt.Errorf("failed to load config file %q: %w", path, err)
	}
	if err := s.Merge(values); err != nil {
		return fmt.Errorf("failed to load config file %q: %w", path, err)
	}
	s.log.Info("config loaded", zap.String("path", path), zap.Int("keys", len(values)))
	return nil
}
