// pkg/core/load.go
package core

import (
	"cmp"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/joeydtaylor/steeze-project/pkg/series"
	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Unit is one init task declared on disk:
//
//	name  = "seed users"
//	task  = "db.seed"   # a RegisterTask name
//	level = 10          # higher runs first within a directory
type Unit struct {
	Name  string `toml:"name" yaml:"name"`
	Task  string `toml:"task" yaml:"task"`
	Level int    `toml:"level" yaml:"level"`
}

func isUnitFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml", ".yaml", ".yml":
		return true
	}
	return false
}

// LoadUnit reads and validates a single unit file.
func LoadUnit(path string) (Unit, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Unit{}, err
	}
	var u Unit
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = toml.Unmarshal(b, &u)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &u)
	default:
		return Unit{}, fmt.Errorf("unit %q: unsupported format", path)
	}
	if err != nil {
		return Unit{}, fmt.Errorf("unit %q: %w", path, err)
	}
	u.Task = strings.TrimSpace(u.Task)
	if u.Task == "" {
		return Unit{}, fmt.Errorf("unit %q: task is required", path)
	}
	if u.Name == "" {
		u.Name = u.Task
	}
	return u, nil
}

func unitHandler(path string) (*series.Handler, error) {
	u, err := LoadUnit(path)
	if err != nil {
		return nil, err
	}
	fn, ok := LookupTask(u.Task)
	if !ok {
		return nil, fmt.Errorf("unit %q: %w %q", path, ErrUnknownTask, u.Task)
	}
	h, err := asHandler(fn)
	if err != nil {
		return nil, fmt.Errorf("unit %q: %w", path, err)
	}
	return h.WithName(u.Name).WithSource(path).WithLevel(u.Level), nil
}

// LoadUnits turns path into init handlers. A file yields one handler; a
// directory yields every unit file beneath it, highest level first and in
// walk order among equal levels.
func LoadUnits(path string) ([]*series.Handler, error) {
	st, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	switch {
	case st.Mode().IsRegular():
		h, err := unitHandler(path)
		if err != nil {
			return nil, err
		}
		return []*series.Handler{h}, nil
	case st.IsDir():
	default:
		return nil, fmt.Errorf("%w: %q", ErrNotLoadable, path)
	}

	var list []*series.Handler
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isUnitFile(p) {
			return nil
		}
		h, err := unitHandler(p)
		if err != nil {
			return err
		}
		list = append(list, h)
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(list, func(a, b *series.Handler) int {
		return cmp.Compare(b.Level(), a.Level())
	})
	return list, nil
}
