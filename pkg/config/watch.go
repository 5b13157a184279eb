// pkg/config/watch.go
package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce coalesces the burst of events editors produce on save.
const DefaultDebounce = 250 * time.Millisecond

// Watch reloads path whenever it changes on disk and then calls onChange with
// the reload outcome. It returns once the watcher is running; watching stops
// when ctx ends.
func (s *Store) Watch(ctx context.Context, path string, debounce time.Duration, onChange func(error)) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	// The directory survives rename-and-replace saves; the file may not.
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		_ = fsw.Close()
		return fmt.Errorf("watching directory %s: %w", filepath.Dir(abs), err)
	}

	go s.watchLoop(ctx, fsw, abs, debounce, onChange)
	return nil
}

func (s *Store) watchLoop(ctx context.Context, fsw *fsnotify.Watcher, path string, debounce time.Duration, onChange func(error)) {
	defer fsw.Close()

	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != path || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			timer.Reset(debounce)

		case <-timer.C:
			err := s.Load(path)
			if err != nil {
				s.log.Warn("config reload failed", zap.String("path", path), zap.Error(err))
			}
			if onChange != nil {
				onChange(err)
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			s.log.Warn("config watcher error", zap.Error(err))

		case <-ctx.Done():
			return
		}
	}
}
