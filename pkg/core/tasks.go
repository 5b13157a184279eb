package core

import (
	"fmt"
	"slices"

	"github.com/joeydtaylor/steeze-project/pkg/series"
	"go.uber.org/zap"
)

// TaskQueue holds init tasks in the order they run. It shares the App's lock.
type TaskQueue struct {
	app  *App
	list []*series.Handler
}

// Add queues fn, any hook shape. Only valid before Init.
func (q *TaskQueue) Add(fn any) error {
	h, err := asHandler(fn)
	if err != nil {
		return fmt.Errorf("init task: %w", err)
	}
	return q.push(h)
}

// Load queues the unit file at path, or every unit under a directory ordered
// by descending level.
func (q *TaskQueue) Load(path string) error {
	if err := q.app.mutable(); err != nil {
		return err
	}
	list, err := LoadUnits(path)
	if err != nil {
		return err
	}
	q.app.log.Debug("init load", zap.String("path", path), zap.Int("units", len(list)))
	return q.push(list...)
}

func (q *TaskQueue) push(hs ...*series.Handler) error {
	q.app.mu.Lock()
	defer q.app.mu.Unlock()
	if err := q.app.mutable(); err != nil {
		return err
	}
	for _, h := range hs {
		q.app.log.Debug("init add", zap.String("task", h.Name()), zap.String("source", h.Source()))
	}
	q.list = append(q.list, hs...)
	return nil
}

func (q *TaskQueue) Len() int {
	q.app.mu.Lock()
	defer q.app.mu.Unlock()
	return len(q.list)
}

// snapshot must be called with the App lock held.
func (q *TaskQueue) snapshot() []*series.Handler {
	return slices.Clone(q.list)
}
