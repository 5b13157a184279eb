// pkg/event/bus.go
package event

import (
	"fmt"
	"runtime/debug"
	"sync"

	"go.uber.org/zap"
)

// ErrorEvent carries errors no caller is waiting on.
const ErrorEvent = "error"

// Listener handles one emitted event. A returned error is re-emitted as
// ErrorEvent.
type Listener func(args ...any) error

type entry struct {
	id   uint64
	fn   Listener
	once bool
}

// Bus is a synchronous named-event emitter. Listeners run on the emitting
// goroutine in registration order.
type Bus struct {
	log *zap.Logger

	mu        sync.Mutex
	seq       uint64
	listeners map[string][]entry
}

func NewBus(log *zap.Logger) *Bus {
	if log == nil {
		log = zap.NewNop()
	}
	return &Bus{log: log, listeners: make(map[string][]entry)}
}

// On adds fn for event and returns a func that removes it.
func (b *Bus) On(event string, fn Listener) (off func()) {
	return b.add(event, fn, false)
}

// Once adds fn for the next emission of event only.
func (b *Bus) Once(event string, fn Listener) (off func()) {
	return b.add(event, fn, true)
}

func (b *Bus) add(event string, fn Listener, once bool) func() {
	if fn == nil {
		return func() {}
	}
	b.mu.Lock()
	b.seq++
	id := b.seq
	b.listeners[event] = append(b.listeners[event], entry{id: id, fn: fn, once: once})
	b.mu.Unlock()
	return func() { b.remove(event, id) }
}

func (b *Bus) remove(event string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.listeners[event]
	for i, e := range list {
		if e.id == id {
			b.listeners[event] = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	if len(b.listeners[event]) == 0 {
		delete(b.listeners, event)
	}
}

func (b *Bus) ListenerCount(event string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.listeners[event])
}

// Emit calls every listener of event and reports how many ran. An error
// event with no listener is logged instead of dropped.
func (b *Bus) Emit(event string, args ...any) int {
	b.mu.Lock()
	list := b.listeners[event]
	snapshot := make([]entry, len(list))
	copy(snapshot, list)
	kept := list[:0:0]
	for _, e := range list {
		if !e.once {
			kept = append(kept, e)
		}
	}
	if len(kept) == 0 {
		delete(b.listeners, event)
	} else {
		b.listeners[event] = kept
	}
	b.mu.Unlock()

	if len(snapshot) == 0 && event == ErrorEvent {
		b.log.Error("unhandled error event", zap.Any("args", args), errField(args))
		return 0
	}

	for _, e := range snapshot {
		if err := b.call(e.fn, args); err != nil {
			if event == ErrorEvent {
				b.log.Error("error listener failed", zap.Error(err))
				continue
			}
			b.Emit(ErrorEvent, fmt.Errorf("event %q listener: %w", event, err))
		}
	}
	return len(snapshot)
}

func (b *Bus) call(fn Listener, args []any) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("listener panicked: %v\n%s", rec, debug.Stack())
		}
	}()
	return fn(args...)
}

func errField(args []any) zap.Field {
	for _, a := range args {
		if err, ok := a.(error); ok {
			return zap.Error(err)
		}
	}
	return zap.Skip()
}
