package event

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestBus_OnAndOnce(t *testing.T) {
	b := NewBus(nil)
	var got []string
	b.On("ready", func(args ...any) error { got = append(got, "on:"+args[0].(string)); return nil })
	b.Once("ready", func(args ...any) error { got = append(got, "once:"+args[0].(string)); return nil })
	require.Equal(t, 2, b.ListenerCount("ready"))

	require.Equal(t, 2, b.Emit("ready", "a"))
	require.Equal(t, 1, b.Emit("ready", "b"))
	require.Equal(t, []string{"on:a", "once:a", "on:b"}, got)
	require.Equal(t, 1, b.ListenerCount("ready"))
}

func TestBus_Off(t *testing.T) {
	b := NewBus(nil)
	calls := 0
	off := b.On("x", func(...any) error { calls++; return nil })
	off()
	off()
	require.Zero(t, b.Emit("x"))
	require.Zero(t, calls)
	require.Zero(t, b.ListenerCount("x"))
}

func TestBus_ListenerErrorsBecomeErrorEvents(t *testing.T) {
	b := NewBus(nil)
	boom := errors.New("boom")
	var reported []error
	b.On(ErrorEvent, func(args ...any) error {
		reported = append(reported, args[0].(error))
		return nil
	})
	b.On("work", func(...any) error { return boom })
	b.On("work", func(...any) error { panic("broken") })

	b.Emit("work")
	require.Len(t, reported, 2)
	require.ErrorIs(t, reported[0], boom)
	require.ErrorContains(t, reported[1], "listener panicked: broken")
}

func TestBus_UnhandledErrorIsLogged(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	b := NewBus(zap.New(core))

	require.Zero(t, b.Emit(ErrorEvent, errors.New("lost")))
	entries := logs.FilterMessage("unhandled error event").All()
	require.Len(t, entries, 1)
	require.Equal(t, "lost", entries[0].ContextMap()["error"])

	b.On(ErrorEvent, func(...any) error { return nil })
	b.Emit(ErrorEvent, errors.New("handled"))
	require.Equal(t, 1, logs.FilterMessage("unhandled error event").Len())
}

func TestBus_ListenerMayRegisterDuringEmit(t *testing.T) {
	b := NewBus(nil)
	inner := 0
	b.Once("boot", func(...any) error {
		b.On("boot", func(...any) error { inner++; return nil })
		return nil
	})
	b.Emit("boot")
	require.Zero(t, inner)
	b.Emit("boot")
	require.Equal(t, 1, inner)
}
