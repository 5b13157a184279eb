package series

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWrap_Conventions(t *testing.T) {
	cases := []struct {
		name  string
		fn    any
		arity int
		conv  Convention
	}{
		{"sync with ctx", func(context.Context, any) (any, error) { return nil, nil }, 1, Synchronous},
		{"sync", func(any) (any, error) { return nil, nil }, 1, Synchronous},
		{"continuation with ctx", func(context.Context, any, Next) {}, 2, Continuation},
		{"continuation", func(any, func(error, any)) {}, 2, Continuation},
		{"future", func(any) *Future { return nil }, 1, Synchronous},
		{"hybrid", func(any, Next) *Future { return nil }, 2, Continuation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h, err := Wrap(tc.fn)
			require.NoError(t, err)
			require.Equal(t, tc.arity, h.Arity())
			require.Equal(t, tc.conv, h.Convention())
			require.Contains(t, h.Source(), "handler_test.go")
		})
	}
}

func TestWrap_RejectsNonFunctions(t *testing.T) {
	for _, v := range []any{nil, 123, "ok", (*Handler)(nil), (func(any) (any, error))(nil), func(int) int { return 0 }} {
		_, err := Wrap(v)
		require.ErrorIs(t, err, ErrNotCallable, "%T", v)
	}
}

func TestHandler_WithCopies(t *testing.T) {
	h := Func(func(_ context.Context, in any) (any, error) { return in, nil })
	named := h.WithName("math.add").WithLevel(5).WithSource("unit.toml")

	require.Equal(t, "anonymous", h.Name())
	require.Equal(t, 0, h.Level())
	require.Equal(t, "math.add", named.Name())
	require.Equal(t, 5, named.Level())
	require.Equal(t, "unit.toml", named.Source())
}

func TestFuture_SettlesOnce(t *testing.T) {
	f := NewFuture()
	var got []any
	f.Then(func(v any, _ error) { got = append(got, v) })

	require.True(t, f.Resolve(1))
	require.False(t, f.Resolve(2))
	require.False(t, f.Reject(context.Canceled))

	v, err, ok := f.Peek()
	require.True(t, ok)
	require.NoError(t, err)
	require.Equal(t, 1, v)

	f.Then(func(v any, _ error) { got = append(got, v) })
	require.Equal(t, []any{1, 1}, got)
}

func TestFuture_AwaitHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewFuture().Await(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
