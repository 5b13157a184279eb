package method

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/joeydtaylor/steeze-project/pkg/series"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"pgregory.net/rapid"
)

func call(t *testing.T, m Builder, params any) (any, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	type outcome struct {
		result any
		err    error
	}
	cbs := make(chan outcome, 1)
	fut := m.Call(ctx, params, func(err error, result any) { cbs <- outcome{result, err} })

	v, err := fut.Await(ctx)
	require.NotErrorIs(t, err, context.DeadlineExceeded, "call did not settle")
	select {
	case o := <-cbs:
		require.Equal(t, err, o.err, "callback and future disagree")
		if err == nil {
			require.Equal(t, v, o.result, "callback and future disagree")
		}
	case <-ctx.Done():
		require.Fail(t, "callback never fired")
	}
	return v, err
}

func toInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case string:
		i, _ := strconv.Atoi(n)
		return i
	}
	return 0
}

func TestMethod_RejectsNonFunctions(t *testing.T) {
	m := New("bad")
	require.ErrorIs(t, m.Register(123), series.ErrNotCallable)
	require.ErrorIs(t, m.Before(nil), series.ErrNotCallable)
	require.ErrorIs(t, m.After("ok"), series.ErrNotCallable)
	require.ErrorIs(t, m.Catch(nil), series.ErrNotCallable)
	require.False(t, m.HasHandler())
}

func TestMethod_CallRegistered(t *testing.T) {
	m := New("swap")
	require.NoError(t, m.Register(func(in any, next series.Next) {
		p := in.(map[string]any)
		next(nil, map[string]any{"a": p["b"], "b": p["a"]})
	}))

	v, err := call(t, m, map[string]any{"a": 123, "b": 456})
	require.NoError(t, err)
	require.Equal(t, map[string]any{"a": 456, "b": 123}, v)
}

func TestMethod_CallWithoutHandler(t *testing.T) {
	_, err := call(t, New("nothing"), map[string]any{"a": 1})
	require.ErrorIs(t, err, ErrMissingHandler)

	var mh *MissingHandlerError
	require.ErrorAs(t, err, &mh)
	require.Equal(t, "nothing", mh.Method)
}

func TestMethod_BeforeAndAfterCompose(t *testing.T) {
	sum := func(in any) (any, error) {
		p := in.(map[string]any)
		return p["a"].(int) + p["b"].(int), nil
	}

	t.Run("after", func(t *testing.T) {
		m := New("sum")
		require.NoError(t, m.Register(sum))
		require.NoError(t, m.After(func(in any) (any, error) { return in.(int) + 1000, nil }))

		v, err := call(t, m, map[string]any{"a": 123, "b": 456})
		require.NoError(t, err)
		require.Equal(t, 1579, v)
	})

	t.Run("before and after", func(t *testing.T) {
		m := New("sum")
		require.NoError(t, m.Register(sum))
		require.NoError(t, m.Before(func(in any, next series.Next) {
			p := in.(map[string]any)
			p["a"], p["b"] = toInt(p["a"]), toInt(p["b"])
			next(nil, p)
		}))
		require.NoError(t, m.Before(func(_ context.Context, in any) *series.Future {
			return series.Go(func() (any, error) {
				p := in.(map[string]any)
				p["a"], p["b"] = p["a"].(int)+1000, p["b"].(int)+1000
				return p, nil
			})
		}))
		require.NoError(t, m.After(func(in any) (any, error) { return in.(int) + 1000, nil }))
		require.NoError(t, m.After(func(in any, next series.Next) {
			go next(nil, in.(int)+10000)
		}))

		params := map[string]any{"a": "123", "b": "456"}
		v, err := call(t, m, params)
		require.NoError(t, err)
		require.Equal(t, 1123+1456+1000+10000, v)
		require.Equal(t, map[string]any{"a": "123", "b": "456"}, params)
	})
}

func TestMethod_ErrorSkipsAfterHooksAndRunsCatch(t *testing.T) {
	boom := errors.New("just for test")
	var before, after atomic.Bool
	caught := make(chan []any, 2)

	m := New("fails")
	require.NoError(t, m.Register(func(any) (any, error) { panic(boom) }))
	require.NoError(t, m.Before(func(in any, next series.Next) {
		before.Store(true)
		go next(nil, in)
	}))
	require.NoError(t, m.After(func(in any) (any, error) {
		after.Store(true)
		return in, nil
	}))
	require.NoError(t, m.Catch(func(err error, params, result any) {
		caught <- []any{err, params, result}
	}))

	_, err := call(t, m, 123)
	require.ErrorIs(t, err, boom)
	require.True(t, before.Load())
	require.False(t, after.Load())

	got := <-caught
	require.ErrorIs(t, got[0].(error), boom)
	require.Equal(t, 123, got[1])
	require.Equal(t, 123, got[2])
}

func TestMethod_PanickingCatchDoesNotStopOthers(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	diags := make(chan error, 1)
	m := New("fails", WithLogger(zap.New(core)), WithDiagnostics(func(err error) { diags <- err }))

	var second atomic.Bool
	require.NoError(t, m.Register(func(any) (any, error) { return nil, errors.New("nope") }))
	require.NoError(t, m.Catch(func(error, any, any) { panic("observer broke") }))
	require.NoError(t, m.Catch(func(error, any, any) { second.Store(true) }))

	_, err := call(t, m, nil)
	require.EqualError(t, err, "nope")
	require.True(t, second.Load())

	var pe *series.PanicError
	require.ErrorAs(t, <-diags, &pe)
	require.Equal(t, "observer broke", pe.Value)
	require.Equal(t, 1, logs.FilterMessage("call catch function failed").Len())
}

func TestMethod_CheckSchema(t *testing.T) {
	m := New("check")
	require.NoError(t, m.Register(func(in any) (any, error) {
		p := in.(map[string]any)
		return p["a"].(string) + ":" + stringOr(p["b"], "undefined"), nil
	}))
	require.NoError(t, m.Check(Schema{
		"a": {Required: true, Validate: func(v any) bool {
			_, err := strconv.Atoi(v.(string))
			return err == nil
		}},
		"b": {Validate: func(v any) bool {
			s, ok := v.(string)
			return ok && len(s) > 0 && s[0] == '$'
		}},
	}))

	cases := []struct {
		name   string
		params map[string]any
		code   string
		param  string
		want   any
	}{
		{"missing", map[string]any{}, CodeMissingParameter, "a", nil},
		{"invalid a", map[string]any{"a": "a"}, CodeInvalidParameter, "a", nil},
		{"invalid b", map[string]any{"a": "123", "b": "bb"}, CodeInvalidParameter, "b", nil},
		{"ok", map[string]any{"a": "123", "b": "$b"}, "", "", "123:$b"},
		{"optional absent", map[string]any{"a": "123"}, "", "", "123:undefined"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v, err := call(t, m, tc.params)
			if tc.code == "" {
				require.NoError(t, err)
				require.Equal(t, tc.want, v)
				return
			}
			var pe *ParamError
			require.ErrorAs(t, err, &pe)
			require.Equal(t, tc.code, pe.Code)
			require.Equal(t, tc.param, pe.Name)
			require.Equal(t, "check", pe.Method)
		})
	}

	require.NoError(t, m.Check(nil))
	v, err := call(t, m, map[string]any{"a": "x", "b": "y"})
	require.NoError(t, err)
	require.Equal(t, "x:y", v)
}

func stringOr(v any, def string) string {
	if s, ok := v.(string); ok {
		return s
	}
	return def
}

func TestMethod_AmbiguousCompletion(t *testing.T) {
	m := New("ambiguous")
	require.NoError(t, m.Register(func(_ context.Context, in any, next series.Next) *series.Future {
		next(errors.New("just for test"), nil)
		return series.Resolved(in)
	}))

	_, err := call(t, m, map[string]any{"a": 1})
	require.ErrorIs(t, err, series.ErrAmbiguousCompletion)
}

func TestMethod_NeverSettlesInsideCall(t *testing.T) {
	m := New("fast")
	require.NoError(t, m.Register(func(in any) (any, error) { return in, nil }))

	// The callback only finishes once Call has returned; a synchronous
	// callback would deadlock here.
	returned := make(chan struct{})
	fired := make(chan struct{})
	fut := m.Call(context.Background(), 1, func(error, any) {
		<-returned
		close(fired)
	})
	close(returned)

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		require.Fail(t, "callback never fired")
	}
	v, err := fut.Await(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, v)
}

func TestMethod_ObserverSeesEveryCall(t *testing.T) {
	obs := &countingObserver{}
	m := New("observed", WithObserver(obs))
	require.NoError(t, m.Register(func(in any) (any, error) {
		if in == nil {
			return nil, errors.New("empty")
		}
		return in, nil
	}))

	_, err := call(t, m, 1)
	require.NoError(t, err)
	_, err = call(t, m, nil)
	require.Error(t, err)

	obs.mu.Lock()
	defer obs.mu.Unlock()
	require.Equal(t, 1, obs.ok)
	require.Equal(t, 1, obs.failed)
}

type countingObserver struct {
	mu         sync.Mutex
	ok, failed int
}

func (o *countingObserver) ObserveCall(_ string, _ time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err != nil {
		o.failed++
		return
	}
	o.ok++
}

func TestMethod_ConcurrentCalls(t *testing.T) {
	m := New("double")
	require.NoError(t, m.Register(func(in any, next series.Next) {
		go next(nil, in.(int)*2)
	}))

	var wg sync.WaitGroup
	results := make([]any, 32)
	errs := make([]error, 32)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = m.Call(context.Background(), i, nil).Await(context.Background())
		}()
	}
	wg.Wait()
	for i := range results {
		require.NoError(t, errs[i])
		require.Equal(t, i*2, results[i])
	}
}

// The handler chain may mutate what it receives without the caller's
// structure changing underneath it.
func TestProperty_CallerParamsAreNeverMutated(t *testing.T) {
	m := New("mutate")
	require.NoError(t, m.Before(func(in any) (any, error) {
		switch p := in.(type) {
		case map[string]any:
			p["injected"] = true
			delete(p, "k0")
		case []any:
			if len(p) > 0 {
				p[0] = "overwritten"
			}
		}
		return in, nil
	}))
	require.NoError(t, m.Register(func(in any) (any, error) { return in, nil }))

	rapid.Check(t, func(t *rapid.T) {
		var params, snapshot any
		if rapid.Bool().Draw(t, "map") {
			n := rapid.IntRange(0, 6).Draw(t, "n")
			p, s := map[string]any{}, map[string]any{}
			for i := range n {
				v := rapid.Int().Draw(t, "v")
				p["k"+strconv.Itoa(i)], s["k"+strconv.Itoa(i)] = v, v
			}
			params, snapshot = p, s
		} else {
			vals := rapid.SliceOf(rapid.Int()).Draw(t, "vals")
			p, s := make([]any, len(vals)), make([]any, len(vals))
			for i, v := range vals {
				p[i], s[i] = v, v
			}
			params, snapshot = p, s
		}

		if _, err := m.Call(context.Background(), params, nil).Await(context.Background()); err != nil {
			t.Fatalf("call failed: %v", err)
		}
		require.Equal(t, snapshot, params)
	})
}
