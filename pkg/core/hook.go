package core

import (
	"context"

	"github.com/joeydtaylor/steeze-project/pkg/series"
)

// Hook and task shapes accepted by Extends, Tasks().Add, RegisterTask and Run:
//
//	func(ctx context.Context, app *App) error
//	func(ctx context.Context, app *App, done func(error))
//	func(ctx context.Context, app *App) *series.Future
//	func(app *App) error
//	*series.Handler
//
// plus every shape series.Wrap accepts. Init hooks do not thread values: each
// receives the App and passes its input through unchanged.

// appFrom returns the App a runner was started with.
func appFrom(ctx context.Context) *App {
	a, _ := series.HostFrom(ctx).(*App)
	return a
}

func asHandler(fn any) (*series.Handler, error) {
	switch v := fn.(type) {
	case func(context.Context, *App) error:
		if v == nil {
			return nil, series.ErrNotCallable
		}
		return series.Func(func(ctx context.Context, in any) (any, error) {
			return in, v(ctx, appFrom(ctx))
		}), nil
	case func(context.Context, *App, func(error)):
		if v == nil {
			return nil, series.ErrNotCallable
		}
		return series.Callback(func(ctx context.Context, in any, next series.Next) {
			v(ctx, appFrom(ctx), func(err error) { next(err, in) })
		}), nil
	case func(context.Context, *App) *series.Future:
		if v == nil {
			return nil, series.ErrNotCallable
		}
		return series.Async(func(ctx context.Context, _ any) *series.Future {
			return v(ctx, appFrom(ctx))
		}), nil
	case func(*App) error:
		if v == nil {
			return nil, series.ErrNotCallable
		}
		return series.Func(func(ctx context.Context, in any) (any, error) {
			return in, v(appFrom(ctx))
		}), nil
	}
	return series.Wrap(fn)
}
