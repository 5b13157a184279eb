package main

import (
	"context"
	"maps"
	"slices"

	"github.com/joeydtaylor/steeze-project/pkg/core"
	"go.uber.org/zap"
)

// Tasks unit files can name in this binary. Programs embedding serverfx
// register their own with core.RegisterTask.
func init() {
	if err := core.RegisterTask("app.log-config", logConfig); err != nil {
		panic(err)
	}
}

func logConfig(_ context.Context, a *core.App) error {
	a.Logger().Info("config loaded", zap.Strings("keys", slices.Sorted(maps.Keys(a.Config.All()))))
	return nil
}
