package logger

import (
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// ProvideLogger is the process logger, rotated into system.log.
func ProvideLogger() *zap.Logger { return NewLog("system.log") }

func ProvideLoggerMiddleware() *Middleware { return NewMiddleware(nil) }

var Module = fx.Options(
	fx.Provide(ProvideLoggerMiddleware),
	fx.Provide(ProvideLogger),
)
