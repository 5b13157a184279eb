package logger

import (
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Dir is where NewLog writes rotated files. LOG_DIR overrides it.
var Dir = "log"

func logDir() string {
	if v := strings.TrimSpace(os.Getenv("LOG_DIR")); v != "" {
		return v
	}
	return Dir
}

// NewLog tees JSON lines to stdout and to a rotated file named n under the
// log directory. LOG_LEVEL picks the level (default info).
func NewLog(n string) *zap.Logger {
	dir := logDir()
	_ = os.MkdirAll(dir, 0o755)

	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder

	level := zap.InfoLevel
	if v := strings.TrimSpace(os.Getenv("LOG_LEVEL")); v != "" {
		if l, err := zapcore.ParseLevel(v); err == nil {
			level = l
		}
	}

	w := zapcore.AddSync(&lumberjack.Logger{
		Filename:   filepath.Join(dir, n),
		MaxSize:    50, // MB
		MaxBackups: 3,
		MaxAge:     7, // days
	})

	core := zapcore.NewTee(
		zapcore.NewCore(zapcore.NewJSONEncoder(cfg), w, level),
		zapcore.NewCore(zapcore.NewJSONEncoder(cfg), zapcore.Lock(os.Stdout), level),
	)
	return zap.New(core)
}
