// Package logger is the process-wide structured logger. It wraps zap so
// call sites keep the scope/message/fields signature the rest of the
// engine already uses, while encoding, level filtering and sinks are zap's.
package logger

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level mirrors zap's levels under the names the rest of the engine uses.
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

func (l Level) zapLevel() zapcore.Level {
	switch l {
	case DEBUG:
		return zapcore.DebugLevel
	case WARN:
		return zapcore.WarnLevel
	case ERROR:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

var global *zap.Logger

// Init opens logPath (creating its directory if needed) and builds the
// global zap logger at the given level. Falls back to stdout if the file
// can't be opened so a broken log path never takes the process down.
func Init(logPath string, level Level, serviceName string) error {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level.zapLevel())
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.OutputPaths = []string{logPath}
	cfg.ErrorOutputPaths = []string{"stderr"}

	if logDir := filepath.Dir(logPath); logDir != "." {
		if err := os.MkdirAll(logDir, 0755); err != nil {
			cfg.OutputPaths = []string{"stdout"}
		}
	}

	built, err := cfg.Build(zap.Fields(zap.String("service", serviceName)))
	if err != nil {
		// Degrade to stdout-only rather than leaving global nil.
		fallback := zap.NewProductionConfig()
		fallback.OutputPaths = []string{"stdout"}
		fallback.Level = zap.NewAtomicLevelAt(level.zapLevel())
		built, err = fallback.Build(zap.Fields(zap.String("service", serviceName)))
		if err != nil {
			return err
		}
	}
	global = built
	return nil
}

// Named returns a child logger scoped under the given component, for
// packages that want to hold their own *zap.Logger instead of going
// through the scope-string global functions below.
func Named(scope string) *zap.Logger {
	if global == nil {
		return zap.NewNop()
	}
	return global.Named(scope)
}

func fields(ctx map[string]interface{}) []zap.Field {
	if len(ctx) == 0 {
		return nil
	}
	out := make([]zap.Field, 0, len(ctx))
	for k, v := range ctx {
		out = append(out, zap.Any(k, v))
	}
	return out
}

func Info(scope string, msg string, args ...map[string]interface{}) {
	if global == nil {
		return
	}
	global.Named(scope).Info(msg, fields(getCtx(args))...)
}

func Error(scope string, msg string, args ...map[string]interface{}) {
	if global == nil {
		return
	}
	global.Named(scope).Error(msg, fields(getCtx(args))...)
}

func Debug(scope string, msg string, args ...map[string]interface{}) {
	if global == nil {
		return
	}
	global.Named(scope).Debug(msg, fields(getCtx(args))...)
}

func Warn(scope string, msg string, args ...map[string]interface{}) {
	if global == nil {
		return
	}
	global.Named(scope).Warn(msg, fields(getCtx(args))...)
}

func getCtx(args []map[string]interface{}) map[string]interface{} {
	if len(args) > 0 {
		return args[0]
	}
	return nil
}

// Sync flushes buffered log entries; call before process exit.
func Sync() {
	if global != nil {
		_ = global.Sync()
	}
}
