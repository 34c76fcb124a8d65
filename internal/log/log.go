// Package log wraps zap with request-scoped trace fields so every log line
// emitted while handling a request can be correlated with it.
package log

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Config struct {
	Level  string `conf:"level" yaml:"level" json:"level"`   // debug, info, warn, error
	Format string `conf:"format" yaml:"format" json:"format"` // json, console
}

func DefaultConfig() Config {
	return Config{Level: "info", Format: "json"}
}

type Field = zapcore.Field

func Any(key string, value any) Field { return zap.Any(key, value) }
func String(key, value string) Field  { return zap.String(key, value) }
func Int(key string, value int) Field { return zap.Int(key, value) }
func Bool(key string, value bool) Field { return zap.Bool(key, value) }
func Cause(err error) Field           { return zap.Error(err) }

// Hook contributes extra fields derived from a context to every log line.
type Hook interface {
	Apply(ctx context.Context, msg string) []Field
}

type HookFunc func(ctx context.Context, msg string) []Field

func (f HookFunc) Apply(ctx context.Context, msg string) []Field {
	if ctx == nil {
		return nil
	}

	return f(ctx, msg)
}

var (
	mu       sync.RWMutex
	logger   = zap.Must(zap.NewProduction())
	hooks    = []Hook{HookFunc(traceFields)}
	levelVar zapcore.Level
)

// SetGlobalConfig rebuilds the process-wide logger from Config.
func SetGlobalConfig(cfg Config) {
	level := zapcore.InfoLevel
	_ = level.UnmarshalText([]byte(cfg.Level))

	zcfg := zap.NewProductionConfig()
	if cfg.Format == "console" {
		zcfg = zap.NewDevelopmentConfig()
	}

	zcfg.Level = zap.NewAtomicLevelAt(level)

	built, err := zcfg.Build()
	if err != nil {
		return
	}

	mu.Lock()
	logger = built
	levelVar = level
	mu.Unlock()
}

func GetGlobalLogger() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()

	return logger
}

func DebugEnabled(ctx context.Context) bool {
	mu.RLock()
	defer mu.RUnlock()

	return logger.Core().Enabled(zapcore.DebugLevel)
}

func fieldsFor(ctx context.Context, msg string, extra []Field) []Field {
	fields := make([]Field, 0, len(extra)+2)
	for _, h := range hooks {
		fields = append(fields, h.Apply(ctx, msg)...)
	}

	return append(fields, extra...)
}

func Debug(ctx context.Context, msg string, fields ...Field) {
	GetGlobalLogger().Debug(msg, fieldsFor(ctx, msg, fields)...)
}

func Info(ctx context.Context, msg string, fields ...Field) {
	GetGlobalLogger().Info(msg, fieldsFor(ctx, msg, fields)...)
}

func Warn(ctx context.Context, msg string, fields ...Field) {
	GetGlobalLogger().Warn(msg, fieldsFor(ctx, msg, fields)...)
}

func Error(ctx context.Context, msg string, fields ...Field) {
	GetGlobalLogger().Error(msg, fieldsFor(ctx, msg, fields)...)
}
