// Package logger wraps zap for hostgate. Output always goes to stderr:
// stdout carries CLI JSON and the MCP stdio transport.
package logger

import (
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the structured logger passed to stores, engines and handlers.
type Logger interface {
	Debug(msg string, fields ...zap.Field)
	Info(msg string, fields ...zap.Field)
	Warn(msg string, fields ...zap.Field)
	Error(msg string, fields ...zap.Field)

	With(fields ...zap.Field) Logger
	Sync() error
}

type zapLogger struct {
	z *zap.Logger
}

// New builds the process logger from the log_level and pretty_log config
// values. An unrecognized level falls back to info.
func New(level string, pretty bool) (Logger, error) {
	cfg := zap.NewProductionConfig()
	if pretty {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.Level = zap.NewAtomicLevelAt(parseLevel(level))

	z, err := cfg.Build(zap.AddStacktrace(zapcore.FatalLevel))
	if err != nil {
		return nil, err
	}
	return Wrap(z), nil
}

// Wrap adapts an existing zap logger, e.g. an observer core in tests.
func Wrap(z *zap.Logger) Logger {
	return &zapLogger{z: z}
}

// NewNop discards everything.
func NewNop() Logger {
	return Wrap(zap.NewNop())
}

func parseLevel(level string) zapcore.Level {
	lvl, err := zapcore.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl < zapcore.DebugLevel || lvl > zapcore.ErrorLevel {
		return zapcore.InfoLevel
	}
	return lvl
}

func (l *zapLogger) Debug(msg string, fields ...zap.Field) { l.z.Debug(msg, fields...) }
func (l *zapLogger) Info(msg string, fields ...zap.Field)  { l.z.Info(msg, fields...) }
func (l *zapLogger) Warn(msg string, fields ...zap.Field)  { l.z.Warn(msg, fields...) }
func (l *zapLogger) Error(msg string, fields ...zap.Field) { l.z.Error(msg, fields...) }

func (l *zapLogger) With(fields ...zap.Field) Logger { return Wrap(l.z.With(fields...)) }

func (l *zapLogger) Sync() error { return l.z.Sync() }

// Field helpers used across hostgate, so callers need not import zap.
func String(key, val string) zap.Field                 { return zap.String(key, val) }
func Strings(key string, val []string) zap.Field       { return zap.Strings(key, val) }
func Int(key string, val int) zap.Field                { return zap.Int(key, val) }
func Int64(key string, val int64) zap.Field            { return zap.Int64(key, val) }
func Duration(key string, val time.Duration) zap.Field { return zap.Duration(key, val) }
func Any(key string, val any) zap.Field                { return zap.Any(key, val) }
func Error(err error) zap.Field                        { return zap.Error(err) }
