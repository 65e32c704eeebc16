// Package logging provides loggers for the memstream library.
package logging

import (
	"context"
	"io"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is used where logging is needed and provides most common logger methods.
type Logger = *zap.SugaredLogger

// LoggerFactory retrieves a named logger for a given module.
type LoggerFactory func(module string) Logger

// NullLogger represents a singleton logger that discards all output.
//
//nolint:gochecknoglobals
var NullLogger = zap.NewNop().Sugar()

// Module returns an function that returns a logger for a given module when provided with a context.
func Module(module string) func(ctx context.Context) Logger {
	return func(ctx context.Context) Logger {
		if l, ok := ctx.Value(loggerCacheKey).(LoggerFactory); ok {
			return l(module)
		}

		return NullLogger
	}
}

type contextKey string

const loggerCacheKey contextKey = "logger"

// WithLogger returns a derived context with associated logger.
func WithLogger(ctx context.Context, l LoggerFactory) context.Context {
	return context.WithValue(ctx, loggerCacheKey, l)
}

// ToWriter returns LoggerFactory that uses given writer for log output
// (unadorned).
func ToWriter(w io.Writer) LoggerFactory {
	return func(module string) Logger {
		return zap.New(zapcore.NewCore(
			zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
				MessageKey:     "m",
				LineEnding:     zapcore.DefaultLineEnding,
				EncodeDuration: zapcore.StringDurationEncoder,
			}), zapcore.AddSync(w), zapcore.DebugLevel)).Sugar()
	}
}

// Broadcast is a logger that broadcasts each log message to multiple loggers.
func Broadcast(logger ...Logger) Logger {
	cores := make([]zapcore.Core, 0, len(logger))

	for _, l := range logger {
		cores = append(cores, l.Desugar().Core())
	}

	return zap.New(zapcore.NewTee(cores...)).Sugar()
}
