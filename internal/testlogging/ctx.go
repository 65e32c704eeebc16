// Package testlogging implements logger that writes to testing.T log.
package testlogging

import (
	"context"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/kopia/memstream/logging"
)

// Context returns a context with attached logger that emits all log entries to go testing.T log output.
func Context(t *testing.T) context.Context {
	t.Helper()

	return ContextWithLevel(t, zapcore.DebugLevel)
}

// ContextWithLevel returns a context with attached logger that emits all log entries
// with given log level or above.
func ContextWithLevel(t *testing.T, level zapcore.Level) context.Context {
	t.Helper()

	return logging.WithLogger(context.Background(), func(module string) logging.Logger {
		return printfWithLevel(t.Logf, "", level)
	})
}

// NewTestLogger returns logger bound to the provided testing.T.
func NewTestLogger(t *testing.T) logging.Logger {
	t.Helper()

	return Printf(t.Logf, "")
}

// Printf returns a logger that uses given printf-style function to print log output.
func Printf(printf func(msg string, args ...interface{}), prefix string) logging.Logger {
	return printfWithLevel(printf, prefix, zapcore.DebugLevel)
}

func printfWithLevel(printf func(msg string, args ...interface{}), prefix string, level zapcore.Level) logging.Logger {
	return zap.New(zapcore.NewCore(
		zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
			MessageKey:     "m",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeDuration: zapcore.StringDurationEncoder,
		}),
		printfWriter{printf, prefix},
		level)).Sugar()
}

type printfWriter struct {
	printf func(msg string, args ...interface{})
	prefix string
}

func (w printfWriter) Write(p []byte) (int, error) {
	w.printf("%s%s", w.prefix, strings.TrimRight(string(p), "\n"))
	return len(p), nil
}

func (w printfWriter) Sync() error {
	return nil
}
