package captionforge

import (
	"log/slog"
	"os"
)

// Logger is the leveled logging surface the engine uses for warnings
// (missing glyphs, auto-fit exhaustion, per-asset preload failures) and for
// trace-level operational detail. No third-party structured-logging library
// appears anywhere in the retrieved example corpus, so this is deliberately
// built on the standard library's log/slog — the idiomatic Go default where
// no ecosystem convention exists to follow instead.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// slogLogger adapts *slog.Logger to the Logger interface.
type slogLogger struct{ l *slog.Logger }

func (s slogLogger) Debug(msg string, args ...any) { s.l.Debug(msg, args...) }
func (s slogLogger) Warn(msg string, args ...any)  { s.l.Warn(msg, args...) }
func (s slogLogger) Error(msg string, args ...any) { s.l.Error(msg, args...) }

// defaultLogger writes leveled, structured text logs to stderr.
func defaultLogger() Logger {
	return slogLogger{slog.New(slog.NewTextHandler(os.Stderr, nil))}
}

// noopLogger discards everything; handy for tests.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// NoopLogger returns a Logger that discards all messages.
func NoopLogger() Logger { return noopLogger{} }
