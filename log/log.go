// Package log provides the structured logger used by synth.
//
// A Logger is an immutable *slog.Logger configured with functional options:
//
//	logger := log.Make(os.Stderr,
//	    log.WithLevel(log.LevelDebug),
//	    log.WithFormat(log.FormatJSON))
//	logger.Debug("library loaded", slog.String("name", "humanize"))
//
// The package keeps a default logger used when no other is configured. It
// writes warnings and errors to standard error.
package log

import (
	"context"
	"io"
	"log/slog"
	"os"
	"runtime"
	"sync/atomic"
	"time"
)

// Logger wraps a *slog.Logger together with the configuration it was built
// from. The zero Logger discards everything.
type Logger struct {
	*slog.Logger
	config
}

// Make creates a Logger writing to w.
func Make(w io.Writer, opts ...Option) Logger {
	cfg := makeConfig(w, opts...)
	return Logger{Logger: slog.New(cfg.handler()), config: cfg}
}

// Wrap returns a copy of l with opts applied on top of its configuration.
func (l Logger) Wrap(opts ...Option) Logger {
	if l.Logger == nil {
		return Make(nil, opts...)
	}
	cfg := l.config.apply(opts...)
	return Logger{Logger: slog.New(cfg.handler()), config: cfg}
}

// With returns a copy of l that adds attrs to every record.
func (l Logger) With(attrs ...slog.Attr) Logger {
	if l.Logger == nil {
		return l
	}
	return Logger{Logger: slog.New(l.Handler().WithAttrs(attrs)), config: l.config}
}

// Level returns the minimum level of emitted records.
func (l Logger) Level() Level {
	if l.Logger == nil {
		return DefaultLevel
	}
	return l.level
}

// Enabled reports whether records at level would be emitted.
func (l Logger) Enabled(level Level) bool {
	return l.Logger != nil && l.Handler().Enabled(context.Background(), slog.Level(level))
}

// Trace logs at LevelTrace.
func (l Logger) Trace(msg string, attrs ...slog.Attr) { l.log(LevelTrace, msg, attrs) }

// Debug logs at LevelDebug.
func (l Logger) Debug(msg string, attrs ...slog.Attr) { l.log(LevelDebug, msg, attrs) }

// Info logs at LevelInfo.
func (l Logger) Info(msg string, attrs ...slog.Attr) { l.log(LevelInfo, msg, attrs) }

// Warn logs at LevelWarn.
func (l Logger) Warn(msg string, attrs ...slog.Attr) { l.log(LevelWarn, msg, attrs) }

// Error logs at LevelError.
func (l Logger) Error(msg string, attrs ...slog.Attr) { l.log(LevelError, msg, attrs) }

func (l Logger) log(level Level, msg string, attrs []slog.Attr) {
	if !l.Enabled(level) {
		return
	}
	var pcs [1]uintptr
	// Skip runtime.Callers, log and the exported level method.
	runtime.Callers(3, pcs[:])
	r := slog.NewRecord(time.Now(), slog.Level(level), msg, pcs[0])
	r.AddAttrs(attrs...)
	_ = l.Handler().Handle(context.Background(), r)
}

var defaultLog atomic.Pointer[Logger]

func init() {
	l := Make(os.Stderr)
	defaultLog.Store(&l)
}

// Default returns the package default logger.
func Default() Logger {
	return *defaultLog.Load()
}

// SetDefault replaces the package default logger.
func SetDefault(l Logger) {
	defaultLog.Store(&l)
}

// Config applies opts to the package default logger.
func Config(opts ...Option) {
	l := Default().Wrap(opts...)
	defaultLog.Store(&l)
}

// Debug logs at LevelDebug on the default logger.
func Debug(msg string, attrs ...slog.Attr) { Default().log(LevelDebug, msg, attrs) }

// Info logs at LevelInfo on the default logger.
func Info(msg string, attrs ...slog.Attr) { Default().log(LevelInfo, msg, attrs) }

// Warn logs at LevelWarn on the default logger.
func Warn(msg string, attrs ...slog.Attr) { Default().log(LevelWarn, msg, attrs) }

// Error logs at LevelError on the default logger.
func Error(msg string, attrs ...slog.Attr) { Default().log(LevelError, msg, attrs) }
