// Package log implements structured, leveled logging for blockview.
package log

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// defaultCallerUnwind is log.DefaultCaller plus the frames of this
// package's leveling wrapper.
const defaultCallerUnwind = 5

// Logger is a structured logger bound to a module name.
type Logger struct {
	base   log.Logger // Without the caller prefix; it is added per call depth.
	level  Level
	module string
	unwind int
}

// NewDefaultLogger returns a JSON logger writing INFO and above to stdout.
// Outside of tests, prefer the root logger from package `cmd/common`.
func NewDefaultLogger(module string) *Logger {
	logger, err := NewLogger(module, os.Stdout, FmtJSON, LevelInfo)
	if err != nil {
		// NewLogger only fails on an unknown format.
		panic(err)
	}
	return logger
}

// NewLogger creates a logger writing to w in the given format.
func NewLogger(module string, w io.Writer, format Format, lvl Level) (*Logger, error) {
	var base log.Logger
	switch format {
	case FmtLogfmt:
		base = log.NewLogfmtLogger(log.NewSyncWriter(w))
	case FmtJSON:
		base = log.NewJSONLogger(log.NewSyncWriter(w))
	default:
		return nil, fmt.Errorf("log: unsupported log format: %v", format)
	}
	base = log.WithPrefix(base, "ts", log.DefaultTimestampUTC)

	return &Logger{
		base:   base,
		level:  lvl,
		module: module,
		unwind: defaultCallerUnwind,
	}, nil
}

func (l *Logger) log(lvl Level, leveled func(log.Logger) log.Logger, msg string, keyvals []interface{}) {
	if l.level > lvl {
		return
	}
	logger := log.WithPrefix(l.base, "caller", log.Caller(l.unwind))
	keyvals = append([]interface{}{"module", l.module, "msg", msg}, keyvals...)
	_ = leveled(logger).Log(keyvals...)
}

// Debug logs msg and the key/value pairs at DEBUG level.
func (l *Logger) Debug(msg string, keyvals ...interface{}) {
	l.log(LevelDebug, level.Debug, msg, keyvals)
}

// Info logs msg and the key/value pairs at INFO level.
func (l *Logger) Info(msg string, keyvals ...interface{}) {
	l.log(LevelInfo, level.Info, msg, keyvals)
}

// Warn logs msg and the key/value pairs at WARN level.
func (l *Logger) Warn(msg string, keyvals ...interface{}) {
	l.log(LevelWarn, level.Warn, msg, keyvals)
}

// Error logs msg and the key/value pairs at ERROR level.
func (l *Logger) Error(msg string, keyvals ...interface{}) {
	l.log(LevelError, level.Error, msg, keyvals)
}

// With returns a copy of the logger that adds keyvals to every entry.
func (l *Logger) With(keyvals ...interface{}) *Logger {
	clone := *l
	clone.base = log.With(l.base, keyvals...)
	return &clone
}

// WithModule returns a copy of the logger with a different module name.
func (l *Logger) WithModule(module string) *Logger {
	clone := *l
	clone.module = module
	return &clone
}

// WithCallerUnwind returns a copy of the logger that reports the caller
// `unwind` frames up the stack. Used when the logger is called through
// another library's logging shim.
func (l *Logger) WithCallerUnwind(unwind int) *Logger {
	clone := *l
	clone.unwind = unwind
	return &clone
}

// Level returns the minimum level the logger emits.
func (l *Logger) Level() Level {
	return l.level
}

// writerLogger adapts a Logger into an io.Writer, one INFO entry per write.
type writerLogger struct {
	logger *Logger
}

func (w writerLogger) Write(p []byte) (int, error) {
	w.logger.Info(string(bytes.TrimRight(p, "\n")))
	return len(p), nil
}

// WriterIntoLogger returns an io.Writer that logs every write at INFO
// level. Useful for libraries that only accept a stdlib *log.Logger.
func WriterIntoLogger(logger *Logger) io.Writer {
	return writerLogger{logger: logger}
}
