package log

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/YuminosukeSato/supervised-learning/pkg/errors"
)

// ZerologLogger implements Logger on top of zerolog.
type ZerologLogger struct {
	zl    zerolog.Logger
	level Level
}

// NewZerologLogger writes JSON records at or above level to w.
func NewZerologLogger(w io.Writer, level Level) *ZerologLogger {
	zl := zerolog.New(w).Level(toZerologLevel(level)).With().Timestamp().Logger()
	return &ZerologLogger{zl: zl, level: level}
}

// NewConsoleLogger writes human readable records, for walkthrough output on a terminal.
func NewConsoleLogger(w io.Writer, level Level) *ZerologLogger {
	cw := zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}
	return NewZerologLogger(cw, level)
}

func (l *ZerologLogger) Debug(msg string, fields ...any) { l.emit(l.zl.Debug(), msg, fields) }
func (l *ZerologLogger) Info(msg string, fields ...any)  { l.emit(l.zl.Info(), msg, fields) }
func (l *ZerologLogger) Warn(msg string, fields ...any)  { l.emit(l.zl.Warn(), msg, fields) }
func (l *ZerologLogger) Error(msg string, fields ...any) { l.emit(l.zl.Error(), msg, fields) }

// With implements Logger.With.
func (l *ZerologLogger) With(fields ...any) Logger {
	err, rest := splitError(fields)
	ctx := l.zl.With()
	if err != nil {
		ctx = ctx.AnErr(ErrAttrKey, err)
	}
	if len(rest) > 0 {
		ctx = ctx.Fields(rest)
	}
	return &ZerologLogger{zl: ctx.Logger(), level: l.level}
}

// Enabled implements Logger.Enabled.
func (l *ZerologLogger) Enabled(_ context.Context, level Level) bool {
	return level >= l.level
}

func (l *ZerologLogger) emit(e *zerolog.Event, msg string, fields []any) {
	if e == nil {
		return
	}
	err, rest := splitError(fields)
	if err != nil {
		e = e.Stack().Err(err)
	}
	if len(rest) > 0 {
		e = e.Fields(rest)
	}
	e.Msg(msg)
}

// splitError pulls a leading error value out of the field list, and the value
// of an explicit "error" key wherever it appears.
func splitError(fields []any) (error, []any) {
	if len(fields) == 0 {
		return nil, nil
	}
	if err, ok := fields[0].(error); ok {
		return err, fields[1:]
	}
	for i := 0; i+1 < len(fields); i += 2 {
		if k, ok := fields[i].(string); ok && k == ErrAttrKey {
			if err, ok := fields[i+1].(error); ok {
				rest := append(append([]any{}, fields[:i]...), fields[i+2:]...)
				return err, rest
			}
		}
	}
	return nil, fields
}

func toZerologLevel(level Level) zerolog.Level {
	switch {
	case level <= LevelDebug:
		return zerolog.DebugLevel
	case level <= LevelInfo:
		return zerolog.InfoLevel
	case level <= LevelWarn:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}

var (
	globalMu     sync.RWMutex
	globalLogger Logger = NewZerologLogger(os.Stderr, LevelInfo)
)

// GetLogger returns the process-wide logger.
func GetLogger() Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalLogger
}

// GetLoggerWithName returns the process-wide logger tagged with a component name.
func GetLoggerWithName(name string) Logger {
	return GetLogger().With(ComponentKey, name)
}

// SetLogger replaces the process-wide logger and routes library warnings
// (errors.Warn) to it.
func SetLogger(l Logger) {
	globalMu.Lock()
	globalLogger = l
	globalMu.Unlock()
	errors.SetZerologWarnFunc(func(w error) {
		logWarning(GetLogger(), w)
	})
}

// SetupLogger configures the process-wide logger from a level name.
// console selects zerolog's human readable writer instead of JSON lines.
func SetupLogger(level string, w io.Writer, console bool) (Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	var l Logger
	if console {
		l = NewConsoleLogger(w, lvl)
	} else {
		l = NewZerologLogger(w, lvl)
	}
	SetLogger(l)
	return l, nil
}

func logWarning(l Logger, w error) {
	if zl, ok := l.(*ZerologLogger); ok {
		e := zl.zl.Warn()
		if obj, ok := w.(zerolog.LogObjectMarshaler); ok {
			e = e.Object("warning", obj)
		}
		e.Msg(w.Error())
		return
	}
	l.Warn(w.Error(), "warning", w.Error())
}
