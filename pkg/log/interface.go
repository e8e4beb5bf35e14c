// Package log provides the structured logging interface used by estimators
// and walkthroughs.
//
// The interface is small and slog-shaped so that the zerolog-backed default
// implementation and the capturing TestLogger are interchangeable:
//
//	logger := log.GetLogger().With(log.ModelNameKey, "LogisticRegression")
//	logger.Info("Training started",
//	    log.OperationKey, log.OperationFit,
//	    log.SamplesKey, 512,
//	    log.FeaturesKey, 30,
//	)
package log

import (
	"context"
	"strings"

	"github.com/YuminosukeSato/supervised-learning/pkg/errors"
)

// Logger defines a structured logging interface compatible with Go's log/slog.
//
// fields are alternating key-value pairs. For Error, a leading error value is
// recorded under the "error" key together with its stack trace.
type Logger interface {
	Debug(msg string, fields ...any)
	Info(msg string, fields ...any)
	Warn(msg string, fields ...any)
	Error(msg string, fields ...any)

	// With returns a Logger that adds fields to every record.
	With(fields ...any) Logger

	// Enabled reports whether records at level are emitted.
	Enabled(ctx context.Context, level Level) bool
}

// Level represents a logging level, with values compatible with slog.Level.
type Level int

const (
	LevelDebug Level = -4
	LevelInfo  Level = 0
	LevelWarn  Level = 4
	LevelError Level = 8
)

// String returns the string representation of the log level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel maps "debug", "info", "warn" and "error" (any case) to a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, errors.NewValidationError("log-level", "must be one of debug, info, warn, error", s)
	}
}
