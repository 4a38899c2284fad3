// Package obslog is the exact-synthesis engine's opt-in trace facility: a
// single numeric verbosity level (0-3) gates structured log emission, so
// the driver, CEGAR loop, and parallel workers can each log at a
// different level of detail without separate flags. Records carry
// key/value attributes so callers (and log aggregators) can filter on
// run_id or worker.
package obslog

import (
	"context"
	"fmt"
	"log/slog"
	"os"
)

// Logger gates structured trace output by a configured verbosity level;
// level 0 means silent. Safe for concurrent use: fields are set once at
// construction and never mutated afterward, matching slog.Logger's own
// immutable-handle idiom.
type Logger struct {
	level int
	slog  *slog.Logger
}

// New builds a Logger at the given verbosity level, writing JSON-formatted
// records to stderr with a "component=synth" attribute.
func New(level int) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})
	return &Logger{level: level, slog: slog.New(handler).With("component", "synth")}
}

// NewWithPrefix builds a Logger carrying an additional attribute, used by
// the parallel driver to tag each worker's log lines with a worker id
// (e.g. "worker", 3) so interleaved goroutine output stays attributable.
func (l *Logger) NewWithPrefix(tag string) *Logger {
	return &Logger{level: l.level, slog: l.slog.With("worker", tag)}
}

// WithRunID returns a Logger tagging every subsequent record with run_id,
// letting a caller correlate one synthesis attempt's log lines (including
// every parallel worker's) across interleaved output.
func (l *Logger) WithRunID(runID string) *Logger {
	return &Logger{level: l.level, slog: l.slog.With("run_id", runID)}
}

// Tracef logs format/args at minVerbosity as a single "msg" attribute: a
// no-op unless the logger's configured level is at least minVerbosity.
func (l *Logger) Tracef(minVerbosity int, format string, args ...any) {
	if l == nil || l.level < minVerbosity {
		return
	}
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	l.slog.Log(context.Background(), slog.LevelDebug, msg)
}

// Enabled reports whether a trace call at minVerbosity would emit,
// letting callers skip building an expensive log argument.
func (l *Logger) Enabled(minVerbosity int) bool {
	return l != nil && l.level >= minVerbosity
}
