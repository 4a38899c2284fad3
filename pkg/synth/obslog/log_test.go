package obslog

import "testing"

func TestLoggerEnabledGatesOnLevel(t *testing.T) {
	l := New(1)
	if !l.Enabled(0) {
		t.Error("Enabled(0) = false, want true for a level-1 logger")
	}
	if !l.Enabled(1) {
		t.Error("Enabled(1) = false, want true for a level-1 logger")
	}
	if l.Enabled(2) {
		t.Error("Enabled(2) = true, want false for a level-1 logger")
	}
}

func TestLoggerSilentAtLevelZero(t *testing.T) {
	l := New(0)
	if l.Enabled(1) {
		t.Error("Enabled(1) = true, want false for a level-0 logger")
	}
	// Tracef above the configured level must be a silent no-op, not a panic.
	l.Tracef(1, "should not emit: %d", 42)
}

func TestNilLoggerIsSafe(t *testing.T) {
	var l *Logger
	if l.Enabled(0) {
		t.Error("Enabled() on a nil Logger = true, want false")
	}
	// A nil *Logger must tolerate Tracef calls (callers that skip
	// constructing a logger shouldn't need nil checks at every call site).
	l.Tracef(0, "no-op")
}

func TestNewWithPrefixAndWithRunIDChain(t *testing.T) {
	l := New(2)
	worker := l.NewWithPrefix("worker-0")
	tagged := worker.WithRunID("run-123")
	if !tagged.Enabled(2) {
		t.Error("Enabled(2) = false after chaining NewWithPrefix/WithRunID, want true")
	}
	// Tracef should not panic once attributes have been layered on.
	tagged.Tracef(1, "fence %v attempted", []int{1, 2})
}
