package trace

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// Tracer is the sink for orchestrator and worker log output.
type Tracer interface {
	// Logf records one event. Must be goroutine-safe: worker Log
	// messages arrive on their own reader goroutine.
	Logf(level Level, format string, args ...any)

	// Level returns the current verbosity.
	Level() Level

	// Enabled returns true if logging is active (Level > LevelOff).
	Enabled() bool
}

// StreamTracer writes events immediately to an io.Writer.
type StreamTracer struct {
	mu    sync.Mutex
	w     io.Writer
	level Level
}

// NewStreamTracer creates a StreamTracer with the given verbosity.
func NewStreamTracer(w io.Writer, level Level) *StreamTracer {
	return &StreamTracer{w: w, level: level}
}

// Logf writes one event line.
func (t *StreamTracer) Logf(level Level, format string, args ...any) {
	if level > t.level || t.level == LevelOff {
		return
	}
	line := fmt.Sprintf("%s %-5s %s\n",
		time.Now().Format("15:04:05.000"), level.String(), fmt.Sprintf(format, args...))

	t.mu.Lock()
	defer t.mu.Unlock()
	// Best-effort write: logging must never disrupt a build cycle.
	_, _ = t.w.Write([]byte(line))
}

// Level returns the configured verbosity.
func (t *StreamTracer) Level() Level { return t.level }

// Enabled returns true when the tracer emits anything at all.
func (t *StreamTracer) Enabled() bool { return t.level > LevelOff }
