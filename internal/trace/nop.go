package trace

// nopTracer is a no-op implementation for zero overhead when logging
// is disabled.
type nopTracer struct{}

func (nopTracer) Logf(Level, string, ...any) {}

func (nopTracer) Level() Level { return LevelOff }

func (nopTracer) Enabled() bool { return false }

// Nop is the package-level singleton nop tracer.
var Nop Tracer = nopTracer{}
