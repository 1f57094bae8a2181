package trace

import "fmt"

// Level controls logging verbosity.
type Level uint8

const (
	// LevelOff disables logging.
	LevelOff Level = iota
	// LevelError emits only failures.
	LevelError
	// LevelWarn adds degradation notices (fallbacks, remapped routes).
	LevelWarn
	// LevelInfo adds cycle boundaries and emit summaries.
	LevelInfo
	// LevelDebug emits everything including worker chatter.
	LevelDebug
)

// String returns the string representation of Level.
func (l Level) String() string {
	switch l {
	case LevelOff:
		return "off"
	case LevelError:
		return "error"
	case LevelWarn:
		return "warn"
	case LevelInfo:
		return "info"
	case LevelDebug:
		return "debug"
	default:
		return "unknown"
	}
}

// ParseLevel converts a string to a Level.
func ParseLevel(s string) (Level, error) {
	switch s {
	case "off", "OFF":
		return LevelOff, nil
	case "error", "ERROR":
		return LevelError, nil
	case "warn", "WARN":
		return LevelWarn, nil
	case "info", "INFO":
		return LevelInfo, nil
	case "debug", "DEBUG":
		return LevelDebug, nil
	default:
		return LevelOff, fmt.Errorf("invalid log level: %q (expected: off|error|warn|info|debug)", s)
	}
}
