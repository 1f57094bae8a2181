package diag

// Severity defines the importance of a diagnostic.
type Severity uint8

const (
	// SevInfo is for informational diagnostics.
	SevInfo Severity = iota
	// SevWarning is for warning diagnostics.
	SevWarning
	SevError
)

func (s Severity) String() string {
	switch s {
	case SevInfo:
		return "INFO"
	case SevWarning:
		return "WARNING"
	case SevError:
		return "ERROR"
	}
	return "UNKNOWN"
}

// Phase tags a diagnostic with the build phase that produced it.
type Phase uint8

const (
	// PhaseOptions covers compiler option validation (first run only).
	PhaseOptions Phase = iota
	// PhaseStructural covers structural loading of the program.
	PhaseStructural
	// PhaseSyntactic covers per-file syntax checks.
	PhaseSyntactic
	// PhaseSemantic covers type checking and other semantic analysis.
	PhaseSemantic
	// PhaseEmit covers output generation.
	PhaseEmit
	// PhaseFatal marks diagnostics recovered from a compiler failure.
	PhaseFatal
)

func (p Phase) String() string {
	switch p {
	case PhaseOptions:
		return "options"
	case PhaseStructural:
		return "structural"
	case PhaseSyntactic:
		return "syntactic"
	case PhaseSemantic:
		return "semantic"
	case PhaseEmit:
		return "emit"
	case PhaseFatal:
		return "fatal"
	}
	return "unknown"
}

// Diagnostic is a single finding from one build cycle.
// File is empty for diagnostics not attached to a particular input.
type Diagnostic struct {
	Severity Severity
	Code     Code
	Phase    Phase
	Message  string
	File     string
}
