package worker

import (
	"fmt"

	"ember/internal/compilerapi"
	"ember/internal/trace"
)

// Kind discriminates the message variants of the worker protocol.
type Kind uint8

const (
	// KindInit configures the worker. Sent exactly once per process.
	KindInit Kind = iota + 1
	// KindUpdate starts one semantic pass. Sent once per build cycle.
	KindUpdate
	// KindLog carries worker output back to the driver.
	KindLog
)

func (k Kind) String() string {
	switch k {
	case KindInit:
		return "init"
	case KindUpdate:
		return "update"
	case KindLog:
		return "log"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// InitMessage is the one-time worker configuration.
type InitMessage struct {
	Options          compilerapi.Options
	BasePath         string
	Mode             compilerapi.Mode
	RootNames        []string
	PathReplacements map[string]string
}

// UpdateMessage hands the worker the inputs of one build cycle.
type UpdateMessage struct {
	RootNames    []string
	ChangedFiles []string
}

// LogMessage is worker output forwarded to the driver's tracer.
type LogMessage struct {
	Level trace.Level
	Text  string
}

// Envelope is the wire representation: a tag plus exactly one payload
// matching it. Encoded as msgpack on the worker's pipe.
type Envelope struct {
	Kind   Kind
	Init   *InitMessage   `msgpack:",omitempty"`
	Update *UpdateMessage `msgpack:",omitempty"`
	Log    *LogMessage    `msgpack:",omitempty"`
}

// ProtocolError reports a message that violates the worker contract.
// This is a programming error, not a recoverable condition.
type ProtocolError struct {
	Got  Kind
	Want string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("worker protocol violation: received %s message, expected %s", e.Got, e.Want)
}

// validate checks that the envelope carries exactly the payload its
// tag announces.
func (env *Envelope) validate() error {
	switch env.Kind {
	case KindInit:
		if env.Init == nil || env.Update != nil || env.Log != nil {
			return fmt.Errorf("malformed init envelope")
		}
	case KindUpdate:
		if env.Update == nil || env.Init != nil || env.Log != nil {
			return fmt.Errorf("malformed update envelope")
		}
	case KindLog:
		if env.Log == nil || env.Init != nil || env.Update != nil {
			return fmt.Errorf("malformed log envelope")
		}
	default:
		return fmt.Errorf("unknown message kind %d", env.Kind)
	}
	return nil
}
