// Package worker manages the out-of-process type checker: spawning,
// the msgpack message protocol, crash detection and fallback, and the
// worker-side serve loop.
package worker

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/vmihailenco/msgpack/v5"

	"ember/internal/trace"
)

// State is the channel lifecycle state.
type State uint8

const (
	// StateIdle means no worker process exists yet.
	StateIdle State = iota
	// StateStarting means the process is being spawned.
	StateStarting
	// StateReady means the process handle exists and messages may be
	// sent. No handshake is required.
	StateReady
	// StateTerminated means the driver shut the worker down.
	StateTerminated
	// StateCrashed means the worker exited on its own.
	StateCrashed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateReady:
		return "ready"
	case StateTerminated:
		return "terminated"
	case StateCrashed:
		return "crashed"
	}
	return "unknown"
}

// listenFlag tells the spawned worker to start listening immediately.
const listenFlag = "--listen"

// Channel drives one worker process. All methods are called from the
// orchestrator's single driver goroutine; the exit watcher and log
// reader run on their own goroutines and synchronize through mu.
type Channel struct {
	tracer trace.Tracer

	mu       sync.Mutex
	state    State
	cmd      *exec.Cmd
	stdin    io.WriteCloser
	enc      *msgpack.Encoder
	initSent bool
	// fallback is durable for the rest of the run: once set, semantic
	// checking stays on the main thread.
	fallback bool
}

// NewChannel creates an idle channel logging through tracer.
func NewChannel(tracer trace.Tracer) *Channel {
	if tracer == nil {
		tracer = trace.Nop
	}
	return &Channel{tracer: tracer}
}

// State returns the current lifecycle state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Active reports whether the worker can cover semantic checking for
// the current cycle.
func (c *Channel) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateReady && !c.fallback
}

// FallbackRequired reports whether a crash has permanently moved
// semantic checking back to the main thread.
func (c *Channel) FallbackRequired() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fallback
}

// stripDebugFlags removes interactive-debugger launch flags inherited
// from the parent's arguments so the worker does not collide on the
// same debug port. Value-taking flags in the separated form consume
// the following argument as well.
func stripDebugFlags(args []string) []string {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if strings.HasPrefix(arg, "--inspect") {
			continue
		}
		if strings.HasPrefix(arg, "--debug-addr") || strings.HasPrefix(arg, "--debug-port") {
			if !strings.Contains(arg, "=") && i+1 < len(args) {
				i++
			}
			continue
		}
		out = append(out, arg)
	}
	return out
}

// Start spawns the worker process. extraArgs are passed through after
// debugger flags are stripped. The channel is Ready as soon as the
// process handle exists; no handshake reply is awaited.
func (c *Channel) Start(extraArgs []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateIdle {
		return fmt.Errorf("worker already started (state %s)", c.state)
	}
	c.state = StateStarting

	exe, err := os.Executable()
	if err != nil {
		c.state = StateIdle
		return fmt.Errorf("failed to locate own executable: %w", err)
	}

	args := append([]string{"worker", listenFlag}, stripDebugFlags(extraArgs)...)
	cmd := exec.Command(exe, args...) // #nosec G204 -- args come from the project manifest
	cmd.Stderr = os.Stderr
	setProcessGroup(cmd)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		c.state = StateIdle
		return err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		c.state = StateIdle
		return err
	}

	if err := cmd.Start(); err != nil {
		c.state = StateIdle
		return fmt.Errorf("failed to spawn worker: %w", err)
	}

	c.cmd = cmd
	c.stdin = stdin
	c.enc = msgpack.NewEncoder(stdin)
	c.state = StateReady

	go c.readLoop(stdout)
	go c.watchExit(cmd)
	return nil
}

// SendInit sends the one-time configuration. Idempotent: repeated
// calls after the first are ignored.
func (c *Channel) SendInit(init InitMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateReady {
		return fmt.Errorf("cannot init worker in state %s", c.state)
	}
	if c.initSent {
		return nil
	}
	if err := c.enc.Encode(&Envelope{Kind: KindInit, Init: &init}); err != nil {
		return fmt.Errorf("failed to send init: %w", err)
	}
	c.initSent = true
	return nil
}

// SendUpdate hands the worker one cycle's inputs. Fire and forget:
// the driver never blocks awaiting a reply.
func (c *Channel) SendUpdate(rootNames, changedFiles []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateReady {
		return fmt.Errorf("cannot update worker in state %s", c.state)
	}
	if !c.initSent {
		return fmt.Errorf("update sent before init")
	}
	msg := UpdateMessage{RootNames: rootNames, ChangedFiles: changedFiles}
	if err := c.enc.Encode(&Envelope{Kind: KindUpdate, Update: &msg}); err != nil {
		return fmt.Errorf("failed to send update: %w", err)
	}
	return nil
}

// Terminate shuts the worker down, killing the whole process group so
// no descendant survives, and clears the handle.
func (c *Channel) Terminate() {
	c.mu.Lock()
	if c.state != StateReady || c.cmd == nil {
		c.mu.Unlock()
		return
	}
	cmd := c.cmd
	c.state = StateTerminated
	c.cmd = nil
	c.enc = nil
	stdin := c.stdin
	c.stdin = nil
	c.mu.Unlock()

	if stdin != nil {
		_ = stdin.Close()
	}
	killProcessGroup(cmd)
}

// readLoop decodes inbound envelopes. Only Log messages are valid
// while Ready; anything else is a contract violation and aborts the
// process.
func (c *Channel) readLoop(r io.Reader) {
	dec := msgpack.NewDecoder(r)
	for {
		var env Envelope
		if err := dec.Decode(&env); err != nil {
			// Pipe closed on termination or crash; exit handling is
			// the watcher's job.
			return
		}
		if err := env.validate(); err != nil {
			panic(&ProtocolError{Got: env.Kind, Want: "log"})
		}
		if env.Kind != KindLog {
			panic(&ProtocolError{Got: env.Kind, Want: "log"})
		}
		c.tracer.Logf(env.Log.Level, "worker: %s", env.Log.Text)
	}
}

// watchExit classifies the worker's exit. Termination by the
// channel's own signal is a normal shutdown; any other exit is a
// crash that flips the durable fallback flag.
func (c *Channel) watchExit(cmd *exec.Cmd) {
	err := cmd.Wait()

	c.mu.Lock()
	defer c.mu.Unlock()
	if exitedByTermination(cmd, err) {
		// The termination signal the channel itself sends. Normal
		// shutdown, whoever delivered it.
		c.state = StateTerminated
		c.cmd = nil
		c.enc = nil
		c.stdin = nil
		return
	}
	if c.state == StateTerminated {
		// Termination raced a fast clean exit; still deliberate.
		return
	}
	c.state = StateCrashed
	c.fallback = true
	c.cmd = nil
	c.enc = nil
	c.stdin = nil
	c.tracer.Logf(trace.LevelWarn,
		"worker exited unexpectedly (%v); falling back to main-thread type checking", err)
}
