//go:build !windows

package worker

import (
	"errors"
	"os/exec"
	"syscall"
)

// terminationSignal is the signal Terminate delivers to the worker's
// process group.
const terminationSignal = syscall.SIGTERM

// setProcessGroup places the worker in its own process group so the
// whole tree can be killed at once.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// killProcessGroup signals the worker's entire process group, not
// just the direct child, so no descendant is orphaned.
func killProcessGroup(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	if err := syscall.Kill(-cmd.Process.Pid, terminationSignal); err != nil {
		// Group may already be gone; fall back to the direct child.
		_ = cmd.Process.Signal(terminationSignal)
	}
}

// exitedByTermination reports whether the worker died from the same
// signal Terminate sends.
func exitedByTermination(cmd *exec.Cmd, waitErr error) bool {
	state := cmd.ProcessState
	if state == nil {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			return false
		}
		state = exitErr.ProcessState
	}
	ws, ok := state.Sys().(syscall.WaitStatus)
	if !ok {
		return false
	}
	return ws.Signaled() && ws.Signal() == terminationSignal
}
