//go:build windows

package worker

import "os/exec"

// Windows has no process groups in the POSIX sense; killing the
// direct child is the best available approximation.

func setProcessGroup(cmd *exec.Cmd) {}

func killProcessGroup(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	_ = cmd.Process.Kill()
}

// exitedByTermination cannot distinguish signals on Windows; exits
// that race Terminate are still recognized through the channel state.
func exitedByTermination(*exec.Cmd, error) bool {
	return false
}
