//go:build windows

package mirror

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/windows"
)

// setProcessGroup starts scrcpy in a new process group, optionally with
// its console window hidden.
func setProcessGroup(cmd *exec.Cmd, hidden bool) {
	attr := &syscall.SysProcAttr{CreationFlags: windows.CREATE_NEW_PROCESS_GROUP}
	if hidden {
		attr.HideWindow = true
	}
	cmd.SysProcAttr = attr
}

// terminateProcessGroup has no graceful equivalent for a windowed process
// on Windows, so it kills directly.
func terminateProcessGroup(cmd *exec.Cmd) error {
	return killProcessGroup(cmd)
}

func killProcessGroup(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	return cmd.Process.Kill()
}
