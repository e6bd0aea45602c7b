//go:build !windows

package mirror

import (
	"errors"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// setProcessGroup puts scrcpy in its own process group so signals reach
// the helper processes it spawns. hidden has no meaning outside Windows.
func setProcessGroup(cmd *exec.Cmd, hidden bool) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func terminateProcessGroup(cmd *exec.Cmd) error {
	return signalProcessGroup(cmd, unix.SIGTERM)
}

func killProcessGroup(cmd *exec.Cmd) error {
	return signalProcessGroup(cmd, unix.SIGKILL)
}

func signalProcessGroup(cmd *exec.Cmd, sig unix.Signal) error {
	if cmd.Process == nil {
		return nil
	}
	pgid, err := unix.Getpgid(cmd.Process.Pid)
	if err != nil {
		return cmd.Process.Signal(sig)
	}
	if err := unix.Kill(-pgid, sig); err != nil && !errors.Is(err, unix.ESRCH) {
		return err
	}
	return nil
}
