//go:build linux

package container

import (
	"os/exec"
	"syscall"
)

// setDeathSignal kills the child when the thread that started it dies. The
// caller must keep that thread locked until the child has been waited for.
func setDeathSignal(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Pdeathsig = syscall.SIGKILL
}
