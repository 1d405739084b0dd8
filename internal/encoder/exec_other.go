//go:build !windows

package encoder

import (
	"os/exec"
	"syscall"
)

// prepareCmd starts the child in its own process group so cancellation also
// kills any helpers it forked.
func prepareCmd(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
