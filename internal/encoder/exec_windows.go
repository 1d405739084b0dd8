//go:build windows

package encoder

import (
	"os/exec"
	"syscall"
)

const createNoWindow = 0x08000000

// prepareCmd keeps child processes from opening a console window.
func prepareCmd(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		HideWindow:    true,
		CreationFlags: createNoWindow,
	}
}
