//go:build !windows

package onset

import (
	"os/exec"
	"syscall"
)

// hideWindow starts the child in its own process group so that it is
// detached from the terminal of the host. There are no windows to hide.
func hideWindow(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true
}
