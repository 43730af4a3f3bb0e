package launcher

import (
	"os/exec"
	"syscall"
)

// setProcAttr makes the kernel SIGKILL the worker if the master dies.
func setProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Pdeathsig: syscall.SIGKILL}
}
