//go:build !windows

package python

import (
	"os/exec"
	"syscall"
)

// prepareCmd 让子进程单独成组，取消时整组杀掉，避免残留的 Python 子进程
func prepareCmd(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
