//go:build !windows

package pdf

import (
	"os/exec"
	"syscall"
)

// prepareCmd 让子进程单独成组，取消时整组杀掉，pdftoppm 不会在超时后残留
func prepareCmd(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
