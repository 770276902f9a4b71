//go:build windows

package pdf

import (
	"os/exec"
	"syscall"
)

// prepareCmd 在 Windows 上隐藏控制台窗口
func prepareCmd(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		HideWindow:    true,
		CreationFlags: 0x08000000, // CREATE_NO_WINDOW
	}
}
