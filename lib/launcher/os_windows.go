//go:build windows
// +build windows

package launcher

import (
	"os/exec"
	"syscall"
)

// killGroup terminates the browser process, its children belong to the same new process group
func killGroup(pid int) {
	h, err := syscall.OpenProcess(syscall.PROCESS_TERMINATE, true, uint32(pid))
	if err != nil {
		return
	}
	defer func() { _ = syscall.CloseHandle(h) }()

	_ = syscall.TerminateProcess(h, 1)
}

func (l *Launcher) osSetupCmd(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP}
}
