//go:build unix

package device

import (
	"os/exec"
	"syscall"
)

// detach puts the emulator in its own session so Ctrl-C on the build does not stop it.
func detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}
