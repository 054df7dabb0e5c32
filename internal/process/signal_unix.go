//go:build unix

package process

import (
	"os"
	"os/exec"
	"syscall"
)

func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// signalGroup signals the whole process group so helpers spawned by the
// child are not orphaned.
func signalGroup(p *os.Process, sig Signal) error {
	s := syscall.SIGINT
	if sig == Kill {
		s = syscall.SIGKILL
	}
	if err := syscall.Kill(-p.Pid, s); err != nil {
		return p.Signal(s)
	}
	return nil
}
