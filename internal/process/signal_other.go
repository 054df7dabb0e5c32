//go:build !unix

package process

import (
	"os"
	"os/exec"
)

func setProcessGroup(cmd *exec.Cmd) {}

func signalGroup(p *os.Process, sig Signal) error {
	if sig == Kill {
		return p.Kill()
	}
	return p.Signal(os.Interrupt)
}
