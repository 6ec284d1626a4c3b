//go:build !unix

package sandbox

import "os/exec"

func configureProcess(cmd *exec.Cmd) {
	cmd.WaitDelay = waitDelay
}
