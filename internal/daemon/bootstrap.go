package daemon

import (
	"os"
	"os/exec"
)

// StartDetached spawns a new relay process running the loop, detached from
// the caller so the supervisor can exit while the loop keeps running. The
// spawned process coordinates back only through the control files.
func StartDetached(envPath string) (int, error) {
	executable, err := os.Executable()
	if err != nil {
		return 0, err
	}

	cmd := exec.Command(executable, "run", "--env", envPath)
	cmd.SysProcAttr = detachAttr()

	// No stdin/stdout/stderr - fully detached.
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil

	if err := cmd.Start(); err != nil {
		return 0, err
	}
	return cmd.Process.Pid, nil
}
