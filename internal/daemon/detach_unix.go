//go:build !windows

package daemon

import "syscall"

func detachAttr() *syscall.SysProcAttr {
	// New session, detached from the controlling terminal.
	return &syscall.SysProcAttr{Setsid: true}
}
