// Package spawner launches configured shell commands without the
// caller having to wait on or reap the child.
package spawner

import (
	"os/exec"
	"syscall"

	"github.com/hyprcore/hypridle/internal/logger"
)

// Spawn runs cmd via "/bin/sh -c" in a new session, detached from the
// daemon's process group, and does not wait for it to finish. A failure
// to start the command is logged but never returned to the caller
// (spec §4.B): a misbehaving on-timeout/on-resume command must never
// abort the event loop.
func Spawn(cmd string) {
	if cmd == "" {
		return
	}

	c := exec.Command("/bin/sh", "-c", cmd)
	c.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := c.Start(); err != nil {
		logger.Error("failed to spawn command", "cmd", cmd, "error", err)
		return
	}

	// A background goroutine waits on the child so it is reaped when it
	// exits, without blocking the caller.
	go func() {
		_ = c.Wait()
	}()
}
