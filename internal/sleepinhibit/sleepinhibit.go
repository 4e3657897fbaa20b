// Package sleepinhibit resolves the system-sleep inhibit policy from
// configuration and drives the login1 delay-lock handshake around
// PrepareForSleep (spec §4.F).
package sleepinhibit

import (
	"os"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/hyprcore/hypridle/internal/config"
	"github.com/hyprcore/hypridle/internal/logger"
)

// Policy is the resolved sleep-inhibit strategy.
type Policy int

const (
	// None never holds a delay lock; PrepareForSleep is a no-op.
	None Policy = iota
	// Normal holds a delay lock continuously except for the window
	// between before_sleep_cmd and the system actually sleeping.
	Normal
	// LockNotify holds a delay lock that is only released once the
	// compositor reports the session locked, and re-acquired once it
	// reports unlocked.
	LockNotify
)

func (p Policy) String() string {
	switch p {
	case None:
		return "none"
	case Normal:
		return "normal"
	case LockNotify:
		return "lock-notify"
	default:
		return "unknown"
	}
}

// Inhibitor is the login1 Manager capability this package needs; an
// interface so this package never imports internal/loginbus directly.
type Inhibitor interface {
	Inhibit(what, who, why, mode string) (*os.File, error)
}

// ResolvePolicy implements the inhibit_sleep config table (spec §4.F).
// lockNotifierBound reports whether the compositor offered a
// lock-notifier global at startup.
func ResolvePolicy(view *config.View, lockNotifierBound bool) Policy {
	switch view.Int("general:inhibit_sleep") {
	case 0:
		return None
	case 1:
		return Normal
	case 2:
		if lockNotifierBound && autoWantsLockNotify(view) {
			return LockNotify
		}
		return Normal
	case 3:
		if lockNotifierBound {
			return LockNotify
		}
		logger.Warn("inhibit_sleep=3 requires a lock-notifier, none was bound; disabling sleep inhibit")
		return None
	default:
		logger.Error("invalid inhibit_sleep value, using default policy", "value", view.Value("general:inhibit_sleep"))
		if lockNotifierBound && autoWantsLockNotify(view) {
			return LockNotify
		}
		return Normal
	}
}

func autoWantsLockNotify(view *config.View) bool {
	beforeSleep := view.Value("general:before_sleep_cmd")
	lockCmd := view.Value("general:lock_cmd")
	if strings.Contains(beforeSleep, "hyprlock") {
		return true
	}
	return strings.Contains(lockCmd, "hyprlock") && strings.Contains(beforeSleep, "lock-session")
}

// Controller owns the held delay-lock file descriptor and the commands
// to run around the sleep handshake.
type Controller struct {
	policy    Policy
	inhibitor Inhibitor
	spawn     func(cmd string)

	beforeSleepCmd string
	afterSleepCmd  string

	fd *os.File
}

// New constructs a Controller and, unless the policy is None,
// immediately acquires the initial delay lock.
func New(view *config.View, lockNotifierBound bool, inhibitor Inhibitor, spawn func(cmd string)) *Controller {
	c := &Controller{
		policy:         ResolvePolicy(view, lockNotifierBound),
		inhibitor:      inhibitor,
		spawn:          spawn,
		beforeSleepCmd: view.Value("general:before_sleep_cmd"),
		afterSleepCmd:  view.Value("general:after_sleep_cmd"),
	}
	if c.policy != None {
		c.InhibitSleep()
	}
	return c
}

// Policy reports the resolved strategy; the engine consults it to know
// whether compositor Locked/Unlocked events should drive the fd.
func (c *Controller) Policy() Policy { return c.policy }

// InhibitSleep acquires a fresh delay-type inhibit lease, duplicating
// the returned fd with close-on-exec set and closing the original. A
// still-held prior fd is logged and dropped first (spec §4.F).
func (c *Controller) InhibitSleep() {
	if c.fd != nil {
		logger.Warn("inhibitSleep called while a lease is already held, dropping it first")
		c.UninhibitSleep()
	}

	f, err := c.inhibitor.Inhibit("sleep", "hypridle", "inhibit-idle-handler", "delay")
	if err != nil {
		logger.Error("failed to acquire sleep inhibit lease", "error", err)
		return
	}
	defer f.Close()

	dupFd, err := unix.FcntlInt(f.Fd(), unix.F_DUPFD_CLOEXEC, 0)
	if err != nil {
		logger.Error("failed to duplicate sleep inhibit fd", "error", err)
		return
	}
	c.fd = os.NewFile(uintptr(dupFd), "sleep-inhibit")
}

// UninhibitSleep closes the held fd, releasing the delay lock.
func (c *Controller) UninhibitSleep() {
	if c.fd == nil {
		return
	}
	c.fd.Close()
	c.fd = nil
}

// Held reports whether a delay lock is currently held, for tests and
// diagnostics.
func (c *Controller) Held() bool { return c.fd != nil }

// OnPrepareForSleep implements the Normal-policy handshake (spec §4.F).
// LockNotify's fd transitions are driven by OnLocked/OnUnlocked instead;
// None takes no action either way.
func (c *Controller) OnPrepareForSleep(toSleep bool) {
	switch c.policy {
	case None, LockNotify:
		return
	case Normal:
		if toSleep {
			if c.beforeSleepCmd != "" {
				c.spawn(c.beforeSleepCmd)
			}
			c.UninhibitSleep()
			return
		}
		c.InhibitSleep()
		if c.afterSleepCmd != "" {
			c.spawn(c.afterSleepCmd)
		}
	}
}

// OnLocked releases the held lease once the compositor has confirmed
// the session is locked; only meaningful under LockNotify.
func (c *Controller) OnLocked() {
	if c.policy != LockNotify {
		return
	}
	c.UninhibitSleep()
}

// OnUnlocked re-acquires the lease once the compositor reports the
// session unlocked; only meaningful under LockNotify.
func (c *Controller) OnUnlocked() {
	if c.policy != LockNotify {
		return
	}
	c.InhibitSleep()
}
