package wayland

import (
	"fmt"

	"github.com/rajveermalviya/go-wayland/wayland/client"
	idlenotify "github.com/rajveermalviya/go-wayland/wayland/staging/ext-idle-notify-v1"

	"github.com/hyprcore/hypridle/internal/logger"
	"github.com/hyprcore/hypridle/internal/waylandproto/lockidlenotify"
)

type realController struct {
	display  *client.Display
	registry *client.Registry
	notifier *idlenotify.IdleNotifier
	seat     *client.Seat

	lockNotifier     *lockidlenotify.LockNotifier
	lockNotification *lockidlenotify.LockNotification

	lockedHandler   func()
	unlockedHandler func()
}

// Connect opens the compositor connection, performs the two-roundtrip
// global discovery dance, and binds idle-notifier (mandatory), seat
// (mandatory), and lock-notifier (optional) — exactly the sequence
// grounded on the Nomadcxx and MatthiasKunnen reference implementations.
func Connect() (Controller, error) {
	display, err := client.Connect("")
	if err != nil {
		return nil, fmt.Errorf("connecting to Wayland display: %w", err)
	}

	registry, err := display.GetRegistry()
	if err != nil {
		display.Context().Close()
		return nil, fmt.Errorf("getting Wayland registry: %w", err)
	}

	rc := &realController{display: display, registry: registry}

	var (
		idleNotifierName, idleNotifierVersion uint32
		seatName, seatVersion                 uint32
		lockNotifierName, lockNotifierVersion  uint32
	)

	registry.SetGlobalHandler(func(e client.RegistryGlobalEvent) {
		switch e.Interface {
		case idlenotify.IdleNotifierInterfaceName:
			idleNotifierName, idleNotifierVersion = e.Name, e.Version
		case lockidlenotify.LockNotifierInterfaceName:
			lockNotifierName, lockNotifierVersion = e.Name, e.Version
		case client.SeatInterfaceName:
			if seatName == 0 { // first seat only, spec §4.C / Non-goals
				seatName, seatVersion = e.Name, e.Version
			}
		}
	})

	if err := rc.roundtrip(); err != nil {
		display.Context().Close()
		return nil, fmt.Errorf("wayland roundtrip one: %w", err)
	}
	if err := rc.roundtrip(); err != nil {
		display.Context().Close()
		return nil, fmt.Errorf("wayland roundtrip two: %w", err)
	}

	if idleNotifierName == 0 {
		display.Context().Close()
		return nil, fmt.Errorf("compositor does not advertise %s", idlenotify.IdleNotifierInterfaceName)
	}
	if seatName == 0 {
		display.Context().Close()
		return nil, fmt.Errorf("compositor advertises no wl_seat")
	}

	rc.notifier = idlenotify.NewIdleNotifier(display.Context())
	if err := registry.Bind(idleNotifierName, idlenotify.IdleNotifierInterfaceName, idleNotifierVersion, rc.notifier); err != nil {
		display.Context().Close()
		return nil, fmt.Errorf("binding %s: %w", idlenotify.IdleNotifierInterfaceName, err)
	}

	rc.seat = client.NewSeat(display.Context())
	if err := registry.Bind(seatName, client.SeatInterfaceName, seatVersion, rc.seat); err != nil {
		display.Context().Close()
		return nil, fmt.Errorf("binding %s: %w", client.SeatInterfaceName, err)
	}

	if lockNotifierName != 0 {
		rc.lockNotifier = lockidlenotify.NewLockNotifier(display.Context())
		if err := registry.Bind(lockNotifierName, lockidlenotify.LockNotifierInterfaceName, lockNotifierVersion, rc.lockNotifier); err != nil {
			logger.Warn("failed to bind lock notifier, lock-related features disabled", "error", err)
			rc.lockNotifier = nil
		} else if notification, err := rc.lockNotifier.GetLockNotification(); err != nil {
			logger.Warn("failed to create lock notification, lock-related features disabled", "error", err)
			rc.lockNotifier = nil
		} else {
			rc.lockNotification = notification
			rc.lockNotification.SetLockedHandler(func(lockidlenotify.LockedEvent) {
				if rc.lockedHandler != nil {
					rc.lockedHandler()
				}
			})
			rc.lockNotification.SetUnlockedHandler(func(lockidlenotify.UnlockedEvent) {
				if rc.unlockedHandler != nil {
					rc.unlockedHandler()
				}
			})
		}
	} else {
		logger.Warn("compositor does not advertise hyprland_lock_notifier_v1; lock-related features disabled")
	}

	return rc, nil
}

func (rc *realController) roundtrip() error {
	callback, err := rc.display.Sync()
	if err != nil {
		return err
	}
	defer callback.Destroy()

	done := false
	callback.SetDoneHandler(func(client.CallbackDoneEvent) { done = true })

	for !done {
		if err := rc.display.Context().Dispatch(); err != nil {
			return err
		}
	}
	return nil
}

func (rc *realController) FD() int {
	return rc.display.Context().Fd()
}

func (rc *realController) HasLockNotifier() bool {
	return rc.lockNotifier != nil
}

type notificationHandle struct {
	n *idlenotify.IdleNotification
}

func (h *notificationHandle) Destroy() error { return h.n.Destroy() }

func (rc *realController) CreateNotification(timeoutMs uint32, variant Variant, onIdle, onResume func()) (Notification, error) {
	var notification *idlenotify.IdleNotification
	var err error

	switch variant {
	case VariantInputIdle:
		notification, err = rc.notifier.GetInputIdleNotification(timeoutMs, rc.seat)
	default:
		notification, err = rc.notifier.GetIdleNotification(timeoutMs, rc.seat)
	}
	if err != nil {
		return nil, fmt.Errorf("creating idle notification: %w", err)
	}

	notification.SetIdledHandler(func(idlenotify.IdleNotificationIdledEvent) {
		if onIdle != nil {
			onIdle()
		}
	})
	notification.SetResumedHandler(func(idlenotify.IdleNotificationResumedEvent) {
		if onResume != nil {
			onResume()
		}
	})

	return &notificationHandle{n: notification}, nil
}

func (rc *realController) SetLockedHandler(f func())   { rc.lockedHandler = f }
func (rc *realController) SetUnlockedHandler(f func()) { rc.unlockedHandler = f }

func (rc *realController) Flush() error {
	return rc.display.Context().Flush()
}

func (rc *realController) PrepareRead() (bool, error) {
	if err := rc.display.Context().PrepareRead(); err != nil {
		return false, nil
	}
	return true, nil
}

func (rc *realController) ReadEvents() error {
	return rc.display.Context().ReadEvents()
}

func (rc *realController) DispatchPending() error {
	return rc.display.Context().DispatchPending()
}

func (rc *realController) Dispatch() error {
	return rc.display.Context().Dispatch()
}

func (rc *realController) Close() error {
	if rc.lockNotification != nil {
		rc.lockNotification.Destroy()
	}
	if rc.lockNotifier != nil {
		rc.lockNotifier.Destroy()
	}
	if rc.notifier != nil {
		rc.notifier.Destroy()
	}
	if rc.seat != nil {
		rc.seat.Release()
	}
	return rc.display.Context().Close()
}
