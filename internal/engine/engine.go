// Package engine fuses the Wayland, system-bus, and session-bus event
// sources into a single serialization point and owns the process-wide
// GlobalState (spec §2, §5).
package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"

	"github.com/hyprcore/hypridle/internal/config"
	"github.com/hyprcore/hypridle/internal/inhibit"
	"github.com/hyprcore/hypridle/internal/loginbus"
	"github.com/hyprcore/hypridle/internal/logger"
	"github.com/hyprcore/hypridle/internal/screensaver"
	"github.com/hyprcore/hypridle/internal/sleepinhibit"
	"github.com/hyprcore/hypridle/internal/spawner"
	"github.com/hyprcore/hypridle/internal/wayland"
)

// pollTimeout bounds how long the poller blocks between checks of the
// termination flag (spec §4.G).
const pollTimeout = 5 * time.Second

// idleListener is one rule's live notification object; rebuilt whenever
// the inhibit counter returns to zero while the session is idle.
type idleListener struct {
	rule config.Rule
	note wayland.Notification
}

// Engine is the explicit replacement for GlobalState and the two
// thread-local pointers the source implementation smuggled through
// globals; every component that used to read process-wide state now
// reads it from here.
type Engine struct {
	view *config.View

	wl      wayland.Controller
	login   loginbus.Conn
	screen  *screensaver.Service // nil when ignore_dbus_inhibit or acquisition failed
	inhibit *inhibit.Manager
	sleep   *sleepinhibit.Controller

	listeners []*idleListener

	isLocked             bool
	systemdIdleInhibited bool

	ignoreWaylandInhibit bool
	lockCmd              string
	unlockCmd            string
	onLockCmd            string
	onUnlockCmd          string
}

// Options bundles the already-connected collaborators the engine
// coordinates; construction of each lives in internal/app so this
// package stays testable against fakes.
type Options struct {
	View       *config.View
	Wayland    wayland.Controller
	Login      loginbus.Conn
	ScreenSaver *screensaver.Service // nil if not registered
}

// New wires the Inhibit Manager, Sleep-Inhibit Controller, and every
// rule's idle listener, then registers the compositor and bus
// callbacks. It does not start the event loop; call Run for that.
func New(opts Options) (*Engine, error) {
	e := &Engine{
		view:                 opts.View,
		wl:                   opts.Wayland,
		login:                opts.Login,
		screen:               opts.ScreenSaver,
		ignoreWaylandInhibit: opts.View.Bool("general:ignore_wayland_inhibit"),
		lockCmd:              opts.View.Value("general:lock_cmd"),
		unlockCmd:            opts.View.Value("general:unlock_cmd"),
		onLockCmd:            opts.View.Value("general:on_lock_cmd"),
		onUnlockCmd:          opts.View.Value("general:on_unlock_cmd"),
	}

	e.inhibit = inhibit.New(e)

	if err := e.buildListeners(); err != nil {
		return nil, err
	}

	e.sleep = sleepinhibit.New(opts.View, opts.Wayland.HasLockNotifier(), opts.Login, spawner.Spawn)

	e.wl.SetLockedHandler(e.onLocked)
	e.wl.SetUnlockedHandler(e.onUnlocked)

	e.login.SetLockHandler(func() { spawner.Spawn(e.lockCmd) })
	e.login.SetUnlockHandler(func() { spawner.Spawn(e.unlockCmd) })
	e.login.SetPrepareForSleepHandler(e.sleep.OnPrepareForSleep)

	if !opts.View.Bool("general:ignore_systemd_inhibit") {
		e.login.SetBlockInhibitedHandler(e.onBlockInhibited)

		if initial, err := opts.Login.InitialBlockInhibited(); err != nil {
			logger.Warn("failed to fetch initial BlockInhibited property", "error", err)
		} else {
			e.onBlockInhibited(initial)
		}
	}

	return e, nil
}

// variantFor implements the §4.C variant-selection rule.
func variantFor(rule config.Rule, ignoreWaylandInhibit bool) wayland.Variant {
	if ignoreWaylandInhibit || rule.IgnoreInhibit {
		return wayland.VariantInputIdle
	}
	return wayland.VariantIdle
}

func (e *Engine) buildListeners() error {
	e.listeners = e.listeners[:0]
	for _, rule := range e.view.Rules() {
		rule := rule
		listener := &idleListener{rule: rule}
		note, err := e.wl.CreateNotification(
			uint32(rule.TimeoutSec)*1000,
			variantFor(rule, e.ignoreWaylandInhibit),
			func() { e.inhibit.OnIdled(listener.rule) },
			func() { e.inhibit.OnResumed(listener.rule) },
		)
		if err != nil {
			return fmt.Errorf("creating idle notification for rule (timeout=%ds): %w", rule.TimeoutSec, err)
		}
		listener.note = note
		e.listeners = append(e.listeners, listener)
	}
	return nil
}

// RebuildListeners implements inhibit.Rebuilder: destroy every current
// notification object and recreate it with the same variant logic
// (spec §4.E). Only ever called from the single engine goroutine, so
// no message from the compositor is processed mid-rebuild.
func (e *Engine) RebuildListeners() error {
	for _, l := range e.listeners {
		if err := l.note.Destroy(); err != nil {
			logger.Warn("failed to destroy idle notification during rebuild", "error", err)
		}
	}
	return e.buildListeners()
}

func (e *Engine) onLocked() {
	e.isLocked = true
	e.sleep.OnLocked()
	if e.onLockCmd != "" {
		spawner.Spawn(e.onLockCmd)
	}
}

func (e *Engine) onUnlocked() {
	e.isLocked = false
	e.sleep.OnUnlocked()
	if e.onUnlockCmd != "" {
		spawner.Spawn(e.onUnlockCmd)
	}
}

// onBlockInhibited implements the systemd-inhibit tracking rule: call
// onInhibit exactly once on each true→false or false→true edge of
// whether the "idle" token is present (spec §4.D).
func (e *Engine) onBlockInhibited(tokens string) {
	contains := loginbus.TokensContainIdle(tokens)
	if contains == e.systemdIdleInhibited {
		return
	}
	e.systemdIdleInhibited = contains
	e.inhibit.OnInhibit(contains)
}

// InhibitManager exposes the Inhibit Manager so the screen-saver
// service can be registered against it; registration happens after
// New returns because the D-Bus service name must be acquired with a
// Manager already in hand (spec §4.D).
func (e *Engine) InhibitManager() *inhibit.Manager { return e.inhibit }

// AttachScreenSaver wires an already-registered screen-saver service
// into the drain loop. Call before Run; a nil svc leaves the session
// bus out of the fixed drain order entirely.
func (e *Engine) AttachScreenSaver(svc *screensaver.Service) { e.screen = svc }

// IsLocked reports the current compositor lock state, for diagnostics.
func (e *Engine) IsLocked() bool { return e.isLocked }

// InhibitLocks exposes the current counter, for diagnostics and tests.
func (e *Engine) InhibitLocks() int { return e.inhibit.InhibitLocks() }

// Run drives the fixed-order drain loop (spec §4.G) until ctx is
// canceled or a fatal source error occurs. A poller goroutine polls
// the Wayland display fd with unix.Poll and wakes the drain loop
// through a ready channel; the system bus and the session bus wake it
// through their own Wake channels. The errgroup supervises both
// goroutines so a poller error tears down the whole Engine.
func (e *Engine) Run(ctx context.Context) error {
	ready := make(chan struct{}, 1)
	wake := func() {
		select {
		case ready <- struct{}{}:
		default:
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return e.pollWayland(ctx, wake) })

	loginWake := e.login.Wake()
	var screenWake <-chan struct{}
	if e.screen != nil {
		screenWake = e.screen.Wake()
	}

	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-loginWake:
				e.drain()
			case <-screenWake:
				e.drain()
			case <-ready:
				e.drain()
			}
		}
	})

	return g.Wait()
}

// pollWayland blocks on the display fd with a bounded timeout so the
// poller goroutine periodically re-checks ctx (spec §4.G's 5-second
// timeout, repurposed from a termination-flag check to a ctx check).
func (e *Engine) pollWayland(ctx context.Context, wake func()) error {
	fds := []unix.PollFd{{Fd: int32(e.wl.FD()), Events: unix.POLLIN}}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, err := unix.Poll(fds, int(pollTimeout/time.Millisecond))
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return fmt.Errorf("polling wayland display fd: %w", err)
		}
		if n == 0 {
			continue
		}
		if fds[0].Revents&(unix.POLLHUP|unix.POLLERR) != 0 {
			return fmt.Errorf("wayland display connection hung up")
		}
		if fds[0].Revents&unix.POLLIN != 0 {
			wake()
		}
	}
}

// drain implements the §4.G fixed order: system-bus, then Wayland,
// then session-bus, then a final Wayland re-flush.
func (e *Engine) drain() {
	e.login.DrainPending()

	if err := e.wl.Flush(); err != nil {
		logger.Warn("wayland flush failed", "error", err)
	}
	if ok, err := e.wl.PrepareRead(); err != nil {
		logger.Warn("wayland prepare_read failed", "error", err)
	} else if ok {
		if err := e.wl.ReadEvents(); err != nil {
			logger.Warn("wayland read_events failed", "error", err)
		}
		if err := e.wl.DispatchPending(); err != nil {
			logger.Warn("wayland dispatch_pending failed", "error", err)
		}
	} else if err := e.wl.Dispatch(); err != nil {
		logger.Warn("wayland dispatch failed", "error", err)
	}

	if e.screen != nil {
		e.screen.DrainPending()
	}

	if err := e.wl.DispatchPending(); err != nil {
		logger.Warn("wayland re-drain dispatch_pending failed", "error", err)
	}
	if err := e.wl.Flush(); err != nil {
		logger.Warn("wayland re-drain flush failed", "error", err)
	}
}

// Close tears down every owned connection.
func (e *Engine) Close() error {
	var errs []string
	if err := e.wl.Close(); err != nil {
		errs = append(errs, err.Error())
	}
	if err := e.login.Close(); err != nil {
		errs = append(errs, err.Error())
	}
	if e.screen != nil {
		if err := e.screen.Close(); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("closing engine: %s", strings.Join(errs, "; "))
	}
	return nil
}
