// Package loginbus subscribes to the system bus: session Lock/Unlock,
// login1.Manager's PrepareForSleep, and BlockInhibited property
// changes, and provides the delay-lease Inhibit call the sleep
// controller needs.
package loginbus

import (
	"fmt"
	"os"
	"strings"

	"github.com/coreos/go-systemd/v22/login1"
	"github.com/godbus/dbus/v5"

	"github.com/hyprcore/hypridle/internal/logger"
)

const (
	destination  = "org.freedesktop.login1"
	managerPath  = "/org/freedesktop/login1"
	managerIface = "org.freedesktop.login1.Manager"
	sessionIface = "org.freedesktop.login1.Session"
	propsIface   = "org.freedesktop.DBus.Properties"
)

// Conn is the engine's view of the system bus. Wake fires whenever a
// new signal has been queued; the engine's main loop then calls
// DrainPending to dispatch everything queued so far, in the fixed
// system-bus-first order required by spec §5. No handler ever runs
// except from inside DrainPending, so two callbacks never run
// concurrently as long as only one goroutine calls it.
type Conn interface {
	Wake() <-chan struct{}
	SetLockHandler(func())
	SetUnlockHandler(func())
	SetPrepareForSleepHandler(func(toSleep bool))
	SetBlockInhibitedHandler(func(tokens string))
	// InitialBlockInhibited fetches the property once at startup, per
	// spec §4.D's "also fetched once at startup".
	InitialBlockInhibited() (string, error)
	Inhibit(what, who, why, mode string) (*os.File, error)
	DrainPending()
	Close() error
}

type conn struct {
	login   *login1.Conn
	bus     *dbus.Conn
	signals chan *dbus.Signal
	wake    chan struct{}

	lockHandler            func()
	unlockHandler          func()
	prepareForSleepHandler func(bool)
	blockInhibitedHandler  func(string)
}

// Connect opens the login1 manager connection and a raw system-bus
// connection for signal matching, resolves the current session via
// GetSession("auto"), and subscribes Lock/Unlock/PrepareForSleep
// exactly per spec §4.D. subscribeBlockInhibited gates the
// PropertiesChanged subscription; callers pass false when
// general:ignore_systemd_inhibit is set, so the daemon never
// subscribes to BlockInhibited at all.
func Connect(subscribeBlockInhibited bool) (Conn, error) {
	loginConn, err := login1.New()
	if err != nil {
		return nil, fmt.Errorf("connecting to login1: %w", err)
	}

	bus, err := dbus.SystemBus()
	if err != nil {
		loginConn.Close()
		return nil, fmt.Errorf("connecting to system bus: %w", err)
	}

	sessionObj, err := loginConn.GetSession("auto")
	if err != nil {
		loginConn.Close()
		return nil, fmt.Errorf("GetSession(auto): %w", err)
	}

	c := &conn{
		login:   loginConn,
		bus:     bus,
		signals: make(chan *dbus.Signal, 32),
		wake:    make(chan struct{}, 1),
	}

	if err := bus.AddMatchSignal(
		dbus.WithMatchObjectPath(sessionObj.Path()),
		dbus.WithMatchInterface(sessionIface),
	); err != nil {
		return nil, fmt.Errorf("subscribing to session signals: %w", err)
	}
	if err := bus.AddMatchSignal(
		dbus.WithMatchObjectPath(dbus.ObjectPath(managerPath)),
		dbus.WithMatchInterface(managerIface),
		dbus.WithMatchMember("PrepareForSleep"),
	); err != nil {
		return nil, fmt.Errorf("subscribing to PrepareForSleep: %w", err)
	}
	if subscribeBlockInhibited {
		if err := bus.AddMatchSignal(
			dbus.WithMatchObjectPath(dbus.ObjectPath(managerPath)),
			dbus.WithMatchInterface(propsIface),
			dbus.WithMatchMember("PropertiesChanged"),
		); err != nil {
			return nil, fmt.Errorf("subscribing to PropertiesChanged: %w", err)
		}
	}

	raw := make(chan *dbus.Signal, 32)
	bus.Signal(raw)
	go c.pump(raw)

	return c, nil
}

func (c *conn) pump(raw <-chan *dbus.Signal) {
	for s := range raw {
		c.signals <- s
		select {
		case c.wake <- struct{}{}:
		default:
		}
	}
}

func (c *conn) Wake() <-chan struct{} { return c.wake }

func (c *conn) SetLockHandler(f func())                { c.lockHandler = f }
func (c *conn) SetUnlockHandler(f func())               { c.unlockHandler = f }
func (c *conn) SetPrepareForSleepHandler(f func(bool))  { c.prepareForSleepHandler = f }
func (c *conn) SetBlockInhibitedHandler(f func(string)) { c.blockInhibitedHandler = f }

func (c *conn) InitialBlockInhibited() (string, error) {
	manager := c.bus.Object(destination, dbus.ObjectPath(managerPath))
	v, err := manager.GetProperty(managerIface + ".BlockInhibited")
	if err != nil {
		return "", fmt.Errorf("reading BlockInhibited: %w", err)
	}
	s, ok := v.Value().(string)
	if !ok {
		return "", fmt.Errorf("BlockInhibited property is not a string")
	}
	return s, nil
}

func (c *conn) Inhibit(what, who, why, mode string) (*os.File, error) {
	return c.login.Inhibit(what, who, why, mode)
}

// DrainPending processes every signal queued so far without blocking.
// Called from the engine's main loop during the system-bus drain step.
func (c *conn) DrainPending() {
	for {
		select {
		case s := <-c.signals:
			c.dispatch(s)
		default:
			return
		}
	}
}

func (c *conn) dispatch(s *dbus.Signal) {
	switch s.Name {
	case sessionIface + ".Lock":
		if c.lockHandler != nil {
			c.lockHandler()
		}
	case sessionIface + ".Unlock":
		if c.unlockHandler != nil {
			c.unlockHandler()
		}
	case managerIface + ".PrepareForSleep":
		if len(s.Body) == 0 {
			logger.Warn("PrepareForSleep signal with empty body")
			return
		}
		toSleep, ok := s.Body[0].(bool)
		if !ok {
			logger.Warn("PrepareForSleep signal body is not a bool")
			return
		}
		if c.prepareForSleepHandler != nil {
			c.prepareForSleepHandler(toSleep)
		}
	case propsIface + ".PropertiesChanged":
		c.handlePropertiesChanged(s)
	}
}

func (c *conn) handlePropertiesChanged(s *dbus.Signal) {
	if len(s.Body) < 2 {
		return
	}
	changed, ok := s.Body[1].(map[string]dbus.Variant)
	if !ok {
		return
	}
	v, ok := changed["BlockInhibited"]
	if !ok {
		return
	}
	str, ok := v.Value().(string)
	if !ok {
		logger.Warn("BlockInhibited property changed to non-string value")
		return
	}
	if c.blockInhibitedHandler != nil {
		c.blockInhibitedHandler(str)
	}
}

func (c *conn) Close() error {
	c.login.Close()
	return c.bus.Close()
}

func tokensContain(value, token string) bool {
	for _, t := range strings.Split(value, ":") {
		if t == token {
			return true
		}
	}
	return false
}

// TokensContainIdle reports whether the colon-separated BlockInhibited
// value contains the "idle" token (spec §4.D's BlockInhibited rule).
func TokensContainIdle(value string) bool {
	return tokensContain(value, "idle")
}
