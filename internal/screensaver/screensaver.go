// Package screensaver publishes the freedesktop ScreenSaver service on
// the session bus and tracks NameOwnerChanged so inhibitors held by a
// disconnected client are cleaned up.
package screensaver

import (
	"fmt"

	"github.com/godbus/dbus/v5"

	"github.com/hyprcore/hypridle/internal/logger"
)

const (
	ServiceName = "org.freedesktop.ScreenSaver"
	ifaceName   = "org.freedesktop.ScreenSaver"
)

// ObjectPaths are the two paths the interface is exported on; some
// clients (Firefox among them) look for the legacy short path instead
// of the namespaced one (spec §4.D).
var ObjectPaths = []dbus.ObjectPath{"/org/freedesktop/ScreenSaver", "/ScreenSaver"}

// Manager is the subset of the Inhibit Manager the screen-saver
// service drives; kept as an interface so this package never imports
// internal/inhibit directly.
type Manager interface {
	ScreenSaverInhibit(app, reason, ownerID string) (uint32, error)
	ScreenSaverUninhibit(cookie uint32) error
	UninhibitByOwner(ownerID string)
}

type inhibitRequest struct {
	app, reason, owner string
	reply              chan inhibitReply
}

type inhibitReply struct {
	cookie uint32
	err    error
}

type uninhibitRequest struct {
	cookie uint32
	reply  chan error
}

// Service is the engine's view of the session bus: callers interact
// with it exclusively through DrainPending, from the main loop, so
// Inhibit/UnInhibit/owner-disconnect handling is serialized with every
// other callback exactly like spec §5 requires, even though the
// exported D-Bus methods below are invoked from godbus's own dispatch
// goroutine.
type Service struct {
	conn *dbus.Conn
	mgr  Manager

	registered []dbus.ObjectPath

	wake       chan struct{}
	inhibits   chan *inhibitRequest
	uninhibits chan *uninhibitRequest
	ownerGone  chan string
}

type exported struct {
	svc *Service
}

func (e *exported) Inhibit(sender dbus.Sender, app, reason string) (uint32, *dbus.Error) {
	req := &inhibitRequest{app: app, reason: reason, owner: string(sender), reply: make(chan inhibitReply, 1)}
	e.svc.inhibits <- req
	e.svc.signalWake()
	r := <-req.reply
	if r.err != nil {
		return 0, dbus.MakeFailedError(r.err)
	}
	return r.cookie, nil
}

func (e *exported) UnInhibit(cookie uint32) *dbus.Error {
	req := &uninhibitRequest{cookie: cookie, reply: make(chan error, 1)}
	e.svc.uninhibits <- req
	e.svc.signalWake()
	if err := <-req.reply; err != nil {
		return dbus.MakeFailedError(err)
	}
	return nil
}

// Register acquires the well-known service name and exports the
// interface on both object paths independently; a failure on one path
// is logged and skipped, not fatal (spec §4.D). If the name is already
// owned by another process, Register returns an error naming that
// possibility so the daemon can log it and continue without the
// service.
func Register(conn *dbus.Conn, mgr Manager) (*Service, error) {
	reply, err := conn.RequestName(ServiceName, dbus.NameFlagDoNotQueue)
	if err != nil {
		return nil, fmt.Errorf("requesting name %s: %w", ServiceName, err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return nil, fmt.Errorf("%s is already owned, another hypridle may be running", ServiceName)
	}

	s := &Service{
		conn:       conn,
		mgr:        mgr,
		wake:       make(chan struct{}, 1),
		inhibits:   make(chan *inhibitRequest, 8),
		uninhibits: make(chan *uninhibitRequest, 8),
		ownerGone:  make(chan string, 8),
	}

	exp := &exported{svc: s}
	for _, path := range ObjectPaths {
		if err := conn.Export(exp, path, ifaceName); err != nil {
			logger.Warn("failed to export ScreenSaver interface on path, continuing with the other", "path", path, "error", err)
			continue
		}
		s.registered = append(s.registered, path)
	}
	if len(s.registered) == 0 {
		conn.ReleaseName(ServiceName)
		return nil, fmt.Errorf("failed to export %s on either object path", ifaceName)
	}

	if err := conn.AddMatchSignal(
		dbus.WithMatchInterface("org.freedesktop.DBus"),
		dbus.WithMatchMember("NameOwnerChanged"),
	); err != nil {
		return nil, fmt.Errorf("subscribing to NameOwnerChanged: %w", err)
	}

	raw := make(chan *dbus.Signal, 32)
	conn.Signal(raw)
	go s.pumpNameOwnerChanged(raw)

	return s, nil
}

func (s *Service) pumpNameOwnerChanged(raw <-chan *dbus.Signal) {
	for sig := range raw {
		if sig.Name != "org.freedesktop.DBus.NameOwnerChanged" || len(sig.Body) != 3 {
			continue
		}
		oldOwner, ok1 := sig.Body[1].(string)
		newOwner, ok2 := sig.Body[2].(string)
		if !ok1 || !ok2 || newOwner != "" || oldOwner == "" {
			continue
		}
		s.ownerGone <- oldOwner
		s.signalWake()
	}
}

func (s *Service) signalWake() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Wake fires whenever a request is waiting for DrainPending.
func (s *Service) Wake() <-chan struct{} { return s.wake }

// DrainPending services every Inhibit/UnInhibit call and owner-disconnect
// notification queued so far. Must only ever be called from the single
// engine goroutine that also drives the Inhibit Manager.
func (s *Service) DrainPending() {
	for {
		select {
		case req := <-s.inhibits:
			cookie, err := s.mgr.ScreenSaverInhibit(req.app, req.reason, req.owner)
			req.reply <- inhibitReply{cookie: cookie, err: err}
		case req := <-s.uninhibits:
			req.reply <- s.mgr.ScreenSaverUninhibit(req.cookie)
		case owner := <-s.ownerGone:
			s.mgr.UninhibitByOwner(owner)
		default:
			return
		}
	}
}

// Close releases the well-known name; the exported objects and match
// rule are torn down with the connection itself.
func (s *Service) Close() error {
	_, err := s.conn.ReleaseName(ServiceName)
	return err
}
