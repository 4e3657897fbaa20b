// Package app wires the daemon's collaborators together: config
// discovery and load, the Wayland/login1/screen-saver connections, and
// the Engine that drives them.
package app

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"

	"github.com/hyprcore/hypridle/internal/config"
	"github.com/hyprcore/hypridle/internal/engine"
	"github.com/hyprcore/hypridle/internal/loginbus"
	"github.com/hyprcore/hypridle/internal/logger"
	"github.com/hyprcore/hypridle/internal/screensaver"
	"github.com/hyprcore/hypridle/internal/wayland"
)

// Run discovers and loads the configuration at configPath (empty means
// "run discovery"), connects every collaborator, and blocks running the
// event loop until ctx is canceled or a fatal error occurs.
func Run(ctx context.Context, configPath string) error {
	path, err := config.Discover(configPath)
	if err != nil {
		return fmt.Errorf("locating configuration: %w", err)
	}

	view, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("loading configuration %s: %w", path, err)
	}
	logger.Info("loaded configuration", "path", path, "rules", len(view.Rules()))
	for i, r := range view.Rules() {
		logger.Info("rule", "index", i, "timeout", r.TimeoutSec, "on-timeout", r.OnTimeout, "on-resume", r.OnResume)
	}

	wl, err := wayland.Connect()
	if err != nil {
		return fmt.Errorf("connecting to compositor: %w", err)
	}
	defer wl.Close()

	if !wl.HasLockNotifier() {
		logger.Warn("compositor did not advertise a lock-notifier, lock-related features degraded")
	}

	login, err := loginbus.Connect(!view.Bool("general:ignore_systemd_inhibit"))
	if err != nil {
		return fmt.Errorf("connecting to the system bus: %w", err)
	}
	defer login.Close()

	e, err := engine.New(engine.Options{View: view, Wayland: wl, Login: login})
	if err != nil {
		return fmt.Errorf("constructing engine: %w", err)
	}
	defer e.Close()

	if view.Bool("general:ignore_dbus_inhibit") {
		logger.Info("ignore_dbus_inhibit set, screen-saver service not published")
	} else if svc, err := registerScreenSaver(e); err != nil {
		logger.Warn("screen-saver service unavailable, continuing without it", "error", err)
	} else {
		e.AttachScreenSaver(svc)
		defer svc.Close()
	}

	return e.Run(ctx)
}

// registerScreenSaver connects to the session bus and publishes the
// org.freedesktop.ScreenSaver interface against the engine's Inhibit
// Manager (spec §4.D).
func registerScreenSaver(e *engine.Engine) (*screensaver.Service, error) {
	conn, err := dbus.SessionBus()
	if err != nil {
		return nil, fmt.Errorf("connecting to the session bus: %w", err)
	}
	svc, err := screensaver.Register(conn, e.InhibitManager())
	if err != nil {
		return nil, fmt.Errorf("registering org.freedesktop.ScreenSaver: %w", err)
	}
	return svc, nil
}
