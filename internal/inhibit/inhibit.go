// Package inhibit implements the inhibit-counting state machine: the
// integer lock counter, the screen-saver cookie registry, and the
// idle-listener rebuild policy (spec §4.E).
package inhibit

import (
	"fmt"

	"github.com/hyprcore/hypridle/internal/config"
	"github.com/hyprcore/hypridle/internal/logger"
	"github.com/hyprcore/hypridle/internal/spawner"
)

// Rebuilder destroys and recreates every idle listener; owned by the
// Wayland Client, borrowed here during a rebuild (spec §3 Ownership).
type Rebuilder interface {
	RebuildListeners() error
}

// cookie is one active screen-saver inhibitor.
type cookie struct {
	value  uint32
	app    string
	reason string
	owner  string
}

// Manager holds GlobalState's inhibitLocks counter, isIdled flag, and
// cookie registry. It is driven exclusively from the engine's single
// processing goroutine, so it does not lock internally (spec §5: "no
// concurrent mutation of the inhibit counter, cookie list, or listener
// vector").
type Manager struct {
	inhibitLocks int
	isIdled      bool
	cookies      []cookie
	nextCookie   uint32

	rebuilder Rebuilder

	// Spawn launches a rule's shell command; overridable in tests.
	Spawn func(cmd string)
}

// New constructs a Manager; rebuilder is consulted whenever the
// inhibit count returns to zero while the session is idle.
func New(rebuilder Rebuilder) *Manager {
	return &Manager{nextCookie: 1337, rebuilder: rebuilder, Spawn: spawner.Spawn}
}

// InhibitLocks returns the current counter value, for diagnostics and
// tests.
func (m *Manager) InhibitLocks() int { return m.inhibitLocks }

// OnInhibit applies one unit of inhibit pressure (true) or releases one
// (false). Releasing below zero is a bug in the caller; it is logged
// and the counter clamps at zero rather than going negative (spec §3
// invariant 1's clamp clause).
func (m *Manager) OnInhibit(add bool) {
	if add {
		m.inhibitLocks++
		return
	}

	m.inhibitLocks--
	if m.inhibitLocks < 0 {
		logger.Error("inhibit counter underflowed, clamping to 0", "attempted", m.inhibitLocks)
		m.inhibitLocks = 0
	}

	if m.inhibitLocks == 0 && m.isIdled {
		if err := m.rebuilder.RebuildListeners(); err != nil {
			logger.Error("failed to rebuild idle listeners after uninhibit", "error", err)
		}
	}
}

// ScreenSaverInhibit allocates a new cookie, records it, and applies
// one inhibit unit.
func (m *Manager) ScreenSaverInhibit(app, reason, owner string) (uint32, error) {
	c := cookie{value: m.nextCookie, app: app, reason: reason, owner: owner}
	m.nextCookie++
	m.cookies = append(m.cookies, c)
	m.OnInhibit(true)
	return c.value, nil
}

// ScreenSaverUninhibit releases the cookie identified by value. Unlike
// the source implementation this was distilled from — which warns and
// still decrements the counter for an unknown cookie, risking a spurious
// rebuild — an unknown cookie here is a pure no-op besides the warning:
// the counter only ever reflects inhibitors that are actually held (see
// DESIGN.md's Open Question decision).
func (m *Manager) ScreenSaverUninhibit(value uint32) error {
	for i, c := range m.cookies {
		if c.value == value {
			m.cookies = append(m.cookies[:i], m.cookies[i+1:]...)
			m.OnInhibit(false)
			return nil
		}
	}
	logger.Warn("UnInhibit called with unknown cookie, ignoring", "cookie", value)
	return fmt.Errorf("unknown cookie %d", value)
}

// UninhibitByOwner removes every cookie owned by owner and releases one
// inhibit unit per cookie removed. Unlike the source this was distilled
// from — which decrements only once per disconnect regardless of how
// many cookies that owner held, leaking inhibit pressure — this
// decrements by the exact number removed (DESIGN.md's Open Question
// decision).
func (m *Manager) UninhibitByOwner(owner string) {
	removed := 0
	kept := m.cookies[:0]
	for _, c := range m.cookies {
		if c.owner == owner {
			removed++
			continue
		}
		kept = append(kept, c)
	}
	m.cookies = kept

	for i := 0; i < removed; i++ {
		m.OnInhibit(false)
	}
}

// OnIdled is invoked when a listener for rule reports idle. It sets
// isIdled and, unless inhibited (and the rule doesn't ignore inhibit),
// spawns the rule's on-timeout command.
func (m *Manager) OnIdled(rule config.Rule) {
	m.isIdled = true
	if m.inhibitLocks > 0 && !rule.IgnoreInhibit {
		return
	}
	m.Spawn(rule.OnTimeout)
}

// OnResumed is invoked when a listener for rule reports resume. Same
// inhibit gating as OnIdled, spawning the rule's on-resume command.
func (m *Manager) OnResumed(rule config.Rule) {
	m.isIdled = false
	if m.inhibitLocks > 0 && !rule.IgnoreInhibit {
		return
	}
	m.Spawn(rule.OnResume)
}
