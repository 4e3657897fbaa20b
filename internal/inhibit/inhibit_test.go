package inhibit

import (
	"errors"
	"testing"

	"github.com/hyprcore/hypridle/internal/config"
)

type fakeRebuilder struct {
	calls int
	err   error
}

func (f *fakeRebuilder) RebuildListeners() error {
	f.calls++
	return f.err
}

func newTestManager(r Rebuilder) (*Manager, *[]string) {
	m := New(r)
	var spawned []string
	m.Spawn = func(cmd string) { spawned = append(spawned, cmd) }
	return m, &spawned
}

func TestOnInhibitClampsAtZeroOnUnderflow(t *testing.T) {
	m, _ := newTestManager(&fakeRebuilder{})

	m.OnInhibit(false)

	if got := m.InhibitLocks(); got != 0 {
		t.Fatalf("expected counter clamped to 0, got %d", got)
	}
}

func TestOnInhibitIncrementsAndDecrements(t *testing.T) {
	m, _ := newTestManager(&fakeRebuilder{})

	m.OnInhibit(true)
	m.OnInhibit(true)
	if got := m.InhibitLocks(); got != 2 {
		t.Fatalf("expected 2, got %d", got)
	}

	m.OnInhibit(false)
	if got := m.InhibitLocks(); got != 1 {
		t.Fatalf("expected 1, got %d", got)
	}
}

func TestOnInhibitRebuildsListenersWhenCountHitsZeroWhileIdled(t *testing.T) {
	reb := &fakeRebuilder{}
	m, _ := newTestManager(reb)

	m.OnInhibit(true)
	m.OnIdled(config.Rule{})

	m.OnInhibit(false)

	if reb.calls != 1 {
		t.Fatalf("expected RebuildListeners called once, got %d", reb.calls)
	}
}

func TestOnInhibitDoesNotRebuildWhenNotIdled(t *testing.T) {
	reb := &fakeRebuilder{}
	m, _ := newTestManager(reb)

	m.OnInhibit(true)
	m.OnInhibit(false)

	if reb.calls != 0 {
		t.Fatalf("expected no rebuild while not idled, got %d calls", reb.calls)
	}
}

func TestOnInhibitLogsButContinuesWhenRebuildFails(t *testing.T) {
	reb := &fakeRebuilder{err: errors.New("boom")}
	m, _ := newTestManager(reb)

	m.OnIdled(config.Rule{})
	m.OnInhibit(true)
	m.OnInhibit(false) // must not panic despite the rebuild error

	if reb.calls != 1 {
		t.Fatalf("expected rebuild attempted once, got %d", reb.calls)
	}
}

func TestScreenSaverInhibitAllocatesSequentialCookiesStartingAt1337(t *testing.T) {
	m, _ := newTestManager(&fakeRebuilder{})

	c1, err := m.ScreenSaverInhibit("app1", "reason1", ":1.1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c2, err := m.ScreenSaverInhibit("app2", "reason2", ":1.2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if c1 != 1337 || c2 != 1338 {
		t.Fatalf("expected cookies 1337, 1338, got %d, %d", c1, c2)
	}
	if got := m.InhibitLocks(); got != 2 {
		t.Fatalf("expected 2 inhibit locks held, got %d", got)
	}
}

func TestScreenSaverUninhibitUnknownCookieDoesNotDecrement(t *testing.T) {
	m, _ := newTestManager(&fakeRebuilder{})

	if _, err := m.ScreenSaverInhibit("app", "reason", ":1.1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := m.ScreenSaverUninhibit(9999)
	if err == nil {
		t.Fatal("expected an error for an unknown cookie")
	}
	if got := m.InhibitLocks(); got != 1 {
		t.Fatalf("expected the counter to be untouched at 1, got %d", got)
	}
}

func TestScreenSaverUninhibitKnownCookieDecrements(t *testing.T) {
	m, _ := newTestManager(&fakeRebuilder{})

	cookie, err := m.ScreenSaverInhibit("app", "reason", ":1.1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := m.ScreenSaverUninhibit(cookie); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := m.InhibitLocks(); got != 0 {
		t.Fatalf("expected counter back to 0, got %d", got)
	}

	// Releasing the same cookie twice is now unknown.
	if err := m.ScreenSaverUninhibit(cookie); err == nil {
		t.Fatal("expected releasing an already-released cookie to error")
	}
}

func TestUninhibitByOwnerDecrementsByExactCountRemoved(t *testing.T) {
	m, _ := newTestManager(&fakeRebuilder{})

	if _, err := m.ScreenSaverInhibit("a", "r1", ":1.42"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := m.ScreenSaverInhibit("b", "r2", ":1.42"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := m.ScreenSaverInhibit("c", "r3", ":1.7"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := m.InhibitLocks(); got != 3 {
		t.Fatalf("expected 3 locks held, got %d", got)
	}

	m.UninhibitByOwner(":1.42")

	if got := m.InhibitLocks(); got != 1 {
		t.Fatalf("expected owner's two cookies released, leaving 1, got %d", got)
	}
}

func TestUninhibitByOwnerWithNoCookiesIsNoop(t *testing.T) {
	m, _ := newTestManager(&fakeRebuilder{})

	m.UninhibitByOwner(":1.99")

	if got := m.InhibitLocks(); got != 0 {
		t.Fatalf("expected counter untouched at 0, got %d", got)
	}
}

func TestOnIdledSpawnsOnTimeoutWhenNotInhibited(t *testing.T) {
	m, spawned := newTestManager(&fakeRebuilder{})

	rule := config.Rule{OnTimeout: "lock-screen"}
	m.OnIdled(rule)

	if len(*spawned) != 1 || (*spawned)[0] != "lock-screen" {
		t.Fatalf("expected on-timeout command spawned, got %v", *spawned)
	}
}

func TestOnIdledSkipsSpawnWhenInhibited(t *testing.T) {
	m, spawned := newTestManager(&fakeRebuilder{})

	m.OnInhibit(true)
	rule := config.Rule{OnTimeout: "lock-screen"}
	m.OnIdled(rule)

	if len(*spawned) != 0 {
		t.Fatalf("expected no command spawned while inhibited, got %v", *spawned)
	}
}

func TestOnIdledIgnoresInhibitWhenRuleOptsOut(t *testing.T) {
	m, spawned := newTestManager(&fakeRebuilder{})

	m.OnInhibit(true)
	rule := config.Rule{OnTimeout: "lock-screen", IgnoreInhibit: true}
	m.OnIdled(rule)

	if len(*spawned) != 1 || (*spawned)[0] != "lock-screen" {
		t.Fatalf("expected on-timeout command spawned despite inhibit, got %v", *spawned)
	}
}

func TestOnResumedSpawnsOnResumeWhenNotInhibited(t *testing.T) {
	m, spawned := newTestManager(&fakeRebuilder{})

	rule := config.Rule{OnResume: "unlock-screen"}
	m.OnIdled(rule)
	*spawned = nil
	m.OnResumed(rule)

	if len(*spawned) != 1 || (*spawned)[0] != "unlock-screen" {
		t.Fatalf("expected on-resume command spawned, got %v", *spawned)
	}
}

func TestOnResumedSkipsSpawnWhenInhibited(t *testing.T) {
	m, spawned := newTestManager(&fakeRebuilder{})

	m.OnInhibit(true)
	rule := config.Rule{OnResume: "unlock-screen"}
	m.OnResumed(rule)

	if len(*spawned) != 0 {
		t.Fatalf("expected no command spawned while inhibited, got %v", *spawned)
	}
}
