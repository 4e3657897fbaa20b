package sleepinhibit

import (
	"errors"
	"os"
	"testing"

	"github.com/hyprcore/hypridle/internal/config"
)

type fakeInhibitor struct {
	calls int
	err   error
}

func (f *fakeInhibitor) Inhibit(what, who, why, mode string) (*os.File, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	r, w, err := os.Pipe()
	if err != nil {
		return nil, err
	}
	w.Close()
	return r, nil
}

func newView(t *testing.T, cfg string) *config.View {
	t.Helper()
	dir := t.TempDir()
	path := dir + "/hypridle.conf"
	if err := os.WriteFile(path, []byte(cfg), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	v, err := config.Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	return v
}

const minimalRule = "listener {\n  timeout = 5\n  on-timeout = echo hi\n}\n"

func TestResolvePolicyExplicitValues(t *testing.T) {
	cases := []struct {
		name      string
		inhibit   string
		lockBound bool
		want      Policy
	}{
		{"zero is none", "0", true, None},
		{"one is normal", "1", true, Normal},
		{"three with lock-notifier is lock-notify", "3", true, LockNotify},
		{"three without lock-notifier falls back to none", "3", false, None},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			view := newView(t, "general {\n  inhibit_sleep = "+c.inhibit+"\n}\n"+minimalRule)
			if got := ResolvePolicy(view, c.lockBound); got != c.want {
				t.Fatalf("ResolvePolicy() = %v, want %v", got, c.want)
			}
		})
	}
}

func TestResolvePolicyAutoPicksLockNotifyWhenHyprlockConfigured(t *testing.T) {
	view := newView(t, "general {\n  inhibit_sleep = 2\n  before_sleep_cmd = hyprlock-is-great\n}\n"+minimalRule)

	if got := ResolvePolicy(view, true); got != LockNotify {
		t.Fatalf("ResolvePolicy() = %v, want LockNotify", got)
	}
}

func TestResolvePolicyAutoFallsBackToNormalWithoutLockNotifier(t *testing.T) {
	view := newView(t, "general {\n  inhibit_sleep = 2\n  before_sleep_cmd = hyprlock\n}\n"+minimalRule)

	if got := ResolvePolicy(view, false); got != Normal {
		t.Fatalf("ResolvePolicy() = %v, want Normal", got)
	}
}

func TestResolvePolicyAutoDefaultsToNormalWithoutHyprlock(t *testing.T) {
	view := newView(t, "general {\n  inhibit_sleep = 2\n}\n"+minimalRule)

	if got := ResolvePolicy(view, true); got != Normal {
		t.Fatalf("ResolvePolicy() = %v, want Normal", got)
	}
}

func TestNewAcquiresInitialLeaseUnlessPolicyIsNone(t *testing.T) {
	view := newView(t, "general {\n  inhibit_sleep = 1\n}\n"+minimalRule)
	inh := &fakeInhibitor{}

	c := New(view, false, inh, func(string) {})

	if !c.Held() {
		t.Fatal("expected an initial lease to be held")
	}
	if inh.calls != 1 {
		t.Fatalf("expected Inhibit called once, got %d", inh.calls)
	}
}

func TestNewSkipsInitialLeaseWhenPolicyIsNone(t *testing.T) {
	view := newView(t, "general {\n  inhibit_sleep = 0\n}\n"+minimalRule)
	inh := &fakeInhibitor{}

	c := New(view, false, inh, func(string) {})

	if c.Held() {
		t.Fatal("expected no lease held under None policy")
	}
	if inh.calls != 0 {
		t.Fatalf("expected Inhibit never called, got %d", inh.calls)
	}
}

func TestNormalHandshakeSpawnsBeforeSleepThenReleases(t *testing.T) {
	view := newView(t, "general {\n  inhibit_sleep = 1\n  before_sleep_cmd = suspend-prep\n  after_sleep_cmd = resume-prep\n}\n"+minimalRule)
	inh := &fakeInhibitor{}
	var spawned []string
	c := New(view, false, inh, func(cmd string) { spawned = append(spawned, cmd) })

	c.OnPrepareForSleep(true)

	if c.Held() {
		t.Fatal("expected lease released after PrepareForSleep(true) under Normal policy")
	}
	if len(spawned) != 1 || spawned[0] != "suspend-prep" {
		t.Fatalf("expected before_sleep_cmd spawned, got %v", spawned)
	}

	c.OnPrepareForSleep(false)

	if !c.Held() {
		t.Fatal("expected lease re-acquired after PrepareForSleep(false) under Normal policy")
	}
	if len(spawned) != 2 || spawned[1] != "resume-prep" {
		t.Fatalf("expected after_sleep_cmd spawned, got %v", spawned)
	}
}

func TestLockNotifyHandshakeIgnoresPrepareForSleep(t *testing.T) {
	view := newView(t, "general {\n  inhibit_sleep = 3\n}\n"+minimalRule)
	inh := &fakeInhibitor{}
	c := New(view, true, inh, func(string) {})

	c.OnPrepareForSleep(true)
	if !c.Held() {
		t.Fatal("expected LockNotify policy to leave the lease untouched by PrepareForSleep")
	}

	c.OnLocked()
	if c.Held() {
		t.Fatal("expected OnLocked to release the lease under LockNotify")
	}

	c.OnUnlocked()
	if !c.Held() {
		t.Fatal("expected OnUnlocked to re-acquire the lease under LockNotify")
	}
}

func TestNoneHandshakeNeverAcquiresOrReleases(t *testing.T) {
	view := newView(t, "general {\n  inhibit_sleep = 0\n}\n"+minimalRule)
	inh := &fakeInhibitor{}
	c := New(view, true, inh, func(string) {})

	c.OnPrepareForSleep(true)
	c.OnLocked()
	c.OnPrepareForSleep(false)
	c.OnUnlocked()

	if inh.calls != 0 {
		t.Fatalf("expected Inhibit never called under None policy, got %d", inh.calls)
	}
}

func TestInhibitSleepDropsPriorLeaseBeforeAcquiringNew(t *testing.T) {
	view := newView(t, "general {\n  inhibit_sleep = 1\n}\n"+minimalRule)
	inh := &fakeInhibitor{}
	c := New(view, false, inh, func(string) {})

	c.InhibitSleep()

	if inh.calls != 2 {
		t.Fatalf("expected Inhibit called twice (initial + re-acquire), got %d", inh.calls)
	}
	if !c.Held() {
		t.Fatal("expected a lease to still be held")
	}
}

func TestInhibitSleepLogsAndLeavesUnheldOnError(t *testing.T) {
	view := newView(t, "general {\n  inhibit_sleep = 0\n}\n"+minimalRule)
	inh := &fakeInhibitor{err: errors.New("permission denied")}
	c := New(view, false, inh, func(string) {})

	c.InhibitSleep()

	if c.Held() {
		t.Fatal("expected no lease held after a failed acquire")
	}
}
