package wayland

import "testing"

func TestFakeCreateNotificationFiresCallbacks(t *testing.T) {
	f := NewFake(3, true)

	var idled, resumed bool
	n, err := f.CreateNotification(10000, VariantIdle, func() { idled = true }, func() { resumed = true })
	if err != nil {
		t.Fatalf("CreateNotification: %v", err)
	}

	fn := n.(*FakeNotification)
	fn.Idle()
	if !idled {
		t.Fatal("expected onIdle to fire")
	}
	fn.Resume()
	if !resumed {
		t.Fatal("expected onResume to fire")
	}
}

func TestFakeLockUnlockHandlers(t *testing.T) {
	f := NewFake(3, true)

	var locked, unlocked bool
	f.SetLockedHandler(func() { locked = true })
	f.SetUnlockedHandler(func() { unlocked = true })

	f.FireLocked()
	f.FireUnlocked()

	if !locked || !unlocked {
		t.Fatal("expected both handlers to fire")
	}
}

func TestFakeRecordsVariant(t *testing.T) {
	f := NewFake(3, false)

	if _, err := f.CreateNotification(5000, VariantInputIdle, nil, nil); err != nil {
		t.Fatalf("CreateNotification: %v", err)
	}

	notifications := f.Notifications()
	if len(notifications) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(notifications))
	}
	if notifications[0].Variant != VariantInputIdle {
		t.Fatalf("expected VariantInputIdle, got %v", notifications[0].Variant)
	}
}
