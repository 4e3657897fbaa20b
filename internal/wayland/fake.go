package wayland

import (
	"errors"
	"sync"
)

var errCreateFailed = errors.New("fake: CreateNotification forced failure")

// Fake is an in-memory Controller used by engine tests and by this
// package's own tests; it never touches a real compositor socket.
type Fake struct {
	mu sync.Mutex

	fd              int
	hasLockNotifier bool
	lockedHandler   func()
	unlockedHandler func()

	notifications []*FakeNotification

	FlushCalls           int
	PrepareReadOK         bool
	DispatchPendingCalls  int
	DispatchCalls         int
	Closed                bool

	// FailNextCreate makes the next CreateNotification call return an
	// error instead of succeeding, then resets itself.
	FailNextCreate bool
}

// FakeNotification is a Notification returned by Fake.CreateNotification;
// tests fire Idle/Resume directly.
type FakeNotification struct {
	Variant   Variant
	TimeoutMs uint32
	onIdle    func()
	onResume  func()
	destroyed bool
}

func (n *FakeNotification) Idle()   { n.onIdle() }
func (n *FakeNotification) Resume() { n.onResume() }

func (n *FakeNotification) Destroy() error {
	n.destroyed = true
	return nil
}

// DestroyedForTest reports whether Destroy has been called, for
// rebuild-path assertions.
func (n *FakeNotification) DestroyedForTest() bool { return n.destroyed }

// NewFake constructs a Fake; hasLockNotifier fixes what HasLockNotifier
// reports for the Fake's whole lifetime.
func NewFake(fd int, hasLockNotifier bool) *Fake {
	return &Fake{fd: fd, hasLockNotifier: hasLockNotifier, PrepareReadOK: true}
}

func (f *Fake) FD() int              { return f.fd }
func (f *Fake) HasLockNotifier() bool { return f.hasLockNotifier }

func (f *Fake) CreateNotification(timeoutMs uint32, variant Variant, onIdle, onResume func()) (Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailNextCreate {
		f.FailNextCreate = false
		return nil, errCreateFailed
	}
	n := &FakeNotification{Variant: variant, TimeoutMs: timeoutMs, onIdle: onIdle, onResume: onResume}
	f.notifications = append(f.notifications, n)
	return n, nil
}

func (f *Fake) SetLockedHandler(h func())   { f.lockedHandler = h }
func (f *Fake) SetUnlockedHandler(h func()) { f.unlockedHandler = h }

// FireLocked/FireUnlocked simulate the compositor's lock-notifier
// events for tests.
func (f *Fake) FireLocked() {
	if f.lockedHandler != nil {
		f.lockedHandler()
	}
}
func (f *Fake) FireUnlocked() {
	if f.unlockedHandler != nil {
		f.unlockedHandler()
	}
}

func (f *Fake) Flush() error {
	f.FlushCalls++
	return nil
}

func (f *Fake) PrepareRead() (bool, error) {
	return f.PrepareReadOK, nil
}

func (f *Fake) ReadEvents() error { return nil }

func (f *Fake) DispatchPending() error {
	f.DispatchPendingCalls++
	return nil
}

func (f *Fake) Dispatch() error {
	f.DispatchCalls++
	return nil
}

func (f *Fake) Close() error {
	f.Closed = true
	return nil
}

// Notifications returns every notification created so far, for
// assertions on variant selection.
func (f *Fake) Notifications() []*FakeNotification {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*FakeNotification, len(f.notifications))
	copy(out, f.notifications)
	return out
}
