// Package wayland binds the compositor's idle-notifier, lock-notifier,
// and seat globals and turns them into the small Controller interface
// the rest of the daemon drives.
package wayland

// Variant selects which idle-notification subtype a rule is bound
// with: "idle" respects compositor-level inhibition, "input-idle"
// reports true input inactivity regardless of it (spec §4.C).
type Variant int

const (
	VariantIdle Variant = iota
	VariantInputIdle
)

// Notification is one outstanding idle-notification object; Destroy
// tears it down so a fresh one can be created on rebuild (spec §4.E).
type Notification interface {
	Destroy() error
}

// Controller is the seam between the event loop and a live compositor
// connection. The real implementation wraps go-wayland/wayland/client
// plus the ext-idle-notify-v1 and lockidlenotify protocol bindings;
// tests drive the engine against a fake satisfying this interface
// instead of a live Wayland socket.
type Controller interface {
	// FD returns the display's connection file descriptor for the
	// event loop's poll set.
	FD() int

	// HasLockNotifier reports whether the compositor advertised
	// hyprland_lock_notifier_v1; if false, lock-related features
	// silently degrade per spec §4.C.
	HasLockNotifier() bool

	// CreateNotification creates one idle-notification object bound
	// to the given timeout (milliseconds) and variant. onIdle/onResume
	// are invoked from within a Wayland dispatch callback, never
	// concurrently with another callback.
	CreateNotification(timeoutMs uint32, variant Variant, onIdle, onResume func()) (Notification, error)

	// SetLockedHandler/SetUnlockedHandler register the session-lock
	// callbacks; they are no-ops if HasLockNotifier is false.
	SetLockedHandler(func())
	SetUnlockedHandler(func())

	// Flush writes any queued outgoing requests.
	Flush() error

	// PrepareRead arms the connection for a non-blocking read; ok is
	// false when other threads still have pending events to dispatch,
	// in which case the caller must fall back to Dispatch.
	PrepareRead() (ok bool, err error)

	// ReadEvents reads queued incoming messages after a successful
	// PrepareRead.
	ReadEvents() error

	// DispatchPending dispatches messages already queued in memory
	// without blocking on the socket.
	DispatchPending() error

	// Dispatch blocks until at least one event is dispatched; used as
	// the fallback when PrepareRead reports !ok (spec §4.G step 2).
	Dispatch() error

	// Close tears down the connection and every bound proxy.
	Close() error
}
