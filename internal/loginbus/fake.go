package loginbus

import (
	"fmt"
	"os"
)

// Fake is an in-memory Conn for driving the engine in tests without a
// real system bus.
type Fake struct {
	wake chan struct{}

	lockHandler            func()
	unlockHandler          func()
	prepareForSleepHandler func(bool)
	blockInhibitedHandler  func(string)

	blockInhibited string
	inhibitCalls   int
	InhibitErr     error
	Closed         bool

	pending []func()
}

func NewFake() *Fake {
	return &Fake{wake: make(chan struct{}, 1)}
}

func (f *Fake) Wake() <-chan struct{} { return f.wake }

func (f *Fake) SetLockHandler(h func())                { f.lockHandler = h }
func (f *Fake) SetUnlockHandler(h func())               { f.unlockHandler = h }
func (f *Fake) SetPrepareForSleepHandler(h func(bool))  { f.prepareForSleepHandler = h }
func (f *Fake) SetBlockInhibitedHandler(h func(string)) { f.blockInhibitedHandler = h }

func (f *Fake) InitialBlockInhibited() (string, error) {
	return f.blockInhibited, nil
}

// SetInitialBlockInhibited configures the value InitialBlockInhibited
// returns; call before the component under test reads it.
func (f *Fake) SetInitialBlockInhibited(v string) { f.blockInhibited = v }

func (f *Fake) Inhibit(what, who, why, mode string) (*os.File, error) {
	f.inhibitCalls++
	if f.InhibitErr != nil {
		return nil, f.InhibitErr
	}
	r, w, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("fake inhibit pipe: %w", err)
	}
	w.Close()
	return r, nil
}

// InhibitCalls reports how many times Inhibit has been called.
func (f *Fake) InhibitCalls() int { return f.inhibitCalls }

// QueueLock/QueueUnlock/QueuePrepareForSleep/QueueBlockInhibited enqueue
// an event to be dispatched on the next DrainPending call, simulating
// signal arrival order.
func (f *Fake) QueueLock() {
	f.pending = append(f.pending, func() {
		if f.lockHandler != nil {
			f.lockHandler()
		}
	})
	f.signalWake()
}

func (f *Fake) QueueUnlock() {
	f.pending = append(f.pending, func() {
		if f.unlockHandler != nil {
			f.unlockHandler()
		}
	})
	f.signalWake()
}

func (f *Fake) QueuePrepareForSleep(toSleep bool) {
	f.pending = append(f.pending, func() {
		if f.prepareForSleepHandler != nil {
			f.prepareForSleepHandler(toSleep)
		}
	})
	f.signalWake()
}

func (f *Fake) QueueBlockInhibited(tokens string) {
	f.pending = append(f.pending, func() {
		if f.blockInhibitedHandler != nil {
			f.blockInhibitedHandler(tokens)
		}
	})
	f.signalWake()
}

func (f *Fake) signalWake() {
	select {
	case f.wake <- struct{}{}:
	default:
	}
}

func (f *Fake) DrainPending() {
	pending := f.pending
	f.pending = nil
	for _, call := range pending {
		call()
	}
}

func (f *Fake) Close() error {
	f.Closed = true
	return nil
}
