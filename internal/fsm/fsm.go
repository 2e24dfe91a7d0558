// Package fsm implements the core's state controller (spec.md §4.6): the
// single atomic state word that every other component serializes against,
// plus the closing latch and the leave-Xfer completion signal Close waits
// on.
package fsm

import (
	"sync"
	"sync/atomic"
)

// State is one of the transport's reachable states.
type State int32

const (
	Cold State = iota
	Idle
	XferPrepare
	WaitingPrev
	WaitingRdy
	Xfer
	Postprocessing
	Error
)

func (s State) String() string {
	switch s {
	case Cold:
		return "Cold"
	case Idle:
		return "Idle"
	case XferPrepare:
		return "XferPrepare"
	case WaitingPrev:
		return "WaitingPrev"
	case WaitingRdy:
		return "WaitingRdy"
	case Xfer:
		return "Xfer"
	case Postprocessing:
		return "Postprocessing"
	case Error:
		return "Error"
	default:
		return "Unknown"
	}
}

// Controller owns the state word and the closing latch. Every mutation is
// a compare-and-swap or an atomic exchange; there is no lock. Ownership of
// every other mutable field in the core (buffers, counters, ledger
// entries) is a function of who currently "holds" the state, per spec.md §5.
type Controller struct {
	state   atomic.Int32
	closing atomic.Bool

	// leaveXfer is signaled exactly once, the moment a strict switch
	// leaves Xfer while closing is set, so Close can stop waiting. It is
	// replaced (not reused) each time Close arms a fresh wait, since
	// channels cannot be un-closed.
	leaveXferMu sync.Mutex
	leaveXfer   chan struct{}
}

// New returns a controller in state Cold, matching the post-construction
// state spec.md mandates.
func New() *Controller {
	c := &Controller{}
	c.state.Store(int32(Cold))
	return c
}

// State returns the current state.
func (c *Controller) State() State {
	return State(c.state.Load())
}

// Closing reports whether the closing latch is set.
func (c *Controller) Closing() bool {
	return c.closing.Load()
}

// ArmClose sets the closing latch (idempotent; returns false if already
// set, matching the AlreadyClosing semantics of §4.8's close()) and arms a
// fresh leave-Xfer wait channel.
func (c *Controller) ArmClose() bool {
	if !c.closing.CompareAndSwap(false, true) {
		return false
	}
	c.leaveXferMu.Lock()
	c.leaveXfer = make(chan struct{})
	c.leaveXferMu.Unlock()
	return true
}

// DisarmClose clears the closing latch. Used only by Init when
// constructing (or Reset when re-constructing) a device.
func (c *Controller) DisarmClose() {
	c.closing.Store(false)
}

// SwitchStrict attempts an atomic from->to transition. If the closing
// latch is set, the only permitted transition is any->non-Xfer leaving
// current==Xfer; every other attempt fails. When a transition specifically
// leaves Xfer while closing, the leave-Xfer signal fires exactly once so
// Close can return.
func (c *Controller) SwitchStrict(from, to State) bool {
	if c.closing.Load() {
		if from != Xfer || to == Xfer {
			return false
		}
	}
	ok := c.state.CompareAndSwap(int32(from), int32(to))
	if ok && c.closing.Load() && from == Xfer && to != Xfer {
		c.fireLeaveXfer()
	}
	return ok
}

// SwitchForced unconditionally exchanges the state. Used only during
// construction and teardown, per spec.md §4.6.
func (c *Controller) SwitchForced(to State) State {
	prev := c.state.Swap(int32(to))
	return State(prev)
}

func (c *Controller) fireLeaveXfer() {
	c.leaveXferMu.Lock()
	ch := c.leaveXfer
	c.leaveXferMu.Unlock()
	if ch == nil {
		return
	}
	select {
	case <-ch:
		// already closed
	default:
		close(ch)
	}
}

// WaitLeaveXfer blocks until a strict switch leaves Xfer, or the channel is
// never armed (returns a nil channel, which blocks forever — callers must
// pair this with a timeout via select). Call ArmClose first.
func (c *Controller) WaitLeaveXfer() <-chan struct{} {
	c.leaveXferMu.Lock()
	defer c.leaveXferMu.Unlock()
	return c.leaveXfer
}
