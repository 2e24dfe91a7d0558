// Package timer implements the transport's one-shot, restartable waiting
// timer (spec.md §4.2). It is cancellable from any context; CancelAndWait
// additionally blocks until a concurrently firing callback has returned,
// and must only be invoked from a sleep-capable context.
package timer

import (
	"fmt"
	"sync"
	"time"

	"github.com/ehrlich-b/symspi/internal/constants"
)

// OneShot is a single restartable timer. The zero value is not usable;
// use New.
type OneShot struct {
	mu      sync.Mutex
	timer   *time.Timer
	running bool
	fire    func()
	wg      sync.WaitGroup
}

// New returns an unarmed timer.
func New() *OneShot {
	return &OneShot{}
}

// Arm (re)starts the timer for d, invoking fire on expiry. d must be at
// least constants.MinPeerWaitTimeout; callers that need a different floor
// validate before calling Arm. Any previously armed, not-yet-fired timer is
// stopped first.
func (t *OneShot) Arm(d time.Duration, fire func()) error {
	if d < constants.MinPeerWaitTimeout {
		return fmt.Errorf("timer: duration %s below floor %s", d, constants.MinPeerWaitTimeout)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
	t.fire = fire
	t.running = true
	t.wg.Add(1)
	t.timer = time.AfterFunc(d, func() {
		defer t.wg.Done()
		t.mu.Lock()
		armed := t.running
		t.running = false
		f := t.fire
		t.mu.Unlock()
		if armed && f != nil {
			f()
		}
	})
	return nil
}

// Cancel stops the timer if it has not yet fired. Safe to call from any
// context, including interrupt and timer-expiry domains, since it never
// blocks: it races the expiry goroutine but never waits for it.
func (t *OneShot) Cancel() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopLocked()
}

func (t *OneShot) stopLocked() bool {
	if t.timer == nil {
		return false
	}
	stopped := t.timer.Stop()
	t.running = false
	t.timer = nil
	if stopped {
		// The AfterFunc goroutine will never run; balance the Add(1) from
		// Arm ourselves so CancelAndWait doesn't block on a callback that
		// is never going to fire.
		t.wg.Done()
	}
	return stopped
}

// CancelAndWait stops the timer and, if its callback is already running,
// blocks until it returns. Only safe to call from a sleep-capable context
// — this is how the design absorbs the race noted in spec.md §9(a), where a
// timer arm may be shadowed by an interrupt's cancel.
func (t *OneShot) CancelAndWait() {
	t.Cancel()
	t.wg.Wait()
}
