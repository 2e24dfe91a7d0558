// Package dispatch implements the deferred-work dispatcher (spec.md §4.3):
// a single sleep-capable worker backing the three named callables
// (do_xfer_now, postprocess, recover) so operations that may sleep never
// run in interrupt or bus-completion context. Grounded on the teacher's
// internal/queue.Runner OS-thread-pinned I/O loop: one worker, one thing
// running at a time, everything else queued.
package dispatch

import (
	"runtime"
	"sync"

	"github.com/ehrlich-b/symspi/internal/constants"
	"github.com/ehrlich-b/symspi/internal/interfaces"
)

// Slot tracks at-most-one-in-flight submission for a single named
// callable. A Submit while the slot is queued or running is rejected,
// matching spec.md's "at most one instance of each callable runs at a
// time".
type Slot struct {
	mu        sync.Mutex
	queued    bool
	running   bool
	cancelled bool
	wg        sync.WaitGroup
}

func (s *Slot) trySubmit() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.queued || s.running {
		return false
	}
	s.queued = true
	s.cancelled = false
	s.wg.Add(1)
	return true
}

func (s *Slot) beginRun() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queued = false
	if s.cancelled {
		s.wg.Done()
		return false
	}
	s.running = true
	return true
}

func (s *Slot) endRun() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
	s.wg.Done()
}

// Cancel cancels a queued-but-not-yet-started submission. Returns true if
// one was queued.
func (s *Slot) Cancel() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.queued {
		return false
	}
	s.cancelled = true
	return true
}

// CancelAndWait cancels a queued submission and, if one is currently
// running, blocks until it returns. Sleep-capable contexts only.
func (s *Slot) CancelAndWait() {
	s.Cancel()
	s.wg.Wait()
}

type job struct {
	slot *Slot
	fn   func()
}

// Dispatcher is the single-threaded, sleep-capable worker backing the
// core's deferred callables.
type Dispatcher struct {
	jobs chan job
	quit chan struct{}
	wg   sync.WaitGroup

	logger interfaces.Logger

	DoXferNow   *Slot
	Postprocess *Slot
	Recover     *Slot
}

// New starts a dispatcher in the given runner mode.
func New(mode constants.RunnerMode, logger interfaces.Logger) *Dispatcher {
	d := &Dispatcher{
		jobs:        make(chan job, 8),
		quit:        make(chan struct{}),
		logger:      logger,
		DoXferNow:   &Slot{},
		Postprocess: &Slot{},
		Recover:     &Slot{},
	}
	d.wg.Add(1)
	go d.loop(mode)
	return d
}

func (d *Dispatcher) loop(mode constants.RunnerMode) {
	defer d.wg.Done()

	if mode == constants.RunnerModePrivateHighPriority {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
	}
	if mode != constants.RunnerModeSharedDefault {
		applyHighPriority(d.logger)
	}

	for {
		select {
		case j, ok := <-d.jobs:
			if !ok {
				return
			}
			if j.slot.beginRun() {
				j.fn()
				j.slot.endRun()
			}
		case <-d.quit:
			return
		}
	}
}

func (d *Dispatcher) submit(slot *Slot, fn func()) bool {
	if !slot.trySubmit() {
		return false
	}
	select {
	case d.jobs <- job{slot: slot, fn: fn}:
		return true
	case <-d.quit:
		slot.Cancel()
		slot.wg.Done()
		return false
	}
}

// SubmitDoXferNow enqueues the do_xfer_now callable.
func (d *Dispatcher) SubmitDoXferNow(fn func()) bool { return d.submit(d.DoXferNow, fn) }

// SubmitPostprocess enqueues the postprocess callable.
func (d *Dispatcher) SubmitPostprocess(fn func()) bool { return d.submit(d.Postprocess, fn) }

// SubmitRecover enqueues the recover callable.
func (d *Dispatcher) SubmitRecover(fn func()) bool { return d.submit(d.Recover, fn) }

// CancelAndWaitAll cancels and waits for all three named callables, used
// during Close's ordered teardown.
func (d *Dispatcher) CancelAndWaitAll() {
	d.DoXferNow.CancelAndWait()
	d.Postprocess.CancelAndWait()
	d.Recover.CancelAndWait()
}

// Close stops accepting new work and waits for the worker to exit. Callers
// must CancelAndWaitAll first so no slot is left running past Close.
func (d *Dispatcher) Close() {
	close(d.quit)
	d.wg.Wait()
}
