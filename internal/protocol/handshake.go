package protocol

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/ehrlich-b/symspi/internal/constants"
	"github.com/ehrlich-b/symspi/internal/errs"
	"github.com/ehrlich-b/symspi/internal/fsm"
	"github.com/ehrlich-b/symspi/internal/xferbuf"
)

// exchangeInternal is Exchange without the closing check, so Init,
// returnToIdle, and recover can re-enter the pipeline on the device's own
// behalf once state is already back at Idle (spec.md §9's "self-referential
// wakeups": by the time these call back in, the call is indistinguishable
// from an external request).
func (d *Dev) exchangeInternal(newXfer *xferbuf.Xfer, forceSizeChange bool) (int32, error) {
	if !d.state.SwitchStrict(fsm.Idle, fsm.XferPrepare) {
		if newXfer == nil {
			d.pendingRequest.Store(true)
		}
		return 0, errs.New("Exchange", errs.NotReady, "")
	}

	if newXfer != nil {
		if err := d.bufs.Replace(newXfer, forceSizeChange); err != nil {
			d.state.SwitchStrict(fsm.XferPrepare, fsm.Idle)
			return 0, err
		}
	}

	id := d.nextID()
	cur := d.bufs.Current()
	cur.ID = id
	cur.Count = 0

	d.driveXferPrepare()
	return id, nil
}

// driveXferPrepare implements the "nominal transfer" entry sequence of
// spec.md §4.7: assert our flag, move to WaitingPrev, arm the timeout, and
// attempt to leave WaitingPrev immediately.
func (d *Dev) driveXferPrepare() {
	if err := d.flags.AssertOur(); err != nil {
		d.handle(errs.BusLayer, err.Error(), "driveXferPrepare")
		return
	}
	if !d.state.SwitchStrict(fsm.XferPrepare, fsm.WaitingPrev) {
		return
	}
	d.armTimeout()
	d.tryLeaveWaitingPrev()
}

// tryLeaveWaitingPrev attempts to leave WaitingPrev once the peer has
// released from the previous cycle (drop-counter == 1) or we are the
// slave, which bypasses WaitingPrev entirely (spec.md §4.7).
func (d *Dev) tryLeaveWaitingPrev() {
	if d.cfg.Role != RoleSlave && d.dropCounter.Load() != 1 {
		return
	}

	if d.cfg.Role == RoleSlave || d.cfg.HardwareReady {
		if d.state.SwitchStrict(fsm.WaitingPrev, fsm.Xfer) {
			d.timeout.Cancel()
			d.scheduleSubmit()
		}
		return
	}

	// Master without hardware-ready: still needs the peer's new assert.
	if d.state.SwitchStrict(fsm.WaitingPrev, fsm.WaitingRdy) {
		d.armTimeout()
		if asserted, _ := d.flags.PeerAsserted(); asserted {
			d.tryLeaveWaitingRdy()
		}
	}
}

// tryLeaveWaitingRdy attempts WaitingRdy→Xfer once the peer is observed
// asserted (spec.md §4.7/§4.9).
func (d *Dev) tryLeaveWaitingRdy() {
	if d.state.SwitchStrict(fsm.WaitingRdy, fsm.Xfer) {
		d.timeout.Cancel()
		d.scheduleSubmit()
	}
}

// scheduleSubmit hands the bus submission to the do_xfer_now deferred
// callable (spec.md §4.3) so the interrupt and timer domains that drive
// WaitingPrev/WaitingRdy normally leave the bus call to the dispatcher's
// sleep-capable worker. When there is no dispatcher, or the do_xfer_now
// slot is already queued or running, the submission runs inline on the
// calling goroutine instead.
func (d *Dev) scheduleSubmit() {
	if d.disp == nil || !d.disp.SubmitDoXferNow(d.submitToBus) {
		d.submitToBus()
	}
}

// submitToBus zeroes the drop-counter, updates the native descriptor, and
// submits the transfer (spec.md §4.7 "Submit to bus").
func (d *Dev) submitToBus() {
	d.dropCounter.Store(0)
	cur := d.bufs.Current()
	d.bufs.UpdateNativeDescriptor(d.cfg.WordWidth)
	if err := d.bus.Submit(cur.TX, cur.RX, d.onBusCompletion); err != nil {
		d.handle(errs.BusLayer, err.Error(), "submitToBus")
	}
}

// onBusCompletion is invoked by the bus driver from a non-sleeping context
// (spec.md §4.7 "Completion handoff").
func (d *Dev) onBusCompletion(status int32) {
	if !d.state.SwitchStrict(fsm.Xfer, fsm.Postprocessing) {
		d.handle(errs.Logical, "", "onBusCompletion")
		return
	}
	if kind, _ := d.lastError.Load().(errs.Code); kind != "" {
		d.handle(kind, "", "onBusCompletion")
		return
	}
	if status != 0 {
		d.handle(errs.BusLayer, fmt.Sprintf("status=%d", status), "onBusCompletion")
		return
	}
	d.disp.SubmitPostprocess(d.postprocess)
}

// postprocess runs in the sleep-capable domain (spec.md §4.7 "Postprocess").
func (d *Dev) postprocess() {
	if d.state.State() != fsm.Postprocessing {
		return
	}
	cur := d.bufs.Current()
	cur.IncrementCount()

	start := false
	nextID := d.peekNextID()
	var result xferbuf.DoneResult
	if cur.Done != nil {
		result = cur.Done(cur, nextID, &start, cur.Handle)
	}

	if result.Halt {
		return
	}

	if result.Replace != nil {
		returned := cur
		if err := d.bufs.Replace(result.Replace, true); err != nil {
			if returned.Accept != nil {
				returned.Accept(returned)
			}
			_ = d.flags.DeassertOur()
			d.sleepSilence(d.cfg.InactiveMinimum, constants.InactiveMinimumJitterPct)
			d.logger.Printf("postprocess: replace failed: %v", err)
			d.state.SwitchForced(fsm.Idle)
			return
		}
		if returned.Accept != nil {
			returned.Accept(returned)
		}
	}

	d.counters.xfersOK.Add(1)
	d.observer.ObserveExchange(0, true)

	_ = d.flags.DeassertOur()
	d.sleepSilence(d.cfg.InactiveMinimum, constants.InactiveMinimumJitterPct)
	d.returnToIdleFromPostprocessing()
}

// returnToIdleFromPostprocessing implements spec.md §4.7's
// "Return-to-idle sequence".
func (d *Dev) returnToIdleFromPostprocessing() {
	d.timeout.CancelAndWait()
	if d.state.SwitchStrict(fsm.Postprocessing, fsm.Idle) {
		d.maybeReenter()
	}
}

// maybeReenter re-issues a self-triggered request if one is pending, or if
// the peer is already asserted with a clean drop-counter (a request that
// arrived while we were busy), per spec.md §4.7/§4.9.
func (d *Dev) maybeReenter() {
	if d.pendingRequest.CompareAndSwap(true, false) {
		_, _ = d.exchangeInternal(nil, false)
		return
	}
	if asserted, _ := d.flags.PeerAsserted(); asserted && d.dropCounter.Load() == 1 {
		_, _ = d.exchangeInternal(nil, false)
	}
}

// armTimeout arms the peer-wait timer, falling back to the configured
// default when unset. Arm can only fail if the configured duration is
// below the timer's own floor, which Init already rejects; this check
// exists so a misconfiguration can never leave a peer-wait unbounded
// instead of silently dropping the error.
func (d *Dev) armTimeout() {
	if err := d.timeout.Arm(d.peerWaitTimeout(), d.onTimeout); err != nil {
		d.handle(errs.Logical, err.Error(), "armTimeout")
	}
}

func (d *Dev) peerWaitTimeout() time.Duration {
	if d.cfg.PeerWaitTimeout <= 0 {
		return constants.DefaultPeerWaitTimeout
	}
	return d.cfg.PeerWaitTimeout
}

// onTimeout fires in the timer-expiry domain (spec.md §4.2/§5): must not
// block, so it only bumps counters, reports to the ledger, and enqueues.
func (d *Dev) onTimeout() {
	d.handle(errs.WaitOtherSide, "", "timeout")
}

// handle implements spec.md §4.5's handle(): bump the counter, report to
// the ledger, then walk the state word until it lands on a sink or defers
// to a bounded future event.
func (d *Dev) handle(kind errs.Code, subCode, site string) {
	d.bumpCounter(kind)
	if _, line := d.ledger.Report(string(kind), subCode, site); line != "" {
		d.logger.Printf("%s", line)
	}

	for {
		switch st := d.state.State(); st {
		case fsm.Cold, fsm.Error:
			return
		case fsm.Xfer:
			d.lastError.Store(kind)
			if d.state.SwitchStrict(fsm.Postprocessing, fsm.Error) {
				d.disp.SubmitRecover(d.recover)
			}
			return
		default:
			d.lastError.Store(kind)
			if d.state.SwitchStrict(st, fsm.Error) {
				d.disp.SubmitRecover(d.recover)
				return
			}
			// State moved under us between the Load and the CAS; loop and
			// re-observe. Termination: every iteration either succeeds,
			// lands on Cold/Error, or falls into the Xfer case above.
		}
	}
}

func (d *Dev) bumpCounter(kind errs.Code) {
	switch kind {
	case errs.OtherSide:
		d.counters.otherSideErrors.Add(1)
	case errs.WaitOtherSide:
		d.counters.noReactionErrors.Add(1)
	}
	d.observer.ObserveError(string(kind))
}

// recover implements spec.md §4.7's "Error-recovery pulse train".
func (d *Dev) recover() {
	if d.state.State() != fsm.Error {
		return
	}
	d.timeout.CancelAndWait()

	start := time.Now()
	for _, assert := range [5]bool{false, true, false, true, false} {
		if assert {
			_ = d.flags.AssertOur()
		} else {
			_ = d.flags.DeassertOur()
		}
		d.sleepSilence(d.cfg.InactiveMinimum, constants.InactiveMinimumJitterPct)
	}
	d.sleepSilence(d.cfg.RecoverySilence, constants.RecoverySilenceJitterPct)
	d.observer.ObserveRecovery(uint64(time.Since(start).Nanoseconds()))

	cur := d.bufs.Current()
	kind, _ := d.lastError.Load().(errs.Code)
	var result xferbuf.DoneResult
	if cur != nil && cur.Fail != nil {
		result = cur.Fail(cur, d.peekNextID(), string(kind), cur.Handle)
	}
	if result.Halt {
		return
	}
	if result.Replace != nil {
		if err := d.bufs.Replace(result.Replace, true); err != nil {
			d.logger.Printf("recover: replace failed: %v", err)
		}
	}

	d.dropCounter.Store(1)
	d.lastError.Store(errs.Code(""))

	if d.state.SwitchStrict(fsm.Error, fsm.Idle) {
		d.maybeReenter()
	}
}

// onPeerEdge is the single edge handler of spec.md §4.9, registered
// against the peer's flag line. It must not block.
func (d *Dev) onPeerEdge(asserted bool) {
	d.counters.peerEdges.Add(1)
	d.observer.ObserveEdge(asserted)
	if asserted {
		d.onPeerAssert()
		return
	}
	d.onPeerDeassert()
}

func (d *Dev) onPeerAssert() {
	switch d.state.State() {
	case fsm.Idle:
		if d.state.SwitchStrict(fsm.Idle, fsm.XferPrepare) {
			d.driveXferPrepare()
		}
	case fsm.WaitingRdy:
		if d.cfg.Role == RoleMaster && !d.cfg.HardwareReady {
			d.tryLeaveWaitingRdy()
		}
	}
}

func (d *Dev) onPeerDeassert() {
	n := d.dropCounter.Add(1)
	switch {
	case n == 1:
		if d.cfg.Role == RoleMaster {
			d.tryLeaveWaitingPrev()
		}
	case n >= 2:
		d.handle(errs.OtherSide, "", "onPeerDeassert")
	default:
		d.handle(errs.Logical, "", "onPeerDeassert")
	}
}

// nextID assigns the next monotonic, positive xfer id, wrapping to the
// seed and skipping zero/negative (spec.md §3).
func (d *Dev) nextID() int32 {
	for {
		cur := d.nextXferID.Load()
		next := cur + 1
		if next <= 0 {
			next = constants.NextXferIDSeed
		}
		if d.nextXferID.CompareAndSwap(cur, next) {
			return next
		}
	}
}

// peekNextID reports the id the next Exchange would assign, without
// consuming it, for the done/fail callback signature.
func (d *Dev) peekNextID() int32 {
	cur := d.nextXferID.Load()
	next := cur + 1
	if next <= 0 {
		next = constants.NextXferIDSeed
	}
	return next
}

// sleepSilence sleeps base with +/-pct% jitter, the flag-silence and
// error-silence waits of spec.md §4.7/§6.
func (d *Dev) sleepSilence(base time.Duration, pct int) {
	time.Sleep(jitter(base, pct))
}

func jitter(base time.Duration, pct int) time.Duration {
	if pct <= 0 || base <= 0 {
		return base
	}
	span := int64(base) * int64(pct) / 100
	if span <= 0 {
		return base
	}
	delta := rand.Int63n(2*span+1) - span
	return base + time.Duration(delta)
}
