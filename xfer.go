package symspi

import "github.com/ehrlich-b/symspi/internal/xferbuf"

// Xfer is the owned transfer descriptor of spec.md §3: payload size, TX
// and RX buffers, a monotonic id, a per-descriptor completion counter,
// and the consumer's done/fail/accept callbacks plus an opaque handle.
type Xfer = xferbuf.Xfer

// DoneResult is the triple-valued return of the done and fail callbacks
// (spec.md §6).
type DoneResult = xferbuf.DoneResult

// DoneFunc is the consumer's per-transfer completion callback, invoked
// from the sleep-capable domain.
type DoneFunc = xferbuf.DoneFunc

// FailFunc is the consumer's error-recovery callback, invoked from the
// sleep-capable domain after the error pulse train and silence window.
type FailFunc = xferbuf.FailFunc

// AcceptFunc optionally signals that the core no longer needs a
// descriptor it was handed back.
type AcceptFunc = xferbuf.AcceptFunc

// Halt is the sentinel DoneResult a done or fail callback returns to stop
// the device with our flag left asserted and no further transitions
// (spec.md §6's "a sentinel 'halt'").
var Halt = DoneResult{Halt: true}

// Replace builds the DoneResult that installs next as the descriptor
// going forward.
func Replace(next *Xfer) DoneResult {
	return DoneResult{Replace: next}
}
