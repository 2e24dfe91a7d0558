// Package xferbuf implements the transfer descriptor and its buffer
// manager (spec.md §3 "Transfer descriptor" and §4.4 "Transfer buffer
// manager"): owned TX/RX buffers, overlap checking, and resize rules.
//
// Buffer storage is pooled using the teacher's size-bucketed sync.Pool
// pattern (internal/queue/pool.go), re-bucketed around the bus
// controller's single-burst limit instead of block-I/O sizes, so repeated
// same-size exchanges — the common case for a control/event transport —
// reuse buffers instead of allocating per transfer.
package xferbuf

import (
	"unsafe"

	"github.com/ehrlich-b/symspi/internal/errs"
)

// Manager operations fail with *errs.Error, using the same codes the rest
// of the transport returns (spec.md §4.4 / §6), so callers in
// internal/protocol can propagate them unchanged.

// DoneResult is the triple-valued return of the consumer's done/fail
// callbacks (spec.md §6): Halt means "stop with our flag asserted, no
// further transitions"; a non-nil Replace means "use this descriptor
// going forward"; both zero means "keep the current descriptor".
type DoneResult struct {
	Replace *Xfer
	Halt    bool
}

// DoneFunc is the consumer's per-transfer completion callback.
type DoneFunc func(done *Xfer, nextXferID int32, startImmediately *bool, handle any) DoneResult

// FailFunc is the consumer's error-recovery callback.
type FailFunc func(current *Xfer, nextXferID int32, errKind string, handle any) DoneResult

// AcceptFunc signals that the core no longer needs a descriptor it was
// handed (optional).
type AcceptFunc func(returned *Xfer)

// Xfer is the owned descriptor of one in-flight or default transfer
// (spec.md §3). TX and RX are always the same length as Size and never
// overlap each other or the TX of any other live descriptor.
type Xfer struct {
	Size int
	TX   []byte
	RX   []byte

	ID    int32
	Count uint64 // completed transfers using this descriptor, saturates to 1 on overflow

	Done   DoneFunc
	Fail   FailFunc
	Accept AcceptFunc
	Handle any
}

// IncrementCount bumps the per-descriptor completion counter, saturating
// (resetting to 1, not wrapping through 0) on overflow, per spec.md §3.
func (x *Xfer) IncrementCount() {
	if x.Count == ^uint64(0) {
		x.Count = 1
		return
	}
	x.Count++
}

// Manager owns the buffers of the current descriptor and validates and
// performs replacements.
type Manager struct {
	maxBurstBytes int
	pool          *bufferPool
	current       *Xfer
	nativeHook    func(wordWidth int)
}

// NewManager returns a manager whose largest pool bucket covers
// maxBurstBytes, the bus controller's single-burst limit, and which
// rejects any descriptor larger than it.
func NewManager(maxBurstBytes int) *Manager {
	if maxBurstBytes <= 0 {
		maxBurstBytes = 4096
	}
	return &Manager{maxBurstBytes: maxBurstBytes, pool: newBufferPool(maxBurstBytes)}
}

// Current returns the presently owned descriptor, or nil before the first
// Replace.
func (m *Manager) Current() *Xfer {
	return m.current
}

// Replace validates and installs newXfer as the current descriptor,
// allocating fresh TX/RX buffers sized to newXfer.Size. A size different
// from the current descriptor's is only accepted when forceSizeChange is
// true; the manager does not look at the protocol state. internal/protocol
// forces it for Init's initial descriptor and for replacements returned by
// the done and fail callbacks, and passes the consumer's own flag through
// for Exchange and UpdateDefault.
func (m *Manager) Replace(newXfer *Xfer, forceSizeChange bool) error {
	if newXfer.Size <= 0 {
		return errs.New("Replace", errs.XferSizeZero, "")
	}
	if newXfer.Size > m.maxBurstBytes {
		return errs.New("Replace", errs.XferSizeMismatch, "exceeds configured MaxBurstBytes")
	}
	if m.current != nil && newXfer.Size != m.current.Size && !forceSizeChange {
		return errs.New("Replace", errs.XferSizeMismatch, "")
	}
	// Overlap is a property of the consumer-supplied template's own slices
	// (and of the previous descriptor's owned TX, in case the consumer
	// mistakenly reused its backing array) — checked before we deep-copy
	// into fresh, pool-backed storage that can never alias anything else.
	if overlaps(newXfer.TX, newXfer.RX) {
		return errs.New("Replace", errs.Overlap, "TX/RX overlap")
	}
	if m.current != nil && overlaps(newXfer.TX, m.current.TX) {
		return errs.New("Replace", errs.Overlap, "TX overlaps previous TX")
	}

	tx := m.pool.Get(newXfer.Size)
	copy(tx, newXfer.TX)
	rx := m.pool.Get(newXfer.Size)

	next := *newXfer
	next.TX = tx
	next.RX = rx

	old := m.current
	m.current = &next
	if old != nil {
		m.pool.Put(old.TX)
		m.pool.Put(old.RX)
	}
	return nil
}

// Resize replaces the current descriptor's buffers with a new size,
// preserving every other field. The size change is always forced, and the
// new TX buffer starts zeroed.
func (m *Manager) Resize(newSize int) error {
	if m.current == nil {
		return errs.New("Resize", errs.XferSizeZero, "no current descriptor")
	}
	clone := *m.current
	clone.Size = newSize
	clone.TX = make([]byte, newSize)
	return m.Replace(&clone, true)
}

// Free releases the current descriptor's buffers back to the pool.
func (m *Manager) Free() {
	if m.current == nil {
		return
	}
	m.pool.Put(m.current.TX)
	m.pool.Put(m.current.RX)
	m.current = nil
}

// SetNativeHook installs the caller-settable hook invoked by
// UpdateNativeDescriptor before each bus submission (spec.md §4.4).
func (m *Manager) SetNativeHook(hook func(wordWidth int)) {
	m.nativeHook = hook
}

// UpdateNativeDescriptor invokes the native-descriptor-configure hook, if
// set, with the transport's configured word width. The core itself is
// oblivious to bus-level parameters like clock polarity/phase and
// chip-select behavior; that is entirely the hook's concern.
func (m *Manager) UpdateNativeDescriptor(wordWidth int) {
	if m.nativeHook != nil {
		m.nativeHook(wordWidth)
	}
}

// overlaps reports whether the memory backing a and b aliases, per spec.md
// §3's "TX and RX buffers do not overlap" invariant.
func overlaps(a, b []byte) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	aStart := uintptr(unsafe.Pointer(&a[0]))
	aEnd := aStart + uintptr(len(a))
	bStart := uintptr(unsafe.Pointer(&b[0]))
	bEnd := bStart + uintptr(len(b))
	return aStart < bEnd && bStart < aEnd
}
