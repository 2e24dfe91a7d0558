// Package irq implements the interrupt glue of spec.md §4.9: registering
// the single peer-flag edge handler and handing it to whatever owns the
// state controller. The handler logic itself — drop-counter bookkeeping,
// state transitions — lives in internal/protocol, which owns the fields an
// edge observes; this package only owns the registration/cancellation
// lifecycle, mirroring the teacher's practice of keeping a driver's
// interrupt-registration plumbing separate from its handler body
// (internal/uring's barrier/minimal split in the teacher repo).
package irq

import "github.com/ehrlich-b/symspi/internal/flagio"

// Handler registers a single edge callback against a flag adapter's peer
// line. onEdge receives the semantic level (true == asserted) observed
// immediately after the edge, per spec.md §4.9; it must not block.
type Handler struct {
	adapter *flagio.Adapter
	onEdge  func(asserted bool)
	cancel  func()
}

// New builds an unregistered handler.
func New(adapter *flagio.Adapter, onEdge func(asserted bool)) *Handler {
	return &Handler{adapter: adapter, onEdge: onEdge}
}

// Register subscribes to the peer's edges. Falling edges are always
// delivered; rising edges are delivered unless the bus controller handles
// hardware-ready itself, in which case the caller simply never relies on
// the rising-edge callback for WaitingRdy (spec.md §6's edge-registration
// note) — this package always registers both, since flagio.Line does not
// distinguish at the driver level.
func (h *Handler) Register() error {
	cancel, err := h.adapter.WatchPeerEdges(h.onEdge)
	if err != nil {
		return err
	}
	h.cancel = cancel
	return nil
}

// Unregister cancels the subscription. Safe to call once; a nil cancel
// (never registered, or already unregistered) is a no-op.
func (h *Handler) Unregister() {
	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
}
