// Package diag implements the diagnostics readout (spec.md §4.10): a
// human-readable snapshot of the device's counters and configuration,
// exposed as a byte-oriented, offset-addressable read surface so a
// consumer can page through it the way the teacher's metrics subsystem
// exposes a point-in-time MetricsSnapshot, generalized here to a text
// renderer since spec.md §4.10 calls for a readable dump rather than a
// struct the caller inspects programmatically.
package diag

import (
	"fmt"
	"io"
	"strings"

	"github.com/ehrlich-b/symspi/internal/protocol"
)

// maxSnapshotBytes truncates the rendered snapshot, per spec.md §4.10's
// "truncates at a fixed buffer size".
const maxSnapshotBytes = 4096

// Snapshot is a point-in-time view of a device's counters and
// configuration, the Go-native analogue of the teacher's MetricsSnapshot.
type Snapshot struct {
	State     string
	Role      string
	SessionID string
	Config    protocol.Config

	OtherSideErrors  uint64
	NoReactionErrors uint64
	XfersOK          uint64
	PeerEdges        uint64

	LedgerTotal uint64
}

// Reader produces diagnostic snapshots for a device.
type Reader struct {
	dev *protocol.Dev
}

// New returns a reader over dev.
func New(dev *protocol.Dev) *Reader {
	return &Reader{dev: dev}
}

// Snapshot captures the device's current counters and configuration.
func (r *Reader) Snapshot() Snapshot {
	c := r.dev.Counters()
	cfg := r.dev.Config()
	return Snapshot{
		State:            r.dev.State().String(),
		Role:             cfg.Role.String(),
		SessionID:        r.dev.SessionID(),
		Config:           cfg,
		OtherSideErrors:  c.OtherSideErrors,
		NoReactionErrors: c.NoReactionErrors,
		XfersOK:          c.XfersOK,
		PeerEdges:        c.PeerEdges,
		LedgerTotal:      r.dev.Ledger().TotalHandled(),
	}
}

// Render formats a snapshot as the human-readable text spec.md §4.10's
// read surface emits.
func Render(s Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "state: %s\n", s.State)
	fmt.Fprintf(&b, "role: %s\n", s.Role)
	fmt.Fprintf(&b, "session_id: %s\n", s.SessionID)
	fmt.Fprintf(&b, "stats:\n")
	fmt.Fprintf(&b, "  other_side_errors: %d\n", s.OtherSideErrors)
	fmt.Fprintf(&b, "  no_reaction_errors: %d\n", s.NoReactionErrors)
	fmt.Fprintf(&b, "  xfers_ok: %d\n", s.XfersOK)
	fmt.Fprintf(&b, "  peer_edges: %d\n", s.PeerEdges)
	fmt.Fprintf(&b, "  ledger_total: %d\n", s.LedgerTotal)
	fmt.Fprintf(&b, "config:\n")
	fmt.Fprintf(&b, "  max_burst_bytes: %d\n", s.Config.MaxBurstBytes)
	fmt.Fprintf(&b, "  inactive_minimum: %s\n", s.Config.InactiveMinimum)
	fmt.Fprintf(&b, "  peer_wait_timeout: %s\n", s.Config.PeerWaitTimeout)
	fmt.Fprintf(&b, "  recovery_silence: %s\n", s.Config.RecoverySilence)
	fmt.Fprintf(&b, "  runner_mode: %d\n", s.Config.RunnerMode)
	fmt.Fprintf(&b, "  verbosity: %d\n", s.Config.Verbosity)

	out := b.String()
	if len(out) > maxSnapshotBytes {
		out = out[:maxSnapshotBytes]
	}
	return out
}

// ReadAt implements io.ReaderAt semantics over the rendered snapshot text,
// the "supports partial reads with offset" requirement of spec.md §4.10.
// Each call renders a fresh snapshot, so sequential small reads may
// observe slightly different counter values; callers wanting a consistent
// view should call Snapshot/Render once and slice the result themselves.
func (r *Reader) ReadAt(p []byte, off int64) (int, error) {
	text := Render(r.Snapshot())
	if off < 0 || off >= int64(len(text)) {
		return 0, fmt.Errorf("diag: offset %d out of range [0,%d)", off, len(text))
	}
	n := copy(p, text[off:])
	if off+int64(n) >= int64(len(text)) {
		return n, io.EOF
	}
	return n, nil
}
