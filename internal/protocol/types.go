// Package protocol implements the handshake protocol engine (spec.md §4.7)
// and the core device it drives (spec.md §3's Dev): the nominal transfer
// sequence, submit-to-bus, completion handoff, postprocessing, return to
// idle, and the error-recovery pulse train, wired to the state controller,
// error ledger, timeout timer, flag I/O adapter, deferred-work dispatcher
// and transfer buffer manager.
package protocol

import (
	"sync/atomic"
	"time"

	"github.com/ehrlich-b/symspi/internal/constants"
)

// Role is the bus role a device plays; the protocol is symmetric but a
// handful of transitions (WaitingPrev bypass, hardware-ready) depend on it.
type Role int

const (
	RoleMaster Role = iota
	RoleSlave
)

func (r Role) String() string {
	if r == RoleSlave {
		return "slave"
	}
	return "master"
}

// Config holds the build/runtime options named in spec.md §6.
type Config struct {
	Role Role
	// HardwareReady reports whether the bus controller natively stalls a
	// transfer until the peer signals readiness, removing the need for
	// WaitingRdy. Master-only; ignored for slaves.
	HardwareReady bool
	// ActiveHigh is the level that means "asserted" on both flag lines.
	ActiveHigh bool

	InactiveMinimum  time.Duration
	PeerWaitTimeout  time.Duration
	RecoverySilence  time.Duration
	CloseWaitTimeout time.Duration

	RunnerMode constants.RunnerMode

	ErrorDecayHalfLife time.Duration
	MinReportInterval  time.Duration

	// MaxBurstBytes is the bus controller's single-burst limit; it sizes
	// the buffer pool and bounds xfer sizes (spec.md's Non-goals).
	MaxBurstBytes int
	// WordWidth is passed to the bus's native-descriptor-configure hook
	// before each submission.
	WordWidth int

	Verbosity int
}

// DefaultConfig returns the configuration defaults from spec.md §6.
func DefaultConfig() Config {
	return Config{
		ActiveHigh:         true,
		InactiveMinimum:    constants.DefaultInactiveMinimum,
		PeerWaitTimeout:    constants.DefaultPeerWaitTimeout,
		RecoverySilence:    constants.DefaultRecoverySilence,
		CloseWaitTimeout:   constants.DefaultCloseWaitTimeout,
		RunnerMode:         constants.RunnerModeSharedDefault,
		ErrorDecayHalfLife: constants.DefaultErrorDecayHalfLife,
		MinReportInterval:  constants.DefaultMinReportInterval,
		MaxBurstBytes:      constants.DefaultMaxBurstBytes,
		WordWidth:          8,
	}
}

// Counters are the info counters named in spec.md §3/§4.10, read by
// internal/diag for the diagnostics snapshot.
type Counters struct {
	OtherSideErrors  uint64
	NoReactionErrors uint64
	XfersOK          uint64
	PeerEdges        uint64
}

// counters holds the atomic info counters; plain atomic.Uint64 fields,
// matching the teacher's metrics.go style of one atomic field per stat
// rather than a mutex-guarded struct, since these are read far more often
// (every diagnostics read) than written.
type counters struct {
	otherSideErrors  atomic.Uint64
	noReactionErrors atomic.Uint64
	xfersOK          atomic.Uint64
	peerEdges        atomic.Uint64
}

func (c *counters) snapshot() Counters {
	return Counters{
		OtherSideErrors:  c.otherSideErrors.Load(),
		NoReactionErrors: c.noReactionErrors.Load(),
		XfersOK:          c.xfersOK.Load(),
		PeerEdges:        c.peerEdges.Load(),
	}
}
