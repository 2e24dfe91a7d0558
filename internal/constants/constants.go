// Package constants holds default timing and sizing values for the
// flag-handshake transport. Values mirror spec.md's configuration table.
package constants

import "time"

// Flag-line timing.
const (
	// DefaultInactiveMinimum is the minimum deassert-to-assert duration on
	// our flag line (the "silence interval").
	DefaultInactiveMinimum = 750 * time.Microsecond
	// InactiveMinimumJitterPct is the +/-10% jitter applied to every flag-silence wait.
	InactiveMinimumJitterPct = 10

	// DefaultPeerWaitTimeout is the one-shot waiting-phase timer duration.
	DefaultPeerWaitTimeout = 60 * time.Millisecond
	// MinPeerWaitTimeout is the floor below which jiffy granularity produces
	// false positives.
	MinPeerWaitTimeout = 30 * time.Millisecond
	// MaxPeerWaitTimeout bounds configuration per spec.md's 20-1000ms range.
	MaxPeerWaitTimeout = 1000 * time.Millisecond

	// DefaultRecoverySilence is the post-pulse-train sleep before invoking
	// the consumer's fail callback.
	DefaultRecoverySilence = 10 * time.Millisecond
	// RecoverySilenceJitterPct is the +/-5% jitter on the recovery silence.
	RecoverySilenceJitterPct = 5

	// DefaultCloseWaitTimeout bounds how long Close waits for an in-flight
	// bus transaction to leave the Xfer state.
	DefaultCloseWaitTimeout = 500 * time.Millisecond
)

// Error ledger defaults.
const (
	// DefaultErrorDecayHalfLife is the half-life of the exponentially
	// smoothed inter-arrival interval used by the error ledger.
	DefaultErrorDecayHalfLife = 2 * time.Second
	// DefaultMinReportInterval is the minimum spacing between log lines for
	// the same error kind absent a threshold crossing.
	DefaultMinReportInterval = 10 * time.Second

	// DecayAlphaMin and DecayAlphaMax bound the smoothing weight computed
	// from DefaultErrorDecayHalfLife (spec.md §4.5 step 2).
	DecayAlphaMin = 1
	DecayAlphaMax = 100
)

// Sizing.
const (
	// DefaultMaxBurstBytes is the bus controller's single-burst limit used
	// to size the transfer buffer pool's largest bucket.
	DefaultMaxBurstBytes = 4096

	// NextXferIDSeed is where the xfer id counter wraps back to, skipping
	// zero and negative values.
	NextXferIDSeed = 1
)

// RunnerMode selects the scheduling posture of the deferred-work dispatcher.
type RunnerMode int

const (
	// RunnerModeSharedDefault runs deferred work on a shared, normally
	// scheduled goroutine.
	RunnerModeSharedDefault RunnerMode = iota
	// RunnerModeSharedHighPriority runs on a shared goroutine with an
	// elevated OS scheduling priority.
	RunnerModeSharedHighPriority
	// RunnerModePrivateHighPriority runs on a dedicated, OS-thread-pinned,
	// high-priority goroutine.
	RunnerModePrivateHighPriority
)
