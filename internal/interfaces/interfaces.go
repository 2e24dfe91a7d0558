// Package interfaces provides internal interface definitions for the
// symspi transport. These are separate from the public package's types
// to avoid circular imports between the top-level package and internal
// packages that implement it.
package interfaces

// Bus is the synchronous bus driver: it submits a fixed-size full-duplex
// transfer asynchronously and reports completion through done, which is
// invoked from a non-sleeping context (an IRQ or softirq-equivalent, in
// the terms of spec.md §5). Submit must not block.
type Bus interface {
	// Submit starts a transfer of tx into rx (both len(tx) bytes) and
	// returns immediately. done is invoked exactly once, with the native
	// completion status (0 == success), unless Submit itself returns an
	// error (in which case done is never invoked).
	//
	// Transport-level fields (word width, clock polarity/phase, burst
	// width) are not configured here: internal/xferbuf.Manager's
	// native-descriptor hook (wired via Device.SetNativeHook) is the
	// single path for that, invoked before every Submit.
	Submit(tx, rx []byte, done func(status int32)) error
}

// Line is a single out-of-band binary signal line.
type Line interface {
	// SetLevel drives the line high (true) or low (false).
	SetLevel(high bool) error
	// Level reads the current line level.
	Level() (bool, error)
	// WatchEdges registers an edge-triggered interrupt handler; onEdge is
	// called with rising=true on a rising edge, false on a falling edge.
	// The returned cancel function unregisters the handler; it must be
	// safe to call from any context exactly once.
	WatchEdges(onEdge func(rising bool)) (cancel func(), err error)
}

// DeferredRunner enqueues callables for later execution on a single,
// sleep-capable worker so interrupt and bus-completion contexts never
// block, allocate-with-waiting, or invoke consumer callbacks directly.
type DeferredRunner interface {
	// Submit enqueues fn for execution; returns false if already pending
	// (callers use this for the named, at-most-one-in-flight callables).
	Submit(fn func()) bool
	// Cancel cancels a pending (not yet started) submission for the same
	// named slot, returning true if one was pending.
	Cancel() bool
	// CancelAndWait cancels a pending submission and, if one is currently
	// executing, blocks until it returns. Only safe to call from a
	// sleep-capable context.
	CancelAndWait()
	// Close stops the runner, waiting for in-flight work to finish.
	Close()
}

// Logger is the narrow logging surface the core depends on.
type Logger interface {
	Printf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

// Observer receives transport telemetry. Implementations must be
// thread-safe: methods are called from interrupt, timer, and
// sleep-capable contexts alike.
type Observer interface {
	ObserveExchange(durationNs uint64, ok bool)
	ObserveError(kind string)
	ObserveRecovery(durationNs uint64)
	ObserveEdge(rising bool)
}
