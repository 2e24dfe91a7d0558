package symspi

import "github.com/ehrlich-b/symspi/internal/interfaces"

// Bus is the synchronous bus driver a consumer supplies: it submits a
// fixed-size full-duplex transfer asynchronously and reports completion
// through a callback invoked from a non-sleeping context (spec.md §1's
// "out of scope... bus driver").
type Bus = interfaces.Bus

// Line is a single out-of-band binary flag line (spec.md §1's "signal-line
// driver").
type Line = interfaces.Line

// Logger is the narrow logging surface Device depends on.
type Logger = interfaces.Logger

// Observer receives transport telemetry; see ObserveExchange etc.
type Observer = interfaces.Observer

// DeferredRunner enqueues callables for execution on a sleep-capable
// worker (spec.md §1's "deferred-work runner"). Device does not accept
// one: it always creates and manages its own dispatcher internally.
type DeferredRunner = interfaces.DeferredRunner
