// Package symspi implements a symmetric, full-duplex data transport
// between two CPUs over a shared synchronous bus plus two out-of-band
// binary flag lines, per spec.md. It guarantees at-most-one transfer in
// flight, ordered handshake, and bounded-latency error recovery; payload
// framing and delivery guarantees are left to the consumer.
package symspi

import (
	"github.com/ehrlich-b/symspi/internal/diag"
	"github.com/ehrlich-b/symspi/internal/protocol"
)

// Transport bundles the six request-API operations spec.md §6 calls out
// for a generic "symmetric full-duplex transport" role, so a consumer can
// depend on the interface rather than the concrete *Device.
type Transport interface {
	Exchange(newXfer *Xfer, forceSizeChange bool) (int32, error)
	UpdateDefault(newXfer *Xfer, forceSizeChange bool) error
	Init(defaultXfer *Xfer) error
	Close() error
	Reset(defaultXfer *Xfer) error
	IsRunning() bool
}

// Device is the public handle on one side of the transport (spec.md §4.8's
// Request API). It forwards to internal/protocol, which owns the actual
// state machine and concurrency core.
type Device struct {
	dev *protocol.Dev
}

// NewDevice constructs a device in state Cold, wired to bus and the two
// flag lines. Call Init before any other operation. logger and observer
// may be nil.
func NewDevice(cfg Config, bus Bus, ourLine, peerLine Line, logger Logger, observer Observer) *Device {
	return &Device{dev: protocol.New(cfg, bus, ourLine, peerLine, logger, observer)}
}

// Init validates the device's handles, builds the initial descriptor as a
// deep copy of defaultXfer, registers the peer-flag interrupt, and
// transitions Cold→Idle. If the peer is already asserted on entry, an
// implicit Exchange(nil, false) is issued.
func (d *Device) Init(defaultXfer *Xfer) error { return d.dev.Init(defaultXfer) }

// Close latches closing, waits up to Config.CloseWaitTimeout for an
// in-flight transfer to finish, then tears the device down to Cold.
// Idempotent: a second call returns ErrAlreadyClosing.
func (d *Device) Close() error { return d.dev.Close() }

// Reset preserves the current descriptor when defaultXfer is nil,
// otherwise uses the provided one, then Closes and re-Inits.
func (d *Device) Reset(defaultXfer *Xfer) error { return d.dev.Reset(defaultXfer) }

// IsRunning reports whether the device is anywhere but Cold.
func (d *Device) IsRunning() bool { return d.dev.IsRunning() }

// Exchange initiates a transfer, optionally replacing the current
// descriptor first, and returns its new id. Returns ErrNotReady if the
// device isn't Idle (the request is latched to run once it is, unless
// newXfer is non-nil) or if the device is closing.
func (d *Device) Exchange(newXfer *Xfer, forceSizeChange bool) (int32, error) {
	return d.dev.Exchange(newXfer, forceSizeChange)
}

// UpdateDefault replaces the current descriptor without starting a
// transfer.
func (d *Device) UpdateDefault(newXfer *Xfer, forceSizeChange bool) error {
	return d.dev.UpdateDefault(newXfer, forceSizeChange)
}

// State returns the device's current protocol state as a string, for
// logging and tests.
func (d *Device) State() string { return d.dev.State().String() }

// SessionID returns the correlation id assigned by the most recent Init,
// for tagging log lines across a device's lifetime.
func (d *Device) SessionID() string { return d.dev.SessionID() }

// SetNativeHook installs the bus's native-descriptor-configure hook,
// invoked before every submission with the configured word width.
func (d *Device) SetNativeHook(hook func(wordWidth int)) { d.dev.SetNativeHook(hook) }

// Diagnostics renders a human-readable snapshot of counters and
// configuration (spec.md §4.10).
func (d *Device) Diagnostics() string {
	return diag.Render(diag.New(d.dev).Snapshot())
}

// DiagnosticsReader returns an offset-addressable reader over the
// diagnostics text, for consumers that expose it as a file-like read
// surface.
func (d *Device) DiagnosticsReader() *diag.Reader {
	return diag.New(d.dev)
}

var _ Transport = (*Device)(nil)
