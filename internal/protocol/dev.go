package protocol

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/ehrlich-b/symspi/internal/constants"
	"github.com/ehrlich-b/symspi/internal/dispatch"
	"github.com/ehrlich-b/symspi/internal/errs"
	"github.com/ehrlich-b/symspi/internal/flagio"
	"github.com/ehrlich-b/symspi/internal/fsm"
	"github.com/ehrlich-b/symspi/internal/interfaces"
	"github.com/ehrlich-b/symspi/internal/irq"
	"github.com/ehrlich-b/symspi/internal/ledger"
	"github.com/ehrlich-b/symspi/internal/timer"
	"github.com/ehrlich-b/symspi/internal/xferbuf"
)

// Dev is the core device (spec.md §3): the finite-state controller plus
// everything it owns. Ownership of every mutable field besides state,
// the drop counter, and last_error follows whoever currently holds the
// state word, per spec.md §5 — there is deliberately no single mutex
// covering the whole struct.
type Dev struct {
	cfg            Config
	bus            interfaces.Bus
	haveSignalLine bool
	flags          *flagio.Adapter
	state    *fsm.Controller
	timeout  *timer.OneShot
	disp     *dispatch.Dispatcher
	bufs     *xferbuf.Manager
	ledger   *ledger.Ledger
	logger   interfaces.Logger
	observer interfaces.Observer

	dropCounter    atomic.Int32
	nextXferID     atomic.Int32
	pendingRequest atomic.Bool
	lastError      atomic.Value // errs.Code
	sessionID      atomic.Value // string, regenerated every Init

	edges *irq.Handler

	counters counters

	// initMu serializes Init/Close/Reset, which spec.md §4.8 calls out as
	// not thread-safe with respect to each other or to anything else.
	initMu sync.Mutex
}

// New constructs a device in state Cold. Call Init before any other
// operation. bus and the two lines are the injected, out-of-scope
// collaborators named in spec.md §1.
func New(cfg Config, bus interfaces.Bus, ourLine, peerLine interfaces.Line, logger interfaces.Logger, observer interfaces.Observer) *Dev {
	if logger == nil {
		logger = noopLogger{}
	}
	if observer == nil {
		observer = noopObserver{}
	}
	d := &Dev{
		cfg:            cfg,
		bus:            bus,
		haveSignalLine: ourLine != nil && peerLine != nil,
		flags:          flagio.New(ourLine, peerLine, cfg.ActiveHigh),
		state:    fsm.New(),
		timeout:  timer.New(),
		bufs:     xferbuf.NewManager(cfg.MaxBurstBytes),
		ledger:   ledger.New(cfg.ErrorDecayHalfLife, cfg.MinReportInterval),
		logger:   logger,
		observer: observer,
	}
	d.lastError.Store(errs.Code(""))
	d.sessionID.Store("")
	return d
}

// SessionID returns the correlation id assigned by the most recent Init,
// for tying diagnostics output and log lines back to one run of the
// device (spec.md §4.10's readout is otherwise anonymous across resets).
func (d *Dev) SessionID() string {
	id, _ := d.sessionID.Load().(string)
	return id
}

// State returns the current protocol state.
func (d *Dev) State() fsm.State { return d.state.State() }

// IsRunning reports state != Cold, per spec.md §4.8.
func (d *Dev) IsRunning() bool { return d.state.State() != fsm.Cold }

// Config returns the device's configuration.
func (d *Dev) Config() Config { return d.cfg }

// Counters returns a snapshot of the info counters for diagnostics.
func (d *Dev) Counters() Counters { return d.counters.snapshot() }

// Ledger returns the error ledger, read by diagnostics for per-kind rates.
func (d *Dev) Ledger() *ledger.Ledger { return d.ledger }

// CurrentXfer returns the presently owned descriptor, or nil before Init.
func (d *Dev) CurrentXfer() *xferbuf.Xfer { return d.bufs.Current() }

// SetNativeHook installs the bus's native-descriptor-configure hook.
func (d *Dev) SetNativeHook(hook func(wordWidth int)) { d.bufs.SetNativeHook(hook) }

// Init validates the device's handles, builds the initial descriptor as a
// deep copy of defaultXfer, registers the peer-flag edge interrupt,
// deasserts our flag, and transitions Cold→Idle (spec.md §4.8).
func (d *Dev) Init(defaultXfer *xferbuf.Xfer) error {
	d.initMu.Lock()
	defer d.initMu.Unlock()

	if d.state.State() != fsm.Cold {
		return errs.New("Init", errs.Logical, "device is not Cold")
	}
	if d.bus == nil {
		return errs.New("Init", errs.NoBus, "")
	}
	if !d.haveSignalLine {
		return errs.New("Init", errs.NoSignalLine, "")
	}
	if defaultXfer == nil {
		return errs.New("Init", errs.NoXfer, "")
	}
	if d.cfg.PeerWaitTimeout > constants.MaxPeerWaitTimeout {
		return errs.New("Init", errs.Logical, "PeerWaitTimeout exceeds configuration maximum")
	}
	if d.cfg.PeerWaitTimeout > 0 && d.cfg.PeerWaitTimeout < constants.MinPeerWaitTimeout {
		return errs.New("Init", errs.Logical, "PeerWaitTimeout below the timer's floor")
	}

	d.disp = dispatch.New(d.cfg.RunnerMode, d.logger)

	d.dropCounter.Store(1)
	d.nextXferID.Store(0)
	d.pendingRequest.Store(false)
	d.lastError.Store(errs.Code(""))
	d.sessionID.Store(uuid.New().String())
	d.state.DisarmClose()

	clone := *defaultXfer
	clone.TX = append([]byte(nil), defaultXfer.TX...)
	if err := d.bufs.Replace(&clone, true); err != nil {
		d.disp.Close()
		return errs.Wrap("Init", err)
	}
	d.bufs.Current().ID = d.peekNextID()

	if err := d.flags.DeassertOur(); err != nil {
		d.bufs.Free()
		d.disp.Close()
		return errs.New("Init", errs.IsrSetup, err.Error())
	}

	d.edges = irq.New(d.flags, d.onPeerEdge)
	if err := d.edges.Register(); err != nil {
		d.edges = nil
		d.bufs.Free()
		d.disp.Close()
		return errs.New("Init", errs.IrqAcquisition, err.Error())
	}

	d.state.SwitchForced(fsm.Idle)

	if asserted, _ := d.flags.PeerAsserted(); asserted {
		_, _ = d.exchangeInternal(nil, false)
	}
	return nil
}

// Close latches closing (idempotent; AlreadyClosing on the second call),
// waits up to CloseWaitTimeout for an in-flight transfer to leave Xfer,
// then tears down in the order spec.md §4.8 mandates.
func (d *Dev) Close() error {
	d.initMu.Lock()
	defer d.initMu.Unlock()

	if !d.state.ArmClose() {
		return errs.New("Close", errs.AlreadyClosing, "")
	}

	if d.state.State() == fsm.Xfer {
		timeout := d.cfg.CloseWaitTimeout
		if timeout <= 0 {
			timeout = constants.DefaultCloseWaitTimeout
		}
		select {
		case <-d.state.WaitLeaveXfer():
		case <-time.After(timeout):
			d.logger.Printf("close: timed out after %s waiting for in-flight transfer", timeout)
		}
	}

	if d.edges != nil {
		d.edges.Unregister()
		d.edges = nil
	}
	_ = d.flags.DeassertOur()
	d.timeout.CancelAndWait()
	d.state.SwitchForced(fsm.Cold)
	if d.disp != nil {
		d.disp.CancelAndWaitAll()
		d.disp.Close()
		d.disp = nil
	}
	d.bufs.Free()
	return nil
}

// Reset preserves the current descriptor when defaultXfer is nil,
// otherwise uses the provided one, then Closes and re-Inits.
func (d *Dev) Reset(defaultXfer *xferbuf.Xfer) error {
	if defaultXfer == nil {
		if cur := d.bufs.Current(); cur != nil {
			clone := *cur
			defaultXfer = &clone
		}
	}
	if err := d.Close(); err != nil && !errs.IsCode(err, errs.AlreadyClosing) {
		return err
	}
	return d.Init(defaultXfer)
}

// Exchange initiates a transfer, optionally replacing the current
// descriptor first, and returns its new id (spec.md §4.8).
func (d *Dev) Exchange(newXfer *xferbuf.Xfer, forceSizeChange bool) (int32, error) {
	if d.state.Closing() {
		return 0, errs.New("Exchange", errs.NotReady, "")
	}
	return d.exchangeInternal(newXfer, forceSizeChange)
}

// UpdateDefault replaces the current descriptor without starting a
// transfer.
func (d *Dev) UpdateDefault(newXfer *xferbuf.Xfer, forceSizeChange bool) error {
	if d.state.Closing() {
		return errs.New("UpdateDefault", errs.NotReady, "")
	}
	if !d.state.SwitchStrict(fsm.Idle, fsm.XferPrepare) {
		return errs.New("UpdateDefault", errs.NotReady, "")
	}
	err := d.bufs.Replace(newXfer, forceSizeChange)
	d.state.SwitchStrict(fsm.XferPrepare, fsm.Idle)
	return err
}
