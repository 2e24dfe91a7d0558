package symspi

import "sync"

// FakeLine is an in-memory signal line for tests: one FakeLine models one
// physical wire. Wire two devices' NewDevice calls with the same pair of
// FakeLines crossed (A's peer is B's own, and vice versa) to loop them
// back, the way the teacher's MockBackend stands in for a real device.
type FakeLine struct {
	mu       sync.Mutex
	level    bool
	watchers []func(rising bool)

	setCalls int
}

// NewFakeLine returns a line initialized low.
func NewFakeLine() *FakeLine {
	return &FakeLine{}
}

// SetLevel implements Line. Edges are delivered to watchers on their own
// goroutine, matching a real interrupt's asynchronous delivery.
func (f *FakeLine) SetLevel(high bool) error {
	f.mu.Lock()
	f.setCalls++
	changed := f.level != high
	f.level = high
	var watchers []func(rising bool)
	if changed {
		watchers = append(watchers, f.watchers...)
	}
	f.mu.Unlock()

	for _, w := range watchers {
		w := w
		go w(high)
	}
	return nil
}

// Level implements Line.
func (f *FakeLine) Level() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.level, nil
}

// WatchEdges implements Line.
func (f *FakeLine) WatchEdges(onEdge func(rising bool)) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := len(f.watchers)
	f.watchers = append(f.watchers, onEdge)
	cancel := func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if idx < len(f.watchers) {
			f.watchers[idx] = func(bool) {}
		}
	}
	return cancel, nil
}

// SetCalls returns how many times SetLevel has been called, for test
// assertions.
func (f *FakeLine) SetCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.setCalls
}

// FakeBus is an in-memory Bus for tests: it echoes tx into rx and
// completes asynchronously on its own goroutine. Call FailNext to make the
// next N submissions report a nonzero status instead.
type FakeBus struct {
	mu        sync.Mutex
	submitted int
	failNext  int
	transform func(tx []byte, rx []byte)
}

// NewFakeBus returns a bus that loops tx back into rx unmodified.
func NewFakeBus() *FakeBus {
	return &FakeBus{}
}

// Submit implements Bus.
func (b *FakeBus) Submit(tx, rx []byte, done func(status int32)) error {
	b.mu.Lock()
	b.submitted++
	transform := b.transform
	fail := false
	if b.failNext > 0 {
		b.failNext--
		fail = true
	}
	b.mu.Unlock()

	if transform != nil {
		transform(tx, rx)
	} else {
		copy(rx, tx)
	}

	go func() {
		if fail {
			done(-1)
			return
		}
		done(0)
	}()
	return nil
}

// FailNext makes the next n Submit calls complete with a nonzero status.
func (b *FakeBus) FailNext(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failNext = n
}

// SetTransform installs a function applied to (tx, rx) on every Submit in
// place of the default echo, for tests that need asymmetric payloads.
func (b *FakeBus) SetTransform(fn func(tx, rx []byte)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.transform = fn
}

// Submissions returns how many times Submit has been called.
func (b *FakeBus) Submissions() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.submitted
}

// FakeObserver records telemetry calls for test assertions.
type FakeObserver struct {
	mu         sync.Mutex
	exchanges  int
	exchangeOK int
	errors     map[string]int
	recoveries int
	edges      int
}

// NewFakeObserver returns an empty observer.
func NewFakeObserver() *FakeObserver {
	return &FakeObserver{errors: make(map[string]int)}
}

func (o *FakeObserver) ObserveExchange(durationNs uint64, ok bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.exchanges++
	if ok {
		o.exchangeOK++
	}
}

func (o *FakeObserver) ObserveError(kind string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.errors[kind]++
}

func (o *FakeObserver) ObserveRecovery(durationNs uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.recoveries++
}

func (o *FakeObserver) ObserveEdge(rising bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.edges++
}

// Counts returns (exchanges, exchangeOK, recoveries, edges) for assertions.
func (o *FakeObserver) Counts() (exchanges, exchangeOK, recoveries, edges int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.exchanges, o.exchangeOK, o.recoveries, o.edges
}

// sharedBus is the rendezvous point behind a SharedBusPair: a true
// full-duplex loopback only completes a transfer once BOTH sides have
// called Submit, exchanging each side's TX into the other's RX, the way a
// real synchronous bus clocks both shift registers together.
type sharedBus struct {
	mu   sync.Mutex
	a, b *sideSubmission
}

type sideSubmission struct {
	tx, rx []byte
	done   func(int32)
}

// sharedBusSide is one device's view of a SharedBusPair.
type sharedBusSide struct {
	bus  *sharedBus
	self byte // 'a' or 'b'
}

// NewSharedBusPair returns two Bus handles wired to each other: calling
// Submit on one blocks completion until the other also calls Submit, at
// which point each side's TX is copied into the other's RX and both
// dones fire. Use this to loopback two Devices that genuinely exchange
// data, as opposed to FakeBus's single-sided echo.
func NewSharedBusPair() (Bus, Bus) {
	sb := &sharedBus{}
	return &sharedBusSide{bus: sb, self: 'a'}, &sharedBusSide{bus: sb, self: 'b'}
}

func (s *sharedBusSide) Submit(tx, rx []byte, done func(status int32)) error {
	sub := &sideSubmission{tx: tx, rx: rx, done: done}

	s.bus.mu.Lock()
	var other *sideSubmission
	if s.self == 'a' {
		s.bus.a = sub
		other = s.bus.b
		if other != nil {
			s.bus.a, s.bus.b = nil, nil
		}
	} else {
		s.bus.b = sub
		other = s.bus.a
		if other != nil {
			s.bus.a, s.bus.b = nil, nil
		}
	}
	s.bus.mu.Unlock()

	if other == nil {
		return nil
	}
	go func() {
		copy(sub.rx, other.tx)
		copy(other.rx, sub.tx)
		sub.done(0)
		other.done(0)
	}()
	return nil
}

// FakeLogger collects log lines for test assertions instead of writing
// anywhere.
type FakeLogger struct {
	mu    sync.Mutex
	lines []string
}

// NewFakeLogger returns an empty logger.
func NewFakeLogger() *FakeLogger {
	return &FakeLogger{}
}

func (l *FakeLogger) Printf(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, format)
}

func (l *FakeLogger) Debugf(format string, args ...interface{}) {
	l.Printf(format, args...)
}

// Lines returns the logged format strings, in order.
func (l *FakeLogger) Lines() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.lines))
	copy(out, l.lines)
	return out
}

var (
	_ Bus      = (*FakeBus)(nil)
	_ Bus      = (*sharedBusSide)(nil)
	_ Line     = (*FakeLine)(nil)
	_ Observer = (*FakeObserver)(nil)
	_ Logger   = (*FakeLogger)(nil)
)
