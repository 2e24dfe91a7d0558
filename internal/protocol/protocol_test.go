package protocol

import (
	"sync"
	"testing"
	"time"

	"github.com/ehrlich-b/symspi/internal/constants"
	"github.com/ehrlich-b/symspi/internal/fsm"
	"github.com/ehrlich-b/symspi/internal/interfaces"
	"github.com/ehrlich-b/symspi/internal/xferbuf"
)

// fakeLine is a minimal in-memory Line for protocol-level tests: it tracks
// its own level and, if watched, reports every SetLevel as an edge.
type fakeLine struct {
	mu     sync.Mutex
	level  bool
	onEdge func(rising bool)
}

func (f *fakeLine) SetLevel(high bool) error {
	f.mu.Lock()
	f.level = high
	edge := f.onEdge
	f.mu.Unlock()
	if edge != nil {
		go edge(high)
	}
	return nil
}

func (f *fakeLine) Level() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.level, nil
}

func (f *fakeLine) WatchEdges(onEdge func(rising bool)) (func(), error) {
	f.mu.Lock()
	f.onEdge = onEdge
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		f.onEdge = nil
		f.mu.Unlock()
	}, nil
}

// fakeBus echoes tx into rx and completes on its own goroutine, the way a
// real non-blocking bus driver would.
type fakeBus struct {
	mu        sync.Mutex
	submitted int
	status    int32
}

func (b *fakeBus) Submit(tx, rx []byte, done func(status int32)) error {
	b.mu.Lock()
	b.submitted++
	status := b.status
	b.mu.Unlock()
	copy(rx, tx)
	go done(status)
	return nil
}

func (b *fakeBus) Submissions() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.submitted
}

func (b *fakeBus) setStatus(status int32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.status = status
}

var _ interfaces.Bus = (*fakeBus)(nil)
var _ interfaces.Line = (*fakeLine)(nil)

func testConfig(role Role, hardwareReady bool) Config {
	return Config{
		Role:               role,
		HardwareReady:      hardwareReady,
		ActiveHigh:         true,
		InactiveMinimum:    time.Millisecond,
		PeerWaitTimeout:    40 * time.Millisecond,
		RecoverySilence:    5 * time.Millisecond,
		CloseWaitTimeout:   100 * time.Millisecond,
		RunnerMode:         constants.RunnerModeSharedDefault,
		ErrorDecayHalfLife: constants.DefaultErrorDecayHalfLife,
		MinReportInterval:  constants.DefaultMinReportInterval,
		MaxBurstBytes:      constants.DefaultMaxBurstBytes,
		WordWidth:          8,
	}
}

func waitForState(t *testing.T, d *Dev, want fsm.State, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if d.State() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("state never reached %s, stuck at %s", want, d.State())
}

func newTestXfer(size int) *xferbuf.Xfer {
	return &xferbuf.Xfer{Size: size, TX: make([]byte, size)}
}
