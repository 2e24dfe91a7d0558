package protocol

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ehrlich-b/symspi/internal/fsm"
	"github.com/ehrlich-b/symspi/internal/xferbuf"
)

// doneTracker records every Done invocation for assertions.
type doneTracker struct {
	mu    sync.Mutex
	calls int
	ids   []int32
	done  chan struct{}
}

func newDoneTracker() *doneTracker {
	return &doneTracker{done: make(chan struct{}, 16)}
}

func (dt *doneTracker) callback(doneXfer *xferbuf.Xfer, nextID int32, startImmediately *bool, handle any) xferbuf.DoneResult {
	dt.mu.Lock()
	dt.calls++
	dt.ids = append(dt.ids, doneXfer.ID)
	dt.mu.Unlock()
	dt.done <- struct{}{}
	return xferbuf.DoneResult{}
}

func (dt *doneTracker) waitCalled(t *testing.T, timeout time.Duration) {
	t.Helper()
	select {
	case <-dt.done:
	case <-time.After(timeout):
		t.Fatal("done callback never invoked")
	}
}

func TestExchangeRoundTripMasterHardwareReady(t *testing.T) {
	bus := &fakeBus{}
	d := New(testConfig(RoleMaster, true), bus, &fakeLine{}, &fakeLine{}, nil, nil)
	require.NoError(t, d.Init(newTestXfer(4)))
	defer d.Close()

	dt := newDoneTracker()
	d.CurrentXfer().Done = dt.callback

	id, err := d.Exchange(nil, false)
	require.NoError(t, err)
	assert.Equal(t, int32(1), id)

	dt.waitCalled(t, time.Second)
	waitForState(t, d, fsm.Idle, time.Second)
	assert.Equal(t, uint64(1), d.Counters().XfersOK)
	assert.Equal(t, 1, bus.Submissions())
}

func TestExchangeRoundTripSlaveBypassesWaitingPrev(t *testing.T) {
	bus := &fakeBus{}
	d := New(testConfig(RoleSlave, false), bus, &fakeLine{}, &fakeLine{}, nil, nil)
	require.NoError(t, d.Init(newTestXfer(4)))
	defer d.Close()

	dt := newDoneTracker()
	d.CurrentXfer().Done = dt.callback

	// Peer has not released from a previous cycle; a master would stay in
	// WaitingPrev here, the slave must not.
	d.dropCounter.Store(0)

	_, err := d.Exchange(nil, false)
	require.NoError(t, err)

	dt.waitCalled(t, time.Second)
	waitForState(t, d, fsm.Idle, time.Second)
	assert.Equal(t, uint64(1), d.Counters().XfersOK)
}

func TestExchangeMasterWithoutHardwareReadyWaitsForPeerAssert(t *testing.T) {
	bus := &fakeBus{}
	d := New(testConfig(RoleMaster, false), bus, &fakeLine{}, &fakeLine{}, nil, nil)
	require.NoError(t, d.Init(newTestXfer(4)))
	defer d.Close()

	dt := newDoneTracker()
	d.CurrentXfer().Done = dt.callback

	_, err := d.Exchange(nil, false)
	require.NoError(t, err)

	waitForState(t, d, fsm.WaitingRdy, time.Second)
	assert.Equal(t, 0, bus.Submissions(), "must not submit before the peer asserts")

	d.onPeerEdge(true)

	dt.waitCalled(t, time.Second)
	waitForState(t, d, fsm.Idle, time.Second)
	assert.Equal(t, uint64(1), d.Counters().XfersOK)
}

func TestPeerInitiatedExchangeOnSlave(t *testing.T) {
	bus := &fakeBus{}
	d := New(testConfig(RoleSlave, false), bus, &fakeLine{}, &fakeLine{}, nil, nil)
	require.NoError(t, d.Init(newTestXfer(4)))
	defer d.Close()

	dt := newDoneTracker()
	d.CurrentXfer().Done = dt.callback

	// The peer asserts first; we must react from the interrupt path alone.
	d.onPeerEdge(true)

	dt.waitCalled(t, time.Second)
	waitForState(t, d, fsm.Idle, time.Second)
	assert.Equal(t, uint64(1), d.Counters().XfersOK)
}

func TestOtherSideErrorRecoversToIdle(t *testing.T) {
	d := New(testConfig(RoleMaster, true), &fakeBus{}, &fakeLine{}, &fakeLine{}, nil, nil)
	require.NoError(t, d.Init(newTestXfer(4)))
	defer d.Close()

	// A second consecutive deassert edge without an intervening assert is
	// the peer deasserting out of turn.
	d.onPeerEdge(false)

	waitForState(t, d, fsm.Idle, time.Second)
	assert.Equal(t, uint64(1), d.Counters().OtherSideErrors)
}

func TestTimeoutDuringWaitingRdyRecoversToIdle(t *testing.T) {
	bus := &fakeBus{}
	d := New(testConfig(RoleMaster, false), bus, &fakeLine{}, &fakeLine{}, nil, nil)
	require.NoError(t, d.Init(newTestXfer(4)))
	defer d.Close()

	_, err := d.Exchange(nil, false)
	require.NoError(t, err)

	waitForState(t, d, fsm.WaitingRdy, time.Second)
	// Peer never asserts; the peer-wait timer must fire and recover.
	waitForState(t, d, fsm.Idle, time.Second)
	assert.Equal(t, uint64(1), d.Counters().NoReactionErrors)
	assert.Equal(t, 0, bus.Submissions())
}

func TestBusCompletionFailureRecoversToIdle(t *testing.T) {
	bus := &fakeBus{}
	bus.setStatus(-1)
	d := New(testConfig(RoleMaster, true), bus, &fakeLine{}, &fakeLine{}, nil, nil)
	require.NoError(t, d.Init(newTestXfer(4)))
	defer d.Close()

	_, err := d.Exchange(nil, false)
	require.NoError(t, err)

	waitForState(t, d, fsm.Idle, time.Second)
	assert.Equal(t, uint64(0), d.Counters().XfersOK)
}

func TestFailCallbackInvokedOnRecovery(t *testing.T) {
	bus := &fakeBus{}
	bus.setStatus(-1)
	d := New(testConfig(RoleMaster, true), bus, &fakeLine{}, &fakeLine{}, nil, nil)
	require.NoError(t, d.Init(newTestXfer(4)))
	defer d.Close()

	failCalled := make(chan string, 1)
	d.CurrentXfer().Fail = func(current *xferbuf.Xfer, nextXferID int32, errKind string, handle any) xferbuf.DoneResult {
		failCalled <- errKind
		return xferbuf.DoneResult{}
	}

	_, err := d.Exchange(nil, false)
	require.NoError(t, err)

	select {
	case kind := <-failCalled:
		assert.NotEmpty(t, kind)
	case <-time.After(time.Second):
		t.Fatal("fail callback never invoked")
	}
	waitForState(t, d, fsm.Idle, time.Second)
}

func TestPendingRequestReplaysAfterPostprocessing(t *testing.T) {
	bus := &fakeBus{}
	d := New(testConfig(RoleMaster, true), bus, &fakeLine{}, &fakeLine{}, nil, nil)
	require.NoError(t, d.Init(newTestXfer(4)))
	defer d.Close()

	dt := newDoneTracker()
	d.CurrentXfer().Done = dt.callback

	_, err := d.Exchange(nil, false)
	require.NoError(t, err)
	// Device is busy in Xfer/Postprocessing almost immediately; a second
	// Exchange call while busy must latch rather than error permanently.
	_, err = d.Exchange(nil, false)
	if err != nil {
		assert.True(t, d.pendingRequest.Load() || d.State() == fsm.Idle)
	}

	dt.waitCalled(t, time.Second)
	// The second request runs as its own transfer once the first is done.
	dt.waitCalled(t, time.Second)
	waitForState(t, d, fsm.Idle, time.Second)
}
