package symspi

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loopbackConfig(role Role, hardwareReady bool) Config {
	cfg := DefaultConfig()
	cfg.Role = role
	cfg.HardwareReady = hardwareReady
	cfg.InactiveMinimum = time.Millisecond
	cfg.PeerWaitTimeout = 40 * time.Millisecond
	cfg.RecoverySilence = 5 * time.Millisecond
	cfg.CloseWaitTimeout = 200 * time.Millisecond
	return cfg
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition never became true")
}

func newLoopbackPair(t *testing.T, masterHWReady bool) (master, slave *Device) {
	t.Helper()
	busM, busS := NewSharedBusPair()
	lineM := NewFakeLine() // master's own flag, slave's view of the peer
	lineS := NewFakeLine() // slave's own flag, master's view of the peer

	master = NewDevice(loopbackConfig(RoleMaster, masterHWReady), busM, lineM, lineS, nil, nil)
	slave = NewDevice(loopbackConfig(RoleSlave, false), busS, lineS, lineM, nil, nil)

	require.NoError(t, master.Init(&Xfer{Size: 4, TX: []byte{1, 2, 3, 4}}))
	require.NoError(t, slave.Init(&Xfer{Size: 4, TX: []byte{0, 0, 0, 0}}))
	t.Cleanup(func() {
		master.Close()
		slave.Close()
	})
	return master, slave
}

func TestLoopbackRoundTripHardwareReady(t *testing.T) {
	master, slave := newLoopbackPair(t, true)

	var masterRX, slaveRX []byte
	masterDone := make(chan struct{})
	slaveDone := make(chan struct{})

	// Attach via the public Xfer fields through UpdateDefault so Done has
	// access to the received bytes. Built from scratch (not a copy of the
	// current descriptor) since its TX would otherwise alias the buffer
	// Replace is about to retire.
	md := &Xfer{
		Size: 4,
		TX:   append([]byte(nil), master.dev.CurrentXfer().TX...),
		Done: func(x *Xfer, nextID int32, start *bool, handle any) DoneResult {
			masterRX = append([]byte(nil), x.RX...)
			close(masterDone)
			return DoneResult{}
		},
	}
	require.NoError(t, master.UpdateDefault(md, false))

	sd := &Xfer{
		Size: 4,
		TX:   append([]byte(nil), slave.dev.CurrentXfer().TX...),
		Done: func(x *Xfer, nextID int32, start *bool, handle any) DoneResult {
			slaveRX = append([]byte(nil), x.RX...)
			close(slaveDone)
			return DoneResult{}
		},
	}
	require.NoError(t, slave.UpdateDefault(sd, false))

	_, err := master.Exchange(nil, false)
	require.NoError(t, err)

	select {
	case <-masterDone:
	case <-time.After(time.Second):
		t.Fatal("master done callback never fired")
	}
	select {
	case <-slaveDone:
	case <-time.After(time.Second):
		t.Fatal("slave done callback never fired")
	}

	assert.Equal(t, []byte{0, 0, 0, 0}, masterRX, "master must see slave's TX on its RX")
	assert.Equal(t, []byte{1, 2, 3, 4}, slaveRX, "slave must see master's original TX on its RX")

	waitUntil(t, time.Second, func() bool { return master.State() == "Idle" })
	waitUntil(t, time.Second, func() bool { return slave.State() == "Idle" })
}

func TestLoopbackMasterWithoutHardwareReady(t *testing.T) {
	master, slave := newLoopbackPair(t, false)

	_, err := master.Exchange(nil, false)
	require.NoError(t, err)

	waitUntil(t, time.Second, func() bool { return master.State() == "Idle" })
	waitUntil(t, time.Second, func() bool { return slave.State() == "Idle" })
}

func TestLoopbackSlaveInitiatedExchange(t *testing.T) {
	master, slave := newLoopbackPair(t, true)

	_, err := slave.Exchange(nil, false)
	require.NoError(t, err)

	waitUntil(t, time.Second, func() bool { return master.State() == "Idle" })
	waitUntil(t, time.Second, func() bool { return slave.State() == "Idle" })
}

func TestDiagnosticsRenderIncludesState(t *testing.T) {
	master, _ := newLoopbackPair(t, true)
	out := master.Diagnostics()
	assert.Contains(t, out, "state: Idle")
	assert.Contains(t, out, "role: master")
}

func TestDiagnosticsReaderSupportsPartialReads(t *testing.T) {
	master, _ := newLoopbackPair(t, true)
	r := master.DiagnosticsReader()

	buf := make([]byte, 8)
	n, err := r.ReadAt(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, "state: I", string(buf[:n]))
}

func TestTransportInterfaceSatisfiedByDevice(t *testing.T) {
	var _ Transport = (*Device)(nil)
}
