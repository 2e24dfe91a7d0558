package dispatch

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ehrlich-b/symspi/internal/constants"
)

func TestSubmitDoXferNowRuns(t *testing.T) {
	d := New(constants.RunnerModeSharedDefault, nil)
	defer d.Close()

	done := make(chan struct{})
	assert.True(t, d.SubmitDoXferNow(func() { close(done) }))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("submitted work never ran")
	}
}

func TestSubmitRejectsWhileSlotBusy(t *testing.T) {
	d := New(constants.RunnerModeSharedDefault, nil)
	defer d.Close()

	release := make(chan struct{})
	started := make(chan struct{})
	assert.True(t, d.SubmitPostprocess(func() {
		close(started)
		<-release
	}))
	<-started

	assert.False(t, d.SubmitPostprocess(func() {}))
	close(release)
}

func TestDistinctSlotsRunSequentially(t *testing.T) {
	d := New(constants.RunnerModeSharedDefault, nil)
	defer d.Close()

	var running atomic.Int32
	var sawBoth atomic.Bool
	release := make(chan struct{})

	mark := func() {
		n := running.Add(1)
		if n == 2 {
			sawBoth.Store(true)
		}
		<-release
		running.Add(-1)
	}

	assert.True(t, d.SubmitDoXferNow(mark))
	// Single-worker dispatcher: only one job runs at a time even across
	// distinct slots, since there is exactly one goroutine draining jobs.
	assert.True(t, d.SubmitPostprocess(mark))
	close(release)
	time.Sleep(50 * time.Millisecond)
	assert.False(t, sawBoth.Load())
}

func TestCancelQueuedJobNeverRuns(t *testing.T) {
	d := New(constants.RunnerModeSharedDefault, nil)
	defer d.Close()

	// Occupy the single worker with a DoXferNow job so a subsequently
	// queued Recover job sits in the channel without starting.
	release := make(chan struct{})
	blockerStarted := make(chan struct{})
	assert.True(t, d.SubmitDoXferNow(func() {
		close(blockerStarted)
		<-release
	}))
	<-blockerStarted

	var ran atomic.Bool
	assert.True(t, d.SubmitRecover(func() { ran.Store(true) }))
	assert.True(t, d.Recover.Cancel())

	close(release)
	time.Sleep(30 * time.Millisecond)
	assert.False(t, ran.Load())
}

func TestCancelAndWaitAllThenCloseReturns(t *testing.T) {
	d := New(constants.RunnerModeSharedDefault, nil)
	d.CancelAndWaitAll()
	d.Close()
}
