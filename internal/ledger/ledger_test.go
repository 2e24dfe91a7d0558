package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFirstOccurrenceAlwaysReports(t *testing.T) {
	l := New(2*time.Second, 10*time.Second)
	v, line := l.Report("OtherSide", "", "onPeerDeassert")
	assert.Equal(t, Warning, v)
	assert.NotEmpty(t, line)
}

func TestSuppressesWithinMinInterval(t *testing.T) {
	l := New(2*time.Second, time.Hour)
	_, line := l.Report("BusLayer", "", "site")
	assert.NotEmpty(t, line)

	v, line := l.Report("BusLayer", "", "site")
	assert.Equal(t, Suppressed, v)
	assert.Empty(t, line)
}

func TestHighRateCrossesToSevere(t *testing.T) {
	l := New(50*time.Millisecond, time.Hour)
	l.Report("WaitOtherSide", "", "site")
	for i := 0; i < 20; i++ {
		time.Sleep(time.Millisecond)
		l.Report("WaitOtherSide", "", "site")
	}
	snaps := l.Snapshots()
	assert.Len(t, snaps, 1)
	// 5/s is the per-kind threshold separating warning from severe.
	assert.GreaterOrEqual(t, snaps[0].RateHz, 5.0)
}

func TestSustainedSevereRateStillSuppressesWithinMinInterval(t *testing.T) {
	l := New(5*time.Millisecond, time.Hour)
	l.Report("WaitOtherSide", "", "site")
	// Drive the rate at/above threshold and hold it there; only the call
	// that first crosses upward should report, every call after that
	// should be suppressed by minReportPeriod regardless of how severe the
	// rate remains.
	reports := 0
	for i := 0; i < 30; i++ {
		time.Sleep(time.Millisecond)
		v, _ := l.Report("WaitOtherSide", "", "site")
		if v != Suppressed {
			reports++
		}
	}
	assert.LessOrEqual(t, reports, 1)
}

func TestTotalHandledCountsAcrossKinds(t *testing.T) {
	l := New(2*time.Second, 10*time.Second)
	l.Report("OtherSide", "", "a")
	l.Report("BusLayer", "", "b")
	l.Report("BusLayer", "", "b")
	assert.Equal(t, uint64(3), l.TotalHandled())
}

func TestSnapshotsReportsPerKindTotals(t *testing.T) {
	l := New(2*time.Second, 10*time.Second)
	l.Report("OtherSide", "", "a")
	l.Report("OtherSide", "", "a")
	l.Report("BusLayer", "", "b")

	byKind := make(map[string]uint64)
	for _, s := range l.Snapshots() {
		byKind[s.Kind] = s.Total
	}
	assert.Equal(t, uint64(2), byKind["OtherSide"])
	assert.Equal(t, uint64(1), byKind["BusLayer"])
}

func TestSuppressedSinceResetsOnReport(t *testing.T) {
	l := New(2*time.Second, 20*time.Millisecond)
	l.Report("OtherSide", "", "a")
	l.Report("OtherSide", "", "a") // suppressed
	time.Sleep(25 * time.Millisecond)
	_, line := l.Report("OtherSide", "", "a")
	assert.Contains(t, line, "suppressed_since=1")
}
