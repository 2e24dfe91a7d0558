// Package ledger implements the error ledger (spec.md §4.5): per-kind
// counters, an exponentially smoothed inter-arrival interval, rate-based
// warning/error classification, and log suppression.
package ledger

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ehrlich-b/symspi/internal/constants"
)

// Verbosity is the outcome of Report: whether (and how) an occurrence
// should be logged.
type Verbosity int

const (
	// Suppressed means the occurrence was counted but not logged, because
	// the minimum report interval has not elapsed and no threshold was
	// crossed.
	Suppressed Verbosity = iota
	// Warning means the occurrence was logged below the rate threshold.
	Warning
	// Severe means the occurrence was logged at or above the rate
	// threshold.
	Severe
)

// record is the mutable per-kind state. Every field below mu is only ever
// touched while holding that record's own mu — the ledger as a whole is not on the state-ownership hot path
// (spec.md §5 calls ledger entries "best-effort statistics"), so a plain
// mutex per record is appropriate instead of lock-free atomics throughout.
type record struct {
	mu sync.Mutex

	total            uint64
	suppressedSince  uint64
	lastReport       time.Time
	lastOccurrence   time.Time
	smoothedInterval float64 // milliseconds
	rateThresholdHz  float64 // occurrences/sec separating warning from severe
	everReported     bool
	wasSevere        bool // classification as of the last Report call
}

// Ledger tracks error records per kind.
type Ledger struct {
	decayHalfLife   time.Duration
	minReportPeriod time.Duration

	mu      sync.Mutex
	records map[string]*record

	// totalHandled is exposed to diagnostics as a cheap liveness counter.
	totalHandled atomic.Uint64
}

// New returns a ledger configured with the given decay half-life and
// minimum report interval (spec.md §6 defaults: 2s / 10s).
func New(decayHalfLife, minReportPeriod time.Duration) *Ledger {
	if decayHalfLife <= 0 {
		decayHalfLife = constants.DefaultErrorDecayHalfLife
	}
	if minReportPeriod <= 0 {
		minReportPeriod = constants.DefaultMinReportInterval
	}
	return &Ledger{
		decayHalfLife:   decayHalfLife,
		minReportPeriod: minReportPeriod,
		records:         make(map[string]*record),
	}
}

func (l *Ledger) recordFor(kind string) *record {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.records[kind]
	if !ok {
		r = &record{rateThresholdHz: 5.0}
		l.records[kind] = r
	}
	return r
}

// Report implements spec.md §4.5's report(): it updates the smoothed
// inter-arrival interval, decides whether this occurrence should be
// logged, and returns a formatted line when it should.
func (l *Ledger) Report(kind, subCode, site string) (Verbosity, string) {
	l.totalHandled.Add(1)
	r := l.recordFor(kind)

	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	r.total++

	if r.lastOccurrence.IsZero() {
		r.smoothedInterval = float64(l.decayHalfLife / time.Millisecond)
	} else {
		deltaMs := float64(now.Sub(r.lastOccurrence)) / float64(time.Millisecond)
		halfLifeMs := float64(l.decayHalfLife / time.Millisecond)
		alpha := (50.0 * deltaMs) / halfLifeMs
		if alpha < constants.DecayAlphaMin {
			alpha = constants.DecayAlphaMin
		}
		if alpha > constants.DecayAlphaMax {
			alpha = constants.DecayAlphaMax
		}
		interval := ((100-alpha)*r.smoothedInterval + alpha*deltaMs) / 100
		if interval < 1 {
			interval = 1
		}
		r.smoothedInterval = interval
	}
	r.lastOccurrence = now

	rateHz := 1000.0 / r.smoothedInterval
	isSevere := rateHz >= r.rateThresholdHz
	crossingUpward := isSevere && !r.wasSevere && r.everReported
	withinMinInterval := !r.lastReport.IsZero() && now.Sub(r.lastReport) < l.minReportPeriod

	if withinMinInterval && !crossingUpward {
		r.suppressedSince++
		r.wasSevere = isSevere
		return Suppressed, ""
	}

	verbosity := Warning
	if isSevere {
		verbosity = Severe
	}

	suppressed := r.suppressedSince
	r.suppressedSince = 0
	r.lastReport = now
	r.everReported = true
	r.wasSevere = isSevere

	level := "warning"
	if verbosity == Severe {
		level = "error"
	}
	line := fmt.Sprintf("[%s] kind=%s site=%s sub_code=%s rate=%.2f/s suppressed_since=%d",
		level, kind, site, subCode, rateHz, suppressed)
	return verbosity, line
}

// Snapshot is a point-in-time view of one kind's counters, used by
// diagnostics (spec.md §4.10).
type Snapshot struct {
	Kind          string
	Total         uint64
	SuppressedNow uint64
	RateHz        float64
}

// Snapshots returns a snapshot of every kind seen so far.
func (l *Ledger) Snapshots() []Snapshot {
	l.mu.Lock()
	kinds := make([]string, 0, len(l.records))
	recs := make([]*record, 0, len(l.records))
	for k, r := range l.records {
		kinds = append(kinds, k)
		recs = append(recs, r)
	}
	l.mu.Unlock()

	out := make([]Snapshot, 0, len(kinds))
	for i, k := range kinds {
		r := recs[i]
		r.mu.Lock()
		rate := 0.0
		if r.smoothedInterval > 0 {
			rate = 1000.0 / r.smoothedInterval
		}
		out = append(out, Snapshot{
			Kind:          k,
			Total:         r.total,
			SuppressedNow: r.suppressedSince,
			RateHz:        rate,
		})
		r.mu.Unlock()
	}
	return out
}

// TotalHandled returns the number of occurrences reported across all kinds.
func (l *Ledger) TotalHandled() uint64 {
	return l.totalHandled.Load()
}
