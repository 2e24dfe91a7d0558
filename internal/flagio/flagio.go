// Package flagio implements the flag I/O adapter (spec.md §4.1): reading
// and writing our own and the peer's out-of-band binary signal lines in
// terms of the configured active polarity, never blocking.
package flagio

import "github.com/ehrlich-b/symspi/internal/interfaces"

// Adapter wraps our and the peer's Line, translating raw levels to the
// semantic asserted/deasserted domain for the configured active polarity.
type Adapter struct {
	our, peer  interfaces.Line
	activeHigh bool
}

// New builds an adapter. activeHigh is the level that means "asserted" on
// both lines (the protocol is symmetric; both sides use the same polarity).
func New(our, peer interfaces.Line, activeHigh bool) *Adapter {
	return &Adapter{our: our, peer: peer, activeHigh: activeHigh}
}

// AssertOur drives our flag to the active level.
func (a *Adapter) AssertOur() error {
	return a.our.SetLevel(a.activeHigh)
}

// DeassertOur drives our flag to the inactive level.
func (a *Adapter) DeassertOur() error {
	return a.our.SetLevel(!a.activeHigh)
}

// PeerAsserted reports whether the peer's flag currently reads as asserted.
func (a *Adapter) PeerAsserted() (bool, error) {
	level, err := a.peer.Level()
	if err != nil {
		return false, err
	}
	return level == a.activeHigh, nil
}

// WatchPeerEdges registers an edge handler on the peer's line, translating
// raw rising/falling into asserted/deasserted for our active polarity.
func (a *Adapter) WatchPeerEdges(onEdge func(asserted bool)) (cancel func(), err error) {
	return a.peer.WatchEdges(func(rising bool) {
		onEdge(rising == a.activeHigh)
	})
}
