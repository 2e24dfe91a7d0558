package irq

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ehrlich-b/symspi/internal/flagio"
	"github.com/ehrlich-b/symspi/internal/interfaces"
)

type stubLine struct {
	mu     sync.Mutex
	level  bool
	onEdge func(bool)
}

func (s *stubLine) SetLevel(high bool) error {
	s.mu.Lock()
	s.level = high
	edge := s.onEdge
	s.mu.Unlock()
	if edge != nil {
		edge(high)
	}
	return nil
}

func (s *stubLine) Level() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.level, nil
}

func (s *stubLine) WatchEdges(onEdge func(bool)) (func(), error) {
	s.mu.Lock()
	s.onEdge = onEdge
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		s.onEdge = nil
		s.mu.Unlock()
	}, nil
}

var _ interfaces.Line = (*stubLine)(nil)

func TestRegisterDeliversEdges(t *testing.T) {
	peer := &stubLine{}
	adapter := flagio.New(&stubLine{}, peer, true)

	var got []bool
	h := New(adapter, func(asserted bool) { got = append(got, asserted) })
	require.NoError(t, h.Register())

	peer.SetLevel(true)
	peer.SetLevel(false)

	assert.Equal(t, []bool{true, false}, got)
}

func TestUnregisterStopsDelivery(t *testing.T) {
	peer := &stubLine{}
	adapter := flagio.New(&stubLine{}, peer, true)

	var calls int
	h := New(adapter, func(bool) { calls++ })
	require.NoError(t, h.Register())

	peer.SetLevel(true)
	h.Unregister()
	peer.SetLevel(false)

	assert.Equal(t, 1, calls)
}

func TestUnregisterWithoutRegisterIsNoop(t *testing.T) {
	adapter := flagio.New(&stubLine{}, &stubLine{}, true)
	h := New(adapter, func(bool) {})
	assert.NotPanics(t, func() { h.Unregister() })
}
