// Package telemetry exposes each ring's Snapshot for observability: an
// in-process sink rings register themselves with, a periodic logger, and a
// gRPC service/gateway pair for pulling snapshots out of a running
// bifrostd, styled on the same service/gateway split used elsewhere in
// this codebase's control plane.
package telemetry

import (
	"sync"

	"github.com/bifrost-project/bifrost/ring"
)

// Sink is an in-process registry of named rings whose Snapshot is worth
// reporting. bifrostd registers every configured ring on startup; a ring
// stays registered until Unregister is called for its name.
type Sink struct {
	mu    sync.Mutex
	rings map[string]*ring.Ring
}

// NewSink creates an empty Sink.
func NewSink() *Sink {
	return &Sink{rings: make(map[string]*ring.Ring)}
}

// Register adds r to the sink under its own name, replacing any ring
// previously registered under that name.
func (s *Sink) Register(r *ring.Ring) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rings[r.Name()] = r
}

// Unregister removes the ring with the given name, if any.
func (s *Sink) Unregister(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rings, name)
}

// Collect takes a snapshot of every registered ring's current state.
func (s *Sink) Collect() map[string]ring.Snapshot {
	s.mu.Lock()
	rings := make([]*ring.Ring, 0, len(s.rings))
	for _, r := range s.rings {
		rings = append(rings, r)
	}
	s.mu.Unlock()

	out := make(map[string]ring.Snapshot, len(rings))
	for _, r := range rings {
		out[r.Name()] = r.Snapshot()
	}
	return out
}
