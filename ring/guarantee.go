package ring

import "math"

// guaranteeManager tracks the oldest-guaranteed-byte cursor of every
// guaranteed reader on a ring. It has no lock of its own: every method is
// only ever called with the owning Ring's mutex held, since the writer's
// backpressure decision and a reader's cursor update must be observed
// atomically with respect to each other.
type guaranteeManager struct {
	cursors map[*Reader]uint64
}

func newGuaranteeManager() *guaranteeManager {
	return &guaranteeManager{cursors: make(map[*Reader]uint64)}
}

func (g *guaranteeManager) add(r *Reader, cursor uint64) {
	g.cursors[r] = cursor
}

func (g *guaranteeManager) remove(r *Reader) {
	delete(g.cursors, r)
}

func (g *guaranteeManager) update(r *Reader, cursor uint64) {
	if _, ok := g.cursors[r]; ok {
		g.cursors[r] = cursor
	}
}

// min returns the slowest guaranteed reader's cursor, and whether any
// guaranteed reader exists at all. With no guaranteed readers the writer is
// unconstrained.
func (g *guaranteeManager) min() (uint64, bool) {
	if len(g.cursors) == 0 {
		return 0, false
	}
	m := uint64(math.MaxUint64)
	for _, c := range g.cursors {
		if c < m {
			m = c
		}
	}
	return m, true
}

func (g *guaranteeManager) count() int {
	return len(g.cursors)
}
