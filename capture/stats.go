package capture

import "sync/atomic"

// Stats are the capture engine's monotone packet counters. Received always
// equals the sum of the other four, matched up by Engine's bookkeeping.
type Stats struct {
	Received       uint64
	Committed      uint64
	Rejected       uint64
	DroppedLate    uint64
	DroppedOverrun uint64
}

type statsCounters struct {
	received       atomic.Uint64
	committed      atomic.Uint64
	rejected       atomic.Uint64
	droppedLate    atomic.Uint64
	droppedOverrun atomic.Uint64
}

func (c *statsCounters) snapshot() Stats {
	return Stats{
		Received:       c.received.Load(),
		Committed:      c.committed.Load(),
		Rejected:       c.rejected.Load(),
		DroppedLate:    c.droppedLate.Load(),
		DroppedOverrun: c.droppedOverrun.Load(),
	}
}
