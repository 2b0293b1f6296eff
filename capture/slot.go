package capture

import "github.com/bifrost-project/bifrost/common/go/bitset"

// slot is one front-or-back generation of the capture engine's
// double-buffered scheme: a contiguous payload area covering buffer_ntime
// samples for every source, plus a receipt bitmap used to zero-fill gaps at
// commit time.
//
// All sources in a generation are assumed to share one time slot value.
// The source format's native decoder keeps its sources clocked together
// (the common case for synchronized multi-antenna receivers); a format
// whose sources drift independently would need a per-source time slot
// array, which this simplified scheme does not provide.
type slot struct {
	active   bool
	timeSlot int64
	data     []byte
	received bitset.TinyBitset

	// desc and key are captured from the packet that opened this
	// generation, and travel with it until flush decides the sequence
	// this generation's bytes belong to. Deciding from the arriving
	// packet instead would attribute a still-unflushed slot's bytes to
	// whatever sequence happens to be open two generations later.
	desc Descriptor
	key  structuralKey
}

func newSlot(size int) *slot {
	return &slot{data: make([]byte, size)}
}

func (s *slot) reset(timeSlot int64, desc Descriptor) {
	s.active = true
	s.timeSlot = timeSlot
	s.desc = desc
	s.key = desc.structuralKey()
	s.received.Clear()
	for i := range s.data {
		s.data[i] = 0
	}
}

func (s *slot) markReceived(sourceIdx int, timeIdx int, bufferNTime uint64) {
	idx := uint32(sourceIdx)*uint32(bufferNTime) + uint32(timeIdx)
	s.received.Insert(idx)
}

// zeroFillGaps clears the bytes of every not-yet-received packet position
// and marks them received, so a commit never ships stale bytes from the
// slot's previous occupant.
func (s *slot) zeroFillGaps(nsrc int, bufferNTime uint64, bytesPerSample int) {
	limit := uint32(nsrc) * uint32(bufferNTime)
	for {
		idx, ok := s.received.FirstGapBefore(limit)
		if !ok {
			break
		}
		off := int(idx) * bytesPerSample
		for i := off; i < off+bytesPerSample && i < len(s.data); i++ {
			s.data[i] = 0
		}
		s.received.Insert(idx)
	}
}
