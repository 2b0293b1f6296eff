package ring

import "github.com/bifrost-project/bifrost/status"

// seqOpen marks a sequence whose writer has not yet called EndSequence.
const seqOpen = ^uint64(0)

// sequence is an epoch of contiguous bytes with a single header. A closed
// sequence (end != seqOpen) is evicted from the registry automatically,
// without any call from outside this package, once the writer has
// committed through its end and every live reader's cursor has advanced
// past it — see Ring.evictSequencesLocked. A SequenceHandle resolved after
// its sequence is evicted reports status.InvalidState rather than
// dereferencing stale memory.
type sequence struct {
	id      uint64
	timeTag int64
	name    string
	header  []byte
	begin   uint64
	end     uint64
}

// SequenceHandle is a weak reference to a sequence: it is only an id, and
// every accessor re-resolves it against the ring's registry, so a sequence
// removed from the registry is reported as an expired handle rather than
// dereferenced.
type SequenceHandle struct {
	ring *Ring
	id   uint64
}

func (h *SequenceHandle) resolve(op string) (*sequence, error) {
	h.ring.mu.Lock()
	defer h.ring.mu.Unlock()

	seq, ok := h.ring.seqByID[h.id]
	if !ok {
		return nil, status.New(op, status.InvalidState, nil)
	}
	return seq, nil
}

// ID returns the sequence's monotonically increasing identifier.
func (h *SequenceHandle) ID() uint64 {
	return h.id
}

// TimeTag returns the sequence's time tag.
func (h *SequenceHandle) TimeTag() (int64, error) {
	seq, err := h.resolve("sequence.TimeTag")
	if err != nil {
		return 0, err
	}
	return seq.timeTag, nil
}

// Name returns the sequence's name.
func (h *SequenceHandle) Name() (string, error) {
	seq, err := h.resolve("sequence.Name")
	if err != nil {
		return "", err
	}
	return seq.name, nil
}

// Header returns the sequence's opaque header bytes.
func (h *SequenceHandle) Header() ([]byte, error) {
	seq, err := h.resolve("sequence.Header")
	if err != nil {
		return nil, err
	}
	return seq.header, nil
}

// Closed reports whether the writer has called EndSequence on this
// sequence.
func (h *SequenceHandle) Closed() (bool, error) {
	seq, err := h.resolve("sequence.Closed")
	if err != nil {
		return false, err
	}
	return seq.end != seqOpen, nil
}
