package ring

import (
	"context"

	"github.com/bifrost-project/bifrost/status"
)

// Reader is a cursor into a Ring obtained from Ring.OpenReading.
type Reader struct {
	ring       *Ring
	guaranteed bool
	cursor     uint64
	seqIdx     int
	closed     bool
}

// Guaranteed reports whether this reader currently participates in
// backpressure.
func (reader *Reader) Guaranteed() bool {
	reader.ring.mu.Lock()
	defer reader.ring.mu.Unlock()
	return reader.guaranteed
}

// SetGuaranteed toggles whether this reader participates in backpressure.
// Dropping guarantee mid-flight never blocks. Re-acquiring it snaps the
// reader's cursor forward if the writer has since moved more than a
// capacity ahead, so the reader does not retroactively stall the writer.
func (reader *Reader) SetGuaranteed(guaranteed bool) {
	r := reader.ring
	r.mu.Lock()
	defer r.mu.Unlock()

	if guaranteed && !reader.guaranteed {
		if r.commitCursor > r.capacity && reader.cursor < r.commitCursor-r.capacity {
			reader.cursor = r.commitCursor - r.capacity
		}
		r.guarantee.add(reader, reader.cursor)
	} else if !guaranteed && reader.guaranteed {
		r.guarantee.remove(reader)
		r.spaceCond.Broadcast()
	}
	reader.guaranteed = guaranteed
}

// nextSequenceCandidateLocked finds the earliest not-yet-returned sequence
// whose begin offset is at or past the reader's cursor, without mutating
// reader state. Must be called with r.mu held.
func (reader *Reader) nextSequenceCandidateLocked() (*sequence, int) {
	r := reader.ring
	for i := reader.seqIdx; i < len(r.sequences); i++ {
		if r.sequences[i].begin >= reader.cursor {
			return r.sequences[i], i
		}
	}
	return nil, -1
}

// NextSequence blocks until a sequence whose begin offset is at or past the
// reader's cursor appears, or ctx is done.
func (reader *Reader) NextSequence(ctx context.Context) (*SequenceHandle, error) {
	const op = "reader.NextSequence"

	r := reader.ring
	r.mu.Lock()
	defer r.mu.Unlock()

	if reader.closed {
		return nil, status.New(op, status.InvalidState, nil)
	}

	ready := func() bool {
		seq, _ := reader.nextSequenceCandidateLocked()
		return seq != nil
	}
	if err := r.waitFor(ctx, r.dataCond, ready); err != nil {
		return nil, err
	}

	seq, idx := reader.nextSequenceCandidateLocked()
	reader.seqIdx = idx + 1
	return &SequenceHandle{ring: r, id: seq.id}, nil
}

// Acquire blocks until the writer's commit cursor covers n bytes past the
// reader's cursor, or the sequence ends (returning a short span), or ctx is
// done. For an opportunistic reader that the writer has lapped, the cursor
// is first snapped forward to commitCursor-capacity+1 and the returned
// span's Overrun reports true; no error is returned for the overrun.
func (reader *Reader) Acquire(ctx context.Context, n uint64, handle *SequenceHandle) (*ReadSpan, error) {
	const op = "reader.Acquire"

	r := reader.ring
	r.mu.Lock()
	defer r.mu.Unlock()

	if reader.closed {
		return nil, status.New(op, status.InvalidState, nil)
	}
	seq, ok := r.seqByID[handle.id]
	if !ok {
		return nil, status.New(op, status.InvalidState, nil)
	}

	overrun := false
	if !reader.guaranteed && r.commitCursor > reader.cursor && r.commitCursor-reader.cursor > r.capacity {
		reader.cursor = r.commitCursor - r.capacity + 1
		overrun = true
	}

	want := reader.cursor + n
	ready := func() bool {
		if r.commitCursor >= want {
			return true
		}
		return seq.end != seqOpen
	}
	if err := r.waitFor(ctx, r.dataCond, ready); err != nil {
		return nil, err
	}

	avail := uint64(0)
	if r.commitCursor > reader.cursor {
		avail = r.commitCursor - reader.cursor
	}

	size := n
	truncated := false
	if seq.end != seqOpen {
		remaining := uint64(0)
		if seq.end > reader.cursor {
			remaining = seq.end - reader.cursor
		}
		if remaining < size {
			size = remaining
			truncated = true
		}
	}
	if avail < size {
		size = avail
		truncated = true
	}

	if size == 0 {
		return nil, status.New(op, status.EndOfData, nil)
	}

	data := r.storage.forRead(reader.cursor, size)
	return &ReadSpan{ring: r, reader: reader, seq: seq, offset: reader.cursor, size: size, data: data, truncated: truncated, overrun: overrun, guaranteed: reader.guaranteed}, nil
}

// Release advances this reader's cursor past span and, for a guaranteed
// reader, wakes a writer that may have been blocked waiting for it.
func (reader *Reader) Release(span *ReadSpan) error {
	r := reader.ring
	r.mu.Lock()
	defer r.mu.Unlock()

	reader.cursor = span.offset + span.size
	if reader.guaranteed {
		r.guarantee.update(reader, reader.cursor)
	}
	r.evictSequencesLocked()
	r.spaceCond.Broadcast()
	return nil
}

// Close removes this reader from the ring's reader set and guarantee
// manager, waking a writer that may have been blocked solely on it.
func (reader *Reader) Close() error {
	r := reader.ring
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.readers, reader)
	r.guarantee.remove(reader)
	reader.closed = true
	r.evictSequencesLocked()
	r.spaceCond.Broadcast()
	return nil
}
