package ring

import (
	"context"
	"fmt"

	"github.com/bifrost-project/bifrost/status"
)

// Writer is the exclusive write token for a Ring, obtained from
// Ring.OpenWriting. Exactly one Writer may be open per ring at a time.
type Writer struct {
	ring   *Ring
	closed bool
}

// BeginSequence starts a new sequence at the writer's current reservation
// cursor, implicitly ending any sequence already open.
func (w *Writer) BeginSequence(timeTag int64, name string, header []byte) (*SequenceHandle, error) {
	const op = "writer.BeginSequence"

	r := w.ring
	r.mu.Lock()
	defer r.mu.Unlock()

	if w.closed {
		return nil, status.New(op, status.InvalidState, nil)
	}
	if r.current != nil {
		r.current.end = r.reservationCursor
		r.evictSequencesLocked()
	}

	id := r.nextSeqID
	r.nextSeqID++

	seq := &sequence{
		id:      id,
		timeTag: timeTag,
		name:    name,
		header:  header,
		begin:   r.reservationCursor,
		end:     seqOpen,
	}
	r.sequences = append(r.sequences, seq)
	r.seqByID[id] = seq
	r.current = seq

	r.dataCond.Broadcast()
	return &SequenceHandle{ring: r, id: id}, nil
}

// EndSequence closes the writer's current sequence. Reserve fails with
// InvalidState until a subsequent BeginSequence opens a new one.
func (w *Writer) EndSequence() error {
	const op = "writer.EndSequence"

	r := w.ring
	r.mu.Lock()
	defer r.mu.Unlock()

	if w.closed {
		return status.New(op, status.InvalidState, nil)
	}
	if r.current == nil {
		return status.New(op, status.InvalidState, fmt.Errorf("no open sequence"))
	}

	r.current.end = r.reservationCursor
	r.current = nil
	r.evictSequencesLocked()
	r.dataCond.Broadcast()
	return nil
}

// Reserve returns a span of exactly n contiguous bytes at the writer's
// reservation cursor, blocking if advancing would overrun the slowest
// guaranteed reader. n must not exceed the ring's contiguous span.
func (w *Writer) Reserve(ctx context.Context, n uint64) (*WriteSpan, error) {
	const op = "writer.Reserve"

	r := w.ring
	r.mu.Lock()

	if w.closed {
		r.mu.Unlock()
		return nil, status.New(op, status.InvalidState, nil)
	}
	if n == 0 || n > r.contiguousSpan {
		r.mu.Unlock()
		return nil, status.New(op, status.InvalidArgument, fmt.Errorf("reserve size %d exceeds contiguous span %d", n, r.contiguousSpan))
	}
	if r.current == nil {
		r.mu.Unlock()
		return nil, status.New(op, status.InvalidState, fmt.Errorf("no open sequence"))
	}

	ready := func() bool {
		min, any := r.guarantee.min()
		if !any {
			return true
		}
		return r.reservationCursor+n-min <= r.capacity
	}
	if err := r.waitFor(ctx, r.spaceCond, ready); err != nil {
		r.mu.Unlock()
		return nil, err
	}

	seq := r.current
	offset := r.reservationCursor
	r.reservationCursor += n
	r.everWritten = true
	data, staged := r.storage.forWrite(offset, n)

	r.mu.Unlock()

	return &WriteSpan{ring: r, seq: seq, offset: offset, size: n, data: data, staged: staged}, nil
}

// Commit marks span's bytes as readable, advancing the commit cursor and
// waking any reader blocked on Acquire or NextSequence.
func (w *Writer) Commit(span *WriteSpan) error {
	const op = "writer.Commit"

	r := w.ring
	if span.staged {
		r.storage.writeback(span.offset, span.data)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if span.offset != r.commitCursor {
		return status.New(op, status.InvalidState, fmt.Errorf("commit out of order: span at %d, commit cursor at %d", span.offset, r.commitCursor))
	}
	r.commitCursor = span.offset + span.size
	r.evictSequencesLocked()
	r.dataCond.Broadcast()
	return nil
}

// CloseWriting ends any open sequence and releases the writer token. The
// Writer must not be used again afterward.
func (w *Writer) CloseWriting() error {
	r := w.ring
	r.mu.Lock()
	defer r.mu.Unlock()

	if w.closed {
		return nil
	}
	if r.current != nil {
		r.current.end = r.reservationCursor
		r.current = nil
		r.evictSequencesLocked()
	}
	r.writerOpen = false
	w.closed = true
	r.dataCond.Broadcast()
	return nil
}
