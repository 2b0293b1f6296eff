// Package ring implements the memory-space-aware, single-writer/
// multi-reader circular byte buffer that is the streaming substrate for
// Bifrost pipelines: the sequence/span protocol, the guarantee manager that
// arbitrates backpressure between the writer and its guaranteed readers,
// and the virtual-mirror storage that makes every span contiguous to the
// caller regardless of the physical wrap.
package ring

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/bifrost-project/bifrost/mspace"
	"github.com/bifrost-project/bifrost/status"
)

// Ring is a bounded circular byte buffer shared by one writer and any
// number of readers. Metadata (cursors, the sequence registry, the reader
// set) is protected by a single mutex; span payload bytes are not — once
// reserved or acquired, a span belongs exclusively to its caller until
// commit or release.
type Ring struct {
	name  string
	space mspace.Space
	log   *zap.SugaredLogger

	mu        sync.Mutex
	spaceCond *sync.Cond
	dataCond  *sync.Cond

	capacity       uint64
	contiguousSpan uint64
	nringlets      int
	storage        *mirror

	writerOpen        bool
	reservationCursor uint64
	commitCursor      uint64
	everWritten       bool

	nextSeqID uint64
	sequences []*sequence
	seqByID   map[uint64]*sequence
	current   *sequence

	readers   map[*Reader]struct{}
	guarantee *guaranteeManager

	interruptCh chan struct{}
}

// New constructs an empty, unsized ring. Call Resize before opening it for
// writing or reading.
func New(name string, space mspace.Space, log *zap.SugaredLogger) *Ring {
	r := &Ring{
		name:        name,
		space:       space,
		log:         log,
		seqByID:     make(map[uint64]*sequence),
		readers:     make(map[*Reader]struct{}),
		guarantee:   newGuaranteeManager(),
		interruptCh: make(chan struct{}),
	}
	r.spaceCond = sync.NewCond(&r.mu)
	r.dataCond = sync.NewCond(&r.mu)
	return r
}

func (r *Ring) Name() string       { return r.name }
func (r *Ring) Space() mspace.Space { return r.space }

func (r *Ring) Capacity() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.capacity
}

func (r *Ring) ContiguousSpan() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.contiguousSpan
}

// Resize sizes or resizes the ring's storage. totalCapacity is rounded up
// to at least 2*contiguousSpan. It fails with InvalidState once any span has
// been reserved on the ring, even if every reader has since consumed all
// committed data; only a ring that has never been written can be resized.
func (r *Ring) Resize(contiguousSpan, totalCapacity uint64, nringlets int) error {
	const op = "ring.Resize"

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.storage != nil && r.everWritten {
		return status.New(op, status.InvalidState, fmt.Errorf("ring %q has been written to", r.name))
	}

	capacity, err := validateResize(contiguousSpan, totalCapacity)
	if err != nil {
		return status.New(op, status.InvalidArgument, err)
	}

	if r.storage != nil {
		if err := r.storage.close(); err != nil {
			r.log.Warnw("failed to release previous ring storage", "ring", r.name, "error", err)
		}
	}

	storage, err := newMirror(r.space, capacity, contiguousSpan)
	if err != nil {
		return err
	}

	r.storage = storage
	r.capacity = capacity
	r.contiguousSpan = contiguousSpan
	r.nringlets = nringlets
	r.reservationCursor = 0
	r.commitCursor = 0
	return nil
}

// Destroy tears down the ring's storage. The ring is not usable afterward
// except for another Resize.
func (r *Ring) Destroy() error {
	const op = "ring.Destroy"

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.storage == nil {
		return nil
	}
	err := r.storage.close()
	r.storage = nil
	if err != nil {
		return status.New(op, status.Internal, err)
	}
	return nil
}

// OpenWriting grants the exclusive writer token for this ring. Only one
// Writer may be open at a time; a second call fails with InvalidState.
func (r *Ring) OpenWriting() (*Writer, error) {
	const op = "ring.OpenWriting"

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.storage == nil {
		return nil, status.New(op, status.InvalidState, fmt.Errorf("ring %q has not been sized", r.name))
	}
	if r.writerOpen {
		return nil, status.New(op, status.InvalidState, fmt.Errorf("ring %q already has an open writer", r.name))
	}

	r.writerOpen = true
	return &Writer{ring: r}, nil
}

// OpenReading admits a new reader. guaranteed readers participate in
// backpressure; fromOldest starts the reader at the oldest live sequence
// instead of the writer's current commit position.
func (r *Ring) OpenReading(guaranteed bool, fromOldest bool) (*Reader, error) {
	const op = "ring.OpenReading"

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.storage == nil {
		return nil, status.New(op, status.InvalidState, fmt.Errorf("ring %q has not been sized", r.name))
	}

	cursor := r.commitCursor
	if fromOldest && len(r.sequences) > 0 {
		cursor = r.sequences[0].begin
	}

	reader := &Reader{ring: r, guaranteed: guaranteed, cursor: cursor}
	r.readers[reader] = struct{}{}
	if guaranteed {
		r.guarantee.add(reader, cursor)
	}
	return reader, nil
}

// Interrupt wakes every thread currently parked on this ring with a
// distinguished Interrupted result. The ring's state is untouched and it
// remains usable; a fresh interrupt generation is armed immediately so a
// caller can resume blocking calls right away.
func (r *Ring) Interrupt() {
	r.mu.Lock()
	close(r.interruptCh)
	r.interruptCh = make(chan struct{})
	r.spaceCond.Broadcast()
	r.dataCond.Broadcast()
	r.mu.Unlock()
}

// Snapshot reports the ring's current counters for publication to a
// telemetry sink.
type Snapshot struct {
	Name                 string
	Space                mspace.Space
	Capacity             uint64
	Head                 uint64
	Tail                 uint64
	GuaranteedReaders    int
	OpportunisticReaders int
	MaxGuaranteedLag     uint64
}

func (r *Ring) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	lag := uint64(0)
	if min, ok := r.guarantee.min(); ok {
		lag = r.reservationCursor - min
	}

	return Snapshot{
		Name:                 r.name,
		Space:                r.space,
		Capacity:             r.capacity,
		Head:                 r.reservationCursor,
		Tail:                 r.commitCursor,
		GuaranteedReaders:    r.guarantee.count(),
		OpportunisticReaders: len(r.readers) - r.guarantee.count(),
		MaxGuaranteedLag:     lag,
	}
}

// evictSequencesLocked drops every closed sequence at the front of the
// registry that the writer has fully committed past and that no live
// reader's cursor still falls within: "no reader references it" is
// approximated by every reader's cursor having advanced at or past the
// sequence's end, since a reader only ever touches a sequence through
// Acquire calls bounded by that cursor. Must be called with r.mu held.
func (r *Ring) evictSequencesLocked() {
	for len(r.sequences) > 0 {
		seq := r.sequences[0]
		if seq.end == seqOpen || r.commitCursor < seq.end {
			return
		}
		if !r.allReadersPastLocked(seq.end) {
			return
		}

		delete(r.seqByID, seq.id)
		r.sequences = r.sequences[1:]
		for reader := range r.readers {
			if reader.seqIdx > 0 {
				reader.seqIdx--
			}
		}
	}
}

func (r *Ring) allReadersPastLocked(end uint64) bool {
	for reader := range r.readers {
		if reader.cursor < end {
			return false
		}
	}
	return true
}

// waitFor blocks on cond until ready reports true, the ring is
// interrupted, or ctx is done. Must be called with r.mu held; it is
// released for the duration of each cond.Wait and reacquired on return.
func (r *Ring) waitFor(ctx context.Context, cond *sync.Cond, ready func() bool) error {
	const op = "ring.wait"

	interruptCh := r.interruptCh

	stop := context.AfterFunc(ctx, func() {
		r.mu.Lock()
		cond.Broadcast()
		r.mu.Unlock()
	})
	defer stop()

	for !ready() {
		select {
		case <-interruptCh:
			return status.New(op, status.Interrupted, nil)
		default:
		}
		if err := ctx.Err(); err != nil {
			return status.New(op, status.Timeout, err)
		}
		cond.Wait()
	}
	return nil
}
