package ring

import (
	"fmt"

	"github.com/bifrost-project/bifrost/mspace"
	"github.com/bifrost-project/bifrost/status"
)

// mirror is the ring's byte storage. On a host space, where a real doubled
// virtual mapping is available, it presents a single buf of length
// 2*capacity whose two halves alias the same physical pages, so any
// contiguousSpan-sized window is addressable without staging. Otherwise
// (device spaces, or a host without memfd+mmap support) it falls back to a
// single capacity-length buffer and copies spans that straddle the wrap
// into a scratch buffer, per the design note on doubled mapping fallback.
type mirror struct {
	capacity uint64
	doubled  bool
	buf      []byte
	scratch  []byte
	closeFn  func() error
}

func isHostSpace(space mspace.Space) bool {
	return space == mspace.Host || space == mspace.HostPinned
}

func newMirror(space mspace.Space, capacity, contiguousSpan uint64) (*mirror, error) {
	if isHostSpace(space) {
		if buf, closeFn, err := newDoubleMapping(capacity); err == nil {
			return &mirror{capacity: capacity, doubled: true, buf: buf, closeFn: closeFn}, nil
		}
	}

	if contiguousSpan > capacity/2 {
		return nil, status.Newf("ring.Resize", status.InvalidArgument,
			"contiguous span %d exceeds capacity/2 (%d) for non-doubled storage", contiguousSpan, capacity/2)
	}

	return &mirror{capacity: capacity, doubled: false, buf: make([]byte, capacity)}, nil
}

func (m *mirror) close() error {
	if m.closeFn == nil {
		return nil
	}
	return m.closeFn()
}

// forWrite returns a slice the writer may fill directly. staged reports
// whether the slice is a scratch copy that must be passed to writeback once
// filled, because it straddles the physical wrap on non-doubled storage.
func (m *mirror) forWrite(offset, n uint64) (data []byte, staged bool) {
	off := offset % m.capacity
	if m.doubled || off+n <= m.capacity {
		return m.buf[off : off+n], false
	}

	if uint64(len(m.scratch)) < n {
		m.scratch = make([]byte, n)
	}
	return m.scratch[:n], true
}

// writeback copies a staged write back into the ring, split across the
// physical wrap. Only ever called from the single writer, so it is safe to
// reuse the mirror's scratch buffer without additional synchronization.
func (m *mirror) writeback(offset uint64, data []byte) {
	off := offset % m.capacity
	first := m.capacity - off
	if first > uint64(len(data)) {
		first = uint64(len(data))
	}
	copy(m.buf[off:], data[:first])
	copy(m.buf[:uint64(len(data))-first], data[first:])
}

// forRead returns n contiguous bytes starting at offset. On doubled storage
// this aliases the live buffer; otherwise it is a fresh copy, since
// multiple readers may call forRead concurrently and a shared scratch
// buffer would race.
func (m *mirror) forRead(offset, n uint64) []byte {
	off := offset % m.capacity
	if m.doubled || off+n <= m.capacity {
		return m.buf[off : off+n]
	}

	out := make([]byte, n)
	first := m.capacity - off
	copy(out[:first], m.buf[off:])
	copy(out[first:], m.buf[:n-first])
	return out
}

func validateResize(contiguousSpan, totalCapacity uint64) (uint64, error) {
	if contiguousSpan == 0 {
		return 0, fmt.Errorf("contiguous span must be non-zero")
	}
	capacity := totalCapacity
	if capacity < 2*contiguousSpan {
		capacity = 2 * contiguousSpan
	}
	return capacity, nil
}
