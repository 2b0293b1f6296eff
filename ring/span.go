package ring

// WriteSpan is a contiguous byte range reserved by the writer. It is a
// borrow: the bytes it exposes are only valid between Reserve and the
// matching Commit.
type WriteSpan struct {
	ring   *Ring
	seq    *sequence
	offset uint64
	size   uint64
	data   []byte
	staged bool
}

// Bytes returns the span's backing storage, writable in place.
func (s *WriteSpan) Bytes() []byte {
	return s.data
}

// Offset returns the span's byte offset in the ring's reservation space.
func (s *WriteSpan) Offset() uint64 {
	return s.offset
}

// Size returns the span's length in bytes.
func (s *WriteSpan) Size() uint64 {
	return s.size
}

// ReadSpan is a contiguous byte range acquired by a reader. It is a borrow:
// valid only between Acquire and the matching Release.
type ReadSpan struct {
	ring       *Ring
	reader     *Reader
	seq        *sequence
	offset     uint64
	size       uint64
	data       []byte
	truncated  bool
	overrun    bool
	guaranteed bool
}

// Bytes returns the span's backing storage, read-only by convention.
func (s *ReadSpan) Bytes() []byte {
	return s.data
}

// Offset returns the span's byte offset in the ring's reservation space.
func (s *ReadSpan) Offset() uint64 {
	return s.offset
}

// Size returns the span's actual length, which may be smaller than
// requested near a sequence's end.
func (s *ReadSpan) Size() uint64 {
	return s.size
}

// Truncated reports whether Size is smaller than the size requested from
// Acquire, either because the sequence ended or because less data is
// currently committed.
func (s *ReadSpan) Truncated() bool {
	return s.truncated
}

// Overrun reports whether this span was returned after the writer lapped
// an opportunistic reader. Never true for a guaranteed reader.
func (s *ReadSpan) Overrun() bool {
	return s.overrun
}
