package capture

import (
	"context"
	"encoding/binary"
	"io"
	"os"

	"github.com/bifrost-project/bifrost/status"
)

// DiskSource replays packets from a file of length-prefixed records: each
// record is a little-endian uint32 byte length followed by that many bytes
// of raw packet payload, exactly as a sniffer would have captured it live.
// It implements Seeker, but only at record boundaries: a mid-record offset
// is rejected rather than silently resyncing on the next length field that
// happens to parse.
type DiskSource struct {
	f *os.File

	// boundaries records the file offset of every record's length-prefix
	// this source has actually read past. Seek is only ever honored to
	// one of these, never to an arbitrary offset: without rescanning the
	// whole file there is no way to tell a real length prefix from four
	// payload bytes that happen to parse as one.
	boundaries map[int64]struct{}
	pos        int64
}

// NewDiskSource opens path for sequential or seek-driven record replay.
func NewDiskSource(path string) (*DiskSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, status.New("capture.NewDiskSource", status.InvalidArgument, err)
	}
	return &DiskSource{f: f, boundaries: map[int64]struct{}{0: {}}}, nil
}

func (s *DiskSource) Recv(ctx context.Context, buf []byte) (int, error) {
	const op = "capture.DiskSource.Recv"

	if err := ctx.Err(); err != nil {
		return 0, status.New(op, status.Interrupted, err)
	}

	recordStart := s.pos

	var lenBuf [4]byte
	if _, err := io.ReadFull(s.f, lenBuf[:]); err != nil {
		if err == io.EOF {
			return 0, status.New(op, status.EndOfData, err)
		}
		return 0, status.New(op, status.Internal, err)
	}
	n := int(binary.LittleEndian.Uint32(lenBuf[:]))
	if n > len(buf) {
		return 0, status.Newf(op, status.InvalidArgument, "record of %d bytes exceeds buffer of %d", n, len(buf))
	}
	if _, err := io.ReadFull(s.f, buf[:n]); err != nil {
		return 0, status.New(op, status.Internal, err)
	}

	s.pos = recordStart + 4 + int64(n)
	s.boundaries[s.pos] = struct{}{}
	return n, nil
}

// Seek repositions the source to offset, which must be either 0 or a
// record boundary this source has already read past in this process's
// lifetime; any other offset returns InvalidArgument.
func (s *DiskSource) Seek(offset int64, whence int) (int64, error) {
	const op = "capture.DiskSource.Seek"

	if whence != io.SeekStart {
		return 0, status.Newf(op, status.InvalidArgument, "only io.SeekStart is supported")
	}
	if _, known := s.boundaries[offset]; !known {
		return 0, status.Newf(op, status.InvalidArgument, "offset %d is not a known record boundary", offset)
	}

	pos, err := s.f.Seek(offset, io.SeekStart)
	if err != nil {
		return 0, status.New(op, status.Internal, err)
	}
	s.pos = pos
	return pos, nil
}

func (s *DiskSource) Close() error {
	return s.f.Close()
}
