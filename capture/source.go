package capture

import (
	"context"
)

// Source is a byte-packet origin for the capture engine: a UDP socket, a
// raw sniffing socket, a kernel-bypass receive queue, or a disk file of
// length-prefixed records.
type Source interface {
	// Recv reads one packet into buf and returns its length. It blocks
	// until a packet arrives or ctx is done; a configured per-source
	// read timeout surfaces as a *status.Error with Kind NoData rather
	// than blocking forever.
	Recv(ctx context.Context, buf []byte) (int, error)

	// Close releases the source's underlying descriptor.
	Close() error
}

// Seeker is implemented by sources that support repositioning, currently
// only DiskSource. whence follows io.Seeker's convention.
type Seeker interface {
	Seek(offset int64, whence int) (int64, error)
}

// SequenceChangeFunc is invoked on the capture thread whenever a structural
// change is detected, either periodically (every slot_ntime committed time
// samples) or because the decoder reports new stream parameters. It must
// not block on the ring it feeds, since it runs between EndSequence and
// BeginSequence on that same ring.
type SequenceChangeFunc func(desc Descriptor) (timeTag int64, header []byte, err error)

func defaultSequenceChange(desc Descriptor) (int64, []byte, error) {
	return int64(desc.TimeSample), nil, nil
}
