package capture

import (
	"context"

	"github.com/bifrost-project/bifrost/status"
)

// VerbsSource would receive packets via a kernel-bypass RDMA verbs queue
// pair. There is no portable Go binding for libibverbs in this module's
// dependency set, so this type exists to satisfy the four-ingest-path
// surface and to give callers a typed, explicit failure instead of a
// missing symbol; NewVerbsSource always fails.
type VerbsSource struct{}

// NewVerbsSource always returns an Unsupported error. A real
// implementation would bind to an RDMA device queue pair via cgo against
// libibverbs, which is out of scope for a pure-Go module.
func NewVerbsSource(device string, queuePair int) (*VerbsSource, error) {
	return nil, status.Newf("capture.NewVerbsSource", status.Unsupported,
		"kernel-bypass verbs receive has no portable Go binding")
}

func (s *VerbsSource) Recv(ctx context.Context, buf []byte) (int, error) {
	return 0, status.New("capture.VerbsSource.Recv", status.Unsupported, nil)
}

func (s *VerbsSource) Close() error {
	return nil
}
