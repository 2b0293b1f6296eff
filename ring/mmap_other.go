//go:build !linux

package ring

import "errors"

// newDoubleMapping has no portable implementation outside Linux's
// memfd_create+mmap; callers fall back to the scratch-copy staging path,
// which preserves the span contract at the cost of an extra copy on the
// rare reserve/acquire that straddles the physical wrap.
func newDoubleMapping(size uint64) ([]byte, func() error, error) {
	return nil, nil, errors.New("doubled virtual mapping is only implemented on linux")
}
