//go:build linux

package ring

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// newDoubleMapping reserves 2*size bytes of virtual address space and maps
// an anonymous memfd-backed region into both halves, so that any byte
// offset and its offset+size alias are the same physical page. This is the
// canonical "magic ring buffer" trick: a pointer into the first half is
// valid for up to size contiguous bytes even when the logical range wraps.
func newDoubleMapping(size uint64) ([]byte, func() error, error) {
	fd, err := unix.MemfdCreate("bifrost-ring", 0)
	if err != nil {
		return nil, nil, fmt.Errorf("memfd_create: %w", err)
	}

	if err := unix.Ftruncate(fd, int64(size)); err != nil {
		unix.Close(fd)
		return nil, nil, fmt.Errorf("ftruncate: %w", err)
	}

	reservation, err := unix.Mmap(-1, 0, int(2*size), unix.PROT_NONE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		unix.Close(fd)
		return nil, nil, fmt.Errorf("reserve address space: %w", err)
	}
	base := uintptr(unsafe.Pointer(&reservation[0]))

	if _, err := mmapFixed(base, size, fd); err != nil {
		_ = unix.Munmap(reservation)
		unix.Close(fd)
		return nil, nil, fmt.Errorf("map first half: %w", err)
	}
	if _, err := mmapFixed(base+uintptr(size), size, fd); err != nil {
		_ = unix.Munmap(reservation)
		unix.Close(fd)
		return nil, nil, fmt.Errorf("map second half: %w", err)
	}

	mirrored := unsafe.Slice((*byte)(unsafe.Pointer(base)), 2*size)

	closeFn := func() error {
		if err := unix.Munmap(mirrored); err != nil {
			return err
		}
		return unix.Close(fd)
	}
	return mirrored, closeFn, nil
}

func mmapFixed(addr uintptr, length uint64, fd int) (uintptr, error) {
	ret, _, errno := unix.Syscall6(
		unix.SYS_MMAP,
		addr,
		uintptr(length),
		uintptr(unix.PROT_READ|unix.PROT_WRITE),
		uintptr(unix.MAP_SHARED|unix.MAP_FIXED),
		uintptr(fd),
		0,
	)
	if errno != 0 {
		return 0, errno
	}
	return ret, nil
}
