package mspace

import (
	"sync"

	"github.com/c2h5oh/datasize"
	"golang.org/x/sys/unix"

	"github.com/bifrost-project/bifrost/status"
)

// DefaultAlignment is the host allocation alignment used when an Allocator
// is not configured otherwise.
const DefaultAlignment = datasize.ByteSize(4096)

// Option configures an Allocator.
type Option func(*Allocator)

// WithAlignment overrides the default host allocation alignment.
func WithAlignment(align datasize.ByteSize) Option {
	return func(a *Allocator) {
		a.align = align
	}
}

// Allocator implements allocate/free/copy/memset uniformly across the four
// memory spaces, dispatching on the space tag of each Block.
//
// It also tracks every live allocation's address range so QuerySpace can
// answer which space a bare pointer belongs to, mirroring the native
// allocator's pointer-tagging behavior without requiring callers to carry
// the space alongside every pointer.
type Allocator struct {
	align datasize.ByteSize

	mu      sync.Mutex
	regions []region
}

type region struct {
	base  uintptr
	limit uintptr
	space Space
}

// New constructs an Allocator.
func New(opts ...Option) *Allocator {
	a := &Allocator{align: DefaultAlignment}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Allocate reserves size bytes in the given space, aligned to the
// allocator's configured boundary for host allocations.
func (a *Allocator) Allocate(op string, size datasize.ByteSize, space Space) (*Block, error) {
	if size == 0 {
		return nil, status.New(op, status.InvalidArgument, nil)
	}

	switch space {
	case Host, HostPinned, Device, DeviceManaged:
		align := uint64(a.align)
		if align == 0 {
			align = 1
		}

		mapSize := uint64(size)
		if align > 1 {
			mapSize += align - 1
		}
		mapped, err := unix.Mmap(-1, 0, int(mapSize), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
		if err != nil {
			return nil, status.New(op, status.InsufficientStorage, err)
		}

		data := mapped
		if align > 1 {
			base := sliceBase(mapped)
			aligned := (base + uintptr(align-1)) &^ uintptr(align-1)
			off := int(aligned - base)
			data = mapped[off : off+int(size)]
		}

		pinned := space == HostPinned
		if pinned {
			if err := unix.Mlock(mapped); err != nil {
				_ = unix.Munmap(mapped)
				return nil, status.New(op, status.InsufficientStorage, err)
			}
		}

		b := &Block{data: data, mapped: mapped, space: space, pinned: pinned}
		a.track(b)
		return b, nil
	default:
		return nil, status.New(op, status.InvalidSpace, nil)
	}
}

// Free releases a block previously returned by Allocate.
func (a *Allocator) Free(op string, b *Block) error {
	if b == nil || b.data == nil {
		return status.New(op, status.InvalidArgument, nil)
	}

	a.untrack(b)

	if b.pinned {
		_ = unix.Munlock(b.mapped)
	}
	if err := unix.Munmap(b.mapped); err != nil {
		return status.New(op, status.Internal, err)
	}
	b.data = nil
	b.mapped = nil
	return nil
}

func (a *Allocator) track(b *Block) {
	a.mu.Lock()
	defer a.mu.Unlock()
	base := b.base()
	a.regions = append(a.regions, region{base: base, limit: base + uintptr(b.Len()), space: b.space})
}

func (a *Allocator) untrack(b *Block) {
	a.mu.Lock()
	defer a.mu.Unlock()
	base := b.base()
	for i, r := range a.regions {
		if r.base == base {
			a.regions = append(a.regions[:i], a.regions[i+1:]...)
			return
		}
	}
}

// QuerySpace reports which space the given pointer, obtained from a live
// Block's Bytes(), belongs to.
func (a *Allocator) QuerySpace(op string, ptr uintptr) (Space, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, r := range a.regions {
		if ptr >= r.base && ptr < r.limit {
			return r.space, nil
		}
	}
	return Host, status.New(op, status.InvalidArgument, nil)
}

// Copy transfers n bytes from src[srcOff:] to dst[dstOff:], dispatching on
// the (src.Space, dst.Space) pair. Host and pinned-host spaces are a plain
// copy; any pair involving a simulated device space is also a plain copy
// against its backing arena, since no real device-to-device peer path
// exists in this implementation — see the package doc.
func (a *Allocator) Copy(op string, dst *Block, dstOff int, src *Block, srcOff int, n int) error {
	if n < 0 || dstOff < 0 || srcOff < 0 {
		return status.New(op, status.InvalidArgument, nil)
	}
	if dstOff+n > dst.Len() || srcOff+n > src.Len() {
		return status.New(op, status.InvalidArgument, nil)
	}

	copy(dst.data[dstOff:dstOff+n], src.data[srcOff:srcOff+n])
	return nil
}

// Copy2D copies height rows of width bytes each from src to dst, advancing
// by srcPitch/dstPitch bytes between rows. This mirrors cudaMemcpy2D-style
// strided transfers used to move sub-tiles of a larger array.
func (a *Allocator) Copy2D(op string, dst *Block, dstOff, dstPitch int, src *Block, srcOff, srcPitch int, width, height int) error {
	if width < 0 || height < 0 || dstPitch < width || srcPitch < width {
		return status.New(op, status.InvalidShape, nil)
	}

	for row := 0; row < height; row++ {
		do := dstOff + row*dstPitch
		so := srcOff + row*srcPitch
		if do+width > dst.Len() || so+width > src.Len() {
			return status.New(op, status.InvalidArgument, nil)
		}
		copy(dst.data[do:do+width], src.data[so:so+width])
	}
	return nil
}

// Memset fills n bytes of b starting at offset with value.
func (a *Allocator) Memset(op string, b *Block, offset int, value byte, n int) error {
	if offset < 0 || n < 0 || offset+n > b.Len() {
		return status.New(op, status.InvalidArgument, nil)
	}

	region := b.data[offset : offset+n]
	for i := range region {
		region[i] = value
	}
	return nil
}
