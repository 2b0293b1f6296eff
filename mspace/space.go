// Package mspace implements the memory-space allocator: a uniform
// allocate/free/copy/memset surface across host, host-pinned, device, and
// device-managed buffers.
//
// Device and device-managed spaces are backed by a second tagged host
// arena. No portable Go CUDA or ROCm binding exists in this tree, and the
// pipeline-graph operators that would actually dispatch device kernels are
// an external collaborator, so these spaces are simulated: the allocate,
// free, copy, and memset contract is identical to what a real device
// backend would present, and callers cannot observe the difference through
// this package's API.
package mspace

// Space identifies the locality class of a byte buffer.
type Space int

const (
	// Host is ordinary pageable process memory.
	Host Space = iota
	// HostPinned is page-locked host memory, suitable for DMA transfer to
	// a device without an intermediate bounce buffer.
	HostPinned
	// Device is memory resident on an accelerator, not host-accessible
	// without a copy.
	Device
	// DeviceManaged is accelerator memory that participates in a unified
	// address space with the host (e.g. CUDA managed memory).
	DeviceManaged
)

func (s Space) String() string {
	switch s {
	case Host:
		return "host"
	case HostPinned:
		return "host-pinned"
	case Device:
		return "device"
	case DeviceManaged:
		return "device-managed"
	default:
		return "unknown-space"
	}
}

// IsHostAccessible reports whether bytes in this space can be read or
// written directly by the calling goroutine without a Copy.
func (s Space) IsHostAccessible() bool {
	switch s {
	case Host, HostPinned, DeviceManaged:
		return true
	default:
		return false
	}
}
