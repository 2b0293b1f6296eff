package mspace

// Block is a single allocation returned by an Allocator. It is the unit of
// ownership: Allocate returns one, Free consumes one.
type Block struct {
	data   []byte
	mapped []byte
	space  Space
	pinned bool
}

// Bytes returns the block's backing storage. For a Device block this is the
// simulated host arena backing it, not a real device pointer; callers that
// need device semantics should only use it via Copy/Memset.
func (b *Block) Bytes() []byte {
	return b.data
}

// Len returns the block's size in bytes.
func (b *Block) Len() int {
	return len(b.data)
}

// Space reports the memory space this block was allocated from.
func (b *Block) Space() Space {
	return b.space
}

func (b *Block) base() uintptr {
	return sliceBase(b.data)
}

// Ptr returns the address of the block's first byte, suitable for passing
// to Allocator.QuerySpace.
func (b *Block) Ptr() uintptr {
	return sliceBase(b.data)
}
