// Package affinity pins capture worker goroutines to specific CPU cores so
// packet reception is not preempted or migrated mid-batch.
package affinity

import (
	"fmt"
	"iter"
	"math/bits"
	"runtime"

	"golang.org/x/sys/unix"

	"github.com/bifrost-project/bifrost/common/go/bitset"
)

// MAX is a CoreSet with every representable core selected.
const MAX = CoreSet(^uint64(0))

// CoreSet is a bitmap of CPU core indices, zero-based.
type CoreSet uint64

// NewWithOneBitSet returns a CoreSet selecting a single core.
//
// Panics if idx >= 64.
func NewWithOneBitSet(idx uint32) CoreSet {
	if idx >= 64 {
		panic("index is out of range")
	}
	return CoreSet(1 << idx)
}

func (s CoreSet) IsEmpty() bool {
	return s == 0
}

func (s CoreSet) Len() int {
	return bits.OnesCount64(uint64(s))
}

func (s CoreSet) Intersect(other CoreSet) CoreSet {
	return s & other
}

func (s CoreSet) Iter() iter.Seq[uint32] {
	return bitset.NewBitsTraverser(uint64(s)).Iter()
}

// Pinned is a handle on a goroutine that has locked itself to an OS thread
// and pinned that thread to a single core. Unpin releases both.
type Pinned struct {
	core int
	tid  int
}

// Core reports the core index this goroutine is pinned to.
func (p *Pinned) Core() int {
	return p.core
}

// Tid reports the Linux thread id backing the pinned goroutine.
func (p *Pinned) Tid() int {
	return p.tid
}

// Unpin releases the OS thread lock. The thread affinity mask itself is left
// in place, matching the kernel's behavior of not resetting affinity when a
// process stops constraining it.
func (p *Pinned) Unpin() {
	runtime.UnlockOSThread()
}

// PinToCore locks the calling goroutine to its current OS thread and
// constrains that thread to run on the given core. priority is passed
// directly to setpriority(2) and is typically negative to raise scheduling
// priority for latency-sensitive capture loops; pass 0 to leave it
// unchanged.
//
// Must be called from the goroutine that will do the pinned work: affinity
// and thread-locking are both per-OS-thread properties.
func PinToCore(core int, priority int) (*Pinned, error) {
	runtime.LockOSThread()

	tid := unix.Gettid()

	var set unix.CPUSet
	set.Zero()
	set.Set(core)
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		runtime.UnlockOSThread()
		return nil, fmt.Errorf("set affinity to core %d: %w", core, err)
	}

	if priority != 0 {
		if err := unix.Setpriority(unix.PRIO_PROCESS, tid, priority); err != nil {
			runtime.UnlockOSThread()
			return nil, fmt.Errorf("set priority for tid %d: %w", tid, err)
		}
	}

	return &Pinned{core: core, tid: tid}, nil
}
