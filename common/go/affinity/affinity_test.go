package affinity

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoreSet(t *testing.T) {
	s := NewWithOneBitSet(2).Intersect(NewWithOneBitSet(2) | NewWithOneBitSet(3))

	assert.False(t, s.IsEmpty())
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, []uint32{2}, collect(s.Iter()))
}

func TestCoreSetEmpty(t *testing.T) {
	var s CoreSet
	assert.True(t, s.IsEmpty())
	assert.Equal(t, 0, s.Len())
}

func TestPinToCore(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("affinity pinning is linux-only")
	}

	pinned, err := PinToCore(0, 0)
	require.NoError(t, err)
	defer pinned.Unpin()

	assert.Equal(t, 0, pinned.Core())
	assert.NotZero(t, pinned.Tid())
}

func collect(seq func(func(uint32) bool)) []uint32 {
	out := make([]uint32, 0)
	seq(func(v uint32) bool {
		out = append(out, v)
		return true
	})
	return out
}
