package ring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bifrost-project/bifrost/mspace"
)

func TestMirrorDeviceSpaceIsNonDoubled(t *testing.T) {
	m, err := newMirror(mspace.Device, 1024, 256)
	require.NoError(t, err)
	assert.False(t, m.doubled)
}

func TestMirrorDeviceSpaceRejectsOversizedContiguousSpan(t *testing.T) {
	_, err := newMirror(mspace.Device, 1024, 600)
	require.Error(t, err)
}

func TestMirrorWrapStagingRoundTrip(t *testing.T) {
	m, err := newMirror(mspace.Device, 16, 8)
	require.NoError(t, err)

	// First fill bytes [12, 16) and [0, 4) via two writes that don't
	// straddle the wrap, to set up a read that does.
	first, staged := m.forWrite(12, 4)
	assert.False(t, staged)
	copy(first, []byte{1, 2, 3, 4})

	second, staged := m.forWrite(16, 4) // offset 16 % 16 == 0
	assert.False(t, staged)
	copy(second, []byte{5, 6, 7, 8})

	// Now acquire a span straddling the physical wrap: bytes [12, 20).
	got := m.forRead(12, 8)
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, got)
}

func TestMirrorWriteStagingAcrossWrap(t *testing.T) {
	m, err := newMirror(mspace.Device, 16, 8)
	require.NoError(t, err)

	data, staged := m.forWrite(12, 8)
	require.True(t, staged)
	copy(data, []byte{9, 9, 9, 9, 9, 9, 9, 9})
	m.writeback(12, data)

	assert.Equal(t, []byte{9, 9, 9, 9}, m.buf[12:16])
	assert.Equal(t, []byte{9, 9, 9, 9}, m.buf[0:4])
}
