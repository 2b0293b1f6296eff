package mspace_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bifrost-project/bifrost/mspace"
	"github.com/bifrost-project/bifrost/status"
)

func TestAllocateZeroSizeRejected(t *testing.T) {
	a := mspace.New()
	_, err := a.Allocate("test", 0, mspace.Host)
	require.Error(t, err)
	assert.Equal(t, status.InvalidArgument, status.KindOf(err))
}

func TestAllocateFreeRoundTrip(t *testing.T) {
	a := mspace.New()

	b, err := a.Allocate("test", 4096, mspace.Host)
	require.NoError(t, err)
	assert.Equal(t, 4096, b.Len())
	assert.Equal(t, mspace.Host, b.Space())

	require.NoError(t, a.Free("test", b))
}

func TestQuerySpace(t *testing.T) {
	a := mspace.New()

	host, err := a.Allocate("test", 4096, mspace.Host)
	require.NoError(t, err)
	defer a.Free("test", host)

	device, err := a.Allocate("test", 4096, mspace.Device)
	require.NoError(t, err)
	defer a.Free("test", device)

	gotHost, err := a.QuerySpace("test", ptrOf(host))
	require.NoError(t, err)
	assert.Equal(t, mspace.Host, gotHost)

	gotDevice, err := a.QuerySpace("test", ptrOf(device))
	require.NoError(t, err)
	assert.Equal(t, mspace.Device, gotDevice)
}

func TestCopyHostToHost(t *testing.T) {
	a := mspace.New()

	src, err := a.Allocate("test", 16, mspace.Host)
	require.NoError(t, err)
	defer a.Free("test", src)

	dst, err := a.Allocate("test", 16, mspace.Host)
	require.NoError(t, err)
	defer a.Free("test", dst)

	for i := range src.Bytes() {
		src.Bytes()[i] = byte(i)
	}

	require.NoError(t, a.Copy("test", dst, 0, src, 0, 16))
	assert.Equal(t, src.Bytes(), dst.Bytes())
}

func TestCopy2D(t *testing.T) {
	a := mspace.New()

	src, err := a.Allocate("test", 4096, mspace.Host)
	require.NoError(t, err)
	defer a.Free("test", src)

	dst, err := a.Allocate("test", 4096, mspace.Host)
	require.NoError(t, err)
	defer a.Free("test", dst)

	// Three rows of 8 bytes each, at a pitch of 64 bytes, all set to 0xAB.
	for row := 0; row < 3; row++ {
		off := row * 64
		for i := 0; i < 8; i++ {
			src.Bytes()[off+i] = 0xAB
		}
	}

	require.NoError(t, a.Copy2D("test", dst, 0, 64, src, 0, 64, 8, 3))
	for row := 0; row < 3; row++ {
		off := row * 64
		assert.Equal(t, []byte{0xAB, 0xAB, 0xAB, 0xAB, 0xAB, 0xAB, 0xAB, 0xAB}, dst.Bytes()[off:off+8])
	}
}

func TestMemset(t *testing.T) {
	a := mspace.New()

	b, err := a.Allocate("test", 64, mspace.Host)
	require.NoError(t, err)
	defer a.Free("test", b)

	require.NoError(t, a.Memset("test", b, 8, 0x7F, 16))
	for i := 8; i < 24; i++ {
		assert.Equal(t, byte(0x7F), b.Bytes()[i])
	}
	assert.Equal(t, byte(0), b.Bytes()[0])
}

func TestAllocateHonorsConfiguredAlignment(t *testing.T) {
	const align = 16384

	a := mspace.New(mspace.WithAlignment(align))

	b, err := a.Allocate("test", 4096, mspace.Host)
	require.NoError(t, err)
	defer a.Free("test", b)

	assert.Equal(t, 4096, b.Len())
	assert.Zero(t, b.Ptr()%align, "block base %#x is not aligned to %d bytes", b.Ptr(), align)
}

func ptrOf(b *mspace.Block) uintptr {
	return b.Ptr()
}
