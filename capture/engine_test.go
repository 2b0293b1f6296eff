package capture_test

import (
	"context"
	"encoding/binary"
	"math"
	"net"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/bifrost-project/bifrost/capture"
	"github.com/bifrost-project/bifrost/capture/demo/chips"
	"github.com/bifrost-project/bifrost/mspace"
	"github.com/bifrost-project/bifrost/ring"
)

const chipsHeaderSize = 30

func buildCHIPSPacket(sourceID uint32, timeSample uint64, channelCount, sourceCount int, sampleRate float64, bitDepth int, complex_ bool, payload []byte) []byte {
	pkt := make([]byte, chipsHeaderSize+len(payload))
	binary.BigEndian.PutUint32(pkt[0:4], 0x43484950)
	binary.BigEndian.PutUint32(pkt[4:8], sourceID)
	binary.BigEndian.PutUint64(pkt[8:16], timeSample)
	binary.BigEndian.PutUint16(pkt[16:18], uint16(channelCount))
	binary.BigEndian.PutUint16(pkt[18:20], uint16(sourceCount))
	binary.BigEndian.PutUint64(pkt[20:28], math.Float64bits(sampleRate))
	pkt[28] = byte(bitDepth)
	if complex_ {
		pkt[29] = 1
	}
	copy(pkt[chipsHeaderSize:], payload)
	return pkt
}

func newTestWriterRing(t *testing.T, contiguous, capacity uint64) (*ring.Ring, *ring.Writer) {
	t.Helper()
	r := ring.New("capture-test", mspace.Host, zaptest.NewLogger(t).Sugar())
	require.NoError(t, r.Resize(contiguous, capacity, 1))
	t.Cleanup(func() { _ = r.Destroy() })
	w, err := r.OpenWriting()
	require.NoError(t, err)
	return r, w
}

// TestUDPCaptureStartedThenContinued exercises spec scenario 5: a UDP
// source delivering a steady packet stream produces STARTED on the first
// receive and CONTINUED afterward, with every packet counted as committed
// and none rejected or dropped.
func TestUDPCaptureStartedThenContinued(t *testing.T) {
	const nsrc = 1
	const bufferNTime = 4
	const bytesPerSample = 2

	slotSize := nsrc * bufferNTime * bytesPerSample

	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	addr := conn.LocalAddr().(*net.UDPAddr)
	// Release the probe socket so the source can bind the same port.
	conn.Close()

	source, err := capture.NewUDPSource(addr.String())
	require.NoError(t, err)
	defer source.Close()

	sender, err := net.DialUDP("udp", nil, addr)
	require.NoError(t, err)
	defer sender.Close()

	_, writer := newTestWriterRing(t, uint64(slotSize)*4, uint64(slotSize)*16)

	eng, err := capture.NewEngine(source, chips.Decoder{}, chips.Processor{BufferNTime: bufferNTime}, writer, capture.Params{
		NSrc:           nsrc,
		BufferNTime:    bufferNTime,
		SlotNTime:      bufferNTime * 2,
		BytesPerSample: bytesPerSample,
		Timeout:        200 * time.Millisecond,
		MaxPacketSize:  1500,
	}, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)

	payload := []byte{0x01, 0x02}
	for ts := uint64(0); ts < bufferNTime; ts++ {
		pkt := buildCHIPSPacket(0, ts, 1, nsrc, 2500000.0, 16, false, payload)
		_, err := sender.Write(pkt)
		require.NoError(t, err)
	}

	ctx := context.Background()
	code, err := eng.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, capture.Started, code)

	for i := 0; i < bufferNTime-1; i++ {
		code, err := eng.Recv(ctx)
		require.NoError(t, err)
		assert.Equal(t, capture.Continued, code)
	}

	stats := eng.Stats()
	assert.Equal(t, uint64(bufferNTime), stats.Received)
	assert.Equal(t, uint64(0), stats.Rejected)
	assert.Equal(t, uint64(0), stats.DroppedLate)
	assert.Equal(t, uint64(0), stats.DroppedOverrun)
}

// TestDiskCaptureStructuralChangesProduceThreeSequences exercises spec
// scenario 6: two structural changes across a replayed file yield exactly
// three sequences with strictly increasing time tags.
func TestDiskCaptureStructuralChangesProduceThreeSequences(t *testing.T) {
	const nsrc = 1
	const bufferNTime = 2
	const bytesPerSample = 2
	slotSize := nsrc * bufferNTime * bytesPerSample

	f, err := os.CreateTemp(t.TempDir(), "capture-disk-*.bin")
	require.NoError(t, err)
	defer f.Close()

	writeRecord := func(pkt []byte) {
		var lenBuf [4]byte
		binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(pkt)))
		_, err := f.Write(lenBuf[:])
		require.NoError(t, err)
		_, err = f.Write(pkt)
		require.NoError(t, err)
	}

	payload := []byte{0xAA, 0xBB}
	// Generation 1: 16-bit real samples at 2.5 MHz.
	writeRecord(buildCHIPSPacket(0, 0, 1, nsrc, 2500000.0, 16, false, payload))
	writeRecord(buildCHIPSPacket(0, 1, 1, nsrc, 2500000.0, 16, false, payload))
	// Generation 2: bit depth changes to 8.
	writeRecord(buildCHIPSPacket(0, 2, 1, nsrc, 2500000.0, 8, false, payload[:1]))
	writeRecord(buildCHIPSPacket(0, 3, 1, nsrc, 2500000.0, 8, false, payload[:1]))
	// Generation 3: channel count changes to 2.
	writeRecord(buildCHIPSPacket(0, 4, 2, nsrc, 2500000.0, 8, false, append(payload[:1], payload[:1]...)))
	writeRecord(buildCHIPSPacket(0, 5, 2, nsrc, 2500000.0, 8, false, append(payload[:1], payload[:1]...)))
	require.NoError(t, f.Sync())
	_, err = f.Seek(0, 0)
	require.NoError(t, err)

	source, err := capture.NewDiskSource(f.Name())
	require.NoError(t, err)
	defer source.Close()

	r, writer := newTestWriterRing(t, uint64(slotSize)*4, uint64(slotSize)*32)

	// The reader must exist before capture starts: a closed sequence that no
	// reader is still behind is evicted as soon as the writer commits past it.
	reader, err := r.OpenReading(true, true)
	require.NoError(t, err)

	eng, err := capture.NewEngine(source, chips.Decoder{}, chips.Processor{BufferNTime: bufferNTime}, writer, capture.Params{
		NSrc:           nsrc,
		BufferNTime:    bufferNTime,
		SlotNTime:      1000, // rely solely on structural changes here
		BytesPerSample: bytesPerSample,
		MaxPacketSize:  1500,
	}, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)

	ctx := context.Background()
	var codes []capture.Code
	for i := 0; i < 8; i++ {
		code, err := eng.Recv(ctx)
		require.NoError(t, err)
		codes = append(codes, code)
		if code == capture.Ended {
			break
		}
	}
	require.NoError(t, eng.Flush())
	require.NoError(t, writer.CloseWriting())

	var timeTags []int64
	for i := 0; i < 3; i++ {
		handle, err := reader.NextSequence(ctx)
		require.NoError(t, err)
		tt, err := handle.TimeTag()
		require.NoError(t, err)
		timeTags = append(timeTags, tt)
	}

	shortCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = reader.NextSequence(shortCtx)
	assert.Error(t, err, "no fourth sequence should appear")

	require.Len(t, timeTags, 3)
	assert.Less(t, timeTags[0], timeTags[1])
	assert.Less(t, timeTags[1], timeTags[2])

	stats := eng.Stats()
	assert.Equal(t, stats.Received, stats.Committed+stats.Rejected+stats.DroppedLate+stats.DroppedOverrun)
}
