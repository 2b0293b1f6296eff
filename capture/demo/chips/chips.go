// Package chips implements a CHIPS-like fixed-header packet format, as a
// worked example of the capture.Decoder/capture.Processor pair rather than
// a decoder for any real instrument. A real site's format lives in its own
// package built the same way: parse a small fixed header, reject anything
// that doesn't match, and scatter the remaining payload by explicit
// arithmetic into the slot buffer.
package chips

import (
	"encoding/binary"
	"math"

	"github.com/bifrost-project/bifrost/capture"
)

// headerSize is the fixed CHIPS-like header: magic(4) + source_id(4) +
// time_sample(8) + channel_count(2) + source_count(2) + sample_rate(8) +
// bit_depth(1) + complex(1).
const headerSize = 30

const magic = uint32(0x43484950) // "CHIP"

// Decoder parses the fixed CHIPS-like header described above.
type Decoder struct{}

func (Decoder) Decode(packet []byte) (capture.Descriptor, bool) {
	if len(packet) < headerSize {
		return capture.Descriptor{}, false
	}
	if binary.BigEndian.Uint32(packet[0:4]) != magic {
		return capture.Descriptor{}, false
	}

	desc := capture.Descriptor{
		SourceID:      binary.BigEndian.Uint32(packet[4:8]),
		TimeSample:    binary.BigEndian.Uint64(packet[8:16]),
		ChannelCount:  int(binary.BigEndian.Uint16(packet[16:18])),
		SourceCount:   int(binary.BigEndian.Uint16(packet[18:20])),
		SampleRate:    math.Float64frombits(binary.BigEndian.Uint64(packet[20:28])),
		BitDepth:      int(packet[28]),
		Complex:       packet[29] != 0,
		PayloadOffset: headerSize,
	}
	return desc, true
}

// Processor scatters a CHIPS-like payload into a slot laid out as
// [time][source][channel], matching the spec's canonical TSC ordering.
type Processor struct {
	BufferNTime uint64
}

func (p Processor) Scatter(desc capture.Descriptor, payload []byte, slotMemory []byte) error {
	bytesPerSample := desc.BitDepth / 8
	if desc.Complex {
		bytesPerSample *= 2
	}
	frameSize := desc.ChannelCount * bytesPerSample

	timeIdx := int(desc.TimeSample % p.BufferNTime)
	frameStride := desc.SourceCount * frameSize
	offset := timeIdx*frameStride + int(desc.SourceID)*frameSize

	if offset+frameSize > len(slotMemory) || frameSize > len(payload) {
		return errOutOfRange
	}
	copy(slotMemory[offset:offset+frameSize], payload[:frameSize])
	return nil
}

var errOutOfRange = chipsError("chips: scatter destination out of range")

type chipsError string

func (e chipsError) Error() string { return string(e) }
