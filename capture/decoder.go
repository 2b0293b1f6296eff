package capture

// Descriptor is the format-specific metadata a Decoder extracts from one
// packet: enough for the engine to place the packet's payload into the
// right capture slot and to detect a structural change in the stream.
type Descriptor struct {
	SourceID      uint32
	TimeSample    uint64
	PayloadOffset int

	ChannelCount int
	SourceCount  int
	SampleRate   float64
	BitDepth     int
	Complex      bool
}

// structuralKey identifies the fields whose change triggers a sequence
// break, independent of the periodic slot_ntime-based break.
type structuralKey struct {
	channelCount int
	sourceCount  int
	sampleRate   float64
	bitDepth     int
	complex      bool
}

func (d Descriptor) structuralKey() structuralKey {
	return structuralKey{
		channelCount: d.ChannelCount,
		sourceCount:  d.SourceCount,
		sampleRate:   d.SampleRate,
		bitDepth:     d.BitDepth,
		complex:      d.Complex,
	}
}

// Decoder validates and extracts a Descriptor from one raw packet. It
// returns ok=false to reject a malformed, wrong-format, or
// unrecognized-source packet.
type Decoder interface {
	Decode(packet []byte) (desc Descriptor, ok bool)
}

// Processor scatters one packet's payload into its capture slot. It
// computes the destination offset within slotMemory itself from desc,
// since only the format knows how samples, channels, and sources are
// interleaved.
type Processor interface {
	Scatter(desc Descriptor, payload []byte, slotMemory []byte) error
}
