// Package capture implements the packet-capture engine: the
// decoder→processor→ring pipeline that turns a packet stream into
// committed ring sequences, with gap zero-filling, a two-slot reorder
// window, and sequence-change detection.
package capture

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/bifrost-project/bifrost/common/go/affinity"
	"github.com/bifrost-project/bifrost/ring"
	"github.com/bifrost-project/bifrost/status"
)

// Params configures an Engine.
type Params struct {
	NSrc            int
	BufferNTime     uint64
	SlotNTime       uint64
	BytesPerSample  int
	Timeout         time.Duration
	MaxPacketSize   int
	Core            *int
	CorePriority    int
	OnSequenceChange SequenceChangeFunc
}

func (p Params) validate() error {
	if p.NSrc <= 0 {
		return fmt.Errorf("nsrc must be positive")
	}
	if p.BufferNTime == 0 || p.SlotNTime == 0 {
		return fmt.Errorf("buffer_ntime and slot_ntime must be positive")
	}
	if p.BytesPerSample <= 0 {
		return fmt.Errorf("bytes_per_sample must be positive")
	}
	if uint64(p.NSrc)*p.BufferNTime > 64*bitsetMaxWords {
		return fmt.Errorf("nsrc*buffer_ntime exceeds the capture slot bitmap capacity (%d)", 64*bitsetMaxWords)
	}
	if p.MaxPacketSize <= 0 {
		return fmt.Errorf("max_payload must be positive")
	}
	return nil
}

const bitsetMaxWords = 16

// Engine drives one source through a decoder/processor pair into a ring,
// on its own goroutine, optionally pinned to a CPU core.
type Engine struct {
	source    Source
	decoder   Decoder
	processor Processor
	writer    *ring.Writer
	params    Params
	log       *zap.SugaredLogger

	front *slot
	back  *slot

	seqOpen            bool
	lastStructural      structuralKey
	samplesSinceChange uint64

	stats statsCounters
	pin   *affinity.Pinned

	buf []byte
}

// NewEngine constructs a capture engine. The ring's writer token must
// already be open; NewEngine does not call Ring.OpenWriting itself so
// callers can begin the ring's first sequence however they like before the
// engine starts driving it.
func NewEngine(source Source, decoder Decoder, processor Processor, writer *ring.Writer, params Params, log *zap.SugaredLogger) (*Engine, error) {
	if err := params.validate(); err != nil {
		return nil, status.New("capture.NewEngine", status.InvalidArgument, err)
	}
	if params.OnSequenceChange == nil {
		params.OnSequenceChange = defaultSequenceChange
	}

	slotSize := params.NSrc * int(params.BufferNTime) * params.BytesPerSample
	e := &Engine{
		source:    source,
		decoder:   decoder,
		processor: processor,
		writer:    writer,
		params:    params,
		log:       log,
		front:     newSlot(slotSize),
		back:      newSlot(slotSize),
		buf:       make([]byte, params.MaxPacketSize),
	}
	return e, nil
}

// Stats returns a point-in-time snapshot of the engine's packet counters.
func (e *Engine) Stats() Stats {
	return e.stats.snapshot()
}

// Pin locks the capture goroutine to the configured CPU core, if one was
// requested. Must be called from the goroutine that will run Recv.
func (e *Engine) Pin() error {
	if e.params.Core == nil {
		return nil
	}
	pinned, err := affinity.PinToCore(*e.params.Core, e.params.CorePriority)
	if err != nil {
		return status.New("capture.Pin", status.Unsupported, err)
	}
	e.pin = pinned
	return nil
}

// Unpin releases a pin acquired by Pin. Safe to call even if Pin was never
// called.
func (e *Engine) Unpin() {
	if e.pin != nil {
		e.pin.Unpin()
		e.pin = nil
	}
}

// Recv runs one iteration of the capture loop: read one packet, decode,
// and place it into the front/back reorder window. A slot's bytes reach
// the ring, and its sequence membership is decided, only when the window
// retires it in flush — not on the call that received its packets — so the
// Started/Changed code returned by Recv can lag the packet that actually
// caused the change by up to one generation. It returns promptly with
// NoData on timeout and Interrupted on context cancellation; it never
// returns partial progress silently. A panic raised while handling the
// packet is recovered and reported as Error with a status.Internal error.
func (e *Engine) Recv(ctx context.Context) (code Code, err error) {
	defer func() {
		if p := recover(); p != nil {
			code, err = Error, status.Newf("capture.Engine.Recv", status.Internal, "panic: %v", p)
		}
	}()

	recvCtx := ctx
	var cancel context.CancelFunc
	if e.params.Timeout > 0 {
		recvCtx, cancel = context.WithTimeout(ctx, e.params.Timeout)
		defer cancel()
	}

	n, err := e.source.Recv(recvCtx, e.buf)
	if err != nil {
		switch status.KindOf(err) {
		case status.NoData, status.Timeout:
			return NoData, nil
		case status.Interrupted:
			// With the caller's ctx still live, what the source saw expire
			// was the engine's own Timeout.
			if ctx.Err() == nil {
				return NoData, nil
			}
			return Interrupted, nil
		case status.EndOfData:
			return Ended, nil
		default:
			return Error, err
		}
	}

	e.stats.received.Add(1)

	desc, ok := e.decoder.Decode(e.buf[:n])
	if !ok {
		e.stats.rejected.Add(1)
		return Continued, nil
	}

	return e.place(desc, e.buf[desc.PayloadOffset:n])
}

func (e *Engine) place(desc Descriptor, payload []byte) (Code, error) {
	timeSlot := int64(desc.TimeSample / e.params.BufferNTime)
	sourceIdx := int(desc.SourceID)
	if sourceIdx < 0 || sourceIdx >= e.params.NSrc {
		e.stats.rejected.Add(1)
		return Continued, nil
	}
	timeIdx := int(desc.TimeSample % e.params.BufferNTime)

	switch {
	case e.front.active && timeSlot == e.front.timeSlot:
		if err := e.processor.Scatter(desc, payload, e.front.data); err != nil {
			e.stats.rejected.Add(1)
			return Error, err
		}
		e.front.markReceived(sourceIdx, timeIdx, e.params.BufferNTime)
		e.stats.committed.Add(1)
		return Continued, nil

	case e.back.active && timeSlot == e.back.timeSlot:
		if err := e.processor.Scatter(desc, payload, e.back.data); err != nil {
			e.stats.rejected.Add(1)
			return Error, err
		}
		e.back.markReceived(sourceIdx, timeIdx, e.params.BufferNTime)
		e.stats.committed.Add(1)
		return Continued, nil

	case !e.back.active && !e.front.active:
		// Nothing has been written yet, so the first sequence can begin
		// right away: there is no unflushed older generation whose
		// sequence membership this would misattribute.
		code := Continued
		if !e.seqOpen {
			timeTag, header, err := e.params.OnSequenceChange(desc)
			if err != nil {
				return Error, err
			}
			if _, err := e.writer.BeginSequence(timeTag, "", header); err != nil {
				return Error, err
			}
			e.seqOpen = true
			e.lastStructural = desc.structuralKey()
			code = Started
		}
		e.back.reset(timeSlot, desc)
		if err := e.processor.Scatter(desc, payload, e.back.data); err != nil {
			e.stats.rejected.Add(1)
			return Error, err
		}
		e.back.markReceived(sourceIdx, timeIdx, e.params.BufferNTime)
		e.stats.committed.Add(1)
		return code, nil

	case e.back.active && timeSlot == e.back.timeSlot+1:
		code := Continued
		if e.front.active {
			flushCode, err := e.flush(e.front)
			if err != nil {
				return Error, err
			}
			code = flushCode
		}
		e.front, e.back = e.back, e.front
		e.back.reset(timeSlot, desc)
		if err := e.processor.Scatter(desc, payload, e.back.data); err != nil {
			e.stats.rejected.Add(1)
			return Error, err
		}
		e.back.markReceived(sourceIdx, timeIdx, e.params.BufferNTime)
		e.stats.committed.Add(1)
		return code, nil

	case e.back.active && timeSlot < e.back.timeSlot:
		e.stats.droppedLate.Add(1)
		return Continued, nil

	default:
		// timeSlot is more than one generation ahead of back: treat it
		// like an opportunistic reader getting lapped rather than
		// stretching the reorder window past its two-slot design.
		e.stats.droppedOverrun.Add(1)
		return Continued, nil
	}
}

// flush writes s's slot buffer into the ring as one reserved span. It
// decides whether that write needs a sequence break first from the
// descriptor captured when s started its generation (s.desc, s.key), not
// from whatever packet is currently arriving: s may be up to one
// generation stale by the time it is retired, and the sequence its bytes
// belong to was fixed the moment this generation started, not now. The
// packets s holds were already counted as committed in place(); this only
// moves their bytes into the ring and reports what happened to the
// sequence.
func (e *Engine) flush(s *slot) (Code, error) {
	code := Continued

	if s.key != e.lastStructural || e.samplesSinceChange >= e.params.SlotNTime {
		if err := e.writer.EndSequence(); err != nil {
			return Error, err
		}
		timeTag, header, err := e.params.OnSequenceChange(s.desc)
		if err != nil {
			return Error, err
		}
		if _, err := e.writer.BeginSequence(timeTag, "", header); err != nil {
			return Error, err
		}
		e.lastStructural = s.key
		e.samplesSinceChange = 0
		code = Changed
	}

	s.zeroFillGaps(e.params.NSrc, e.params.BufferNTime, e.params.BytesPerSample)

	n := uint64(len(s.data))
	span, err := e.writer.Reserve(context.Background(), n)
	if err != nil {
		return Error, err
	}
	copy(span.Bytes(), s.data)
	if err := e.writer.Commit(span); err != nil {
		return Error, err
	}

	e.samplesSinceChange += e.params.BufferNTime
	s.active = false
	return code, nil
}

// Flush forces any slot still accumulating packets out to the ring, in
// generation order. Call this after the source is drained (Recv returned
// Ended) so the final partial generation is not silently lost.
func (e *Engine) Flush() error {
	if e.front.active {
		if _, err := e.flush(e.front); err != nil {
			return err
		}
	}
	if e.back.active {
		if _, err := e.flush(e.back); err != nil {
			return err
		}
	}
	return nil
}
