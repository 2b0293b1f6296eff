package telemetry

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Publisher periodically logs every registered ring's Snapshot, for
// deployments that want a running record in their log pipeline without
// standing up a telemetry client. It runs alongside Service, not instead
// of it: Service answers on-demand pulls, Publisher is the always-on push.
type Publisher struct {
	sink     *Sink
	interval time.Duration
	log      *zap.SugaredLogger
}

// NewPublisher creates a Publisher that logs sink's contents every
// interval.
func NewPublisher(sink *Sink, interval time.Duration, log *zap.SugaredLogger) *Publisher {
	return &Publisher{sink: sink, interval: interval, log: log}
}

// Run logs snapshots on a fixed interval until ctx is done.
func (p *Publisher) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.publishOnce()
		}
	}
}

func (p *Publisher) publishOnce() {
	for name, snap := range p.sink.Collect() {
		p.log.Infow("ring snapshot",
			zap.String("ring", name),
			zap.String("space", snap.Space.String()),
			zap.Uint64("capacity", snap.Capacity),
			zap.Uint64("head", snap.Head),
			zap.Uint64("tail", snap.Tail),
			zap.Int("guaranteed_readers", snap.GuaranteedReaders),
			zap.Int("opportunistic_readers", snap.OpportunisticReaders),
			zap.Uint64("max_guaranteed_lag", snap.MaxGuaranteedLag),
		)
	}
}
