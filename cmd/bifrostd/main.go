// Command bifrostd runs one or more capture pipelines, each feeding its own
// ring, plus the telemetry service that exposes their snapshots.
package main

import (
	"context"
	"fmt"
	"net"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/bifrost-project/bifrost/capture"
	"github.com/bifrost-project/bifrost/capture/demo/chips"
	"github.com/bifrost-project/bifrost/common/go/logging"
	"github.com/bifrost-project/bifrost/common/go/xcmd"
	"github.com/bifrost-project/bifrost/common/go/xgrpc"
	"github.com/bifrost-project/bifrost/internal/config"
	"github.com/bifrost-project/bifrost/mspace"
	"github.com/bifrost-project/bifrost/ring"
	"github.com/bifrost-project/bifrost/telemetry"
)

var cmd struct {
	ConfigPath string
}

var rootCmd = &cobra.Command{
	Use:   "bifrostd",
	Short: "Bifrost ring-buffer streaming daemon",
	RunE: func(_ *cobra.Command, _ []string) error {
		return run(cmd.ConfigPath)
	},
}

func init() {
	rootCmd.Flags().StringVarP(&cmd.ConfigPath, "config", "c", "", "Path to the configuration file (required)")
	_ = rootCmd.MarkFlagRequired("config")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Printf("ERROR: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, _, err := logging.Init(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer log.Sync()

	sink := telemetry.NewSink()

	pipelines, err := buildPipelines(cfg, sink, log)
	if err != nil {
		return fmt.Errorf("failed to build capture pipelines: %w", err)
	}

	ctx := context.Background()
	wg, ctx := errgroup.WithContext(ctx)

	for _, p := range pipelines {
		p := p
		wg.Go(func() error {
			return p.run(ctx)
		})
	}

	if cfg.Telemetry.Endpoint != "" {
		wg.Go(func() error {
			return runTelemetryService(ctx, cfg.Telemetry.Endpoint, sink, log)
		})
	}
	if cfg.Telemetry.PublishInterval > 0 {
		publisher := telemetry.NewPublisher(sink, cfg.Telemetry.PublishInterval, log)
		wg.Go(func() error {
			publisher.Run(ctx)
			return nil
		})
	}

	wg.Go(func() error {
		err := xcmd.WaitInterrupted(ctx)
		log.Infof("caught signal: %v", err)
		return err
	})

	return wg.Wait()
}

// pipeline ties together one ring, its writer, and the engine reading a
// configured source into it.
type pipeline struct {
	name   string
	ring   *ring.Ring
	engine *capture.Engine
	log    *zap.SugaredLogger
}

func buildPipelines(cfg *config.Config, sink *telemetry.Sink, log *zap.SugaredLogger) ([]*pipeline, error) {
	pipelines := make([]*pipeline, 0, len(cfg.Rings))
	for name, rc := range cfg.Rings {
		p, err := buildPipeline(name, rc, log)
		if err != nil {
			return nil, fmt.Errorf("ring %q: %w", name, err)
		}
		sink.Register(p.ring)
		pipelines = append(pipelines, p)
	}
	return pipelines, nil
}

func buildPipeline(name string, rc config.RingConfig, log *zap.SugaredLogger) (*pipeline, error) {
	space, err := parseSpace(rc.Space)
	if err != nil {
		return nil, err
	}

	r := ring.New(name, space, log.With("ring", name))
	if err := r.Resize(rc.ContiguousSpan, rc.Capacity, rc.Nringlets); err != nil {
		return nil, fmt.Errorf("failed to size ring: %w", err)
	}

	writer, err := r.OpenWriting()
	if err != nil {
		return nil, fmt.Errorf("failed to open writer: %w", err)
	}

	if rc.Capture == nil {
		return &pipeline{name: name, ring: r, log: log}, nil
	}

	source, err := buildSource(rc.Capture)
	if err != nil {
		return nil, fmt.Errorf("failed to build source: %w", err)
	}

	engine, err := capture.NewEngine(source, chips.Decoder{}, chips.Processor{BufferNTime: rc.Capture.BufferNTime}, writer, capture.Params{
		NSrc:           rc.Capture.NSrc,
		BufferNTime:    rc.Capture.BufferNTime,
		SlotNTime:      rc.Capture.SlotNTime,
		BytesPerSample: rc.Capture.BytesPerSample,
		Timeout:        rc.Capture.Timeout,
		MaxPacketSize:  rc.Capture.MaxPacketSize,
		Core:           rc.Capture.Core,
		CorePriority:   rc.Capture.CorePriority,
	}, log.With("ring", name))
	if err != nil {
		return nil, fmt.Errorf("failed to build engine: %w", err)
	}

	return &pipeline{name: name, ring: r, engine: engine, log: log.With("ring", name)}, nil
}

func buildSource(cc *config.CaptureConfig) (capture.Source, error) {
	switch cc.Source {
	case "udp":
		return capture.NewUDPSource(cc.Address)
	case "sniffer":
		return capture.NewSnifferSource(cc.Address)
	case "verbs":
		return capture.NewVerbsSource(cc.Address, 0)
	case "disk":
		return capture.NewDiskSource(cc.Address)
	default:
		return nil, fmt.Errorf("unknown capture source %q", cc.Source)
	}
}

func parseSpace(name string) (mspace.Space, error) {
	switch name {
	case "", "host":
		return mspace.Host, nil
	case "host-pinned":
		return mspace.HostPinned, nil
	case "device":
		return mspace.Device, nil
	case "device-managed":
		return mspace.DeviceManaged, nil
	default:
		return 0, fmt.Errorf("unknown memory space %q", name)
	}
}

// run drives the pipeline's engine until its source is exhausted or the
// context is canceled, flushing any partial generation before returning.
func (p *pipeline) run(ctx context.Context) error {
	if p.engine == nil {
		<-ctx.Done()
		return nil
	}

	if err := p.engine.Pin(); err != nil {
		p.log.Warnw("failed to pin capture goroutine", zap.Error(err))
	}
	defer p.engine.Unpin()

	for {
		select {
		case <-ctx.Done():
			return p.engine.Flush()
		default:
		}

		code, err := p.engine.Recv(ctx)
		if err != nil {
			return fmt.Errorf("capture recv failed: %w", err)
		}
		switch code {
		case capture.Ended:
			return p.engine.Flush()
		case capture.Interrupted:
			return p.engine.Flush()
		case capture.Error:
			return fmt.Errorf("capture engine entered error state")
		}
	}
}

func runTelemetryService(ctx context.Context, endpoint string, sink *telemetry.Sink, log *zap.SugaredLogger) error {
	lis, err := net.Listen("tcp", endpoint)
	if err != nil {
		return fmt.Errorf("failed to listen on %q: %w", endpoint, err)
	}

	server := grpc.NewServer(grpc.ChainUnaryInterceptor(xgrpc.AccessLogInterceptor(log)))
	telemetry.Register(server, telemetry.NewService(sink, log))

	log.Infow("exposing telemetry service", zap.String("addr", endpoint))

	errCh := make(chan error, 1)
	go func() { errCh <- server.Serve(lis) }()

	select {
	case <-ctx.Done():
		server.GracefulStop()
		return nil
	case err := <-errCh:
		return err
	}
}
