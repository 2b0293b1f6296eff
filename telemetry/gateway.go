package telemetry

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/siderolabs/grpc-proxy/proxy"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/bifrost-project/bifrost/common/go/xgrpc"
)

// instanceMetadataKey is the gRPC metadata key a telemetry gateway client
// sets to pick which registered bifrostd instance a Snapshot call targets.
// Every backend behind the gateway exports the same one-method service, so
// routing can't be done by service name the way a multi-service gateway
// would: it has to be done by instance.
const instanceMetadataKey = "bifrost-instance"

// BackendRegistry tracks one telemetry backend per live bifrostd instance.
type BackendRegistry struct {
	mu       sync.RWMutex
	backends map[string]proxy.Backend
	conns    map[string]*grpc.ClientConn
}

// NewBackendRegistry creates an empty registry.
func NewBackendRegistry() *BackendRegistry {
	return &BackendRegistry{
		backends: map[string]proxy.Backend{},
		conns:    map[string]*grpc.ClientConn{},
	}
}

// Register adds or replaces the backend for instance, dialing its telemetry
// endpoint.
func (r *BackendRegistry) Register(instance, endpoint string) error {
	conn, err := grpc.NewClient(
		endpoint,
		grpc.WithDefaultCallOptions(grpc.ForceCodecV2(proxy.Codec())),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return fmt.Errorf("failed to dial telemetry backend %q: %w", instance, err)
	}

	backend := &proxy.SingleBackend{
		GetConn: func(ctx context.Context) (context.Context, *grpc.ClientConn, error) {
			md, _ := metadata.FromIncomingContext(ctx)
			outCtx := metadata.NewOutgoingContext(ctx, md.Copy())
			return outCtx, conn, nil
		},
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.backends[instance] = backend
	r.conns[instance] = conn
	return nil
}

// Watch logs a warning, with an increasing backoff between checks, for
// every registered instance whose connection isn't ready. It runs until
// ctx is done.
func (r *BackendRegistry) Watch(ctx context.Context, log *zap.SugaredLogger) {
	type retryState struct {
		backoff *backoff.ExponentialBackOff
		retryAt time.Time
	}
	retries := map[string]*retryState{}

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		r.mu.RLock()
		conns := make(map[string]*grpc.ClientConn, len(r.conns))
		for instance, conn := range r.conns {
			conns[instance] = conn
		}
		r.mu.RUnlock()

		now := time.Now()
		for instance, conn := range conns {
			state := conn.GetState()
			if state == connectivity.Ready || state == connectivity.Idle {
				delete(retries, instance)
				continue
			}

			rs, ok := retries[instance]
			if !ok {
				rs = &retryState{backoff: &backoff.ExponentialBackOff{
					InitialInterval:     backoff.DefaultInitialInterval,
					RandomizationFactor: backoff.DefaultRandomizationFactor,
					Multiplier:          backoff.DefaultMultiplier,
					MaxInterval:         time.Minute,
				}}
				rs.backoff.Reset()
				retries[instance] = rs
			}
			if now.Before(rs.retryAt) {
				continue
			}

			wait := rs.backoff.NextBackOff()
			rs.retryAt = now.Add(wait)
			log.Warnw("telemetry backend not ready, reconnecting",
				zap.String("instance", instance),
				zap.Stringer("state", state),
				zap.Duration("next_retry_in", wait),
			)
			conn.Connect()
		}
	}
}

// Unregister removes instance from the registry and closes its connection,
// for when it drops out of the fleet.
func (r *BackendRegistry) Unregister(instance string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.backends, instance)
	if conn, ok := r.conns[instance]; ok {
		_ = conn.Close()
		delete(r.conns, instance)
	}
}

func (r *BackendRegistry) get(instance string) (proxy.Backend, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	backend, ok := r.backends[instance]
	return backend, ok
}

// Gateway fans a single Telemetry RPC out to whichever registered bifrostd
// instance the caller names, without each caller having to know every
// instance's address.
type Gateway struct {
	endpoint string
	server   *grpc.Server
	registry *BackendRegistry
	log      *zap.SugaredLogger
}

// NewGateway builds a Gateway listening on endpoint.
func NewGateway(endpoint string, registry *BackendRegistry, log *zap.SugaredLogger) *Gateway {
	director := func(ctx context.Context, fullMethodName string) (proxy.Mode, []proxy.Backend, error) {
		if _, _, err := xgrpc.ParseFullMethod(fullMethodName); err != nil {
			return proxy.One2One, nil, status.Errorf(codes.InvalidArgument, "malformed gRPC method name: %v", err)
		}

		md, _ := metadata.FromIncomingContext(ctx)
		instances := md.Get(instanceMetadataKey)
		if len(instances) != 1 {
			return proxy.One2One, nil, status.Errorf(codes.InvalidArgument, "exactly one %q metadata value is required", instanceMetadataKey)
		}

		backend, ok := registry.get(instances[0])
		if !ok {
			return proxy.One2One, nil, status.Errorf(codes.NotFound, "unknown instance %q", instances[0])
		}

		return proxy.One2One, []proxy.Backend{backend}, nil
	}

	server := grpc.NewServer(
		grpc.ChainUnaryInterceptor(xgrpc.AccessLogInterceptor(log)),
		grpc.ForceServerCodecV2(proxy.Codec()),
		grpc.UnknownServiceHandler(proxy.TransparentHandler(director)),
	)

	return &Gateway{endpoint: endpoint, server: server, registry: registry, log: log}
}

// Run serves the gateway until ctx is canceled.
func (g *Gateway) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", g.endpoint)
	if err != nil {
		return fmt.Errorf("failed to listen on %q: %w", g.endpoint, err)
	}
	g.log.Infow("exposing telemetry gateway", zap.Stringer("addr", listener.Addr()))

	wg, ctx := errgroup.WithContext(ctx)
	wg.Go(func() error {
		return g.server.Serve(listener)
	})

	<-ctx.Done()
	g.log.Infow("stopping telemetry gateway", zap.Stringer("addr", listener.Addr()))
	g.server.GracefulStop()

	return wg.Wait()
}
