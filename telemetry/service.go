package telemetry

import (
	"context"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// serviceName is the full gRPC service name this package exposes. There is
// no .proto for it: the wire format is built entirely from the well-known
// types below, so the service descriptor can be hand-assembled instead of
// generated.
const serviceName = "bifrost.telemetry.Telemetry"

// Service implements the Telemetry gRPC service: one RPC returning every
// registered ring's current Snapshot as a google.protobuf.Struct.
type Service struct {
	sink *Sink
	log  *zap.SugaredLogger
}

// NewService wraps sink as a gRPC service.
func NewService(sink *Sink, log *zap.SugaredLogger) *Service {
	return &Service{sink: sink, log: log}
}

// Snapshot handles the Snapshot RPC: it has no input fields, so it takes
// emptypb.Empty, and returns one struct keyed by ring name since the set of
// rings a given bifrostd hosts is only known at runtime.
func (s *Service) Snapshot(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	snapshots := s.sink.Collect()
	fields := make(map[string]any, len(snapshots))
	for name, snap := range snapshots {
		fields[name] = map[string]any{
			"space":                 snap.Space.String(),
			"capacity":              float64(snap.Capacity),
			"head":                  float64(snap.Head),
			"tail":                  float64(snap.Tail),
			"guaranteed_readers":    float64(snap.GuaranteedReaders),
			"opportunistic_readers": float64(snap.OpportunisticReaders),
			"max_guaranteed_lag":    float64(snap.MaxGuaranteedLag),
		}
	}
	out, err := structpb.NewStruct(map[string]any{"rings": fields})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func snapshotHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Service).Snapshot(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/Snapshot"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(*Service).Snapshot(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

// ServiceDesc is the hand-rolled equivalent of what protoc-gen-go-grpc would
// emit for a one-method service. Registered directly with grpc.Server, it
// gives the Telemetry service real wire compatibility with any gRPC client
// without a generated *_grpc.pb.go file.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*any)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Snapshot", Handler: snapshotHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "telemetry.proto",
}

// Register adds the Telemetry service to srv.
func Register(srv *grpc.Server, svc *Service) {
	srv.RegisterService(&ServiceDesc, svc)
}
