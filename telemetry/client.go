package telemetry

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client is a thin wrapper over a Telemetry gRPC connection. It invokes the
// Snapshot RPC by full method name since there is no generated client stub
// to call through.
type Client struct {
	conn *grpc.ClientConn
}

// Dial opens a Client against a bifrostd instance's telemetry address.
func Dial(target string) (*Client, error) {
	conn, err := grpc.NewClient(target, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn}, nil
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Snapshot pulls the current ring snapshots from the connected instance.
func (c *Client) Snapshot(ctx context.Context) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	err := c.conn.Invoke(ctx, "/"+serviceName+"/Snapshot", new(emptypb.Empty), out)
	if err != nil {
		return nil, err
	}
	return out, nil
}
