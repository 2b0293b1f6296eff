package capture

import (
	"context"
	"errors"
	"net"
	"os"

	"github.com/bifrost-project/bifrost/status"
)

// UDPSource reads packets from a bound UDP socket.
type UDPSource struct {
	conn *net.UDPConn
}

// NewUDPSource binds a UDP socket at addr (e.g. "127.0.0.1:10000").
func NewUDPSource(addr string) (*UDPSource, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, status.New("capture.NewUDPSource", status.InvalidArgument, err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, status.New("capture.NewUDPSource", status.Internal, err)
	}
	return &UDPSource{conn: conn}, nil
}

func (s *UDPSource) Recv(ctx context.Context, buf []byte) (int, error) {
	const op = "capture.UDPSource.Recv"

	deadline, ok := ctx.Deadline()
	if ok {
		_ = s.conn.SetReadDeadline(deadline)
	} else {
		_ = s.conn.SetReadDeadline(zeroTime)
	}

	n, err := s.conn.Read(buf)
	if err != nil {
		if ctx.Err() != nil {
			return 0, status.New(op, status.Interrupted, ctx.Err())
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return 0, status.New(op, status.NoData, err)
		}
		if errors.Is(err, os.ErrClosed) {
			return 0, status.New(op, status.EndOfData, err)
		}
		return 0, status.New(op, status.Internal, err)
	}
	return n, nil
}

func (s *UDPSource) Close() error {
	return s.conn.Close()
}
