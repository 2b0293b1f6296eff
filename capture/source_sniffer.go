package capture

import (
	"context"
	"encoding/binary"
	"time"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"

	"github.com/bifrost-project/bifrost/status"
)

// SnifferSource reads raw Ethernet frames off an AF_PACKET socket bound to
// one interface, for capturing instrument traffic that UDP delivery can't
// keep up with (no kernel socket buffer copy, no IP defragmentation).
type SnifferSource struct {
	fd      int
	ifindex int
}

// NewSnifferSource opens an AF_PACKET/SOCK_RAW socket bound to ifaceName.
func NewSnifferSource(ifaceName string) (*SnifferSource, error) {
	const op = "capture.NewSnifferSource"

	link, err := netlink.LinkByName(ifaceName)
	if err != nil {
		return nil, status.New(op, status.InvalidArgument, err)
	}

	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_RAW, int(htons(unix.ETH_P_ALL)))
	if err != nil {
		return nil, status.New(op, status.Internal, err)
	}

	addr := unix.SockaddrLinklayer{
		Protocol: htons(unix.ETH_P_ALL),
		Ifindex:  link.Attrs().Index,
	}
	if err := unix.Bind(fd, &addr); err != nil {
		unix.Close(fd)
		return nil, status.New(op, status.Internal, err)
	}

	return &SnifferSource{fd: fd, ifindex: link.Attrs().Index}, nil
}

func htons(v uint16) uint16 {
	buf := make([]byte, 2)
	binary.BigEndian.PutUint16(buf, v)
	return binary.NativeEndian.Uint16(buf)
}

func (s *SnifferSource) Recv(ctx context.Context, buf []byte) (int, error) {
	const op = "capture.SnifferSource.Recv"

	tv := unix.NsecToTimeval(0)
	if deadline, ok := ctx.Deadline(); ok {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return 0, status.New(op, status.NoData, context.DeadlineExceeded)
		}
		tv = unix.NsecToTimeval(remaining.Nanoseconds())
	}
	if err := unix.SetsockoptTimeval(s.fd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv); err != nil {
		return 0, status.New(op, status.Internal, err)
	}

	n, _, err := unix.Recvfrom(s.fd, buf, 0)
	if err != nil {
		if ctx.Err() != nil {
			return 0, status.New(op, status.Interrupted, ctx.Err())
		}
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return 0, status.New(op, status.NoData, err)
		}
		return 0, status.New(op, status.Internal, err)
	}
	return n, nil
}

func (s *SnifferSource) Close() error {
	return unix.Close(s.fd)
}

// ParseEthernetIPv4UDP is a convenience helper for decoders built on this
// source: it strips the Ethernet/IP/UDP headers with gopacket and returns
// the UDP payload, so a format decoder can stay transport-agnostic between
// UDPSource and SnifferSource.
func ParseEthernetIPv4UDP(frame []byte) ([]byte, bool) {
	pkt := gopacket.NewPacket(frame, layers.LayerTypeEthernet, gopacket.NoCopy)
	udpLayer := pkt.Layer(layers.LayerTypeUDP)
	if udpLayer == nil {
		return nil, false
	}
	udp, ok := udpLayer.(*layers.UDP)
	if !ok {
		return nil, false
	}
	return udp.Payload, true
}
