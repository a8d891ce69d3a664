package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"os"
	"sync/atomic"
	"time"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"

	scanerrors "github.com/anstrom/ipscannr/internal/errors"
)

const (
	protocolICMP = 1
	maxPacket    = 1500
)

var echoPayload = []byte("ipscannr-probe-0123456789abcdefghijklmnopqrstuvwxyz01")

// icmpNetworks are tried in order: raw sockets need privileges, datagram
// sockets need net.ipv4.ping_group_range to include the caller.
var icmpNetworks = []string{"ip4:icmp", "udp4"}

// ICMPEchoer sends ICMP echo requests, one socket per echo.
type ICMPEchoer struct {
	network string
	id      int
	seq     atomic.Uint32
}

// NewICMPEchoer returns an echoer for the first ICMP socket type the process
// may open, or an error when none can be opened.
func NewICMPEchoer() (*ICMPEchoer, error) {
	var lastErr error
	for _, network := range icmpNetworks {
		conn, err := icmp.ListenPacket(network, "0.0.0.0")
		if err != nil {
			lastErr = err
			continue
		}
		_ = conn.Close()
		return &ICMPEchoer{network: network, id: os.Getpid() & 0xffff}, nil
	}
	return nil, socketError(lastErr)
}

// socketError marks a refused ICMP socket as a permission problem.
func socketError(err error) *scanerrors.ScanError {
	code := scanerrors.CodeUnknown
	if errors.Is(err, os.ErrPermission) {
		code = scanerrors.CodePermission
	}
	return scanerrors.WrapScanError(code, "open icmp socket", err)
}

// Network returns the socket type in use.
func (e *ICMPEchoer) Network() string {
	return e.network
}

// Echo sends one echo request to ip and waits for its reply until ctx ends.
func (e *ICMPEchoer) Echo(ctx context.Context, ip netip.Addr) (time.Duration, error) {
	conn, err := icmp.ListenPacket(e.network, "0.0.0.0")
	if err != nil {
		return 0, fmt.Errorf("listen %s: %w", e.network, err)
	}
	defer func() { _ = conn.Close() }()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now())
	})
	defer stop()

	seq := int(e.seq.Add(1) & 0xffff)
	msg := icmp.Message{
		Type: ipv4.ICMPTypeEcho,
		Code: 0,
		Body: &icmp.Echo{ID: e.id, Seq: seq, Data: echoPayload},
	}
	wb, err := msg.Marshal(nil)
	if err != nil {
		return 0, fmt.Errorf("marshal echo: %w", err)
	}

	var dst net.Addr = &net.IPAddr{IP: ip.AsSlice()}
	if e.network == "udp4" {
		dst = &net.UDPAddr{IP: ip.AsSlice()}
	}

	start := time.Now()
	if _, err := conn.WriteTo(wb, dst); err != nil {
		return 0, fmt.Errorf("send echo: %w", err)
	}

	rb := make([]byte, maxPacket)
	for {
		n, peer, err := conn.ReadFrom(rb)
		if err != nil {
			if ctx.Err() != nil {
				return 0, ctx.Err()
			}
			return 0, err
		}
		if !e.isReply(rb[:n], peer, ip, seq) {
			continue
		}
		return time.Since(start), nil
	}
}

func (e *ICMPEchoer) isReply(b []byte, peer net.Addr, ip netip.Addr, seq int) bool {
	if peerAddr(peer) != ip {
		return false
	}
	rm, err := icmp.ParseMessage(protocolICMP, b)
	if err != nil || rm.Type != ipv4.ICMPTypeEchoReply {
		return false
	}
	echo, ok := rm.Body.(*icmp.Echo)
	if !ok || echo.Seq != seq {
		return false
	}
	// The kernel rewrites the identifier of datagram ICMP sockets.
	return e.network == "udp4" || echo.ID == e.id
}

func peerAddr(a net.Addr) netip.Addr {
	var ip net.IP
	switch v := a.(type) {
	case *net.IPAddr:
		ip = v.IP
	case *net.UDPAddr:
		ip = v.IP
	default:
		return netip.Addr{}
	}
	addr, ok := netip.AddrFromSlice(ip)
	if !ok {
		return netip.Addr{}
	}
	return addr.Unmap()
}
