package mac

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"time"

	"github.com/mdlayher/arp"

	"github.com/anstrom/ipscannr/internal/models"
)

const defaultARPTimeout = 500 * time.Millisecond

// ARPResolver sends an ARP request on the interface whose subnet contains the
// target. It needs CAP_NET_RAW; without it every lookup misses.
type ARPResolver struct {
	timeout  time.Duration
	ifaceFor func(ip netip.Addr) (*net.Interface, error)
}

// NewARPResolver returns a resolver waiting at most timeout for a reply.
// Zero means 500ms.
func NewARPResolver(timeout time.Duration) *ARPResolver {
	if timeout <= 0 {
		timeout = defaultARPTimeout
	}
	return &ARPResolver{timeout: timeout, ifaceFor: interfaceFor}
}

// Lookup implements Lookuper.
func (r *ARPResolver) Lookup(ctx context.Context, ip netip.Addr) (models.MACInfo, bool) {
	if !ip.Is4() {
		return models.MACInfo{}, false
	}
	iface, err := r.ifaceFor(ip)
	if err != nil {
		return models.MACInfo{}, false
	}

	c, err := arp.Dial(iface)
	if err != nil {
		return models.MACInfo{}, false
	}
	defer func() { _ = c.Close() }()

	deadline := time.Now().Add(r.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.SetDeadline(deadline); err != nil {
		return models.MACInfo{}, false
	}

	hw, err := c.Resolve(ip)
	if err != nil {
		return models.MACInfo{}, false
	}
	return NewInfo(hw.String())
}

// interfaceFor finds the up, non-loopback interface with an IPv4 network
// containing ip.
func interfaceFor(ip netip.Addr) (*net.Interface, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	for i := range ifaces {
		iface := &ifaces[i]
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 || len(iface.HardwareAddr) == 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			ipnet, ok := a.(*net.IPNet)
			if !ok || ipnet.IP.To4() == nil {
				continue
			}
			if ipnet.Contains(ip.AsSlice()) {
				return iface, nil
			}
		}
	}
	return nil, fmt.Errorf("no interface on the network of %s", ip)
}
