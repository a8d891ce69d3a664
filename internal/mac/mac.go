// Package mac finds hardware addresses for IPv4 hosts on local networks and
// names their vendors. Lookups are best effort: a host that cannot be resolved
// simply has no MAC information.
package mac

import (
	"context"
	"net"
	"net/netip"
	"strings"

	"github.com/anstrom/ipscannr/internal/models"
)

// Lookuper resolves the hardware address of ip.
type Lookuper interface {
	Lookup(ctx context.Context, ip netip.Addr) (models.MACInfo, bool)
}

// Normalize returns hw as upper case colon separated octets, accepting the
// dash and dot forms net.ParseMAC understands.
func Normalize(hw string) (string, bool) {
	parsed, err := net.ParseMAC(strings.TrimSpace(hw))
	if err != nil || len(parsed) != 6 {
		return "", false
	}
	return strings.ToUpper(parsed.String()), true
}

// Vendor returns the vendor registered for the address prefix of hw.
func Vendor(hw string) (string, bool) {
	norm, ok := Normalize(hw)
	if !ok {
		return "", false
	}
	v, ok := ouiVendors[norm[:8]]
	return v, ok
}

// NewInfo builds MAC information for hw, including the vendor when known.
func NewInfo(hw string) (models.MACInfo, bool) {
	norm, ok := Normalize(hw)
	if !ok || isZero(norm) {
		return models.MACInfo{}, false
	}
	info := models.MACInfo{Address: norm}
	if v, ok := ouiVendors[norm[:8]]; ok {
		info.Vendor = &v
	}
	return info, true
}

func isZero(norm string) bool {
	return norm == "00:00:00:00:00:00"
}

// Chain tries each lookuper in turn and returns the first answer.
type Chain []Lookuper

// Lookup implements Lookuper.
func (c Chain) Lookup(ctx context.Context, ip netip.Addr) (models.MACInfo, bool) {
	for _, l := range c {
		if ctx.Err() != nil {
			return models.MACInfo{}, false
		}
		if info, ok := l.Lookup(ctx, ip); ok {
			return info, true
		}
	}
	return models.MACInfo{}, false
}

// Default returns the neighbor table reader followed by active ARP requests.
func Default() Chain {
	return Chain{NewProcTable(), NewARPResolver(0)}
}
