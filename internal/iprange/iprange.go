// Package iprange parses IPv4 range expressions into ordered address lists.
//
// Accepted forms, checked in this order:
//
//	10.0.0.1,10.0.0.5,10.0.1.0/30   comma list of any of the forms below
//	192.168.1.0/24                  CIDR, every address of the prefix
//	192.168.1.10-20                 range with a bare final octet
//	192.168.1.10-192.168.2.5        range between two full addresses
//	192.168.1.7                     single address
//
// Comma lists keep their literal order and are not deduplicated.
package iprange

import (
	"encoding/binary"
	"fmt"
	"net/netip"
	"strconv"
	"strings"

	"github.com/anstrom/ipscannr/internal/errors"
)

const ipv4Bits = 32

// span is an inclusive run of addresses.
type span struct {
	lo, hi uint32
}

func (s span) size() uint64 {
	return uint64(s.hi) - uint64(s.lo) + 1
}

// Parse expands input into its address list. Every address of a CIDR or
// dash range is returned; callers that need a bound check Size first.
func Parse(input string) ([]netip.Addr, error) {
	spans, err := parse(input)
	if err != nil {
		return nil, err
	}
	var total uint64
	for _, sp := range spans {
		total += sp.size()
	}
	out := make([]netip.Addr, 0, total)
	for _, sp := range spans {
		for v := uint64(sp.lo); v <= uint64(sp.hi); v++ {
			out = append(out, fromUint32(uint32(v)))
		}
	}
	return out, nil
}

// Size returns how many addresses input expands to without enumerating them.
func Size(input string) (uint64, error) {
	spans, err := parse(input)
	if err != nil {
		return 0, err
	}
	var total uint64
	for _, sp := range spans {
		total += sp.size()
	}
	return total, nil
}

// Count returns how many addresses input expands to.
func Count(input string) (int, error) {
	n, err := Size(input)
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func parse(input string) ([]span, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, errors.ErrInvalidRange(input, "empty range")
	}
	if !strings.Contains(input, ",") {
		sp, err := parseToken(input)
		if err != nil {
			return nil, err
		}
		return []span{sp}, nil
	}

	var out []span
	for _, token := range strings.Split(input, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		sp, err := parseToken(token)
		if err != nil {
			return nil, err
		}
		out = append(out, sp)
	}
	if len(out) == 0 {
		return nil, errors.ErrInvalidRange(input, "range list contains no addresses")
	}
	return out, nil
}

func parseToken(token string) (span, error) {
	switch {
	case strings.Contains(token, "/"):
		return parseCIDR(token)
	case strings.Contains(token, "-"):
		return parseDashRange(token)
	default:
		addr, err := parseIPv4(token)
		if err != nil {
			return span{}, err
		}
		v := toUint32(addr)
		return span{lo: v, hi: v}, nil
	}
}

func parseCIDR(token string) (span, error) {
	prefix, err := netip.ParsePrefix(token)
	if err != nil {
		return span{}, errors.WrapInvalidRange(token, "invalid CIDR", err)
	}
	if !prefix.Addr().Is4() {
		return span{}, errors.ErrInvalidRange(token, "only IPv4 networks are supported")
	}
	prefix = prefix.Masked()

	lo := toUint32(prefix.Addr())
	hostBits := ipv4Bits - prefix.Bits()
	hi := lo | uint32((uint64(1)<<hostBits)-1)
	return span{lo: lo, hi: hi}, nil
}

func parseDashRange(token string) (span, error) {
	parts := strings.Split(token, "-")
	if len(parts) != 2 {
		return span{}, errors.ErrInvalidRange(token, "range must have exactly one '-'")
	}
	left := strings.TrimSpace(parts[0])
	right := strings.TrimSpace(parts[1])

	start, err := parseIPv4(left)
	if err != nil {
		return span{}, err
	}

	var end netip.Addr
	if strings.Contains(right, ".") {
		end, err = parseIPv4(right)
		if err != nil {
			return span{}, err
		}
	} else {
		octet, perr := strconv.ParseUint(right, 10, 8)
		if perr != nil {
			return span{}, errors.WrapInvalidRange(token, "invalid final octet", perr)
		}
		b := start.As4()
		b[3] = byte(octet)
		end = netip.AddrFrom4(b)
	}

	lo, hi := toUint32(start), toUint32(end)
	if lo > hi {
		return span{}, errors.ErrInvalidRange(token, fmt.Sprintf("start %s is greater than end %s", start, end))
	}
	return span{lo: lo, hi: hi}, nil
}

func parseIPv4(s string) (netip.Addr, error) {
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}, errors.WrapInvalidRange(s, "invalid IP address", err)
	}
	if !addr.Is4() {
		return netip.Addr{}, errors.ErrInvalidRange(s, "only IPv4 addresses are supported")
	}
	return addr, nil
}

func toUint32(a netip.Addr) uint32 {
	b := a.As4()
	return binary.BigEndian.Uint32(b[:])
}

func fromUint32(v uint32) netip.Addr {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return netip.AddrFrom4(b)
}
