package resolver

import (
	"context"
	"fmt"
	"net"
	"slices"
	"strings"
	"time"

	"github.com/miekg/dns"
)

const resolvConfPath = "/etc/resolv.conf"

// Lookuper performs reverse lookups. *net.Resolver satisfies it.
type Lookuper interface {
	LookupAddr(ctx context.Context, addr string) ([]string, error)
}

// PTRLookuper queries PTR records from a DNS server directly.
type PTRLookuper struct {
	client *dns.Client
	server string
}

// NewPTRLookuper creates a lookuper for server ("host:port" or "host"). An
// empty server means the first nameserver in /etc/resolv.conf.
func NewPTRLookuper(server string, timeout time.Duration) (*PTRLookuper, error) {
	if server == "" {
		cfg, err := dns.ClientConfigFromFile(resolvConfPath)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", resolvConfPath, err)
		}
		if len(cfg.Servers) == 0 {
			return nil, fmt.Errorf("no nameservers in %s", resolvConfPath)
		}
		server = net.JoinHostPort(cfg.Servers[0], cfg.Port)
	} else if _, _, err := net.SplitHostPort(server); err != nil {
		server = net.JoinHostPort(server, "53")
	}

	return &PTRLookuper{
		client: &dns.Client{Net: "udp", Timeout: timeout},
		server: server,
	}, nil
}

// Server returns the nameserver address queried.
func (p *PTRLookuper) Server() string {
	return p.server
}

// LookupAddr returns the PTR names for addr.
func (p *PTRLookuper) LookupAddr(ctx context.Context, addr string) ([]string, error) {
	arpa, err := dns.ReverseAddr(addr)
	if err != nil {
		return nil, err
	}

	m := new(dns.Msg)
	m.SetQuestion(arpa, dns.TypePTR)
	m.RecursionDesired = true

	in, _, err := p.client.ExchangeContext(ctx, m, p.server)
	if err != nil {
		return nil, err
	}
	if in.Rcode != dns.RcodeSuccess {
		return nil, fmt.Errorf("ptr %s: %s", addr, dns.RcodeToString[in.Rcode])
	}

	var names []string
	for _, rr := range in.Answer {
		if ptr, ok := rr.(*dns.PTR); ok {
			names = append(names, ptr.Ptr)
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("ptr %s: no records", addr)
	}
	return names, nil
}

// Chain asks each lookuper in turn and returns the first usable names. It
// fails with the last error when none answers.
type Chain []Lookuper

// LookupAddr implements Lookuper.
func (c Chain) LookupAddr(ctx context.Context, addr string) ([]string, error) {
	err := fmt.Errorf("no lookuper answered for %s", addr)
	for _, l := range c {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		names, lerr := l.LookupAddr(ctx, addr)
		if lerr != nil {
			err = lerr
			continue
		}
		if slices.ContainsFunc(names, func(n string) bool { return cleanName(n) != "" }) {
			return names, nil
		}
	}
	return nil, err
}

func cleanName(name string) string {
	return strings.TrimSuffix(strings.TrimSpace(name), ".")
}
