// Package resolver provides a memoized, concurrency-bounded reverse DNS
// resolver. Failed lookups are cached as "no hostname" so repeated misses do
// not reach the network again until the cache is cleared.
package resolver

import (
	"context"
	"net"
	"net/netip"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/anstrom/ipscannr/internal/logging"
	"github.com/anstrom/ipscannr/internal/metrics"
)

const (
	defaultConcurrency = 20
	defaultTimeout     = 2 * time.Second
)

// Config represents resolver configuration.
type Config struct {
	// Concurrency limits outstanding lookups.
	Concurrency int `yaml:"concurrency" json:"concurrency" mapstructure:"concurrency" validate:"gte=1,lte=1024"`
	// Timeout bounds a single lookup.
	Timeout time.Duration `yaml:"timeout" json:"timeout" mapstructure:"timeout" validate:"gte=0"`
	// Server is a nameserver for PTR queries. Empty uses resolv.conf.
	Server string `yaml:"server" json:"server" mapstructure:"server" validate:"omitempty,hostname_port|ip"`
}

// DefaultConfig returns the default resolver configuration.
func DefaultConfig() Config {
	return Config{
		Concurrency: defaultConcurrency,
		Timeout:     defaultTimeout,
	}
}

// Option configures a Cache.
type Option func(*Cache)

// WithLookuper replaces the lookup backend.
func WithLookuper(l Lookuper) Option {
	return func(c *Cache) {
		if l != nil {
			c.lookuper = l
		}
	}
}

// WithLogger sets the resolver logger.
func WithLogger(l *logging.Logger) Option {
	return func(c *Cache) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(r metrics.Recorder) Option {
	return func(c *Cache) {
		c.metrics = metrics.OrNop(r)
	}
}

// Cache resolves addresses to hostnames and remembers every answer.
type Cache struct {
	mu      sync.Mutex
	entries map[netip.Addr]string
	known   map[netip.Addr]bool

	sem      *semaphore.Weighted
	timeout  time.Duration
	lookuper Lookuper
	logger   *logging.Logger
	metrics  metrics.Recorder
}

// NewCache creates a resolver. Without WithLookuper it queries PTR records
// from cfg.Server when one is set. Otherwise it asks the resolv.conf
// nameserver first and the system resolver second, so /etc/hosts and other
// nsswitch sources still answer.
func NewCache(cfg Config, opts ...Option) *Cache {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	c := &Cache{
		entries: make(map[netip.Addr]string),
		known:   make(map[netip.Addr]bool),
		sem:     semaphore.NewWeighted(int64(cfg.Concurrency)),
		timeout: cfg.Timeout,
		logger:  logging.Default(),
		metrics: metrics.Nop{},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.WithComponent("resolver")

	if c.lookuper == nil {
		c.lookuper = defaultLookuper(cfg, c.logger)
	}
	return c
}

func defaultLookuper(cfg Config, logger *logging.Logger) Lookuper {
	ptr, err := NewPTRLookuper(cfg.Server, cfg.Timeout)
	switch {
	case err != nil:
		logger.Debug("Falling back to system resolver", "error", err)
		return net.DefaultResolver
	case cfg.Server != "":
		return ptr
	default:
		return Chain{ptr, net.DefaultResolver}
	}
}

func (c *Cache) cached(ip netip.Addr) (string, bool, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.known[ip] {
		return "", false, false
	}
	name := c.entries[ip]
	return name, name != "", true
}

// Resolve returns the hostname for ip, if any. Lookup failures yield
// ("", false) and are remembered. Resolve returns early without caching when
// ctx ends before the lookup completes.
func (c *Cache) Resolve(ctx context.Context, ip netip.Addr) (string, bool) {
	if name, ok, hit := c.cached(ip); hit {
		c.metrics.DNSLookup("hit")
		return name, ok
	}

	if err := c.sem.Acquire(ctx, 1); err != nil {
		return "", false
	}
	defer c.sem.Release(1)

	// Another goroutine may have resolved ip while we waited for the permit.
	if name, ok, hit := c.cached(ip); hit {
		c.metrics.DNSLookup("hit")
		return name, ok
	}

	lctx, cancel := context.WithTimeout(ctx, c.timeout)
	names, err := c.lookuper.LookupAddr(lctx, ip.String())
	cancel()

	if ctx.Err() != nil {
		return "", false
	}

	var name string
	if err != nil {
		c.metrics.DNSLookup("fail")
		c.logger.DebugProbe("Reverse lookup failed", ip.String(), "error", err)
	} else {
		c.metrics.DNSLookup("miss")
		for _, n := range names {
			if n = cleanName(n); n != "" {
				name = n
				break
			}
		}
	}

	c.mu.Lock()
	c.entries[ip] = name
	c.known[ip] = true
	c.mu.Unlock()

	return name, name != ""
}

// ResolveBatch resolves every address concurrently, bounded by the cache's
// concurrency limit. Addresses without a hostname are omitted.
func (c *Cache) ResolveBatch(ctx context.Context, ips []netip.Addr) map[netip.Addr]string {
	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		out = make(map[netip.Addr]string, len(ips))
	)
	for _, ip := range ips {
		wg.Add(1)
		go func(ip netip.Addr) {
			defer wg.Done()
			if name, ok := c.Resolve(ctx, ip); ok {
				mu.Lock()
				out[ip] = name
				mu.Unlock()
			}
		}(ip)
	}
	wg.Wait()
	return out
}

// Len returns the number of remembered answers, negative ones included.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.known)
}

// Clear forgets every remembered answer.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[netip.Addr]string)
	c.known = make(map[netip.Addr]bool)
}
