package scanning

import (
	"context"
	"net"
	"net/netip"
	"sort"
	"strconv"

	"golang.org/x/sync/semaphore"

	"github.com/anstrom/ipscannr/internal/logging"
	"github.com/anstrom/ipscannr/internal/metrics"
	"github.com/anstrom/ipscannr/internal/workers"
)

// Dialer opens TCP connections. *net.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithDialer replaces the TCP dialer.
func WithDialer(d Dialer) Option {
	return func(s *Scanner) {
		if d != nil {
			s.dialer = d
		}
	}
}

// WithLogger sets the scanner logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Scanner) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(r metrics.Recorder) Option {
	return func(s *Scanner) {
		s.metrics = metrics.OrNop(r)
	}
}

// Scanner probes TCP ports with connect attempts.
type Scanner struct {
	config  Config
	sem     *semaphore.Weighted
	dialer  Dialer
	logger  *logging.Logger
	metrics metrics.Recorder
}

// NewScanner creates a port scanner.
func NewScanner(config Config, opts ...Option) *Scanner {
	if config.Timeout <= 0 {
		config.Timeout = defaultTimeout
	}
	if config.Concurrency < 1 {
		config.Concurrency = 1
	}
	s := &Scanner{
		config:  config,
		sem:     semaphore.NewWeighted(int64(config.Concurrency)),
		dialer:  &net.Dialer{},
		logger:  logging.Default(),
		metrics: metrics.Nop{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithComponent("scanning")
	return s
}

// Config returns the scanner configuration.
func (s *Scanner) Config() Config {
	return s.config
}

// ScanPort makes one connect attempt to ip:port. Only an established
// connection counts as open.
func (s *Scanner) ScanPort(ctx context.Context, ip netip.Addr, port uint16) PortResult {
	result := PortResult{Port: port, Service: ServiceName(port)}

	if err := s.sem.Acquire(ctx, 1); err != nil {
		return result
	}
	defer s.sem.Release(1)

	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	conn, err := s.dialer.DialContext(ctx, "tcp4", net.JoinHostPort(ip.String(), strconv.Itoa(int(port))))
	if err != nil {
		return result
	}
	_ = conn.Close()
	result.Open = true
	return result
}

// ScanPorts probes every port on ip and returns the results sorted by port.
func (s *Scanner) ScanPorts(ctx context.Context, ip netip.Addr, ports []uint16) []PortResult {
	pool := workers.New(workers.Config{Size: s.config.Concurrency},
		func(ctx context.Context, port uint16) PortResult {
			return s.ScanPort(ctx, ip, port)
		}).WithLogger(s.logger)

	results := pool.Collect(ctx, ports)
	sort.Slice(results, func(i, j int) bool { return results[i].Port < results[j].Port })

	open := len(OpenPorts(results))
	s.metrics.AddPorts("open", open)
	s.metrics.AddPorts("closed", len(results)-open)
	s.logger.InfoScan("Port scan finished", ip.String(),
		"ports", len(ports),
		"open", open)
	return results
}
