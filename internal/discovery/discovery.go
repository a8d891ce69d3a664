// Package discovery determines which hosts in an address list are reachable.
// Each host is probed with ICMP echo when a socket can be opened, falling back
// to TCP connects against a fixed set of common ports. Probes are bounded by a
// process-wide semaphore and fanned out over a worker pool.
package discovery

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/anstrom/ipscannr/internal/logging"
	"github.com/anstrom/ipscannr/internal/metrics"
	"github.com/anstrom/ipscannr/internal/models"
)

const (
	defaultTimeout     = time.Second
	defaultRetries     = 1
	defaultConcurrency = 100
)

// CandidatePorts are tried in order when ICMP is unavailable or unanswered.
var CandidatePorts = []uint16{80, 443, 22, 445, 139, 135, 3389, 21, 23, 25, 53}

// Config represents probe configuration.
type Config struct {
	// Timeout bounds every single ICMP echo or TCP connect.
	Timeout time.Duration `yaml:"timeout" json:"timeout" mapstructure:"timeout" validate:"gt=0"`
	// Retries is the number of extra attempts per protocol.
	Retries int `yaml:"retries" json:"retries" mapstructure:"retries" validate:"gte=0,lte=10"`
	// Concurrency limits concurrent probes.
	Concurrency int `yaml:"concurrency" json:"concurrency" mapstructure:"concurrency" validate:"gte=1,lte=4096"`
}

// DefaultConfig returns the default probe configuration.
func DefaultConfig() Config {
	return Config{
		Timeout:     defaultTimeout,
		Retries:     defaultRetries,
		Concurrency: defaultConcurrency,
	}
}

// Echoer sends one ICMP echo request and waits for the matching reply.
type Echoer interface {
	Echo(ctx context.Context, ip netip.Addr) (time.Duration, error)
}

// Dialer opens TCP connections. *net.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Option configures an Engine.
type Option func(*Engine)

// WithEchoer sets the ICMP echoer. A nil echoer disables ICMP.
func WithEchoer(e Echoer) Option {
	return func(eng *Engine) {
		eng.echoer = e
		eng.echoerSet = true
	}
}

// WithoutICMP disables ICMP probing and uses TCP only.
func WithoutICMP() Option {
	return WithEchoer(nil)
}

// WithDialer replaces the TCP dialer.
func WithDialer(d Dialer) Option {
	return func(eng *Engine) {
		if d != nil {
			eng.dialer = d
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(l *logging.Logger) Option {
	return func(eng *Engine) {
		if l != nil {
			eng.logger = l
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(r metrics.Recorder) Option {
	return func(eng *Engine) {
		eng.metrics = metrics.OrNop(r)
	}
}

// Engine probes hosts for liveness.
type Engine struct {
	config    Config
	sem       *semaphore.Weighted
	echoer    Echoer
	echoerSet bool
	dialer    Dialer
	logger    *logging.Logger
	metrics   metrics.Recorder
}

// NewEngine creates a probe engine. Unless an echoer is supplied, it tries to
// open an ICMP socket and silently falls back to TCP-only probing.
func NewEngine(config Config, opts ...Option) *Engine {
	if config.Timeout <= 0 {
		config.Timeout = defaultTimeout
	}
	if config.Retries < 0 {
		config.Retries = 0
	}
	if config.Concurrency < 1 {
		config.Concurrency = 1
	}

	e := &Engine{
		config:  config,
		sem:     semaphore.NewWeighted(int64(config.Concurrency)),
		dialer:  &net.Dialer{},
		logger:  logging.Default(),
		metrics: metrics.Nop{},
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.WithComponent("discovery")

	if !e.echoerSet {
		echoer, err := NewICMPEchoer()
		if err != nil {
			e.logger.Debug("ICMP unavailable, using TCP probes only", "error", err)
		} else {
			e.echoer = echoer
		}
	}
	return e
}

// Config returns the engine configuration.
func (e *Engine) Config() Config {
	return e.config
}

// ICMPAvailable reports whether ICMP probes are used.
func (e *Engine) ICMPAvailable() bool {
	return e.echoer != nil
}

// Probe determines whether ip is alive. An unreachable host is a normal
// Offline result, never an error.
func (e *Engine) Probe(ctx context.Context, ip netip.Addr) models.ProbeResult {
	start := time.Now()
	result := e.probe(ctx, ip)
	e.metrics.ObserveProbe(result.Method.String(), result.Status.String(), time.Since(start))
	e.logger.DebugProbe("Probe finished", ip.String(),
		"alive", result.Alive,
		"method", result.Method.String(),
		"status", result.Status.String())
	return result
}

func (e *Engine) probe(ctx context.Context, ip netip.Addr) models.ProbeResult {
	if err := e.sem.Acquire(ctx, 1); err != nil {
		return models.OfflineResult(ip, e.offlineMethod())
	}
	defer e.sem.Release(1)

	attempts := e.config.Retries + 1

	if e.echoer != nil {
		for i := 0; i < attempts && ctx.Err() == nil; i++ {
			if rtt, ok := e.echo(ctx, ip); ok {
				return alive(ip, rtt, models.MethodICMP, models.StatusOnline)
			}
		}
	}

	for pass := 0; pass < attempts; pass++ {
		for _, port := range CandidatePorts {
			if ctx.Err() != nil {
				return models.OfflineResult(ip, e.offlineMethod())
			}
			if rtt, ok := e.tcpPing(ctx, ip, port); ok {
				status := models.StatusOnline
				if e.echoer != nil {
					status = models.StatusOnlineNoICMP
				}
				return alive(ip, rtt, models.MethodTCP, status)
			}
		}
	}

	return models.OfflineResult(ip, e.offlineMethod())
}

func (e *Engine) echo(ctx context.Context, ip netip.Addr) (time.Duration, bool) {
	ctx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	rtt, err := e.echoer.Echo(ctx, ip)
	if err != nil {
		return 0, false
	}
	return rtt, true
}

// tcpPing reports whether the host's TCP stack answered on port. A refused
// connection means the host is up with the port closed.
func (e *Engine) tcpPing(ctx context.Context, ip netip.Addr, port uint16) (time.Duration, bool) {
	ctx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	start := time.Now()
	conn, err := e.dialer.DialContext(ctx, "tcp4", net.JoinHostPort(ip.String(), strconv.Itoa(int(port))))
	if err == nil {
		_ = conn.Close()
		return time.Since(start), true
	}
	if IsConnectionRefused(err) {
		return time.Since(start), true
	}
	return 0, false
}

func (e *Engine) offlineMethod() models.Method {
	if e.echoer != nil {
		return models.MethodICMP
	}
	return models.MethodTCP
}

// IsConnectionRefused reports whether err is a TCP reset answer.
func IsConnectionRefused(err error) bool {
	return errors.Is(err, syscall.ECONNREFUSED)
}

func alive(ip netip.Addr, rtt time.Duration, method models.Method, status models.Status) models.ProbeResult {
	return models.ProbeResult{
		IP:     ip,
		Alive:  true,
		RTT:    &rtt,
		Method: method,
		Status: status,
	}
}
