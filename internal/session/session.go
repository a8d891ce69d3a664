// Package session drives one interactive discovery run at a time: it parses
// the range, streams probe results into host records, enriches alive hosts
// with hostname and MAC data, and implements pause, resume and completion.
package session

import (
	"context"
	"fmt"
	"net/netip"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/anstrom/ipscannr/internal/errors"
	"github.com/anstrom/ipscannr/internal/iprange"
	"github.com/anstrom/ipscannr/internal/logging"
	"github.com/anstrom/ipscannr/internal/metrics"
	"github.com/anstrom/ipscannr/internal/models"
	"github.com/anstrom/ipscannr/internal/scanning"
)

//go:generate mockgen -destination=mocks/mocks.go -package=mocks github.com/anstrom/ipscannr/internal/session Scanner,PortScanner,HostnameResolver,MACLookuper,CacheStore

const (
	defaultEnrichConcurrency = 20
	defaultEventBuffer       = 64

	// DefaultMaxAddresses is the largest range a run accepts by default, a /16.
	DefaultMaxAddresses = 1 << 16
)

// State is the lifecycle state of a session.
type State int

const (
	StateIdle State = iota
	StateScanning
	StatePaused
	StateCompleted
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateScanning:
		return "scanning"
	case StatePaused:
		return "paused"
	case StateCompleted:
		return "completed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(b []byte) error {
	v, err := ParseState(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ParseState parses a state name as produced by String.
func ParseState(name string) (State, error) {
	switch name {
	case "idle":
		return StateIdle, nil
	case "scanning":
		return StateScanning, nil
	case "paused":
		return StatePaused, nil
	case "completed":
		return StateCompleted, nil
	default:
		return StateIdle, fmt.Errorf("unknown session state %q", name)
	}
}

// Scanner streams one probe result per address.
type Scanner interface {
	Scan(ctx context.Context, addrs []netip.Addr) <-chan models.ProbeResult
}

// PortScanner probes a list of ports on one host, sorted by port.
type PortScanner interface {
	ScanPorts(ctx context.Context, ip netip.Addr, ports []uint16) []scanning.PortResult
}

// HostnameResolver returns the reverse DNS name of an address.
type HostnameResolver interface {
	Resolve(ctx context.Context, ip netip.Addr) (string, bool)
}

// MACLookuper finds the hardware address of a host on the local network.
type MACLookuper interface {
	Lookup(ctx context.Context, ip netip.Addr) (models.MACInfo, bool)
}

// CacheStore persists the hosts of completed runs by range.
type CacheStore interface {
	Load(rangeKey string) []models.HostRecord
	Save(rangeKey string, hosts []models.HostRecord)
}

// Config holds the enrichment policy and the default port list.
type Config struct {
	ResolveHostnames  bool
	DetectMAC         bool
	Ports             []uint16
	EnrichConcurrency int
	EventBuffer       int
	// MaxAddresses rejects larger ranges before any address is enumerated.
	// Zero means no limit.
	MaxAddresses uint64
}

// DefaultConfig enables both enrichments and scans the common ports.
func DefaultConfig() Config {
	return Config{
		ResolveHostnames:  true,
		DetectMAC:         true,
		Ports:             scanning.CommonPorts,
		EnrichConcurrency: defaultEnrichConcurrency,
		EventBuffer:       defaultEventBuffer,
		MaxAddresses:      DefaultMaxAddresses,
	}
}

// Option configures a Session.
type Option func(*Session)

// WithPortScanner enables port scans.
func WithPortScanner(p PortScanner) Option {
	return func(s *Session) { s.ports = p }
}

// WithResolver sets the hostname resolver.
func WithResolver(r HostnameResolver) Option {
	return func(s *Session) { s.resolver = r }
}

// WithMACLookuper sets the MAC lookup.
func WithMACLookuper(m MACLookuper) Option {
	return func(s *Session) { s.mac = m }
}

// WithCache attaches a result cache.
func WithCache(c CacheStore) Option {
	return func(s *Session) { s.cache = c }
}

// WithLogger sets the session logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(r metrics.Recorder) Option {
	return func(s *Session) { s.metrics = metrics.OrNop(r) }
}

// Session owns the host list of the current run. All methods are safe for
// concurrent use.
type Session struct {
	scanner  Scanner
	ports    PortScanner
	resolver HostnameResolver
	mac      MACLookuper
	cache    CacheStore
	config   Config
	logger   *logging.Logger
	metrics  metrics.Recorder

	mu        sync.Mutex
	state     State
	runID     string
	rangeKey  string
	addrs     []netip.Addr
	hosts     []models.HostRecord
	index     map[netip.Addr]int
	total     int
	completed int
	selected  *netip.Addr
	cancel    chan struct{}
}

// New creates an idle session probing with scanner.
func New(scanner Scanner, config Config, opts ...Option) *Session {
	if config.EnrichConcurrency < 1 {
		config.EnrichConcurrency = defaultEnrichConcurrency
	}
	if config.EventBuffer < 0 {
		config.EventBuffer = 0
	}
	if len(config.Ports) == 0 {
		config.Ports = scanning.CommonPorts
	}
	s := &Session{
		scanner: scanner,
		config:  config,
		logger:  logging.Default(),
		metrics: metrics.Nop{},
		index:   make(map[netip.Addr]int),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithComponent("session")
	return s
}

// Start parses rangeSpec and begins a new run over it. A range that does not
// parse, or that exceeds Config.MaxAddresses, is returned as a TARGET_INVALID
// error and nothing changes. Starting while another run is active supersedes
// that run.
//
// The returned channel carries the events of this run and is closed when the
// run ends. Callers must drain it; the run lives until ctx is canceled, the
// session is paused or every address has been probed.
func (s *Session) Start(ctx context.Context, rangeSpec string) (<-chan Event, error) {
	if limit := s.config.MaxAddresses; limit > 0 {
		n, err := iprange.Size(rangeSpec)
		if err != nil {
			return nil, err
		}
		if n > limit {
			return nil, errors.ErrRangeTooLarge(rangeSpec, n, limit)
		}
	}
	addrs, err := iprange.Parse(rangeSpec)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.signalCancelLocked()
	s.rangeKey = rangeSpec
	s.addrs = addrs
	s.selected = nil
	return s.launchLocked(ctx), nil
}

// Pause stops the running scan. Probes already in flight finish on their own
// timeout and their results are discarded.
func (s *Session) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateScanning {
		return errors.ErrInvalidState("pause", s.state.String())
	}
	s.signalCancelLocked()
	s.transitionLocked(StatePaused)
	s.metrics.SetActiveScans(0)
	s.logger.Info("Scan paused", "run_id", s.runID, "completed", s.completed, "total", s.total)
	return nil
}

// Resume restarts a paused scan over the full original address list with a
// cleared host list and completed reset to zero.
func (s *Session) Resume(ctx context.Context) (<-chan Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StatePaused {
		return nil, errors.ErrInvalidState("resume", s.state.String())
	}
	return s.launchLocked(ctx), nil
}

func (s *Session) signalCancelLocked() {
	if s.cancel == nil {
		return
	}
	select {
	case s.cancel <- struct{}{}:
	default:
	}
}

func (s *Session) launchLocked(ctx context.Context) <-chan Event {
	s.hosts = nil
	s.index = make(map[netip.Addr]int, len(s.addrs))
	s.total = len(s.addrs)
	s.completed = 0
	s.transitionLocked(StateScanning)

	runID := uuid.NewString()
	s.runID = runID
	cancel := make(chan struct{}, 1)
	s.cancel = cancel
	events := make(chan Event, s.config.EventBuffer)

	s.metrics.SetActiveScans(1)
	s.logger.WithRunID(runID).InfoScan("Scan started", s.rangeKey, "addresses", s.total)

	go s.run(ctx, runID, s.rangeKey, s.addrs, cancel, events)
	return events
}

func (s *Session) transitionLocked(to State) {
	if s.state == to {
		return
	}
	s.metrics.SessionTransition(s.state.String(), to.String())
	s.state = to
}

func (s *Session) run(parent context.Context, runID, rangeKey string, addrs []netip.Addr, cancel <-chan struct{}, events chan<- Event) {
	defer close(events)

	ctx, stop := context.WithCancel(parent)
	defer stop()

	results := s.scanner.Scan(ctx, addrs)

	var g errgroup.Group
	g.SetLimit(s.config.EnrichConcurrency)

loop:
	for {
		select {
		case <-cancel:
			stop()
			break loop
		case <-ctx.Done():
			break loop
		case r, ok := <-results:
			if !ok {
				break loop
			}
			host := models.NewHostRecord(r)
			if !host.Alive || !s.enrichmentEnabled() {
				s.record(ctx, runID, host, events)
				continue
			}
			g.Go(func() error {
				s.enrich(ctx, &host)
				s.record(ctx, runID, host, events)
				return nil
			})
		}
	}
	_ = g.Wait()

	s.finish(ctx, parent, runID, rangeKey, events)
}

func (s *Session) enrichmentEnabled() bool {
	return (s.config.ResolveHostnames && s.resolver != nil) || (s.config.DetectMAC && s.mac != nil)
}

// enrich fills in the hostname and MAC of an alive host. Failures leave the
// fields empty.
func (s *Session) enrich(ctx context.Context, host *models.HostRecord) {
	if s.config.ResolveHostnames && s.resolver != nil {
		if name, ok := s.resolver.Resolve(ctx, host.IP); ok && name != "" {
			host.Hostname = &name
		}
	}
	if s.config.DetectMAC && s.mac != nil {
		if info, ok := s.mac.Lookup(ctx, host.IP); ok {
			host.MAC = &info
		}
	}
}

// record stores a discovered host if runID is still the active scanning run.
func (s *Session) record(ctx context.Context, runID string, host models.HostRecord, events chan<- Event) {
	s.mu.Lock()
	if s.runID != runID || s.state != StateScanning {
		s.mu.Unlock()
		return
	}
	if i, ok := s.index[host.IP]; ok {
		s.hosts[i] = host
	} else {
		s.index[host.IP] = len(s.hosts)
		s.hosts = append(s.hosts, host)
	}
	s.completed++
	ev := Event{
		Type:      EventHostDiscovered,
		RunID:     runID,
		Host:      host.Clone(),
		Completed: s.completed,
		Total:     s.total,
		State:     s.state,
	}
	s.mu.Unlock()

	if host.Alive {
		s.logger.DebugProbe("Host discovered", host.IP.String(), "run_id", runID, "method", host.Method.String())
	}
	send(ctx, events, ev)
}

// finish sorts the host list and, unless the run was paused, completes it.
// A run cut short by its parent context is left paused so it can be resumed.
func (s *Session) finish(ctx, parent context.Context, runID, rangeKey string, events chan<- Event) {
	s.mu.Lock()
	if s.runID != runID {
		s.mu.Unlock()
		return
	}
	models.SortByIP(s.hosts)
	s.reindexLocked()
	s.cancel = nil

	var toSave []models.HostRecord
	completed := false
	if s.state == StateScanning {
		if parent.Err() != nil {
			s.transitionLocked(StatePaused)
		} else {
			s.transitionLocked(StateCompleted)
			completed = true
			toSave = cloneHosts(s.hosts)
		}
		s.metrics.SetActiveScans(0)
	}
	ev := Event{
		Type:      EventScanComplete,
		RunID:     runID,
		Completed: s.completed,
		Total:     s.total,
		State:     s.state,
	}
	alive := models.CountAlive(s.hosts)
	s.mu.Unlock()

	if !completed {
		return
	}
	s.logger.WithRunID(runID).InfoScan("Scan completed", rangeKey,
		"hosts", ev.Total, "alive", alive)
	if s.cache != nil {
		s.cache.Save(rangeKey, toSave)
	}
	send(ctx, events, ev)
}

func send(ctx context.Context, events chan<- Event, ev Event) {
	select {
	case events <- ev:
	case <-ctx.Done():
	}
}

func (s *Session) reindexLocked() {
	s.index = make(map[netip.Addr]int, len(s.hosts))
	for i := range s.hosts {
		s.index[s.hosts[i].IP] = i
	}
}

func cloneHosts(hosts []models.HostRecord) []models.HostRecord {
	out := make([]models.HostRecord, len(hosts))
	for i := range hosts {
		out[i] = hosts[i].Clone()
	}
	return out
}

// ScanPortsForSelected scans the configured ports of ip, or of the selected
// host when ip is the zero Addr, and merges the open ports into its record.
// Hosts that are not alive are skipped and yield no results.
func (s *Session) ScanPortsForSelected(ctx context.Context, ip netip.Addr) ([]scanning.PortResult, error) {
	return s.ScanHostPorts(ctx, ip, s.config.Ports)
}

// ScanHostPorts is ScanPortsForSelected with an explicit port list.
func (s *Session) ScanHostPorts(ctx context.Context, ip netip.Addr, ports []uint16) ([]scanning.PortResult, error) {
	if s.ports == nil {
		return nil, errors.NewScanError(errors.CodeConfiguration, "port scanning is not configured")
	}
	if len(ports) == 0 {
		ports = s.config.Ports
	}

	s.mu.Lock()
	if !ip.IsValid() {
		if s.selected == nil {
			s.mu.Unlock()
			return nil, errors.ErrHostNotFound("selection")
		}
		ip = *s.selected
	}
	i, ok := s.index[ip]
	if !ok {
		s.mu.Unlock()
		return nil, errors.ErrHostNotFound(ip.String())
	}
	alive := s.hosts[i].Alive
	s.mu.Unlock()

	if !alive {
		return nil, nil
	}

	results := s.ports.ScanPorts(ctx, ip, ports)
	open := scanning.OpenPorts(results)

	s.mu.Lock()
	if i, ok := s.index[ip]; ok {
		s.hosts[i].OpenPorts = open
		s.hosts[i].PortsScanned = true
	}
	s.mu.Unlock()

	s.logger.InfoScan("Port scan merged", ip.String(), "open", len(open), "scanned", len(ports))
	return results, nil
}

// LoadCached replaces the host list with the cached hosts of rangeKey. It is
// only allowed while no run is active and returns how many hosts were loaded.
func (s *Session) LoadCached(rangeKey string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateScanning || s.state == StatePaused {
		return 0, errors.ErrInvalidState("load cached results", s.state.String())
	}
	if s.cache == nil {
		return 0, nil
	}
	hosts := s.cache.Load(rangeKey)
	if len(hosts) == 0 {
		return 0, nil
	}
	models.SortByIP(hosts)
	s.rangeKey = rangeKey
	s.hosts = hosts
	s.reindexLocked()
	s.total = len(hosts)
	s.completed = len(hosts)
	s.selected = nil
	return len(hosts), nil
}
