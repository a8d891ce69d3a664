// Package cache persists the hosts found by the last scan of each range in a
// single JSON document. Entries are keyed by the range text exactly as the
// user typed it. Reads degrade to "nothing cached" and writes are best effort;
// neither ever fails the caller.
package cache

import (
	"encoding/json"
	"fmt"
	"io"
	"net/netip"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/anstrom/ipscannr/internal/errors"
	"github.com/anstrom/ipscannr/internal/logging"
	"github.com/anstrom/ipscannr/internal/metrics"
	"github.com/anstrom/ipscannr/internal/models"
)

// DefaultFileName is used when no path is configured.
const DefaultFileName = "ipscannr_cache.json"

const filePerm = 0o644

type cachedHost struct {
	IP         string   `json:"ip"`
	IsAlive    bool     `json:"is_alive"`
	RTTMillis  *float64 `json:"rtt_ms"`
	Hostname   *string  `json:"hostname"`
	MACAddress *string  `json:"mac_address"`
	MACVendor  *string  `json:"mac_vendor"`
	OpenPorts  []uint16 `json:"open_ports"`
	Method     *string  `json:"method"`
	Status     *string  `json:"status"`
}

type entry struct {
	ScannedAt int64        `json:"scanned_at"`
	Hosts     []cachedHost `json:"hosts"`
}

type document map[string]entry

// Summary describes one cached range.
type Summary struct {
	Range     string `json:"range"`
	ScannedAt int64  `json:"scanned_at"`
	Hosts     int    `json:"hosts"`
	Alive     int    `json:"alive"`
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(r metrics.Recorder) Option {
	return func(s *Store) {
		s.metrics = metrics.OrNop(r)
	}
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Store reads and writes the cache file at a fixed path.
type Store struct {
	path    string
	now     func() time.Time
	rename  func(oldpath, newpath string) error
	logger  *logging.Logger
	metrics metrics.Recorder
}

// New creates a store for path. An empty path means DefaultFileName in the
// working directory.
func New(path string, opts ...Option) *Store {
	if path == "" {
		path = DefaultFileName
	}
	s := &Store{
		path:    path,
		now:     time.Now,
		rename:  os.Rename,
		logger:  logging.Default(),
		metrics: metrics.Nop{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithComponent("cache")
	return s
}

// Path returns the cache file path.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) read() (document, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, err
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.path, err)
	}
	return doc, nil
}

// Load returns the hosts cached for rangeKey with CachedAt set. A missing or
// unreadable file, or an unknown key, yields no hosts.
func (s *Store) Load(rangeKey string) []models.HostRecord {
	doc, err := s.read()
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.WarnCache("Ignoring unreadable cache", s.path, err)
		}
		s.metrics.CacheOperation("load", "miss")
		return nil
	}
	e, ok := doc[rangeKey]
	if !ok {
		s.metrics.CacheOperation("load", "miss")
		return nil
	}

	hosts := make([]models.HostRecord, 0, len(e.Hosts))
	for _, h := range e.Hosts {
		rec, ok := fromCached(h, e.ScannedAt)
		if ok {
			hosts = append(hosts, rec)
		}
	}
	s.metrics.CacheOperation("load", "hit")
	return hosts
}

// Summaries lists the cached ranges, most recent first.
func (s *Store) Summaries() []Summary {
	doc, err := s.read()
	if err != nil {
		return nil
	}
	out := make([]Summary, 0, len(doc))
	for key, e := range doc {
		alive := 0
		for _, h := range e.Hosts {
			if h.IsAlive {
				alive++
			}
		}
		out = append(out, Summary{Range: key, ScannedAt: e.ScannedAt, Hosts: len(e.Hosts), Alive: alive})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ScannedAt != out[j].ScannedAt {
			return out[i].ScannedAt > out[j].ScannedAt
		}
		return out[i].Range < out[j].Range
	})
	return out
}

// Save stores hosts under rangeKey, keeping every other range. Saving no
// hosts does nothing. Failures are logged and otherwise ignored.
func (s *Store) Save(rangeKey string, hosts []models.HostRecord) {
	if len(hosts) == 0 {
		return
	}
	if err := s.save(rangeKey, hosts); err != nil {
		s.logger.WarnCache("Failed to write cache", s.path, err, "range", rangeKey)
		s.metrics.CacheOperation("save", "error")
		return
	}
	s.metrics.CacheOperation("save", "ok")
}

func (s *Store) save(rangeKey string, hosts []models.HostRecord) error {
	doc, err := s.read()
	if err != nil {
		doc = make(document)
	}

	e := entry{ScannedAt: s.now().Unix(), Hosts: make([]cachedHost, 0, len(hosts))}
	for i := range hosts {
		e.Hosts = append(e.Hosts, toCached(hosts[i]))
	}
	doc[rangeKey] = e

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errors.WrapScanErrorWithTarget(errors.CodeCacheIO, "encode cache", rangeKey, err)
	}
	if err := s.writeAtomic(data); err != nil {
		return errors.WrapScanErrorWithTarget(errors.CodeCacheIO, "write cache", rangeKey, err).
			WithOperation("save")
	}
	return nil
}

// writeAtomic writes data to a temporary file next to the target and renames
// it into place, copying instead when the rename is not possible.
func (s *Store) writeAtomic(data []byte) error {
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, filePerm); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}

	if err := s.rename(tmpName, s.path); err != nil {
		s.logger.Debug("Rename failed, copying cache into place", "error", err)
		return copyFile(tmpName, s.path)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, filePerm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	if err := out.Sync(); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

func toCached(h models.HostRecord) cachedHost {
	c := cachedHost{
		IP:        h.IP.String(),
		IsAlive:   h.Alive,
		Hostname:  h.Hostname,
		OpenPorts: h.OpenPorts,
	}
	if c.OpenPorts == nil {
		c.OpenPorts = []uint16{}
	}
	if h.RTT != nil {
		ms := models.DurationMillis(*h.RTT)
		c.RTTMillis = &ms
	}
	if h.MAC != nil {
		addr := h.MAC.Address
		c.MACAddress = &addr
		c.MACVendor = h.MAC.Vendor
	}
	if m := h.Method.String(); m != "" {
		c.Method = &m
	}
	if st := h.Status.String(); st != "" {
		c.Status = &st
	}
	return c
}

func fromCached(c cachedHost, scannedAt int64) (models.HostRecord, bool) {
	ip, err := netip.ParseAddr(c.IP)
	if err != nil || !ip.Is4() {
		return models.HostRecord{}, false
	}
	at := scannedAt
	h := models.HostRecord{
		IP:           ip,
		Alive:        c.IsAlive,
		Hostname:     c.Hostname,
		OpenPorts:    c.OpenPorts,
		PortsScanned: len(c.OpenPorts) > 0,
		CachedAt:     &at,
	}
	if h.OpenPorts == nil {
		h.OpenPorts = []uint16{}
	}
	if c.RTTMillis != nil {
		rtt := models.MillisDuration(*c.RTTMillis)
		h.RTT = &rtt
	}
	if c.MACAddress != nil {
		h.MAC = &models.MACInfo{Address: *c.MACAddress, Vendor: c.MACVendor}
	}
	if c.Method != nil {
		h.Method, _ = models.ParseMethod(*c.Method)
	}
	if c.Status != nil {
		h.Status, _ = models.ParseStatus(*c.Status)
	}
	return h, true
}

// FormatAge renders the time since scannedAt as "just now", "5m ago",
// "3h ago" or "2d ago".
func FormatAge(scannedAt int64) string {
	return formatAge(time.Now().Unix(), scannedAt)
}

// FormatAge renders the age of scannedAt using the store's clock.
func (s *Store) FormatAge(scannedAt int64) string {
	return formatAge(s.now().Unix(), scannedAt)
}

func formatAge(now, scannedAt int64) string {
	age := now - scannedAt
	if age < 0 {
		age = 0
	}
	switch {
	case age < 60:
		return "just now"
	case age < 3600:
		return fmt.Sprintf("%dm ago", age/60)
	case age < 86400:
		return fmt.Sprintf("%dh ago", age/3600)
	default:
		return fmt.Sprintf("%dd ago", age/86400)
	}
}
