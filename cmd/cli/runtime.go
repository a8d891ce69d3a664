package cli

import (
	"github.com/anstrom/ipscannr/internal/cache"
	"github.com/anstrom/ipscannr/internal/config"
	"github.com/anstrom/ipscannr/internal/discovery"
	"github.com/anstrom/ipscannr/internal/logging"
	"github.com/anstrom/ipscannr/internal/mac"
	"github.com/anstrom/ipscannr/internal/metrics"
	"github.com/anstrom/ipscannr/internal/netif"
	"github.com/anstrom/ipscannr/internal/resolver"
	"github.com/anstrom/ipscannr/internal/scanning"
	"github.com/anstrom/ipscannr/internal/session"
)

// Component factories. Tests replace them to keep commands off the network.
var (
	newProber = func(cfg discovery.Config, logger *logging.Logger, m metrics.Recorder) session.Scanner {
		return discovery.NewEngine(cfg, discovery.WithLogger(logger), discovery.WithMetrics(m))
	}
	newPortScanner = func(cfg scanning.Config, logger *logging.Logger, m metrics.Recorder) session.PortScanner {
		return scanning.NewScanner(cfg, scanning.WithLogger(logger), scanning.WithMetrics(m))
	}
	enumerateAdapters = netif.Enumerate
)

// runtime is one fully wired session and the collaborators commands need
// alongside it.
type runtime struct {
	cfg     *config.Config
	logger  *logging.Logger
	metrics *metrics.PrometheusMetrics
	store   *cache.Store
	ports   session.PortScanner
	session *session.Session
}

func newRuntime(cfg *config.Config, logger *logging.Logger) *runtime {
	if logger == nil {
		logger = logging.Default()
	}
	rt := &runtime{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics.NewPrometheusMetrics(),
	}
	s := cfg.Scanning
	rt.ports = newPortScanner(s.Ports.Config, logger, rt.metrics)

	opts := []session.Option{
		session.WithPortScanner(rt.ports),
		session.WithLogger(logger),
		session.WithMetrics(rt.metrics),
	}
	if s.ResolveHostnames {
		opts = append(opts, session.WithResolver(resolver.NewCache(s.DNS,
			resolver.WithLogger(logger), resolver.WithMetrics(rt.metrics))))
	}
	if s.DetectMAC {
		opts = append(opts, session.WithMACLookuper(mac.Default()))
	}
	if cfg.Cache.Enabled {
		rt.store = cache.New(cfg.Cache.Path, cache.WithLogger(logger), cache.WithMetrics(rt.metrics))
		opts = append(opts, session.WithCache(rt.store))
	}

	sc := session.DefaultConfig()
	sc.ResolveHostnames = s.ResolveHostnames
	sc.DetectMAC = s.DetectMAC
	sc.Ports = cfg.PortList()
	sc.MaxAddresses = s.MaxAddresses

	rt.session = session.New(newProber(s.Ping, logger, rt.metrics), sc, opts...)
	return rt
}

// defaultRange is the configured range, else the preferred adapter subnet.
func defaultRange(cfg *config.Config) string {
	return cfg.ResolveDefaultRange(func() string {
		list, err := enumerateAdapters()
		if err != nil || len(list) == 0 {
			return ""
		}
		return list[0].Subnet.String()
	})
}
