package discovery

import (
	"context"
	"net/netip"

	"github.com/anstrom/ipscannr/internal/models"
	"github.com/anstrom/ipscannr/internal/workers"
)

// Scan probes every address and streams results in completion order. The
// channel is closed once every address has been probed or ctx is canceled.
// The worker count equals the engine concurrency.
func (e *Engine) Scan(ctx context.Context, addrs []netip.Addr) <-chan models.ProbeResult {
	pool := workers.New(workers.Config{Size: e.config.Concurrency}, e.Probe).
		WithLogger(e.logger)
	return pool.Stream(ctx, addrs)
}

// Scan builds an engine from config and probes addrs with it.
func Scan(ctx context.Context, addrs []netip.Addr, config Config, opts ...Option) <-chan models.ProbeResult {
	return NewEngine(config, opts...).Scan(ctx, addrs)
}
