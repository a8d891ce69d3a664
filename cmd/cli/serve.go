package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/anstrom/ipscannr/internal/api"
	"github.com/anstrom/ipscannr/internal/config"
	"github.com/anstrom/ipscannr/internal/logging"
	"github.com/anstrom/ipscannr/internal/scheduler"
)

var serveRestore bool

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP and WebSocket controller",
	Long: `Serve the scan session over a JSON HTTP API with live progress on a
WebSocket. Scans can be started, paused and resumed remotely, hosts selected
and port scanned, and cached results loaded. With a rescan schedule the
default range is scanned again on every tick while the session is idle.`,
	Example: `  ipscannr serve
  ipscannr serve --listen 0.0.0.0 --port 9000
  ipscannr serve --schedule "*/15 * * * *" --cors`,
	Args:   cobra.NoArgs,
	PreRun: func(cmd *cobra.Command, _ []string) { bindFlags(cmd.Flags(), serveFlagKeys) },
	RunE:   runServe,
}

var serveFlagKeys = map[string]string{
	"listen":   "api.listen_addr",
	"port":     "api.port",
	"schedule": "api.rescan_schedule",
	"cors":     "api.enable_cors",
	"metrics":  "metrics.enabled",
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("listen", "", "listen address")
	serveCmd.Flags().Int("port", 0, "listen port")
	serveCmd.Flags().String("schedule", "", "cron schedule for rescans of the default range")
	serveCmd.Flags().Bool("cors", false, "enable CORS for the configured origins")
	serveCmd.Flags().Bool("metrics", true, "expose Prometheus metrics")
	serveCmd.Flags().BoolVar(&serveRestore, "restore", true, "load cached hosts of the default range on startup")
}

// controller is the API server with the scheduler driving its session.
type controller struct {
	rt        *runtime
	server    *api.Server
	scheduler *scheduler.Scheduler
}

func newController(cfg *config.Config, logger *logging.Logger) (*controller, error) {
	rt := newRuntime(cfg, logger)

	server, err := api.New(cfg, api.Deps{
		Session:    rt.session,
		Cache:      rt.store,
		Metrics:    rt.metrics,
		Interfaces: enumerateAdapters,
		Logger:     logger,
		Version:    version,
	})
	if err != nil {
		return nil, err
	}

	c := &controller{rt: rt, server: server}
	if cfg.API.RescanSchedule != "" {
		c.scheduler = scheduler.New(rt.session,
			scheduler.WithEventSink(server.Hub().Forward),
			scheduler.WithDefaultRange(func() string { return defaultRange(cfg) }),
			scheduler.WithLogger(logger))
		if _, err := c.scheduler.AddRescan(cfg.API.RescanSchedule, cfg.Scanning.DefaultRange); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// restore loads the cached hosts of the default range into the session.
func (c *controller) restore() {
	r := defaultRange(c.rt.cfg)
	if r == "" || c.rt.store == nil {
		return
	}
	n, err := c.rt.session.LoadCached(r)
	if err != nil {
		c.rt.logger.Warn("Failed to restore cached hosts", "range", r, "error", err)
		return
	}
	if n > 0 {
		c.rt.logger.Info("Restored cached hosts", "range", r, "hosts", n)
	}
}

func (c *controller) run(ctx context.Context) error {
	if c.scheduler != nil {
		if err := c.scheduler.Start(); err != nil {
			return err
		}
		defer c.scheduler.Stop()
	}
	return c.server.Start(ctx)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !cfg.API.Enabled {
		return fmt.Errorf("the API is disabled in the configuration")
	}

	logger := logging.Default()
	c, err := newController(cfg, logger)
	if err != nil {
		return err
	}
	if serveRestore {
		c.restore()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(cmd.ErrOrStderr(), "ipscannr %s listening on http://%s\n", version, c.server.GetAddress())
	return c.run(ctx)
}
