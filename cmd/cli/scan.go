package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/anstrom/ipscannr/internal/errors"
	"github.com/anstrom/ipscannr/internal/logging"
	"github.com/anstrom/ipscannr/internal/models"
	"github.com/anstrom/ipscannr/internal/session"
)

const portScanHosts = 4

var (
	scanJSON  bool
	scanAll   bool
	scanNoDNS bool
	scanNoMAC bool
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan [range]",
	Short: "Discover live hosts in an IPv4 range",
	Long: `Probe every address of an IPv4 range for liveness, resolve hostnames and
MAC vendors of the hosts that answer, and optionally scan their ports.

The range may be a single address, a CIDR block, a dash range or a last-octet
range. Without one, the configured default range or the subnet of the
preferred network adapter is scanned. The result is stored in the cache under
the range exactly as given.`,
	Example: `  ipscannr scan 192.168.1.0/24
  ipscannr scan 192.168.1.1-50 --ports 22,80,443
  ipscannr scan 10.0.0.1-10.0.0.20 --scan-ports --json
  ipscannr scan --all --no-dns`,
	Args:   cobra.MaximumNArgs(1),
	PreRun: func(cmd *cobra.Command, _ []string) { bindFlags(cmd.Flags(), scanFlagKeys) },
	RunE:   runScan,
}

var scanFlagKeys = map[string]string{
	"ports":         "scanning.ports.list",
	"scan-ports":    "scanning.scan_ports_by_default",
	"timeout":       "scanning.ping.timeout",
	"retries":       "scanning.ping.retries",
	"concurrency":   "scanning.ping.concurrency",
	"max-addresses": "scanning.max_addresses",
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().String("ports", "", "ports to scan on alive hosts, e.g. '22,80,443' or '1-1024'")
	scanCmd.Flags().Bool("scan-ports", false, "scan ports of every alive host after discovery")
	scanCmd.Flags().Duration("timeout", 0, "timeout of each ICMP echo or TCP connect")
	scanCmd.Flags().Int("retries", 0, "extra attempts per protocol")
	scanCmd.Flags().Int("concurrency", 0, "maximum concurrent probes")
	scanCmd.Flags().Uint64("max-addresses", 0, "largest range to accept, 0 removes the limit")
	scanCmd.Flags().BoolVar(&scanJSON, "json", false, "print the result as JSON")
	scanCmd.Flags().BoolVar(&scanAll, "all", false, "include offline hosts in the table")
	scanCmd.Flags().BoolVar(&scanNoDNS, "no-dns", false, "skip reverse DNS lookups")
	scanCmd.Flags().BoolVar(&scanNoMAC, "no-mac", false, "skip MAC address detection")
}

// scanResult is the JSON form of a finished scan.
type scanResult struct {
	Range     string              `json:"range"`
	State     session.State       `json:"state"`
	Summary   string              `json:"summary"`
	Completed int                 `json:"completed"`
	Total     int                 `json:"total"`
	Hosts     []models.HostRecord `json:"hosts"`
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	// A --ports list implies port scanning.
	if cmd.Flags().Changed("ports") && !cmd.Flags().Changed("scan-ports") {
		cfg.Scanning.ScanPortsByDefault = true
	}
	if scanNoDNS {
		cfg.Scanning.ResolveHostnames = false
	}
	if scanNoMAC {
		cfg.Scanning.DetectMAC = false
	}

	rangeSpec := defaultRange(cfg)
	if len(args) == 1 {
		rangeSpec = args[0]
	}
	if rangeSpec == "" {
		return errors.NewScanError(errors.CodeTargetInvalid, "no range given and no active network adapter found")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt := newRuntime(cfg, logging.Default())
	events, err := rt.session.Start(ctx, rangeSpec)
	if err != nil {
		return err
	}

	progress := cmd.ErrOrStderr()
	for ev := range events {
		if scanJSON || ev.Type != session.EventHostDiscovered || !ev.Host.Alive {
			continue
		}
		fmt.Fprintf(progress, "[%d/%d] %-15s %s %s\n",
			ev.Completed, ev.Total, ev.Host.IP, ev.Host.RTTString(), ev.Host.HostnameOrDash())
	}

	completed := rt.session.State() == session.StateCompleted
	if completed && cfg.Scanning.ScanPortsByDefault {
		if err := rt.scanAlivePorts(ctx); err != nil {
			return err
		}
	}

	snap := rt.session.Snapshot()
	out := cmd.OutOrStdout()
	if scanJSON {
		if err := writeJSON(out, scanResult{
			Range:     snap.Range,
			State:     snap.State,
			Summary:   rt.session.Summary(),
			Completed: snap.Completed,
			Total:     snap.Total,
			Hosts:     snap.Hosts,
		}); err != nil {
			return err
		}
	} else {
		renderHosts(out, snap.Hosts, scanAll)
		fmt.Fprintf(out, "%s: %s\n", snap.Range, rt.session.Summary())
	}

	if !completed {
		return errors.ErrScanCanceled(snap.Range, snap.Completed, snap.Total)
	}
	return nil
}

// scanAlivePorts scans the configured ports of every alive host and stores
// the enriched host list in the cache again.
func (rt *runtime) scanAlivePorts(ctx context.Context) error {
	snap := rt.session.Snapshot()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(portScanHosts)
	for _, h := range snap.Hosts {
		if !h.Alive {
			continue
		}
		ip := h.IP
		g.Go(func() error {
			_, err := rt.session.ScanHostPorts(gctx, ip, nil)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if rt.store != nil {
		rt.store.Save(snap.Range, rt.session.Snapshot().Hosts)
	}
	return nil
}
