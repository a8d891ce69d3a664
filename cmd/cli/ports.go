package cli

import (
	"fmt"
	"net/netip"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/anstrom/ipscannr/internal/errors"
	"github.com/anstrom/ipscannr/internal/logging"
	"github.com/anstrom/ipscannr/internal/scanning"
)

var (
	portsJSON bool
	portsAll  bool
)

// portsCmd represents the ports command
var portsCmd = &cobra.Command{
	Use:   "ports <ip>",
	Short: "Scan the TCP ports of one host",
	Long: `Attempt a TCP connection to every listed port of a single IPv4 host and
report which ports accepted it. The host is not pinged first.`,
	Example: `  ipscannr ports 192.168.1.10
  ipscannr ports 192.168.1.10 --ports 1-1024 --all`,
	Args:   cobra.ExactArgs(1),
	PreRun: func(cmd *cobra.Command, _ []string) { bindFlags(cmd.Flags(), portsFlagKeys) },
	RunE:   runPorts,
}

var portsFlagKeys = map[string]string{
	"ports":       "scanning.ports.list",
	"timeout":     "scanning.ports.timeout",
	"concurrency": "scanning.ports.concurrency",
}

func init() {
	rootCmd.AddCommand(portsCmd)

	portsCmd.Flags().String("ports", "", "ports to scan, e.g. '22,80,443' or '1-1024' (default common ports)")
	portsCmd.Flags().Duration("timeout", 0, "timeout of each connect attempt")
	portsCmd.Flags().Int("concurrency", 0, "maximum concurrent connect attempts")
	portsCmd.Flags().BoolVar(&portsJSON, "json", false, "print the result as JSON")
	portsCmd.Flags().BoolVar(&portsAll, "all", false, "include closed ports in the table")
}

func runPorts(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ip, err := netip.ParseAddr(args[0])
	if err != nil || !ip.Is4() {
		return errors.ErrInvalidTarget(args[0])
	}
	ports := cfg.PortList()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := logging.Default()
	results := newPortScanner(cfg.Scanning.Ports.Config, logger, nil).ScanPorts(ctx, ip, ports)
	if ctx.Err() != nil {
		return fmt.Errorf("port scan of %s interrupted", ip)
	}

	out := cmd.OutOrStdout()
	if portsJSON {
		return writeJSON(out, struct {
			IP        string                `json:"ip"`
			OpenPorts []uint16              `json:"open_ports"`
			Results   []scanning.PortResult `json:"results"`
		}{ip.String(), scanning.OpenPorts(results), results})
	}

	renderPorts(out, results, portsAll)
	fmt.Fprintf(out, "%s: %d of %d ports open\n", ip, len(scanning.OpenPorts(results)), len(ports))
	return nil
}
