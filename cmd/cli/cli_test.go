package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/netip"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anstrom/ipscannr/internal/cache"
	"github.com/anstrom/ipscannr/internal/config"
	"github.com/anstrom/ipscannr/internal/discovery"
	"github.com/anstrom/ipscannr/internal/errors"
	"github.com/anstrom/ipscannr/internal/logging"
	"github.com/anstrom/ipscannr/internal/metrics"
	"github.com/anstrom/ipscannr/internal/models"
	"github.com/anstrom/ipscannr/internal/netif"
	"github.com/anstrom/ipscannr/internal/scanning"
	"github.com/anstrom/ipscannr/internal/session"
)

// fakeProber reports the listed addresses alive and the rest offline.
type fakeProber map[netip.Addr]bool

func (f fakeProber) Scan(_ context.Context, addrs []netip.Addr) <-chan models.ProbeResult {
	out := make(chan models.ProbeResult, len(addrs))
	for _, ip := range addrs {
		if f[ip] {
			rtt := 2 * time.Millisecond
			out <- models.ProbeResult{IP: ip, Alive: true, RTT: &rtt, Method: models.MethodICMP, Status: models.StatusOnline}
		} else {
			out <- models.OfflineResult(ip, models.MethodTCP)
		}
	}
	close(out)
	return out
}

// sshOnly reports port 22 open and everything else closed.
type sshOnly struct{}

func (sshOnly) ScanPorts(_ context.Context, _ netip.Addr, ports []uint16) []scanning.PortResult {
	out := make([]scanning.PortResult, 0, len(ports))
	for _, p := range ports {
		out = append(out, scanning.PortResult{Port: p, Open: p == 22, Service: scanning.ServiceName(p)})
	}
	return out
}

// stubComponents keeps commands off the network for the duration of t.
func stubComponents(t *testing.T, alive ...string) {
	t.Helper()
	prober := fakeProber{}
	for _, ip := range alive {
		prober[netip.MustParseAddr(ip)] = true
	}

	origProber, origPorts, origEnum := newProber, newPortScanner, enumerateAdapters
	t.Cleanup(func() {
		newProber, newPortScanner, enumerateAdapters = origProber, origPorts, origEnum
	})
	newProber = func(discovery.Config, *logging.Logger, metrics.Recorder) session.Scanner { return prober }
	newPortScanner = func(scanning.Config, *logging.Logger, metrics.Recorder) session.PortScanner { return sshOnly{} }
	enumerateAdapters = func() ([]netif.Adapter, error) {
		return []netif.Adapter{{
			Name:   "eth0",
			Type:   netif.TypeEthernet,
			IP:     netip.MustParseAddr("10.0.0.2"),
			Subnet: netip.MustParsePrefix("10.0.0.0/30"),
		}}, nil
	}
}

// resetFlags restores every flag of cmd and its children to its default.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// execute runs the root command with args and isolated global state.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	return executeContext(t, context.Background(), args...)
}

func executeContext(t *testing.T, ctx context.Context, args ...string) (string, string, error) {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", home)
	t.Setenv(config.CacheEnvVar, "")

	viper.Reset()
	resetFlags(rootCmd)
	bindFlags(rootCmd.PersistentFlags(), rootFlagKeys)
	t.Cleanup(func() {
		viper.Reset()
		resetFlags(rootCmd)
		logging.SetDefault(logging.NewDefault())
	})

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(append([]string{"--log-level", "error"}, args...))
	err := rootCmd.ExecuteContext(ctx)
	return stdout.String(), stderr.String(), err
}

func TestApplyOverrides(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv(config.CacheEnvVar, "")

	viper.Set("logging.level", "debug")
	viper.Set("cache.path", "/tmp/hosts.json")
	viper.Set("no_cache", true)
	viper.Set("scanning.ping.timeout", "250ms")
	viper.Set("scanning.ping.retries", 3)
	viper.Set("scanning.ports.list", "22,80")
	viper.Set("scanning.detect_mac", false)
	viper.Set("api.port", 9000)
	viper.Set("api.rescan_schedule", "@hourly")

	cfg := config.Default()
	applyOverrides(cfg)

	assert.Equal(t, logging.LevelDebug, cfg.Logging.Level)
	assert.Equal(t, "/tmp/hosts.json", cfg.Cache.Path)
	assert.False(t, cfg.Cache.Enabled)
	assert.Equal(t, 250*time.Millisecond, cfg.Scanning.Ping.Timeout)
	assert.Equal(t, 3, cfg.Scanning.Ping.Retries)
	assert.Equal(t, "22,80", cfg.Scanning.Ports.List)
	assert.False(t, cfg.Scanning.DetectMAC)
	assert.True(t, cfg.Scanning.ResolveHostnames)
	assert.Equal(t, 9000, cfg.API.Port)
	assert.Equal(t, "@hourly", cfg.API.RescanSchedule)
}

func TestConfigFileAndEnvironment(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ipscannr.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cache:\n  enabled: true\n  path: "+filepath.Join(dir, "file.json")+"\n"), 0o600))

	out, _, err := execute(t, "--config", path, "cache", "path")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "file.json")+"\n", out)

	t.Setenv("IPSCANNR_CACHE_PATH", filepath.Join(dir, "env.json"))
	out, _, err = execute(t, "--config", path, "cache", "path")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "env.json")+"\n", out)

	out, _, err = execute(t, "--config", path, "--cache-file", filepath.Join(dir, "flag.json"), "cache", "path")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "flag.json")+"\n", out)
}

func TestInvalidConfigFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ipscannr.yaml")
	require.NoError(t, os.WriteFile(path, []byte("scanning:\n  ports:\n    list: \"ssh\"\n"), 0o600))

	_, _, err := execute(t, "--config", path, "cache", "path")
	assert.True(t, errors.IsCode(err, errors.CodeValidation), "got %v", err)
}

func TestScanCommand(t *testing.T) {
	stubComponents(t, "10.0.0.1", "10.0.0.2")
	cachePath := filepath.Join(t.TempDir(), "cache.json")

	out, progress, err := execute(t, "--cache-file", cachePath,
		"scan", "10.0.0.0/30", "--no-dns", "--no-mac", "--ports", "22,80")
	require.NoError(t, err)

	assert.Contains(t, progress, "10.0.0.1")
	assert.Contains(t, out, "10.0.0.2")
	assert.NotContains(t, out, "10.0.0.3")
	assert.Contains(t, out, "10.0.0.0/30: 4 hosts (2 online)")

	out, _, err = execute(t, "--cache-file", cachePath, "cache", "show", "10.0.0.0/30", "--json")
	require.NoError(t, err)
	var hosts []models.HostRecord
	require.NoError(t, json.Unmarshal([]byte(out), &hosts))
	require.Len(t, hosts, 4)
	assert.Equal(t, "10.0.0.1", hosts[1].IP.String())
	assert.Equal(t, []uint16{22}, hosts[1].OpenPorts)
	assert.True(t, hosts[1].PortsScanned)

	out, _, err = execute(t, "--cache-file", cachePath, "cache")
	require.NoError(t, err)
	assert.Contains(t, out, "10.0.0.0/30")

	out, _, err = execute(t, "--cache-file", cachePath, "cache", "10.0.0.0/30", "--all")
	require.NoError(t, err)
	assert.Contains(t, out, "10.0.0.3")
	assert.Contains(t, out, "4 hosts (2 online)")
}

func TestScanCommandJSONAndDefaultRange(t *testing.T) {
	stubComponents(t, "10.0.0.1")

	out, progress, err := execute(t, "--no-cache", "scan", "--json", "--no-dns", "--no-mac")
	require.NoError(t, err)
	assert.Empty(t, progress)

	var res struct {
		Range   string              `json:"range"`
		State   string              `json:"state"`
		Summary string              `json:"summary"`
		Hosts   []models.HostRecord `json:"hosts"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "10.0.0.0/30", res.Range)
	assert.Equal(t, "completed", res.State)
	assert.Equal(t, "4 hosts (1 online)", res.Summary)
	assert.Len(t, res.Hosts, 4)
}

// stalledScanner never answers and gives up when its context ends.
type stalledScanner struct{}

func (stalledScanner) Scan(ctx context.Context, _ []netip.Addr) <-chan models.ProbeResult {
	out := make(chan models.ProbeResult)
	go func() {
		<-ctx.Done()
		close(out)
	}()
	return out
}

func TestScanCommandInterrupted(t *testing.T) {
	stubComponents(t)
	newProber = func(discovery.Config, *logging.Logger, metrics.Recorder) session.Scanner { return stalledScanner{} }

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, _, err := executeContext(t, ctx, "--no-cache", "scan", "10.0.0.0/30", "--no-dns", "--no-mac")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeCanceled), "got %v", err)
	assert.Contains(t, err.Error(), "after 0 of 4 addresses")
	assert.Contains(t, out, "10.0.0.0/30: 0 hosts (0 online)")
}

func TestScanCommandRejectsBadRange(t *testing.T) {
	stubComponents(t)

	_, _, err := execute(t, "--no-cache", "scan", "10.0.0.300")
	assert.True(t, errors.IsCode(err, errors.CodeTargetInvalid), "got %v", err)
}

func TestPortsCommand(t *testing.T) {
	stubComponents(t)

	out, _, err := execute(t, "ports", "192.168.1.10", "--ports", "22,80", "--all")
	require.NoError(t, err)
	assert.Contains(t, out, "ssh")
	assert.Contains(t, out, "closed")
	assert.Contains(t, out, "192.168.1.10: 1 of 2 ports open")

	_, _, err = execute(t, "ports", "fe80::1")
	assert.True(t, errors.IsCode(err, errors.CodeTargetInvalid), "got %v", err)
}

func TestInterfacesCommand(t *testing.T) {
	stubComponents(t)

	out, _, err := execute(t, "interfaces")
	require.NoError(t, err)
	assert.Contains(t, out, "eth0")
	assert.Contains(t, out, "Default range: 10.0.0.0/30")

	out, _, err = execute(t, "interfaces", "--json")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"name":"eth0","type":"Ethernet","ip":"10.0.0.2","subnet":"10.0.0.0/30"}]`, out)
}

func TestCacheCommands(t *testing.T) {
	stubComponents(t)
	cachePath := filepath.Join(t.TempDir(), "cache.json")

	out, _, err := execute(t, "--cache-file", cachePath, "cache", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No cached scans")

	_, _, err = execute(t, "--cache-file", cachePath, "cache", "show", "10.9.9.0/24")
	assert.True(t, errors.IsCode(err, errors.CodeHostNotFound), "got %v", err)

	_, _, err = execute(t, "--cache-file", cachePath, "cache", "10.9.9.0/24")
	assert.True(t, errors.IsCode(err, errors.CodeHostNotFound), "got %v", err)

	_, _, err = execute(t, "--no-cache", "cache", "list")
	assert.True(t, errors.IsCode(err, errors.CodeConfiguration), "got %v", err)
}

func TestNewControllerWiresSchedulerAndRestore(t *testing.T) {
	stubComponents(t, "10.0.0.1")
	cachePath := filepath.Join(t.TempDir(), "cache.json")

	rtt := time.Millisecond
	cache.New(cachePath).Save("10.0.0.0/30", []models.HostRecord{
		models.NewHostRecord(models.ProbeResult{IP: netip.MustParseAddr("10.0.0.1"), Alive: true, RTT: &rtt, Method: models.MethodICMP, Status: models.StatusOnline}),
		models.NewHostRecord(models.OfflineResult(netip.MustParseAddr("10.0.0.2"), models.MethodTCP)),
	})

	cfg := config.Default()
	cfg.Cache.Path = cachePath
	cfg.API.RescanSchedule = "*/5 * * * *"

	c, err := newController(cfg, logging.Discard())
	require.NoError(t, err)
	require.NotNil(t, c.scheduler)
	jobs := c.scheduler.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, "*/5 * * * *", jobs[0].Schedule)

	c.restore()
	snap := c.rt.session.Snapshot()
	assert.Equal(t, "10.0.0.0/30", snap.Range)
	assert.Len(t, snap.Hosts, 2)
	assert.Equal(t, 1, snap.Alive)

	cfg.API.RescanSchedule = ""
	c, err = newController(cfg, logging.Discard())
	require.NoError(t, err)
	assert.Nil(t, c.scheduler)
}

func TestRenderHosts(t *testing.T) {
	vendor := "Raspberry Pi"
	name := "pi.lan"
	rtt := 1500 * time.Microsecond
	hosts := []models.HostRecord{
		{
			IP: netip.MustParseAddr("10.0.0.7"), Alive: true, RTT: &rtt, Hostname: &name,
			MAC:       &models.MACInfo{Address: "B8:27:EB:00:00:01", Vendor: &vendor},
			OpenPorts: []uint16{22, 80}, PortsScanned: true, Status: models.StatusOnline,
		},
		models.NewHostRecord(models.OfflineResult(netip.MustParseAddr("10.0.0.8"), models.MethodTCP)),
	}

	var buf bytes.Buffer
	renderHosts(&buf, hosts, false)
	out := buf.String()
	for _, want := range []string{"10.0.0.7", "1.5ms", "pi.lan", "B8:27:EB:00:00:01", "Raspberry Pi", "22,80"} {
		assert.Contains(t, out, want)
	}
	assert.NotContains(t, out, "10.0.0.8")

	buf.Reset()
	renderHosts(&buf, hosts, true)
	assert.Contains(t, buf.String(), "10.0.0.8")
	assert.Equal(t, "2 hosts (1 online)", summarize(hosts))
}
