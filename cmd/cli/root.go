// Package cli provides the command-line interface for ipscannr. It wires the
// discovery engine, port scanner, enrichment and cache into a session and
// exposes it as one-shot commands or as the HTTP controller.
package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/anstrom/ipscannr/internal/config"
	"github.com/anstrom/ipscannr/internal/logging"
)

const envPrefix = "IPSCANNR"

var (
	cfgFile string
	verbose bool
)

// Build information - these will be set by ldflags during build.
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "ipscannr",
	Short: "IPv4 network discovery and probing",
	Long: `ipscannr sweeps IPv4 ranges for live hosts using ICMP echo with a TCP
connect fallback, enriches the hosts it finds with hostnames and MAC vendors,
scans their ports and remembers the last result of every range.`,
	Version:       getVersion(),
	SilenceUsage:  true,
	SilenceErrors: false,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is ./ipscannr.yaml)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.String("log-format", "", "log format: text, json")
	flags.String("cache-file", "", "result cache file")
	flags.Bool("no-cache", false, "do not read or write the result cache")

	bindFlags(flags, rootFlagKeys)
}

var rootFlagKeys = map[string]string{
	"verbose":    "verbose",
	"log-level":  "logging.level",
	"log-format": "logging.format",
	"cache-file": "cache.path",
	"no-cache":   "no_cache",
}

// bindFlags binds each flag to a viper key. Bind failures only happen for
// misspelled flag names, so they are reported and otherwise ignored.
func bindFlags(flags *pflag.FlagSet, keys map[string]string) {
	for name, key := range keys {
		if err := viper.BindPFlag(key, flags.Lookup(name)); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to bind %s flag: %v\n", name, err)
		}
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			viper.AddConfigPath(filepath.Join(dir, "ipscannr"))
		}
		viper.SetConfigType("yaml")
		viper.SetConfigName("ipscannr")
	}

	// IPSCANNR_LOGGING_LEVEL, IPSCANNR_SCANNING_PING_TIMEOUT and so on.
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}

	initLogging()
}

// getVersion returns the version string.
func getVersion() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildTime)
}

// SetVersion sets the version information (called from main).
func SetVersion(v, c, bt string) {
	version = v
	commit = c
	buildTime = bt
	rootCmd.Version = getVersion()
}

// configPath returns the file config.Load should read. A file named with
// --config must exist; the search path is optional.
func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return viper.ConfigFileUsed()
}

// loadConfig reads the config file and applies environment and flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath())
	if err != nil {
		return nil, err
	}
	applyOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyOverrides copies every viper key that was set by a flag or an
// IPSCANNR_* variable onto cfg.
func applyOverrides(cfg *config.Config) {
	overrideString("logging.level", func(v string) { cfg.Logging.Level = logging.LogLevel(v) })
	overrideString("logging.format", func(v string) { cfg.Logging.Format = logging.LogFormat(v) })
	overrideString("logging.output", func(v string) { cfg.Logging.Output = v })
	if viper.GetBool("verbose") && !viper.IsSet("logging.level") {
		cfg.Logging.Level = logging.LevelDebug
	}

	// IPSCANNR_CACHE outranks the config file but not --cache-file.
	if os.Getenv(config.CacheEnvVar) == "" || rootCmd.PersistentFlags().Changed("cache-file") {
		overrideString("cache.path", func(v string) { cfg.Cache.Path = v })
	}
	if viper.GetBool("no_cache") {
		cfg.Cache.Enabled = false
	}

	s := &cfg.Scanning
	overrideString("scanning.default_range", func(v string) { s.DefaultRange = v })
	overrideString("scanning.ports.list", func(v string) { s.Ports.List = v })
	overrideBool("scanning.scan_ports_by_default", &s.ScanPortsByDefault)
	overrideBool("scanning.resolve_hostnames", &s.ResolveHostnames)
	overrideBool("scanning.detect_mac", &s.DetectMAC)
	if viper.IsSet("scanning.max_addresses") {
		s.MaxAddresses = viper.GetUint64("scanning.max_addresses")
	}
	if viper.IsSet("scanning.ping.timeout") {
		s.Ping.Timeout = viper.GetDuration("scanning.ping.timeout")
	}
	if viper.IsSet("scanning.ping.retries") {
		s.Ping.Retries = viper.GetInt("scanning.ping.retries")
	}
	if viper.IsSet("scanning.ping.concurrency") {
		s.Ping.Concurrency = viper.GetInt("scanning.ping.concurrency")
	}
	if viper.IsSet("scanning.ports.timeout") {
		s.Ports.Timeout = viper.GetDuration("scanning.ports.timeout")
	}
	if viper.IsSet("scanning.ports.concurrency") {
		s.Ports.Concurrency = viper.GetInt("scanning.ports.concurrency")
	}

	a := &cfg.API
	overrideString("api.listen_addr", func(v string) { a.ListenAddr = v })
	overrideString("api.rescan_schedule", func(v string) { a.RescanSchedule = v })
	if viper.IsSet("api.port") {
		a.Port = viper.GetInt("api.port")
	}
	overrideBool("api.enable_cors", &a.EnableCORS)
	overrideBool("metrics.enabled", &cfg.Metrics.Enabled)
}

func overrideString(key string, set func(string)) {
	if viper.IsSet(key) {
		if v := viper.GetString(key); v != "" {
			set(v)
		}
	}
}

func overrideBool(key string, dst *bool) {
	if viper.IsSet(key) {
		*dst = viper.GetBool(key)
	}
}

// initLogging initializes structured logging based on configuration.
func initLogging() {
	cfg, err := loadConfig()
	if err != nil {
		logging.SetDefault(logging.NewDefault())
		return
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		logger = logging.NewDefault()
		fmt.Fprintf(os.Stderr, "Warning: failed to initialize logging: %v\n", err)
	}
	logging.SetDefault(logger)

	if verbose {
		logging.Debug("Structured logging initialized", "level", cfg.Logging.Level, "format", cfg.Logging.Format)
	}
}
