// Package config loads the ipscannr configuration from a YAML file layered on
// top of built-in defaults, and validates it.
package config

import (
	"fmt"
	"net/netip"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/anstrom/ipscannr/internal/cache"
	"github.com/anstrom/ipscannr/internal/discovery"
	"github.com/anstrom/ipscannr/internal/errors"
	"github.com/anstrom/ipscannr/internal/iprange"
	"github.com/anstrom/ipscannr/internal/logging"
	"github.com/anstrom/ipscannr/internal/resolver"
	"github.com/anstrom/ipscannr/internal/scanning"
)

const (
	configDirPerm  = 0o755
	configFilePerm = 0o644

	// CacheEnvVar overrides the cache file path.
	CacheEnvVar = "IPSCANNR_CACHE"

	defaultMaxAddresses = 1 << 16
)

// Config represents the complete ipscannr configuration.
type Config struct {
	Scanning ScanningConfig `yaml:"scanning" json:"scanning" mapstructure:"scanning"`
	Cache    CacheConfig    `yaml:"cache" json:"cache" mapstructure:"cache"`
	API      APIConfig      `yaml:"api" json:"api" mapstructure:"api"`
	Metrics  MetricsConfig  `yaml:"metrics" json:"metrics" mapstructure:"metrics"`
	Logging  logging.Config `yaml:"logging" json:"logging" mapstructure:"logging"`
}

// ScanningConfig holds discovery, port scan and enrichment settings.
type ScanningConfig struct {
	// Range scanned when none is given. Empty uses the preferred adapter subnet.
	DefaultRange string `yaml:"default_range" json:"default_range" mapstructure:"default_range"`

	// Scan the port list of every alive host after discovery.
	ScanPortsByDefault bool `yaml:"scan_ports_by_default" json:"scan_ports_by_default" mapstructure:"scan_ports_by_default"`

	ResolveHostnames bool `yaml:"resolve_hostnames" json:"resolve_hostnames" mapstructure:"resolve_hostnames"`
	DetectMAC        bool `yaml:"detect_mac" json:"detect_mac" mapstructure:"detect_mac"`

	// Largest range a scan may start. Zero removes the limit.
	MaxAddresses uint64 `yaml:"max_addresses" json:"max_addresses" mapstructure:"max_addresses"`

	Ping  discovery.Config `yaml:"ping" json:"ping" mapstructure:"ping"`
	Ports PortsConfig      `yaml:"ports" json:"ports" mapstructure:"ports"`
	DNS   resolver.Config  `yaml:"dns" json:"dns" mapstructure:"dns"`
}

// PortsConfig holds port scan settings.
type PortsConfig struct {
	scanning.Config `yaml:",inline" mapstructure:",squash"`

	// List in "21,22,80" or "1-1024" syntax. Empty means the common ports.
	List string `yaml:"list" json:"list" mapstructure:"list"`
}

// CacheConfig holds result cache settings.
type CacheConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled" mapstructure:"enabled"`
	Path    string `yaml:"path" json:"path" mapstructure:"path"`
}

// APIConfig holds HTTP controller settings.
type APIConfig struct {
	Enabled    bool   `yaml:"enabled" json:"enabled" mapstructure:"enabled"`
	ListenAddr string `yaml:"listen_addr" json:"listen_addr" mapstructure:"listen_addr" validate:"required_if=Enabled true"`
	Port       int    `yaml:"port" json:"port" mapstructure:"port" validate:"gte=0,lte=65535"`

	EnableCORS  bool     `yaml:"enable_cors" json:"enable_cors" mapstructure:"enable_cors"`
	CORSOrigins []string `yaml:"cors_origins" json:"cors_origins" mapstructure:"cors_origins"`

	ReadTimeout     time.Duration `yaml:"read_timeout" json:"read_timeout" mapstructure:"read_timeout" validate:"gte=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" json:"write_timeout" mapstructure:"write_timeout" validate:"gte=0"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" json:"idle_timeout" mapstructure:"idle_timeout" validate:"gte=0"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout" mapstructure:"shutdown_timeout" validate:"gte=0"`

	// Cron expression for periodic rescans. Empty disables them.
	RescanSchedule string `yaml:"rescan_schedule" json:"rescan_schedule" mapstructure:"rescan_schedule"`
}

// MetricsConfig holds Prometheus exposition settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled" mapstructure:"enabled"`
	Path    string `yaml:"path" json:"path" mapstructure:"path" validate:"omitempty,startswith=/"`
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Scanning: ScanningConfig{
			ResolveHostnames: true,
			DetectMAC:        true,
			MaxAddresses:     defaultMaxAddresses,
			Ping:             discovery.DefaultConfig(),
			Ports:            PortsConfig{Config: scanning.DefaultConfig()},
			DNS:              resolver.DefaultConfig(),
		},
		Cache: CacheConfig{
			Enabled: true,
			Path:    cache.DefaultFileName,
		},
		API: APIConfig{
			Enabled:         true,
			ListenAddr:      "127.0.0.1",
			Port:            8080,
			EnableCORS:      false,
			CORSOrigins:     []string{"*"},
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Logging: logging.DefaultConfig(),
	}
}

// Load reads path on top of the defaults. A missing file yields the
// defaults. The IPSCANNR_CACHE environment variable overrides the cache path.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, errors.WrapConfigError(errors.CodeConfiguration, "failed to parse config", err)
			}
		}
	}

	if p := os.Getenv(CacheEnvVar); p != "" {
		cfg.Cache.Path = p
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), configDirPerm); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, configFilePerm); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct tags first, then the fields whose syntax belongs to
// other packages.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fieldError(err)
	}

	if r := c.Scanning.DefaultRange; r != "" {
		n, err := iprange.Size(r)
		if err != nil {
			return errors.NewConfigFieldError(errors.CodeValidation, err.Error(), "scanning.default_range", r)
		}
		if limit := c.Scanning.MaxAddresses; limit > 0 && n > limit {
			return errors.NewConfigFieldError(errors.CodeValidation,
				fmt.Sprintf("range has %d addresses, more than scanning.max_addresses", n), "scanning.default_range", r)
		}
	}
	if l := c.Scanning.Ports.List; strings.TrimSpace(l) != "" && len(scanning.ParsePorts(l)) == 0 {
		return errors.ErrConfigInvalid("scanning.ports.list", l)
	}
	if c.Cache.Enabled && c.Cache.Path == "" {
		return errors.ErrConfigMissing("cache.path")
	}
	if c.Metrics.Enabled && c.Metrics.Path == "" {
		return errors.ErrConfigMissing("metrics.path")
	}
	if c.API.Enabled && c.API.Port == 0 {
		return errors.ErrConfigInvalid("api.port", c.API.Port)
	}
	if s := c.API.RescanSchedule; s != "" {
		if _, err := cron.ParseStandard(s); err != nil {
			return errors.NewConfigFieldError(errors.CodeValidation, "invalid cron schedule: "+err.Error(), "api.rescan_schedule", s)
		}
	}
	return nil
}

func fieldError(err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return errors.WrapConfigError(errors.CodeValidation, "invalid configuration", err)
	}
	fe := verrs[0]
	msg := fmt.Sprintf("failed on %q", fe.Tag())
	if fe.Param() != "" {
		msg += " (" + fe.Param() + ")"
	}
	return errors.NewConfigFieldError(errors.CodeValidation, msg, fieldPath(fe.Namespace()), fe.Value())
}

// fieldPath turns "Config.Scanning.Ping.Timeout" into "Scanning.Ping.Timeout".
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

// PortList returns the configured ports, or the common ports.
func (c *Config) PortList() []uint16 {
	if ports := scanning.ParsePorts(c.Scanning.Ports.List); len(ports) > 0 {
		return ports
	}
	return scanning.CommonPorts
}

// ResolveDefaultRange returns the configured default range, or fallback.
func (c *Config) ResolveDefaultRange(fallback func() string) string {
	if c.Scanning.DefaultRange != "" {
		return c.Scanning.DefaultRange
	}
	if fallback != nil {
		if r := fallback(); r != "" {
			return r
		}
	}
	return ""
}

// GetAPIAddress returns the API listen address.
func (c *Config) GetAPIAddress() string {
	if addr, err := netip.ParseAddr(c.API.ListenAddr); err == nil && addr.Is6() {
		return fmt.Sprintf("[%s]:%d", c.API.ListenAddr, c.API.Port)
	}
	return fmt.Sprintf("%s:%d", c.API.ListenAddr, c.API.Port)
}
