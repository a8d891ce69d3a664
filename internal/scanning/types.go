package scanning

import (
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	defaultTimeout     = 500 * time.Millisecond
	defaultConcurrency = 50

	expectedPortRangeParts = 2
)

// Config represents port scanner configuration.
type Config struct {
	// Timeout bounds each connect attempt.
	Timeout time.Duration `yaml:"timeout" json:"timeout" mapstructure:"timeout" validate:"gt=0"`
	// Concurrency limits concurrent connect attempts across all scans.
	Concurrency int `yaml:"concurrency" json:"concurrency" mapstructure:"concurrency" validate:"gte=1,lte=4096"`
}

// DefaultConfig returns the default port scanner configuration.
func DefaultConfig() Config {
	return Config{
		Timeout:     defaultTimeout,
		Concurrency: defaultConcurrency,
	}
}

// PortResult is the outcome of probing one port.
type PortResult struct {
	Port    uint16 `json:"port"`
	Open    bool   `json:"open"`
	Service string `json:"service"`
}

// CommonPorts is the default port list.
var CommonPorts = []uint16{
	21, 22, 23, 25, 53, 80, 110, 111, 135, 139, 143, 443, 445, 993, 995,
	1433, 1521, 3306, 3389, 5432, 5900, 6379, 8080, 8443, 27017,
}

var serviceNames = map[uint16]string{
	21:    "ftp",
	22:    "ssh",
	23:    "telnet",
	25:    "smtp",
	53:    "dns",
	80:    "http",
	110:   "pop3",
	111:   "rpc",
	135:   "msrpc",
	139:   "netbios",
	143:   "imap",
	443:   "https",
	445:   "smb",
	993:   "imaps",
	995:   "pop3s",
	1433:  "mssql",
	1521:  "oracle",
	3306:  "mysql",
	3389:  "rdp",
	5432:  "postgres",
	5900:  "vnc",
	6379:  "redis",
	8080:  "http-alt",
	8443:  "https-alt",
	27017: "mongodb",
}

// ServiceName returns the well-known service for port, or "unknown".
func ServiceName(port uint16) string {
	if name, ok := serviceNames[port]; ok {
		return name
	}
	return "unknown"
}

// ParsePorts parses a port list such as "22,80,8000-8100". Invalid tokens and
// port 0 are skipped. The result is sorted and contains no duplicates.
func ParsePorts(input string) []uint16 {
	seen := make(map[uint16]struct{})
	for _, part := range strings.Split(input, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		if strings.Contains(part, "-") {
			bounds := strings.Split(part, "-")
			if len(bounds) != expectedPortRangeParts {
				continue
			}
			start, err1 := parsePort(bounds[0])
			end, err2 := parsePort(bounds[1])
			if err1 != nil || err2 != nil {
				continue
			}
			for p := uint32(start); p <= uint32(end); p++ {
				if p != 0 {
					seen[uint16(p)] = struct{}{}
				}
			}
			continue
		}

		if p, err := parsePort(part); err == nil && p != 0 {
			seen[p] = struct{}{}
		}
	}

	ports := make([]uint16, 0, len(seen))
	for p := range seen {
		ports = append(ports, p)
	}
	sort.Slice(ports, func(i, j int) bool { return ports[i] < ports[j] })
	return ports
}

func parsePort(s string) (uint16, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 16)
	if err != nil {
		return 0, err
	}
	return uint16(v), nil
}

// OpenPorts extracts the open ports from results, preserving order.
func OpenPorts(results []PortResult) []uint16 {
	open := make([]uint16, 0)
	for _, r := range results {
		if r.Open {
			open = append(open, r.Port)
		}
	}
	return open
}

// FormatPorts renders a port list as "22,80,443".
func FormatPorts(ports []uint16) string {
	parts := make([]string, len(ports))
	for i, p := range ports {
		parts[i] = strconv.Itoa(int(p))
	}
	return strings.Join(parts, ",")
}
