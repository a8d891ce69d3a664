// Package models defines the host and probe records shared by the discovery,
// port scanning, session and cache packages.
package models

import (
	"encoding/json"
	"fmt"
	"net/netip"
	"slices"
	"strconv"
	"time"
)

// Method is the protocol that produced a liveness verdict.
type Method int

const (
	MethodUnknown Method = iota
	MethodICMP
	MethodTCP
)

// String returns the wire name of the method.
func (m Method) String() string {
	switch m {
	case MethodICMP:
		return "ICMP"
	case MethodTCP:
		return "TCP"
	default:
		return ""
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m Method) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Method) UnmarshalText(b []byte) error {
	v, err := ParseMethod(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// ParseMethod parses "ICMP" or "TCP". An empty string yields MethodUnknown.
func ParseMethod(s string) (Method, error) {
	switch s {
	case "ICMP":
		return MethodICMP, nil
	case "TCP":
		return MethodTCP, nil
	case "":
		return MethodUnknown, nil
	default:
		return MethodUnknown, fmt.Errorf("unknown probe method %q", s)
	}
}

// Status classifies a host after probing.
type Status int

const (
	StatusUnknown Status = iota
	// StatusOnline means ICMP answered, or TCP answered and ICMP was never available.
	StatusOnline
	// StatusOnlineNoICMP means TCP answered while ICMP was available but got no reply.
	StatusOnlineNoICMP
	StatusOffline
)

// String returns the wire name of the status.
func (s Status) String() string {
	switch s {
	case StatusOnline:
		return "Online"
	case StatusOnlineNoICMP:
		return "OnlineNoIcmp"
	case StatusOffline:
		return "Offline"
	default:
		return ""
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(b []byte) error {
	v, err := ParseStatus(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ParseStatus parses a status wire name. An empty string yields StatusUnknown.
func ParseStatus(s string) (Status, error) {
	switch s {
	case "Online":
		return StatusOnline, nil
	case "OnlineNoIcmp":
		return StatusOnlineNoICMP, nil
	case "Offline":
		return StatusOffline, nil
	case "":
		return StatusUnknown, nil
	default:
		return StatusUnknown, fmt.Errorf("unknown host status %q", s)
	}
}

// ProbeResult is the immutable outcome of probing one host once.
type ProbeResult struct {
	IP     netip.Addr
	Alive  bool
	RTT    *time.Duration
	Method Method
	Status Status
}

// OfflineResult builds the result for a host that never answered.
func OfflineResult(ip netip.Addr, method Method) ProbeResult {
	return ProbeResult{IP: ip, Method: method, Status: StatusOffline}
}

// MACInfo is a hardware address with its optional vendor name.
type MACInfo struct {
	Address string  `json:"address"`
	Vendor  *string `json:"vendor,omitempty"`
}

// HostRecord aggregates everything known about one address within a session.
type HostRecord struct {
	IP           netip.Addr     `json:"ip"`
	Alive        bool           `json:"alive"`
	RTT          *time.Duration `json:"-"`
	Hostname     *string        `json:"hostname,omitempty"`
	MAC          *MACInfo       `json:"mac,omitempty"`
	OpenPorts    []uint16       `json:"open_ports"`
	PortsScanned bool           `json:"ports_scanned"`
	CachedAt     *int64         `json:"cached_at,omitempty"`
	Method       Method         `json:"method"`
	Status       Status         `json:"status"`
}

// NewHostRecord creates a record from the first probe result for an address.
func NewHostRecord(r ProbeResult) HostRecord {
	h := HostRecord{
		IP:        r.IP,
		Alive:     r.Alive,
		Method:    r.Method,
		Status:    r.Status,
		OpenPorts: []uint16{},
	}
	if r.RTT != nil {
		rtt := *r.RTT
		h.RTT = &rtt
	}
	return h
}

// MarshalJSON adds the round trip time in milliseconds to the JSON form.
func (h HostRecord) MarshalJSON() ([]byte, error) {
	type plain HostRecord
	out := struct {
		plain
		RTTMillis *float64 `json:"rtt_ms"`
	}{plain: plain(h)}
	if h.RTT != nil {
		ms := DurationMillis(*h.RTT)
		out.RTTMillis = &ms
	}
	if out.OpenPorts == nil {
		out.OpenPorts = []uint16{}
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads the form written by MarshalJSON.
func (h *HostRecord) UnmarshalJSON(data []byte) error {
	type plain HostRecord
	var in struct {
		plain
		RTTMillis *float64 `json:"rtt_ms"`
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*h = HostRecord(in.plain)
	if in.RTTMillis != nil {
		rtt := MillisDuration(*in.RTTMillis)
		h.RTT = &rtt
	}
	return nil
}

// Clone returns a deep copy of the record.
func (h HostRecord) Clone() HostRecord {
	c := h
	if h.RTT != nil {
		rtt := *h.RTT
		c.RTT = &rtt
	}
	if h.Hostname != nil {
		name := *h.Hostname
		c.Hostname = &name
	}
	if h.MAC != nil {
		m := *h.MAC
		if h.MAC.Vendor != nil {
			v := *h.MAC.Vendor
			m.Vendor = &v
		}
		c.MAC = &m
	}
	if h.CachedAt != nil {
		at := *h.CachedAt
		c.CachedAt = &at
	}
	c.OpenPorts = slices.Clone(h.OpenPorts)
	if c.OpenPorts == nil {
		c.OpenPorts = []uint16{}
	}
	return c
}

// RTTString formats the round trip time for display.
func (h HostRecord) RTTString() string {
	if h.RTT == nil {
		return "-"
	}
	return strconv.FormatFloat(DurationMillis(*h.RTT), 'f', 1, 64) + "ms"
}

// HostnameOrDash returns the hostname or "-" when unknown.
func (h HostRecord) HostnameOrDash() string {
	if h.Hostname == nil || *h.Hostname == "" {
		return "-"
	}
	return *h.Hostname
}

// DurationMillis converts d to fractional milliseconds.
func DurationMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// MillisDuration converts fractional milliseconds to a duration.
func MillisDuration(ms float64) time.Duration {
	return time.Duration(ms * float64(time.Millisecond))
}

// SortByIP sorts hosts ascending by address.
func SortByIP(hosts []HostRecord) {
	slices.SortFunc(hosts, func(a, b HostRecord) int {
		return a.IP.Compare(b.IP)
	})
}

// CountAlive returns how many hosts are alive.
func CountAlive(hosts []HostRecord) int {
	n := 0
	for i := range hosts {
		if hosts[i].Alive {
			n++
		}
	}
	return n
}
