// Package netif lists the local IPv4 network adapters. It is used to seed the
// default scan range with the subnet of the preferred adapter.
package netif

import (
	"encoding/json"
	"net"
	"net/netip"
	"sort"
	"strings"
)

// Type classifies an adapter. Lower values are preferred.
type Type int

const (
	TypeEthernet Type = iota
	TypeWiFi
	TypeVPN
	TypeOther
)

// String returns the display name of the type.
func (t Type) String() string {
	switch t {
	case TypeEthernet:
		return "Ethernet"
	case TypeWiFi:
		return "WiFi"
	case TypeVPN:
		return "VPN"
	default:
		return "Other"
	}
}

// MarshalJSON encodes the type by name.
func (t Type) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

var (
	vpnHints      = []string{"vpn", "virtual", "tap", "tun", "wireguard", "nordlynx", "zerotier", "tailscale"}
	vpnPrefixes   = []string{"wg", "utun", "ppp", "zt"}
	wifiHints     = []string{"wifi", "wi-fi", "wireless", "wlan", "802.11"}
	wifiPrefixes  = []string{"wl"}
	etherHints    = []string{"ethernet", "local area connection", "realtek", "intel", "broadcom", "gigabit"}
	etherPrefixes = []string{"eth", "en", "em", "eno", "ens", "enp"}
)

// TypeFromName guesses the adapter type from its name.
func TypeFromName(name string) Type {
	lower := strings.ToLower(name)
	switch {
	case containsAny(lower, vpnHints) || hasAnyPrefix(lower, vpnPrefixes):
		return TypeVPN
	case containsAny(lower, wifiHints) || hasAnyPrefix(lower, wifiPrefixes):
		return TypeWiFi
	case containsAny(lower, etherHints) || hasAnyPrefix(lower, etherPrefixes):
		return TypeEthernet
	default:
		return TypeOther
	}
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// Adapter is one IPv4 address on an active interface.
type Adapter struct {
	Name   string       `json:"name"`
	Type   Type         `json:"type"`
	IP     netip.Addr   `json:"ip"`
	Subnet netip.Prefix `json:"subnet"`
}

type ifaceInfo struct {
	name  string
	flags net.Flags
	addrs []net.Addr
}

// Enumerate returns the IPv4 adapters of interfaces that are up, sorted by
// preference: Ethernet, WiFi, VPN, then anything else. Loopback and
// link-local addresses are skipped.
func Enumerate() ([]Adapter, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	infos := make([]ifaceInfo, 0, len(ifaces))
	for _, iface := range ifaces {
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		infos = append(infos, ifaceInfo{name: iface.Name, flags: iface.Flags, addrs: addrs})
	}
	return adapters(infos), nil
}

func adapters(infos []ifaceInfo) []Adapter {
	var out []Adapter
	for _, info := range infos {
		if info.flags&net.FlagUp == 0 || info.flags&net.FlagLoopback != 0 {
			continue
		}
		for _, a := range info.addrs {
			ipnet, ok := a.(*net.IPNet)
			if !ok {
				continue
			}
			ip, ok := netip.AddrFromSlice(ipnet.IP)
			if !ok {
				continue
			}
			ip = ip.Unmap()
			if !ip.Is4() || ip.IsLoopback() || ip.IsLinkLocalUnicast() {
				continue
			}
			bits, _ := ipnet.Mask.Size()
			out = append(out, Adapter{
				Name:   info.name,
				Type:   TypeFromName(info.name),
				IP:     ip,
				Subnet: netip.PrefixFrom(ip, bits).Masked(),
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out
}

// DefaultRange returns the subnet of the preferred adapter, or fallback when
// there is none.
func DefaultRange(fallback string) string {
	list, err := Enumerate()
	if err != nil || len(list) == 0 {
		return fallback
	}
	return list[0].Subnet.String()
}
