package mac

import (
	"bufio"
	"context"
	"net/netip"
	"os"
	"strconv"
	"strings"

	"github.com/anstrom/ipscannr/internal/models"
)

const (
	procARPPath = "/proc/net/arp"

	// ATF_COM marks a completed neighbor entry.
	arpFlagComplete = 0x2
)

// ProcTable reads the kernel neighbor table from /proc/net/arp.
type ProcTable struct {
	Path string
}

// NewProcTable returns a reader for the Linux neighbor table.
func NewProcTable() *ProcTable {
	return &ProcTable{Path: procARPPath}
}

// Lookup implements Lookuper.
func (p *ProcTable) Lookup(_ context.Context, ip netip.Addr) (models.MACInfo, bool) {
	entries, err := p.Entries()
	if err != nil {
		return models.MACInfo{}, false
	}
	hw, ok := entries[ip]
	if !ok {
		return models.MACInfo{}, false
	}
	return NewInfo(hw)
}

// Entries returns every completed entry in the table.
func (p *ProcTable) Entries() (map[netip.Addr]string, error) {
	f, err := os.Open(p.Path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	out := make(map[netip.Addr]string)
	sc := bufio.NewScanner(f)
	header := true
	for sc.Scan() {
		if header {
			header = false
			continue
		}
		// IP address  HW type  Flags  HW address  Mask  Device
		fields := strings.Fields(sc.Text())
		if len(fields) < 4 {
			continue
		}
		ip, err := netip.ParseAddr(fields[0])
		if err != nil || !ip.Is4() {
			continue
		}
		if !flagComplete(fields[2]) {
			continue
		}
		out[ip] = fields[3]
	}
	return out, sc.Err()
}

func flagComplete(s string) bool {
	flags, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return false
	}
	return flags&arpFlagComplete != 0
}
