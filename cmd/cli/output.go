package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"github.com/anstrom/ipscannr/internal/models"
	"github.com/anstrom/ipscannr/internal/scanning"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// renderHosts prints hosts as a table. Offline hosts are skipped unless all
// is set.
func renderHosts(w io.Writer, hosts []models.HostRecord, all bool) {
	table := tablewriter.NewWriter(w)
	table.Header("IP", "Status", "RTT", "Hostname", "MAC", "Vendor", "Open Ports")

	for _, h := range hosts {
		if !h.Alive && !all {
			continue
		}
		macAddr, vendor := "-", "-"
		if h.MAC != nil {
			macAddr = h.MAC.Address
			if h.MAC.Vendor != nil {
				vendor = *h.MAC.Vendor
			}
		}
		ports := "-"
		switch {
		case h.PortsScanned && len(h.OpenPorts) == 0:
			ports = "none"
		case h.PortsScanned:
			ports = scanning.FormatPorts(h.OpenPorts)
		}
		_ = table.Append([]string{
			h.IP.String(),
			h.Status.String(),
			h.RTTString(),
			h.HostnameOrDash(),
			macAddr,
			vendor,
			ports,
		})
	}
	_ = table.Render()
}

func renderPorts(w io.Writer, results []scanning.PortResult, all bool) {
	table := tablewriter.NewWriter(w)
	table.Header("Port", "State", "Service")
	for _, r := range results {
		if !r.Open && !all {
			continue
		}
		state := "closed"
		if r.Open {
			state = "open"
		}
		_ = table.Append([]string{strconv.Itoa(int(r.Port)), state, r.Service})
	}
	_ = table.Render()
}

func summarize(hosts []models.HostRecord) string {
	return fmt.Sprintf("%d hosts (%d online)", len(hosts), models.CountAlive(hosts))
}
