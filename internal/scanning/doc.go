// Package scanning probes TCP ports on a single host.
//
// # Overview
//
// A Scanner performs plain TCP connect probes. A port is open when the
// connection is established within the configured timeout; refusals,
// timeouts and every other error mean closed. Probes for one host are fanned
// out over the shared worker pool and bounded by a semaphore owned by the
// Scanner, so several concurrent ScanPorts calls never exceed the configured
// concurrency together.
//
// # Port lists
//
// Port lists use the same syntax everywhere:
//
//	22             single port
//	22,80,443      comma list
//	8000-8100      inclusive range
//	22,80,8000-8100
//
// ParsePorts skips tokens it cannot parse and returns the ports sorted and
// deduplicated. CommonPorts is the default list used when none is given.
//
// # Usage
//
//	s := scanning.NewScanner(scanning.DefaultConfig())
//	results := s.ScanPorts(ctx, netip.MustParseAddr("192.168.1.10"), scanning.CommonPorts)
//	for _, r := range results {
//		if r.Open {
//			fmt.Printf("%d/tcp open %s\n", r.Port, r.Service)
//		}
//	}
//
// Results from ScanPorts are always sorted ascending by port.
package scanning
