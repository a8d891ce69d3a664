// Package metrics provides Prometheus metrics for probing, port scanning,
// reverse DNS, the result cache and the HTTP controller.
package metrics

import "time"

// Recorder is what instrumented components depend on. It allows metrics to be
// disabled by passing Nop without sprinkling nil checks around.
type Recorder interface {
	// ObserveProbe records one host probe and how long it took.
	ObserveProbe(method, status string, duration time.Duration)

	// AddPorts counts probed ports by state ("open" or "closed").
	AddPorts(state string, count int)

	// DNSLookup counts reverse lookups by outcome ("hit", "miss" or "fail").
	DNSLookup(outcome string)

	// CacheOperation counts cache loads and saves by status.
	CacheOperation(op, status string)

	// SetActiveScans sets the number of running host discovery scans.
	SetActiveScans(count int)

	// SessionTransition counts session state changes.
	SessionTransition(from, to string)

	// ObserveHTTP records one API request.
	ObserveHTTP(method, route, status string, duration time.Duration)
}

// Nop is a Recorder that discards everything.
type Nop struct{}

func (Nop) ObserveProbe(string, string, time.Duration) {}
func (Nop) AddPorts(string, int) {}
func (Nop) DNSLookup(string) {}
func (Nop) CacheOperation(string, string) {}
func (Nop) SetActiveScans(int) {}
func (Nop) SessionTransition(string, string) {}
func (Nop) ObserveHTTP(string, string, string, time.Duration) {}

// OrNop returns r, or Nop when r is nil.
func OrNop(r Recorder) Recorder {
	if r == nil {
		return Nop{}
	}
	return r
}

var (
	_ Recorder = Nop{}
	_ Recorder = (*PrometheusMetrics)(nil)
)
