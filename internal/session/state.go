package session

import (
	"fmt"
	"net/netip"

	"github.com/anstrom/ipscannr/internal/errors"
	"github.com/anstrom/ipscannr/internal/models"
)

// EventType distinguishes run events.
type EventType int

const (
	// EventHostDiscovered carries one probed host, enriched when alive.
	EventHostDiscovered EventType = iota
	// EventScanComplete is the last event of a run that was not paused.
	EventScanComplete
)

// String returns the event name used on the wire.
func (t EventType) String() string {
	switch t {
	case EventHostDiscovered:
		return "host"
	case EventScanComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (t EventType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *EventType) UnmarshalText(b []byte) error {
	v, err := ParseEventType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// ParseEventType parses an event name as produced by String.
func ParseEventType(name string) (EventType, error) {
	switch name {
	case "host":
		return EventHostDiscovered, nil
	case "complete":
		return EventScanComplete, nil
	default:
		return EventHostDiscovered, fmt.Errorf("unknown event type %q", name)
	}
}

// Event reports progress of a run.
type Event struct {
	Type      EventType         `json:"type"`
	RunID     string            `json:"run_id"`
	Host      models.HostRecord `json:"host,omitzero"`
	Completed int               `json:"completed"`
	Total     int               `json:"total"`
	State     State             `json:"state"`
}

// Snapshot is a consistent copy of the session.
type Snapshot struct {
	State     State               `json:"state"`
	RunID     string              `json:"run_id,omitempty"`
	Range     string              `json:"range"`
	Total     int                 `json:"total"`
	Completed int                 `json:"completed"`
	Alive     int                 `json:"alive"`
	Progress  float64             `json:"progress"`
	Selected  *netip.Addr         `json:"selected,omitempty"`
	Hosts     []models.HostRecord `json:"hosts"`
}

// Snapshot copies the current state and host list.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		State:     s.state,
		RunID:     s.runID,
		Range:     s.rangeKey,
		Total:     s.total,
		Completed: s.completed,
		Alive:     models.CountAlive(s.hosts),
		Progress:  progress(s.completed, s.total),
		Hosts:     cloneHosts(s.hosts),
	}
	if s.selected != nil {
		sel := *s.selected
		snap.Selected = &sel
	}
	return snap
}

// State returns the lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// RangeKey returns the range text of the current or last run.
func (s *Session) RangeKey() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rangeKey
}

// Progress returns completed/total in [0, 1].
func (s *Session) Progress() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return progress(s.completed, s.total)
}

func progress(completed, total int) float64 {
	if total <= 0 {
		return 0
	}
	p := float64(completed) / float64(total)
	if p > 1 {
		return 1
	}
	return p
}

// Summary describes the host list as "N hosts (M online)".
func (s *Session) Summary() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fmt.Sprintf("%d hosts (%d online)", len(s.hosts), models.CountAlive(s.hosts))
}

// Host returns a copy of the record for ip.
func (s *Session) Host(ip netip.Addr) (models.HostRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[ip]
	if !ok {
		return models.HostRecord{}, false
	}
	return s.hosts[i].Clone(), true
}

// Select marks ip as the selected host.
func (s *Session) Select(ip netip.Addr) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.index[ip]; !ok {
		return errors.ErrHostNotFound(ip.String())
	}
	s.selected = &ip
	return nil
}

// Selected returns the selected host address.
func (s *Session) Selected() (netip.Addr, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.selected == nil {
		return netip.Addr{}, false
	}
	return *s.selected, true
}
