package session_test

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net"
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/anstrom/ipscannr/internal/discovery"
	"github.com/anstrom/ipscannr/internal/errors"
	"github.com/anstrom/ipscannr/internal/logging"
	"github.com/anstrom/ipscannr/internal/models"
	"github.com/anstrom/ipscannr/internal/scanning"
	"github.com/anstrom/ipscannr/internal/session"
	"github.com/anstrom/ipscannr/internal/session/mocks"
)

const eventTimeout = 5 * time.Second

// stepScanner emits one result per release, so tests control progress.
type stepScanner struct {
	mu       sync.Mutex
	calls    [][]netip.Addr
	releases []chan struct{}
}

func (f *stepScanner) Scan(ctx context.Context, addrs []netip.Addr) <-chan models.ProbeResult {
	release := make(chan struct{})
	f.mu.Lock()
	f.calls = append(f.calls, append([]netip.Addr(nil), addrs...))
	f.releases = append(f.releases, release)
	f.mu.Unlock()

	out := make(chan models.ProbeResult)
	go func() {
		defer close(out)
		for _, ip := range addrs {
			select {
			case <-release:
			case <-ctx.Done():
				return
			}
			select {
			case out <- models.OfflineResult(ip, models.MethodTCP):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func (f *stepScanner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *stepScanner) release(t *testing.T, call, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return f.callCount() > call }, eventTimeout, time.Millisecond)
	f.mu.Lock()
	ch := f.releases[call]
	f.mu.Unlock()
	for i := 0; i < n; i++ {
		select {
		case ch <- struct{}{}:
		case <-time.After(eventTimeout):
			t.Fatalf("scanner call %d did not accept release %d", call, i)
		}
	}
}

func next(t *testing.T, events <-chan session.Event) session.Event {
	t.Helper()
	select {
	case ev, ok := <-events:
		require.True(t, ok, "event stream closed early")
		return ev
	case <-time.After(eventTimeout):
		t.Fatal("timed out waiting for event")
		return session.Event{}
	}
}

func drain(t *testing.T, events <-chan session.Event) []session.Event {
	t.Helper()
	var out []session.Event
	timeout := time.After(eventTimeout)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatal("timed out draining events")
			return out
		}
	}
}

func staticScanner(results ...models.ProbeResult) <-chan models.ProbeResult {
	ch := make(chan models.ProbeResult, len(results))
	for _, r := range results {
		ch <- r
	}
	close(ch)
	return ch
}

func aliveResult(ip string) models.ProbeResult {
	rtt := 2 * time.Millisecond
	return models.ProbeResult{
		IP:     netip.MustParseAddr(ip),
		Alive:  true,
		RTT:    &rtt,
		Method: models.MethodICMP,
		Status: models.StatusOnline,
	}
}

func quietOpts(opts ...session.Option) []session.Option {
	return append([]session.Option{session.WithLogger(logging.Discard())}, opts...)
}

func TestPauseResumeRestartsFromFullList(t *testing.T) {
	ctrl := gomock.NewController(t)
	cache := mocks.NewMockCacheStore(ctrl)
	cache.EXPECT().Save("10.0.0.0/29", gomock.Len(8)).Times(1)

	scanner := &stepScanner{}
	s := session.New(scanner, session.DefaultConfig(), quietOpts(session.WithCache(cache))...)
	ctx := context.Background()

	events, err := s.Start(ctx, "10.0.0.0/29")
	require.NoError(t, err)
	assert.Equal(t, session.StateScanning, s.State())

	scanner.release(t, 0, 3)
	for i := 1; i <= 3; i++ {
		ev := next(t, events)
		assert.Equal(t, session.EventHostDiscovered, ev.Type)
		assert.Equal(t, i, ev.Completed)
		assert.Equal(t, 8, ev.Total)
	}

	require.NoError(t, s.Pause())
	assert.Equal(t, session.StatePaused, s.State())
	for _, ev := range drain(t, events) {
		assert.NotEqual(t, session.EventScanComplete, ev.Type, "a paused run does not complete")
	}
	assert.Equal(t, 3, s.Snapshot().Completed)

	err = s.Pause()
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeInvalidState))

	events, err = s.Resume(ctx)
	require.NoError(t, err)
	snap := s.Snapshot()
	assert.Equal(t, session.StateScanning, snap.State)
	assert.Equal(t, 0, snap.Completed, "resume restarts the count")
	assert.Equal(t, 8, snap.Total)
	assert.Empty(t, snap.Hosts)

	require.Eventually(t, func() bool { return scanner.callCount() == 2 }, eventTimeout, time.Millisecond)
	scanner.mu.Lock()
	assert.Equal(t, scanner.calls[0], scanner.calls[1], "resume probes the full original list")
	scanner.mu.Unlock()

	scanner.release(t, 1, 8)
	got := drain(t, events)
	require.Len(t, got, 9)
	last := got[len(got)-1]
	assert.Equal(t, session.EventScanComplete, last.Type)
	assert.Equal(t, session.StateCompleted, last.State)
	assert.Equal(t, 8, last.Completed)

	assert.Equal(t, session.StateCompleted, s.State())
	_, err = s.Resume(ctx)
	assert.True(t, errors.IsCode(err, errors.CodeInvalidState))
}

// unreachableDialer fails every connect like a filtered port.
type unreachableDialer struct{}

func (unreachableDialer) DialContext(context.Context, string, string) (net.Conn, error) {
	return nil, &net.OpError{Op: "dial", Net: "tcp4", Err: stderrors.New("i/o timeout")}
}

func TestUnreachableSubnetCompletesOffline(t *testing.T) {
	engine := discovery.NewEngine(
		discovery.Config{Timeout: 20 * time.Millisecond, Retries: 0, Concurrency: 4},
		discovery.WithoutICMP(),
		discovery.WithDialer(unreachableDialer{}),
		discovery.WithLogger(logging.Discard()),
	)
	s := session.New(engine, session.DefaultConfig(), quietOpts()...)

	events, err := s.Start(context.Background(), "192.168.50.0/30")
	require.NoError(t, err)
	got := drain(t, events)
	require.NotEmpty(t, got)
	assert.Equal(t, session.EventScanComplete, got[len(got)-1].Type)

	snap := s.Snapshot()
	assert.Equal(t, session.StateCompleted, snap.State)
	assert.Equal(t, 4, snap.Total)
	assert.Equal(t, snap.Total, snap.Completed)
	assert.Equal(t, 1.0, snap.Progress)
	require.Len(t, snap.Hosts, 4)

	want := []string{"192.168.50.0", "192.168.50.1", "192.168.50.2", "192.168.50.3"}
	for i, h := range snap.Hosts {
		assert.Equal(t, want[i], h.IP.String())
		assert.Equal(t, models.StatusOffline, h.Status)
		assert.False(t, h.Alive)
	}
	assert.Equal(t, "4 hosts (0 online)", s.Summary())
}

func TestEnrichmentOfAliveHosts(t *testing.T) {
	ctrl := gomock.NewController(t)
	scanner := mocks.NewMockScanner(ctrl)
	resolver := mocks.NewMockHostnameResolver(ctrl)
	macs := mocks.NewMockMACLookuper(ctrl)
	cache := mocks.NewMockCacheStore(ctrl)

	alive := netip.MustParseAddr("10.0.0.2")
	vendor := "Synology"
	scanner.EXPECT().Scan(gomock.Any(), gomock.Len(2)).
		Return(staticScanner(aliveResult("10.0.0.2"), models.OfflineResult(netip.MustParseAddr("10.0.0.1"), models.MethodICMP)))
	resolver.EXPECT().Resolve(gomock.Any(), alive).Return("nas.lan", true)
	macs.EXPECT().Lookup(gomock.Any(), alive).Return(models.MACInfo{Address: "00:11:32:AA:BB:CC", Vendor: &vendor}, true)
	cache.EXPECT().Save("10.0.0.1-2", gomock.Any()).Do(func(_ string, hosts []models.HostRecord) {
		require.Len(t, hosts, 2)
		assert.Equal(t, "10.0.0.1", hosts[0].IP.String())
	})

	s := session.New(scanner, session.DefaultConfig(), quietOpts(session.WithResolver(resolver), session.WithMACLookuper(macs), session.WithCache(cache))...)
	events, err := s.Start(context.Background(), "10.0.0.1-2")
	require.NoError(t, err)
	drain(t, events)

	h, ok := s.Host(alive)
	require.True(t, ok)
	require.NotNil(t, h.Hostname)
	assert.Equal(t, "nas.lan", *h.Hostname)
	require.NotNil(t, h.MAC)
	assert.Equal(t, "Synology", *h.MAC.Vendor)

	off, ok := s.Host(netip.MustParseAddr("10.0.0.1"))
	require.True(t, ok)
	assert.Nil(t, off.Hostname)
	assert.Nil(t, off.MAC)
	assert.Equal(t, "2 hosts (1 online)", s.Summary())
}

func TestEnrichmentFailureLeavesFieldsEmpty(t *testing.T) {
	ctrl := gomock.NewController(t)
	scanner := mocks.NewMockScanner(ctrl)
	resolver := mocks.NewMockHostnameResolver(ctrl)

	scanner.EXPECT().Scan(gomock.Any(), gomock.Any()).Return(staticScanner(aliveResult("10.0.0.7")))
	resolver.EXPECT().Resolve(gomock.Any(), gomock.Any()).Return("", false)

	cfg := session.DefaultConfig()
	cfg.DetectMAC = false
	s := session.New(scanner, cfg, quietOpts(session.WithResolver(resolver))...)
	events, err := s.Start(context.Background(), "10.0.0.7")
	require.NoError(t, err)
	drain(t, events)

	h, ok := s.Host(netip.MustParseAddr("10.0.0.7"))
	require.True(t, ok)
	assert.True(t, h.Alive)
	assert.Nil(t, h.Hostname)
}

func TestStartInvalidRangeFailsFast(t *testing.T) {
	ctrl := gomock.NewController(t)
	scanner := mocks.NewMockScanner(ctrl)
	s := session.New(scanner, session.DefaultConfig(), quietOpts()...)

	for _, input := range []string{"", "10.0.0.10-10.0.0.5", "not-an-ip"} {
		_, err := s.Start(context.Background(), input)
		require.Error(t, err, input)
		assert.True(t, errors.IsParseError(err), input)
	}
	assert.Equal(t, session.StateIdle, s.State())
}

func TestStartEnforcesAddressLimit(t *testing.T) {
	ctrl := gomock.NewController(t)
	scanner := mocks.NewMockScanner(ctrl)

	cfg := session.DefaultConfig()
	cfg.MaxAddresses = 8
	s := session.New(scanner, cfg, quietOpts()...)

	_, err := s.Start(context.Background(), "10.0.0.0/28")
	require.Error(t, err)
	assert.True(t, errors.IsParseError(err))
	assert.Contains(t, err.Error(), "limit is 8")
	assert.Equal(t, session.StateIdle, s.State())

	_, err = s.Start(context.Background(), "10.0.0.0/8")
	assert.True(t, errors.IsParseError(err))

	scanner.EXPECT().Scan(gomock.Any(), gomock.Len(8)).Return(staticScanner())
	events, err := s.Start(context.Background(), "10.0.0.0/29")
	require.NoError(t, err)
	drain(t, events)
}

func TestStartWithoutLimitAcceptsLargeNetworks(t *testing.T) {
	ctrl := gomock.NewController(t)
	scanner := mocks.NewMockScanner(ctrl)
	scanner.EXPECT().Scan(gomock.Any(), gomock.Len(1<<17)).Return(staticScanner())

	cfg := session.DefaultConfig()
	cfg.MaxAddresses = 0
	s := session.New(scanner, cfg, quietOpts()...)

	events, err := s.Start(context.Background(), "10.0.0.0/15")
	require.NoError(t, err)
	assert.Equal(t, 1<<17, s.Snapshot().Total)
	drain(t, events)
}

func TestScanPortsForSelected(t *testing.T) {
	ctrl := gomock.NewController(t)
	scanner := mocks.NewMockScanner(ctrl)
	ports := mocks.NewMockPortScanner(ctrl)

	alive := netip.MustParseAddr("10.0.0.2")
	offline := netip.MustParseAddr("10.0.0.1")
	scanner.EXPECT().Scan(gomock.Any(), gomock.Any()).
		Return(staticScanner(aliveResult("10.0.0.2"), models.OfflineResult(offline, models.MethodTCP)))
	ports.EXPECT().ScanPorts(gomock.Any(), alive, scanning.CommonPorts).Return([]scanning.PortResult{
		{Port: 22, Open: true, Service: "ssh"},
		{Port: 80, Open: false, Service: "http"},
		{Port: 443, Open: true, Service: "https"},
	})

	cfg := session.DefaultConfig()
	cfg.ResolveHostnames = false
	cfg.DetectMAC = false
	s := session.New(scanner, cfg, quietOpts(session.WithPortScanner(ports))...)

	_, err := s.ScanPortsForSelected(context.Background(), netip.Addr{})
	assert.True(t, errors.IsCode(err, errors.CodeHostNotFound), "nothing selected")

	events, err := s.Start(context.Background(), "10.0.0.1-2")
	require.NoError(t, err)
	drain(t, events)

	require.NoError(t, s.Select(alive))
	sel, ok := s.Selected()
	require.True(t, ok)
	assert.Equal(t, alive, sel)

	results, err := s.ScanPortsForSelected(context.Background(), netip.Addr{})
	require.NoError(t, err)
	assert.Len(t, results, 3)

	h, _ := s.Host(alive)
	assert.Equal(t, []uint16{22, 443}, h.OpenPorts)
	assert.True(t, h.PortsScanned)

	results, err = s.ScanPortsForSelected(context.Background(), offline)
	require.NoError(t, err)
	assert.Nil(t, results, "hosts that are not alive are skipped")

	_, err = s.ScanPortsForSelected(context.Background(), netip.MustParseAddr("10.9.9.9"))
	assert.True(t, errors.IsCode(err, errors.CodeHostNotFound))
	assert.True(t, errors.IsCode(s.Select(netip.MustParseAddr("10.9.9.9")), errors.CodeHostNotFound))
}

func TestLoadCached(t *testing.T) {
	ctrl := gomock.NewController(t)
	cache := mocks.NewMockCacheStore(ctrl)

	at := int64(1_700_000_000)
	cached := []models.HostRecord{
		{IP: netip.MustParseAddr("10.0.0.9"), Alive: true, CachedAt: &at, OpenPorts: []uint16{}},
		{IP: netip.MustParseAddr("10.0.0.3"), CachedAt: &at, OpenPorts: []uint16{}},
	}
	cache.EXPECT().Load("10.0.0.0/28").Return(cached)
	cache.EXPECT().Load("10.1.0.0/28").Return(nil)

	scanner := &stepScanner{}
	s := session.New(scanner, session.DefaultConfig(), quietOpts(session.WithCache(cache))...)

	n, err := s.LoadCached("10.0.0.0/28")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	snap := s.Snapshot()
	assert.Equal(t, session.StateIdle, snap.State)
	assert.Equal(t, "10.0.0.0/28", snap.Range)
	require.Len(t, snap.Hosts, 2)
	assert.Equal(t, "10.0.0.3", snap.Hosts[0].IP.String())
	assert.Equal(t, "2 hosts (1 online)", s.Summary())

	n, err = s.LoadCached("10.1.0.0/28")
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, "10.0.0.0/28", s.RangeKey(), "a cache miss keeps the current list")

	events, err := s.Start(context.Background(), "10.0.0.0/30")
	require.NoError(t, err)
	_, err = s.LoadCached("10.0.0.0/28")
	assert.True(t, errors.IsCode(err, errors.CodeInvalidState))

	require.NoError(t, s.Pause())
	drain(t, events)
}

func TestCanceledParentLeavesRunPaused(t *testing.T) {
	scanner := &stepScanner{}
	s := session.New(scanner, session.DefaultConfig(), quietOpts()...)

	ctx, cancel := context.WithCancel(context.Background())
	events, err := s.Start(ctx, "10.0.0.0/30")
	require.NoError(t, err)
	scanner.release(t, 0, 1)
	next(t, events)

	cancel()
	drain(t, events)
	assert.Equal(t, session.StatePaused, s.State())
	assert.InDelta(t, 0.25, s.Progress(), 0.001)
}

func TestStartSupersedesActiveRun(t *testing.T) {
	scanner := &stepScanner{}
	s := session.New(scanner, session.DefaultConfig(), quietOpts()...)

	first, err := s.Start(context.Background(), "10.0.0.0/30")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return scanner.callCount() == 1 }, eventTimeout, time.Millisecond)
	second, err := s.Start(context.Background(), "10.0.1.0/31")
	require.NoError(t, err)

	drain(t, first)
	scanner.release(t, 1, 2)
	got := drain(t, second)
	require.Len(t, got, 3)
	assert.Equal(t, session.StateCompleted, s.State())
	assert.Equal(t, "10.0.1.0/31", s.RangeKey())
	assert.Equal(t, 2, s.Snapshot().Total)
}

func TestStateStrings(t *testing.T) {
	assert.Equal(t, "idle", session.StateIdle.String())
	assert.Equal(t, "scanning", session.StateScanning.String())
	assert.Equal(t, "paused", session.StatePaused.String())
	assert.Equal(t, "completed", session.StateCompleted.String())
	assert.Equal(t, "host", session.EventHostDiscovered.String())
	assert.Equal(t, "complete", session.EventScanComplete.String())
}

func TestStateAndEventJSONRoundTrip(t *testing.T) {
	for _, st := range []session.State{session.StateIdle, session.StateScanning, session.StatePaused, session.StateCompleted} {
		data, err := json.Marshal(st)
		require.NoError(t, err)
		var got session.State
		require.NoError(t, json.Unmarshal(data, &got), string(data))
		assert.Equal(t, st, got)
	}

	ev := session.Event{
		Type:      session.EventScanComplete,
		RunID:     "run-1",
		Completed: 4,
		Total:     4,
		State:     session.StateCompleted,
	}
	data, err := json.Marshal(ev)
	require.NoError(t, err)
	var back session.Event
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, session.EventScanComplete, back.Type)
	assert.Equal(t, session.StateCompleted, back.State)
	assert.Equal(t, 4, back.Completed)

	var bad session.State
	assert.Error(t, json.Unmarshal([]byte(`"sleeping"`), &bad))
	_, err = session.ParseEventType("bogus")
	assert.Error(t, err)
}
