package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/carlosrabelo/vlansync/domain/entities"
	"github.com/carlosrabelo/vlansync/infrastructure/transport"
)

type vlanState struct {
	name     string
	shutdown bool
}

// MockIOSClient implements transport.Client and answers like an IOS switch.
type MockIOSClient struct {
	mu           sync.Mutex
	connected    bool
	connectError error
	banner       string
	vlans        map[int]*vlanState
	current      int
	executedCmds []string
	onExecute    func()
}

func newMockIOSClient() *MockIOSClient {
	return &MockIOSClient{
		banner: "Cisco IOS Software, C2960 Software (C2960-LANBASEK9-M), Version 15.0(2)SE11",
		vlans:  map[int]*vlanState{},
	}
}

func (m *MockIOSClient) Connect(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.connectError != nil {
		return m.connectError
	}
	m.connected = true
	return nil
}

func (m *MockIOSClient) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = false
}

func (m *MockIOSClient) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *MockIOSClient) ExecuteCommand(_ context.Context, cmd string) (string, error) {
	if m.onExecute != nil {
		m.onExecute()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.executedCmds = append(m.executedCmds, cmd)

	fields := strings.Fields(cmd)
	switch {
	case cmd == "show version":
		return m.banner, nil
	case strings.HasPrefix(cmd, "show vlan id "):
		id, _ := strconv.Atoi(fields[3])
		return m.render(id), nil
	case cmd == "configure terminal", cmd == "end":
		m.current = 0
	case cmd == "write memory":
		return "Building configuration...\n[OK]", nil
	case len(fields) == 2 && fields[0] == "vlan":
		id, _ := strconv.Atoi(fields[1])
		if _, ok := m.vlans[id]; !ok {
			m.vlans[id] = &vlanState{name: fmt.Sprintf("VLAN%04d", id)}
		}
		m.current = id
	case len(fields) == 3 && fields[0] == "no" && fields[1] == "vlan":
		id, _ := strconv.Atoi(fields[2])
		delete(m.vlans, id)
	case fields[0] == "name" && m.current != 0:
		m.vlans[m.current].name = strings.TrimPrefix(cmd, "name ")
	case cmd == "shutdown" && m.current != 0:
		m.vlans[m.current].shutdown = true
	case cmd == "no shutdown" && m.current != 0:
		m.vlans[m.current].shutdown = false
	default:
		return cmd + "\n% Invalid input detected at '^' marker.", nil
	}
	return "", nil
}

func (m *MockIOSClient) render(vlanID int) string {
	v, ok := m.vlans[vlanID]
	if !ok {
		return fmt.Sprintf("VLAN id %d not found in current VLAN database", vlanID)
	}
	status := "active"
	if v.shutdown {
		status = "act/lshut"
	}
	return fmt.Sprintf("VLAN Name                             Status    Ports\n"+
		"---- -------------------------------- --------- -------------------------------\n"+
		"%-4d %-32s %-9s\n", vlanID, v.name, status)
}

func (m *MockIOSClient) configCommands() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, cmd := range m.executedCmds {
		if !strings.HasPrefix(cmd, "show ") {
			out = append(out, cmd)
		}
	}
	return out
}

func factoryFor(clients map[string]*MockIOSClient) SessionFactory {
	return func(cfg entities.SwitchConfig) Device {
		return transport.NewSession(clients[cfg.Target], nil, cfg.Target)
	}
}

func switchConfig(target string, vlans ...entities.DesiredState) entities.SwitchConfig {
	return entities.SwitchConfig{
		Target:         target,
		Platform:       "ios",
		Transport:      "telnet",
		Username:       "admin",
		Password:       "password",
		CommandTimeout: time.Second,
		VLANs:          vlans,
	}
}

func TestFleetService_ApplyConverges(t *testing.T) {
	sw1 := newMockIOSClient()
	sw2 := newMockIOSClient()
	sw2.vlans[44] = &vlanState{name: "old", shutdown: true}
	clients := map[string]*MockIOSClient{"10.0.0.1": sw1, "10.0.0.2": sw2}

	fleet := NewFleetServiceWithFactory([]entities.SwitchConfig{
		switchConfig("10.0.0.1", entities.DesiredState{VLANID: 44, Shutdown: entities.BoolPtr(true)}),
		switchConfig("10.0.0.2", entities.DesiredState{VLANID: 44, VLANName: entities.StringPtr("testvlansoitis"), Shutdown: entities.BoolPtr(false)}),
	}, 2, factoryFor(clients))

	report, err := fleet.Apply(context.Background(), "")
	if err != nil {
		t.Fatalf("Apply() returned error: %v", err)
	}
	if report.Failed() {
		t.Fatalf("expected success, got %+v", report)
	}
	if len(report.Switches) != 2 || report.Switches[0].Target != "10.0.0.1" || report.Switches[1].Target != "10.0.0.2" {
		t.Fatalf("reports must follow configuration order, got %+v", report.Switches)
	}
	for _, sw := range report.Switches {
		if sw.Platform != "ios" {
			t.Errorf("%s: expected platform ios, got %q", sw.Target, sw.Platform)
		}
	}

	summary := report.Summary()
	if summary.Converged != 2 || summary.Changed != 2 || summary.Failed != 0 || summary.Switches != 2 {
		t.Errorf("unexpected summary %+v", summary)
	}

	if v := sw1.vlans[44]; v == nil || !v.shutdown {
		t.Errorf("vlan 44 on sw1 = %+v, want created and shut down", v)
	}
	if v := sw2.vlans[44]; v.name != "testvlansoitis" || v.shutdown {
		t.Errorf("vlan 44 on sw2 = %+v", v)
	}

	// A second run finds nothing to do.
	report, _ = fleet.Apply(context.Background(), "")
	summary = report.Summary()
	if summary.Converged != 2 || summary.Changed != 0 {
		t.Errorf("second run should be a no-op, got %+v", summary)
	}
}

func TestFleetService_DryRunSendsNothing(t *testing.T) {
	sw := newMockIOSClient()
	cfg := switchConfig("10.0.0.1", entities.DesiredState{VLANID: 44, Shutdown: entities.BoolPtr(true)})
	cfg.Sandbox = true
	fleet := NewFleetServiceWithFactory([]entities.SwitchConfig{cfg}, 1, factoryFor(map[string]*MockIOSClient{"10.0.0.1": sw}))

	report, err := fleet.Apply(context.Background(), "10.0.0.1")
	if err != nil {
		t.Fatalf("Apply() returned error: %v", err)
	}
	if report.Failed() {
		t.Fatalf("dry run should not fail: %+v", report)
	}
	res := report.Switches[0].Results[0]
	if res.State != entities.StatePlanned {
		t.Errorf("expected Planned, got %s", res.State)
	}
	if !report.Switches[0].DryRun {
		t.Error("report should be marked as dry run")
	}
	if want := []string{"configure terminal", "vlan 44", "shutdown", "end"}; strings.Join(res.Commands, "|") != strings.Join(want, "|") {
		t.Errorf("planned commands = %v, want %v", res.Commands, want)
	}
	if cmds := sw.configCommands(); len(cmds) != 0 {
		t.Errorf("dry run sent %v", cmds)
	}
	if report.Summary().Planned != 1 {
		t.Errorf("unexpected summary %+v", report.Summary())
	}
}

func TestFleetService_UnknownTarget(t *testing.T) {
	fleet := NewFleetServiceWithFactory([]entities.SwitchConfig{switchConfig("10.0.0.1")}, 1, factoryFor(nil))

	if _, err := fleet.Apply(context.Background(), "10.9.9.9"); !errors.Is(err, entities.ErrUnknownTarget) {
		t.Errorf("Apply() error = %v, want ErrUnknownTarget", err)
	}
	if _, err := fleet.Show(context.Background(), "10.9.9.9", 44); !errors.Is(err, entities.ErrUnknownTarget) {
		t.Errorf("Show() error = %v, want ErrUnknownTarget", err)
	}
}

func TestFleetService_ConnectFailureIsolated(t *testing.T) {
	down := newMockIOSClient()
	down.connectError = errors.New("connection refused")
	up := newMockIOSClient()
	clients := map[string]*MockIOSClient{"10.0.0.1": down, "10.0.0.2": up}

	fleet := NewFleetServiceWithFactory([]entities.SwitchConfig{
		switchConfig("10.0.0.1", entities.DesiredState{VLANID: 10}, entities.DesiredState{VLANID: 20}),
		switchConfig("10.0.0.2", entities.DesiredState{VLANID: 10}),
	}, 2, factoryFor(clients))

	report, _ := fleet.Apply(context.Background(), "")
	if !report.Failed() {
		t.Fatal("expected the fleet run to fail")
	}
	failed := report.Switches[0]
	if len(failed.Results) != 2 {
		t.Fatalf("every vlan should be attempted, got %d results", len(failed.Results))
	}
	for _, res := range failed.Results {
		if !errors.Is(res.Err, entities.ErrTransport) {
			t.Errorf("vlan %d: expected transport error, got %v", res.VLANID, res.Err)
		}
	}
	if report.Switches[1].Failed() {
		t.Errorf("healthy switch should converge, got %+v", report.Switches[1])
	}
	if _, ok := up.vlans[10]; !ok {
		t.Error("vlan 10 should exist on the healthy switch")
	}
}

func TestFleetService_AutoDetect(t *testing.T) {
	sw := newMockIOSClient()
	cfg := switchConfig("10.0.0.1", entities.DesiredState{VLANID: 44})
	cfg.Platform = "auto"
	fleet := NewFleetServiceWithFactory([]entities.SwitchConfig{cfg}, 1, factoryFor(map[string]*MockIOSClient{"10.0.0.1": sw}))

	report, _ := fleet.Apply(context.Background(), "")
	if report.Failed() {
		t.Fatalf("expected success, got %+v", report.Switches[0])
	}
	if report.Switches[0].Platform != "ios" {
		t.Errorf("expected detected platform ios, got %q", report.Switches[0].Platform)
	}
}

func TestFleetService_AutoDetectFails(t *testing.T) {
	sw := newMockIOSClient()
	sw.banner = "Linux 6.1 generic"
	cfg := switchConfig("10.0.0.1", entities.DesiredState{VLANID: 44})
	cfg.Platform = "auto"
	fleet := NewFleetServiceWithFactory([]entities.SwitchConfig{cfg}, 1, factoryFor(map[string]*MockIOSClient{"10.0.0.1": sw}))

	report, _ := fleet.Apply(context.Background(), "")
	got := report.Switches[0]
	if !errors.Is(got.Err, entities.ErrPlatformNotDetected) {
		t.Errorf("expected ErrPlatformNotDetected, got %v", got.Err)
	}
	if got.Error == "" || len(got.Results) != 0 {
		t.Errorf("unexpected report %+v", got)
	}
	if report.Summary().Failed != 1 {
		t.Errorf("switch failure should be counted once, got %+v", report.Summary())
	}
}

func TestFleetService_UnknownPlatform(t *testing.T) {
	cfg := switchConfig("10.0.0.1", entities.DesiredState{VLANID: 44})
	cfg.Platform = "junos"
	fleet := NewFleetServiceWithFactory([]entities.SwitchConfig{cfg}, 1, factoryFor(map[string]*MockIOSClient{"10.0.0.1": newMockIOSClient()}))

	report, _ := fleet.Apply(context.Background(), "")
	if !errors.Is(report.Switches[0].Err, entities.ErrUnknownPlatform) {
		t.Errorf("expected ErrUnknownPlatform, got %v", report.Switches[0].Err)
	}
}

func TestFleetService_ParallelismLimit(t *testing.T) {
	var active, peak int32
	track := func() {
		n := atomic.AddInt32(&active, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&active, -1)
	}

	clients := map[string]*MockIOSClient{}
	var switches []entities.SwitchConfig
	for i := 1; i <= 6; i++ {
		target := fmt.Sprintf("10.0.0.%d", i)
		client := newMockIOSClient()
		client.onExecute = track
		clients[target] = client
		switches = append(switches, switchConfig(target, entities.DesiredState{VLANID: 44}))
	}

	fleet := NewFleetServiceWithFactory(switches, 2, factoryFor(clients))
	report, _ := fleet.Apply(context.Background(), "")
	if report.Failed() {
		t.Fatalf("unexpected failure %+v", report)
	}
	if p := atomic.LoadInt32(&peak); p > 2 {
		t.Errorf("expected at most 2 switches in flight, saw %d", p)
	}
}

func TestFleetService_CancelledContext(t *testing.T) {
	sw := newMockIOSClient()
	fleet := NewFleetServiceWithFactory([]entities.SwitchConfig{
		switchConfig("10.0.0.1", entities.DesiredState{VLANID: 10}, entities.DesiredState{VLANID: 20}),
	}, 1, factoryFor(map[string]*MockIOSClient{"10.0.0.1": sw}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report, _ := fleet.Apply(ctx, "")
	got := report.Switches[0]
	if !errors.Is(got.Err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", got.Err)
	}
	if len(sw.configCommands()) != 0 {
		t.Errorf("cancelled run sent %v", sw.configCommands())
	}
}

func TestFleetService_Show(t *testing.T) {
	sw := newMockIOSClient()
	sw.vlans[44] = &vlanState{name: "testvlansoitis", shutdown: true}
	fleet := NewFleetServiceWithFactory([]entities.SwitchConfig{switchConfig("10.0.0.1")}, 1,
		factoryFor(map[string]*MockIOSClient{"10.0.0.1": sw}))

	state, err := fleet.Show(context.Background(), "10.0.0.1", 44)
	if err != nil {
		t.Fatalf("Show() returned error: %v", err)
	}
	if state.Ensure != entities.EnsurePresent || state.VLANName != "testvlansoitis" || !state.Shutdown {
		t.Errorf("unexpected state %+v", state)
	}

	state, err = fleet.Show(context.Background(), "10.0.0.1", 45)
	if err != nil || state.Ensure != entities.EnsureAbsent {
		t.Errorf("Show(45) = %+v, %v; want absent", state, err)
	}

	if _, err := fleet.Show(context.Background(), "10.0.0.1", 5000); !errors.Is(err, entities.ErrInvalidDesiredState) {
		t.Errorf("Show(5000) error = %v", err)
	}
}

func TestOptionsFor(t *testing.T) {
	cfg := entities.SwitchConfig{
		Sandbox:        true,
		CommandTimeout: 10 * time.Second,
		VerifyTimeout:  3 * time.Second,
		VerifyInterval: 100 * time.Millisecond,
		SaveConfig:     true,
		StopOnError:    true,
	}
	opts := OptionsFor(cfg)
	if !opts.DryRun || opts.CallTimeout != 10*time.Second || opts.VerifyTimeout != 3*time.Second ||
		opts.VerifyInterval != 100*time.Millisecond || !opts.SaveConfig || !opts.StopOnError {
		t.Errorf("unexpected options %+v", opts)
	}
}

func TestReport_Summary(t *testing.T) {
	report := Report{Switches: []SwitchReport{
		{Target: "a", Results: []entities.ApplyResult{
			{State: entities.StateConverged, Converged: true, NoOp: true},
			{State: entities.StateConverged, Converged: true, Commands: []string{"vlan 44"}},
			{State: entities.StateFailed, Err: entities.ErrNotConverged},
		}},
		{Target: "b", Results: []entities.ApplyResult{{State: entities.StatePlanned, Commands: []string{"vlan 44"}}}},
		{Target: "c", Err: entities.ErrPlatformNotDetected},
	}}

	got := report.Summary()
	want := Summary{Converged: 2, Changed: 1, Planned: 1, Failed: 2, Switches: 3}
	if got != want {
		t.Errorf("Summary() = %+v, want %+v", got, want)
	}
	if !report.Failed() || report.Switches[1].Failed() {
		t.Error("unexpected Failed() flags")
	}
}
