package platform

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/carlosrabelo/vlansync/domain/entities"
)

func TestGet(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"ios", "ios"},
		{"IoS", "ios"},
		{"  dmos ", "dmos"},
		{"DMOS", "dmos"},
		{" OpenConfig ", "openconfig"},
		{"auto", ""},
		{"junos", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			driver, err := Get(tt.input)
			if tt.want == "" {
				if !errors.Is(err, entities.ErrUnknownPlatform) {
					t.Errorf("Get(%q): expected ErrUnknownPlatform, got %v", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Get(%q): %v", tt.input, err)
			}
			if driver.Name() != tt.want {
				t.Errorf("Get(%q) = %s, want %s", tt.input, driver.Name(), tt.want)
			}
		})
	}
}

// Every registered driver must be able to render any change the differ
// produces and must read one VLAN at a time.
func TestDrivers_Contract(t *testing.T) {
	kinds := []entities.ChangeKind{
		entities.ChangeCreate,
		entities.ChangeSetName,
		entities.ChangeSetShutdown,
		entities.ChangeDelete,
	}

	drivers := Available()
	if len(drivers) != 3 {
		t.Fatalf("expected 3 registered drivers, got %d", len(drivers))
	}
	for _, driver := range drivers {
		t.Run(driver.Name(), func(t *testing.T) {
			templates := driver.Templates()
			for _, kind := range kinds {
				tmpl, ok := templates[kind]
				if !ok {
					t.Errorf("no template for %s", kind)
					continue
				}
				if cmd := tmpl(44, entities.Change{Kind: kind, Name: "users"}); strings.TrimSpace(cmd) == "" {
					t.Errorf("template for %s rendered an empty command", kind)
				}
			}

			if cmd := driver.ReadVLANCommand(44); !strings.Contains(cmd, "44") {
				t.Errorf("read command %q does not select vlan 44", cmd)
			}

			enter, exit := driver.Framing(44, nil)
			if len(enter) != 0 || len(exit) != 0 {
				t.Errorf("empty change set framed as %v / %v", enter, exit)
			}

			if driver.IsCommandError("") {
				t.Error("empty output classified as an error")
			}
		})
	}
}

func TestAvailable_ReturnsCopy(t *testing.T) {
	drivers := Available()
	drivers[0] = nil
	if Available()[0] == nil {
		t.Error("Available exposed the registry slice")
	}
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name    string
		banner  string
		err     error
		want    string
		wantErr bool
	}{
		{name: "ios", banner: "Cisco IOS Software, C2960 Software (C2960-LANBASEK9-M)", want: "ios"},
		{name: "dmos", banner: "DATACOM DmOS 5.2.0", want: "dmos"},
		{name: "unknown banner", banner: "Arista vEOS", wantErr: true},
		{name: "connect failure", err: errors.New("connection refused"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &MockSwitchRepository{response: tt.banner, err: tt.err}
			driver, err := Detect(context.Background(), repo)
			if tt.wantErr {
				if !errors.Is(err, entities.ErrPlatformNotDetected) {
					t.Errorf("expected ErrPlatformNotDetected, got %v", err)
				}
				if driver != nil {
					t.Errorf("expected no driver, got %s", driver.Name())
				}
				if tt.err != nil && !strings.Contains(err.Error(), tt.err.Error()) {
					t.Errorf("error %q does not carry the cause", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if driver.Name() != tt.want {
				t.Errorf("Detect() = %s, want %s", driver.Name(), tt.want)
			}
			if !repo.connected {
				t.Error("Detect should connect the repository")
			}
		})
	}
}

// MockSwitchRepository answers every command with a fixed banner.
type MockSwitchRepository struct {
	connected bool
	response  string
	err       error
}

func (m *MockSwitchRepository) Connect(ctx context.Context) error {
	if m.err != nil {
		return m.err
	}
	m.connected = true
	return nil
}

func (m *MockSwitchRepository) Disconnect() {
	m.connected = false
}

func (m *MockSwitchRepository) ExecuteCommand(ctx context.Context, cmd string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return m.response, nil
}

func (m *MockSwitchRepository) IsConnected() bool {
	return m.connected
}
