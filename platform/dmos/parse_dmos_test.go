package dmos

import (
	"errors"
	"testing"

	"github.com/carlosrabelo/vlansync/domain/entities"
)

func TestParseDmOSVLAN(t *testing.T) {
	tests := []struct {
		name     string
		output   string
		expected entities.DeviceState
	}{
		{
			name:     "named active",
			output:   "VLAN 44 [users]: static, active\n  Untagged Ports: ethernet 1/1/1\n",
			expected: entities.DeviceState{VLANID: 44, Ensure: entities.EnsurePresent, VLANName: "users"},
		},
		{
			name:     "unnamed suspended",
			output:   "VLAN 44: static, suspended\n",
			expected: entities.DeviceState{VLANID: 44, Ensure: entities.EnsurePresent, Shutdown: true},
		},
		{
			name:     "shutdown status",
			output:   "VLAN 44 [lab]: static, shutdown\n",
			expected: entities.DeviceState{VLANID: 44, Ensure: entities.EnsurePresent, VLANName: "lab", Shutdown: true},
		},
		{
			name:     "other vlan only",
			output:   "VLAN 440 [x]: static, active\n",
			expected: entities.AbsentState(44),
		},
		{
			name:     "no entry",
			output:   "% No entries found.\n",
			expected: entities.AbsentState(44),
		},
		{
			name:     "error word in name",
			output:   "VLAN 44 [invalid-hosts]: static, active\n",
			expected: entities.DeviceState{VLANID: 44, Ensure: entities.EnsurePresent, VLANName: "invalid-hosts"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseDmOSVLAN(tt.output, 44)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("parseDmOSVLAN() = %+v, want %+v", got, tt.expected)
			}
		})
	}
}

func TestParseDmOSVLAN_Malformed(t *testing.T) {
	for _, output := range []string{
		"VLAN 44 [users] static active\n",
		"VLAN 44 [users]: static, exploding\n",
		"",
		"\n",
		"--More--\n",
		"  Untagged Ports: ethernet 1/1/1\n",
	} {
		if _, err := parseDmOSVLAN(output, 44); !errors.Is(err, entities.ErrParse) {
			t.Errorf("parseDmOSVLAN(%q) error = %v, want parse error", output, err)
		}
	}
}

func TestIsDmOSCommandError(t *testing.T) {
	tests := []struct {
		output string
		want   bool
	}{
		{"syntax error: unknown argument", true},
		{"show vlan 44\nError: element does not exist", true},
		{"% No entries found.", false},
		{"Aborted: 'interface vlan 5000' is out of range", true},
		{"VLAN 44 [users]: static, active", false},
		{"VLAN 44 [invalid-hosts]: static, active", false},
		{"VLAN 44 [incomplete]: static, active", false},
		{"VLAN 44 [error:lab]: static, suspended", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := isDmOSCommandError(tt.output); got != tt.want {
			t.Errorf("isDmOSCommandError(%q) = %v, want %v", tt.output, got, tt.want)
		}
	}
}

func TestDriverTemplatesAndFraming(t *testing.T) {
	d := New()
	tpl := d.Templates()
	if got := tpl[entities.ChangeCreate](44, entities.Change{Kind: entities.ChangeCreate}); got != "interface vlan 44" {
		t.Errorf("create rendered %q", got)
	}
	if got := tpl[entities.ChangeDelete](44, entities.Change{Kind: entities.ChangeDelete}); got != "no interface vlan 44" {
		t.Errorf("delete rendered %q", got)
	}
	enter, exit := d.Framing(44, entities.ChangeSet{{Kind: entities.ChangeSetShutdown, Shutdown: true}})
	if len(enter) != 2 || enter[1] != "interface vlan 44" || len(exit) != 1 {
		t.Errorf("unexpected framing %v %v", enter, exit)
	}
	if saves := d.SaveCommands(); len(saves) != 2 {
		t.Errorf("unexpected save commands %v", saves)
	}
}
