package services

import (
	"reflect"
	"testing"

	"github.com/carlosrabelo/vlansync/domain/entities"
)

func present(name string, shutdown bool) entities.DeviceState {
	return entities.DeviceState{VLANID: 44, Ensure: entities.EnsurePresent, VLANName: name, Shutdown: shutdown}
}

func TestDiff(t *testing.T) {
	name := entities.StringPtr
	flag := entities.BoolPtr

	tests := []struct {
		name     string
		desired  entities.DesiredState
		actual   entities.DeviceState
		expected entities.ChangeSet
	}{
		{
			name:     "create with shutdown",
			desired:  entities.DesiredState{VLANID: 44, Ensure: entities.EnsurePresent, Shutdown: flag(true)},
			actual:   entities.AbsentState(44),
			expected: entities.ChangeSet{{Kind: entities.ChangeCreate}, {Kind: entities.ChangeSetShutdown, Shutdown: true}},
		},
		{
			name:    "create with every attribute",
			desired: entities.DesiredState{VLANID: 44, VLANName: name("users"), Shutdown: flag(false)},
			actual:  entities.AbsentState(44),
			expected: entities.ChangeSet{
				{Kind: entities.ChangeCreate},
				{Kind: entities.ChangeSetName, Name: "users"},
				{Kind: entities.ChangeSetShutdown, Shutdown: false},
			},
		},
		{
			name:     "create leaves unmanaged attributes at device defaults",
			desired:  entities.DesiredState{VLANID: 44},
			actual:   entities.AbsentState(44),
			expected: entities.ChangeSet{{Kind: entities.ChangeCreate}},
		},
		{
			name:    "edit",
			desired: entities.DesiredState{VLANID: 44, Ensure: entities.EnsurePresent, VLANName: name("testvlansoitis"), Shutdown: flag(false)},
			actual:  present("old", true),
			expected: entities.ChangeSet{
				{Kind: entities.ChangeSetName, Name: "testvlansoitis"},
				{Kind: entities.ChangeSetShutdown, Shutdown: false},
			},
		},
		{
			name:     "edit only differing attribute",
			desired:  entities.DesiredState{VLANID: 44, VLANName: name("users"), Shutdown: flag(true)},
			actual:   present("users", false),
			expected: entities.ChangeSet{{Kind: entities.ChangeSetShutdown, Shutdown: true}},
		},
		{
			name:    "managed empty name differs from default",
			desired: entities.DesiredState{VLANID: 44, VLANName: name("")},
			actual:  present("VLAN0044", false),
			expected: entities.ChangeSet{
				{Kind: entities.ChangeSetName, Name: ""},
			},
		},
		{
			name:     "already converged",
			desired:  entities.DesiredState{VLANID: 44, VLANName: name("users"), Shutdown: flag(false)},
			actual:   present("users", false),
			expected: nil,
		},
		{
			name:     "unmanaged attributes ignored",
			desired:  entities.DesiredState{VLANID: 44},
			actual:   present("anything", true),
			expected: nil,
		},
		{
			name:     "delete",
			desired:  entities.DesiredState{VLANID: 44, Ensure: entities.EnsureAbsent},
			actual:   present("users", false),
			expected: entities.ChangeSet{{Kind: entities.ChangeDelete}},
		},
		{
			name:     "delete ignores attributes",
			desired:  entities.DesiredState{VLANID: 44, Ensure: entities.EnsureAbsent, VLANName: name("x"), Shutdown: flag(true)},
			actual:   present("users", false),
			expected: entities.ChangeSet{{Kind: entities.ChangeDelete}},
		},
		{
			name:     "already absent",
			desired:  entities.DesiredState{VLANID: 44, Ensure: entities.EnsureAbsent, VLANName: name("x")},
			actual:   entities.AbsentState(44),
			expected: nil,
		},
		{
			name:     "default vlan is not special",
			desired:  entities.DesiredState{VLANID: 1, Ensure: entities.EnsureAbsent},
			actual:   entities.DeviceState{VLANID: 1, Ensure: entities.EnsurePresent, VLANName: "default"},
			expected: entities.ChangeSet{{Kind: entities.ChangeDelete}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Diff(tt.desired, tt.actual)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("Diff() = %v, want %v", got, tt.expected)
			}
		})
	}
}

// Exhaustive check over small attribute domains.
func TestDiff_Properties(t *testing.T) {
	names := []*string{nil, entities.StringPtr(""), entities.StringPtr("a"), entities.StringPtr("b")}
	flags := []*bool{nil, entities.BoolPtr(false), entities.BoolPtr(true)}
	actuals := []entities.DeviceState{entities.AbsentState(44)}
	for _, n := range []string{"", "a", "b"} {
		for _, s := range []bool{false, true} {
			actuals = append(actuals, present(n, s))
		}
	}

	for _, ensure := range []entities.Ensure{entities.EnsurePresent, entities.EnsureAbsent} {
		for _, n := range names {
			for _, s := range flags {
				desired := entities.DesiredState{VLANID: 44, Ensure: ensure, VLANName: n, Shutdown: s}
				for _, actual := range actuals {
					changes := Diff(desired, actual)

					if ensure == entities.EnsureAbsent && len(changes) > 1 {
						t.Fatalf("%v vs %+v: delete must be exclusive, got %v", desired, actual, changes)
					}
					for i, c := range changes {
						if c.Kind == entities.ChangeCreate && i != 0 {
							t.Fatalf("%v vs %+v: create must come first, got %v", desired, actual, changes)
						}
						if c.Kind == entities.ChangeSetName && n == nil {
							t.Fatalf("%v vs %+v: unmanaged name changed, got %v", desired, actual, changes)
						}
						if c.Kind == entities.ChangeSetShutdown && s == nil {
							t.Fatalf("%v vs %+v: unmanaged shutdown changed, got %v", desired, actual, changes)
						}
					}

					agrees := actual.Exists() == (ensure == entities.EnsurePresent)
					if agrees && ensure == entities.EnsurePresent {
						agrees = (n == nil || *n == actual.VLANName) && (s == nil || *s == actual.Shutdown)
					}
					if agrees != changes.IsEmpty() {
						t.Fatalf("%v vs %+v: agreement=%v but changes=%v", desired, actual, agrees, changes)
					}
				}
			}
		}
	}
}
