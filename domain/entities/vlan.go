package entities

import (
	"fmt"
	"strings"
)

// Ensure is the presence a VLAN should have (or has) on a device.
type Ensure string

const (
	EnsurePresent Ensure = "present"
	EnsureAbsent  Ensure = "absent"
)

const (
	MinVLANID = 1
	MaxVLANID = 4094

	// MaxVLANNameLength is the longest name every supported platform accepts.
	MaxVLANNameLength = 32
)

// DesiredState is the caller's target for one VLAN.
// A nil VLANName or Shutdown means the attribute is not managed.
type DesiredState struct {
	VLANID   int     `yaml:"vlan_id" json:"vlan_id" validate:"min=1,max=4094"`
	Ensure   Ensure  `yaml:"ensure" json:"ensure" validate:"omitempty,oneof=present absent"`
	VLANName *string `yaml:"vlan_name,omitempty" json:"vlan_name,omitempty" validate:"omitnil,vlanname"`
	Shutdown *bool   `yaml:"shutdown,omitempty" json:"shutdown,omitempty"`
}

// EnsureOrDefault returns the requested presence, treating an empty value as present.
func (d DesiredState) EnsureOrDefault() Ensure {
	if d.Ensure == "" {
		return EnsurePresent
	}
	return d.Ensure
}

func (d DesiredState) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "vlan %d ensure=%s", d.VLANID, d.EnsureOrDefault())
	if d.VLANName != nil {
		fmt.Fprintf(&b, " vlan_name=%q", *d.VLANName)
	}
	if d.Shutdown != nil {
		fmt.Fprintf(&b, " shutdown=%t", *d.Shutdown)
	}
	return b.String()
}

// DeviceState is what a live read found for one VLAN.
// VLANName and Shutdown are only meaningful when Ensure is present.
type DeviceState struct {
	VLANID   int    `yaml:"vlan_id" json:"vlan_id"`
	Ensure   Ensure `yaml:"ensure" json:"ensure"`
	VLANName string `yaml:"vlan_name,omitempty" json:"vlan_name,omitempty"`
	Shutdown bool   `yaml:"shutdown" json:"shutdown"`
}

// Exists reports whether the VLAN was found on the device.
func (s DeviceState) Exists() bool {
	return s.Ensure == EnsurePresent
}

// AbsentState builds the DeviceState for a VLAN the device does not have.
func AbsentState(vlanID int) DeviceState {
	return DeviceState{VLANID: vlanID, Ensure: EnsureAbsent}
}

// StringPtr and BoolPtr build optional DesiredState attributes.
func StringPtr(s string) *string { return &s }

func BoolPtr(b bool) *bool { return &b }
