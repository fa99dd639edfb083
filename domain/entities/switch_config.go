package entities

import (
	"net"
	"strconv"
	"strings"
	"time"
)

// SwitchConfig defines the configuration for a single switch
type SwitchConfig struct {
	Target         string         `yaml:"target" validate:"required"`
	Port           int            `yaml:"port" validate:"omitempty,min=1,max=65535"`
	Transport      string         `yaml:"transport" validate:"omitempty,oneof=telnet ssh netconf"`
	Platform       string         `yaml:"platform" validate:"omitempty,oneof=ios dmos openconfig auto"`
	LegacyPlatform string         `yaml:"vendor"`
	Username       string         `yaml:"username" validate:"required"`
	Password       string         `yaml:"password" validate:"required"`
	EnablePassword string         `yaml:"enable_password"`
	KnownHosts     string         `yaml:"known_hosts"`
	VLANs          []DesiredState `yaml:"vlans" validate:"dive"`

	// Filled from the global section by the config loader.
	Sandbox        bool          `yaml:"-"`
	CommandTimeout time.Duration `yaml:"-"`
	VerifyTimeout  time.Duration `yaml:"-"`
	VerifyInterval time.Duration `yaml:"-"`
	SaveConfig     bool          `yaml:"-"`
	StopOnError    bool          `yaml:"-"`
}

// IsCLI reports whether the switch is driven through a line-oriented shell.
func (sc SwitchConfig) IsCLI() bool {
	return !strings.EqualFold(sc.Transport, "netconf")
}

// VLAN returns the desired state for vlanID, if the switch manages it.
func (sc SwitchConfig) VLAN(vlanID int) (DesiredState, bool) {
	for _, v := range sc.VLANs {
		if v.VLANID == vlanID {
			return v, true
		}
	}
	return DesiredState{}, false
}

// PlatformID returns the normalized platform name, falling back to the
// legacy "vendor" key and then to ios.
func (sc SwitchConfig) PlatformID() string {
	platform := sc.Platform
	if strings.TrimSpace(platform) == "" {
		platform = sc.LegacyPlatform
	}
	platform = strings.ToLower(strings.TrimSpace(platform))
	if platform == "" {
		return "ios"
	}
	return platform
}

// Address returns host:port for the configured transport.
func (sc SwitchConfig) Address() string {
	port := sc.Port
	if port == 0 {
		port = DefaultPort(sc.Transport)
	}
	return net.JoinHostPort(sc.Target, strconv.Itoa(port))
}

// DefaultPort returns the well-known port of a transport.
func DefaultPort(transport string) int {
	switch strings.ToLower(transport) {
	case "ssh":
		return 22
	case "netconf":
		return 830
	default:
		return 23
	}
}
