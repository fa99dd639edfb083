package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/carlosrabelo/vlansync/domain/entities"
)

// DefaultFileName is looked up in the search path when no file is given.
const DefaultFileName = "config.yaml"

// Defaults applied when the file leaves a value unset.
const (
	DefaultPlatform       = "ios"
	DefaultTransport      = "telnet"
	DefaultParallelism    = 4
	DefaultCommandTimeout = 30 * time.Second
	DefaultVerifyInterval = 500 * time.Millisecond
	DefaultSNMPListen     = "0.0.0.0"
	DefaultSNMPPort       = 162
	DefaultSNMPCommunity  = "public"
	DefaultSNMPDebounce   = 10 * time.Second
	DefaultTrapOID        = ".1.3.6.1.4.1.9.9.43.2.0.1"
)

// Config defines the global configuration
type Config struct {
	Platform       string                  `yaml:"platform" validate:"oneof=ios dmos openconfig auto"`
	LegacyVendor   string                  `yaml:"vendor"`
	Transport      string                  `yaml:"transport" validate:"oneof=telnet ssh netconf"`
	Username       string                  `yaml:"username"`
	Password       string                  `yaml:"password"`
	EnablePassword string                  `yaml:"enable_password"`
	KnownHosts     string                  `yaml:"known_hosts"`
	CommandTimeout time.Duration           `yaml:"command_timeout" validate:"min=0"`
	VerifyTimeout  time.Duration           `yaml:"verify_timeout" validate:"min=0"`
	VerifyInterval time.Duration           `yaml:"verify_interval" validate:"min=0"`
	SaveConfig     bool                    `yaml:"save_config"`
	StopOnError    bool                    `yaml:"stop_on_error"`
	Parallelism    int                     `yaml:"parallelism" validate:"min=1,max=256"`
	VLANs          []entities.DesiredState `yaml:"vlans" validate:"dive"`
	SNMP           SNMPConfig              `yaml:"snmp"`
	Switches       []entities.SwitchConfig `yaml:"switches" validate:"required,min=1,dive"`
}

// SNMPConfig configures the trap listener used by watch mode.
type SNMPConfig struct {
	Listen    string        `yaml:"listen" validate:"required,ip"`
	Port      int           `yaml:"port" validate:"min=1,max=65535"`
	Community string        `yaml:"community"`
	Debounce  time.Duration `yaml:"debounce" validate:"min=0"`
	TrapOIDs  []string      `yaml:"trap_oids" validate:"dive,startswith=."`
}

// Switch returns the merged configuration of target.
func (c *Config) Switch(target string) (entities.SwitchConfig, bool) {
	for _, sw := range c.Switches {
		if sw.Target == target {
			return sw, true
		}
	}
	return entities.SwitchConfig{}, false
}

// SearchPaths lists where FindFile looks for name, in order.
func SearchPaths(name string) []string {
	paths := []string{filepath.Join(".", name)}
	if userConfigDir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(userConfigDir, "vlansync", name))
	}
	if runtime.GOOS == "windows" {
		if programData := os.Getenv("ProgramData"); programData != "" {
			paths = append(paths, filepath.Join(programData, "vlansync", name))
		}
	} else {
		paths = append(paths, filepath.Join("/etc", "vlansync", name))
	}
	return paths
}

// FindFile returns the first existing configuration file in the search path.
func FindFile(name string) (string, error) {
	paths := SearchPaths(name)
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("no %s found in %s", name, strings.Join(paths, ", "))
}

// Load reads, merges and validates a YAML configuration file. Unless write
// is set every switch runs in sandbox mode.
func Load(yamlFile string, write bool) (*Config, error) {
	data, err := os.ReadFile(yamlFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read YAML file %s: %w", yamlFile, err)
	}
	cfg, err := Parse(data, write)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", yamlFile, err)
	}
	return cfg, nil
}

// Parse decodes a YAML document and applies the same rules as Load.
func Parse(data []byte, write bool) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if len(cfg.Switches) == 0 {
		return nil, errors.New("no switches defined in the YAML configuration")
	}
	cfg.applyDefaults()
	if err := checkDuplicateVLANs("global vlans", cfg.VLANs); err != nil {
		return nil, err
	}

	seen := make(map[string]int, len(cfg.Switches))
	for i := range cfg.Switches {
		sw := &cfg.Switches[i]
		sw.Target = strings.TrimSpace(sw.Target)
		if sw.Target == "" {
			return nil, fmt.Errorf("target is required for switch %d", i)
		}
		if prev, dup := seen[sw.Target]; dup {
			return nil, fmt.Errorf("switch %s is defined twice (entries %d and %d)", sw.Target, prev, i)
		}
		seen[sw.Target] = i

		if err := checkDuplicateVLANs("vlans for switch "+sw.Target, sw.VLANs); err != nil {
			return nil, err
		}
		cfg.merge(sw, !write)
	}

	if err := validateStruct(&cfg); err != nil {
		return nil, err
	}
	for _, sw := range cfg.Switches {
		if err := checkPlatformTransport(sw); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	platform := c.Platform
	if strings.TrimSpace(platform) == "" {
		platform = c.LegacyVendor
	}
	c.Platform = strings.ToLower(strings.TrimSpace(platform))
	if c.Platform == "" {
		c.Platform = DefaultPlatform
	}
	c.Transport = strings.ToLower(strings.TrimSpace(c.Transport))
	if c.Transport == "" {
		if c.Platform == "openconfig" {
			c.Transport = "netconf"
		} else {
			c.Transport = DefaultTransport
		}
	}
	if c.Parallelism == 0 {
		c.Parallelism = DefaultParallelism
	}
	if c.CommandTimeout == 0 {
		c.CommandTimeout = DefaultCommandTimeout
	}
	if c.VerifyInterval == 0 {
		c.VerifyInterval = DefaultVerifyInterval
	}

	if c.SNMP.Listen == "" {
		c.SNMP.Listen = DefaultSNMPListen
	}
	if c.SNMP.Port == 0 {
		c.SNMP.Port = DefaultSNMPPort
	}
	if c.SNMP.Community == "" {
		c.SNMP.Community = DefaultSNMPCommunity
	}
	if c.SNMP.Debounce == 0 {
		c.SNMP.Debounce = DefaultSNMPDebounce
	}
	if len(c.SNMP.TrapOIDs) == 0 {
		c.SNMP.TrapOIDs = []string{DefaultTrapOID}
	}
}

// merge fills sw from the global section. Switch values win; switch VLAN
// entries replace global entries with the same vlan_id.
func (c *Config) merge(sw *entities.SwitchConfig, sandbox bool) {
	rawPlatform := sw.Platform
	if strings.TrimSpace(rawPlatform) == "" {
		rawPlatform = sw.LegacyPlatform
	}
	sw.Platform = strings.ToLower(strings.TrimSpace(rawPlatform))
	if sw.Platform == "" {
		sw.Platform = c.Platform
	}
	sw.Transport = strings.ToLower(strings.TrimSpace(sw.Transport))
	switch {
	case sw.Transport != "":
	case sw.Platform == "openconfig":
		sw.Transport = "netconf"
	case c.Transport == "netconf":
		sw.Transport = DefaultTransport
	default:
		sw.Transport = c.Transport
	}

	if sw.Username == "" {
		sw.Username = c.Username
	}
	if sw.Password == "" {
		sw.Password = c.Password
	}
	if sw.EnablePassword == "" {
		sw.EnablePassword = c.EnablePassword
	}
	if sw.KnownHosts == "" {
		sw.KnownHosts = c.KnownHosts
	}
	sw.KnownHosts = expandHome(sw.KnownHosts)

	sw.VLANs = mergeVLANs(c.VLANs, sw.VLANs)

	sw.Sandbox = sandbox
	sw.CommandTimeout = c.CommandTimeout
	sw.VerifyTimeout = c.VerifyTimeout
	sw.VerifyInterval = c.VerifyInterval
	sw.SaveConfig = c.SaveConfig
	sw.StopOnError = c.StopOnError
}

func mergeVLANs(global, local []entities.DesiredState) []entities.DesiredState {
	overrides := make(map[int]entities.DesiredState, len(local))
	for _, v := range local {
		overrides[v.VLANID] = v
	}
	merged := make([]entities.DesiredState, 0, len(global)+len(local))
	for _, v := range global {
		if o, ok := overrides[v.VLANID]; ok {
			v = o
			delete(overrides, v.VLANID)
		}
		merged = append(merged, v)
	}
	for _, v := range local {
		if _, pending := overrides[v.VLANID]; pending {
			merged = append(merged, v)
		}
	}
	return merged
}

func checkDuplicateVLANs(context string, vlans []entities.DesiredState) error {
	seen := make(map[int]bool, len(vlans))
	for _, v := range vlans {
		if seen[v.VLANID] {
			return fmt.Errorf("duplicate vlan_id %d in %s", v.VLANID, context)
		}
		seen[v.VLANID] = true
	}
	return nil
}

func checkPlatformTransport(sw entities.SwitchConfig) error {
	switch {
	case sw.Platform == "openconfig" && sw.Transport != "netconf":
		return fmt.Errorf("switch %s: platform openconfig requires transport netconf, got %s", sw.Target, sw.Transport)
	case sw.Transport == "netconf" && sw.Platform != "openconfig":
		return fmt.Errorf("switch %s: transport netconf requires platform openconfig, got %s", sw.Target, sw.Platform)
	case sw.Platform == "auto" && !sw.IsCLI():
		return fmt.Errorf("switch %s: platform auto requires a CLI transport (telnet or ssh)", sw.Target)
	}
	return nil
}

func validateStruct(cfg *Config) error {
	err := entities.Validator().Struct(cfg)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		field := strings.TrimPrefix(fe.Namespace(), "Config.")
		msgs = append(msgs, fmt.Sprintf("%s: %s", field, entities.FieldMessage(fe)))
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
