package ios

import (
	"context"
	"fmt"
	"strings"

	"github.com/carlosrabelo/vlansync/domain/entities"
	"github.com/carlosrabelo/vlansync/domain/ports"
	"github.com/carlosrabelo/vlansync/platform/template"
)

const driverName = "ios"

// Driver implements the SwitchDriver behaviour for Cisco IOS switches.
type Driver struct{}

// New creates a new IOS driver instance.
func New() *Driver {
	return &Driver{}
}

// Name returns the canonical platform identifier.
func (d *Driver) Name() string {
	return driverName
}

// Detect inspects the device to determine whether it is running IOS.
func (d *Driver) Detect(ctx context.Context, repo ports.SwitchRepository) (bool, error) {
	if !repo.IsConnected() {
		if err := repo.Connect(ctx); err != nil {
			return false, err
		}
	}
	output, err := repo.ExecuteCommand(ctx, "show version")
	if err != nil {
		return false, err
	}
	return strings.Contains(strings.ToLower(output), "cisco ios"), nil
}

// GetAuthenticationSequence returns the Telnet login dialogue for IOS.
func (d *Driver) GetAuthenticationSequence(username, password, enablePassword string) []entities.AuthPrompt {
	prompts := []entities.AuthPrompt{
		{WaitFor: "Username:", SendCmd: username + "\n"},
		{WaitFor: "Password:", SendCmd: password + "\n"},
	}
	if enablePassword != "" {
		prompts = append(prompts,
			entities.AuthPrompt{WaitFor: ">", SendCmd: "enable\n"},
			entities.AuthPrompt{WaitFor: "Password:", SendCmd: enablePassword + "\n"},
		)
	}
	return append(prompts,
		entities.AuthPrompt{WaitFor: "#", SendCmd: "terminal length 0\n"},
		entities.AuthPrompt{WaitFor: "#", SendCmd: ""},
	)
}

// ReadVLANCommand returns the query for a single VLAN.
func (d *Driver) ReadVLANCommand(vlanID int) string {
	return fmt.Sprintf("show vlan id %d", vlanID)
}

// ParseVLAN turns `show vlan id N` output into a DeviceState.
func (d *Driver) ParseVLAN(output string, vlanID int) (entities.DeviceState, error) {
	return parseIOSVLAN(output, vlanID)
}

// Templates returns the IOS command for every change kind.
func (d *Driver) Templates() map[entities.ChangeKind]template.Command {
	return map[entities.ChangeKind]template.Command{
		entities.ChangeCreate: func(vlanID int, _ entities.Change) string {
			return fmt.Sprintf("vlan %d", vlanID)
		},
		entities.ChangeSetName: func(_ int, c entities.Change) string {
			return fmt.Sprintf("name %s", c.Name)
		},
		entities.ChangeSetShutdown: func(_ int, c entities.Change) string {
			if c.Shutdown {
				return "shutdown"
			}
			return "no shutdown"
		},
		entities.ChangeDelete: func(vlanID int, _ entities.Change) string {
			return fmt.Sprintf("no vlan %d", vlanID)
		},
	}
}

// Framing wraps the batch in configuration mode.
func (d *Driver) Framing(vlanID int, changes entities.ChangeSet) (enter, exit []string) {
	return template.CLIFraming(changes, fmt.Sprintf("vlan %d", vlanID))
}

// IsCommandError reports whether output carries an IOS error marker.
func (d *Driver) IsCommandError(output string) bool {
	return isIOSCommandError(output)
}

// SaveCommands returns commands that persist the running configuration.
func (d *Driver) SaveCommands() []string {
	return []string{"write memory"}
}
