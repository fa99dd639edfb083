package dmos

import (
	"context"
	"fmt"
	"strings"

	"github.com/carlosrabelo/vlansync/domain/entities"
	"github.com/carlosrabelo/vlansync/domain/ports"
	"github.com/carlosrabelo/vlansync/platform/template"
)

const driverName = "dmos"

// Driver implements SwitchDriver semantics for Datacom DmOS switches.
type Driver struct{}

// New creates a new DmOS driver.
func New() *Driver {
	return &Driver{}
}

// Name returns the canonical platform identifier.
func (d *Driver) Name() string {
	return driverName
}

// Detect determines if the connected device is running DmOS.
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
	lower := strings.ToLower(output)
	return strings.Contains(lower, "dmos") || strings.Contains(lower, "datacom"), nil
}

// GetAuthenticationSequence returns the DmOS login dialogue. DmOS users land
// in privileged mode directly.
func (d *Driver) GetAuthenticationSequence(username, password, _ string) []entities.AuthPrompt {
	return []entities.AuthPrompt{
		{WaitFor: "login:", SendCmd: username + "\n"},
		{WaitFor: "Password:", SendCmd: password + "\n"},
		{WaitFor: "#", SendCmd: "paginate false\n"},
		{WaitFor: "#", SendCmd: ""},
	}
}

// ReadVLANCommand returns the query for a single VLAN.
func (d *Driver) ReadVLANCommand(vlanID int) string {
	return fmt.Sprintf("show vlan %d", vlanID)
}

// ParseVLAN turns `show vlan N` output into a DeviceState.
func (d *Driver) ParseVLAN(output string, vlanID int) (entities.DeviceState, error) {
	return parseDmOSVLAN(output, vlanID)
}

// Templates returns the DmOS command for every change kind. VLANs are
// managed through their interface, which DmOS creates on demand.
func (d *Driver) Templates() map[entities.ChangeKind]template.Command {
	return map[entities.ChangeKind]template.Command{
		entities.ChangeCreate: func(vlanID int, _ entities.Change) string {
			return fmt.Sprintf("interface vlan %d", vlanID)
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
			return fmt.Sprintf("no interface vlan %d", vlanID)
		},
	}
}

// Framing wraps the batch in configuration mode.
func (d *Driver) Framing(vlanID int, changes entities.ChangeSet) (enter, exit []string) {
	return template.CLIFraming(changes, fmt.Sprintf("interface vlan %d", vlanID))
}

// IsCommandError reports whether output carries a DmOS error marker.
func (d *Driver) IsCommandError(output string) bool {
	return isDmOSCommandError(output)
}

// SaveCommands persists the running configuration.
func (d *Driver) SaveCommands() []string {
	return []string{"copy running-config startup-config", "save"}
}
