// Package openconfig drives devices that expose the openconfig-vlan model
// over NETCONF. Commands are raw RPC bodies executed by the NETCONF client.
package openconfig

import (
	"context"
	"fmt"
	"strings"

	"github.com/carlosrabelo/vlansync/domain/entities"
	"github.com/carlosrabelo/vlansync/domain/ports"
	"github.com/carlosrabelo/vlansync/platform/template"
)

const (
	driverName = "openconfig"

	vlanNamespace = "http://openconfig.net/yang/vlan"
	baseNamespace = "urn:ietf:params:xml:ns:netconf:base:1.0"

	statusActive    = "ACTIVE"
	statusSuspended = "SUSPENDED"
)

// Driver implements SwitchDriver for OpenConfig NETCONF targets.
type Driver struct{}

// New creates a new OpenConfig driver.
func New() *Driver {
	return &Driver{}
}

// Name returns the canonical platform identifier.
func (d *Driver) Name() string {
	return driverName
}

// Detect never matches: NETCONF targets are configured explicitly.
func (d *Driver) Detect(context.Context, ports.SwitchRepository) (bool, error) {
	return false, nil
}

// GetAuthenticationSequence is empty; NETCONF authenticates in the SSH layer.
func (d *Driver) GetAuthenticationSequence(string, string, string) []entities.AuthPrompt {
	return nil
}

// ReadVLANCommand returns a get-config RPC filtered to one VLAN.
func (d *Driver) ReadVLANCommand(vlanID int) string {
	return fmt.Sprintf(`<get-config><source><running/></source><filter type="subtree">`+
		`<vlans xmlns="%s"><vlan><vlan-id>%d</vlan-id></vlan></vlans></filter></get-config>`,
		vlanNamespace, vlanID)
}

// ParseVLAN reads the VLAN entry out of a get-config reply.
func (d *Driver) ParseVLAN(output string, vlanID int) (entities.DeviceState, error) {
	return parseVLANReply(output, vlanID)
}

// Templates returns one edit-config RPC per change kind.
func (d *Driver) Templates() map[entities.ChangeKind]template.Command {
	return map[entities.ChangeKind]template.Command{
		entities.ChangeCreate: func(vlanID int, _ entities.Change) string {
			return editVLAN(vlanID, "create", "")
		},
		entities.ChangeSetName: func(vlanID int, c entities.Change) string {
			return editVLAN(vlanID, "merge", "<name>"+escape(c.Name)+"</name>")
		},
		entities.ChangeSetShutdown: func(vlanID int, c entities.Change) string {
			status := statusActive
			if c.Shutdown {
				status = statusSuspended
			}
			return editVLAN(vlanID, "merge", "<status>"+status+"</status>")
		},
		entities.ChangeDelete: func(vlanID int, _ entities.Change) string {
			return fmt.Sprintf(`<edit-config><target><running/></target><config xmlns:nc="%s">`+
				`<vlans xmlns="%s"><vlan nc:operation="delete"><vlan-id>%d</vlan-id></vlan></vlans>`+
				`</config></edit-config>`, baseNamespace, vlanNamespace, vlanID)
		},
	}
}

// Framing is empty; every RPC is self-contained.
func (d *Driver) Framing(int, entities.ChangeSet) (enter, exit []string) {
	return nil, nil
}

// IsCommandError reports whether a raw reply carries an rpc-error.
func (d *Driver) IsCommandError(output string) bool {
	return strings.Contains(output, "<rpc-error")
}

// SaveCommands is empty; edits target the running datastore, which the
// device persists on its own.
func (d *Driver) SaveCommands() []string {
	return nil
}

func editVLAN(vlanID int, operation, leaves string) string {
	return fmt.Sprintf(`<edit-config><target><running/></target><config xmlns:nc="%s">`+
		`<vlans xmlns="%s"><vlan nc:operation="%s"><vlan-id>%d</vlan-id>`+
		`<config><vlan-id>%d</vlan-id>%s</config></vlan></vlans></config></edit-config>`,
		baseNamespace, vlanNamespace, operation, vlanID, vlanID, leaves)
}
