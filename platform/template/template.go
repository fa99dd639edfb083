// Package template holds the command template types shared by platform drivers.
package template

import "github.com/carlosrabelo/vlansync/domain/entities"

// Command renders the single device command for one change on one VLAN.
type Command func(vlanID int, change entities.Change) string

// CLIFraming wraps a CLI batch in configuration mode. When the batch starts
// by editing an existing VLAN the VLAN context is entered first; create
// enters it on its own and delete runs from global configuration mode.
func CLIFraming(changes entities.ChangeSet, vlanContext string) (enter, exit []string) {
	if changes.IsEmpty() {
		return nil, nil
	}
	enter = []string{"configure terminal"}
	switch changes[0].Kind {
	case entities.ChangeSetName, entities.ChangeSetShutdown:
		enter = append(enter, vlanContext)
	}
	return enter, []string{"end"}
}
