package services

import "github.com/carlosrabelo/vlansync/domain/entities"

// Diff returns the ordered changes that move actual towards desired.
// Attributes desired leaves nil are never compared; an absent VLAN only ever
// needs a single delete.
func Diff(desired entities.DesiredState, actual entities.DeviceState) entities.ChangeSet {
	if desired.EnsureOrDefault() == entities.EnsureAbsent {
		if actual.Exists() {
			return entities.ChangeSet{{Kind: entities.ChangeDelete}}
		}
		return nil
	}

	var changes entities.ChangeSet
	if !actual.Exists() {
		changes = append(changes, entities.Change{Kind: entities.ChangeCreate})
		if desired.VLANName != nil {
			changes = append(changes, entities.Change{Kind: entities.ChangeSetName, Name: *desired.VLANName})
		}
		if desired.Shutdown != nil {
			changes = append(changes, entities.Change{Kind: entities.ChangeSetShutdown, Shutdown: *desired.Shutdown})
		}
		return changes
	}

	if desired.VLANName != nil && *desired.VLANName != actual.VLANName {
		changes = append(changes, entities.Change{Kind: entities.ChangeSetName, Name: *desired.VLANName})
	}
	if desired.Shutdown != nil && *desired.Shutdown != actual.Shutdown {
		changes = append(changes, entities.Change{Kind: entities.ChangeSetShutdown, Shutdown: *desired.Shutdown})
	}
	return changes
}
