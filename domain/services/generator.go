package services

import (
	"github.com/carlosrabelo/vlansync/domain/entities"
	"github.com/carlosrabelo/vlansync/platform/template"
)

// CommandSet is the part of a platform driver the generator renders with.
type CommandSet interface {
	Name() string
	Templates() map[entities.ChangeKind]template.Command
	Framing(vlanID int, changes entities.ChangeSet) (enter, exit []string)
}

// Generate renders a change set into the device command sequence: the
// driver's mode entry, one command per change in order, then the mode exit.
// It has no side effects.
func Generate(changes entities.ChangeSet, vlanID int, commands CommandSet) ([]string, error) {
	if changes.IsEmpty() {
		return nil, nil
	}
	templates := commands.Templates()
	rendered := make([]string, 0, len(changes))
	for _, change := range changes {
		tpl, ok := templates[change.Kind]
		if !ok || tpl == nil {
			return nil, &entities.UnsupportedChangeError{Kind: change.Kind, Platform: commands.Name()}
		}
		rendered = append(rendered, tpl(vlanID, change))
	}

	enter, exit := commands.Framing(vlanID, changes)
	out := make([]string, 0, len(enter)+len(rendered)+len(exit))
	out = append(out, enter...)
	out = append(out, rendered...)
	return append(out, exit...), nil
}
