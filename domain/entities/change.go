package entities

import (
	"fmt"
	"strconv"
	"strings"
)

// ChangeKind identifies the device operation a Change stands for.
type ChangeKind string

const (
	ChangeCreate      ChangeKind = "create"
	ChangeDelete      ChangeKind = "delete"
	ChangeSetName     ChangeKind = "set_name"
	ChangeSetShutdown ChangeKind = "set_shutdown"
)

// Change is one step needed to move a VLAN towards its desired state.
// Name is set for set_name, Shutdown for set_shutdown.
type Change struct {
	Kind     ChangeKind `json:"kind"`
	Name     string     `json:"name,omitempty"`
	Shutdown bool       `json:"shutdown,omitempty"`
}

// Value renders the change parameter, or "" for create and delete.
func (c Change) Value() string {
	switch c.Kind {
	case ChangeSetName:
		return c.Name
	case ChangeSetShutdown:
		return strconv.FormatBool(c.Shutdown)
	}
	return ""
}

func (c Change) String() string {
	if v := c.Value(); v != "" {
		return fmt.Sprintf("%s(%s)", c.Kind, v)
	}
	return string(c.Kind)
}

// ChangeSet is an ordered list of changes. Order is significant.
type ChangeSet []Change

// IsEmpty returns true if there are no changes.
func (cs ChangeSet) IsEmpty() bool {
	return len(cs) == 0
}

func (cs ChangeSet) String() string {
	if cs.IsEmpty() {
		return "No changes"
	}
	parts := make([]string, 0, len(cs))
	for _, c := range cs {
		parts = append(parts, c.String())
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
