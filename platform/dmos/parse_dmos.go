package dmos

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/carlosrabelo/vlansync/domain/entities"
)

var (
	vlanHeadRegex = regexp.MustCompile(`(?i)^\s*vlan\s+(\d{1,4})\b`)
	vlanLineRegex = regexp.MustCompile(`(?i)^\s*vlan\s+(\d{1,4})\s*(?:\[([^\]]*)\])?\s*:\s*([\w-]+)\s*,\s*([\w-]+)\s*$`)

	// Error text always opens the line; VLAN names may contain these words.
	cmdErrorPrefixes = []string{"syntax error", "error:", "unknown command", "incomplete command", "aborted:"}
	notFoundHints    = []string{"no entries found", "not found", "does not exist"}
)

// parseDmOSVLAN reads the summary line of `show vlan N`:
//
//	VLAN 44 [users]: static, active
func parseDmOSVLAN(output string, vlanID int) (entities.DeviceState, error) {
	id := strconv.Itoa(vlanID)
	for _, line := range strings.Split(output, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || isSeparatorLine(trimmed) {
			continue
		}
		head := vlanHeadRegex.FindStringSubmatch(trimmed)
		if len(head) < 2 || head[1] != id {
			continue
		}
		match := vlanLineRegex.FindStringSubmatch(trimmed)
		if len(match) < 5 {
			return entities.DeviceState{}, entities.NewParseError(vlanID, output, "unrecognised vlan line %q", trimmed)
		}
		state := entities.DeviceState{
			VLANID:   vlanID,
			Ensure:   entities.EnsurePresent,
			VLANName: strings.TrimSpace(match[2]),
		}
		switch strings.ToLower(match[4]) {
		case "active":
		case "suspended", "shutdown":
			state.Shutdown = true
		default:
			return entities.DeviceState{}, entities.NewParseError(vlanID, output, "unknown vlan status %q", match[4])
		}
		return state, nil
	}

	lower := strings.ToLower(output)
	for _, hint := range notFoundHints {
		if strings.Contains(lower, hint) {
			return entities.AbsentState(vlanID), nil
		}
	}
	for _, line := range strings.Split(output, "\n") {
		if vlanLineRegex.MatchString(strings.TrimSpace(line)) {
			return entities.AbsentState(vlanID), nil
		}
	}
	return entities.DeviceState{}, entities.NewParseError(vlanID, output, "no vlan line or not-found marker in output")
}

func isDmOSCommandError(output string) bool {
	for _, line := range strings.Split(output, "\n") {
		lower := strings.ToLower(strings.TrimSpace(line))
		for _, prefix := range cmdErrorPrefixes {
			if strings.HasPrefix(lower, prefix) {
				return true
			}
		}
	}
	return false
}

func isSeparatorLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return true
	}
	if len(trimmed) < 3 {
		return false
	}
	for _, ch := range trimmed {
		if ch != '-' && ch != '=' && ch != '+' && ch != '*' {
			return false
		}
	}
	return true
}
