package ios

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/carlosrabelo/vlansync/domain/entities"
)

var (
	notFoundRegex   = regexp.MustCompile(`(?i)vlan\s+id\s+(\d{1,4})\s+not\s+found`)
	statusRegex     = regexp.MustCompile(`^(act|sus)(/(lshut|ishut|unsup))?$|^(active|suspended)$`)
	commandErrHints = []string{
		"invalid input",
		"unknown command",
		"incomplete command",
		"ambiguous command",
		"unrecognized command",
		"invalid command",
		"syntax error",
		"cannot find command",
		"% bad",
	}
)

// parseIOSVLAN reads the first table of `show vlan id N`. The second table
// (type/SAID/MTU) repeats the ID and is ignored.
func parseIOSVLAN(output string, vlanID int) (entities.DeviceState, error) {
	if m := notFoundRegex.FindStringSubmatch(output); len(m) == 2 && m[1] == strconv.Itoa(vlanID) {
		return entities.AbsentState(vlanID), nil
	}
	id := strconv.Itoa(vlanID)
	for _, line := range strings.Split(output, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || isSeparatorLine(trimmed) {
			continue
		}
		fields := strings.Fields(trimmed)
		if fields[0] != id {
			continue
		}
		if len(fields) < 3 {
			return entities.DeviceState{}, entities.NewParseError(vlanID, output, "vlan row %q has no status column", trimmed)
		}
		statusIdx := -1
		for i := 2; i < len(fields); i++ {
			if statusRegex.MatchString(strings.ToLower(fields[i])) {
				statusIdx = i
				break
			}
		}
		if statusIdx == -1 {
			return entities.DeviceState{}, entities.NewParseError(vlanID, output, "unknown vlan status %q", fields[2])
		}
		status := strings.ToLower(fields[statusIdx])
		return entities.DeviceState{
			VLANID:   vlanID,
			Ensure:   entities.EnsurePresent,
			VLANName: strings.Join(fields[1:statusIdx], " "),
			Shutdown: strings.HasSuffix(status, "/lshut"),
		}, nil
	}
	if strings.Contains(strings.ToLower(output), "vlan") && strings.Contains(strings.ToLower(output), "status") {
		// header printed without a row for the requested id
		return entities.AbsentState(vlanID), nil
	}
	// IOS always answers with a table or a not-found marker; empty output
	// means the read was cut short.
	if strings.TrimSpace(output) == "" {
		return entities.DeviceState{}, entities.NewParseError(vlanID, output, "empty output")
	}
	return entities.DeviceState{}, entities.NewParseError(vlanID, output, "no vlan table in output")
}

func isIOSCommandError(output string) bool {
	lower := strings.ToLower(output)
	for _, keyword := range commandErrHints {
		if strings.Contains(lower, keyword) {
			return true
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
		if ch != '-' && ch != '=' && ch != '+' && ch != '*' && ch != ' ' {
			return false
		}
	}
	return true
}
