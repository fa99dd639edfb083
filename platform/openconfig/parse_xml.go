package openconfig

import (
	"encoding/xml"
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/carlosrabelo/vlansync/domain/entities"
)

type vlanEntry struct {
	VLANID string `xml:"vlan-id"`
	Config struct {
		Name   string `xml:"name"`
		Status string `xml:"status"`
	} `xml:"config"`
}

// parseVLANReply walks the reply for <vlan> entries so it accepts both a full
// rpc-reply and a bare data subtree.
func parseVLANReply(output string, vlanID int) (entities.DeviceState, error) {
	id := strconv.Itoa(vlanID)
	dec := xml.NewDecoder(strings.NewReader(output))
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return entities.AbsentState(vlanID), nil
		}
		if err != nil {
			return entities.DeviceState{}, entities.NewParseError(vlanID, output, "malformed reply: %v", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "vlan" {
			continue
		}
		var entry vlanEntry
		if err := dec.DecodeElement(&entry, &start); err != nil {
			return entities.DeviceState{}, entities.NewParseError(vlanID, output, "malformed vlan entry: %v", err)
		}
		if strings.TrimSpace(entry.VLANID) != id {
			continue
		}
		state := entities.DeviceState{
			VLANID:   vlanID,
			Ensure:   entities.EnsurePresent,
			VLANName: entry.Config.Name,
		}
		// get-config omits defaulted leaves; status defaults to ACTIVE.
		switch strings.ToUpper(strings.TrimSpace(entry.Config.Status)) {
		case statusActive, "":
		case statusSuspended:
			state.Shutdown = true
		default:
			return entities.DeviceState{}, entities.NewParseError(vlanID, output, "unknown vlan status %q", entry.Config.Status)
		}
		return state, nil
	}
}

func escape(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}
