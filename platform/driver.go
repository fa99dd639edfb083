package platform

import (
	"context"
	"fmt"
	"strings"

	"github.com/carlosrabelo/vlansync/domain/entities"
	"github.com/carlosrabelo/vlansync/domain/ports"
	"github.com/carlosrabelo/vlansync/platform/dmos"
	"github.com/carlosrabelo/vlansync/platform/ios"
	"github.com/carlosrabelo/vlansync/platform/openconfig"
	"github.com/carlosrabelo/vlansync/platform/template"
)

// SwitchDriver defines the behaviour required to support a switching platform.
type SwitchDriver interface {
	Name() string
	Detect(ctx context.Context, repo ports.SwitchRepository) (bool, error)

	// GetAuthenticationSequence returns the login sequence for this platform
	GetAuthenticationSequence(username, password, enablePassword string) []entities.AuthPrompt

	// ReadVLANCommand returns the query whose output ParseVLAN understands.
	ReadVLANCommand(vlanID int) string
	ParseVLAN(output string, vlanID int) (entities.DeviceState, error)

	// Templates maps every supported change kind to its command template.
	Templates() map[entities.ChangeKind]template.Command
	// Framing returns the mode entry/exit commands wrapped around a batch.
	Framing(vlanID int, changes entities.ChangeSet) (enter, exit []string)
	IsCommandError(output string) bool

	SaveCommands() []string
}

var registry = []SwitchDriver{
	ios.New(),
	dmos.New(),
	openconfig.New(),
}

// Get returns a driver by normalized platform name.
func Get(name string) (SwitchDriver, error) {
	normalized := normalizeName(name)
	for _, driver := range registry {
		if driver.Name() == normalized {
			return driver, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", entities.ErrUnknownPlatform, name)
}

// Available returns all registered drivers.
func Available() []SwitchDriver {
	out := make([]SwitchDriver, len(registry))
	copy(out, registry)
	return out
}

// Detect tries all registered drivers until one matches.
func Detect(ctx context.Context, repo ports.SwitchRepository) (SwitchDriver, error) {
	var lastErr error
	for _, driver := range registry {
		matched, err := driver.Detect(ctx, repo)
		if err != nil {
			lastErr = err
			continue
		}
		if matched {
			return driver, nil
		}
	}
	if lastErr != nil {
		return nil, fmt.Errorf("%w: %v", entities.ErrPlatformNotDetected, lastErr)
	}
	return nil, entities.ErrPlatformNotDetected
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
