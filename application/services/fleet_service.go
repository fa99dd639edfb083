package services

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/carlosrabelo/vlansync/domain/entities"
	"github.com/carlosrabelo/vlansync/domain/ports"
	"github.com/carlosrabelo/vlansync/domain/services"
	"github.com/carlosrabelo/vlansync/infrastructure/logging"
	"github.com/carlosrabelo/vlansync/infrastructure/transport"
	"github.com/carlosrabelo/vlansync/platform"
)

// Device is a switch session the fleet can detect a platform on and
// reconcile through.
type Device interface {
	ports.SwitchRepository
	ports.DeviceSession
	SetDriver(driver platform.SwitchDriver, cfg entities.SwitchConfig)
}

// SessionFactory opens the session for one switch.
type SessionFactory func(cfg entities.SwitchConfig) Device

// SwitchReport collects the results of one switch.
type SwitchReport struct {
	Target   string                 `json:"target"`
	Platform string                 `json:"platform,omitempty"`
	DryRun   bool                   `json:"dry_run"`
	Results  []entities.ApplyResult `json:"results"`
	Err      error                  `json:"-"`
	Error    string                 `json:"error,omitempty"`
}

// Failed reports whether the switch could not be reconciled or any VLAN
// failed to converge.
func (r SwitchReport) Failed() bool {
	if r.Err != nil {
		return true
	}
	for _, res := range r.Results {
		if res.Failed() {
			return true
		}
	}
	return false
}

// Report is the outcome of one fleet run.
type Report struct {
	Switches []SwitchReport `json:"switches"`
}

// Failed reports whether any switch failed.
func (r Report) Failed() bool {
	for _, sw := range r.Switches {
		if sw.Failed() {
			return true
		}
	}
	return false
}

// Summary counts VLAN results by outcome.
type Summary struct {
	Converged int `json:"converged"`
	Changed   int `json:"changed"`
	Planned   int `json:"planned"`
	Failed    int `json:"failed"`
	Switches  int `json:"switches"`
}

// Summary counts VLAN results by outcome. A switch that failed before any
// VLAN was read counts as one failure.
func (r Report) Summary() Summary {
	s := Summary{Switches: len(r.Switches)}
	for _, sw := range r.Switches {
		if sw.Err != nil && len(sw.Results) == 0 {
			s.Failed++
		}
		for _, res := range sw.Results {
			switch {
			case res.Failed():
				s.Failed++
			case res.State == entities.StatePlanned:
				s.Planned++
			case res.Converged:
				s.Converged++
				if res.Changed() {
					s.Changed++
				}
			}
		}
	}
	return s
}

// FleetService reconciles every configured switch, one worker per switch.
type FleetService struct {
	switches    []entities.SwitchConfig
	parallelism int
	open        SessionFactory
}

// NewFleetService creates a fleet over the cached transport clients.
func NewFleetService(switches []entities.SwitchConfig, parallelism int) *FleetService {
	return NewFleetServiceWithFactory(switches, parallelism, func(cfg entities.SwitchConfig) Device {
		return transport.Open(cfg, nil)
	})
}

// NewFleetServiceWithFactory creates a fleet whose sessions come from open.
func NewFleetServiceWithFactory(switches []entities.SwitchConfig, parallelism int, open SessionFactory) *FleetService {
	if parallelism < 1 {
		parallelism = 1
	}
	return &FleetService{
		switches:    switches,
		parallelism: parallelism,
		open:        open,
	}
}

// Apply reconciles target, or every switch when target is empty. Switches
// run concurrently up to the parallelism limit; one switch failing never
// stops the others.
func (f *FleetService) Apply(ctx context.Context, target string) (Report, error) {
	selected, err := f.selectSwitches(target)
	if err != nil {
		return Report{}, err
	}

	reports := make([]SwitchReport, len(selected))
	var g errgroup.Group
	g.SetLimit(f.parallelism)
	for i, cfg := range selected {
		g.Go(func() error {
			reports[i] = f.ApplySwitch(ctx, cfg)
			return nil
		})
	}
	_ = g.Wait()
	return Report{Switches: reports}, nil
}

// ApplySwitch reconciles every VLAN of one switch sequentially on its
// session.
func (f *FleetService) ApplySwitch(ctx context.Context, cfg entities.SwitchConfig) SwitchReport {
	log := logging.WithSwitch(cfg.Target)
	report := SwitchReport{Target: cfg.Target, DryRun: cfg.Sandbox}

	device := f.open(cfg)
	driver, err := f.resolveDriver(ctx, device, cfg)
	if err != nil {
		log.Errorf("Unable to select platform: %v", err)
		report.Err = err
		report.Error = err.Error()
		return report
	}
	report.Platform = driver.Name()
	log.Debugf("Using platform %s over %s", driver.Name(), cfg.Transport)

	var reconciler ports.VLANReconciler = services.NewReconciler(device, driver, OptionsFor(cfg), log)
	for _, desired := range cfg.VLANs {
		if ctx.Err() != nil {
			report.Err = ctx.Err()
			report.Error = report.Err.Error()
			break
		}
		report.Results = append(report.Results, reconciler.Reconcile(ctx, desired))
	}
	return report
}

// Show reads the current state of one VLAN on target.
func (f *FleetService) Show(ctx context.Context, target string, vlanID int) (entities.DeviceState, error) {
	if vlanID < entities.MinVLANID || vlanID > entities.MaxVLANID {
		return entities.DeviceState{}, fmt.Errorf("%w: vlan_id %d must be between %d and %d",
			entities.ErrInvalidDesiredState, vlanID, entities.MinVLANID, entities.MaxVLANID)
	}
	selected, err := f.selectSwitches(target)
	if err != nil {
		return entities.DeviceState{}, err
	}
	cfg := selected[0]

	device := f.open(cfg)
	driver, err := f.resolveDriver(ctx, device, cfg)
	if err != nil {
		return entities.DeviceState{}, err
	}

	callCtx, cancel := callContext(ctx, cfg)
	defer cancel()
	raw, err := device.ReadConfig(callCtx, vlanID)
	if err != nil {
		return entities.DeviceState{}, fmt.Errorf("failed to read vlan %d on %s: %w", vlanID, cfg.Target, err)
	}
	logging.WithVLAN(cfg.Target, vlanID).Tracef("Raw read output:\n%s", raw)
	return driver.ParseVLAN(raw, vlanID)
}

// OptionsFor maps a switch configuration onto reconciler options.
func OptionsFor(cfg entities.SwitchConfig) services.Options {
	return services.Options{
		DryRun:         cfg.Sandbox,
		CallTimeout:    cfg.CommandTimeout,
		VerifyTimeout:  cfg.VerifyTimeout,
		VerifyInterval: cfg.VerifyInterval,
		SaveConfig:     cfg.SaveConfig,
		StopOnError:    cfg.StopOnError,
	}
}

func (f *FleetService) selectSwitches(target string) ([]entities.SwitchConfig, error) {
	if target == "" {
		return f.switches, nil
	}
	for _, sw := range f.switches {
		if sw.Target == target {
			return []entities.SwitchConfig{sw}, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", entities.ErrUnknownTarget, target)
}

func (f *FleetService) resolveDriver(ctx context.Context, device Device, cfg entities.SwitchConfig) (platform.SwitchDriver, error) {
	var driver platform.SwitchDriver
	var err error
	if cfg.PlatformID() == "auto" {
		callCtx, cancel := callContext(ctx, cfg)
		driver, err = platform.Detect(callCtx, device)
		cancel()
		if err == nil {
			logging.WithSwitch(cfg.Target).Infof("Detected platform %s", driver.Name())
		}
	} else {
		driver, err = platform.Get(cfg.PlatformID())
	}
	if err != nil {
		return nil, err
	}
	device.SetDriver(driver, cfg)
	return driver, nil
}

func callContext(ctx context.Context, cfg entities.SwitchConfig) (context.Context, context.CancelFunc) {
	if cfg.CommandTimeout > 0 {
		return context.WithTimeout(ctx, cfg.CommandTimeout)
	}
	return context.WithCancel(ctx)
}
