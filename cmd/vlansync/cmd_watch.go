package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/carlosrabelo/vlansync/application/services"
	"github.com/carlosrabelo/vlansync/infrastructure/config"
	"github.com/carlosrabelo/vlansync/infrastructure/logging"
	"github.com/carlosrabelo/vlansync/infrastructure/snmp"
	"github.com/carlosrabelo/vlansync/infrastructure/transport"
)

func newWatchCmd(opts *rootOptions) *cobra.Command {
	var write bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Reconcile switches when they send SNMP traps",
		Long: `Listen for SNMP traps and reconcile the sending switch.

Only traps from configured switches whose notification OID is listed in
snmp.trap_oids trigger a run. Runs for the same switch are serialized and
debounced by snmp.debounce.

  vlansync watch --write`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig(write)
			if err != nil {
				return err
			}
			defer transport.CloseAll()

			fleet := services.NewFleetService(cfg.Switches, cfg.Parallelism)
			watcher := snmp.NewWatcher(watchConfig(cfg), func(ctx context.Context, target string) {
				report, err := fleet.Apply(ctx, target)
				log := logging.WithSwitch(target)
				if err != nil {
					log.Errorf("Trap-triggered run failed: %v", err)
					return
				}
				s := report.Summary()
				if report.Failed() {
					log.Errorf("Trap-triggered run: %d converged, %d failed", s.Converged, s.Failed)
					return
				}
				log.Infof("Trap-triggered run: %d converged (%d changed), %d planned", s.Converged, s.Changed, s.Planned)
			})
			return watcher.Run(cmd.Context())
		},
	}

	cmd.Flags().BoolVarP(&write, "write", "w", false, "send changes to the switches")
	return cmd
}

func watchConfig(cfg *config.Config) snmp.Config {
	targets := make([]string, 0, len(cfg.Switches))
	for _, sw := range cfg.Switches {
		targets = append(targets, sw.Target)
	}
	return snmp.Config{
		Listen:    cfg.SNMP.Listen,
		Port:      cfg.SNMP.Port,
		Community: cfg.SNMP.Community,
		Debounce:  cfg.SNMP.Debounce,
		TrapOIDs:  cfg.SNMP.TrapOIDs,
		Targets:   targets,
	}
}
