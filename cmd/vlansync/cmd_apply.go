package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/carlosrabelo/vlansync/application/services"
	"github.com/carlosrabelo/vlansync/domain/entities"
	"github.com/carlosrabelo/vlansync/infrastructure/transport"
)

func newApplyCmd(opts *rootOptions) *cobra.Command {
	var target string
	var write bool

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Reconcile the configured VLANs",
		Long: `Reconcile the VLANs of every configured switch, or only --target.

Without --write the run is a dry-run: each VLAN is read and diffed and the
commands that would be sent are printed.

  vlansync apply                      # plan every switch
  vlansync apply -t 10.0.0.1 --write  # converge one switch`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig(write)
			if err != nil {
				return err
			}
			defer transport.CloseAll()

			fleet := services.NewFleetService(cfg.Switches, cfg.Parallelism)
			report, err := fleet.Apply(cmd.Context(), target)
			if err != nil {
				return err
			}
			if err := writeReport(cmd.OutOrStdout(), report, opts.jsonOutput); err != nil {
				return err
			}
			if report.Failed() {
				return errNotConverged
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&target, "target", "t", "", "switch to reconcile (default: all)")
	cmd.Flags().BoolVarP(&write, "write", "w", false, "send changes to the switches")
	return cmd
}

type resultView struct {
	entities.ApplyResult
	Error string `json:"error,omitempty"`
}

type switchView struct {
	services.SwitchReport
	Results []resultView `json:"results"`
}

type reportView struct {
	Switches []switchView     `json:"switches"`
	Summary  services.Summary `json:"summary"`
}

func newReportView(report services.Report) reportView {
	view := reportView{Summary: report.Summary()}
	for _, sw := range report.Switches {
		sv := switchView{SwitchReport: sw, Results: make([]resultView, 0, len(sw.Results))}
		for _, res := range sw.Results {
			sv.Results = append(sv.Results, resultView{ApplyResult: res, Error: res.ErrorMessage()})
		}
		view.Switches = append(view.Switches, sv)
	}
	return view
}

func writeReport(w io.Writer, report services.Report, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(newReportView(report))
	}

	for _, sw := range report.Switches {
		mode := "write"
		if sw.DryRun {
			mode = "dry-run"
		}
		platform := sw.Platform
		if platform == "" {
			platform = "unknown platform"
		}
		fmt.Fprintf(w, "Switch %s (%s, %s)\n", sw.Target, platform, mode)
		if sw.Err != nil {
			fmt.Fprintf(w, "  FAILED: %v\n", sw.Err)
		}
		for _, res := range sw.Results {
			fmt.Fprintf(w, "  vlan %d: %s\n", res.VLANID, describe(res))
			for _, cmd := range res.Commands {
				if res.State == entities.StatePlanned {
					fmt.Fprintf(w, "      %s\n", cmd)
				}
			}
			for _, devErr := range res.Errors {
				fmt.Fprintf(w, "      rejected %q: %s\n", devErr.Command, strings.TrimSpace(devErr.Message))
			}
		}
	}

	s := report.Summary()
	fmt.Fprintf(w, "%d switch(es): %d converged (%d changed), %d planned, %d failed\n",
		s.Switches, s.Converged, s.Changed, s.Planned, s.Failed)
	return nil
}

func describe(res entities.ApplyResult) string {
	switch {
	case res.Failed():
		return "FAILED: " + res.ErrorMessage()
	case res.State == entities.StatePlanned:
		return "would apply " + res.ChangesApplied.String()
	case res.NoOp:
		return "converged (no changes)"
	case res.Saved:
		return fmt.Sprintf("converged, applied %s, configuration saved", res.ChangesApplied)
	default:
		return fmt.Sprintf("converged, applied %s", res.ChangesApplied)
	}
}
