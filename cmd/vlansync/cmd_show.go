package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/carlosrabelo/vlansync/application/services"
	"github.com/carlosrabelo/vlansync/domain/entities"
	"github.com/carlosrabelo/vlansync/infrastructure/transport"
)

func newShowCmd(opts *rootOptions) *cobra.Command {
	var target string
	var vlanID int

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the device state of one VLAN",
		Long: `Read one VLAN from a switch and print what was found.

  vlansync show -t 10.0.0.1 --vlan 44
  vlansync show -t 10.0.0.1 --vlan 44 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig(false)
			if err != nil {
				return err
			}
			defer transport.CloseAll()

			fleet := services.NewFleetService(cfg.Switches, 1)
			state, err := fleet.Show(cmd.Context(), target, vlanID)
			if err != nil {
				return err
			}
			return writeState(cmd.OutOrStdout(), state, opts.jsonOutput)
		},
	}

	cmd.Flags().StringVarP(&target, "target", "t", "", "switch to query")
	cmd.Flags().IntVar(&vlanID, "vlan", 0, "VLAN ID to read")
	_ = cmd.MarkFlagRequired("target")
	_ = cmd.MarkFlagRequired("vlan")
	return cmd
}

// stateView omits attributes that mean nothing for an absent VLAN.
type stateView struct {
	VLANID   int             `yaml:"vlan_id" json:"vlan_id"`
	Ensure   entities.Ensure `yaml:"ensure" json:"ensure"`
	VLANName *string         `yaml:"vlan_name,omitempty" json:"vlan_name,omitempty"`
	Shutdown *bool           `yaml:"shutdown,omitempty" json:"shutdown,omitempty"`
}

func newStateView(state entities.DeviceState) stateView {
	view := stateView{VLANID: state.VLANID, Ensure: state.Ensure}
	if state.Exists() {
		view.VLANName = entities.StringPtr(state.VLANName)
		view.Shutdown = entities.BoolPtr(state.Shutdown)
	}
	return view
}

func writeState(w io.Writer, state entities.DeviceState, asJSON bool) error {
	view := newStateView(state)
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(view)
	}
	out, err := yaml.Marshal(view)
	if err != nil {
		return fmt.Errorf("failed to render vlan %d: %w", state.VLANID, err)
	}
	_, err = w.Write(out)
	return err
}
