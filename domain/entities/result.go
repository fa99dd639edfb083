package entities

// ReconcileState is a step of the reconciliation state machine.
type ReconcileState string

const (
	StateIdle      ReconcileState = "idle"
	StateReading   ReconcileState = "reading"
	StateDiffing   ReconcileState = "diffing"
	StateApplying  ReconcileState = "applying"
	StateVerifying ReconcileState = "verifying"
	StateConverged ReconcileState = "converged"
	StateFailed    ReconcileState = "failed"
	StatePlanned   ReconcileState = "planned" // dry-run stop after diffing
)

// ApplyResult is the outcome of one reconciliation cycle for one VLAN.
type ApplyResult struct {
	VLANID         int            `json:"vlan_id"`
	State          ReconcileState `json:"state"`
	ChangesApplied ChangeSet      `json:"changes_applied"`
	Commands       []string       `json:"commands,omitempty"`
	Converged      bool           `json:"converged"`
	NoOp           bool           `json:"no_op"`
	Residual       ChangeSet      `json:"residual,omitempty"`
	Errors         []*DeviceError `json:"errors,omitempty"`
	Err            error          `json:"-"`
	Saved          bool           `json:"saved,omitempty"`
}

// Failed reports whether the cycle ended without convergence.
// A dry-run plan is not a failure.
func (r ApplyResult) Failed() bool {
	return r.State == StateFailed
}

// Changed reports whether commands were sent to the device.
func (r ApplyResult) Changed() bool {
	return !r.NoOp && r.State != StatePlanned && len(r.Commands) > 0
}

// ErrorMessage returns the abort cause as text for reports.
func (r ApplyResult) ErrorMessage() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}
