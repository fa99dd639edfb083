package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"github.com/carlosrabelo/vlansync/domain/entities"
	"github.com/carlosrabelo/vlansync/domain/ports"
	"github.com/carlosrabelo/vlansync/platform"
)

const defaultVerifyInterval = 500 * time.Millisecond

// Options tunes one Reconciler.
type Options struct {
	// DryRun stops after diffing and reports the plan without sending it.
	DryRun bool
	// CallTimeout bounds every session call. Zero leaves calls bounded only
	// by the caller's context.
	CallTimeout time.Duration
	// VerifyTimeout enables polling during verification for devices that
	// apply changes asynchronously. Zero verifies with a single read.
	VerifyTimeout  time.Duration
	VerifyInterval time.Duration
	SaveConfig     bool
	StopOnError    bool
}

// Reconciler drives one device session through read, diff, apply and
// verify for one VLAN at a time. It is not safe for concurrent use; run one
// per device.
type Reconciler struct {
	session ports.DeviceSession
	driver  platform.SwitchDriver
	opts    Options
	log     *logrus.Entry
}

// NewReconciler creates a reconciler bound to a session and its driver.
func NewReconciler(session ports.DeviceSession, driver platform.SwitchDriver, opts Options, logger *logrus.Entry) *Reconciler {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Reconciler{
		session: session,
		driver:  driver,
		opts:    opts,
		log:     logger,
	}
}

// Reconcile runs one full cycle with a throwaway Reconciler.
func Reconcile(ctx context.Context, desired entities.DesiredState, session ports.DeviceSession, driver platform.SwitchDriver, opts Options) entities.ApplyResult {
	return NewReconciler(session, driver, opts, nil).Reconcile(ctx, desired)
}

// Reconcile makes the device match desired and reports what it did.
// Every failure is reported in the result; nothing is retried.
func (r *Reconciler) Reconcile(ctx context.Context, desired entities.DesiredState) entities.ApplyResult {
	result := entities.ApplyResult{VLANID: desired.VLANID, State: entities.StateIdle}
	log := r.log.WithField("vlan", desired.VLANID)

	if err := desired.Validate(); err != nil {
		return r.fail(log, result, err)
	}

	result.State = entities.StateReading
	if err := ctx.Err(); err != nil {
		return r.fail(log, result, err)
	}
	actual, err := r.read(ctx, desired.VLANID)
	if err != nil {
		return r.fail(log, result, err)
	}
	log.Debugf("Device state: ensure=%s name=%q shutdown=%t", actual.Ensure, actual.VLANName, actual.Shutdown)

	result.State = entities.StateDiffing
	changes := Diff(desired, actual)
	if changes.IsEmpty() {
		log.Debug("No changes required")
		result.State = entities.StateConverged
		result.Converged = true
		result.NoOp = true
		return result
	}
	commands, err := Generate(changes, desired.VLANID, r.driver)
	if err != nil {
		return r.fail(log, result, err)
	}
	result.ChangesApplied = changes
	result.Commands = commands

	if r.opts.DryRun {
		log.Infof("Sandbox: planned %s", changes)
		for _, cmd := range commands {
			log.Debugf("  %s", cmd)
		}
		result.State = entities.StatePlanned
		return result
	}

	// Last point at which cancellation is honoured before the device sees
	// anything.
	if err := ctx.Err(); err != nil {
		result.ChangesApplied = nil
		return r.fail(log, result, err)
	}
	result.State = entities.StateApplying
	log.Infof("Applying %s", changes)
	_, exit := r.driver.Framing(desired.VLANID, changes)
	rejected, err := r.apply(context.WithoutCancel(ctx), log, commands, len(exit))
	result.Errors = rejected
	if err != nil {
		return r.fail(log, result, err)
	}
	if err := ctx.Err(); err != nil {
		return r.fail(log, result, err)
	}

	result.State = entities.StateVerifying
	residual, err := r.verify(ctx, desired, len(rejected) > 0)
	if err != nil {
		return r.fail(log, result, err)
	}
	result.Residual = residual

	switch {
	case len(rejected) > 0:
		return r.fail(log, result, fmt.Errorf("%d command(s) rejected: %w", len(rejected), rejected[0]))
	case !residual.IsEmpty():
		return r.fail(log, result, fmt.Errorf("%w: residual %s", entities.ErrNotConverged, residual))
	}

	result.State = entities.StateConverged
	result.Converged = true
	log.Infof("Converged after %d command(s)", len(commands))
	if r.opts.SaveConfig {
		result.Saved = r.save(ctx, log)
	}
	return result
}

func (r *Reconciler) fail(log *logrus.Entry, result entities.ApplyResult, err error) entities.ApplyResult {
	log.WithField("state", result.State).Errorf("Reconciliation failed: %v", err)
	result.State = entities.StateFailed
	result.Converged = false
	result.Err = err
	return result
}

func (r *Reconciler) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.opts.CallTimeout > 0 {
		return context.WithTimeout(ctx, r.opts.CallTimeout)
	}
	return context.WithCancel(ctx)
}

func (r *Reconciler) read(ctx context.Context, vlanID int) (entities.DeviceState, error) {
	callCtx, cancel := r.callContext(ctx)
	defer cancel()
	raw, err := r.session.ReadConfig(callCtx, vlanID)
	if err != nil {
		return entities.DeviceState{}, asTransportError("read", err)
	}
	r.log.WithField("vlan", vlanID).Tracef("Raw read output:\n%s", raw)
	return r.driver.ParseVLAN(raw, vlanID)
}

// apply sends the batch in order. Device rejections are collected; any other
// error aborts the batch. When StopOnError cuts the batch short the trailing
// mode-exit commands still run so the session is left at the exec prompt.
func (r *Reconciler) apply(ctx context.Context, log *logrus.Entry, commands []string, trailer int) ([]*entities.DeviceError, error) {
	var rejected []*entities.DeviceError
	body := len(commands) - trailer
	for i := 0; i < len(commands); i++ {
		cmd := commands[i]
		log.Debugf("Executing: %s", cmd)
		callCtx, cancel := r.callContext(ctx)
		output, err := r.session.Execute(callCtx, cmd)
		cancel()
		if err != nil {
			var devErr *entities.DeviceError
			if !errors.As(err, &devErr) {
				return rejected, asTransportError("execute", err)
			}
			log.Warnf("Command %q rejected: %s", cmd, devErr.Message)
			rejected = append(rejected, devErr)
			if r.opts.StopOnError && i < body {
				i = body - 1
			}
			continue
		}
		log.Tracef("Output of %q:\n%s", cmd, output)
	}
	return rejected, nil
}

// verify re-reads the VLAN and returns what still differs. With a verify
// budget it polls until the residual clears or the budget is spent; read
// failures end polling immediately.
func (r *Reconciler) verify(ctx context.Context, desired entities.DesiredState, rejected bool) (entities.ChangeSet, error) {
	if r.opts.VerifyTimeout <= 0 || rejected {
		actual, err := r.read(ctx, desired.VLANID)
		if err != nil {
			return nil, err
		}
		return Diff(desired, actual), nil
	}

	interval := r.opts.VerifyInterval
	if interval <= 0 {
		interval = defaultVerifyInterval
	}
	b := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(interval),
		backoff.WithMaxInterval(4*interval),
		backoff.WithMaxElapsedTime(r.opts.VerifyTimeout),
	)

	var residual entities.ChangeSet
	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		actual, err := r.read(ctx, desired.VLANID)
		if err != nil {
			return backoff.Permanent(err)
		}
		residual = Diff(desired, actual)
		if !residual.IsEmpty() {
			r.log.WithField("vlan", desired.VLANID).Debugf("Verify attempt %d: residual %s", attempt, residual)
			return entities.ErrNotConverged
		}
		return nil
	}, backoff.WithContext(b, ctx))
	if err != nil && !errors.Is(err, entities.ErrNotConverged) {
		return nil, err
	}
	return residual, nil
}

// save tries each save command until one succeeds. Failing to save never
// changes the verdict.
func (r *Reconciler) save(ctx context.Context, log *logrus.Entry) bool {
	commands := r.driver.SaveCommands()
	for idx, cmd := range commands {
		log.Debugf("Saving configuration using '%s'", cmd)
		callCtx, cancel := r.callContext(ctx)
		_, err := r.session.Execute(callCtx, cmd)
		cancel()
		if err != nil {
			log.Warnf("Error saving configuration with '%s': %v", cmd, err)
			if idx == len(commands)-1 {
				log.Warn("Unable to persist configuration automatically; please save manually")
			}
			continue
		}
		log.Infof("Configuration saved using '%s'", cmd)
		return true
	}
	return false
}

// asTransportError classifies bare context errors from a session that did not
// wrap them itself.
func asTransportError(op string, err error) error {
	var transportErr *entities.TransportError
	var devErr *entities.DeviceError
	if errors.As(err, &transportErr) || errors.As(err, &devErr) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &entities.TransportError{Op: op, Target: "device", Timeout: true, Err: err}
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return &entities.TransportError{Op: op, Target: "device", Err: err}
}
