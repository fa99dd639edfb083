package ports

import (
	"context"

	"github.com/carlosrabelo/vlansync/domain/entities"
)

// DeviceSession is the connected, authenticated channel the reconciler
// drives. Each call honours the deadline carried by ctx.
//
// Execute returns *entities.DeviceError when the device rejects the command
// and *entities.TransportError when the channel itself fails.
type DeviceSession interface {
	Execute(ctx context.Context, command string) (string, error)
	ReadConfig(ctx context.Context, vlanID int) (string, error)
}

// VLANReconciler reconciles one VLAN per call against a single device.
type VLANReconciler interface {
	Reconcile(ctx context.Context, desired entities.DesiredState) entities.ApplyResult
}
