package ports

import "context"

// SwitchRepository defines the port for raw command exchange with a switch
type SwitchRepository interface {
	Connect(ctx context.Context) error
	Disconnect()
	ExecuteCommand(ctx context.Context, cmd string) (string, error)
	IsConnected() bool
}
