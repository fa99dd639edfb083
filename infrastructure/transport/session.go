package transport

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/carlosrabelo/vlansync/domain/entities"
	"github.com/carlosrabelo/vlansync/infrastructure/logging"
	"github.com/carlosrabelo/vlansync/platform"
)

// Session binds a client to a platform driver. It implements both the
// SwitchRepository port used for detection and the DeviceSession port used
// by the reconciler.
type Session struct {
	mu     sync.Mutex
	client Client
	driver platform.SwitchDriver
	target string
	log    *logrus.Entry
}

// NewSession creates a session for target. driver may be nil until the
// platform has been detected.
func NewSession(client Client, driver platform.SwitchDriver, target string) *Session {
	return &Session{
		client: client,
		driver: driver,
		target: target,
		log:    logging.WithSwitch(target),
	}
}

// Open returns a session over the cached client for cfg, with the driver's
// login dialogue installed on clients that need one.
func Open(cfg entities.SwitchConfig, driver platform.SwitchDriver) *Session {
	client := Get(cfg)
	s := NewSession(client, nil, cfg.Target)
	s.SetDriver(driver, cfg)
	return s
}

// SetDriver installs the platform driver once known.
func (s *Session) SetDriver(driver platform.SwitchDriver, cfg entities.SwitchConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.driver = driver
	if driver == nil {
		return
	}
	if auth, ok := s.client.(AuthConfigurable); ok {
		if prompts := driver.GetAuthenticationSequence(cfg.Username, cfg.Password, cfg.EnablePassword); len(prompts) > 0 {
			auth.SetAuthSequence(prompts)
		}
	}
}

// Driver returns the platform driver, or nil before detection.
func (s *Session) Driver() platform.SwitchDriver {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.driver
}

// Connect connects to the switch
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connectLocked(ctx)
}

func (s *Session) connectLocked(ctx context.Context) error {
	if s.client.IsConnected() {
		return nil
	}
	if err := s.client.Connect(ctx); err != nil {
		return s.transportError(ctx, "connect", err)
	}
	return nil
}

// Disconnect disconnects from the switch
func (s *Session) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.client.Disconnect()
}

// IsConnected checks if connected
func (s *Session) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.client.IsConnected()
}

// ExecuteCommand runs a command and returns its raw output without
// classifying device errors.
func (s *Session) ExecuteCommand(ctx context.Context, cmd string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.execLocked(ctx, cmd)
}

func (s *Session) execLocked(ctx context.Context, cmd string) (string, error) {
	if err := s.connectLocked(ctx); err != nil {
		return "", err
	}
	output, err := s.client.ExecuteCommand(ctx, cmd)
	if err != nil {
		return output, s.transportError(ctx, "execute", err)
	}
	return output, nil
}

// Execute runs one command and reports output the driver recognises as a
// device error as *entities.DeviceError.
func (s *Session) Execute(ctx context.Context, cmd string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.driver == nil {
		return "", errors.New("session has no platform driver")
	}
	output, err := s.execLocked(ctx, cmd)
	if err != nil {
		return output, err
	}
	if s.driver.IsCommandError(output) {
		return output, &entities.DeviceError{Command: cmd, Message: errorLine(output)}
	}
	return output, nil
}

// ReadConfig runs the driver's read query for one VLAN.
func (s *Session) ReadConfig(ctx context.Context, vlanID int) (string, error) {
	s.mu.Lock()
	driver := s.driver
	s.mu.Unlock()
	if driver == nil {
		return "", errors.New("session has no platform driver")
	}
	return s.Execute(ctx, driver.ReadVLANCommand(vlanID))
}

// transportError classifies a client failure. The client is dropped so the
// next call reconnects instead of reading the tail of a stale reply.
func (s *Session) transportError(ctx context.Context, op string, err error) error {
	var devErr *entities.DeviceError
	if errors.As(err, &devErr) {
		return err
	}
	var transportErr *entities.TransportError
	if errors.As(err, &transportErr) {
		return err
	}
	timeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded)
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		timeout = true
	}
	if !errors.Is(err, entities.ErrSessionNotConnected) {
		s.client.Disconnect()
	}
	if timeout {
		s.log.Warnf("%s timed out; session dropped", op)
	}
	return &entities.TransportError{Op: op, Target: s.target, Timeout: timeout, Err: err}
}

// errorLine picks the line carrying the device's error text.
func errorLine(output string) string {
	for _, line := range strings.Split(output, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "%") || strings.Contains(strings.ToLower(trimmed), "error") {
			return trimmed
		}
	}
	return strings.TrimSpace(output)
}
