package transport

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/ziutek/telnet"

	"github.com/carlosrabelo/vlansync/domain/entities"
	"github.com/carlosrabelo/vlansync/infrastructure/logging"
)

const (
	DefaultTimeout    = 120 * time.Second // Increased for slow DmOS commands
	BufferSize        = 4096
	PromptUsername    = "Username:"
	PromptPassword    = "Password:"
	PromptEnable      = ">"
	PromptPrivileged  = "#"
	TerminalLengthCmd = "terminal length 0\n"
)

// TelnetClient manages a Telnet connection to a switch
type TelnetClient struct {
	conn         *telnet.Conn
	config       entities.SwitchConfig
	authSequence []entities.AuthPrompt
	log          *logrus.Entry
}

// NewTelnetClient creates a new Telnet client with the given configuration
func NewTelnetClient(cfg entities.SwitchConfig) *TelnetClient {
	return &TelnetClient{config: cfg, log: logging.WithSwitch(cfg.Target)}
}

// SetAuthSequence configures the authentication sequence for this client
func (tc *TelnetClient) SetAuthSequence(prompts []entities.AuthPrompt) {
	tc.authSequence = prompts
}

func (tc *TelnetClient) reader() promptReader {
	return promptReader{r: tc.conn, setDeadline: tc.conn.SetReadDeadline, log: tc.log}
}

// Connect establishes a Telnet connection to the switch
func (tc *TelnetClient) Connect(ctx context.Context) error {
	if tc.conn != nil {
		return nil
	}
	timeout := DefaultTimeout
	if d, ok := ctx.Deadline(); ok {
		timeout = time.Until(d)
	}
	conn, err := telnet.DialTimeout("tcp", tc.config.Address(), timeout)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", tc.config.Target, err)
	}
	tc.conn = conn
	tc.log.Debugf("Connected to %s", tc.config.Address())

	// Use custom auth sequence if configured, otherwise use default IOS sequence
	var prompts []entities.AuthPrompt
	if len(tc.authSequence) > 0 {
		prompts = tc.authSequence
	} else {
		prompts = []entities.AuthPrompt{
			{WaitFor: PromptUsername, SendCmd: tc.config.Username + "\n"},
			{WaitFor: PromptPassword, SendCmd: tc.config.Password + "\n"},
			{WaitFor: PromptEnable, SendCmd: "enable\n"},
			{WaitFor: PromptPassword, SendCmd: tc.config.EnablePassword + "\n"},
			{WaitFor: PromptPrivileged, SendCmd: TerminalLengthCmd},
			{WaitFor: PromptPrivileged, SendCmd: ""},
		}
	}

	for _, p := range prompts {
		output, err := tc.reader().readUntil(ctx, p.WaitFor, DefaultTimeout)
		if err != nil {
			tc.Disconnect()
			return fmt.Errorf("failed to wait for %s: %w, output: %s", p.WaitFor, err, output)
		}
		if p.SendCmd != "" {
			if err := tc.send(p.SendCmd); err != nil {
				tc.Disconnect()
				return fmt.Errorf("failed to answer %s: %w", p.WaitFor, err)
			}
			tc.log.Debugf("Sent %s for prompt %s", maskSecret(p, tc.config), p.WaitFor)
		}
	}
	return nil
}

// Disconnect closes the Telnet connection
func (tc *TelnetClient) Disconnect() {
	if tc.conn != nil {
		tc.conn.Close()
		tc.log.Debug("Disconnected")
		tc.conn = nil
	}
}

func (tc *TelnetClient) IsConnected() bool {
	return tc.conn != nil
}

// ExecuteCommand sends a command to the switch and returns its output
func (tc *TelnetClient) ExecuteCommand(ctx context.Context, cmd string) (string, error) {
	if tc.conn == nil {
		return "", entities.ErrSessionNotConnected
	}
	tc.log.Debugf("Executing: %s", cmd)
	if err := tc.send(cmd + "\n"); err != nil {
		return "", fmt.Errorf("failed to send command %s: %w", cmd, err)
	}
	output, err := tc.reader().readUntil(ctx, PromptPrivileged, DefaultTimeout)
	if err != nil {
		return "", fmt.Errorf("error executing %s: %w", cmd, err)
	}
	output = trimEcho(output)
	tc.log.Tracef("Switch output for '%s':\n%s", cmd, output)
	return output, nil
}

func (tc *TelnetClient) send(data string) error {
	_ = tc.conn.SetWriteDeadline(time.Now().Add(DefaultTimeout))
	_, err := tc.conn.Write([]byte(data))
	return err
}

// maskSecret keeps passwords out of debug logs.
func maskSecret(p entities.AuthPrompt, cfg entities.SwitchConfig) string {
	sent := strings.TrimSpace(p.SendCmd)
	if sent != "" && (sent == cfg.Password || sent == cfg.EnablePassword) {
		return "********"
	}
	return sent
}
