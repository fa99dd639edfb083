package transport

import (
	"context"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/carlosrabelo/vlansync/domain/entities"
	"github.com/carlosrabelo/vlansync/infrastructure/logging"
)

// SSHClient manages an interactive SSH shell on a switch
type SSHClient struct {
	config  entities.SwitchConfig
	client  *ssh.Client
	session *ssh.Session
	stdin   io.WriteCloser
	stream  *streamReader
	netConn net.Conn
	log     *logrus.Entry
}

// NewSSHClient creates a new SSH client with the given configuration
func NewSSHClient(cfg entities.SwitchConfig) *SSHClient {
	return &SSHClient{config: cfg, log: logging.WithSwitch(cfg.Target)}
}

// sshClientConfig builds the handshake config shared by the CLI and NETCONF
// clients. Without a known_hosts file host keys are not checked.
func sshClientConfig(cfg entities.SwitchConfig, log *logrus.Entry) (*ssh.ClientConfig, error) {
	hostKeyCallback := ssh.InsecureIgnoreHostKey()
	if cfg.KnownHosts != "" {
		cb, err := knownhosts.New(cfg.KnownHosts)
		if err != nil {
			return nil, fmt.Errorf("failed to load known_hosts %s: %w", cfg.KnownHosts, err)
		}
		hostKeyCallback = cb
	} else {
		log.Debug("Host key verification disabled (no known_hosts configured)")
	}
	return &ssh.ClientConfig{
		User: cfg.Username,
		Auth: []ssh.AuthMethod{
			ssh.Password(cfg.Password),
			ssh.KeyboardInteractive(func(_, _ string, questions []string, _ []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range answers {
					answers[i] = cfg.Password
				}
				return answers, nil
			}),
		},
		HostKeyCallback: hostKeyCallback,
		Timeout:         DefaultTimeout,
	}, nil
}

func (sc *SSHClient) prompts() promptReader {
	return promptReader{r: sc.stream, setDeadline: sc.stream.SetReadDeadline, log: sc.log}
}

// Connect opens the shell and brings it to the privileged prompt.
func (sc *SSHClient) Connect(ctx context.Context) error {
	if sc.IsConnected() {
		return nil
	}
	addr := sc.config.Address()
	sshConfig, err := sshClientConfig(sc.config, sc.log)
	if err != nil {
		return err
	}

	dialer := &net.Dialer{Timeout: DefaultTimeout}
	rawConn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to connect to %s via SSH: %w", sc.config.Target, err)
	}
	if d, ok := ctx.Deadline(); ok {
		_ = rawConn.SetDeadline(d)
	}

	clientConn, chans, reqs, err := ssh.NewClientConn(rawConn, addr, sshConfig)
	if err != nil {
		rawConn.Close()
		return fmt.Errorf("failed to establish SSH client connection to %s: %w", sc.config.Target, err)
	}
	_ = rawConn.SetDeadline(noDeadline)

	client := ssh.NewClient(clientConn, chans, reqs)

	session, err := client.NewSession()
	if err != nil {
		client.Close()
		rawConn.Close()
		return fmt.Errorf("failed to create SSH session for %s: %w", sc.config.Target, err)
	}

	modes := ssh.TerminalModes{
		ssh.ECHO:          0,
		ssh.TTY_OP_ISPEED: 9600,
		ssh.TTY_OP_OSPEED: 9600,
	}
	if err := session.RequestPty("vt100", 80, 40, modes); err != nil {
		session.Close()
		client.Close()
		rawConn.Close()
		return fmt.Errorf("failed to request PTY for %s: %w", sc.config.Target, err)
	}

	stdin, err := session.StdinPipe()
	if err != nil {
		session.Close()
		client.Close()
		rawConn.Close()
		return fmt.Errorf("failed to get stdin pipe for %s: %w", sc.config.Target, err)
	}

	stdout, err := session.StdoutPipe()
	if err != nil {
		session.Close()
		client.Close()
		rawConn.Close()
		return fmt.Errorf("failed to get stdout pipe for %s: %w", sc.config.Target, err)
	}

	if err := session.Shell(); err != nil {
		session.Close()
		client.Close()
		rawConn.Close()
		return fmt.Errorf("failed to start shell for %s: %w", sc.config.Target, err)
	}

	sc.client = client
	sc.session = session
	sc.stdin = stdin
	sc.stream = newStreamReader(stdout)
	sc.netConn = rawConn
	sc.log.Debugf("Connected to %s via SSH", addr)

	initial, err := sc.prompts().readUntilAny(ctx, []string{PromptPrivileged, PromptEnable}, DefaultTimeout)
	if err != nil {
		sc.Disconnect()
		return err
	}

	if !strings.Contains(initial, PromptPrivileged) {
		sc.log.Debug("Elevating to privileged mode")
		if err := sc.send("enable\n"); err != nil {
			sc.Disconnect()
			return fmt.Errorf("failed to send enable command to %s: %w", sc.config.Target, err)
		}

		if _, err := sc.prompts().readUntil(ctx, PromptPassword, DefaultTimeout); err != nil {
			sc.Disconnect()
			return err
		}

		if err := sc.send(sc.config.EnablePassword + "\n"); err != nil {
			sc.Disconnect()
			return fmt.Errorf("failed to send enable password to %s: %w", sc.config.Target, err)
		}

		if _, err := sc.prompts().readUntil(ctx, PromptPrivileged, DefaultTimeout); err != nil {
			sc.Disconnect()
			return err
		}
	} else {
		sc.log.Debug("Already in privileged mode")
	}

	if err := sc.send(TerminalLengthCmd); err != nil {
		sc.Disconnect()
		return fmt.Errorf("failed to send terminal length command to %s: %w", sc.config.Target, err)
	}

	if _, err := sc.prompts().readUntil(ctx, PromptPrivileged, DefaultTimeout); err != nil {
		sc.Disconnect()
		return err
	}

	return nil
}

func (sc *SSHClient) Disconnect() {
	if sc.session != nil {
		sc.session.Close()
		sc.session = nil
	}
	if sc.client != nil {
		sc.client.Close()
		sc.client = nil
	}
	if sc.netConn != nil {
		sc.netConn.Close()
		sc.netConn = nil
	}
	if sc.stream != nil {
		sc.stream.Close()
		sc.stream = nil
	}
	sc.stdin = nil
	sc.log.Debug("Disconnected")
}

func (sc *SSHClient) IsConnected() bool {
	return sc.session != nil && sc.client != nil
}

func (sc *SSHClient) ExecuteCommand(ctx context.Context, cmd string) (string, error) {
	if !sc.IsConnected() {
		return "", entities.ErrSessionNotConnected
	}
	sc.log.Debugf("Executing: %s", cmd)
	if err := sc.send(cmd + "\n"); err != nil {
		return "", fmt.Errorf("failed to send command %s: %w", cmd, err)
	}

	output, err := sc.prompts().readUntil(ctx, PromptPrivileged, DefaultTimeout)
	if err != nil {
		return "", fmt.Errorf("error executing %s: %w", cmd, err)
	}

	output = trimEcho(output)
	sc.log.Tracef("Switch output for '%s':\n%s", cmd, output)
	return output, nil
}

func (sc *SSHClient) send(data string) error {
	_, err := sc.stdin.Write([]byte(data))
	return err
}
