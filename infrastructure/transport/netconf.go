package transport

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Juniper/go-netconf/netconf"
	"github.com/sirupsen/logrus"

	"github.com/carlosrabelo/vlansync/domain/entities"
	"github.com/carlosrabelo/vlansync/infrastructure/logging"
)

// NetconfClient executes raw RPC bodies over a NETCONF SSH session.
// ExecuteCommand takes the RPC body and returns the raw rpc-reply.
type NetconfClient struct {
	config  entities.SwitchConfig
	session *netconf.Session
	log     *logrus.Entry
}

// NewNetconfClient creates a new NETCONF client with the given configuration
func NewNetconfClient(cfg entities.SwitchConfig) *NetconfClient {
	return &NetconfClient{config: cfg, log: logging.WithSwitch(cfg.Target)}
}

type dialResult struct {
	session *netconf.Session
	err     error
}

// Connect performs the SSH handshake and the NETCONF hello exchange.
func (nc *NetconfClient) Connect(ctx context.Context) error {
	if nc.session != nil {
		return nil
	}
	sshConfig, err := sshClientConfig(nc.config, nc.log)
	if err != nil {
		return err
	}

	done := make(chan dialResult, 1)
	go func() {
		s, err := netconf.DialSSH(nc.config.Address(), sshConfig)
		done <- dialResult{session: s, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return fmt.Errorf("failed to open NETCONF session to %s: %w", nc.config.Target, res.err)
		}
		nc.session = res.session
		nc.log.Debugf("NETCONF session %d established with %s", nc.session.SessionID, nc.config.Address())
		return nil
	case <-ctx.Done():
		go func() {
			if res := <-done; res.session != nil {
				res.session.Close()
			}
		}()
		return ctx.Err()
	}
}

func (nc *NetconfClient) Disconnect() {
	if nc.session != nil {
		nc.session.Close()
		nc.session = nil
		nc.log.Debug("Disconnected")
	}
}

func (nc *NetconfClient) IsConnected() bool {
	return nc.session != nil
}

type execResult struct {
	reply *netconf.RPCReply
	err   error
}

// ExecuteCommand sends one RPC. rpc-errors come back as *entities.DeviceError.
// A call that outlives its context closes the session, since the reply
// stream can no longer be matched to requests.
func (nc *NetconfClient) ExecuteCommand(ctx context.Context, rpc string) (string, error) {
	if nc.session == nil {
		return "", entities.ErrSessionNotConnected
	}
	nc.log.Debugf("Executing RPC: %s", firstTag(rpc))
	nc.log.Tracef("RPC body:\n%s", rpc)

	session := nc.session
	done := make(chan execResult, 1)
	go func() {
		reply, err := session.Exec(netconf.RawMethod(rpc))
		done <- execResult{reply: reply, err: err}
	}()

	var res execResult
	select {
	case res = <-done:
	case <-ctx.Done():
		nc.Disconnect()
		return "", ctx.Err()
	}

	if res.reply != nil {
		nc.log.Tracef("RPC reply:\n%s", res.reply.RawReply)
		for _, rpcErr := range res.reply.Errors {
			if rpcErr.Severity == "error" {
				return res.reply.RawReply, &entities.DeviceError{Command: firstTag(rpc), Message: rpcErrorMessage(rpcErr)}
			}
		}
	}
	if res.err != nil {
		var rpcErr *netconf.RPCError
		if errors.As(res.err, &rpcErr) {
			return "", &entities.DeviceError{Command: firstTag(rpc), Message: rpcErrorMessage(*rpcErr)}
		}
		return "", fmt.Errorf("rpc %s failed: %w", firstTag(rpc), res.err)
	}
	if res.reply == nil {
		return "", fmt.Errorf("rpc %s returned no reply", firstTag(rpc))
	}
	return res.reply.RawReply, nil
}

func rpcErrorMessage(e netconf.RPCError) string {
	parts := []string{e.Tag}
	if msg := strings.TrimSpace(e.Message); msg != "" {
		parts = append(parts, msg)
	}
	if path := strings.TrimSpace(e.Path); path != "" {
		parts = append(parts, "at "+path)
	}
	return strings.Join(parts, ": ")
}

// firstTag names an RPC by its outer element for logs and error reports.
func firstTag(rpc string) string {
	trimmed := strings.TrimSpace(rpc)
	if !strings.HasPrefix(trimmed, "<") {
		return trimmed
	}
	end := strings.IndexAny(trimmed, " />")
	if end <= 1 {
		return trimmed
	}
	return trimmed[1:end]
}
