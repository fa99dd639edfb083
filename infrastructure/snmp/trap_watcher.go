// Package snmp turns SNMP traps from managed switches into reconciliation runs.
package snmp

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gosnmp/gosnmp"
	"github.com/sirupsen/logrus"

	"github.com/carlosrabelo/vlansync/infrastructure/logging"
)

// SNMPTrapOID is the varbind that carries the notification type of a v2c trap.
const SNMPTrapOID = ".1.3.6.1.6.3.1.1.4.1.0"

// Config describes the trap listener.
type Config struct {
	Listen    string
	Port      int
	Community string
	// Debounce is the minimum time between two runs for the same switch.
	Debounce time.Duration
	// TrapOIDs lists the notifications that trigger a run.
	TrapOIDs []string
	// Targets lists the switches traps are accepted from.
	Targets []string
}

// Address returns the UDP listen address.
func (c Config) Address() string {
	return net.JoinHostPort(c.Listen, strconv.Itoa(c.Port))
}

// Handler runs a reconciliation for one switch.
type Handler func(ctx context.Context, target string)

// Watcher listens for traps and dispatches at most one run per switch at a
// time.
type Watcher struct {
	cfg     Config
	handler Handler
	log     *logrus.Entry
	now     func() time.Time

	targets map[string]bool
	oids    map[string]bool

	mu      sync.Mutex
	last    map[string]time.Time
	running map[string]*sync.Mutex
	wg      sync.WaitGroup
}

// NewWatcher creates a watcher for cfg.
func NewWatcher(cfg Config, handler Handler) *Watcher {
	w := &Watcher{
		cfg:     cfg,
		handler: handler,
		log:     logging.Logger.WithField("component", "snmp"),
		now:     time.Now,
		targets: make(map[string]bool, len(cfg.Targets)),
		oids:    make(map[string]bool, len(cfg.TrapOIDs)),
		last:    make(map[string]time.Time),
		running: make(map[string]*sync.Mutex),
	}
	for _, target := range cfg.Targets {
		w.targets[target] = true
	}
	for _, oid := range cfg.TrapOIDs {
		w.oids[normalizeOID(oid)] = true
	}
	return w
}

// Run listens until ctx is cancelled, then waits for in-flight runs.
func (w *Watcher) Run(ctx context.Context) error {
	listener := gosnmp.NewTrapListener()
	listener.Params = &gosnmp.GoSNMP{
		Port:      uint16(w.cfg.Port),
		Community: w.cfg.Community,
		Version:   gosnmp.Version2c,
		Timeout:   5 * time.Second,
		Transport: "udp",
		Logger:    gosnmp.NewLogger(w.log),
	}
	listener.OnNewTrap = func(packet *gosnmp.SnmpPacket, addr *net.UDPAddr) {
		w.handle(ctx, packet, addr)
	}

	address := w.cfg.Address()
	errCh := make(chan error, 1)
	go func() {
		errCh <- listener.Listen(address)
	}()

	// Close only after the socket is bound; closing earlier leaves the
	// listener goroutine blocked.
	select {
	case <-listener.Listening():
	case err := <-errCh:
		return fmt.Errorf("failed to start SNMP listener on %s: %w", address, err)
	}
	w.log.Infof("SNMP daemon started, listening for traps on %s", address)

	var err error
	select {
	case <-ctx.Done():
		listener.Close()
		<-errCh
	case err = <-errCh:
		if err != nil {
			err = fmt.Errorf("SNMP listener on %s stopped: %w", address, err)
		}
	}
	w.wg.Wait()
	w.log.Info("SNMP daemon stopped")
	return err
}

// Wait blocks until every dispatched run has returned.
func (w *Watcher) Wait() {
	w.wg.Wait()
}

func (w *Watcher) handle(ctx context.Context, packet *gosnmp.SnmpPacket, addr *net.UDPAddr) {
	if addr == nil || packet == nil {
		return
	}
	target := addr.IP.String()
	log := logging.WithSwitch(target)

	if !w.targets[target] {
		w.log.Warnf("Trap from %s not registered in YAML", target)
		return
	}
	if w.cfg.Community != "" && packet.Community != w.cfg.Community {
		log.Debugf("Ignoring trap with community %q", packet.Community)
		return
	}
	for _, v := range packet.Variables {
		log.Tracef("Trap variable: OID=%s, Value=%v", v.Name, v.Value)
	}

	trapOID := notificationOID(packet.Variables)
	if !w.oids[trapOID] {
		log.Debugf("Ignoring trap %s", trapOID)
		return
	}

	if !w.admit(target) {
		log.Debugf("Ignoring trap %s due to debounce", trapOID)
		return
	}

	log.Infof("Trap %s received, scheduling reconciliation", trapOID)
	lock := w.lockFor(target)
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		lock.Lock()
		defer lock.Unlock()
		if ctx.Err() != nil {
			return
		}
		w.handler(ctx, target)
	}()
}

// admit records a run for target unless one was admitted within the
// debounce window.
func (w *Watcher) admit(target string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	now := w.now()
	if last, ok := w.last[target]; ok && now.Sub(last) < w.cfg.Debounce {
		return false
	}
	w.last[target] = now
	return true
}

func (w *Watcher) lockFor(target string) *sync.Mutex {
	w.mu.Lock()
	defer w.mu.Unlock()
	lock, ok := w.running[target]
	if !ok {
		lock = &sync.Mutex{}
		w.running[target] = lock
	}
	return lock
}

func notificationOID(vars []gosnmp.SnmpPDU) string {
	for _, v := range vars {
		if normalizeOID(v.Name) != SNMPTrapOID {
			continue
		}
		if oid, ok := v.Value.(string); ok {
			return normalizeOID(oid)
		}
	}
	return ""
}

func normalizeOID(oid string) string {
	oid = strings.TrimSpace(oid)
	if oid == "" {
		return ""
	}
	return "." + strings.TrimPrefix(oid, ".")
}
