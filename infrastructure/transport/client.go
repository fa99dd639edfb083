package transport

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"sync"

	"github.com/carlosrabelo/vlansync/domain/entities"
)

// Client is a raw command channel to one switch.
type Client interface {
	Connect(ctx context.Context) error
	Disconnect()
	ExecuteCommand(ctx context.Context, cmd string) (string, error)
	IsConnected() bool
}

// AuthConfigurable allows setting authentication prompts after client creation
type AuthConfigurable interface {
	SetAuthSequence(prompts []entities.AuthPrompt)
}

var (
	clientCache   = make(map[string]Client)
	clientCacheMu sync.Mutex
)

func cacheKey(cfg entities.SwitchConfig) string {
	keyData := struct {
		Transport      string
		Target         string
		Port           int
		Username       string
		Password       string
		EnablePassword string
		KnownHosts     string
	}{
		Transport:      strings.ToLower(cfg.Transport),
		Target:         cfg.Target,
		Port:           cfg.Port,
		Username:       cfg.Username,
		Password:       cfg.Password,
		EnablePassword: cfg.EnablePassword,
		KnownHosts:     cfg.KnownHosts,
	}
	bytes, _ := json.Marshal(keyData)
	hash := sha256.Sum256(bytes)
	return hex.EncodeToString(hash[:])
}

// Get returns a cached client for the provided configuration or creates a new one
func Get(cfg entities.SwitchConfig) Client {
	clientCacheMu.Lock()
	defer clientCacheMu.Unlock()
	key := cacheKey(cfg)
	if client, exists := clientCache[key]; exists {
		return client
	}
	client := newClient(cfg)
	clientCache[key] = client
	return client
}

// CloseAll releases every cached client session
func CloseAll() {
	clientCacheMu.Lock()
	defer clientCacheMu.Unlock()
	for key, client := range clientCache {
		client.Disconnect()
		delete(clientCache, key)
	}
}

func newClient(cfg entities.SwitchConfig) Client {
	switch strings.ToLower(cfg.Transport) {
	case "ssh":
		return NewSSHClient(cfg)
	case "netconf":
		return NewNetconfClient(cfg)
	default:
		return NewTelnetClient(cfg)
	}
}
