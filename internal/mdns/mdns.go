// Package mdns advertises the support desk on the local network with
// DNS-SD so clients can find the host without typing an address.
//
// Advertisement is opt-in. It only reveals presence; clients still need an
// issued token to get past the handshake.
package mdns

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/grandcat/zeroconf"
)

// ServiceType is the DNS-SD service type of support desk hosts.
const ServiceType = "_supportdesk._tcp"

// ProtocolVersion is advertised so clients can check frame compatibility.
const ProtocolVersion = "1"

// WebSocketPath is where clients connect on the advertised port.
const WebSocketPath = "/ws"

// Config holds configuration for mDNS advertisement.
type Config struct {
	// Port is the listening port of the WebSocket server.
	Port int

	// Name is the instance name. Defaults to the system hostname.
	Name string

	// Operator is the name clients address the operator by.
	Operator string
}

// Advertiser manages the DNS-SD registration.
type Advertiser struct {
	config Config
	server *zeroconf.Server
	mu     sync.Mutex
}

// NewAdvertiser creates an advertiser. It does not register anything until Start.
func NewAdvertiser(cfg Config) *Advertiser {
	return &Advertiser{config: cfg}
}

// Start registers the service. Calling Start on a running advertiser is a no-op.
func (a *Advertiser) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		return nil
	}

	name := a.instanceName()
	server, err := zeroconf.Register(
		name,
		ServiceType,
		"local.",
		a.config.Port,
		txtRecords(name, a.config.Operator),
		nil, // all interfaces
	)
	if err != nil {
		return fmt.Errorf("mdns register: %w", err)
	}

	a.server = server
	return nil
}

// Stop unregisters the service. It is safe to call on a stopped advertiser.
func (a *Advertiser) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}
}

// IsRunning reports whether the service is registered.
func (a *Advertiser) IsRunning() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.server != nil
}

func (a *Advertiser) instanceName() string {
	if a.config.Name != "" {
		return a.config.Name
	}
	hostname, err := os.Hostname()
	if err != nil {
		return "supportdesk"
	}
	return hostname
}

// txtRecords builds the TXT metadata. Each string stays well under the
// 255-byte DNS limit.
func txtRecords(name, operator string) []string {
	records := []string{
		"version=" + ProtocolVersion,
		"path=" + WebSocketPath,
		"name=" + name,
	}
	if operator != "" {
		records = append(records, "operator="+operator)
	}
	return records
}

// DiscoveredHost is a support desk found by Discover.
type DiscoveredHost struct {
	Name     string
	Host     string
	Port     int
	Path     string
	Operator string
	Version  string
}

// URL returns the WebSocket URL clients should dial.
func (h DiscoveredHost) URL() string {
	host := h.Host
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	path := h.Path
	if path == "" {
		path = WebSocketPath
	}
	return fmt.Sprintf("ws://%s:%d%s", host, h.Port, path)
}

// applyTXT copies known TXT keys into h. Unknown keys are ignored.
func (h *DiscoveredHost) applyTXT(records []string) {
	for _, txt := range records {
		key, value, ok := strings.Cut(txt, "=")
		if !ok {
			continue
		}
		switch key {
		case "version":
			h.Version = value
		case "path":
			h.Path = value
		case "name":
			h.Name = value
		case "operator":
			h.Operator = value
		}
	}
}

// Discover browses for support desk hosts until ctx is done.
func Discover(ctx context.Context) ([]DiscoveredHost, error) {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("mdns resolver: %w", err)
	}

	var (
		hosts []DiscoveredHost
		mu    sync.Mutex
		wg    sync.WaitGroup
	)

	entries := make(chan *zeroconf.ServiceEntry)

	wg.Add(1)
	go func() {
		defer wg.Done()
		for entry := range entries {
			host := DiscoveredHost{
				Name: entry.Instance,
				Port: entry.Port,
			}
			// Prefer IPv4.
			if len(entry.AddrIPv4) > 0 {
				host.Host = entry.AddrIPv4[0].String()
			} else if len(entry.AddrIPv6) > 0 {
				host.Host = entry.AddrIPv6[0].String()
			}
			host.applyTXT(entry.Text)

			mu.Lock()
			hosts = append(hosts, host)
			mu.Unlock()
		}
	}()

	if err := resolver.Browse(ctx, ServiceType, "local.", entries); err != nil {
		return nil, fmt.Errorf("mdns browse: %w", err)
	}

	<-ctx.Done()
	// zeroconf closes entries once ctx is done.
	wg.Wait()

	return hosts, nil
}
