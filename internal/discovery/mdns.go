// ABOUTME: mDNS service discovery for speakers
// ABOUTME: Advertises the control endpoint and browses for other speakers
package discovery

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/hashicorp/mdns"
	"github.com/rs/zerolog"

	"github.com/Resonate-Protocol/resonate-speaker/internal/version"
)

// ServiceType is the mDNS service speakers advertise
const ServiceType = "_resonate-speaker._tcp"

// Config holds discovery configuration
type Config struct {
	ServiceName string
	Port        int
	Path        string // control endpoint path, published as a TXT record
	Logger      zerolog.Logger
}

// Manager handles mDNS operations
type Manager struct {
	config  Config
	log     zerolog.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	servers chan *ServerInfo
}

// ServerInfo describes a discovered speaker
type ServerInfo struct {
	Name    string
	Host    string
	Port    int
	Path    string
	Version string
}

// Addr returns host:port
func (s *ServerInfo) Addr() string {
	return net.JoinHostPort(s.Host, fmt.Sprint(s.Port))
}

// NewManager creates a discovery manager
func NewManager(config Config) *Manager {
	ctx, cancel := context.WithCancel(context.Background())

	return &Manager{
		config:  config,
		log:     config.Logger.With().Str("component", "discovery").Logger(),
		ctx:     ctx,
		cancel:  cancel,
		servers: make(chan *ServerInfo, 10),
	}
}

// TXT returns the TXT records advertised for this speaker
func (m *Manager) TXT() []string {
	return []string{
		"path=" + m.config.Path,
		"product=" + version.Product,
		"manufacturer=" + version.Manufacturer,
		"version=" + version.Version,
	}
}

// Advertise advertises this speaker via mDNS until Stop
func (m *Manager) Advertise() error {
	ips, err := getLocalIPs()
	if err != nil {
		return fmt.Errorf("failed to get local IPs: %w", err)
	}

	service, err := mdns.NewMDNSService(
		m.config.ServiceName,
		ServiceType,
		"",
		"",
		m.config.Port,
		ips,
		m.TXT(),
	)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return fmt.Errorf("failed to create mdns server: %w", err)
	}

	m.log.Info().
		Str("name", m.config.ServiceName).
		Int("port", m.config.Port).
		Str("type", ServiceType).
		Msg("Advertising mDNS service")

	go func() {
		<-m.ctx.Done()
		server.Shutdown()
	}()

	return nil
}

// Browse searches for speakers until Stop, delivering them on Servers
func (m *Manager) Browse() {
	go m.browseLoop()
}

// browseLoop continuously browses for speakers
func (m *Manager) browseLoop() {
	for {
		select {
		case <-m.ctx.Done():
			return
		default:
		}

		entries := make(chan *mdns.ServiceEntry, 10)
		go func() {
			for entry := range entries {
				server := serverFromEntry(entry)
				if server == nil {
					continue
				}
				m.log.Debug().Str("name", server.Name).Str("addr", server.Addr()).Msg("Discovered speaker")

				select {
				case m.servers <- server:
				case <-m.ctx.Done():
				}
			}
		}()

		params := mdns.DefaultParams(ServiceType)
		params.Entries = entries
		params.Timeout = 3 * time.Second
		params.DisableIPv6 = true
		if err := mdns.Query(params); err != nil {
			m.log.Warn().Err(err).Msg("mDNS query failed")
		}
		close(entries)
	}
}

// serverFromEntry converts a service entry, ignoring entries without an IPv4 address
func serverFromEntry(entry *mdns.ServiceEntry) *ServerInfo {
	if entry.AddrV4 == nil {
		return nil
	}

	info := &ServerInfo{
		Name: strings.TrimSuffix(entry.Name, "."+ServiceType+".local."),
		Host: entry.AddrV4.String(),
		Port: entry.Port,
	}
	for _, field := range entry.InfoFields {
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			continue
		}
		switch key {
		case "path":
			info.Path = value
		case "version":
			info.Version = value
		}
	}
	return info
}

// Servers returns the channel of discovered speakers
func (m *Manager) Servers() <-chan *ServerInfo {
	return m.servers
}

// Stop stops the discovery manager
func (m *Manager) Stop() {
	m.cancel()
}

// getLocalIPs returns local IPv4 addresses
func getLocalIPs() ([]net.IP, error) {
	var ips []net.IP

	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
				if ipnet.IP.To4() != nil {
					ips = append(ips, ipnet.IP)
				}
			}
		}
	}

	return ips, nil
}
