// Package discovery advertises the status server over mDNS.
package discovery

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/enbility/zeroconf/v3"
)

const (
	ServiceType = "_seatguard._tcp"
	Domain      = "local."

	// maxInstanceNameLen is the DNS label limit.
	maxInstanceNameLen = 63
)

// Info is what gets advertised.
type Info struct {
	Instance string
	Port     int
	Watchdog string
	Version  string
}

type server interface {
	Shutdown()
}

var register = func(instance, service, domain string, port int, txt []string, ifaces []net.Interface) (server, error) {
	return zeroconf.Register(instance, service, domain, port, txt, ifaces)
}

// Advertiser keeps at most one registration alive.
type Advertiser struct {
	log *slog.Logger

	mu     sync.Mutex
	server server
}

func NewAdvertiser(logger *slog.Logger) *Advertiser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Advertiser{log: logger.With("component", "discovery")}
}

// Advertise replaces any previous registration with info.
func (a *Advertiser) Advertise(info Info) error {
	if info.Port <= 0 || info.Port > 65535 {
		return fmt.Errorf("invalid port %d", info.Port)
	}
	instance := InstanceName(info.Instance)
	if instance == "" {
		return errors.New("instance name must not be empty")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}

	srv, err := register(instance, ServiceType, Domain, info.Port, TXT(info), nil)
	if err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceType, err)
	}
	a.server = srv
	a.log.Info("mdns_advertised", "instance", instance, "service", ServiceType, "port", info.Port)
	return nil
}

func (a *Advertiser) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
		a.log.Info("mdns_stopped")
	}
}

// InstanceName truncates name to a single DNS label.
func InstanceName(name string) string {
	if len(name) > maxInstanceNameLen {
		return name[:maxInstanceNameLen]
	}
	return name
}

// TXT builds the TXT record strings for info.
func TXT(info Info) []string {
	txt := []string{"path=/api/watchdog"}
	if info.Watchdog != "" {
		txt = append(txt, "name="+info.Watchdog)
	}
	if info.Version != "" {
		txt = append(txt, "version="+info.Version)
	}
	return txt
}

// PortOf extracts the port of a listener address.
func PortOf(addr net.Addr) (int, error) {
	tcp, ok := addr.(*net.TCPAddr)
	if !ok {
		return 0, fmt.Errorf("not a TCP address: %s", addr)
	}
	return tcp.Port, nil
}
