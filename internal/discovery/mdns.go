// ABOUTME: mDNS service discovery for the remote keyboard
// ABOUTME: Announces a piano's websocket endpoint and finds pianos on the LAN
package discovery

import (
	"context"
	"fmt"
	"log"
	"net"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/mdns"
)

const (
	// ServiceType is the DNS-SD service a piano advertises
	ServiceType = "_mpiano._tcp"

	// DefaultPath is the websocket path assumed when a piano publishes none
	DefaultPath = "/piano"

	domain = "local"
)

// Config describes the piano being announced
type Config struct {
	ServiceName string
	Port        int
	Path        string // websocket path, default DefaultPath
	Version     int    // remote protocol version, published when non-zero
}

// Piano is a piano found on the network
type Piano struct {
	Instance string // service instance name, usually the piano's friendly name
	Host     string
	Port     int
	Path     string
	Version  int // zero when the piano did not publish one
}

// Addr returns host:port
func (p Piano) Addr() string {
	return net.JoinHostPort(p.Host, strconv.Itoa(p.Port))
}

// URL returns the websocket endpoint
func (p Piano) URL() string {
	return "ws://" + p.Addr() + p.Path
}

// Announcer keeps a piano advertised until Shutdown
type Announcer struct {
	server *mdns.Server
}

// Announce publishes the piano's endpoint on every local IPv4 address
func Announce(config Config) (*Announcer, error) {
	if config.ServiceName == "" {
		return nil, fmt.Errorf("service name is required")
	}
	if config.Path == "" {
		config.Path = DefaultPath
	}

	ips, err := localIPv4s()
	if err != nil {
		return nil, fmt.Errorf("failed to list local addresses: %w", err)
	}

	service, err := mdns.NewMDNSService(config.ServiceName, ServiceType, "", "", config.Port, ips, txtRecords(config))
	if err != nil {
		return nil, fmt.Errorf("failed to create service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return nil, fmt.Errorf("failed to create mdns server: %w", err)
	}

	log.Printf("Announcing %s on port %d (%s)", config.ServiceName, config.Port, ServiceType)
	return &Announcer{server: server}, nil
}

// Shutdown withdraws the announcement
func (a *Announcer) Shutdown() error {
	if a == nil || a.server == nil {
		return nil
	}
	return a.server.Shutdown()
}

// txtRecords encodes the endpoint details a remote keyboard needs to connect
func txtRecords(config Config) []string {
	txt := []string{"path=" + config.Path}
	if config.Version > 0 {
		txt = append(txt, "version="+strconv.Itoa(config.Version))
	}
	return txt
}

// Browse runs one query round of length wait and returns every piano that
// answered, deduplicated by address and sorted by instance name
func Browse(ctx context.Context, wait time.Duration) ([]Piano, error) {
	entries := make(chan *mdns.ServiceEntry, 16)
	collected := make(chan []Piano, 1)

	go func() {
		found := make(map[string]Piano)
		for entry := range entries {
			p, ok := pianoFromEntry(entry)
			if !ok {
				continue
			}
			found[p.Addr()] = p
		}
		collected <- sortPianos(found)
	}()

	err := mdns.QueryContext(ctx, &mdns.QueryParam{
		Service:     ServiceType,
		Domain:      domain,
		Timeout:     wait,
		Entries:     entries,
		DisableIPv6: true,
	})
	close(entries)
	pianos := <-collected

	if err != nil && ctx.Err() == nil {
		return pianos, fmt.Errorf("mdns query failed: %w", err)
	}
	return pianos, nil
}

// Find browses in rounds of wait until a piano answers or ctx ends
func Find(ctx context.Context, wait time.Duration) (Piano, error) {
	for {
		pianos, err := Browse(ctx, wait)
		if err != nil {
			log.Printf("Browse failed: %v", err)
		}
		if len(pianos) > 0 {
			return pianos[0], nil
		}

		select {
		case <-ctx.Done():
			return Piano{}, fmt.Errorf("no piano found: %w", ctx.Err())
		default:
		}
	}
}

// pianoFromEntry turns an mDNS answer into a Piano. Entries without an IPv4
// address are skipped.
func pianoFromEntry(entry *mdns.ServiceEntry) (Piano, bool) {
	if entry == nil || entry.AddrV4 == nil || entry.Port == 0 {
		return Piano{}, false
	}

	p := Piano{
		Instance: instanceName(entry.Name),
		Host:     entry.AddrV4.String(),
		Port:     entry.Port,
		Path:     DefaultPath,
	}

	for _, field := range entry.InfoFields {
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			continue
		}
		switch key {
		case "path":
			if strings.HasPrefix(value, "/") {
				p.Path = value
			}
		case "version":
			if v, err := strconv.Atoi(value); err == nil {
				p.Version = v
			}
		}
	}

	return p, true
}

// instanceName strips the service and domain from a full instance name
// ("Living Room._mpiano._tcp.local." -> "Living Room")
func instanceName(name string) string {
	name = strings.TrimSuffix(name, ".")
	name = strings.TrimSuffix(name, "."+domain)
	name = strings.TrimSuffix(name, "."+ServiceType)
	return strings.ReplaceAll(name, `\ `, " ")
}

func sortPianos(found map[string]Piano) []Piano {
	pianos := make([]Piano, 0, len(found))
	for _, p := range found {
		pianos = append(pianos, p)
	}
	sort.Slice(pianos, func(i, j int) bool {
		if pianos[i].Instance != pianos[j].Instance {
			return pianos[i].Instance < pianos[j].Instance
		}
		return pianos[i].Addr() < pianos[j].Addr()
	})
	return pianos
}

// localIPv4s returns the IPv4 addresses of every interface that is up,
// excluding loopback
func localIPv4s() ([]net.IP, error) {
	ips := []net.IP{}

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
			ipnet, ok := addr.(*net.IPNet)
			if !ok || ipnet.IP.IsLoopback() {
				continue
			}
			if v4 := ipnet.IP.To4(); v4 != nil {
				ips = append(ips, v4)
			}
		}
	}

	return ips, nil
}
