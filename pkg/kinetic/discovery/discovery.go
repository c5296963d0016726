// Package discovery implements read-only Kinetic drive discovery: a
// listener joins the drives' UDP multicast group, decodes each drive's
// JSON announcement banner, and feeds the discovered host:port pairs
// into an in-memory Registry, per SPEC_FULL.md §4.11. It never replaces
// operator-supplied static target configuration.
package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rawgate/rawgate/internal/logger"
)

// MulticastAddr is the well-known group Kinetic drives announce on.
const MulticastAddr = "239.1.2.3:8123"

// Banner is the JSON announcement a drive periodically broadcasts.
type Banner struct {
	Port             int               `json:"port"`
	WorldWideName    string            `json:"world_wide_name"`
	NetworkInterfaces []NetworkInterface `json:"network_interfaces"`
}

// NetworkInterface is one address a drive announces itself on.
type NetworkInterface struct {
	IPv4Addr string `json:"ipv4_addr"`
}

// Drive is one discovered target, derived from a Banner.
type Drive struct {
	WorldWideName string
	Addr          string // "host:port"
	LastSeen      time.Time
}

// Registry is a thread-safe, in-memory map of discovered drives keyed
// by world wide name.
type Registry struct {
	mu     sync.RWMutex
	drives map[string]Drive
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{drives: make(map[string]Drive)}
}

// Observe records or refreshes a discovered drive.
func (r *Registry) Observe(d Drive) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drives[d.WorldWideName] = d
}

// Drives returns a snapshot of all currently known drives.
func (r *Registry) Drives() []Drive {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Drive, 0, len(r.drives))
	for _, d := range r.drives {
		out = append(out, d)
	}
	return out
}

// Lookup returns the drive registered under wwn, if any.
func (r *Registry) Lookup(wwn string) (Drive, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.drives[wwn]
	return d, ok
}

// Listener joins the Kinetic multicast announcement group and feeds
// decoded banners into a Registry.
type Listener struct {
	conn     *net.UDPConn
	registry *Registry
}

// Listen joins addr (normally MulticastAddr) on iface (nil for the
// default multicast interface) and returns a Listener feeding reg.
func Listen(addr string, iface *net.Interface, reg *Registry) (*Listener, error) {
	udpAddr, err := net.ResolveUDPAddr("udp4", addr)
	if err != nil {
		return nil, fmt.Errorf("discovery: resolve %s: %w", addr, err)
	}
	conn, err := net.ListenMulticastUDP("udp4", iface, udpAddr)
	if err != nil {
		return nil, fmt.Errorf("discovery: join %s: %w", addr, err)
	}
	return &Listener{conn: conn, registry: reg}, nil
}

// Serve reads banners until ctx is cancelled, feeding each into the
// Registry it was constructed with. A short read deadline lets the loop
// notice cancellation promptly without blocking indefinitely on recvfrom.
func (l *Listener) Serve(ctx context.Context) error {
	defer l.conn.Close()

	buf := make([]byte, 65535)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if err := l.conn.SetReadDeadline(time.Now().Add(500 * time.Millisecond)); err != nil {
			return err
		}

		n, _, err := l.conn.ReadFromUDP(buf)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}
			select {
			case <-ctx.Done():
				return nil
			default:
				logger.Debug("discovery: read failed", "error", err)
				continue
			}
		}

		var banner Banner
		if err := json.Unmarshal(buf[:n], &banner); err != nil {
			logger.Debug("discovery: malformed banner", "error", err)
			continue
		}
		l.registry.Observe(bannerToDrive(banner))
	}
}

// Close stops the listener immediately, independent of Serve's ctx.
func (l *Listener) Close() error { return l.conn.Close() }

func bannerToDrive(b Banner) Drive {
	host := ""
	if len(b.NetworkInterfaces) > 0 {
		host = b.NetworkInterfaces[0].IPv4Addr
	}
	return Drive{
		WorldWideName: b.WorldWideName,
		Addr:          fmt.Sprintf("%s:%d", host, b.Port),
		LastSeen:      time.Now(),
	}
}
