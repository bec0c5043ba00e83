package httpkit

import (
	"context"
	"fmt"
	"net"
	"net/netip"
)

// BlockedError reports a connection refused by a DialGuard.
type BlockedError struct {
	Host string
	IP   netip.Addr
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("blocked address %s for host %q: private or internal network", e.IP, e.Host)
}

// DialGuard refuses connections to private, loopback, link-local,
// unspecified and multicast addresses.
type DialGuard struct {
	// AllowPrivate disables the check. Tests use it to reach httptest
	// servers on loopback.
	AllowPrivate bool

	resolver *net.Resolver
}

// NewDialGuard returns a guard using the default resolver.
func NewDialGuard() *DialGuard {
	return &DialGuard{resolver: net.DefaultResolver}
}

// Blocked reports whether ip must not be dialed.
func (g *DialGuard) Blocked(ip netip.Addr) bool {
	if g != nil && g.AllowPrivate {
		return false
	}
	return IsPrivateAddr(ip)
}

// IsPrivateAddr reports whether ip is in a private or internal range.
// IPv4-mapped IPv6 addresses are checked as IPv4.
func IsPrivateAddr(ip netip.Addr) bool {
	ip = ip.Unmap()
	if !ip.IsValid() {
		return true
	}
	if ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() ||
		ip.IsInterfaceLocalMulticast() || ip.IsMulticast() {
		return true
	}
	// Carrier-grade NAT (RFC 6598) is not covered by IsPrivate.
	return cgnat.Contains(ip)
}

var cgnat = netip.MustParsePrefix("100.64.0.0/10")

// CheckHost resolves host and returns a BlockedError if any address is
// blocked. Literal IPs are checked without a lookup.
func (g *DialGuard) CheckHost(ctx context.Context, host string) error {
	_, err := g.resolve(ctx, host)
	return err
}

func (g *DialGuard) resolve(ctx context.Context, host string) ([]netip.Addr, error) {
	if ip, err := netip.ParseAddr(host); err == nil {
		if g.Blocked(ip) {
			return nil, &BlockedError{Host: host, IP: ip}
		}
		return []netip.Addr{ip}, nil
	}

	resolver := g.resolver
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	addrs, err := resolver.LookupNetIP(ctx, "ip", host)
	if err != nil {
		return nil, fmt.Errorf("resolve %q: %w", host, err)
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("resolve %q: no addresses", host)
	}
	for _, ip := range addrs {
		if g.Blocked(ip) {
			return nil, &BlockedError{Host: host, IP: ip}
		}
	}
	return addrs, nil
}

// dialContext wraps dialer so that every connection goes to a
// pre-checked IP rather than a name that could re-resolve.
func (g *DialGuard) dialContext(dialer *net.Dialer) func(ctx context.Context, network, addr string) (net.Conn, error) {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, fmt.Errorf("invalid address %q: %w", addr, err)
		}
		addrs, err := g.resolve(ctx, host)
		if err != nil {
			return nil, err
		}

		var lastErr error
		for _, ip := range addrs {
			conn, err := dialer.DialContext(ctx, network, net.JoinHostPort(ip.String(), port))
			if err == nil {
				return conn, nil
			}
			lastErr = err
		}
		return nil, lastErr
	}
}
