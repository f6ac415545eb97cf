package scraper

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"syscall"
	"time"
)

// ErrBlockedAddress is the dial error for destinations the direct fetcher
// refuses: loopback, private, link-local, multicast and unspecified
// addresses.
var ErrBlockedAddress = errors.New("scraper: destination address not allowed")

// Carrier-grade NAT space, not covered by netip's IsPrivate.
var sharedAddressSpace = netip.MustParsePrefix("100.64.0.0/10")

func isBlockedIP(ip netip.Addr) bool {
	ip = ip.Unmap()
	return ip.IsLoopback() ||
		ip.IsPrivate() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() ||
		ip.IsInterfaceLocalMulticast() ||
		ip.IsMulticast() ||
		ip.IsUnspecified() ||
		sharedAddressSpace.Contains(ip)
}

// guardDial runs after DNS resolution, so address is always an IP.
func guardDial(_, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrBlockedAddress, address)
	}
	ip, err := netip.ParseAddr(host)
	if err != nil || isBlockedIP(ip) {
		return fmt.Errorf("%w: %s", ErrBlockedAddress, host)
	}
	return nil
}

// guardedClient returns a copy of c whose connections, redirects included,
// refuse blocked addresses. Proxies are disabled since the proxy would make
// the connection on our behalf. A transport that is not an *http.Transport
// is replaced by a clone of the default one.
func guardedClient(c *http.Client) *http.Client {
	var transport *http.Transport
	if t, ok := c.Transport.(*http.Transport); ok {
		transport = t.Clone()
	} else {
		transport = http.DefaultTransport.(*http.Transport).Clone()
	}

	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
		Control:   guardDial,
	}
	transport.DialContext = dialer.DialContext
	transport.DialTLSContext = nil
	transport.Proxy = nil

	guarded := *c
	guarded.Transport = transport
	return &guarded
}
