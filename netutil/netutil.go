// Package netutil provides small host-networking helpers: router-id
// autodetection and TCP peer address parsing. Adapted from the teacher's
// network package (FindBGPIdentifier/Uint32ToIP), rewritten against
// net/netip and to return the bgp package's own Identifier type instead
// of a bare uint32.
package netutil

import (
	"fmt"
	"net"
	"net/netip"

	"github.com/Exa-Networks/exabgp-sub008/bgp"
)

// FindRouterID picks a router-id from the host's configured interfaces:
// the first global-unicast IPv4 address found. Selection among multiple
// candidates is arbitrary, as in the teacher's implementation — operators
// who care configure Neighbor.LocalRouterID explicitly instead of relying
// on autodetection.
func FindRouterID() (bgp.Identifier, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return 0, err
	}
	for _, iface := range ifaces {
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			ipNet, ok := a.(*net.IPNet)
			if !ok {
				continue
			}
			addr, ok := netip.AddrFromSlice(ipNet.IP.To4())
			if !ok {
				continue
			}
			if addr.Is4() && addr.IsGlobalUnicast() {
				return bgp.IdentifierFromAddr(addr)
			}
		}
	}
	return 0, fmt.Errorf("netutil: no global-unicast IPv4 address found for a BGP identifier")
}

// SplitHostPort parses "host:port" into its netip.Addr and port, as
// needed to match an accepted TCP connection's RemoteAddr against a
// configured Neighbor's peer address (spec §4.5, reactor accept path).
func SplitHostPort(addr net.Addr) (netip.Addr, uint16, error) {
	host, port, err := net.SplitHostPort(addr.String())
	if err != nil {
		return netip.Addr{}, 0, err
	}
	ip, err := netip.ParseAddr(host)
	if err != nil {
		return netip.Addr{}, 0, err
	}
	var p uint16
	if _, err := fmt.Sscanf(port, "%d", &p); err != nil {
		return netip.Addr{}, 0, err
	}
	return ip, p, nil
}
