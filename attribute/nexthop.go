package attribute

import (
	"net/netip"

	"github.com/Exa-Networks/exabgp-sub008/bgp"
)

// NextHop is the well-known mandatory NEXT_HOP attribute, an IPv4
// address used only for the legacy IPv4 unicast NLRI; multiprotocol
// next hops travel inside MP_REACH_NLRI instead (spec §4.1).
type NextHop struct {
	base
}

// NewNextHop builds a NEXT_HOP attribute. addr must be a 4-byte address.
func NewNextHop(addr netip.Addr) *NextHop {
	a4 := addr.As4()
	return &NextHop{base{flags: bgp.WellKnownFlags, code: CodeNextHop, raw: a4[:]}}
}

// Addr returns the decoded next-hop address.
func (n *NextHop) Addr() netip.Addr {
	if len(n.raw) != 4 {
		return netip.Addr{}
	}
	return netip.AddrFrom4([4]byte{n.raw[0], n.raw[1], n.raw[2], n.raw[3]})
}

func decodeNextHop(flags bgp.Flags, value []byte) (Attribute, error) {
	if len(value) != 4 {
		return nil, resetErr(
			bgp.NewNotification(bgp.NotifyUpdateMessageError, bgp.SubcodeInvalidNextHopAttribute),
			"NEXT_HOP attribute must be exactly 4 octets",
		)
	}
	return &NextHop{base{flags: flags, code: CodeNextHop, raw: value}}, nil
}
