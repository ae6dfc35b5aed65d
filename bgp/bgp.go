// Package bgp holds the wire-level data model shared by every other
// package in this module: autonomous system numbers, addresses, address
// families, and the low-level framing constants from RFC 4271 §4.1.
package bgp

import (
	"fmt"
	"net/netip"
)

// Version is the BGP protocol version a speaker implements. This module
// only implements version 4.
type Version uint8

// CurrentVersion is the only version this speaker understands.
const CurrentVersion Version = 4

// ASN is a 4-octet autonomous system number (RFC 6793). Equality and
// ordering are over the plain integer.
type ASN uint32

// ASTrans is the reserved ASN used in the 2-octet AS_PATH/OPEN fields to
// stand in for a 4-octet ASN that doesn't fit in 2 octets.
const ASTrans ASN = 23456

// Fits16 reports whether the ASN can be represented in a legacy 2-octet
// field without substitution.
func (a ASN) Fits16() bool {
	return a <= 0xFFFF
}

// Legacy16 returns the value to place in a 2-octet ASN field: the ASN
// itself if it fits, or ASTrans otherwise.
func (a ASN) Legacy16() uint16 {
	if a.Fits16() {
		return uint16(a)
	}
	return uint16(ASTrans)
}

func (a ASN) String() string {
	return fmt.Sprintf("%d", uint32(a))
}

// Identifier is a 4-octet BGP Identifier, conventionally an IPv4 address
// assigned to the speaker.
type Identifier uint32

func (id Identifier) String() string {
	return netip.AddrFrom4([4]byte{byte(id >> 24), byte(id >> 16), byte(id >> 8), byte(id)}).String()
}

// IdentifierFromAddr packs an IPv4 address into an Identifier. Returns an
// error if addr is not a 4-byte address.
func IdentifierFromAddr(addr netip.Addr) (Identifier, error) {
	if !addr.Is4() {
		return 0, fmt.Errorf("bgp: %s is not a valid 4-octet identifier", addr)
	}
	b := addr.As4()
	return Identifier(uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])), nil
}

// AFI is a 16-bit Address Family Identifier (RFC 4760).
type AFI uint16

// Recognized AFIs.
const (
	AFIIPv4 AFI = 1
	AFIIPv6 AFI = 2
	AFIL2VPN AFI = 25
	AFILinkState AFI = 16388
)

// SAFI is an 8-bit Subsequent Address Family Identifier (RFC 4760).
type SAFI uint8

// Recognized SAFIs.
const (
	SAFIUnicast          SAFI = 1
	SAFIMulticast        SAFI = 2
	SAFIMPLSLabel        SAFI = 4 // labeled unicast, RFC 8277
	SAFIMPLSVPN          SAFI = 128
	SAFIMcastVPN         SAFI = 5
	SAFIFlowSpec         SAFI = 133
	SAFIFlowSpecVPN      SAFI = 134
	SAFIVPLS             SAFI = 65
	SAFIEVPN             SAFI = 70
	SAFIBGPLS            SAFI = 71
	SAFIMUP              SAFI = 85
)

// Family pairs an AFI and SAFI and selects which NLRI/attribute codec
// applies to a route.
type Family struct {
	AFI  AFI
	SAFI SAFI
}

func (f Family) String() string {
	return fmt.Sprintf("%s/%s", f.AFI, f.SAFI)
}

// Well-known families, named the way operators spell them in configuration
// and in the API command grammar (spec §4.6).
var (
	FamilyIPv4Unicast        = Family{AFIIPv4, SAFIUnicast}
	FamilyIPv6Unicast        = Family{AFIIPv6, SAFIUnicast}
	FamilyIPv4Multicast      = Family{AFIIPv4, SAFIMulticast}
	FamilyIPv6Multicast      = Family{AFIIPv6, SAFIMulticast}
	FamilyIPv4LabeledUnicast = Family{AFIIPv4, SAFIMPLSLabel}
	FamilyIPv6LabeledUnicast = Family{AFIIPv6, SAFIMPLSLabel}
	FamilyIPv4MPLSVPN        = Family{AFIIPv4, SAFIMPLSVPN}
	FamilyIPv6MPLSVPN        = Family{AFIIPv6, SAFIMPLSVPN}
	FamilyIPv4FlowSpec       = Family{AFIIPv4, SAFIFlowSpec}
	FamilyIPv6FlowSpec       = Family{AFIIPv6, SAFIFlowSpec}
	FamilyIPv4FlowSpecVPN    = Family{AFIIPv4, SAFIFlowSpecVPN}
	FamilyIPv4McastVPN       = Family{AFIIPv4, SAFIMcastVPN}
	FamilyIPv6McastVPN       = Family{AFIIPv6, SAFIMcastVPN}
	FamilyL2VPNVPLS          = Family{AFIL2VPN, SAFIVPLS}
	FamilyL2VPNEVPN          = Family{AFIL2VPN, SAFIEVPN}
	FamilyBGPLS              = Family{AFILinkState, SAFIBGPLS}
	FamilyIPv4MUP            = Family{AFIIPv4, SAFIMUP}
	FamilyIPv6MUP            = Family{AFIIPv6, SAFIMUP}
)

func (a AFI) String() string {
	switch a {
	case AFIIPv4:
		return "ipv4"
	case AFIIPv6:
		return "ipv6"
	case AFIL2VPN:
		return "l2vpn"
	case AFILinkState:
		return "bgp-ls"
	default:
		return fmt.Sprintf("afi(%d)", uint16(a))
	}
}

func (s SAFI) String() string {
	switch s {
	case SAFIUnicast:
		return "unicast"
	case SAFIMulticast:
		return "multicast"
	case SAFIMPLSLabel:
		return "labeled-unicast"
	case SAFIMPLSVPN:
		return "mpls-vpn"
	case SAFIMcastVPN:
		return "mcast-vpn"
	case SAFIFlowSpec:
		return "flow"
	case SAFIFlowSpecVPN:
		return "flow-vpn"
	case SAFIVPLS:
		return "vpls"
	case SAFIEVPN:
		return "evpn"
	case SAFIBGPLS:
		return "bgp-ls"
	case SAFIMUP:
		return "mup"
	default:
		return fmt.Sprintf("safi(%d)", uint8(s))
	}
}

// RouteDistinguisher is the 8-octet value prepended to VPN NLRIs (RFC 4364).
type RouteDistinguisher [8]byte

func (rd RouteDistinguisher) String() string {
	typ := uint16(rd[0])<<8 | uint16(rd[1])
	switch typ {
	case 0: // type 0: 2-octet ASN : 4-octet number
		asn := uint16(rd[2])<<8 | uint16(rd[3])
		val := uint32(rd[4])<<24 | uint32(rd[5])<<16 | uint32(rd[6])<<8 | uint32(rd[7])
		return fmt.Sprintf("%d:%d", asn, val)
	case 1: // type 1: IPv4 address : 2-octet number
		ip := netip.AddrFrom4([4]byte{rd[2], rd[3], rd[4], rd[5]})
		val := uint16(rd[6])<<8 | uint16(rd[7])
		return fmt.Sprintf("%s:%d", ip, val)
	case 2: // type 2: 4-octet ASN : 2-octet number
		asn := uint32(rd[2])<<24 | uint32(rd[3])<<16 | uint32(rd[4])<<8 | uint32(rd[5])
		val := uint16(rd[6])<<8 | uint16(rd[7])
		return fmt.Sprintf("%d:%d", asn, val)
	default:
		return fmt.Sprintf("%x", [8]byte(rd))
	}
}

// Marker is the mandatory 16-byte all-ones marker that opens every BGP
// message header (RFC 4271 §4.1).
var Marker = [16]byte{
	0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF,
	0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF,
}

// HeaderLength is the fixed size, in bytes, of the BGP message header.
const HeaderLength = 19

// MinMessageLength and MaxMessageLength bound a standard (non-extended)
// BGP message, header included.
const (
	MinMessageLength = 19
	MaxMessageLength = 4096
	// MaxExtendedMessageLength applies once the Extended Message
	// capability (draft-ietf-idr-bgp-extended-messages) is negotiated.
	MaxExtendedMessageLength = 65535
)

// MessageType names the 1-byte type code in the BGP header.
type MessageType uint8

const (
	MsgOpen         MessageType = 1
	MsgUpdate       MessageType = 2
	MsgNotification MessageType = 3
	MsgKeepalive    MessageType = 4
	MsgRouteRefresh MessageType = 5
)

func (t MessageType) String() string {
	switch t {
	case MsgOpen:
		return "OPEN"
	case MsgUpdate:
		return "UPDATE"
	case MsgNotification:
		return "NOTIFICATION"
	case MsgKeepalive:
		return "KEEPALIVE"
	case MsgRouteRefresh:
		return "ROUTE-REFRESH"
	default:
		return fmt.Sprintf("type(%d)", uint8(t))
	}
}
