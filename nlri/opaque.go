package nlri

import (
	"fmt"

	"github.com/Exa-Networks/exabgp-sub008/bgp"
)

// Opaque is the shared representation for NLRI families this speaker
// relays without fully decoding: EVPN and MVPN key their entries by a
// 1-octet route-type, BGP-LS and MUP by a 2-octet NLRI type, and
// Flow-Spec by no type at all (just a length-prefixed rule set). This
// speaker parses only that outer boundary and preserves the inner bytes
// verbatim, matching SPEC_FULL.md's decision to give these families
// envelope-only support.
type Opaque struct {
	family  bgp.Family
	typ     uint16
	hasType bool
	value   []byte
}

func (o *Opaque) Family() bgp.Family { return o.family }

// Type returns the route-type (EVPN/MVPN) or NLRI type (BGP-LS/MUP)
// octet(s); ok is false for Flow-Spec, which carries no type field.
func (o *Opaque) Type() (uint16, bool) { return o.typ, o.hasType }

// Value returns the inner bytes, excluding the outer type/length framing
// this package parsed.
func (o *Opaque) Value() []byte { return o.value }

func (o *Opaque) String() string {
	if o.hasType {
		return fmt.Sprintf("%s type=%d (%d bytes)", o.family, o.typ, len(o.value))
	}
	return fmt.Sprintf("%s (%d bytes)", o.family, len(o.value))
}

// Bytes re-encodes the entry with its original outer framing.
func (o *Opaque) Bytes() []byte {
	switch o.family.SAFI {
	case bgp.SAFIEVPN, bgp.SAFIMcastVPN:
		out := make([]byte, 2+len(o.value))
		out[0] = byte(o.typ)
		out[1] = byte(len(o.value))
		copy(out[2:], o.value)
		return out
	case bgp.SAFIFlowSpec, bgp.SAFIFlowSpecVPN:
		return encodeFlowSpecLength(o.value)
	default: // BGP-LS, MUP: 2-octet type + 2-octet length + value
		out := make([]byte, 4+len(o.value))
		out[0] = byte(o.typ >> 8)
		out[1] = byte(o.typ)
		out[2] = byte(len(o.value) >> 8)
		out[3] = byte(len(o.value))
		copy(out[4:], o.value)
		return out
	}
}

// NewEVPNEntry builds an EVPN NLRI entry (RFC 7432 §7: 1-octet
// route-type, 1-octet length, value).
func NewEVPNEntry(routeType uint8, value []byte) *Opaque {
	return &Opaque{family: bgp.FamilyL2VPNEVPN, typ: uint16(routeType), hasType: true, value: value}
}

// NewMVPNEntry builds an MVPN NLRI entry (RFC 6514 §4: same 1-octet
// route-type, 1-octet length shape as EVPN).
func NewMVPNEntry(family bgp.Family, routeType uint8, value []byte) *Opaque {
	return &Opaque{family: family, typ: uint16(routeType), hasType: true, value: value}
}

// NewFlowSpecEntry builds a Flow-Spec NLRI entry (RFC 8955 §4 length
// encoding: one octet if the rule set is under 240 octets, else a
// 2-octet length with the top nibble of the first octet set to 1).
func NewFlowSpecEntry(family bgp.Family, rules []byte) *Opaque {
	return &Opaque{family: family, value: rules}
}

// NewBGPLSEntry builds a BGP-LS NLRI entry (RFC 7752 §3.2: 2-octet NLRI
// type, 2-octet length, value).
func NewBGPLSEntry(nlriType uint16, value []byte) *Opaque {
	return &Opaque{family: bgp.FamilyBGPLS, typ: nlriType, hasType: true, value: value}
}

// NewMUPEntry builds a MUP NLRI entry (RFC 9251 §3: same 2-octet
// type/length shape as BGP-LS).
func NewMUPEntry(family bgp.Family, routeType uint16, value []byte) *Opaque {
	return &Opaque{family: family, typ: routeType, hasType: true, value: value}
}

// DecodeOpaque reads one NLRI entry from buf for the given family,
// returning the entry and the number of bytes consumed.
func DecodeOpaque(family bgp.Family, buf []byte) (*Opaque, int, error) {
	switch family.SAFI {
	case bgp.SAFIEVPN, bgp.SAFIMcastVPN:
		if len(buf) < 2 {
			return nil, 0, errShortNLRI
		}
		routeType := buf[0]
		length := int(buf[1])
		if len(buf) < 2+length {
			return nil, 0, errShortNLRI
		}
		return &Opaque{family: family, typ: uint16(routeType), hasType: true, value: buf[2 : 2+length]}, 2 + length, nil

	case bgp.SAFIFlowSpec, bgp.SAFIFlowSpecVPN:
		length, headerLen, err := decodeFlowSpecLength(buf)
		if err != nil {
			return nil, 0, err
		}
		if len(buf) < headerLen+length {
			return nil, 0, errShortNLRI
		}
		return &Opaque{family: family, value: buf[headerLen : headerLen+length]}, headerLen + length, nil

	default: // BGP-LS, MUP
		if len(buf) < 4 {
			return nil, 0, errShortNLRI
		}
		typ := uint16(buf[0])<<8 | uint16(buf[1])
		length := int(buf[2])<<8 | int(buf[3])
		if len(buf) < 4+length {
			return nil, 0, errShortNLRI
		}
		return &Opaque{family: family, typ: typ, hasType: true, value: buf[4 : 4+length]}, 4 + length, nil
	}
}

// encodeFlowSpecLength prepends the RFC 8955 §4 variable-width length
// prefix to a rule set.
func encodeFlowSpecLength(rules []byte) []byte {
	n := len(rules)
	if n < 240 {
		out := make([]byte, 1+n)
		out[0] = byte(n)
		copy(out[1:], rules)
		return out
	}
	out := make([]byte, 2+n)
	out[0] = 0xF0 | byte(n>>8)
	out[1] = byte(n)
	copy(out[2:], rules)
	return out
}

func decodeFlowSpecLength(buf []byte) (length int, headerLen int, err error) {
	if len(buf) < 1 {
		return 0, 0, errShortNLRI
	}
	if buf[0]>>4 == 0xF {
		if len(buf) < 2 {
			return 0, 0, errShortNLRI
		}
		length = int(buf[0]&0x0F)<<8 | int(buf[1])
		return length, 2, nil
	}
	return int(buf[0]), 1, nil
}
