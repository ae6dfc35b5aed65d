package attribute

import "github.com/Exa-Networks/exabgp-sub008/bgp"

// PMSITunnel is the optional transitive PMSI_TUNNEL attribute (RFC 6514),
// used by MVPN to describe the provider multicast tree a route rides on.
// Only the tunnel-type octet (after the leading flags octet) is decoded;
// the remainder (MPLS label plus tunnel-identifier, whose shape depends
// on tunnel type) is
// kept as opaque bytes and forwarded verbatim — this speaker relays MVPN
// routes, it does not program multicast trees.
type PMSITunnel struct{ base }

// TunnelType returns the tunnel-type octet (the second octet, after the
// flags octet), if present.
func (p *PMSITunnel) TunnelType() (byte, bool) {
	if len(p.raw) < 2 {
		return 0, false
	}
	return p.raw[1], true // flags(1) + tunnel-type(1) + label(3) + identifier
}

func decodePMSITunnel(flags bgp.Flags, value []byte) (Attribute, error) {
	return &PMSITunnel{base{flags: flags, code: CodePMSITunnel, raw: value}}, nil
}

// NewPMSITunnel wraps a pre-encoded PMSI_TUNNEL value.
func NewPMSITunnel(value []byte) *PMSITunnel {
	return &PMSITunnel{base{flags: bgp.OptionalTransitiveFlags, code: CodePMSITunnel, raw: value}}
}

// BGPLSAttribute is the optional transitive BGP-LS attribute (RFC 7752):
// a sequence of link-state TLVs describing node/link/prefix properties.
// Decoded only down to the outer TLV boundary (type, length) so it can
// be inspected and re-advertised without claiming to understand every
// registered sub-TLV.
type BGPLSAttribute struct{ base }

// TLVs walks the outer TLV boundaries, returning (type, value) pairs.
// Malformed trailing bytes are silently stopped at rather than rejected,
// since this attribute is optional-transitive and any corruption should
// surface as a discard, not a session reset.
func (b *BGPLSAttribute) TLVs() []TLV {
	return walkTLVs(b.raw, 2)
}

func decodeBGPLS(flags bgp.Flags, value []byte) (Attribute, error) {
	return &BGPLSAttribute{base{flags: flags, code: CodeBGPLS, raw: value}}, nil
}

// NewBGPLSAttribute wraps a pre-encoded BGP-LS attribute value.
func NewBGPLSAttribute(value []byte) *BGPLSAttribute {
	return &BGPLSAttribute{base{flags: bgp.OptionalTransitiveFlags, code: CodeBGPLS, raw: value}}
}

// PrefixSID is the optional transitive PREFIX_SID attribute (RFC 8669 /
// RFC 9252): a container of SR and SRv6 sub-TLVs. Like BGPLSAttribute,
// only the outer TLV boundary is decoded.
type PrefixSID struct{ base }

// TLVs walks the outer sub-TLV boundaries.
func (p *PrefixSID) TLVs() []TLV {
	return walkTLVs(p.raw, 1)
}

func decodePrefixSID(flags bgp.Flags, value []byte) (Attribute, error) {
	return &PrefixSID{base{flags: flags, code: CodePrefixSID, raw: value}}, nil
}

// NewPrefixSID wraps a pre-encoded PREFIX_SID attribute value.
func NewPrefixSID(value []byte) *PrefixSID {
	return &PrefixSID{base{flags: bgp.OptionalTransitiveFlags, code: CodePrefixSID, raw: value}}
}

// TLV is a generic (type, value) pair used by the outer-boundary-only
// decoders above. BGP-LS top-level TLVs use a 2-octet type, PREFIX_SID
// TLVs a 1-octet type; both follow it with a 2-octet length and the value.
type TLV struct {
	Type  uint16
	Value []byte
}

// walkTLVs splits raw into TLVs whose type field is typeLen (1 or 2)
// octets wide.
func walkTLVs(raw []byte, typeLen int) []TLV {
	var out []TLV
	hdr := typeLen + 2
	for len(raw) >= hdr {
		typ := uint16(raw[0])
		if typeLen == 2 {
			typ = typ<<8 | uint16(raw[1])
		}
		length := int(uint16(raw[typeLen])<<8 | uint16(raw[typeLen+1]))
		if length > len(raw)-hdr {
			break
		}
		out = append(out, TLV{Type: typ, Value: raw[hdr : hdr+length]})
		raw = raw[hdr+length:]
	}
	return out
}
