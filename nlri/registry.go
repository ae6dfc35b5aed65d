package nlri

import "github.com/Exa-Networks/exabgp-sub008/bgp"

// shape selects which codec a family's NLRI entries use.
type shape uint8

const (
	shapePrefix shape = iota
	shapeLabeledPrefix
	shapeVPNPrefix
	shapeOpaque
)

var familyShapes = map[bgp.Family]shape{
	bgp.FamilyIPv4Unicast:        shapePrefix,
	bgp.FamilyIPv6Unicast:        shapePrefix,
	bgp.FamilyIPv4Multicast:      shapePrefix,
	bgp.FamilyIPv6Multicast:      shapePrefix,
	bgp.FamilyIPv4LabeledUnicast: shapeLabeledPrefix,
	bgp.FamilyIPv6LabeledUnicast: shapeLabeledPrefix,
	bgp.FamilyIPv4MPLSVPN:        shapeVPNPrefix,
	bgp.FamilyIPv6MPLSVPN:        shapeVPNPrefix,
	bgp.FamilyIPv4FlowSpec:       shapeOpaque,
	bgp.FamilyIPv6FlowSpec:       shapeOpaque,
	bgp.FamilyIPv4FlowSpecVPN:    shapeOpaque,
	bgp.FamilyIPv4McastVPN:       shapeOpaque,
	bgp.FamilyIPv6McastVPN:       shapeOpaque,
	bgp.FamilyL2VPNVPLS:          shapeOpaque,
	bgp.FamilyL2VPNEVPN:          shapeOpaque,
	bgp.FamilyBGPLS:              shapeOpaque,
	bgp.FamilyIPv4MUP:            shapeOpaque,
	bgp.FamilyIPv6MUP:            shapeOpaque,
}

// Decode reads one NLRI entry for family from the front of buf, returning
// the entry and the number of bytes consumed. Families registered as
// shapePrefix/shapeLabeledPrefix/shapeVPNPrefix use the bit-length prefix
// codec in prefix.go; everything else falls back to the route-type- or
// TLV-keyed opaque codec in opaque.go. An unregistered family also falls
// back to opaque with no type field, so a never-before-seen AFI/SAFI this
// speaker negotiated (because the peer offered it and policy accepted
// it) still round-trips instead of failing decode outright.
func Decode(family bgp.Family, buf []byte) (NLRI, int, error) {
	s, known := familyShapes[family]
	switch {
	case s == shapeLabeledPrefix:
		p, n, err := DecodePrefix(family, buf, true, false)
		if err != nil {
			return nil, 0, err
		}
		return p, n, nil
	case s == shapeVPNPrefix:
		p, n, err := DecodePrefix(family, buf, true, true)
		if err != nil {
			return nil, 0, err
		}
		return p, n, nil
	case s == shapeOpaque || !known:
		o, n, err := DecodeOpaque(family, buf)
		if err != nil {
			return nil, 0, err
		}
		return o, n, nil
	default: // shapePrefix
		p, n, err := DecodePrefix(family, buf, false, false)
		if err != nil {
			return nil, 0, err
		}
		return p, n, nil
	}
}

// DecodeAll repeatedly calls Decode until buf is exhausted, as required
// for the legacy IPv4 NLRI field and the MP_REACH/MP_UNREACH NLRI
// sections, both of which pack multiple entries back to back with no
// count prefix (spec §4.1/§4.2).
func DecodeAll(family bgp.Family, buf []byte) ([]NLRI, error) {
	var out []NLRI
	for len(buf) > 0 {
		n, consumed, err := Decode(family, buf)
		if err != nil {
			return out, err
		}
		out = append(out, n)
		buf = buf[consumed:]
	}
	return out, nil
}
