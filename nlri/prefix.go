package nlri

import (
	"fmt"
	"net/netip"

	"github.com/Exa-Networks/exabgp-sub008/bgp"
)

// Label is one 3-octet MPLS label stack entry (20-bit label, 3 reserved
// bits, 1 bottom-of-stack bit), used by labeled-unicast and VPN NLRI.
type Label uint32

// Value returns the 20-bit label value.
func (l Label) Value() uint32 { return uint32(l) >> 4 }

// Bottom reports whether this is the bottom-of-stack label.
func (l Label) Bottom() bool { return uint32(l)&1 != 0 }

func encodeLabel(value uint32, bottom bool) Label {
	b := value << 4
	if bottom {
		b |= 1
	}
	return Label(b)
}

func (l Label) bytes() [3]byte {
	v := uint32(l)
	return [3]byte{byte(v >> 16), byte(v >> 8), byte(v)}
}

func labelFromBytes(b []byte) Label {
	return Label(uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2]))
}

// Prefix is an IPv4 or IPv6 unicast/multicast NLRI entry: a bit-length
// prefix as encoded on the wire (RFC 4271 §4.3), optionally preceded by
// a label stack (labeled-unicast, RFC 8277) and/or a route distinguisher
// (VPN families, RFC 4364/4659).
type Prefix struct {
	family bgp.Family
	addr   netip.Addr
	bits   int
	labels []Label
	rd     *bgp.RouteDistinguisher
}

// NewPrefix builds a plain unicast/multicast NLRI entry.
func NewPrefix(family bgp.Family, p netip.Prefix) *Prefix {
	return &Prefix{family: family, addr: p.Addr(), bits: p.Bits()}
}

// NewLabeledPrefix builds a labeled-unicast NLRI entry.
func NewLabeledPrefix(family bgp.Family, p netip.Prefix, labels []Label) *Prefix {
	return &Prefix{family: family, addr: p.Addr(), bits: p.Bits(), labels: labels}
}

// NewVPNPrefix builds a VPN-AFI NLRI entry: route distinguisher plus
// label stack plus prefix.
func NewVPNPrefix(family bgp.Family, p netip.Prefix, labels []Label, rd bgp.RouteDistinguisher) *Prefix {
	return &Prefix{family: family, addr: p.Addr(), bits: p.Bits(), labels: labels, rd: &rd}
}

func (p *Prefix) Family() bgp.Family { return p.family }

// Addr and Bits return the decoded host prefix, independent of any label
// stack or route distinguisher.
func (p *Prefix) Addr() netip.Addr { return p.addr }
func (p *Prefix) Bits() int        { return p.bits }
func (p *Prefix) Prefix() netip.Prefix { return netip.PrefixFrom(p.addr, p.bits) }

// Labels returns the MPLS label stack, empty for a plain prefix.
func (p *Prefix) Labels() []Label { return p.labels }

// RD returns the route distinguisher and whether this entry carries one.
func (p *Prefix) RD() (bgp.RouteDistinguisher, bool) {
	if p.rd == nil {
		return bgp.RouteDistinguisher{}, false
	}
	return *p.rd, true
}

func (p *Prefix) String() string {
	if p.rd != nil {
		return fmt.Sprintf("%s:%s", p.rd.String(), p.Prefix().String())
	}
	return p.Prefix().String()
}

// Bytes encodes this entry in the shape spec.3's NLRI tagged union uses
// on the wire: a bit-length octet followed by the minimum number of
// octets to hold that many bits, with any label stack and route
// distinguisher folded into the counted bits ahead of the host address
// per RFC 8277/4364.
func (p *Prefix) Bytes() []byte {
	prefixBytes := addrBytes(p.addr, p.bits)

	var prefix []byte
	bits := p.bits
	for _, l := range p.labels {
		lb := l.bytes()
		prefix = append(prefix, lb[:]...)
		bits += 24
	}
	if p.rd != nil {
		prefix = append(prefix, p.rd[:]...)
		bits += 64
	}
	prefix = append(prefix, prefixBytes...)

	out := make([]byte, 0, 1+len(prefix))
	out = append(out, byte(bits))
	return append(out, prefix...)
}

func addrBytes(addr netip.Addr, bits int) []byte {
	n := (bits + 7) / 8
	if addr.Is4() {
		a := addr.As4()
		return a[:n]
	}
	a := addr.As16()
	return a[:n]
}

// DecodePrefix reads one NLRI entry from buf for the given family,
// returning the entry and the number of bytes it consumed. labeled
// and withRD select the labeled-unicast/VPN wire shapes; Decode
// determines these from the family before calling in.
func DecodePrefix(family bgp.Family, buf []byte, labeled bool, withRD bool) (*Prefix, int, error) {
	if len(buf) < 1 {
		return nil, 0, errShortNLRI
	}
	bits := int(buf[0])
	consumed := 1
	remaining := bits

	var labels []Label
	for labeled {
		if len(buf) < consumed+3 {
			return nil, 0, errShortNLRI
		}
		l := labelFromBytes(buf[consumed : consumed+3])
		labels = append(labels, l)
		consumed += 3
		remaining -= 24
		if l.Bottom() || remaining <= 0 {
			break
		}
	}

	var rd *bgp.RouteDistinguisher
	if withRD {
		if len(buf) < consumed+8 || remaining < 64 {
			return nil, 0, errShortNLRI
		}
		var r bgp.RouteDistinguisher
		copy(r[:], buf[consumed:consumed+8])
		rd = &r
		consumed += 8
		remaining -= 64
	}

	if remaining < 0 || remaining > 128 {
		return nil, 0, errShortNLRI
	}
	hostBytes := (remaining + 7) / 8
	if len(buf) < consumed+hostBytes {
		return nil, 0, errShortNLRI
	}
	addr, err := addrFromBytes(family.AFI, buf[consumed:consumed+hostBytes])
	if err != nil {
		return nil, 0, err
	}
	consumed += hostBytes

	return &Prefix{family: family, addr: addr, bits: remaining, labels: labels, rd: rd}, consumed, nil
}

func addrFromBytes(afi bgp.AFI, b []byte) (netip.Addr, error) {
	switch afi {
	case bgp.AFIIPv4:
		var a [4]byte
		copy(a[:], b)
		return netip.AddrFrom4(a), nil
	case bgp.AFIIPv6:
		var a [16]byte
		copy(a[:], b)
		return netip.AddrFrom16(a), nil
	default:
		return netip.Addr{}, errUnsupportedAFI
	}
}

type nlriError string

func (e nlriError) Error() string { return string(e) }

const (
	errShortNLRI      nlriError = "NLRI entry truncated"
	errUnsupportedAFI nlriError = "unsupported AFI for prefix-shaped NLRI"
)
