package attribute

import (
	"bytes"

	"github.com/Exa-Networks/exabgp-sub008/bgp"
	"github.com/Exa-Networks/exabgp-sub008/stream"
)

// MPReachNLRI is the optional non-transitive MP_REACH_NLRI attribute
// (RFC 4760): it carries every address family's NLRI except legacy IPv4
// unicast, plus that family's next hop. This attribute package stores
// the NLRI section as opaque bytes rather than decoding it — the nlri
// package owns per-(AFI,SAFI) NLRI decoding and importing it here would
// create an import cycle (nlri attributes don't need nlri, but
// message.Update needs both; message does the join). See DESIGN.md.
type MPReachNLRI struct {
	base
	afi      bgp.AFI
	safi     bgp.SAFI
	nextHop  []byte
	nlriData []byte
}

// NewMPReachNLRI builds an MP_REACH_NLRI attribute from an already
// encoded NLRI byte section (as produced by nlri.Encode).
func NewMPReachNLRI(afi bgp.AFI, safi bgp.SAFI, nextHop []byte, nlriData []byte) *MPReachNLRI {
	m := &MPReachNLRI{base: base{flags: bgp.OptionalNonTransitive, code: CodeMPReachNLRI}, afi: afi, safi: safi, nextHop: nextHop, nlriData: nlriData}
	m.raw = m.encode()
	return m
}

func (m *MPReachNLRI) encode() []byte {
	var buf bytes.Buffer
	stream.WriteUint16(&buf, uint16(m.afi))
	buf.WriteByte(byte(m.safi))
	buf.WriteByte(byte(len(m.nextHop)))
	buf.Write(m.nextHop)
	buf.WriteByte(0) // reserved (SNPA count, always zero)
	buf.Write(m.nlriData)
	return buf.Bytes()
}

// AFI, SAFI, NextHop, and NLRIData expose the decoded fields.
func (m *MPReachNLRI) AFI() bgp.AFI       { return m.afi }
func (m *MPReachNLRI) SAFI() bgp.SAFI     { return m.safi }
func (m *MPReachNLRI) NextHop() []byte    { return m.nextHop }
func (m *MPReachNLRI) NLRIData() []byte   { return m.nlriData }

func decodeMPReachNLRI(flags bgp.Flags, value []byte) (Attribute, error) {
	buf := bytes.NewBuffer(value)
	if buf.Len() < 5 {
		return nil, treatAsWithdrawErr("MP_REACH_NLRI shorter than its fixed header")
	}
	afi := bgp.AFI(stream.ReadUint16(buf))
	safi := bgp.SAFI(stream.ReadByte(buf))
	nhLen := int(stream.ReadByte(buf))
	if buf.Len() < nhLen+1 {
		return nil, treatAsWithdrawErr("MP_REACH_NLRI next-hop length exceeds attribute")
	}
	// The AFI/SAFI and the NLRI section's boundary are both known even
	// when the NEXT_HOP length is implausible for this AFI, so the
	// attribute is still built (and its NLRI preserved) before reporting
	// the error: RFC 7606 §5(c) treat-as-withdraw needs this family's
	// prefixes to classify as withdrawals, not to vanish along with the
	// bad next hop.
	nextHop := stream.ReadBytes(nhLen, buf)
	stream.ReadByte(buf) // reserved SNPA count
	nlriData := buf.Bytes()
	m := &MPReachNLRI{base: base{flags: flags, code: CodeMPReachNLRI, raw: value}, afi: afi, safi: safi, nextHop: nextHop, nlriData: nlriData}
	if !validNextHopLength(afi, nhLen) {
		return m, treatAsWithdrawErr("MP_REACH_NLRI NEXT_HOP length is illegal for this AFI")
	}
	return m, nil
}

// validNextHopLength rejects next-hop lengths that cannot possibly be
// valid for the AFI — e.g. a 3-byte next hop for IPv4 — per spec §4.1's
// Scenario D (illegal NEXT_HOP length triggers treat-as-withdraw).
func validNextHopLength(afi bgp.AFI, length int) bool {
	switch afi {
	case bgp.AFIIPv4:
		return length == 4 || length == 12 // 12: RD(8)+IPv4, seen in some VPN deployments
	case bgp.AFIIPv6:
		return length == 16 || length == 32 // 32: global+link-local pair
	default:
		return length > 0 && length <= 32
	}
}

// MPUnreachNLRI is the optional non-transitive MP_UNREACH_NLRI attribute:
// withdrawals for any family other than legacy IPv4 unicast. An empty
// NLRIData with a valid (AFI, SAFI) is the multiprotocol End-of-RIB
// marker (spec §4.2 EOR).
type MPUnreachNLRI struct {
	base
	afi      bgp.AFI
	safi     bgp.SAFI
	nlriData []byte
}

// NewMPUnreachNLRI builds an MP_UNREACH_NLRI attribute.
func NewMPUnreachNLRI(afi bgp.AFI, safi bgp.SAFI, nlriData []byte) *MPUnreachNLRI {
	m := &MPUnreachNLRI{base: base{flags: bgp.OptionalNonTransitive, code: CodeMPUnreachNLRI}, afi: afi, safi: safi, nlriData: nlriData}
	m.raw = m.encode()
	return m
}

func (m *MPUnreachNLRI) encode() []byte {
	var buf bytes.Buffer
	stream.WriteUint16(&buf, uint16(m.afi))
	buf.WriteByte(byte(m.safi))
	buf.Write(m.nlriData)
	return buf.Bytes()
}

func (m *MPUnreachNLRI) AFI() bgp.AFI     { return m.afi }
func (m *MPUnreachNLRI) SAFI() bgp.SAFI   { return m.safi }
func (m *MPUnreachNLRI) NLRIData() []byte { return m.nlriData }

// IsEndOfRIB reports whether this is a multiprotocol EOR marker: valid
// family, zero-length NLRI section.
func (m *MPUnreachNLRI) IsEndOfRIB() bool { return len(m.nlriData) == 0 }

func decodeMPUnreachNLRI(flags bgp.Flags, value []byte) (Attribute, error) {
	buf := bytes.NewBuffer(value)
	if buf.Len() < 3 {
		return nil, treatAsWithdrawErr("MP_UNREACH_NLRI shorter than its fixed header")
	}
	afi := bgp.AFI(stream.ReadUint16(buf))
	safi := bgp.SAFI(stream.ReadByte(buf))
	nlriData := buf.Bytes()
	return &MPUnreachNLRI{base: base{flags: flags, code: CodeMPUnreachNLRI, raw: value}, afi: afi, safi: safi, nlriData: nlriData}, nil
}
