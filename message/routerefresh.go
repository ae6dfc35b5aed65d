package message

import (
	"bytes"

	"github.com/Exa-Networks/exabgp-sub008/bgp"
	"github.com/Exa-Networks/exabgp-sub008/stream"
)

// RouteRefresh implements the ROUTE-REFRESH message (RFC 2918): a
// request that the peer resend its adj-RIB-out for one family. The
// optional Subtype distinguishes RFC 7313 Begin-of-RIB/End-of-RIB
// demarcation ("enhanced route refresh") from an ordinary request.
type RouteRefresh struct {
	Family  bgp.Family
	Subtype Subtype
}

// Subtype is the reserved octet RFC 7313 repurposes to mark refresh
// demarcation.
type Subtype uint8

const (
	SubtypeNormal Subtype = 0
	SubtypeBegin  Subtype = 1
	SubtypeEnd    Subtype = 2
)

func (r RouteRefresh) Type() bgp.MessageType { return bgp.MsgRouteRefresh }

func (r RouteRefresh) Body() []byte {
	var buf bytes.Buffer
	stream.WriteUint16(&buf, uint16(r.Family.AFI))
	buf.WriteByte(byte(r.Subtype))
	buf.WriteByte(byte(r.Family.SAFI))
	return buf.Bytes()
}

func decodeRouteRefresh(body []byte) (Message, error) {
	if len(body) != 4 {
		return nil, headerErr(bgp.SubcodeBadMessageLength, "ROUTE-REFRESH must be exactly 4 octets")
	}
	buf := bytes.NewBuffer(body)
	afi := bgp.AFI(stream.ReadUint16(buf))
	subtype := Subtype(stream.ReadByte(buf))
	safi := bgp.SAFI(stream.ReadByte(buf))
	return RouteRefresh{Family: bgp.Family{AFI: afi, SAFI: safi}, Subtype: subtype}, nil
}
