package attribute

import (
	"bytes"

	"github.com/Exa-Networks/exabgp-sub008/bgp"
	"github.com/Exa-Networks/exabgp-sub008/stream"
)

// Aggregator is the optional transitive AGGREGATOR attribute: the ASN
// and router-id of the speaker that performed route aggregation. The
// 2-octet/4-octet ASN width is negotiated the same way AS_PATH's is; the
// parallel AS4_AGGREGATOR attribute (same shape, always 4 octets)
// carries the full ASN for legacy peers, mirroring AS4_PATH.
type Aggregator struct {
	base
	asn        bgp.ASN
	routerID   bgp.Identifier
	fourByteASN bool
}

// NewAggregator builds an AGGREGATOR attribute.
func NewAggregator(code Code, asn bgp.ASN, routerID bgp.Identifier, fourByteASN bool) *Aggregator {
	a := &Aggregator{base: base{code: code}, asn: asn, routerID: routerID, fourByteASN: fourByteASN}
	if code == CodeAS4Aggregator {
		a.flags = bgp.OptionalTransitiveFlags
	} else {
		a.flags = bgp.OptionalTransitiveFlags
	}
	a.raw = a.encode()
	return a
}

func (a *Aggregator) encode() []byte {
	var buf bytes.Buffer
	if a.fourByteASN {
		stream.WriteUint32(&buf, uint32(a.asn))
	} else {
		stream.WriteUint16(&buf, a.asn.Legacy16())
	}
	stream.WriteUint32(&buf, uint32(a.routerID))
	return buf.Bytes()
}

// ASN and RouterID return the decoded fields.
func (a *Aggregator) ASN() bgp.ASN            { return a.asn }
func (a *Aggregator) RouterID() bgp.Identifier { return a.routerID }

func decodeAggregator(flags bgp.Flags, code Code, value []byte, ctx *Context) (Attribute, error) {
	fourByteASN := code == CodeAS4Aggregator || (ctx != nil && ctx.FourByteASN)
	width := 2
	if fourByteASN {
		width = 4
	}
	if len(value) != width+4 {
		return nil, discardErr("AGGREGATOR attribute has the wrong length")
	}
	buf := bytes.NewBuffer(value)
	var asn bgp.ASN
	if fourByteASN {
		asn = bgp.ASN(stream.ReadUint32(buf))
	} else {
		asn = bgp.ASN(stream.ReadUint16(buf))
	}
	rid := bgp.Identifier(stream.ReadUint32(buf))
	return &Aggregator{base: base{flags: flags, code: code, raw: value}, asn: asn, routerID: rid, fourByteASN: fourByteASN}, nil
}
