package message

import (
	"bytes"

	"github.com/Exa-Networks/exabgp-sub008/bgp"
	"github.com/Exa-Networks/exabgp-sub008/stream"
)

// Open is the OPEN message (RFC 4271 §4.2): the first message each side
// of a session sends, carrying the fields and capabilities the FSM uses
// to decide whether to accept the connection (spec §4.2/§4.3).
type Open struct {
	Version      bgp.Version
	ASN          bgp.ASN // the full ASN: decode takes the 4-octet ASN capability's value when present; Body writes Legacy16 into the 2-octet field
	HoldTime     uint16
	Identifier   bgp.Identifier
	Capabilities *bgp.Capabilities
}

func (Open) Type() bgp.MessageType { return bgp.MsgOpen }

func (o Open) Body() []byte {
	var buf bytes.Buffer
	buf.WriteByte(byte(o.Version))
	stream.WriteUint16(&buf, o.ASN.Legacy16())
	stream.WriteUint16(&buf, o.HoldTime)
	stream.WriteUint32(&buf, uint32(o.Identifier))

	params := encodeCapabilities(o.Capabilities, o.ASN)
	buf.WriteByte(byte(len(params)))
	buf.Write(params)
	return buf.Bytes()
}

// paramTypeCapabilities is the Optional Parameter Type for the
// capabilities parameter (RFC 5492 §4).
const paramTypeCapabilities = 2

func encodeCapabilities(caps *bgp.Capabilities, asn bgp.ASN) []byte {
	if caps == nil {
		return nil
	}
	var tlvs bytes.Buffer
	for f, present := range caps.Families {
		if !present {
			continue
		}
		var v bytes.Buffer
		stream.WriteUint16(&v, uint16(f.AFI))
		v.WriteByte(0)
		v.WriteByte(byte(f.SAFI))
		writeCapTLV(&tlvs, bgp.CapMultiprotocol, v.Bytes())
	}
	if caps.RouteRefresh {
		writeCapTLV(&tlvs, bgp.CapRouteRefresh, nil)
	}
	if caps.EnhancedRefresh {
		writeCapTLV(&tlvs, bgp.CapEnhancedRefresh, nil)
	}
	if caps.ExtendedMessage {
		writeCapTLV(&tlvs, bgp.CapExtendedMessage, nil)
	}
	if caps.ExtendedNextHop {
		writeCapTLV(&tlvs, bgp.CapExtendedNextHop, nil)
	}
	if caps.FourOctetASN {
		var v bytes.Buffer
		stream.WriteUint32(&v, uint32(asn))
		writeCapTLV(&tlvs, bgp.CapFourOctetASN, v.Bytes())
	}
	for f, mode := range caps.AddPath {
		var v bytes.Buffer
		stream.WriteUint16(&v, uint16(f.AFI))
		v.WriteByte(byte(f.SAFI))
		v.WriteByte(byte(mode))
		writeCapTLV(&tlvs, bgp.CapAddPath, v.Bytes())
	}
	if caps.GracefulRestart != nil {
		var v bytes.Buffer
		flags := uint16(caps.GracefulRestart.RestartTimeSeconds) & 0x0FFF
		if caps.GracefulRestart.RestartFlag {
			flags |= 0x8000
		}
		stream.WriteUint16(&v, flags)
		for f, preserved := range caps.GracefulRestart.Families {
			stream.WriteUint16(&v, uint16(f.AFI))
			v.WriteByte(byte(f.SAFI))
			if preserved {
				v.WriteByte(0x80)
			} else {
				v.WriteByte(0)
			}
		}
		writeCapTLV(&tlvs, bgp.CapGracefulRestart, v.Bytes())
	}

	var params bytes.Buffer
	params.WriteByte(paramTypeCapabilities)
	params.WriteByte(byte(tlvs.Len()))
	params.Write(tlvs.Bytes())
	return params.Bytes()
}

func writeCapTLV(buf *bytes.Buffer, code bgp.CapabilityCode, value []byte) {
	buf.WriteByte(byte(code))
	buf.WriteByte(byte(len(value)))
	buf.Write(value)
}

func decodeOpen(body []byte) (Message, error) {
	if len(body) < 10 {
		return nil, headerErr(bgp.SubcodeBadMessageLength, "OPEN shorter than its fixed fields")
	}
	buf := bytes.NewBuffer(body)
	version := bgp.Version(stream.ReadByte(buf))
	asn := bgp.ASN(stream.ReadUint16(buf))
	holdTime := stream.ReadUint16(buf)
	id := bgp.Identifier(stream.ReadUint32(buf))
	paramsLen := int(stream.ReadByte(buf))
	if buf.Len() < paramsLen {
		return nil, headerErr(bgp.SubcodeBadMessageLength, "OPEN optional parameters truncated")
	}

	caps, err := decodeOptionalParameters(stream.ReadBytes(paramsLen, buf))
	if err != nil {
		return nil, err
	}
	if fourByteASN, ok := caps.fourByteASN(); ok {
		asn = fourByteASN
	}
	return Open{Version: version, ASN: asn, HoldTime: holdTime, Identifier: id, Capabilities: caps.Capabilities}, nil
}

// capsResult lets decodeOptionalParameters thread the 4-octet ASN found
// inside a capability back out to the caller without a second pass.
type capsResult struct {
	*bgp.Capabilities
	asn4 *bgp.ASN
}

func (c *capsResult) fourByteASN() (bgp.ASN, bool) {
	if c == nil || c.asn4 == nil {
		return 0, false
	}
	return *c.asn4, true
}

func decodeOptionalParameters(params []byte) (*capsResult, error) {
	caps := bgp.NewCapabilities()
	result := &capsResult{Capabilities: caps}
	buf := bytes.NewBuffer(params)
	for buf.Len() > 0 {
		if buf.Len() < 2 {
			return nil, headerErr(bgp.SubcodeBadMessageLength, "optional parameter header truncated")
		}
		typ := stream.ReadByte(buf)
		length := int(stream.ReadByte(buf))
		if buf.Len() < length {
			return nil, headerErr(bgp.SubcodeBadMessageLength, "optional parameter value truncated")
		}
		value := stream.ReadBytes(length, buf)
		if typ != paramTypeCapabilities {
			continue // unknown non-capability parameter: ignore, matching permissive OPEN handling
		}
		if err := decodeCapabilityTLVs(value, result); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func decodeCapabilityTLVs(raw []byte, result *capsResult) error {
	buf := bytes.NewBuffer(raw)
	for buf.Len() > 0 {
		if buf.Len() < 2 {
			return headerErr(bgp.SubcodeBadMessageLength, "capability header truncated")
		}
		code := bgp.CapabilityCode(stream.ReadByte(buf))
		length := int(stream.ReadByte(buf))
		if buf.Len() < length {
			return headerErr(bgp.SubcodeBadMessageLength, "capability value truncated")
		}
		value := stream.ReadBytes(length, buf)
		applyCapability(code, value, result)
	}
	return nil
}

func applyCapability(code bgp.CapabilityCode, value []byte, result *capsResult) {
	switch code {
	case bgp.CapMultiprotocol:
		if len(value) != 4 {
			return
		}
		afi := bgp.AFI(uint16(value[0])<<8 | uint16(value[1]))
		safi := bgp.SAFI(value[3])
		result.Families[bgp.Family{AFI: afi, SAFI: safi}] = true
	case bgp.CapRouteRefresh, bgp.CapRouteRefreshOld:
		result.RouteRefresh = true
	case bgp.CapEnhancedRefresh:
		result.EnhancedRefresh = true
	case bgp.CapExtendedMessage:
		result.ExtendedMessage = true
	case bgp.CapExtendedNextHop:
		result.ExtendedNextHop = true
	case bgp.CapFourOctetASN:
		if len(value) != 4 {
			return
		}
		asn := bgp.ASN(uint32(value[0])<<24 | uint32(value[1])<<16 | uint32(value[2])<<8 | uint32(value[3]))
		result.FourOctetASN = true
		result.asn4 = &asn
	case bgp.CapAddPath:
		if len(value) != 4 {
			return
		}
		afi := bgp.AFI(uint16(value[0])<<8 | uint16(value[1]))
		safi := bgp.SAFI(value[2])
		result.AddPath[bgp.Family{AFI: afi, SAFI: safi}] = bgp.AddPathMode(value[3])
	case bgp.CapGracefulRestart:
		if len(value) < 2 {
			return
		}
		flags := uint16(value[0])<<8 | uint16(value[1])
		gr := &bgp.GracefulRestart{
			RestartFlag:        flags&0x8000 != 0,
			RestartTimeSeconds: flags & 0x0FFF,
			Families:           make(map[bgp.Family]bool),
		}
		rest := value[2:]
		for len(rest) >= 4 {
			afi := bgp.AFI(uint16(rest[0])<<8 | uint16(rest[1]))
			safi := bgp.SAFI(rest[2])
			preserved := rest[3]&0x80 != 0
			gr.Families[bgp.Family{AFI: afi, SAFI: safi}] = preserved
			rest = rest[4:]
		}
		result.GracefulRestart = gr
	}
}
