// Package message implements the outer BGP message framing and the five
// message types (RFC 4271 §4): OPEN, UPDATE, NOTIFICATION, KEEPALIVE, and
// ROUTE-REFRESH (RFC 2918). It is the join point between attribute and
// nlri: UPDATE decoding reads MP_REACH_NLRI/MP_UNREACH_NLRI's opaque NLRI
// bytes from the attribute package and hands them to nlri.DecodeAll,
// something neither package can do on its own without an import cycle.
package message

import (
	"bytes"
	"fmt"

	"github.com/Exa-Networks/exabgp-sub008/bgp"
	"github.com/Exa-Networks/exabgp-sub008/stream"
)

// Message is the common interface every BGP message type implements.
type Message interface {
	Type() bgp.MessageType
	Body() []byte // the message body only, header excluded
}

// Encode wraps a message body with the fixed 19-byte header (marker,
// total length, type) to produce the bytes ready for the wire.
func Encode(m Message) []byte {
	body := m.Body()
	var buf bytes.Buffer
	buf.Write(bgp.Marker[:])
	stream.WriteUint16(&buf, uint16(bgp.HeaderLength+len(body)))
	buf.WriteByte(byte(m.Type()))
	buf.Write(body)
	return buf.Bytes()
}

// Header is the parsed fixed portion of a message, before its
// type-specific body is decoded.
type Header struct {
	Length uint16 // total message length, header included
	Type   bgp.MessageType
}

// DecodeHeader parses the 19-byte fixed header. It does not validate the
// marker's all-ones pattern against a negotiated auth scheme (this
// speaker does not implement TCP-AO/MD5 signing at the message layer);
// it does reject a non-all-ones marker outright, since RFC 4271 §4.1
// requires it and a mismatch reliably indicates stream desync.
func DecodeHeader(raw []byte) (Header, error) {
	if len(raw) != bgp.HeaderLength {
		return Header{}, fmt.Errorf("message header must be %d octets, got %d", bgp.HeaderLength, len(raw))
	}
	for i := 0; i < 16; i++ {
		if raw[i] != 0xFF {
			return Header{}, headerErr(bgp.SubcodeConnectionNotSynchronized, "marker is not all-ones")
		}
	}
	buf := bytes.NewBuffer(raw[16:])
	length := stream.ReadUint16(buf)
	typ := bgp.MessageType(stream.ReadByte(buf))
	if int(length) < bgp.HeaderLength || int(length) > bgp.MaxExtendedMessageLength {
		return Header{}, headerErr(bgp.SubcodeBadMessageLength, "message length out of range")
	}
	return Header{Length: length, Type: typ}, nil
}

func headerErr(subcode uint8, reason string) error {
	return &FramingError{Notification: bgp.NewNotification(bgp.NotifyMessageHeaderError, subcode), reason: reason}
}

// FramingError signals a header-level problem severe enough that the
// session cannot continue: RFC 4271 has no soft-error path for a
// corrupted marker or an out-of-range length, unlike the RFC 7606
// attribute-level errors the attribute package classifies.
type FramingError struct {
	Notification *bgp.Notification
	reason       string
}

func (e *FramingError) Error() string { return e.reason }
