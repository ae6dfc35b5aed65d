package message

import (
	"io"

	"github.com/Exa-Networks/exabgp-sub008/bgp"
	"github.com/Exa-Networks/exabgp-sub008/stream"
)

// ReadMessage blocks on r until one full BGP message arrives, decodes
// its header, then decodes the type-specific body. updateCtx supplies
// the per-session facts UPDATE decoding needs; it is ignored for every
// other message type.
func ReadMessage(r io.Reader, updateCtx DecodeContext) (Message, []Diagnostic, error) {
	typ, body, err := ReadFrame(r)
	if err != nil {
		return nil, nil, err
	}
	return decodeBody(typ, body, updateCtx)
}

// ReadFrame blocks on r until one full BGP message arrives and returns
// its type and body undecoded. It exists so a reader goroutine can do
// the blocking I/O while the body is decoded later, on whichever
// goroutine holds the session's current negotiated context (the
// reactor's turn function) — decoding UPDATE bodies requires knowing
// whether 4-octet ASNs and ADD-PATH were negotiated, and that is only
// safe to read on the reactor goroutine (spec §5).
func ReadFrame(r io.Reader) (bgp.MessageType, []byte, error) {
	rawHeader, err := stream.ReadFull(r, bgp.HeaderLength)
	if err != nil {
		return 0, nil, err
	}
	header, err := DecodeHeader(rawHeader)
	if err != nil {
		return 0, nil, err
	}
	body, err := stream.ReadFull(r, int(header.Length)-bgp.HeaderLength)
	if err != nil {
		return 0, nil, err
	}
	return header.Type, body, nil
}

// DecodeBody decodes one message body already separated from its header
// by ReadFrame.
func DecodeBody(typ bgp.MessageType, body []byte, updateCtx DecodeContext) (Message, []Diagnostic, error) {
	return decodeBody(typ, body, updateCtx)
}

func decodeBody(typ bgp.MessageType, body []byte, updateCtx DecodeContext) (Message, []Diagnostic, error) {
	switch typ {
	case bgp.MsgOpen:
		m, err := decodeOpen(body)
		return m, nil, err
	case bgp.MsgUpdate:
		u, diags, err := DecodeUpdate(body, updateCtx)
		if err != nil {
			return nil, diags, err
		}
		return u, diags, nil
	case bgp.MsgNotification:
		m, err := decodeNotification(body)
		return m, nil, err
	case bgp.MsgKeepalive:
		m, err := decodeKeepalive(body)
		return m, nil, err
	case bgp.MsgRouteRefresh:
		m, err := decodeRouteRefresh(body)
		return m, nil, err
	default:
		return nil, nil, headerErr(bgp.SubcodeBadMessageType, "unrecognized message type")
	}
}
