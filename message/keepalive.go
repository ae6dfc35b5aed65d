package message

import "github.com/Exa-Networks/exabgp-sub008/bgp"

// Keepalive is the header-only KEEPALIVE message (RFC 4271 §4.4).
type Keepalive struct{}

func (Keepalive) Type() bgp.MessageType { return bgp.MsgKeepalive }
func (Keepalive) Body() []byte          { return nil }

func decodeKeepalive(body []byte) (Message, error) {
	if len(body) != 0 {
		return nil, headerErr(bgp.SubcodeBadMessageLength, "KEEPALIVE carries no body")
	}
	return Keepalive{}, nil
}
