package message

import "github.com/Exa-Networks/exabgp-sub008/bgp"

// Notification wraps bgp.Notification as a Message.
type Notification struct {
	*bgp.Notification
}

func (Notification) Type() bgp.MessageType { return bgp.MsgNotification }

func (n Notification) Body() []byte {
	body := []byte{byte(n.Code), n.Subcode}
	return append(body, n.Data...)
}

func decodeNotification(body []byte) (Message, error) {
	if len(body) < 2 {
		return nil, headerErr(bgp.SubcodeBadMessageLength, "NOTIFICATION shorter than its fixed fields")
	}
	return Notification{&bgp.Notification{
		Code:    bgp.NotifyCode(body[0]),
		Subcode: body[1],
		Data:    append([]byte(nil), body[2:]...),
	}}, nil
}
