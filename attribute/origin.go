package attribute

import "github.com/Exa-Networks/exabgp-sub008/bgp"

// OriginCode is the well-known, mandatory ORIGIN attribute value.
type OriginCode byte

const (
	OriginIGP        OriginCode = 0
	OriginEGP        OriginCode = 1
	OriginIncomplete OriginCode = 2
)

func (o OriginCode) String() string {
	switch o {
	case OriginIGP:
		return "igp"
	case OriginEGP:
		return "egp"
	case OriginIncomplete:
		return "incomplete"
	default:
		return "unknown"
	}
}

// Origin is the well-known mandatory ORIGIN attribute.
type Origin struct {
	base
}

// NewOrigin builds an ORIGIN attribute with well-known flags.
func NewOrigin(o OriginCode) *Origin {
	return &Origin{base{flags: bgp.WellKnownFlags, code: CodeOrigin, raw: []byte{byte(o)}}}
}

// Origin returns the decoded origin code.
func (o *Origin) Origin() OriginCode {
	if len(o.raw) != 1 {
		return OriginIncomplete
	}
	return OriginCode(o.raw[0])
}

func decodeOrigin(flags bgp.Flags, value []byte) (Attribute, error) {
	if len(value) != 1 {
		return nil, resetErr(
			bgp.NewNotification(bgp.NotifyUpdateMessageError, bgp.SubcodeInvalidOriginAttribute),
			"ORIGIN attribute must be exactly 1 octet",
		)
	}
	if value[0] > byte(OriginIncomplete) {
		return nil, resetErr(
			bgp.NewNotification(bgp.NotifyUpdateMessageError, bgp.SubcodeInvalidOriginAttribute),
			"ORIGIN attribute value out of range",
		)
	}
	return &Origin{base{flags: flags, code: CodeOrigin, raw: value}}, nil
}
