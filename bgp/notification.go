package bgp

import "fmt"

// Notification is the classified, structured form of a BGP NOTIFICATION
// message (RFC 4271 §4.5, §6). Decoders never panic or raise exceptions
// for malformed input (Design Notes "Exception-for-control-flow"); they
// return a Notification describing exactly what went wrong so the FSM can
// decide whether to reset the session, discard an attribute, or treat an
// UPDATE as a withdrawal (RFC 7606).
type Notification struct {
	Code    NotifyCode
	Subcode uint8
	Data    []byte
}

func (n *Notification) Error() string {
	return fmt.Sprintf("NOTIFICATION(%s, %s)", n.Code, subcodeName(n.Code, n.Subcode))
}

// NotifyCode is the one-octet Error Code of a NOTIFICATION message.
type NotifyCode uint8

const (
	NotifyMessageHeaderError NotifyCode = 1
	NotifyOpenMessageError   NotifyCode = 2
	NotifyUpdateMessageError NotifyCode = 3
	NotifyHoldTimerExpired   NotifyCode = 4
	NotifyFSMError           NotifyCode = 5
	NotifyCease              NotifyCode = 6
)

func (c NotifyCode) String() string {
	switch c {
	case NotifyMessageHeaderError:
		return "MessageHeaderError"
	case NotifyOpenMessageError:
		return "OpenMessageError"
	case NotifyUpdateMessageError:
		return "UpdateMessageError"
	case NotifyHoldTimerExpired:
		return "HoldTimerExpired"
	case NotifyFSMError:
		return "FiniteStateMachineError"
	case NotifyCease:
		return "Cease"
	default:
		return fmt.Sprintf("code(%d)", uint8(c))
	}
}

// Subcodes, grouped by the Error Code they refine. Unknown (code, subcode)
// pairs are not rejected at decode time — spec §4.1 requires they be
// "accepted and forwarded" — subcodeName just falls back to a numeric
// label for anything not in this table.
const (
	SubcodeUnspecific uint8 = 0

	// MessageHeaderError subcodes.
	SubcodeConnectionNotSynchronized uint8 = 1
	SubcodeBadMessageLength          uint8 = 2
	SubcodeBadMessageType            uint8 = 3

	// OpenMessageError subcodes.
	SubcodeUnsupportedVersionNumber     uint8 = 1
	SubcodeBadPeerAS                    uint8 = 2
	SubcodeBadBGPIdentifier             uint8 = 3
	SubcodeUnsupportedOptionalParameter uint8 = 4
	SubcodeUnacceptableHoldTime         uint8 = 6

	// UpdateMessageError subcodes.
	SubcodeMalformedAttributeList    uint8 = 1
	SubcodeUnrecognizedWellKnownAttr uint8 = 2
	SubcodeMissingWellKnownAttr      uint8 = 3
	SubcodeAttributeFlagsError       uint8 = 4
	SubcodeAttributeLengthError      uint8 = 5
	SubcodeInvalidOriginAttribute    uint8 = 6
	SubcodeInvalidNextHopAttribute   uint8 = 8
	SubcodeOptionalAttributeError    uint8 = 9
	SubcodeInvalidNetworkField       uint8 = 10
	SubcodeMalformedASPath           uint8 = 11

	// Cease subcodes (RFC 4486).
	SubcodeMaxPrefixesReached          uint8 = 1
	SubcodeAdministrativeShutdown      uint8 = 2
	SubcodePeerDeconfigured            uint8 = 3
	SubcodeAdministrativeReset         uint8 = 4
	SubcodeConnectionRejected          uint8 = 5
	SubcodeOtherConfigurationChange    uint8 = 6
	SubcodeConnectionCollisionResolution uint8 = 7
	SubcodeOutOfResources              uint8 = 8
)

var subcodeNames = map[NotifyCode]map[uint8]string{
	NotifyMessageHeaderError: {
		SubcodeConnectionNotSynchronized: "ConnectionNotSynchronized",
		SubcodeBadMessageLength:          "BadMessageLength",
		SubcodeBadMessageType:            "BadMessageType",
	},
	NotifyOpenMessageError: {
		SubcodeUnsupportedVersionNumber:     "UnsupportedVersionNumber",
		SubcodeBadPeerAS:                    "BadPeerAS",
		SubcodeBadBGPIdentifier:             "BadBGPIdentifier",
		SubcodeUnsupportedOptionalParameter: "UnsupportedOptionalParameter",
		SubcodeUnacceptableHoldTime:         "UnacceptableHoldTime",
	},
	NotifyUpdateMessageError: {
		SubcodeMalformedAttributeList:    "MalformedAttributeList",
		SubcodeUnrecognizedWellKnownAttr: "UnrecognizedWellKnownAttribute",
		SubcodeMissingWellKnownAttr:      "MissingWellKnownAttribute",
		SubcodeAttributeFlagsError:       "AttributeFlagsError",
		SubcodeAttributeLengthError:      "AttributeLengthError",
		SubcodeInvalidOriginAttribute:    "InvalidOriginAttribute",
		SubcodeInvalidNextHopAttribute:   "InvalidNextHopAttribute",
		SubcodeOptionalAttributeError:    "OptionalAttributeError",
		SubcodeInvalidNetworkField:       "InvalidNetworkField",
		SubcodeMalformedASPath:           "MalformedASPath",
	},
	NotifyCease: {
		SubcodeMaxPrefixesReached:            "MaximumNumberOfPrefixesReached",
		SubcodeAdministrativeShutdown:        "AdministrativeShutdown",
		SubcodePeerDeconfigured:              "PeerDeconfigured",
		SubcodeAdministrativeReset:           "AdministrativeReset",
		SubcodeConnectionRejected:            "ConnectionRejected",
		SubcodeOtherConfigurationChange:      "OtherConfigurationChange",
		SubcodeConnectionCollisionResolution: "ConnectionCollisionResolution",
		SubcodeOutOfResources:                "OutOfResources",
	},
}

func subcodeName(code NotifyCode, sub uint8) string {
	if sub == SubcodeUnspecific {
		return "Unspecific"
	}
	if names, ok := subcodeNames[code]; ok {
		if name, ok := names[sub]; ok {
			return name
		}
	}
	return fmt.Sprintf("subcode(%d)", sub)
}

// NewNotification builds a Notification with no data payload.
func NewNotification(code NotifyCode, subcode uint8) *Notification {
	return &Notification{Code: code, Subcode: subcode}
}

// NewNotificationData builds a Notification carrying diagnostic data,
// e.g. the offending attribute bytes.
func NewNotificationData(code NotifyCode, subcode uint8, data []byte) *Notification {
	return &Notification{Code: code, Subcode: subcode, Data: data}
}
