package attribute

import "github.com/Exa-Networks/exabgp-sub008/bgp"

// DecodeError classifies an attribute-level decode failure per RFC 7606
// ("treat-as-withdraw"), which spec §4.1/§7 require instead of raising an
// exception: every parse path returns a value the caller can act on.
//
// Kind takes exactly one of three values:
//   - KindReset:     the whole session must be torn down with Notification.
//   - KindDiscard:   drop this one attribute, keep processing the UPDATE.
//   - KindTreatAsWithdraw: the UPDATE's NLRIs become withdrawals; the
//     session stays ESTABLISHED.
type DecodeError struct {
	Kind         Kind
	Notification *bgp.Notification
	reason       string
}

// Kind is the RFC 7606 disposition for a malformed attribute.
type Kind uint8

const (
	KindReset Kind = iota
	KindDiscard
	KindTreatAsWithdraw
)

func (k Kind) String() string {
	switch k {
	case KindReset:
		return "reset"
	case KindDiscard:
		return "discard"
	case KindTreatAsWithdraw:
		return "treat-as-withdraw"
	default:
		return "unknown"
	}
}

func (e *DecodeError) Error() string {
	if e.reason != "" {
		return e.reason
	}
	if e.Notification != nil {
		return e.Notification.Error()
	}
	return "attribute decode error"
}

func resetErr(notif *bgp.Notification, reason string) *DecodeError {
	return &DecodeError{Kind: KindReset, Notification: notif, reason: reason}
}

func discardErr(reason string) *DecodeError {
	return &DecodeError{Kind: KindDiscard, reason: reason}
}

func treatAsWithdrawErr(reason string) *DecodeError {
	return &DecodeError{Kind: KindTreatAsWithdraw, reason: reason}
}
