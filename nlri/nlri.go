// Package nlri implements per-address-family NLRI wire codecs (spec §3's
// "NLRI" tagged union). Like the attribute package, every concrete type
// is packed-bytes-first: it stores the raw wire encoding and exposes
// semantic accessors on demand, giving exact round-trip for families this
// speaker relays without fully understanding (BGP-LS, Flow-Spec, EVPN,
// MVPN, MUP all get outer-envelope decoding only).
//
// This package does not import attribute; the join between an UPDATE's
// attributes and its NLRI entries happens in the message package, which
// imports both (see attribute/mp.go's package doc for why).
package nlri

import "github.com/Exa-Networks/exabgp-sub008/bgp"

// Action marks why an NLRI entry appears in an UPDATE: freshly announced,
// withdrawn, or (internal to the RIB) superseded and no longer tracked.
type Action uint8

const (
	ActionAnnounce Action = iota
	ActionWithdraw
	ActionUnset
)

func (a Action) String() string {
	switch a {
	case ActionAnnounce:
		return "announce"
	case ActionWithdraw:
		return "withdraw"
	default:
		return "unset"
	}
}

// PathInfo is the RFC 7911 ADD-PATH out-of-band path identifier prefixed
// to an NLRI entry when ADD-PATH is negotiated for its family. A zero
// value means ADD-PATH was not negotiated and the identifier is absent
// on the wire.
type PathInfo struct {
	ID      uint32
	Enabled bool
}

// NLRI is the common interface every per-family NLRI type implements.
type NLRI interface {
	Family() bgp.Family
	Bytes() []byte // the wire encoding of this one NLRI entry (no PathInfo prefix)
	String() string
}

// Entry pairs a decoded NLRI with the ADD-PATH identifier it carried (if
// any); the RIB and message packages operate on Entry, not bare NLRI,
// since the path identifier participates in route identity under
// ADD-PATH (spec §5 "Outgoing RIB").
type Entry struct {
	NLRI NLRI
	Path PathInfo
}

// Key returns a comparable, map-safe identity for this entry: the family,
// raw NLRI bytes, and path identifier. Two entries with the same Key
// refer to the same route under ADD-PATH rules.
func (e Entry) Key() string {
	f := e.NLRI.Family()
	id := ""
	if e.Path.Enabled {
		id = string([]byte{byte(e.Path.ID >> 24), byte(e.Path.ID >> 16), byte(e.Path.ID >> 8), byte(e.Path.ID)})
	}
	return string([]byte{byte(f.AFI >> 8), byte(f.AFI), byte(f.SAFI)}) + string(e.NLRI.Bytes()) + id
}
