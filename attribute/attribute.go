// Package attribute implements the BGP path attribute wire codec: the
// tagged union in spec §3 ("PathAttribute") over ORIGIN, AS_PATH,
// NEXT_HOP, MED, LOCAL_PREF, ATOMIC_AGGREGATE, AGGREGATOR, the four
// COMMUNITIES flavors, ORIGINATOR_ID, CLUSTER_LIST, MP_REACH_NLRI,
// MP_UNREACH_NLRI, PMSI_TUNNEL, AIGP, BGP-LS, PREFIX_SID, and a generic
// opaque fallback for anything unrecognized.
//
// Every concrete type follows the packed-bytes-first decision in spec
// §4.1: it stores the raw attribute value bytes it was built or parsed
// from, and semantic accessors unpack from those bytes on demand. This
// gives perfect round-trip and byte-level equality for free, mirroring
// how the teacher's NLRI/message types are meant to work (see the
// "Design decision: packed-bytes-first" note carried into this package).
package attribute

import (
	"bytes"
	"fmt"

	"github.com/Exa-Networks/exabgp-sub008/bgp"
)

// Code is the one-octet path attribute type code (RFC 4271 §4.3 and its
// amendments).
type Code uint8

const (
	CodeOrigin              Code = 1
	CodeASPath              Code = 2
	CodeNextHop             Code = 3
	CodeMED                 Code = 4
	CodeLocalPref           Code = 5
	CodeAtomicAggregate     Code = 6
	CodeAggregator          Code = 7
	CodeCommunities         Code = 8
	CodeOriginatorID        Code = 9
	CodeClusterList         Code = 10
	CodeMPReachNLRI         Code = 14
	CodeMPUnreachNLRI       Code = 15
	CodeExtendedCommunities Code = 16
	CodeAS4Path             Code = 17
	CodeAS4Aggregator       Code = 18
	CodePMSITunnel          Code = 22
	CodeAIGP                Code = 26
	CodeLargeCommunities    Code = 32
	CodeBGPLS               Code = 29
	CodePrefixSID           Code = 40
)

func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("attr(%d)", uint8(c))
}

var codeNames = map[Code]string{
	CodeOrigin:              "ORIGIN",
	CodeASPath:              "AS_PATH",
	CodeNextHop:             "NEXT_HOP",
	CodeMED:                 "MULTI_EXIT_DISC",
	CodeLocalPref:           "LOCAL_PREF",
	CodeAtomicAggregate:     "ATOMIC_AGGREGATE",
	CodeAggregator:          "AGGREGATOR",
	CodeCommunities:         "COMMUNITIES",
	CodeOriginatorID:        "ORIGINATOR_ID",
	CodeClusterList:         "CLUSTER_LIST",
	CodeMPReachNLRI:         "MP_REACH_NLRI",
	CodeMPUnreachNLRI:       "MP_UNREACH_NLRI",
	CodeExtendedCommunities: "EXTENDED_COMMUNITIES",
	CodeAS4Path:             "AS4_PATH",
	CodeAS4Aggregator:       "AS4_AGGREGATOR",
	CodePMSITunnel:          "PMSI_TUNNEL",
	CodeAIGP:                "AIGP",
	CodeLargeCommunities:    "LARGE_COMMUNITIES",
	CodeBGPLS:               "BGP-LS",
	CodePrefixSID:           "PREFIX_SID",
}

// Attribute is the common interface every path attribute variant
// implements. Bytes returns the full wire encoding: flags octet, type
// code octet, length (2 octets when the value is longer than 255 octets,
// else 1, with the EXTENDED_LENGTH flag set to match), and value.
type Attribute interface {
	Code() Code
	Flags() bgp.Flags
	Value() []byte // the attribute value only, not the flags/code/length header
	Bytes() []byte // the full TLV: flags, code, length, value
}

// base is embedded by every concrete attribute type; it stores the flags
// and raw value bytes and implements Flags/Value/Bytes generically so
// each variant only needs to implement Code() and whatever semantic
// accessors it adds.
type base struct {
	flags bgp.Flags
	code  Code
	raw   []byte
}

func (b base) Code() Code      { return b.code }
func (b base) Flags() bgp.Flags { return b.flags }
func (b base) Value() []byte   { return b.raw }

func (b base) Bytes() []byte {
	var buf bytes.Buffer
	length := len(b.raw)
	flags := b.flags
	if length > 255 {
		flags = flags.WithExtendedLength(true)
	} else {
		flags = flags.WithExtendedLength(false)
	}
	buf.WriteByte(byte(flags))
	buf.WriteByte(byte(b.code))
	if flags.ExtendedLength() {
		buf.WriteByte(byte(length >> 8))
		buf.WriteByte(byte(length))
	} else {
		buf.WriteByte(byte(length))
	}
	buf.Write(b.raw)
	return buf.Bytes()
}

// Opaque preserves an attribute this speaker does not decode further:
// an unrecognized type code, per spec §4.1's UPDATE decode strategy step
// 3 ("Unknown types: if TRANSITIVE set, keep as opaque attribute with
// PARTIAL flag forced on; if not TRANSITIVE, discard").
type Opaque struct {
	base
}

// NewOpaque wraps raw bytes for a type this speaker does not recognize.
// If the attribute is optional-transitive, the caller must force Partial
// on per RFC 4271 §5 before re-advertising it; Decode does this
// automatically.
func NewOpaque(flags bgp.Flags, code Code, value []byte) *Opaque {
	return &Opaque{base{flags: flags, code: code, raw: value}}
}
