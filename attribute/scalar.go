package attribute

import (
	"bytes"
	"encoding/binary"

	"github.com/Exa-Networks/exabgp-sub008/bgp"
)

// MED is the optional non-transitive MULTI_EXIT_DISC attribute: a bare
// 4-octet unsigned integer.
type MED struct{ base }

// NewMED builds a MULTI_EXIT_DISC attribute.
func NewMED(v uint32) *MED {
	return &MED{base{flags: bgp.OptionalNonTransitive, code: CodeMED, raw: uint32Bytes(v)}}
}

// MED returns the decoded MED value.
func (m *MED) MED() uint32 { return decodeUint32(m.raw) }

func decodeMED(flags bgp.Flags, value []byte) (Attribute, error) {
	if len(value) != 4 {
		return nil, discardErr("MULTI_EXIT_DISC attribute must be exactly 4 octets")
	}
	return &MED{base{flags: flags, code: CodeMED, raw: value}}, nil
}

// LocalPref is the well-known LOCAL_PREF attribute, mandatory on iBGP
// sessions and absent on eBGP ones — the FSM/RIB layer enforces that
// policy, not the codec.
type LocalPref struct{ base }

// NewLocalPref builds a LOCAL_PREF attribute.
func NewLocalPref(v uint32) *LocalPref {
	return &LocalPref{base{flags: bgp.WellKnownFlags, code: CodeLocalPref, raw: uint32Bytes(v)}}
}

// LocalPref returns the decoded LOCAL_PREF value.
func (l *LocalPref) LocalPref() uint32 { return decodeUint32(l.raw) }

func decodeLocalPref(flags bgp.Flags, value []byte) (Attribute, error) {
	if len(value) != 4 {
		return nil, discardErr("LOCAL_PREF attribute must be exactly 4 octets")
	}
	return &LocalPref{base{flags: flags, code: CodeLocalPref, raw: value}}, nil
}

// AtomicAggregate is the well-known, value-less ATOMIC_AGGREGATE flag
// attribute.
type AtomicAggregate struct{ base }

// NewAtomicAggregate builds an empty ATOMIC_AGGREGATE attribute.
func NewAtomicAggregate() *AtomicAggregate {
	return &AtomicAggregate{base{flags: bgp.WellKnownFlags, code: CodeAtomicAggregate, raw: nil}}
}

func decodeAtomicAggregate(flags bgp.Flags, value []byte) (Attribute, error) {
	if len(value) != 0 {
		return nil, discardErr("ATOMIC_AGGREGATE attribute must carry no value")
	}
	return &AtomicAggregate{base{flags: flags, code: CodeAtomicAggregate, raw: value}}, nil
}

// AIGP is the optional non-transitive AIGP attribute (RFC 7311): a TLV
// container whose type-1 sub-TLV carries a 64-bit metric. Only the
// accumulated-metric sub-TLV is given semantic decoding; any other
// sub-TLV is preserved verbatim in raw for round-trip.
type AIGP struct{ base }

const aigpMetricTLVType = 1

// NewAIGP builds an AIGP attribute carrying only the accumulated metric
// sub-TLV.
func NewAIGP(metric uint64) *AIGP {
	var buf bytes.Buffer
	buf.WriteByte(aigpMetricTLVType)
	binary.Write(&buf, binary.BigEndian, uint16(11))
	binary.Write(&buf, binary.BigEndian, metric)
	return &AIGP{base{flags: bgp.OptionalNonTransitive, code: CodeAIGP, raw: buf.Bytes()}}
}

// Metric decodes the accumulated IGP metric sub-TLV, if present.
func (a *AIGP) Metric() (uint64, bool) {
	buf := a.raw
	for len(buf) >= 3 {
		typ := buf[0]
		length := int(binary.BigEndian.Uint16(buf[1:3]))
		if length < 3 || length > len(buf) {
			return 0, false
		}
		if typ == aigpMetricTLVType && length == 11 {
			return binary.BigEndian.Uint64(buf[3:11]), true
		}
		buf = buf[length:]
	}
	return 0, false
}

func decodeAIGP(flags bgp.Flags, value []byte) (Attribute, error) {
	return &AIGP{base{flags: flags, code: CodeAIGP, raw: value}}, nil
}

func uint32Bytes(v uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return b[:]
}

func decodeUint32(b []byte) uint32 {
	if len(b) != 4 {
		return 0
	}
	return binary.BigEndian.Uint32(b)
}
