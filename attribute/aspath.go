package attribute

import (
	"bytes"

	"github.com/Exa-Networks/exabgp-sub008/bgp"
	"github.com/Exa-Networks/exabgp-sub008/stream"
)

// SegmentType names an AS_PATH segment's type octet (RFC 4271 §4.3,
// RFC 5065 for the confederation segment types).
type SegmentType byte

const (
	SegmentASSet        SegmentType = 1
	SegmentASSequence    SegmentType = 2
	SegmentConfedSequence SegmentType = 3
	SegmentConfedSet     SegmentType = 4
)

// Segment is one (segment_type, segment_values) run within an AS_PATH.
type Segment struct {
	Type SegmentType
	ASNs []bgp.ASN
}

// ASPath is the well-known mandatory AS_PATH attribute (or, for the
// parallel RFC 6793 attribute, AS4_PATH — same wire shape, different
// type code and always 4-octet ASNs).
type ASPath struct {
	base
	segments    []Segment
	fourByteASN bool
}

// NewASPath builds an AS_PATH attribute. fourByteASN selects the
// per-ASN field width; when false and a segment ASN doesn't fit in 2
// octets, encode substitutes bgp.ASTrans, matching spec §4.1's
// "AS_PATH... If peer is legacy-2-byte and AS_PATH contains a 4-byte ASN,
// that ASN is encoded as AS_TRANS" rule. Callers needing the full path
// preserved must additionally send an AS4_PATH attribute (see Merge).
func NewASPath(segments []Segment, fourByteASN bool) *ASPath {
	a := &ASPath{base: base{flags: bgp.WellKnownFlags, code: CodeASPath}, segments: segments, fourByteASN: fourByteASN}
	a.raw = a.encode()
	return a
}

// NewAS4Path builds the optional transitive AS4_PATH attribute carrying
// the full 4-octet path in parallel with a legacy 2-octet AS_PATH.
func NewAS4Path(segments []Segment) *ASPath {
	a := &ASPath{base: base{flags: bgp.OptionalTransitiveFlags, code: CodeAS4Path}, segments: segments, fourByteASN: true}
	a.raw = a.encode()
	return a
}

// Segments returns the decoded AS_PATH segments.
func (a *ASPath) Segments() []Segment { return a.segments }

func (a *ASPath) encode() []byte {
	var buf bytes.Buffer
	for _, seg := range a.segments {
		buf.WriteByte(byte(seg.Type))
		buf.WriteByte(byte(len(seg.ASNs)))
		for _, asn := range seg.ASNs {
			if a.fourByteASN {
				stream.WriteUint32(&buf, uint32(asn))
			} else {
				stream.WriteUint16(&buf, asn.Legacy16())
			}
		}
	}
	return buf.Bytes()
}

func decodeASPath(flags bgp.Flags, code Code, value []byte, ctx *Context) (Attribute, error) {
	fourByteASN := code == CodeAS4Path || (ctx != nil && ctx.FourByteASN)
	segments, err := decodeSegments(value, fourByteASN)
	if err != nil {
		return nil, resetErr(
			bgp.NewNotification(bgp.NotifyUpdateMessageError, bgp.SubcodeMalformedASPath),
			err.Error(),
		)
	}
	return &ASPath{base: base{flags: flags, code: code, raw: value}, segments: segments, fourByteASN: fourByteASN}, nil
}

func decodeSegments(value []byte, fourByteASN bool) ([]Segment, error) {
	width := 2
	if fourByteASN {
		width = 4
	}
	buf := bytes.NewBuffer(value)
	var segments []Segment
	for buf.Len() > 0 {
		if buf.Len() < 2 {
			return nil, errShortSegment
		}
		typ := SegmentType(stream.ReadByte(buf))
		count := int(stream.ReadByte(buf))
		if buf.Len() < count*width {
			return nil, errShortSegment
		}
		asns := make([]bgp.ASN, count)
		for i := 0; i < count; i++ {
			if width == 4 {
				asns[i] = bgp.ASN(stream.ReadUint32(buf))
			} else {
				asns[i] = bgp.ASN(stream.ReadUint16(buf))
			}
		}
		segments = append(segments, Segment{Type: typ, ASNs: asns})
	}
	return segments, nil
}

var errShortSegment = shortSegmentError{}

type shortSegmentError struct{}

func (shortSegmentError) Error() string { return "AS_PATH segment truncated" }

// MergeAS4Path implements the RFC 6793 §4.2.3 reconciliation a legacy
// 2-octet speaker's receiver must perform: the trailing ASNs of the
// flattened AS_PATH are overwritten, position by position, with the
// flattened AS4_PATH, and the result keeps AS_PATH's segment boundaries
// and types. The overwrite is positional; AS_PATH entries are not
// checked for AS_TRANS. When AS4_PATH carries more ASNs than AS_PATH,
// AS4_PATH's segments are returned unchanged.
func MergeAS4Path(asPath, as4Path *ASPath) []Segment {
	if as4Path == nil {
		if asPath == nil {
			return nil
		}
		return asPath.segments
	}
	if asPath == nil {
		return as4Path.segments
	}

	flatOld := flattenSegments(asPath.segments)
	flatNew := flattenSegments(as4Path.segments)

	if len(flatNew) > len(flatOld) {
		// AS4_PATH carries more hops than AS_PATH: there is no reliable
		// positional alignment, so the new path is authoritative.
		return as4Path.segments
	}

	merged := make([]bgp.ASN, len(flatOld))
	copy(merged, flatOld)
	offset := len(flatOld) - len(flatNew)
	copy(merged[offset:], flatNew)

	return rebuildSegments(asPath.segments, merged)
}

func flattenSegments(segments []Segment) []bgp.ASN {
	var out []bgp.ASN
	for _, s := range segments {
		out = append(out, s.ASNs...)
	}
	return out
}

// rebuildSegments re-applies the original segment boundaries/types to a
// flattened, merged ASN slice.
func rebuildSegments(shape []Segment, flat []bgp.ASN) []Segment {
	out := make([]Segment, 0, len(shape))
	i := 0
	for _, s := range shape {
		n := len(s.ASNs)
		out = append(out, Segment{Type: s.Type, ASNs: append([]bgp.ASN(nil), flat[i:i+n]...)})
		i += n
	}
	return out
}
