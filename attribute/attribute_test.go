package attribute

import (
	"net/netip"
	"testing"

	"github.com/Exa-Networks/exabgp-sub008/bgp"
)

func roundTrip(t *testing.T, ctx *Context, a Attribute) Attribute {
	t.Helper()
	wire := a.Bytes()
	// skip flags(1) + code(1) + length(1 or 2)
	hdrLen := 3
	if a.Flags().ExtendedLength() {
		hdrLen = 4
	}
	got, err := Decode(ctx, a.Flags(), a.Code(), wire[hdrLen:])
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return got
}

func TestOriginRoundTrip(t *testing.T) {
	o := NewOrigin(OriginEGP)
	got := roundTrip(t, nil, o).(*Origin)
	if got.Origin() != OriginEGP {
		t.Fatalf("got %v, want EGP", got.Origin())
	}
}

func TestOriginRejectsBadLength(t *testing.T) {
	_, err := decodeOrigin(bgp.WellKnownFlags, []byte{0, 1})
	de, ok := err.(*DecodeError)
	if !ok || de.Kind != KindReset {
		t.Fatalf("expected KindReset, got %v", err)
	}
}

func TestASPathRoundTrip(t *testing.T) {
	segs := []Segment{{Type: SegmentASSequence, ASNs: []bgp.ASN{65001, 65002, 4200000000}}}
	a := NewASPath(segs, true)
	got := roundTrip(t, &Context{FourByteASN: true}, a).(*ASPath)
	if len(got.Segments()) != 1 || len(got.Segments()[0].ASNs) != 3 {
		t.Fatalf("unexpected segments: %+v", got.Segments())
	}
	if got.Segments()[0].ASNs[2] != 4200000000 {
		t.Fatalf("ASN mismatch: %v", got.Segments()[0].ASNs)
	}
}

func TestMergeAS4Path(t *testing.T) {
	asPath := NewASPath([]Segment{{Type: SegmentASSequence, ASNs: []bgp.ASN{65001, bgp.ASTrans, bgp.ASTrans}}}, false)
	as4Path := NewAS4Path([]Segment{{Type: SegmentASSequence, ASNs: []bgp.ASN{4200000001, 4200000002}}})
	merged := MergeAS4Path(asPath, as4Path)
	want := []bgp.ASN{65001, 4200000001, 4200000002}
	flat := flattenSegments(merged)
	for i, asn := range want {
		if flat[i] != asn {
			t.Fatalf("merged[%d] = %v, want %v", i, flat[i], asn)
		}
	}
}

func TestMergeAS4PathNilAS4(t *testing.T) {
	asPath := NewASPath([]Segment{{Type: SegmentASSequence, ASNs: []bgp.ASN{65001}}}, false)
	merged := MergeAS4Path(asPath, nil)
	if len(merged) != 1 || merged[0].ASNs[0] != 65001 {
		t.Fatalf("unexpected merge with nil AS4_PATH: %+v", merged)
	}
}

func TestNextHopRoundTrip(t *testing.T) {
	addr := netip.MustParseAddr("192.0.2.1")
	nh := NewNextHop(addr)
	got := roundTrip(t, nil, nh).(*NextHop)
	if got.Addr() != addr {
		t.Fatalf("got %v, want %v", got.Addr(), addr)
	}
}

func TestNextHopRejectsBadLength(t *testing.T) {
	_, err := decodeNextHop(bgp.WellKnownFlags, []byte{1, 2, 3})
	de, ok := err.(*DecodeError)
	if !ok || de.Kind != KindReset {
		t.Fatalf("expected KindReset, got %v", err)
	}
}

func TestMEDAndLocalPref(t *testing.T) {
	med := NewMED(100)
	got := roundTrip(t, nil, med).(*MED)
	if got.MED() != 100 {
		t.Fatalf("got %d, want 100", got.MED())
	}
	lp := NewLocalPref(200)
	gotLP := roundTrip(t, nil, lp).(*LocalPref)
	if gotLP.LocalPref() != 200 {
		t.Fatalf("got %d, want 200", gotLP.LocalPref())
	}
}

func TestMEDRejectsBadLengthAsDiscard(t *testing.T) {
	_, err := decodeMED(bgp.OptionalNonTransitive, []byte{1, 2, 3})
	de, ok := err.(*DecodeError)
	if !ok || de.Kind != KindDiscard {
		t.Fatalf("expected KindDiscard, got %v", err)
	}
}

func TestAggregatorRoundTrip(t *testing.T) {
	id, err := bgp.IdentifierFromAddr(netip.MustParseAddr("192.0.2.1"))
	if err != nil {
		t.Fatalf("IdentifierFromAddr: %v", err)
	}
	a := NewAggregator(CodeAggregator, 65001, id, false)
	got := roundTrip(t, &Context{}, a).(*Aggregator)
	if got.ASN() != 65001 {
		t.Fatalf("got asn %v, want 65001", got.ASN())
	}
}

func TestRegularCommunitiesRoundTrip(t *testing.T) {
	c := NewCommunities([]Community{Community(65001<<16 | 100)})
	got := roundTrip(t, nil, c).(*Communities)
	vals := got.Values()
	if len(vals) != 1 || vals[0].String() != "65001:100" {
		t.Fatalf("got %v", vals)
	}
}

func TestExtendedCommunitiesLengthCheck(t *testing.T) {
	_, err := decodeExtendedCommunities(bgp.OptionalTransitiveFlags, []byte{1, 2, 3})
	de, ok := err.(*DecodeError)
	if !ok || de.Kind != KindTreatAsWithdraw {
		t.Fatalf("expected KindTreatAsWithdraw, got %v", err)
	}
}

func TestLargeCommunitiesRoundTrip(t *testing.T) {
	lc := NewLargeCommunities([]LargeCommunity{{GlobalAdmin: 65001, LocalData1: 1, LocalData2: 2}})
	got := roundTrip(t, nil, lc).(*LargeCommunities)
	vals := got.Values()
	if len(vals) != 1 || vals[0].String() != "65001:1:2" {
		t.Fatalf("got %v", vals)
	}
}

func TestOriginatorIDAndClusterList(t *testing.T) {
	id, err := bgp.IdentifierFromAddr(netip.MustParseAddr("192.0.2.1"))
	if err != nil {
		t.Fatalf("IdentifierFromAddr: %v", err)
	}
	o := NewOriginatorID(id)
	got := roundTrip(t, nil, o).(*OriginatorID)
	if got.ID() != id {
		t.Fatalf("got %v, want %v", got.ID(), id)
	}
	cl := NewClusterList([]uint32{1, 2, 3})
	gotCL := roundTrip(t, nil, cl).(*ClusterList)
	if len(gotCL.IDs()) != 3 {
		t.Fatalf("got %v", gotCL.IDs())
	}
}

func TestMPReachNLRIRoundTrip(t *testing.T) {
	nh := netip.MustParseAddr("2001:db8::1").As16()
	m := NewMPReachNLRI(bgp.AFIIPv6, bgp.SAFIUnicast, nh[:], []byte{0x40, 0x20, 0x01})
	got := roundTrip(t, nil, m).(*MPReachNLRI)
	if got.AFI() != bgp.AFIIPv6 || got.SAFI() != bgp.SAFIUnicast {
		t.Fatalf("unexpected family: %v/%v", got.AFI(), got.SAFI())
	}
	if len(got.NextHop()) != 16 {
		t.Fatalf("unexpected next hop length: %d", len(got.NextHop()))
	}
}

func TestMPReachNLRIRejectsBadNextHopLength(t *testing.T) {
	_, err := decodeMPReachNLRI(bgp.OptionalNonTransitive, []byte{0, 1, 1, 3, 1, 2, 3, 0})
	de, ok := err.(*DecodeError)
	if !ok || de.Kind != KindTreatAsWithdraw {
		t.Fatalf("expected KindTreatAsWithdraw, got %v", err)
	}
}

func TestMPUnreachEndOfRIB(t *testing.T) {
	m := NewMPUnreachNLRI(bgp.AFIIPv6, bgp.SAFIUnicast, nil)
	got := roundTrip(t, nil, m).(*MPUnreachNLRI)
	if !got.IsEndOfRIB() {
		t.Fatalf("expected EOR marker")
	}
}

func TestUnknownOptionalTransitiveKeptOpaque(t *testing.T) {
	got, err := Decode(nil, bgp.OptionalTransitiveFlags, Code(99), []byte{1, 2, 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	op, ok := got.(*Opaque)
	if !ok {
		t.Fatalf("expected *Opaque, got %T", got)
	}
	if !op.Flags().Partial() {
		t.Fatalf("expected PARTIAL forced on for unknown transitive attribute")
	}
}

func TestUnknownNonTransitiveDiscarded(t *testing.T) {
	got, err := Decode(nil, bgp.OptionalNonTransitive, Code(99), []byte{1, 2, 3})
	if err != nil || got != nil {
		t.Fatalf("expected silent discard, got (%v, %v)", got, err)
	}
}

func TestAIGPMetric(t *testing.T) {
	a := NewAIGP(123456789)
	got := roundTrip(t, nil, a).(*AIGP)
	metric, ok := got.Metric()
	if !ok || metric != 123456789 {
		t.Fatalf("got (%d, %v)", metric, ok)
	}
}
