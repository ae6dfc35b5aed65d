package nlri

import (
	"net/netip"
	"testing"

	"github.com/Exa-Networks/exabgp-sub008/bgp"
)

func TestPrefixRoundTrip(t *testing.T) {
	p := netip.MustParsePrefix("192.0.2.0/24")
	n := NewPrefix(bgp.FamilyIPv4Unicast, p)
	wire := n.Bytes()

	got, consumed, err := DecodePrefix(bgp.FamilyIPv4Unicast, wire, false, false)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if consumed != len(wire) {
		t.Fatalf("consumed %d, want %d", consumed, len(wire))
	}
	if got.Prefix() != p {
		t.Fatalf("got %v, want %v", got.Prefix(), p)
	}
}

func TestPrefixRoundTripIPv6(t *testing.T) {
	p := netip.MustParsePrefix("2001:db8::/32")
	n := NewPrefix(bgp.FamilyIPv6Unicast, p)
	got, _, err := DecodePrefix(bgp.FamilyIPv6Unicast, n.Bytes(), false, false)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Prefix() != p {
		t.Fatalf("got %v, want %v", got.Prefix(), p)
	}
}

func TestLabeledPrefixRoundTrip(t *testing.T) {
	p := netip.MustParsePrefix("10.0.0.0/24")
	labels := []Label{encodeLabel(1000, true)}
	n := NewLabeledPrefix(bgp.FamilyIPv4LabeledUnicast, p, labels)
	got, _, err := DecodePrefix(bgp.FamilyIPv4LabeledUnicast, n.Bytes(), true, false)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Prefix() != p {
		t.Fatalf("got %v, want %v", got.Prefix(), p)
	}
	if len(got.Labels()) != 1 || got.Labels()[0].Value() != 1000 {
		t.Fatalf("got labels %+v", got.Labels())
	}
}

func TestVPNPrefixRoundTrip(t *testing.T) {
	p := netip.MustParsePrefix("203.0.113.0/24")
	var rd bgp.RouteDistinguisher
	rd[1] = 1 // type 0: 2-octet ASN : 4-octet value
	rd[2], rd[3] = 0xFF, 0xFF
	n := NewVPNPrefix(bgp.FamilyIPv4MPLSVPN, p, []Label{encodeLabel(42, true)}, rd)
	got, _, err := DecodePrefix(bgp.FamilyIPv4MPLSVPN, n.Bytes(), true, true)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Prefix() != p {
		t.Fatalf("got %v, want %v", got.Prefix(), p)
	}
	gotRD, ok := got.RD()
	if !ok || gotRD != rd {
		t.Fatalf("got rd %v, ok=%v", gotRD, ok)
	}
}

func TestEVPNRoundTrip(t *testing.T) {
	e := NewEVPNEntry(2, []byte{1, 2, 3, 4})
	got, consumed, err := DecodeOpaque(bgp.FamilyL2VPNEVPN, e.Bytes())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if consumed != len(e.Bytes()) {
		t.Fatalf("consumed %d, want %d", consumed, len(e.Bytes()))
	}
	typ, ok := got.Type()
	if !ok || typ != 2 {
		t.Fatalf("got type %d, ok=%v", typ, ok)
	}
}

func TestFlowSpecShortAndLongLength(t *testing.T) {
	short := NewFlowSpecEntry(bgp.FamilyIPv4FlowSpec, []byte{1, 2, 3})
	got, _, err := DecodeOpaque(bgp.FamilyIPv4FlowSpec, short.Bytes())
	if err != nil {
		t.Fatalf("decode short: %v", err)
	}
	if len(got.Value()) != 3 {
		t.Fatalf("got %d bytes, want 3", len(got.Value()))
	}

	long := make([]byte, 300)
	entry := NewFlowSpecEntry(bgp.FamilyIPv4FlowSpec, long)
	gotLong, _, err := DecodeOpaque(bgp.FamilyIPv4FlowSpec, entry.Bytes())
	if err != nil {
		t.Fatalf("decode long: %v", err)
	}
	if len(gotLong.Value()) != 300 {
		t.Fatalf("got %d bytes, want 300", len(gotLong.Value()))
	}
}

func TestBGPLSRoundTrip(t *testing.T) {
	b := NewBGPLSEntry(2, []byte{1, 2, 3, 4, 5})
	got, _, err := DecodeOpaque(bgp.FamilyBGPLS, b.Bytes())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	typ, ok := got.Type()
	if !ok || typ != 2 {
		t.Fatalf("got type %d, ok=%v", typ, ok)
	}
}

func TestDecodeAllMultipleEntries(t *testing.T) {
	p1 := NewPrefix(bgp.FamilyIPv4Unicast, netip.MustParsePrefix("192.0.2.0/24"))
	p2 := NewPrefix(bgp.FamilyIPv4Unicast, netip.MustParsePrefix("198.51.100.0/25"))
	buf := append(append([]byte{}, p1.Bytes()...), p2.Bytes()...)

	entries, err := DecodeAll(bgp.FamilyIPv4Unicast, buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
}

func TestUnknownFamilyFallsBackToOpaque(t *testing.T) {
	custom := bgp.Family{AFI: bgp.AFI(99), SAFI: bgp.SAFI(99)}
	e := &Opaque{family: custom, typ: 7, hasType: true, value: []byte{9, 9}}
	got, _, err := Decode(custom, e.Bytes())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Family() != custom {
		t.Fatalf("got family %v", got.Family())
	}
}

func TestEntryKeyDistinguishesPathID(t *testing.T) {
	n := NewPrefix(bgp.FamilyIPv4Unicast, netip.MustParsePrefix("192.0.2.0/24"))
	e1 := Entry{NLRI: n, Path: PathInfo{ID: 1, Enabled: true}}
	e2 := Entry{NLRI: n, Path: PathInfo{ID: 2, Enabled: true}}
	if e1.Key() == e2.Key() {
		t.Fatalf("expected distinct keys for distinct path ids")
	}
}
