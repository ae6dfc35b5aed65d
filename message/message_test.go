package message

import (
	"bytes"
	"net/netip"
	"testing"

	"github.com/Exa-Networks/exabgp-sub008/attribute"
	"github.com/Exa-Networks/exabgp-sub008/bgp"
	"github.com/Exa-Networks/exabgp-sub008/nlri"
)

func TestKeepaliveRoundTrip(t *testing.T) {
	wire := Encode(Keepalive{})
	if len(wire) != bgp.HeaderLength {
		t.Fatalf("got %d bytes, want %d", len(wire), bgp.HeaderLength)
	}
	m, _, err := ReadMessage(bytes.NewReader(wire), DecodeContext{})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := m.(Keepalive); !ok {
		t.Fatalf("got %T, want Keepalive", m)
	}
}

func TestNotificationRoundTrip(t *testing.T) {
	n := Notification{bgp.NewNotificationData(bgp.NotifyCease, bgp.SubcodeAdministrativeShutdown, []byte("bye"))}
	wire := Encode(n)
	m, _, err := ReadMessage(bytes.NewReader(wire), DecodeContext{})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got, ok := m.(Notification)
	if !ok {
		t.Fatalf("got %T, want Notification", m)
	}
	if got.Code != bgp.NotifyCease || got.Subcode != bgp.SubcodeAdministrativeShutdown {
		t.Fatalf("got %+v", got.Notification)
	}
	if string(got.Data) != "bye" {
		t.Fatalf("got data %q", got.Data)
	}
}

func TestRouteRefreshRoundTrip(t *testing.T) {
	rr := RouteRefresh{Family: bgp.FamilyIPv6Unicast, Subtype: SubtypeBegin}
	wire := Encode(rr)
	m, _, err := ReadMessage(bytes.NewReader(wire), DecodeContext{})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got, ok := m.(RouteRefresh)
	if !ok {
		t.Fatalf("got %T, want RouteRefresh", m)
	}
	if got.Family != bgp.FamilyIPv6Unicast || got.Subtype != SubtypeBegin {
		t.Fatalf("got %+v", got)
	}
}

func TestOpenRoundTrip(t *testing.T) {
	caps := bgp.NewCapabilities()
	caps.Families[bgp.FamilyIPv4Unicast] = true
	caps.Families[bgp.FamilyIPv6Unicast] = true
	caps.FourOctetASN = true
	caps.RouteRefresh = true
	caps.AddPath[bgp.FamilyIPv4Unicast] = bgp.AddPathBoth
	caps.GracefulRestart = &bgp.GracefulRestart{
		RestartTimeSeconds: 120,
		RestartFlag:        true,
		Families:           map[bgp.Family]bool{bgp.FamilyIPv4Unicast: true},
	}

	id, _ := bgp.IdentifierFromAddr(netip.MustParseAddr("192.0.2.1"))
	o := Open{Version: bgp.CurrentVersion, ASN: 4200000001, HoldTime: 180, Identifier: id, Capabilities: caps}
	wire := Encode(o)

	m, _, err := ReadMessage(bytes.NewReader(wire), DecodeContext{})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got, ok := m.(Open)
	if !ok {
		t.Fatalf("got %T, want Open", m)
	}
	if got.ASN != 4200000001 {
		t.Fatalf("got asn %v, want 4200000001", got.ASN)
	}
	if got.HoldTime != 180 || got.Identifier != id {
		t.Fatalf("got %+v", got)
	}
	if !got.Capabilities.Families[bgp.FamilyIPv6Unicast] {
		t.Fatalf("expected ipv6 unicast family negotiated")
	}
	if !got.Capabilities.RouteRefresh || !got.Capabilities.FourOctetASN {
		t.Fatalf("expected route-refresh and 4-octet-asn capabilities")
	}
	if got.Capabilities.AddPath[bgp.FamilyIPv4Unicast] != bgp.AddPathBoth {
		t.Fatalf("got add-path mode %v", got.Capabilities.AddPath[bgp.FamilyIPv4Unicast])
	}
	if got.Capabilities.GracefulRestart == nil || got.Capabilities.GracefulRestart.RestartTimeSeconds != 120 {
		t.Fatalf("got graceful restart %+v", got.Capabilities.GracefulRestart)
	}
}

func TestUpdateRoundTripLegacyIPv4(t *testing.T) {
	withdraw := nlri.Entry{NLRI: nlri.NewPrefix(bgp.FamilyIPv4Unicast, netip.MustParsePrefix("198.51.100.0/24"))}
	announce := nlri.Entry{NLRI: nlri.NewPrefix(bgp.FamilyIPv4Unicast, netip.MustParsePrefix("192.0.2.0/24"))}
	attrs := []attribute.Attribute{
		attribute.NewOrigin(attribute.OriginIGP),
		attribute.NewASPath([]attribute.Segment{{Type: attribute.SegmentASSequence, ASNs: []bgp.ASN{65001}}}, false),
		attribute.NewNextHop(netip.MustParseAddr("192.0.2.254")),
	}
	u := Update{Withdrawn: []nlri.Entry{withdraw}, Announced: []nlri.Entry{announce}, Attributes: attrs}
	wire := Encode(u)

	m, diags, err := ReadMessage(bytes.NewReader(wire), DecodeContext{})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %+v", diags)
	}
	got, ok := m.(*Update)
	if !ok {
		t.Fatalf("got %T, want *Update", m)
	}
	if len(got.Withdrawn) != 1 || len(got.Announced) != 1 {
		t.Fatalf("got withdrawn=%d announced=%d", len(got.Withdrawn), len(got.Announced))
	}
	if len(got.Attributes) != 3 {
		t.Fatalf("got %d attributes, want 3", len(got.Attributes))
	}
}

func TestUpdateRoundTripMPReach(t *testing.T) {
	announce := nlri.Entry{NLRI: nlri.NewPrefix(bgp.FamilyIPv6Unicast, netip.MustParsePrefix("2001:db8::/32"))}
	nh := netip.MustParseAddr("2001:db8::1").As16()
	u := Update{
		Announced:  []nlri.Entry{announce},
		Attributes: []attribute.Attribute{attribute.NewOrigin(attribute.OriginIGP)},
		NextHops:   map[bgp.Family][]byte{bgp.FamilyIPv6Unicast: nh[:]},
	}
	wire := Encode(u)

	m, diags, err := ReadMessage(bytes.NewReader(wire), DecodeContext{})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %+v", diags)
	}
	got := m.(*Update)
	if len(got.Announced) != 1 || got.Announced[0].NLRI.Family() != bgp.FamilyIPv6Unicast {
		t.Fatalf("got announced %+v", got.Announced)
	}
	if len(got.NextHops[bgp.FamilyIPv6Unicast]) != 16 {
		t.Fatalf("got next hop %v", got.NextHops[bgp.FamilyIPv6Unicast])
	}
}

func TestUpdateEndOfRIB(t *testing.T) {
	u := Update{}
	wire := Encode(u)
	m, _, err := ReadMessage(bytes.NewReader(wire), DecodeContext{})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got := m.(*Update)
	if !got.IsEndOfRIB() {
		t.Fatalf("expected EOR")
	}
}

func TestUpdateMalformedAttributeTreatAsWithdraw(t *testing.T) {
	// A COMMUNITIES attribute whose length is not a multiple of 4 is a
	// treat-as-withdraw condition (RFC 7606); build the attribute TLV
	// section by hand so the malformed length is exact and unambiguous.
	var attrs bytes.Buffer
	attrs.Write(attribute.NewOrigin(attribute.OriginIGP).Bytes())
	attrs.Write(attribute.NewNextHop(netip.MustParseAddr("192.0.2.254")).Bytes())
	attrs.Write([]byte{byte(bgp.OptionalTransitiveFlags), byte(attribute.CodeCommunities), 3, 0, 0, 0}) // length=3, not %4

	var body bytes.Buffer
	body.Write([]byte{0, 0}) // withdrawn-routes length = 0
	body.Write([]byte{byte(attrs.Len() >> 8), byte(attrs.Len())})
	body.Write(attrs.Bytes())
	body.Write(nlri.NewPrefix(bgp.FamilyIPv4Unicast, netip.MustParsePrefix("192.0.2.0/24")).Bytes())

	u, diags, err := DecodeUpdate(body.Bytes(), DecodeContext{})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(diags) == 0 {
		t.Fatalf("expected at least one diagnostic")
	}
	if len(u.Announced) != 0 || len(u.Withdrawn) != 1 {
		t.Fatalf("expected treat-as-withdraw to move the announced NLRI to withdrawn, got announced=%d withdrawn=%d", len(u.Announced), len(u.Withdrawn))
	}
}

func TestUpdateMPReachIllegalNextHopLengthTreatAsWithdraw(t *testing.T) {
	// An MP_REACH_NLRI for ipv6-unicast with a 4-byte NEXT_HOP (illegal;
	// ipv6 needs 16 or 32) must still surface its NLRI as a withdrawal
	// rather than losing the prefixes entirely (RFC 7606 §5(c), spec.md
	// §8 Scenario D).
	prefix := nlri.NewPrefix(bgp.FamilyIPv6Unicast, netip.MustParsePrefix("2001:db8::/32"))

	var mpValue bytes.Buffer
	mpValue.Write([]byte{0, byte(bgp.AFIIPv6)}) // AFI, big-endian uint16
	mpValue.WriteByte(byte(bgp.SAFIUnicast))
	mpValue.WriteByte(4) // NEXT_HOP length: illegal for ipv6
	mpValue.Write([]byte{1, 2, 3, 4})
	mpValue.WriteByte(0) // reserved SNPA count
	mpValue.Write(prefix.Bytes())

	var attrs bytes.Buffer
	attrs.Write([]byte{byte(bgp.OptionalNonTransitive), byte(attribute.CodeMPReachNLRI), byte(mpValue.Len())})
	attrs.Write(mpValue.Bytes())

	var body bytes.Buffer
	body.Write([]byte{0, 0}) // withdrawn-routes length = 0
	body.Write([]byte{byte(attrs.Len() >> 8), byte(attrs.Len())})
	body.Write(attrs.Bytes())

	u, diags, err := DecodeUpdate(body.Bytes(), DecodeContext{})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(diags) == 0 {
		t.Fatalf("expected at least one diagnostic")
	}
	if len(u.Announced) != 0 || len(u.Withdrawn) != 1 {
		t.Fatalf("expected the ipv6-unicast NLRI to survive as a withdrawal, got announced=%d withdrawn=%d", len(u.Announced), len(u.Withdrawn))
	}
}
