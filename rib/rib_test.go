package rib

import (
	"net/netip"
	"testing"

	"github.com/Exa-Networks/exabgp-sub008/attribute"
	"github.com/Exa-Networks/exabgp-sub008/bgp"
	"github.com/Exa-Networks/exabgp-sub008/message"
	"github.com/Exa-Networks/exabgp-sub008/nlri"
)

func change(prefix string, attrs []attribute.Attribute) Change {
	return Change{
		NLRI:       nlri.Entry{NLRI: nlri.NewPrefix(bgp.FamilyIPv4Unicast, netip.MustParsePrefix(prefix))},
		Attributes: attrs,
	}
}

func sampleAttrs(localPref uint32) []attribute.Attribute {
	return []attribute.Attribute{
		attribute.NewOrigin(attribute.OriginIGP),
		attribute.NewNextHop(netip.MustParseAddr("192.0.2.1")),
		attribute.NewLocalPref(localPref),
	}
}

func TestQueueAnnounceThenAnnounceIsIdempotent(t *testing.T) {
	r := New(0, true, nil)
	c := change("198.51.100.0/24", sampleAttrs(100))
	r.QueueAnnounce(c)
	r.QueueAnnounce(c)
	if len(r.announce) != 1 {
		t.Fatalf("got %d fingerprint buckets, want 1", len(r.announce))
	}
	updates := r.Drain()
	if len(updates) != 1 || len(updates[0].Announced) != 1 {
		t.Fatalf("got %+v", updates)
	}
}

func TestQueueAnnounceThenWithdrawLeavesOnlyWithdraw(t *testing.T) {
	r := New(0, true, nil)
	c := change("198.51.100.0/24", sampleAttrs(100))
	r.QueueAnnounce(c)
	r.QueueWithdraw(c)
	if r.Pending(bgp.FamilyIPv4Unicast) != true {
		t.Fatalf("expected pending work")
	}
	for _, families := range r.announce {
		if byKey, ok := families[bgp.FamilyIPv4Unicast]; ok && len(byKey) > 0 {
			t.Fatalf("expected announce bucket to be empty after withdraw")
		}
	}
	updates := r.Drain()
	if len(updates) != 1 || len(updates[0].Withdrawn) != 1 || len(updates[0].Announced) != 0 {
		t.Fatalf("got %+v", updates)
	}
}

func TestDifferentAttributeSetsDoNotMerge(t *testing.T) {
	r := New(0, true, nil)
	r.QueueAnnounce(change("198.51.100.0/24", sampleAttrs(100)))
	r.QueueAnnounce(change("198.51.101.0/24", sampleAttrs(200)))
	updates := r.Drain()
	if len(updates) != 2 {
		t.Fatalf("got %d updates, want 2 (distinct attribute fingerprints)", len(updates))
	}
}

func TestSameAttributeSetMergesIntoOneUpdate(t *testing.T) {
	r := New(0, true, nil)
	r.QueueAnnounce(change("198.51.100.0/24", sampleAttrs(100)))
	r.QueueAnnounce(change("198.51.101.0/24", sampleAttrs(100)))
	updates := r.Drain()
	if len(updates) != 1 {
		t.Fatalf("got %d updates, want 1 (shared attribute fingerprint)", len(updates))
	}
	if len(updates[0].Announced) != 2 {
		t.Fatalf("got %d NLRIs in the merged update, want 2", len(updates[0].Announced))
	}
}

func TestGroupUpdatesOffPacksOneNLRIPerUpdate(t *testing.T) {
	r := New(0, false, nil)
	r.QueueAnnounce(change("198.51.100.0/24", sampleAttrs(100)))
	r.QueueAnnounce(change("198.51.101.0/24", sampleAttrs(100)))
	updates := r.Drain()
	if len(updates) != 2 {
		t.Fatalf("got %d updates, want 2 with group-updates off", len(updates))
	}
}

func TestDrainEmptiesBothMaps(t *testing.T) {
	r := New(0, true, nil)
	r.QueueAnnounce(change("198.51.100.0/24", sampleAttrs(100)))
	r.QueueWithdraw(change("198.51.200.0/24", sampleAttrs(100)))
	r.Drain()
	if r.Pending(bgp.FamilyIPv4Unicast) {
		t.Fatalf("expected both maps empty for the family after a full drain")
	}
}

func TestMarkEORIPv4IsZeroLengthUpdate(t *testing.T) {
	r := New(0, true, nil)
	u := r.MarkEOR(bgp.FamilyIPv4Unicast)
	if !u.IsEndOfRIB() {
		t.Fatalf("expected the IPv4 EOR sentinel to report IsEndOfRIB")
	}
}

func TestMarkEORNonIPv4CarriesEmptyMPUnreach(t *testing.T) {
	r := New(0, true, nil)
	u := r.MarkEOR(bgp.FamilyIPv6Unicast)
	if len(u.Attributes) != 1 {
		t.Fatalf("got %d attributes, want 1 (MP_UNREACH_NLRI)", len(u.Attributes))
	}
	mp, ok := u.Attributes[0].(*attribute.MPUnreachNLRI)
	if !ok {
		t.Fatalf("got %T, want *attribute.MPUnreachNLRI", u.Attributes[0])
	}
	if !mp.IsEndOfRIB() {
		t.Fatalf("expected empty NLRI section")
	}
}

func TestPackEntriesRespectsMaxMessageSize(t *testing.T) {
	r := New(60, true, nil) // small enough to force multiple UPDATEs for many /24s sharing one fingerprint
	base := netip.MustParsePrefix("203.0.113.0/24").Addr().As4()
	attrs := sampleAttrs(100)
	for i := 0; i < 40; i++ {
		addr := base
		addr[2] = byte(i)
		p := netip.PrefixFrom(netip.AddrFrom4(addr), 24)
		r.QueueAnnounce(Change{NLRI: nlri.Entry{NLRI: nlri.NewPrefix(bgp.FamilyIPv4Unicast, p)}, Attributes: attrs})
	}
	updates := r.Drain()
	if len(updates) < 2 {
		t.Fatalf("expected packing to split 40 prefixes across multiple small UPDATEs, got %d", len(updates))
	}
	for _, u := range updates {
		if wire := message.Encode(u); len(wire) > 60 {
			t.Fatalf("update wire length %d exceeds max_message_size 60", len(wire))
		}
	}
}

func TestSeedEORMarksFamilyPendingWithoutAnyQueuedChange(t *testing.T) {
	r := New(0, true, nil)
	if r.EORPending(bgp.FamilyIPv4Unicast) {
		t.Fatalf("expected no EOR pending before seeding")
	}
	r.SeedEOR([]bgp.Family{bgp.FamilyIPv4Unicast, bgp.FamilyIPv6Unicast})
	if !r.EORPending(bgp.FamilyIPv4Unicast) || !r.EORPending(bgp.FamilyIPv6Unicast) {
		t.Fatalf("expected both families to owe an EOR after seeding, even though nothing was ever queued")
	}
	r.MarkEOR(bgp.FamilyIPv4Unicast)
	if r.EORPending(bgp.FamilyIPv4Unicast) {
		t.Fatalf("expected MarkEOR to clear the pending flag")
	}
}

func TestSetMaxMessageSizeRaisesPackingBound(t *testing.T) {
	r := New(60, true, nil)
	r.SetMaxMessageSize(4096)
	base := netip.MustParsePrefix("203.0.113.0/24").Addr().As4()
	attrs := sampleAttrs(100)
	for i := 0; i < 40; i++ {
		addr := base
		addr[2] = byte(i)
		p := netip.PrefixFrom(netip.AddrFrom4(addr), 24)
		r.QueueAnnounce(Change{NLRI: nlri.Entry{NLRI: nlri.NewPrefix(bgp.FamilyIPv4Unicast, p)}, Attributes: attrs})
	}
	updates := r.Drain()
	if len(updates) != 1 {
		t.Fatalf("expected the raised bound to pack all 40 prefixes into one UPDATE, got %d", len(updates))
	}
}
