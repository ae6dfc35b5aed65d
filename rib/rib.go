package rib

import (
	"github.com/Exa-Networks/exabgp-sub008/attribute"
	"github.com/Exa-Networks/exabgp-sub008/bgp"
	"github.com/Exa-Networks/exabgp-sub008/message"
	"github.com/Exa-Networks/exabgp-sub008/nlri"
)

// DefaultMaxMessageSize is used when the negotiated context did not
// raise it via the Extended Message capability.
const DefaultMaxMessageSize = bgp.MaxMessageLength

// PeerRIB is one peer's outgoing RIB: the two pending-change maps from
// spec §3, plus the per-family End-of-RIB flags that the reactor reads
// with EORPending and clears with MarkEOR once a family is drained.
type PeerRIB struct {
	maxMessageSize int
	groupUpdates   bool
	addPath        map[bgp.Family]bool

	// announce: fingerprint -> family -> nlri key -> Change.
	announce map[string]map[bgp.Family]map[string]Change
	// withdraw: family -> nlri key -> Change.
	withdraw map[bgp.Family]map[string]Change

	eorPending map[bgp.Family]bool
}

// New creates an empty PeerRIB. maxMessageSize bounds every UPDATE Drain
// produces (spec §4.1 Framing, raised to the extended 65535 limit when
// the session negotiated Extended Message). groupUpdates toggles the
// attribute-grouping behavior of Drain (spec §4.2 "Grouping switch");
// when false, Drain packs exactly one NLRI per UPDATE.
func New(maxMessageSize int, groupUpdates bool, addPath map[bgp.Family]bool) *PeerRIB {
	if maxMessageSize <= 0 {
		maxMessageSize = DefaultMaxMessageSize
	}
	return &PeerRIB{
		maxMessageSize: maxMessageSize,
		groupUpdates:   groupUpdates,
		addPath:        addPath,
		announce:       make(map[string]map[bgp.Family]map[string]Change),
		withdraw:       make(map[bgp.Family]map[string]Change),
		eorPending:     make(map[bgp.Family]bool),
	}
}

// QueueAnnounce inserts or replaces c under (fingerprint, family, key),
// removing any matching key from the withdraw map (spec §4.2
// queue_announce). Queuing a change marks its family as owing an EOR;
// SeedEOR marks a family without one.
func (r *PeerRIB) QueueAnnounce(c Change) {
	family := c.family()
	key := c.key()
	fp := c.fingerprint()

	if byKey, ok := r.withdraw[family]; ok {
		delete(byKey, key)
		if len(byKey) == 0 {
			delete(r.withdraw, family)
		}
	}
	r.removeFromAnnounce(family, key, fp)

	if r.announce[fp] == nil {
		r.announce[fp] = make(map[bgp.Family]map[string]Change)
	}
	if r.announce[fp][family] == nil {
		r.announce[fp][family] = make(map[string]Change)
	}
	r.announce[fp][family][key] = c
	r.eorPending[family] = true
}

// QueueWithdraw inserts c under (family, key), removing any matching key
// from every announce bucket (spec §4.2 queue_withdraw). The atomic
// remove-then-insert keeps the invariant that a key appears in at most
// one of the two maps.
func (r *PeerRIB) QueueWithdraw(c Change) {
	family := c.family()
	key := c.key()

	for fp, families := range r.announce {
		if byKey, ok := families[family]; ok {
			if _, exists := byKey[key]; exists {
				delete(byKey, key)
				if len(byKey) == 0 {
					delete(families, family)
				}
			}
		}
		if len(families) == 0 {
			delete(r.announce, fp)
		}
	}

	if r.withdraw[family] == nil {
		r.withdraw[family] = make(map[string]Change)
	}
	r.withdraw[family][key] = c
	r.eorPending[family] = true
}

func (r *PeerRIB) removeFromAnnounce(family bgp.Family, key, keepFingerprint string) {
	for fp, families := range r.announce {
		if fp == keepFingerprint {
			continue
		}
		byKey, ok := families[family]
		if !ok {
			continue
		}
		if _, exists := byKey[key]; exists {
			delete(byKey, key)
			if len(byKey) == 0 {
				delete(families, family)
			}
		}
		if len(families) == 0 {
			delete(r.announce, fp)
		}
	}
}

// Pending reports whether family has any queued withdrawal or
// announcement.
func (r *PeerRIB) Pending(family bgp.Family) bool {
	if byKey, ok := r.withdraw[family]; ok && len(byKey) > 0 {
		return true
	}
	for _, families := range r.announce {
		if byKey, ok := families[family]; ok && len(byKey) > 0 {
			return true
		}
	}
	return false
}

// Families returns every family with pending work, in no particular
// order.
func (r *PeerRIB) Families() []bgp.Family {
	seen := make(map[bgp.Family]bool)
	for family := range r.withdraw {
		seen[family] = true
	}
	for _, families := range r.announce {
		for family := range families {
			seen[family] = true
		}
	}
	out := make([]bgp.Family, 0, len(seen))
	for family := range seen {
		out = append(out, family)
	}
	return out
}

// Drain produces the UPDATE messages needed to advertise every pending
// change across every family with pending work, clearing them from the
// RIB as it goes (spec §4.2 "Drain algorithm"): withdrawals first,
// grouped into max_message_size-bounded UPDATEs, then one UPDATE batch
// per attribute bucket for announcements.
func (r *PeerRIB) Drain() []message.Update {
	var out []message.Update
	for _, family := range r.Families() {
		out = append(out, r.drainFamily(family)...)
	}
	return out
}

func (r *PeerRIB) drainFamily(family bgp.Family) []message.Update {
	var out []message.Update

	if byKey, ok := r.withdraw[family]; ok && len(byKey) > 0 {
		entries := make([]nlri.Entry, 0, len(byKey))
		for _, c := range byKey {
			entries = append(entries, c.NLRI)
		}
		out = append(out, r.packEntries(family, nil, nil, entries, false)...)
		delete(r.withdraw, family)
	}

	for fp, families := range r.announce {
		byKey, ok := families[family]
		if !ok || len(byKey) == 0 {
			continue
		}
		var attrs []attribute.Attribute
		var nextHop []byte
		entries := make([]nlri.Entry, 0, len(byKey))
		for _, c := range byKey {
			attrs = c.Attributes
			nextHop = c.NextHop
			entries = append(entries, c.NLRI)
		}
		out = append(out, r.packEntries(family, attrs, nextHop, entries, true)...)
		delete(families, family)
		if len(families) == 0 {
			delete(r.announce, fp)
		}
	}

	return out
}

// packEntries groups entries into one or more UPDATEs no larger than
// maxMessageSize. When groupUpdates is false, every UPDATE carries
// exactly one NLRI, for announcements and withdrawals alike.
func (r *PeerRIB) packEntries(family bgp.Family, attrs []attribute.Attribute, nextHop []byte, entries []nlri.Entry, announce bool) []message.Update {
	if !r.groupUpdates {
		var out []message.Update
		for _, e := range entries {
			out = append(out, r.buildUpdate(family, attrs, nextHop, []nlri.Entry{e}, announce))
		}
		return out
	}

	var out []message.Update
	var batch []nlri.Entry
	for _, e := range entries {
		candidate := append(append([]nlri.Entry(nil), batch...), e)
		u := r.buildUpdate(family, attrs, nextHop, candidate, announce)
		if len(batch) > 0 && len(message.Encode(u)) > r.maxMessageSize {
			out = append(out, r.buildUpdate(family, attrs, nextHop, batch, announce))
			batch = []nlri.Entry{e}
			continue
		}
		batch = candidate
	}
	if len(batch) > 0 {
		out = append(out, r.buildUpdate(family, attrs, nextHop, batch, announce))
	}
	return out
}

func (r *PeerRIB) buildUpdate(family bgp.Family, attrs []attribute.Attribute, nextHop []byte, entries []nlri.Entry, announce bool) message.Update {
	u := message.Update{AddPath: r.addPath}
	if announce {
		u.Announced = entries
		u.Attributes = attrs
		if family != bgp.FamilyIPv4Unicast {
			u.NextHops = map[bgp.Family][]byte{family: nextHop}
		}
	} else {
		u.Withdrawn = entries
	}
	return u
}

// MarkEOR returns the End-of-RIB sentinel UPDATE for family (spec §4.2
// EOR) and clears its pending flag. Callers must only call this after a
// Drain leaves the family empty; calling it while work remains for the
// family violates the "both maps empty on EOR" invariant.
func (r *PeerRIB) MarkEOR(family bgp.Family) message.Update {
	delete(r.eorPending, family)
	if family == bgp.FamilyIPv4Unicast {
		return message.Update{AddPath: r.addPath}
	}
	return message.Update{
		Attributes: []attribute.Attribute{attribute.NewMPUnreachNLRI(family.AFI, family.SAFI, nil)},
		AddPath:    r.addPath,
	}
}

// EORPending reports whether family has been queued into this RIB at
// least once and has not yet had its EOR emitted.
func (r *PeerRIB) EORPending(family bgp.Family) bool {
	return r.eorPending[family]
}

// SetMaxMessageSize raises (or lowers) the per-UPDATE size bound Drain
// packs to, reflecting a session's negotiated Extended Message capacity
// (spec §4.1 "this becomes a per-session max_message_size in the
// negotiated context"). size <= 0 is ignored.
func (r *PeerRIB) SetMaxMessageSize(size int) {
	if size > 0 {
		r.maxMessageSize = size
	}
}

// MaxMessageSize returns the bound Drain currently packs UPDATEs to.
func (r *PeerRIB) MaxMessageSize() int {
	return r.maxMessageSize
}

// SeedEOR marks every family in families as owing an EOR, independent of
// whether anything has been queued for it. Established (spec §8 Scenario
// A) must emit EOR for every negotiated family on initial convergence
// even when the peer is receive-only and nothing is ever announced to
// it (RFC 4724's initial-convergence signal); without this, a family
// that QueueAnnounce/QueueWithdraw never touches would never reach
// eorPending and MarkEOR would never fire for it.
func (r *PeerRIB) SeedEOR(families []bgp.Family) {
	for _, family := range families {
		r.eorPending[family] = true
	}
}
