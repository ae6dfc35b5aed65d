// Package rib implements the per-peer outgoing RIB (adj-RIB-out, spec
// §3/§4.2): the two pending-change maps, the queue_announce/queue_withdraw
// operations, and the drain algorithm that packs pending changes into
// max_message_size-bounded UPDATE messages.
//
// Best-path selection, adj-RIB-in policy application, and long-term
// storage of received routes are out of scope (spec Non-goals); this
// package only ever holds routes this speaker has decided to advertise.
package rib

import (
	"bytes"
	"sort"

	"github.com/Exa-Networks/exabgp-sub008/attribute"
	"github.com/Exa-Networks/exabgp-sub008/bgp"
	"github.com/Exa-Networks/exabgp-sub008/nlri"
)

// Change pairs one NLRI with the path attributes a caller wants
// advertised for it (spec §3 "Change"). NextHop is the MP_REACH next
// hop for any family other than IPv4 unicast, where NEXT_HOP travels
// outside the ordinary attribute list; it is ignored for IPv4 unicast,
// whose next hop is carried as an ordinary NEXT_HOP attribute.
type Change struct {
	NLRI       nlri.Entry
	Attributes []attribute.Attribute
	NextHop    []byte
}

func (c Change) family() bgp.Family { return c.NLRI.NLRI.Family() }
func (c Change) key() string        { return c.NLRI.Key() }

// fingerprint returns a byte-exact, order-independent identifier for
// this change's attribute set (including the out-of-band next hop for
// non-IPv4 families): two changes with identical fingerprints share one
// UPDATE when drained (spec §4.2 "Attribute fingerprints with identical
// bytes MUST share one UPDATE").
func (c Change) fingerprint() string {
	sorted := append([]attribute.Attribute(nil), c.Attributes...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Code() < sorted[j].Code() })
	var buf bytes.Buffer
	for _, a := range sorted {
		buf.Write(a.Bytes())
	}
	buf.Write(c.NextHop)
	return buf.String()
}
