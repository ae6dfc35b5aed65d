package reactor

import (
	"fmt"

	"github.com/Exa-Networks/exabgp-sub008/bgp"
	"github.com/Exa-Networks/exabgp-sub008/fsm"
	"github.com/Exa-Networks/exabgp-sub008/rib"
)

// Control is the surface the API transport drives (spec §4.6): every
// command verb resolves to one of these calls, scheduled for the
// named peer(s) and applied on the reactor's own goroutine the next
// time Tick runs the API hook — commands never touch peer state from
// the API session's own goroutine.
type Control interface {
	Names() []string
	Announce(peer string, c rib.Change) error
	Withdraw(peer string, c rib.Change) error
	FlushAdjRIBOut(peer string) error
	Teardown(peer string) error
	ASNs(peer string) (local, remote bgp.ASN, ok bool)
	ShowNeighbor(peer string) (string, error)
}

// Names returns every configured peer's name, in registration order.
func (r *Reactor) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Announce queues c for announcement on peer's outgoing RIB. The
// UPDATE is emitted on a later Turn, not synchronously (spec §4.6
// "asynchronous side-effects... happen in subsequent reactor turns").
func (r *Reactor) Announce(peer string, c rib.Change) error {
	p, ok := r.peers[peer]
	if !ok {
		return fmt.Errorf("no such neighbor %q", peer)
	}
	p.RIB.QueueAnnounce(c)
	return nil
}

// Withdraw queues c for withdrawal on peer's outgoing RIB.
func (r *Reactor) Withdraw(peer string, c rib.Change) error {
	p, ok := r.peers[peer]
	if !ok {
		return fmt.Errorf("no such neighbor %q", peer)
	}
	p.RIB.QueueWithdraw(c)
	return nil
}

// FlushAdjRIBOut forces an immediate Drain/Enqueue/Flush cycle for
// peer, ahead of its next scheduled Turn.
func (r *Reactor) FlushAdjRIBOut(peer string) error {
	p, ok := r.peers[peer]
	if !ok {
		return fmt.Errorf("no such neighbor %q", peer)
	}
	if p.handler != nil && p.Machine.State == fsm.Established {
		p.drainRIB()
		p.handler.Flush()
	}
	return nil
}

// Teardown issues ManualStop to peer, tearing its session down with a
// Cease/AdministrativeShutdown NOTIFICATION if established.
func (r *Reactor) Teardown(peer string) error {
	p, ok := r.peers[peer]
	if !ok {
		return fmt.Errorf("no such neighbor %q", peer)
	}
	p.Stop()
	return nil
}

// ASNs reports peer's configured local ASN and its negotiated remote
// ASN (zero if never established); ok is false only for an unknown peer.
func (r *Reactor) ASNs(peer string) (local, remote bgp.ASN, ok bool) {
	p, found := r.peers[peer]
	if !found {
		return 0, 0, false
	}
	return p.Machine.LocalASN(), p.Machine.RemoteASN, true
}

// ShowNeighbor renders the one-line summary the `show neighbor`
// command's response Lines carry: state, remote ASN, and message
// counters (spec §3 "Session statistics").
func (r *Reactor) ShowNeighbor(peer string) (string, error) {
	p, ok := r.peers[peer]
	if !ok {
		return "", fmt.Errorf("no such neighbor %q", peer)
	}
	var sent, received uint64
	for _, c := range p.Machine.Stats.Sent {
		sent += c.Value()
	}
	for _, c := range p.Machine.Stats.Received {
		received += c.Value()
	}
	return fmt.Sprintf("%s state=%s remote-asn=%d sent=%d received=%d",
		peer, p.Machine.State, p.Machine.RemoteASN, sent, received), nil
}
