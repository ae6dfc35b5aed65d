package reactor

import (
	"context"
	"net"
	"net/netip"
	"testing"
	"time"

	"github.com/Exa-Networks/exabgp-sub008/bgp"
	"github.com/Exa-Networks/exabgp-sub008/fsm"
	"github.com/Exa-Networks/exabgp-sub008/message"
	"github.com/Exa-Networks/exabgp-sub008/nlri"
	"github.com/Exa-Networks/exabgp-sub008/rib"
)

func testMachineConfig() fsm.Config {
	caps := bgp.NewCapabilities()
	caps.Families[bgp.FamilyIPv4Unicast] = true
	return fsm.Config{
		LocalASN:     65001,
		LocalID:      1,
		HoldTime:     90 * time.Second,
		ConnectRetry: 10 * time.Second,
		Capabilities: caps,
	}
}

func pipeDial(server net.Conn) DialFunc {
	return func(ctx context.Context, addr string) (net.Conn, error) {
		return server, nil
	}
}

// waitFor polls until cond returns true or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition never became true")
}

func TestPeerDialsAndEstablishes(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	peerRIB := rib.New(rib.DefaultMaxMessageSize, false, nil)
	machine := fsm.New(testMachineConfig())
	p := NewPeer("test-peer", "192.0.2.1:179", machine, peerRIB, pipeDial(client), nil)

	p.Start(false)
	waitFor(t, func() bool { return p.handler != nil })

	// Drive the other end of the pipe like a real peer would: read our
	// OPEN, send one back, exchange KEEPALIVEs.
	go func() {
		ctx := message.DecodeContext{}
		msg, _, err := message.ReadMessage(server, ctx)
		if err != nil {
			return
		}
		if _, ok := msg.(message.Open); !ok {
			return
		}
		peerCaps := bgp.NewCapabilities()
		peerCaps.Families[bgp.FamilyIPv4Unicast] = true
		open := message.Open{
			Version:      bgp.CurrentVersion,
			ASN:          65002,
			HoldTime:     90,
			Identifier:   2,
			Capabilities: peerCaps,
		}
		server.Write(message.Encode(open))
		message.ReadMessage(server, ctx) // consume our KEEPALIVE
		server.Write(message.Encode(message.Keepalive{}))
	}()

	waitFor(t, func() bool {
		for i := 0; i < 20; i++ {
			p.Turn()
			if p.Machine.State == fsm.Established {
				return true
			}
			time.Sleep(5 * time.Millisecond)
		}
		return p.Machine.State == fsm.Established
	})

	if p.Machine.State != fsm.Established {
		t.Fatalf("got state %v, want Established", p.Machine.State)
	}
}

func TestTurnDrainsRIBOnceEstablished(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	peerRIB := rib.New(rib.DefaultMaxMessageSize, false, nil)
	machine := fsm.New(testMachineConfig())
	p := NewPeer("test-peer", "192.0.2.1:179", machine, peerRIB, pipeDial(client), nil)
	p.Start(false)
	go server.Read(make([]byte, 4096)) // consume the OPEN the attaching Turn flushes
	waitFor(t, func() bool { p.Turn(); return p.handler != nil })

	machine.State = fsm.Established
	peerRIB.QueueAnnounce(rib.Change{
		NLRI: nlri.Entry{NLRI: nlri.NewPrefix(bgp.FamilyIPv4Unicast, netip.MustParsePrefix("10.0.0.0/24"))},
	})

	done := make(chan struct{})
	go func() {
		buf := make([]byte, 4096)
		server.Read(buf)
		close(done)
	}()

	p.Turn()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("expected drained UPDATE to reach the pipe")
	}
}

// TestEstablishSeedsEORAndRaisesMaxMessageSize covers a receive-only peer
// (spec §8 Scenario A): nothing is ever queued for it, yet establishing
// the session must still schedule an EOR for every negotiated family,
// and negotiating Extended Message must raise the RIB's packing bound.
func TestEstablishSeedsEORAndRaisesMaxMessageSize(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	peerRIB := rib.New(rib.DefaultMaxMessageSize, false, nil)
	cfg := testMachineConfig()
	cfg.Capabilities.ExtendedMessage = true
	machine := fsm.New(cfg)
	p := NewPeer("test-peer", "192.0.2.1:179", machine, peerRIB, pipeDial(client), nil)

	p.Start(false)
	waitFor(t, func() bool { return p.handler != nil })

	go func() {
		ctx := message.DecodeContext{}
		msg, _, err := message.ReadMessage(server, ctx)
		if err != nil {
			return
		}
		if _, ok := msg.(message.Open); !ok {
			return
		}
		peerCaps := bgp.NewCapabilities()
		peerCaps.Families[bgp.FamilyIPv4Unicast] = true
		peerCaps.ExtendedMessage = true
		open := message.Open{
			Version:      bgp.CurrentVersion,
			ASN:          65002,
			HoldTime:     90,
			Identifier:   2,
			Capabilities: peerCaps,
		}
		server.Write(message.Encode(open))
		message.ReadMessage(server, ctx) // consume our KEEPALIVE
		server.Write(message.Encode(message.Keepalive{}))
	}()

	waitFor(t, func() bool {
		for i := 0; i < 20; i++ {
			p.Turn()
			if p.Machine.State == fsm.Established {
				return true
			}
			time.Sleep(5 * time.Millisecond)
		}
		return p.Machine.State == fsm.Established
	})

	if !peerRIB.EORPending(bgp.FamilyIPv4Unicast) {
		t.Fatalf("expected ipv4-unicast EOR to be seeded on establishment even though nothing was ever queued")
	}
	if got := peerRIB.MaxMessageSize(); got != bgp.MaxExtendedMessageLength {
		t.Fatalf("got max message size %d, want the negotiated extended bound %d", got, bgp.MaxExtendedMessageLength)
	}
}
