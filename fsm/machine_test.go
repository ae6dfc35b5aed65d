package fsm

import (
	"testing"
	"time"

	"github.com/Exa-Networks/exabgp-sub008/bgp"
	"github.com/Exa-Networks/exabgp-sub008/message"
)

func testConfig() Config {
	caps := bgp.NewCapabilities()
	caps.Families[bgp.FamilyIPv4Unicast] = true
	return Config{
		LocalASN:     65001,
		LocalID:      1,
		HoldTime:     90 * time.Second,
		ConnectRetry: 10 * time.Second,
		Capabilities: caps,
	}
}

func findAction(actions []Action, kind ActionKind) (Action, bool) {
	for _, a := range actions {
		if a.Kind == kind {
			return a, true
		}
	}
	return Action{}, false
}

func TestIdleToConnectOnManualStart(t *testing.T) {
	m := New(testConfig())
	actions := m.Step(ManualStart, nil)
	if m.State != Connect {
		t.Fatalf("got state %v, want Connect", m.State)
	}
	if _, ok := findAction(actions, ActionDial); !ok {
		t.Fatalf("expected a Dial action, got %+v", actions)
	}
}

func TestPassiveIdleGoesActive(t *testing.T) {
	cfg := testConfig()
	cfg.Passive = true
	m := New(cfg)
	m.Step(ManualStart, nil)
	if m.State != Active {
		t.Fatalf("got state %v, want Active", m.State)
	}
}

func TestFullHandshakeToEstablished(t *testing.T) {
	m := New(testConfig())
	m.Step(ManualStart, nil)

	actions := m.Step(TCPConnectionConfirmed, nil)
	if m.State != OpenSent {
		t.Fatalf("got state %v, want OpenSent", m.State)
	}
	if _, ok := findAction(actions, ActionSend); !ok {
		t.Fatalf("expected OPEN to be sent, got %+v", actions)
	}

	peerCaps := bgp.NewCapabilities()
	peerCaps.Families[bgp.FamilyIPv4Unicast] = true
	peerOpen := message.Open{
		Version:      bgp.CurrentVersion,
		ASN:          65002,
		HoldTime:     90,
		Identifier:   2,
		Capabilities: peerCaps,
	}
	actions = m.Step(BGPOpenReceived, peerOpen)
	if m.State != OpenConfirm {
		t.Fatalf("got state %v, want OpenConfirm", m.State)
	}
	if m.RemoteASN != 65002 {
		t.Fatalf("got remote ASN %v, want 65002", m.RemoteASN)
	}
	if !m.Capabilities.Families[bgp.FamilyIPv4Unicast] {
		t.Fatalf("expected negotiated IPv4 unicast family")
	}
	if _, ok := findAction(actions, ActionSend); !ok {
		t.Fatalf("expected KEEPALIVE to be sent, got %+v", actions)
	}

	actions = m.Step(KeepAliveReceived, message.Keepalive{})
	if m.State != Established {
		t.Fatalf("got state %v, want Established", m.State)
	}
	if _, ok := findAction(actions, ActionMarkEstablished); !ok {
		t.Fatalf("expected ActionMarkEstablished, got %+v", actions)
	}
	if m.Stats.Established != 1 {
		t.Fatalf("got established count %d, want 1", m.Stats.Established)
	}
}

func TestHoldTimerExpiresSendsNotificationAndResetsToIdle(t *testing.T) {
	m := New(testConfig())
	m.Step(ManualStart, nil)
	m.Step(TCPConnectionConfirmed, nil)

	actions := m.Step(HoldTimerExpires, nil)
	if m.State != Idle {
		t.Fatalf("got state %v, want Idle", m.State)
	}
	closeAction, ok := findAction(actions, ActionCloseConnection)
	if !ok {
		t.Fatalf("expected ActionCloseConnection, got %+v", actions)
	}
	n, ok := closeAction.Message.(message.Notification)
	if !ok {
		t.Fatalf("got message %T, want Notification", closeAction.Message)
	}
	if n.Code != bgp.NotifyHoldTimerExpired {
		t.Fatalf("got notify code %v, want HoldTimerExpired", n.Code)
	}
}

func TestEstablishedKeepaliveResetsHoldTimer(t *testing.T) {
	m := New(testConfig())
	m.State = Established
	m.HoldTimer.ResetTo(90 * time.Second)
	actions := m.Step(KeepAliveReceived, message.Keepalive{})
	if actions != nil {
		t.Fatalf("expected no actions for a steady-state keepalive, got %+v", actions)
	}
	if !m.HoldTimer.Running() {
		t.Fatalf("expected hold timer to remain armed")
	}
}

func TestEstablishedNotificationDrops(t *testing.T) {
	m := New(testConfig())
	m.State = Established
	m.Capabilities = bgp.NewCapabilities()
	n := message.Notification{Notification: bgp.NewNotification(bgp.NotifyCease, bgp.SubcodePeerDeconfigured)}
	m.Step(NotificationReceived, n)
	if m.State != Idle {
		t.Fatalf("got state %v, want Idle", m.State)
	}
	if m.Capabilities != nil {
		t.Fatalf("expected capabilities to be cleared on session reset")
	}
}

func TestResolveCollisionHigherIDWins(t *testing.T) {
	if !ResolveCollision(10, 5) {
		t.Fatalf("expected higher local identifier to win collision")
	}
	if ResolveCollision(5, 10) {
		t.Fatalf("expected lower local identifier to lose collision")
	}
}
