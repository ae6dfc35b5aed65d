package fsm

import (
	"time"

	"github.com/Exa-Networks/exabgp-sub008/bgp"
	"github.com/Exa-Networks/exabgp-sub008/counter"
	"github.com/Exa-Networks/exabgp-sub008/message"
	"github.com/Exa-Networks/exabgp-sub008/timer"
)

// Config carries the per-peer session attributes a Machine needs to
// initiate and negotiate a session (RFC 4271 §8 "optional session
// attributes"). It is set once, at peer creation, and read-only
// thereafter.
type Config struct {
	LocalASN     bgp.ASN
	LocalID      bgp.Identifier
	HoldTime     time.Duration // configured hold time offered in OPEN
	ConnectRetry time.Duration
	IdleHoldTime time.Duration // damping delay before leaving Idle again
	Passive      bool          // never dial, only accept
	Capabilities *bgp.Capabilities
}

// Stats mirrors the per-session counters surfaced by the API transport's
// `show neighbor` output and by the Prometheus metrics package.
type Stats struct {
	Sent             map[bgp.MessageType]*counter.Counter
	Received         map[bgp.MessageType]*counter.Counter
	Established      int
	LastError        *bgp.Notification
	EstablishedSince time.Time
}

func newStats() Stats {
	return Stats{
		Sent:     make(map[bgp.MessageType]*counter.Counter),
		Received: make(map[bgp.MessageType]*counter.Counter),
	}
}

func (s Stats) countSent(t bgp.MessageType) {
	if _, ok := s.Sent[t]; !ok {
		s.Sent[t] = counter.New()
	}
	s.Sent[t].Increment()
}

func (s Stats) countReceived(t bgp.MessageType) {
	if _, ok := s.Received[t]; !ok {
		s.Received[t] = counter.New()
	}
	s.Received[t].Increment()
}

// Machine is one peer's BGP finite state machine. It holds no file
// descriptor and performs no I/O; Step consumes an Event (and, for
// message-carrying events, the decoded Message) and returns the actions
// the reactor must carry out plus the new State.
type Machine struct {
	cfg Config

	State               State
	ConnectRetryCounter int

	ConnectRetryTimer *timer.Timer
	HoldTimer         *timer.Timer
	KeepaliveTimer    *timer.Timer
	IdleHoldTimer     *timer.Timer

	negotiatedHoldTime time.Duration
	localOpenSent      bool

	RemoteASN    bgp.ASN
	RemoteID     bgp.Identifier
	Capabilities *bgp.Capabilities // negotiated, valid once Established

	Stats Stats
}

// New creates a Machine in the Idle state. Timers are created stopped;
// they are armed by Step in response to ManualStart/AutomaticStart.
func New(cfg Config) *Machine {
	holdTime := cfg.HoldTime
	if holdTime <= 0 {
		holdTime = 180 * time.Second
	}
	connectRetry := cfg.ConnectRetry
	if connectRetry <= 0 {
		connectRetry = 120 * time.Second
	}
	return &Machine{
		cfg:               cfg,
		State:             Idle,
		ConnectRetryTimer: timer.New(connectRetry),
		HoldTimer:         timer.New(holdTime),
		KeepaliveTimer:    timer.New(holdTime / 3),
		IdleHoldTimer:     timer.New(cfg.IdleHoldTime),
		Stats:             newStats(),
	}
}

func notifyAction(code bgp.NotifyCode, subcode uint8) Action {
	n := bgp.NewNotification(code, subcode)
	return Action{Kind: ActionCloseConnection, Message: message.Notification{Notification: n}, Notification: n.Error()}
}

func sendAction(m message.Message) Action {
	return Action{Kind: ActionSend, Message: m}
}

// openMessage builds this side's OPEN, using the configured capabilities
// and legacy-16-bit ASN fallback (RFC 6793) for peers that never
// negotiate FourOctetASN.
func (m *Machine) openMessage() message.Open {
	return message.Open{
		Version:      bgp.CurrentVersion,
		ASN:          m.cfg.LocalASN,
		HoldTime:     uint16(m.cfg.HoldTime / time.Second),
		Identifier:   m.cfg.LocalID,
		Capabilities: m.cfg.Capabilities,
	}
}

// Step advances the Machine by one event and returns the actions the
// reactor must perform. msg is non-nil only for the message-carrying
// events (BGPOpenReceived, NotificationReceived, KeepAliveReceived,
// UpdateReceived).
func (m *Machine) Step(event Event, msg message.Message) []Action {
	switch m.State {
	case Idle:
		return m.stepIdle(event)
	case Connect:
		return m.stepConnect(event, msg)
	case Active:
		return m.stepActive(event, msg)
	case OpenSent:
		return m.stepOpenSent(event, msg)
	case OpenConfirm:
		return m.stepOpenConfirm(event, msg)
	case Established:
		return m.stepEstablished(event, msg)
	default:
		return nil
	}
}

func (m *Machine) toIdle(reason string) []Action {
	m.State = Idle
	m.ConnectRetryTimer.Stop()
	m.HoldTimer.Stop()
	m.KeepaliveTimer.Stop()
	m.negotiatedHoldTime = 0
	m.Capabilities = nil
	action := Action{Kind: ActionMarkDown, Notification: reason}
	if m.cfg.IdleHoldTime > 0 {
		m.IdleHoldTimer.Reset()
	}
	return []Action{action}
}

func (m *Machine) stepIdle(event Event) []Action {
	switch event {
	case ManualStart, AutomaticStart:
		m.ConnectRetryCounter = 0
		m.ConnectRetryTimer.Reset()
		if m.cfg.Passive {
			m.State = Active
			return []Action{{Kind: ActionListenPassive}}
		}
		m.State = Connect
		return []Action{{Kind: ActionDial}}
	default:
		return nil
	}
}

func (m *Machine) stepConnect(event Event, msg message.Message) []Action {
	switch event {
	case TCPConnectionConfirmed:
		m.ConnectRetryTimer.Stop()
		m.State = OpenSent
		m.HoldTimer.ResetTo(4 * time.Minute) // large initial hold time until negotiated
		m.HoldTimer.Reset()
		open := m.openMessage()
		m.Stats.countSent(bgp.MsgOpen)
		return []Action{sendAction(open)}
	case ConnectRetryTimerExpires:
		m.ConnectRetryTimer.Reset()
		return []Action{{Kind: ActionDial}}
	case TCPConnectionFails:
		m.ConnectRetryTimer.Reset()
		m.ConnectRetryCounter++
		return nil
	case ManualStop:
		return m.toIdle("manual stop")
	default:
		return m.toIdle("unexpected event in Connect")
	}
}

func (m *Machine) stepActive(event Event, msg message.Message) []Action {
	switch event {
	case TCPConnectionConfirmed:
		m.ConnectRetryTimer.Stop()
		m.State = OpenSent
		m.HoldTimer.ResetTo(4 * time.Minute)
		m.HoldTimer.Reset()
		open := m.openMessage()
		m.Stats.countSent(bgp.MsgOpen)
		return []Action{sendAction(open)}
	case ConnectRetryTimerExpires:
		m.ConnectRetryTimer.Reset()
		if m.cfg.Passive {
			return []Action{{Kind: ActionListenPassive}}
		}
		m.State = Connect
		return []Action{{Kind: ActionDial}}
	case ManualStop:
		return m.toIdle("manual stop")
	default:
		return m.toIdle("unexpected event in Active")
	}
}

func (m *Machine) stepOpenSent(event Event, msg message.Message) []Action {
	switch event {
	case BGPOpenReceived:
		open, ok := msg.(message.Open)
		if !ok {
			return m.toIdle("BGPOpen event without an Open message")
		}
		m.Stats.countReceived(bgp.MsgOpen)
		m.RemoteASN = open.ASN
		m.RemoteID = open.Identifier
		m.Capabilities = bgp.Negotiate(m.cfg.Capabilities, open.Capabilities)

		hold := time.Duration(open.HoldTime) * time.Second
		if m.cfg.HoldTime < hold {
			hold = m.cfg.HoldTime
		}
		m.negotiatedHoldTime = hold
		if hold > 0 {
			m.HoldTimer.ResetTo(hold)
			m.KeepaliveTimer.ResetTo(hold / 3)
			m.KeepaliveTimer.Reset()
		} else {
			m.HoldTimer.Stop()
			m.KeepaliveTimer.Stop()
		}

		m.State = OpenConfirm
		m.Stats.countSent(bgp.MsgKeepalive)
		return []Action{sendAction(message.Keepalive{})}
	case BGPOpenMsgErr:
		return append(m.toIdle("malformed OPEN"), notifyAction(bgp.NotifyOpenMessageError, bgp.SubcodeUnspecific))
	case NotifMsgVerErr:
		return append(m.toIdle("unsupported version"), notifyAction(bgp.NotifyOpenMessageError, bgp.SubcodeUnsupportedVersionNumber))
	case HoldTimerExpires:
		return append(m.toIdle("hold timer expired"), notifyAction(bgp.NotifyHoldTimerExpired, bgp.SubcodeUnspecific))
	case NotificationReceived:
		return m.toIdle("peer sent NOTIFICATION")
	case TCPConnectionFails:
		return m.toIdle("connection failed")
	case ManualStop:
		return append(m.toIdle("manual stop"), notifyAction(bgp.NotifyCease, bgp.SubcodeAdministrativeShutdown))
	default:
		return m.toIdle("unexpected event in OpenSent")
	}
}

func (m *Machine) stepOpenConfirm(event Event, msg message.Message) []Action {
	switch event {
	case KeepAliveReceived:
		m.Stats.countReceived(bgp.MsgKeepalive)
		m.HoldTimer.Reset()
		m.State = Established
		m.Stats.Established++
		m.Stats.EstablishedSince = time.Now()
		return []Action{{Kind: ActionMarkEstablished}}
	case KeepaliveTimerExpires:
		m.KeepaliveTimer.Reset()
		m.Stats.countSent(bgp.MsgKeepalive)
		return []Action{sendAction(message.Keepalive{})}
	case HoldTimerExpires:
		return append(m.toIdle("hold timer expired"), notifyAction(bgp.NotifyHoldTimerExpired, bgp.SubcodeUnspecific))
	case NotificationReceived:
		return m.toIdle("peer sent NOTIFICATION")
	case TCPConnectionFails:
		return m.toIdle("connection failed")
	case ManualStop:
		return append(m.toIdle("manual stop"), notifyAction(bgp.NotifyCease, bgp.SubcodeAdministrativeShutdown))
	default:
		return m.toIdle("unexpected event in OpenConfirm")
	}
}

func (m *Machine) stepEstablished(event Event, msg message.Message) []Action {
	switch event {
	case KeepAliveReceived:
		m.Stats.countReceived(bgp.MsgKeepalive)
		m.HoldTimer.Reset()
		return nil
	case UpdateReceived:
		m.Stats.countReceived(bgp.MsgUpdate)
		m.HoldTimer.Reset()
		return nil
	case KeepaliveTimerExpires:
		m.KeepaliveTimer.Reset()
		m.Stats.countSent(bgp.MsgKeepalive)
		return []Action{sendAction(message.Keepalive{})}
	case HoldTimerExpires:
		return append(m.toIdle("hold timer expired"), notifyAction(bgp.NotifyHoldTimerExpired, bgp.SubcodeUnspecific))
	case UpdateMsgErr:
		return append(m.toIdle("malformed UPDATE"), notifyAction(bgp.NotifyUpdateMessageError, bgp.SubcodeMalformedAttributeList))
	case NotificationReceived:
		return m.toIdle("peer sent NOTIFICATION")
	case TCPConnectionFails:
		return m.toIdle("connection failed")
	case ManualStop:
		return append(m.toIdle("manual stop"), notifyAction(bgp.NotifyCease, bgp.SubcodeAdministrativeShutdown))
	default:
		return nil
	}
}

// LocalASN returns the configured local ASN this Machine negotiates
// with, for API/metrics surfaces that need it without exposing the
// whole (otherwise read-only) Config.
func (m *Machine) LocalASN() bgp.ASN {
	return m.cfg.LocalASN
}

// ResolveCollision decides which of two connections to the same peer
// survives a collision (RFC 4271 §6.8): the speaker with the higher
// BGP Identifier keeps the connection it initiated (outgoing); the
// other side closes its outgoing connection and keeps the incoming one.
// It returns true if the local speaker should keep its own outgoing
// connection.
func ResolveCollision(localID, remoteID bgp.Identifier) bool {
	return localID > remoteID
}
