package api

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/Exa-Networks/exabgp-sub008/bgp"
	"github.com/Exa-Networks/exabgp-sub008/logging"
	"github.com/Exa-Networks/exabgp-sub008/rib"
)

// DefaultMaxSessions bounds concurrent API sessions (spec §5 "the
// reactor limits concurrent API sessions (default 32)").
const DefaultMaxSessions = 32

// EventCategory is one of the four subscriber event categories (spec
// §4.6 "Subscriber events"). Subscription is implicit: every attached
// session receives every category.
type EventCategory string

const (
	EventReceiveUpdate EventCategory = "receive-update"
	EventSendUpdate    EventCategory = "send-update"
	EventState         EventCategory = "state"
	EventNotification  EventCategory = "notification"
)

// Event is one subscriber notification, rendered as a pretty-printed
// JSON block between `{…}` sentinels on the wire (spec §4.6 "Framing").
type Event struct {
	Category EventCategory `json:"category"`
	Peer     string        `json:"peer"`
	Fields   map[string]any `json:"fields,omitempty"`
}

// Control is the subset of reactor.Reactor the API manager drives.
// Defined here, not in the reactor package, so api has no import-time
// dependency on reactor; reactor.Control (and *reactor.Reactor) satisfy
// it structurally since the method sets are identical.
type Control interface {
	Names() []string
	Announce(peer string, c rib.Change) error
	Withdraw(peer string, c rib.Change) error
	FlushAdjRIBOut(peer string) error
	Teardown(peer string) error
	ASNs(peer string) (local, remote bgp.ASN, ok bool)
	ShowNeighbor(peer string) (string, error)
}

// session pairs a Transport with the goroutine that blocks on its
// Read, so the reactor goroutine itself never blocks on API I/O.
type session struct {
	t    Transport
	in   chan Command
	done chan struct{}
}

func newSession(t Transport) *session {
	s := &session{t: t, in: make(chan Command, 8), done: make(chan struct{})}
	go s.readLoop()
	return s
}

func (s *session) readLoop() {
	defer close(s.in)
	for {
		cmd, err := s.t.Read()
		if err != nil {
			return
		}
		select {
		case s.in <- cmd:
		case <-s.done:
			return
		}
	}
}

// Manager owns every attached API session and dispatches parsed
// commands to Control, plus queued Events out to every session.
type Manager struct {
	control  Control
	sessions []*session
	events   chan Event
	maxOpen  int
	log      *zap.Logger
}

// NewManager creates a Manager bound to control. maxOpen<=0 uses
// DefaultMaxSessions.
func NewManager(control Control, maxOpen int, log *zap.Logger) *Manager {
	if maxOpen <= 0 {
		maxOpen = DefaultMaxSessions
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Manager{control: control, maxOpen: maxOpen, events: make(chan Event, 1024), log: log}
}

// Attach registers a freshly accepted Transport, rejecting it once
// maxOpen sessions are already open.
func (m *Manager) Attach(t Transport) error {
	if len(m.sessions) >= m.maxOpen {
		t.Close()
		return fmt.Errorf("api session limit reached")
	}
	m.sessions = append(m.sessions, newSession(t))
	return nil
}

// Publish enqueues an Event for delivery to every attached session on
// the next Poll. It never blocks; a full event queue drops the oldest
// pending event rather than stall the reactor goroutine.
func (m *Manager) Publish(ev Event) {
	select {
	case m.events <- ev:
	default:
		select {
		case <-m.events:
		default:
		}
		m.events <- ev
	}
}

// Poll is the Reactor API hook (reactor.Reactor.SetAPIHook): it drains
// every session's already-read commands and the pending event queue
// without ever blocking, so it is safe to call once per Tick.
func (m *Manager) Poll() {
	live := m.sessions[:0]
	for _, s := range m.sessions {
		closed := false
	drain:
		for {
			select {
			case cmd, ok := <-s.in:
				if !ok {
					closed = true
					break drain
				}
				resp := m.dispatch(cmd)
				if err := s.t.Write(resp); err != nil {
					m.log.Warn("failed to write API response", zap.Error(err))
				}
			default:
				break drain
			}
		}
		if closed {
			close(s.done)
			s.t.Close()
			continue
		}
		live = append(live, s)
	}
	m.sessions = live

	for {
		select {
		case ev := <-m.events:
			m.broadcast(ev)
		default:
			return
		}
	}
}

func (m *Manager) broadcast(ev Event) {
	for _, s := range m.sessions {
		if err := s.t.WriteEvent(ev); err != nil {
			m.log.Warn("failed to deliver API event", zap.Error(err))
		}
	}
}

func (m *Manager) dispatch(cmd Command) Response {
	names := Selectors(cmd.Selector, m.control.Names())
	if len(names) == 0 {
		return errorResponse("no matching neighbor for selector %q", cmd.Selector)
	}

	switch cmd.Verb {
	case VerbShow:
		var lines []string
		for _, name := range names {
			line, err := m.control.ShowNeighbor(name)
			if err != nil {
				return errorResponse("%v", err)
			}
			lines = append(lines, line)
		}
		return Response{OK: true, Lines: lines}

	case VerbAnnounce:
		for _, name := range names {
			local, peerASN, ok := m.control.ASNs(name)
			if !ok {
				return errorResponse("no such neighbor %q", name)
			}
			c, err := ParseAnnounce(cmd.Args, local, peerASN)
			if err != nil {
				return errorResponse("%v", err)
			}
			if err := m.control.Announce(name, c); err != nil {
				return errorResponse("%v", err)
			}
		}
		return Response{OK: true}

	case VerbWithdraw:
		for _, name := range names {
			c, err := ParseWithdraw(cmd.Args)
			if err != nil {
				return errorResponse("%v", err)
			}
			if err := m.control.Withdraw(name, c); err != nil {
				return errorResponse("%v", err)
			}
		}
		return Response{OK: true}

	case VerbFlush:
		for _, name := range names {
			if err := m.control.FlushAdjRIBOut(name); err != nil {
				return errorResponse("%v", err)
			}
		}
		return Response{OK: true}

	case VerbTeardown, VerbShutdown:
		for _, name := range names {
			if err := m.control.Teardown(name); err != nil {
				return errorResponse("%v", err)
			}
		}
		return Response{OK: true}

	case VerbVersion:
		return Response{OK: true, Lines: []string{"kbgpd"}}

	case VerbHelp:
		return Response{OK: true, Lines: []string{
			"show [selector]", "announce <selector> route <prefix> next-hop <addr> [community [...]]",
			"withdraw <selector> route <prefix>", "neighbor <selector> <verb> ...",
			"teardown [selector]", "shutdown", "reload", "restart", "flush adj-rib-out",
			"version", "help",
		}}

	case VerbReload, VerbRestart:
		// Configuration reload/restart is driven by main re-reading its
		// Neighbor inputs and re-calling reactor.AddPeer; the API layer
		// only acknowledges receipt here.
		return Response{OK: true}

	default:
		return errorResponse("unrecognized verb %q", cmd.Verb)
	}
}
