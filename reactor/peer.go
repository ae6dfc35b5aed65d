// Package reactor implements the single-threaded cooperative event loop
// (spec §4.5): one goroutine owns every peer's FSM, RIB, and protocol
// handler. Goroutines are used only for the two primitives Go's
// standard library makes unavoidably blocking — dialing out and
// accepting inbound connections — and they hand fully-formed results
// back to the reactor over channels rather than touching peer state
// directly (spec §5 "no shared mutable state across threads").
package reactor

import (
	"context"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/Exa-Networks/exabgp-sub008/attribute"
	"github.com/Exa-Networks/exabgp-sub008/bgp"
	"github.com/Exa-Networks/exabgp-sub008/fsm"
	"github.com/Exa-Networks/exabgp-sub008/logging"
	"github.com/Exa-Networks/exabgp-sub008/message"
	"github.com/Exa-Networks/exabgp-sub008/metrics"
	"github.com/Exa-Networks/exabgp-sub008/proto"
	"github.com/Exa-Networks/exabgp-sub008/rib"
)

// DialFunc abstracts net.DialTimeout so tests can substitute a fake
// dialer (e.g. the two ends of a net.Pipe).
type DialFunc func(ctx context.Context, addr string) (net.Conn, error)

// DefaultConnectTimeout bounds a single dial attempt (spec §5 "Connect
// attempts: bounded by a per-attempt timeout").
const DefaultConnectTimeout = 10 * time.Second

// MaxWriteBurst caps how many RIB-drained UPDATEs a single Turn enqueues
// for one peer, so one peer's convergence never starves the others
// (spec §4.5 "Long work is chunked").
const MaxWriteBurst = 64

type readResult struct {
	typ  bgp.MessageType
	body []byte
	err  error
}

type dialResult struct {
	conn net.Conn
	err  error
}

// EventSink receives the subscriber events spec §4.6 publishes over the
// API transport (receive-update, send-update, state, notification).
// Declared here, not in the api package, so reactor has no import-time
// dependency on api; cmd/kbgpd adapts api.Manager to it by wrapping
// Manager.Publish.
type EventSink interface {
	Publish(peer, category string, fields map[string]any)
}

// Peer is one configured neighbor's reactor-owned state: its FSM, its
// outgoing RIB, and (while connected) its protocol handler.
type Peer struct {
	Name string // identifies the neighbor, typically its address
	Addr string // host:port to dial when not Passive

	Machine *fsm.Machine
	RIB     *rib.PeerRIB

	handler    *proto.Handler
	readCh     chan readResult
	readerStop chan struct{}

	dialing  bool
	dialCh   chan dialResult
	awaiting bool // passive: waiting for an inbound connection to be handed to us

	eorSent   map[bgp.Family]bool
	prevState fsm.State

	dial DialFunc
	log  *zap.Logger
	sink EventSink
}

// NewPeer builds a Peer around an already-constructed Machine and RIB.
// dial is the dial function to use for active peers; pass nil to use
// net.DialTimeout.
func NewPeer(name, addr string, machine *fsm.Machine, peerRIB *rib.PeerRIB, dial DialFunc, log *zap.Logger) *Peer {
	if dial == nil {
		dial = defaultDial
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Peer{
		Name:      name,
		Addr:      addr,
		Machine:   machine,
		RIB:       peerRIB,
		dial:      dial,
		log:       logging.Peer(log, name),
		eorSent:   make(map[bgp.Family]bool),
		prevState: machine.State,
	}
}

// SetEventSink attaches the subscriber-event destination; nil disables
// event publishing (the zero value otherwise, since Peer never requires
// one to function).
func (p *Peer) SetEventSink(sink EventSink) {
	p.sink = sink
}

func (p *Peer) publish(category string, fields map[string]any) {
	if p.sink != nil {
		p.sink.Publish(p.Name, category, fields)
	}
}

func defaultDial(ctx context.Context, addr string) (net.Conn, error) {
	d := net.Dialer{Timeout: DefaultConnectTimeout}
	return d.DialContext(ctx, "tcp", addr)
}

// Start issues ManualStart/AutomaticStart into the FSM, kicking off the
// connect-or-listen cycle.
func (p *Peer) Start(automatic bool) []fsm.Action {
	event := fsm.ManualStart
	if automatic {
		event = fsm.AutomaticStart
	}
	return p.applyActions(p.Machine.Step(event, nil))
}

// Stop issues ManualStop.
func (p *Peer) Stop() []fsm.Action {
	return p.applyActions(p.Machine.Step(fsm.ManualStop, nil))
}

// Turn gives this peer one iteration of reactor time: it polls expired
// timers, polls for a completed dial or a message read that already
// happened on the connection's reader goroutine, and — once
// Established — drains at most MaxWriteBurst pending RIB changes into
// the write backlog (spec §4.5 step 1).
func (p *Peer) Turn() []fsm.Action {
	var actions []fsm.Action

	if p.Machine.ConnectRetryTimer.Expired() {
		actions = append(actions, p.applyActions(p.Machine.Step(fsm.ConnectRetryTimerExpires, nil))...)
	}
	if p.Machine.HoldTimer.Expired() {
		actions = append(actions, p.applyActions(p.Machine.Step(fsm.HoldTimerExpires, nil))...)
	}
	if p.Machine.KeepaliveTimer.Expired() {
		actions = append(actions, p.applyActions(p.Machine.Step(fsm.KeepaliveTimerExpires, nil))...)
	}

	if p.dialing {
		select {
		case res := <-p.dialCh:
			p.dialing = false
			if res.err != nil {
				actions = append(actions, p.applyActions(p.Machine.Step(fsm.TCPConnectionFails, nil))...)
			} else {
				p.attach(res.conn)
				actions = append(actions, p.applyActions(p.Machine.Step(fsm.TCPConnectionConfirmed, nil))...)
			}
		default:
		}
	}

	if p.handler != nil {
		select {
		case res := <-p.readCh:
			event, msg := p.classify(res)
			actions = append(actions, p.applyActions(p.Machine.Step(event, msg))...)
		default:
		}
	}

	if p.handler != nil && p.Machine.State == fsm.Established {
		p.drainRIB()
	}

	if p.handler != nil {
		p.handler.Flush()
		metrics.WriteBacklogDepth.WithLabelValues(p.Name).Set(float64(p.handler.Backlog()))
	}

	return actions
}

// classify maps one decoded message (or read error) to the FSM event it
// represents. RFC 4271 §8.1 enumerates far more granular OPEN/UPDATE
// error events than fsm.Event carries; this speaker's FSM was
// deliberately trimmed to the subset it actually needs (fsm/event.go),
// so a read error is classified by the state it arrived in rather than
// by inspecting the NOTIFICATION subcode it would have produced.
func (p *Peer) classify(res readResult) (fsm.Event, message.Message) {
	if res.err != nil {
		switch p.Machine.State {
		case fsm.OpenSent:
			return fsm.BGPOpenMsgErr, nil
		case fsm.Established:
			return fsm.UpdateMsgErr, nil
		default:
			return fsm.TCPConnectionFails, nil
		}
	}

	decoded, diags, err := message.DecodeBody(res.typ, res.body, p.decodeContext())
	for _, d := range diags {
		p.log.Warn("RFC 7606 diagnostic decoding UPDATE", zap.String("kind", d.Kind.String()), zap.String("reason", d.Reason))
		metrics.UpdateDiagnosticsTotal.WithLabelValues(p.Name, d.Kind.String()).Inc()
	}
	metrics.MessagesReceivedTotal.WithLabelValues(p.Name, res.typ.String()).Inc()
	if err != nil {
		switch p.Machine.State {
		case fsm.OpenSent:
			return fsm.BGPOpenMsgErr, nil
		case fsm.Established:
			return fsm.UpdateMsgErr, nil
		default:
			return fsm.TCPConnectionFails, nil
		}
	}

	switch m := decoded.(type) {
	case message.Open:
		return fsm.BGPOpenReceived, m
	case message.Keepalive:
		return fsm.KeepAliveReceived, m
	case message.Notification:
		p.publish("notification", map[string]any{
			"code":    m.Code.String(),
			"subcode": m.Subcode,
			"sent":    false,
		})
		return fsm.NotificationReceived, m
	case *message.Update:
		p.publish("receive-update", map[string]any{
			"announced": len(m.Announced),
			"withdrawn": len(m.Withdrawn),
		})
		return fsm.UpdateReceived, m
	default:
		// ROUTE-REFRESH and anything else this FSM has no dedicated
		// event for still counts as session activity.
		p.Machine.HoldTimer.Reset()
		return fsm.KeepAliveReceived, message.Keepalive{}
	}
}

// decodeContext builds the per-session facts UPDATE decoding needs from
// whatever the FSM has negotiated so far. Called only from Turn, on the
// reactor goroutine, which is the sole writer and now sole reader of
// Machine.Capabilities.
func (p *Peer) decodeContext() message.DecodeContext {
	ctx := message.DecodeContext{Attribute: &attribute.Context{}}
	if p.Machine.Capabilities == nil {
		return ctx
	}
	ctx.Attribute.FourByteASN = p.Machine.Capabilities.FourOctetASN
	addPath := make(map[bgp.Family]bool)
	for family, mode := range p.Machine.Capabilities.AddPath {
		if mode != bgp.AddPathNone {
			addPath[family] = true
		}
	}
	ctx.AddPath = addPath
	return ctx
}

func (p *Peer) drainRIB() {
	updates := p.RIB.Drain()
	// requeue puts drained but unsent UPDATEs back into the RIB for a later Turn.
	requeue := func(rest []message.Update) {
		for _, u := range rest {
			for _, e := range u.Withdrawn {
				p.RIB.QueueWithdraw(rib.Change{NLRI: e})
			}
			for _, e := range u.Announced {
				p.RIB.QueueAnnounce(rib.Change{NLRI: e, Attributes: u.Attributes, NextHop: u.NextHops[e.NLRI.Family()]})
			}
		}
	}
	if len(updates) > MaxWriteBurst {
		requeue(updates[MaxWriteBurst:])
		updates = updates[:MaxWriteBurst]
	}
	for i, u := range updates {
		if !p.handler.Enqueue(u) {
			metrics.WriteBacklogFullTotal.WithLabelValues(p.Name).Inc()
			p.log.Warn("outbound backlog full, deferring further RIB drain")
			requeue(updates[i:])
			return
		}
		metrics.MessagesSentTotal.WithLabelValues(p.Name, u.Type().String()).Inc()
	}
	for _, family := range p.negotiatedFamilies() {
		pending := 0.0
		if p.RIB.Pending(family) {
			pending = 1
		}
		metrics.OutgoingRIBPending.WithLabelValues(p.Name, family.AFI.String(), family.SAFI.String()).Set(pending)
		if !p.RIB.Pending(family) && p.RIB.EORPending(family) && !p.eorSent[family] {
			if p.handler.Enqueue(p.RIB.MarkEOR(family)) {
				p.eorSent[family] = true
				metrics.MessagesSentTotal.WithLabelValues(p.Name, bgp.MsgUpdate.String()).Inc()
			}
		}
	}
}

func (p *Peer) negotiatedFamilies() []bgp.Family {
	if p.Machine.Capabilities == nil {
		return nil
	}
	out := make([]bgp.Family, 0, len(p.Machine.Capabilities.Families))
	for f, ok := range p.Machine.Capabilities.Families {
		if ok {
			out = append(out, f)
		}
	}
	return out
}

// applyActions carries out the reactor-visible side effects of a Step
// call: dialing, listening, sending, and closing. It returns the same
// slice unchanged so callers can still inspect what happened (e.g. for
// metrics or subscriber events).
func (p *Peer) applyActions(actions []fsm.Action) []fsm.Action {
	for _, a := range actions {
		switch a.Kind {
		case fsm.ActionDial:
			p.beginDial()
		case fsm.ActionListenPassive:
			p.awaiting = true
		case fsm.ActionSend:
			if p.handler != nil {
				if p.handler.Enqueue(a.Message) {
					metrics.MessagesSentTotal.WithLabelValues(p.Name, a.Message.Type().String()).Inc()
					p.publishSent(a.Message)
				} else {
					metrics.WriteBacklogFullTotal.WithLabelValues(p.Name).Inc()
				}
			}
		case fsm.ActionCloseConnection:
			if p.handler != nil {
				if p.handler.Enqueue(a.Message) {
					metrics.MessagesSentTotal.WithLabelValues(p.Name, a.Message.Type().String()).Inc()
					p.publishSent(a.Message)
				}
				p.handler.Flush()
				p.detach()
			}
		case fsm.ActionMarkEstablished:
			metrics.SessionEstablishedTotal.WithLabelValues(p.Name).Inc()
			p.log.Info("session established")
			p.RIB.SetMaxMessageSize(p.Machine.Capabilities.MaxMessageSize())
			p.RIB.SeedEOR(p.negotiatedFamilies())
		case fsm.ActionMarkDown:
			p.eorSent = make(map[bgp.Family]bool)
			p.log.Info("session down", zap.String("reason", a.Notification))
		}
	}
	p.recordState()
	return actions
}

func (p *Peer) recordState() {
	for _, s := range []fsm.State{fsm.Idle, fsm.Connect, fsm.Active, fsm.OpenSent, fsm.OpenConfirm, fsm.Established} {
		v := 0.0
		if s == p.Machine.State {
			v = 1
		}
		metrics.SessionState.WithLabelValues(p.Name, s.String()).Set(v)
	}
	if p.Machine.State != p.prevState {
		p.publish("state", map[string]any{
			"from": p.prevState.String(),
			"to":   p.Machine.State.String(),
		})
		p.prevState = p.Machine.State
	}
}

// publishSent reports a send-update event for outbound UPDATE messages
// only; KEEPALIVE/OPEN/NOTIFICATION traffic is session bookkeeping, not
// route data, and NOTIFICATION's own send is folded into the
// notification category instead.
func (p *Peer) publishSent(m message.Message) {
	switch u := m.(type) {
	case *message.Update:
		p.publish("send-update", map[string]any{
			"announced": len(u.Announced),
			"withdrawn": len(u.Withdrawn),
		})
	case message.Notification:
		p.publish("notification", map[string]any{
			"code":    u.Code.String(),
			"subcode": u.Subcode,
			"sent":    true,
		})
	}
}

// abortDial gives up on an outstanding dial in favor of a winning
// inbound connection. The dial goroutine (if it later succeeds) still
// sends on dialCh, but Turn only reads dialCh while p.dialing is true,
// so that send is simply never observed.
func (p *Peer) abortDial() {
	p.dialing = false
}

func (p *Peer) beginDial() {
	if p.dialing || p.handler != nil {
		return
	}
	p.dialing = true
	p.dialCh = make(chan dialResult, 1)
	addr, dial := p.Addr, p.dial
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), DefaultConnectTimeout)
		defer cancel()
		conn, err := dial(ctx, addr)
		p.dialCh <- dialResult{conn: conn, err: err}
	}()
}

// AcceptConnection hands an inbound, already-accepted connection to this
// peer (the reactor's accept loop matched it by remote address). It is
// only meaningful while the peer is Idle/Active/Connect and awaiting a
// passive or colliding connection.
//
// The accept loop's Dispatch settles a simultaneous connection before
// this is called: an inbound connection replaces a dial still in
// progress, and one that arrives while a connection is already attached
// is closed. fsm.ResolveCollision (the router-id comparison) is not
// used on this path.
func (p *Peer) AcceptConnection(conn net.Conn) []fsm.Action {
	p.awaiting = false
	p.attach(conn)
	return p.applyActions(p.Machine.Step(fsm.TCPConnectionConfirmed, nil))
}

func (p *Peer) attach(conn net.Conn) {
	p.handler = proto.New(conn, proto.DefaultBacklogSize)
	p.readCh = make(chan readResult, 1)
	p.readerStop = make(chan struct{})
	go p.readLoop(p.handler, p.readCh, p.readerStop)
}

func (p *Peer) detach() {
	if p.readerStop != nil {
		close(p.readerStop)
	}
	if p.handler != nil {
		p.handler.Close()
	}
	p.handler = nil
	p.readCh = nil
	p.readerStop = nil
}

func (p *Peer) readLoop(h *proto.Handler, out chan<- readResult, stop <-chan struct{}) {
	for {
		typ, body, err := h.ReadFrame()
		select {
		case out <- readResult{typ: typ, body: body, err: err}:
		case <-stop:
			return
		}
		if err != nil {
			return
		}
	}
}
