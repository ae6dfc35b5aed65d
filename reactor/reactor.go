package reactor

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Exa-Networks/exabgp-sub008/fsm"
	"github.com/Exa-Networks/exabgp-sub008/logging"
)

// DefaultTickInterval is the period at which Run calls Tick; channel
// activity (dial completion, message arrival) is picked up by the next
// Tick rather than waking Run early.
const DefaultTickInterval = 50 * time.Millisecond

// DefaultShutdownGrace is how long Run waits for NOTIFICATION/backlog
// flush to drain before forcing every connection closed (spec §5
// "Shutdown grace: default 3 seconds").
const DefaultShutdownGrace = 3 * time.Second

// APIHook lets an API transport plug into the reactor's per-iteration
// order (spec §4.5 steps 2-4: poll commands, run scheduled callbacks,
// flush responses) without the reactor package depending on the api
// package's concrete types. A single hook, not three, keeps the
// ordering guarantee (poll-then-run-then-flush) enforced by whatever
// implements it rather than split across the reactor/api boundary.
type APIHook func()

// Reactor owns every configured peer and drives them to convergence.
// It is itself single-threaded: Run's loop is the only goroutine that
// ever calls into a Peer's exported methods.
type Reactor struct {
	peers         map[string]*Peer
	order         []string
	onAPI         APIHook
	listener      *Listener
	tickInterval  time.Duration
	shutdownGrace time.Duration
	log           *zap.Logger
	sink          EventSink
}

// New creates an empty Reactor.
func New(log *zap.Logger) *Reactor {
	if log == nil {
		log = logging.Nop()
	}
	return &Reactor{
		peers:         make(map[string]*Peer),
		tickInterval:  DefaultTickInterval,
		shutdownGrace: DefaultShutdownGrace,
		log:           log,
	}
}

// SetAPIHook installs the callback Tick invokes after every peer has
// had its turn.
func (r *Reactor) SetAPIHook(hook APIHook) {
	r.onAPI = hook
}

// SetListener attaches the passive accept listener. Tick dispatches
// every connection it has accepted to its matching peer before the API
// hook runs; Close is called on Run's shutdown path.
func (r *Reactor) SetListener(l *Listener) {
	r.listener = l
}

// SetEventSink attaches the subscriber-event destination every
// currently and subsequently registered peer publishes to (spec §4.6).
// Call before AddPeer so peers pick it up at registration.
func (r *Reactor) SetEventSink(sink EventSink) {
	r.sink = sink
	for _, name := range r.order {
		r.peers[name].SetEventSink(sink)
	}
}

// AddPeer registers a peer, handing it the reactor's event sink if one
// is already set. It does not start the peer's FSM; callers call
// Peer.Start explicitly once every peer is registered.
func (r *Reactor) AddPeer(p *Peer) {
	if _, exists := r.peers[p.Name]; !exists {
		r.order = append(r.order, p.Name)
	}
	if r.sink != nil {
		p.SetEventSink(r.sink)
	}
	r.peers[p.Name] = p
}

// Peer looks up a registered peer by name.
func (r *Reactor) Peer(name string) (*Peer, bool) {
	p, ok := r.peers[name]
	return p, ok
}

// Peers returns every registered peer in registration order, so test
// assertions and log output are deterministic.
func (r *Reactor) Peers() []*Peer {
	out := make([]*Peer, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.peers[name])
	}
	return out
}

// AnyEstablished reports whether at least one peer is currently
// Established, the signal main wires to the debug HTTP /readyz probe.
func (r *Reactor) AnyEstablished() bool {
	for _, name := range r.order {
		if r.peers[name].Machine.State == fsm.Established {
			return true
		}
	}
	return false
}

// Tick runs exactly one iteration of the reactor's per-iteration order
// (spec §4.5): every peer gets a turn, then the API hook (command
// polling, scheduled callbacks, response flush) runs once.
func (r *Reactor) Tick() {
	for _, name := range r.order {
		r.peers[name].Turn()
	}
	if r.listener != nil {
		r.Dispatch(r.listener)
	}
	if r.onAPI != nil {
		r.onAPI()
	}
}

// Run ticks the reactor until ctx is cancelled, then performs the
// shutdown sequence (spec §4.5 "Cancellation"): send
// NOTIFICATION(Cease, AdministrativeShutdown) to every established
// peer, wait up to shutdownGrace for backlogs to drain, then close
// every connection.
func (r *Reactor) Run(ctx context.Context) {
	ticker := time.NewTicker(r.tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.shutdown()
			return
		case <-ticker.C:
			r.Tick()
		}
	}
}

func (r *Reactor) shutdown() {
	r.log.Info("shutdown requested, closing peer sessions")
	if r.listener != nil {
		r.listener.Close()
	}
	for _, name := range r.order {
		r.peers[name].Stop()
	}
	deadline := time.Now().Add(r.shutdownGrace)
	for time.Now().Before(deadline) {
		allDrained := true
		for _, name := range r.order {
			if p := r.peers[name]; p.handler != nil && p.handler.Backlog() > 0 {
				p.handler.Flush()
				allDrained = false
			}
		}
		if allDrained {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	for _, name := range r.order {
		r.peers[name].detach()
	}
}
