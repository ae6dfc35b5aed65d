package reactor

import (
	"net"

	"go.uber.org/zap"

	"github.com/Exa-Networks/exabgp-sub008/logging"
)

// Listener accepts inbound TCP connections on behalf of every passive
// or dual-mode peer the reactor owns, matching each by remote address
// and handing it to Peer.AcceptConnection. Accepting is the second
// standard-library primitive that cannot be made non-blocking (spec
// §4.5), so it runs on its own goroutine and only ever posts fully
// accepted connections back to the reactor over a channel.
type Listener struct {
	ln       net.Listener
	acceptCh chan net.Conn
	stopCh   chan struct{}
	log      *zap.Logger
}

// Listen opens addr (host:port, or ":179" to bind every interface) and
// starts accepting in the background.
func Listen(addr string, log *zap.Logger) (*Listener, error) {
	if log == nil {
		log = logging.Nop()
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	l := &Listener{
		ln:       ln,
		acceptCh: make(chan net.Conn, 16),
		stopCh:   make(chan struct{}),
		log:      log,
	}
	go l.acceptLoop()
	return l, nil
}

func (l *Listener) acceptLoop() {
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			select {
			case <-l.stopCh:
				return
			default:
				l.log.Warn("accept failed", zap.Error(err))
				return
			}
		}
		select {
		case l.acceptCh <- conn:
		case <-l.stopCh:
			conn.Close()
			return
		}
	}
}

// Close stops accepting and closes the listening socket.
func (l *Listener) Close() error {
	close(l.stopCh)
	return l.ln.Close()
}

// Dispatch hands every connection accepted since the last call to the
// matching configured peer, by remote host. Full RFC 4271 §6.8
// collision resolution compares the router-ids both sides learn from
// OPEN, which requires keeping two live connections per peer until
// each completes OpenSent; this Peer keeps only one handler at a time,
// so the practical policy applied here is simpler: an inbound
// connection always pre-empts an outstanding outbound dial (the dial
// is abandoned), and an inbound connection arriving while a handler is
// already attached is rejected as a duplicate. fsm.ResolveCollision
// is exported for a future two-connections-per-peer model that tracks
// both candidates through OPEN before picking a winner.
func (r *Reactor) Dispatch(l *Listener) {
	for {
		select {
		case conn := <-l.acceptCh:
			r.dispatchOne(conn)
		default:
			return
		}
	}
}

func (r *Reactor) dispatchOne(conn net.Conn) {
	host, _, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		host = conn.RemoteAddr().String()
	}

	for _, name := range r.order {
		p := r.peers[name]
		peerHost, _, err := net.SplitHostPort(p.Addr)
		if err != nil {
			peerHost = p.Addr
		}
		if peerHost != host {
			continue
		}
		if p.handler != nil {
			conn.Close()
			return
		}
		if p.dialing {
			p.abortDial()
		}
		p.AcceptConnection(conn)
		return
	}

	r.log.Warn("rejecting inbound connection from unconfigured neighbor", zap.String("remote", host))
	conn.Close()
}
