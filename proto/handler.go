// Package proto implements the protocol handler (spec §4.4): the
// object that owns one peer's TCP connection, frames reads with
// io.ReadFull, and buffers writes behind a bounded backlog so a slow or
// stalled peer cannot make the reactor block.
package proto

import (
	"net"

	"github.com/eapache/channels"

	"github.com/Exa-Networks/exabgp-sub008/bgp"
	"github.com/Exa-Networks/exabgp-sub008/message"
)

// DefaultBacklogSize is the outbound message backlog capacity (spec
// §4.4/§5): once full, Enqueue reports false and the caller (the peer's
// reactor turn) must stop producing until Flush drains room.
const DefaultBacklogSize = 15000

// Handler owns one peer's TCP connection exclusively; on Close it
// releases the socket and detaches (spec §3 "Protocol handler
// exclusively owns its TCP connection").
type Handler struct {
	conn    net.Conn
	backlog channels.Channel
}

// New wraps conn with a write backlog of backlogSize serialized
// messages. backlogSize <= 0 uses DefaultBacklogSize.
func New(conn net.Conn, backlogSize int) *Handler {
	if backlogSize <= 0 {
		backlogSize = DefaultBacklogSize
	}
	return &Handler{conn: conn, backlog: channels.NewNativeChannel(backlogSize)}
}

// Enqueue serializes msg and appends it to the write backlog. It
// reports false without blocking if the backlog is full; the caller
// must stop producing for this peer until Flush frees capacity.
func (h *Handler) Enqueue(msg message.Message) bool {
	wire := message.Encode(msg)
	select {
	case h.backlog.In() <- wire:
		return true
	default:
		return false
	}
}

// Flush writes every currently-buffered message to the socket, in
// order, stopping at the first write error. It never blocks waiting
// for new entries to arrive.
func (h *Handler) Flush() (int, error) {
	written := 0
	for {
		select {
		case v, ok := <-h.backlog.Out():
			if !ok {
				return written, nil
			}
			if _, err := h.conn.Write(v.([]byte)); err != nil {
				return written, err
			}
			written++
		default:
			return written, nil
		}
	}
}

// Backlog reports how many messages are currently queued for write.
func (h *Handler) Backlog() int {
	return h.backlog.Len()
}

// ReadMessage blocks until one full message arrives on the connection,
// decoding it per the negotiated session context.
func (h *Handler) ReadMessage(ctx message.DecodeContext) (message.Message, []message.Diagnostic, error) {
	return message.ReadMessage(h.conn, ctx)
}

// ReadFrame blocks until one full message arrives and returns its type
// and undecoded body, for callers that must decode on a different
// goroutine than the one doing the blocking read (see message.ReadFrame).
func (h *Handler) ReadFrame() (bgp.MessageType, []byte, error) {
	return message.ReadFrame(h.conn)
}

// Close releases the backlog and the underlying socket.
func (h *Handler) Close() error {
	h.backlog.Close()
	return h.conn.Close()
}

// RemoteAddr exposes the connection's remote endpoint, used for logging
// and for matching an inbound connection to a configured Neighbor.
func (h *Handler) RemoteAddr() net.Addr {
	return h.conn.RemoteAddr()
}
