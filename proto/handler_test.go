package proto

import (
	"net"
	"testing"

	"github.com/Exa-Networks/exabgp-sub008/message"
)

func TestEnqueueFlushRoundTrip(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	h := New(server, DefaultBacklogSize)
	defer h.Close()

	if !h.Enqueue(message.Keepalive{}) {
		t.Fatalf("expected Enqueue to succeed with an empty backlog")
	}
	if h.Backlog() != 1 {
		t.Fatalf("got backlog %d, want 1", h.Backlog())
	}

	done := make(chan error, 1)
	go func() {
		_, err := h.Flush()
		done <- err
	}()

	m, _, err := message.ReadMessage(client, message.DecodeContext{})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := m.(message.Keepalive); !ok {
		t.Fatalf("got %T, want Keepalive", m)
	}
	if err := <-done; err != nil {
		t.Fatalf("flush: %v", err)
	}
}

func TestEnqueueRejectsWhenBacklogFull(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	h := New(server, 1)
	if !h.Enqueue(message.Keepalive{}) {
		t.Fatalf("expected first Enqueue on an empty backlog of size 1 to succeed")
	}
	if h.Enqueue(message.Keepalive{}) {
		t.Fatalf("expected second Enqueue to be rejected once the backlog is full")
	}
}
