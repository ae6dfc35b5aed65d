package reactor

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/Exa-Networks/exabgp-sub008/fsm"
	"github.com/Exa-Networks/exabgp-sub008/rib"
)

func TestTickGivesEveryPeerATurn(t *testing.T) {
	r := New(nil)

	client1, server1 := net.Pipe()
	defer client1.Close()
	defer server1.Close()
	client2, server2 := net.Pipe()
	defer client2.Close()
	defer server2.Close()

	p1 := NewPeer("peer1", "198.51.100.1:179", fsm.New(testMachineConfig()), rib.New(0, false, nil), pipeDial(client1), nil)
	p2 := NewPeer("peer2", "198.51.100.2:179", fsm.New(testMachineConfig()), rib.New(0, false, nil), pipeDial(client2), nil)
	r.AddPeer(p1)
	r.AddPeer(p2)

	p1.Start(false)
	p2.Start(false)

	// Each peer's attaching Turn flushes an OPEN into its pipe; read it so
	// the write does not block.
	go server1.Read(make([]byte, 4096))
	go server2.Read(make([]byte, 4096))
	waitFor(t, func() bool { r.Tick(); return p1.handler != nil && p2.handler != nil })

	if got := r.Peers(); len(got) != 2 {
		t.Fatalf("got %d peers, want 2", len(got))
	}
}

func TestAPIHookRunsEveryTick(t *testing.T) {
	r := New(nil)
	calls := 0
	r.SetAPIHook(func() { calls++ })
	r.Tick()
	r.Tick()
	if calls != 2 {
		t.Fatalf("got %d hook calls, want 2", calls)
	}
}

func TestRunShutsDownOnCancel(t *testing.T) {
	r := New(nil)
	r.tickInterval = time.Millisecond
	r.shutdownGrace = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	time.Sleep(5 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Run did not return after cancellation")
	}
}

func TestDispatchRejectsUnconfiguredNeighbor(t *testing.T) {
	r := New(nil)

	ln, err := Listen("127.0.0.1:0", nil)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	conn, err := net.Dial("tcp", ln.ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	waitFor(t, func() bool {
		r.Dispatch(ln)
		_, err := conn.Read(make([]byte, 1))
		return err != nil
	})
}
