package timer

import (
	"testing"
	"time"
)

func TestExpired(t *testing.T) {
	ts := New(20 * time.Millisecond)
	ts.Reset()
	if ts.Expired() {
		t.Fatalf("timer reported expired immediately after Reset")
	}
	time.Sleep(30 * time.Millisecond)
	if !ts.Expired() {
		t.Fatalf("timer did not expire after its interval")
	}
}

func TestReset(t *testing.T) {
	ts := New(40 * time.Millisecond)
	ts.Reset()
	time.Sleep(20 * time.Millisecond)
	ts.Reset()
	time.Sleep(25 * time.Millisecond)
	if ts.Expired() {
		t.Fatalf("timer expired early after Reset")
	}
	time.Sleep(20 * time.Millisecond)
	if !ts.Expired() {
		t.Fatalf("timer never expired")
	}
}

func TestStop(t *testing.T) {
	ts := New(10 * time.Millisecond)
	ts.Reset()
	ts.Stop()
	if ts.Running() {
		t.Fatalf("expected timer to be stopped")
	}
	time.Sleep(20 * time.Millisecond)
	if ts.Expired() {
		t.Fatalf("a stopped timer must never report expired")
	}
}

func TestZeroIntervalDisabled(t *testing.T) {
	ts := New(0)
	ts.Reset()
	time.Sleep(5 * time.Millisecond)
	if ts.Expired() {
		t.Fatalf("a zero-interval timer (disabled hold timer) must never expire")
	}
}

func TestRunning(t *testing.T) {
	ts := New(time.Second)
	if ts.Running() {
		t.Fatalf("a fresh timer should not be running until Reset")
	}
	ts.Reset()
	if !ts.Running() {
		t.Fatalf("expected timer to be running after Reset")
	}
	ts.Stop()
	if ts.Running() {
		t.Fatalf("expected timer to be stopped")
	}
}
