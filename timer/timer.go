// Package timer implements the deadline primitive used by the peer FSM's
// ConnectRetryTimer, HoldTimer, and KeepaliveTimer (RFC 4271 §8), and by
// the reactor's per-peer backoff.
//
// The teacher's Timer wrapped time.AfterFunc, firing a callback on its own
// goroutine. That works for a multi-threaded speaker but not this one:
// spec §4.5/§5 require the reactor to be the sole mutator of session
// state, with timers "implemented as deadlines checked each iteration" —
// an AfterFunc callback racing the reactor goroutine would reintroduce
// exactly the shared mutable state the single-threaded design rules out.
// Timer here is a plain deadline: Reset/Stop only ever touch a time.Time,
// and Expired is polled by the reactor's turn function.
package timer

import "time"

// Timer is a one-shot deadline. It does not run a goroutine or invoke a
// callback; the owner polls Expired() once per reactor turn.
type Timer struct {
	interval time.Duration
	deadline time.Time
	active   bool
}

// New creates a stopped timer with the given interval. Call Reset to
// arm it.
func New(d time.Duration) *Timer {
	return &Timer{interval: d}
}

// Reset arms the timer: Expired() will report true starting at
// now + interval, until the next Reset or Stop.
func (t *Timer) Reset() {
	t.deadline = time.Now().Add(t.interval)
	t.active = true
}

// ResetTo re-arms the timer with a new interval, superseding the one
// passed to New (used when a hold time is renegotiated per session).
func (t *Timer) ResetTo(d time.Duration) {
	t.interval = d
	t.Reset()
}

// Stop disarms the timer. Expired() reports false until the next Reset.
func (t *Timer) Stop() {
	t.active = false
}

// Running reports whether the timer is armed.
func (t *Timer) Running() bool {
	return t.active
}

// Expired reports whether the timer is armed and its deadline has
// passed. A disabled timer (interval == 0) never expires, matching the
// BGP convention that a hold time of zero disables the hold timer.
func (t *Timer) Expired() bool {
	if !t.active || t.interval <= 0 {
		return false
	}
	return !time.Now().Before(t.deadline)
}

// Remaining returns the duration until expiry, or 0 if already expired
// or disarmed.
func (t *Timer) Remaining() time.Duration {
	if !t.active || t.interval <= 0 {
		return 0
	}
	d := time.Until(t.deadline)
	if d < 0 {
		return 0
	}
	return d
}
