package fsm

import "github.com/Exa-Networks/exabgp-sub008/message"

// ActionKind tells the reactor what side effect a Step call requires. A
// Machine never performs I/O itself — it only ever returns a plan of
// actions for the reactor/protocol handler to carry out, keeping the
// FSM a pure, synchronously-steppable value (spec §4.5/§9 "coroutine
// control flow without generators").
type ActionKind int

const (
	ActionNone ActionKind = iota
	ActionDial
	ActionListenPassive
	ActionSend
	ActionCloseConnection
	ActionMarkEstablished
	ActionMarkDown
)

// Action is one instruction the reactor must carry out after a Step
// call. Message is set for ActionSend; Notification documents why the
// connection is closing, for logging/metrics, on ActionCloseConnection.
type Action struct {
	Kind         ActionKind
	Message      message.Message
	Notification string
}
