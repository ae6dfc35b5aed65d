// Package metrics defines the Prometheus counters and gauges the
// reactor's turn accounting feeds, exposed over the API transport's
// optional HTTP debug listener (api/http).
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	MessagesSentTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kbgpd_messages_sent_total",
			Help: "BGP messages sent, by peer and message type.",
		},
		[]string{"peer", "type"},
	)

	MessagesReceivedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kbgpd_messages_received_total",
			Help: "BGP messages received, by peer and message type.",
		},
		[]string{"peer", "type"},
	)

	UpdateDiagnosticsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kbgpd_update_diagnostics_total",
			Help: "RFC 7606 treat-as-withdraw/discard diagnostics, by peer and kind.",
		},
		[]string{"peer", "kind"},
	)

	SessionState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "kbgpd_session_state",
			Help: "Current FSM state per peer (one gauge series per state, value 1 for the active one).",
		},
		[]string{"peer", "state"},
	)

	SessionEstablishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kbgpd_session_established_total",
			Help: "Count of times a peer has transitioned into Established.",
		},
		[]string{"peer"},
	)

	OutgoingRIBPending = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "kbgpd_outgoing_rib_pending",
			Help: "Pending announce/withdraw entries in a peer's outgoing RIB.",
		},
		[]string{"peer", "afi", "safi"},
	)

	WriteBacklogDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "kbgpd_write_backlog_depth",
			Help: "Queued-but-unwritten messages in a peer's protocol handler backlog.",
		},
		[]string{"peer"},
	)

	WriteBacklogFullTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kbgpd_write_backlog_full_total",
			Help: "Times Enqueue found the write backlog full and rejected a message.",
		},
		[]string{"peer"},
	)
)

// Register adds every collector to the default Prometheus registry.
// Called once from main at process startup.
func Register() {
	prometheus.MustRegister(
		MessagesSentTotal,
		MessagesReceivedTotal,
		UpdateDiagnosticsTotal,
		SessionState,
		SessionEstablishedTotal,
		OutgoingRIBPending,
		WriteBacklogDepth,
		WriteBacklogFullTotal,
	)
}
