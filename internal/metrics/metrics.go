package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	MessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "apihub_messages_total",
			Help: "Inbound relay messages by outcome and route",
		},
		[]string{"outcome", "route"}, // replied|failed|rejected , W:|G:|L:|none
	)

	AgentRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "apihub_agent_requests_total",
			Help: "Outbound agent API attempts by result",
		},
		[]string{"result"}, // ok|http_error|transport_error|circuit_open
	)

	AgentRequestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "apihub_agent_request_duration_seconds",
			Help:    "Latency of a single agent API attempt",
			Buckets: prometheus.DefBuckets,
		},
	)

	AgentCircuitOpen = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "apihub_agent_circuit_open",
			Help: "1 while the breaker for an agent refuses calls",
		},
		[]string{"agent"},
	)

	DuplicatesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "apihub_duplicate_deliveries_total",
			Help: "Relay re-deliveries dropped by message sid",
		},
	)

	CommandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "apihub_commands_total",
			Help: "Cloud commands by stage and kind",
		},
		[]string{"stage", "kind"}, // queued|executed|failed|rejected , calendar|drive|mail|unknown|pending
	)
)

var registerOnce sync.Once

// MustRegister registers the collectors once per process; serve and the
// worker both call it.
func MustRegister(r prometheus.Registerer) {
	registerOnce.Do(func() {
		r.MustRegister(
			MessagesTotal,
			AgentRequestsTotal,
			AgentRequestDuration,
			AgentCircuitOpen,
			DuplicatesTotal,
			CommandsTotal,
		)
	})
}
