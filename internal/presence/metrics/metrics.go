package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics for the presence client.
// Construct at most once per process; components treat a nil *Metrics
// as "metrics disabled".
type Metrics struct {
	ConnectsTotal        prometheus.Counter
	ReconnectsScheduled  prometheus.Counter
	ConnectionState      prometheus.Gauge
	EventsReceived       *prometheus.CounterVec
	DecodeFailures       prometheus.Counter
	PingsSent            prometheus.Counter
	SendsDropped         prometheus.Counter
	ActionsTotal         *prometheus.CounterVec
	ActionLatencySeconds prometheus.Histogram
	PollRefreshes        prometheus.Counter
	OnlineUsers          prometheus.Gauge
}

// New creates and registers all presence client metrics.
func New() *Metrics {
	return &Metrics{
		ConnectsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vigil_presence_connects_total",
			Help: "Total number of socket dial attempts",
		}),
		ReconnectsScheduled: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vigil_presence_reconnects_scheduled_total",
			Help: "Total number of reconnect timers armed",
		}),
		ConnectionState: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "vigil_presence_connection_state",
			Help: "Current connection state (0 disconnected, 1 connecting, 2 open, 3 reconnecting)",
		}),
		EventsReceived: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vigil_presence_events_received_total",
			Help: "Total inbound presence events, labeled by wire type",
		}, []string{"type"}),
		DecodeFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vigil_presence_decode_failures_total",
			Help: "Total inbound frames dropped as malformed",
		}),
		PingsSent: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vigil_presence_pings_sent_total",
			Help: "Total keepalive pings sent",
		}),
		SendsDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vigil_presence_sends_dropped_total",
			Help: "Total outbound envelopes dropped because the connection was not open",
		}),
		ActionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vigil_presence_actions_total",
			Help: "Total admin actions issued, labeled by kind and outcome",
		}, []string{"kind", "outcome"}),
		ActionLatencySeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "vigil_presence_action_latency_seconds",
			Help:    "Latency of admin action REST calls in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		PollRefreshes: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vigil_presence_poll_refreshes_total",
			Help: "Total polling refresh cycles executed",
		}),
		OnlineUsers: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "vigil_presence_online_users",
			Help: "Online user count from the last stats snapshot",
		}),
	}
}

func (m *Metrics) IncConnects() {
	m.ConnectsTotal.Inc()
}

func (m *Metrics) IncReconnectsScheduled() {
	m.ReconnectsScheduled.Inc()
}

func (m *Metrics) SetConnectionState(state int) {
	m.ConnectionState.Set(float64(state))
}

func (m *Metrics) IncEventsReceived(wireType string) {
	m.EventsReceived.WithLabelValues(wireType).Inc()
}

func (m *Metrics) IncDecodeFailures() {
	m.DecodeFailures.Inc()
}

func (m *Metrics) IncPingsSent() {
	m.PingsSent.Inc()
}

func (m *Metrics) IncSendsDropped() {
	m.SendsDropped.Inc()
}

func (m *Metrics) IncAction(kind, outcome string) {
	m.ActionsTotal.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) ObserveActionLatency(seconds float64) {
	m.ActionLatencySeconds.Observe(seconds)
}

func (m *Metrics) IncPollRefreshes() {
	m.PollRefreshes.Inc()
}

func (m *Metrics) SetOnlineUsers(count int) {
	m.OnlineUsers.Set(float64(count))
}
