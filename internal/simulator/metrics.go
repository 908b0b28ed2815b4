package simulator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics for the simulator backend.
// Construct at most once per process; components treat a nil *Metrics
// as "metrics disabled".
type Metrics struct {
	ConnectedClients prometheus.Gauge
	EventsBroadcast  *prometheus.CounterVec
	OnlineSessions   prometheus.Gauge
	SweepMarked      prometheus.Counter
	SweepDeleted     prometheus.Counter
	ForcedOffline    prometheus.Counter
}

// NewMetrics creates and registers all simulator metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		ConnectedClients: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "vigil_sim_connected_clients",
			Help: "Number of websocket clients currently registered",
		}),
		EventsBroadcast: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vigil_sim_events_broadcast_total",
			Help: "Total presence events broadcast, labeled by wire type",
		}, []string{"type"}),
		OnlineSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "vigil_sim_online_sessions",
			Help: "Online session count at the last stats computation",
		}),
		SweepMarked: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vigil_sim_sweep_marked_offline_total",
			Help: "Total sessions the idle sweep flipped to offline",
		}),
		SweepDeleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vigil_sim_sweep_deleted_total",
			Help: "Total offline session records removed by retention",
		}),
		ForcedOffline: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vigil_sim_forced_offline_total",
			Help: "Total sessions taken offline by admin action",
		}),
	}
}

func (m *Metrics) SetConnectedClients(count int) {
	m.ConnectedClients.Set(float64(count))
}

func (m *Metrics) IncEventsBroadcast(wireType string) {
	m.EventsBroadcast.WithLabelValues(wireType).Inc()
}

func (m *Metrics) SetOnlineSessions(count int) {
	m.OnlineSessions.Set(float64(count))
}

func (m *Metrics) AddSweepMarked(count int) {
	m.SweepMarked.Add(float64(count))
}

func (m *Metrics) AddSweepDeleted(count int) {
	m.SweepDeleted.Add(float64(count))
}

func (m *Metrics) IncForcedOffline() {
	m.ForcedOffline.Inc()
}
