package bridge

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the bridge.
// A nil *Metrics records nothing.
type Metrics struct {
	activeSessions prometheus.Gauge
	sessions       *prometheus.CounterVec
	frames         *prometheus.CounterVec
	frameBytes     *prometheus.CounterVec
	writeErrors    *prometheus.CounterVec
}

// NewMetrics registers the bridge collectors with reg.
// Passing prometheus.DefaultRegisterer exposes them on the default /metrics handler.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		activeSessions: f.NewGauge(prometheus.GaugeOpts{
			Name: "iotbridge_sessions_active",
			Help: "Number of active bridge sessions",
		}),
		sessions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "iotbridge_sessions_total",
			Help: "Session lifecycle outcomes",
		}, []string{"result"}),
		frames: f.NewCounterVec(prometheus.CounterOpts{
			Name: "iotbridge_frames_total",
			Help: "Frames relayed between devices and the platform",
		}, []string{"direction", "kind"}),
		frameBytes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "iotbridge_frame_bytes_total",
			Help: "Payload bytes relayed between devices and the platform",
		}, []string{"direction"}),
		writeErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "iotbridge_write_errors_total",
			Help: "Frames that could not be delivered",
		}, []string{"direction"}),
	}
}

// sessionResult records a CreateSession or RemoveSession outcome.
// Results: created, closed, identity_not_found, exists, connect_failed, abandoned.
func (m *Metrics) sessionResult(result string) {
	if m == nil {
		return
	}
	m.sessions.WithLabelValues(result).Inc()
	switch result {
	case "created":
		m.activeSessions.Inc()
	case "closed":
		m.activeSessions.Dec()
	}
}

func (m *Metrics) uplink(n int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.writeErrors.WithLabelValues("uplink").Inc()
		return
	}
	m.frames.WithLabelValues("uplink", "message").Inc()
	m.frameBytes.WithLabelValues("uplink").Add(float64(n))
}

func (m *Metrics) downlink(kind string, n int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.writeErrors.WithLabelValues("downlink").Inc()
		return
	}
	m.frames.WithLabelValues("downlink", kind).Inc()
	m.frameBytes.WithLabelValues("downlink").Add(float64(n))
}
