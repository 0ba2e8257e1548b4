package qcomposer

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

/*
Metrics holds the Prometheus collectors for the composer.

All methods are safe on a nil receiver, which turns metrics off.
*/
type Metrics struct {
	commands          *prometheus.CounterVec
	commandDuration   *prometheus.HistogramVec
	gateStackDepth    prometheus.Gauge
	collapsed         prometheus.Gauge
	broadcastsSent    prometheus.Counter
	broadcastsDropped prometheus.Counter
	subscribers       prometheus.Gauge
	rateLimited       prometheus.Counter
}

// NewMetrics registers the composer collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		commands: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "qcomposer_commands_total",
			Help: "Commands handled, by command and outcome",
		}, []string{"command", "outcome"}),
		commandDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "qcomposer_command_duration_seconds",
			Help:    "Time spent executing a command, lock wait included",
			Buckets: []float64{0.00001, 0.0001, 0.001, 0.01, 0.1},
		}, []string{"command"}),
		gateStackDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "qcomposer_gate_stack_depth",
			Help: "Number of gates on the session stack",
		}),
		collapsed: factory.NewGauge(prometheus.GaugeOpts{
			Name: "qcomposer_collapsed",
			Help: "1 while the session holds a measurement",
		}),
		broadcastsSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "qcomposer_broadcast_sent_total",
			Help: "Events delivered to subscriber buffers",
		}),
		broadcastsDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "qcomposer_broadcast_dropped_total",
			Help: "Events dropped because a subscriber buffer was full",
		}),
		subscribers: factory.NewGauge(prometheus.GaugeOpts{
			Name: "qcomposer_subscribers",
			Help: "Currently connected subscribers",
		}),
		rateLimited: factory.NewCounter(prometheus.CounterOpts{
			Name: "qcomposer_rate_limited_total",
			Help: "Command requests refused by the rate limiter",
		}),
	}
}

func (m *Metrics) recordCommand(command string, startTime time.Time, err error) {
	if m == nil {
		return
	}

	outcome := "ok"
	if err != nil {
		outcome = "error"
		if failure := NewFailure(err); failure.Kind != "" {
			outcome = string(failure.Kind)
		}
	}

	m.commands.WithLabelValues(command, outcome).Inc()
	m.commandDuration.WithLabelValues(command).Observe(time.Since(startTime).Seconds())
}

func (m *Metrics) observeSession(session *Session) {
	if m == nil {
		return
	}

	m.gateStackDepth.Set(float64(session.Depth()))

	if session.IsCollapsed() {
		m.collapsed.Set(1)
	} else {
		m.collapsed.Set(0)
	}
}

func (m *Metrics) broadcastSent() {
	if m != nil {
		m.broadcastsSent.Inc()
	}
}

func (m *Metrics) broadcastDropped() {
	if m != nil {
		m.broadcastsDropped.Inc()
	}
}

func (m *Metrics) setSubscribers(count int) {
	if m != nil {
		m.subscribers.Set(float64(count))
	}
}

func (m *Metrics) limited() {
	if m != nil {
		m.rateLimited.Inc()
	}
}
