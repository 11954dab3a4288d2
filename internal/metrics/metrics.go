// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/yugeshweb/AquaFlow/internal/logic"
	"github.com/yugeshweb/AquaFlow/internal/pulse"
)

const namespace = "aquaflow"

// Result label values.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Metrics groups the daemon's collectors.
type Metrics struct {
	Pulses        *prometheus.CounterVec
	Rate          *prometheus.GaugeVec
	Liters        *prometheus.CounterVec
	Publishes     *prometheus.CounterVec
	Fetches       *prometheus.CounterVec
	StoreDuration *prometheus.HistogramVec
	Actuator      prometheus.Gauge
	Leak          prometheus.Gauge
	Cycles        prometheus.Counter
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Pulses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pulses_total",
			Help:      "Sensor pulses drained per channel.",
		}, []string{"channel"}),
		Rate: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "flow_rate_lpm",
			Help:      "Latest flow rate per channel in liters per minute.",
		}, []string{"channel"}),
		Liters: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "volume_liters_total",
			Help:      "Volume measured per channel since startup.",
		}, []string{"channel"}),
		Publishes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publishes_total",
			Help:      "Rate publishes to the remote store by channel and result.",
		}, []string{"channel", "result"}),
		Fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "command_fetches_total",
			Help:      "Command fetches from the remote store by result.",
		}, []string{"result"}),
		StoreDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_call_duration_seconds",
			Help:      "Duration of remote store calls.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"op"}),
		Actuator: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "relay_energized",
			Help:      "1 when the pump relay is energized.",
		}),
		Leak: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "leak_suspected",
			Help:      "1 when flow1 and flow2 disagree by the leak tolerance or more.",
		}),
		Cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Control loop cycles run.",
		}),
	}

	reg.MustRegister(m.Pulses, m.Rate, m.Liters, m.Publishes, m.Fetches,
		m.StoreDuration, m.Actuator, m.Leak, m.Cycles)
	return m
}

// ObserveSample records one drained window.
func (m *Metrics) ObserveSample(s logic.RateSample, liters float64) {
	ch := s.Channel.String()
	m.Pulses.WithLabelValues(ch).Add(float64(s.Count))
	m.Rate.WithLabelValues(ch).Set(s.Rate)
	if liters > 0 {
		m.Liters.WithLabelValues(ch).Add(liters)
	}
}

// ObservePublish records the outcome of one publish.
func (m *Metrics) ObservePublish(ch pulse.Channel, took time.Duration, err error) {
	m.Publishes.WithLabelValues(ch.String(), result(err)).Inc()
	m.StoreDuration.WithLabelValues("publish").Observe(took.Seconds())
}

// ObserveFetch records the outcome of one command fetch.
func (m *Metrics) ObserveFetch(took time.Duration, err error) {
	m.Fetches.WithLabelValues(result(err)).Inc()
	m.StoreDuration.WithLabelValues("fetch").Observe(took.Seconds())
}

// SetActuator exports the relay state.
func (m *Metrics) SetActuator(state logic.ActuatorState) {
	m.Actuator.Set(boolGauge(state.Energized()))
}

// SetLeak exports the leak indicator.
func (m *Metrics) SetLeak(leak bool) {
	m.Leak.Set(boolGauge(leak))
}

func result(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultOK
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
