// Package metrics exposes client-side counters for control and data plane
// activity as Prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rjboer/GoWSA/internal/wsaerr"
)

const namespace = "wsa"

// Metrics implements prometheus.Collector. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	exchanges        *prometheus.CounterVec
	exchangeDuration *prometheus.HistogramVec
	packets          *prometheus.CounterVec
	samples          prometheus.Counter
	decodeErrors     *prometheus.CounterVec
	packetGaps       prometheus.Counter
	drainedBytes     prometheus.Counter
	sweepTransitions *prometheus.CounterVec
}

// New builds the collectors.
func New() *Metrics {
	return &Metrics{
		exchanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "control",
			Name:      "exchanges_total",
			Help:      "Control-plane commands and queries by result.",
		}, []string{"kind", "result"}),
		exchangeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "control",
			Name:      "exchange_duration_seconds",
			Help:      "Latency of control-plane commands and queries.",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"kind"}),
		packets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "data",
			Name:      "packets_total",
			Help:      "Decoded data-plane packets by stream kind.",
		}, []string{"kind"}),
		samples: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "data",
			Name:      "iq_samples_total",
			Help:      "IQ sample pairs decoded.",
		}),
		decodeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "data",
			Name:      "decode_errors_total",
			Help:      "Packet decode failures by status code.",
		}, []string{"code"}),
		packetGaps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "data",
			Name:      "packet_count_gaps_total",
			Help:      "Discontinuities in the IF data packet counter.",
		}),
		drainedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "data",
			Name:      "drained_bytes_total",
			Help:      "Bytes discarded while draining the data socket.",
		}),
		sweepTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "transitions_total",
			Help:      "Sweep list start, stop and resume requests by result.",
		}, []string{"transition", "result"}),
	}
}

// Describe implements prometheus.Collector.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.exchanges.Describe(ch)
	m.exchangeDuration.Describe(ch)
	m.packets.Describe(ch)
	m.samples.Describe(ch)
	m.decodeErrors.Describe(ch)
	m.packetGaps.Describe(ch)
	m.drainedBytes.Describe(ch)
	m.sweepTransitions.Describe(ch)
}

// Collect implements prometheus.Collector.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.exchanges.Collect(ch)
	m.exchangeDuration.Collect(ch)
	m.packets.Collect(ch)
	m.samples.Collect(ch)
	m.decodeErrors.Collect(ch)
	m.packetGaps.Collect(ch)
	m.drainedBytes.Collect(ch)
	m.sweepTransitions.Collect(ch)
}

func result(err error) string {
	if err == nil {
		return "ok"
	}
	return wsaerr.KindOf(err).String()
}

// ObserveExchange records one control-plane exchange.
func (m *Metrics) ObserveExchange(kind string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.exchanges.WithLabelValues(kind, result(err)).Inc()
	m.exchangeDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

// ObservePacket records a decoded packet.
func (m *Metrics) ObservePacket(kind string, samples int) {
	if m == nil {
		return
	}
	m.packets.WithLabelValues(kind).Inc()
	if samples > 0 {
		m.samples.Add(float64(samples))
	}
}

// ObserveDecodeError records a failed packet decode.
func (m *Metrics) ObserveDecodeError(err error) {
	if m == nil || err == nil {
		return
	}
	m.decodeErrors.WithLabelValues(wsaerr.CodeOf(err).String()).Inc()
}

// ObserveGap records a packet counter discontinuity.
func (m *Metrics) ObserveGap() {
	if m == nil {
		return
	}
	m.packetGaps.Inc()
}

// ObserveDrain records bytes discarded by a drain.
func (m *Metrics) ObserveDrain(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.drainedBytes.Add(float64(n))
}

// ObserveSweep records a sweep transition request.
func (m *Metrics) ObserveSweep(transition string, err error) {
	if m == nil {
		return
	}
	m.sweepTransitions.WithLabelValues(transition, result(err)).Inc()
}
