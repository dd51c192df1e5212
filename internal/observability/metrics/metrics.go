package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CallMetrics exposes counters/histograms for call bridging and
// booking flows.
type CallMetrics struct {
	callsStarted   *prometheus.CounterVec
	callsClosed    *prometheus.CounterVec
	audioChunks    prometheus.Counter
	bargeIns       prometheus.Counter
	bookings       *prometheus.CounterVec
	bookingLatency prometheus.Histogram
}

func NewCallMetrics(reg prometheus.Registerer) *CallMetrics {
	m := &CallMetrics{
		callsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scheduler",
			Subsystem: "calls",
			Name:      "started_total",
			Help:      "Total call bridges started",
		}, []string{"direction"}),
		callsClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scheduler",
			Subsystem: "calls",
			Name:      "closed_total",
			Help:      "Total call bridges closed",
		}, []string{"direction", "reason"}),
		audioChunks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "scheduler",
			Subsystem: "calls",
			Name:      "audio_chunks_forwarded_total",
			Help:      "Total assistant audio chunks forwarded to callers",
		}),
		bargeIns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "scheduler",
			Subsystem: "calls",
			Name:      "barge_ins_total",
			Help:      "Total caller interruptions of assistant speech",
		}),
		bookings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scheduler",
			Subsystem: "bookings",
			Name:      "attempts_total",
			Help:      "Total booking attempts",
		}, []string{"status"}),
		bookingLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "scheduler",
			Subsystem: "bookings",
			Name:      "latency_seconds",
			Help:      "Latency of booking transactions",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.callsStarted, m.callsClosed, m.audioChunks, m.bargeIns, m.bookings, m.bookingLatency)
	return m
}

func (m *CallMetrics) CallStarted(direction string) {
	if m == nil {
		return
	}
	m.callsStarted.WithLabelValues(direction).Inc()
}

func (m *CallMetrics) CallClosed(direction, reason string) {
	if m == nil {
		return
	}
	m.callsClosed.WithLabelValues(direction, reason).Inc()
}

func (m *CallMetrics) AudioChunkForwarded() {
	if m == nil {
		return
	}
	m.audioChunks.Inc()
}

func (m *CallMetrics) BargeIn() {
	if m == nil {
		return
	}
	m.bargeIns.Inc()
}

func (m *CallMetrics) BookingAttempted(err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "failure"
	}
	m.bookings.WithLabelValues(status).Inc()
	m.bookingLatency.Observe(elapsed.Seconds())
}
