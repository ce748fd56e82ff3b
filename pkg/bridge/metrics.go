package bridge

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robotalks/strata.go/pkg/status"
)

// Metrics collects bridge traffic counters. A nil *Metrics records nothing.
type Metrics struct {
	Requests *prometheus.CounterVec
	Errors   *prometheus.CounterVec
	Frames   prometheus.Counter
	Dropped  prometheus.Counter
}

// NewMetrics creates the collectors under namespace.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bridge",
			Name:      "requests_total",
			Help:      "Vendor command requests issued.",
		}, []string{"request"}),
		Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bridge",
			Name:      "request_errors_total",
			Help:      "Vendor command requests failed, by error kind.",
		}, []string{"kind"}),
		Frames: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "data",
			Name:      "frames_total",
			Help:      "Frames received from the streaming endpoint.",
		}),
		Dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "data",
			Name:      "frames_dropped_total",
			Help:      "Frames dropped on queue overflow.",
		}),
	}
}

// Describe implements prometheus.Collector.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.Requests.Describe(ch)
	m.Errors.Describe(ch)
	m.Frames.Describe(ch)
	m.Dropped.Describe(ch)
}

// Collect implements prometheus.Collector.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.Requests.Collect(ch)
	m.Errors.Collect(ch)
	m.Frames.Collect(ch)
	m.Dropped.Collect(ch)
}

func (m *Metrics) request(request byte, err error) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(fmt.Sprintf("0x%02x", request)).Inc()
	if err != nil {
		m.Errors.WithLabelValues(status.KindOf(err).String()).Inc()
	}
}

func (m *Metrics) frame() {
	if m != nil {
		m.Frames.Inc()
	}
}

func (m *Metrics) drop() {
	if m != nil {
		m.Dropped.Inc()
	}
}
