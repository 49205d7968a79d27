package poll

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rileyhilliard/teleop/internal/pipeline"
	"github.com/rileyhilliard/teleop/internal/render"
)

// Metrics exports poll loop activity. A nil *Metrics records nothing.
type Metrics struct {
	cycles       prometheus.Counter
	failures     *prometheus.CounterVec
	cycleSeconds prometheus.Histogram
	backlog      *prometheus.GaugeVec
	nodes        *prometheus.GaugeVec
}

// NewMetrics registers the collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		cycles: f.NewCounter(prometheus.CounterOpts{
			Name: "teleop_poll_cycles_total",
			Help: "Completed poll cycles.",
		}),
		failures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "teleop_poll_failures_total",
			Help: "Sessions ended by a failure, by kind.",
		}, []string{"kind"}),
		cycleSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "teleop_poll_cycle_seconds",
			Help:    "Time to fetch, render and publish one snapshot.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
		backlog: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "teleop_edge_backlog",
			Help: "Records written by the tail port and not yet read by the head port.",
		}, []string{"pid", "tail", "head"}),
		nodes: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "teleop_nodes",
			Help: "Nodes per execution state in the latest snapshot.",
		}, []string{"pid", "state"}),
	}
}

func (m *Metrics) observeCycle(pid int, topo pipeline.Topology, snap pipeline.Snapshot, took time.Duration) {
	if m == nil {
		return
	}
	m.cycles.Inc()
	m.cycleSeconds.Observe(took.Seconds())

	p := strconv.Itoa(pid)
	for state, n := range pipeline.StateCounts(snap) {
		m.nodes.WithLabelValues(p, state).Set(float64(n))
	}
	for _, e := range topo.Edges {
		if backlog, ok := render.FlowOf(e, snap).Backlog(); ok {
			m.backlog.WithLabelValues(p, string(e.Tail), string(e.Head)).Set(float64(backlog))
		}
	}
}

func (m *Metrics) observeFailure(kind string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(kind).Inc()
}

// Forget drops the per-process series of pid.
func (m *Metrics) Forget(pid int) {
	if m == nil {
		return
	}
	labels := prometheus.Labels{"pid": strconv.Itoa(pid)}
	m.backlog.DeletePartialMatch(labels)
	m.nodes.DeletePartialMatch(labels)
}
