// Package metrics exposes Prometheus collectors for graph runs and tool
// calls and plugs them into the graph hooks and the tool registry.
package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/hupe1980/payroute/graph"
	"github.com/hupe1980/payroute/tool"
	"github.com/prometheus/client_golang/prometheus"
)

// Namespace prefixes every metric name.
const Namespace = "payroute"

// Metrics bundles the collectors.
type Metrics struct {
	NodeVisits   *prometheus.CounterVec
	NodeDuration *prometheus.HistogramVec
	Runs         *prometheus.CounterVec
	RunDuration  prometheus.Histogram
	ToolCalls    *prometheus.CounterVec
	ToolDuration *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg. A nil reg leaves
// them unregistered.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		NodeVisits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "node_visits_total",
			Help:      "Total number of node executions.",
		}, []string{"node", "status"}),
		NodeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "node_duration_seconds",
			Help:      "Duration of node executions.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"node"}),
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "runs_total",
			Help:      "Total number of graph runs by terminal node.",
		}, []string{"terminal", "status"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of graph runs.",
			Buckets:   prometheus.DefBuckets,
		}),
		ToolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "tool_calls_total",
			Help:      "Total number of tool registry operations.",
		}, []string{"tool", "op", "status"}),
		ToolDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "tool_duration_seconds",
			Help:      "Duration of tool registry operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
	}

	if reg == nil {
		return m, nil
	}

	for _, c := range m.collectors() {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{m.NodeVisits, m.NodeDuration, m.Runs, m.RunDuration, m.ToolCalls, m.ToolDuration}
}

// GraphHooks records node and run metrics.
func GraphHooks[S any](m *Metrics) graph.Hooks[S] {
	return graph.Hooks[S]{
		OnNodeLeave: func(_ context.Context, node string, dur time.Duration, err error) {
			m.NodeVisits.WithLabelValues(node, status(err)).Inc()
			m.NodeDuration.WithLabelValues(node).Observe(dur.Seconds())
		},
		OnRunComplete: func(_ context.Context, trace graph.Trace, err error) {
			terminal := trace.Terminal
			if terminal == "" {
				terminal = "none"
			}
			m.Runs.WithLabelValues(terminal, status(err)).Inc()
			m.RunDuration.Observe(trace.Duration.Seconds())
		},
	}
}

// InstrumentRegistry wraps reg so discoveries and invocations are counted.
func InstrumentRegistry(reg tool.Registry, m *Metrics) tool.Registry {
	return &registry{next: reg, m: m}
}

type registry struct {
	next tool.Registry
	m    *Metrics
}

func (r *registry) Discover(ctx context.Context) ([]tool.Descriptor, error) {
	start := time.Now()
	descs, err := r.next.Discover(ctx)
	r.observe("", tool.OpDiscover, start, err)
	return descs, err
}

func (r *registry) Invoke(ctx context.Context, name string, args map[string]any) (string, error) {
	start := time.Now()
	out, err := r.next.Invoke(ctx, name, args)
	r.observe(name, tool.OpInvoke, start, err)
	return out, err
}

func (r *registry) observe(name, op string, start time.Time, err error) {
	r.m.ToolCalls.WithLabelValues(name, op, toolStatus(err)).Inc()
	r.m.ToolDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// toolStatus uses the ToolError code as status when there is one.
func toolStatus(err error) string {
	var te *tool.ToolError
	if errors.As(err, &te) && te.Code != "" {
		return te.Code
	}
	return status(err)
}
