// Package metrics exposes Prometheus collectors for the agent runtime.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "aitokamak"

// Metrics holds the runtime collectors on a private registry.
type Metrics struct {
	reg *prometheus.Registry

	runs          *prometheus.CounterVec
	runDuration   prometheus.Histogram
	iterations    prometheus.Histogram
	toolCalls     *prometheus.CounterVec
	llmRequests   *prometheus.CounterVec
	llmTokens     *prometheus.CounterVec
	reviews       *prometheus.CounterVec
	busDropped    *prometheus.CounterVec
	schedulerRuns *prometheus.CounterVec
}

// New creates the collectors and registers them, along with the Go and
// process collectors, on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		reg: reg,
		runs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "agent",
			Name:      "runs_total",
			Help:      "Agent loop runs by terminal outcome.",
		}, []string{"outcome"}),
		runDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "agent",
			Name:      "run_duration_seconds",
			Help:      "Wall time of one agent loop run.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 80},
		}),
		iterations: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "agent",
			Name:      "iterations",
			Help:      "LLM calls made per agent loop run.",
			Buckets:   prometheus.LinearBuckets(1, 1, 10),
		}),
		toolCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tools",
			Name:      "calls_total",
			Help:      "Tool executions by tool and result.",
		}, []string{"tool", "result"}),
		llmRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "requests_total",
			Help:      "Provider chat calls by model and result.",
		}, []string{"model", "result"}),
		llmTokens: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "tokens_total",
			Help:      "Tokens reported by the provider.",
		}, []string{"model", "direction"}),
		reviews: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "agent",
			Name:      "reviews_total",
			Help:      "Korean review passes by whether the revision was kept.",
		}, []string{"result"}),
		busDropped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bus",
			Name:      "outbound_dropped_total",
			Help:      "Outbound messages dropped because the queue was full.",
		}, []string{"channel"}),
		schedulerRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "executions_total",
			Help:      "Scheduled task executions by payload kind and status.",
		}, []string{"kind", "status"}),
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// TrackSessions exports a gauge that reads the live session count.
func (m *Metrics) TrackSessions(count func() int) {
	promauto.With(m.reg).NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "session",
		Name:      "active",
		Help:      "Sessions currently held in memory.",
	}, func() float64 { return float64(count()) })
}

// RunFinished records one agent loop run.
func (m *Metrics) RunFinished(outcome string, iterations int, elapsed time.Duration) {
	m.runs.WithLabelValues(outcome).Inc()
	m.iterations.Observe(float64(iterations))
	m.runDuration.Observe(elapsed.Seconds())
}

// ToolCalled records one tool execution.
func (m *Metrics) ToolCalled(name string, failed bool) {
	m.toolCalls.WithLabelValues(name, result(failed)).Inc()
}

// LLMRequest records one provider call.
func (m *Metrics) LLMRequest(model string, failed bool, inputTokens, outputTokens int) {
	m.llmRequests.WithLabelValues(model, result(failed)).Inc()
	m.llmTokens.WithLabelValues(model, "input").Add(float64(inputTokens))
	m.llmTokens.WithLabelValues(model, "output").Add(float64(outputTokens))
}

// ReviewFinished records a Korean review pass.
func (m *Metrics) ReviewFinished(accepted bool) {
	if accepted {
		m.reviews.WithLabelValues("accepted").Inc()
	} else {
		m.reviews.WithLabelValues("rejected").Inc()
	}
}

// OutboundDropped records a message dropped by the bus.
func (m *Metrics) OutboundDropped(channel string) {
	m.busDropped.WithLabelValues(channel).Inc()
}

// TaskExecuted records a scheduler execution.
func (m *Metrics) TaskExecuted(kind string, failed bool) {
	m.schedulerRuns.WithLabelValues(kind, result(failed)).Inc()
}

func result(failed bool) string {
	if failed {
		return "error"
	}
	return "ok"
}
