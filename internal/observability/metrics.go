package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dusk-indust/newsroom/internal/actor"
	"github.com/dusk-indust/newsroom/internal/protocol"
)

// Metrics records pipeline and actor runtime metrics on a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	liveUnits     *prometheus.GaugeVec
	spawned       *prometheus.CounterVec
	deadLetters   *prometheus.CounterVec
	stageOutcomes *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	runs          *prometheus.CounterVec
}

var _ actor.Observer = (*Metrics)(nil)

// NewMetrics creates and registers the newsroom collectors together with the
// Go runtime and process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		liveUnits: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "newsroom",
			Name:      "actor_live_units",
			Help:      "Units currently alive, by kind.",
		}, []string{"kind"}),
		spawned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "newsroom",
			Name:      "actor_spawned_total",
			Help:      "Units spawned, by kind.",
		}, []string{"kind"}),
		deadLetters: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "newsroom",
			Name:      "actor_dead_letters_total",
			Help:      "Messages addressed to units that no longer exist, by target kind.",
		}, []string{"kind"}),
		stageOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "newsroom",
			Name:      "stage_results_total",
			Help:      "Completed pipeline stages, by stage and status.",
		}, []string{"stage", "status"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "newsroom",
			Name:      "stage_duration_seconds",
			Help:      "Wall time from stage start to its result.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80, 120, 240},
		}, []string{"stage"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "newsroom",
			Name:      "runs_total",
			Help:      "Finished pipeline runs, by outcome.",
		}, []string{"outcome"}),
	}
	reg.MustRegister(
		m.liveUnits, m.spawned, m.deadLetters,
		m.stageOutcomes, m.stageDuration, m.runs,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) Spawned(kind actor.Kind) {
	if m == nil {
		return
	}
	m.spawned.WithLabelValues(string(kind)).Inc()
	m.liveUnits.WithLabelValues(string(kind)).Inc()
}

func (m *Metrics) Terminated(kind actor.Kind) {
	if m == nil {
		return
	}
	m.liveUnits.WithLabelValues(string(kind)).Dec()
}

func (m *Metrics) DeadLetter(kind actor.Kind) {
	if m == nil {
		return
	}
	m.deadLetters.WithLabelValues(string(kind)).Inc()
}

// StageCompleted records the outcome and duration of one stage.
func (m *Metrics) StageCompleted(stage protocol.Stage, status protocol.Status, d time.Duration) {
	if m == nil {
		return
	}
	m.stageOutcomes.WithLabelValues(string(stage), string(status)).Inc()
	m.stageDuration.WithLabelValues(string(stage)).Observe(d.Seconds())
}

// RunFinished records a finished run. outcome is "success", "error" or
// "timeout".
func (m *Metrics) RunFinished(outcome string) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(outcome).Inc()
}
