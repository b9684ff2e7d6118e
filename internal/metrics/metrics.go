// Package metrics records pipeline runs in a Prometheus registry. A
// one-shot process has nothing to scrape, so the registry is written to
// a textfile for node_exporter's textfile collector.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/marcelocantos/pipe/internal/pipeline"
	"github.com/marcelocantos/pipe/internal/proc"
)

// Outcome kinds used as the "kind" label.
const (
	KindSuccess    = "success"
	KindFailure    = "failure"
	KindNotFound   = "not_found"
	KindNotExec    = "not_executable"
	KindBrokenPipe = "broken_pipe"
	KindSignaled   = "signaled"
)

// Metrics implements pipeline.Observer.
type Metrics struct {
	registry *prometheus.Registry

	StagesLaunched   prometheus.Counter
	StageOutcomes    *prometheus.CounterVec
	PipelineDuration prometheus.Histogram
	PipelineStages   prometheus.Gauge
	AggregateCode    prometheus.Gauge
}

var _ pipeline.Observer = (*Metrics)(nil)

// New creates the collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		StagesLaunched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pipe",
			Name:      "stages_launched_total",
			Help:      "Stages for which a process was started or attempted.",
		}),
		StageOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pipe",
			Name:      "stage_outcomes_total",
			Help:      "Completed stages by outcome kind.",
		}, []string{"kind"}),
		PipelineDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "pipe",
			Name:      "pipeline_duration_seconds",
			Help:      "Wall time from pipe allocation to the last reaped stage.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
		PipelineStages: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "pipe",
			Name:      "pipeline_stages",
			Help:      "Number of stages in the last pipeline.",
		}),
		AggregateCode: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "pipe",
			Name:      "aggregate_exit_code",
			Help:      "Aggregate exit code of the last pipeline.",
		}),
	}
	m.registry.MustRegister(m.StagesLaunched, m.StageOutcomes, m.PipelineDuration, m.PipelineStages, m.AggregateCode)
	return m
}

func (m *Metrics) StageLaunched(proc.Record) {
	m.StagesLaunched.Inc()
}

func (m *Metrics) StageDone(rec proc.Record) {
	m.StageOutcomes.WithLabelValues(Kind(rec.Outcome)).Inc()
}

func (m *Metrics) PipelineDone(res *pipeline.Result) {
	m.PipelineDuration.Observe(res.Duration.Seconds())
	m.PipelineStages.Set(float64(len(res.Records)))
	m.AggregateCode.Set(float64(res.Code))
}

// WriteTextfile writes the registry to path atomically.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}

// Kind classifies an outcome for the "kind" label.
func Kind(o proc.Outcome) string {
	switch {
	case o.State == proc.Signaled && proc.EffectiveCode(o) == 0:
		return KindBrokenPipe
	case o.State == proc.Signaled:
		return KindSignaled
	case o.Code == 0:
		return KindSuccess
	case o.Code == proc.CodeNotFound:
		return KindNotFound
	case o.Code == proc.CodeNotExecutable:
		return KindNotExec
	default:
		return KindFailure
	}
}
