// Package metrics exposes Prometheus collectors for the analysis pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sells-group/adkeyword-cli/internal/model"
)

// Pipeline stages used as the stage label.
const (
	StageParse     = "parse"
	StageAggregate = "aggregate"
	StageScore     = "score"
	StageInsights  = "insights"
	StageExport    = "export"
	StageStore     = "store"
)

// PipelineMetrics records per-batch stage timings and output counts. A nil
// *PipelineMetrics, or one built without a registerer, records nothing.
type PipelineMetrics struct {
	duration        *prometheus.HistogramVec
	keywords        *prometheus.CounterVec
	recommendations *prometheus.CounterVec
	failures        *prometheus.CounterVec
}

// NewPipelineMetrics registers the pipeline metrics on the provided registerer.
func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	if reg == nil {
		return &PipelineMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "adkeyword_batch_duration_seconds",
		Help:    "Duration of pipeline stages per batch in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage"})
	keywords := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "adkeyword_keywords_total",
		Help: "Aggregated keyword rows by placement.",
	}, []string{"placement"})
	recommendations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "adkeyword_recommendations_total",
		Help: "Scored keywords by priority.",
	}, []string{"priority"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "adkeyword_batch_failures_total",
		Help: "Failed batches by pipeline stage.",
	}, []string{"stage"})
	reg.MustRegister(duration, keywords, recommendations, failures)
	return &PipelineMetrics{
		duration:        duration,
		keywords:        keywords,
		recommendations: recommendations,
		failures:        failures,
	}
}

// ObserveStage records how long a stage took.
func (m *PipelineMetrics) ObserveStage(stage string, d time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(normalizeLabel(stage)).Observe(d.Seconds())
}

// Since is ObserveStage measured from start; use with defer.
func (m *PipelineMetrics) Since(stage string, start time.Time) {
	m.ObserveStage(stage, time.Since(start))
}

// RecordTable counts aggregated rows by placement.
func (m *PipelineMetrics) RecordTable(table model.KeywordTable) {
	if m == nil || m.keywords == nil {
		return
	}
	for _, r := range table.Rows {
		m.keywords.WithLabelValues(normalizeLabel(string(r.Placement))).Inc()
	}
}

// RecordRecommendations counts scored keywords by priority.
func (m *PipelineMetrics) RecordRecommendations(recs []model.ScoredKeyword) {
	if m == nil || m.recommendations == nil {
		return
	}
	for _, r := range recs {
		m.recommendations.WithLabelValues(normalizeLabel(string(r.Priority))).Inc()
	}
}

// IncFailure increments the failure counter for the stage.
func (m *PipelineMetrics) IncFailure(stage string) {
	if m == nil || m.failures == nil {
		return
	}
	m.failures.WithLabelValues(normalizeLabel(stage)).Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
