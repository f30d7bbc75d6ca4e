// Package pipeline runs one report through parsing, aggregation, scoring and
// optional insights. It is shared by the CLI commands and the HTTP API.
package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/adkeyword-cli/internal/aggregate"
	"github.com/sells-group/adkeyword-cli/internal/config"
	"github.com/sells-group/adkeyword-cli/internal/insights"
	"github.com/sells-group/adkeyword-cli/internal/metrics"
	"github.com/sells-group/adkeyword-cli/internal/model"
	"github.com/sells-group/adkeyword-cli/internal/report"
	"github.com/sells-group/adkeyword-cli/internal/scorer"
	"github.com/sells-group/adkeyword-cli/internal/store"
	"github.com/sells-group/adkeyword-cli/pkg/anthropic"
)

// Options controls a single analysis.
type Options struct {
	// TargetROAS overrides the configured benchmark when > 0.
	TargetROAS float64
	// Insights requests a narrative summary.
	Insights bool
	// Save persists the analysis as a run; requires a store.
	Save bool
	// Name labels the saved run. Defaults to the source name.
	Name string
}

// Analysis is the full output for one report.
type Analysis struct {
	RunID   string              `json:"run_id,omitempty"`
	Source  string              `json:"source"`
	Table   model.KeywordTable  `json:"table"`
	Report  model.ReportSummary `json:"report_summary"`
	Result  scorer.Result       `json:"result"`
	Insight *insights.Insight   `json:"insights,omitempty"`
}

// Pipeline wires the analysis stages together. It holds no per-report state
// and is safe for concurrent use.
type Pipeline struct {
	loader     *report.Loader
	aggregator *aggregate.Aggregator
	scorer     *scorer.Scorer
	insights   *insights.Generator
	store      store.Store
	metrics    *metrics.PipelineMetrics
}

// New creates a Pipeline. st, ai and m may be nil: saving is then
// unavailable, insights use the rule-based text, and nothing is recorded.
func New(cfg *config.Config, st store.Store, ai anthropic.Client, m *metrics.PipelineMetrics) (*Pipeline, error) {
	if cfg == nil {
		return nil, eris.New("pipeline: nil config")
	}
	if err := scorer.ValidateConfig(cfg.Scorer); err != nil {
		return nil, eris.Wrap(err, "pipeline: scorer config")
	}
	loader, err := report.NewLoader(cfg.Aggregate)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: report loader")
	}
	return &Pipeline{
		loader:     loader,
		aggregator: aggregate.New(cfg.Aggregate),
		scorer:     scorer.New(cfg.Scorer),
		insights:   insights.New(ai, cfg.Anthropic),
		store:      st,
		metrics:    m,
	}, nil
}

// trackStage times fn, records it, and counts a failure when fn errors.
func (p *Pipeline) trackStage(log *zap.Logger, stage string, fn func() error) error {
	start := time.Now()
	err := fn()
	duration := time.Since(start)
	p.metrics.ObserveStage(stage, duration)

	if err != nil {
		p.metrics.IncFailure(stage)
		log.Error("pipeline: stage failed",
			zap.String("stage", stage),
			zap.Int64("duration_ms", duration.Milliseconds()),
			zap.Error(err),
		)
		return err
	}
	log.Debug("pipeline: stage complete",
		zap.String("stage", stage),
		zap.Int64("duration_ms", duration.Milliseconds()),
	)
	return nil
}

// AnalyzeFile reads the report at path and analyzes it.
func (p *Pipeline) AnalyzeFile(ctx context.Context, path string, opts Options) (*Analysis, error) {
	var raw model.RawTable
	log := zap.L().With(zap.String("path", path))
	err := p.trackStage(log, metrics.StageParse, func() error {
		var loadErr error
		raw, loadErr = p.loader.Load(ctx, path)
		return loadErr
	})
	if err != nil {
		return nil, err
	}
	return p.AnalyzeTable(ctx, raw, opts)
}

// Analyze parses an uploaded report held in memory and analyzes it.
func (p *Pipeline) Analyze(ctx context.Context, name string, data []byte, opts Options) (*Analysis, error) {
	raw, err := p.ParseReport(ctx, name, data)
	if err != nil {
		return nil, err
	}
	return p.AnalyzeTable(ctx, raw, opts)
}

// ParseReport runs only the parse stage.
func (p *Pipeline) ParseReport(ctx context.Context, name string, data []byte) (model.RawTable, error) {
	var raw model.RawTable
	err := p.trackStage(zap.L().With(zap.String("source", name)), metrics.StageParse, func() error {
		var parseErr error
		raw, parseErr = p.loader.Parse(ctx, name, data)
		return parseErr
	})
	return raw, err
}

// Aggregate runs only the aggregation stage and summarizes the result.
func (p *Pipeline) Aggregate(raw model.RawTable) (model.KeywordTable, model.ReportSummary, error) {
	var table model.KeywordTable
	err := p.trackStage(zap.L().With(zap.String("source", raw.Source)), metrics.StageAggregate, func() error {
		var aggErr error
		table, aggErr = p.aggregator.Aggregate(raw)
		return aggErr
	})
	if err != nil {
		return model.KeywordTable{}, model.ReportSummary{}, err
	}
	p.metrics.RecordTable(table)
	return table, aggregate.Summarize(table), nil
}

// Score runs only the scoring stage. A non-positive targetROAS uses the
// configured benchmark.
func (p *Pipeline) Score(table model.KeywordTable, targetROAS float64) scorer.Result {
	start := time.Now()
	var res scorer.Result
	if targetROAS > 0 {
		res = p.scorer.ScoreWithTarget(table, targetROAS)
	} else {
		res = p.scorer.Score(table)
	}
	p.metrics.ObserveStage(metrics.StageScore, time.Since(start))
	p.metrics.RecordRecommendations(res.Recommendations)
	return res
}

// AnalyzeTable aggregates, scores and optionally narrates and saves raw.
func (p *Pipeline) AnalyzeTable(ctx context.Context, raw model.RawTable, opts Options) (*Analysis, error) {
	log := zap.L().With(zap.String("source", raw.Source))

	if opts.Save && p.store == nil {
		return nil, eris.New("pipeline: save requested but no store is configured")
	}

	table, summary, err := p.Aggregate(raw)
	if err != nil {
		return nil, err
	}

	a := &Analysis{
		Source: raw.Source,
		Table:  table,
		Report: summary,
		Result: p.Score(table, opts.TargetROAS),
	}

	if opts.Insights {
		start := time.Now()
		in := p.insights.Generate(ctx, a.Result)
		p.metrics.ObserveStage(metrics.StageInsights, time.Since(start))
		a.Insight = &in
	}

	if opts.Save {
		err := p.trackStage(log, metrics.StageStore, func() error {
			run, saveErr := p.Save(ctx, a, opts.Name)
			if saveErr != nil {
				return saveErr
			}
			a.RunID = run.ID
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	log.Info("pipeline: analysis complete",
		zap.Int("keywords", len(a.Result.Recommendations)),
		zap.Int("to_exclude", a.Result.Summary.KeywordsToExclude),
		zap.Float64("potential_savings_pct", a.Result.Summary.PotentialSavings),
		zap.Bool("empty", a.Result.Empty),
		zap.String("run_id", a.RunID),
	)
	return a, nil
}

// Save persists an analysis as a run.
func (p *Pipeline) Save(ctx context.Context, a *Analysis, name string) (*model.Run, error) {
	if p.store == nil {
		return nil, eris.New("pipeline: no store configured")
	}
	if name == "" {
		name = a.Source
	}
	run := &model.Run{
		Name:            name,
		Source:          a.Source,
		TargetROAS:      a.Result.Stats.TargetROAS,
		Report:          a.Report,
		Summary:         a.Result.Summary,
		Recommendations: a.Result.Recommendations,
	}
	if a.Insight != nil {
		run.Insights = a.Insight.Text
	}
	if err := p.store.SaveRun(ctx, run); err != nil {
		return nil, eris.Wrap(err, "pipeline: save run")
	}
	return run, nil
}

// ResultOf rebuilds the exportable part of a scored batch from a saved run.
// Batch statistics other than the target are not persisted.
func ResultOf(run *model.Run) scorer.Result {
	return scorer.Result{
		Recommendations: run.Recommendations,
		Stats:           model.BatchStatistics{TargetROAS: run.TargetROAS},
		Summary:         run.Summary,
		Empty:           len(run.Recommendations) == 0,
	}
}

// Store returns the configured run store, or nil.
func (p *Pipeline) Store() store.Store {
	return p.store
}
