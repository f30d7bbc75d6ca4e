package main

import (
	"context"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/adkeyword-cli/internal/metrics"
	"github.com/sells-group/adkeyword-cli/internal/pipeline"
	"github.com/sells-group/adkeyword-cli/internal/store"
	anthropicpkg "github.com/sells-group/adkeyword-cli/pkg/anthropic"
)

// analysisEnv holds the pipeline and the resources it was built with.
type analysisEnv struct {
	Store    store.Store // nil unless requested
	Pipeline *pipeline.Pipeline
	Registry *prometheus.Registry
}

// envOptions selects the optional resources initEnv sets up.
type envOptions struct {
	Store    bool
	Insights bool
}

// Close releases resources held by the environment.
func (e *analysisEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initEnv builds the analysis pipeline from the global config. Callers
// should defer env.Close().
func initEnv(ctx context.Context, opts envOptions) (*analysisEnv, error) {
	if err := cfg.Validate("analyze"); err != nil {
		return nil, err
	}

	var st store.Store
	if opts.Store {
		var err error
		st, err = initStore(ctx)
		if err != nil {
			return nil, err
		}
	}

	var ai anthropicpkg.Client
	if opts.Insights {
		if cfg.Anthropic.Key != "" {
			// Retries are handled by the insights generator.
			ai = anthropicpkg.NewClient(cfg.Anthropic.Key, option.WithMaxRetries(0))
		} else {
			zap.L().Debug("ADKEYWORD_ANTHROPIC_KEY not set, insights use the rule-based summary")
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	p, err := pipeline.New(cfg, st, ai, metrics.NewPipelineMetrics(reg))
	if err != nil {
		if st != nil {
			_ = st.Close()
		}
		return nil, err
	}

	return &analysisEnv{Store: st, Pipeline: p, Registry: reg}, nil
}

// initStore opens the configured run store and applies migrations.
func initStore(ctx context.Context) (store.Store, error) {
	if err := cfg.Validate("store"); err != nil {
		return nil, err
	}
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	zap.L().Debug("store opened", zap.String("driver", cfg.Store.Driver))
	return st, nil
}
