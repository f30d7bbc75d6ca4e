package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sells-group/adkeyword-cli/internal/config"
	"github.com/sells-group/adkeyword-cli/internal/pipeline"
	"github.com/sells-group/adkeyword-cli/internal/scorer"
)

const sampleCSV = "키워드,광고 노출 지면,노출수,클릭수,광고비,클릭률,총 주문수(14일),총 전환매출액(14일)\n" +
	"무선 청소기,검색 영역,1000,40,\"40,000\",4%,0,0\n" +
	"로봇청소기,검색 영역,2000,50,\"30,000\",2.5%,5,\"150,000\"\n" +
	"-,비검색 영역,500,5,2000,1%,0,0\n"

// useTestConfig installs a config for the duration of the test.
func useTestConfig(t *testing.T) *config.Config {
	t.Helper()
	prev := cfg
	cfg = &config.Config{
		Store: config.StoreConfig{
			Driver:      "sqlite",
			DatabaseURL: filepath.Join(t.TempDir(), "runs.db"),
		},
		Server: config.ServerConfig{Port: 8080, MaxUploadMB: 10},
		Aggregate: config.AggregateConfig{
			NonSearchMarkers:   []string{"비검색", "non-search"},
			RetargetingMarkers: []string{"리타겟팅", "retargeting"},
		},
		Scorer: scorer.DefaultScorerConfig(),
		Batch:  config.BatchConfig{MaxConcurrentFiles: 2, TimeoutSecs: 30},
	}
	t.Cleanup(func() { cfg = prev })
	return cfg
}

func sampleAnalysis(t *testing.T) *pipeline.Analysis {
	t.Helper()
	p, err := pipeline.New(&config.Config{Scorer: scorer.DefaultScorerConfig()}, nil, nil, nil)
	require.NoError(t, err)
	a, err := p.Analyze(context.Background(), "may.csv", []byte(sampleCSV), pipeline.Options{})
	require.NoError(t, err)
	return a
}
