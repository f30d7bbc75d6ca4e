package scorer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/adkeyword-cli/internal/config"
)

func TestDefaultScorerConfigIsValid(t *testing.T) {
	cfg := DefaultScorerConfig()
	require.NoError(t, ValidateConfig(cfg))
	assert.InDelta(t, 400, cfg.TargetROAS, 0.001)
	assert.InDelta(t, 5000, cfg.MinSpend, 0.001)
	assert.Equal(t, int64(10), cfg.MinClicks)
	assert.Equal(t, 3, cfg.MaxReasons)
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *config.ScorerConfig)
		wantErr string
	}{
		{"negative target", func(c *config.ScorerConfig) { c.TargetROAS = -1 }, "target_roas"},
		{"negative min spend", func(c *config.ScorerConfig) { c.MinSpend = -5 }, "min_spend"},
		{"inverted cpc", func(c *config.ScorerConfig) { c.CPCVeryHigh = 100 }, "cpc_very_high"},
		{"inverted clicks", func(c *config.ScorerConfig) { c.ClicksCritical = 5 }, "clicks_critical"},
		{"zero tier members", func(c *config.ScorerConfig) { c.TierMinMembers = 0 }, "tier_min_members"},
		{"zero reasons", func(c *config.ScorerConfig) { c.MaxReasons = 0 }, "max_reasons"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultScorerConfig()
			tt.mutate(&cfg)
			err := ValidateConfig(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewFillsZeroLimits(t *testing.T) {
	s := New(config.ScorerConfig{TargetROAS: 300})
	assert.Equal(t, 3, s.cfg.TierMinMembers)
	assert.Equal(t, 3, s.cfg.MaxReasons)
	assert.InDelta(t, 300, s.cfg.TargetROAS, 0.001)
}
