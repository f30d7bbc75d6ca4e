// Package scorer ranks aggregated keywords for exclusion from future ad spend.
package scorer

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/adkeyword-cli/internal/config"
)

// DefaultTargetROAS is the benchmark ROAS, in percent, used when the caller
// supplies none.
const DefaultTargetROAS = 400

// DefaultScorerConfig returns a config.ScorerConfig with the standard
// exclusion thresholds.
func DefaultScorerConfig() config.ScorerConfig {
	return config.ScorerConfig{
		TargetROAS: DefaultTargetROAS,

		// Below both of these a keyword has too little data to judge.
		MinSpend:  5000,
		MinClicks: 10,

		// CPC in won.
		CPCCritical: 500,
		CPCVeryHigh: 800,

		// Clicks without a single conversion.
		ClicksCritical: 30,
		ClicksHigh:     15,

		TierMinMembers: 3,
		MaxReasons:     3,
	}
}

// ValidateConfig checks that a ScorerConfig is internally consistent.
func ValidateConfig(c config.ScorerConfig) error {
	var errs []string

	if c.TargetROAS < 0 {
		errs = append(errs, "target_roas must be >= 0")
	}
	if c.MinSpend < 0 {
		errs = append(errs, "min_spend must be >= 0")
	}
	if c.MinClicks < 0 {
		errs = append(errs, "min_clicks must be >= 0")
	}

	// CPC thresholds.
	if c.CPCCritical < 0 || c.CPCVeryHigh < 0 {
		errs = append(errs, "cpc thresholds must be >= 0")
	}
	if c.CPCVeryHigh < c.CPCCritical {
		errs = append(errs, fmt.Sprintf("cpc_very_high (%.0f) must be >= cpc_critical (%.0f)", c.CPCVeryHigh, c.CPCCritical))
	}

	// Click thresholds.
	if c.ClicksHigh < 0 {
		errs = append(errs, "clicks_high must be >= 0")
	}
	if c.ClicksCritical < c.ClicksHigh {
		errs = append(errs, "clicks_critical must be >= clicks_high")
	}

	if c.TierMinMembers < 1 {
		errs = append(errs, "tier_min_members must be >= 1")
	}
	if c.MaxReasons < 1 {
		errs = append(errs, "max_reasons must be >= 1")
	}

	if len(errs) > 0 {
		return eris.Errorf("scorer: config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
