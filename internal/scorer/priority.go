package scorer

import (
	"fmt"

	"github.com/sells-group/adkeyword-cli/internal/config"
	"github.com/sells-group/adkeyword-cli/internal/model"
)

// ruleInput is everything a priority rule may look at.
type ruleInput struct {
	Spend   float64
	Revenue float64
	ROAS    float64
	CPC     float64
	Clicks  int64

	SpendP50 float64
	SpendP75 float64
}

// priorityRule is one predicate→outcome pair of the priority cascade.
type priorityRule struct {
	Name     string
	When     func(in ruleInput) bool
	Priority model.Priority
	// Reason renders the reason fragment; nil rules add none.
	Reason func(in ruleInput) string
}

// priorityRules builds the ordered cascade. The first matching rule wins.
func priorityRules(cfg config.ScorerConfig) []priorityRule {
	return []priorityRule{
		{
			Name:     "insufficient_data",
			When:     func(in ruleInput) bool { return in.Spend < cfg.MinSpend && in.Clicks < cfg.MinClicks },
			Priority: model.PriorityInsufficientData,
			Reason:   func(ruleInput) string { return "데이터 부족" },
		},
		{
			Name:     "high_cpc_loss",
			When:     func(in ruleInput) bool { return in.CPC >= cfg.CPCCritical && in.ROAS < 100 },
			Priority: model.PriorityCritical,
			Reason:   func(in ruleInput) string { return fmt.Sprintf("고CPC(%.0f원) + 저ROAS", in.CPC) },
		},
		{
			Name:     "very_high_cpc_low_roas",
			When:     func(in ruleInput) bool { return in.CPC >= cfg.CPCVeryHigh && in.ROAS < 200 },
			Priority: model.PriorityCritical,
			Reason:   func(in ruleInput) string { return fmt.Sprintf("초고CPC(%.0f원) + 저ROAS", in.CPC) },
		},
		{
			Name:     "no_conversion_critical",
			When:     func(in ruleInput) bool { return in.Revenue == 0 && in.Clicks >= cfg.ClicksCritical },
			Priority: model.PriorityCritical,
			Reason:   clicksWithoutConversion,
		},
		{
			Name:     "no_conversion_high",
			When:     func(in ruleInput) bool { return in.Revenue == 0 && in.Clicks >= cfg.ClicksHigh },
			Priority: model.PriorityHigh,
			Reason:   clicksWithoutConversion,
		},
		{
			Name:     "no_conversion",
			When:     func(in ruleInput) bool { return in.Revenue == 0 },
			Priority: model.PriorityMedium,
			Reason:   func(ruleInput) string { return "전환없음 검토" },
		},
		{
			Name:     "loss_high_spend",
			When:     func(in ruleInput) bool { return in.ROAS < 100 && in.Spend >= in.SpendP75 },
			Priority: model.PriorityCritical,
			Reason:   func(ruleInput) string { return "저ROAS + 고지출" },
		},
		{
			Name:     "loss_mid_spend",
			When:     func(in ruleInput) bool { return in.ROAS < 100 && in.Spend >= in.SpendP50 },
			Priority: model.PriorityHigh,
			Reason:   func(ruleInput) string { return "저ROAS + 중지출" },
		},
		{
			Name:     "loss",
			When:     func(in ruleInput) bool { return in.ROAS < 100 },
			Priority: model.PriorityMedium,
		},
		{
			Name:     "weak_high_spend",
			When:     func(in ruleInput) bool { return in.ROAS < 200 && in.Spend >= in.SpendP75 },
			Priority: model.PriorityHigh,
			Reason:   func(ruleInput) string { return "저조ROAS + 고지출" },
		},
		{
			Name:     "weak",
			When:     func(in ruleInput) bool { return in.ROAS < 200 },
			Priority: model.PriorityMedium,
		},
		{
			Name:     "below_target",
			When:     func(in ruleInput) bool { return in.ROAS < 300 },
			Priority: model.PriorityMedium,
			Reason:   func(ruleInput) string { return "ROAS 개선필요" },
		},
		{
			Name:     "healthy",
			When:     func(ruleInput) bool { return true },
			Priority: model.PriorityLow,
		},
	}
}

func clicksWithoutConversion(in ruleInput) string {
	return fmt.Sprintf("%d클릭 전환없음", in.Clicks)
}

// assignPriority evaluates rules top to bottom and returns the first match.
// The returned reason is empty when the matching rule adds none.
func assignPriority(rules []priorityRule, in ruleInput) (priorityRule, string) {
	for _, r := range rules {
		if !r.When(in) {
			continue
		}
		if r.Reason == nil {
			return r, ""
		}
		return r, r.Reason(in)
	}
	// Unreachable while the cascade ends in a catch-all.
	return priorityRule{Name: "healthy", Priority: model.PriorityLow}, ""
}
