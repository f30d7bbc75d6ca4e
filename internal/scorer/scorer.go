package scorer

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/adkeyword-cli/internal/config"
	"github.com/sells-group/adkeyword-cli/internal/model"
)

// wonPrinter groups thousands in amounts quoted by reasons.
var wonPrinter = message.NewPrinter(language.Korean)

// Result is one scored batch. Empty is set when the table had no
// search-placement rows; the summary is then zero-valued.
type Result struct {
	Recommendations []model.ScoredKeyword `json:"recommendations"`
	Stats           model.BatchStatistics `json:"statistics"`
	Summary         model.BatchSummary    `json:"summary"`
	Empty           bool                  `json:"empty"`
}

// Scorer scores aggregated keyword tables. It holds no per-batch state and is
// safe for concurrent use.
type Scorer struct {
	cfg   config.ScorerConfig
	rules []priorityRule
}

// New creates a Scorer. Zero-valued limits fall back to the defaults.
func New(cfg config.ScorerConfig) *Scorer {
	def := DefaultScorerConfig()
	if cfg.TierMinMembers <= 0 {
		cfg.TierMinMembers = def.TierMinMembers
	}
	if cfg.MaxReasons <= 0 {
		cfg.MaxReasons = def.MaxReasons
	}
	return &Scorer{cfg: cfg, rules: priorityRules(cfg)}
}

// ScoreRecommendations scores a table with the default thresholds. A
// non-positive targetROAS selects DefaultTargetROAS.
func ScoreRecommendations(table model.KeywordTable, targetROAS float64) Result {
	cfg := DefaultScorerConfig()
	if targetROAS > 0 {
		cfg.TargetROAS = targetROAS
	}
	return New(cfg).Score(table)
}

// Score scores the search-placement rows of table against statistics
// computed from those same rows, then sorts by score descending.
func (s *Scorer) Score(table model.KeywordTable) Result {
	return s.ScoreWithTarget(table, s.cfg.TargetROAS)
}

// ScoreWithTarget is Score with a per-call benchmark ROAS.
func (s *Scorer) ScoreWithTarget(table model.KeywordTable, targetROAS float64) Result {
	rows := table.Search()
	stats := BuildStatistics(rows, targetROAS)
	if len(rows) == 0 {
		zap.L().Info("scorer: no search keywords to score",
			zap.Int("table_rows", len(table.Rows)),
		)
		return Result{Recommendations: []model.ScoredKeyword{}, Stats: stats, Empty: true}
	}

	recs := make([]model.ScoredKeyword, len(rows))
	for i := range rows {
		recs[i] = s.scoreRow(rows[i], stats)
	}
	sort.SliceStable(recs, func(i, j int) bool { return recs[i].Score > recs[j].Score })

	summary := Summarize(recs, stats.TotalSpend)

	zap.L().Info("scorer: recommendations generated",
		zap.Int("keywords", len(recs)),
		zap.Int("critical", summary.Critical),
		zap.Int("high", summary.High),
		zap.Int("insufficient_data", summary.InsufficientData),
		zap.Int("avg_score", summary.AvgScore),
		zap.Float64("total_waste", summary.TotalWaste),
		zap.Float64("top_avg_roas", stats.TopAvgROAS),
	)

	return Result{Recommendations: recs, Stats: stats, Summary: summary}
}

// scoreRow computes one keyword's score, priority, reasons and waste.
func (s *Scorer) scoreRow(r model.KeywordRow, stats model.BatchStatistics) model.ScoredKeyword {
	var reasons []string
	addReason := func(reason string) {
		if reason != "" {
			reasons = append(reasons, reason)
		}
	}

	profitability, reason := scoreProfitability(r.Revenue, r.ROAS)
	addReason(reason)

	tier := model.TierOf(r.ROAS)
	efficiency, reason := scoreEfficiency(tier, r.CPC, tierMedianCPC(stats, tier, s.cfg.TierMinMembers))
	addReason(reason)

	scaleRisk, reason := scoreScaleRisk(r.ROAS, r.Spend, spendLevelOf(r.Spend, stats.SpendPercentiles))
	addReason(reason)

	rule, reason := assignPriority(s.rules, ruleInput{
		Spend:    r.Spend,
		Revenue:  r.Revenue,
		ROAS:     r.ROAS,
		CPC:      r.CPC,
		Clicks:   r.Clicks,
		SpendP50: stats.SpendPercentiles.P50,
		SpendP75: stats.SpendPercentiles.P75,
	})
	addReason(reason)

	if len(reasons) > s.cfg.MaxReasons {
		reasons = reasons[:s.cfg.MaxReasons]
	}
	if reasons == nil {
		reasons = []string{}
	}

	waste, wasteRate, opportunityLoss := computeWaste(r.Spend, r.Revenue, r.ROAS, stats.TopAvgROAS)

	return model.ScoredKeyword{
		Keyword:         r.Keyword,
		Placement:       r.Placement,
		Impressions:     r.Impressions,
		Clicks:          r.Clicks,
		Spend:           r.Spend,
		Orders:          r.Orders,
		UnitsSold:       r.UnitsSold,
		Revenue:         r.Revenue,
		CTR:             r.CTR,
		ROAS:            r.ROAS,
		CPC:             r.CPC,
		Score:           profitability + efficiency + scaleRisk,
		Profitability:   profitability,
		Efficiency:      efficiency,
		ScaleRisk:       scaleRisk,
		Priority:        rule.Priority,
		Reasons:         reasons,
		Recommendation:  recommendationText(rule.Priority, reasons),
		Waste:           waste,
		WasteRate:       wasteRate,
		OpportunityLoss: opportunityLoss,
	}
}

// scoreProfitability maps ROAS to 0-50 points, steepest at zero revenue.
func scoreProfitability(revenue, roas float64) (int, string) {
	switch {
	case revenue == 0:
		return 50, "전환 0원"
	case roas < 20:
		return 45, fmt.Sprintf("ROAS %.1f%% (극심한 손실)", roas)
	case roas < 50:
		return 40, fmt.Sprintf("ROAS %.1f%% (심각한 손실)", roas)
	case roas < 100:
		return 35, fmt.Sprintf("ROAS %.1f%% (손실)", roas)
	case roas < 150:
		return 25, fmt.Sprintf("ROAS %.1f%% (낮은 수익)", roas)
	case roas < 200:
		return 15, fmt.Sprintf("ROAS %.1f%% (목표 미달)", roas)
	case roas < 300:
		return 10, fmt.Sprintf("ROAS %.1f%% (목표 근접)", roas)
	default:
		return 0, ""
	}
}

// scoreEfficiency compares CPC with the tier's median CPC for 0-25 points.
// High-ROAS tiers tolerate a larger multiple before they are penalized.
func scoreEfficiency(tier model.Tier, cpc, medianCPC float64) (int, string) {
	ratio := 1.0
	if medianCPC > 0 {
		ratio = cpc / medianCPC
	}

	switch tier {
	case model.TierElite, model.TierHigh:
		switch {
		case ratio > 3.0:
			return 10, fmt.Sprintf("CPC 과다 (%.0f원)", cpc)
		case ratio > 2.5:
			return 5, ""
		default:
			return 0, ""
		}
	case model.TierMid:
		switch {
		case ratio > 2.5:
			return 20, fmt.Sprintf("CPC 높음 (%.0f원)", cpc)
		case ratio > 2.0:
			return 15, ""
		case ratio > 1.5:
			return 10, ""
		default:
			return 0, ""
		}
	default:
		switch {
		case ratio > 2.0:
			return 25, fmt.Sprintf("CPC 과다 (%.0f원)", cpc)
		case ratio > 1.5:
			return 20, ""
		case ratio > 1.2:
			return 15, ""
		default:
			return 5, ""
		}
	}
}

// spendLevel buckets spend against the batch percentiles.
type spendLevel int

const (
	spendLow spendLevel = iota
	spendMedium
	spendHigh
	spendVeryHigh
)

func spendLevelOf(spend float64, p model.Percentiles) spendLevel {
	switch {
	case spend > p.P90:
		return spendVeryHigh
	case spend > p.P75:
		return spendHigh
	case spend > p.P50:
		return spendMedium
	default:
		return spendLow
	}
}

// scoreScaleRisk combines spend level and ROAS band for 0-25 points.
func scoreScaleRisk(roas, spend float64, level spendLevel) (int, string) {
	switch {
	case roas == 0:
		switch level {
		case spendVeryHigh:
			return 25, wonPrinter.Sprintf("고지출 (%.0f원)", spend)
		case spendHigh:
			return 20, "중간 지출"
		case spendMedium:
			return 15, ""
		default:
			return 10, ""
		}
	case roas < 100:
		switch level {
		case spendVeryHigh:
			return 20, wonPrinter.Sprintf("고지출 (%.0f원)", spend)
		case spendHigh:
			return 15, ""
		case spendMedium:
			return 10, ""
		default:
			return 5, ""
		}
	case roas < 200:
		if level >= spendHigh {
			return 10, ""
		}
		return 0, ""
	case roas < 300:
		if level == spendVeryHigh {
			return 5, ""
		}
		return 0, ""
	default:
		return 0, ""
	}
}

// computeWaste returns waste, waste rate and opportunity loss. Zero spend is
// treated as anomalous data rather than loss.
func computeWaste(spend, revenue, roas, topAvgROAS float64) (waste, wasteRate, opportunityLoss float64) {
	if spend == 0 {
		return 0, 0, 0
	}
	if roas < 100 {
		waste = spend - revenue
		wasteRate = 100 - roas
	}
	opportunityLoss = spend*(topAvgROAS/100) - revenue
	return model.Finite(waste), model.Finite(wasteRate), model.Finite(opportunityLoss)
}

// recommendationText joins the priority label with the kept reasons.
func recommendationText(p model.Priority, reasons []string) string {
	return p.Label() + " - " + strings.Join(reasons, ", ")
}
