package model

// Priority is the exclusion urgency assigned to a scored keyword.
type Priority string

const (
	PriorityCritical         Priority = "critical"
	PriorityHigh             Priority = "high"
	PriorityMedium           Priority = "medium"
	PriorityLow              Priority = "low"
	PriorityInsufficientData Priority = "insufficient_data"
)

// priorityLabels maps each priority to its action label in the report.
var priorityLabels = map[Priority]string{
	PriorityCritical:         "즉시 제외",
	PriorityHigh:             "조속히 제외",
	PriorityMedium:           "검토 필요",
	PriorityLow:              "모니터링",
	PriorityInsufficientData: "데이터 부족",
}

// Label returns the human-readable action label.
func (p Priority) Label() string {
	if l, ok := priorityLabels[p]; ok {
		return l
	}
	return string(p)
}

// Actionable reports whether the priority carries an exclusion recommendation.
func (p Priority) Actionable() bool {
	return p != "" && p != PriorityInsufficientData
}

// Priorities lists the actionable tiers from most to least urgent.
var Priorities = []Priority{PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow}

// ScoredKeyword is the per-keyword recommendation.
type ScoredKeyword struct {
	Keyword     string    `json:"keyword"`
	Placement   Placement `json:"placement"`
	Impressions int64     `json:"impressions"`
	Clicks      int64     `json:"clicks"`
	Spend       float64   `json:"spend"`
	Orders      int64     `json:"orders"`
	UnitsSold   int64     `json:"units_sold"`
	Revenue     float64   `json:"revenue"`
	CTR         float64   `json:"ctr"`
	ROAS        float64   `json:"roas"`
	CPC         float64   `json:"cpc"`

	Score           int      `json:"score"`
	Profitability   int      `json:"profitability"`
	Efficiency      int      `json:"efficiency"`
	ScaleRisk       int      `json:"scale_risk"`
	Priority        Priority `json:"priority"`
	Reasons         []string `json:"reasons"`
	Recommendation  string   `json:"recommendation"`
	Waste           float64  `json:"waste"`
	WasteRate       float64  `json:"waste_rate"`
	OpportunityLoss float64  `json:"opportunity_loss"`
}

// Percentiles holds the quartiles and 90th percentile of a column.
type Percentiles struct {
	P25 float64 `json:"p25"`
	P50 float64 `json:"p50"`
	P75 float64 `json:"p75"`
	P90 float64 `json:"p90"`
}

// Tier is a ROAS performance band.
type Tier string

const (
	TierElite Tier = "elite"
	TierHigh  Tier = "high"
	TierMid   Tier = "mid"
	TierLow   Tier = "low"
)

// TierOf places a ROAS percentage into its performance tier.
func TierOf(roas float64) Tier {
	switch {
	case roas >= 500:
		return TierElite
	case roas >= 300:
		return TierHigh
	case roas >= 150:
		return TierMid
	default:
		return TierLow
	}
}

// TierStat summarizes one performance tier.
type TierStat struct {
	Count     int     `json:"count"`
	MedianCPC float64 `json:"median_cpc"`
	P75CPC    float64 `json:"p75_cpc"`
	AvgROAS   float64 `json:"avg_roas"`
}

// BatchStatistics is the distributional context every row is scored against.
type BatchStatistics struct {
	Rows             int               `json:"rows"`
	TotalSpend       float64           `json:"total_spend"`
	TotalRevenue     float64           `json:"total_revenue"`
	AvgROAS          float64           `json:"avg_roas"`
	TargetROAS       float64           `json:"target_roas"`
	MedianCPC        float64           `json:"median_cpc"`
	MedianCTR        float64           `json:"median_ctr"`
	CPCPercentiles   Percentiles       `json:"cpc_percentiles"`
	SpendPercentiles Percentiles       `json:"spend_percentiles"`
	TierStats        map[Tier]TierStat `json:"tier_stats"`
	TopPerformers    int               `json:"top_performers"`
	TopAvgROAS       float64           `json:"top_avg_roas"`
}

// BatchSummary reduces a scored batch to totals and tier counts.
type BatchSummary struct {
	TotalSpend           float64 `json:"total_spend"`
	TotalWaste           float64 `json:"total_waste"`
	TotalOpportunityLoss float64 `json:"total_opportunity_loss"`
	KeywordsToExclude    int     `json:"keywords_to_exclude"`
	PotentialSavings     float64 `json:"potential_savings"`
	Critical             int     `json:"critical_priority"`
	High                 int     `json:"high_priority"`
	Medium               int     `json:"medium_priority"`
	Low                  int     `json:"low_priority"`
	InsufficientData     int     `json:"insufficient_data"`
	AvgScore             int     `json:"avg_score"`
}

// ReportSummary holds report-wide totals over every aggregated row,
// placement buckets included.
type ReportSummary struct {
	Rows             int     `json:"rows"`
	TotalSpend       float64 `json:"total_spend"`
	TotalRevenue     float64 `json:"total_revenue"`
	AvgROAS          float64 `json:"avg_roas"`
	TotalClicks      int64   `json:"total_clicks"`
	AvgCTR           float64 `json:"avg_ctr"`
	TotalImpressions int64   `json:"total_impressions"`
	TotalOrders      int64   `json:"total_orders"`
	TotalUnitsSold   int64   `json:"total_units_sold"`
}
