// Package model defines the keyword report, recommendation, and run types
// shared by the aggregation and scoring pipelines.
package model

import (
	"fmt"
	"math"
)

// Placement classifies where an ad was shown.
type Placement string

const (
	PlacementSearch                Placement = "search"
	PlacementNonSearchAggregated   Placement = "non-search-aggregated"
	PlacementRetargetingAggregated Placement = "retargeting-aggregated"
)

// Sentinel keywords for the collapsed placement buckets.
const (
	KeywordNonSearchAggregated   = "(non-search, aggregated)"
	KeywordRetargetingAggregated = "(retargeting, aggregated)"
)

// IsBucket reports whether the placement is a synthetic aggregate bucket.
func (p Placement) IsBucket() bool {
	return p == PlacementNonSearchAggregated || p == PlacementRetargetingAggregated
}

// Canonical column names a raw table may carry.
const (
	ColKeyword     = "keyword"
	ColPlacement   = "placement"
	ColImpressions = "impressions"
	ColClicks      = "clicks"
	ColSpend       = "spend"
	ColCTR         = "ctr"
	ColOrders      = "orders"
	ColUnitsSold   = "units_sold"
	ColRevenue     = "revenue"
	ColROAS        = "roas"
)

// ROASCell is a reported ROAS value, either a percentage string ("356.78%")
// or a bare number whose unit is decided per batch.
type ROASCell struct {
	Text   string  `json:"text,omitempty"`
	Number float64 `json:"number,omitempty"`
	IsText bool    `json:"is_text,omitempty"`
}

// TextROAS returns a ROASCell holding a percentage string.
func TextROAS(s string) ROASCell { return ROASCell{Text: s, IsText: true} }

// NumberROAS returns a ROASCell holding a bare number.
func NumberROAS(v float64) ROASCell { return ROASCell{Number: v} }

// FormatROAS renders a percentage the way the ad report does ("356.78%").
func FormatROAS(pct float64) string {
	return fmt.Sprintf("%.2f%%", pct)
}

// RawRow is one line of an uploaded performance report.
type RawRow struct {
	Keyword     string   `json:"keyword"`
	Placement   string   `json:"placement,omitempty"`
	Impressions int64    `json:"impressions"`
	Clicks      int64    `json:"clicks"`
	Spend       float64  `json:"spend"`
	CTR         float64  `json:"ctr"`
	Orders      int64    `json:"orders"`
	UnitsSold   int64    `json:"units_sold"`
	Revenue     float64  `json:"revenue"`
	ROAS        ROASCell `json:"roas"`
}

// RawTable is a batch of raw rows plus the set of columns the source carried.
type RawTable struct {
	Source  string   `json:"source,omitempty"`
	Columns []string `json:"columns"`
	Rows    []RawRow `json:"rows"`
}

// HasColumn reports whether the source carried the named canonical column.
func (t RawTable) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// KeywordRow is one logical keyword after aggregation. Derived fields are
// always recomputed from the summed totals.
type KeywordRow struct {
	Keyword        string    `json:"keyword"`
	Placement      Placement `json:"placement"`
	PlacementLabel string    `json:"placement_label,omitempty"`
	Impressions    int64     `json:"impressions"`
	Clicks         int64     `json:"clicks"`
	Spend          float64   `json:"spend"`
	Orders         int64     `json:"orders"`
	UnitsSold      int64     `json:"units_sold"`
	Revenue        float64   `json:"revenue"`

	CTR      float64 `json:"ctr"`
	ROAS     float64 `json:"roas"`
	ROASText string  `json:"roas_text"`
	CPC      float64 `json:"cpc"`

	ReportedCTR  float64 `json:"reported_ctr"`
	ReportedROAS float64 `json:"reported_roas"`
}

// KeywordTable is the aggregator output.
type KeywordTable struct {
	Rows       []KeywordRow `json:"rows"`
	CTRScaled  bool         `json:"ctr_scaled"`
	ROASScaled bool         `json:"roas_scaled"`
	Mismatches int          `json:"mismatches"`
}

// Search returns the search-placement rows in table order.
func (t KeywordTable) Search() []KeywordRow {
	var out []KeywordRow
	for _, r := range t.Rows {
		if !r.Placement.IsBucket() {
			out = append(out, r)
		}
	}
	return out
}

// Ratio divides num by den and returns 0 for a zero denominator or a
// non-finite result.
func Ratio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return Finite(num / den)
}

// Finite maps NaN and ±Inf to 0.
func Finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
