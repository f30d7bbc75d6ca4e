// Package aggregate collapses raw keyword report rows into one row per
// logical keyword, summing non-keyword placements into synthetic bucket rows.
package aggregate

import (
	"math"

	"go.uber.org/zap"

	"github.com/sells-group/adkeyword-cli/internal/config"
	"github.com/sells-group/adkeyword-cli/internal/model"
)

// DefaultNonSearchMarkers and DefaultRetargetingMarkers match the placement
// labels of the Coupang keyword report and the synthetic bucket placements.
var (
	DefaultNonSearchMarkers   = []string{"비검색", "non-search"}
	DefaultRetargetingMarkers = []string{"리타겟팅", "retargeting"}
)

// roasMismatchTolerance is the allowed gap, in percentage points, between a
// keyword's reported and recomputed ROAS before it is counted as a mismatch.
const roasMismatchTolerance = 1.0

// Aggregator turns raw report rows into a deduplicated keyword table.
type Aggregator struct {
	cls classifier
}

// New creates an Aggregator from config, falling back to the default markers
// when none are configured.
func New(cfg config.AggregateConfig) *Aggregator {
	nonSearch := cfg.NonSearchMarkers
	if len(nonSearch) == 0 {
		nonSearch = DefaultNonSearchMarkers
	}
	retargeting := cfg.RetargetingMarkers
	if len(retargeting) == 0 {
		retargeting = DefaultRetargetingMarkers
	}
	return &Aggregator{cls: newClassifier(nonSearch, retargeting)}
}

// Aggregate runs the default Aggregator over a raw table.
func Aggregate(table model.RawTable) (model.KeywordTable, error) {
	return New(config.AggregateConfig{}).Aggregate(table)
}

// accumulator sums one output row's worth of raw rows.
type accumulator struct {
	keyword   string
	placement model.Placement
	label     string

	impressions int64
	clicks      int64
	spend       float64
	orders      int64
	unitsSold   int64
	revenue     float64

	// Weighted sums of the reported ratios.
	ctrWeighted  float64
	roasWeighted float64
	hasROAS      bool
}

func (a *accumulator) add(r model.RawRow, reportedCTR, reportedROAS float64) {
	a.impressions += r.Impressions
	a.clicks += r.Clicks
	a.spend += r.Spend
	a.orders += r.Orders
	a.unitsSold += r.UnitsSold
	a.revenue += r.Revenue
	a.ctrWeighted += reportedCTR * float64(r.Impressions)
	a.roasWeighted += reportedROAS * r.Spend
}

// Aggregate validates the schema, separates placement buckets, groups search
// rows by normalized keyword, and recomputes every derived ratio from the
// summed totals. The input table is not modified.
func (a *Aggregator) Aggregate(table model.RawTable) (model.KeywordTable, error) {
	if err := checkSchema(table); err != nil {
		return model.KeywordTable{}, err
	}
	if err := checkValues(table); err != nil {
		return model.KeywordTable{}, err
	}

	hasROAS := table.HasColumn(model.ColROAS)
	hasPlacement := table.HasColumn(model.ColPlacement)

	// Reported CTR and ROAS units are decided once for the whole batch.
	ctrs := make([]float64, len(table.Rows))
	cells := make([]model.ROASCell, len(table.Rows))
	for i, r := range table.Rows {
		ctrs[i] = model.Finite(r.CTR)
		cells[i] = r.ROAS
	}
	ctrScaled := ctrNeedsScaling(ctrs)
	if ctrScaled {
		for i := range ctrs {
			ctrs[i] *= 100
		}
	}
	var reportedROAS []float64
	roasScaled := false
	if hasROAS {
		reportedROAS, roasScaled = parseROASColumn(cells)
	} else {
		reportedROAS = make([]float64, len(table.Rows))
	}

	nonSearch := &accumulator{
		keyword:   model.KeywordNonSearchAggregated,
		placement: model.PlacementNonSearchAggregated,
		label:     string(model.PlacementNonSearchAggregated),
		hasROAS:   hasROAS,
	}
	retargeting := &accumulator{
		keyword:   model.KeywordRetargetingAggregated,
		placement: model.PlacementRetargetingAggregated,
		label:     string(model.PlacementRetargetingAggregated),
		hasROAS:   hasROAS,
	}
	var nonSearchRows, retargetingRows int

	groups := make(map[string]*accumulator)
	var order []string

	for i, r := range table.Rows {
		placement := model.PlacementSearch
		if hasPlacement {
			placement = a.cls.classify(r.Placement)
		}

		switch placement {
		case model.PlacementNonSearchAggregated:
			nonSearch.add(r, ctrs[i], reportedROAS[i])
			nonSearchRows++
		case model.PlacementRetargetingAggregated:
			retargeting.add(r, ctrs[i], reportedROAS[i])
			retargetingRows++
		default:
			key := NormalizeKeyword(r.Keyword)
			// A search row named after a bucket belongs to that bucket.
			switch key {
			case model.KeywordNonSearchAggregated:
				nonSearch.add(r, ctrs[i], reportedROAS[i])
				nonSearchRows++
				continue
			case model.KeywordRetargetingAggregated:
				retargeting.add(r, ctrs[i], reportedROAS[i])
				retargetingRows++
				continue
			}
			g, ok := groups[key]
			if !ok {
				g = &accumulator{
					keyword:   key,
					placement: model.PlacementSearch,
					label:     r.Placement,
					hasROAS:   hasROAS,
				}
				groups[key] = g
				order = append(order, key)
			}
			g.add(r, ctrs[i], reportedROAS[i])
		}
	}

	accs := make([]*accumulator, 0, len(order)+2)
	for _, key := range order {
		accs = append(accs, groups[key])
	}
	if nonSearchRows > 0 {
		accs = append(accs, nonSearch)
	}
	if retargetingRows > 0 {
		accs = append(accs, retargeting)
	}

	rows := make([]model.KeywordRow, len(accs))
	roasText := make([]model.ROASCell, len(accs))
	for i, acc := range accs {
		rows[i] = acc.finish()
		roasText[i] = model.TextROAS(rows[i].ROASText)
	}

	// Recomputed ROAS travels as the report's percentage string and is read
	// back through the same parser as the source column.
	parsed, _ := parseROASColumn(roasText)
	mismatches := 0
	for i := range rows {
		rows[i].ROAS = parsed[i]
		sanitize(&rows[i])
		if hasROAS && !rows[i].Placement.IsBucket() &&
			math.Abs(rows[i].ReportedROAS-rows[i].ROAS) > roasMismatchTolerance {
			mismatches++
		}
	}

	if mismatches > 0 {
		zap.L().Warn("aggregate: reported ROAS disagrees with recomputed ROAS",
			zap.Int("keywords", mismatches),
			zap.Float64("tolerance_pct", roasMismatchTolerance),
		)
	}

	zap.L().Info("aggregate: table built",
		zap.String("source", table.Source),
		zap.Int("raw_rows", len(table.Rows)),
		zap.Int("unique_keywords", len(order)),
		zap.Int("non_search_rows", nonSearchRows),
		zap.Int("retargeting_rows", retargetingRows),
		zap.Bool("ctr_scaled", ctrScaled),
		zap.Bool("roas_scaled", roasScaled),
	)

	return model.KeywordTable{
		Rows:       rows,
		CTRScaled:  ctrScaled,
		ROASScaled: roasScaled,
		Mismatches: mismatches,
	}, nil
}

// finish recomputes derived ratios from the accumulated totals.
func (a *accumulator) finish() model.KeywordRow {
	row := model.KeywordRow{
		Keyword:        a.keyword,
		Placement:      a.placement,
		PlacementLabel: a.label,
		Impressions:    a.impressions,
		Clicks:         a.clicks,
		Spend:          a.spend,
		Orders:         a.orders,
		UnitsSold:      a.unitsSold,
		Revenue:        a.revenue,
		CTR:            model.Ratio(float64(a.clicks), float64(a.impressions)) * 100,
		ROASText:       model.FormatROAS(model.Ratio(a.revenue, a.spend) * 100),
		CPC:            model.Ratio(a.spend, float64(a.clicks)),
		ReportedCTR:    model.Ratio(a.ctrWeighted, float64(a.impressions)),
	}
	if a.hasROAS {
		row.ReportedROAS = model.Ratio(a.roasWeighted, a.spend)
	}
	return row
}

// sanitize replaces non-finite values in every numeric column with 0.
func sanitize(r *model.KeywordRow) {
	r.Spend = model.Finite(r.Spend)
	r.Revenue = model.Finite(r.Revenue)
	r.CTR = model.Finite(r.CTR)
	r.ROAS = model.Finite(r.ROAS)
	r.CPC = model.Finite(r.CPC)
	r.ReportedCTR = model.Finite(r.ReportedCTR)
	r.ReportedROAS = model.Finite(r.ReportedROAS)
}

// checkSchema fails with a SchemaError naming every absent required column.
func checkSchema(table model.RawTable) error {
	var missing []string
	for _, col := range []string{
		model.ColKeyword,
		model.ColImpressions,
		model.ColClicks,
		model.ColSpend,
		model.ColCTR,
		model.ColRevenue,
	} {
		if !table.HasColumn(col) {
			missing = append(missing, col)
		}
	}
	if !table.HasColumn(model.ColOrders) && !table.HasColumn(model.ColUnitsSold) {
		missing = append(missing, model.ColOrders+"|"+model.ColUnitsSold)
	}
	if len(missing) > 0 {
		return &SchemaError{Missing: missing}
	}
	return nil
}

// checkValues rejects rows with negative amounts or counts.
func checkValues(table model.RawTable) error {
	for i, r := range table.Rows {
		for _, c := range []struct {
			col string
			v   float64
		}{
			{model.ColSpend, r.Spend},
			{model.ColRevenue, r.Revenue},
			{model.ColImpressions, float64(r.Impressions)},
			{model.ColClicks, float64(r.Clicks)},
			{model.ColOrders, float64(r.Orders)},
			{model.ColUnitsSold, float64(r.UnitsSold)},
		} {
			if c.v < 0 {
				return &ValueError{Row: i + 1, Keyword: r.Keyword, Column: c.col, Value: c.v}
			}
		}
	}
	return nil
}

// AsRaw converts an aggregated table back into raw rows, carrying every
// derived value in the report's own formats.
func AsRaw(table model.KeywordTable) model.RawTable {
	out := model.RawTable{
		Columns: []string{
			model.ColKeyword, model.ColPlacement, model.ColImpressions, model.ColClicks,
			model.ColSpend, model.ColCTR, model.ColOrders, model.ColUnitsSold,
			model.ColRevenue, model.ColROAS,
		},
		Rows: make([]model.RawRow, len(table.Rows)),
	}
	for i, r := range table.Rows {
		label := r.PlacementLabel
		if r.Placement.IsBucket() || label == "" {
			label = string(r.Placement)
		}
		out.Rows[i] = model.RawRow{
			Keyword:     r.Keyword,
			Placement:   label,
			Impressions: r.Impressions,
			Clicks:      r.Clicks,
			Spend:       r.Spend,
			CTR:         r.CTR,
			Orders:      r.Orders,
			UnitsSold:   r.UnitsSold,
			Revenue:     r.Revenue,
			ROAS:        model.TextROAS(r.ROASText),
		}
	}
	return out
}
