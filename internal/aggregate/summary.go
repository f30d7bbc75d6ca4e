package aggregate

import (
	"math"

	"github.com/sells-group/adkeyword-cli/internal/model"
)

// Summarize computes report-wide totals over every aggregated row, bucket
// rows included. AvgCTR is the unweighted mean of row CTRs; AvgROAS is the
// total revenue over total spend. Ratios are rounded to two decimals.
func Summarize(table model.KeywordTable) model.ReportSummary {
	s := model.ReportSummary{Rows: len(table.Rows)}
	if len(table.Rows) == 0 {
		return s
	}

	var ctrSum float64
	for _, r := range table.Rows {
		s.TotalSpend += r.Spend
		s.TotalRevenue += r.Revenue
		s.TotalClicks += r.Clicks
		s.TotalImpressions += r.Impressions
		s.TotalOrders += r.Orders
		s.TotalUnitsSold += r.UnitsSold
		ctrSum += r.CTR
	}
	s.AvgROAS = round2(model.Ratio(s.TotalRevenue, s.TotalSpend) * 100)
	s.AvgCTR = round2(model.Ratio(ctrSum, float64(len(table.Rows))))
	return s
}

func round2(v float64) float64 {
	return model.Finite(math.Round(v*100) / 100)
}
