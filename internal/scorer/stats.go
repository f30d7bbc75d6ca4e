package scorer

import (
	"sort"

	"github.com/sells-group/adkeyword-cli/internal/model"
)

// tierOrder fixes iteration order over tiers.
var tierOrder = []model.Tier{model.TierElite, model.TierHigh, model.TierMid, model.TierLow}

// BuildStatistics computes the batch context every row is scored against.
// Rows should be the search-placement subset only.
func BuildStatistics(rows []model.KeywordRow, targetROAS float64) model.BatchStatistics {
	stats := model.BatchStatistics{
		Rows:       len(rows),
		TargetROAS: targetROAS,
		TierStats:  map[model.Tier]model.TierStat{},
	}
	if len(rows) == 0 {
		return stats
	}

	cpcs := make([]float64, len(rows))
	spends := make([]float64, len(rows))
	ctrs := make([]float64, len(rows))
	for i, r := range rows {
		stats.TotalSpend += r.Spend
		stats.TotalRevenue += r.Revenue
		cpcs[i] = r.CPC
		spends[i] = r.Spend
		ctrs[i] = r.CTR
	}
	stats.AvgROAS = model.Ratio(stats.TotalRevenue, stats.TotalSpend) * 100
	stats.MedianCPC = median(cpcs)
	stats.MedianCTR = median(ctrs)
	stats.CPCPercentiles = quartiles(cpcs)
	stats.SpendPercentiles = quartiles(spends)

	byTier := make(map[model.Tier][]model.KeywordRow, len(tierOrder))
	for _, r := range rows {
		t := model.TierOf(r.ROAS)
		byTier[t] = append(byTier[t], r)
	}
	for _, t := range tierOrder {
		members := byTier[t]
		if len(members) == 0 {
			continue
		}
		tierCPC := make([]float64, len(members))
		tierROAS := make([]float64, len(members))
		for i, r := range members {
			tierCPC[i] = r.CPC
			tierROAS[i] = r.ROAS
		}
		stats.TierStats[t] = model.TierStat{
			Count:     len(members),
			MedianCPC: median(tierCPC),
			P75CPC:    percentile(tierCPC, 0.75),
			AvgROAS:   mean(tierROAS),
		}
	}

	var topROAS []float64
	for _, r := range rows {
		if r.ROAS >= targetROAS {
			topROAS = append(topROAS, r.ROAS)
		}
	}
	stats.TopPerformers = len(topROAS)
	if len(topROAS) > 0 {
		stats.TopAvgROAS = mean(topROAS)
	} else {
		stats.TopAvgROAS = stats.AvgROAS
	}

	return stats
}

// tierMedianCPC returns the median CPC a row in tier t is compared against:
// the tier's own median when the tier has at least minMembers rows, otherwise
// the batch median.
func tierMedianCPC(stats model.BatchStatistics, t model.Tier, minMembers int) float64 {
	if ts, ok := stats.TierStats[t]; ok && ts.Count >= minMembers {
		return ts.MedianCPC
	}
	return stats.MedianCPC
}

func quartiles(values []float64) model.Percentiles {
	return model.Percentiles{
		P25: percentile(values, 0.25),
		P50: percentile(values, 0.50),
		P75: percentile(values, 0.75),
		P90: percentile(values, 0.90),
	}
}

// percentile returns the q-th quantile (0..1) using linear interpolation
// between the closest ranks: position q*(n-1) in the sorted values.
func percentile(values []float64, q float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	pos := q * float64(n-1)
	lo := int(pos)
	if lo >= n-1 {
		return sorted[n-1]
	}
	frac := pos - float64(lo)
	return model.Finite(sorted[lo] + (sorted[lo+1]-sorted[lo])*frac)
}

func median(values []float64) float64 {
	return percentile(values, 0.5)
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return model.Finite(sum / float64(len(values)))
}
