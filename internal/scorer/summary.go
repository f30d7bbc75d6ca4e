package scorer

import (
	"math"

	"github.com/sells-group/adkeyword-cli/internal/model"
)

// Summarize reduces scored keywords to batch totals. totalSpend is the spend
// of the scored subset and is the base of PotentialSavings. Keywords with
// insufficient data count toward waste totals but not toward tier counts or
// the average score.
func Summarize(recs []model.ScoredKeyword, totalSpend float64) model.BatchSummary {
	s := model.BatchSummary{TotalSpend: totalSpend}

	scoreSum := 0
	for _, r := range recs {
		s.TotalWaste += r.Waste
		s.TotalOpportunityLoss += r.OpportunityLoss

		switch r.Priority {
		case model.PriorityCritical:
			s.Critical++
		case model.PriorityHigh:
			s.High++
		case model.PriorityMedium:
			s.Medium++
		case model.PriorityLow:
			s.Low++
		default:
			s.InsufficientData++
			continue
		}
		s.KeywordsToExclude++
		scoreSum += r.Score
	}

	if s.KeywordsToExclude > 0 {
		s.AvgScore = scoreSum / s.KeywordsToExclude
	}
	if totalSpend > 0 {
		s.PotentialSavings = math.Round(s.TotalWaste/totalSpend*1000) / 10
	}
	s.TotalWaste = model.Finite(s.TotalWaste)
	s.TotalOpportunityLoss = model.Finite(s.TotalOpportunityLoss)
	s.PotentialSavings = model.Finite(s.PotentialSavings)
	return s
}
