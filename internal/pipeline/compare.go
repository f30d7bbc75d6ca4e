package pipeline

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/adkeyword-cli/internal/insights"
	"github.com/sells-group/adkeyword-cli/internal/model"
)

// notableChangePct is the smallest relative change the summary mentions.
const notableChangePct = 5

// ErrSameRun is returned when a run is compared with itself.
var ErrSameRun = eris.New("pipeline: cannot compare a run with itself")

// Comparison is a run-over-run comparison with an optional narrative.
type Comparison struct {
	model.Comparison
	Insight *insights.Insight `json:"insights,omitempty"`
}

type comparedMetric struct {
	key           string
	label         string
	lowerIsBetter bool
	value         func(r *model.Run) float64
}

var comparedMetrics = []comparedMetric{
	{"avg_roas", "ROAS", false, func(r *model.Run) float64 { return r.Report.AvgROAS }},
	{"avg_ctr", "CTR", false, func(r *model.Run) float64 { return r.Report.AvgCTR }},
	{"cvr", "전환율", false, func(r *model.Run) float64 {
		return model.Ratio(float64(r.Report.TotalOrders), float64(r.Report.TotalClicks)) * 100
	}},
	{"avg_cpc", "CPC", true, func(r *model.Run) float64 {
		return model.Ratio(r.Report.TotalSpend, float64(r.Report.TotalClicks))
	}},
	{"avg_cpa", "CPA", true, func(r *model.Run) float64 {
		return model.Ratio(r.Report.TotalSpend, float64(r.Report.TotalOrders))
	}},
	{"total_waste", "낭비 광고비", true, func(r *model.Run) float64 { return r.Summary.TotalWaste }},
	{"potential_savings", "절감 가능 비율", true, func(r *model.Run) float64 { return r.Summary.PotentialSavings }},
	{"keywords_to_exclude", "제외 추천 키워드", true, func(r *model.Run) float64 { return float64(r.Summary.KeywordsToExclude) }},
	{"critical_priority", "즉시 제외", true, func(r *model.Run) float64 { return float64(r.Summary.Critical) }},
	{"high_priority", "조속히 제외", true, func(r *model.Run) float64 { return float64(r.Summary.High) }},
}

// CompareRuns compares current against the earlier run previous.
func CompareRuns(current, previous *model.Run) model.Comparison {
	c := model.Comparison{
		Current:  refOf(current),
		Previous: refOf(previous),
		Metrics:  make([]model.MetricChange, 0, len(comparedMetrics)),
	}
	for _, m := range comparedMetrics {
		c.Metrics = append(c.Metrics, changeOf(m, m.value(current), m.value(previous)))
	}
	c.Summary = summarizeChanges(c.Metrics)
	return c
}

func refOf(r *model.Run) model.RunRef {
	return model.RunRef{ID: r.ID, Name: r.Name, Source: r.Source, CreatedAt: r.CreatedAt}
}

func changeOf(m comparedMetric, current, previous float64) model.MetricChange {
	mc := model.MetricChange{
		Metric:        m.key,
		Label:         m.label,
		Current:       model.Finite(current),
		Previous:      model.Finite(previous),
		LowerIsBetter: m.lowerIsBetter,
		Trend:         model.TrendFlat,
	}
	if mc.Previous > 0 {
		mc.ChangePct = math.Round((mc.Current-mc.Previous)/mc.Previous*1000) / 10
	}

	delta := mc.Current - mc.Previous
	if mc.Previous > 0 {
		delta = mc.ChangePct
	}
	if m.lowerIsBetter {
		delta = -delta
	}
	switch {
	case delta > 0:
		mc.Trend = model.TrendUp
	case delta < 0:
		mc.Trend = model.TrendDown
	}
	return mc
}

// summarizeChanges lists changes of at least notableChangePct as
// improvements and declines.
func summarizeChanges(changes []model.MetricChange) string {
	var improved, declined []string
	for _, mc := range changes {
		pct := math.Abs(mc.ChangePct)
		if pct < notableChangePct {
			continue
		}
		verb := "개선"
		if mc.Trend == model.TrendDown {
			verb = "하락"
		}
		if mc.LowerIsBetter {
			verb = "감소"
			if mc.Trend == model.TrendDown {
				verb = "증가"
			}
		}
		entry := fmt.Sprintf("%s %.1f%% %s", mc.Label, pct, verb)
		if mc.Trend == model.TrendUp {
			improved = append(improved, entry)
		} else {
			declined = append(declined, entry)
		}
	}

	var lines []string
	if len(improved) > 0 {
		lines = append(lines, "✓ "+strings.Join(improved, ", "))
	}
	if len(declined) > 0 {
		lines = append(lines, "⚠️ "+strings.Join(declined, ", "))
	}
	if len(lines) == 0 {
		return "큰 변화 없음"
	}
	return strings.Join(lines, "\n")
}

// Compare loads two saved runs and compares currentID against previousID,
// adding a narrative when withInsights is set.
func (p *Pipeline) Compare(ctx context.Context, currentID, previousID string, withInsights bool) (*Comparison, error) {
	if p.store == nil {
		return nil, eris.New("pipeline: no store configured")
	}
	if currentID == previousID {
		return nil, eris.Wrapf(ErrSameRun, "run %s", currentID)
	}
	current, err := p.store.GetRun(ctx, currentID)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: compare current")
	}
	previous, err := p.store.GetRun(ctx, previousID)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: compare previous")
	}

	c := &Comparison{Comparison: CompareRuns(current, previous)}
	if withInsights {
		in := p.insights.Compare(ctx, c.Comparison)
		c.Insight = &in
	}
	zap.L().Info("pipeline: runs compared",
		zap.String("current", currentID),
		zap.String("previous", previousID),
		zap.Bool("insights", withInsights),
	)
	return c, nil
}
