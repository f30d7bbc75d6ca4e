// Package insights writes a Korean narrative on top of a scored batch, using
// Claude when configured and a rule-based summary otherwise.
package insights

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/adkeyword-cli/internal/config"
	"github.com/sells-group/adkeyword-cli/internal/model"
	"github.com/sells-group/adkeyword-cli/internal/resilience"
	"github.com/sells-group/adkeyword-cli/internal/scorer"
	"github.com/sells-group/adkeyword-cli/pkg/anthropic"
)

const (
	// promptKeywords is how many recommendations the prompt lists.
	promptKeywords = 10
	// fallbackKeywords is how many exclusion candidates the fallback lists.
	fallbackKeywords = 5

	defaultModel     = "claude-haiku-4-5-20251001"
	defaultMaxTokens = 1500
)

const systemPrompt = "당신은 10년 경력의 검색 광고 운영 전문가입니다. " +
	"키워드 성과 데이터와 제외 추천 결과를 분석하고, 광고주가 바로 실행할 수 있는 조언을 제공합니다."

// Source identifies how an insight text was produced.
type Source string

const (
	SourceModel    Source = "model"
	SourceFallback Source = "fallback"
)

// Insight is the generated narrative.
type Insight struct {
	Text   string `json:"text"`
	Source Source `json:"source"`
}

// Generator produces insights for scored batches.
type Generator struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	retry     resilience.Backoff
	printer   *message.Printer
}

// New creates a Generator. A nil client always yields the fallback text.
func New(client anthropic.Client, cfg config.AnthropicConfig) *Generator {
	g := &Generator{
		client:    client,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		retry: resilience.Backoff{
			Attempts:   3,
			Initial:    time.Second,
			Max:        8 * time.Second,
			Multiplier: 2,
			Jitter:     0.25,
			OnRetry:    resilience.LogRetry("anthropic", "insights"),
		},
		printer: message.NewPrinter(language.Korean),
	}
	if g.model == "" {
		g.model = defaultModel
	}
	if g.maxTokens <= 0 {
		g.maxTokens = defaultMaxTokens
	}
	return g
}

// Generate returns a narrative for result. API failures are logged and
// answered with the fallback text; Generate never fails.
func (g *Generator) Generate(ctx context.Context, result scorer.Result) Insight {
	if result.Empty || len(result.Recommendations) == 0 {
		return Insight{Text: "검색 키워드 데이터가 없어 분석할 수 없습니다.", Source: SourceFallback}
	}
	if g.client == nil {
		zap.L().Debug("insights: no client configured, using fallback")
		return Insight{Text: g.fallback(result), Source: SourceFallback}
	}

	req := anthropic.MessageRequest{
		Model:     g.model,
		MaxTokens: g.maxTokens,
		System:    systemPrompt,
		Prompt:    g.prompt(result),
	}
	resp, err := resilience.RetryValue(ctx, g.retry, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return g.client.CreateMessage(ctx, req)
	})
	if err != nil {
		zap.L().Warn("insights: generation failed, using fallback", zap.Error(err))
		return Insight{Text: g.fallback(result), Source: SourceFallback}
	}
	text := resp.Text
	if text == "" {
		zap.L().Warn("insights: empty model response, using fallback", zap.String("stop_reason", resp.StopReason))
		return Insight{Text: g.fallback(result), Source: SourceFallback}
	}
	resp.Usage.LogCost(g.model, "insights")
	return Insight{Text: text, Source: SourceModel}
}

func (g *Generator) won(v float64) string {
	return g.printer.Sprintf("%d원", int64(math.Round(model.Finite(v))))
}

func (g *Generator) prompt(result scorer.Result) string {
	s, st := result.Summary, result.Stats

	var kw strings.Builder
	for i, r := range result.Recommendations {
		if i == promptKeywords {
			break
		}
		fmt.Fprintf(&kw, "- %s: %s (점수 %d), 광고비 %s, ROAS %.1f%%, CPC %s, 클릭 %d, 사유: %s\n",
			r.Keyword, r.Priority.Label(), r.Score, g.won(r.Spend), r.ROAS, g.won(r.CPC), r.Clicks,
			reasonsOrNone(r.Reasons))
	}

	var b strings.Builder
	b.WriteString("다음 검색 광고 키워드 분석 결과를 해석해주세요:\n\n")
	b.WriteString("## 전체 지표\n")
	fmt.Fprintf(&b, "- 키워드 수: %d\n", st.Rows)
	fmt.Fprintf(&b, "- 총 광고비: %s\n", g.won(st.TotalSpend))
	fmt.Fprintf(&b, "- 총 전환매출액: %s\n", g.won(st.TotalRevenue))
	fmt.Fprintf(&b, "- 평균 ROAS: %.2f%% (목표 %.0f%%)\n", st.AvgROAS, st.TargetROAS)
	fmt.Fprintf(&b, "- 중앙 CPC: %s, 중앙 CTR: %.2f%%\n", g.won(st.MedianCPC), st.MedianCTR)
	fmt.Fprintf(&b, "- 낭비 광고비: %s (절감 가능 %.1f%%)\n", g.won(s.TotalWaste), s.PotentialSavings)
	fmt.Fprintf(&b, "- 기회 손실: %s\n", g.won(s.TotalOpportunityLoss))
	fmt.Fprintf(&b, "- 우선순위: 즉시 제외 %d, 조속히 제외 %d, 검토 필요 %d, 모니터링 %d, 데이터 부족 %d\n\n",
		s.Critical, s.High, s.Medium, s.Low, s.InsufficientData)
	b.WriteString("## 점수 상위 키워드\n")
	b.WriteString(kw.String())
	b.WriteString(`
다음 형식으로 작성해주세요:

### 📊 3줄 요약
1. [핵심 성과 또는 문제점]
2. [주요 발견사항]
3. [가장 시급한 조치사항]

### 🚫 제외 키워드 제안
- [즉시 제외할 키워드와 근거]

### 💡 즉시 실행 가능한 액션 (우선순위 순)
1. [높음] [구체적인 액션]
2. [중간] [구체적인 액션]
3. [낮음] [장기적 개선사항]

**중요**: 구체적인 수치를 근거로, 이 데이터에 특화된 조언을 제공하세요.
`)
	return b.String()
}

func (g *Generator) fallback(result scorer.Result) string {
	s, st := result.Summary, result.Stats
	avgCTR := meanCTR(result.Recommendations)

	var b strings.Builder
	b.WriteString("### 📊 분석 요약\n\n")
	b.WriteString(roasAssessment(st.AvgROAS, st.TargetROAS) + "\n")
	fmt.Fprintf(&b, "- 총 광고비: %s\n", g.won(st.TotalSpend))
	fmt.Fprintf(&b, "- 총 전환매출액: %s\n", g.won(st.TotalRevenue))
	fmt.Fprintf(&b, "- 평균 ROAS: %.2f%%\n\n", st.AvgROAS)
	b.WriteString(ctrAssessment(avgCTR) + "\n")
	fmt.Fprintf(&b, "- 평균 CTR: %.2f%%\n\n", avgCTR)

	b.WriteString("### 💸 낭비 광고비\n\n")
	fmt.Fprintf(&b, "- 낭비 광고비: %s (전체의 %.1f%%)\n", g.won(s.TotalWaste), s.PotentialSavings)
	fmt.Fprintf(&b, "- 기회 손실: %s\n\n", g.won(s.TotalOpportunityLoss))

	urgent := urgentKeywords(result.Recommendations)
	fmt.Fprintf(&b, "### 🔍 제외 후보 (%d개)\n", len(urgent))
	if len(urgent) == 0 {
		b.WriteString("\n- 없음 (즉시/조속히 제외 대상 키워드 없음)\n")
	}
	for i, r := range urgent {
		if i == fallbackKeywords {
			break
		}
		fmt.Fprintf(&b, "\n- %s: %s, 점수 %d, 광고비 %s (%s)",
			r.Keyword, r.Priority.Label(), r.Score, g.won(r.Spend), reasonsOrNone(r.Reasons))
	}
	if len(urgent) > 0 {
		b.WriteString("\n")
	}

	b.WriteString("\n### 💡 권장 조치사항\n\n")
	n := 1
	step := func(format string, args ...any) {
		fmt.Fprintf(&b, "%d. "+format+"\n", append([]any{n}, args...)...)
		n++
	}
	if st.AvgROAS < st.TargetROAS {
		step("[높음] 평균 ROAS가 목표에 못 미칩니다. 전환 없는 키워드의 입찰가를 낮추거나 제외하세요.")
	} else {
		step("[중간] 평균 ROAS가 목표를 달성했습니다. 상위 성과 키워드의 예산 확대를 검토하세요.")
	}
	if s.Critical > 0 {
		step("[높음] 즉시 제외 키워드 %d개를 제외 키워드로 등록하세요.", s.Critical)
	}
	if s.High > 0 {
		step("[높음] 조속히 제외 키워드 %d개를 이번 주 안에 정리하세요.", s.High)
	}
	if avgCTR < 1.5 {
		step("[중간] CTR이 낮습니다. 광고 소재와 키워드 매칭 유형을 점검하세요.")
	}
	if s.InsufficientData > 0 {
		step("[낮음] 데이터가 부족한 키워드 %d개는 데이터가 쌓인 뒤 다시 분석하세요.", s.InsufficientData)
	}
	step("[낮음] 제외 적용 2주 후 보고서를 다시 업로드해 변화를 확인하세요.")

	b.WriteString("\n**참고**: 이 인사이트는 규칙 기반 기본 분석입니다. AI 분석을 사용하려면 Anthropic API 키를 설정하세요.")
	return b.String()
}

func roasAssessment(avg, target float64) string {
	switch {
	case avg >= target:
		return fmt.Sprintf("✅ 목표 ROAS 달성 (%.0f%% 이상)", target)
	case avg >= target*0.75:
		return fmt.Sprintf("⚠️ 목표 ROAS 근접 (%.0f%%~%.0f%%)", target*0.75, target)
	default:
		return fmt.Sprintf("🚨 목표 ROAS 미달 (%.0f%% 미만)", target*0.75)
	}
}

func ctrAssessment(ctr float64) string {
	switch {
	case ctr >= 2.5:
		return "✅ 높은 CTR (2.5% 이상)"
	case ctr >= 1.5:
		return "⚠️ 보통 수준의 CTR (1.5~2.5%)"
	default:
		return "🚨 낮은 CTR (1.5% 미만)"
	}
}

// urgentKeywords returns critical and high keywords in their scored order.
func urgentKeywords(recs []model.ScoredKeyword) []model.ScoredKeyword {
	var out []model.ScoredKeyword
	for _, r := range recs {
		if r.Priority == model.PriorityCritical || r.Priority == model.PriorityHigh {
			out = append(out, r)
		}
	}
	return out
}

func meanCTR(recs []model.ScoredKeyword) float64 {
	if len(recs) == 0 {
		return 0
	}
	sum := 0.0
	for _, r := range recs {
		sum += r.CTR
	}
	return math.Round(sum/float64(len(recs))*100) / 100
}

func reasonsOrNone(reasons []string) string {
	if len(reasons) == 0 {
		return "특이사항 없음"
	}
	return strings.Join(reasons, ", ")
}

const compareSystemPrompt = "당신은 광고 성과 분석 전문가입니다. 두 기간의 성과를 비교하고 개선과 악화의 원인을 분석합니다."

// Compare returns a narrative for a run-over-run comparison. Like Generate it
// falls back to a rule-based text and never fails.
func (g *Generator) Compare(ctx context.Context, c model.Comparison) Insight {
	if g.client == nil {
		return Insight{Text: g.compareFallback(c), Source: SourceFallback}
	}

	req := anthropic.MessageRequest{
		Model:     g.model,
		MaxTokens: g.maxTokens,
		System:    compareSystemPrompt,
		Prompt:    g.comparePrompt(c),
	}
	resp, err := resilience.RetryValue(ctx, g.retry, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return g.client.CreateMessage(ctx, req)
	})
	if err != nil {
		zap.L().Warn("insights: comparison failed, using fallback", zap.Error(err))
		return Insight{Text: g.compareFallback(c), Source: SourceFallback}
	}
	text := resp.Text
	if text == "" {
		return Insight{Text: g.compareFallback(c), Source: SourceFallback}
	}
	resp.Usage.LogCost(g.model, "compare")
	return Insight{Text: text, Source: SourceModel}
}

func (g *Generator) metricValue(mc model.MetricChange) string {
	switch mc.Metric {
	case "avg_cpc", "avg_cpa", "total_waste":
		return g.won(mc.Current) + " (이전 " + g.won(mc.Previous) + ")"
	case "keywords_to_exclude", "critical_priority", "high_priority":
		return fmt.Sprintf("%.0f개 (이전 %.0f개)", mc.Current, mc.Previous)
	default:
		return fmt.Sprintf("%.2f%% (이전 %.2f%%)", mc.Current, mc.Previous)
	}
}

func (g *Generator) comparePrompt(c model.Comparison) string {
	var b strings.Builder
	fmt.Fprintf(&b, "두 기간의 광고 성과를 비교 분석해주세요.\n\n- 현재: %s (%s)\n- 이전: %s (%s)\n\n## 지표 변화\n",
		c.Current.Name, c.Current.CreatedAt.Format("2006-01-02"), c.Previous.Name, c.Previous.CreatedAt.Format("2006-01-02"))
	for _, mc := range c.Metrics {
		fmt.Fprintf(&b, "- %s: %s, 변화 %+.1f%%\n", mc.Label, g.metricValue(mc), mc.ChangePct)
	}
	fmt.Fprintf(&b, "\n## 요약\n%s\n", c.Summary)
	b.WriteString(`
다음 형식으로 간결하게 작성하세요:

### 📈 개선 사항
[개선된 지표와 원인 분석]

### 📉 악화 사항
[악화된 지표와 원인 분석]

### 💡 권장 조치
1. [구체적인 개선 방안]
2. [구체적인 개선 방안]
`)
	return b.String()
}

func (g *Generator) compareFallback(c model.Comparison) string {
	var b strings.Builder
	b.WriteString("### 📊 기간 비교 분석\n\n")
	fmt.Fprintf(&b, "%s → %s\n\n", orSource(c.Previous), orSource(c.Current))
	b.WriteString(c.Summary + "\n\n")
	for _, mc := range c.Metrics {
		fmt.Fprintf(&b, "- %s: %s, %+.1f%%\n", mc.Label, g.metricValue(mc), mc.ChangePct)
	}
	b.WriteString("\n**참고**: 이 인사이트는 규칙 기반 기본 분석입니다. AI 분석을 사용하려면 Anthropic API 키를 설정하세요.")
	return b.String()
}

func orSource(r model.RunRef) string {
	if r.Name != "" {
		return r.Name
	}
	return r.Source
}
