package aggregate

import (
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"

	"github.com/sells-group/adkeyword-cli/internal/model"
)

// NormalizeKeyword folds visually distinct spellings of a keyword onto one key:
// NFC composition (macOS exports decompose Hangul), width folding, and
// whitespace collapsed to single spaces with the ends trimmed.
func NormalizeKeyword(s string) string {
	s = norm.NFC.String(s)
	s = width.Fold.String(s)
	return strings.Join(strings.Fields(s), " ")
}

// ctrNeedsScaling reports whether a batch's CTR column is expressed as
// fractions, i.e. every value is at most 1. Decided once per batch.
func ctrNeedsScaling(values []float64) bool {
	if len(values) == 0 {
		return false
	}
	for _, v := range values {
		if v > 1 {
			return false
		}
	}
	return true
}

// parseROASColumn converts a batch of reported ROAS cells to percentages.
// Text cells ("356.78%") are parsed with the percent sign stripped. Numeric
// cells are multiplied by 100 when the largest numeric value in the batch is
// at most 10; the decision covers the whole batch, never a single row.
func parseROASColumn(cells []model.ROASCell) ([]float64, bool) {
	out := make([]float64, len(cells))

	maxNumeric := 0.0
	numeric := 0
	for _, c := range cells {
		if c.IsText {
			continue
		}
		if numeric == 0 || c.Number > maxNumeric {
			maxNumeric = c.Number
		}
		numeric++
	}
	scale := numeric > 0 && maxNumeric <= 10

	for i, c := range cells {
		if c.IsText {
			out[i] = parsePercentText(c.Text)
			continue
		}
		v := c.Number
		if scale {
			v *= 100
		}
		out[i] = model.Finite(v)
	}
	return out, scale
}

// parsePercentText parses "356.78%" (or "356.78") to 356.78; unparseable
// text yields 0.
func parsePercentText(s string) float64 {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "%")
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return model.Finite(v)
}

// classifier buckets placement labels by substring markers.
type classifier struct {
	nonSearch   []string
	retargeting []string
}

func newClassifier(nonSearch, retargeting []string) classifier {
	return classifier{nonSearch: lowerAll(nonSearch), retargeting: lowerAll(retargeting)}
}

// classify returns the bucket for a placement label. Non-search and
// retargeting markers take precedence over the search default, checked in
// that order.
func (c classifier) classify(label string) model.Placement {
	l := strings.ToLower(label)
	if containsAny(l, c.nonSearch) {
		return model.PlacementNonSearchAggregated
	}
	if containsAny(l, c.retargeting) {
		return model.PlacementRetargetingAggregated
	}
	return model.PlacementSearch
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if m != "" && strings.Contains(s, m) {
			return true
		}
	}
	return false
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, strings.ToLower(strings.TrimSpace(s)))
	}
	return out
}
