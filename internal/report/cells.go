package report

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/sells-group/adkeyword-cli/internal/model"
)

// cellReplacer strips formatting the report applies to numbers.
var cellReplacer = strings.NewReplacer(",", "", "원", "", "₩", "", "%", "", " ", "", "\u00a0", "")

// parseDecimal parses a formatted number cell ("1,234원", "12.5%").
// Blank cells and the report's "-" placeholder are zero.
func parseDecimal(s string) (decimal.Decimal, error) {
	s = cellReplacer.Replace(strings.TrimSpace(s))
	if s == "" || s == "-" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, eris.Errorf("invalid number %q", s)
	}
	return d, nil
}

func parseFloat(s string) (float64, error) {
	d, err := parseDecimal(s)
	if err != nil {
		return 0, err
	}
	return d.InexactFloat64(), nil
}

// parseAmount parses a currency column. Amounts are never negative.
func parseAmount(s string) (float64, error) {
	d, err := parseDecimal(s)
	if err != nil {
		return 0, err
	}
	if d.IsNegative() {
		return 0, eris.Errorf("negative amount %s", d.String())
	}
	return d.InexactFloat64(), nil
}

// parseCount parses a count column, rounding any fractional part. Negative
// counts are clamped to zero.
func parseCount(s string) (int64, error) {
	d, err := parseDecimal(s)
	if err != nil {
		return 0, err
	}
	if d.IsNegative() {
		return 0, nil
	}
	return d.Round(0).IntPart(), nil
}

// parseROASCell keeps percentage strings as text for the aggregator's
// batch-level unit detection; everything else is numeric.
func parseROASCell(s string) (model.ROASCell, error) {
	trimmed := strings.TrimSpace(s)
	if strings.HasSuffix(trimmed, "%") {
		return model.TextROAS(trimmed), nil
	}
	if trimmed == "-" {
		return model.TextROAS(trimmed), nil
	}
	v, err := parseFloat(trimmed)
	if err != nil {
		return model.ROASCell{}, err
	}
	return model.NumberROAS(v), nil
}
