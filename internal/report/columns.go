// Package report turns uploaded ad performance reports into raw keyword tables.
package report

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/adkeyword-cli/internal/model"
)

// ColumnMap maps each canonical column to the report headers that may carry
// it, most preferred first.
type ColumnMap map[string][]string

// DefaultColumns covers the Coupang keyword report (14-day attribution
// preferred over 1-day) plus the canonical English names.
func DefaultColumns() ColumnMap {
	return ColumnMap{
		model.ColKeyword:     {"키워드", model.ColKeyword},
		model.ColPlacement:   {"광고 노출 지면", model.ColPlacement},
		model.ColImpressions: {"노출수", model.ColImpressions},
		model.ColClicks:      {"클릭수", model.ColClicks},
		model.ColSpend:       {"광고비", model.ColSpend},
		model.ColCTR:         {"클릭률", model.ColCTR},
		model.ColRevenue:     {"총 전환매출액(14일)", "총 전환매출액(1일)", "총 전환매출액", model.ColRevenue},
		model.ColOrders:      {"총 주문수(14일)", "총 주문수(1일)", "총 주문수", model.ColOrders},
		model.ColUnitsSold:   {"총 판매수량(14일)", "총 판매수량(1일)", "총 판매수량", model.ColUnitsSold},
		model.ColROAS:        {"총광고수익률(14일)", "총광고수익률(1일)", "총광고수익률", model.ColROAS},
	}
}

// columnMapFile is the on-disk alias file layout:
//
//	columns:
//	  revenue: ["전환매출액"]
type columnMapFile struct {
	Columns map[string][]string `yaml:"columns"`
}

// LoadColumnMap reads extra header aliases from a YAML file and puts them
// ahead of the defaults. Unknown canonical names are rejected.
func LoadColumnMap(path string) (ColumnMap, error) {
	cm := DefaultColumns()
	if path == "" {
		return cm, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "report: read column map %s", path)
	}
	var f columnMapFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrapf(err, "report: parse column map %s", path)
	}

	for canonical, aliases := range f.Columns {
		if _, ok := cm[canonical]; !ok {
			return nil, eris.Errorf("report: column map %s: unknown column %q", path, canonical)
		}
		cm[canonical] = append(append([]string{}, aliases...), cm[canonical]...)
	}
	return cm, nil
}

// Resolve finds, for each canonical column, the index of the first preferred
// alias present in header. Columns with no matching header are absent.
func (cm ColumnMap) Resolve(header []string) map[string]int {
	positions := make(map[string]int, len(header))
	for i, h := range header {
		key := headerKey(h)
		if _, dup := positions[key]; !dup {
			positions[key] = i
		}
	}

	out := make(map[string]int, len(cm))
	for canonical, aliases := range cm {
		for _, alias := range aliases {
			if i, ok := positions[headerKey(alias)]; ok {
				out[canonical] = i
				break
			}
		}
	}
	return out
}

// headerKey compares headers ignoring case, Unicode form, and spacing
// around parentheses.
func headerKey(s string) string {
	s = norm.NFC.String(strings.TrimSpace(s))
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, " (", "(")
	return strings.Join(strings.Fields(s), " ")
}

// columnOrder is the order canonical columns are listed in a RawTable.
var columnOrder = []string{
	model.ColKeyword, model.ColPlacement, model.ColImpressions, model.ColClicks,
	model.ColSpend, model.ColCTR, model.ColOrders, model.ColUnitsSold,
	model.ColRevenue, model.ColROAS,
}
