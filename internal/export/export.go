// Package export writes scored keyword batches as XLSX workbooks, CSV, or
// aligned text tables.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/adkeyword-cli/internal/model"
	"github.com/sells-group/adkeyword-cli/internal/scorer"
)

// Sheet names in the exported workbook.
const (
	SheetRecommendations = "추천"
	SheetSummary         = "요약"
)

// recommendationColumns defines the ordered recommendation output columns.
var recommendationColumns = []string{
	"키워드",
	"우선순위",
	"점수",
	"추천",
	"광고비",
	"전환매출액",
	"ROAS(%)",
	"CPC",
	"CTR(%)",
	"클릭수",
	"낭비 광고비",
	"낭비율",
	"기회 손실",
	"주문수",
	"판매수량",
}

// WriteXLSX writes a workbook with one recommendation row per keyword and a
// summary sheet.
func WriteXLSX(w io.Writer, result scorer.Result) error {
	f := xlsx.NewFile()

	recSheet, err := f.AddSheet(SheetRecommendations)
	if err != nil {
		return eris.Wrap(err, "export: add recommendation sheet")
	}
	addStringRow(recSheet, recommendationColumns)
	for _, r := range result.Recommendations {
		row := recSheet.AddRow()
		row.AddCell().SetString(r.Keyword)
		row.AddCell().SetString(r.Priority.Label())
		row.AddCell().SetInt(r.Score)
		row.AddCell().SetString(r.Recommendation)
		row.AddCell().SetFloat(r.Spend)
		row.AddCell().SetFloat(r.Revenue)
		row.AddCell().SetFloat(r.ROAS)
		row.AddCell().SetFloat(r.CPC)
		row.AddCell().SetFloat(r.CTR)
		row.AddCell().SetInt64(r.Clicks)
		row.AddCell().SetFloat(r.Waste)
		row.AddCell().SetFloat(r.WasteRate)
		row.AddCell().SetFloat(r.OpportunityLoss)
		row.AddCell().SetInt64(r.Orders)
		row.AddCell().SetInt64(r.UnitsSold)
	}

	sumSheet, err := f.AddSheet(SheetSummary)
	if err != nil {
		return eris.Wrap(err, "export: add summary sheet")
	}
	for _, line := range summaryLines(result) {
		row := sumSheet.AddRow()
		row.AddCell().SetString(line.label)
		row.AddCell().SetFloat(line.value)
	}

	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "export: write workbook")
	}
	return nil
}

// WriteCSV writes recommendations as CSV with a header row.
func WriteCSV(w io.Writer, recs []model.ScoredKeyword) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(recommendationColumns); err != nil {
		return eris.Wrap(err, "export: write header")
	}
	for _, r := range recs {
		if err := cw.Write(recordOf(r)); err != nil {
			return eris.Wrap(err, "export: write row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "export: flush csv")
}

// WriteTable writes a compact aligned table for terminal output.
func WriteTable(w io.Writer, recs []model.ScoredKeyword) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "KEYWORD\tPRIORITY\tSCORE\tSPEND\tROAS\tCPC\tCLICKS\tREASONS")
	_, _ = fmt.Fprintln(tw, "-------\t--------\t-----\t-----\t----\t---\t------\t-------")
	for _, r := range recs {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%d\t%.0f\t%.1f%%\t%.0f\t%d\t%s\n",
			r.Keyword,
			r.Priority.Label(),
			r.Score,
			r.Spend,
			r.ROAS,
			r.CPC,
			r.Clicks,
			strings.Join(r.Reasons, "; "),
		)
	}
	return eris.Wrap(tw.Flush(), "export: flush table")
}

// WriteSummary writes the batch summary as aligned label/value lines.
func WriteSummary(w io.Writer, result scorer.Result) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, line := range summaryLines(result) {
		_, _ = fmt.Fprintf(tw, "%s:\t%s\n", line.label, formatNumber(line.value))
	}
	return eris.Wrap(tw.Flush(), "export: flush summary")
}

type summaryLine struct {
	label string
	value float64
}

func summaryLines(result scorer.Result) []summaryLine {
	s := result.Summary
	return []summaryLine{
		{"총 광고비", s.TotalSpend},
		{"총 낭비 광고비", s.TotalWaste},
		{"총 기회 손실", s.TotalOpportunityLoss},
		{"제외 추천 키워드", float64(s.KeywordsToExclude)},
		{"절감 가능 비율(%)", s.PotentialSavings},
		{"즉시 제외", float64(s.Critical)},
		{"조속히 제외", float64(s.High)},
		{"검토 필요", float64(s.Medium)},
		{"모니터링", float64(s.Low)},
		{"데이터 부족", float64(s.InsufficientData)},
		{"평균 점수", float64(s.AvgScore)},
		{"목표 ROAS(%)", result.Stats.TargetROAS},
		{"평균 ROAS(%)", result.Stats.AvgROAS},
	}
}

func recordOf(r model.ScoredKeyword) []string {
	return []string{
		r.Keyword,
		r.Priority.Label(),
		strconv.Itoa(r.Score),
		r.Recommendation,
		formatNumber(r.Spend),
		formatNumber(r.Revenue),
		formatNumber(r.ROAS),
		formatNumber(r.CPC),
		formatNumber(r.CTR),
		strconv.FormatInt(r.Clicks, 10),
		formatNumber(r.Waste),
		formatNumber(r.WasteRate),
		formatNumber(r.OpportunityLoss),
		strconv.FormatInt(r.Orders, 10),
		strconv.FormatInt(r.UnitsSold, 10),
	}
}

// formatNumber renders at most two decimals without trailing zeros.
func formatNumber(v float64) string {
	return strconv.FormatFloat(model.Finite(math.Round(v*100)/100), 'f', -1, 64)
}

func addStringRow(sheet *xlsx.Sheet, values []string) {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}
