package report

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
	"golang.org/x/text/encoding/korean"

	"github.com/sells-group/adkeyword-cli/internal/aggregate"
	"github.com/sells-group/adkeyword-cli/internal/config"
	"github.com/sells-group/adkeyword-cli/internal/model"
)

var coupangHeader = []string{
	"캠페인명", "키워드", "광고 노출 지면", "노출수", "클릭수", "광고비", "클릭률",
	"총 주문수(1일)", "총 주문수(14일)", "총 판매수량(14일)",
	"총 전환매출액(1일)", "총 전환매출액(14일)", "총광고수익률(14일)",
}

func coupangRecords() [][]string {
	return [][]string{
		{"쿠팡 광고 성과 보고서"},
		{"기간: 2024-05-01 ~ 2024-05-31"},
		coupangHeader,
		{"캠페인A", "무선 청소기", "검색 영역", "100", "2", "1,000", "2.00%", "9", "0", "0", "9,999", "0", "0.00%"},
		{"", "", "", "", "", "", "", "", "", "", "", "", ""},
		{"캠페인A", "무선 청소기", "검색 영역", "150", "3", "1,500원", "2.00%", "0", "0", "0", "0", "0", "0.00%"},
		{"캠페인A", "-", "비검색 영역", "2,000", "4", "3000", "0.2%", "0", "1", "2", "0", "6,000", "200.00%"},
	}
}

func TestFromRecords_CoupangReport(t *testing.T) {
	table, err := FromRecords("report.xlsx", coupangRecords(), DefaultColumns())
	require.NoError(t, err)

	assert.Equal(t, "report.xlsx", table.Source)
	assert.Equal(t, []string{
		model.ColKeyword, model.ColPlacement, model.ColImpressions, model.ColClicks,
		model.ColSpend, model.ColCTR, model.ColOrders, model.ColUnitsSold,
		model.ColRevenue, model.ColROAS,
	}, table.Columns)
	require.Len(t, table.Rows, 3, "title and blank rows are skipped")

	first := table.Rows[0]
	assert.Equal(t, "무선 청소기", first.Keyword)
	assert.Equal(t, "검색 영역", first.Placement)
	assert.Equal(t, int64(100), first.Impressions)
	assert.Equal(t, int64(2), first.Clicks)
	assert.InDelta(t, 1000, first.Spend, 1e-9)
	assert.InDelta(t, 2, first.CTR, 1e-9)
	// 14-day attribution wins over 1-day.
	assert.Equal(t, int64(0), first.Orders)
	assert.InDelta(t, 0, first.Revenue, 1e-9)
	assert.Equal(t, model.TextROAS("0.00%"), first.ROAS)

	assert.InDelta(t, 1500, table.Rows[1].Spend, 1e-9)

	bucket := table.Rows[2]
	assert.Equal(t, "-", bucket.Keyword)
	assert.Equal(t, int64(2000), bucket.Impressions)
	assert.Equal(t, int64(1), bucket.Orders)
	assert.Equal(t, int64(2), bucket.UnitsSold)
	assert.InDelta(t, 6000, bucket.Revenue, 1e-9)
}

func TestFromRecords_FeedsAggregator(t *testing.T) {
	table, err := FromRecords("report.xlsx", coupangRecords(), DefaultColumns())
	require.NoError(t, err)

	agg, err := aggregate.Aggregate(table)
	require.NoError(t, err)
	require.Len(t, agg.Rows, 2)

	kw := agg.Rows[0]
	assert.Equal(t, "무선 청소기", kw.Keyword)
	assert.InDelta(t, 2500, kw.Spend, 1e-9)
	assert.Equal(t, int64(5), kw.Clicks)
	assert.InDelta(t, 0, kw.Revenue, 1e-9)

	assert.Equal(t, model.KeywordNonSearchAggregated, agg.Rows[1].Keyword)
	assert.Equal(t, "200.00%", agg.Rows[1].ROASText)
	assert.Zero(t, agg.Mismatches)
}

func TestFromRecords_OneDayFallback(t *testing.T) {
	records := [][]string{
		{"키워드", "노출수", "클릭수", "광고비", "클릭률", "총 주문수(1일)", "총 판매수량(1일)", "총 전환매출액(1일)", "총광고수익률(1일)"},
		{"a", "10", "1", "100", "10%", "1", "1", "350", "3.5"},
	}
	table, err := FromRecords("r.csv", records, DefaultColumns())
	require.NoError(t, err)
	require.Len(t, table.Rows, 1)
	r := table.Rows[0]
	assert.Equal(t, int64(1), r.Orders)
	assert.InDelta(t, 350, r.Revenue, 1e-9)
	assert.Equal(t, model.NumberROAS(3.5), r.ROAS)
	assert.NotContains(t, table.Columns, model.ColPlacement)
}

func TestFromRecords_EnglishHeaders(t *testing.T) {
	records := [][]string{
		{"Keyword", "Impressions", "Clicks", "Spend", "CTR", "Orders", "Revenue"},
		{"robot vacuum", "10", "1", "100", "0.1", "1", "350"},
	}
	table, err := FromRecords("r.csv", records, DefaultColumns())
	require.NoError(t, err)
	require.Len(t, table.Rows, 1)
	assert.Equal(t, "robot vacuum", table.Rows[0].Keyword)
	assert.NotContains(t, table.Columns, model.ColROAS)
	assert.NotContains(t, table.Columns, model.ColUnitsSold)
}

func TestFromRecords_MissingColumnsSurfaceAsSchemaError(t *testing.T) {
	records := [][]string{
		{"키워드", "노출수", "클릭수"},
		{"a", "10", "1"},
	}
	table, err := FromRecords("r.csv", records, DefaultColumns())
	require.NoError(t, err)

	_, err = aggregate.Aggregate(table)
	var schemaErr *aggregate.SchemaError
	require.True(t, errors.As(err, &schemaErr))
	assert.Contains(t, schemaErr.Missing, model.ColSpend)
	assert.Contains(t, schemaErr.Missing, model.ColRevenue)
}

func TestFromRecords_InvalidNumber(t *testing.T) {
	records := [][]string{
		{"키워드", "노출수", "클릭수", "광고비"},
		{"a", "10", "1", "100"},
		{"b", "10", "many", "100"},
	}
	_, err := FromRecords("r.csv", records, DefaultColumns())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 3")
	assert.Contains(t, err.Error(), "clicks")
	assert.Contains(t, err.Error(), "invalid number")
}

func TestFromRecords_NegativeAmount(t *testing.T) {
	tests := []struct {
		name   string
		row    []string
		column string
	}{
		{"spend", []string{"b", "10", "1", "-10,000", "0"}, model.ColSpend},
		{"revenue", []string{"b", "10", "1", "100", "-500원"}, model.ColRevenue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records := [][]string{
				{"키워드", "노출수", "클릭수", "광고비", "총 전환매출액(14일)"},
				{"a", "10", "1", "100", "0"},
				tt.row,
			}
			_, err := FromRecords("r.csv", records, DefaultColumns())
			require.Error(t, err)
			assert.Contains(t, err.Error(), "line 3")
			assert.Contains(t, err.Error(), tt.column)
			assert.Contains(t, err.Error(), "negative amount")
		})
	}
}

func TestFromRecords_Empty(t *testing.T) {
	table, err := FromRecords("r.csv", nil, DefaultColumns())
	require.NoError(t, err)
	assert.Empty(t, table.Rows)
	assert.Empty(t, table.Columns)
}

func TestParseDecimalCells(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"1,234", 1234},
		{"1,234원", 1234},
		{"₩ 5,000", 5000},
		{"12.5%", 12.5},
		{"", 0},
		{"-", 0},
		{" 1 000", 1000},
	}
	for _, tt := range tests {
		got, err := parseFloat(tt.in)
		require.NoError(t, err, "input %q", tt.in)
		assert.InDelta(t, tt.want, got, 1e-9, "input %q", tt.in)
	}

	_, err := parseFloat("n/a")
	assert.Error(t, err)
}

func TestParseCount(t *testing.T) {
	v, err := parseCount("1,234.6")
	require.NoError(t, err)
	assert.Equal(t, int64(1235), v)

	v, err = parseCount("-3")
	require.NoError(t, err)
	assert.Equal(t, int64(0), v)
}

func TestParseROASCell(t *testing.T) {
	c, err := parseROASCell(" 356.78% ")
	require.NoError(t, err)
	assert.Equal(t, model.TextROAS("356.78%"), c)

	c, err = parseROASCell("3.57")
	require.NoError(t, err)
	assert.Equal(t, model.NumberROAS(3.57), c)

	c, err = parseROASCell("")
	require.NoError(t, err)
	assert.Equal(t, model.NumberROAS(0), c)
}

func TestLoadColumnMap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "columns.yaml")
	require.NoError(t, os.WriteFile(path, []byte("columns:\n  revenue: [\"전환매출액\"]\n  spend: [\"집행금액\"]\n"), 0o644))

	cm, err := LoadColumnMap(path)
	require.NoError(t, err)
	assert.Equal(t, "전환매출액", cm[model.ColRevenue][0])
	assert.Contains(t, cm[model.ColRevenue], "총 전환매출액(14일)")

	idx := cm.Resolve([]string{"키워드", "집행금액", "전환매출액"})
	assert.Equal(t, 1, idx[model.ColSpend])
	assert.Equal(t, 2, idx[model.ColRevenue])
}

func TestLoadColumnMap_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadColumnMap(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read column map")

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("columns: [unclosed"), 0o644))
	_, err = LoadColumnMap(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse column map")

	unknown := filepath.Join(dir, "unknown.yaml")
	require.NoError(t, os.WriteFile(unknown, []byte("columns:\n  budget: [\"예산\"]\n"), 0o644))
	_, err = LoadColumnMap(unknown)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown column")

	cm, err := LoadColumnMap("")
	require.NoError(t, err)
	assert.Equal(t, DefaultColumns(), cm)
}

func TestResolve_HeaderVariants(t *testing.T) {
	idx := DefaultColumns().Resolve([]string{" 키워드 ", "총 전환매출액 (14일)", "CLICKS"})
	assert.Equal(t, 0, idx[model.ColKeyword])
	assert.Equal(t, 1, idx[model.ColRevenue])
	assert.Equal(t, 2, idx[model.ColClicks])
}

func newTestLoader(t *testing.T) *Loader {
	t.Helper()
	l, err := NewLoader(config.AggregateConfig{})
	require.NoError(t, err)
	return l
}

func TestParse_XLSX(t *testing.T) {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Sheet1")
	require.NoError(t, err)
	for _, rec := range coupangRecords() {
		row := sheet.AddRow()
		for _, v := range rec {
			row.AddCell().SetString(v)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	table, err := newTestLoader(t).Parse(context.Background(), "upload.XLSX", buf.Bytes())
	require.NoError(t, err)
	assert.Len(t, table.Rows, 3)
	assert.Equal(t, "upload.XLSX", table.Source)
}

func TestParse_CSVEUCKR(t *testing.T) {
	encoded, err := korean.EUCKR.NewEncoder().String(
		"키워드,노출수,클릭수,광고비,클릭률,총 주문수(14일),총 전환매출액(14일)\n무선 청소기,100,2,1000,2%,0,0\n")
	require.NoError(t, err)

	table, err := newTestLoader(t).Parse(context.Background(), "report.csv", []byte(encoded))
	require.NoError(t, err)
	require.Len(t, table.Rows, 1)
	assert.Equal(t, "무선 청소기", table.Rows[0].Keyword)
}

func TestLoad_FromDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.csv")
	content := "키워드,노출수,클릭수,광고비,클릭률,총 주문수(14일),총 전환매출액(14일)\n\"무선 청소기\",100,2,\"1,000\",2%,0,0\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	table, err := newTestLoader(t).Load(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, table.Rows, 1)
	assert.Equal(t, "report.csv", table.Source)
	assert.InDelta(t, 1000, table.Rows[0].Spend, 1e-9)
}

func TestParse_UnsupportedFormat(t *testing.T) {
	_, err := newTestLoader(t).Parse(context.Background(), "report.pdf", []byte("%PDF"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := newTestLoader(t).Load(context.Background(), "/nonexistent/report.xlsx")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "report: read")
}
