package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/adkeyword-cli/internal/export"
	"github.com/sells-group/adkeyword-cli/internal/fetcher"
	"github.com/sells-group/adkeyword-cli/internal/insights"
	"github.com/sells-group/adkeyword-cli/internal/pipeline"
	"github.com/sells-group/adkeyword-cli/internal/scorer"
)

func TestCheckFormat(t *testing.T) {
	tests := []struct {
		format  string
		output  string
		wantErr bool
	}{
		{formatTable, "", false},
		{formatCSV, "", false},
		{formatJSON, "out.json", false},
		{formatXLSX, "out.xlsx", false},
		{formatXLSX, "", true},
		{"pdf", "", true},
	}
	for _, tt := range tests {
		err := checkFormat(tt.format, tt.output)
		if tt.wantErr {
			assert.Error(t, err, tt.format)
		} else {
			assert.NoError(t, err, tt.format)
		}
	}
}

func TestTargetROASFlag(t *testing.T) {
	newCmd := func() *cobra.Command {
		c := &cobra.Command{Use: "analyze"}
		c.Flags().Float64("target-roas", 0, "")
		return c
	}

	unset, err := targetROASFlag(newCmd())
	require.NoError(t, err)
	assert.Zero(t, unset, "unset selects the configured benchmark")

	c := newCmd()
	require.NoError(t, c.Flags().Set("target-roas", "550"))
	got, err := targetROASFlag(c)
	require.NoError(t, err)
	assert.InDelta(t, 550, got, 1e-9)

	for _, v := range []string{"0", "-10"} {
		c := newCmd()
		require.NoError(t, c.Flags().Set("target-roas", v))
		_, err := targetROASFlag(c)
		require.Error(t, err, v)
		assert.Contains(t, err.Error(), "--target-roas must be > 0")
	}
}

func TestWriteAnalysis_Table(t *testing.T) {
	a := sampleAnalysis(t)

	var buf bytes.Buffer
	require.NoError(t, writeAnalysis(&buf, a, formatTable))

	out := buf.String()
	assert.Contains(t, out, "Report: may.csv (3 rows)")
	assert.Contains(t, out, "총 광고비:")
	assert.Contains(t, out, "KEYWORD")
	assert.Contains(t, out, "무선 청소기")
	assert.NotContains(t, out, "Saved run")
}

func TestWriteAnalysis_TableWithInsightAndRun(t *testing.T) {
	a := &pipeline.Analysis{
		Source:  "empty.csv",
		RunID:   "run-123",
		Result:  scorer.Result{Empty: true},
		Insight: &insights.Insight{Text: "요약 텍스트", Source: insights.SourceFallback},
	}

	var buf bytes.Buffer
	require.NoError(t, writeAnalysis(&buf, a, formatTable))

	out := buf.String()
	assert.Contains(t, out, "No search keywords to score.")
	assert.Contains(t, out, "요약 텍스트")
	assert.Contains(t, out, "Saved run run-123")
}

func TestWriteAnalysis_CSV(t *testing.T) {
	a := sampleAnalysis(t)

	var buf bytes.Buffer
	require.NoError(t, writeAnalysis(&buf, a, formatCSV))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "키워드", records[0][0])
	assert.Equal(t, "무선 청소기", records[1][0])
}

func TestWriteAnalysis_JSON(t *testing.T) {
	a := sampleAnalysis(t)

	var buf bytes.Buffer
	require.NoError(t, writeAnalysis(&buf, a, formatJSON))

	var decoded pipeline.Analysis
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "may.csv", decoded.Source)
	assert.Len(t, decoded.Result.Recommendations, 2)
}

func TestWriteAnalysis_XLSX(t *testing.T) {
	a := sampleAnalysis(t)

	var buf bytes.Buffer
	require.NoError(t, writeAnalysis(&buf, a, formatXLSX))

	rows, err := fetcher.ReadXLSXBytes(buf.Bytes(), fetcher.XLSXOptions{SheetName: export.SheetRecommendations})
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestWriteAnalysis_UnknownFormat(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, writeAnalysis(&buf, sampleAnalysis(t), "yaml"))
}
