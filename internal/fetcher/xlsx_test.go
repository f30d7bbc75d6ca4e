package fetcher

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

func buildTestWorkbook(t *testing.T, sheets map[string][][]string) *xlsx.File {
	t.Helper()
	f := xlsx.NewFile()
	for name, rows := range sheets {
		sheet, err := f.AddSheet(name)
		require.NoError(t, err)
		for _, rowData := range rows {
			row := sheet.AddRow()
			for _, cellData := range rowData {
				cell := row.AddCell()
				cell.SetString(cellData)
			}
		}
	}
	return f
}

func createTestXLSX(t *testing.T, sheets map[string][][]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "report.xlsx")
	require.NoError(t, buildTestWorkbook(t, sheets).Save(path))
	return path
}

func TestReadXLSX_Basic(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Sheet1": {
			{"키워드", "노출수", "클릭수"},
			{"무선 청소기", "100", "2"},
			{"로봇청소기", "300", "9"},
		},
	})

	rows, err := ReadXLSX(path, XLSXOptions{})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"키워드", "노출수", "클릭수"}, rows[0])
	assert.Equal(t, []string{"무선 청소기", "100", "2"}, rows[1])
	assert.Equal(t, []string{"로봇청소기", "300", "9"}, rows[2])
}

func TestReadXLSX_NumericCells(t *testing.T) {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Sheet1")
	require.NoError(t, err)
	row := sheet.AddRow()
	row.AddCell().SetString("a")
	row.AddCell().SetInt(1500)
	row.AddCell().SetFloat(3.5)

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	rows, err := ReadXLSXBytes(buf.Bytes(), XLSXOptions{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"a", "1500", "3.5"}, rows[0])
}

func TestReadXLSX_SkipRowsAndBlank(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Sheet1": {
			{"쿠팡 광고 보고서"},
			{"키워드", "클릭수"},
			{"a", "1"},
			{"", " "},
			{"b", "2"},
		},
	})

	rows, err := ReadXLSX(path, XLSXOptions{SkipRows: 1, SkipBlank: true})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"키워드", "클릭수"}, rows[0])
	assert.Equal(t, []string{"b", "2"}, rows[2])
}

func TestReadXLSX_SheetName(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"First":  {{"a", "b"}},
		"Second": {{"x", "y"}, {"1", "2"}},
	})

	rows, err := ReadXLSX(path, XLSXOptions{SheetName: "Second"})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"x", "y"}, rows[0])
}

func TestReadXLSX_SheetNameNotFound(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Sheet1": {{"a"}},
	})

	_, err := ReadXLSX(path, XLSXOptions{SheetName: "Missing"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestReadXLSX_SheetIndexOutOfRange(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Sheet1": {{"a"}},
	})

	_, err := ReadXLSX(path, XLSXOptions{SheetIndex: 5})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")
}

func TestReadXLSX_EmptySheet(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Sheet1": {},
	})

	rows, err := ReadXLSX(path, XLSXOptions{})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestReadXLSX_FileNotFound(t *testing.T) {
	_, err := ReadXLSX("/nonexistent/path/report.xlsx", XLSXOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "xlsx: open file")
}

func TestReadXLSX_InvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.xlsx")
	require.NoError(t, os.WriteFile(path, []byte("this is not an xlsx file"), 0o644))

	_, err := ReadXLSX(path, XLSXOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "xlsx: open file")
}

func TestReadXLSXBytes_Invalid(t *testing.T) {
	_, err := ReadXLSXBytes([]byte("PK not really"), XLSXOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "xlsx: open workbook")
}
