package report

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/adkeyword-cli/internal/config"
	"github.com/sells-group/adkeyword-cli/internal/fetcher"
	"github.com/sells-group/adkeyword-cli/internal/model"
)

// headerScanRows bounds how far down a sheet the header row is searched for.
const headerScanRows = 10

// ErrUnsupportedFormat is returned for files that are neither .xlsx nor .csv.
var ErrUnsupportedFormat = eris.New("report: unsupported file format (want .xlsx or .csv)")

// Loader reads report files into raw tables.
type Loader struct {
	columns ColumnMap
}

// NewLoader creates a Loader, reading extra column aliases when configured.
func NewLoader(cfg config.AggregateConfig) (*Loader, error) {
	cm, err := LoadColumnMap(cfg.ColumnMapPath)
	if err != nil {
		return nil, err
	}
	return &Loader{columns: cm}, nil
}

// Load reads a report from disk.
func (l *Loader) Load(ctx context.Context, path string) (model.RawTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.RawTable{}, eris.Wrapf(err, "report: read %s", path)
	}
	return l.Parse(ctx, filepath.Base(path), data)
}

// Parse reads a report held in memory; name selects the format by extension.
func (l *Loader) Parse(ctx context.Context, name string, data []byte) (model.RawTable, error) {
	var (
		records [][]string
		err     error
	)
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx":
		records, err = fetcher.ReadXLSXBytes(data, fetcher.XLSXOptions{SkipBlank: true})
	case ".csv":
		opts := fetcher.CSVOptions{TrimSpace: true, LazyQuotes: true}
		if !utf8.Valid(data) {
			opts.Encoding = fetcher.EncodingEUCKR
		}
		records, err = fetcher.ReadCSV(ctx, bytes.NewReader(data), opts)
	default:
		return model.RawTable{}, eris.Wrapf(ErrUnsupportedFormat, "report: %s", name)
	}
	if err != nil {
		return model.RawTable{}, eris.Wrapf(err, "report: read %s", name)
	}

	table, err := FromRecords(name, records, l.columns)
	if err != nil {
		return model.RawTable{}, err
	}

	zap.L().Info("report: parsed",
		zap.String("source", name),
		zap.Int("rows", len(table.Rows)),
		zap.Strings("columns", table.Columns),
	)
	return table, nil
}

// FromRecords converts a header row plus data records into a RawTable.
// Leading title rows before the header are skipped, as are blank records.
// Columns the header does not carry are left out of RawTable.Columns so the
// aggregator can report them.
func FromRecords(source string, records [][]string, cm ColumnMap) (model.RawTable, error) {
	table := model.RawTable{Source: source, Columns: []string{}, Rows: []model.RawRow{}}
	if len(records) == 0 {
		return table, nil
	}

	headerAt := findHeader(records, cm)
	idx := cm.Resolve(records[headerAt])
	for _, col := range columnOrder {
		if _, ok := idx[col]; ok {
			table.Columns = append(table.Columns, col)
		}
	}

	for i, rec := range records[headerAt+1:] {
		if isBlankRecord(rec) {
			continue
		}
		row, err := parseRow(rec, idx)
		if err != nil {
			// Line numbers are 1-based and count the header.
			return model.RawTable{}, eris.Wrapf(err, "report: %s line %d", source, headerAt+i+2)
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

// findHeader returns the first record that resolves the keyword column,
// falling back to the first record.
func findHeader(records [][]string, cm ColumnMap) int {
	for i := 0; i < len(records) && i < headerScanRows; i++ {
		if _, ok := cm.Resolve(records[i])[model.ColKeyword]; ok {
			return i
		}
	}
	return 0
}

func parseRow(rec []string, idx map[string]int) (model.RawRow, error) {
	cell := func(col string) string {
		i, ok := idx[col]
		if !ok || i >= len(rec) {
			return ""
		}
		return rec[i]
	}

	var row model.RawRow
	row.Keyword = cell(model.ColKeyword)
	row.Placement = strings.TrimSpace(cell(model.ColPlacement))

	counts := []struct {
		col string
		dst *int64
	}{
		{model.ColImpressions, &row.Impressions},
		{model.ColClicks, &row.Clicks},
		{model.ColOrders, &row.Orders},
		{model.ColUnitsSold, &row.UnitsSold},
	}
	for _, c := range counts {
		v, err := parseCount(cell(c.col))
		if err != nil {
			return row, eris.Wrapf(err, "column %s", c.col)
		}
		*c.dst = v
	}

	amounts := []struct {
		col string
		dst *float64
	}{
		{model.ColSpend, &row.Spend},
		{model.ColRevenue, &row.Revenue},
	}
	for _, a := range amounts {
		v, err := parseAmount(cell(a.col))
		if err != nil {
			return row, eris.Wrapf(err, "column %s", a.col)
		}
		*a.dst = v
	}

	ctr, err := parseFloat(cell(model.ColCTR))
	if err != nil {
		return row, eris.Wrapf(err, "column %s", model.ColCTR)
	}
	row.CTR = ctr

	if _, ok := idx[model.ColROAS]; ok {
		roas, err := parseROASCell(cell(model.ColROAS))
		if err != nil {
			return row, eris.Wrapf(err, "column %s", model.ColROAS)
		}
		row.ROAS = roas
	}
	return row, nil
}

func isBlankRecord(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
