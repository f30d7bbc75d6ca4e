package aggregate

import (
	"fmt"
	"strings"
)

// SchemaError reports required input columns that are absent from a raw table.
type SchemaError struct {
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("aggregate: missing required columns: %s", strings.Join(e.Missing, ", "))
}

// ValueError reports a raw row carrying a negative amount or count. Row is
// 1-based.
type ValueError struct {
	Row     int
	Keyword string
	Column  string
	Value   float64
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("aggregate: row %d (%q): %s must not be negative (got %v)", e.Row, e.Keyword, e.Column, e.Value)
}
