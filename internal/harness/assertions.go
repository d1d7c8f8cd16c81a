package harness

import (
	"fmt"

	"github.com/roach88/qdbcompat/internal/qdb"
)

// ExpectColumns checks a response's schema: column names and types, in
// order.
func ExpectColumns(resp *qdb.Response, want []qdb.Column) error {
	if len(resp.Columns) != len(want) {
		return fmt.Errorf("expected %d columns, got %d: %v", len(want), len(resp.Columns), resp.Columns)
	}
	for i, col := range want {
		if resp.Columns[i] != col {
			return fmt.Errorf("column %d: expected %s %s, got %s %s",
				i, col.Name, col.Type, resp.Columns[i].Name, resp.Columns[i].Type)
		}
	}
	return nil
}

// ExpectRows checks row values, in order. JSON numbers arrive as
// float64, so integer expectations compare numerically.
func ExpectRows(got, want [][]any) error {
	if len(got) != len(want) {
		return fmt.Errorf("expected %d rows, got %d: %v", len(want), len(got), got)
	}
	for i, wantRow := range want {
		if len(got[i]) != len(wantRow) {
			return fmt.Errorf("row %d: expected %d values, got %d: %v", i, len(wantRow), len(got[i]), got[i])
		}
		for j, wantVal := range wantRow {
			if !valuesEqual(got[i][j], wantVal) {
				return fmt.Errorf("row %d value %d: expected %v (%T), got %v (%T)",
					i, j, wantVal, wantVal, got[i][j], got[i][j])
			}
		}
	}
	return nil
}

// valuesEqual compares one dataset value against an expectation,
// bridging the numeric types JSON decoding produces.
func valuesEqual(got, want any) bool {
	if wantNum, ok := asFloat(want); ok {
		gotNum, ok := asFloat(got)
		return ok && gotNum == wantNum
	}
	return got == want
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
