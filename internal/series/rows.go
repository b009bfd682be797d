package series

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// TableOptions selects the metric and the layout of a tabular source.
type TableOptions struct {
	Metric       Metric
	EntityColumn string
	Sheet        string // excel only; empty means the first sheet
}

// fromRows builds a table from a header row followed by data rows. Columns whose
// header is an integer are year columns; everything else except the entity column
// is ignored.
func fromRows(opts TableOptions, rows [][]string) (*Table, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s: no header row", opts.Metric)
	}

	header := rows[0]
	entityCol := -1
	yearCols := make(map[int]int)
	seen := make(map[int]bool)
	for i, name := range header {
		name = strings.TrimSpace(name)
		if name == opts.EntityColumn && entityCol < 0 {
			entityCol = i
			continue
		}
		if y, ok := parseYear(name); ok && !seen[y] {
			yearCols[i] = y
			seen[y] = true
		}
	}
	if entityCol < 0 {
		return nil, fmt.Errorf("%s: entity column %q not found", opts.Metric, opts.EntityColumn)
	}

	b := NewBuilder(opts.Metric)
	for _, y := range yearCols {
		b.DeclareYears(y)
	}

	for _, row := range rows[1:] {
		if entityCol >= len(row) {
			continue
		}
		entity := strings.TrimSpace(row[entityCol])
		if entity == "" {
			continue
		}
		cells := make(map[int]float64, len(yearCols))
		for col, y := range yearCols {
			if col >= len(row) {
				continue
			}
			if v, ok := parseCell(row[col]); ok {
				cells[y] = v
			}
		}
		b.AddRow(entity, cells)
	}
	return b.Build(), nil
}

// parseYear accepts "2022" and spreadsheet-style "2022.0".
func parseYear(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	if y, err := strconv.Atoi(s); err == nil {
		return y, y > 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) || f <= 0 || f > 9999 {
		return 0, false
	}
	return int(f), true
}

// parseCell treats empty and non-numeric cells as absent.
func parseCell(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
