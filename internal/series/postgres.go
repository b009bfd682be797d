package series

import (
	"context"
	"database/sql"
	"fmt"
)

const selectSeriesValues = `
SELECT position, entity, year, value
FROM series_values
WHERE metric = $1
ORDER BY position, year`

// LoadPostgres reads one metric from the series_values table. position is the
// source row number; rows sharing a position form one entity row and the lowest
// position wins for repeated entities. A NULL value declares the year column
// without a value.
func LoadPostgres(ctx context.Context, db *sql.DB, metric Metric) (*Table, error) {
	rows, err := db.QueryContext(ctx, selectSeriesValues, string(metric))
	if err != nil {
		return nil, fmt.Errorf("%s: query series_values: %w", metric, err)
	}
	defer rows.Close()

	b := NewBuilder(metric)
	var (
		curPos    int64 = -1
		curEntity string
		cells     map[int]float64
	)
	flush := func() {
		if cells != nil && curEntity != "" {
			b.AddRow(curEntity, cells)
		}
	}

	for rows.Next() {
		var (
			pos    int64
			entity string
			year   int
			value  sql.NullFloat64
		)
		if err := rows.Scan(&pos, &entity, &year, &value); err != nil {
			return nil, fmt.Errorf("%s: scan series_values: %w", metric, err)
		}
		if pos != curPos {
			flush()
			curPos, curEntity, cells = pos, entity, make(map[int]float64)
		}
		b.DeclareYears(year)
		if value.Valid {
			cells[year] = value.Float64
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: iterate series_values: %w", metric, err)
	}
	flush()

	return b.Build(), nil
}
