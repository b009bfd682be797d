package series

import (
	"context"
	"database/sql"
	"fmt"

	"forecast-service/internal/common/config"
	"forecast-service/internal/common/logger"
)

// LoadStore loads every configured metric table. Rainfall is mandatory; sunshine and
// price are skipped when not configured or empty.
func LoadStore(ctx context.Context, cfg config.DatasetConfig, db *sql.DB, log logger.Logger) (*Store, error) {
	specs := []struct {
		metric   Metric
		table    config.TableConfig
		required bool
	}{
		{Rainfall, cfg.Rainfall, true},
		{Sunshine, cfg.Sunshine, false},
		{Price, cfg.Price, false},
	}

	var tables []*Table
	for _, s := range specs {
		opts := TableOptions{Metric: s.metric, EntityColumn: s.table.EntityColumn, Sheet: s.table.Sheet}

		var (
			t   *Table
			err error
		)
		switch cfg.Source {
		case config.SourcePostgres:
			if db == nil {
				return nil, fmt.Errorf("dataset source postgres requires a database connection")
			}
			t, err = LoadPostgres(ctx, db, s.metric)
		case config.SourceCSV, config.SourceExcel:
			if !s.table.Configured() {
				if s.required {
					return nil, fmt.Errorf("%s: no dataset path configured", s.metric)
				}
				log.Info("Metric table not configured", map[string]interface{}{"metric": string(s.metric)})
				continue
			}
			if cfg.Source == config.SourceCSV {
				t, err = LoadCSV(s.table.Path, opts)
			} else {
				t, err = LoadExcel(s.table.Path, opts)
			}
		default:
			return nil, fmt.Errorf("unknown dataset source %q", cfg.Source)
		}
		if err != nil {
			if s.required {
				return nil, err
			}
			log.Warn("Optional metric table failed to load", map[string]interface{}{
				"metric": string(s.metric),
				"error":  err,
			})
			continue
		}
		if t.Len() == 0 && !s.required {
			log.Info("Metric table is empty", map[string]interface{}{"metric": string(s.metric)})
			continue
		}

		fields := map[string]interface{}{
			"metric":   string(s.metric),
			"entities": t.Len(),
			"years":    len(t.Years()),
		}
		if d := t.Duplicates(); d > 0 {
			fields["duplicatesDropped"] = d
		}
		log.Info("Metric table loaded", fields)
		tables = append(tables, t)
	}
	return NewStore(tables...), nil
}
