package resolution

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "forecast-service/internal/common/errors"
	"forecast-service/internal/common/logger"
	"forecast-service/internal/common/metrics"
	"forecast-service/internal/forecast"
	"forecast-service/internal/series"

	"gonum.org/v1/gonum/stat"
)

// State is the outcome of resolving one query.
type State string

const (
	Historical               State = "HISTORICAL"
	ForecastOK               State = "FORECAST_OK"
	ForecastInsufficientData State = "FORECAST_INSUFFICIENT_DATA"
	ForecastUnsupportedYear  State = "FORECAST_UNSUPPORTED_YEAR"
	ForecastFailed           State = "FORECAST_FAILED"
)

// Result is the value for one (metric, entity, year). Valid is false when no value
// could be produced: an empty historical cell or a failed fit. Value is zero then
// and must not be read as data.
type Result struct {
	Metric     series.Metric
	Entity     string
	Year       int
	Value      float64
	Valid      bool
	IsForecast bool
	State      State
	// Steps is the forecast horizon; zero for historical and mean results.
	Steps int
	// LastObserved and Points describe the history used for a forecast.
	LastObserved float64
	Points       int
}

// Policy resolves queries against one metric table at a time. It holds no per-query
// state and may be shared between goroutines.
type Policy struct {
	engine forecast.Forecaster
	logger logger.Logger
}

func NewPolicy(engine forecast.Forecaster, log logger.Logger) *Policy {
	return &Policy{
		engine: engine,
		logger: log.WithFields(map[string]interface{}{"component": "resolution"}),
	}
}

// Resolve answers the query for entity in year from the table's metric.
// Hard failures are returned as *QueryError or *series.EntityError. A failed fit is
// not an error: the result has State ForecastFailed and Valid false.
func (p *Policy) Resolve(ctx context.Context, table series.Lookup, entity string, year int) (Result, error) {
	rule, err := RuleFor(table.Metric())
	if err != nil {
		return Result{}, err
	}

	res, err := p.resolve(ctx, rule, table, entity, year)
	state := res.State
	if err != nil {
		state = failureState(err)
	}
	if state != "" {
		metrics.Resolutions.WithLabelValues(string(rule.Metric), string(state)).Inc()
	}
	return res, err
}

func failureState(err error) State {
	switch {
	case errors.Is(err, ErrInsufficientHistory):
		return ForecastInsufficientData
	case errors.Is(err, ErrUnsupportedForecastYear):
		return ForecastUnsupportedYear
	}
	return ""
}

func (p *Policy) resolve(ctx context.Context, rule Rule, table series.Lookup, entity string, year int) (Result, error) {
	res := Result{Metric: rule.Metric, Entity: entity, Year: year}

	if year < ThresholdYear {
		return p.historical(res, table)
	}
	res.IsForecast = true

	hist, err := series.Extract(table, entity, rule.FirstYear, rule.AnchorYear)
	if err != nil {
		return Result{}, err
	}
	res.Points = hist.Len()
	res.LastObserved, _ = hist.Last()

	if hist.Len() < MinHistory {
		if rule.MeanFallback && hist.Len() >= MinMeanPoints {
			res.Value, res.Valid, res.State = stat.Mean(hist.Values, nil), true, ForecastOK
			return res, nil
		}
		return Result{}, &QueryError{
			Kind:           ErrInsufficientHistory,
			Metric:         rule.Metric,
			Entity:         entity,
			Year:           year,
			Points:         hist.Len(),
			AvailableYears: hist.Years,
		}
	}

	if rule.MaxForecastYear > 0 && year > rule.MaxForecastYear {
		return Result{}, &QueryError{
			Kind:    ErrUnsupportedForecastYear,
			Metric:  rule.Metric,
			Entity:  entity,
			Year:    year,
			MaxYear: rule.MaxForecastYear,
		}
	}

	res.Steps = year - rule.AnchorYear
	start := time.Now()
	values, err := p.engine.Forecast(ctx, hist.Values, res.Steps)
	metrics.FitDuration.WithLabelValues(string(rule.Metric)).Observe(time.Since(start).Seconds())

	if err == nil && len(values) < res.Steps {
		err = fmt.Errorf("engine returned %d of %d values", len(values), res.Steps)
	}
	if err != nil {
		metrics.FitFailures.WithLabelValues(string(rule.Metric)).Inc()
		fitErr := apperrors.NewModelFitFailureError(string(rule.Metric), entity, res.Steps, err)
		p.logger.WithError(err).Warn("Forecast failed, value unavailable", map[string]interface{}{
			"code":    string(fitErr.Code),
			"details": fitErr.Details,
			"year":    year,
			"points":  res.Points,
		})
		res.State = ForecastFailed
		return res, nil
	}

	res.Value, res.Valid, res.State = values[res.Steps-1], true, ForecastOK
	return res, nil
}

// historical reads the stored cell. An existing column with an empty cell is a
// historical result without a value.
func (p *Policy) historical(res Result, table series.Lookup) (Result, error) {
	row, ok := table.Index(res.Entity)
	if !ok {
		return Result{}, &series.EntityError{Metric: res.Metric, Entity: res.Entity}
	}
	if !table.HasYear(res.Year) {
		return Result{}, &QueryError{
			Kind:           ErrNoDataForYear,
			Metric:         res.Metric,
			Entity:         res.Entity,
			Year:           res.Year,
			AvailableYears: table.Years(),
		}
	}
	res.Value, res.Valid = table.Value(row, res.Year)
	res.State = Historical
	return res, nil
}
