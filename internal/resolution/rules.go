// Package resolution decides, per query, whether a value is read from the store or
// forecast, and applies the per-metric sample size and horizon rules.
package resolution

import (
	"errors"
	"fmt"

	"forecast-service/internal/series"
)

const (
	// ThresholdYear is the first year answered by a forecast for every metric.
	ThresholdYear = 2025
	// MinHistory is the minimum number of observed points needed to fit a model.
	MinHistory = 10
	// MinMeanPoints is the fewest points the price mean fallback accepts.
	MinMeanPoints = 2
)

// Rule parameterises the policy for one metric.
type Rule struct {
	Metric    series.Metric
	FirstYear int
	// AnchorYear is the last year with confirmed data; steps count from here.
	AnchorYear int
	// MaxForecastYear is the last year that may be forecast; zero means no limit.
	MaxForecastYear int
	// MeanFallback answers short price series with their arithmetic mean.
	MeanFallback bool
}

// Rules lists the supported metrics.
var Rules = map[series.Metric]Rule{
	series.Rainfall: {Metric: series.Rainfall, FirstYear: 1950, AnchorYear: 2022, MaxForecastYear: 2026},
	series.Sunshine: {Metric: series.Sunshine, FirstYear: 1960, AnchorYear: 2022, MaxForecastYear: 2026},
	series.Price:    {Metric: series.Price, FirstYear: 2005, AnchorYear: 2023, MeanFallback: true},
}

// RuleFor returns the rule for a metric.
func RuleFor(m series.Metric) (Rule, error) {
	r, ok := Rules[m]
	if !ok {
		return Rule{}, fmt.Errorf("no resolution rule for metric %q", m)
	}
	return r, nil
}

// Sentinels for the hard failure states.
var (
	ErrNoDataForYear           = errors.New("no data for year")
	ErrInsufficientHistory     = errors.New("insufficient history")
	ErrUnsupportedForecastYear = errors.New("unsupported forecast year")
)

// QueryError carries the context callers need to explain a hard failure.
// Unwrap yields one of the sentinels above.
type QueryError struct {
	Kind   error
	Metric series.Metric
	Entity string
	Year   int
	// Points is the number of usable observations (insufficient history only).
	Points int
	// AvailableYears lists year columns (no data) or years with data (insufficient history).
	AvailableYears []int
	// MaxYear is the last supported forecast year (unsupported year only).
	MaxYear int
}

func (e *QueryError) Error() string {
	switch e.Kind {
	case ErrInsufficientHistory:
		return fmt.Sprintf("%s/%s: %v: %d points, need %d", e.Metric, e.Entity, e.Kind, e.Points, MinHistory)
	case ErrUnsupportedForecastYear:
		return fmt.Sprintf("%s/%s: %v %d, max %d", e.Metric, e.Entity, e.Kind, e.Year, e.MaxYear)
	}
	return fmt.Sprintf("%s/%s: %v %d", e.Metric, e.Entity, e.Kind, e.Year)
}

func (e *QueryError) Unwrap() error {
	return e.Kind
}
