package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"forecast-service/internal/aggregate"
	apperrors "forecast-service/internal/common/errors"
	"forecast-service/internal/common/logger"
	"forecast-service/internal/common/observability"
	"forecast-service/internal/resolution"
	"forecast-service/internal/series"
)

// Resolver resolves one entity against one metric table.
type Resolver interface {
	Resolve(ctx context.Context, table series.Lookup, entity string, year int) (resolution.Result, error)
}

// PriceAggregator evaluates every product in the price table.
type PriceAggregator interface {
	AggregatePrices(ctx context.Context, table series.Lookup, year int) (aggregate.Outcome, error)
}

type Options struct {
	MemoSize int
	MemoTTL  time.Duration
	// AggregateCache is optional.
	AggregateCache AggregateCache
}

// Service answers single-entity and aggregate queries. Every error it returns is a
// *errors.StandardError. Answers that depend on a failed fit are never memoised or
// cached, so a retry fits again.
type Service struct {
	store      *series.Store
	policy     Resolver
	aggregator PriceAggregator
	obs        *observability.Observability
	logger     logger.Logger

	rainMemo     *memo[RainfallResponse]
	combinedMemo *memo[CombinedResponse]
	aggCache     AggregateCache
}

func NewService(store *series.Store, policy Resolver, aggregator PriceAggregator, obs *observability.Observability, log logger.Logger, opts Options) (*Service, error) {
	rainMemo, err := newMemo[RainfallResponse](opts.MemoSize, opts.MemoTTL)
	if err != nil {
		return nil, fmt.Errorf("rainfall memo: %w", err)
	}
	combinedMemo, err := newMemo[CombinedResponse](opts.MemoSize, opts.MemoTTL)
	if err != nil {
		return nil, fmt.Errorf("combined memo: %w", err)
	}
	return &Service{
		store:        store,
		policy:       policy,
		aggregator:   aggregator,
		obs:          obs,
		logger:       log.WithFields(map[string]interface{}{"component": "query"}),
		rainMemo:     rainMemo,
		combinedMemo: combinedMemo,
		aggCache:     opts.AggregateCache,
	}, nil
}

// Regions lists the rainfall entities in table order.
func (s *Service) Regions() []string {
	t, ok := s.store.Table(series.Rainfall)
	if !ok {
		return []string{}
	}
	return t.Entities()
}

// PredictRainfall answers a rainfall-only query.
func (s *Service) PredictRainfall(ctx context.Context, p Params) (resp *RainfallResponse, err error) {
	defer s.observe(ctx, "rainfall", time.Now(), &err)

	key := memoKey("rain", p)
	if cached, ok := s.rainMemo.get(key); ok {
		return &cached, nil
	}

	rain, err := s.resolveRequired(ctx, series.Rainfall, p)
	if err != nil {
		return nil, err
	}

	out := RainfallResponse{
		Region:    p.Region,
		Year:      p.Year,
		Rain:      renderValue(rain),
		Unit:      RainfallUnit,
		Predicted: IsPredicted(p.Year),
		Status:    StatusSuccess,
	}
	if rain.State != resolution.ForecastFailed {
		s.rainMemo.set(key, out)
	}
	return &out, nil
}

// PredictCombined answers rainfall, sunshine and the price outlook for one region
// and year. Rainfall errors are returned; sunshine and price degrade to null and an
// empty list when their tables are missing or cannot answer.
func (s *Service) PredictCombined(ctx context.Context, p Params) (resp *CombinedResponse, err error) {
	defer s.observe(ctx, "combined", time.Now(), &err)

	key := memoKey("combined", p)
	if cached, ok := s.combinedMemo.get(key); ok {
		return &cached, nil
	}

	rain, err := s.resolveRequired(ctx, series.Rainfall, p)
	if err != nil {
		return nil, err
	}

	sunshine, sunSettled, err := s.resolveOptional(ctx, series.Sunshine, p)
	if err != nil {
		return nil, err
	}

	prices, pricesSettled, err := s.prices(ctx, p.Year)
	if err != nil {
		return nil, err
	}

	out := CombinedResponse{
		Region:      p.Region,
		Year:        p.Year,
		Rain:        renderValue(rain),
		Sunshine:    sunshine,
		Predicted:   IsPredicted(p.Year),
		PriceResult: prices,
		Status:      StatusSuccess,
	}
	if rain.State != resolution.ForecastFailed && sunSettled && pricesSettled {
		s.combinedMemo.set(key, out)
	}
	return &out, nil
}

// PredictSunshine resolves the sunshine value on its own, degrading to nil like
// the combined query does.
func (s *Service) PredictSunshine(ctx context.Context, p Params) (v *float64, err error) {
	defer s.observe(ctx, "sunshine", time.Now(), &err)
	v, _, err = s.resolveOptional(ctx, series.Sunshine, p)
	return v, err
}

// AggregatePrices answers the aggregate price query for a year.
func (s *Service) AggregatePrices(ctx context.Context, year int) (resp *AggregateResponse, err error) {
	defer s.observe(ctx, "aggregate", time.Now(), &err)

	items, _, err := s.prices(ctx, year)
	if err != nil {
		return nil, err
	}
	return &AggregateResponse{
		Year:        year,
		Predicted:   IsPredicted(year),
		PriceResult: items,
		Status:      StatusSuccess,
	}, nil
}

func (s *Service) resolveRequired(ctx context.Context, m series.Metric, p Params) (resolution.Result, error) {
	table, ok := s.store.Table(m)
	if !ok {
		return resolution.Result{}, apperrors.NewMetricUnavailableError(string(m))
	}
	res, err := s.policy.Resolve(ctx, table, p.Region, p.Year)
	if err != nil {
		return resolution.Result{}, toStandardError(err, table)
	}
	return res, nil
}

// resolveOptional degrades to nil instead of failing. settled is false when the
// value is missing because its fit failed.
func (s *Service) resolveOptional(ctx context.Context, m series.Metric, p Params) (v *float64, settled bool, err error) {
	table, ok := s.store.Table(m)
	if !ok {
		return nil, true, nil
	}
	res, err := s.policy.Resolve(ctx, table, p.Region, p.Year)
	if err != nil {
		stdErr := toStandardError(err, table)
		if stdErr.Code == apperrors.ErrCodeInternal {
			return nil, false, stdErr
		}
		s.logger.Debug("Optional metric unavailable", map[string]interface{}{
			"metric": string(m),
			"region": p.Region,
			"year":   p.Year,
			"code":   string(stdErr.Code),
		})
		return nil, true, nil
	}
	return renderValue(res), res.State != resolution.ForecastFailed, nil
}

// prices returns the rendered aggregate for a year. settled is false when a
// product was left out because its fit failed; such lists are not cached.
func (s *Service) prices(ctx context.Context, year int) (items []PriceItem, settled bool, err error) {
	table, ok := s.store.Table(series.Price)
	if !ok {
		return []PriceItem{}, true, nil
	}

	if s.aggCache != nil {
		items, hit, err := s.aggCache.Get(ctx, year)
		if err != nil {
			s.logger.Warn("Aggregate cache read failed", map[string]interface{}{"year": year, "error": err})
		} else if hit {
			return items, true, nil
		}
	}

	outcome, err := s.aggregator.AggregatePrices(ctx, table, year)
	if err != nil {
		return nil, false, toStandardError(err, table)
	}
	items = renderCandidates(outcome.Candidates)
	if !outcome.Settled() {
		s.logger.Warn("Aggregate incomplete, not cached", map[string]interface{}{
			"year":        year,
			"fitFailures": outcome.FitFailures,
		})
		return items, false, nil
	}

	if s.aggCache != nil {
		if err := s.aggCache.Set(ctx, year, items); err != nil {
			s.logger.Warn("Aggregate cache write failed", map[string]interface{}{"year": year, "error": err})
		}
	}
	return items, true, nil
}

func (s *Service) observe(ctx context.Context, kind string, start time.Time, errp *error) {
	status := "ok"
	if *errp != nil {
		status = string(apperrors.AsStandardError(*errp).Code)
	}
	s.obs.RecordQuery(ctx, kind, status, time.Since(start))
}

func memoKey(kind string, p Params) string {
	return fmt.Sprintf("%s|%s|%d", kind, p.Region, p.Year)
}

// toStandardError maps engine errors onto the taxonomy, attaching the context the
// caller needs to correct the request.
func toStandardError(err error, table series.Lookup) *apperrors.StandardError {
	var stdErr *apperrors.StandardError
	if errors.As(err, &stdErr) {
		return stdErr
	}

	var entErr *series.EntityError
	if errors.As(err, &entErr) {
		return apperrors.NewEntityNotFoundError(string(entErr.Metric), entErr.Entity, table.Entities())
	}

	var qe *resolution.QueryError
	if errors.As(err, &qe) {
		switch {
		case errors.Is(qe, resolution.ErrNoDataForYear):
			return apperrors.NewNoDataForYearError(string(qe.Metric), qe.Year, qe.AvailableYears)
		case errors.Is(qe, resolution.ErrInsufficientHistory):
			return apperrors.NewInsufficientHistoryError(string(qe.Metric), qe.Entity, qe.Points, resolution.MinHistory, qe.AvailableYears)
		case errors.Is(qe, resolution.ErrUnsupportedForecastYear):
			return apperrors.NewUnsupportedForecastYearError(string(qe.Metric), qe.Year, qe.MaxYear)
		}
	}
	return apperrors.NewInternalError(err)
}
