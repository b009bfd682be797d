package aggregate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"forecast-service/internal/common/logger"
	"forecast-service/internal/forecast"
	"forecast-service/internal/resolution"
	"forecast-service/internal/series"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type outcome struct {
	res resolution.Result
	err error
}

type stubResolver struct {
	mu       sync.Mutex
	outcomes map[string]outcome
	calls    []string
}

func (s *stubResolver) Resolve(_ context.Context, _ series.Lookup, entity string, year int) (resolution.Result, error) {
	s.mu.Lock()
	s.calls = append(s.calls, entity)
	s.mu.Unlock()
	o, ok := s.outcomes[entity]
	if !ok {
		return resolution.Result{}, fmt.Errorf("unexpected entity %s", entity)
	}
	o.res.Entity, o.res.Year = entity, year
	return o.res, o.err
}

func forecastOK(last, predicted float64) outcome {
	return outcome{res: resolution.Result{Valid: true, IsForecast: true, State: resolution.ForecastOK, LastObserved: last, Value: predicted}}
}

func productTable(products ...string) *series.Table {
	b := series.NewBuilder(series.Price)
	b.DeclareYears(2022, 2023)
	for i, p := range products {
		cells := map[int]float64{2023: float64(i + 1)}
		if i%2 == 0 {
			cells[2022] = float64(10 * (i + 1))
		}
		b.AddRow(p, cells)
	}
	return b.Build()
}

func TestAggregatePrices_GrowthFilterAndGuards(t *testing.T) {
	resolver := &stubResolver{outcomes: map[string]outcome{
		"falling":   forecastOK(100, 94),
		"steady":    forecastOK(100, 96),
		"boundary":  forecastOK(100, 95),
		"rising":    forecastOK(50, 60),
		"zero":      forecastOK(0, 12),
		"failed":    {res: resolution.Result{State: resolution.ForecastFailed, IsForecast: true, LastObserved: 10}},
		"short":     {err: &resolution.QueryError{Kind: resolution.ErrInsufficientHistory}},
		"meanOnly":  forecastOK(60, 30),
		"meanRaise": forecastOK(10, 30),
	}}
	order := []string{"falling", "steady", "boundary", "rising", "zero", "failed", "short", "meanOnly", "meanRaise"}

	agg := NewAggregator(resolver, 3, logger.NewTestLogger(t))
	out, err := agg.AggregatePrices(context.Background(), productTable(order...), 2025)
	require.NoError(t, err)
	assert.Equal(t, 1, out.FitFailures)
	assert.False(t, out.Settled())

	got := out.Candidates
	require.Len(t, got, 3)
	assert.Equal(t, "steady", got[0].Product)
	assert.Equal(t, 96.0, got[0].PredictedPrice)
	require.NotNil(t, got[0].GrowthRate)
	assert.InDelta(t, -0.04, *got[0].GrowthRate, 1e-12)

	assert.Equal(t, "rising", got[1].Product)
	assert.InDelta(t, 0.2, *got[1].GrowthRate, 1e-12)

	assert.Equal(t, "meanRaise", got[2].Product)
	assert.InDelta(t, 2.0, *got[2].GrowthRate, 1e-12)

	assert.ElementsMatch(t, order, resolver.calls)
}

func TestAggregatePrices_PreservesInsertionOrder(t *testing.T) {
	outcomes := map[string]outcome{}
	var order []string
	for i := 0; i < 40; i++ {
		name := fmt.Sprintf("p%02d", 39-i)
		order = append(order, name)
		outcomes[name] = forecastOK(10, 10+float64(i))
	}

	agg := NewAggregator(&stubResolver{outcomes: outcomes}, 8, logger.NewNoOpLogger())
	out, err := agg.AggregatePrices(context.Background(), productTable(order...), 2026)
	require.NoError(t, err)
	assert.True(t, out.Settled())

	got := out.Candidates
	require.Len(t, got, len(order))
	for i, c := range got {
		assert.Equal(t, order[i], c.Product)
	}
}

func TestAggregatePrices_Historical(t *testing.T) {
	resolver := &stubResolver{}
	agg := NewAggregator(resolver, 2, logger.NewNoOpLogger())
	tbl := productTable("a", "b", "c")

	out, err := agg.AggregatePrices(context.Background(), tbl, 2022)
	require.NoError(t, err)
	got := out.Candidates
	require.Len(t, got, 2, "b has no 2022 value")
	assert.Equal(t, Candidate{Product: "a", PredictedPrice: 10}, got[0])
	assert.Equal(t, Candidate{Product: "c", PredictedPrice: 30}, got[1])
	assert.Nil(t, got[0].GrowthRate)

	out, err = agg.AggregatePrices(context.Background(), tbl, 2023)
	require.NoError(t, err)
	assert.Len(t, out.Candidates, 3)

	out, err = agg.AggregatePrices(context.Background(), tbl, 2024)
	require.NoError(t, err)
	assert.NotNil(t, out.Candidates)
	assert.Empty(t, out.Candidates, "no column for 2024")

	assert.Empty(t, resolver.calls, "historical years never resolve")
}

func TestAggregatePrices_PropagatesHardErrors(t *testing.T) {
	boom := errors.New("boom")
	resolver := &stubResolver{outcomes: map[string]outcome{
		"a": forecastOK(10, 11),
		"b": {err: boom},
	}}

	_, err := NewAggregator(resolver, 1, logger.NewNoOpLogger()).
		AggregatePrices(context.Background(), productTable("a", "b"), 2025)
	assert.ErrorIs(t, err, boom)
}

func TestAggregatePrices_WithRealPolicy(t *testing.T) {
	b := series.NewBuilder(series.Price)
	for y := 2005; y <= 2023; y++ {
		b.DeclareYears(y)
	}
	growing := map[int]float64{}
	falling := map[int]float64{}
	for y := 2005; y <= 2023; y++ {
		growing[y] = 100 + 5*float64(y-2005)
		falling[y] = 300 - 12*float64(y-2005)
	}
	b.AddRow("growing", growing)
	b.AddRow("falling", falling)
	b.AddRow("fresh", map[int]float64{2022: 40, 2023: 44})
	b.AddRow("free", map[int]float64{2022: 0, 2023: 0})

	policy := resolution.NewPolicy(forecast.NewEngine(), logger.NewNoOpLogger())
	out, err := NewAggregator(policy, 2, logger.NewNoOpLogger()).
		AggregatePrices(context.Background(), b.Build(), 2025)
	require.NoError(t, err)
	got := out.Candidates

	var names []string
	for _, c := range got {
		names = append(names, c.Product)
	}
	assert.Equal(t, []string{"growing", "fresh"}, names)
	assert.InDelta(t, 42.0, got[1].PredictedPrice, 1e-9, "mean fallback")
}
