// Package aggregate runs the price policy over every product and keeps the ones whose
// outlook is not sharply declining.
package aggregate

import (
	"context"
	"errors"
	"sync/atomic"

	"forecast-service/internal/common/logger"
	"forecast-service/internal/common/metrics"
	"forecast-service/internal/resolution"
	"forecast-service/internal/series"

	"golang.org/x/sync/errgroup"
)

// MinGrowthRate is the exclusive lower bound on growth for a forecast candidate.
const MinGrowthRate = -0.05

// Candidate is one product in an aggregate answer. GrowthRate is a fraction
// ((predicted-last)/last) and nil for historical years.
type Candidate struct {
	Product        string   `json:"product"`
	PredictedPrice float64  `json:"predicted_price"`
	GrowthRate     *float64 `json:"growth_rate"`
}

// Outcome is one aggregate answer. FitFailures counts products left out because
// their fit failed; such an answer may differ on a retry.
type Outcome struct {
	Candidates  []Candidate
	FitFailures int
}

// Settled reports whether every product was decided by data rather than a failed fit.
func (o Outcome) Settled() bool {
	return o.FitFailures == 0
}

// Resolver is the subset of the resolution policy the aggregator needs.
type Resolver interface {
	Resolve(ctx context.Context, table series.Lookup, entity string, year int) (resolution.Result, error)
}

type Aggregator struct {
	policy      Resolver
	parallelism int
	logger      logger.Logger
}

func NewAggregator(policy Resolver, parallelism int, log logger.Logger) *Aggregator {
	if parallelism < 1 {
		parallelism = 1
	}
	return &Aggregator{
		policy:      policy,
		parallelism: parallelism,
		logger:      log.WithFields(map[string]interface{}{"component": "aggregate"}),
	}
}

// AggregatePrices returns candidates in the table's product order.
func (a *Aggregator) AggregatePrices(ctx context.Context, table series.Lookup, year int) (Outcome, error) {
	if year < resolution.ThresholdYear {
		return Outcome{Candidates: historical(table, year)}, nil
	}

	products := table.Entities()
	slots := make([]*Candidate, len(products))
	var failures atomic.Int32

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.parallelism)
	for i, product := range products {
		i, product := i, product
		g.Go(func() error {
			c, err := a.evaluate(gctx, table, product, year)
			if errors.Is(err, errFitFailed) {
				failures.Add(1)
				return nil
			}
			if err != nil {
				return err
			}
			slots[i] = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Outcome{}, err
	}

	out := Outcome{Candidates: make([]Candidate, 0, len(products)), FitFailures: int(failures.Load())}
	for _, c := range slots {
		if c != nil {
			out.Candidates = append(out.Candidates, *c)
		}
	}
	return out, nil
}

func historical(table series.Lookup, year int) []Candidate {
	out := []Candidate{}
	if !table.HasYear(year) {
		return out
	}
	for _, product := range table.Entities() {
		row, _ := table.Index(product)
		if v, ok := table.Value(row, year); ok {
			out = append(out, Candidate{Product: product, PredictedPrice: v})
		}
	}
	return out
}

var errFitFailed = errors.New("fit failed")

// evaluate returns nil for products that are skipped or filtered out, and
// errFitFailed for products whose fit failed.
func (a *Aggregator) evaluate(ctx context.Context, table series.Lookup, product string, year int) (*Candidate, error) {
	res, err := a.policy.Resolve(ctx, table, product, year)
	if err != nil {
		if errors.Is(err, resolution.ErrInsufficientHistory) {
			metrics.AggregateCandidates.WithLabelValues("no_history").Inc()
			return nil, nil
		}
		return nil, err
	}

	if !res.Valid {
		metrics.AggregateCandidates.WithLabelValues("fit_failed").Inc()
		return nil, errFitFailed
	}
	if res.LastObserved == 0 {
		metrics.AggregateCandidates.WithLabelValues("zero_last").Inc()
		return nil, nil
	}

	growth := (res.Value - res.LastObserved) / res.LastObserved
	if growth <= MinGrowthRate {
		metrics.AggregateCandidates.WithLabelValues("declining").Inc()
		a.logger.Debug("Product dropped by growth filter", map[string]interface{}{
			"product": product,
			"year":    year,
			"growth":  growth,
		})
		return nil, nil
	}

	metrics.AggregateCandidates.WithLabelValues("kept").Inc()
	return &Candidate{Product: product, PredictedPrice: res.Value, GrowthRate: &growth}, nil
}
