// Package forecast fits the fixed-order ARIMA(1,1,1) model used for every future-year
// query and projects it forward.
package forecast

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrForecastFailure wraps every fitting or numerical failure, including timeouts.
var ErrForecastFailure = errors.New("forecast failure")

// Forecaster produces exactly steps future values for a series.
type Forecaster interface {
	Forecast(ctx context.Context, series []float64, steps int) ([]float64, error)
}

const (
	DefaultFitTimeout    = 5 * time.Second
	DefaultMaxIterations = 2000
)

// Engine is stateless between calls and safe for concurrent use.
type Engine struct {
	fitTimeout time.Duration
	maxIter    int
}

var _ Forecaster = (*Engine)(nil)

type Option func(*Engine)

// WithFitTimeout bounds a single fit. Zero or negative disables the bound.
func WithFitTimeout(d time.Duration) Option {
	return func(e *Engine) { e.fitTimeout = d }
}

func WithMaxIterations(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxIter = n
		}
	}
}

func NewEngine(opts ...Option) *Engine {
	e := &Engine{fitTimeout: DefaultFitTimeout, maxIter: DefaultMaxIterations}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type fitOutcome struct {
	values []float64
	err    error
}

// Forecast fits the series and returns steps predictions starting one period after
// the last observation. Any failure is returned wrapped in ErrForecastFailure.
func (e *Engine) Forecast(ctx context.Context, series []float64, steps int) ([]float64, error) {
	if steps < 1 {
		return nil, fmt.Errorf("%w: steps must be positive, got %d", ErrForecastFailure, steps)
	}
	if e.fitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.fitTimeout)
		defer cancel()
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrForecastFailure, err)
	}

	input := append([]float64(nil), series...)
	done := make(chan fitOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fitOutcome{err: fmt.Errorf("panic during fit: %v", r)}
			}
		}()
		values, err := e.run(ctx, input, steps)
		done <- fitOutcome{values: values, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrForecastFailure, ctx.Err())
	case out := <-done:
		if out.err != nil {
			return nil, fmt.Errorf("%w: %v", ErrForecastFailure, out.err)
		}
		return out.values, nil
	}
}

func (e *Engine) run(ctx context.Context, series []float64, steps int) ([]float64, error) {
	model, err := fitARIMA111(ctx, series, e.maxIter)
	if err != nil {
		return nil, err
	}
	values := model.predict(steps)
	if !finite(values) {
		return nil, errors.New("forecast is not finite")
	}
	return values, nil
}
