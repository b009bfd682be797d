package forecast

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"
)

// minDifferenced is the shortest differenced series an ARIMA(1,1,1) fit accepts.
const minDifferenced = 3

// maxInitialPhi keeps the starting point away from the tanh asymptotes.
const maxInitialPhi = 0.9

// arima111 holds a fitted ARIMA(1,1,1) without constant:
//
//	w_t = y_t - y_{t-1}
//	w_t = phi*w_{t-1} + e_t + theta*e_{t-1}
type arima111 struct {
	phi, theta float64
	lastLevel  float64 // y_n
	lastDiff   float64 // w_m
	lastResid  float64 // e_m
}

// fitARIMA111 estimates phi and theta by conditional sum of squares (e_0 = 0) with a
// Nelder-Mead search over (atanh(phi), atanh(theta)). The search stops as soon as ctx
// is done.
func fitARIMA111(ctx context.Context, y []float64, maxIter int) (*arima111, error) {
	if !finite(y) {
		return nil, errors.New("series contains non-finite values")
	}
	if len(y)-1 < minDifferenced {
		return nil, fmt.Errorf("need at least %d points, got %d", minDifferenced+1, len(y))
	}

	w := make([]float64, len(y)-1)
	for i := range w {
		w[i] = y[i+1] - y[i]
	}

	m := &arima111{lastLevel: y[len(y)-1], lastDiff: w[len(w)-1]}

	// A flat differenced series has nothing to estimate.
	if floats.Norm(w, 2) == 0 {
		return m, nil
	}

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			sse, _ := css(w, math.Tanh(x[0]), math.Tanh(x[1]))
			return sse
		},
	}
	x0 := []float64{math.Atanh(initialPhi(w)), 0}
	settings := &optimize.Settings{MajorIterations: maxIter, Recorder: cancelRecorder{ctx: ctx}}

	res, err := optimize.Minimize(problem, x0, settings, &optimize.NelderMead{})
	if res == nil {
		return nil, fmt.Errorf("optimizer: %w", err)
	}
	if err != nil && !limitReached(res.Status) {
		return nil, fmt.Errorf("optimizer: %w", err)
	}
	if !finite(res.X) || !finite([]float64{res.F}) {
		return nil, errors.New("optimizer returned a non-finite solution")
	}

	m.phi, m.theta = math.Tanh(res.X[0]), math.Tanh(res.X[1])
	_, m.lastResid = css(w, m.phi, m.theta)
	return m, nil
}

// cancelRecorder fails the optimization on the next operation after ctx is done.
type cancelRecorder struct {
	ctx context.Context
}

func (cancelRecorder) Init() error { return nil }

func (r cancelRecorder) Record(*optimize.Location, optimize.Operation, *optimize.Stats) error {
	return r.ctx.Err()
}

// limitReached reports statuses where the best point so far is still usable.
func limitReached(s optimize.Status) bool {
	switch s {
	case optimize.IterationLimit, optimize.FunctionEvaluationLimit, optimize.RuntimeLimit:
		return true
	}
	return false
}

// css returns the conditional sum of squared innovations and the final innovation.
func css(w []float64, phi, theta float64) (sse, last float64) {
	var prev float64
	for t := 1; t < len(w); t++ {
		e := w[t] - phi*w[t-1] - theta*prev
		sse += e * e
		prev = e
	}
	if math.IsNaN(sse) || math.IsInf(sse, 0) {
		return math.MaxFloat64, prev
	}
	return sse, prev
}

// initialPhi is the lag-1 autocorrelation of w, clipped to ±maxInitialPhi.
func initialPhi(w []float64) float64 {
	mean := stat.Mean(w, nil)
	var num, den float64
	for i, v := range w {
		d := v - mean
		den += d * d
		if i > 0 {
			num += d * (w[i-1] - mean)
		}
	}
	if den == 0 {
		return 0
	}
	return math.Max(-maxInitialPhi, math.Min(maxInitialPhi, num/den))
}

// predict returns the next steps levels after the last observation.
func (m *arima111) predict(steps int) []float64 {
	diffs := make([]float64, steps)
	prev := m.phi*m.lastDiff + m.theta*m.lastResid
	diffs[0] = prev
	for h := 1; h < steps; h++ {
		prev = m.phi * prev
		diffs[h] = prev
	}

	levels := floats.CumSum(make([]float64, steps), diffs)
	floats.AddConst(m.lastLevel, levels)
	return levels
}

func finite(xs []float64) bool {
	for _, v := range xs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
