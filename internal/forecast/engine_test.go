package forecast

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/optimize"
)

func rainfallLike(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 1200 + 3*float64(i) + 40*math.Sin(float64(i)*1.3)
	}
	return out
}

func TestEngine_ReturnsExactlyStepsValues(t *testing.T) {
	e := NewEngine()
	series := rainfallLike(40)

	for steps := 1; steps <= 5; steps++ {
		got, err := e.Forecast(context.Background(), series, steps)
		require.NoError(t, err)
		assert.Len(t, got, steps)
		for _, v := range got {
			assert.False(t, math.IsNaN(v) || math.IsInf(v, 0))
		}
	}
}

func TestEngine_Deterministic(t *testing.T) {
	e := NewEngine()
	series := rainfallLike(60)

	first, err := e.Forecast(context.Background(), series, 4)
	require.NoError(t, err)
	second, err := e.Forecast(context.Background(), series, 4)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestEngine_PrefixStable(t *testing.T) {
	e := NewEngine()
	series := rainfallLike(30)

	short, err := e.Forecast(context.Background(), series, 2)
	require.NoError(t, err)
	long, err := e.Forecast(context.Background(), series, 4)
	require.NoError(t, err)

	assert.Equal(t, short, long[:2])
}

func TestEngine_FlatSeriesForecastsLastValue(t *testing.T) {
	series := []float64{5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5}

	got, err := NewEngine().Forecast(context.Background(), series, 3)
	require.NoError(t, err)
	assert.Equal(t, []float64{5, 5, 5}, got)
}

func TestEngine_LinearTrendIsExtended(t *testing.T) {
	series := make([]float64, 30)
	for i := range series {
		series[i] = 100 + 2*float64(i)
	}

	got, err := NewEngine().Forecast(context.Background(), series, 2)
	require.NoError(t, err)
	assert.InDelta(t, 160, got[0], 0.5)
	assert.InDelta(t, 162, got[1], 0.5)
}

func TestEngine_DoesNotMutateInput(t *testing.T) {
	series := rainfallLike(20)
	orig := append([]float64(nil), series...)

	_, err := NewEngine().Forecast(context.Background(), series, 2)
	require.NoError(t, err)
	assert.Equal(t, orig, series)
}

func TestEngine_Failures(t *testing.T) {
	canceled, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name   string
		ctx    context.Context
		series []float64
		steps  int
	}{
		{"too few points", context.Background(), []float64{1, 2, 3}, 1},
		{"empty", context.Background(), nil, 1},
		{"nan", context.Background(), []float64{1, 2, math.NaN(), 4, 5, 6}, 1},
		{"inf", context.Background(), []float64{1, 2, math.Inf(1), 4, 5, 6}, 1},
		{"zero steps", context.Background(), rainfallLike(20), 0},
		{"canceled", canceled, rainfallLike(20), 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewEngine().Forecast(tt.ctx, tt.series, tt.steps)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrForecastFailure))
			assert.Nil(t, got)
		})
	}
}

func TestFitARIMA111_RecoversAR(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	const n = 400
	y := make([]float64, n)
	var w float64
	for i := 1; i < n; i++ {
		w = 0.6*w + rng.NormFloat64()
		y[i] = y[i-1] + w
	}

	m, err := fitARIMA111(context.Background(), y, DefaultMaxIterations)
	require.NoError(t, err)
	assert.InDelta(t, 0.6, m.phi, 0.15)
	assert.InDelta(t, 0.0, m.theta, 0.2)
	assert.Less(t, math.Abs(m.phi), 1.0)
	assert.Less(t, math.Abs(m.theta), 1.0)
}

func TestInitialPhi(t *testing.T) {
	alternating := []float64{1, -1, 1, -1, 1, -1, 1, -1, 1, -1}
	assert.InDelta(t, -0.9, initialPhi(alternating), 1e-12)
	assert.Equal(t, 0.0, initialPhi([]float64{3, 3, 3}))
}

func TestCSS(t *testing.T) {
	w := []float64{1, 2, 3}
	sse, last := css(w, 0, 0)
	assert.Equal(t, 4.0+9.0, sse)
	assert.Equal(t, 3.0, last)

	sse, last = css(w, 1, 0)
	assert.Equal(t, 2.0, sse)
	assert.Equal(t, 1.0, last)
}

func TestFitARIMA111_StopsWhenContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := fitARIMA111(ctx, rainfallLike(60), DefaultMaxIterations)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFitARIMA111_CancelledMidSearch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := 0
	rec := cancelRecorder{ctx: ctx}
	y := rainfallLike(60)
	w := make([]float64, len(y)-1)
	for i := range w {
		w[i] = y[i+1] - y[i]
	}
	problem := optimize.Problem{Func: func(x []float64) float64 {
		calls++
		if calls == 5 {
			cancel()
		}
		sse, _ := css(w, math.Tanh(x[0]), math.Tanh(x[1]))
		return sse
	}}

	res, err := optimize.Minimize(problem, []float64{0, 0},
		&optimize.Settings{MajorIterations: 1_000_000, Recorder: rec}, &optimize.NelderMead{})
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)
	assert.Less(t, calls, 20)
}
