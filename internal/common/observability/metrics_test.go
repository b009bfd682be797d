package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObservability_RecordQuery(t *testing.T) {
	obs, err := New("forecast-service-test")
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		obs.RecordQuery(context.Background(), "single", "ok", 3*time.Millisecond)
		obs.RecordQuery(context.Background(), "aggregate", "NO_DATA_FOR_YEAR", time.Millisecond)
	})
	assert.NoError(t, obs.Shutdown(context.Background()))
}

func TestObservability_NilSafe(t *testing.T) {
	var obs *Observability
	assert.NotPanics(t, func() {
		obs.RecordQuery(context.Background(), "single", "ok", time.Millisecond)
	})
	assert.NoError(t, obs.Shutdown(context.Background()))
	assert.NoError(t, (&Observability{}).Shutdown(context.Background()))
}
