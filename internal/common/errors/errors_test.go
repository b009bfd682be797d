package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  *StandardError
		want int
	}{
		{"missing parameter", NewMissingParameterError("region"), http.StatusBadRequest},
		{"invalid year", NewInvalidYearFormatError("20x5"), http.StatusBadRequest},
		{"unknown entity", NewEntityNotFoundError("rainfall", "R99", []string{"R01"}), http.StatusNotFound},
		{"no data", NewNoDataForYearError("rainfall", 1900, []int{1950}), http.StatusNotFound},
		{"insufficient", NewInsufficientHistoryError("rainfall", "R01", 4, 10, nil), http.StatusBadRequest},
		{"unsupported", NewUnsupportedForecastYearError("rainfall", 2030, 2026), http.StatusBadRequest},
		{"metric unavailable", NewMetricUnavailableError("price"), http.StatusServiceUnavailable},
		{"internal", NewInternalError(fmt.Errorf("disk")), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.HTTPStatus())
		})
	}
}

func TestAsStandardError(t *testing.T) {
	assert.Nil(t, AsStandardError(nil))

	nf := NewEntityNotFoundError("rainfall", "R99", []string{"R01"})
	wrapped := fmt.Errorf("lookup: %w", nf)
	assert.Same(t, nf, AsStandardError(wrapped))

	raw := stderrors.New("boom")
	got := AsStandardError(raw)
	require.NotNil(t, got)
	assert.Equal(t, ErrCodeInternal, got.Code)
	assert.Equal(t, "Internal server error", got.Message)
	assert.True(t, Is(got, raw))
}

func TestConvertToBPMNError_CarriesMetadata(t *testing.T) {
	bpmn := ConvertToBPMNError(NewUnsupportedForecastYearError("sunshine", 2030, 2026))

	vars := bpmn.ToErrorVariables()
	assert.Equal(t, "UNSUPPORTED_FORECAST_YEAR", vars["errorCode"])
	assert.Equal(t, 2026, vars[MetaMaxPredictYear])
	assert.Equal(t, false, vars["retryable"])
}

func TestGetRetryCount(t *testing.T) {
	assert.Equal(t, 2, GetRetryCount(ErrCodeInternal))
	assert.Equal(t, 0, GetRetryCount(ErrCodeEntityNotFound))
	assert.Equal(t, 0, GetRetryCount(ErrCodeInsufficientHistory))
}

func TestRemainingRetries(t *testing.T) {
	assert.Equal(t, int32(2), remainingRetries(3, 2))
	assert.Equal(t, int32(1), remainingRetries(2, 5))
	assert.Equal(t, int32(0), remainingRetries(0, 2))
}

func TestGetErrorCategory(t *testing.T) {
	assert.Equal(t, "request", GetErrorCategory(ErrCodeMissingParameter))
	assert.Equal(t, "lookup", GetErrorCategory(ErrCodeNoDataForYear))
	assert.Equal(t, "forecast", GetErrorCategory(ErrCodeModelFitFailure))
	assert.Equal(t, "internal", GetErrorCategory(ErrorCode("SOMETHING")))
}
