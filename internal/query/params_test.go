package query

import (
	"encoding/json"
	"testing"

	apperrors "forecast-service/internal/common/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseParams(t *testing.T) {
	tests := []struct {
		name     string
		region   interface{}
		year     interface{}
		want     Params
		wantCode apperrors.ErrorCode
	}{
		{name: "json number", region: "R01", year: float64(2025), want: Params{"R01", 2025}},
		{name: "numeric string", region: "R01", year: " 1999 ", want: Params{"R01", 1999}},
		{name: "json.Number", region: "R01", year: json.Number("2026"), want: Params{"R01", 2026}},
		{name: "int", region: "R01", year: 2000, want: Params{"R01", 2000}},
		{name: "trimmed region", region: "  R01 ", year: 2000, want: Params{"R01", 2000}},
		{name: "missing region", region: nil, year: 2025, wantCode: apperrors.ErrCodeMissingParameter},
		{name: "empty region", region: "", year: 2025, wantCode: apperrors.ErrCodeMissingParameter},
		{name: "missing year", region: "R01", year: nil, wantCode: apperrors.ErrCodeMissingParameter},
		{name: "empty year", region: "R01", year: "", wantCode: apperrors.ErrCodeMissingParameter},
		{name: "zero year", region: "R01", year: float64(0), wantCode: apperrors.ErrCodeMissingParameter},
		{name: "both missing", wantCode: apperrors.ErrCodeMissingParameter},
		{name: "word year", region: "R01", year: "next", wantCode: apperrors.ErrCodeInvalidYearFormat},
		{name: "fractional year", region: "R01", year: 2025.5, wantCode: apperrors.ErrCodeInvalidYearFormat},
		{name: "decimal string", region: "R01", year: "2025.0", wantCode: apperrors.ErrCodeInvalidYearFormat},
		{name: "bool year", region: "R01", year: true, wantCode: apperrors.ErrCodeInvalidYearFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseParams(tt.region, tt.year)
			if tt.wantCode == "" {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, apperrors.AsStandardError(err).Code)
		})
	}
}

func TestRound2(t *testing.T) {
	assert.Equal(t, 1234.57, Round2(1234.5678))
	assert.Equal(t, -0.05, Round2(-0.0499))
	assert.Equal(t, 0.0, Round2(0.001))
	assert.Equal(t, 12.0, Round2(12))
}
