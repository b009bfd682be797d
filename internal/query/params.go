// Package query is the boundary shared by the HTTP API and the job workers: it
// validates raw parameters, resolves them through the engine and renders values.
package query

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	apperrors "forecast-service/internal/common/errors"
)

// Params is a validated single-entity query.
type Params struct {
	Region string
	Year   int
}

// ParseParams validates region and year as they arrive from JSON or form input.
// Both are checked for presence before the year format is checked. A numeric zero
// year counts as missing.
func ParseParams(region, year interface{}) (Params, error) {
	r := regionString(region)
	if r == "" || missingYear(year) {
		var missing []string
		if r == "" {
			missing = append(missing, "region")
		}
		if missingYear(year) {
			missing = append(missing, "year")
		}
		return Params{}, apperrors.NewMissingParameterError(missing...)
	}

	y, err := ParseYear(year)
	if err != nil {
		return Params{}, err
	}
	return Params{Region: r, Year: y}, nil
}

// ParseYear accepts integral JSON numbers and numeric strings.
func ParseYear(raw interface{}) (int, error) {
	if missingYear(raw) {
		return 0, apperrors.NewMissingParameterError("year")
	}
	switch v := raw.(type) {
	case int:
		return v, nil
	case int32:
		return int(v), nil
	case int64:
		return intFromFloat(float64(v), raw)
	case float64:
		return intFromFloat(v, raw)
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return intFromFloat(float64(i), raw)
		}
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return i, nil
		}
	}
	return 0, apperrors.NewInvalidYearFormatError(raw)
}

func intFromFloat(f float64, raw interface{}) (int, error) {
	if math.IsNaN(f) || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, apperrors.NewInvalidYearFormatError(raw)
	}
	return int(f), nil
}

func missingYear(raw interface{}) bool {
	switch v := raw.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case float64:
		return v == 0
	case int:
		return v == 0
	case int64:
		return v == 0
	case json.Number:
		return v.String() == "0"
	}
	return false
}

func regionString(raw interface{}) string {
	switch v := raw.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case bool:
		return ""
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return strings.TrimSpace(fmt.Sprint(raw))
}
