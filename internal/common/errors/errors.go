// Package errors provides the standardized error taxonomy shared by the HTTP API
// and the job workers.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Is and As forward to the standard library so callers need a single import.
var (
	Is = stderrors.Is
	As = stderrors.As
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

// Request / boundary errors
const (
	ErrCodeMissingParameter  ErrorCode = "MISSING_PARAMETER"
	ErrCodeInvalidYearFormat ErrorCode = "INVALID_YEAR_FORMAT"
)

// Lookup and resolution errors
const (
	ErrCodeEntityNotFound          ErrorCode = "ENTITY_NOT_FOUND"
	ErrCodeNoDataForYear           ErrorCode = "NO_DATA_FOR_YEAR"
	ErrCodeInsufficientHistory     ErrorCode = "INSUFFICIENT_HISTORY"
	ErrCodeUnsupportedForecastYear ErrorCode = "UNSUPPORTED_FORECAST_YEAR"
	ErrCodeModelFitFailure         ErrorCode = "MODEL_FIT_FAILURE"
	ErrCodeMetricUnavailable       ErrorCode = "METRIC_UNAVAILABLE"
	ErrCodeInternal                ErrorCode = "INTERNAL_ERROR"
)

// Transport errors
const (
	ErrCodeRateLimited    ErrorCode = "RATE_LIMITED"
	ErrCodeInvalidRequest ErrorCode = "INVALID_REQUEST"
)

// Metadata keys understood by the transports.
const (
	MetaAvailableRegions = "available_regions"
	MetaAvailableYears   = "available_years"
	MetaMaxPredictYear   = "max_predict_year"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	cause     error
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// WithCause attaches the underlying error without exposing it in Details.
func (e *StandardError) WithCause(err error) *StandardError {
	e.cause = err
	return e
}

// HTTPStatus maps the error code to a response status.
func (e *StandardError) HTTPStatus() int {
	switch e.Code {
	case ErrCodeMissingParameter, ErrCodeInvalidYearFormat,
		ErrCodeInsufficientHistory, ErrCodeUnsupportedForecastYear:
		return http.StatusBadRequest
	case ErrCodeEntityNotFound, ErrCodeNoDataForYear:
		return http.StatusNotFound
	case ErrCodeMetricUnavailable:
		return http.StatusServiceUnavailable
	case ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case ErrCodeInvalidRequest:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job error variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// ConvertToBPMNError converts a StandardError into a BPMN error. Metadata becomes
// error variables so the workflow can branch on available regions or years.
func ConvertToBPMNError(err *StandardError) *BPMNError {
	return &BPMNError{
		Code:           string(err.Code),
		Message:        err.Message,
		Details:        err.Details,
		Retryable:      err.Retryable,
		ErrorVariables: err.Metadata,
	}
}

// ==========================
// 3. Error Constructors
// ==========================

func newError(code ErrorCode, message, details string) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewMissingParameterError is returned before the engine is invoked.
func NewMissingParameterError(names ...string) *StandardError {
	return newError(ErrCodeMissingParameter,
		"Missing required parameter: region or year",
		fmt.Sprintf("missing: %v", names))
}

// NewInvalidYearFormatError reports a year that is not an integer.
func NewInvalidYearFormatError(raw interface{}) *StandardError {
	return newError(ErrCodeInvalidYearFormat,
		"Year must be an integer",
		fmt.Sprintf("year: %v", raw))
}

// NewEntityNotFoundError lists the known entities so the caller can retry.
func NewEntityNotFoundError(metric, entity string, available []string) *StandardError {
	e := newError(ErrCodeEntityNotFound,
		fmt.Sprintf("Region %s not found", entity),
		fmt.Sprintf("metric: %s, entity: %s", metric, entity))
	e.Metadata = map[string]interface{}{MetaAvailableRegions: available}
	return e
}

// NewNoDataForYearError includes the years that do have data.
func NewNoDataForYearError(metric string, year int, available []int) *StandardError {
	e := newError(ErrCodeNoDataForYear,
		fmt.Sprintf("No data for year %d", year),
		fmt.Sprintf("metric: %s", metric))
	e.Metadata = map[string]interface{}{MetaAvailableYears: available}
	return e
}

// NewInsufficientHistoryError reports too few usable points to forecast.
func NewInsufficientHistoryError(metric, entity string, points, required int, available []int) *StandardError {
	e := newError(ErrCodeInsufficientHistory,
		"Insufficient historical data to forecast",
		fmt.Sprintf("metric: %s, entity: %s, points: %d, required: %d", metric, entity, points, required))
	e.Metadata = map[string]interface{}{MetaAvailableYears: available}
	return e
}

// NewUnsupportedForecastYearError states the last year that can be forecast.
func NewUnsupportedForecastYearError(metric string, year, maxYear int) *StandardError {
	e := newError(ErrCodeUnsupportedForecastYear,
		fmt.Sprintf("Only forecasts up to %d are supported", maxYear),
		fmt.Sprintf("metric: %s, year: %d", metric, year))
	e.Metadata = map[string]interface{}{MetaMaxPredictYear: maxYear}
	return e
}

// NewModelFitFailureError is logged and counted, never returned to callers.
func NewModelFitFailureError(metric, entity string, steps int, err error) *StandardError {
	return newError(ErrCodeModelFitFailure,
		"Forecast model could not be fitted",
		fmt.Sprintf("metric: %s, entity: %s, steps: %d, error: %v", metric, entity, steps, err)).WithCause(err)
}

// NewMetricUnavailableError is returned when a metric table was not loaded.
func NewMetricUnavailableError(metric string) *StandardError {
	return newError(ErrCodeMetricUnavailable,
		fmt.Sprintf("Metric %s is not available", metric),
		"")
}

// NewRateLimitedError is returned when the request budget is exhausted.
func NewRateLimitedError() *StandardError {
	e := newError(ErrCodeRateLimited, "Too many requests", "")
	e.Retryable = true
	return e
}

// NewInvalidRequestError reports a body that could not be decoded.
func NewInvalidRequestError(err error) *StandardError {
	return newError(ErrCodeInvalidRequest, "Request body is not valid JSON", err.Error()).WithCause(err)
}

// NewInputValidationError reports job variables rejected by the input schema.
func NewInputValidationError(messages []string) *StandardError {
	return newError(ErrCodeInvalidRequest, "Input validation failed", strings.Join(messages, "; "))
}

// NewInternalError hides the cause from the message; it is kept for logging only.
func NewInternalError(err error) *StandardError {
	return newError(ErrCodeInternal, "Internal server error", "").WithCause(err)
}

// ==========================
// 4. Helpers
// ==========================

// AsStandardError normalizes any error into a StandardError.
func AsStandardError(err error) *StandardError {
	if err == nil {
		return nil
	}
	var stdErr *StandardError
	if As(err, &stdErr) {
		return stdErr
	}
	return NewInternalError(err)
}

// GetErrorCategory groups codes for logging and metrics labels.
func GetErrorCategory(code ErrorCode) string {
	switch code {
	case ErrCodeMissingParameter, ErrCodeInvalidYearFormat, ErrCodeInvalidRequest, ErrCodeRateLimited:
		return "request"
	case ErrCodeEntityNotFound, ErrCodeNoDataForYear, ErrCodeMetricUnavailable:
		return "lookup"
	case ErrCodeInsufficientHistory, ErrCodeUnsupportedForecastYear, ErrCodeModelFitFailure:
		return "forecast"
	}
	return "internal"
}

// GetRetryCount returns how many times a worker job may be retried for a code.
// Only unexpected failures are retried; every domain outcome is final.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeInternal, ErrCodeMetricUnavailable:
		return 2
	}
	return 0
}
