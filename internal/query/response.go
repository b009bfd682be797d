package query

import (
	"math"

	"forecast-service/internal/aggregate"
	"forecast-service/internal/resolution"
)

const (
	RainfallUnit  = "mm×1000"
	StatusSuccess = "success"
)

// RainfallResponse answers POST /predict_rainfall. Rain is null when no value exists.
type RainfallResponse struct {
	Region    string   `json:"region"`
	Year      int      `json:"year"`
	Rain      *float64 `json:"rain"`
	Unit      string   `json:"unit"`
	Predicted bool     `json:"predicted"`
	Status    string   `json:"status"`
}

// CombinedResponse answers POST /predict.
type CombinedResponse struct {
	Region      string      `json:"region"`
	Year        int         `json:"year"`
	Rain        *float64    `json:"rain"`
	Sunshine    *float64    `json:"sunshine"`
	Predicted   bool        `json:"predicted"`
	PriceResult []PriceItem `json:"price_result"`
	Status      string      `json:"status"`
}

// PriceItem is an aggregate candidate as rendered to callers. GrowthRate is a
// percentage and null for historical years.
type PriceItem struct {
	Product        string   `json:"product"`
	PredictedPrice float64  `json:"predicted_price"`
	GrowthRate     *float64 `json:"growth_rate"`
}

// AggregateResponse answers the aggregate-only query.
type AggregateResponse struct {
	Year        int         `json:"year"`
	Predicted   bool        `json:"predicted"`
	PriceResult []PriceItem `json:"price_result"`
	Status      string      `json:"status"`
}

// Round2 rounds half away from zero to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// renderValue turns an engine result into a rounded number or nil.
func renderValue(res resolution.Result) *float64 {
	if !res.Valid || math.IsNaN(res.Value) || math.IsInf(res.Value, 0) {
		return nil
	}
	v := Round2(res.Value)
	return &v
}

func renderCandidates(cands []aggregate.Candidate) []PriceItem {
	items := make([]PriceItem, 0, len(cands))
	for _, c := range cands {
		item := PriceItem{Product: c.Product, PredictedPrice: Round2(c.PredictedPrice)}
		if c.GrowthRate != nil {
			pct := Round2(*c.GrowthRate * 100)
			item.GrowthRate = &pct
		}
		items = append(items, item)
	}
	return items
}

// IsPredicted reports whether a year is answered by the forecast branch.
func IsPredicted(year int) bool {
	return year >= resolution.ThresholdYear
}
