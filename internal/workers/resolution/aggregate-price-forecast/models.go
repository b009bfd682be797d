package aggregatepriceforecast

import "forecast-service/internal/query"

type Input struct {
	Year interface{} `json:"year"`
}

type Output struct {
	Year        int               `json:"year"`
	Predicted   bool              `json:"predicted"`
	PriceResult []query.PriceItem `json:"priceResult"`
}

const inputSchema = `{
  "type": "object",
  "properties": {
    "year": {"type": ["integer", "number", "string", "null"]}
  },
  "required": ["year"]
}`
