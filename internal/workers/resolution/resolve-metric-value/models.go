package resolvemetricvalue

const (
	MetricRainfall = "rainfall"
	MetricSunshine = "sunshine"
)

// Input keeps region and year untyped; they are parsed with the same rules as
// the HTTP API.
type Input struct {
	Region  interface{} `json:"region"`
	Year    interface{} `json:"year"`
	Metrics []string    `json:"metrics,omitempty"`
}

// Output becomes the job's process variables. Unavailable values are null.
type Output struct {
	Region    string   `json:"region"`
	Year      int      `json:"year"`
	Rain      *float64 `json:"rain"`
	Sunshine  *float64 `json:"sunshine"`
	Predicted bool     `json:"predicted"`
}

// wants reports whether metric was requested. No list means every metric.
func (in *Input) wants(metric string) bool {
	if len(in.Metrics) == 0 {
		return true
	}
	for _, m := range in.Metrics {
		if m == metric {
			return true
		}
	}
	return false
}

const inputSchema = `{
  "type": "object",
  "properties": {
    "region": {"type": ["string", "number", "null"]},
    "year": {"type": ["integer", "number", "string", "null"]},
    "metrics": {
      "type": "array",
      "items": {"enum": ["rainfall", "sunshine"]},
      "uniqueItems": true
    }
  },
  "required": ["region", "year"]
}`
