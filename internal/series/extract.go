package series

import "math"

// Series is the gap-dropped history of one entity: Values[i] was observed in Years[i].
type Series struct {
	Years  []int
	Values []float64
}

func (s Series) Len() int { return len(s.Values) }

// Last returns the most recent observed value.
func (s Series) Last() (float64, bool) {
	if len(s.Values) == 0 {
		return 0, false
	}
	return s.Values[len(s.Values)-1], true
}

// Extract reads the entity's cells for every year in [lo, hi] in ascending order,
// dropping absent and NaN cells without interpolation.
func Extract(store Lookup, entity string, lo, hi int) (Series, error) {
	row, ok := store.Index(entity)
	if !ok {
		return Series{}, &EntityError{Metric: store.Metric(), Entity: entity}
	}

	var s Series
	for y := lo; y <= hi; y++ {
		v, ok := store.Value(row, y)
		if !ok || math.IsNaN(v) {
			continue
		}
		s.Years = append(s.Years, y)
		s.Values = append(s.Values, v)
	}
	return s, nil
}
