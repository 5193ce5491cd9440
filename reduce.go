package dem

import (
	"slices"

	"github.com/rotisserie/eris"
)

// Reduce thins c to a coarser grid. Of the distinct latitudes and longitudes
// in c, in ascending order, only every factor'th is kept, and a sample is kept
// only if both its latitude and longitude are. The result is sorted by
// latitude and then longitude.
func Reduce(c *Collection, factor int) (*Collection, error) {
	if factor < 1 {
		return nil, eris.Errorf("reduce: factor %d must be at least 1", factor)
	}

	samples := slices.Clone(c.Samples())
	slices.SortFunc(samples, compareLatLon)

	keptLats := everyNth(distinct(samples, func(s Sample) float64 { return s.Lat }), factor)
	keptLons := everyNth(distinct(samples, func(s Sample) float64 { return s.Lon }), factor)

	reduced := NewCollection()
	for _, sample := range samples {
		if _, ok := keptLats[sample.Lat]; !ok {
			continue
		}
		if _, ok := keptLons[sample.Lon]; !ok {
			continue
		}
		reduced.Add(sample)
	}
	return reduced, nil
}

// distinct returns the sorted distinct values of f over samples.
func distinct(samples []Sample, f func(Sample) float64) []float64 {
	values := make([]float64, 0, len(samples))
	for _, sample := range samples {
		values = append(values, f(sample))
	}
	slices.Sort(values)
	return slices.Compact(values)
}

func everyNth(values []float64, n int) map[float64]struct{} {
	result := make(map[float64]struct{}, (len(values)+n-1)/n)
	for i := 0; i < len(values); i += n {
		result[values[i]] = struct{}{}
	}
	return result
}
