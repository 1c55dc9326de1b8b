package ring

import (
	"math"
)

// The helpers return 0 for an empty slice.

func AverageFloat64(items []float64) float64 {
	count := len(items)
	if count == 0 {
		return 0
	}
	sum := 0.0

	for _, v := range items {
		sum = sum + v
	}
	return sum / float64(count)
}

func MaxFloat64(items []float64) float64 {
	if len(items) == 0 {
		return 0
	}
	max := items[0]
	for _, v := range items {
		if v > max {
			max = v
		}
	}
	return max
}

func MinFloat64(items []float64) float64 {
	if len(items) == 0 {
		return 0
	}
	min := items[0]
	for _, v := range items {
		if v < min {
			min = v
		}
	}
	return min
}

// StandardDeviationFloat64 is the population standard deviation; pass a
// precomputed average to skip recomputing it.
func StandardDeviationFloat64(items []float64, calculatedAvg ...float64) float64 {
	n := len(items)
	if n == 0 {
		return 0
	}
	var average float64
	if len(calculatedAvg) > 0 {
		average = calculatedAvg[0]
	} else {
		average = AverageFloat64(items)
	}
	vn := 0.0

	for _, v := range items {
		vn += math.Pow(v-average, 2)
	}

	return math.Sqrt(vn / float64(n))
}
