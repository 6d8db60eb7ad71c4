package fusion

import (
	"math"
	"sort"
)

// percentile computes the p-th percentile (0 ≤ p ≤ 1) of sorted values via
// linear interpolation between ranks. The input must be sorted ascending
// and non-empty.
func percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}
	rank := p * float64(n-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}

// iqrFilter rejects values outside [Q1 − k·IQR, Q3 + k·IQR]. Skipped when
// fewer than 4 values are present; falls back to the unfiltered input when
// filtering would reject everything. Returns the kept values (sorted) and
// the number removed.
func iqrFilter(values []float64, k float64) ([]float64, int) {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	if len(sorted) < 4 {
		return sorted, 0
	}

	q1 := percentile(sorted, 0.25)
	q3 := percentile(sorted, 0.75)
	iqr := q3 - q1
	lo := q1 - k*iqr
	hi := q3 + k*iqr

	kept := make([]float64, 0, len(sorted))
	for _, v := range sorted {
		if v >= lo && v <= hi {
			kept = append(kept, v)
		}
	}
	if len(kept) == 0 {
		return sorted, 0
	}
	return kept, len(sorted) - len(kept)
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// coefficientOfVariation returns population stddev divided by mean, or 0
// when the mean is 0.
func coefficientOfVariation(values []float64) float64 {
	m := mean(values)
	if m == 0 || len(values) == 0 {
		return 0
	}
	var ss float64
	for _, v := range values {
		d := v - m
		ss += d * d
	}
	return math.Sqrt(ss/float64(len(values))) / m
}
