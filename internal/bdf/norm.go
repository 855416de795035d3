package bdf

import "math"

// updateWeights refreshes the per-component tolerance band
// rtol*|y_i| + atol_i that the wrms norm divides by.
func updateWeights(ewt []float64, y []float64, rtol float64, atol []float64) {
	for i := range ewt {
		ewt[i] = rtol*math.Abs(y[i]) + atol[i]
	}
}

// wrms is the weighted root-mean-square norm used for step acceptance:
// a value of 1 means the vector sits exactly on the tolerance boundary.
func wrms(v, ewt []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	sum := 0.0
	for i, x := range v {
		w := x / ewt[i]
		sum += w * w
	}
	return math.Sqrt(sum / float64(len(v)))
}

func allFinite(v []float64) bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}
