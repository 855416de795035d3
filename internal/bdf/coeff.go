package bdf

// lagrangeWeights fills w[0:npts] with the Lagrange basis values for
// evaluating the polynomial through nodes ts[0:npts] at time t.
func lagrangeWeights(ts []float64, npts int, t float64, w []float64) {
	for i := 0; i < npts; i++ {
		wi := 1.0
		for m := 0; m < npts; m++ {
			if m == i {
				continue
			}
			wi *= (t - ts[m]) / (ts[i] - ts[m])
		}
		w[i] = wi
	}
}

// bdfCoeffs computes corrector coefficients for a step of order k to tn,
// given the k most recent accepted times ts[0:k] (newest first).
//
// The step formula expresses the derivative at tn through the corrected
// state and history: y'(tn) = cj*y + sum_j w[j]*ys[j]. cj is the leading
// coefficient handed to the Jacobian evaluator; w has length k.
func bdfCoeffs(ts []float64, k int, tn float64, w []float64) (cj float64) {
	for m := 0; m < k; m++ {
		cj += 1.0 / (tn - ts[m])
	}
	for j := 0; j < k; j++ {
		num := 1.0
		den := ts[j] - tn
		for m := 0; m < k; m++ {
			if m == j {
				continue
			}
			num *= tn - ts[m]
			den *= ts[j] - ts[m]
		}
		w[j] = num / den
	}
	return cj
}

// errCoeff scales the corrector-predictor gap into a local error estimate
// for order k.
func errCoeff(k int) float64 {
	return 1.0 / float64(k+1)
}
