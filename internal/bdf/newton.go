package bdf

import (
	"errors"

	"github.com/san-kum/daesim/internal/dae"
)

// convFailure classifies a recoverable corrector failure within a step
// attempt. linSolve marks failures where a factorization refresh is the
// first remedy to try.
type convFailure struct {
	err      error
	linSolve bool
}

func (c *convFailure) Error() string { return c.err.Error() }
func (c *convFailure) Unwrap() error { return c.err }

// Factorization refresh band: the saved matrix is reused while the current
// cj stays within [refreshLo, refreshHi] of the cj it was built with. This
// is the one refresh policy used for both the primary corrector and the
// sensitivity solves.
const (
	refreshLo = 0.6
	refreshHi = 5.0 / 3.0
)

// ensureFactorization refreshes the iteration matrix when there is none,
// when a refresh was forced, or when cj drifted outside the reuse band.
func (it *Integrator) ensureFactorization(tn float64, force bool) error {
	if it.haveFact && !force {
		ratio := it.cj / it.cjSaved
		if ratio > refreshLo && ratio < refreshHi {
			it.factFresh = false
			return nil
		}
	}
	if err := it.be.Jacobian(tn, it.ycur, it.ypcur, it.cj, it.jacVals); err != nil {
		return &convFailure{err: err}
	}
	it.stats.JacEvals++
	if !allFinite(it.jacVals) {
		return &convFailure{err: dae.ErrNonFinite}
	}
	if err := it.lin.Factorize(it.jacVals); err != nil {
		return &convFailure{err: err, linSolve: true}
	}
	it.haveFact = true
	it.factFresh = true
	it.cjSaved = it.cj
	return nil
}

// solveCorrection solves the iteration matrix against b in place, applying
// the stale-cj damping 2/(1+cj/cjSaved) when the factorization was built
// for a different leading coefficient.
func (it *Integrator) solveCorrection(b []float64) error {
	if err := it.lin.Solve(b); err != nil {
		return &convFailure{err: err, linSolve: true}
	}
	it.stats.LinSolves++
	if it.cjSaved != it.cj {
		scale := 2.0 / (1.0 + it.cj/it.cjSaved)
		for i := range b {
			b[i] *= scale
		}
	}
	return nil
}

// newtonCorrect iterates the corrector equation F(tn, y, cj*y+beta) = 0
// starting from the predictor. On success ycur/ypcur hold the corrected
// pair. Failures are returned as *convFailure for the step loop to map
// into its retry policy.
func (it *Integrator) newtonCorrect(tn float64, forceJac bool) (iters int, err error) {
	copy(it.ycur, it.ypred)
	it.applyDerivative()

	if err := it.ensureFactorization(tn, forceJac); err != nil {
		return 0, err
	}

	prevNorm := 0.0
	for m := 0; m < it.opts.MaxNewtonIters; m++ {
		if err := it.be.Residual(tn, it.ycur, it.ypcur, it.resid); err != nil {
			return m, &convFailure{err: err}
		}
		it.stats.ResEvals++
		if !allFinite(it.resid) {
			return m, &convFailure{err: dae.ErrNonFinite}
		}

		for i := range it.delta {
			it.delta[i] = -it.resid[i]
		}
		if err := it.solveCorrection(it.delta); err != nil {
			return m, err
		}
		if !allFinite(it.delta) {
			return m, &convFailure{err: dae.ErrNonFinite}
		}

		for i := range it.ycur {
			it.ycur[i] += it.delta[i]
		}
		it.applyDerivative()

		dnorm := wrms(it.delta, it.ewt)
		if dnorm <= newtonQuickCt {
			return m + 1, nil
		}
		if m > 0 {
			rate := dnorm / prevNorm
			if rate >= 1 {
				return m + 1, &convFailure{err: errors.New("daesim: corrector diverging")}
			}
			if dnorm*rate/(1-rate) < newtonTol {
				return m + 1, nil
			}
		}
		prevNorm = dnorm
	}
	return it.opts.MaxNewtonIters, &convFailure{err: errors.New("daesim: corrector iteration limit")}
}

// applyDerivative recomputes ypcur = cj*ycur + beta.
func (it *Integrator) applyDerivative() {
	for i := range it.ypcur {
		it.ypcur[i] = it.cj*it.ycur[i] + it.beta[i]
	}
}
