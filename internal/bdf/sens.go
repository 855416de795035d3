package bdf

import (
	"errors"

	"github.com/san-kum/daesim/internal/dae"
)

// propagateSens advances every tracked sensitivity across the step being
// attempted, after the primary corrector has converged at (tn, ycur, ypcur).
//
// Each sensitivity obeys the linearization of F around the trajectory with
// the same BDF coefficients as the primary state, so the already-factorized
// iteration matrix is reused for every right-hand side instead of paying k
// extra factorizations per step. Because that factorization may carry a
// slightly stale cj, each solve is polished by residual refinement until
// the correction is negligible.
func (it *Integrator) propagateSens(tn float64, k int) error {
	np := k + 1
	if np > len(it.ts) {
		np = len(it.ts)
	}
	if np >= 2 {
		lagrangeWeights(it.ts, np, tn, it.interpW)
	}

	for j := 0; j < it.prob.NumSens; j++ {
		for i := range it.sbeta {
			it.sbeta[i] = 0
		}
		for m := 0; m < k; m++ {
			w := it.cw[m]
			sm := it.shist[m][j]
			for i := range it.sbeta {
				it.sbeta[i] += w * sm[i]
			}
		}

		if np >= 2 {
			for i := range it.spred {
				it.spred[i] = 0
			}
			for m := 0; m < np; m++ {
				wm := it.interpW[m]
				sm := it.shist[m][j]
				for i := range it.spred {
					it.spred[i] += wm * sm[i]
				}
			}
		} else {
			copy(it.spred, it.shist[0][j])
		}

		copy(it.scur, it.spred)
		for i := range it.spcur {
			it.spcur[i] = it.cj*it.scur[i] + it.sbeta[i]
		}

		// The sensitivity residual is linear in (s, s'), so the model is
		// asked for it once per attempt; after each correction delta the
		// residual moves by exactly (dF/dy + cj*dF/dy')*delta, which the
		// backend's Jacobian and mass actions supply without another
		// model callback.
		if err := it.be.SensResidual(j, tn, it.ycur, it.ypcur, it.scur, it.spcur, it.resid); err != nil {
			return &convFailure{err: err}
		}
		if !allFinite(it.resid) {
			return &convFailure{err: dae.ErrNonFinite}
		}
		converged := false
		prev := 0.0
		for m := 0; m < it.opts.MaxNewtonIters; m++ {
			for i := range it.delta {
				it.delta[i] = -it.resid[i]
			}
			if err := it.solveCorrection(it.delta); err != nil {
				return err
			}
			it.stats.SensSolves++
			if !allFinite(it.delta) {
				return &convFailure{err: dae.ErrNonFinite}
			}
			for i := range it.scur {
				it.scur[i] += it.delta[i]
			}
			for i := range it.spcur {
				it.spcur[i] = it.cj*it.scur[i] + it.sbeta[i]
			}

			dnorm := wrms(it.delta, it.ewt)
			if dnorm <= newtonQuickCt {
				converged = true
				break
			}
			if m > 0 {
				rate := dnorm / prev
				if rate < 1 && dnorm*rate/(1-rate) < newtonTol {
					converged = true
					break
				}
			}
			prev = dnorm

			if err := it.be.JacAction(tn, it.ycur, it.ypcur, it.delta, it.sjv); err != nil {
				return &convFailure{err: err}
			}
			if err := it.be.MassAction(it.delta, it.smv); err != nil {
				return &convFailure{err: err}
			}
			for i := range it.resid {
				it.resid[i] += it.sjv[i] + it.cj*it.smv[i]
			}
			if !allFinite(it.resid) {
				return &convFailure{err: dae.ErrNonFinite}
			}
		}
		if !converged {
			return &convFailure{err: errors.New("daesim: sensitivity corrector stalled")}
		}
		copy(it.sNew[j], it.scur)
	}
	return nil
}
