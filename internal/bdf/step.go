package bdf

import (
	"errors"
	"fmt"
	"math"

	"github.com/san-kum/daesim/internal/dae"
)

// Step-size controller constants.
const (
	safety   = 0.9
	minScale = 0.2
	maxScale = 10.0
)

// Step advances the solve by one accepted internal step, retrying with
// smaller steps and refreshed factorizations within the configured budgets.
// A returned error is fatal to the solve and carries the reason sentinel.
func (it *Integrator) Step() error {
	if it.phase != PhaseStepping {
		return fmt.Errorf("bdf: Step called in phase %s: %w", it.phase, dae.ErrBadConfig)
	}
	t := it.ts[0]
	updateWeights(it.ewt, it.ys[0], it.rtol, it.atol)

	nConv, nErr := 0, 0
	forceJac := false
	for {
		if it.stats.Steps >= it.opts.MaxSteps {
			return it.fail(it.stats.Steps, t, dae.ErrMaxSteps)
		}
		if it.opts.MaxStep > 0 && it.h > it.opts.MaxStep {
			it.h = it.opts.MaxStep
		}
		if it.h < it.effectiveMinStep(t) {
			return it.fail(it.stats.Steps, t, dae.ErrMinStep)
		}

		k := it.order
		if k > len(it.ts) {
			k = len(it.ts)
		}
		tn := t + it.h
		if tn == t {
			return it.fail(it.stats.Steps, t, dae.ErrMinStep)
		}

		it.cj = bdfCoeffs(it.ts, k, tn, it.cw)
		evalStateSeries(it.ys, it.cw, k, it.beta)
		it.predict(k, tn)

		iters, cerr := it.newtonCorrect(tn, forceJac)
		forceJac = false
		if cerr == nil && it.prob.NumEvents > 0 {
			if err := it.be.Events(tn, it.ycur, it.gNew); err != nil {
				cerr = &convFailure{err: err}
			} else if !allFinite(it.gNew) {
				cerr = &convFailure{err: dae.ErrNonFinite}
			}
		}
		if cerr == nil && it.prob.NumSens > 0 {
			cerr = it.propagateSens(tn, k)
		}
		if cerr != nil {
			var cf *convFailure
			if !errors.As(cerr, &cf) {
				cf = &convFailure{err: cerr}
			}
			it.stats.ConvFails++
			nConv++
			if nConv >= it.opts.MaxConvFails {
				reason := dae.ErrNewtonConvergence
				if errors.Is(cf.err, dae.ErrLinearSolve) {
					reason = dae.ErrLinearSolve
				}
				return it.fail(it.stats.Steps, t, fmt.Errorf("%v: %w", cf.err, reason))
			}
			// A stale matrix gets one refresh at the same step size before
			// the step shrinks.
			if !it.factFresh && !cf.linSolve {
				forceJac = true
				continue
			}
			it.h *= 0.25
			forceJac = true
			continue
		}

		for i := range it.deltaAcc {
			it.deltaAcc[i] = it.ycur[i] - it.ypred[i]
		}
		est := wrms(it.deltaAcc, it.ewt) * errCoeff(k)
		if est > 1 {
			it.stats.ErrTestFails++
			nErr++
			if nErr >= it.opts.MaxErrTestFails {
				return it.fail(it.stats.Steps, t, dae.ErrErrorTest)
			}
			switch {
			case nErr == 1:
				fac := safety * math.Pow(est, -1.0/float64(k+1))
				it.h *= clamp(fac, 0.1, 0.9)
			case nErr == 2:
				it.h *= 0.25
			default:
				it.order = 1
				it.h *= 0.25
			}
			continue
		}

		nextOrder, nextH := it.chooseNext(k, tn, est)

		copy(it.yp, it.ypcur)
		it.pushHistory(tn, it.ycur, it.sNew)
		it.stats.Steps++
		it.stats.LastStep = it.h
		it.stats.LastOrder = k
		it.stats.CurrentTime = tn
		if it.obs != nil {
			it.obs.OnStep(StepInfo{
				Step:        it.stats.Steps,
				Time:        tn,
				H:           it.h,
				Order:       k,
				NewtonIters: iters,
			})
		}

		copy(it.deltaPrev, it.deltaAcc)
		it.prevH = it.h
		if nextOrder == k {
			it.stepsAtOrder++
			it.prevDeltaOK = true
		} else {
			it.stepsAtOrder = 0
			it.prevDeltaOK = false
		}
		it.order = nextOrder
		it.h = nextH
		return nil
	}
}

// predict extrapolates the accepted history to tn. The very first step has
// a single history point and falls back to a Taylor predictor from the
// corrected initial derivative.
func (it *Integrator) predict(k int, tn float64) {
	np := k + 1
	if np > len(it.ts) {
		np = len(it.ts)
	}
	if np < 2 {
		h := tn - it.ts[0]
		for i := range it.ypred {
			it.ypred[i] = it.ys[0][i] + h*it.yp[i]
		}
		return
	}
	lagrangeWeights(it.ts, np, tn, it.interpW)
	evalStateSeries(it.ys, it.interpW, np, it.ypred)
}

// chooseNext picks the order and step size for the next step by comparing
// error estimates at the current order against its neighbors, each mapped
// to the step factor it would permit.
func (it *Integrator) chooseNext(k int, tn float64, estK float64) (int, float64) {
	bestOrder := k
	bestFac := stepFactor(estK, k)

	if k > 1 && k <= len(it.ts) {
		// Error the lower order would have made: gap to the degree k-1
		// extrapolant.
		lagrangeWeights(it.ts, k, tn, it.interpW)
		evalStateSeries(it.ys, it.interpW, k, it.lowPred)
		for i := range it.lowPred {
			it.lowPred[i] = it.ycur[i] - it.lowPred[i]
		}
		estLow := wrms(it.lowPred, it.ewt) * errCoeff(k-1)
		if fac := stepFactor(estLow, k-1); fac >= bestFac {
			bestOrder, bestFac = k-1, fac
		}
	}

	if k < it.opts.MaxOrder && len(it.ts) >= k+1 && it.canEstimateHigher() {
		// Error the higher order would make: difference of successive
		// corrector-predictor gaps.
		for i := range it.delta {
			it.delta[i] = it.deltaAcc[i] - it.deltaPrev[i]
		}
		estHigh := wrms(it.delta, it.ewt) * errCoeff(k+1)
		if fac := stepFactor(estHigh, k+1); fac > bestFac {
			bestOrder, bestFac = k+1, fac
		}
	}

	return bestOrder, it.h * bestFac
}

// canEstimateHigher reports whether the stored corrector-predictor gap from
// the previous step is comparable: same order, and a step ratio close
// enough that the difference measures the next derivative.
func (it *Integrator) canEstimateHigher() bool {
	if !it.prevDeltaOK || it.stepsAtOrder < 1 || it.prevH <= 0 {
		return false
	}
	ratio := it.h / it.prevH
	return ratio > 0.5 && ratio < 2.0
}

func stepFactor(est float64, k int) float64 {
	if est <= 0 {
		return maxScale
	}
	return clamp(safety*math.Pow(est, -1.0/float64(k+1)), minScale, maxScale)
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
