package bdf

import (
	"fmt"
	"math"

	"github.com/san-kum/daesim/internal/dae"
)

const icTol = 1e-3

// Init establishes a consistent initial condition at t0 and prepares the
// first step toward tEnd. The caller's (y0, yp0) need not satisfy the
// residual: algebraic components of y and differential components of y'
// are corrected by a damped Newton solve that respects the component-kind
// vector. Failure here aborts before any step is taken.
func (it *Integrator) Init(t0, tEnd float64) error {
	if it.phase != PhaseUninitialized {
		return fmt.Errorf("bdf: Init called in phase %s: %w", it.phase, dae.ErrBadConfig)
	}
	it.phase = PhaseInitializing
	it.tEnd = tEnd

	y := it.prob.Y0.Clone()
	for i := range it.yp {
		it.yp[i] = 0
	}
	if it.prob.YP0 != nil {
		copy(it.yp, it.prob.YP0)
	}

	updateWeights(it.ewt, y, it.rtol, it.atol)

	h0 := it.firstStep(t0, tEnd, y)
	if err := it.calcIC(t0, y, 1.0/h0); err != nil {
		it.phase = PhaseFailed
		return &dae.SolveError{Step: 0, Time: t0, Wrapped: err}
	}

	// The corrected derivative may move the natural first step.
	h0 = it.firstStep(t0, tEnd, y)

	it.ts = append(it.ts[:0], t0)
	it.ys = append(it.ys[:0], y)
	if it.prob.NumSens > 0 {
		slot := make([]dae.State, it.prob.NumSens)
		for j := range slot {
			if it.prob.S0 != nil {
				slot[j] = it.prob.S0[j].Clone()
			} else {
				slot[j] = make(dae.State, it.n)
			}
		}
		it.shist = append(it.shist[:0], slot)
	}

	if it.prob.NumEvents > 0 {
		if err := it.be.Events(t0, y, it.gPrev); err != nil {
			it.phase = PhaseFailed
			return &dae.SolveError{Step: 0, Time: t0, Wrapped: err}
		}
		if !allFinite(it.gPrev) {
			it.phase = PhaseFailed
			return &dae.SolveError{Step: 0, Time: t0, Wrapped: fmt.Errorf("event function at t0: %w", dae.ErrNonFinite)}
		}
	}

	it.order = 1
	it.h = h0
	it.stepsAtOrder = 0
	it.stats.CurrentTime = t0
	it.phase = PhaseStepping
	return nil
}

// firstStep picks the initial step size: a small fraction of the horizon,
// shrunk further when the initial derivative is steep relative to the
// tolerance band.
func (it *Integrator) firstStep(t0, tEnd float64, y dae.State) float64 {
	if it.opts.InitialStep > 0 {
		return it.opts.InitialStep
	}
	span := tEnd - t0
	if span <= 0 {
		span = 1
	}
	h0 := 1e-4 * span
	updateWeights(it.ewt, y, it.rtol, it.atol)
	ypn := wrms(it.yp, it.ewt)
	if ypn > 0 {
		if hd := 1.0 / (100 * ypn); hd < h0 {
			h0 = hd
		}
	}
	if it.opts.MaxStep > 0 && h0 > it.opts.MaxStep {
		h0 = it.opts.MaxStep
	}
	if it.opts.MinStep > 0 && h0 < it.opts.MinStep {
		h0 = it.opts.MinStep
	}
	return h0
}

// calcIC runs the constrained Newton correction: the iteration matrix
// cj*dF/dy' + dF/dy at cj=c is factorized once and each update is applied
// to algebraic components of y and, scaled by c, to differential
// components of y'.
func (it *Integrator) calcIC(t0 float64, y dae.State, c float64) error {
	factored := false
	for iter := 0; iter < it.opts.ICMaxIters; iter++ {
		if err := it.be.Residual(t0, y, it.yp, it.resid); err != nil {
			return fmt.Errorf("%v: %w", err, dae.ErrInitialization)
		}
		it.stats.ResEvals++
		if !allFinite(it.resid) {
			return fmt.Errorf("residual at t0: %v: %w", dae.ErrNonFinite, dae.ErrInitialization)
		}

		if !factored {
			if err := it.be.Jacobian(t0, y, it.yp, c, it.jacVals); err != nil {
				return fmt.Errorf("%v: %w", err, dae.ErrInitialization)
			}
			it.stats.JacEvals++
			if !allFinite(it.jacVals) {
				return fmt.Errorf("jacobian at t0: %v: %w", dae.ErrNonFinite, dae.ErrInitialization)
			}
			if err := it.lin.Factorize(it.jacVals); err != nil {
				return fmt.Errorf("%v: %w", err, dae.ErrInitialization)
			}
			factored = true
		}

		copy(it.delta, it.resid)
		if err := it.lin.Solve(it.delta); err != nil {
			return fmt.Errorf("%v: %w", err, dae.ErrInitialization)
		}
		it.stats.LinSolves++
		if !allFinite(it.delta) {
			return fmt.Errorf("correction at t0: %v: %w", dae.ErrNonFinite, dae.ErrInitialization)
		}

		for i := 0; i < it.n; i++ {
			if it.prob.Differential[i] {
				it.yp[i] -= c * it.delta[i]
			} else {
				y[i] -= it.delta[i]
			}
		}

		if wrms(it.delta, it.ewt) <= icTol {
			// Matrix from this solve is not reusable for stepping: cj
			// there comes from the step coefficients.
			it.haveFact = false
			return nil
		}
	}
	return fmt.Errorf("no convergence in %d iterations: %w", it.opts.ICMaxIters, dae.ErrInitialization)
}

// effectiveMinStep is the floor below which a step cannot shrink: the
// configured minimum, or a machine-precision multiple of the current time.
func (it *Integrator) effectiveMinStep(t float64) float64 {
	m := 16 * machEps * math.Max(math.Abs(t), math.Abs(it.tEnd))
	if it.opts.MinStep > m {
		m = it.opts.MinStep
	}
	return m
}

const machEps = 2.220446049250313e-16
