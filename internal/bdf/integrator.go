package bdf

import (
	"fmt"

	"github.com/san-kum/daesim/internal/config"
	"github.com/san-kum/daesim/internal/dae"
	"github.com/san-kum/daesim/internal/evaluate"
	"github.com/san-kum/daesim/internal/sparse"
)

// Phase is the integrator's position in its state machine.
type Phase int

const (
	PhaseUninitialized Phase = iota
	PhaseInitializing
	PhaseStepping
	PhaseEvent
	PhaseComplete
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseUninitialized:
		return "uninitialized"
	case PhaseInitializing:
		return "initializing"
	case PhaseStepping:
		return "stepping"
	case PhaseEvent:
		return "event"
	case PhaseComplete:
		return "complete"
	case PhaseFailed:
		return "failed"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// StepInfo is the per-step record published to an observer.
type StepInfo struct {
	Step        int
	Time        float64
	H           float64
	Order       int
	NewtonIters int
}

// Observer receives accepted-step notifications. Calls are synchronous on
// the solve goroutine.
type Observer interface {
	OnStep(info StepInfo)
}

// Newton iteration limits shared with the consistent-initialization solve.
const (
	newtonTol     = 0.33
	newtonQuickCt = 1e-4
	maxOrderCap   = 5
	maxHistory    = maxOrderCap + 2
)

// Integrator advances one DAE system in time. It exclusively owns its
// Jacobian values, factorization, and working buffers for the lifetime of
// the solve.
type Integrator struct {
	prob *dae.Problem
	be   evaluate.Backend
	lin  sparse.Solver
	opts config.Options

	n    int
	rtol float64
	atol []float64

	phase Phase
	stats dae.Stats

	// accepted trajectory, newest first; ys[0] is the current state
	ts    []float64
	ys    []dae.State
	shist [][]dae.State // shist[slot][param]
	yp    dae.State     // derivative at the newest accepted point

	order        int
	h            float64
	tEnd         float64
	stepsAtOrder int

	// corrector coefficients for the current attempt
	cj   float64
	cw   []float64
	beta dae.State

	ewt []float64

	// iteration matrix state
	jacVals   []float64
	cjSaved   float64
	haveFact  bool
	factFresh bool
	prevH     float64

	// scratch
	ypred, ycur, ypcur, delta, resid dae.State
	lowPred                          dae.State
	deltaAcc, deltaPrev              dae.State
	prevDeltaOK                      bool
	interpW                          []float64

	// staged sensitivities for the step being attempted
	sNew  []dae.State
	sbeta dae.State
	spred dae.State
	scur  dae.State
	spcur dae.State
	sjv   dae.State
	smv   dae.State

	// event scan
	gPrev, gNew, gBis []float64
	ybis              dae.State

	obs Observer
}

// New builds an integrator for the given problem, backend, and linear
// solver. The problem and options must already be validated.
func New(prob *dae.Problem, be evaluate.Backend, lin sparse.Solver, opts config.Options) *Integrator {
	n := prob.N
	it := &Integrator{
		prob:      prob,
		be:        be,
		lin:       lin,
		opts:      opts,
		n:         n,
		rtol:      opts.RTol,
		atol:      opts.AbsTol(n),
		phase:     PhaseUninitialized,
		cw:        make([]float64, maxHistory),
		beta:      make(dae.State, n),
		ewt:       make([]float64, n),
		jacVals:   make([]float64, prob.Sparsity.NNZ()),
		ypred:     make(dae.State, n),
		ycur:      make(dae.State, n),
		ypcur:     make(dae.State, n),
		delta:     make(dae.State, n),
		resid:     make(dae.State, n),
		lowPred:   make(dae.State, n),
		deltaAcc:  make(dae.State, n),
		deltaPrev: make(dae.State, n),
		interpW:   make([]float64, maxHistory),
		yp:        make(dae.State, n),
	}
	if prob.NumSens > 0 {
		it.sNew = make([]dae.State, prob.NumSens)
		for j := range it.sNew {
			it.sNew[j] = make(dae.State, n)
		}
		it.sbeta = make(dae.State, n)
		it.spred = make(dae.State, n)
		it.scur = make(dae.State, n)
		it.spcur = make(dae.State, n)
		it.sjv = make(dae.State, n)
		it.smv = make(dae.State, n)
	}
	if prob.NumEvents > 0 {
		it.gPrev = make([]float64, prob.NumEvents)
		it.gNew = make([]float64, prob.NumEvents)
		it.gBis = make([]float64, prob.NumEvents)
		it.ybis = make(dae.State, n)
	}
	return it
}

// SetObserver installs a step observer; pass nil to remove.
func (it *Integrator) SetObserver(obs Observer) { it.obs = obs }

func (it *Integrator) Phase() Phase     { return it.phase }
func (it *Integrator) T() float64       { return it.ts[0] }
func (it *Integrator) Y() dae.State     { return it.ys[0] }
func (it *Integrator) Order() int       { return it.order }
func (it *Integrator) H() float64       { return it.h }
func (it *Integrator) Stats() dae.Stats { return it.stats }

// MarkEvent and MarkComplete record the solver-level terminal states so the
// state machine always ends on one of its three terminal phases.
func (it *Integrator) MarkEvent()    { it.phase = PhaseEvent }
func (it *Integrator) MarkComplete() { it.phase = PhaseComplete }

func (it *Integrator) fail(step int, t float64, reason error) error {
	it.phase = PhaseFailed
	return &dae.SolveError{Step: step, Time: t, Wrapped: reason}
}

// pushHistory prepends a newly accepted point, dropping the oldest slot
// beyond the retained window.
func (it *Integrator) pushHistory(t float64, y dae.State, s []dae.State) {
	it.ts = prependFloat(it.ts, t, maxHistory)
	it.ys = prependState(it.ys, y.Clone(), maxHistory)
	if it.prob.NumSens > 0 {
		slot := make([]dae.State, it.prob.NumSens)
		for j := range slot {
			slot[j] = s[j].Clone()
		}
		it.shist = prependSlot(it.shist, slot, maxHistory)
	}
}

func prependFloat(xs []float64, v float64, max int) []float64 {
	xs = append(xs, 0)
	copy(xs[1:], xs)
	xs[0] = v
	if len(xs) > max {
		xs = xs[:max]
	}
	return xs
}

func prependState(xs []dae.State, v dae.State, max int) []dae.State {
	xs = append(xs, nil)
	copy(xs[1:], xs)
	xs[0] = v
	if len(xs) > max {
		xs = xs[:max]
	}
	return xs
}

func prependSlot(xs [][]dae.State, v []dae.State, max int) [][]dae.State {
	xs = append(xs, nil)
	copy(xs[1:], xs)
	xs[0] = v
	if len(xs) > max {
		xs = xs[:max]
	}
	return xs
}

// interpPoints returns how many history points the dense-output interpolant
// uses: the step order plus one, capped by available history.
func (it *Integrator) interpPoints() int {
	np := it.stats.LastOrder + 1
	if np < 2 {
		np = 2
	}
	if np > len(it.ts) {
		np = len(it.ts)
	}
	return np
}

// YAt evaluates the dense-output interpolant at time t, which must lie
// within the span of retained history.
func (it *Integrator) YAt(t float64, out dae.State) {
	np := it.interpPoints()
	if np == 1 {
		copy(out, it.ys[0])
		return
	}
	lagrangeWeights(it.ts, np, t, it.interpW)
	evalStateSeries(it.ys, it.interpW, np, out)
}

// SensAt evaluates the sensitivity interpolant for parameter j at time t.
func (it *Integrator) SensAt(j int, t float64, out dae.State) {
	np := it.interpPoints()
	if np == 1 || len(it.shist) < np {
		copy(out, it.shist[0][j])
		return
	}
	lagrangeWeights(it.ts, np, t, it.interpW)
	for i := range out {
		out[i] = 0
	}
	for m := 0; m < np; m++ {
		wm := it.interpW[m]
		sm := it.shist[m][j]
		for i := range out {
			out[i] += wm * sm[i]
		}
	}
}

func evalStateSeries(series []dae.State, w []float64, npts int, out dae.State) {
	for i := range out {
		out[i] = 0
	}
	for m := 0; m < npts; m++ {
		wm := w[m]
		ym := series[m]
		for i := range out {
			out[i] += wm * ym[i]
		}
	}
}
