// Package solver wires a validated problem, an evaluator backend, and a
// linear solver into one synchronous solve, and assembles the Solution
// record handed back to the caller.
package solver

import (
	"fmt"

	"github.com/san-kum/daesim/internal/bdf"
	"github.com/san-kum/daesim/internal/config"
	"github.com/san-kum/daesim/internal/dae"
	"github.com/san-kum/daesim/internal/evaluate"
	"github.com/san-kum/daesim/internal/sparse"
)

// Solver runs DAE solves under one configuration. A Solver is cheap and
// stateless between calls; every Solve builds a fresh integrator that
// exclusively owns its buffers, so distinct solves never share mutable
// state.
type Solver struct {
	opts config.Options
	obs  bdf.Observer
}

// New creates a solver with the given options.
func New(opts config.Options) *Solver {
	return &Solver{opts: opts}
}

// SetObserver installs a step observer applied to subsequent solves.
func (s *Solver) SetObserver(obs bdf.Observer) { s.obs = obs }

// Solve advances the problem over the requested output grid. The returned
// Solution always carries whatever output accumulated, even on failure; a
// non-nil error accompanies a Failed termination and wraps the reason
// sentinel.
func (s *Solver) Solve(prob *dae.Problem, be evaluate.Backend, times []float64) (*dae.Solution, error) {
	if err := prob.Validate(); err != nil {
		return nil, err
	}
	if err := s.opts.Validate(prob.N); err != nil {
		return nil, fmt.Errorf("%v: %w", err, dae.ErrBadConfig)
	}
	if be == nil {
		return nil, fmt.Errorf("solver: nil evaluator backend: %w", dae.ErrBadConfig)
	}
	if err := validateTimes(times); err != nil {
		return nil, err
	}

	lin, err := sparse.New(prob.Sparsity, s.opts.LinearSolver, s.opts.DenseThreshold)
	if err != nil {
		return nil, err
	}

	it := bdf.New(prob, be, lin, s.opts)
	if s.obs != nil {
		it.SetObserver(s.obs)
	}

	t0 := times[0]
	tEnd := times[len(times)-1]
	sol := dae.NewSolution(len(times)+1, prob.NumSens)

	fail := func(err error) (*dae.Solution, error) {
		sol.Termination = dae.Termination{Status: dae.Failed, Reason: err}
		sol.Stats = it.Stats()
		return sol, err
	}

	if err := it.Init(t0, tEnd); err != nil {
		return fail(err)
	}

	yOut := make(dae.State, prob.N)
	var sOut []dae.State
	if prob.NumSens > 0 {
		sOut = make([]dae.State, prob.NumSens)
		for j := range sOut {
			sOut[j] = make(dae.State, prob.N)
		}
	}
	record := func(t float64) {
		it.YAt(t, yOut)
		for j := range sOut {
			it.SensAt(j, t, sOut[j])
		}
		sol.Append(t, yOut, sOut)
	}

	outIdx := 0
	record(times[outIdx])
	outIdx++

	// A purely algebraic system is fully determined by initialization;
	// its state holds at every requested time without stepping.
	if prob.NumDifferential() == 0 {
		for ; outIdx < len(times); outIdx++ {
			record(times[outIdx])
		}
		it.MarkComplete()
		sol.Termination = dae.Termination{Status: dae.Completed}
		sol.Stats = it.Stats()
		return sol, nil
	}

	for outIdx < len(times) {
		if err := it.Step(); err != nil {
			return fail(err)
		}
		evIdx, evTime, evFound, err := it.LocateEvent()
		if err != nil {
			return fail(&dae.SolveError{Step: it.Stats().Steps, Time: it.T(), Wrapped: err})
		}

		limit := it.T()
		if evFound {
			limit = evTime
		}
		for outIdx < len(times) && times[outIdx] <= limit {
			record(times[outIdx])
			outIdx++
		}

		if evFound && evTime <= tEnd {
			if n := sol.Len(); n == 0 || sol.T[n-1] != evTime {
				record(evTime)
			}
			it.MarkEvent()
			sol.Termination = dae.Termination{
				Status:     dae.EventTriggered,
				EventIndex: evIdx,
				EventTime:  evTime,
			}
			sol.Stats = it.Stats()
			return sol, nil
		}
	}

	it.MarkComplete()
	sol.Termination = dae.Termination{Status: dae.Completed}
	sol.Stats = it.Stats()
	return sol, nil
}

func validateTimes(times []float64) error {
	if len(times) == 0 {
		return fmt.Errorf("solver: empty output time grid: %w", dae.ErrBadConfig)
	}
	for i := 1; i < len(times); i++ {
		if times[i] <= times[i-1] {
			return fmt.Errorf("solver: output times must be strictly increasing at index %d: %w", i, dae.ErrBadConfig)
		}
	}
	return nil
}
