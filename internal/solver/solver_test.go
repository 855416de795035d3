package solver

import (
	"errors"
	"math"
	"testing"

	"github.com/san-kum/daesim/internal/config"
	"github.com/san-kum/daesim/internal/dae"
	"github.com/san-kum/daesim/internal/evaluate"
	"github.com/san-kum/daesim/internal/problems"
)

func buildModel(t *testing.T, m problems.Model) (*dae.Problem, evaluate.Backend) {
	t.Helper()
	prob, funcs := m.Build()
	be, err := evaluate.NewCompiled(funcs, prob)
	if err != nil {
		t.Fatal(err)
	}
	return prob, be
}

func TestSolve_DecayMatchesExact(t *testing.T) {
	model := problems.NewDecay()
	prob, be := buildModel(t, model)

	times := model.DefaultTimes()
	sol, err := New(config.Default()).Solve(prob, be, times)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}

	if sol.Termination.Status != dae.Completed {
		t.Fatalf("status %v, want completed", sol.Termination.Status)
	}
	if sol.Len() != len(times) {
		t.Fatalf("recorded %d points, want %d", sol.Len(), len(times))
	}
	for i, tt := range sol.T {
		want := math.Exp(-tt)
		if math.Abs(sol.Y[i][0]-want) > 1e-4 {
			t.Errorf("y(%v) = %v, want %v", tt, sol.Y[i][0], want)
		}
	}
	if sol.Stats.Steps == 0 {
		t.Error("no internal steps recorded")
	}
}

func TestSolve_DecaySensitivity(t *testing.T) {
	model := problems.NewDecay()
	prob, be := buildModel(t, model)

	sol, err := New(config.Default()).Solve(prob, be, model.DefaultTimes())
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}

	if len(sol.YS) != 1 {
		t.Fatalf("got %d sensitivity trajectories, want 1", len(sol.YS))
	}
	// d/dp of exp(-p*t) at p=1 is -t*exp(-t).
	for i, tt := range sol.T {
		want := -tt * math.Exp(-tt)
		if math.Abs(sol.YS[0][i][0]-want) > 1e-3 {
			t.Errorf("s(%v) = %v, want %v", tt, sol.YS[0][i][0], want)
		}
	}
}

func TestSolve_PureAlgebraic(t *testing.T) {
	model := problems.NewAlgebraic()
	prob, be := buildModel(t, model)

	times := model.DefaultTimes()
	sol, err := New(config.Default()).Solve(prob, be, times)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}

	if sol.Termination.Status != dae.Completed {
		t.Fatalf("status %v, want completed", sol.Termination.Status)
	}
	if sol.Stats.Steps != 0 {
		t.Errorf("pure algebraic solve took %d steps, want 0", sol.Stats.Steps)
	}
	for i := range sol.T {
		for c, want := range model.Target {
			if math.Abs(sol.Y[i][c]-want) > 1e-6 {
				t.Errorf("y[%d] at point %d = %v, want %v", c, i, sol.Y[i][c], want)
			}
		}
	}
}

// rampWithEvent is y' = -1 from 1, with an event when y crosses 0.5.
// The exact crossing is t = 0.5.
func rampWithEvent(t *testing.T) (*dae.Problem, evaluate.Backend) {
	t.Helper()
	prob := &dae.Problem{
		N:            1,
		Differential: []bool{true},
		Y0:           dae.State{1},
		YP0:          dae.State{-1},
		NumEvents:    1,
		Sparsity:     dae.Sparsity{ColPtrs: []int{0, 1}, RowIdx: []int{0}},
	}
	funcs := evaluate.Funcs{
		Residual: func(tt float64, y, yp, p, r []float64) {
			r[0] = yp[0] + 1
		},
		Jacobian: func(tt float64, y, yp []float64, cj float64, p, vals []float64) {
			vals[0] = cj
		},
		Events: func(tt float64, y, p, g []float64) {
			g[0] = y[0] - 0.5
		},
	}
	be, err := evaluate.NewCompiled(funcs, prob)
	if err != nil {
		t.Fatal(err)
	}
	return prob, be
}

func TestSolve_EventHaltsIntegration(t *testing.T) {
	prob, be := rampWithEvent(t)

	times := []float64{0, 0.1, 0.2, 0.3, 0.4, 0.6, 0.8, 1.0}
	sol, err := New(config.Default()).Solve(prob, be, times)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}

	if sol.Termination.Status != dae.EventTriggered {
		t.Fatalf("status %v, want event", sol.Termination.Status)
	}
	if sol.Termination.EventIndex != 0 {
		t.Errorf("event index %d, want 0", sol.Termination.EventIndex)
	}
	if math.Abs(sol.Termination.EventTime-0.5) > 1e-6 {
		t.Errorf("event time %v, want 0.5", sol.Termination.EventTime)
	}

	// No output may lie beyond the event, and the final recorded point
	// is the event itself.
	last := sol.T[sol.Len()-1]
	if last > sol.Termination.EventTime+1e-12 {
		t.Errorf("output at %v beyond event time %v", last, sol.Termination.EventTime)
	}
	if math.Abs(sol.Y[sol.Len()-1][0]-0.5) > 1e-6 {
		t.Errorf("state at event = %v, want 0.5", sol.Y[sol.Len()-1][0])
	}
}

func TestSolve_BatteryCutoff(t *testing.T) {
	model := problems.NewBatteryRC()
	prob, be := buildModel(t, model)

	sol, err := New(config.Default()).Solve(prob, be, model.DefaultTimes())
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}

	if sol.Termination.Status != dae.EventTriggered {
		t.Fatalf("status %v, want event (cutoff %v V)", sol.Termination.Status, model.Cutoff)
	}
	vterm := sol.Y[sol.Len()-1][2]
	if math.Abs(vterm-model.Cutoff) > 1e-4 {
		t.Errorf("terminal voltage at cutoff event = %v, want %v", vterm, model.Cutoff)
	}
	// State of charge must have declined monotonically under constant
	// discharge.
	for i := 1; i < sol.Len(); i++ {
		if sol.Y[i][0] >= sol.Y[i-1][0] {
			t.Fatalf("soc not decreasing at point %d", i)
		}
	}
	if len(sol.YS) != 1 {
		t.Fatalf("got %d sensitivity trajectories, want 1", len(sol.YS))
	}
	// Raising R0 lowers terminal voltage by the discharge current.
	sFinal := sol.YS[0][sol.Len()-1][2]
	if math.Abs(sFinal+model.Current) > 1e-3 {
		t.Errorf("dvterm/dR0 = %v, want %v", sFinal, -model.Current)
	}
}

func TestSolve_Robertson(t *testing.T) {
	model := problems.NewRobertson()
	prob, be := buildModel(t, model)

	sol, err := New(config.Default()).Solve(prob, be, model.DefaultTimes())
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if sol.Termination.Status != dae.Completed {
		t.Fatalf("status %v, want completed", sol.Termination.Status)
	}

	// Species conservation holds at every output point.
	for i := range sol.T {
		total := sol.Y[i][0] + sol.Y[i][1] + sol.Y[i][2]
		if math.Abs(total-1) > 1e-6 {
			t.Errorf("conservation violated at t=%v: sum = %v", sol.T[i], total)
		}
	}
	// The first species decays from 1, the third accumulates.
	final := sol.Y[sol.Len()-1]
	if final[0] >= 1 || final[0] <= 0 {
		t.Errorf("y1 final = %v, want in (0, 1)", final[0])
	}
	if final[2] <= 0 {
		t.Errorf("y3 final = %v, want positive", final[2])
	}
}

func TestSolve_Deterministic(t *testing.T) {
	model := problems.NewDecay()

	run := func() *dae.Solution {
		prob, be := buildModel(t, model)
		sol, err := New(config.Default()).Solve(prob, be, model.DefaultTimes())
		if err != nil {
			t.Fatalf("Solve: %v", err)
		}
		return sol
	}

	a, b := run(), run()
	if a.Stats != b.Stats {
		t.Errorf("stats differ between identical solves: %+v vs %+v", a.Stats, b.Stats)
	}
	for i := range a.T {
		if a.T[i] != b.T[i] || a.Y[i][0] != b.Y[i][0] {
			t.Errorf("trajectories differ at point %d", i)
		}
	}
}

func TestSolve_MaxStepsExceeded(t *testing.T) {
	model := problems.NewDecay()
	prob, be := buildModel(t, model)

	opts := config.Default()
	opts.MaxSteps = 3

	sol, err := New(opts).Solve(prob, be, model.DefaultTimes())
	if err == nil {
		t.Fatal("expected step-budget failure")
	}
	if !errors.Is(err, dae.ErrMaxSteps) {
		t.Errorf("error %v is not ErrMaxSteps", err)
	}
	if sol == nil {
		t.Fatal("partial solution missing")
	}
	if sol.Termination.Status != dae.Failed {
		t.Errorf("status %v, want failed", sol.Termination.Status)
	}
}

func TestSolve_RejectsBadTimes(t *testing.T) {
	model := problems.NewDecay()
	prob, be := buildModel(t, model)

	for _, times := range [][]float64{
		{},
		{0, 0.5, 0.5, 1},
		{0, 0.5, 0.25},
	} {
		_, err := New(config.Default()).Solve(prob, be, times)
		if !errors.Is(err, dae.ErrBadConfig) {
			t.Errorf("times %v: error %v is not ErrBadConfig", times, err)
		}
	}
}

func TestSolve_CallbackBackendMatchesCompiled(t *testing.T) {
	model := problems.NewDecay()
	times := model.DefaultTimes()

	probA, funcs := model.Build()
	compiled, err := evaluate.NewCompiled(funcs, probA)
	if err != nil {
		t.Fatal(err)
	}
	solA, err := New(config.Default()).Solve(probA, compiled, times)
	if err != nil {
		t.Fatalf("compiled solve: %v", err)
	}

	probB, funcs := model.Build()
	callback, err := evaluate.NewCallback(funcs, probB)
	if err != nil {
		t.Fatal(err)
	}
	solB, err := New(config.Default()).Solve(probB, callback, times)
	if err != nil {
		t.Fatalf("callback solve: %v", err)
	}

	for i := range solA.T {
		if solA.Y[i][0] != solB.Y[i][0] {
			t.Errorf("backends disagree at point %d: %v vs %v", i, solA.Y[i][0], solB.Y[i][0])
		}
	}
}

func TestSolve_LinearSolverFailureRecovery(t *testing.T) {
	// Decay system whose Jacobian degenerates to a zero pivot whenever the
	// leading coefficient is small, so every attempt at a large step dies
	// in the factorization. The integrator must shrink the step until the
	// matrix is regular again and still finish accurately.
	prob := &dae.Problem{
		N:            1,
		Differential: []bool{true},
		Y0:           dae.State{1},
		YP0:          dae.State{-1},
		Sparsity:     dae.Sparsity{ColPtrs: []int{0, 1}, RowIdx: []int{0}},
	}
	funcs := evaluate.Funcs{
		Residual: func(tt float64, y, yp, p, r []float64) {
			r[0] = yp[0] + y[0]
		},
		Jacobian: func(tt float64, y, yp []float64, cj float64, p, vals []float64) {
			if tt > 0 && cj < 100 {
				vals[0] = 0
				return
			}
			vals[0] = cj + 1
		},
	}
	be, err := evaluate.NewCompiled(funcs, prob)
	if err != nil {
		t.Fatal(err)
	}

	opts := config.Default()
	opts.InitialStep = 1
	times := []float64{0, 0.1, 0.2, 0.3, 0.4, 0.5}
	sol, err := New(opts).Solve(prob, be, times)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}

	if sol.Termination.Status != dae.Completed {
		t.Fatalf("status %v, want completed", sol.Termination.Status)
	}
	if sol.Stats.ConvFails == 0 {
		t.Error("no convergence failures recorded, singular path was never hit")
	}
	for i, tt := range sol.T {
		want := math.Exp(-tt)
		if math.Abs(sol.Y[i][0]-want) > 1e-4 {
			t.Errorf("y(%v) = %v, want %v", tt, sol.Y[i][0], want)
		}
	}
}

// actionCountBackend tallies how often the integrator reaches for each
// evaluator while delegating to the real backend.
type actionCountBackend struct {
	evaluate.Backend
	jacActions    int
	massActions   int
	sensResiduals int
}

func (b *actionCountBackend) JacAction(t float64, y, yp, v, jv []float64) error {
	b.jacActions++
	return b.Backend.JacAction(t, y, yp, v, jv)
}

func (b *actionCountBackend) MassAction(v, mv []float64) error {
	b.massActions++
	return b.Backend.MassAction(v, mv)
}

func (b *actionCountBackend) SensResidual(j int, t float64, y, yp, s, sp, r []float64) error {
	b.sensResiduals++
	return b.Backend.SensResidual(j, t, y, yp, s, sp, r)
}

func TestSolve_SensitivityRefinementUsesActions(t *testing.T) {
	model := problems.NewDecay()
	prob, be := buildModel(t, model)
	counting := &actionCountBackend{Backend: be}

	sol, err := New(config.Default()).Solve(prob, counting, model.DefaultTimes())
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}

	for i, tt := range sol.T {
		want := -tt * math.Exp(-tt)
		if math.Abs(sol.YS[0][i][0]-want) > 1e-3 {
			t.Errorf("s(%v) = %v, want %v", tt, sol.YS[0][i][0], want)
		}
	}

	// The sensitivity residual is evaluated by the model once per corrector
	// pass; every further refinement iteration goes through the Jacobian
	// and mass actions instead.
	if counting.jacActions == 0 || counting.massActions == 0 {
		t.Errorf("refinement never applied the actions (jac %d, mass %d)", counting.jacActions, counting.massActions)
	}
	attempts := sol.Stats.Steps + sol.Stats.ErrTestFails + sol.Stats.ConvFails
	if counting.sensResiduals > attempts {
		t.Errorf("%d sensitivity residual evaluations for %d step attempts", counting.sensResiduals, attempts)
	}
}
