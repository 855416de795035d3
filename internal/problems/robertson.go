package problems

import (
	"github.com/san-kum/daesim/internal/dae"
	"github.com/san-kum/daesim/internal/evaluate"
)

// Robertson is the classic stiff chemical-kinetics problem in
// semi-explicit DAE form. Two species evolve differentially and the
// third is pinned by the conservation constraint y1 + y2 + y3 = 1.
// Rate constants span nine orders of magnitude, which forces the
// integrator deep into its high-order stiff regime.
type Robertson struct {
	K1, K2, K3 float64
}

// NewRobertson returns the standard rate constants 0.04, 1e4, 3e7.
func NewRobertson() *Robertson {
	return &Robertson{K1: 0.04, K2: 1e4, K3: 3e7}
}

func (rb *Robertson) Name() string        { return "robertson" }
func (rb *Robertson) Description() string { return "stiff three-species kinetics DAE" }

func (rb *Robertson) DefaultTimes() []float64 {
	// Log-spaced horizon: the interesting transient is early, the
	// equilibrium approach is late.
	ts := []float64{0}
	t := 1e-4
	for t <= 1e4 {
		ts = append(ts, t)
		t *= 10
	}
	return ts
}

func (rb *Robertson) Build() (*dae.Problem, evaluate.Funcs) {
	k1, k2, k3 := rb.K1, rb.K2, rb.K3
	prob := &dae.Problem{
		N:            3,
		Differential: []bool{true, true, false},
		Y0:           dae.State{1, 0, 0},
		YP0:          dae.State{-k1, k1, 0},
		Sparsity: dae.Sparsity{
			// Structurally dense 3x3.
			ColPtrs: []int{0, 3, 6, 9},
			RowIdx:  []int{0, 1, 2, 0, 1, 2, 0, 1, 2},
		},
	}
	funcs := evaluate.Funcs{
		Residual: func(t float64, y, yp, p, r []float64) {
			r[0] = yp[0] + k1*y[0] - k2*y[1]*y[2]
			r[1] = yp[1] - k1*y[0] + k2*y[1]*y[2] + k3*y[1]*y[1]
			r[2] = y[0] + y[1] + y[2] - 1
		},
		Jacobian: func(t float64, y, yp []float64, cj float64, p, vals []float64) {
			// Column 0: dF/dy1
			vals[0] = k1 + cj
			vals[1] = -k1
			vals[2] = 1
			// Column 1: dF/dy2
			vals[3] = -k2 * y[2]
			vals[4] = k2*y[2] + 2*k3*y[1] + cj
			vals[5] = 1
			// Column 2: dF/dy3
			vals[6] = -k2 * y[1]
			vals[7] = k2 * y[1]
			vals[8] = 1
		},
	}
	return prob, funcs
}
