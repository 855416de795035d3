package problems

import (
	"github.com/san-kum/daesim/internal/dae"
	"github.com/san-kum/daesim/internal/evaluate"
)

// Algebraic is a pure constraint system 0 = y - target with no
// differential components. Consistent initialization solves it
// completely; the integrator then reports the constant solution at
// every requested time without stepping.
type Algebraic struct {
	Target []float64 // constraint targets, one per component
}

// NewAlgebraic returns a two-component constraint system.
func NewAlgebraic() *Algebraic {
	return &Algebraic{Target: []float64{2.5, -1.25}}
}

func (a *Algebraic) Name() string        { return "algebraic" }
func (a *Algebraic) Description() string { return "pure algebraic constraints, no time stepping" }

func (a *Algebraic) DefaultTimes() []float64 {
	return linspace(0, 1, 5)
}

func (a *Algebraic) Build() (*dae.Problem, evaluate.Funcs) {
	n := len(a.Target)
	target := make([]float64, n)
	copy(target, a.Target)

	colPtrs := make([]int, n+1)
	rowIdx := make([]int, n)
	for j := 0; j < n; j++ {
		colPtrs[j+1] = j + 1
		rowIdx[j] = j
	}
	prob := &dae.Problem{
		N:            n,
		Differential: make([]bool, n),
		Y0:           make(dae.State, n), // deliberately inconsistent; calcIC must fix it
		Sparsity: dae.Sparsity{
			ColPtrs: colPtrs,
			RowIdx:  rowIdx,
		},
	}
	funcs := evaluate.Funcs{
		Residual: func(t float64, y, yp, p, r []float64) {
			for i := range r {
				r[i] = y[i] - target[i]
			}
		},
		Jacobian: func(t float64, y, yp []float64, cj float64, p, vals []float64) {
			for i := range vals {
				vals[i] = 1
			}
		},
	}
	return prob, funcs
}
