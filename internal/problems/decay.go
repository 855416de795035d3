package problems

import (
	"github.com/san-kum/daesim/internal/dae"
	"github.com/san-kum/daesim/internal/evaluate"
)

// Decay is the scalar linear system y' = -p*y written in residual form
// F = y' + p*y. Its exact solution y0*exp(-p*t) and exact rate
// sensitivity -t*y0*exp(-p*t) make it the reference model for accuracy
// checks.
type Decay struct {
	Rate float64 // decay rate p
	Y0   float64 // initial value
}

// NewDecay returns unit decay: rate 1, y(0) = 1.
func NewDecay() *Decay {
	return &Decay{Rate: 1, Y0: 1}
}

func (d *Decay) Name() string        { return "decay" }
func (d *Decay) Description() string { return "scalar exponential decay y' = -p*y" }

func (d *Decay) DefaultTimes() []float64 {
	return linspace(0, 1, 11)
}

func (d *Decay) Build() (*dae.Problem, evaluate.Funcs) {
	prob := &dae.Problem{
		N:            1,
		Differential: []bool{true},
		Y0:           dae.State{d.Y0},
		YP0:          dae.State{-d.Rate * d.Y0},
		Params:       []float64{d.Rate},
		NumSens:      1,
		Sparsity: dae.Sparsity{
			ColPtrs: []int{0, 1},
			RowIdx:  []int{0},
		},
	}
	funcs := evaluate.Funcs{
		Residual: func(t float64, y, yp, p, r []float64) {
			r[0] = yp[0] + p[0]*y[0]
		},
		Jacobian: func(t float64, y, yp []float64, cj float64, p, vals []float64) {
			vals[0] = p[0] + cj
		},
		SensResidual: func(j int, t float64, y, yp, s, sp, p, r []float64) {
			r[0] = sp[0] + p[0]*s[0] + y[0]
		},
	}
	return prob, funcs
}
