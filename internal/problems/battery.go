package problems

import (
	"github.com/san-kum/daesim/internal/dae"
	"github.com/san-kum/daesim/internal/evaluate"
)

// BatteryRC is a single-cell equivalent-circuit discharge model: state
// of charge and the RC polarization voltage evolve differentially while
// the terminal voltage is pinned by the algebraic circuit equation
//
//	v = ocv(soc) - i*R0 - vrc
//
// with a linear open-circuit voltage ocv(soc) = OCV0 + OCVSlope*soc.
// The model declares one event, terminal voltage crossing Cutoff, and
// tracks the sensitivity of the solution to the series resistance R0.
type BatteryRC struct {
	Current  float64 // discharge current i, amperes
	Capacity float64 // cell capacity, ampere-seconds
	R0       float64 // series resistance, ohms
	R1       float64 // polarization resistance, ohms
	C1       float64 // polarization capacitance, farads
	OCV0     float64 // open-circuit voltage at zero charge
	OCVSlope float64 // open-circuit voltage slope per unit soc
	Cutoff   float64 // terminal-voltage cutoff, volts
}

// NewBatteryRC returns a 2.5 Ah cell under a 1 A discharge.
func NewBatteryRC() *BatteryRC {
	return &BatteryRC{
		Current:  1.0,
		Capacity: 2.5 * 3600,
		R0:       0.05,
		R1:       0.025,
		C1:       1200,
		OCV0:     3.0,
		OCVSlope: 1.2,
		Cutoff:   3.9,
	}
}

func (b *BatteryRC) Name() string { return "battery" }
func (b *BatteryRC) Description() string {
	return "equivalent-circuit cell discharge with voltage-cutoff event"
}

func (b *BatteryRC) DefaultTimes() []float64 {
	return linspace(0, 3600, 61)
}

func (b *BatteryRC) Build() (*dae.Problem, evaluate.Funcs) {
	i, q := b.Current, b.Capacity
	r1c1 := b.R1 * b.C1
	ocv0, slope, vcut := b.OCV0, b.OCVSlope, b.Cutoff

	prob := &dae.Problem{
		N:            3,
		Differential: []bool{true, true, false},
		// soc, vrc, vterm; the terminal voltage starts consistent.
		Y0:        dae.State{1, 0, ocv0 + slope - i*b.R0},
		YP0:       dae.State{-i / q, i / b.C1, 0},
		Params:    []float64{b.R0},
		NumSens:   1,
		NumEvents: 1,
		Sparsity: dae.Sparsity{
			ColPtrs: []int{0, 2, 4, 5},
			RowIdx:  []int{0, 2, 1, 2, 2},
		},
	}
	funcs := evaluate.Funcs{
		Residual: func(t float64, y, yp, p, r []float64) {
			r[0] = yp[0] + i/q
			r[1] = yp[1] + y[1]/r1c1 - i/b.C1
			r[2] = y[2] - (ocv0 + slope*y[0]) + i*p[0] + y[1]
		},
		Jacobian: func(t float64, y, yp []float64, cj float64, p, vals []float64) {
			vals[0] = cj     // dF1/dsoc
			vals[1] = -slope // dF3/dsoc
			vals[2] = cj + 1/r1c1
			vals[3] = 1 // dF3/dvrc
			vals[4] = 1 // dF3/dvterm
		},
		Events: func(t float64, y, p, g []float64) {
			g[0] = y[2] - vcut
		},
		SensResidual: func(j int, t float64, y, yp, s, sp, p, r []float64) {
			r[0] = sp[0]
			r[1] = sp[1] + s[1]/r1c1
			r[2] = s[2] - slope*s[0] + s[1] + i
		},
	}
	return prob, funcs
}
