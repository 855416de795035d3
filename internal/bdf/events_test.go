package bdf

import (
	"math"
	"testing"

	"github.com/san-kum/daesim/internal/config"
	"github.com/san-kum/daesim/internal/dae"
	"github.com/san-kum/daesim/internal/evaluate"
	"github.com/san-kum/daesim/internal/sparse"
)

func TestSignChange(t *testing.T) {
	tests := []struct {
		a, b float64
		want bool
	}{
		{-1, 1, true},
		{1, -1, true},
		{-1, 0, true}, // landing on the root counts
		{1, 0, true},
		{0, 1, false}, // root at the earlier point was already seen
		{0, -1, false},
		{1, 2, false},
		{-1, -2, false},
	}
	for _, tt := range tests {
		if got := signChange(tt.a, tt.b); got != tt.want {
			t.Errorf("signChange(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestLocateEvent_FindsCrossing(t *testing.T) {
	// Cosine-like oscillation via y'' = -y written as a first-order
	// system; y0 crosses zero at t = pi/2.
	prob := &dae.Problem{
		N:            2,
		Differential: []bool{true, true},
		Y0:           dae.State{1, 0},
		YP0:          dae.State{0, -1},
		NumEvents:    1,
		Sparsity: dae.Sparsity{
			ColPtrs: []int{0, 2, 4},
			RowIdx:  []int{0, 1, 0, 1},
		},
	}
	funcs := evaluate.Funcs{
		Residual: func(tt float64, y, yp, p, r []float64) {
			r[0] = yp[0] - y[1]
			r[1] = yp[1] + y[0]
		},
		Jacobian: func(tt float64, y, yp []float64, cj float64, p, vals []float64) {
			vals[0] = cj
			vals[1] = 1
			vals[2] = -1
			vals[3] = cj
		},
		Events: func(tt float64, y, p, g []float64) {
			g[0] = y[0]
		},
	}
	be, err := evaluate.NewCompiled(funcs, prob)
	if err != nil {
		t.Fatal(err)
	}
	lin, err := sparse.New(prob.Sparsity, "auto", 0)
	if err != nil {
		t.Fatal(err)
	}

	it := New(prob, be, lin, config.Default())
	if err := it.Init(0, 3); err != nil {
		t.Fatalf("Init: %v", err)
	}

	for {
		if err := it.Step(); err != nil {
			t.Fatalf("Step: %v", err)
		}
		idx, troot, found, err := it.LocateEvent()
		if err != nil {
			t.Fatalf("LocateEvent: %v", err)
		}
		if found {
			if idx != 0 {
				t.Errorf("event index %d, want 0", idx)
			}
			if math.Abs(troot-math.Pi/2) > 1e-4 {
				t.Errorf("root at %v, want %v", troot, math.Pi/2)
			}
			return
		}
		if it.T() > 3 {
			t.Fatal("no event found before the horizon")
		}
	}
}
