package dae

import (
	"errors"
	"math"
	"testing"
)

func TestState_Clone(t *testing.T) {
	s := State{1, 2, 3}
	c := s.Clone()
	c[0] = 99
	if s[0] != 1 {
		t.Error("clone shares storage with the original")
	}
}

func TestState_IsValid(t *testing.T) {
	if !(State{1, -2, 0}).IsValid() {
		t.Error("finite state reported invalid")
	}
	if (State{1, math.NaN()}).IsValid() {
		t.Error("NaN not detected")
	}
	if (State{math.Inf(-1)}).IsValid() {
		t.Error("Inf not detected")
	}
}

func TestSparsity_Validate(t *testing.T) {
	good := Sparsity{ColPtrs: []int{0, 2, 3}, RowIdx: []int{0, 1, 1}}
	if err := good.Validate(2); err != nil {
		t.Fatalf("valid pattern rejected: %v", err)
	}

	bad := []Sparsity{
		{ColPtrs: []int{0, 2}, RowIdx: []int{0, 1, 1}},    // wrong dimension
		{ColPtrs: []int{1, 2, 3}, RowIdx: []int{0, 1, 1}}, // nonzero start
		{ColPtrs: []int{0, 2, 2}, RowIdx: []int{0, 1, 1}}, // nnz mismatch
		{ColPtrs: []int{0, 2, 3}, RowIdx: []int{0, 5, 1}}, // row out of range
		{ColPtrs: []int{0, 2, 3}, RowIdx: []int{1, 0, 1}}, // rows not increasing
		{ColPtrs: []int{0, 3, 2}, RowIdx: []int{0, 1, 0}}, // decreasing pointers
	}
	for i, sp := range bad {
		if err := sp.Validate(2); !errors.Is(err, ErrBadSparsity) {
			t.Errorf("pattern %d: error %v is not ErrBadSparsity", i, err)
		}
	}
}

func TestProblem_Validate(t *testing.T) {
	valid := func() *Problem {
		return &Problem{
			N:            2,
			Differential: []bool{true, false},
			Y0:           State{1, 0},
			Sparsity:     Sparsity{ColPtrs: []int{0, 1, 2}, RowIdx: []int{0, 1}},
		}
	}
	if err := valid().Validate(); err != nil {
		t.Fatalf("valid problem rejected: %v", err)
	}

	p := valid()
	p.Y0 = State{1}
	if err := p.Validate(); !errors.Is(err, ErrBadConfig) {
		t.Errorf("short y0: %v", err)
	}

	p = valid()
	p.NumSens = 1
	if err := p.Validate(); !errors.Is(err, ErrBadConfig) {
		t.Errorf("sensitivities without parameters: %v", err)
	}

	p = valid()
	p.Params = []float64{2}
	p.NumSens = 1
	p.S0 = []State{{0}}
	if err := p.Validate(); !errors.Is(err, ErrBadConfig) {
		t.Errorf("short s0 vector: %v", err)
	}
}

func TestSolveError_Unwraps(t *testing.T) {
	err := &SolveError{Step: 7, Time: 1.5, Wrapped: ErrMaxSteps}
	if !errors.Is(err, ErrMaxSteps) {
		t.Error("SolveError does not unwrap to its sentinel")
	}
	if err.Error() == "" {
		t.Error("empty error message")
	}
}

func TestSolution_Append_Clones(t *testing.T) {
	sol := NewSolution(2, 0)
	y := State{1, 2}
	sol.Append(0, y, nil)
	y[0] = 99
	if sol.Y[0][0] != 1 {
		t.Error("recorded state aliases the solver buffer")
	}
}

func TestSolution_Component(t *testing.T) {
	sol := NewSolution(2, 0)
	sol.Append(0, State{1, 10}, nil)
	sol.Append(1, State{2, 20}, nil)

	got := sol.Component(1)
	if len(got) != 2 || got[0] != 10 || got[1] != 20 {
		t.Errorf("Component(1) = %v", got)
	}
}
