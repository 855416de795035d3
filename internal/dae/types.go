package dae

import (
	"fmt"
	"math"
)

// State is a dense vector of solver variables.
type State []float64

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

// IsValid reports whether every entry is finite.
func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Sparsity declares the compressed-column structure of the Jacobian.
// The pattern is fixed for the lifetime of a solve; only values change.
type Sparsity struct {
	ColPtrs []int
	RowIdx  []int
}

// NNZ returns the number of structural nonzeros.
func (sp Sparsity) NNZ() int { return len(sp.RowIdx) }

// Validate checks the pattern against dimension n: monotone column pointers,
// in-range and strictly increasing row indices within each column.
func (sp Sparsity) Validate(n int) error {
	if len(sp.ColPtrs) != n+1 {
		return fmt.Errorf("sparsity: want %d column pointers, got %d: %w", n+1, len(sp.ColPtrs), ErrBadSparsity)
	}
	if sp.ColPtrs[0] != 0 {
		return fmt.Errorf("sparsity: first column pointer must be 0: %w", ErrBadSparsity)
	}
	if sp.ColPtrs[n] != len(sp.RowIdx) {
		return fmt.Errorf("sparsity: last column pointer %d does not match nnz %d: %w", sp.ColPtrs[n], len(sp.RowIdx), ErrBadSparsity)
	}
	for j := 0; j < n; j++ {
		if sp.ColPtrs[j] > sp.ColPtrs[j+1] {
			return fmt.Errorf("sparsity: column pointers decrease at column %d: %w", j, ErrBadSparsity)
		}
		prev := -1
		for p := sp.ColPtrs[j]; p < sp.ColPtrs[j+1]; p++ {
			r := sp.RowIdx[p]
			if r < 0 || r >= n {
				return fmt.Errorf("sparsity: row index %d out of range in column %d: %w", r, j, ErrBadSparsity)
			}
			if r <= prev {
				return fmt.Errorf("sparsity: row indices not increasing in column %d: %w", j, ErrBadSparsity)
			}
			prev = r
		}
	}
	return nil
}

// Problem describes one DAE system to be advanced in time.
//
// Differential marks components carrying an accumulation term; the rest are
// algebraic constraints. Y0 and YP0 are the caller's initial guess; the
// integrator corrects them to consistency before stepping. YP0 may be nil,
// in which case it defaults to zero. S0 optionally carries initial
// sensitivity vectors, one per tracked parameter (nil means zero).
type Problem struct {
	N            int
	Differential []bool
	Y0           State
	YP0          State
	Params       []float64
	NumSens      int
	NumEvents    int
	Sparsity     Sparsity
	S0           []State
}

// Validate checks the static shape of the problem before any stepping.
func (p *Problem) Validate() error {
	if p.N <= 0 {
		return fmt.Errorf("problem: dimension must be positive, got %d: %w", p.N, ErrBadConfig)
	}
	if len(p.Differential) != p.N {
		return fmt.Errorf("problem: component-kind vector has length %d, want %d: %w", len(p.Differential), p.N, ErrBadConfig)
	}
	if len(p.Y0) != p.N {
		return fmt.Errorf("problem: y0 has length %d, want %d: %w", len(p.Y0), p.N, ErrBadConfig)
	}
	if p.YP0 != nil && len(p.YP0) != p.N {
		return fmt.Errorf("problem: yp0 has length %d, want %d: %w", len(p.YP0), p.N, ErrBadConfig)
	}
	if p.NumSens < 0 {
		return fmt.Errorf("problem: negative sensitivity count %d: %w", p.NumSens, ErrBadConfig)
	}
	if p.NumSens > 0 && p.NumSens > len(p.Params) {
		return fmt.Errorf("problem: %d sensitivities requested but only %d parameters: %w", p.NumSens, len(p.Params), ErrBadConfig)
	}
	if p.S0 != nil {
		if len(p.S0) != p.NumSens {
			return fmt.Errorf("problem: %d initial sensitivity vectors, want %d: %w", len(p.S0), p.NumSens, ErrBadConfig)
		}
		for j, s := range p.S0 {
			if len(s) != p.N {
				return fmt.Errorf("problem: s0[%d] has length %d, want %d: %w", j, len(s), p.N, ErrBadConfig)
			}
		}
	}
	if p.NumEvents < 0 {
		return fmt.Errorf("problem: negative event count %d: %w", p.NumEvents, ErrBadConfig)
	}
	return p.Sparsity.Validate(p.N)
}

// NumDifferential counts components with an accumulation term.
func (p *Problem) NumDifferential() int {
	nd := 0
	for _, d := range p.Differential {
		if d {
			nd++
		}
	}
	return nd
}
