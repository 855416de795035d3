package sparse

import (
	"fmt"

	"github.com/san-kum/daesim/internal/dae"
)

// Solver factorizes the iteration matrix and solves against the current
// factorization. Factorize consumes values in the declared compressed-column
// pattern; Solve overwrites b with the solution in place. One factorization
// may serve many solves.
type Solver interface {
	Name() string
	Factorize(vals []float64) error
	Solve(b []float64) error
}

// DefaultDenseThreshold is the dimension at or below which auto selection
// prefers the dense solver.
const DefaultDenseThreshold = 50

// New builds a linear solver for the given pattern. Kind is "sparse",
// "dense", or "auto"; auto picks dense for systems of dimension at or below
// threshold (pass 0 for the default).
func New(sp dae.Sparsity, kind string, threshold int) (Solver, error) {
	if threshold <= 0 {
		threshold = DefaultDenseThreshold
	}
	n := len(sp.ColPtrs) - 1
	switch kind {
	case "sparse":
		return NewLU(sp), nil
	case "dense":
		return NewDense(sp), nil
	case "", "auto":
		if n <= threshold {
			return NewDense(sp), nil
		}
		return NewLU(sp), nil
	default:
		return nil, fmt.Errorf("sparse: unknown linear solver %q: %w", kind, dae.ErrBadConfig)
	}
}
