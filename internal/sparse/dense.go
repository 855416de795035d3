package sparse

import (
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/daesim/internal/dae"
)

// Dense solves the iteration matrix through a dense LU with partial
// pivoting. For the small systems produced by lumped models the scatter
// cost is negligible and pivoting makes the solve robust to the poorly
// scaled matrices that show up near events and during initialization.
type Dense struct {
	n     int
	sp    dae.Sparsity
	a     *mat.Dense
	lu    mat.LU
	rhs   *mat.VecDense
	valid bool
}

// NewDense prepares a dense solver for the given pattern.
func NewDense(sp dae.Sparsity) *Dense {
	n := len(sp.ColPtrs) - 1
	return &Dense{
		n:   n,
		sp:  sp,
		a:   mat.NewDense(n, n, nil),
		rhs: mat.NewVecDense(n, nil),
	}
}

func (d *Dense) Name() string { return "dense-lu" }

// Factorize scatters the pattern values into a dense matrix and factorizes.
func (d *Dense) Factorize(vals []float64) error {
	d.valid = false
	d.a.Zero()
	for j := 0; j < d.n; j++ {
		for p := d.sp.ColPtrs[j]; p < d.sp.ColPtrs[j+1]; p++ {
			d.a.Set(d.sp.RowIdx[p], j, vals[p])
		}
	}
	d.lu.Factorize(d.a)
	d.valid = true
	return nil
}

// Solve overwrites b with A^-1 b. An exactly singular or severely
// ill-conditioned matrix is reported as dae.ErrLinearSolve.
func (d *Dense) Solve(b []float64) error {
	if !d.valid {
		return dae.ErrLinearSolve
	}
	for i := 0; i < d.n; i++ {
		d.rhs.SetVec(i, b[i])
	}
	var x mat.VecDense
	if err := d.lu.SolveVecTo(&x, false, d.rhs); err != nil {
		return dae.ErrLinearSolve
	}
	for i := 0; i < d.n; i++ {
		b[i] = x.AtVec(i)
	}
	return nil
}
