package sparse

import (
	"math"

	"github.com/san-kum/daesim/internal/dae"
)

const tinyPivot = 1e-300

// LU is a left-looking sparse LU factorization without pivoting. The first
// Factorize call runs the symbolic analysis, discovering the fill-in pattern
// of L and U by graph reachability; every later call replays the stored
// elimination order on fresh values. The iteration matrix is typically
// strongly diagonal for small steps, which is what makes the no-pivot
// strategy workable; a vanishing pivot is reported as dae.ErrLinearSolve and
// the integrator recovers by shrinking the step.
type LU struct {
	n  int
	sp dae.Sparsity

	// Per-column factors. uRows excludes the diagonal and is stored in
	// elimination (topological) order; the unit diagonal of L is implicit.
	uRows [][]int
	uVals [][]float64
	lRows [][]int
	lVals [][]float64
	diag  []float64

	analyzed bool
	valid    bool

	x     []float64
	mark  []int
	post  []int
	stack []int
	edges []int
}

// NewLU prepares a sparse LU for the given pattern.
func NewLU(sp dae.Sparsity) *LU {
	n := len(sp.ColPtrs) - 1
	return &LU{
		n:     n,
		sp:    sp,
		uRows: make([][]int, n),
		uVals: make([][]float64, n),
		lRows: make([][]int, n),
		lVals: make([][]float64, n),
		diag:  make([]float64, n),
		x:     make([]float64, n),
		mark:  make([]int, n),
	}
}

func (f *LU) Name() string { return "sparse-lu" }

// Factorize computes L and U from values laid out in the declared pattern.
func (f *LU) Factorize(vals []float64) error {
	f.valid = false
	if !f.analyzed {
		if err := f.factorizeSymbolic(vals); err != nil {
			return err
		}
	} else if err := f.refactorize(vals); err != nil {
		return err
	}
	f.valid = true
	return nil
}

// factorizeSymbolic runs the combined symbolic and numeric first
// factorization, recording the fill pattern column by column.
func (f *LU) factorizeSymbolic(vals []float64) error {
	for j := 0; j < f.n; j++ {
		f.uRows[j] = nil
		f.uVals[j] = nil
		f.lRows[j] = nil
		f.lVals[j] = nil
	}
	for i := range f.mark {
		f.mark[i] = 0
	}
	for j := 0; j < f.n; j++ {
		f.reach(j)

		for p := f.sp.ColPtrs[j]; p < f.sp.ColPtrs[j+1]; p++ {
			f.x[f.sp.RowIdx[p]] = vals[p]
		}

		// Reverse postorder visits eliminated rows topologically.
		for i := len(f.post) - 1; i >= 0; i-- {
			k := f.post[i]
			if k >= j {
				continue
			}
			ukj := f.x[k]
			f.uRows[j] = append(f.uRows[j], k)
			f.uVals[j] = append(f.uVals[j], ukj)
			if ukj != 0 {
				rows, lv := f.lRows[k], f.lVals[k]
				for idx, r := range rows {
					f.x[r] -= ukj * lv[idx]
				}
			}
		}

		pivot := f.x[j]
		if math.Abs(pivot) < tinyPivot {
			f.clearColumn()
			return dae.ErrLinearSolve
		}
		f.diag[j] = pivot

		for i := len(f.post) - 1; i >= 0; i-- {
			r := f.post[i]
			if r <= j {
				continue
			}
			f.lRows[j] = append(f.lRows[j], r)
			f.lVals[j] = append(f.lVals[j], f.x[r]/pivot)
		}

		f.clearColumn()
	}
	f.analyzed = true
	return nil
}

// refactorize replays the stored elimination order on fresh values.
func (f *LU) refactorize(vals []float64) error {
	for j := 0; j < f.n; j++ {
		for p := f.sp.ColPtrs[j]; p < f.sp.ColPtrs[j+1]; p++ {
			f.x[f.sp.RowIdx[p]] = vals[p]
		}

		rows, uv := f.uRows[j], f.uVals[j]
		for idx, k := range rows {
			ukj := f.x[k]
			uv[idx] = ukj
			if ukj != 0 {
				lr, lv := f.lRows[k], f.lVals[k]
				for i, r := range lr {
					f.x[r] -= ukj * lv[i]
				}
			}
		}

		pivot := f.x[j]
		if math.Abs(pivot) < tinyPivot {
			f.clearAfterColumn(j)
			return dae.ErrLinearSolve
		}
		f.diag[j] = pivot

		lr, lv := f.lRows[j], f.lVals[j]
		for i, r := range lr {
			lv[i] = f.x[r] / pivot
		}

		f.clearAfterColumn(j)
	}
	return nil
}

// Solve overwrites b with A^-1 b using the current factorization.
func (f *LU) Solve(b []float64) error {
	if !f.valid {
		return dae.ErrLinearSolve
	}
	for j := 0; j < f.n; j++ {
		xj := b[j]
		if xj == 0 {
			continue
		}
		rows, lv := f.lRows[j], f.lVals[j]
		for i, r := range rows {
			b[r] -= lv[i] * xj
		}
	}
	for j := f.n - 1; j >= 0; j-- {
		b[j] /= f.diag[j]
		xj := b[j]
		if xj == 0 {
			continue
		}
		rows, uv := f.uRows[j], f.uVals[j]
		for i, k := range rows {
			b[k] -= uv[i] * xj
		}
	}
	return nil
}

// reach fills f.post with the DFS postorder of rows reachable from column
// j's structural entries through columns of L already computed.
func (f *LU) reach(j int) {
	f.post = f.post[:0]
	stamp := j + 1
	for p := f.sp.ColPtrs[j]; p < f.sp.ColPtrs[j+1]; p++ {
		r := f.sp.RowIdx[p]
		if f.mark[r] != stamp {
			f.dfs(r, j, stamp)
		}
	}
}

func (f *LU) dfs(start, j, stamp int) {
	f.stack = append(f.stack[:0], start)
	f.edges = append(f.edges[:0], 0)
	f.mark[start] = stamp
	for len(f.stack) > 0 {
		top := len(f.stack) - 1
		i := f.stack[top]
		var kids []int
		if i < j {
			kids = f.lRows[i]
		}
		descended := false
		for f.edges[top] < len(kids) {
			r := kids[f.edges[top]]
			f.edges[top]++
			if f.mark[r] != stamp {
				f.mark[r] = stamp
				f.stack = append(f.stack, r)
				f.edges = append(f.edges, 0)
				descended = true
				break
			}
		}
		if !descended {
			f.post = append(f.post, i)
			f.stack = f.stack[:top]
			f.edges = f.edges[:top]
		}
	}
}

// clearColumn zeroes the work vector at every row touched by the current
// symbolic column.
func (f *LU) clearColumn() {
	for _, i := range f.post {
		f.x[i] = 0
	}
}

// clearAfterColumn zeroes the work vector using the stored pattern of
// column j.
func (f *LU) clearAfterColumn(j int) {
	for _, k := range f.uRows[j] {
		f.x[k] = 0
	}
	for _, r := range f.lRows[j] {
		f.x[r] = 0
	}
	f.x[j] = 0
}
