package bdf

import (
	"fmt"
	"math"

	"github.com/san-kum/daesim/internal/dae"
)

// LocateEvent scans the event functions for a sign change across the step
// just accepted and, on detection, bisects the dense-output interpolant to
// localize the earliest root. It must be called once after every accepted
// step; when no root is found the event baseline advances to the new point.
func (it *Integrator) LocateEvent() (idx int, troot float64, found bool, err error) {
	if it.prob.NumEvents == 0 {
		return 0, 0, false, nil
	}
	tPrev, tNew := it.ts[1], it.ts[0]

	best := -1
	bestT := 0.0
	for i := range it.gNew {
		if !signChange(it.gPrev[i], it.gNew[i]) {
			continue
		}
		tr, berr := it.bisect(i, tPrev, tNew, it.gPrev[i])
		if berr != nil {
			return 0, 0, false, berr
		}
		if best < 0 || tr < bestT {
			best, bestT = i, tr
		}
	}
	if best >= 0 {
		return best, bestT, true, nil
	}
	copy(it.gPrev, it.gNew)
	return 0, 0, false, nil
}

// signChange reports a crossing between consecutive accepted points. An
// exact zero at the earlier point does not count: that root has already
// been seen.
func signChange(a, b float64) bool {
	return (a < 0 && b >= 0) || (a > 0 && b <= 0)
}

// bisect narrows [lo, hi] around the root of event i, returning the first
// time at or past the crossing.
func (it *Integrator) bisect(i int, lo, hi, glo float64) (float64, error) {
	ttol := it.opts.RootTol
	if ttol <= 0 {
		ttol = 100 * machEps * (math.Abs(hi) + (hi - lo))
	}
	for iter := 0; iter < 100 && hi-lo > ttol; iter++ {
		mid := 0.5 * (lo + hi)
		it.YAt(mid, it.ybis)
		if err := it.be.Events(mid, it.ybis, it.gBis); err != nil {
			return 0, err
		}
		if !allFinite(it.gBis) {
			return 0, fmt.Errorf("event function during root search: %w", dae.ErrNonFinite)
		}
		gm := it.gBis[i]
		if gm == 0 {
			return mid, nil
		}
		if (glo < 0) == (gm < 0) {
			lo = mid
		} else {
			hi = mid
		}
	}
	return hi, nil
}
