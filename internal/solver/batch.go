package solver

import (
	"context"
	"runtime"
	"sync"

	"github.com/san-kum/daesim/internal/dae"
	"github.com/san-kum/daesim/internal/evaluate"
)

// Job is one independent solve in a batch: its own problem (typically the
// same structure with a different parameter vector), backend, and output
// grid.
type Job struct {
	Problem *dae.Problem
	Backend evaluate.Backend
	Times   []float64
}

// Result pairs a job's solution with its error, index-aligned with the
// submitted jobs.
type Result struct {
	Solution *dae.Solution
	Err      error
}

// Batch fans independent solves out across workers. Steps within one solve
// are strictly sequential, but separate solves share no mutable state, so
// parameter sweeps parallelize across instances.
type Batch struct {
	base    *Solver
	workers int
}

// NewBatch creates a batch runner; workers <= 0 means GOMAXPROCS.
func NewBatch(base *Solver, workers int) *Batch {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Batch{base: base, workers: workers}
}

// Run executes all jobs and returns their results in submission order. The
// context is consulted only between solves: a running solve always
// completes, matching the no-mid-solve-cancellation contract.
func (b *Batch) Run(ctx context.Context, jobs []Job) ([]Result, error) {
	results := make([]Result, len(jobs))
	sem := make(chan struct{}, b.workers)

	var wg sync.WaitGroup
	var ctxErr error
	for i, job := range jobs {
		select {
		case <-ctx.Done():
			ctxErr = ctx.Err()
		default:
		}
		if ctxErr != nil {
			for k := i; k < len(jobs); k++ {
				results[k] = Result{Err: ctxErr}
			}
			break
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(idx int, j Job) {
			defer wg.Done()
			defer func() { <-sem }()
			s := New(b.base.opts)
			results[idx].Solution, results[idx].Err = s.Solve(j.Problem, j.Backend, j.Times)
		}(i, job)
	}
	wg.Wait()
	return results, ctxErr
}
