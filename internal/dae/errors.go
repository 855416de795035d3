package dae

import (
	"errors"
	"fmt"
)

// Failure taxonomy. Configuration and initialization errors abort before any
// step is taken; the remaining errors classify why stepping stopped.
var (
	// ErrBadConfig indicates dimension mismatches or invalid solver options.
	ErrBadConfig = errors.New("daesim: invalid configuration")

	// ErrBadSparsity indicates a malformed compressed-column pattern.
	ErrBadSparsity = errors.New("daesim: malformed sparsity pattern")

	// ErrInitialization indicates a consistent initial condition could not
	// be reached within tolerance.
	ErrInitialization = errors.New("daesim: consistent initialization failed")

	// ErrNewtonConvergence indicates the corrector iteration kept failing
	// after the retry budget was exhausted.
	ErrNewtonConvergence = errors.New("daesim: repeated corrector convergence failures")

	// ErrErrorTest indicates the local error test kept failing after the
	// retry budget was exhausted.
	ErrErrorTest = errors.New("daesim: repeated error test failures")

	// ErrLinearSolve indicates a singular or ill-conditioned iteration
	// matrix. Inside a step this is recoverable; it is surfaced only when
	// retries run out.
	ErrLinearSolve = errors.New("daesim: linear solver failure")

	// ErrMaxSteps indicates the internal step budget was exceeded before
	// reaching the final output time.
	ErrMaxSteps = errors.New("daesim: maximum step count exceeded")

	// ErrMinStep indicates the step size was driven below its minimum.
	ErrMinStep = errors.New("daesim: step size below minimum")

	// ErrNonFinite indicates an evaluator returned NaN or Inf.
	ErrNonFinite = errors.New("daesim: non-finite evaluator result")
)

// SolveError carries the stepping context at the point of failure.
type SolveError struct {
	Step    int
	Time    float64
	Wrapped error
}

func (e *SolveError) Error() string {
	return fmt.Sprintf("step %d at t=%g: %v", e.Step, e.Time, e.Wrapped)
}

func (e *SolveError) Unwrap() error {
	return e.Wrapped
}
