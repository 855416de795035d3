// Package sparse factorizes and solves the Newton iteration matrix
// cj*dF/dy' + dF/dy.
//
// The matrix arrives as values laid out in the problem's fixed
// compressed-column pattern. Two solvers implement the [Solver] interface:
// a sparse LU that runs its symbolic analysis once and then refactorizes
// numerically in-pattern, and a dense LU built on gonum for small systems
// where partial pivoting buys robustness at negligible cost. [New] selects
// between them.
//
// A singular or ill-conditioned matrix is reported as dae.ErrLinearSolve;
// the integrator treats that as a failed Newton iteration, not a fatal
// abort.
package sparse
