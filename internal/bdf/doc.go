// Package bdf implements the variable-order, variable-step implicit
// multistep integrator at the heart of the solver.
//
// Each step predicts the next state by polynomial extrapolation from
// accepted history, then Newton-iterates the BDF corrector equation
// F(t, y, y') = 0 with y' expressed through y and history via the leading
// coefficient cj. Every Newton iteration solves one sparse linear system
// against the iteration matrix cj*dF/dy' + dF/dy; the factorization is
// reused across iterations and steps until cj drifts or convergence
// degrades.
//
// The integrator is a single-solve state machine: consistent
// initialization, stepping with error control and retry budgets, event
// root-finding by bisection on the corrector's interpolant, and forward
// sensitivity propagation against the already-factorized iteration matrix.
// One Integrator owns its Jacobian values, factorization, and work buffers
// for the lifetime of the solve; instances never share mutable state.
package bdf
