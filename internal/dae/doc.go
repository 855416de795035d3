// Package dae defines the shared vocabulary of the solver: state vectors,
// problem definitions, sparsity patterns, solution records, and the error
// taxonomy.
//
// A [Problem] describes one implicit system F(t, y, y', p) = 0 together with
// its dimensions, component kinds, and declared Jacobian sparsity. The
// numerical evaluators themselves live behind the evaluate.Backend interface;
// a Problem only carries what the integrator needs to validate and drive a
// solve.
//
// A [Solution] is the value handed back to the caller: output times, states,
// optional sensitivities, solver statistics, and a single termination
// classification. Failed solves still return the output accumulated up to the
// failure point.
package dae
