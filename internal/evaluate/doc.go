// Package evaluate abstracts the numeric evaluators of a DAE system behind
// one capability interface.
//
// Two backends implement it:
//
//   - [Compiled]: pre-bound native function pointers produced by a
//     model-compilation step; zero interpretive overhead per call.
//   - [Callback]: opaque externally supplied functions invoked through the
//     same interface, with the solver's buffers isolated from the callee.
//
// The backend is chosen once at setup and never switched mid-solve. Given
// identical arguments evaluators must be deterministic and must not mutate
// integrator-owned state; private memoized scratch is allowed.
package evaluate
