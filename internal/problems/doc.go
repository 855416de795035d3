// Package problems provides built-in DAE systems for benchmarks, the CLI,
// and tests.
//
// Each model builds a [dae.Problem] plus the compiled evaluator functions
// for it:
//
//   - [Decay]: scalar linear decay with an analytic solution and rate
//     sensitivity
//   - [Algebraic]: pure constraint system solved entirely at
//     initialization
//   - [Robertson]: the classic stiff three-species kinetics DAE
//   - [BatteryRC]: single-cell equivalent-circuit battery discharge with
//     a terminal-voltage cutoff event and series-resistance sensitivity
//
// Models register themselves by name; the CLI resolves them through
// [Get].
package problems
