// Package sqp is the bundled NLP backend: an adapter from the
// solve.Solver persistent contract onto the SLSQP implementation in
// github.com/curioloop/optimizer.
//
// The adapter reads the bound model fresh on every Solve — SLSQP keeps no
// incremental state worth preserving — so Update and AddConstraints are
// trivially satisfied. Fixed variables are excluded from the decision
// vector and enter the closures as constants; objective and constraint
// gradients come from the expr package's symbolic differentiation.
//
// SLSQP is a local method: a converged, feasibility-checked point yields a
// feasible objective but no global objective bound.
package sqp
