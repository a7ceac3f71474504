// Package bnb is the bundled MIP backend: branch-and-bound on integrality
// over LP relaxations solved with gonum's simplex method.
//
// The backend implements the solve.Solver persistent contract. A bound
// model is extracted into dense LP form (every constraint body must be
// affine); discrete variables drive the branching. Variables are shifted
// by their lower bounds so the simplex standard form's x ≥ 0 applies,
// which requires every variable to carry a finite lower bound — models
// with unbounded variables are rejected at extraction.
//
// The search is depth-first with most-fractional branching. The reported
// objective bound is the minimum over the incumbent and the LP bounds of
// the unexplored frontier, so it is valid (and usually loose) when a time
// limit or the relative gap stops the search early.
package bnb
