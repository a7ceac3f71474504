// Package model defines the algebraic optimization model the solver stack
// operates on: a set of expr.Var variables, constraints of the form
// LB ≤ body ≤ UB with expression bodies, and a single sensed objective.
//
// Models are plain mutable containers; ownership and mutation discipline
// are the caller's concern. Clone produces a deep copy together with the
// variable correspondence table from clone variables to their originals,
// which the multitree engine uses to move values between its model chain
// without re-deriving correspondence each iteration.
package model
