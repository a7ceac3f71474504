// Package relax builds and maintains relaxations of nonlinear terms.
//
// A relaxation object stands for one substitution w = f(x): an auxiliary
// variable w replaces the nonlinear sub-expression f in the model, and the
// object owns the linear surrogate rows that tie w to f — tangent
// (outer-approximation) cuts on the convex side, piecewise secants over a
// refinable partition on the concave side, or αBB-shifted tangents when f
// has no provable shape. Each object is created once, then mutated in place
// by cut generation and adaptive partitioning for the lifetime of a run.
//
// Two relaxation kinds are provided:
//
//   - Univariate — piecewise relaxation of a one-variable term with a
//     provable shape over its box; supports partition refinement
//     (AddPartitionPoint) with a binary-selected secant envelope.
//   - AlphaBB — multivariate (or shapeless univariate) relaxation using the
//     classic αBB diagonal shift: a Gershgorin-style interval bound on the
//     symbolic Hessian yields α ≥ 0 such that f(x) + α·Σ(xᵢ−lbᵢ)(xᵢ−ubᵢ) is
//     provably convex over the box, and tangents of the shifted function
//     underestimate f. α is recomputed on every Rebuild because it depends
//     on the current bounds.
//
// Build performs automatic relaxation construction: it clones a model,
// replaces every nonlinear constraint body and nonlinear objective with an
// auxiliary variable plus the appropriate relaxation object, and returns
// the relaxed problem together with the variable correspondence table.
package relax
