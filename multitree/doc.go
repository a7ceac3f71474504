// Package multitree solves non-convex mixed-integer nonlinear programs
// (MINLPs) by a multi-tree decomposition: it alternates between a MIP
// relaxation of the problem and NLP solves with the discrete variables
// fixed, tightening the relaxation between rounds.
//
// What the algorithm does, per run:
//
//  1. Construction: clone the model, replace every nonlinear term with an
//     auxiliary variable tied to the term by a relaxation object
//     (piecewise secant/tangent for univariate terms of provable shape,
//     an αBB convex underestimator otherwise). A second clone instantiates
//     every term's linear surrogate; that clone is what the MIP backend
//     sees.
//  2. Root OA: with integrality relaxed, alternate MIP solves and
//     outer-approximation cuts at violated points until a fixed point.
//  3. Root tightening: optimality-based bound tightening passes over the
//     relaxation, with the incumbent objective as a cutoff; the
//     relaxations are rebuilt after each pass because their surrogates
//     (and α) depend on the bounds.
//  4. Main loop: solve the MIP relaxation (dual bound), fix the discrete
//     variables at the rounded relaxation values and solve the NLP on the
//     active partition box (primal bound), add OA cuts, refine the most
//     violated piecewise terms.
//
// Bounds are tracked sense-aware with ±Inf sentinels; the run stops on
// the wall-clock budget, the iteration cap, a recorded backend fault, or
// a closed absolute/relative gap — whichever fires first. A primal bound
// is only ever recorded for a point that satisfies the original
// nonlinearities and integrality within tolerance, so the reported
// incumbent is always feasible for the caller's model.
//
// The engine is single-threaded and cooperative: the only blocking calls
// are the two backends, each given the remaining time budget. Overlapping
// Solve calls on one Solver must be serialized by the caller.
package multitree
