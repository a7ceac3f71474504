// Package mintree is a pure-Go toolkit for solving non-convex
// mixed-integer nonlinear programs by decomposition — alternating a
// piecewise-convex mixed-integer relaxation with fixed-discrete
// nonlinear solves until the bounds meet.
//
// 🚀 What is mintree?
//
//	A modular solver stack that brings together:
//		• Expressions: an algebraic expression tree with exact interval
//		  bounds and symbolic differentiation
//		• Models: variables, constraints and an objective, with fixing,
//		  activation and cloning
//		• Relaxations: outer-approximation cuts, adaptive piecewise
//		  (λ-formulation) envelopes and αBB convex underestimators
//		• Tightening: feasibility-based (FBBT) and optimization-based
//		  (OBBT) bound reduction
//		• Backends: a simplex-based branch-and-bound MIP solver and an
//		  SLSQP nonlinear solver behind one Solver interface
//		• The multitree engine that orchestrates all of the above with
//		  sound primal/dual bound tracking
//
// ✨ Why choose mintree?
//
//   - Global bounds you can trust – every dual bound is proved by a
//     convex relaxation, every primal bound by a feasible point
//   - Swappable backends – any solve.Solver can drive the MIP or NLP
//     side, including external solvers behind thin adapters
//   - Pure Go core – no cgo, no solver binaries to install
//
// Under the hood, everything is organized as:
//
//	expr/      — expression trees, intervals, gradients
//	model/     — variables, constraints, objectives
//	relax/     — relaxation construction, OA cuts, partitions, αBB
//	tighten/   — FBBT and OBBT bound tightening
//	solve/     — the backend Solver contract plus bnb/ and sqp/
//	multitree/ — the decomposition engine tying it all together
//
// Quick sketch of the main loop:
//
//	MIP relaxation ──► dual bound, candidate point
//	      ▲                     │ fix discretes
//	      │ refine partitions   ▼
//	OA cuts ◄────────── NLP solve ──► primal bound
//
// Dive into the package docs of multitree for the full algorithm and
// into solve for the backend contract.
//
//	go get github.com/mintreelabs/mintree
package mintree
