// Package tighten implements the two bound-tightening passes the multitree
// engine consumes.
//
// FBBT (feasibility-based bound tightening) propagates constraint
// activity bounds through interval arithmetic: a forward sweep proves
// infeasibility or deactivates constraints that can never be violated, and
// a backward sweep over affine rows tightens variable bounds from the
// residual range left by the other terms. A proven-empty box is reported
// as ErrInfeasible — an expected outcome for callers probing a fixing, not
// a failure.
//
// OBBT (optimality-based bound tightening) minimizes and maximizes each
// requested variable over the relaxation, optionally under an incumbent
// objective cutoff, and keeps whichever proven bounds improve on the
// current box. It drives the caller-supplied MIP backend and respects a
// wall-clock budget between solves.
package tighten
