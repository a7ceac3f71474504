package relax

import (
	"fmt"

	"github.com/mintreelabs/mintree/expr"
	"github.com/mintreelabs/mintree/model"
)

// Side tells which direction(s) of w = f(x) a relaxation must honor.
type Side int

const (
	// Under: the relaxation keeps w ≥ (an underestimator of) f. Needed by
	// ≤-constraints and minimized objectives.
	Under Side = iota
	// Over: the relaxation keeps w ≤ (an overestimator of) f. Needed by
	// ≥-constraints and maximized objectives.
	Over
	// Both: the relaxation honors both directions. Needed by equalities.
	Both
)

func (s Side) String() string {
	switch s {
	case Under:
		return "under"
	case Over:
		return "over"
	case Both:
		return "both"
	}
	return fmt.Sprintf("Side(%d)", int(s))
}

// HasUnder reports whether the under direction is required.
func (s Side) HasUnder() bool { return s == Under || s == Both }

// HasOver reports whether the over direction is required.
func (s Side) HasOver() bool { return s == Over || s == Both }

// Shape is a provable curvature classification of f over the current box.
type Shape int

const (
	// ShapeNeither: no curvature was proven.
	ShapeNeither Shape = iota
	// ShapeConvex: f is provably convex over the box.
	ShapeConvex
	// ShapeConcave: f is provably concave over the box.
	ShapeConcave
)

func (s Shape) String() string {
	switch s {
	case ShapeNeither:
		return "neither"
	case ShapeConvex:
		return "convex"
	case ShapeConcave:
		return "concave"
	}
	return fmt.Sprintf("Shape(%d)", int(s))
}

// PartitionInterval is the active partition segment of one variable.
type PartitionInterval struct {
	Lo, Hi float64
}

// Relaxation is one relaxed nonlinear term w = f(x).
type Relaxation interface {
	// RHSVars returns the variables of f in enumeration order.
	RHSVars() []*expr.Var
	// RHSExpr returns f itself.
	RHSExpr() expr.Expr
	// AuxVar returns the auxiliary variable w.
	AuxVar() *expr.Var
	// Side returns the required relaxation direction(s).
	Side() Side
	// IsRHSConvex reports whether f is provably convex over the current box.
	IsRHSConvex() bool
	// IsRHSConcave reports whether f is provably concave over the current box.
	IsRHSConcave() bool
	// Deviation measures, at the current variable values, how far w strays
	// from f on the side(s) the relaxation must honor.
	Deviation() float64
	// AddPartitionPoint registers the current point for refinement; the
	// refinement takes effect on the next Rebuild.
	AddPartitionPoint()
	// AddCut generates a linearization cut at the current point. With
	// checkViolation set, nil is returned unless the cut is violated by
	// more than tol. With keep set the cut survives future Rebuilds.
	AddCut(keep, checkViolation bool, tol float64) *model.Constraint
	// Rebuild reconstructs the term's constraints from its current inputs
	// and bounds. With buildNonlinear set the exact nonlinear constraint
	// w = f(x) is built instead of the linear surrogate.
	Rebuild(buildNonlinear bool)
	// ActivePartitions returns, per partitioned variable, the partition
	// segment containing the variable's current value. Non-piecewise
	// relaxations return nil.
	ActivePartitions() map[*expr.Var]PartitionInterval

	// cloneOnto re-creates the relaxation on a cloned model, following the
	// variable and constraint correspondence of the clone.
	cloneOnto(m *model.Model, varSub map[*expr.Var]*expr.Var, conSub map[*model.Constraint]*model.Constraint) Relaxation
}
