package relax

import (
	"fmt"
	"math"

	"github.com/mintreelabs/mintree/expr"
	"github.com/mintreelabs/mintree/interval"
	"github.com/mintreelabs/mintree/model"
)

// ComputeAlpha returns α ≥ 0 such that f(x) + α·Σ(xᵢ−lbᵢ)(xᵢ−ubᵢ) is
// convex over the variables' box. The symbolic Hessian is built by
// differentiating twice; each diagonal entry is bounded by interval
// arithmetic and reduced by the largest absolute endpoints of its row's
// off-diagonal bounds (a Gershgorin-style diagonal-dominance estimate).
// α is the largest row deficit, floored at zero — zero means f is already
// provably convex over the box.
func ComputeAlpha(xs []*expr.Var, f expr.Expr) float64 {
	grad := expr.Gradient(f)
	alpha := 0.0
	for _, x := range xs {
		gx, ok := grad[x]
		if !ok {
			continue // zero Hessian row
		}
		row := expr.Gradient(gx)
		aii := interval.Point(0)
		if d, present := row[x]; present {
			aii = d.Bounds()
		}
		tot := aii.Lo
		for _, y := range xs {
			if y == x {
				continue
			}
			if d, present := row[y]; present {
				tot -= d.Bounds().AbsMax()
			}
		}
		if a := -0.5 * tot; a > alpha {
			alpha = a
		}
	}
	return alpha
}

// AlphaBB relaxes w = f(x) for a multivariate (or shapeless univariate) f.
// The under side linearizes the convex shift f + αᵤ·q, the over side the
// concave shift f − αₒ·q, where q(x) = Σ(xᵢ−lbᵢ)(xᵢ−ubᵢ) ≤ 0 on the box
// and αₒ is the α of −f. Both shifts are recomputed on every Rebuild
// because they depend on the current bounds.
type AlphaBB struct {
	m    *model.Model
	xs   []*expr.Var
	aux  *expr.Var
	rhs  expr.Expr
	side Side

	alphaUnder, alphaOver float64
	shiftUnder, shiftOver expr.Expr

	oaPoints [][]float64 // linearization points instantiated at Rebuild

	cuts      []*model.Constraint
	surrogate []*model.Constraint
	nonlinear *model.Constraint
	cutSeq    int
}

// NewAlphaBB creates the relaxation; the surrogate is built by Rebuild.
func NewAlphaBB(m *model.Model, aux *expr.Var, rhs expr.Expr, side Side) *AlphaBB {
	a := &AlphaBB{m: m, xs: rhs.Vars(), aux: aux, rhs: rhs, side: side}
	a.recomputeShifts()
	return a
}

func (a *AlphaBB) recomputeShifts() {
	a.alphaUnder = ComputeAlpha(a.xs, a.rhs)
	a.alphaOver = ComputeAlpha(a.xs, expr.Neg(a.rhs))
	q := a.boxPenalty()
	a.shiftUnder = expr.Add(a.rhs, expr.Scale(a.alphaUnder, q))
	a.shiftOver = expr.Sub(a.rhs, expr.Scale(a.alphaOver, q))
}

// boxPenalty builds q(x) = Σ (xᵢ − lbᵢ)(xᵢ − ubᵢ) with the current bounds.
func (a *AlphaBB) boxPenalty() expr.Expr {
	terms := make([]expr.Expr, len(a.xs))
	for i, x := range a.xs {
		terms[i] = expr.Mul(
			expr.Sub(x, expr.Const(x.LB)),
			expr.Sub(x, expr.Const(x.UB)),
		)
	}
	return expr.Add(terms...)
}

// RHSVars returns the variables of f.
func (a *AlphaBB) RHSVars() []*expr.Var { return a.xs }

// RHSExpr returns f.
func (a *AlphaBB) RHSExpr() expr.Expr { return a.rhs }

// AuxVar returns w.
func (a *AlphaBB) AuxVar() *expr.Var { return a.aux }

// Side returns the relaxation direction(s).
func (a *AlphaBB) Side() Side { return a.side }

// AlphaUnder returns the current under-side shift coefficient.
func (a *AlphaBB) AlphaUnder() float64 { return a.alphaUnder }

// AlphaOver returns the current over-side shift coefficient.
func (a *AlphaBB) AlphaOver() float64 { return a.alphaOver }

// IsRHSConvex reports provable convexity (αᵤ collapsed to zero).
func (a *AlphaBB) IsRHSConvex() bool { return a.alphaUnder == 0 }

// IsRHSConcave reports provable concavity (αₒ collapsed to zero).
func (a *AlphaBB) IsRHSConcave() bool { return a.alphaOver == 0 }

// Deviation measures the violation of w against f on the required side(s).
func (a *AlphaBB) Deviation() float64 {
	rhsVal := a.rhs.Eval()
	auxVal := a.aux.Value
	switch a.side {
	case Under:
		return math.Max(0, rhsVal-auxVal)
	case Over:
		return math.Max(0, auxVal-rhsVal)
	case Both:
		return math.Abs(auxVal - rhsVal)
	}
	panic(fmt.Sprintf("relax: unhandled side %v", a.side))
}

// AddPartitionPoint registers the current point as a linearization point
// for subsequent Rebuilds.
func (a *AlphaBB) AddPartitionPoint() {
	pt := make([]float64, len(a.xs))
	for i, x := range a.xs {
		pt[i] = x.Value
	}
	for _, existing := range a.oaPoints {
		if pointsClose(existing, pt) {
			return
		}
	}
	a.oaPoints = append(a.oaPoints, pt)
}

func pointsClose(p, q []float64) bool {
	for i := range p {
		if math.Abs(p[i]-q[i]) > 1e-8*math.Max(1, math.Abs(p[i])) {
			return false
		}
	}
	return true
}

// ActivePartitions returns nil: αBB relaxations are not piecewise.
func (a *AlphaBB) ActivePartitions() map[*expr.Var]PartitionInterval { return nil }

// AddCut adds a tangent cut of the shifted function at the current point.
func (a *AlphaBB) AddCut(keep, checkViolation bool, tol float64) *model.Constraint {
	var shifted expr.Expr
	var under bool
	switch {
	case a.side.HasUnder():
		shifted, under = a.shiftUnder, true
	case a.side.HasOver():
		shifted, under = a.shiftOver, false
	default:
		return nil
	}
	gv := shifted.Eval()
	if checkViolation {
		if under && a.aux.Value >= gv-tol {
			return nil
		}
		if !under && a.aux.Value <= gv+tol {
			return nil
		}
	}
	pt := make([]float64, len(a.xs))
	for i, x := range a.xs {
		pt[i] = x.Value
	}
	a.cutSeq++
	con := a.tangentAt(shifted, pt, under, fmt.Sprintf("%s_oa%d", a.aux.Name, a.cutSeq))
	a.m.AddConstraint(con)
	if keep {
		a.cuts = append(a.cuts, con)
	} else {
		a.surrogate = append(a.surrogate, con)
	}
	return con
}

// tangentAt builds w ≥ g(p) + ∇g(p)·(x−p) (under) or the ≤ mirror (over).
func (a *AlphaBB) tangentAt(shifted expr.Expr, pt []float64, under bool, name string) *model.Constraint {
	saved := make([]float64, len(a.xs))
	for i, x := range a.xs {
		saved[i] = x.Value
		x.Value = pt[i]
	}
	gv := shifted.Eval()
	grad := expr.Gradient(shifted)
	slopes := make([]float64, len(a.xs))
	for i, x := range a.xs {
		if d, ok := grad[x]; ok {
			slopes[i] = d.Eval()
		}
	}
	for i, x := range a.xs {
		x.Value = saved[i]
	}

	terms := []expr.Expr{a.aux}
	rhs := gv
	for i, x := range a.xs {
		terms = append(terms, expr.Scale(-slopes[i], x))
		rhs -= slopes[i] * pt[i]
	}
	body := expr.Add(terms...)
	if under {
		return model.AtLeast(name, body, rhs)
	}
	return model.AtMost(name, body, rhs)
}

// Rebuild reconstructs the surrogate: α and the shifted functions are
// recomputed for the current bounds, then tangents are laid down at the
// box midpoint and at every registered linearization point.
func (a *AlphaBB) Rebuild(buildNonlinear bool) {
	for _, c := range a.surrogate {
		a.m.RemoveConstraint(c)
	}
	a.surrogate = a.surrogate[:0]

	a.recomputeShifts()
	b := a.rhs.Bounds()
	a.aux.LB = math.Max(a.aux.LB, b.Lo)
	a.aux.UB = math.Min(a.aux.UB, b.Hi)

	if buildNonlinear {
		if a.nonlinear == nil {
			name := a.m.UniqueName(a.aux.Name + "_def")
			a.nonlinear = a.m.AddConstraint(model.Equality(name, expr.Sub(a.aux, a.rhs), 0))
		}
		return
	}
	if a.nonlinear != nil {
		a.m.RemoveConstraint(a.nonlinear)
		a.nonlinear = nil
	}

	pts := make([][]float64, 0, len(a.oaPoints)+1)
	mid := make([]float64, len(a.xs))
	for i, x := range a.xs {
		mid[i] = x.Bounds().Mid()
	}
	pts = append(pts, mid)
	pts = append(pts, a.oaPoints...)

	seq := 0
	add := func(shifted expr.Expr, under bool, pt []float64) {
		seq++
		con := a.tangentAt(shifted, pt, under, fmt.Sprintf("%s_abb%d", a.aux.Name, seq))
		a.m.AddConstraint(con)
		a.surrogate = append(a.surrogate, con)
	}
	for _, pt := range pts {
		if a.side.HasUnder() {
			add(a.shiftUnder, true, pt)
		}
		if a.side.HasOver() {
			add(a.shiftOver, false, pt)
		}
	}
}

func (a *AlphaBB) cloneOnto(m *model.Model, varSub map[*expr.Var]*expr.Var, conSub map[*model.Constraint]*model.Constraint) Relaxation {
	na := &AlphaBB{
		m:      m,
		aux:    varSub[a.aux],
		rhs:    expr.Replace(a.rhs, varSub),
		side:   a.side,
		cutSeq: a.cutSeq,
	}
	na.xs = make([]*expr.Var, len(a.xs))
	for i, x := range a.xs {
		na.xs[i] = varSub[x]
	}
	for _, pt := range a.oaPoints {
		na.oaPoints = append(na.oaPoints, append([]float64(nil), pt...))
	}
	for _, c := range a.cuts {
		na.cuts = append(na.cuts, conSub[c])
	}
	for _, c := range a.surrogate {
		na.surrogate = append(na.surrogate, conSub[c])
	}
	if a.nonlinear != nil {
		na.nonlinear = conSub[a.nonlinear]
	}
	na.recomputeShifts()
	return na
}
