package relax

import (
	"fmt"
	"math"
	"sort"

	"github.com/mintreelabs/mintree/expr"
	"github.com/mintreelabs/mintree/model"
)

// ErrNotUnivariate is returned when a univariate relaxation is requested
// for an expression with more than one variable.
var ErrNotUnivariate = fmt.Errorf("relax: %w", errNotUnivariate)
var errNotUnivariate = fmt.Errorf("expression is not univariate")

// ErrShapeUnproven is returned when neither convexity nor concavity of the
// term can be proven over the box; use AlphaBB for such terms.
var ErrShapeUnproven = fmt.Errorf("relax: %w", errShapeUnproven)
var errShapeUnproven = fmt.Errorf("no provable curvature over the variable box")

// Univariate is a piecewise relaxation of w = f(x) for a one-variable f
// with provable curvature over x's box. The provably-tight direction uses
// tangent cuts; the loose direction uses a secant envelope over the current
// partition, refined by AddPartitionPoint.
type Univariate struct {
	m     *model.Model
	x     *expr.Var
	aux   *expr.Var
	rhs   expr.Expr
	deriv expr.Expr
	side  Side
	shape Shape

	// interior partition points, kept sorted; endpoints come from x's bounds
	interior []float64

	cuts      []*model.Constraint // persistent OA cuts, survive Rebuild
	surrogate []*model.Constraint // current secant/tangent rows
	pwVars    []*expr.Var         // current λ and segment-binary vars
	nonlinear *model.Constraint   // exact w = f(x) row, NLP-side models
	cutSeq    int
}

// NewUnivariate creates the relaxation and classifies the term's shape.
// The surrogate is not built yet; call Rebuild.
func NewUnivariate(m *model.Model, aux *expr.Var, rhs expr.Expr, side Side) (*Univariate, error) {
	vars := rhs.Vars()
	if len(vars) != 1 {
		return nil, ErrNotUnivariate
	}
	x := vars[0]
	u := &Univariate{
		m:     m,
		x:     x,
		aux:   aux,
		rhs:   rhs,
		deriv: expr.Derivative(rhs, x),
		side:  side,
	}
	u.shape = classifyUnivariate(u.rhs, u.x)
	if u.shape == ShapeNeither {
		return nil, ErrShapeUnproven
	}
	return u, nil
}

// classifyUnivariate proves curvature from an interval bound on f''.
func classifyUnivariate(rhs expr.Expr, x *expr.Var) Shape {
	second := expr.Derivative(expr.Derivative(rhs, x), x)
	b := second.Bounds()
	switch {
	case b.Lo >= 0:
		return ShapeConvex
	case b.Hi <= 0:
		return ShapeConcave
	}
	return ShapeNeither
}

// RHSVars returns {x}.
func (u *Univariate) RHSVars() []*expr.Var { return []*expr.Var{u.x} }

// RHSExpr returns f.
func (u *Univariate) RHSExpr() expr.Expr { return u.rhs }

// AuxVar returns w.
func (u *Univariate) AuxVar() *expr.Var { return u.aux }

// Side returns the relaxation direction(s).
func (u *Univariate) Side() Side { return u.side }

// IsRHSConvex reports provable convexity over the current box.
func (u *Univariate) IsRHSConvex() bool { return u.shape == ShapeConvex }

// IsRHSConcave reports provable concavity over the current box.
func (u *Univariate) IsRHSConcave() bool { return u.shape == ShapeConcave }

// needsPW reports whether the loose direction requires a secant envelope.
func (u *Univariate) needsPW() bool {
	switch u.shape {
	case ShapeConvex:
		return u.side.HasOver()
	case ShapeConcave:
		return u.side.HasUnder()
	case ShapeNeither:
		return false
	}
	panic(fmt.Sprintf("relax: unhandled shape %v", u.shape))
}

// Deviation measures the violation of w against f on the required side(s).
func (u *Univariate) Deviation() float64 {
	rhsVal := u.rhs.Eval()
	auxVal := u.aux.Value
	switch u.side {
	case Under:
		return math.Max(0, rhsVal-auxVal)
	case Over:
		return math.Max(0, auxVal-rhsVal)
	case Both:
		return math.Abs(auxVal - rhsVal)
	}
	panic(fmt.Sprintf("relax: unhandled side %v", u.side))
}

// AddPartitionPoint queues x's current value as a new partition point.
func (u *Univariate) AddPartitionPoint() {
	v := u.x.Value
	if !u.x.Bounded() {
		return
	}
	// Skip values indistinguishable from existing breakpoints at the
	// box's scale; degenerate endpoint values fall back to the midpoint.
	tol := 1e-8 * math.Max(1, u.x.UB-u.x.LB)
	if v <= u.x.LB+tol || v >= u.x.UB-tol {
		v = 0.5 * (u.x.LB + u.x.UB)
	}
	for _, p := range u.interior {
		if math.Abs(p-v) <= tol {
			return
		}
	}
	u.interior = append(u.interior, v)
	sort.Float64s(u.interior)
}

// points returns the full sorted breakpoint list for the current bounds.
func (u *Univariate) points() []float64 {
	pts := make([]float64, 0, len(u.interior)+2)
	pts = append(pts, u.x.LB)
	for _, p := range u.interior {
		if p > u.x.LB && p < u.x.UB {
			pts = append(pts, p)
		}
	}
	pts = append(pts, u.x.UB)
	return pts
}

// ActivePartitions returns the partition segment containing x's value.
func (u *Univariate) ActivePartitions() map[*expr.Var]PartitionInterval {
	if !u.needsPW() || !u.x.Bounded() {
		return nil
	}
	pts := u.points()
	lo, hi := pts[0], pts[len(pts)-1]
	for i := 0; i+1 < len(pts); i++ {
		if u.x.Value <= pts[i+1] || i+2 == len(pts) {
			lo, hi = pts[i], pts[i+1]
			break
		}
	}
	return map[*expr.Var]PartitionInterval{u.x: {Lo: lo, Hi: hi}}
}

// AddCut adds a tangent cut at x's current value on the provably-tight
// side. Returns nil when the side admits no tangent cut or the cut is not
// violated (with checkViolation set).
func (u *Univariate) AddCut(keep, checkViolation bool, tol float64) *model.Constraint {
	cutUnder := u.shape == ShapeConvex && u.side.HasUnder()
	cutOver := u.shape == ShapeConcave && u.side.HasOver()
	if !cutUnder && !cutOver {
		return nil
	}

	xv := u.x.Value
	fv := u.rhs.Eval()
	if checkViolation {
		if cutUnder && u.aux.Value >= fv-tol {
			return nil
		}
		if cutOver && u.aux.Value <= fv+tol {
			return nil
		}
	}

	u.cutSeq++
	con := u.tangentAt(xv, fv, cutUnder, fmt.Sprintf("%s_oa%d", u.aux.Name, u.cutSeq))
	u.m.AddConstraint(con)
	if keep {
		u.cuts = append(u.cuts, con)
	} else {
		u.surrogate = append(u.surrogate, con)
	}
	return con
}

// tangentAt builds w ≥ f(p) + f'(p)(x−p) (under=true) or the ≤ mirror.
func (u *Univariate) tangentAt(p, fp float64, under bool, name string) *model.Constraint {
	slope := evalAt(u.deriv, u.x, p)
	// w - slope*x  vs  fp - slope*p
	body := expr.Sub(u.aux, expr.Scale(slope, u.x))
	rhs := fp - slope*p
	if under {
		return model.AtLeast(name, body, rhs)
	}
	return model.AtMost(name, body, rhs)
}

// Rebuild reconstructs the term's rows. Persistent cuts are left in place:
// tangents of a globally convex (or concave) f stay valid under bound
// changes.
func (u *Univariate) Rebuild(buildNonlinear bool) {
	u.clearSurrogate()
	u.shape = classifyUnivariate(u.rhs, u.x)
	u.tightenAuxBounds()

	if buildNonlinear {
		if u.nonlinear == nil {
			name := u.m.UniqueName(u.aux.Name + "_def")
			u.nonlinear = u.m.AddConstraint(model.Equality(name, expr.Sub(u.aux, u.rhs), 0))
		}
		return
	}
	if u.nonlinear != nil {
		u.m.RemoveConstraint(u.nonlinear)
		u.nonlinear = nil
	}

	pts := u.points()
	tangentUnder := u.shape == ShapeConvex && u.side.HasUnder()
	tangentOver := u.shape == ShapeConcave && u.side.HasOver()
	if tangentUnder || tangentOver {
		for i, p := range pts {
			fp := evalAt(u.rhs, u.x, p)
			name := fmt.Sprintf("%s_tan%d", u.aux.Name, i)
			con := u.tangentAt(p, fp, tangentUnder, name)
			u.m.AddConstraint(con)
			u.surrogate = append(u.surrogate, con)
		}
	}
	if u.needsPW() && u.x.Bounded() {
		u.buildSecant(pts)
	}
}

// buildSecant adds the secant envelope on the loose side. A single segment
// is one linear row; multiple segments use a convex-combination formulation
// with one binary per segment enforcing adjacency.
func (u *Univariate) buildSecant(pts []float64) {
	secantOver := u.shape == ShapeConvex // otherwise the secant bounds from below
	if len(pts) == 2 {
		p0, p1 := pts[0], pts[1]
		f0, f1 := evalAt(u.rhs, u.x, p0), evalAt(u.rhs, u.x, p1)
		slope := 0.0
		if p1 > p0 {
			slope = (f1 - f0) / (p1 - p0)
		}
		body := expr.Sub(u.aux, expr.Scale(slope, u.x))
		rhs := f0 - slope*p0
		name := u.aux.Name + "_sec"
		var con *model.Constraint
		if secantOver {
			con = model.AtMost(name, body, rhs)
		} else {
			con = model.AtLeast(name, body, rhs)
		}
		u.m.AddConstraint(con)
		u.surrogate = append(u.surrogate, con)
		return
	}

	k := len(pts) - 1 // segments
	lams := make([]*expr.Var, len(pts))
	for i := range pts {
		lams[i] = expr.NewVar(fmt.Sprintf("%s_lam%d", u.aux.Name, i), 0, 1)
		u.m.AddVar(lams[i])
		u.pwVars = append(u.pwVars, lams[i])
	}
	bins := make([]*expr.Var, k)
	for j := 0; j < k; j++ {
		bins[j] = expr.NewBinary(fmt.Sprintf("%s_seg%d", u.aux.Name, j))
		u.m.AddVar(bins[j])
		u.pwVars = append(u.pwVars, bins[j])
	}

	sumLam := make([]expr.Expr, len(lams))
	xComb := make([]expr.Expr, 0, len(lams)+1)
	fComb := make([]expr.Expr, 0, len(lams)+1)
	for i, lam := range lams {
		sumLam[i] = lam
		xComb = append(xComb, expr.Scale(pts[i], lam))
		fComb = append(fComb, expr.Scale(evalAt(u.rhs, u.x, pts[i]), lam))
	}
	sumBin := make([]expr.Expr, len(bins))
	for j, b := range bins {
		sumBin[j] = b
	}

	add := func(c *model.Constraint) {
		u.m.AddConstraint(c)
		u.surrogate = append(u.surrogate, c)
	}
	name := func(s string) string { return u.aux.Name + "_" + s }

	add(model.Equality(name("lamsum"), expr.Add(sumLam...), 1))
	add(model.Equality(name("binsum"), expr.Add(sumBin...), 1))
	add(model.Equality(name("xcomb"), expr.Sub(u.x, expr.Add(xComb...)), 0))
	envBody := expr.Sub(u.aux, expr.Add(fComb...))
	if secantOver {
		add(model.AtMost(name("env"), envBody, 0))
	} else {
		add(model.AtLeast(name("env"), envBody, 0))
	}
	// Adjacency: λ_i may be positive only if an adjacent segment is chosen.
	add(model.AtMost(name("adj0"), expr.Sub(lams[0], bins[0]), 0))
	for i := 1; i < k; i++ {
		add(model.AtMost(fmt.Sprintf("%s_adj%d", u.aux.Name, i),
			expr.Sub(lams[i], expr.Add(bins[i-1], bins[i])), 0))
	}
	add(model.AtMost(fmt.Sprintf("%s_adj%d", u.aux.Name, k), expr.Sub(lams[k], bins[k-1]), 0))
}

// clearSurrogate removes the rebuildable rows and their helper variables.
func (u *Univariate) clearSurrogate() {
	for _, c := range u.surrogate {
		u.m.RemoveConstraint(c)
	}
	u.surrogate = u.surrogate[:0]
	for _, v := range u.pwVars {
		u.m.RemoveVar(v)
	}
	u.pwVars = u.pwVars[:0]
}

// tightenAuxBounds intersects w's bounds with the interval image of f.
func (u *Univariate) tightenAuxBounds() {
	b := u.rhs.Bounds()
	u.aux.LB = math.Max(u.aux.LB, b.Lo)
	u.aux.UB = math.Min(u.aux.UB, b.Hi)
}

func (u *Univariate) cloneOnto(m *model.Model, varSub map[*expr.Var]*expr.Var, conSub map[*model.Constraint]*model.Constraint) Relaxation {
	nu := &Univariate{
		m:        m,
		x:        varSub[u.x],
		aux:      varSub[u.aux],
		rhs:      expr.Replace(u.rhs, varSub),
		side:     u.side,
		shape:    u.shape,
		interior: append([]float64(nil), u.interior...),
		cutSeq:   u.cutSeq,
	}
	nu.deriv = expr.Derivative(nu.rhs, nu.x)
	for _, c := range u.cuts {
		nu.cuts = append(nu.cuts, conSub[c])
	}
	for _, c := range u.surrogate {
		nu.surrogate = append(nu.surrogate, conSub[c])
	}
	for _, v := range u.pwVars {
		nu.pwVars = append(nu.pwVars, varSub[v])
	}
	if u.nonlinear != nil {
		nu.nonlinear = conSub[u.nonlinear]
	}
	return nu
}

// evalAt evaluates e with x temporarily set to val.
func evalAt(e expr.Expr, x *expr.Var, val float64) float64 {
	old := x.Value
	x.Value = val
	out := e.Eval()
	x.Value = old
	return out
}
