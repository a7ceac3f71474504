package relax

import (
	"fmt"
	"math"

	"github.com/mintreelabs/mintree/expr"
	"github.com/mintreelabs/mintree/model"
	"github.com/mintreelabs/mintree/tighten"
)

// ErrNoObjective is returned by Build for a model without an objective.
var ErrNoObjective = fmt.Errorf("relax: %w", errNoObjective)
var errNoObjective = fmt.Errorf("model has no objective")

// Problem is a model together with the relaxation objects attached to it.
type Problem struct {
	Model       *model.Model
	Relaxations []Relaxation
}

// RebuildAll rebuilds every relaxation term.
func (p *Problem) RebuildAll(buildNonlinear bool) {
	for _, r := range p.Relaxations {
		r.Rebuild(buildNonlinear)
	}
}

// Clone deep-copies the problem; the returned VarMap maps clone variables
// to source variables.
func (p *Problem) Clone(name string) (*Problem, model.VarMap) {
	mClone, back := p.Model.Clone(name)

	varSub := make(map[*expr.Var]*expr.Var, len(back))
	for cv, sv := range back {
		varSub[sv] = cv
	}
	srcCons := p.Model.Constraints()
	dstCons := mClone.Constraints()
	conSub := make(map[*model.Constraint]*model.Constraint, len(srcCons))
	for i, sc := range srcCons {
		conSub[sc] = dstCons[i]
	}

	clone := &Problem{Model: mClone}
	for _, r := range p.Relaxations {
		clone.Relaxations = append(clone.Relaxations, r.cloneOnto(mClone, varSub, conSub))
	}
	return clone, back
}

// BuildOptions configures automatic relaxation construction.
type BuildOptions struct {
	// FBBT runs feasibility-based bound tightening on the relaxed model
	// after construction, deactivating satisfied constraints.
	FBBT bool
	// FBBTMaxPasses bounds the tightening sweeps; 0 means 2.
	FBBTMaxPasses int
	// FeasibilityTol is the tolerance FBBT uses; 0 means 1e-6.
	FeasibilityTol float64
}

// Build clones src and replaces every nonlinear constraint body and
// nonlinear objective with an auxiliary variable tied to the original
// expression by a relaxation object. The relaxation side follows the
// constraint sense: ≤ rows need the under side, ≥ rows the over side,
// equalities and ranges need both; a minimized objective needs under, a
// maximized one over.
//
// The returned VarMap maps relaxed-model variables to src variables
// (auxiliary variables have no image). Relaxation terms are created but
// not yet built; call RebuildAll on the result.
func Build(src *model.Model, opts *BuildOptions) (*Problem, model.VarMap, error) {
	if src.Objective() == nil {
		return nil, nil, ErrNoObjective
	}
	var o BuildOptions
	if opts != nil {
		o = *opts
	}

	m, back := src.Clone(src.Name + "_relaxed")
	p := &Problem{Model: m}

	for _, c := range m.Constraints() {
		if _, _, linear := expr.Linear(c.Body); linear {
			continue
		}
		side := constraintSide(c)
		r, aux := newTerm(m, c.Body, side, "w_"+c.Name)
		c.Body = aux
		p.Relaxations = append(p.Relaxations, r)
	}

	obj := m.Objective()
	if _, _, linear := expr.Linear(obj.Expr); !linear {
		side := Under
		if obj.Sense == model.Maximize {
			side = Over
		}
		r, aux := newTerm(m, obj.Expr, side, "w_obj")
		m.SetObjective(aux, obj.Sense)
		p.Relaxations = append(p.Relaxations, r)
	}

	if o.FBBT {
		passes := o.FBBTMaxPasses
		if passes == 0 {
			passes = 2
		}
		tol := o.FeasibilityTol
		if tol == 0 {
			tol = 1e-6
		}
		err := tighten.FBBT(m, &tighten.FBBTOptions{
			MaxPasses:                      passes,
			FeasibilityTol:                 tol,
			DeactivateSatisfiedConstraints: true,
		})
		if err != nil {
			return nil, nil, err
		}
	}

	return p, back, nil
}

// constraintSide derives the required relaxation side from the row sense.
func constraintSide(c *model.Constraint) Side {
	hasLB := !math.IsInf(c.LB, -1)
	hasUB := !math.IsInf(c.UB, 1)
	switch {
	case hasLB && hasUB:
		return Both
	case hasUB:
		return Under
	default:
		return Over
	}
}

// newTerm allocates the auxiliary variable and the relaxation object for
// one nonlinear expression: a piecewise univariate term when the shape is
// provable, αBB otherwise.
func newTerm(m *model.Model, body expr.Expr, side Side, name string) (Relaxation, *expr.Var) {
	b := body.Bounds()
	aux := expr.NewVar(m.UniqueName(name), b.Lo, b.Hi)
	m.AddVar(aux)
	if len(body.Vars()) == 1 {
		if u, err := NewUnivariate(m, aux, body, side); err == nil {
			return u, aux
		}
	}
	return NewAlphaBB(m, aux, body, side), aux
}
