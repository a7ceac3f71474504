package relax_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mintreelabs/mintree/expr"
	"github.com/mintreelabs/mintree/model"
	"github.com/mintreelabs/mintree/relax"
	"github.com/mintreelabs/mintree/tighten"
)

func TestBuild_ReplacesNonlinearBodies(t *testing.T) {
	m := model.New("orig")
	x := m.AddVar(expr.NewVar("x", -1, 1))
	y := m.AddVar(expr.NewVar("y", 0, 5))
	m.AddConstraint(model.AtMost("nl", expr.Sub(expr.Square(x), y), 0))
	m.AddConstraint(model.AtLeast("lin", expr.Add(x, y), 0.5))
	m.SetObjective(expr.Add(y, expr.Exp(x)), model.Minimize)

	p, back, err := relax.Build(m, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, len(p.Relaxations),
		"one term for the nonlinear row, one for the nonlinear objective")
	for _, c := range p.Model.Constraints() {
		_, _, linear := expr.Linear(c.Body)
		assert.True(t, linear, "every remaining body must be affine, got %q", c.Name)
	}
	_, _, linear := expr.Linear(p.Model.Objective().Expr)
	assert.True(t, linear, "the objective is replaced by its auxiliary variable")

	// The original model is untouched.
	assert.Equal(t, 2, len(m.Vars()))
	_, _, origLinear := expr.Linear(m.Constraints()[0].Body)
	assert.False(t, origLinear)

	// Every clone variable with an image maps onto an original variable.
	imgs := map[*expr.Var]bool{x: true, y: true}
	n := 0
	for _, orig := range back {
		assert.True(t, imgs[orig], "correspondence must target the source model")
		n++
	}
	assert.Equal(t, 2, n, "auxiliary variables have no image")

	// Sides follow the row sense / objective sense.
	assert.Equal(t, relax.Under, p.Relaxations[0].Side(), "≤-row needs the under side")
	assert.Equal(t, relax.Under, p.Relaxations[1].Side(), "minimized objective needs the under side")
}

func TestBuild_RequiresObjective(t *testing.T) {
	m := model.New("no_obj")
	m.AddVar(expr.NewVar("x", 0, 1))
	_, _, err := relax.Build(m, nil)
	assert.ErrorIs(t, err, relax.ErrNoObjective)
}

func TestProblem_CloneKeepsTermCorrespondence(t *testing.T) {
	m := model.New("orig")
	x := m.AddVar(expr.NewVar("x", -2, 2))
	m.AddConstraint(model.Equality("sq", expr.Square(x), 1))
	m.SetObjective(x, model.Minimize)

	p, _, err := relax.Build(m, nil)
	require.NoError(t, err)
	p.RebuildAll(false)

	clone, back := p.Clone("copy")
	require.Equal(t, len(p.Relaxations), len(clone.Relaxations))

	src := p.Relaxations[0]
	dst := clone.Relaxations[0]
	assert.NotSame(t, src.AuxVar(), dst.AuxVar(), "clone owns fresh variables")
	assert.Same(t, src.AuxVar(), back[dst.AuxVar()], "aux correspondence preserved")
	assert.Same(t, src.RHSVars()[0], back[dst.RHSVars()[0]], "rhs correspondence preserved")
	assert.Equal(t, src.Side(), dst.Side())

	// Values move independently after the split.
	dst.RHSVars()[0].Value = 1.5
	dst.AuxVar().Value = 9
	assert.Equal(t, 2.25, dst.RHSExpr().Eval())
	assert.NotEqual(t, 9.0, src.AuxVar().Value)
}

func TestRebuildAll_LinearPassDropsNonlinearDefRows(t *testing.T) {
	m := model.New("orig")
	x := m.AddVar(expr.NewVar("x", -2, 2))
	y := m.AddVar(expr.NewVar("y", -1, 1))
	m.AddConstraint(model.Equality("sq", expr.Square(x), 1))
	m.AddConstraint(model.AtMost("bil", expr.Sub(expr.Mul(x, y), y), 0))
	m.SetObjective(expr.Add(x, y), model.Minimize)

	p, _, err := relax.Build(m, nil)
	require.NoError(t, err)
	p.RebuildAll(true)

	nonlinearRows := 0
	for _, c := range p.Model.Constraints() {
		if _, _, linear := expr.Linear(c.Body); !linear {
			nonlinearRows++
		}
	}
	require.Equal(t, 2, nonlinearRows, "the nonlinear pass adds one w = f(x) row per term")

	// A clone inherits the exact rows; the linear pass must replace them
	// with affine surrogates so a MIP backend can extract the model.
	clone, _ := p.Clone("mip")
	clone.RebuildAll(false)
	for _, c := range clone.Model.Constraints() {
		_, _, linear := expr.Linear(c.Body)
		assert.True(t, linear, "row %q must be affine after the linear rebuild", c.Name)
	}

	// Flipping the same problem back and forth keeps a single def row.
	p.RebuildAll(false)
	for _, c := range p.Model.Constraints() {
		_, _, linear := expr.Linear(c.Body)
		assert.True(t, linear, "row %q must be affine after switching to the linear form", c.Name)
	}
	p.RebuildAll(true)
	nonlinearRows = 0
	for _, c := range p.Model.Constraints() {
		if _, _, linear := expr.Linear(c.Body); !linear {
			nonlinearRows++
		}
	}
	assert.Equal(t, 2, nonlinearRows, "one def row per term, not one per rebuild")
}

func TestBuild_FBBTDetectsEmptyBox(t *testing.T) {
	m := model.New("empty")
	x := m.AddVar(expr.NewVar("x", 0, 1))
	m.AddConstraint(model.AtLeast("impossible", expr.Square(x), 2))
	m.SetObjective(x, model.Minimize)

	_, _, err := relax.Build(m, &relax.BuildOptions{FBBT: true})
	assert.ErrorIs(t, err, tighten.ErrInfeasible,
		"the aux image of x² on [0,1] cannot reach 2")
}
