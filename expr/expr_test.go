package expr_test

import (
	"math"
	"testing"

	"github.com/mintreelabs/mintree/expr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestEvalAndBounds_Polynomial checks point and interval evaluation of
// x^2 + 2xy - 3 over a box.
func TestEvalAndBounds_Polynomial(t *testing.T) {
	x := expr.NewVar("x", -1, 1)
	y := expr.NewVar("y", 0, 2)
	e := expr.Add(expr.Square(x), expr.Scale(2, expr.Mul(x, y)), expr.Const(-3))

	x.Value, y.Value = 0.5, 1.0
	assert.InDelta(t, 0.25+1.0-3.0, e.Eval(), 1e-12)

	b := e.Bounds()
	// x^2 in [0,1], 2xy in [-4,4], so e in [-7, 2].
	assert.Equal(t, -7.0, b.Lo)
	assert.Equal(t, 2.0, b.Hi)
}

// TestGradient_ReverseMode verifies symbolic partials of x^2*y + exp(y).
func TestGradient_ReverseMode(t *testing.T) {
	x := expr.NewVar("x", 0, 1)
	y := expr.NewVar("y", 0, 1)
	e := expr.Add(expr.Mul(expr.Square(x), y), expr.Exp(y))

	g := expr.Gradient(e)
	require.Contains(t, g, x, "∂e/∂x must be present")
	require.Contains(t, g, y, "∂e/∂y must be present")

	x.Value, y.Value = 3, 2
	assert.InDelta(t, 2*3*2, g[x].Eval(), 1e-12, "∂e/∂x = 2xy")
	assert.InDelta(t, 9+math.Exp(2), g[y].Eval(), 1e-12, "∂e/∂y = x^2 + e^y")
}

// TestGradient_SecondOrder differentiates twice to get Hessian entries.
func TestGradient_SecondOrder(t *testing.T) {
	x := expr.NewVar("x", -1, 1)
	y := expr.NewVar("y", -1, 1)
	e := expr.Mul(expr.Square(x), y) // f = x^2 y

	dx := expr.Derivative(e, x) // 2xy
	dxx := expr.Derivative(dx, x)
	dxy := expr.Derivative(dx, y)

	x.Value, y.Value = 2, 5
	assert.InDelta(t, 10, dxx.Eval(), 1e-12, "f_xx = 2y")
	assert.InDelta(t, 4, dxy.Eval(), 1e-12, "f_xy = 2x")

	// f has no dependence on z at all.
	z := expr.NewVar("z", 0, 1)
	assert.Equal(t, expr.Const(0), expr.Derivative(e, z))
}

// TestLinear_Extraction covers affine recognition and rejection.
func TestLinear_Extraction(t *testing.T) {
	x := expr.NewVar("x", 0, 1)
	y := expr.NewVar("y", 0, 1)

	coef, off, ok := expr.Linear(expr.Add(expr.Scale(3, x), expr.Neg(y), expr.Const(7)))
	require.True(t, ok)
	assert.Equal(t, 3.0, coef[x])
	assert.Equal(t, -1.0, coef[y])
	assert.Equal(t, 7.0, off)

	_, _, ok = expr.Linear(expr.Mul(x, y))
	assert.False(t, ok, "bilinear term is not affine")

	_, _, ok = expr.Linear(expr.Exp(x))
	assert.False(t, ok, "exp is not affine")
}

// TestReplace_SwapsVariables ensures Replace rewires a tree onto new vars.
func TestReplace_SwapsVariables(t *testing.T) {
	x := expr.NewVar("x", 0, 2)
	e := expr.Add(expr.Square(x), expr.Const(1))

	x2 := expr.NewVar("x2", 0, 2)
	e2 := expr.Replace(e, map[*expr.Var]*expr.Var{x: x2})

	x.Value, x2.Value = 1, 3
	assert.InDelta(t, 2, e.Eval(), 1e-12, "original tree still reads x")
	assert.InDelta(t, 10, e2.Eval(), 1e-12, "replaced tree reads x2")
}

// TestFixedVarBounds: fixing collapses the box used by Bounds.
func TestFixedVarBounds(t *testing.T) {
	x := expr.NewVar("x", -5, 5)
	e := expr.Square(x)
	assert.Equal(t, 25.0, e.Bounds().Hi)

	x.Fix(2)
	b := e.Bounds()
	assert.Equal(t, 4.0, b.Lo)
	assert.Equal(t, 4.0, b.Hi)
	x.Unfix()
	assert.Equal(t, 25.0, e.Bounds().Hi)
}
