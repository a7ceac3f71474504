package multitree_test

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mintreelabs/mintree/expr"
	"github.com/mintreelabs/mintree/model"
	"github.com/mintreelabs/mintree/multitree"
	"github.com/mintreelabs/mintree/solve"
	"github.com/mintreelabs/mintree/solve/bnb"
	"github.com/mintreelabs/mintree/solve/sqp"
)

func TestNew_Validation(t *testing.T) {
	_, err := multitree.New(nil, sqp.New(), nil)
	assert.ErrorIs(t, err, multitree.ErrNilBackend, "nil MIP backend must be rejected")

	_, err = multitree.New(bnb.New(), nil, nil)
	assert.ErrorIs(t, err, multitree.ErrNilBackend, "nil NLP backend must be rejected")

	opts := multitree.DefaultOptions()
	opts.FeasibilityTol = 0
	_, err = multitree.New(bnb.New(), sqp.New(), &opts)
	assert.ErrorIs(t, err, multitree.ErrBadTolerance)

	opts = multitree.DefaultOptions()
	opts.MaxPartitionsPerIter = 0
	_, err = multitree.New(bnb.New(), sqp.New(), &opts)
	assert.ErrorIs(t, err, multitree.ErrBadLimit)

	opts = multitree.DefaultOptions()
	opts.TimeLimit = -time.Second
	_, err = multitree.New(bnb.New(), sqp.New(), &opts)
	assert.ErrorIs(t, err, multitree.ErrBadLimit)
}

// TestSolve_ConvexMINLP drives the full algorithm on
//
//	min  y + b
//	s.t. x² − y ≤ 0
//	     x + 2b ≥ 2
//	     x ∈ [−2,2], y ∈ [0,4], b ∈ {0,1}
//
// whose optimum is 1 at (x,y,b) = (0,0,1): choosing b=0 forces x ≥ 2 and
// hence y ≥ 4.
func TestSolve_ConvexMINLP(t *testing.T) {
	m := model.New("convex_minlp")
	x := m.AddVar(expr.NewVar("x", -2, 2))
	y := m.AddVar(expr.NewVar("y", 0, 4))
	b := m.AddVar(expr.NewBinary("b"))
	m.AddConstraint(model.AtMost("conv", expr.Sub(expr.Square(x), y), 0))
	m.AddConstraint(model.AtLeast("link", expr.Add(x, expr.Scale(2, b)), 2))
	m.SetObjective(expr.Add(y, b), model.Minimize)

	opts := multitree.DefaultOptions()
	opts.TimeLimit = 30 * time.Second
	s, err := multitree.New(bnb.New(), sqp.New(), &opts)
	require.NoError(t, err)

	res, err := s.Solve(m)
	require.NoError(t, err, "a well-posed bounded model must solve cleanly")
	require.NotNil(t, res)
	assert.Equal(t, solve.Optimal, res.Termination, "the gap must close within budget")

	require.NotNil(t, res.BestFeasibleObjective, "a feasible point exists")
	require.NotNil(t, res.BestObjectiveBound, "the relaxation yields a bound")
	assert.InDelta(t, 1.0, *res.BestFeasibleObjective, 1e-2, "known optimum")
	assert.LessOrEqual(t, *res.BestObjectiveBound, *res.BestFeasibleObjective+1e-6,
		"dual bound must not exceed the primal bound")

	// The loader speaks in the caller's variables and the incumbent must
	// satisfy the original constraints.
	require.NotNil(t, res.Loader)
	primals := res.Loader.Primals(nil)
	for v, val := range primals {
		v.Value = val
	}
	for _, c := range m.Constraints() {
		assert.LessOrEqual(t, c.Violation(), 1e-6,
			"incumbent violates %q", c.Name)
	}
	assert.InDelta(t, 1.0, math.Round(primals[b]), 1e-9, "binary settles at 1")
	assert.InDelta(t, 0.0, primals[x], 1e-2)
	assert.InDelta(t, 0.0, primals[y], 1e-2)
}

// TestSolve_LinearModel exercises the degenerate case with no nonlinear
// terms: the cut loop reaches its fixed point immediately and the MIP
// solve alone closes the gap.
func TestSolve_LinearModel(t *testing.T) {
	m := model.New("milp")
	x := m.AddVar(expr.NewVar("x", 0, 10))
	n := m.AddVar(expr.NewInteger("n", 0, 5))
	m.AddConstraint(model.AtLeast("lower", expr.Add(x, n), 3.5))
	m.SetObjective(expr.Add(x, expr.Scale(2, n)), model.Minimize)

	s, err := multitree.New(bnb.New(), sqp.New(), nil)
	require.NoError(t, err)

	res, err := s.Solve(m)
	require.NoError(t, err)
	assert.Equal(t, solve.Optimal, res.Termination)
	require.NotNil(t, res.BestFeasibleObjective)
	assert.InDelta(t, 3.5, *res.BestFeasibleObjective, 1e-6,
		"x=3.5, n=0 is optimal")
}

func TestSolve_InfeasibleByPropagation(t *testing.T) {
	m := model.New("infeasible")
	x := m.AddVar(expr.NewVar("x", 0, 1))
	m.AddConstraint(model.AtLeast("impossible", expr.Square(x), 2))
	m.SetObjective(x, model.Minimize)

	s, err := multitree.New(bnb.New(), sqp.New(), nil)
	require.NoError(t, err)

	res, err := s.Solve(m)
	require.NoError(t, err, "proven infeasibility is an outcome, not a failure")
	assert.Equal(t, solve.Infeasible, res.Termination)
	assert.Nil(t, res.BestFeasibleObjective)
}

func TestSolve_LoadWithoutSolutionIsReported(t *testing.T) {
	m := model.New("budgetless")
	x := m.AddVar(expr.NewVar("x", -1, 1))
	y := m.AddVar(expr.NewVar("y", 0, 1))
	m.AddConstraint(model.AtMost("conv", expr.Sub(expr.Square(x), y), 0))
	m.SetObjective(y, model.Minimize)

	opts := multitree.DefaultOptions()
	opts.MaxIter = 0 // terminate before any solve can find a point
	opts.LoadSolution = true
	s, err := multitree.New(bnb.New(), sqp.New(), &opts)
	require.NoError(t, err)

	res, err := s.Solve(m)
	assert.ErrorIs(t, err, multitree.ErrNoFeasibleSolution,
		"loading with no feasible solution must fail loudly")
	require.NotNil(t, res, "partial results stay retrievable alongside the error")
	assert.Equal(t, solve.IterationLimit, res.Termination)
}
