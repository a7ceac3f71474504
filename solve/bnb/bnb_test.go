package bnb_test

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mintreelabs/mintree/expr"
	"github.com/mintreelabs/mintree/model"
	"github.com/mintreelabs/mintree/solve"
	"github.com/mintreelabs/mintree/solve/bnb"
)

// namedPrimals flattens a loader into name→value for cmp diffs.
func namedPrimals(loader solve.SolutionLoader) map[string]float64 {
	out := make(map[string]float64)
	for v, val := range loader.Primals(nil) {
		out[v.Name] = val
	}
	return out
}

func TestSolve_SmallMILP(t *testing.T) {
	m := model.New("milp")
	x := m.AddVar(expr.NewVar("x", 0, 10))
	n := m.AddVar(expr.NewInteger("n", 0, 5))
	m.AddConstraint(model.AtMost("cap", expr.Add(x, n), 3.5))
	m.SetObjective(expr.Neg(expr.Add(x, expr.Scale(2, n))), model.Minimize)

	s := bnb.New()
	require.NoError(t, s.SetInstance(m))
	res, err := s.Solve()
	require.NoError(t, err)

	assert.Equal(t, solve.Optimal, res.Termination)
	require.NotNil(t, res.BestFeasibleObjective)
	assert.InDelta(t, -6.5, *res.BestFeasibleObjective, 1e-9,
		"n=3, x=0.5 maximizes x+2n under x+n ≤ 3.5")
	require.NotNil(t, res.BestObjectiveBound)
	assert.InDelta(t, -6.5, *res.BestObjectiveBound, 1e-9, "proved optimal: bound meets objective")

	want := map[string]float64{"x": 0.5, "n": 3}
	if diff := cmp.Diff(want, namedPrimals(res.Loader), cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("solution mismatch (-want +got):\n%s", diff)
	}
}

func TestSolve_MaximizeSense(t *testing.T) {
	m := model.New("max")
	x := m.AddVar(expr.NewVar("x", 0, 4))
	y := m.AddVar(expr.NewVar("y", 0, 4))
	m.AddConstraint(model.AtMost("cap", expr.Add(x, y), 5))
	m.SetObjective(expr.Add(expr.Scale(3, x), y), model.Maximize)

	s := bnb.New()
	require.NoError(t, s.SetInstance(m))
	res, err := s.Solve()
	require.NoError(t, err)

	assert.Equal(t, solve.Optimal, res.Termination)
	assert.InDelta(t, 13.0, *res.BestFeasibleObjective, 1e-9, "x=4, y=1")
	assert.InDelta(t, 13.0, *res.BestObjectiveBound, 1e-9)
}

func TestSolve_Infeasible(t *testing.T) {
	m := model.New("infeasible")
	x := m.AddVar(expr.NewVar("x", 0, 1))
	m.AddConstraint(model.AtLeast("impossible", x, 2))
	m.SetObjective(x, model.Minimize)

	s := bnb.New()
	require.NoError(t, s.SetInstance(m))
	res, err := s.Solve()
	require.NoError(t, err)
	assert.Equal(t, solve.Infeasible, res.Termination)
	assert.Nil(t, res.BestFeasibleObjective)
}

func TestSolve_RejectsUnboundedBelowVariables(t *testing.T) {
	m := model.New("unbounded")
	x := m.AddVar(expr.NewVar("x", math.Inf(-1), 5))
	m.SetObjective(x, model.Minimize)

	s := bnb.New()
	require.NoError(t, s.SetInstance(m))
	_, err := s.Solve()
	assert.ErrorIs(t, err, bnb.ErrUnboundedVar,
		"the shifted-space simplex needs finite lower bounds")
}

func TestSetInstance_RejectsNonlinearRows(t *testing.T) {
	m := model.New("nonlinear")
	x := m.AddVar(expr.NewVar("x", 0, 1))
	m.AddConstraint(model.AtMost("sq", expr.Square(x), 1))
	m.SetObjective(x, model.Minimize)

	err := bnb.New().SetInstance(m)
	assert.ErrorIs(t, err, bnb.ErrNotLinear)
}

func TestSolve_LoadSolutionWithNoSolutionFails(t *testing.T) {
	m := model.New("infeasible")
	x := m.AddVar(expr.NewVar("x", 0, 1))
	m.AddConstraint(model.AtLeast("impossible", x, 2))
	m.SetObjective(x, model.Minimize)

	s := bnb.New()
	s.Config().LoadSolution = true
	require.NoError(t, s.SetInstance(m))
	_, err := s.Solve()
	assert.ErrorIs(t, err, solve.ErrNoSolution)
}

func TestSolve_FixedVariablesArePinned(t *testing.T) {
	m := model.New("fixed")
	x := m.AddVar(expr.NewVar("x", 0, 10))
	n := m.AddVar(expr.NewInteger("n", 0, 5))
	n.Fix(2)
	m.AddConstraint(model.AtMost("cap", expr.Add(x, n), 6))
	m.SetObjective(expr.Neg(expr.Add(x, n)), model.Minimize)

	s := bnb.New()
	require.NoError(t, s.SetInstance(m))
	res, err := s.Solve()
	require.NoError(t, err)

	primals := res.Loader.Primals([]*expr.Var{x, n})
	assert.InDelta(t, 2.0, primals[n], 1e-9, "fixed value is honored, not branched")
	assert.InDelta(t, 4.0, primals[x], 1e-9)
}

func TestAddConstraints_IncrementalRows(t *testing.T) {
	m := model.New("incremental")
	x := m.AddVar(expr.NewVar("x", 0, 10))
	m.SetObjective(expr.Neg(x), model.Minimize)

	s := bnb.New()
	require.NoError(t, s.SetInstance(m))
	res, err := s.Solve()
	require.NoError(t, err)
	assert.InDelta(t, -10.0, *res.BestFeasibleObjective, 1e-9, "only the box binds at first")

	// Inject a cut the way the OA loop does: added to the model, pushed to
	// the backend, with resynchronization disabled.
	cut := m.AddConstraint(model.AtMost("cut", x, 7))
	*s.UpdateConfig() = solve.UpdateConfig{TreatFixedVarsAsParams: true}
	require.NoError(t, s.AddConstraints([]*model.Constraint{cut}))

	res, err = s.Solve()
	require.NoError(t, err)
	assert.InDelta(t, -7.0, *res.BestFeasibleObjective, 1e-9, "the new row binds")
}

func TestSolve_SolveBeforeSetInstance(t *testing.T) {
	_, err := bnb.New().Solve()
	assert.ErrorIs(t, err, solve.ErrNoInstance)
}
