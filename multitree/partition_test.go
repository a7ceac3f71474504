package multitree

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mintreelabs/mintree/expr"
	"github.com/mintreelabs/mintree/model"
	"github.com/mintreelabs/mintree/relax"
	"github.com/mintreelabs/mintree/solve"
	"github.com/mintreelabs/mintree/solve/bnb"
	"github.com/mintreelabs/mintree/solve/sqp"
)

// twoSquares builds min x1+x2 s.t. x1² = 1, x2² = 1 over x ∈ [-2,2]: two
// equality-relaxed univariate terms, each piecewise on its over side.
func twoSquares(t *testing.T) *Solver {
	t.Helper()
	m := model.New("two_squares")
	x1 := m.AddVar(expr.NewVar("x1", -2, 2))
	x2 := m.AddVar(expr.NewVar("x2", -2, 2))
	m.AddConstraint(model.Equality("sq1", expr.Square(x1), 1))
	m.AddConstraint(model.Equality("sq2", expr.Square(x2), 1))
	m.SetObjective(expr.Add(x1, x2), model.Minimize)

	s, err := New(bnb.New(), sqp.New(), nil)
	require.NoError(t, err, "backends are non-nil and options are defaults")
	s.start = time.Now() // Solve sets this; the harness drives phases directly
	require.NoError(t, s.construct(m), "construction of a well-formed model must succeed")
	return s
}

// partitionWidth is the width of the active segment of the term's single
// partitioned variable.
func partitionWidth(t *testing.T, r relax.Relaxation) float64 {
	t.Helper()
	parts := r.ActivePartitions()
	require.Len(t, parts, 1, "univariate piecewise term partitions exactly one variable")
	for _, seg := range parts {
		return seg.Hi - seg.Lo
	}
	return math.NaN()
}

func TestPartitionStep_RefinesOnlyTopK(t *testing.T) {
	s := twoSquares(t)
	s.opts.MaxPartitionsPerIter = 1
	require.Len(t, s.relProb.Relaxations, 2)

	// Both terms violated on the over side; the second more so.
	for i, r := range s.relProb.Relaxations {
		x := r.RHSVars()[0]
		x.Value = 1.0
		r.AuxVar().Value = 1.5 + 0.4*float64(i) // rhs = 1, deviations 0.5 and 0.9
	}
	w1Before := partitionWidth(t, s.relProb.Relaxations[0])

	s.partitionStep()

	assert.False(t, s.stopSet, "bounded domains: no configuration fault")
	assert.Equal(t, w1Before, partitionWidth(t, s.relProb.Relaxations[0]),
		"the smaller deviation must not be refined when the cap is 1")
	assert.Less(t, partitionWidth(t, s.relProb.Relaxations[1]), w1Before,
		"the largest deviation must be refined")
}

func TestPartitionStep_SatisfiedSidesAreSkipped(t *testing.T) {
	s := twoSquares(t)

	// Aux below rhs: for a convex term the under side is provably exact,
	// so the deviation is not refinable.
	for _, r := range s.relProb.Relaxations {
		x := r.RHSVars()[0]
		x.Value = 1.0
		r.AuxVar().Value = 0.2
	}
	before := []float64{
		partitionWidth(t, s.relProb.Relaxations[0]),
		partitionWidth(t, s.relProb.Relaxations[1]),
	}

	s.partitionStep()

	for i, r := range s.relProb.Relaxations {
		assert.Equal(t, before[i], partitionWidth(t, r),
			"no eligible side: nothing to refine")
	}
}

func TestPartitionStep_UnboundedVariableIsFatal(t *testing.T) {
	m := model.New("unbounded")
	x := m.AddVar(expr.NewVar("x", 0, math.Inf(1)))
	y := m.AddVar(expr.NewVar("y", 0, 10))
	m.AddConstraint(model.Equality("sq", expr.Sub(expr.Square(x), y), 0))
	m.SetObjective(y, model.Minimize)

	s, err := New(bnb.New(), sqp.New(), nil)
	require.NoError(t, err)
	s.start = time.Now()
	require.NoError(t, s.construct(m))

	s.partitionStep()

	require.True(t, s.stopSet, "an unbounded partition variable is a configuration fault")
	stop, reason := s.shouldTerminate()
	assert.True(t, stop)
	assert.Equal(t, solve.Error, reason, "the fault surfaces as an error termination")
}

// loaderlessBackend reports a feasible objective without a solution
// loader, as a minimal third-party backend might.
type loaderlessBackend struct {
	cfg  solve.Config
	ucfg solve.UpdateConfig
}

func (b *loaderlessBackend) SetInstance(*model.Model) error           { return nil }
func (b *loaderlessBackend) Update() error                            { return nil }
func (b *loaderlessBackend) AddConstraints([]*model.Constraint) error { return nil }
func (b *loaderlessBackend) Config() *solve.Config                    { return &b.cfg }
func (b *loaderlessBackend) UpdateConfig() *solve.UpdateConfig        { return &b.ucfg }
func (b *loaderlessBackend) Solve() (*solve.Result, error) {
	return &solve.Result{
		Termination:           solve.Optimal,
		BestFeasibleObjective: solve.Float(1),
		BestObjectiveBound:    solve.Float(1),
	}, nil
}

func TestAddOACuts_ToleratesBackendWithoutLoader(t *testing.T) {
	m := model.New("no_loader")
	x := m.AddVar(expr.NewVar("x", -2, 2))
	m.AddConstraint(model.Equality("sq", expr.Square(x), 1))
	m.SetObjective(x, model.Minimize)

	s, err := New(&loaderlessBackend{}, sqp.New(), nil)
	require.NoError(t, err)
	s.start = time.Now()
	require.NoError(t, s.construct(m))

	res := s.addOACuts(s.opts.FeasibilityTol, 2)
	require.NotNil(t, res)
	assert.Nil(t, res.BestFeasibleObjective,
		"a point without a loader cannot be carried out of the loop")
}

func TestModelScope_RestoresBoundsFixingActivation(t *testing.T) {
	m := model.New("scope")
	x := m.AddVar(expr.NewVar("x", -1, 1))
	b := m.AddVar(expr.NewBinary("b"))
	c := m.AddConstraint(model.AtMost("row", expr.Add(x, b), 1))

	g := snapshotModel(m)
	x.LB, x.UB = 0.25, 0.25
	b.Fix(1)
	c.Deactivate()
	g.restore()

	assert.Equal(t, -1.0, x.LB, "lower bound restored")
	assert.Equal(t, 1.0, x.UB, "upper bound restored")
	assert.False(t, b.Fixed(), "fixing restored")
	assert.True(t, c.Active(), "constraint activation restored")
}

func TestPushPopIntegers(t *testing.T) {
	b := expr.NewBinary("b")
	n := expr.NewInteger("n", 0, 10)
	x := expr.NewVar("x", 0, 1)

	saved := pushIntegers([]*expr.Var{b, n, x})
	assert.Equal(t, expr.Continuous, b.Domain)
	assert.Equal(t, expr.Continuous, n.Domain)
	assert.Len(t, saved, 2, "continuous variables are untouched")

	popIntegers(saved)
	assert.Equal(t, expr.Binary, b.Domain)
	assert.Equal(t, expr.Integer, n.Domain)
}
