package multitree

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mintreelabs/mintree/expr"
	"github.com/mintreelabs/mintree/solve"
)

func TestTracker_GapCases(t *testing.T) {
	tr := tracker{}

	// No bounds known yet: sentinel gap in both measures.
	absGap, relGap := tr.gap()
	assert.True(t, math.IsInf(absGap, 1), "no bounds: absolute gap must be +Inf")
	assert.True(t, math.IsInf(relGap, 1), "no bounds: relative gap must be +Inf")

	// Closed gap.
	tr.bestFeasible = solve.Float(5)
	tr.bestBound = solve.Float(5)
	absGap, relGap = tr.gap()
	assert.Equal(t, 0.0, absGap, "equal bounds: absolute gap 0")
	assert.Equal(t, 0.0, relGap, "equal bounds: relative gap 0")

	// Zero primal bound: relative gap undefined, reported as +Inf.
	tr.bestFeasible = solve.Float(0)
	tr.bestBound = solve.Float(3)
	absGap, relGap = tr.gap()
	assert.Equal(t, 3.0, absGap, "abs gap is |primal-dual|")
	assert.True(t, math.IsInf(relGap, 1), "zero primal bound: relative gap +Inf")
}

func TestTracker_SentinelsAreSenseAware(t *testing.T) {
	minTr := tracker{}
	assert.True(t, math.IsInf(minTr.primalBound(), 1), "minimize: primal sentinel +Inf")
	assert.True(t, math.IsInf(minTr.dualBound(), -1), "minimize: dual sentinel -Inf")

	maxTr := tracker{maximize: true}
	assert.True(t, math.IsInf(maxTr.primalBound(), -1), "maximize: primal sentinel -Inf")
	assert.True(t, math.IsInf(maxTr.dualBound(), 1), "maximize: dual sentinel +Inf")
}

func TestTracker_DualUpdateIsMonotone(t *testing.T) {
	tr := tracker{}
	require.True(t, tr.updateDual(10), "first bound is always accepted")

	assert.False(t, tr.updateDual(8), "minimize: a smaller dual bound is a regression")
	assert.Equal(t, 10.0, tr.dualBound(), "rejected candidate must not change the bound")

	assert.True(t, tr.updateDual(11), "minimize: a larger dual bound improves")
	assert.Equal(t, 11.0, tr.dualBound())

	trMax := tracker{maximize: true}
	require.True(t, trMax.updateDual(10))
	assert.False(t, trMax.updateDual(12), "maximize: a larger dual bound is a regression")
	assert.True(t, trMax.updateDual(7), "maximize: a smaller dual bound improves")
}

func TestTracker_PrimalUpdateRequiresStrictImprovement(t *testing.T) {
	tr := tracker{}
	require.True(t, tr.updatePrimal(5, nil))
	assert.False(t, tr.updatePrimal(5, nil), "equal objective is not an improvement")
	assert.False(t, tr.updatePrimal(6, nil), "worse objective is rejected")
	assert.True(t, tr.updatePrimal(4, nil))
	assert.Equal(t, 4.0, tr.primalBound())
}

func TestTracker_AdmissibleRejectsFractionalDiscretes(t *testing.T) {
	b := expr.NewBinary("b")
	b.Value = 1.4

	tr := tracker{}
	assert.False(t, tr.admissible(0, 1e-6, 1e-6, []*expr.Var{b}),
		"a discrete value 0.4 away from an integer must disqualify the point")

	b.Value = 1.0 + 1e-9
	assert.True(t, tr.admissible(0, 1e-6, 1e-6, []*expr.Var{b}),
		"a near-integer value within tolerance is fine")

	assert.False(t, tr.admissible(1e-3, 1e-6, 1e-6, nil),
		"a relaxation deviation beyond tolerance must disqualify the point")
}

func TestTracker_SoundnessInvariantPanics(t *testing.T) {
	tr := tracker{}
	tr.bestFeasible = solve.Float(1)
	tr.bestBound = solve.Float(2)
	assert.Panics(t, func() { tr.assertSound() },
		"minimize: primal 1 below dual 2 is an internal fault")

	tr.bestBound = solve.Float(1 + 1e-8)
	assert.NotPanics(t, func() { tr.assertSound() },
		"violations within tolerance are numerical noise, not faults")

	trMax := tracker{maximize: true}
	trMax.bestFeasible = solve.Float(2)
	trMax.bestBound = solve.Float(1)
	assert.Panics(t, func() { trMax.assertSound() },
		"maximize: primal above dual is the mirrored fault")
}
