package multitree

import (
	"fmt"
	"math"

	"github.com/mintreelabs/mintree/expr"
)

// tracker maintains the best-known primal (feasible) and dual (relaxation)
// objective bounds for one run, with sense-aware ±Inf sentinels for the
// "nothing known yet" states.
type tracker struct {
	maximize bool

	bestFeasible *float64
	bestBound    *float64
	incumbent    map[*expr.Var]float64
}

// primalBound returns the best feasible objective, or the sense-aware
// sentinel (+Inf for minimize, −Inf for maximize) when none is recorded.
func (t *tracker) primalBound() float64 {
	if t.bestFeasible != nil {
		return *t.bestFeasible
	}
	if t.maximize {
		return math.Inf(-1)
	}
	return math.Inf(1)
}

// dualBound returns the best objective bound, or the opposite sentinel.
func (t *tracker) dualBound() float64 {
	if t.bestBound != nil {
		return *t.bestBound
	}
	if t.maximize {
		return math.Inf(1)
	}
	return math.Inf(-1)
}

// gap returns the absolute and relative primal/dual gap. The relative gap
// is 0 for a zero absolute gap, +Inf for a zero primal bound or an
// infinite absolute gap, and abs/|primal| otherwise.
func (t *tracker) gap() (absGap, relGap float64) {
	primal := t.primalBound()
	dual := t.dualBound()
	absGap = math.Abs(primal - dual)
	switch {
	case absGap == 0:
		relGap = 0
	case primal == 0:
		relGap = math.Inf(1)
	case math.IsInf(absGap, 1):
		relGap = math.Inf(1)
	default:
		relGap = absGap / math.Abs(primal)
	}
	return absGap, relGap
}

// updateDual records bound only when it improves in the objective sense:
// larger for minimize, smaller for maximize.
func (t *tracker) updateDual(bound float64) bool {
	if t.bestBound != nil {
		if t.maximize {
			if bound >= *t.bestBound {
				return false
			}
		} else if bound <= *t.bestBound {
			return false
		}
	}
	b := bound
	t.bestBound = &b
	return true
}

// updatePrimal records obj and its point only on strict improvement.
// Feasibility of the point is the caller's responsibility.
func (t *tracker) updatePrimal(obj float64, point map[*expr.Var]float64) bool {
	if t.bestFeasible != nil {
		if t.maximize {
			if obj <= *t.bestFeasible {
				return false
			}
		} else if obj >= *t.bestFeasible {
			return false
		}
	}
	o := obj
	t.bestFeasible = &o
	t.incumbent = point
	return true
}

// admissible reports whether a relaxation solution qualifies as feasible
// for the original model: worst relaxation deviation within feasTol and
// every discrete variable within intTol of an integer.
func (t *tracker) admissible(maxViol, feasTol, intTol float64, discrete []*expr.Var) bool {
	if maxViol > feasTol {
		return false
	}
	for _, v := range discrete {
		if math.Abs(v.Value-math.Round(v.Value)) > intTol {
			return false
		}
	}
	return true
}

// assertSound panics when the primal bound is strictly better than the
// dual bound beyond tolerance. That can only come from a bug here or in a
// backend, so the run aborts loudly instead of continuing on corrupted
// bounds.
func (t *tracker) assertSound() {
	primal := t.primalBound()
	dual := t.dualBound()
	slack := 1e-6*math.Max(math.Abs(primal), math.Abs(dual)) + 1e-6
	if t.maximize {
		if primal > dual+slack {
			panic(fmt.Sprintf("multitree: primal bound %v exceeds dual bound %v", primal, dual))
		}
	} else if primal < dual-slack {
		panic(fmt.Sprintf("multitree: primal bound %v below dual bound %v", primal, dual))
	}
}
