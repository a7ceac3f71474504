package tighten

import (
	"math"
	"time"

	"github.com/mintreelabs/mintree/expr"
	"github.com/mintreelabs/mintree/model"
	"github.com/mintreelabs/mintree/solve"
)

// OBBTOptions configures optimality-based bound tightening.
type OBBTOptions struct {
	// ObjectiveCutoff restricts tightening to points at least as good as
	// the given objective value (an incumbent). Nil disables the cutoff.
	ObjectiveCutoff *float64
	// TimeLimit bounds the whole pass; zero means no limit.
	TimeLimit time.Duration
}

// OBBT tightens the bounds of vars in place by minimizing and maximizing
// each of them over m's feasible set, using the supplied backend. The
// model's objective and constraint set are restored before returning on
// every path. A backend-proven infeasibility returns ErrInfeasible; other
// abnormal backend statuses simply leave the affected bound untouched.
func OBBT(backend solve.Solver, m *model.Model, vars []*expr.Var, opts *OBBTOptions) error {
	var o OBBTOptions
	if opts != nil {
		o = *opts
	}
	start := time.Now()
	deadline := func() bool {
		return o.TimeLimit > 0 && time.Since(start) >= o.TimeLimit
	}

	obj := m.Objective()
	var cutoff *model.Constraint
	if o.ObjectiveCutoff != nil && obj != nil {
		if obj.Sense == model.Minimize {
			cutoff = model.AtMost(m.UniqueName("obbt_cutoff"), obj.Expr, *o.ObjectiveCutoff)
		} else {
			cutoff = model.AtLeast(m.UniqueName("obbt_cutoff"), obj.Expr, *o.ObjectiveCutoff)
		}
		m.AddConstraint(cutoff)
	}
	defer func() {
		if cutoff != nil {
			m.RemoveConstraint(cutoff)
		}
		if obj != nil {
			m.SetObjective(obj.Expr, obj.Sense)
		}
	}()

	for _, v := range vars {
		if v.Fixed() {
			continue
		}
		for _, sense := range [2]model.Sense{model.Minimize, model.Maximize} {
			if deadline() {
				return nil
			}
			m.SetObjective(v, sense)
			if err := backend.SetInstance(m); err != nil {
				return err
			}
			if o.TimeLimit > 0 {
				backend.Config().TimeLimit = o.TimeLimit - time.Since(start)
			}
			backend.Config().LoadSolution = false
			res, err := backend.Solve()
			if err != nil {
				return err
			}
			if res.Termination == solve.Infeasible {
				return ErrInfeasible
			}
			if res.BestObjectiveBound == nil {
				continue
			}
			bound := *res.BestObjectiveBound
			if sense == model.Minimize {
				if bound > v.LB && !math.IsInf(bound, 0) {
					v.LB = bound
				}
			} else {
				if bound < v.UB && !math.IsInf(bound, 0) {
					v.UB = bound
				}
			}
		}
	}
	return nil
}

// VarsToTighten selects the variables worth tightening: unfixed,
// non-discrete variables that appear in some active constraint.
func VarsToTighten(m *model.Model) []*expr.Var {
	seen := make(map[*expr.Var]struct{})
	var out []*expr.Var
	for _, c := range m.ActiveConstraints() {
		for _, v := range c.Body.Vars() {
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			if v.Fixed() || v.Domain.IsDiscrete() {
				continue
			}
			out = append(out, v)
		}
	}
	return out
}
