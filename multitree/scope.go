package multitree

import (
	"github.com/mintreelabs/mintree/expr"
	"github.com/mintreelabs/mintree/model"
)

// modelScope snapshots every variable's bounds and fixed flag and every
// constraint's activation so a phase can mutate the model freely and
// restore it on any exit path.
type modelScope struct {
	vars   []*expr.Var
	lbs    []float64
	ubs    []float64
	fixed  []bool
	cons   []*model.Constraint
	active []bool
}

func snapshotModel(m *model.Model) *modelScope {
	g := &modelScope{vars: m.Vars(), cons: m.Constraints()}
	g.lbs = make([]float64, len(g.vars))
	g.ubs = make([]float64, len(g.vars))
	g.fixed = make([]bool, len(g.vars))
	for i, v := range g.vars {
		g.lbs[i], g.ubs[i], g.fixed[i] = v.LB, v.UB, v.Fixed()
	}
	g.active = make([]bool, len(g.cons))
	for i, c := range g.cons {
		g.active[i] = c.Active()
	}
	return g
}

// restore puts bounds, fixing, and constraint activation back exactly as
// snapshotted. Variable values are deliberately left alone.
func (g *modelScope) restore() {
	for i, v := range g.vars {
		v.LB, v.UB = g.lbs[i], g.ubs[i]
		if g.fixed[i] {
			v.Fix(v.Value)
		} else {
			v.Unfix()
		}
	}
	for i, c := range g.cons {
		if g.active[i] {
			c.Activate()
		} else {
			c.Deactivate()
		}
	}
}

// pushIntegers relaxes every unfixed discrete variable to continuous and
// returns the set needed to undo it with popIntegers.
func pushIntegers(vars []*expr.Var) map[*expr.Var]expr.Domain {
	saved := make(map[*expr.Var]expr.Domain, len(vars))
	for _, v := range vars {
		if v.Fixed() || !v.Domain.IsDiscrete() {
			continue
		}
		saved[v] = v.Domain
		v.Domain = expr.Continuous
	}
	return saved
}

// popIntegers restores the domains relaxed by pushIntegers.
func popIntegers(saved map[*expr.Var]expr.Domain) {
	for v, d := range saved {
		v.Domain = d
	}
}
