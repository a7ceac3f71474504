package model

import (
	"fmt"
	"math"

	"github.com/mintreelabs/mintree/expr"
)

// Sense is the optimization direction of an objective.
type Sense int

const (
	// Minimize seeks the smallest objective value.
	Minimize Sense = iota
	// Maximize seeks the largest objective value.
	Maximize
)

func (s Sense) String() string {
	if s == Minimize {
		return "minimize"
	}
	return "maximize"
}

// Constraint is LB ≤ Body ≤ UB. Equalities have LB == UB; one-sided
// constraints use ±Inf for the absent side. Deactivated constraints are
// ignored by backends and by bound tightening.
type Constraint struct {
	Name   string
	Body   expr.Expr
	LB, UB float64

	active bool
}

// NewConstraint returns an active constraint LB ≤ body ≤ UB.
func NewConstraint(name string, body expr.Expr, lb, ub float64) *Constraint {
	return &Constraint{Name: name, Body: body, LB: lb, UB: ub, active: true}
}

// Equality returns an active constraint body == rhs.
func Equality(name string, body expr.Expr, rhs float64) *Constraint {
	return NewConstraint(name, body, rhs, rhs)
}

// AtMost returns an active constraint body ≤ ub.
func AtMost(name string, body expr.Expr, ub float64) *Constraint {
	return NewConstraint(name, body, math.Inf(-1), ub)
}

// AtLeast returns an active constraint body ≥ lb.
func AtLeast(name string, body expr.Expr, lb float64) *Constraint {
	return NewConstraint(name, body, lb, math.Inf(1))
}

// Active reports whether the constraint participates in solves.
func (c *Constraint) Active() bool { return c.active }

// Activate re-enables the constraint.
func (c *Constraint) Activate() { c.active = true }

// Deactivate disables the constraint without removing it.
func (c *Constraint) Deactivate() { c.active = false }

// IsEquality reports whether LB == UB (both finite).
func (c *Constraint) IsEquality() bool {
	return c.LB == c.UB && !math.IsInf(c.LB, 0)
}

// Violation returns how far the body's current value lies outside
// [LB, UB]; zero when satisfied.
func (c *Constraint) Violation() float64 {
	v := c.Body.Eval()
	switch {
	case v < c.LB:
		return c.LB - v
	case v > c.UB:
		return v - c.UB
	}
	return 0
}

// Objective is a sensed objective expression.
type Objective struct {
	Expr  expr.Expr
	Sense Sense
}

// Model is a mutable optimization model.
type Model struct {
	Name string

	vars []*expr.Var
	cons []*Constraint
	obj  *Objective
}

// New returns an empty model.
func New(name string) *Model { return &Model{Name: name} }

// AddVar appends a variable to the model.
func (m *Model) AddVar(v *expr.Var) *expr.Var {
	m.vars = append(m.vars, v)
	return v
}

// AddVars appends several variables.
func (m *Model) AddVars(vs ...*expr.Var) {
	m.vars = append(m.vars, vs...)
}

// AddConstraint appends a constraint to the model.
func (m *Model) AddConstraint(c *Constraint) *Constraint {
	m.cons = append(m.cons, c)
	return c
}

// RemoveConstraint deletes c from the model, preserving order.
func (m *Model) RemoveConstraint(c *Constraint) {
	for i, existing := range m.cons {
		if existing == c {
			m.cons = append(m.cons[:i], m.cons[i+1:]...)
			return
		}
	}
}

// RemoveVar deletes v from the model, preserving order. Constraints still
// referencing v are the caller's responsibility.
func (m *Model) RemoveVar(v *expr.Var) {
	for i, existing := range m.vars {
		if existing == v {
			m.vars = append(m.vars[:i], m.vars[i+1:]...)
			return
		}
	}
}

// SetObjective installs the objective.
func (m *Model) SetObjective(e expr.Expr, sense Sense) {
	m.obj = &Objective{Expr: e, Sense: sense}
}

// Objective returns the model's objective, or nil if none was set.
func (m *Model) Objective() *Objective { return m.obj }

// Vars returns the model's variables in insertion order. The slice is the
// model's own; callers must not append to it.
func (m *Model) Vars() []*expr.Var { return m.vars }

// Constraints returns all constraints in insertion order.
func (m *Model) Constraints() []*Constraint { return m.cons }

// ActiveConstraints returns the currently active constraints.
func (m *Model) ActiveConstraints() []*Constraint {
	out := make([]*Constraint, 0, len(m.cons))
	for _, c := range m.cons {
		if c.active {
			out = append(out, c)
		}
	}
	return out
}

// DiscreteVars returns the model's binary and integer variables.
func (m *Model) DiscreteVars() []*expr.Var {
	var out []*expr.Var
	for _, v := range m.vars {
		if v.Domain.IsDiscrete() {
			out = append(out, v)
		}
	}
	return out
}

// VarMap maps variables of one model to their counterparts in another.
// The mapping is injective: every key has exactly one image.
type VarMap map[*expr.Var]*expr.Var

// Compose returns the map v -> other[m[v]] for every v whose image is
// itself mapped by other.
func (vm VarMap) Compose(other VarMap) VarMap {
	out := make(VarMap, len(vm))
	for k, mid := range vm {
		if dst, ok := other[mid]; ok {
			out[k] = dst
		}
	}
	return out
}

// Clone deep-copies the model and returns it together with the
// correspondence table from clone variables to source variables.
func (m *Model) Clone(name string) (*Model, VarMap) {
	clone := New(name)
	sub := make(map[*expr.Var]*expr.Var, len(m.vars))
	back := make(VarMap, len(m.vars))
	for _, v := range m.vars {
		nv := &expr.Var{Name: v.Name, LB: v.LB, UB: v.UB, Domain: v.Domain, Value: v.Value}
		if v.Fixed() {
			nv.Fix(v.Value)
		}
		clone.AddVar(nv)
		sub[v] = nv
		back[nv] = v
	}
	for _, c := range m.cons {
		nc := NewConstraint(c.Name, expr.Replace(c.Body, sub), c.LB, c.UB)
		if !c.active {
			nc.Deactivate()
		}
		clone.AddConstraint(nc)
	}
	if m.obj != nil {
		clone.SetObjective(expr.Replace(m.obj.Expr, sub), m.obj.Sense)
	}
	return clone, back
}

// UniqueName returns base if unused among the model's variables and
// constraints, otherwise base suffixed with an increasing counter.
func (m *Model) UniqueName(base string) string {
	used := make(map[string]struct{}, len(m.vars)+len(m.cons))
	for _, v := range m.vars {
		used[v.Name] = struct{}{}
	}
	for _, c := range m.cons {
		used[c.Name] = struct{}{}
	}
	if _, taken := used[base]; !taken {
		return base
	}
	for i := 1; ; i++ {
		name := fmt.Sprintf("%s_%d", base, i)
		if _, taken := used[name]; !taken {
			return name
		}
	}
}
