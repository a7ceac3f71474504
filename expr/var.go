package expr

import (
	"fmt"
	"math"

	"github.com/mintreelabs/mintree/interval"
)

// Domain classifies the admissible values of a variable.
type Domain int

const (
	// Continuous variables take any value within their bounds.
	Continuous Domain = iota
	// Binary variables take values in {0, 1}.
	Binary
	// Integer variables take integer values within their bounds.
	Integer
)

// IsDiscrete reports whether the domain is Binary or Integer.
func (d Domain) IsDiscrete() bool { return d == Binary || d == Integer }

func (d Domain) String() string {
	switch d {
	case Continuous:
		return "continuous"
	case Binary:
		return "binary"
	case Integer:
		return "integer"
	}
	return fmt.Sprintf("Domain(%d)", int(d))
}

// Var is an optimization variable: a leaf of the expression tree carrying
// bounds, a domain, and a current value. Vars are identified by pointer;
// two vars with the same name are still distinct variables.
type Var struct {
	Name   string
	LB, UB float64
	Domain Domain

	// Value is the variable's current assignment, used by Eval.
	Value float64

	fixed bool
}

// NewVar returns a continuous variable with the given bounds.
func NewVar(name string, lb, ub float64) *Var {
	return &Var{Name: name, LB: lb, UB: ub}
}

// NewBinary returns a binary variable on [0, 1].
func NewBinary(name string) *Var {
	return &Var{Name: name, LB: 0, UB: 1, Domain: Binary}
}

// NewInteger returns an integer variable with the given bounds.
func NewInteger(name string, lb, ub float64) *Var {
	return &Var{Name: name, LB: lb, UB: ub, Domain: Integer}
}

// HasLB reports whether the lower bound is finite.
func (v *Var) HasLB() bool { return !math.IsInf(v.LB, -1) }

// HasUB reports whether the upper bound is finite.
func (v *Var) HasUB() bool { return !math.IsInf(v.UB, 1) }

// Bounded reports whether both bounds are finite.
func (v *Var) Bounded() bool { return v.HasLB() && v.HasUB() }

// Fix pins the variable to val: the value is set and the variable is
// treated as a constant by Bounds and by the backends until Unfix.
func (v *Var) Fix(val float64) {
	v.Value = val
	v.fixed = true
}

// Unfix releases a previously fixed variable.
func (v *Var) Unfix() { v.fixed = false }

// Fixed reports whether the variable is currently fixed.
func (v *Var) Fixed() bool { return v.fixed }

// Eval returns the variable's current value.
func (v *Var) Eval() float64 { return v.Value }

// Bounds returns the variable's box as an interval, collapsed to a point
// when the variable is fixed.
func (v *Var) Bounds() interval.Interval {
	if v.fixed {
		return interval.Point(v.Value)
	}
	return interval.New(v.LB, v.UB)
}

// Vars returns the one-element variable list {v}.
func (v *Var) Vars() []*Var { return []*Var{v} }

func (v *Var) String() string { return v.Name }
