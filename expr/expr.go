package expr

import (
	"fmt"
	"strings"

	"github.com/mintreelabs/mintree/interval"
)

// Expr is a node of an immutable expression tree.
type Expr interface {
	// Eval computes the value at the variables' current assignment.
	Eval() float64
	// Bounds computes an interval enclosure over the variables' boxes.
	Bounds() interval.Interval
	// Vars returns the distinct variables of the subtree in first-seen order.
	Vars() []*Var
	// String renders the tree for diagnostics.
	String() string
}

// Const is a constant expression.
type Const float64

// Eval returns the constant value.
func (c Const) Eval() float64 { return float64(c) }

// Bounds returns the degenerate interval at the constant.
func (c Const) Bounds() interval.Interval { return interval.Point(float64(c)) }

// Vars returns nil: constants reference no variables.
func (c Const) Vars() []*Var { return nil }

func (c Const) String() string { return fmt.Sprintf("%g", float64(c)) }

type addExpr struct {
	terms []Expr
}

func (a *addExpr) Eval() float64 {
	var s float64
	for _, t := range a.terms {
		s += t.Eval()
	}
	return s
}

func (a *addExpr) Bounds() interval.Interval {
	iv := interval.Point(0)
	for _, t := range a.terms {
		iv = iv.Add(t.Bounds())
	}
	return iv
}

func (a *addExpr) Vars() []*Var { return collectVars(a.terms...) }

func (a *addExpr) String() string {
	parts := make([]string, len(a.terms))
	for i, t := range a.terms {
		parts[i] = t.String()
	}
	return "(" + strings.Join(parts, " + ") + ")"
}

type mulExpr struct {
	a, b Expr
}

func (m *mulExpr) Eval() float64 { return m.a.Eval() * m.b.Eval() }

func (m *mulExpr) Bounds() interval.Interval { return m.a.Bounds().Mul(m.b.Bounds()) }

func (m *mulExpr) Vars() []*Var { return collectVars(m.a, m.b) }

func (m *mulExpr) String() string { return "(" + m.a.String() + " * " + m.b.String() + ")" }

type powExpr struct {
	base Expr
	p    float64
}

func (e *powExpr) Eval() float64 { return pow(e.base.Eval(), e.p) }

func (e *powExpr) Bounds() interval.Interval { return e.base.Bounds().Pow(e.p) }

func (e *powExpr) Vars() []*Var { return e.base.Vars() }

func (e *powExpr) String() string { return fmt.Sprintf("%s^%g", e.base.String(), e.p) }

// unaryOp enumerates the supported elementary functions.
type unaryOp int

const (
	opExp unaryOp = iota
	opLog
	opSqrt
	opSin
	opCos
)

type unaryExpr struct {
	op  unaryOp
	arg Expr
}

func (u *unaryExpr) Eval() float64 {
	x := u.arg.Eval()
	switch u.op {
	case opExp:
		return exp(x)
	case opLog:
		return log(x)
	case opSqrt:
		return sqrt(x)
	case opSin:
		return sin(x)
	case opCos:
		return cos(x)
	}
	panic(fmt.Sprintf("expr: unknown unary op %d", int(u.op)))
}

func (u *unaryExpr) Bounds() interval.Interval {
	b := u.arg.Bounds()
	switch u.op {
	case opExp:
		return b.Exp()
	case opLog:
		return b.Log()
	case opSqrt:
		return b.Sqrt()
	case opSin:
		return b.Sin()
	case opCos:
		return b.Cos()
	}
	panic(fmt.Sprintf("expr: unknown unary op %d", int(u.op)))
}

func (u *unaryExpr) Vars() []*Var { return u.arg.Vars() }

func (u *unaryExpr) String() string {
	names := [...]string{"exp", "log", "sqrt", "sin", "cos"}
	return names[u.op] + "(" + u.arg.String() + ")"
}

// Add returns the sum of terms, with constants folded and nested sums
// flattened. An empty sum is Const(0).
func Add(terms ...Expr) Expr {
	flat := make([]Expr, 0, len(terms))
	var c float64
	for _, t := range terms {
		switch tt := t.(type) {
		case Const:
			c += float64(tt)
		case *addExpr:
			for _, inner := range tt.terms {
				if ic, ok := inner.(Const); ok {
					c += float64(ic)
				} else {
					flat = append(flat, inner)
				}
			}
		default:
			flat = append(flat, t)
		}
	}
	if c != 0 || len(flat) == 0 {
		flat = append(flat, Const(c))
	}
	if len(flat) == 1 {
		return flat[0]
	}
	return &addExpr{terms: flat}
}

// Sub returns a - b.
func Sub(a, b Expr) Expr { return Add(a, Neg(b)) }

// Neg returns -e.
func Neg(e Expr) Expr { return Mul(Const(-1), e) }

// Mul returns a * b with constant folding and zero/one elimination.
func Mul(a, b Expr) Expr {
	ca, aConst := a.(Const)
	cb, bConst := b.(Const)
	switch {
	case aConst && bConst:
		return Const(float64(ca) * float64(cb))
	case aConst && float64(ca) == 0, bConst && float64(cb) == 0:
		return Const(0)
	case aConst && float64(ca) == 1:
		return b
	case bConst && float64(cb) == 1:
		return a
	}
	return &mulExpr{a: a, b: b}
}

// Scale returns c * e.
func Scale(c float64, e Expr) Expr { return Mul(Const(c), e) }

// Pow returns base^p for a real exponent p.
func Pow(base Expr, p float64) Expr {
	if c, ok := base.(Const); ok {
		return Const(pow(float64(c), p))
	}
	switch p {
	case 0:
		return Const(1)
	case 1:
		return base
	}
	return &powExpr{base: base, p: p}
}

// Square returns e^2.
func Square(e Expr) Expr { return Pow(e, 2) }

// Exp returns e^arg.
func Exp(arg Expr) Expr { return newUnary(opExp, arg) }

// Log returns the natural logarithm of arg.
func Log(arg Expr) Expr { return newUnary(opLog, arg) }

// Sqrt returns the square root of arg.
func Sqrt(arg Expr) Expr { return newUnary(opSqrt, arg) }

// Sin returns the sine of arg.
func Sin(arg Expr) Expr { return newUnary(opSin, arg) }

// Cos returns the cosine of arg.
func Cos(arg Expr) Expr { return newUnary(opCos, arg) }

func newUnary(op unaryOp, arg Expr) Expr {
	if _, ok := arg.(Const); ok {
		u := &unaryExpr{op: op, arg: arg}
		return Const(u.Eval())
	}
	return &unaryExpr{op: op, arg: arg}
}

// collectVars merges the variable lists of several subtrees, deduplicated
// in first-seen order. Enumeration order is deterministic: it follows the
// tree's left-to-right structure.
func collectVars(items ...Expr) []*Var {
	var out []*Var
	seen := make(map[*Var]struct{})
	for _, it := range items {
		for _, v := range it.Vars() {
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}

// Replace rebuilds e with every variable that appears in sub swapped for
// its replacement. Variables absent from sub are kept as-is.
func Replace(e Expr, sub map[*Var]*Var) Expr {
	switch t := e.(type) {
	case Const:
		return t
	case *Var:
		if r, ok := sub[t]; ok {
			return r
		}
		return t
	case *addExpr:
		terms := make([]Expr, len(t.terms))
		for i, inner := range t.terms {
			terms[i] = Replace(inner, sub)
		}
		return Add(terms...)
	case *mulExpr:
		return Mul(Replace(t.a, sub), Replace(t.b, sub))
	case *powExpr:
		return Pow(Replace(t.base, sub), t.p)
	case *unaryExpr:
		return newUnary(t.op, Replace(t.arg, sub))
	}
	panic(fmt.Sprintf("expr: unknown node type %T", e))
}

// Linear extracts the affine form of e as (coefficients, offset). ok is
// false when e is not affine in its variables.
func Linear(e Expr) (coef map[*Var]float64, offset float64, ok bool) {
	coef = make(map[*Var]float64)
	offset, ok = linearInto(e, 1, coef)
	if !ok {
		return nil, 0, false
	}
	return coef, offset, true
}

func linearInto(e Expr, mult float64, coef map[*Var]float64) (offset float64, ok bool) {
	switch t := e.(type) {
	case Const:
		return mult * float64(t), true
	case *Var:
		coef[t] += mult
		return 0, true
	case *addExpr:
		var total float64
		for _, inner := range t.terms {
			off, innerOK := linearInto(inner, mult, coef)
			if !innerOK {
				return 0, false
			}
			total += off
		}
		return total, true
	case *mulExpr:
		if c, isConst := t.a.(Const); isConst {
			return linearInto(t.b, mult*float64(c), coef)
		}
		if c, isConst := t.b.(Const); isConst {
			return linearInto(t.a, mult*float64(c), coef)
		}
		return 0, false
	}
	return 0, false
}
