package expr

import "fmt"

// Gradient computes the symbolic gradient of e by reverse-mode
// differentiation: a single traversal accumulates, per variable, the sum of
// path products of local derivatives. The returned expressions share
// subtrees with e and with each other; they are valid as long as e is.
//
// Variables that e does not depend on are absent from the result (their
// partial is identically zero).
func Gradient(e Expr) map[*Var]Expr {
	grads := make(map[*Var][]Expr)
	accumulate(e, Const(1), grads)
	out := make(map[*Var]Expr, len(grads))
	for v, parts := range grads {
		out[v] = Add(parts...)
	}
	return out
}

// Derivative returns ∂e/∂x, or Const(0) when e does not depend on x.
func Derivative(e Expr, x *Var) Expr {
	if d, ok := Gradient(e)[x]; ok {
		return d
	}
	return Const(0)
}

// accumulate pushes the adjoint `mult` of the current node down to its
// children, multiplying by each child's local derivative.
func accumulate(e Expr, mult Expr, grads map[*Var][]Expr) {
	switch t := e.(type) {
	case Const:
		// No dependence; nothing to do.
	case *Var:
		grads[t] = append(grads[t], mult)
	case *addExpr:
		for _, inner := range t.terms {
			accumulate(inner, mult, grads)
		}
	case *mulExpr:
		accumulate(t.a, Mul(mult, t.b), grads)
		accumulate(t.b, Mul(mult, t.a), grads)
	case *powExpr:
		// d(b^p) = p * b^(p-1) * db
		accumulate(t.base, Mul(mult, Scale(t.p, Pow(t.base, t.p-1))), grads)
	case *unaryExpr:
		accumulate(t.arg, Mul(mult, unaryDerivative(t)), grads)
	default:
		panic(fmt.Sprintf("expr: unknown node type %T", e))
	}
}

// unaryDerivative returns the derivative of the unary node with respect to
// its argument.
func unaryDerivative(u *unaryExpr) Expr {
	switch u.op {
	case opExp:
		return Exp(u.arg)
	case opLog:
		return Pow(u.arg, -1)
	case opSqrt:
		return Scale(0.5, Pow(u.arg, -0.5))
	case opSin:
		return Cos(u.arg)
	case opCos:
		return Neg(Sin(u.arg))
	}
	panic(fmt.Sprintf("expr: unknown unary op %d", int(u.op)))
}
