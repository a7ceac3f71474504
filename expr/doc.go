// Package expr implements the small symbolic expression engine the solver
// stack is built on: optimization variables, arithmetic and elementary
// transcendental operators, point evaluation, interval evaluation over the
// variables' box domains, reverse-mode symbolic differentiation, and linear
// form extraction.
//
// Expressions are immutable trees built through the package constructors
// (Add, Mul, Pow, Exp, ...), which fold constants and flatten sums so that
// repeated differentiation (e.g. building a symbolic Hessian for the αBB
// underestimator) does not blow the tree up.
//
// Three views of the same tree drive the rest of the module:
//
//	e.Eval()       — value at the variables' current assignment
//	e.Bounds()     — interval enclosure over the variables' [LB, UB] boxes
//	Gradient(e)    — map from variable to the symbolic partial ∂e/∂x
//
// Linear(e) recognizes affine trees and returns their coefficient form;
// the bundled MIP backend and the bound-propagation pass both rely on it.
package expr
