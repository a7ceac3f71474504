// Package interval provides closed-interval arithmetic over float64 with
// outward-conservative semantics: every operation returns an interval that
// encloses the exact image of the operands. Infinite endpoints are allowed
// and represent one-sided or fully unbounded domains.
//
// The package is the numeric substrate for two consumers:
//
//   - expr.Bounds — interval evaluation of symbolic expressions, used by the
//     αBB underestimator to bound Hessian entries over a variable box;
//   - tighten.FBBT — feasibility-based bound propagation over constraints.
//
// Division by an interval containing zero and logarithms of intervals
// reaching below zero widen to the appropriate infinite enclosure instead of
// failing; emptiness only arises from Intersect and is reported explicitly.
package interval
