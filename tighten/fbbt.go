package tighten

import (
	"fmt"
	"math"

	"github.com/mintreelabs/mintree/expr"
	"github.com/mintreelabs/mintree/interval"
	"github.com/mintreelabs/mintree/model"
)

// ErrInfeasible signals that bound propagation proved the feasible box
// empty. Callers that probe variable fixings treat this as an ordinary
// outcome, not a failure.
var ErrInfeasible = fmt.Errorf("tighten: %w", errInfeasible)
var errInfeasible = fmt.Errorf("bounds proven infeasible")

// FBBTOptions configures feasibility-based bound tightening.
type FBBTOptions struct {
	// MaxPasses bounds the number of full sweeps; 0 means 2.
	MaxPasses int
	// FeasibilityTol pads activity ranges before declaring infeasibility
	// or satisfaction; 0 means 1e-6.
	FeasibilityTol float64
	// DeactivateSatisfiedConstraints disables rows whose activity range is
	// provably inside the row's bounds.
	DeactivateSatisfiedConstraints bool
}

// FBBT tightens the variable bounds of m in place. It returns
// ErrInfeasible (wrapped with the offending row) when the box is proven
// empty; bounds already written before the proof are kept — callers that
// need rollback snapshot bounds beforehand.
func FBBT(m *model.Model, opts *FBBTOptions) error {
	var o FBBTOptions
	if opts != nil {
		o = *opts
	}
	if o.MaxPasses == 0 {
		o.MaxPasses = 2
	}
	if o.FeasibilityTol == 0 {
		o.FeasibilityTol = 1e-6
	}

	for pass := 0; pass < o.MaxPasses; pass++ {
		changed := false
		for _, c := range m.Constraints() {
			if !c.Active() {
				continue
			}
			tightened, err := propagate(c, o.FeasibilityTol, o.DeactivateSatisfiedConstraints)
			if err != nil {
				return fmt.Errorf("%w: constraint %q", ErrInfeasible, c.Name)
			}
			changed = changed || tightened
		}
		if !changed {
			break
		}
	}
	return nil
}

// propagate runs the forward check and, for affine rows, the backward
// variable-bound sweep for one constraint.
func propagate(c *model.Constraint, tol float64, deactivate bool) (changed bool, err error) {
	activity := c.Body.Bounds()
	allowed := interval.New(c.LB-tol, c.UB+tol)
	if activity.Intersect(allowed).IsEmpty() {
		return false, errInfeasible
	}
	if deactivate && activity.Lo >= c.LB-tol && activity.Hi <= c.UB+tol {
		c.Deactivate()
		return true, nil
	}

	coef, offset, affine := expr.Linear(c.Body)
	if !affine {
		return false, nil
	}

	for v, a := range coef {
		if a == 0 || v.Fixed() {
			continue
		}
		// Activity of the row minus this variable's term.
		rest := interval.Point(offset)
		for u, b := range coef {
			if u != v {
				rest = rest.Add(u.Bounds().Scale(b))
			}
		}
		// a·v must land in [LB, UB] − rest.
		room := interval.New(c.LB, c.UB).Sub(rest).Scale(1 / a)
		updated := v.Bounds().Intersect(interval.New(room.Lo-tol, room.Hi+tol))
		if updated.IsEmpty() {
			return changed, errInfeasible
		}
		if v.Domain.IsDiscrete() {
			updated.Lo = math.Ceil(updated.Lo - tol)
			updated.Hi = math.Floor(updated.Hi + tol)
			if updated.IsEmpty() {
				return changed, errInfeasible
			}
		}
		const improve = 1e-10
		if updated.Lo > v.LB+improve {
			v.LB = updated.Lo
			changed = true
		}
		if updated.Hi < v.UB-improve {
			v.UB = updated.Hi
			changed = true
		}
	}
	return changed, nil
}
