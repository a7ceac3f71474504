package sqp

import (
	"fmt"
	"math"
	"time"

	"github.com/curioloop/optimizer/slsqp"

	"github.com/mintreelabs/mintree/expr"
	"github.com/mintreelabs/mintree/model"
	"github.com/mintreelabs/mintree/solve"
)

// ErrDiscreteVar is returned when an unfixed discrete variable reaches the
// NLP backend; fix or relax it first.
var ErrDiscreteVar = fmt.Errorf("sqp: %w", errDiscreteVar)
var errDiscreteVar = fmt.Errorf("unfixed discrete variable in NLP model")

// Solver is the bundled SLSQP-based NLP solver. SLSQP has no wall-clock
// budget, so Config().TimeLimit is ignored; MaxIterations bounds the work
// per solve instead.
type Solver struct {
	m    *model.Model
	cfg  solve.Config
	ucfg solve.UpdateConfig

	// Accuracy is the SLSQP norm accuracy for convergence.
	Accuracy float64
	// MaxIterations caps the SLSQP major iterations per solve.
	MaxIterations int
	// FeasibilityTol is the violation tolerance used to accept the
	// returned point as feasible.
	FeasibilityTol float64
}

// New returns an unbound solver with default SLSQP settings.
func New() *Solver {
	return &Solver{
		ucfg:           solve.DefaultUpdateConfig(),
		Accuracy:       1e-8,
		MaxIterations:  200,
		FeasibilityTol: 1e-6,
	}
}

// Config returns the mutable per-solve settings.
func (s *Solver) Config() *solve.Config { return &s.cfg }

// UpdateConfig returns the mutable re-synchronization flags.
func (s *Solver) UpdateConfig() *solve.UpdateConfig { return &s.ucfg }

// SetInstance binds the solver to m.
func (s *Solver) SetInstance(m *model.Model) error {
	s.m = m
	return nil
}

// Update is a no-op: the model is re-read on every Solve, so there is no
// extraction state to refresh.
func (s *Solver) Update() error {
	if s.m == nil {
		return solve.ErrNoInstance
	}
	return nil
}

// AddConstraints is a no-op for the same reason as Update; the constraints
// are already part of the bound model.
func (s *Solver) AddConstraints(cons []*model.Constraint) error {
	if s.m == nil {
		return solve.ErrNoInstance
	}
	return nil
}

// evaluation couples a scalar expression with its symbolic gradient over
// the decision variables, in decision-vector order.
type evaluation struct {
	vars  []*expr.Var
	body  expr.Expr
	grads []expr.Expr
	sign  float64
	shift float64
}

func newEvaluation(vars []*expr.Var, body expr.Expr, sign, shift float64) evaluation {
	grad := expr.Gradient(body)
	grads := make([]expr.Expr, len(vars))
	for i, v := range vars {
		if g, ok := grad[v]; ok {
			grads[i] = g
		} else {
			grads[i] = expr.Const(0)
		}
	}
	return evaluation{vars: vars, body: body, grads: grads, sign: sign, shift: shift}
}

// closure adapts the evaluation to the slsqp.Evaluation calling convention:
// write x into the variables, fill g with the gradient when asked, return f.
func (e evaluation) closure() slsqp.Evaluation {
	return func(x []float64, g []float64) float64 {
		for i, v := range e.vars {
			v.Value = x[i]
		}
		if g != nil {
			for i, ge := range e.grads {
				g[i] = e.sign * ge.Eval()
			}
		}
		return e.sign*e.body.Eval() + e.shift
	}
}

// Solve runs one local SLSQP solve from the variables' current values.
func (s *Solver) Solve() (*solve.Result, error) {
	if s.m == nil {
		return nil, solve.ErrNoInstance
	}
	start := time.Now()

	obj := s.m.Objective()
	if obj == nil {
		return nil, fmt.Errorf("sqp: model %q has no objective", s.m.Name)
	}
	objSign := 1.0
	if obj.Sense == model.Maximize {
		objSign = -1.0
	}

	var dec []*expr.Var
	for _, v := range s.m.Vars() {
		if v.Fixed() {
			continue
		}
		if v.Domain.IsDiscrete() {
			return nil, fmt.Errorf("%w: %q", ErrDiscreteVar, v.Name)
		}
		dec = append(dec, v)
	}
	cons := s.m.ActiveConstraints()

	if len(dec) == 0 {
		return s.evaluateFixedPoint(obj, cons, start)
	}

	var eqs, neqs []slsqp.Evaluation
	for _, c := range cons {
		switch {
		case c.IsEquality():
			eqs = append(eqs, newEvaluation(dec, c.Body, 1, -c.LB).closure())
		default:
			if !math.IsInf(c.LB, -1) {
				neqs = append(neqs, newEvaluation(dec, c.Body, 1, -c.LB).closure())
			}
			if !math.IsInf(c.UB, 1) {
				neqs = append(neqs, newEvaluation(dec, c.Body, -1, c.UB).closure())
			}
		}
	}

	bounds := make([]slsqp.Bound, len(dec))
	x0 := make([]float64, len(dec))
	for i, v := range dec {
		bounds[i] = slsqp.Bound{Lower: v.LB, Upper: v.UB}
		x0[i] = startingPoint(v)
	}

	problem := slsqp.Problem{
		N:       len(dec),
		Stop:    slsqp.Termination{Accuracy: s.Accuracy, MaxIterations: s.MaxIterations},
		Object:  newEvaluation(dec, obj.Expr, objSign, 0).closure(),
		EqCons:  eqs,
		NeqCons: neqs,
		Bounds:  bounds,
	}
	opt, err := problem.New()
	if err != nil {
		return nil, fmt.Errorf("sqp: %w", err)
	}
	fit := opt.Fit(x0, opt.Init())

	for i, v := range dec {
		v.Value = fit.X[i]
	}
	return s.classify(obj, cons, fit.OK, start)
}

// evaluateFixedPoint handles the fully-fixed model: no search, just a
// feasibility check of the single candidate point.
func (s *Solver) evaluateFixedPoint(obj *model.Objective, cons []*model.Constraint, start time.Time) (*solve.Result, error) {
	return s.classify(obj, cons, true, start)
}

// classify turns the current variable values into a Result: a feasible
// point yields its objective and a loader, an infeasible one yields no
// solution. SLSQP proves nothing globally, so no objective bound is set.
func (s *Solver) classify(obj *model.Objective, cons []*model.Constraint, converged bool, start time.Time) (*solve.Result, error) {
	feasible := true
	for _, c := range cons {
		if c.Violation() > s.FeasibilityTol {
			feasible = false
			break
		}
	}
	res := &solve.Result{Wallclock: time.Since(start)}
	if !feasible {
		res.Termination = solve.Unknown
		if s.cfg.LoadSolution {
			return nil, solve.ErrNoSolution
		}
		return res, nil
	}
	if converged {
		res.Termination = solve.Optimal
	} else {
		res.Termination = solve.IterationLimit
	}
	res.BestFeasibleObjective = solve.Float(obj.Expr.Eval())
	loader := make(solve.MapLoader, len(s.m.Vars()))
	for _, v := range s.m.Vars() {
		loader[v] = v.Value
	}
	res.Loader = loader
	if s.cfg.LoadSolution {
		loader.Load()
	}
	return res, nil
}

// startingPoint clamps the variable's current value into its bounds,
// falling back to the box midpoint when the value is unusable.
func startingPoint(v *expr.Var) float64 {
	x := v.Value
	if math.IsNaN(x) || math.IsInf(x, 0) {
		x = 0
		if v.Bounded() {
			x = v.Bounds().Mid()
		}
	}
	if v.HasLB() && x < v.LB {
		x = v.LB
	}
	if v.HasUB() && x > v.UB {
		x = v.UB
	}
	return x
}
