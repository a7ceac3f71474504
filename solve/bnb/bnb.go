package bnb

import (
	"errors"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"

	"github.com/mintreelabs/mintree/expr"
	"github.com/mintreelabs/mintree/model"
	"github.com/mintreelabs/mintree/solve"
)

// ErrNotLinear is returned when a bound model contains a non-affine
// active constraint or objective.
var ErrNotLinear = fmt.Errorf("bnb: %w", errNotLinear)
var errNotLinear = fmt.Errorf("model is not linear")

// ErrUnboundedVar is returned when a variable has no finite lower bound.
var ErrUnboundedVar = fmt.Errorf("bnb: %w", errUnboundedVar)
var errUnboundedVar = fmt.Errorf("variable has no finite lower bound")

const intTol = 1e-6

// Solver is a branch-and-bound MIP solver over LP relaxations.
type Solver struct {
	m    *model.Model
	cfg  solve.Config
	ucfg solve.UpdateConfig

	vars  []*expr.Var
	index map[*expr.Var]int
	rows  []lpRow
	obj   []float64
	objC  float64 // constant objective offset
	maxim bool
}

// lpRow is one extracted constraint: lb ≤ coef·x ≤ ub in original space.
type lpRow struct {
	coef   []float64
	lb, ub float64
}

// New returns an unbound solver with a full-resync update configuration.
func New() *Solver {
	return &Solver{
		ucfg: solve.DefaultUpdateConfig(),
		cfg:  solve.Config{MIPGap: 1e-9},
	}
}

// Config returns the mutable per-solve settings.
func (s *Solver) Config() *solve.Config { return &s.cfg }

// UpdateConfig returns the mutable re-synchronization flags.
func (s *Solver) UpdateConfig() *solve.UpdateConfig { return &s.ucfg }

// SetInstance binds the solver to m and performs a full extraction.
func (s *Solver) SetInstance(m *model.Model) error {
	s.m = m
	return s.extractAll()
}

// Update re-synchronizes with the bound model according to UpdateConfig.
func (s *Solver) Update() error {
	if s.m == nil {
		return solve.ErrNoInstance
	}
	if s.ucfg.CheckForNewVars || s.ucfg.UpdateVars {
		return s.extractAll()
	}
	if s.ucfg.CheckForNewConstraints || s.ucfg.UpdateConstraints || s.ucfg.UpdateObjective {
		return s.extractRowsAndObjective()
	}
	return nil
}

// AddConstraints appends rows incrementally, without touching the rest of
// the extraction.
func (s *Solver) AddConstraints(cons []*model.Constraint) error {
	if s.m == nil {
		return solve.ErrNoInstance
	}
	for _, c := range cons {
		row, err := s.extractRow(c)
		if err != nil {
			return err
		}
		s.rows = append(s.rows, row)
	}
	return nil
}

func (s *Solver) extractAll() error {
	s.vars = s.m.Vars()
	s.index = make(map[*expr.Var]int, len(s.vars))
	for i, v := range s.vars {
		s.index[v] = i
	}
	return s.extractRowsAndObjective()
}

func (s *Solver) extractRowsAndObjective() error {
	s.rows = s.rows[:0]
	for _, c := range s.m.ActiveConstraints() {
		row, err := s.extractRow(c)
		if err != nil {
			return err
		}
		s.rows = append(s.rows, row)
	}

	obj := s.m.Objective()
	if obj == nil {
		return fmt.Errorf("bnb: model %q has no objective", s.m.Name)
	}
	coef, offset, ok := expr.Linear(obj.Expr)
	if !ok {
		return fmt.Errorf("%w: objective", ErrNotLinear)
	}
	s.obj = make([]float64, len(s.vars))
	s.objC = offset
	for v, a := range coef {
		i, known := s.index[v]
		if !known {
			return fmt.Errorf("bnb: objective references unknown variable %q", v.Name)
		}
		s.obj[i] = a
	}
	s.maxim = obj.Sense == model.Maximize
	if s.maxim {
		for i := range s.obj {
			s.obj[i] = -s.obj[i]
		}
		s.objC = -s.objC
	}
	return nil
}

func (s *Solver) extractRow(c *model.Constraint) (lpRow, error) {
	coef, offset, ok := expr.Linear(c.Body)
	if !ok {
		return lpRow{}, fmt.Errorf("%w: constraint %q", ErrNotLinear, c.Name)
	}
	row := lpRow{coef: make([]float64, len(s.vars)), lb: c.LB - offset, ub: c.UB - offset}
	for v, a := range coef {
		i, known := s.index[v]
		if !known {
			return lpRow{}, fmt.Errorf("bnb: constraint %q references unknown variable %q", c.Name, v.Name)
		}
		row.coef[i] = a
	}
	return row, nil
}

// node is one open branch-and-bound subproblem: per-variable bound
// overrides plus the LP bound inherited from its parent.
type node struct {
	lb, ub []float64
	bound  float64
}

// Solve runs the branch-and-bound search.
func (s *Solver) Solve() (*solve.Result, error) {
	if s.m == nil {
		return nil, solve.ErrNoInstance
	}
	if err := s.Update(); err != nil {
		return nil, err
	}
	start := time.Now()
	deadline := func() bool {
		return s.cfg.TimeLimit > 0 && time.Since(start) >= s.cfg.TimeLimit
	}

	root := node{lb: make([]float64, len(s.vars)), ub: make([]float64, len(s.vars)), bound: math.Inf(-1)}
	for i, v := range s.vars {
		lb, ub := v.LB, v.UB
		if v.Fixed() {
			lb, ub = v.Value, v.Value
		}
		if math.IsInf(lb, -1) {
			return nil, fmt.Errorf("%w: %q", ErrUnboundedVar, v.Name)
		}
		if ub < lb {
			return s.finish(nil, math.Inf(1), math.Inf(1), solve.Infeasible, start)
		}
		root.lb[i], root.ub[i] = lb, ub
	}

	var (
		incumbent    []float64
		incumbentObj = math.Inf(1)
		stack        = []node{root}
		timedOut     bool
	)

	for len(stack) > 0 {
		if deadline() {
			timedOut = true
			break
		}
		nd := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if nd.bound >= incumbentObj-1e-12 {
			continue // parent bound already dominated
		}
		x, z, err := s.solveLP(nd)
		switch {
		case errors.Is(err, lp.ErrInfeasible):
			continue
		case errors.Is(err, lp.ErrUnbounded):
			if incumbent == nil {
				return s.finish(nil, math.Inf(-1), math.Inf(-1), solve.Unbounded, start)
			}
			continue
		case err != nil:
			return nil, fmt.Errorf("bnb: simplex: %w", err)
		}
		if z >= incumbentObj-1e-12 {
			continue
		}

		branchVar := -1
		frac := intTol
		for i, v := range s.vars {
			if !v.Domain.IsDiscrete() || v.Fixed() {
				continue
			}
			f := math.Abs(x[i] - math.Round(x[i]))
			if f > frac {
				frac = f
				branchVar = i
			}
		}
		if branchVar < 0 {
			incumbent = append(incumbent[:0], x...)
			incumbentObj = z
			if s.gapClosed(incumbentObj, stack) {
				break
			}
			continue
		}

		down := node{lb: append([]float64(nil), nd.lb...), ub: append([]float64(nil), nd.ub...), bound: z}
		up := node{lb: append([]float64(nil), nd.lb...), ub: append([]float64(nil), nd.ub...), bound: z}
		down.ub[branchVar] = math.Floor(x[branchVar])
		up.lb[branchVar] = math.Ceil(x[branchVar])
		stack = append(stack, up, down)
	}

	dual := incumbentObj
	for _, nd := range stack {
		if nd.bound < dual {
			dual = nd.bound
		}
	}

	if incumbent == nil {
		if timedOut || len(stack) > 0 {
			return s.finish(nil, math.Inf(1), dual, solve.TimeLimit, start)
		}
		return s.finish(nil, math.Inf(1), math.Inf(1), solve.Infeasible, start)
	}
	status := solve.Optimal
	if timedOut {
		status = solve.TimeLimit
	}
	return s.finish(incumbent, incumbentObj, dual, status, start)
}

// gapClosed reports whether the incumbent is within the relative MIP gap
// of the best open bound.
func (s *Solver) gapClosed(incumbentObj float64, open []node) bool {
	if len(open) == 0 {
		return true
	}
	dual := incumbentObj
	for _, nd := range open {
		if nd.bound < dual {
			dual = nd.bound
		}
	}
	if math.IsInf(dual, -1) || incumbentObj == 0 {
		return false
	}
	return incumbentObj-dual <= s.cfg.MIPGap*math.Abs(incumbentObj)
}

func (s *Solver) finish(x []float64, obj, bound float64, status solve.Termination, start time.Time) (*solve.Result, error) {
	res := &solve.Result{Termination: status, Wallclock: time.Since(start)}
	if s.maxim {
		obj, bound = -obj, -bound
	}
	if !math.IsInf(bound, 0) {
		res.BestObjectiveBound = solve.Float(bound)
	}
	if x != nil {
		res.BestFeasibleObjective = solve.Float(obj)
		loader := make(solve.MapLoader, len(s.vars))
		for i, v := range s.vars {
			loader[v] = x[i]
		}
		res.Loader = loader
		if s.cfg.LoadSolution {
			loader.Load()
		}
	} else if s.cfg.LoadSolution {
		return nil, solve.ErrNoSolution
	}
	return res, nil
}

// solveLP solves the node's LP relaxation in shifted space y = x − lb ≥ 0
// and maps the solution back. Slack columns turn ≤-rows into equalities,
// GoMILP-style, so lp.Simplex's standard form applies directly.
func (s *Solver) solveLP(nd node) (x []float64, z float64, err error) {
	n := len(s.vars)

	type stdRow struct {
		coef []float64
		rhs  float64
		ineq bool // true: coef·y ≤ rhs, gets a slack column
	}
	var srows []stdRow
	addIneq := func(coef []float64, rhs float64) {
		srows = append(srows, stdRow{coef: coef, rhs: rhs, ineq: true})
	}

	shiftOf := func(coef []float64) float64 {
		var t float64
		for i, a := range coef {
			t += a * nd.lb[i]
		}
		return t
	}

	for _, r := range s.rows {
		shift := shiftOf(r.coef)
		if r.lb == r.ub && !math.IsInf(r.lb, 0) {
			srows = append(srows, stdRow{coef: r.coef, rhs: r.lb - shift})
			continue
		}
		if !math.IsInf(r.ub, 1) {
			addIneq(r.coef, r.ub-shift)
		}
		if !math.IsInf(r.lb, -1) {
			neg := make([]float64, n)
			for i, a := range r.coef {
				neg[i] = -a
			}
			addIneq(neg, shift-r.lb)
		}
	}
	for i := range s.vars {
		if math.IsInf(nd.ub[i], 1) {
			continue
		}
		coef := make([]float64, n)
		coef[i] = 1
		addIneq(coef, nd.ub[i]-nd.lb[i])
	}

	nSlack := 0
	for _, r := range srows {
		if r.ineq {
			nSlack++
		}
	}
	cols := n + nSlack
	c := make([]float64, cols)
	copy(c, s.obj)

	if len(srows) == 0 {
		// Only y ≥ 0 remains: bounded iff no negative objective direction.
		for i := range c[:n] {
			if c[i] < 0 {
				return nil, 0, lp.ErrUnbounded
			}
		}
		x = append([]float64(nil), nd.lb...)
		return x, s.objValue(x), nil
	}

	a := mat.NewDense(len(srows), cols, nil)
	b := make([]float64, len(srows))
	slack := n
	for ri, r := range srows {
		for i, v := range r.coef {
			a.Set(ri, i, v)
		}
		if r.ineq {
			a.Set(ri, slack, 1)
			slack++
		}
		b[ri] = r.rhs
	}

	_, y, err := lp.Simplex(c, a, b, 0, nil)
	if err != nil {
		return nil, 0, err
	}
	x = make([]float64, n)
	for i := range x {
		x[i] = y[i] + nd.lb[i]
	}
	return x, s.objValue(x), nil
}

// objValue evaluates the internal (minimization) objective at x.
func (s *Solver) objValue(x []float64) float64 {
	z := s.objC
	for i, a := range s.obj {
		z += a * x[i]
	}
	return z
}
