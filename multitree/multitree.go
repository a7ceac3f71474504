package multitree

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/mintreelabs/mintree/expr"
	"github.com/mintreelabs/mintree/model"
	"github.com/mintreelabs/mintree/relax"
	"github.com/mintreelabs/mintree/solve"
	"github.com/mintreelabs/mintree/tighten"
)

// Solver alternates between a MIP backend solving a piecewise/convex
// relaxation and an NLP backend solving the original nonlinearities with
// discrete variables fixed, tightening the relaxation in between with
// outer-approximation cuts and adaptive partitioning.
//
// A Solver instance is not safe for concurrent or overlapping Solve
// calls; serialize them.
type Solver struct {
	mip  solve.Solver
	nlp  solve.Solver
	opts Options
	log  *zap.Logger

	original *model.Model
	nlpProb  *relax.Problem
	relProb  *relax.Problem

	// relToNLP maps relaxation-model vars to NLP-model vars; nlpToOrig
	// maps NLP-model vars to the caller's vars. Both are built once at
	// construction and read-only afterwards.
	relToNLP  model.VarMap
	nlpToOrig model.VarMap

	objective *model.Objective
	discrete  []*expr.Var

	tracker  tracker
	stop     solve.Termination
	stopSet  bool
	nlpTerm  solve.Termination
	relTerm  solve.Termination
	iter     int
	start    time.Time
}

// New returns a Solver over the two backends. The MIP backend must accept
// the linear relaxation model; the NLP backend the nonlinear one.
func New(mip, nlp solve.Solver, opts *Options) (*Solver, error) {
	if mip == nil || nlp == nil {
		return nil, ErrNilBackend
	}
	o := DefaultOptions()
	if opts != nil {
		o = *opts
	}
	if err := o.validate(); err != nil {
		return nil, err
	}
	return &Solver{mip: mip, nlp: nlp, opts: o, log: o.Logger}, nil
}

func (s *Solver) elapsed() time.Duration { return time.Since(s.start) }

// remaining is the wall-clock budget left for the next backend call,
// floored at zero.
func (s *Solver) remaining() time.Duration {
	r := s.opts.TimeLimit - s.elapsed()
	if r < 0 {
		r = 0
	}
	return r
}

func (s *Solver) flagStop(reason solve.Termination) {
	if !s.stopSet {
		s.stop = reason
		s.stopSet = true
	}
}

// shouldTerminate decides whether the run is over and with which status.
// First match wins: time limit, iteration limit, a recorded stop reason,
// absolute gap, relative gap. The bound soundness invariant is asserted on
// every call.
func (s *Solver) shouldTerminate() (bool, solve.Termination) {
	if s.elapsed() >= s.opts.TimeLimit {
		return true, solve.TimeLimit
	}
	if s.iter >= s.opts.MaxIter {
		return true, solve.IterationLimit
	}
	if s.stopSet {
		return true, s.stop
	}
	s.tracker.assertSound()
	absGap, relGap := s.tracker.gap()
	if absGap <= s.opts.AbsGap {
		return true, solve.Optimal
	}
	if relGap <= s.opts.RelGap {
		return true, solve.Optimal
	}
	return false, solve.Unknown
}

// constraintViolation is the worst deviation across all relaxation terms
// at the relaxation model's current point.
func (s *Solver) constraintViolation() float64 {
	worst := 0.0
	for _, r := range s.relProb.Relaxations {
		if d := r.Deviation(); d > worst {
			worst = d
		}
	}
	return worst
}

func (s *Solver) logProgress() {
	absGap, relGap := s.tracker.gap()
	viol := math.Inf(1)
	if s.tracker.bestBound != nil {
		viol = s.constraintViolation()
	}
	s.log.Info("progress",
		zap.Int("iter", s.iter),
		zap.Float64("primal", s.tracker.primalBound()),
		zap.Float64("dual", s.tracker.dualBound()),
		zap.Float64("abs_gap", absGap),
		zap.Float64("rel_gap", relGap),
		zap.Float64("constr_viol", viol),
		zap.Duration("elapsed", s.elapsed()),
		zap.Stringer("nlp", s.nlpTerm),
		zap.Stringer("rel", s.relTerm),
	)
}

// solveRelaxation drives one MIP solve of the relaxation with the
// remaining time budget and folds the result into the bound tracker. Any
// backend status outside the tolerated set flags a stop for the next
// termination check.
func (s *Solver) solveRelaxation() *solve.Result {
	s.iter++
	cfg := s.mip.Config()
	cfg.TimeLimit = s.remaining()
	cfg.LoadSolution = false
	cfg.MIPGap = s.opts.RelGap
	res, err := s.mip.Solve()
	if err != nil {
		s.log.Warn("relaxation backend failed", zap.Error(err))
		s.relTerm = solve.Error
		s.flagStop(solve.Error)
		return nil
	}

	if res.BestFeasibleObjective != nil && res.Loader != nil {
		res.Loader.Load()
	}
	s.absorbRelaxationResult(res)
	s.logProgress()

	switch res.Termination {
	case solve.Optimal, solve.TimeLimit, solve.IterationLimit,
		solve.ObjectiveLimit, solve.Interrupted:
	default:
		s.flagStop(res.Termination)
	}
	s.relTerm = res.Termination
	return res
}

// absorbRelaxationResult updates the dual bound and, when the relaxation
// point happens to satisfy the original nonlinearities and integrality,
// promotes it to a primal update through the NLP model.
func (s *Solver) absorbRelaxationResult(res *solve.Result) {
	if res.BestObjectiveBound != nil {
		s.tracker.updateDual(*res.BestObjectiveBound)
	}
	if res.BestFeasibleObjective == nil {
		return
	}
	maxViol := s.constraintViolation()
	if !s.tracker.admissible(maxViol, s.opts.FeasibilityTol, s.opts.IntegerTol, s.discrete) {
		return
	}
	for relV, nlpV := range s.relToNLP {
		nlpV.Value = relV.Value
	}
	s.updatePrimal(*res.BestFeasibleObjective)
}

// updatePrimal records obj with the incumbent read off the NLP model's
// current values, mapped back to the caller's variables.
func (s *Solver) updatePrimal(obj float64) {
	point := make(map[*expr.Var]float64, len(s.nlpToOrig))
	for nlpV, origV := range s.nlpToOrig {
		point[origV] = nlpV.Value
	}
	s.tracker.updatePrimal(obj, point)
}

// nlpInputsFromRelaxation reads the discrete values and the active
// piecewise partitions off the relaxation model's current point, for the
// NLP fixing step.
func (s *Solver) nlpInputsFromRelaxation() (map[*expr.Var]float64, map[*expr.Var]relax.PartitionInterval) {
	intVals := make(map[*expr.Var]float64, len(s.discrete))
	for _, v := range s.discrete {
		intVals[v] = v.Value
	}
	parts := make(map[*expr.Var]relax.PartitionInterval)
	for _, r := range s.relProb.Relaxations {
		unbounded := false
		for _, v := range r.RHSVars() {
			if !v.Bounded() {
				unbounded = true
				break
			}
		}
		if unbounded {
			continue
		}
		for v, seg := range r.ActivePartitions() {
			if prev, ok := parts[v]; ok {
				seg = relax.PartitionInterval{
					Lo: math.Max(seg.Lo, prev.Lo),
					Hi: math.Min(seg.Hi, prev.Hi),
				}
			}
			if seg.Lo > seg.Hi {
				panic(fmt.Sprintf("multitree: empty active partition for %q", v.Name))
			}
			parts[v] = seg
		}
	}
	return intVals, parts
}

// solveNLPWithFixedVars fixes the discrete variables at their rounded
// relaxation values, narrows the partitioned continuous variables to
// their active segments, and solves the nonlinear model on that box. All
// bound, fixing, and activation mutations are scoped to this call.
func (s *Solver) solveNLPWithFixedVars(intVals map[*expr.Var]float64, parts map[*expr.Var]relax.PartitionInterval) *solve.Result {
	s.iter++
	m := s.nlpProb.Model
	guard := snapshotModel(m)
	defer guard.restore()

	for _, v := range s.discrete {
		if v.Fixed() {
			continue
		}
		val := intVals[v]
		if math.Abs(val-math.Round(val)) > 1e-6*math.Max(1, math.Abs(val)) {
			panic(fmt.Sprintf("multitree: discrete variable %q far from integer: %v", v.Name, val))
		}
		s.relToNLP[v].Fix(math.Round(val))
	}
	for v, seg := range parts {
		if v.Fixed() {
			continue
		}
		nlpV := s.relToNLP[v]
		nlpV.LB, nlpV.UB = seg.Lo, seg.Hi
	}

	activeBefore := m.ActiveConstraints()

	res := &solve.Result{}
	err := tighten.FBBT(m, &tighten.FBBTOptions{
		MaxPasses:                      10,
		FeasibilityTol:                 s.opts.FeasibilityTol,
		DeactivateSatisfiedConstraints: true,
	})
	switch {
	case errors.Is(err, tighten.ErrInfeasible):
		s.log.Debug("fixed NLP proven infeasible by bound propagation")
		res.Termination = solve.Infeasible
	case err != nil:
		s.log.Warn("bound propagation failed", zap.Error(err))
		res.Termination = solve.Error
	default:
		res = s.solveTightenedNLP(m, activeBefore)
	}

	s.nlpTerm = res.Termination
	if res.BestFeasibleObjective != nil {
		s.updatePrimal(*res.BestFeasibleObjective)
	}
	s.logProgress()
	return res
}

// solveTightenedNLP finishes the fixing step after a successful FBBT:
// degenerate boxes are fixed at their midpoint, a fully determined model
// is evaluated directly, anything else goes to the NLP backend.
func (s *Solver) solveTightenedNLP(m *model.Model, activeBefore []*model.Constraint) *solve.Result {
	anyUnfixed := false
	for _, v := range m.Vars() {
		if v.Fixed() {
			continue
		}
		if v.Bounded() {
			mid := 0.5 * (v.LB + v.UB)
			if v.UB-v.LB <= 1e-12*math.Max(1, math.Abs(v.UB)) {
				v.Fix(mid)
				continue
			}
			v.Value = mid
		}
		anyUnfixed = true
	}

	if !anyUnfixed {
		// Everything is pinned down, so propagation must have discharged
		// every constraint; a live one here is a bug.
		for _, c := range activeBefore {
			if c.Active() {
				panic(fmt.Sprintf("multitree: constraint %q still active in fully determined model", c.Name))
			}
		}
		obj := m.Objective().Expr.Eval()
		loader := make(solve.MapLoader, len(m.Vars()))
		for _, v := range m.Vars() {
			loader[v] = v.Value
		}
		return &solve.Result{
			Termination:           solve.Optimal,
			BestFeasibleObjective: solve.Float(obj),
			BestObjectiveBound:    solve.Float(obj),
			Loader:                loader,
		}
	}

	cfg := s.nlp.Config()
	cfg.TimeLimit = s.remaining()
	cfg.LoadSolution = false
	res, err := s.nlp.Solve()
	if err != nil {
		s.log.Warn("NLP backend failed", zap.Error(err))
		return &solve.Result{Termination: solve.Error}
	}
	if res.BestFeasibleObjective != nil && res.Loader != nil {
		res.Loader.Load()
	}
	return res
}

// oaCutHelper asks every relaxation term for a violated linearization cut
// at the current point and injects the new rows into the MIP backend.
// Cuts are permanent; they are never removed.
func (s *Solver) oaCutHelper(tol float64) []*model.Constraint {
	var newCons []*model.Constraint
	for _, r := range s.relProb.Relaxations {
		if c := r.AddCut(true, true, tol); c != nil {
			newCons = append(newCons, c)
		}
	}
	if len(newCons) > 0 {
		if err := s.mip.AddConstraints(newCons); err != nil {
			s.log.Warn("cut injection failed", zap.Error(err))
			s.flagStop(solve.Error)
		}
	}
	return newCons
}

// addOACuts alternates relaxation solves and cut generation until a pass
// produces no new cut, the cap is hit, or termination fires. The MIP
// backend's update tracking is narrowed for the duration and restored on
// every exit path. The returned result is the best relaxation outcome
// observed, with a loader scoped to the discrete variables.
func (s *Solver) addOACuts(tol float64, maxIter int) *solve.Result {
	saved := *s.mip.UpdateConfig()
	defer func() { *s.mip.UpdateConfig() = saved }()

	if err := s.mip.Update(); err != nil {
		s.log.Warn("relaxation resync failed", zap.Error(err))
		s.flagStop(solve.Error)
		return &solve.Result{}
	}
	*s.mip.UpdateConfig() = solve.UpdateConfig{TreatFixedVarsAsParams: true}

	var last *solve.Result
	for i := 0; i < maxIter; i++ {
		if stop, _ := s.shouldTerminate(); stop {
			break
		}
		res := s.solveRelaxation()
		if res != nil && res.BestFeasibleObjective != nil && res.Loader != nil {
			last = &solve.Result{
				Termination:           res.Termination,
				BestFeasibleObjective: res.BestFeasibleObjective,
				BestObjectiveBound:    res.BestObjectiveBound,
				Loader:                solve.MapLoader(res.Loader.Primals(s.discrete)),
			}
		}
		if stop, _ := s.shouldTerminate(); stop {
			break
		}
		if len(s.oaCutHelper(tol)) == 0 {
			break
		}
	}
	if last == nil {
		last = &solve.Result{}
	}
	return last
}

// partitionStep refines the piecewise relaxations where the current point
// violates a side the term cannot already certify, most-violated first,
// capped at MaxPartitionsPerIter. A term over an unbounded variable is a
// configuration fault: convergence needs bounded domains.
func (s *Solver) partitionStep() {
	type deviation struct {
		r   relax.Relaxation
		dev float64
	}
	var devs []deviation

	for _, r := range s.relProb.Relaxations {
		for _, v := range r.RHSVars() {
			if !v.Bounded() {
				s.log.Error("unbounded variable in a relaxed term; the algorithm requires bounded domains",
					zap.String("var", v.Name))
				s.flagStop(solve.Error)
				return
			}
		}
		auxVal := r.AuxVar().Value
		rhsVal := r.RHSExpr().Eval()
		side := r.Side()
		switch {
		case auxVal > rhsVal+s.opts.FeasibilityTol && side.HasOver() && !r.IsRHSConcave():
			devs = append(devs, deviation{r: r, dev: auxVal - rhsVal})
		case auxVal < rhsVal-s.opts.FeasibilityTol && side.HasUnder() && !r.IsRHSConvex():
			devs = append(devs, deviation{r: r, dev: rhsVal - auxVal})
		}
	}

	// Stable sort keeps enumeration order on ties.
	sort.SliceStable(devs, func(i, j int) bool { return devs[i].dev > devs[j].dev })
	if len(devs) > s.opts.MaxPartitionsPerIter {
		devs = devs[:s.opts.MaxPartitionsPerIter]
	}
	for _, d := range devs {
		d.r.AddPartitionPoint()
		d.r.Rebuild(false)
	}
}

// rootTightening runs the root OBBT phase: discrete variables relaxed,
// OBBT passes with the incumbent objective as cutoff, every relaxation
// rebuilt after each pass since α and the surrogates depend on bounds.
func (s *Solver) rootTightening() {
	if s.opts.RootOBBTMaxIter == 0 {
		return
	}
	backend := s.opts.OBBTSolver
	if backend == nil {
		backend = s.mip
	}
	m := s.relProb.Model
	vars := tighten.VarsToTighten(m)
	saved := pushIntegers(s.discrete)
	defer popIntegers(saved)

	for pass := 0; pass < s.opts.RootOBBTMaxIter; pass++ {
		err := tighten.OBBT(backend, m, vars, &tighten.OBBTOptions{
			ObjectiveCutoff: s.tracker.bestFeasible,
			TimeLimit:       s.remaining(),
		})
		if err != nil {
			s.log.Warn("root tightening pass failed", zap.Int("pass", pass), zap.Error(err))
			break
		}
		s.relProb.RebuildAll(false)
	}
}

// isProblemDefinitelyConvex reports whether every relaxed term is exact on
// the one side it must honor, making the relaxation-vs-NLP gap purely an
// OA linearization gap.
func (s *Solver) isProblemDefinitelyConvex() bool {
	for _, r := range s.relProb.Relaxations {
		switch r.Side() {
		case relax.Both:
			return false
		case relax.Under:
			if !r.IsRHSConvex() {
				return false
			}
		case relax.Over:
			if !r.IsRHSConcave() {
				return false
			}
		}
	}
	return true
}

// results assembles the caller-facing outcome from the tracker state. The
// loader exposes original-model variables.
func (s *Solver) results(reason solve.Termination) (*solve.Result, error) {
	res := &solve.Result{Termination: reason, Wallclock: s.elapsed()}
	res.BestFeasibleObjective = s.tracker.bestFeasible
	res.BestObjectiveBound = s.tracker.bestBound
	if s.tracker.bestFeasible != nil {
		res.Loader = solve.MapLoader(s.tracker.incumbent)
	}
	if s.opts.LoadSolution {
		if res.BestFeasibleObjective == nil {
			return res, ErrNoFeasibleSolution
		}
		if res.Termination != solve.Optimal {
			s.log.Warn("loading a feasible but potentially sub-optimal solution; check the termination status")
		}
		res.Loader.Load()
	}
	return res, nil
}

func (s *Solver) reinit() {
	s.original = nil
	s.nlpProb = nil
	s.relProb = nil
	s.relToNLP = nil
	s.nlpToOrig = nil
	s.objective = nil
	s.discrete = nil
	s.tracker = tracker{}
	s.stop = solve.Unknown
	s.stopSet = false
	s.nlpTerm = solve.Unknown
	s.relTerm = solve.Unknown
	s.iter = 0
}

// construct builds the two working models: the NLP clone with exact
// nonlinear constraints plus relaxation bookkeeping, and a further clone
// with every term instantiated as its linear surrogate for the MIP.
func (s *Solver) construct(m *model.Model) error {
	nlpProb, nlpToOrig, err := relax.Build(m, &relax.BuildOptions{
		FBBT:           true,
		FBBTMaxPasses:  2,
		FeasibilityTol: s.opts.FeasibilityTol,
	})
	if err != nil {
		return err
	}
	nlpProb.RebuildAll(true)

	relProb, relToNLP := nlpProb.Clone(m.Name + "_mip")
	relProb.RebuildAll(false)

	s.nlpProb = nlpProb
	s.relProb = relProb
	s.nlpToOrig = nlpToOrig
	s.relToNLP = relToNLP
	s.objective = relProb.Model.Objective()
	s.tracker.maximize = s.objective.Sense == model.Maximize
	for _, v := range relProb.Model.DiscreteVars() {
		if !v.Fixed() {
			s.discrete = append(s.discrete, v)
		}
	}
	return nil
}

// Solve runs the full multi-tree algorithm on m. The model itself is
// never mutated unless LoadSolution writes the incumbent back at the end.
// All run state is reset on entry, so a Solver can be reused sequentially.
func (s *Solver) Solve(m *model.Model) (*solve.Result, error) {
	s.reinit()
	s.start = time.Now()
	s.original = m

	if err := s.construct(m); err != nil {
		if errors.Is(err, tighten.ErrInfeasible) {
			return &solve.Result{Termination: solve.Infeasible, Wallclock: s.elapsed()}, nil
		}
		return nil, err
	}

	if stop, reason := s.shouldTerminate(); stop {
		return s.results(reason)
	}

	if err := s.mip.SetInstance(s.relProb.Model); err != nil {
		return nil, fmt.Errorf("multitree: binding MIP backend: %w", err)
	}
	if err := s.nlp.SetInstance(s.nlpProb.Model); err != nil {
		return nil, fmt.Errorf("multitree: binding NLP backend: %w", err)
	}

	// Root OA: cheap loose passes on the continuous relaxation first, then
	// either a tight pass (provably convex) or a short loose one.
	saved := pushIntegers(s.discrete)
	oaRes := s.addOACuts(s.opts.FeasibilityTol*100, s.opts.OACutIterations)
	popIntegers(saved)

	if stop, reason := s.shouldTerminate(); stop {
		return s.results(reason)
	}

	if s.isProblemDefinitelyConvex() {
		oaRes = s.addOACuts(s.opts.FeasibilityTol, s.opts.OACutIterations)
	} else {
		oaRes = s.addOACuts(s.opts.FeasibilityTol*1e3, 3)
	}

	if stop, reason := s.shouldTerminate(); stop {
		return s.results(reason)
	}

	if oaRes.BestFeasibleObjective != nil {
		intVals, parts := s.nlpInputsFromRelaxation()
		s.solveNLPWithFixedVars(intVals, parts)
	}

	s.rootTightening()

	var reason solve.Termination
	for {
		var stop bool
		if stop, reason = s.shouldTerminate(); stop {
			break
		}
		relRes := s.solveRelaxation()
		if stop, reason = s.shouldTerminate(); stop {
			break
		}
		if relRes == nil || relRes.BestFeasibleObjective == nil {
			s.log.Warn("relaxation found no feasible point", zap.Stringer("status", s.relTerm))
			continue
		}
		intVals, parts := s.nlpInputsFromRelaxation()
		s.solveNLPWithFixedVars(intVals, parts)
		s.oaCutHelper(s.opts.FeasibilityTol)
		s.partitionStep()
	}

	return s.results(reason)
}
