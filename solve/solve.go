package solve

import (
	"fmt"
	"time"

	"github.com/mintreelabs/mintree/expr"
	"github.com/mintreelabs/mintree/model"
)

// ErrNoInstance is returned when Solve is called before SetInstance.
var ErrNoInstance = fmt.Errorf("solve: %w", errNoInstance)
var errNoInstance = fmt.Errorf("no model instance bound; call SetInstance first")

// ErrNoSolution is returned when a solution load is requested but the
// solver holds no feasible solution.
var ErrNoSolution = fmt.Errorf("solve: %w", errNoSolution)
var errNoSolution = fmt.Errorf("no feasible solution available; check the termination status before loading")

// Termination is the status a backend reports after a solve.
type Termination int

const (
	// Unknown means the solve has not produced a classified outcome.
	Unknown Termination = iota
	// Optimal means the backend proved optimality within its gap settings.
	Optimal
	// Infeasible means the backend proved the model has no feasible point.
	Infeasible
	// Unbounded means the objective is unbounded in the optimization sense.
	Unbounded
	// TimeLimit means the time budget expired first.
	TimeLimit
	// IterationLimit means a node or iteration cap expired first.
	IterationLimit
	// ObjectiveLimit means an objective cutoff stopped the solve.
	ObjectiveLimit
	// Interrupted means the caller interrupted the solve.
	Interrupted
	// Error means the backend failed internally.
	Error
)

func (t Termination) String() string {
	switch t {
	case Unknown:
		return "unknown"
	case Optimal:
		return "optimal"
	case Infeasible:
		return "infeasible"
	case Unbounded:
		return "unbounded"
	case TimeLimit:
		return "time-limit"
	case IterationLimit:
		return "iteration-limit"
	case ObjectiveLimit:
		return "objective-limit"
	case Interrupted:
		return "interrupted"
	case Error:
		return "error"
	}
	return fmt.Sprintf("Termination(%d)", int(t))
}

// SolutionLoader retrieves and applies values of a solved point.
type SolutionLoader interface {
	// Primals returns the solved values for vars; a nil vars slice selects
	// every variable the loader knows about.
	Primals(vars []*expr.Var) map[*expr.Var]float64
	// Load writes the solved values into the variables.
	Load()
}

// MapLoader is a SolutionLoader backed by a plain map.
type MapLoader map[*expr.Var]float64

// Primals returns the stored values for vars, or a copy of the whole map
// when vars is nil. Variables unknown to the loader are skipped.
func (ml MapLoader) Primals(vars []*expr.Var) map[*expr.Var]float64 {
	if vars == nil {
		out := make(map[*expr.Var]float64, len(ml))
		for v, val := range ml {
			out[v] = val
		}
		return out
	}
	out := make(map[*expr.Var]float64, len(vars))
	for _, v := range vars {
		if val, ok := ml[v]; ok {
			out[v] = val
		}
	}
	return out
}

// Load writes every stored value into its variable.
func (ml MapLoader) Load() {
	for v, val := range ml {
		v.Value = val
	}
}

// Result is the outcome of one backend solve.
type Result struct {
	Termination Termination

	// BestFeasibleObjective is the objective of the best feasible point
	// found, or nil when none exists.
	BestFeasibleObjective *float64

	// BestObjectiveBound is the best proven bound on the optimal
	// objective, or nil when none is known.
	BestObjectiveBound *float64

	// Loader exposes the best feasible point; nil when none exists.
	Loader SolutionLoader

	// Wallclock is the time spent in the solve.
	Wallclock time.Duration
}

// Float returns a pointer to v, for filling the optional Result fields.
func Float(v float64) *float64 { return &v }

// Config carries the per-solve settings a caller controls.
type Config struct {
	// TimeLimit bounds the solve's wall-clock time; zero means no limit.
	TimeLimit time.Duration
	// LoadSolution requests that the backend write the solution into the
	// model's variables automatically after a successful solve.
	LoadSolution bool
	// MIPGap is the relative optimality gap at which a MIP backend may
	// declare a solve optimal.
	MIPGap float64
}

// UpdateConfig controls which aspects of the bound model a backend
// re-synchronizes before a solve. Disabling flags skips work the caller
// knows is unnecessary; it never changes the meaning of a correct solve.
type UpdateConfig struct {
	UpdateVars             bool
	UpdateConstraints      bool
	UpdateObjective        bool
	UpdateParams           bool
	CheckForNewConstraints bool
	CheckForNewVars        bool
	TreatFixedVarsAsParams bool
}

// DefaultUpdateConfig returns the full-resync configuration.
func DefaultUpdateConfig() UpdateConfig {
	return UpdateConfig{
		UpdateVars:             true,
		UpdateConstraints:      true,
		UpdateObjective:        true,
		UpdateParams:           true,
		CheckForNewConstraints: true,
		CheckForNewVars:        true,
		TreatFixedVarsAsParams: true,
	}
}

// Solver is the persistent backend contract.
type Solver interface {
	// SetInstance binds the solver to a model; one-time setup.
	SetInstance(m *model.Model) error
	// Solve runs a synchronous solve honoring Config.
	Solve() (*Result, error)
	// Config returns the mutable per-solve settings.
	Config() *Config
	// UpdateConfig returns the mutable re-synchronization flags.
	UpdateConfig() *UpdateConfig
	// Update re-synchronizes the backend with the bound model according
	// to UpdateConfig.
	Update() error
	// AddConstraints injects new constraints without a full rebuild.
	AddConstraints(cons []*model.Constraint) error
}
