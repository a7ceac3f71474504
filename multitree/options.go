package multitree

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mintreelabs/mintree/solve"
)

// ErrNilBackend is returned by New when a required backend is nil.
var ErrNilBackend = fmt.Errorf("multitree: %w", errNilBackend)
var errNilBackend = fmt.Errorf("nil solver backend")

// ErrBadTolerance is returned when a tolerance option is not positive.
var ErrBadTolerance = fmt.Errorf("multitree: %w", errBadTolerance)
var errBadTolerance = fmt.Errorf("tolerance must be positive")

// ErrBadLimit is returned when a budget or cap option is out of range.
var ErrBadLimit = fmt.Errorf("multitree: %w", errBadLimit)
var errBadLimit = fmt.Errorf("limit out of range")

// ErrNoFeasibleSolution is returned when a solution load is requested but
// the run found no feasible point. Disable LoadSolution and inspect the
// termination status instead.
var ErrNoFeasibleSolution = fmt.Errorf("multitree: %w", solve.ErrNoSolution)

// Options configures one Solver. Zero values are not serviceable; start
// from DefaultOptions and override.
type Options struct {
	// FeasibilityTol is the constraint violation below which a relaxation
	// solution counts as feasible for the original model.
	FeasibilityTol float64

	// IntegerTol is how far a discrete variable's value may sit from an
	// integer and still be accepted by a primal-bound update.
	IntegerTol float64

	// AbsGap and RelGap close the run when the primal/dual gap drops to
	// either threshold.
	AbsGap float64
	RelGap float64

	// TimeLimit is the wall-clock budget for the whole run.
	TimeLimit time.Duration

	// MaxIter caps the combined count of relaxation and NLP solves.
	MaxIter int

	// MaxPartitionsPerIter caps how many piecewise terms are refined per
	// partitioning step.
	MaxPartitionsPerIter int

	// RootOBBTMaxIter is the number of OBBT passes in the root tightening
	// phase; zero disables the phase.
	RootOBBTMaxIter int

	// OACutIterations caps each outer-approximation cut loop.
	OACutIterations int

	// LoadSolution writes the incumbent into the original model's
	// variables after the run; with no feasible point the run reports
	// ErrNoFeasibleSolution instead.
	LoadSolution bool

	// OBBTSolver is the backend used by root tightening; nil selects the
	// configured MIP backend.
	OBBTSolver solve.Solver

	// Logger receives the per-iteration progress table; nil means no
	// logging.
	Logger *zap.Logger
}

// DefaultOptions returns the standard configuration.
func DefaultOptions() Options {
	return Options{
		FeasibilityTol:       1e-6,
		IntegerTol:           1e-6,
		AbsGap:               1e-4,
		RelGap:               1e-3,
		TimeLimit:            600 * time.Second,
		MaxIter:              100,
		MaxPartitionsPerIter: 100000,
		RootOBBTMaxIter:      3,
		OACutIterations:      100,
	}
}

func (o *Options) validate() error {
	switch {
	case o.FeasibilityTol <= 0:
		return fmt.Errorf("%w: FeasibilityTol %v", ErrBadTolerance, o.FeasibilityTol)
	case o.IntegerTol <= 0:
		return fmt.Errorf("%w: IntegerTol %v", ErrBadTolerance, o.IntegerTol)
	case o.AbsGap <= 0:
		return fmt.Errorf("%w: AbsGap %v", ErrBadTolerance, o.AbsGap)
	case o.RelGap <= 0:
		return fmt.Errorf("%w: RelGap %v", ErrBadTolerance, o.RelGap)
	case o.TimeLimit <= 0:
		return fmt.Errorf("%w: TimeLimit %v", ErrBadLimit, o.TimeLimit)
	case o.MaxIter < 0:
		return fmt.Errorf("%w: MaxIter %d", ErrBadLimit, o.MaxIter)
	case o.MaxPartitionsPerIter < 1:
		return fmt.Errorf("%w: MaxPartitionsPerIter %d", ErrBadLimit, o.MaxPartitionsPerIter)
	case o.RootOBBTMaxIter < 0:
		return fmt.Errorf("%w: RootOBBTMaxIter %d", ErrBadLimit, o.RootOBBTMaxIter)
	case o.OACutIterations < 1:
		return fmt.Errorf("%w: OACutIterations %d", ErrBadLimit, o.OACutIterations)
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return nil
}
