// Package solve defines the contract between the multitree engine and its
// two solver backends: a MIP solver for the piecewise/convex relaxation and
// an NLP solver for the fixed-discrete sub-problems.
//
// A backend is bound to one model with SetInstance and then solved
// repeatedly; between solves the engine mutates the model in place (bounds,
// fixing, new cuts) and the backend re-synchronizes according to its
// UpdateConfig flags. AddConstraints injects new rows without a full
// rebuild — the efficiency contract the outer-approximation loop relies on.
//
// Results report a termination status plus optional primal objective,
// objective bound, and a SolutionLoader for retrieving variable values.
// Nil objective pointers mean "not available", never "zero".
package solve
