// Package solver defines the client interface to external solving
// engines and the concurrent per-round dispatch across them.
package solver

import (
	"context"

	"auction-engine/internal/domain"
)

// Solver is one configured external solving engine. Implementations are
// reached over a network boundary and must respect the context deadline.
// A nil solution with nil error means the solver chose not to bid.
type Solver interface {
	// Name is the stable solver identifier used for tie-breaking and
	// audit records. Unique across the configured set.
	Name() string
	// Account is the ledger account the solver settles from.
	Account() domain.Address
	// MergeSolutions reports whether the solver opted into having its
	// solutions merged with other solvers'.
	MergeSolutions() bool
	// Solve proposes at most one solution for the auction.
	Solve(ctx context.Context, auction *domain.Auction) (*domain.Solution, error)
}

// Submission pairs a solver with the solution it returned for a round.
type Submission struct {
	Solver   string
	Account  domain.Address
	Merge    bool
	Solution *domain.Solution
}
