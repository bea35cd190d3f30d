// Package stub provides a swappable in-process Solver for tests: it
// returns a pre-configured solution and records every auction it is
// offered for later inspection.
package stub

import (
	"context"
	"sync"
	"time"

	"auction-engine/internal/domain"
	"auction-engine/internal/solver"
)

// Solver implements solver.Solver with canned behavior.
type Solver struct {
	SolverName    string
	SolverAccount domain.Address
	Merge         bool

	// Delay is imposed before responding; combined with a short round
	// deadline it simulates a solver that never answers in time.
	Delay time.Duration
	// Err, when set, is returned from every Solve call.
	Err error

	mu       sync.Mutex
	solution *domain.Solution
	auctions []*domain.Auction
}

var _ solver.Solver = (*Solver)(nil)

// New creates a stub solver with no solution configured.
func New(name string, account domain.Address) *Solver {
	return &Solver{SolverName: name, SolverAccount: account}
}

func (s *Solver) Name() string            { return s.SolverName }
func (s *Solver) Account() domain.Address { return s.SolverAccount }
func (s *Solver) MergeSolutions() bool    { return s.Merge }

// ConfigureSolution sets the solution returned by subsequent Solve
// calls. Pass nil to make the solver decline.
func (s *Solver) ConfigureSolution(solution *domain.Solution) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.solution = solution
}

// Auctions returns a copy of every auction the solver has received.
func (s *Solver) Auctions() []*domain.Auction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*domain.Auction(nil), s.auctions...)
}

// Solve records the auction and returns the canned solution, honoring
// Delay and the context deadline.
func (s *Solver) Solve(ctx context.Context, auction *domain.Auction) (*domain.Solution, error) {
	s.mu.Lock()
	s.auctions = append(s.auctions, auction)
	solution := s.solution
	err := s.Err
	s.mu.Unlock()

	if s.Delay > 0 {
		select {
		case <-time.After(s.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return solution, nil
}
