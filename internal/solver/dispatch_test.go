package solver_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"auction-engine/internal/domain"
	"auction-engine/internal/solver"
	"auction-engine/internal/solver/stub"
)

func testAuction() *domain.Auction {
	return &domain.Auction{ID: 42}
}

func TestDispatchCollectsAllResponses(t *testing.T) {
	fast := stub.New("fast", "acc-fast")
	fast.ConfigureSolution(&domain.Solution{ID: 1})
	declines := stub.New("declines", "acc-declines")

	subs := solver.Dispatch(context.Background(),
		[]solver.Solver{fast, declines}, testAuction(), time.Second, nil, zerolog.Nop())

	if len(subs) != 1 {
		t.Fatalf("submissions = %d, want 1", len(subs))
	}
	if subs[0].Solver != "fast" {
		t.Fatalf("submission from %q, want fast", subs[0].Solver)
	}
}

func TestDispatchDiscardsLateSolvers(t *testing.T) {
	fast := stub.New("fast", "acc-fast")
	fast.ConfigureSolution(&domain.Solution{ID: 1})

	slow := stub.New("slow", "acc-slow")
	slow.Delay = 5 * time.Second
	slow.ConfigureSolution(&domain.Solution{ID: 2})

	started := time.Now()
	subs := solver.Dispatch(context.Background(),
		[]solver.Solver{fast, slow}, testAuction(), 100*time.Millisecond, nil, zerolog.Nop())

	if elapsed := time.Since(started); elapsed > time.Second {
		t.Fatalf("dispatch took %v, deadline not enforced", elapsed)
	}
	if len(subs) != 1 || subs[0].Solver != "fast" {
		t.Fatalf("submissions = %+v, want only fast", subs)
	}
}

func TestDispatchSurvivesSolverErrors(t *testing.T) {
	broken := stub.New("broken", "acc-broken")
	broken.Err = errors.New("connection refused")

	ok := stub.New("ok", "acc-ok")
	ok.ConfigureSolution(&domain.Solution{ID: 3})

	subs := solver.Dispatch(context.Background(),
		[]solver.Solver{broken, ok}, testAuction(), time.Second, nil, zerolog.Nop())

	if len(subs) != 1 || subs[0].Solver != "ok" {
		t.Fatalf("submissions = %+v, want only ok", subs)
	}
}

func TestDispatchOrderIsDeterministic(t *testing.T) {
	var solvers []solver.Solver
	for _, name := range []string{"zeta", "alpha", "mid"} {
		s := stub.New(name, domain.Address("acc-"+name))
		s.ConfigureSolution(&domain.Solution{ID: 1})
		solvers = append(solvers, s)
	}

	subs := solver.Dispatch(context.Background(), solvers, testAuction(), time.Second, nil, zerolog.Nop())

	want := []string{"alpha", "mid", "zeta"}
	if len(subs) != len(want) {
		t.Fatalf("submissions = %d, want %d", len(subs), len(want))
	}
	for i, name := range want {
		if subs[i].Solver != name {
			t.Fatalf("subs[%d].Solver = %q, want %q", i, subs[i].Solver, name)
		}
	}
}

func TestDispatchPassesAuctionThrough(t *testing.T) {
	s := stub.New("observer", "acc-observer")
	auction := testAuction()

	solver.Dispatch(context.Background(), []solver.Solver{s}, auction, time.Second, nil, zerolog.Nop())

	got := s.Auctions()
	if len(got) != 1 || got[0].ID != auction.ID {
		t.Fatalf("solver saw %+v, want auction %d", got, auction.ID)
	}
}
