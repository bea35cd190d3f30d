package scoring

import (
	"testing"

	"github.com/shopspring/decimal"

	"auction-engine/internal/domain"
	"auction-engine/internal/solver"
	"auction-engine/internal/testutil"
	"auction-engine/internal/validation"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// scoringAuction has two sell orders: A sells 100 TKX for at least
// 200 TKY, B sells 50 TKZ for at least 50 TKY.
func scoringAuction() *domain.Auction {
	return &domain.Auction{
		ID: 1,
		Orders: []domain.Order{
			{
				UID: "order-a", SellToken: "TKX", BuyToken: "TKY",
				SellAmount: dec("100"), BuyAmount: dec("200"),
				Kind: domain.OrderKindSell,
			},
			{
				UID: "order-b", SellToken: "TKZ", BuyToken: "TKY",
				SellAmount: dec("50"), BuyAmount: dec("50"),
				Kind: domain.OrderKindSell,
			},
		},
		Prices: map[domain.Address]decimal.Decimal{
			"TKX": dec("2"), "TKY": dec("1"), "TKZ": dec("1"),
		},
	}
}

// fulfillmentSolution clears order-a at a TKX price implying the given
// surplus in TKY reference units.
func fulfillmentSolution(order domain.OrderUID, executed string, prices map[domain.Address]decimal.Decimal) *domain.Solution {
	return &domain.Solution{
		Prices: prices,
		Trades: []domain.Trade{{Fulfillment: &domain.Fulfillment{
			Order:          order,
			ExecutedAmount: dec(executed),
		}}},
	}
}

func valid(solver string, merge bool, s *domain.Solution) validation.ValidSolution {
	return validation.ValidSolution{Solver: solver, Account: domain.Address("acc-" + solver), Merge: merge, Solution: s}
}

func TestScoreSurplusMinusCost(t *testing.T) {
	auction := scoringAuction()
	// TKX at 2.3 clears 100 TKX into 230 TKY against a 200 TKY limit:
	// 30 reference units of surplus.
	s := fulfillmentSolution("order-a", "100", map[domain.Address]decimal.Decimal{
		"TKX": dec("2.3"), "TKY": dec("1"),
	})

	got := Score(auction, s, Params{})
	if !got.Equal(dec("30")) {
		t.Fatalf("score = %s, want 30", got)
	}

	gas := dec("10")
	s.Gas = &gas
	if got := Score(auction, s, Params{DefaultCost: dec("99")}); !got.Equal(dec("20")) {
		t.Fatalf("score with gas = %s, want 20", got)
	}

	s.Gas = nil
	if got := Score(auction, s, Params{DefaultCost: dec("5")}); !got.Equal(dec("25")) {
		t.Fatalf("score with default cost = %s, want 25", got)
	}
}

func TestScoreIgnoresJITSurplus(t *testing.T) {
	auction := scoringAuction()
	s := fulfillmentSolution("order-a", "100", map[domain.Address]decimal.Decimal{
		"TKX": dec("2.3"), "TKY": dec("1"),
	})
	s.Trades = append(s.Trades, domain.Trade{JIT: &domain.JITTrade{
		Order: domain.JITOrder{
			Owner: "amm", SellToken: "TKY", BuyToken: "TKX",
			SellAmount: dec("230"), BuyAmount: dec("100"),
			Kind: domain.OrderKindSell,
		},
		ExecutedAmount: dec("230"),
	}})

	if got := Score(auction, s, Params{}); !got.Equal(dec("30")) {
		t.Fatalf("score = %s, want 30 (jit surplus excluded)", got)
	}
}

func TestSelectPicksHighestScore(t *testing.T) {
	auction := scoringAuction()
	weak := fulfillmentSolution("order-a", "100", map[domain.Address]decimal.Decimal{
		"TKX": dec("2.1"), "TKY": dec("1"),
	})
	strong := fulfillmentSolution("order-a", "100", map[domain.Address]decimal.Decimal{
		"TKX": dec("2.3"), "TKY": dec("1"),
	})

	sel := NewSelector(Params{}, false).Select(auction, []validation.ValidSolution{
		valid("weak", false, weak),
		valid("strong", false, strong),
	})
	if sel == nil || len(sel.Parts) != 1 || sel.Parts[0].Solver != "strong" {
		t.Fatalf("selection = %+v, want strong", sel)
	}
	if !sel.Score.Equal(dec("30")) {
		t.Fatalf("selection score = %s, want 30", sel.Score)
	}
}

func TestSelectIsOrderIndependent(t *testing.T) {
	auction := scoringAuction()
	a := fulfillmentSolution("order-a", "100", map[domain.Address]decimal.Decimal{
		"TKX": dec("2.2"), "TKY": dec("1"),
	})
	b := fulfillmentSolution("order-b", "50", map[domain.Address]decimal.Decimal{
		"TKZ": dec("1.4"), "TKY": dec("1"),
	})

	first := NewSelector(Params{}, false).Select(auction, []validation.ValidSolution{
		valid("alpha", false, a), valid("beta", false, b),
	})
	second := NewSelector(Params{}, false).Select(auction, []validation.ValidSolution{
		valid("beta", false, b), valid("alpha", false, a),
	})
	if first.Parts[0].Solver != second.Parts[0].Solver {
		t.Fatalf("selection depends on input order: %s vs %s",
			first.Parts[0].Solver, second.Parts[0].Solver)
	}
}

func TestSelectTieBreaks(t *testing.T) {
	auction := scoringAuction()
	prices := map[domain.Address]decimal.Decimal{"TKX": dec("2.3"), "TKY": dec("1")}

	t.Run("more trades wins at equal score", func(t *testing.T) {
		single := fulfillmentSolution("order-a", "100", prices)
		double := fulfillmentSolution("order-a", "100", prices)
		// Second trade at exactly limit adds no score but counts.
		double.Trades = append(double.Trades, domain.Trade{Fulfillment: &domain.Fulfillment{
			Order: "order-b", ExecutedAmount: dec("50"),
		}})
		double.Prices = map[domain.Address]decimal.Decimal{
			"TKX": dec("2.3"), "TKY": dec("1"), "TKZ": dec("1"),
		}

		sel := NewSelector(Params{}, false).Select(auction, []validation.ValidSolution{
			valid("single", false, single), valid("double", false, double),
		})
		if sel.Parts[0].Solver != "double" {
			t.Fatalf("winner = %s, want double", sel.Parts[0].Solver)
		}
	})

	t.Run("lexicographic name breaks full ties", func(t *testing.T) {
		one := fulfillmentSolution("order-a", "100", prices)
		two := fulfillmentSolution("order-a", "100", prices)

		sel := NewSelector(Params{}, false).Select(auction, []validation.ValidSolution{
			valid("zeta", false, one), valid("alpha", false, two),
		})
		if sel.Parts[0].Solver != "alpha" {
			t.Fatalf("winner = %s, want alpha", sel.Parts[0].Solver)
		}
	})
}

func TestSelectRequiresPositiveScore(t *testing.T) {
	auction := scoringAuction()
	// Clears exactly at limit: zero surplus.
	atLimit := fulfillmentSolution("order-a", "100", map[domain.Address]decimal.Decimal{
		"TKX": dec("2"), "TKY": dec("1"),
	})

	sel := NewSelector(Params{}, false).Select(auction, []validation.ValidSolution{
		valid("solver", false, atLimit),
	})
	if sel != nil {
		t.Fatalf("selection = %+v, want nil for zero score", sel)
	}
}

func TestSelectMergesDisjointSolutions(t *testing.T) {
	auction := scoringAuction()
	a := fulfillmentSolution("order-a", "100", map[domain.Address]decimal.Decimal{
		"TKX": dec("2.3"), "TKY": dec("1"),
	})
	b := fulfillmentSolution("order-b", "50", map[domain.Address]decimal.Decimal{
		"TKZ": dec("1.2"), "TKY": dec("1"),
	})

	sel := NewSelector(Params{}, true).Select(auction, []validation.ValidSolution{
		valid("alpha", true, a), valid("beta", true, b),
	})
	if len(sel.Parts) != 2 {
		t.Fatalf("parts = %d, want merged pair", len(sel.Parts))
	}
	// 30 from alpha plus 10 from beta.
	if !sel.Score.Equal(dec("40")) {
		t.Fatalf("merged score = %s, want 40", sel.Score)
	}
}

// A pool order matched against just-in-time liquidity from an eligible
// provider: both sides clear above their limits, but only the pool
// order's surplus is scored.
func TestSelectClearsOrderAgainstJITLiquidity(t *testing.T) {
	owner, priv := testutil.NewKeypair(t)
	order := testutil.SignedOrder(t, owner, priv, func(o *domain.Order) {
		o.SellAmount = dec("0.1")
		o.BuyAmount = dec("230")
	})

	jitOwner, _ := testutil.NewKeypair(t)
	jit := testutil.CommittedJITOrder(jitOwner, func(j *domain.JITOrder) {
		j.SellAmount = dec("232")
		j.BuyAmount = dec("0.0995")
	})

	prices := map[domain.Address]decimal.Decimal{"TKX": dec("2320"), "TKY": dec("1")}
	auction := &domain.Auction{
		ID:                     1,
		Orders:                 []domain.Order{order},
		SurplusCapturingOwners: []domain.Address{jitOwner},
		Prices:                 prices,
	}
	solution := &domain.Solution{
		ID:     1,
		Prices: prices,
		Trades: []domain.Trade{
			{Fulfillment: &domain.Fulfillment{Order: order.UID, ExecutedAmount: dec("0.1")}},
			{JIT: &domain.JITTrade{Order: jit, ExecutedAmount: dec("232")}},
		},
		PreInteractions: []domain.Call{testutil.CommitCall(&jit)},
	}

	// The provider receives 0.1 TKX against a 0.0995 quote, the order
	// owner 232 TKY against a 230 limit.
	v, rej := validation.New(nil, decimal.Zero).Validate(auction, solver.Submission{
		Solver: "amm", Account: "acc-amm", Solution: solution,
	})
	if rej != nil {
		t.Fatalf("rejected: %v", rej)
	}

	sel := NewSelector(Params{}, false).Select(auction, []validation.ValidSolution{*v})
	if sel == nil || len(sel.Parts) != 1 {
		t.Fatalf("selection = %+v, want single winner", sel)
	}
	if !sel.Score.Equal(dec("2")) {
		t.Fatalf("score = %s, want 2 (order surplus only)", sel.Score)
	}
}

func TestSelectMergeSkipsConflicts(t *testing.T) {
	auction := scoringAuction()

	t.Run("shared order", func(t *testing.T) {
		best := fulfillmentSolution("order-a", "100", map[domain.Address]decimal.Decimal{
			"TKX": dec("2.3"), "TKY": dec("1"),
		})
		rival := fulfillmentSolution("order-a", "100", map[domain.Address]decimal.Decimal{
			"TKX": dec("2.2"), "TKY": dec("1"),
		})

		sel := NewSelector(Params{}, true).Select(auction, []validation.ValidSolution{
			valid("alpha", true, best), valid("beta", true, rival),
		})
		if len(sel.Parts) != 1 || sel.Parts[0].Solver != "alpha" {
			t.Fatalf("selection = %+v, want alpha alone", sel.Parts)
		}
	})

	t.Run("contradictory prices", func(t *testing.T) {
		best := fulfillmentSolution("order-a", "100", map[domain.Address]decimal.Decimal{
			"TKX": dec("2.3"), "TKY": dec("1"),
		})
		other := fulfillmentSolution("order-b", "50", map[domain.Address]decimal.Decimal{
			"TKZ": dec("1.2"), "TKY": dec("1.1"),
		})

		sel := NewSelector(Params{}, true).Select(auction, []validation.ValidSolution{
			valid("alpha", true, best), valid("beta", true, other),
		})
		if len(sel.Parts) != 1 {
			t.Fatalf("parts = %d, want 1 (price conflict on TKY)", len(sel.Parts))
		}
	})

	t.Run("merge requires opt-in from both", func(t *testing.T) {
		best := fulfillmentSolution("order-a", "100", map[domain.Address]decimal.Decimal{
			"TKX": dec("2.3"), "TKY": dec("1"),
		})
		other := fulfillmentSolution("order-b", "50", map[domain.Address]decimal.Decimal{
			"TKZ": dec("1.2"), "TKY": dec("1"),
		})

		sel := NewSelector(Params{}, true).Select(auction, []validation.ValidSolution{
			valid("alpha", true, best), valid("beta", false, other),
		})
		if len(sel.Parts) != 1 {
			t.Fatalf("parts = %d, want 1 (beta did not opt in)", len(sel.Parts))
		}
	})
}
