// Package scoring ranks validated solutions by the surplus they deliver
// to order owners, net of estimated settlement cost, and selects the
// auction winner. Selection is a pure, order-independent reduction:
// the same auction and solution set always yields the same winner.
package scoring

import (
	"github.com/shopspring/decimal"

	"auction-engine/internal/domain"
	"auction-engine/internal/validation"
)

// Params configures the scoring objective.
type Params struct {
	// DefaultCost is the settlement cost assumed, in reference units,
	// when a solution carries no gas estimate.
	DefaultCost decimal.Decimal
}

// Score computes a solution's objective value: the summed surplus of
// all fulfilled pool orders in reference units, minus the settlement
// cost estimate. Just-in-time trades provide liquidity; their own
// surplus does not count toward the objective.
func Score(auction *domain.Auction, s *domain.Solution, params Params) decimal.Decimal {
	total := decimal.Zero
	for i := range s.Trades {
		f := s.Trades[i].Fulfillment
		if f == nil {
			continue
		}
		order := auction.Order(f.Order)
		if order == nil {
			continue
		}
		total = total.Add(orderSurplus(order, f.ExecutedAmount, s.Prices))
	}
	cost := params.DefaultCost
	if s.Gas != nil {
		cost = *s.Gas
	}
	return total.Sub(cost)
}

// orderSurplus is the owner's gain over their limit, in reference units.
func orderSurplus(order *domain.Order, executed decimal.Decimal, prices map[domain.Address]decimal.Decimal) decimal.Decimal {
	sellPrice, okSell := prices[order.SellToken]
	buyPrice, okBuy := prices[order.BuyToken]
	if !okSell || !okBuy || !sellPrice.IsPositive() || !buyPrice.IsPositive() {
		return decimal.Zero
	}
	if order.Kind == domain.OrderKindBuy {
		// Owner saves sell tokens against the worst acceptable price.
		paid := executed.Mul(buyPrice).Div(sellPrice)
		maxPaid := executed.Mul(order.SellAmount).Div(order.BuyAmount)
		return maxPaid.Sub(paid).Mul(sellPrice)
	}
	received := executed.Mul(sellPrice).Div(buyPrice)
	minReceived := executed.Mul(order.BuyAmount).Div(order.SellAmount)
	return received.Sub(minReceived).Mul(buyPrice)
}

// scored pairs a valid solution with its objective value.
type scored struct {
	validation.ValidSolution
	score decimal.Decimal
}

// rank orders scored solutions by the total tie-break: score desc, then
// trade count desc, then lexicographically lowest solver name.
func less(a, b *scored) bool {
	if c := a.score.Cmp(b.score); c != 0 {
		return c > 0
	}
	if la, lb := len(a.Solution.Trades), len(b.Solution.Trades); la != lb {
		return la > lb
	}
	return a.Solver < b.Solver
}
