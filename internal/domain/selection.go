package domain

import "github.com/shopspring/decimal"

// SelectionPart is one scored solution inside a selection.
type SelectionPart struct {
	Solver   string
	Account  Address
	Solution *Solution
	Score    decimal.Decimal
}

// Selection is the auction winner handed to the settlement executor:
// either a single best solution or several merged non-conflicting ones.
type Selection struct {
	AuctionID AuctionID
	Parts     []SelectionPart
	Score     decimal.Decimal
}

// Solvers returns the solver names contributing to the selection.
func (s *Selection) Solvers() []string {
	names := make([]string, len(s.Parts))
	for i, p := range s.Parts {
		names[i] = p.Solver
	}
	return names
}

// Trades returns all trades across parts in part order.
func (s *Selection) Trades() []Trade {
	var trades []Trade
	for _, p := range s.Parts {
		trades = append(trades, p.Solution.Trades...)
	}
	return trades
}

// OrderUIDs returns the pool orders consumed by the selection.
func (s *Selection) OrderUIDs() []OrderUID {
	var uids []OrderUID
	for _, p := range s.Parts {
		uids = append(uids, p.Solution.OrderUIDs()...)
	}
	return uids
}
