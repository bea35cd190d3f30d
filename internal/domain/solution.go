package domain

import "github.com/shopspring/decimal"

// Call is one auxiliary ledger call executed before or after the core
// settlement call.
type Call struct {
	Target   Address
	Value    decimal.Decimal
	CallData []byte
}

// Fulfillment executes an existing auction order by uid.
type Fulfillment struct {
	Order          OrderUID
	ExecutedAmount decimal.Decimal // in the order's fixed-side token
	Fee            decimal.Decimal
}

// JITOrder is a fully self-contained synthetic order carried inside a
// solution. It never enters the order pool; it is trusted only because
// its authorization proves itself.
type JITOrder struct {
	Owner             Address
	SellToken         Address
	BuyToken          Address
	SellAmount        decimal.Decimal
	BuyAmount         decimal.Decimal
	Kind              OrderKind
	PartiallyFillable bool
	ValidTo           int64
	SellBalance       BalanceSource
	BuyBalance        BalanceSource
	Authorization     Authorization
}

// JITTrade executes a just-in-time order.
type JITTrade struct {
	Order          JITOrder
	ExecutedAmount decimal.Decimal
	Fee            decimal.Decimal
}

// Trade is either a fulfillment of a pool order or a just-in-time trade.
// Exactly one of the two fields is set.
type Trade struct {
	Fulfillment *Fulfillment
	JIT         *JITTrade
}

// IsJIT reports whether the trade is a just-in-time trade.
func (t *Trade) IsJIT() bool { return t.JIT != nil }

// Solution is one solver's proposed execution of a subset of an auction.
// It is a candidate only; settlement state lives elsewhere.
type Solution struct {
	// ID is the solver-assigned local identifier, unique per response.
	ID uint64
	// Prices are clearing prices per token in the reference unit.
	Prices map[Address]decimal.Decimal
	Trades []Trade
	// PreInteractions run before the settlement call (e.g. JIT
	// commitment calls); PostInteractions run after it.
	PreInteractions  []Call
	PostInteractions []Call
	// Gas is the solver's optional execution cost estimate in reference
	// units. Nil means unknown; the scorer substitutes a configured
	// default.
	Gas *decimal.Decimal
}

// OrderUIDs returns the uids of all pool orders the solution fulfills.
func (s *Solution) OrderUIDs() []OrderUID {
	var uids []OrderUID
	for i := range s.Trades {
		if f := s.Trades[i].Fulfillment; f != nil {
			uids = append(uids, f.Order)
		}
	}
	return uids
}

// JITOwners returns the owners of all just-in-time trades in the solution.
func (s *Solution) JITOwners() []Address {
	var owners []Address
	for i := range s.Trades {
		if j := s.Trades[i].JIT; j != nil {
			owners = append(owners, j.Order.Owner)
		}
	}
	return owners
}
