// Package validation verifies raw solver solutions against the auction
// snapshot before they may be scored. Every failure is a typed
// Rejection; invalid input never panics the round.
package validation

import (
	"bytes"
	"fmt"

	"github.com/shopspring/decimal"

	"auction-engine/internal/domain"
	"auction-engine/internal/idhash"
	"auction-engine/internal/signing"
	"auction-engine/internal/solver"
)

// Reason classifies why a solution was rejected.
type Reason string

const (
	ReasonEmptySolution       Reason = "empty-solution"
	ReasonUnknownOrder        Reason = "unknown-order"
	ReasonAmountOutOfBounds   Reason = "amount-out-of-bounds"
	ReasonInvalidJIT          Reason = "invalid-jit-authorization"
	ReasonJITOwnerNotEligible Reason = "jit-owner-not-eligible"
	ReasonMissingPrice        Reason = "missing-clearing-price"
	ReasonZeroPrice           Reason = "zero-clearing-price"
	ReasonNegativeSurplus     Reason = "negative-surplus"
	ReasonForbiddenCall       Reason = "forbidden-interaction"
)

// Rejection describes a failed validation. It is recorded for audit and
// excludes the solution from scoring.
type Rejection struct {
	Reason Reason
	Detail string
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("%s: %s", r.Reason, r.Detail)
}

// ValidSolution is a submission that passed all checks.
type ValidSolution struct {
	Solver   string
	Account  domain.Address
	Merge    bool
	Solution *domain.Solution
}

// Validator checks solutions against an auction snapshot.
type Validator struct {
	// allowedTargets is the settlement program's documented call
	// surface; auxiliary calls may additionally target JIT owners of
	// the same solution (commitment calls).
	allowedTargets map[domain.Address]bool
	// tolerance bounds the permitted negative implied surplus, in
	// reference units, absorbing rounding in solver arithmetic.
	tolerance decimal.Decimal
}

// New creates a validator for the given call surface and surplus
// tolerance.
func New(allowedTargets []domain.Address, tolerance decimal.Decimal) *Validator {
	allowed := make(map[domain.Address]bool, len(allowedTargets))
	for _, t := range allowedTargets {
		allowed[t] = true
	}
	return &Validator{allowedTargets: allowed, tolerance: tolerance}
}

// Validate runs all checks in order, failing fast on the first
// violation.
func (v *Validator) Validate(auction *domain.Auction, sub solver.Submission) (*ValidSolution, *Rejection) {
	s := sub.Solution
	if s == nil || len(s.Trades) == 0 {
		return nil, &Rejection{ReasonEmptySolution, "solution contains no trades"}
	}

	for i := range s.Trades {
		t := &s.Trades[i]
		switch {
		case t.Fulfillment != nil:
			if rej := v.checkFulfillment(auction, t.Fulfillment); rej != nil {
				return nil, rej
			}
		case t.JIT != nil:
			if rej := v.checkJIT(auction, s, t.JIT); rej != nil {
				return nil, rej
			}
		default:
			return nil, &Rejection{ReasonEmptySolution, fmt.Sprintf("trade %d has no body", i)}
		}
	}

	if rej := v.checkPrices(auction, s); rej != nil {
		return nil, rej
	}
	if rej := v.checkInteractions(s); rej != nil {
		return nil, rej
	}

	return &ValidSolution{
		Solver:   sub.Solver,
		Account:  sub.Account,
		Merge:    sub.Merge,
		Solution: s,
	}, nil
}

// checkFulfillment verifies snapshot membership and amount bounds.
func (v *Validator) checkFulfillment(auction *domain.Auction, f *domain.Fulfillment) *Rejection {
	order := auction.Order(f.Order)
	if order == nil {
		return &Rejection{ReasonUnknownOrder, fmt.Sprintf("order %s not in auction %d", f.Order, auction.ID)}
	}
	if !f.ExecutedAmount.IsPositive() {
		return &Rejection{ReasonAmountOutOfBounds, fmt.Sprintf("order %s executed amount not positive", f.Order)}
	}

	prior := auction.ExecutedAmount(f.Order)
	bound := order.SellAmount
	claimed := f.ExecutedAmount.Add(f.Fee) // fee is taken from the sell side
	if order.Kind == domain.OrderKindBuy {
		bound = order.BuyAmount
		claimed = f.ExecutedAmount
	}

	if order.PartiallyFillable {
		if prior.Add(claimed).GreaterThan(bound) {
			return &Rejection{ReasonAmountOutOfBounds,
				fmt.Sprintf("order %s executed %s + prior %s exceeds bound %s", f.Order, claimed, prior, bound)}
		}
		return nil
	}
	if !prior.IsZero() || !claimed.Equal(bound) {
		return &Rejection{ReasonAmountOutOfBounds,
			fmt.Sprintf("non-partial order %s must execute exactly %s, got %s", f.Order, bound, claimed)}
	}
	return nil
}

// checkJIT verifies the just-in-time order's self-contained proof. The
// order is trusted only because it proves itself: pool membership is
// never consulted.
func (v *Validator) checkJIT(auction *domain.Auction, s *domain.Solution, jit *domain.JITTrade) *Rejection {
	if !auction.AllowsJITOwner(jit.Order.Owner) {
		return &Rejection{ReasonJITOwnerNotEligible,
			fmt.Sprintf("owner %s not eligible for jit liquidity in auction %d", jit.Order.Owner, auction.ID)}
	}
	if err := signing.VerifyJITOrder(&jit.Order); err != nil {
		return &Rejection{ReasonInvalidJIT, err.Error()}
	}
	if jit.Order.Authorization.Scheme == domain.SchemeCommitment {
		// Commitment-scheme orders additionally need the binding commit
		// call among the pre-interactions.
		digest := idhash.JITOrderDigest(&jit.Order)
		if !hasCommitCall(s.PreInteractions, jit.Order.Owner, digest[:]) {
			return &Rejection{ReasonInvalidJIT,
				fmt.Sprintf("no commit pre-interaction for jit owner %s", jit.Order.Owner)}
		}
	}
	if !jit.ExecutedAmount.IsPositive() {
		return &Rejection{ReasonAmountOutOfBounds, "jit executed amount not positive"}
	}
	bound := jit.Order.SellAmount
	claimed := jit.ExecutedAmount.Add(jit.Fee)
	if jit.Order.Kind == domain.OrderKindBuy {
		bound = jit.Order.BuyAmount
		claimed = jit.ExecutedAmount
	}
	if jit.Order.PartiallyFillable {
		if claimed.GreaterThan(bound) {
			return &Rejection{ReasonAmountOutOfBounds,
				fmt.Sprintf("jit executed %s exceeds bound %s", claimed, bound)}
		}
	} else if !claimed.Equal(bound) {
		return &Rejection{ReasonAmountOutOfBounds,
			fmt.Sprintf("non-partial jit order must execute exactly %s, got %s", bound, claimed)}
	}
	return nil
}

// checkPrices verifies clearing prices exist, are non-zero, and imply no
// trade worse than its limit beyond the tolerance.
func (v *Validator) checkPrices(auction *domain.Auction, s *domain.Solution) *Rejection {
	for i := range s.Trades {
		t := &s.Trades[i]
		var sellToken, buyToken domain.Address
		var sellAmount, buyAmount, executed decimal.Decimal
		var kind domain.OrderKind
		switch {
		case t.Fulfillment != nil:
			order := auction.Order(t.Fulfillment.Order)
			sellToken, buyToken = order.SellToken, order.BuyToken
			sellAmount, buyAmount = order.SellAmount, order.BuyAmount
			executed, kind = t.Fulfillment.ExecutedAmount, order.Kind
		case t.JIT != nil:
			o := &t.JIT.Order
			sellToken, buyToken = o.SellToken, o.BuyToken
			sellAmount, buyAmount = o.SellAmount, o.BuyAmount
			executed, kind = t.JIT.ExecutedAmount, o.Kind
		}

		sellPrice, ok := s.Prices[sellToken]
		if !ok {
			return &Rejection{ReasonMissingPrice, fmt.Sprintf("no clearing price for %s", sellToken)}
		}
		buyPrice, ok := s.Prices[buyToken]
		if !ok {
			return &Rejection{ReasonMissingPrice, fmt.Sprintf("no clearing price for %s", buyToken)}
		}
		if !sellPrice.IsPositive() || !buyPrice.IsPositive() {
			return &Rejection{ReasonZeroPrice, fmt.Sprintf("non-positive clearing price on %s/%s", sellToken, buyToken)}
		}

		surplus := impliedSurplus(kind, executed, sellAmount, buyAmount, sellPrice, buyPrice)
		// surplus is denominated in the buy token (sell orders) or sell
		// token (buy orders); converting to reference units keeps the
		// tolerance comparable across pairs.
		ref := surplus.Mul(buyPrice)
		if kind == domain.OrderKindBuy {
			ref = surplus.Mul(sellPrice)
		}
		if ref.LessThan(v.tolerance.Neg()) {
			return &Rejection{ReasonNegativeSurplus,
				fmt.Sprintf("trade %d clears below its limit by %s reference units", i, ref.Neg())}
		}
	}
	return nil
}

// checkInteractions restricts auxiliary call targets to the settlement
// surface plus the solution's own JIT owners.
func (v *Validator) checkInteractions(s *domain.Solution) *Rejection {
	jitOwners := make(map[domain.Address]bool)
	for _, owner := range s.JITOwners() {
		jitOwners[owner] = true
	}
	check := func(calls []domain.Call, phase string) *Rejection {
		for _, c := range calls {
			if !v.allowedTargets[c.Target] && !jitOwners[c.Target] {
				return &Rejection{ReasonForbiddenCall,
					fmt.Sprintf("%s-interaction targets %s outside the settlement surface", phase, c.Target)}
			}
		}
		return nil
	}
	if rej := check(s.PreInteractions, "pre"); rej != nil {
		return rej
	}
	return check(s.PostInteractions, "post")
}

// impliedSurplus computes how far above its limit a trade clears, in the
// trade's own received (sell kind) or saved (buy kind) token.
func impliedSurplus(kind domain.OrderKind, executed, sellAmount, buyAmount, sellPrice, buyPrice decimal.Decimal) decimal.Decimal {
	switch kind {
	case domain.OrderKindBuy:
		// executed is in buy units; the owner saves sell tokens.
		paid := executed.Mul(buyPrice).Div(sellPrice)
		maxPaid := executed.Mul(sellAmount).Div(buyAmount)
		return maxPaid.Sub(paid)
	default:
		// executed is in sell units; the owner gains buy tokens.
		received := executed.Mul(sellPrice).Div(buyPrice)
		minReceived := executed.Mul(buyAmount).Div(sellAmount)
		return received.Sub(minReceived)
	}
}

func hasCommitCall(calls []domain.Call, owner domain.Address, digest []byte) bool {
	for _, c := range calls {
		if c.Target == owner && bytes.Equal(c.CallData, digest) {
			return true
		}
	}
	return false
}
