// Package domain defines the core types shared across the auction engine:
// orders, auctions, solver solutions, selections and competition records.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Address is a base58-encoded 32-byte account or token identifier.
type Address string

// OrderUID is the deterministic hex identifier of an order
// (sha256 over the canonical order fields plus owner).
type OrderUID string

// OrderKind distinguishes sell-exact from buy-exact orders.
type OrderKind string

const (
	// OrderKindSell fixes the sell amount; the buy amount is a lower bound.
	OrderKindSell OrderKind = "sell"
	// OrderKindBuy fixes the buy amount; the sell amount is an upper bound.
	OrderKindBuy OrderKind = "buy"
)

// BalanceSource describes where executed funds are drawn from or paid to.
type BalanceSource string

const (
	// BalanceDirect settles against the owner's token account directly.
	BalanceDirect BalanceSource = "direct"
	// BalanceInternal settles against an escrow balance held by the
	// settlement program.
	BalanceInternal BalanceSource = "internal"
)

// SigningScheme identifies how an authorization proves an order.
type SigningScheme string

const (
	// SchemeEd25519 is an ed25519 signature by the order owner over the
	// order digest.
	SchemeEd25519 SigningScheme = "ed25519"
	// SchemeCommitment is a self-proving commitment: the authorization
	// payload equals the order digest and a matching commit call must be
	// present among the settlement's pre-interactions.
	SchemeCommitment SigningScheme = "commitment"
)

// Authorization is the proof attached to an order or just-in-time trade.
type Authorization struct {
	Scheme    SigningScheme
	PublicKey Address // signer; for commitments, the committing owner
	Payload   []byte  // signature bytes or commitment digest
}

// Order is an immutable trade intent. Execution state is tracked by the
// order pool and settlement outcomes, never on the order itself.
type Order struct {
	UID               OrderUID
	Owner             Address
	SellToken         Address
	BuyToken          Address
	SellAmount        decimal.Decimal
	BuyAmount         decimal.Decimal
	Kind              OrderKind
	PartiallyFillable bool
	ValidTo           int64 // unix seconds
	FeeAmount         decimal.Decimal
	SellBalance       BalanceSource
	BuyBalance        BalanceSource
	Authorization     Authorization
	CreatedAt         time.Time
}

// Expired reports whether the order is past its validity at t.
func (o *Order) Expired(t time.Time) bool {
	return t.Unix() > o.ValidTo
}

// LimitPrice returns the order's limit as buy units per sell unit.
// Returns zero when the sell amount is zero.
func (o *Order) LimitPrice() decimal.Decimal {
	if o.SellAmount.IsZero() {
		return decimal.Zero
	}
	return o.BuyAmount.Div(o.SellAmount)
}
