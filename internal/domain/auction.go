package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// AuctionID is the strictly increasing round identifier.
type AuctionID int64

// Auction is one round's immutable snapshot: the eligible orders, the
// reference price per token (denominated in the common reference unit),
// and the owners allowed to inject surplus-capturing just-in-time orders
// in this round.
type Auction struct {
	ID                     AuctionID
	Orders                 []Order
	Prices                 map[Address]decimal.Decimal
	SurplusCapturingOwners []Address
	// Executed carries the confirmed fill so far for partially filled
	// orders in the snapshot. Orders with no fills are absent.
	Executed map[OrderUID]decimal.Decimal
	TakenAt  time.Time
}

// ExecutedAmount returns the confirmed fill so far for uid.
func (a *Auction) ExecutedAmount(uid OrderUID) decimal.Decimal {
	if a.Executed == nil {
		return decimal.Zero
	}
	return a.Executed[uid]
}

// Order returns the snapshot order with the given uid, or nil.
func (a *Auction) Order(uid OrderUID) *Order {
	for i := range a.Orders {
		if a.Orders[i].UID == uid {
			return &a.Orders[i]
		}
	}
	return nil
}

// ReferencePrice returns the reference price for token and whether one
// was part of the snapshot.
func (a *Auction) ReferencePrice(token Address) (decimal.Decimal, bool) {
	p, ok := a.Prices[token]
	return p, ok
}

// AllowsJITOwner reports whether owner may contribute just-in-time
// liquidity in this round.
func (a *Auction) AllowsJITOwner(owner Address) bool {
	for _, o := range a.SurplusCapturingOwners {
		if o == owner {
			return true
		}
	}
	return false
}
