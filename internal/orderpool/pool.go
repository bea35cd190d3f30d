// Package orderpool owns the open order set and the auction counter.
// It is the single writer for both: every other component only ever sees
// immutable snapshots taken here.
package orderpool

import (
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"auction-engine/internal/domain"
	"auction-engine/internal/idhash"
	"auction-engine/internal/signing"
)

var (
	// ErrDuplicateOrder is returned when an order uid is already open.
	ErrDuplicateOrder = errors.New("order already in pool")
	// ErrUnknownOrder is returned for operations on uids not in the pool.
	ErrUnknownOrder = errors.New("order not in pool")
	// ErrOrderPending is returned when cancelling an order reserved by an
	// in-flight settlement.
	ErrOrderPending = errors.New("order reserved by pending settlement")
)

// Pool holds open, unexpired orders and tracks their execution state
// across settlements. Orders consumed by a pending (not yet confirmed)
// settlement are excluded from snapshots to prevent double-allocation.
type Pool struct {
	mu sync.RWMutex

	orders   map[domain.OrderUID]*domain.Order
	executed map[domain.OrderUID]decimal.Decimal // confirmed fills
	pending  map[domain.OrderUID]domain.AuctionID

	nextAuction domain.AuctionID

	now func() time.Time
}

// New creates an empty pool whose first auction id is startID.
func New(startID domain.AuctionID) *Pool {
	return &Pool{
		orders:      make(map[domain.OrderUID]*domain.Order),
		executed:    make(map[domain.OrderUID]decimal.Decimal),
		pending:     make(map[domain.OrderUID]domain.AuctionID),
		nextAuction: startID,
		now:         time.Now,
	}
}

// WithClock overrides the pool clock. Test hook.
func (p *Pool) WithClock(now func() time.Time) *Pool {
	p.now = now
	return p
}

// Add inserts a new order after verifying its authorization. The uid is
// derived from the order fields when absent.
func (p *Pool) Add(o domain.Order) (domain.OrderUID, error) {
	if o.UID == "" {
		o.UID = idhash.ComputeOrderUID(&o)
	}
	if err := signing.VerifyOrder(&o); err != nil {
		return "", err
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = p.now()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.orders[o.UID]; ok {
		return "", ErrDuplicateOrder
	}
	p.orders[o.UID] = &o
	return o.UID, nil
}

// Cancel removes an open order. Orders consumed by a pending settlement
// cannot be cancelled; the settlement outcome decides their fate.
func (p *Pool) Cancel(uid domain.OrderUID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.orders[uid]; !ok {
		return ErrUnknownOrder
	}
	if _, busy := p.pending[uid]; busy {
		return ErrOrderPending
	}
	delete(p.orders, uid)
	return nil
}

// RemoveExpired drops orders past their validity and returns how many
// were removed. Pending orders are kept; confirm/release handles them.
func (p *Pool) RemoveExpired() int {
	now := p.now()
	p.mu.Lock()
	defer p.mu.Unlock()
	var removed int
	for uid, o := range p.orders {
		if _, busy := p.pending[uid]; busy {
			continue
		}
		if o.Expired(now) {
			delete(p.orders, uid)
			removed++
		}
	}
	return removed
}

// Snapshot takes a consistent point-in-time view of the eligible orders
// and assigns the next auction id. Excluded: expired orders, orders
// consumed by a pending settlement, and orders with no remaining
// executable amount.
func (p *Pool) Snapshot(prices map[domain.Address]decimal.Decimal, jitOwners []domain.Address) *domain.Auction {
	now := p.now()

	p.mu.Lock()
	defer p.mu.Unlock()

	id := p.nextAuction
	p.nextAuction++

	auction := &domain.Auction{
		ID:                     id,
		Prices:                 clonePrices(prices),
		SurplusCapturingOwners: append([]domain.Address(nil), jitOwners...),
		TakenAt:                now,
		Executed:               make(map[domain.OrderUID]decimal.Decimal),
	}
	for uid, o := range p.orders {
		if o.Expired(now) {
			continue
		}
		if _, busy := p.pending[uid]; busy {
			continue
		}
		done := p.executed[uid]
		if !p.remaining(o, done).IsPositive() {
			continue
		}
		auction.Orders = append(auction.Orders, *o)
		if !done.IsZero() {
			auction.Executed[uid] = done
		}
	}
	return auction
}

// MarkPending reserves the given orders for an in-flight settlement of
// auctionID so later snapshots cannot allocate them again.
func (p *Pool) MarkPending(auctionID domain.AuctionID, uids []domain.OrderUID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, uid := range uids {
		if _, ok := p.orders[uid]; ok {
			p.pending[uid] = auctionID
		}
	}
}

// ConfirmSettled applies a confirmed settlement's fills: executed
// amounts accumulate, the pending reservation clears, and fully
// executed orders leave the pool.
func (p *Pool) ConfirmSettled(auctionID domain.AuctionID, fills map[domain.OrderUID]decimal.Decimal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for uid, amount := range fills {
		o, ok := p.orders[uid]
		if !ok {
			continue
		}
		if p.pending[uid] == auctionID {
			delete(p.pending, uid)
		}
		total := p.executed[uid].Add(amount)
		p.executed[uid] = total
		if !o.PartiallyFillable || !p.remaining(o, total).IsPositive() {
			delete(p.orders, uid)
		}
	}
}

// ReleasePending returns orders reserved for auctionID to the open set
// after a failed or abandoned settlement.
func (p *Pool) ReleasePending(auctionID domain.AuctionID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for uid, id := range p.pending {
		if id == auctionID {
			delete(p.pending, uid)
		}
	}
}

// Open returns the uids currently open and not reserved. Read path for
// diagnostics and tests.
func (p *Pool) Open() []domain.OrderUID {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var uids []domain.OrderUID
	for uid := range p.orders {
		if _, busy := p.pending[uid]; !busy {
			uids = append(uids, uid)
		}
	}
	return uids
}

// Executed returns the confirmed executed amount for uid.
func (p *Pool) Executed(uid domain.OrderUID) decimal.Decimal {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.executed[uid]
}

// remaining computes the executable amount left on the order's fixed
// side given the confirmed fills so far.
func (p *Pool) remaining(o *domain.Order, done decimal.Decimal) decimal.Decimal {
	bound := o.SellAmount
	if o.Kind == domain.OrderKindBuy {
		bound = o.BuyAmount
	}
	return bound.Sub(done)
}

func clonePrices(prices map[domain.Address]decimal.Decimal) map[domain.Address]decimal.Decimal {
	out := make(map[domain.Address]decimal.Decimal, len(prices))
	for k, v := range prices {
		out[k] = v
	}
	return out
}
