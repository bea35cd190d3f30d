package orderpool

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"auction-engine/internal/domain"
	"auction-engine/internal/signing"
	"auction-engine/internal/testutil"
)

func TestAddDerivesUIDAndRejectsDuplicates(t *testing.T) {
	owner, priv := testutil.NewKeypair(t)
	pool := New(1)

	order := testutil.SignedOrder(t, owner, priv, nil)
	uid, err := pool.Add(order)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if uid == "" {
		t.Fatal("expected derived uid")
	}
	if len(uid) != 64 {
		t.Fatalf("uid = %q, want 64 hex chars", uid)
	}

	if _, err := pool.Add(order); !errors.Is(err, ErrDuplicateOrder) {
		t.Fatalf("duplicate add: got %v, want ErrDuplicateOrder", err)
	}
}

func TestAddRejectsTamperedOrder(t *testing.T) {
	owner, priv := testutil.NewKeypair(t)
	pool := New(1)

	order := testutil.SignedOrder(t, owner, priv, nil)
	order.SellAmount = order.SellAmount.Add(decimal.NewFromInt(1))
	order.UID = "" // re-derive for the tampered fields

	if _, err := pool.Add(order); !errors.Is(err, signing.ErrBadSignature) {
		t.Fatalf("tampered add: got %v, want ErrBadSignature", err)
	}
}

func TestCancel(t *testing.T) {
	owner, priv := testutil.NewKeypair(t)
	pool := New(1)

	uid, err := pool.Add(testutil.SignedOrder(t, owner, priv, nil))
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	if err := pool.Cancel(uid); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got := len(pool.Open()); got != 0 {
		t.Fatalf("open orders after cancel = %d, want 0", got)
	}
	if err := pool.Cancel(uid); !errors.Is(err, ErrUnknownOrder) {
		t.Fatalf("cancel removed order: got %v, want ErrUnknownOrder", err)
	}
}

func TestCancelPendingOrderFails(t *testing.T) {
	owner, priv := testutil.NewKeypair(t)
	pool := New(1)

	uid, err := pool.Add(testutil.SignedOrder(t, owner, priv, nil))
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	auction := pool.Snapshot(nil, nil)
	pool.MarkPending(auction.ID, []domain.OrderUID{uid})

	if err := pool.Cancel(uid); !errors.Is(err, ErrOrderPending) {
		t.Fatalf("cancel pending: got %v, want ErrOrderPending", err)
	}
}

func TestSnapshotAssignsMonotonicIDs(t *testing.T) {
	pool := New(7)
	first := pool.Snapshot(nil, nil)
	second := pool.Snapshot(nil, nil)
	if first.ID != 7 || second.ID != 8 {
		t.Fatalf("auction ids = %d, %d, want 7, 8", first.ID, second.ID)
	}
}

func TestSnapshotExcludesExpired(t *testing.T) {
	owner, priv := testutil.NewKeypair(t)

	now := time.Now()
	clock := now
	pool := New(1).WithClock(func() time.Time { return clock })

	short := testutil.SignedOrder(t, owner, priv, func(o *domain.Order) {
		o.ValidTo = now.Add(time.Minute).Unix()
	})
	long := testutil.SignedOrder(t, owner, priv, func(o *domain.Order) {
		o.ValidTo = now.Add(time.Hour).Unix()
	})
	if _, err := pool.Add(short); err != nil {
		t.Fatalf("add short: %v", err)
	}
	longUID, err := pool.Add(long)
	if err != nil {
		t.Fatalf("add long: %v", err)
	}

	clock = now.Add(10 * time.Minute)
	auction := pool.Snapshot(nil, nil)
	if len(auction.Orders) != 1 || auction.Orders[0].UID != longUID {
		t.Fatalf("snapshot orders = %v, want only %s", auction.Orders, longUID)
	}

	if removed := pool.RemoveExpired(); removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
}

func TestPendingOrdersExcludedUntilReleased(t *testing.T) {
	owner, priv := testutil.NewKeypair(t)
	pool := New(1)

	uid, err := pool.Add(testutil.SignedOrder(t, owner, priv, nil))
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	auction := pool.Snapshot(nil, nil)
	if len(auction.Orders) != 1 {
		t.Fatalf("snapshot orders = %d, want 1", len(auction.Orders))
	}
	pool.MarkPending(auction.ID, []domain.OrderUID{uid})

	next := pool.Snapshot(nil, nil)
	if len(next.Orders) != 0 {
		t.Fatalf("pending order still allocatable: %v", next.Orders)
	}

	pool.ReleasePending(auction.ID)
	again := pool.Snapshot(nil, nil)
	if len(again.Orders) != 1 {
		t.Fatalf("released order missing from snapshot")
	}
}

func TestConfirmSettledRemovesFilledOrder(t *testing.T) {
	owner, priv := testutil.NewKeypair(t)
	pool := New(1)

	uid, err := pool.Add(testutil.SignedOrder(t, owner, priv, nil))
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	auction := pool.Snapshot(nil, nil)
	pool.MarkPending(auction.ID, []domain.OrderUID{uid})
	pool.ConfirmSettled(auction.ID, map[domain.OrderUID]decimal.Decimal{
		uid: decimal.NewFromInt(100),
	})

	if got := len(pool.Open()); got != 0 {
		t.Fatalf("open orders after settlement = %d, want 0", got)
	}
	if got := pool.Executed(uid); !got.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("executed = %s, want 100", got)
	}
}

func TestPartialFillsAccumulateAcrossRounds(t *testing.T) {
	owner, priv := testutil.NewKeypair(t)
	pool := New(1)

	uid, err := pool.Add(testutil.SignedOrder(t, owner, priv, func(o *domain.Order) {
		o.PartiallyFillable = true
	}))
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	first := pool.Snapshot(nil, nil)
	pool.MarkPending(first.ID, []domain.OrderUID{uid})
	pool.ConfirmSettled(first.ID, map[domain.OrderUID]decimal.Decimal{
		uid: decimal.NewFromInt(40),
	})

	second := pool.Snapshot(nil, nil)
	if len(second.Orders) != 1 {
		t.Fatalf("partially filled order missing from snapshot")
	}
	if got := second.ExecutedAmount(uid); !got.Equal(decimal.NewFromInt(40)) {
		t.Fatalf("snapshot executed = %s, want 40", got)
	}

	pool.MarkPending(second.ID, []domain.OrderUID{uid})
	pool.ConfirmSettled(second.ID, map[domain.OrderUID]decimal.Decimal{
		uid: decimal.NewFromInt(60),
	})

	third := pool.Snapshot(nil, nil)
	if len(third.Orders) != 0 {
		t.Fatalf("fully filled order still in snapshot")
	}
	if got := pool.Executed(uid); !got.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("executed = %s, want 100", got)
	}
}

func TestNonPartialOrderLeavesPoolAfterAnyFill(t *testing.T) {
	owner, priv := testutil.NewKeypair(t)
	pool := New(1)

	uid, err := pool.Add(testutil.SignedOrder(t, owner, priv, nil))
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	auction := pool.Snapshot(nil, nil)
	pool.MarkPending(auction.ID, []domain.OrderUID{uid})
	pool.ConfirmSettled(auction.ID, map[domain.OrderUID]decimal.Decimal{
		uid: decimal.NewFromInt(100),
	})

	if len(pool.Open()) != 0 {
		t.Fatal("fill-or-kill order should leave the pool after settling")
	}
}
