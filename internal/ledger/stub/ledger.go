// Package stub implements ledger.Client in memory for tests.
package stub

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sync"

	"github.com/mr-tron/base58"

	"auction-engine/internal/ledger"
)

// Ledger is a configurable in-memory ledger.
type Ledger struct {
	mu sync.Mutex

	// TransientFailures makes the next n submissions fail with a
	// transient error.
	TransientFailures int
	// ConfirmAfterPolls delays confirmation until a transaction's
	// status has been queried that many times. Zero confirms at once.
	ConfirmAfterPolls int
	// RevertReason, when non-empty, makes every transaction land and
	// fail with this reason.
	RevertReason string
	// NeverConfirm leaves submitted transactions pending forever.
	NeverConfirm bool

	slot         int64
	submitted    []ledger.Transaction
	polls        map[string]int
	transactions map[string]ledger.Transaction
}

var _ ledger.Client = (*Ledger)(nil)

// New creates an empty stub ledger starting at slot 1.
func New() *Ledger {
	return &Ledger{
		slot:         1,
		polls:        make(map[string]int),
		transactions: make(map[string]ledger.Transaction),
	}
}

// Submitted returns every transaction accepted so far.
func (l *Ledger) Submitted() []ledger.Transaction {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]ledger.Transaction(nil), l.submitted...)
}

// SubmitTransaction accepts the transaction (or fails transiently) and
// derives its id from the payload and fee, so fee-bumped resubmissions
// get distinct ids.
func (l *Ledger) SubmitTransaction(_ context.Context, tx ledger.Transaction) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.TransientFailures > 0 {
		l.TransientFailures--
		return "", fmt.Errorf("fee too low: %w", ledger.ErrTransient)
	}
	h := sha256.Sum256(append(tx.Payload, byte(tx.Fee), byte(tx.Fee>>8)))
	id := base58.Encode(h[:])
	l.submitted = append(l.submitted, tx)
	l.transactions[id] = tx
	return id, nil
}

// TransactionStatus reports confirmation per the configured behavior.
func (l *Ledger) TransactionStatus(_ context.Context, txID string) (*ledger.TxStatus, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.transactions[txID]; !ok {
		return &ledger.TxStatus{}, nil
	}
	if l.NeverConfirm {
		return &ledger.TxStatus{Found: true}, nil
	}
	l.polls[txID]++
	if l.polls[txID] <= l.ConfirmAfterPolls {
		return &ledger.TxStatus{Found: true}, nil
	}
	l.slot++
	return &ledger.TxStatus{
		Found:        true,
		Confirmed:    l.RevertReason == "",
		Slot:         l.slot,
		RevertReason: l.RevertReason,
	}, nil
}

// LatestSlot advances and returns the slot counter.
func (l *Ledger) LatestSlot(_ context.Context) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.slot++
	return l.slot, nil
}
