// Package ledger is the narrow client surface the engine needs from the
// shared ledger: submit a settlement transaction, check its status, and
// follow slot progression to bound confirmation waits.
package ledger

import (
	"context"
	"errors"
)

// Transaction is a fully built settlement transaction ready for
// submission. Payload is the serialized settlement call; Fee is the
// priority fee in micro reference units and may be raised between
// resubmissions of the same settlement.
type Transaction struct {
	Payload []byte
	Fee     int64
}

// TxStatus describes what the ledger knows about a submitted
// transaction.
type TxStatus struct {
	Found     bool
	Confirmed bool
	Slot      int64
	// RevertReason is non-empty when the transaction landed but failed.
	RevertReason string
}

// Client is implemented by the JSON-RPC client and the test stub.
type Client interface {
	// SubmitTransaction broadcasts tx and returns its transaction id.
	SubmitTransaction(ctx context.Context, tx Transaction) (string, error)
	// TransactionStatus reports the current status of txID.
	TransactionStatus(ctx context.Context, txID string) (*TxStatus, error)
	// LatestSlot returns the ledger's current slot.
	LatestSlot(ctx context.Context) (int64, error)
}

// ErrTransient tags submission failures that may succeed on resubmission
// (fee underpriced, nonce contention, admission queue full). Matched
// with errors.Is.
var ErrTransient = errors.New("transient submission failure")

// IsTransient reports whether a submission error is worth a fee-bumped
// retry.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}
