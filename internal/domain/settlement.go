package domain

// SettlementStatus classifies the terminal state of a settlement attempt.
type SettlementStatus string

const (
	// SettlementConfirmed means the transaction landed and succeeded.
	SettlementConfirmed SettlementStatus = "confirmed"
	// SettlementReverted means the transaction landed and failed on-chain.
	SettlementReverted SettlementStatus = "reverted"
	// SettlementExpired means confirmation was not observed within the
	// slot bound.
	SettlementExpired SettlementStatus = "expired"
	// SettlementFailed means submission never succeeded (retries
	// exhausted on transport or ledger admission errors).
	SettlementFailed SettlementStatus = "failed"
)

// SettlementOutcome is the result of executing one selection. A retried
// submission may have produced several observed transaction ids; the
// confirmed one, if any, is TxID.
type SettlementOutcome struct {
	AuctionID AuctionID
	Status    SettlementStatus
	// TxID is the authoritative transaction id on confirmation, empty
	// otherwise.
	TxID string
	// ObservedTxIDs lists every id submitted for this auction, in
	// submission order, including the confirmed one.
	ObservedTxIDs []string
	Attempts      int
	Slot          int64 // slot of confirmation, 0 if none
	Err           string
}

// Settled reports whether the outcome represents a confirmed settlement.
func (o *SettlementOutcome) Settled() bool {
	return o.Status == SettlementConfirmed
}
