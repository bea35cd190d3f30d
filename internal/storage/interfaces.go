package storage

import (
	"context"

	"auction-engine/internal/domain"
)

// CompetitionStore provides access to per-auction competition records.
// A record is written once when the round closes; transaction hashes
// arrive later, as settlements land, and are joined in at read time.
type CompetitionStore interface {
	// Record persists the competition record for an auction. Returns
	// ErrDuplicateKey if a record for the auction already exists.
	Record(ctx context.Context, rec *domain.CompetitionRecord) error

	// AttachTransaction associates an observed ledger transaction with
	// an auction. Idempotent: attaching the same hash twice is a no-op.
	AttachTransaction(ctx context.Context, auctionID domain.AuctionID, txHash string) error

	// ByAuction retrieves the record for an auction, with any observed
	// transaction hashes filled in. Returns ErrNotFound if not exists.
	ByAuction(ctx context.Context, auctionID domain.AuctionID) (*domain.CompetitionRecord, error)

	// ByTransaction retrieves the record whose settlement produced the
	// given transaction hash. Returns ErrNotFound if no settlement with
	// that hash has been observed.
	ByTransaction(ctx context.Context, txHash string) (*domain.CompetitionRecord, error)

	// Latest retrieves the record with the highest auction id.
	// Returns ErrNotFound if the store is empty.
	Latest(ctx context.Context) (*domain.CompetitionRecord, error)

	// LatestN retrieves up to n records ordered by auction id
	// descending.
	LatestN(ctx context.Context, n int) ([]*domain.CompetitionRecord, error)
}

// OutcomeSink receives terminal settlement outcomes for analytical
// queries. Writes are append-only and best-effort.
type OutcomeSink interface {
	// InsertOutcome records one terminal settlement outcome.
	InsertOutcome(ctx context.Context, o *domain.SettlementOutcome) error
}
