package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SubmissionRecord is one solver's contribution to an auction as kept in
// the audit record. Rejected submissions are recorded with their reason;
// only accepted ones carry a score.
type SubmissionRecord struct {
	Solver          string
	Account         Address
	Solution        *Solution
	Score           *decimal.Decimal // nil for rejected submissions
	RejectionReason string           // empty for accepted submissions
}

// CompetitionRecord is the durable audit record of one auction round:
// everything that was submitted, who won, and which transactions were
// later observed settling it. Records are never deleted; transaction
// hashes are appended as they become known.
type CompetitionRecord struct {
	AuctionID   AuctionID
	RecordedAt  time.Time
	Submissions []SubmissionRecord
	// WinningSolvers is empty when the round produced no winner.
	WinningSolvers []string
	WinningScore   *decimal.Decimal
	// TransactionHashes are attached strictly after the record is first
	// written; the first confirmed hash is authoritative.
	TransactionHashes []string
}

// HasWinner reports whether a winner was selected for the round.
func (r *CompetitionRecord) HasWinner() bool {
	return len(r.WinningSolvers) > 0
}
