package clickhouse

import (
	"context"
	"fmt"
	"time"

	"auction-engine/internal/domain"
	"auction-engine/internal/storage"
)

// OutcomeSink implements storage.OutcomeSink using ClickHouse. Rows are
// append-only; the analytical tables tolerate duplicates and dedupe at
// query time when needed.
type OutcomeSink struct {
	conn *Conn
}

// NewOutcomeSink creates a new OutcomeSink.
func NewOutcomeSink(conn *Conn) *OutcomeSink {
	return &OutcomeSink{conn: conn}
}

// Compile-time interface check.
var _ storage.OutcomeSink = (*OutcomeSink)(nil)

// InsertOutcome records one terminal settlement outcome.
func (s *OutcomeSink) InsertOutcome(ctx context.Context, o *domain.SettlementOutcome) error {
	if o == nil {
		return storage.ErrInvalidInput
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO auction_outcomes (
			auction_id, status, tx_id, observed_tx_ids, attempts, slot, error, recorded_at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	err = batch.Append(
		uint64(o.AuctionID),
		string(o.Status),
		o.TxID,
		o.ObservedTxIDs,
		uint32(o.Attempts),
		uint64(o.Slot),
		o.Err,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("append to batch: %w", err)
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// StatusCounts returns the number of recorded outcomes per terminal
// status.
func (s *OutcomeSink) StatusCounts(ctx context.Context) (map[string]uint64, error) {
	query := `
		SELECT status, count(*)
		FROM auction_outcomes
		GROUP BY status
	`

	rows, err := s.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query status counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]uint64)
	for rows.Next() {
		var status string
		var count uint64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan status count row: %w", err)
		}
		counts[status] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate status count rows: %w", err)
	}
	return counts, nil
}
