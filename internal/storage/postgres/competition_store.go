package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"auction-engine/internal/domain"
	"auction-engine/internal/storage"
)

// CompetitionStore implements storage.CompetitionStore using PostgreSQL.
// Submissions are kept as a JSONB document; observed transaction hashes
// live in a separate table and are joined in at read time, so a record
// never needs rewriting after a settlement lands.
type CompetitionStore struct {
	pool *Pool
}

// NewCompetitionStore creates a new CompetitionStore.
func NewCompetitionStore(pool *Pool) *CompetitionStore {
	return &CompetitionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.CompetitionStore = (*CompetitionStore)(nil)

// recordColumns selects one competition record with its observed hashes
// aggregated in observation order.
const recordColumns = `
	c.auction_id, c.recorded_at, c.submissions, c.winning_solvers, c.winning_score,
	COALESCE(
		(SELECT array_agg(o.tx_hash ORDER BY o.observed_at, o.tx_hash)
		 FROM settlement_observations o
		 WHERE o.auction_id = c.auction_id),
		'{}'
	)
`

// Record persists the competition record for an auction.
func (s *CompetitionStore) Record(ctx context.Context, rec *domain.CompetitionRecord) error {
	if rec == nil || rec.AuctionID == 0 {
		return storage.ErrInvalidInput
	}

	submissions, err := json.Marshal(rec.Submissions)
	if err != nil {
		return fmt.Errorf("encode submissions: %w", err)
	}

	var winningScore *string
	if rec.WinningScore != nil {
		score := rec.WinningScore.String()
		winningScore = &score
	}

	query := `
		INSERT INTO solver_competitions (
			auction_id, recorded_at, submissions, winning_solvers, winning_score
		) VALUES ($1, $2, $3, $4, $5)
	`

	_, err = s.pool.Exec(ctx, query,
		int64(rec.AuctionID),
		rec.RecordedAt,
		submissions,
		rec.WinningSolvers,
		winningScore,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert competition record: %w", err)
	}
	return nil
}

// AttachTransaction associates an observed transaction with an auction.
func (s *CompetitionStore) AttachTransaction(ctx context.Context, auctionID domain.AuctionID, txHash string) error {
	if auctionID == 0 || txHash == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO settlement_observations (tx_hash, auction_id)
		VALUES ($1, $2)
		ON CONFLICT (tx_hash) DO NOTHING
	`

	if _, err := s.pool.Exec(ctx, query, txHash, int64(auctionID)); err != nil {
		return fmt.Errorf("attach transaction: %w", err)
	}
	return nil
}

// ByAuction retrieves the record for an auction.
func (s *CompetitionStore) ByAuction(ctx context.Context, auctionID domain.AuctionID) (*domain.CompetitionRecord, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM solver_competitions c
		WHERE c.auction_id = $1
	`

	row := s.pool.QueryRow(ctx, query, int64(auctionID))
	rec, err := scanRecord(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get record by auction: %w", err)
	}
	return rec, nil
}

// ByTransaction retrieves the record that produced the given hash.
func (s *CompetitionStore) ByTransaction(ctx context.Context, txHash string) (*domain.CompetitionRecord, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM solver_competitions c
		JOIN settlement_observations obs ON obs.auction_id = c.auction_id
		WHERE obs.tx_hash = $1
	`

	row := s.pool.QueryRow(ctx, query, txHash)
	rec, err := scanRecord(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get record by transaction: %w", err)
	}
	return rec, nil
}

// Latest retrieves the record with the highest auction id.
func (s *CompetitionStore) Latest(ctx context.Context) (*domain.CompetitionRecord, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM solver_competitions c
		ORDER BY c.auction_id DESC
		LIMIT 1
	`

	row := s.pool.QueryRow(ctx, query)
	rec, err := scanRecord(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get latest record: %w", err)
	}
	return rec, nil
}

// LatestN retrieves up to n records ordered by auction id descending.
func (s *CompetitionStore) LatestN(ctx context.Context, n int) ([]*domain.CompetitionRecord, error) {
	if n <= 0 {
		return nil, storage.ErrInvalidInput
	}

	query := `
		SELECT ` + recordColumns + `
		FROM solver_competitions c
		ORDER BY c.auction_id DESC
		LIMIT $1
	`

	rows, err := s.pool.Query(ctx, query, n)
	if err != nil {
		return nil, fmt.Errorf("get latest records: %w", err)
	}
	defer rows.Close()

	var records []*domain.CompetitionRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate record rows: %w", err)
	}
	return records, nil
}

// scanRecord scans a single row into a CompetitionRecord.
func scanRecord(row pgx.Row) (*domain.CompetitionRecord, error) {
	var rec domain.CompetitionRecord
	var auctionID int64
	var submissions []byte
	var winningScore *string

	err := row.Scan(
		&auctionID,
		&rec.RecordedAt,
		&submissions,
		&rec.WinningSolvers,
		&winningScore,
		&rec.TransactionHashes,
	)
	if err != nil {
		return nil, err
	}

	rec.AuctionID = domain.AuctionID(auctionID)
	if err := json.Unmarshal(submissions, &rec.Submissions); err != nil {
		return nil, fmt.Errorf("decode submissions: %w", err)
	}
	if winningScore != nil {
		score, err := decimal.NewFromString(*winningScore)
		if err != nil {
			return nil, fmt.Errorf("decode winning score: %w", err)
		}
		rec.WinningScore = &score
	}
	return &rec, nil
}
