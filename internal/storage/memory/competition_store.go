package memory

import (
	"context"
	"sort"
	"sync"

	"auction-engine/internal/domain"
	"auction-engine/internal/storage"
)

// CompetitionStore is an in-memory implementation of
// storage.CompetitionStore.
type CompetitionStore struct {
	mu      sync.RWMutex
	records map[domain.AuctionID]*domain.CompetitionRecord
	// byHash maps observed transaction hashes to their auction.
	byHash map[string]domain.AuctionID
	// hashes preserves observation order per auction.
	hashes map[domain.AuctionID][]string
}

// NewCompetitionStore creates a new in-memory competition store.
func NewCompetitionStore() *CompetitionStore {
	return &CompetitionStore{
		records: make(map[domain.AuctionID]*domain.CompetitionRecord),
		byHash:  make(map[string]domain.AuctionID),
		hashes:  make(map[domain.AuctionID][]string),
	}
}

// Compile-time interface check.
var _ storage.CompetitionStore = (*CompetitionStore)(nil)

// Record persists the competition record for an auction.
func (s *CompetitionStore) Record(_ context.Context, rec *domain.CompetitionRecord) error {
	if rec == nil || rec.AuctionID == 0 {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[rec.AuctionID]; exists {
		return storage.ErrDuplicateKey
	}

	// Store a copy. Hashes live in the observation index only.
	recCopy := copyRecord(rec)
	recCopy.TransactionHashes = nil
	s.records[rec.AuctionID] = recCopy
	return nil
}

// AttachTransaction associates an observed transaction with an auction.
func (s *CompetitionStore) AttachTransaction(_ context.Context, auctionID domain.AuctionID, txHash string) error {
	if auctionID == 0 || txHash == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, seen := s.byHash[txHash]; seen {
		return nil
	}
	s.byHash[txHash] = auctionID
	s.hashes[auctionID] = append(s.hashes[auctionID], txHash)
	return nil
}

// ByAuction retrieves the record for an auction.
func (s *CompetitionStore) ByAuction(_ context.Context, auctionID domain.AuctionID) (*domain.CompetitionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.joined(auctionID)
}

// ByTransaction retrieves the record that produced the given hash.
func (s *CompetitionStore) ByTransaction(_ context.Context, txHash string) (*domain.CompetitionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	auctionID, ok := s.byHash[txHash]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return s.joined(auctionID)
}

// Latest retrieves the record with the highest auction id.
func (s *CompetitionStore) Latest(_ context.Context) (*domain.CompetitionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best domain.AuctionID
	for id := range s.records {
		if id > best {
			best = id
		}
	}
	if best == 0 {
		return nil, storage.ErrNotFound
	}
	return s.joined(best)
}

// LatestN retrieves up to n records ordered by auction id descending.
func (s *CompetitionStore) LatestN(_ context.Context, n int) ([]*domain.CompetitionRecord, error) {
	if n <= 0 {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]domain.AuctionID, 0, len(s.records))
	for id := range s.records {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] > ids[j] })
	if len(ids) > n {
		ids = ids[:n]
	}

	result := make([]*domain.CompetitionRecord, 0, len(ids))
	for _, id := range ids {
		rec, err := s.joined(id)
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	return result, nil
}

// joined returns a copy of the record with observed hashes filled in.
// Caller must hold at least a read lock.
func (s *CompetitionStore) joined(auctionID domain.AuctionID) (*domain.CompetitionRecord, error) {
	rec, exists := s.records[auctionID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	recCopy := copyRecord(rec)
	if hashes := s.hashes[auctionID]; len(hashes) > 0 {
		recCopy.TransactionHashes = append([]string(nil), hashes...)
	}
	return recCopy, nil
}

func copyRecord(rec *domain.CompetitionRecord) *domain.CompetitionRecord {
	recCopy := *rec
	recCopy.Submissions = append([]domain.SubmissionRecord(nil), rec.Submissions...)
	recCopy.WinningSolvers = append([]string(nil), rec.WinningSolvers...)
	recCopy.TransactionHashes = append([]string(nil), rec.TransactionHashes...)
	return &recCopy
}
