package settlement

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"auction-engine/internal/domain"
	"auction-engine/internal/ledger"
	"auction-engine/internal/observability"
)

// Config tunes submission and confirmation behavior.
type Config struct {
	// RetryCeiling caps submissions per selection, the first included.
	RetryCeiling int
	// ConfirmationSlots bounds how many slots a submission may stay
	// unconfirmed before it is resubmitted or the auction expires.
	ConfirmationSlots int64
	// InitialFee is the priority fee of the first submission, in micro
	// reference units.
	InitialFee int64
	// FeeBump is added to the fee on every resubmission.
	FeeBump int64
	// PollInterval paces status polls while awaiting confirmation.
	PollInterval time.Duration
}

// DefaultConfig returns conservative executor defaults.
func DefaultConfig() Config {
	return Config{
		RetryCeiling:      3,
		ConfirmationSlots: 32,
		InitialFee:        1_000,
		FeeBump:           500,
		PollInterval:      500 * time.Millisecond,
	}
}

// Executor submits winning selections to the ledger. At most one
// execution is in flight per auction id, enforced by a per-auction
// critical section; a revert or confirmation-bound exhaustion is
// terminal for the auction and is never retried against the same
// snapshot.
type Executor struct {
	client  ledger.Client
	cfg     Config
	metrics *observability.Metrics
	log     zerolog.Logger

	mu    sync.Mutex
	locks map[domain.AuctionID]*sync.Mutex
}

// NewExecutor creates an executor over the given ledger client.
// metrics may be nil.
func NewExecutor(client ledger.Client, cfg Config, metrics *observability.Metrics, log zerolog.Logger) *Executor {
	if cfg.RetryCeiling < 1 {
		cfg.RetryCeiling = 1
	}
	return &Executor{
		client:  client,
		cfg:     cfg,
		metrics: metrics,
		log:     log,
		locks:   make(map[domain.AuctionID]*sync.Mutex),
	}
}

// Execute builds, submits, and confirms one transaction for the
// selection. The returned outcome is always terminal: confirmed,
// reverted, expired, or failed.
func (e *Executor) Execute(ctx context.Context, sel *domain.Selection) domain.SettlementOutcome {
	lock := e.auctionLock(sel.AuctionID)
	lock.Lock()
	defer lock.Unlock()

	outcome := domain.SettlementOutcome{AuctionID: sel.AuctionID, Status: domain.SettlementFailed}

	payload, err := Encode(sel)
	if err != nil {
		outcome.Err = err.Error()
		return outcome
	}

	fee := e.cfg.InitialFee
	for attempt := 1; attempt <= e.cfg.RetryCeiling; attempt++ {
		outcome.Attempts = attempt

		txID, err := e.client.SubmitTransaction(ctx, ledger.Transaction{Payload: payload, Fee: fee})
		if err != nil {
			if ledger.IsTransient(err) && attempt < e.cfg.RetryCeiling {
				e.log.Warn().
					Int64("auction_id", int64(sel.AuctionID)).
					Int("attempt", attempt).
					Err(err).
					Msg("transient submission failure, bumping fee")
				fee += e.cfg.FeeBump
				continue
			}
			outcome.Err = err.Error()
			return outcome
		}
		outcome.ObservedTxIDs = append(outcome.ObservedTxIDs, txID)

		status, err := e.awaitConfirmation(ctx, txID)
		if err != nil {
			outcome.Err = err.Error()
			return outcome
		}
		switch {
		case status == nil:
			// Confirmation bound exhausted. The transaction may still
			// land later; a resubmission with a higher fee produces a
			// second observed id for the same settlement.
			if attempt < e.cfg.RetryCeiling {
				fee += e.cfg.FeeBump
				continue
			}
			outcome.Status = domain.SettlementExpired
			outcome.Err = fmt.Sprintf("no confirmation within %d slots", e.cfg.ConfirmationSlots)
			return outcome
		case status.RevertReason != "":
			outcome.Status = domain.SettlementReverted
			outcome.Slot = status.Slot
			outcome.Err = status.RevertReason
			return outcome
		default:
			outcome.Status = domain.SettlementConfirmed
			outcome.TxID = txID
			outcome.Slot = status.Slot
			return outcome
		}
	}
	return outcome
}

// awaitConfirmation polls the transaction status until it lands, the
// slot bound passes (nil, nil), or the context ends.
func (e *Executor) awaitConfirmation(ctx context.Context, txID string) (*ledger.TxStatus, error) {
	startSlot, err := e.client.LatestSlot(ctx)
	if err != nil {
		return nil, fmt.Errorf("read start slot: %w", err)
	}

	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()

	for {
		status, err := e.client.TransactionStatus(ctx, txID)
		if err != nil {
			return nil, fmt.Errorf("transaction status: %w", err)
		}
		if status.Found && (status.Confirmed || status.RevertReason != "") {
			if e.metrics != nil && status.Confirmed {
				e.metrics.ConfirmationSlotLag.Observe(float64(status.Slot - startSlot))
			}
			return status, nil
		}

		slot, err := e.client.LatestSlot(ctx)
		if err != nil {
			return nil, fmt.Errorf("read slot: %w", err)
		}
		if slot-startSlot > e.cfg.ConfirmationSlots {
			return nil, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (e *Executor) auctionLock(id domain.AuctionID) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	lock, ok := e.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		e.locks[id] = lock
	}
	return lock
}
