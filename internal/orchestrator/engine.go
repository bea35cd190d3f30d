// Package orchestrator drives the auction round loop: snapshot the
// order pool, fan the auction out to solvers, validate and rank the
// responses, persist the competition record, and hand the winner to the
// settlement executor.
package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"auction-engine/internal/domain"
	"auction-engine/internal/events"
	"auction-engine/internal/observability"
	"auction-engine/internal/orderpool"
	"auction-engine/internal/scoring"
	"auction-engine/internal/solver"
	"auction-engine/internal/storage"
	"auction-engine/internal/validation"
)

// PriceSource provides reference prices for auction snapshots.
type PriceSource interface {
	// ReferencePrices returns the current price per token in the
	// reference unit.
	ReferencePrices(ctx context.Context) (map[domain.Address]decimal.Decimal, error)
}

// StaticPrices is a PriceSource with a fixed price table.
type StaticPrices map[domain.Address]decimal.Decimal

// ReferencePrices returns the fixed table.
func (p StaticPrices) ReferencePrices(_ context.Context) (map[domain.Address]decimal.Decimal, error) {
	return map[domain.Address]decimal.Decimal(p), nil
}

// SettlementExecutor turns a selection into a terminal outcome.
type SettlementExecutor interface {
	Execute(ctx context.Context, sel *domain.Selection) domain.SettlementOutcome
}

// Config tunes the round loop.
type Config struct {
	// RoundInterval paces auction rounds.
	RoundInterval time.Duration
	// SolveDeadline bounds how long solvers get per auction.
	SolveDeadline time.Duration
	// RecordRetries caps attempts to persist a competition record
	// before the round is abandoned.
	RecordRetries int
	// SurplusOwners are the accounts whose just-in-time orders are
	// eligible for settlement.
	SurplusOwners []domain.Address
}

// DefaultConfig returns round loop defaults.
func DefaultConfig() Config {
	return Config{
		RoundInterval: 15 * time.Second,
		SolveDeadline: 10 * time.Second,
		RecordRetries: 3,
	}
}

// Engine runs auction rounds until its context ends.
type Engine struct {
	cfg       Config
	pool      *orderpool.Pool
	solvers   []solver.Solver
	validator *validation.Validator
	selector  *scoring.Selector
	params    scoring.Params
	executor  SettlementExecutor
	store     storage.CompetitionStore
	sink      storage.OutcomeSink // optional
	publisher *events.Publisher   // optional
	metrics   *observability.Metrics
	log       zerolog.Logger
	prices    PriceSource

	wg sync.WaitGroup
}

// NewEngine wires the round loop. sink and publisher may be nil.
func NewEngine(
	cfg Config,
	pool *orderpool.Pool,
	solvers []solver.Solver,
	validator *validation.Validator,
	selector *scoring.Selector,
	params scoring.Params,
	executor SettlementExecutor,
	store storage.CompetitionStore,
	sink storage.OutcomeSink,
	publisher *events.Publisher,
	metrics *observability.Metrics,
	prices PriceSource,
	log zerolog.Logger,
) *Engine {
	if cfg.RecordRetries < 1 {
		cfg.RecordRetries = 1
	}
	return &Engine{
		cfg:       cfg,
		pool:      pool,
		solvers:   solvers,
		validator: validator,
		selector:  selector,
		params:    params,
		executor:  executor,
		store:     store,
		sink:      sink,
		publisher: publisher,
		metrics:   metrics,
		log:       log,
		prices:    prices,
	}
}

// Run executes rounds on the configured interval until ctx ends, then
// waits for in-flight settlements to finish.
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.cfg.RoundInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.wg.Wait()
			return ctx.Err()
		case <-ticker.C:
			e.RunRound(ctx)
		}
	}
}

// RunRound executes one complete auction round. Settlement of the
// winner, if any, continues asynchronously after the round returns.
func (e *Engine) RunRound(ctx context.Context) {
	started := time.Now()
	roundID := uuid.NewString()
	log := e.log.With().Str("round_id", roundID).Logger()

	if expired := e.pool.RemoveExpired(); expired > 0 {
		log.Debug().Int("expired", expired).Msg("dropped expired orders")
	}

	prices, err := e.prices.ReferencePrices(ctx)
	if err != nil {
		log.Error().Err(err).Msg("reference prices unavailable, skipping round")
		return
	}

	auction := e.pool.Snapshot(prices, e.cfg.SurplusOwners)
	log = log.With().Int64("auction_id", int64(auction.ID)).Logger()
	e.metrics.CurrentAuctionID.Set(float64(auction.ID))
	e.metrics.AuctionOrders.Observe(float64(len(auction.Orders)))
	e.metrics.OpenOrders.Set(float64(len(e.pool.Open())))

	submissions := solver.Dispatch(ctx, e.solvers, auction, e.cfg.SolveDeadline, e.metrics, log)
	log.Info().
		Int("orders", len(auction.Orders)).
		Int("submissions", len(submissions)).
		Msg("auction dispatched")

	valid, records := e.evaluate(auction, submissions)
	selection := e.selector.Select(auction, valid)

	rec := e.buildRecord(auction, records, selection)
	if !e.persistRecord(ctx, rec, log) {
		// Without an audit record the winner must not settle; the
		// orders return to the pool for the next round.
		e.metrics.RoundsTotal.WithLabelValues("record_failed").Inc()
		return
	}
	e.metrics.RoundDuration.Observe(time.Since(started).Seconds())

	if selection == nil {
		log.Info().Msg("no winning solution")
		e.metrics.RoundsTotal.WithLabelValues(events.OutcomeNoWinner).Inc()
		e.publisher.PublishRound(ctx, events.EventFromOutcome(rec, nil))
		return
	}

	log.Info().
		Strs("winners", selection.Solvers()).
		Str("score", selection.Score.String()).
		Msg("winner selected")

	e.pool.MarkPending(auction.ID, selection.OrderUIDs())
	e.metrics.PendingOrders.Set(float64(len(selection.OrderUIDs())))

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.settle(ctx, auction, selection, rec, log)
	}()
}

// evaluate validates every submission, producing the valid set for
// selection and the full audit trail for the record.
func (e *Engine) evaluate(auction *domain.Auction, submissions []solver.Submission) ([]validation.ValidSolution, []domain.SubmissionRecord) {
	var valid []validation.ValidSolution
	records := make([]domain.SubmissionRecord, 0, len(submissions))

	for _, sub := range submissions {
		rec := domain.SubmissionRecord{
			Solver:   sub.Solver,
			Account:  sub.Account,
			Solution: sub.Solution,
		}
		vs, rejection := e.validator.Validate(auction, sub)
		if rejection != nil {
			rec.RejectionReason = string(rejection.Reason)
			e.metrics.SubmissionsRejected.WithLabelValues(string(rejection.Reason)).Inc()
			e.log.Debug().
				Str("solver", sub.Solver).
				Int64("auction_id", int64(auction.ID)).
				Str("reason", string(rejection.Reason)).
				Str("detail", rejection.Detail).
				Msg("submission rejected")
		} else {
			score := scoring.Score(auction, vs.Solution, e.params)
			rec.Score = &score
			valid = append(valid, *vs)
		}
		records = append(records, rec)
	}
	return valid, records
}

func (e *Engine) buildRecord(auction *domain.Auction, records []domain.SubmissionRecord, selection *domain.Selection) *domain.CompetitionRecord {
	rec := &domain.CompetitionRecord{
		AuctionID:   auction.ID,
		RecordedAt:  time.Now().UTC(),
		Submissions: records,
	}
	if selection != nil {
		rec.WinningSolvers = selection.Solvers()
		score := selection.Score
		rec.WinningScore = &score
	}
	return rec
}

// persistRecord writes the record with bounded retries. Duplicate keys
// count as success: the record for this auction is already durable.
func (e *Engine) persistRecord(ctx context.Context, rec *domain.CompetitionRecord, log zerolog.Logger) bool {
	var err error
	for attempt := 1; attempt <= e.cfg.RecordRetries; attempt++ {
		err = e.store.Record(ctx, rec)
		if err == nil || err == storage.ErrDuplicateKey {
			return true
		}
		e.metrics.RecordWriteRetries.Inc()
		log.Warn().Int("attempt", attempt).Err(err).Msg("competition record write failed")
	}
	e.metrics.RecordWriteFailures.Inc()
	log.Error().Err(err).Msg("competition record abandoned after retries")
	return false
}

// settle drives the winner to a terminal outcome and reconciles the
// pool and stores afterwards.
func (e *Engine) settle(ctx context.Context, auction *domain.Auction, selection *domain.Selection, rec *domain.CompetitionRecord, log zerolog.Logger) {
	started := time.Now()
	outcome := e.executor.Execute(ctx, selection)

	for _, txID := range outcome.ObservedTxIDs {
		if err := e.store.AttachTransaction(ctx, auction.ID, txID); err != nil {
			log.Error().Str("tx_id", txID).Err(err).Msg("attach transaction failed")
		}
	}

	e.metrics.SettlementsTotal.WithLabelValues(string(outcome.Status)).Inc()
	e.metrics.SettlementAttempts.Observe(float64(outcome.Attempts))
	e.metrics.SettlementDuration.Observe(time.Since(started).Seconds())

	if outcome.Settled() {
		e.pool.ConfirmSettled(auction.ID, claimedFills(auction, selection))
		log.Info().
			Str("tx_id", outcome.TxID).
			Int64("slot", outcome.Slot).
			Int("attempts", outcome.Attempts).
			Msg("settlement confirmed")
	} else {
		e.pool.ReleasePending(auction.ID)
		log.Warn().
			Str("status", string(outcome.Status)).
			Str("error", outcome.Err).
			Msg("settlement did not land")
	}
	e.metrics.PendingOrders.Set(0)
	e.metrics.RoundsTotal.WithLabelValues(roundOutcome(outcome)).Inc()

	if e.sink != nil {
		if err := e.sink.InsertOutcome(ctx, &outcome); err != nil {
			log.Warn().Err(err).Msg("outcome sink write failed")
		}
	}
	e.publisher.PublishRound(ctx, events.EventFromOutcome(rec, &outcome))
}

// claimedFills maps each settled pool order to the amount consumed from
// its fixed side. Fees are claimed from the sell side, so sell orders
// consume executed amount plus fee.
func claimedFills(auction *domain.Auction, selection *domain.Selection) map[domain.OrderUID]decimal.Decimal {
	fills := make(map[domain.OrderUID]decimal.Decimal)
	for _, trade := range selection.Trades() {
		if trade.Fulfillment == nil {
			continue
		}
		f := trade.Fulfillment
		claimed := f.ExecutedAmount
		if order := auction.Order(f.Order); order != nil && order.Kind == domain.OrderKindSell {
			claimed = claimed.Add(f.Fee)
		}
		fills[f.Order] = fills[f.Order].Add(claimed)
	}
	return fills
}

func roundOutcome(outcome domain.SettlementOutcome) string {
	switch outcome.Status {
	case domain.SettlementConfirmed:
		return events.OutcomeSettled
	case domain.SettlementReverted:
		return events.OutcomeReverted
	default:
		return events.OutcomeExpired
	}
}
