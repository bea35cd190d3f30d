// Package events publishes round outcomes to NATS for downstream
// consumers. Publishing happens after the competition record is
// persisted and is best-effort: a failed publish never fails a round,
// consumers can always query the store directly.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"auction-engine/internal/domain"
)

// RoundEvent is the outbound notification for one closed auction round.
type RoundEvent struct {
	AuctionID      int64            `json:"auction_id"`
	Outcome        string           `json:"outcome"`
	WinningSolvers []string         `json:"winning_solvers,omitempty"`
	WinningScore   *decimal.Decimal `json:"winning_score,omitempty"`
	TxHash         string           `json:"tx_hash,omitempty"`
	RecordedAt     time.Time        `json:"recorded_at"`
}

// Round outcomes as they appear in subjects.
const (
	OutcomeSettled  = "settled"
	OutcomeReverted = "reverted"
	OutcomeExpired  = "expired"
	OutcomeNoWinner = "no_winner"
)

// Publisher publishes round events to subjects of the form
// auction.rounds.{outcome}. A nil Publisher is valid and publishes
// nothing.
type Publisher struct {
	js  jetstream.JetStream
	log zerolog.Logger
}

// NewPublisher creates a publisher over an established JetStream
// context.
func NewPublisher(js jetstream.JetStream, log zerolog.Logger) *Publisher {
	return &Publisher{js: js, log: log}
}

// PublishRound emits one round event. Failures are logged, never
// returned to the round loop.
func (p *Publisher) PublishRound(ctx context.Context, evt RoundEvent) {
	if p == nil || p.js == nil {
		return
	}

	data, err := json.Marshal(evt)
	if err != nil {
		p.log.Warn().Int64("auction_id", evt.AuctionID).Err(err).Msg("marshal round event")
		return
	}

	subject := fmt.Sprintf("auction.rounds.%s", evt.Outcome)
	if _, err := p.js.Publish(ctx, subject, data); err != nil {
		p.log.Warn().
			Int64("auction_id", evt.AuctionID).
			Str("subject", subject).
			Err(err).
			Msg("publish round event")
	}
}

// EnsureRoundStream creates the round events stream if it does not
// exist.
func EnsureRoundStream(ctx context.Context, js jetstream.JetStream) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      "AUCTION_ROUNDS",
		Subjects:  []string{"auction.rounds.>"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    72 * time.Hour,
		Replicas:  1,
	})
	if err != nil {
		return fmt.Errorf("create round stream: %w", err)
	}
	return nil
}

// EventFromOutcome maps a terminal settlement outcome onto a round
// event.
func EventFromOutcome(rec *domain.CompetitionRecord, out *domain.SettlementOutcome) RoundEvent {
	evt := RoundEvent{
		AuctionID:      int64(rec.AuctionID),
		Outcome:        OutcomeNoWinner,
		WinningSolvers: rec.WinningSolvers,
		WinningScore:   rec.WinningScore,
		RecordedAt:     rec.RecordedAt,
	}
	if out == nil {
		return evt
	}
	switch out.Status {
	case domain.SettlementConfirmed:
		evt.Outcome = OutcomeSettled
		evt.TxHash = out.TxID
	case domain.SettlementReverted:
		evt.Outcome = OutcomeReverted
	default:
		evt.Outcome = OutcomeExpired
	}
	return evt
}
