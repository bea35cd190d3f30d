package server

import (
	"encoding/base64"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"auction-engine/internal/domain"
)

// orderRequest is the JSON body for order submission.
type orderRequest struct {
	Owner             string `json:"owner"`
	SellToken         string `json:"sellToken"`
	BuyToken          string `json:"buyToken"`
	SellAmount        string `json:"sellAmount"`
	BuyAmount         string `json:"buyAmount"`
	Kind              string `json:"kind"`
	PartiallyFillable bool   `json:"partiallyFillable"`
	ValidTo           int64  `json:"validTo"`
	FeeAmount         string `json:"feeAmount"`
	SellTokenBalance  string `json:"sellTokenBalance,omitempty"`
	BuyTokenBalance   string `json:"buyTokenBalance,omitempty"`
	Authorization     struct {
		Scheme    string `json:"scheme"`
		PublicKey string `json:"publicKey"`
		Payload   string `json:"payload"` // base64
	} `json:"authorization"`
}

func (r *orderRequest) toOrder() (domain.Order, error) {
	var o domain.Order

	sellAmount, err := decimal.NewFromString(r.SellAmount)
	if err != nil {
		return o, fmt.Errorf("sellAmount: %w", err)
	}
	buyAmount, err := decimal.NewFromString(r.BuyAmount)
	if err != nil {
		return o, fmt.Errorf("buyAmount: %w", err)
	}
	if !sellAmount.IsPositive() || !buyAmount.IsPositive() {
		return o, fmt.Errorf("amounts must be positive")
	}

	fee := decimal.Zero
	if r.FeeAmount != "" {
		if fee, err = decimal.NewFromString(r.FeeAmount); err != nil {
			return o, fmt.Errorf("feeAmount: %w", err)
		}
	}

	kind := domain.OrderKind(r.Kind)
	if kind != domain.OrderKindSell && kind != domain.OrderKindBuy {
		return o, fmt.Errorf("kind: want sell or buy, got %q", r.Kind)
	}

	payload, err := base64.StdEncoding.DecodeString(r.Authorization.Payload)
	if err != nil {
		return o, fmt.Errorf("authorization payload: %w", err)
	}

	o = domain.Order{
		Owner:             domain.Address(r.Owner),
		SellToken:         domain.Address(r.SellToken),
		BuyToken:          domain.Address(r.BuyToken),
		SellAmount:        sellAmount,
		BuyAmount:         buyAmount,
		Kind:              kind,
		PartiallyFillable: r.PartiallyFillable,
		ValidTo:           r.ValidTo,
		FeeAmount:         fee,
		SellBalance:       balanceOrDefault(r.SellTokenBalance),
		BuyBalance:        balanceOrDefault(r.BuyTokenBalance),
		Authorization: domain.Authorization{
			Scheme:    domain.SigningScheme(r.Authorization.Scheme),
			PublicKey: domain.Address(r.Authorization.PublicKey),
			Payload:   payload,
		},
	}
	return o, nil
}

func balanceOrDefault(s string) domain.BalanceSource {
	if s == "" {
		return domain.BalanceDirect
	}
	return domain.BalanceSource(s)
}

// competitionResponse is the JSON shape of one competition record.
type competitionResponse struct {
	AuctionID         int64                `json:"auctionId"`
	RecordedAt        time.Time            `json:"recordedAt"`
	Submissions       []submissionResponse `json:"submissions"`
	WinningSolvers    []string             `json:"winningSolvers,omitempty"`
	WinningScore      *string              `json:"winningScore,omitempty"`
	TransactionHashes []string             `json:"transactionHashes,omitempty"`
}

type submissionResponse struct {
	Solver          string  `json:"solver"`
	Account         string  `json:"account"`
	Score           *string `json:"score,omitempty"`
	RejectionReason string  `json:"rejectionReason,omitempty"`
	Trades          int     `json:"trades"`
}

func encodeRecord(rec *domain.CompetitionRecord) competitionResponse {
	resp := competitionResponse{
		AuctionID:         int64(rec.AuctionID),
		RecordedAt:        rec.RecordedAt,
		Submissions:       make([]submissionResponse, 0, len(rec.Submissions)),
		WinningSolvers:    rec.WinningSolvers,
		TransactionHashes: rec.TransactionHashes,
	}
	if rec.WinningScore != nil {
		score := rec.WinningScore.String()
		resp.WinningScore = &score
	}
	for _, sub := range rec.Submissions {
		sr := submissionResponse{
			Solver:          sub.Solver,
			Account:         string(sub.Account),
			RejectionReason: sub.RejectionReason,
		}
		if sub.Score != nil {
			score := sub.Score.String()
			sr.Score = &score
		}
		if sub.Solution != nil {
			sr.Trades = len(sub.Solution.Trades)
		}
		resp.Submissions = append(resp.Submissions, sr)
	}
	return resp
}
