package solver

import (
	"encoding/base64"
	"fmt"

	"github.com/shopspring/decimal"

	"auction-engine/internal/domain"
)

// Wire format of the solver protocol. The schema is versioned and stable
// because solvers are deployed independently: unknown response fields
// are ignored, missing required fields become conversion errors that the
// dispatcher demotes to "no solution", never a crash.
const ProtocolVersion = "v1"

type auctionRequest struct {
	Version                string            `json:"version"`
	ID                     int64             `json:"id"`
	Orders                 []orderDTO        `json:"orders"`
	Prices                 map[string]string `json:"prices"`
	SurplusCapturingOwners []string          `json:"surplusCapturingJitOrderOwners"`
	DeadlineUnixMs         int64             `json:"deadline"`
}

type orderDTO struct {
	UID               string `json:"uid"`
	Owner             string `json:"owner"`
	SellToken         string `json:"sellToken"`
	BuyToken          string `json:"buyToken"`
	SellAmount        string `json:"sellAmount"`
	BuyAmount         string `json:"buyAmount"`
	Kind              string `json:"kind"`
	PartiallyFillable bool   `json:"partiallyFillable"`
	ValidTo           int64  `json:"validTo"`
	FeeAmount         string `json:"feeAmount"`
	SellBalance       string `json:"sellTokenBalance"`
	BuyBalance        string `json:"buyTokenBalance"`
	Executed          string `json:"executedAmount,omitempty"`
}

type solveResponse struct {
	Solution *solutionDTO `json:"solution"`
}

type solutionDTO struct {
	ID               uint64            `json:"id"`
	Prices           map[string]string `json:"prices"`
	Trades           []tradeDTO        `json:"trades"`
	PreInteractions  []callDTO         `json:"preInteractions"`
	PostInteractions []callDTO         `json:"postInteractions"`
	Gas              *string           `json:"gas"`
}

type tradeDTO struct {
	Kind string `json:"kind"` // "fulfillment" | "jit"

	// fulfillment fields
	Order string `json:"order,omitempty"`

	// jit fields
	JITOrder *jitOrderDTO `json:"jitOrder,omitempty"`

	ExecutedAmount string `json:"executedAmount"`
	Fee            string `json:"fee"`
}

type jitOrderDTO struct {
	Owner             string `json:"owner"`
	SellToken         string `json:"sellToken"`
	BuyToken          string `json:"buyToken"`
	SellAmount        string `json:"sellAmount"`
	BuyAmount         string `json:"buyAmount"`
	Kind              string `json:"kind"`
	PartiallyFillable bool   `json:"partiallyFillable"`
	ValidTo           int64  `json:"validTo"`
	SellBalance       string `json:"sellTokenBalance"`
	BuyBalance        string `json:"buyTokenBalance"`
	SigningScheme     string `json:"signingScheme"`
	Signature         string `json:"signature"` // base64
}

type callDTO struct {
	Target   string `json:"target"`
	Value    string `json:"value"`
	CallData string `json:"callData"` // base64
}

// encodeAuction converts a domain auction to the wire request.
func encodeAuction(a *domain.Auction, deadlineUnixMs int64) auctionRequest {
	req := auctionRequest{
		Version:        ProtocolVersion,
		ID:             int64(a.ID),
		Prices:         make(map[string]string, len(a.Prices)),
		DeadlineUnixMs: deadlineUnixMs,
	}
	for token, price := range a.Prices {
		req.Prices[string(token)] = price.String()
	}
	for _, owner := range a.SurplusCapturingOwners {
		req.SurplusCapturingOwners = append(req.SurplusCapturingOwners, string(owner))
	}
	for i := range a.Orders {
		o := &a.Orders[i]
		dto := orderDTO{
			UID:               string(o.UID),
			Owner:             string(o.Owner),
			SellToken:         string(o.SellToken),
			BuyToken:          string(o.BuyToken),
			SellAmount:        o.SellAmount.String(),
			BuyAmount:         o.BuyAmount.String(),
			Kind:              string(o.Kind),
			PartiallyFillable: o.PartiallyFillable,
			ValidTo:           o.ValidTo,
			FeeAmount:         o.FeeAmount.String(),
			SellBalance:       string(o.SellBalance),
			BuyBalance:        string(o.BuyBalance),
		}
		if done := a.ExecutedAmount(o.UID); !done.IsZero() {
			dto.Executed = done.String()
		}
		req.Orders = append(req.Orders, dto)
	}
	return req
}

// decodeSolution converts a wire solution to the domain type, failing on
// missing or malformed required fields.
func decodeSolution(dto *solutionDTO) (*domain.Solution, error) {
	s := &domain.Solution{
		ID:     dto.ID,
		Prices: make(map[domain.Address]decimal.Decimal, len(dto.Prices)),
	}
	for token, raw := range dto.Prices {
		p, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("price for %s: %w", token, err)
		}
		s.Prices[domain.Address(token)] = p
	}
	for i := range dto.Trades {
		trade, err := decodeTrade(&dto.Trades[i])
		if err != nil {
			return nil, fmt.Errorf("trade %d: %w", i, err)
		}
		s.Trades = append(s.Trades, trade)
	}
	var err error
	if s.PreInteractions, err = decodeCalls(dto.PreInteractions); err != nil {
		return nil, fmt.Errorf("pre-interactions: %w", err)
	}
	if s.PostInteractions, err = decodeCalls(dto.PostInteractions); err != nil {
		return nil, fmt.Errorf("post-interactions: %w", err)
	}
	if dto.Gas != nil {
		gas, err := decimal.NewFromString(*dto.Gas)
		if err != nil {
			return nil, fmt.Errorf("gas: %w", err)
		}
		s.Gas = &gas
	}
	return s, nil
}

func decodeTrade(dto *tradeDTO) (domain.Trade, error) {
	executed, err := decimal.NewFromString(dto.ExecutedAmount)
	if err != nil {
		return domain.Trade{}, fmt.Errorf("executed amount: %w", err)
	}
	fee := decimal.Zero
	if dto.Fee != "" {
		if fee, err = decimal.NewFromString(dto.Fee); err != nil {
			return domain.Trade{}, fmt.Errorf("fee: %w", err)
		}
	}
	switch dto.Kind {
	case "fulfillment":
		if dto.Order == "" {
			return domain.Trade{}, fmt.Errorf("fulfillment missing order uid")
		}
		return domain.Trade{Fulfillment: &domain.Fulfillment{
			Order:          domain.OrderUID(dto.Order),
			ExecutedAmount: executed,
			Fee:            fee,
		}}, nil
	case "jit":
		if dto.JITOrder == nil {
			return domain.Trade{}, fmt.Errorf("jit trade missing order")
		}
		jit, err := decodeJITOrder(dto.JITOrder)
		if err != nil {
			return domain.Trade{}, err
		}
		return domain.Trade{JIT: &domain.JITTrade{
			Order:          *jit,
			ExecutedAmount: executed,
			Fee:            fee,
		}}, nil
	default:
		return domain.Trade{}, fmt.Errorf("unknown trade kind %q", dto.Kind)
	}
}

func decodeJITOrder(dto *jitOrderDTO) (*domain.JITOrder, error) {
	sell, err := decimal.NewFromString(dto.SellAmount)
	if err != nil {
		return nil, fmt.Errorf("jit sell amount: %w", err)
	}
	buy, err := decimal.NewFromString(dto.BuyAmount)
	if err != nil {
		return nil, fmt.Errorf("jit buy amount: %w", err)
	}
	sig, err := base64.StdEncoding.DecodeString(dto.Signature)
	if err != nil {
		return nil, fmt.Errorf("jit signature: %w", err)
	}
	if dto.Owner == "" {
		return nil, fmt.Errorf("jit order missing owner")
	}
	return &domain.JITOrder{
		Owner:             domain.Address(dto.Owner),
		SellToken:         domain.Address(dto.SellToken),
		BuyToken:          domain.Address(dto.BuyToken),
		SellAmount:        sell,
		BuyAmount:         buy,
		Kind:              domain.OrderKind(dto.Kind),
		PartiallyFillable: dto.PartiallyFillable,
		ValidTo:           dto.ValidTo,
		SellBalance:       domain.BalanceSource(dto.SellBalance),
		BuyBalance:        domain.BalanceSource(dto.BuyBalance),
		Authorization: domain.Authorization{
			Scheme:    domain.SigningScheme(dto.SigningScheme),
			PublicKey: domain.Address(dto.Owner),
			Payload:   sig,
		},
	}, nil
}

func decodeCalls(dtos []callDTO) ([]domain.Call, error) {
	var calls []domain.Call
	for i, dto := range dtos {
		value := decimal.Zero
		var err error
		if dto.Value != "" {
			if value, err = decimal.NewFromString(dto.Value); err != nil {
				return nil, fmt.Errorf("call %d value: %w", i, err)
			}
		}
		data, err := base64.StdEncoding.DecodeString(dto.CallData)
		if err != nil {
			return nil, fmt.Errorf("call %d data: %w", i, err)
		}
		calls = append(calls, domain.Call{
			Target:   domain.Address(dto.Target),
			Value:    value,
			CallData: data,
		})
	}
	return calls, nil
}
