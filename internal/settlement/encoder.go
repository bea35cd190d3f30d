// Package settlement turns a winning selection into one atomic ledger
// transaction and drives it to confirmation or terminal failure.
package settlement

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sort"

	"auction-engine/internal/domain"
)

// Wire layout of the settlement call. The ordering is fixed: every JIT
// commitment and solver pre-interaction executes before the core
// settlement call, post-interactions after it.
type settlementPayload struct {
	AuctionID        int64          `json:"auctionId"`
	PreInteractions  []payloadCall  `json:"preInteractions"`
	Trades           []payloadTrade `json:"trades"`
	ClearingPrices   []payloadPrice `json:"clearingPrices"`
	PostInteractions []payloadCall  `json:"postInteractions"`
}

type payloadCall struct {
	Target   string `json:"target"`
	Value    string `json:"value"`
	CallData string `json:"callData"`
}

type payloadPrice struct {
	Token string `json:"token"`
	Price string `json:"price"`
}

type payloadTrade struct {
	Kind           string           `json:"kind"`
	Order          string           `json:"order,omitempty"`
	JITOrder       *payloadJITOrder `json:"jitOrder,omitempty"`
	ExecutedAmount string           `json:"executedAmount"`
	Fee            string           `json:"fee"`
}

type payloadJITOrder struct {
	Owner             string `json:"owner"`
	SellToken         string `json:"sellToken"`
	BuyToken          string `json:"buyToken"`
	SellAmount        string `json:"sellAmount"`
	BuyAmount         string `json:"buyAmount"`
	Kind              string `json:"kind"`
	PartiallyFillable bool   `json:"partiallyFillable"`
	ValidTo           int64  `json:"validTo"`
	SigningScheme     string `json:"signingScheme"`
	Authorization     string `json:"authorization"`
}

// Encode serializes the selection into the transaction payload. The
// encoding is deterministic: prices are sorted by token, trades and
// interactions keep part order.
func Encode(sel *domain.Selection) ([]byte, error) {
	payload := settlementPayload{AuctionID: int64(sel.AuctionID)}

	prices := make(map[domain.Address]string)
	for _, part := range sel.Parts {
		s := part.Solution
		for _, c := range s.PreInteractions {
			payload.PreInteractions = append(payload.PreInteractions, encodeCall(c))
		}
		for _, c := range s.PostInteractions {
			payload.PostInteractions = append(payload.PostInteractions, encodeCall(c))
		}
		for token, price := range s.Prices {
			prices[token] = price.String()
		}
		for i := range s.Trades {
			t := &s.Trades[i]
			switch {
			case t.Fulfillment != nil:
				payload.Trades = append(payload.Trades, payloadTrade{
					Kind:           "fulfillment",
					Order:          string(t.Fulfillment.Order),
					ExecutedAmount: t.Fulfillment.ExecutedAmount.String(),
					Fee:            t.Fulfillment.Fee.String(),
				})
			case t.JIT != nil:
				o := &t.JIT.Order
				payload.Trades = append(payload.Trades, payloadTrade{
					Kind: "jit",
					JITOrder: &payloadJITOrder{
						Owner:             string(o.Owner),
						SellToken:         string(o.SellToken),
						BuyToken:          string(o.BuyToken),
						SellAmount:        o.SellAmount.String(),
						BuyAmount:         o.BuyAmount.String(),
						Kind:              string(o.Kind),
						PartiallyFillable: o.PartiallyFillable,
						ValidTo:           o.ValidTo,
						SigningScheme:     string(o.Authorization.Scheme),
						Authorization:     base64.StdEncoding.EncodeToString(o.Authorization.Payload),
					},
					ExecutedAmount: t.JIT.ExecutedAmount.String(),
					Fee:            t.JIT.Fee.String(),
				})
			}
		}
	}

	tokens := make([]string, 0, len(prices))
	for token := range prices {
		tokens = append(tokens, string(token))
	}
	sort.Strings(tokens)
	for _, token := range tokens {
		payload.ClearingPrices = append(payload.ClearingPrices, payloadPrice{
			Token: token,
			Price: prices[domain.Address(token)],
		})
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal settlement payload: %w", err)
	}
	return data, nil
}

func encodeCall(c domain.Call) payloadCall {
	return payloadCall{
		Target:   string(c.Target),
		Value:    c.Value.String(),
		CallData: base64.StdEncoding.EncodeToString(c.CallData),
	}
}
