package testutil

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"
	"time"

	"github.com/mr-tron/base58"
	"github.com/shopspring/decimal"

	"auction-engine/internal/domain"
	"auction-engine/internal/idhash"
	"auction-engine/internal/signing"
)

// NewKeypair generates an ed25519 keypair and returns the owner address
// in base58 form.
func NewKeypair(t *testing.T) (domain.Address, ed25519.PrivateKey) {
	t.Helper()

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate keypair: %v", err)
	}
	return domain.Address(base58.Encode(pub)), priv
}

// SignedOrder builds an order owned by owner, applies mutate, and signs
// the resulting digest. Defaults: sell 100 TKX for 200 TKY, valid one
// hour.
func SignedOrder(t *testing.T, owner domain.Address, priv ed25519.PrivateKey, mutate func(*domain.Order)) domain.Order {
	t.Helper()

	o := domain.Order{
		Owner:       owner,
		SellToken:   "TKX",
		BuyToken:    "TKY",
		SellAmount:  decimal.NewFromInt(100),
		BuyAmount:   decimal.NewFromInt(200),
		Kind:        domain.OrderKindSell,
		ValidTo:     time.Now().Add(time.Hour).Unix(),
		FeeAmount:   decimal.Zero,
		SellBalance: domain.BalanceDirect,
		BuyBalance:  domain.BalanceDirect,
	}
	if mutate != nil {
		mutate(&o)
	}

	digest := idhash.OrderDigest(&o)
	o.Authorization = domain.Authorization{
		Scheme:    domain.SchemeEd25519,
		PublicKey: owner,
		Payload:   signing.Sign(priv, digest),
	}
	o.UID = idhash.ComputeOrderUID(&o)
	return o
}

// CommittedJITOrder builds a just-in-time order carrying a commitment
// authorization over its own digest.
func CommittedJITOrder(owner domain.Address, mutate func(*domain.JITOrder)) domain.JITOrder {
	j := domain.JITOrder{
		Owner:       owner,
		SellToken:   "TKY",
		BuyToken:    "TKX",
		SellAmount:  decimal.NewFromInt(200),
		BuyAmount:   decimal.NewFromInt(100),
		Kind:        domain.OrderKindSell,
		ValidTo:     time.Now().Add(time.Hour).Unix(),
		SellBalance: domain.BalanceInternal,
		BuyBalance:  domain.BalanceInternal,
	}
	if mutate != nil {
		mutate(&j)
	}

	digest := idhash.JITOrderDigest(&j)
	j.Authorization = domain.Authorization{
		Scheme:    domain.SchemeCommitment,
		PublicKey: owner,
		Payload:   digest[:],
	}
	return j
}

// CommitCall returns the pre-interaction matching a commitment
// authorization.
func CommitCall(j *domain.JITOrder) domain.Call {
	digest := idhash.JITOrderDigest(j)
	return domain.Call{
		Target:   j.Owner,
		Value:    decimal.Zero,
		CallData: digest[:],
	}
}
